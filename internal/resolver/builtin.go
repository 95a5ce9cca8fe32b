package resolver

// DefaultTables is the compiled-in campaign catalog. Operators override it
// at runtime through the dynamic rule table, which always wins.
func DefaultTables() Tables {
	return Tables{
		Aliases: map[string]string{
			"bienvenida":  "bienvenida",
			"info":        "bienvenida",
			"promo":       "promo",
			"oferta":      "promo",
			"seguimiento": "seguimiento",
			"webinar":     "webinar",
			"demo":        "demo",
		},
		Cancels: map[string][]string{
			// Entering the promo funnel abandons the intro drip.
			"promo": {"bienvenida", "seguimiento"},
			// A demo request supersedes both intro and webinar nurture.
			"demo": {"bienvenida", "seguimiento", "webinar"},
		},
	}
}

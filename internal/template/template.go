// Package template renders {{field}} placeholders in message content from
// contact attributes. Rendering is pure: unknown tokens resolve to the empty
// string, never an error.
package template

import (
	"regexp"
	"strings"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

var (
	tokenRe  = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
	digitsRe = regexp.MustCompile(`\D`)
)

// Render substitutes every {{field}} token in tpl. {{telefono}} yields the
// digits-only phone, {{nombre}} the first word of the display name; any
// other token reads the contact's same-named attribute.
func Render(tpl string, contact *model.Contact) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}

	return tokenRe.ReplaceAllStringFunc(tpl, func(token string) string {
		field := tokenRe.FindStringSubmatch(token)[1]
		return resolveField(field, contact)
	})
}

func resolveField(field string, contact *model.Contact) string {
	if contact == nil {
		return ""
	}

	switch field {
	case "telefono":
		return digitsRe.ReplaceAllString(contact.Phone, "")
	case "nombre":
		return FirstName(contact.DisplayName)
	}

	return contact.Attributes[field]
}

// FirstName returns the first whitespace-delimited token of a display name.
func FirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

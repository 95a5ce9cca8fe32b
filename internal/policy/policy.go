// Package policy decides whether a contact may be (re-)enrolled into a
// sequence. Rules run in order; the first one that fires blocks.
package policy

import "github.com/expertec/vev-crm-sub000/internal/model"

const (
	// StatusConverted is the terminal purchased state on a contact.
	StatusConverted = "cliente"
	// TagConverted marks a purchase recorded as a tag.
	TagConverted = "comprado"
	// TagIntakeDone marks a contact whose intake form was submitted.
	TagIntakeDone = "formulario"
)

// Suppression blocks enrollments that would spam or regress a contact.
type Suppression struct {
	topFunnel map[string]struct{}
}

// NewSuppression builds the policy. topFunnelTriggers are the introductory
// sequences a contact past the intake stage must never re-enter.
func NewSuppression(topFunnelTriggers []string) *Suppression {
	set := make(map[string]struct{}, len(topFunnelTriggers))
	for _, t := range topFunnelTriggers {
		set[t] = struct{}{}
	}
	return &Suppression{topFunnel: set}
}

// ShouldBlock reports whether the contact must not be enrolled into
// candidateTrigger.
func (s *Suppression) ShouldBlock(contact *model.Contact, candidateTrigger string) bool {
	if contact == nil {
		return false
	}
	if contact.SeqPaused {
		return true
	}
	if contact.Status == StatusConverted || contact.HasTag(TagConverted) {
		return true
	}
	if contact.HasTag(TagIntakeDone) {
		if _, top := s.topFunnel[candidateTrigger]; top {
			return true
		}
	}
	return false
}

package model

import "time"

// Contact is the minimal view of a recipient the scheduler needs. Tags,
// stage and the pause flag are mutated by inbound-event handling; the
// scheduler only flips HasActiveSequences and touches LastMessageAt.
type Contact struct {
	ID                 string
	Phone              string
	DisplayName        string
	Status             string
	Tags               []string
	HasActiveSequences bool
	SeqPaused          bool
	LastMessageAt      *time.Time
	Attributes         map[string]string
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

package model

// MessageStep is one timed message inside a sequence definition. Delay is
// minutes after the previous step (the first step's delay counts from
// enrollment).
type MessageStep struct {
	Type         MessageType `json:"type"`
	Content      string      `json:"content"`
	DelayMinutes int         `json:"delay"`
}

// SequenceDefinition is an ordered, named campaign. The scheduler treats the
// catalog as read only; authoring happens elsewhere.
type SequenceDefinition struct {
	ID       string
	Trigger  string
	Active   bool
	Messages []MessageStep
}

package model

import "time"

type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusSent    JobStatus = "sent"
	StatusError   JobStatus = "error"
)

// MessageType discriminates the payload variants a sequence step can carry.
type MessageType string

const (
	TypeText      MessageType = "text"
	TypeForm      MessageType = "form"
	TypeAudio     MessageType = "audio"
	TypeImage     MessageType = "image"
	TypeVideo     MessageType = "video"
	TypeVideoNote MessageType = "video_note"
)

// IsMedia reports whether the type is delivered through the media endpoint
// rather than as plain text.
func (t MessageType) IsMedia() bool {
	switch t {
	case TypeAudio, TypeImage, TypeVideo, TypeVideoNote:
		return true
	}
	return false
}

// Payload is the snapshot of a sequence step copied into a job at enrollment
// time. Editing the definition afterwards never changes jobs already written.
type Payload struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
}

// ScheduledJob is one durable delivery of one sequence step to one contact.
// Terminal rows (sent, error) are an audit trail and are never deleted here.
type ScheduledJob struct {
	ID          string
	ContactID   string
	Trigger     string
	StepIndex   int
	Payload     Payload
	DueAt       time.Time
	Status      JobStatus
	Shard       int
	CreatedAt   time.Time
	ProcessedAt *time.Time
	LastError   *string
}

package cache

import (
	"context"
	"time"
)

// Delivery is the last-delivered-step record kept per contact. It is a
// best-effort hint for support tooling, not an authoritative audit row.
type Delivery struct {
	JobID           string    `json:"jobId"`
	Trigger         string    `json:"trigger"`
	StepIndex       int       `json:"stepIndex"`
	RemoteMessageID string    `json:"remoteMessageId"`
	SentAt          time.Time `json:"sentAt"`
}

type DeliveryCache interface {
	StoreDelivery(ctx context.Context, contactID string, d Delivery) error
}

package repo

import (
	"context"
	"errors"
	"time"

	"github.com/expertec/vev-crm-sub000/internal/model"
)

var (
	ErrSequenceNotFound = errors.New("sequence not found")
	ErrContactNotFound  = errors.New("contact not found")
)

// JobRepository is the single shared mutable surface of the system. Every
// multi-row mutation (cohort replace, cancellation) must be atomic: either
// all rows land or none do.
type JobRepository interface {
	// ReplaceCohort deletes all pending jobs for (contactID, trigger), inserts
	// the given jobs, and marks the contact as having active sequences, as one
	// transaction. This is the idempotency contract for re-enrollment.
	ReplaceCohort(ctx context.Context, contactID, trigger string, jobs []model.ScheduledJob) error

	// DuePending returns up to limit pending jobs with dueAt <= now, ordered
	// by dueAt ascending. shard < 0 means all shards.
	DuePending(ctx context.Context, now time.Time, limit, shard int) ([]model.ScheduledJob, error)

	MarkSent(ctx context.Context, id string, processedAt time.Time) error
	MarkError(ctx context.Context, id string, processedAt time.Time, reason string) error

	// DeletePending removes pending jobs for the contact whose trigger is in
	// triggers. Terminal jobs are never touched.
	DeletePending(ctx context.Context, contactID string, triggers []string) (int64, error)
	DeleteAllPending(ctx context.Context, contactID string) (int64, error)

	// ListByContact returns the contact's jobs, newest first, optionally
	// filtered by status ("" means any).
	ListByContact(ctx context.Context, contactID string, status model.JobStatus, limit int) ([]model.ScheduledJob, error)
}

// SequenceRepository reads the sequence catalog. The scheduler never writes
// to it.
type SequenceRepository interface {
	// GetByTrigger resolves a definition by id first, then by trigger field.
	// Returns ErrSequenceNotFound when neither matches.
	GetByTrigger(ctx context.Context, trigger string) (*model.SequenceDefinition, error)
}

type ContactRepository interface {
	Get(ctx context.Context, id string) (*model.Contact, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

// RuleRepository serves the dynamic trigger rule table.
type RuleRepository interface {
	// FindByTags returns the first rule matching any of the tags, honoring
	// the order of the tags slice. Returns (nil, nil) when nothing matches.
	FindByTags(ctx context.Context, tags []string) (*model.TriggerRule, error)
}

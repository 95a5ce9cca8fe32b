package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/expertec/vev-crm-sub000/internal/model"
	"github.com/expertec/vev-crm-sub000/internal/repo"
)

// stepTieBreak is the per-index offset added to each step's due time. It is
// not a business delay: it keeps steps that land on the same nominal minute
// strictly ordered by dueAt alone.
const stepTieBreak = 250 * time.Millisecond

// Enroller schedules sequence cohorts and cancels pending ones. The
// purge-then-insert for a (contact, trigger) pair runs inside one repository
// transaction, so two racing enrollments can never leave two pending cohorts.
type Enroller struct {
	jobs       repo.JobRepository
	sequences  repo.SequenceRepository
	shardCount int

	now     func() time.Time
	randInt func(n int) int
}

func NewEnroller(jobs repo.JobRepository, sequences repo.SequenceRepository, shardCount int) *Enroller {
	if shardCount <= 0 {
		shardCount = 1
	}
	return &Enroller{
		jobs:       jobs,
		sequences:  sequences,
		shardCount: shardCount,
		now:        time.Now,
		randInt:    rand.IntN,
	}
}

// WithClock overrides the time source, for tests.
func (e *Enroller) WithClock(now func() time.Time) *Enroller {
	e.now = now
	return e
}

// Enroll schedules every step of the sequence named by trigger for the
// contact, replacing any pending cohort for the same (contact, trigger).
// Returns the number of steps scheduled; a missing, inactive or empty
// sequence is a zero-effect no-op.
func (e *Enroller) Enroll(ctx context.Context, contactID, trigger string, startAt time.Time) (int, error) {
	def, err := e.sequences.GetByTrigger(ctx, trigger)
	if err != nil {
		if errors.Is(err, repo.ErrSequenceNotFound) {
			slog.Warn("enroll: sequence not found", "trigger", trigger, "contact_id", contactID)
			return 0, nil
		}
		return 0, err
	}
	if !def.Active || len(def.Messages) == 0 {
		slog.Warn("enroll: sequence inactive or empty",
			"trigger", trigger, "active", def.Active, "steps", len(def.Messages))
		return 0, nil
	}

	createdAt := e.now().UTC()
	jobs := make([]model.ScheduledJob, 0, len(def.Messages))

	// Delays accumulate: each step's delay counts from the previous step's
	// nominal position, plus the per-index tie break.
	cumulative := startAt
	for i, step := range def.Messages {
		cumulative = cumulative.Add(time.Duration(step.DelayMinutes) * time.Minute)
		jobs = append(jobs, model.ScheduledJob{
			ID:        uuid.New().String(),
			ContactID: contactID,
			Trigger:   trigger,
			StepIndex: i,
			Payload: model.Payload{
				Type:    step.Type,
				Content: step.Content,
			},
			DueAt:     cumulative.Add(time.Duration(i) * stepTieBreak),
			Status:    model.StatusPending,
			Shard:     e.randInt(e.shardCount),
			CreatedAt: createdAt,
		})
	}

	if err := e.jobs.ReplaceCohort(ctx, contactID, trigger, jobs); err != nil {
		return 0, err
	}

	slog.Info("enrolled contact in sequence",
		"contact_id", contactID, "trigger", trigger, "steps", len(jobs))
	return len(jobs), nil
}

// Cancel deletes the contact's pending jobs for the given triggers. Terminal
// jobs are never touched.
func (e *Enroller) Cancel(ctx context.Context, contactID string, triggers []string) (int64, error) {
	if contactID == "" || len(triggers) == 0 {
		return 0, nil
	}

	n, err := e.jobs.DeletePending(ctx, contactID, triggers)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("canceled pending jobs",
			"contact_id", contactID, "triggers", triggers, "deleted", n)
	}
	return n, nil
}

// CancelAll deletes every pending job for the contact, used on explicit
// opt-out or conversion.
func (e *Enroller) CancelAll(ctx context.Context, contactID string) (int64, error) {
	if contactID == "" {
		return 0, nil
	}

	n, err := e.jobs.DeleteAllPending(ctx, contactID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("canceled all pending jobs", "contact_id", contactID, "deleted", n)
	}
	return n, nil
}

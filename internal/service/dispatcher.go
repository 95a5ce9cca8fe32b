package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/expertec/vev-crm-sub000/internal/cache"
	"github.com/expertec/vev-crm-sub000/internal/model"
	"github.com/expertec/vev-crm-sub000/internal/repo"
	"github.com/expertec/vev-crm-sub000/internal/template"
)

// Transport is the minimal outbound capability: plain text to a phone
// number. Returns the remote message id on success.
type Transport interface {
	SendText(ctx context.Context, phone, text string) (string, error)
}

// MediaTransport is the richer capability for media payloads. Transports
// that do not implement it get media steps degraded to a plain-text URL.
type MediaTransport interface {
	SendMedia(ctx context.Context, phone string, mediaType model.MessageType, url string) (string, error)
}

// Dispatcher drains due jobs one page per tick, strictly sequentially. A
// contact's step i is always handed to the transport before step i+1, and a
// failed job never blocks the jobs behind it.
type Dispatcher struct {
	jobs       repo.JobRepository
	contacts   repo.ContactRepository
	transport  Transport
	deliveries cache.DeliveryCache

	batchSize int
	sendDelay time.Duration
	shard     int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewDispatcher(jobs repo.JobRepository, contacts repo.ContactRepository, transport Transport, batchSize int, sendDelay time.Duration) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		jobs:      jobs,
		contacts:  contacts,
		transport: transport,
		batchSize: batchSize,
		sendDelay: sendDelay,
		shard:     -1,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// WithDeliveryCache records each successful send in the cache, best effort.
func (d *Dispatcher) WithDeliveryCache(c cache.DeliveryCache) *Dispatcher {
	d.deliveries = c
	return d
}

// WithShard restricts the tick to one shard. Negative means all shards.
func (d *Dispatcher) WithShard(shard int) *Dispatcher {
	d.shard = shard
	return d
}

// WithClock overrides the time source and inter-send sleep, for tests.
func (d *Dispatcher) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration)) *Dispatcher {
	d.now = now
	d.sleep = sleep
	return d
}

// ProcessDueJobs runs one dispatch tick: fetch due pending jobs, order them
// deterministically, deliver sequentially, and mark each one terminal.
// Returns the number of jobs attempted (sent + error).
func (d *Dispatcher) ProcessDueJobs(ctx context.Context) (int, error) {
	now := d.now().UTC()

	jobs, err := d.jobs.DuePending(ctx, now, d.batchSize, d.shard)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	orderJobs(jobs)

	processed := 0
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if err := d.deliver(ctx, job); err != nil {
			d.markError(ctx, job.ID, err)
		} else {
			d.markSent(ctx, job)
		}
		processed++

		if i < len(jobs)-1 && d.sendDelay > 0 {
			d.sleep(ctx, d.sendDelay)
		}
	}

	return processed, nil
}

// orderJobs imposes the total order the store does not guarantee: dueAt,
// then stepIndex, then createdAt with zero timestamps last.
func orderJobs(jobs []model.ScheduledJob) {
	sort.SliceStable(jobs, func(a, b int) bool {
		ja, jb := jobs[a], jobs[b]
		if !ja.DueAt.Equal(jb.DueAt) {
			return ja.DueAt.Before(jb.DueAt)
		}
		if ja.StepIndex != jb.StepIndex {
			return ja.StepIndex < jb.StepIndex
		}
		if ja.CreatedAt.IsZero() != jb.CreatedAt.IsZero() {
			return !ja.CreatedAt.IsZero()
		}
		return ja.CreatedAt.Before(jb.CreatedAt)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, job model.ScheduledJob) error {
	contact, err := d.contacts.Get(ctx, job.ContactID)
	if err != nil {
		if errors.Is(err, repo.ErrContactNotFound) {
			return errors.New("contact not found")
		}
		return err
	}
	if contact.Phone == "" {
		return errors.New("contact has no phone number")
	}

	_, err = d.send(ctx, contact, job)
	return err
}

func (d *Dispatcher) send(ctx context.Context, contact *model.Contact, job model.ScheduledJob) (string, error) {
	content := template.Render(job.Payload.Content, contact)

	switch job.Payload.Type {
	case model.TypeText:
		return d.transport.SendText(ctx, contact.Phone, content)
	case model.TypeForm:
		// Form content carries escaped line breaks for multi-line prompts.
		return d.transport.SendText(ctx, contact.Phone, strings.ReplaceAll(content, `\n`, "\n"))
	case model.TypeAudio, model.TypeImage, model.TypeVideo, model.TypeVideoNote:
		if mt, ok := d.transport.(MediaTransport); ok {
			return mt.SendMedia(ctx, contact.Phone, job.Payload.Type, content)
		}
		// Degrade to the raw URL as text when no media capability exists.
		return d.transport.SendText(ctx, contact.Phone, content)
	default:
		return "", errors.New("unknown message type: " + string(job.Payload.Type))
	}
}

func (d *Dispatcher) markSent(ctx context.Context, job model.ScheduledJob) {
	now := d.now().UTC()

	if err := d.jobs.MarkSent(ctx, job.ID, now); err != nil {
		slog.Error("failed to mark job sent", "job_id", job.ID, "error", err)
	}
	if err := d.contacts.TouchLastMessage(ctx, job.ContactID, now); err != nil {
		slog.Error("failed to touch contact", "contact_id", job.ContactID, "error", err)
	}
	if d.deliveries != nil {
		if err := d.deliveries.StoreDelivery(ctx, job.ContactID, cache.Delivery{
			JobID:     job.ID,
			Trigger:   job.Trigger,
			StepIndex: job.StepIndex,
			SentAt:    now,
		}); err != nil {
			slog.Warn("delivery cache write failed", "job_id", job.ID, "error", err)
		}
	}
}

func (d *Dispatcher) markError(ctx context.Context, jobID string, cause error) {
	slog.Warn("job delivery failed", "job_id", jobID, "error", cause)

	if err := d.jobs.MarkError(ctx, jobID, d.now().UTC(), cause.Error()); err != nil {
		slog.Error("failed to mark job errored", "job_id", jobID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

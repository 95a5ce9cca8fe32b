package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/expertec/vev-crm-sub000/internal/model"
	"github.com/expertec/vev-crm-sub000/internal/repo"
)

// memJobs is an in-memory JobRepository honoring the same atomicity contract
// as the Postgres implementation: ReplaceCohort either applies fully or not
// at all.
type memJobs struct {
	mu   sync.Mutex
	jobs map[string]model.ScheduledJob

	replaceErr error
	dueErr     error
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]model.ScheduledJob)}
}

func (m *memJobs) add(jobs ...model.ScheduledJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
}

func (m *memJobs) ReplaceCohort(ctx context.Context, contactID, trigger string, jobs []model.ScheduledJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.replaceErr != nil {
		return m.replaceErr
	}

	for id, j := range m.jobs {
		if j.ContactID == contactID && j.Trigger == trigger && j.Status == model.StatusPending {
			delete(m.jobs, id)
		}
	}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return nil
}

func (m *memJobs) DuePending(ctx context.Context, now time.Time, limit, shard int) ([]model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dueErr != nil {
		return nil, m.dueErr
	}

	var due []model.ScheduledJob
	for _, j := range m.jobs {
		if j.Status != model.StatusPending || j.DueAt.After(now) {
			continue
		}
		if shard >= 0 && j.Shard != shard {
			continue
		}
		due = append(due, j)
	}

	// Native store order: dueAt only, like the real table.
	sort.Slice(due, func(a, b int) bool { return due[a].DueAt.Before(due[b].DueAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memJobs) MarkSent(ctx context.Context, id string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	j.Status = model.StatusSent
	j.ProcessedAt = &processedAt
	m.jobs[id] = j
	return nil
}

func (m *memJobs) MarkError(ctx context.Context, id string, processedAt time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return errors.New("job not found")
	}
	j.Status = model.StatusError
	j.ProcessedAt = &processedAt
	j.LastError = &reason
	m.jobs[id] = j
	return nil
}

func (m *memJobs) DeletePending(ctx context.Context, contactID string, triggers []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		set[t] = struct{}{}
	}

	var n int64
	for id, j := range m.jobs {
		if j.ContactID != contactID || j.Status != model.StatusPending {
			continue
		}
		if _, ok := set[j.Trigger]; ok {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *memJobs) DeleteAllPending(ctx context.Context, contactID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, j := range m.jobs {
		if j.ContactID == contactID && j.Status == model.StatusPending {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *memJobs) ListByContact(ctx context.Context, contactID string, status model.JobStatus, limit int) ([]model.ScheduledJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.ScheduledJob
	for _, j := range m.jobs {
		if j.ContactID != contactID {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

// snapshot returns the contact's jobs for the trigger in stepIndex order.
func (m *memJobs) snapshot(contactID, trigger string, status model.JobStatus) []model.ScheduledJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.ScheduledJob
	for _, j := range m.jobs {
		if j.ContactID != contactID {
			continue
		}
		if trigger != "" && j.Trigger != trigger {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StepIndex < out[b].StepIndex })
	return out
}

type memSequences struct {
	defs []*model.SequenceDefinition
}

func (m *memSequences) GetByTrigger(ctx context.Context, trigger string) (*model.SequenceDefinition, error) {
	for _, d := range m.defs {
		if d.ID == trigger {
			return d, nil
		}
	}
	for _, d := range m.defs {
		if d.Trigger == trigger {
			return d, nil
		}
	}
	return nil, repo.ErrSequenceNotFound
}

type memContacts struct {
	mu       sync.Mutex
	contacts map[string]*model.Contact
	touched  map[string][]time.Time
}

func newMemContacts(contacts ...*model.Contact) *memContacts {
	m := &memContacts{
		contacts: make(map[string]*model.Contact),
		touched:  make(map[string][]time.Time),
	}
	for _, c := range contacts {
		m.contacts[c.ID] = c
	}
	return m
}

func (m *memContacts) Get(ctx context.Context, id string) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok {
		return nil, repo.ErrContactNotFound
	}
	return c, nil
}

func (m *memContacts) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.touched[id] = append(m.touched[id], at)
	return nil
}

type sentCall struct {
	phone string
	text  string
}

type mediaCall struct {
	phone     string
	mediaType model.MessageType
	url       string
}

// textTransport implements Transport only; media payloads degrade to text.
type textTransport struct {
	mu    sync.Mutex
	calls []sentCall

	failTexts map[string]error
}

func (t *textTransport) SendText(ctx context.Context, phone, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err, ok := t.failTexts[text]; ok {
		return "", err
	}
	t.calls = append(t.calls, sentCall{phone: phone, text: text})
	return "remote-1", nil
}

// mediaTransport additionally implements MediaTransport.
type mediaTransport struct {
	textTransport
	media []mediaCall
}

func (t *mediaTransport) SendMedia(ctx context.Context, phone string, mediaType model.MessageType, url string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.media = append(t.media, mediaCall{phone: phone, mediaType: mediaType, url: url})
	return "remote-media-1", nil
}

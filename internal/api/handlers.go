package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/expertec/vev-crm-sub000/internal/model"
	"github.com/expertec/vev-crm-sub000/internal/policy"
	"github.com/expertec/vev-crm-sub000/internal/repo"
	"github.com/expertec/vev-crm-sub000/internal/resolver"
	"github.com/expertec/vev-crm-sub000/internal/scheduler"
	"github.com/expertec/vev-crm-sub000/internal/service"
)

type Handler struct {
	sched    *scheduler.Scheduler
	enroller *service.Enroller
	resolver *resolver.Resolver
	policy   *policy.Suppression
	contacts repo.ContactRepository
	jobs     repo.JobRepository

	defaultTrigger string
	now            func() time.Time
}

func NewHandler(
	sched *scheduler.Scheduler,
	enroller *service.Enroller,
	res *resolver.Resolver,
	pol *policy.Suppression,
	contacts repo.ContactRepository,
	jobs repo.JobRepository,
	defaultTrigger string,
) *Handler {
	return &Handler{
		sched:          sched,
		enroller:       enroller,
		resolver:       res,
		policy:         pol,
		contacts:       contacts,
		jobs:           jobs,
		defaultTrigger: defaultTrigger,
		now:            time.Now,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) DispatcherStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) DispatcherStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) DispatcherStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

type inboundEvent struct {
	ContactID string `json:"contactId"`
	Text      string `json:"text"`
}

// InboundEvent runs the enrollment pipeline for one inbound message:
// resolve the trigger, consult the suppression policy, cancel companion
// sequences, and schedule the cohort.
func (h *Handler) InboundEvent(w http.ResponseWriter, r *http.Request) {
	var ev inboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if ev.ContactID == "" {
		http.Error(w, "contactId is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	contact, err := h.contacts.Get(ctx, ev.ContactID)
	if err != nil {
		if errors.Is(err, repo.ErrContactNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res, err := h.resolver.Resolve(ctx, ev.Text, h.defaultTrigger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A default resolution never re-triggers a funnel the contact is
	// already in; only an explicit hashtag match may do that.
	if !res.Strong() && contact.HasActiveSequences {
		writeJSON(w, http.StatusOK, map[string]any{
			"trigger":   res.Trigger,
			"source":    string(res.Source),
			"scheduled": 0,
			"skipped":   "already enrolled",
		})
		return
	}

	if h.policy.ShouldBlock(contact, res.Trigger) {
		writeJSON(w, http.StatusOK, map[string]any{
			"trigger":   res.Trigger,
			"source":    string(res.Source),
			"scheduled": 0,
			"skipped":   "suppressed",
		})
		return
	}

	if len(res.CancelTriggers) > 0 {
		if _, err := h.enroller.Cancel(ctx, contact.ID, res.CancelTriggers); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	scheduled, err := h.enroller.Enroll(ctx, contact.ID, res.Trigger, h.now().UTC())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trigger":   res.Trigger,
		"source":    string(res.Source),
		"scheduled": scheduled,
	})
}

type cancelRequest struct {
	Triggers []string `json:"triggers"`
}

// CancelContact deletes pending jobs for the contact: the listed triggers,
// or everything when the list is empty.
func (h *Handler) CancelContact(w http.ResponseWriter, r *http.Request) {
	contactID := r.PathValue("id")
	if contactID == "" {
		http.Error(w, "contact id is required", http.StatusBadRequest)
		return
	}

	var req cancelRequest
	if r.Body != nil {
		// An empty body means cancel everything.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var (
		deleted int64
		err     error
	)
	if len(req.Triggers) == 0 {
		deleted, err = h.enroller.CancelAll(r.Context(), contactID)
	} else {
		deleted, err = h.enroller.Cancel(r.Context(), contactID, req.Triggers)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// ListJobs is the audit view over a contact's jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	contactID := r.URL.Query().Get("contactId")
	if contactID == "" {
		http.Error(w, "contactId is required", http.StatusBadRequest)
		return
	}

	status := model.JobStatus(r.URL.Query().Get("status"))
	limit := parseInt(r.URL.Query().Get("limit"), 50)

	items, err := h.jobs.ListByContact(r.Context(), contactID, status, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
	"github.com/vadim/neo-planner/internal/domain/schedule/policy"
	"github.com/vadim/neo-planner/internal/httpx/response"
)

// SchedulePolicy defines the interface for scheduling operations
// Interface is defined by consumer (handler), not provider (policy)
type SchedulePolicy interface {
	SchedulePost(ctx context.Context, postID string, requestedAt *time.Time) (*entity.ScheduleAssignment, error)
	AutoSchedulePost(ctx context.Context, postID string) (*entity.ScheduleAssignment, error)
	UnschedulePost(ctx context.Context, postID string) error
	GetAssignment(ctx context.Context, postID string) (*entity.ScheduleAssignment, error)
	AutoScheduleProject(ctx context.Context, projectID string, limit int) (*policy.AutoScheduleResult, error)
	PublishNow(ctx context.Context, postID string) error
	FireDueAssignment(ctx context.Context, postID string) error
	GetStatistics(ctx context.Context, accountID string) (*entity.ScheduleStatistics, error)
}

// ScheduleHandler handles HTTP requests for post scheduling
type ScheduleHandler struct {
	policy SchedulePolicy
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(p SchedulePolicy) *ScheduleHandler {
	return &ScheduleHandler{policy: p}
}

// RegisterRoutes registers scheduling routes
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/posts/{postID}", func(r chi.Router) {
		r.Get("/schedule", h.Get())
		r.Post("/schedule", h.Schedule())
		r.Delete("/schedule", h.Unschedule())
		r.Post("/auto-schedule", h.AutoSchedule())
		r.Post("/publish", h.PublishNow())
		r.Post("/fire", h.Fire())
	})
	r.Post("/projects/{projectID}/auto-schedule", h.AutoScheduleProject())
	r.Get("/schedule/statistics", h.Statistics())
}

// ScheduleRequest represents the request body for scheduling a post.
// Without scheduled_at the next free preferred slot is allocated.
type ScheduleRequest struct {
	ScheduledAt *string `json:"scheduled_at,omitempty"` // RFC3339 format
}

// Schedule handles POST /posts/{postID}/schedule
func (h *ScheduleHandler) Schedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		var req ScheduleRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.BadRequest(w, "invalid JSON")
				return
			}
		}

		var requestedAt *time.Time
		if req.ScheduledAt != nil && *req.ScheduledAt != "" {
			t, err := time.Parse(time.RFC3339, *req.ScheduledAt)
			if err != nil {
				response.BadRequest(w, "invalid scheduled_at format, use RFC3339")
				return
			}
			requestedAt = &t
		}

		a, err := h.policy.SchedulePost(r.Context(), postID, requestedAt)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.Created(w, a)
	}
}

// AutoSchedule handles POST /posts/{postID}/auto-schedule
func (h *ScheduleHandler) AutoSchedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		a, err := h.policy.AutoSchedulePost(r.Context(), postID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.Created(w, a)
	}
}

// Get handles GET /posts/{postID}/schedule
func (h *ScheduleHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		a, err := h.policy.GetAssignment(r.Context(), postID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, a)
	}
}

// Unschedule handles DELETE /posts/{postID}/schedule
func (h *ScheduleHandler) Unschedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		if err := h.policy.UnschedulePost(r.Context(), postID); err != nil {
			handleDomainError(w, err)
			return
		}

		response.NoContent(w)
	}
}

// PublishNow handles POST /posts/{postID}/publish
func (h *ScheduleHandler) PublishNow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		if err := h.policy.PublishNow(r.Context(), postID); err != nil {
			handleDomainError(w, err)
			return
		}

		response.NoContent(w)
	}
}

// Fire handles POST /posts/{postID}/fire — the due-time callback for
// an external timer. Idempotent; firing a non-scheduled assignment is
// a no-op.
func (h *ScheduleHandler) Fire() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "postID")

		if err := h.policy.FireDueAssignment(r.Context(), postID); err != nil {
			handleDomainError(w, err)
			return
		}

		response.NoContent(w)
	}
}

// AutoScheduleProject handles POST /projects/{projectID}/auto-schedule
func (h *ScheduleHandler) AutoScheduleProject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := chi.URLParam(r, "projectID")

		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			li, err := strconv.Atoi(l)
			if err != nil || li < 1 {
				response.BadRequest(w, "invalid limit")
				return
			}
			limit = li
		}

		res, err := h.policy.AutoScheduleProject(r.Context(), projectID, limit)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, res)
	}
}

// Statistics handles GET /schedule/statistics
func (h *ScheduleHandler) Statistics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			response.BadRequest(w, "account_id is required")
			return
		}

		stats, err := h.policy.GetStatistics(r.Context(), accountID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, stats)
	}
}

// handleDomainError maps typed domain errors to HTTP responses. The
// host UI derives user guidance from the variant, never from message
// substrings.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrPostNotFound),
		errors.Is(err, entity.ErrSlotNotFound),
		errors.Is(err, entity.ErrNotScheduled):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrInvalidTime),
		errors.Is(err, entity.ErrInvalidSlot),
		errors.Is(err, entity.ErrEmptyPostID),
		errors.Is(err, entity.ErrEmptyAccountID):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrAlreadyScheduled),
		errors.Is(err, entity.ErrSlotOccupied),
		errors.Is(err, entity.ErrPublishInProgress),
		errors.Is(err, entity.ErrNoAvailableTimeslot):
		response.Conflict(w, err.Error())
	case errors.Is(err, entity.ErrPostNotApproved),
		errors.Is(err, entity.ErrNoSlotsConfigured),
		errors.Is(err, entity.ErrPlatformNotConnected):
		response.UnprocessableEntity(w, err.Error())
	case errors.Is(err, entity.ErrPublishFailed):
		response.BadGateway(w, err.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}

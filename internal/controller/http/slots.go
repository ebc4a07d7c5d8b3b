package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
	"github.com/vadim/neo-planner/internal/httpx/response"
)

// SlotPolicy defines the interface for slot preference operations
type SlotPolicy interface {
	ListSlots(ctx context.Context, accountID string) ([]entity.PreferredSlot, error)
	CreateSlot(ctx context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error)
	UpdateSlot(ctx context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error)
	DeleteSlot(ctx context.Context, id string) error
}

// SlotHandler handles HTTP requests for preferred-slot preferences
type SlotHandler struct {
	policy SlotPolicy
}

// NewSlotHandler creates a new slot handler
func NewSlotHandler(p SlotPolicy) *SlotHandler {
	return &SlotHandler{policy: p}
}

// RegisterRoutes registers slot preference routes
func (h *SlotHandler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts/{accountID}/slots", func(r chi.Router) {
		r.Get("/", h.List())
		r.Post("/", h.Create())
	})
	r.Put("/slots/{slotID}", h.Update())
	r.Delete("/slots/{slotID}", h.Delete())
}

// SlotRequest represents the request body for creating or updating a slot
type SlotRequest struct {
	Weekday int  `json:"weekday"` // 0 = Sunday
	Hour    int  `json:"hour"`
	Minute  int  `json:"minute"`
	Enabled bool `json:"enabled"`
}

// List handles GET /accounts/{accountID}/slots
func (h *SlotHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")

		slots, err := h.policy.ListSlots(r.Context(), accountID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, map[string]interface{}{"slots": slots})
	}
}

// Create handles POST /accounts/{accountID}/slots
func (h *SlotHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "accountID")

		var req SlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		slot, err := h.policy.CreateSlot(r.Context(), &entity.PreferredSlot{
			AccountID: accountID,
			Weekday:   time.Weekday(req.Weekday),
			Hour:      req.Hour,
			Minute:    req.Minute,
			Enabled:   req.Enabled,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.Created(w, slot)
	}
}

// Update handles PUT /slots/{slotID}
func (h *SlotHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID := chi.URLParam(r, "slotID")

		var req SlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid JSON")
			return
		}

		slot, err := h.policy.UpdateSlot(r.Context(), &entity.PreferredSlot{
			ID:      slotID,
			Weekday: time.Weekday(req.Weekday),
			Hour:    req.Hour,
			Minute:  req.Minute,
			Enabled: req.Enabled,
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		response.OK(w, slot)
	}
}

// Delete handles DELETE /slots/{slotID}
func (h *SlotHandler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID := chi.URLParam(r, "slotID")

		if err := h.policy.DeleteSlot(r.Context(), slotID); err != nil {
			handleDomainError(w, err)
			return
		}

		response.NoContent(w)
	}
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

type stubSlotPolicy struct {
	slots []entity.PreferredSlot
	slot  *entity.PreferredSlot
	err   error

	lastSlot *entity.PreferredSlot
	lastID   string
}

func (s *stubSlotPolicy) ListSlots(_ context.Context, _ string) ([]entity.PreferredSlot, error) {
	return s.slots, s.err
}

func (s *stubSlotPolicy) CreateSlot(_ context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error) {
	s.lastSlot = slot
	return s.slot, s.err
}

func (s *stubSlotPolicy) UpdateSlot(_ context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error) {
	s.lastSlot = slot
	return s.slot, s.err
}

func (s *stubSlotPolicy) DeleteSlot(_ context.Context, id string) error {
	s.lastID = id
	return s.err
}

func newSlotRouter(p SlotPolicy) *chi.Mux {
	r := chi.NewRouter()
	NewSlotHandler(p).RegisterRoutes(r)
	return r
}

func TestListSlots(t *testing.T) {
	stub := &stubSlotPolicy{slots: []entity.PreferredSlot{
		{ID: "slot-1", AccountID: "acc-1", Weekday: time.Monday, Hour: 9},
	}}
	r := newSlotRouter(stub)

	rec := doRequest(t, r, http.MethodGet, "/accounts/acc-1/slots/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Slots []entity.PreferredSlot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Slots, 1)
	assert.Equal(t, "slot-1", got.Slots[0].ID)
}

func TestCreateSlot(t *testing.T) {
	stub := &stubSlotPolicy{slot: &entity.PreferredSlot{ID: "slot-1"}}
	r := newSlotRouter(stub)

	rec := doRequest(t, r, http.MethodPost, "/accounts/acc-1/slots/",
		`{"weekday":1,"hour":9,"minute":30,"enabled":true}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, stub.lastSlot)
	assert.Equal(t, "acc-1", stub.lastSlot.AccountID)
	assert.Equal(t, time.Monday, stub.lastSlot.Weekday)
	assert.Equal(t, 9, stub.lastSlot.Hour)
	assert.Equal(t, 30, stub.lastSlot.Minute)
	assert.True(t, stub.lastSlot.Enabled)
}

func TestCreateSlot_InvalidDefinition(t *testing.T) {
	r := newSlotRouter(&stubSlotPolicy{err: entity.ErrInvalidSlot})

	rec := doRequest(t, r, http.MethodPost, "/accounts/acc-1/slots/",
		`{"weekday":9,"hour":25,"minute":0,"enabled":true}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSlot(t *testing.T) {
	stub := &stubSlotPolicy{slot: &entity.PreferredSlot{ID: "slot-1"}}
	r := newSlotRouter(stub)

	rec := doRequest(t, r, http.MethodPut, "/slots/slot-1",
		`{"weekday":5,"hour":17,"minute":30,"enabled":false}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.lastSlot)
	assert.Equal(t, "slot-1", stub.lastSlot.ID)
	assert.False(t, stub.lastSlot.Enabled)
}

func TestUpdateSlot_NotFound(t *testing.T) {
	r := newSlotRouter(&stubSlotPolicy{err: entity.ErrSlotNotFound})

	rec := doRequest(t, r, http.MethodPut, "/slots/missing",
		`{"weekday":1,"hour":9,"minute":0,"enabled":true}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSlot(t *testing.T) {
	stub := &stubSlotPolicy{}
	r := newSlotRouter(stub)

	rec := doRequest(t, r, http.MethodDelete, "/slots/slot-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "slot-1", stub.lastID)
}

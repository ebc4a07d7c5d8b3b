package entity

import (
	"fmt"
	"time"
)

// PreferredSlot is a recurring weekday+time pattern the user is willing
// to have posts published in. Slots are owned by the account and are
// read-only to the scheduling core.
type PreferredSlot struct {
	ID        string       `json:"id"`
	AccountID string       `json:"account_id"`
	Weekday   time.Weekday `json:"weekday"` // 0 = Sunday, per time.Weekday
	Hour      int          `json:"hour"`    // local time of day
	Minute    int          `json:"minute"`
	Enabled   bool         `json:"enabled"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate validates the slot shape
func (s *PreferredSlot) Validate() error {
	if s.AccountID == "" {
		return ErrEmptyAccountID
	}
	if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
		return ErrInvalidSlot
	}
	if s.Hour < 0 || s.Hour > 23 {
		return ErrInvalidSlot
	}
	if s.Minute < 0 || s.Minute > 59 {
		return ErrInvalidSlot
	}
	return nil
}

// TimeOfDay returns the slot time formatted as HH:MM
func (s *PreferredSlot) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

package entity

import (
	"time"
)

// AssignmentStatus represents the lifecycle state of a schedule assignment
type AssignmentStatus string

const (
	AssignmentStatusScheduled  AssignmentStatus = "scheduled"
	AssignmentStatusPublishing AssignmentStatus = "publishing"
	AssignmentStatusPublished  AssignmentStatus = "published"
	AssignmentStatusFailed     AssignmentStatus = "failed"
)

// ScheduleAssignment binds one post to one concrete future timestamp.
// At most one assignment exists per post; among active assignments of
// an account no two may share the same scheduled_at.
type ScheduleAssignment struct {
	ID             string           `json:"id"`
	PostID         string           `json:"post_id"`
	AccountID      string           `json:"account_id"`
	ScheduledAt    time.Time        `json:"scheduled_at"` // always UTC
	Status         AssignmentStatus `json:"status"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	AttemptedAt    *time.Time       `json:"attempted_at,omitempty"`
	PublishedAt    *time.Time       `json:"published_at,omitempty"`
	PlatformPostID string           `json:"platform_post_id,omitempty"` // ID from LinkedIn after publishing
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsActive returns true while the assignment occupies its timeslot
func (a *ScheduleAssignment) IsActive() bool {
	return a.Status == AssignmentStatusScheduled || a.Status == AssignmentStatusPublishing
}

// IsTerminal returns true once no further transitions are possible
func (a *ScheduleAssignment) IsTerminal() bool {
	return a.Status == AssignmentStatusPublished
}

// CanUnschedule returns true if the assignment may still be removed.
// Once publishing has begun the publish wins and removal is refused.
func (a *ScheduleAssignment) CanUnschedule() bool {
	return a.Status == AssignmentStatusScheduled
}

// CanRetry returns true if a failed attempt may be retried
func (a *ScheduleAssignment) CanRetry() bool {
	return a.Status == AssignmentStatusFailed
}

// Validate validates the assignment before persisting
func (a *ScheduleAssignment) Validate(now time.Time) error {
	if a.PostID == "" {
		return ErrEmptyPostID
	}
	if a.AccountID == "" {
		return ErrEmptyAccountID
	}
	if a.Status == AssignmentStatusScheduled && !a.ScheduledAt.After(now) {
		return ErrInvalidTime
	}
	return nil
}

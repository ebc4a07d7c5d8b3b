package dao

import (
	"context"
	"time"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// AssignmentRepository is the schedule ledger: one row per post, the
// source of truth for which timeslots are occupied.
type AssignmentRepository interface {
	// Create inserts a new assignment. A collision on the partial
	// unique index (account_id, scheduled_at) for active statuses
	// surfaces as entity.ErrSlotOccupied.
	Create(ctx context.Context, a *entity.ScheduleAssignment) error

	// GetByPostID retrieves the assignment for a post, nil when none
	GetByPostID(ctx context.Context, postID string) (*entity.ScheduleAssignment, error)

	// DeleteScheduled removes the assignment while it is still in
	// 'scheduled'. Returns false when no such row existed.
	DeleteScheduled(ctx context.Context, postID string) (bool, error)

	// DeleteFailed clears a failed assignment so the post can be
	// scheduled again. Returns false when no such row existed.
	DeleteFailed(ctx context.Context, postID string) (bool, error)

	// ActiveTimes lists scheduled_at of active assignments after the
	// given instant, for the allocator's occupied set
	ActiveTimes(ctx context.Context, accountID string, after time.Time) ([]time.Time, error)

	// Due retrieves assignments whose scheduled_at has arrived and
	// that are still in 'scheduled', earliest first
	Due(ctx context.Context, now time.Time) ([]entity.ScheduleAssignment, error)

	// MarkPublishing transitions to 'publishing' only when the current
	// status is one of `from`. Returns false when no row matched, which
	// makes due-fire idempotent under at-least-once delivery.
	MarkPublishing(ctx context.Context, postID string, from []entity.AssignmentStatus, attemptedAt time.Time) (bool, error)

	// SetPublished records a successful publish
	SetPublished(ctx context.Context, postID, platformPostID string, publishedAt time.Time) error

	// SetFailed records a failed publish attempt
	SetFailed(ctx context.Context, postID, errorMsg string) error

	// Statistics retrieves aggregated assignment counts for an account
	Statistics(ctx context.Context, accountID string) (*entity.ScheduleStatistics, error)
}

// SlotRepository is the slot preference store. Preferences are mutated
// by the host's settings surface and read by the allocator.
type SlotRepository interface {
	// ListEnabled retrieves the enabled slots for an account
	ListEnabled(ctx context.Context, accountID string) ([]entity.PreferredSlot, error)

	// List retrieves all slots for an account, enabled or not
	List(ctx context.Context, accountID string) ([]entity.PreferredSlot, error)

	// GetByID retrieves a slot by ID, nil when none
	GetByID(ctx context.Context, id string) (*entity.PreferredSlot, error)

	// Create inserts a new slot
	Create(ctx context.Context, s *entity.PreferredSlot) error

	// Update updates an existing slot
	Update(ctx context.Context, s *entity.PreferredSlot) error

	// Delete removes a slot
	Delete(ctx context.Context, id string) error
}

// PostRepository is the read view over the host's posts table
type PostRepository interface {
	// GetByID retrieves a post by ID, nil when none
	GetByID(ctx context.Context, id string) (*entity.Post, error)

	// ListEligible retrieves approved posts of a project without an
	// active assignment, oldest first, capped at limit (0 = all)
	ListEligible(ctx context.Context, projectID string, limit int) ([]entity.Post, error)

	// MarkPublished flips the post's moderation status to published
	MarkPublished(ctx context.Context, id string) error
}

// AccountRepository provides platform connection state and credentials
type AccountRepository interface {
	// IsConnected reports whether the account has a usable platform connection
	IsConnected(ctx context.Context, accountID string) (bool, error)

	// GetAccessToken retrieves the platform access token for an account
	GetAccessToken(ctx context.Context, accountID string) (string, error)

	// GetMemberURN retrieves the LinkedIn member URN for an account
	GetMemberURN(ctx context.Context, accountID string) (string, error)
}

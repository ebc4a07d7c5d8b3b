package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vadim/neo-planner/internal/domain/schedule/dao"
	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// Service handles ledger-level logic for schedule assignments. The
// policy layer composes these operations with allocation, locking and
// publishing.
type Service struct {
	assignments dao.AssignmentRepository
	slots       dao.SlotRepository
	posts       dao.PostRepository
}

// New creates a new schedule service
func New(assignments dao.AssignmentRepository, slots dao.SlotRepository, posts dao.PostRepository) *Service {
	return &Service{
		assignments: assignments,
		slots:       slots,
		posts:       posts,
	}
}

// GetPost retrieves a post, failing when it does not exist
func (s *Service) GetPost(ctx context.Context, postID string) (*entity.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, entity.ErrPostNotFound
	}
	return post, nil
}

// GetAssignment retrieves the assignment for a post, nil when none
func (s *Service) GetAssignment(ctx context.Context, postID string) (*entity.ScheduleAssignment, error) {
	return s.assignments.GetByPostID(ctx, postID)
}

// EligiblePosts retrieves approved, unassigned posts of a project,
// oldest first, capped at limit (0 = all)
func (s *Service) EligiblePosts(ctx context.Context, projectID string, limit int) ([]entity.Post, error) {
	return s.posts.ListEligible(ctx, projectID, limit)
}

// EnabledSlots retrieves the account's enabled preferred slots
func (s *Service) EnabledSlots(ctx context.Context, accountID string) ([]entity.PreferredSlot, error) {
	return s.slots.ListEnabled(ctx, accountID)
}

// OccupiedTimes lists scheduled_at of the account's active assignments
// after the given instant
func (s *Service) OccupiedTimes(ctx context.Context, accountID string, after time.Time) ([]time.Time, error) {
	return s.assignments.ActiveTimes(ctx, accountID, after)
}

// CreateAssignment writes a new scheduled assignment for a post.
// Preconditions on the post itself (approval, connection) are the
// policy's job; this enforces ledger invariants: one assignment per
// post, future timestamp, no double-booking.
func (s *Service) CreateAssignment(ctx context.Context, post *entity.Post, scheduledAt, now time.Time) (*entity.ScheduleAssignment, error) {
	existing, err := s.assignments.GetByPostID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch {
		case existing.Status == entity.AssignmentStatusPublishing:
			return nil, entity.ErrPublishInProgress
		case existing.IsActive() || existing.IsTerminal():
			return nil, entity.ErrAlreadyScheduled
		case existing.CanRetry():
			// A failed attempt does not occupy a slot; clear it so the
			// post can be scheduled again.
			if _, err := s.assignments.DeleteFailed(ctx, post.ID); err != nil {
				return nil, err
			}
		}
	}

	a := &entity.ScheduleAssignment{
		ID:          uuid.New().String(),
		PostID:      post.ID,
		AccountID:   post.AccountID,
		ScheduledAt: scheduledAt.UTC(),
		Status:      entity.AssignmentStatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := a.Validate(now); err != nil {
		return nil, err
	}

	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

// Unschedule removes a post's assignment while it is still scheduled.
// The post itself stays approved.
func (s *Service) Unschedule(ctx context.Context, postID string) (*entity.ScheduleAssignment, error) {
	a, err := s.assignments.GetByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if a == nil || !a.IsActive() {
		return nil, entity.ErrNotScheduled
	}
	if !a.CanUnschedule() {
		return nil, entity.ErrPublishInProgress
	}

	deleted, err := s.assignments.DeleteScheduled(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !deleted {
		// Lost the race against the due-fire: the publish wins.
		return nil, entity.ErrPublishInProgress
	}

	return a, nil
}

// BeginPublish transitions an assignment into publishing when its
// current status is one of `from`. Returns false when nothing matched,
// which keeps repeated due-fires idempotent.
func (s *Service) BeginPublish(ctx context.Context, postID string, from []entity.AssignmentStatus, now time.Time) (bool, error) {
	return s.assignments.MarkPublishing(ctx, postID, from, now)
}

// BeginImmediatePublish records an audit assignment for a publish-now
// of a post that had no standing assignment
func (s *Service) BeginImmediatePublish(ctx context.Context, post *entity.Post, now time.Time) (*entity.ScheduleAssignment, error) {
	a := &entity.ScheduleAssignment{
		ID:          uuid.New().String(),
		PostID:      post.ID,
		AccountID:   post.AccountID,
		ScheduledAt: now.UTC(),
		Status:      entity.AssignmentStatusPublishing,
		AttemptedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

// CompletePublish records a successful publish and flips the post's
// moderation status to published
func (s *Service) CompletePublish(ctx context.Context, postID, platformPostID string, now time.Time) error {
	if err := s.assignments.SetPublished(ctx, postID, platformPostID, now); err != nil {
		return err
	}
	return s.posts.MarkPublished(ctx, postID)
}

// FailPublish records a failed publish attempt. Failure is data: the
// assignment survives with the error message for later retry.
func (s *Service) FailPublish(ctx context.Context, postID, errorMsg string) error {
	return s.assignments.SetFailed(ctx, postID, errorMsg)
}

// DueAssignments retrieves assignments whose scheduled time has arrived
func (s *Service) DueAssignments(ctx context.Context, now time.Time) ([]entity.ScheduleAssignment, error) {
	return s.assignments.Due(ctx, now)
}

// GetStatistics retrieves assignment statistics for an account
func (s *Service) GetStatistics(ctx context.Context, accountID string) (*entity.ScheduleStatistics, error) {
	return s.assignments.Statistics(ctx, accountID)
}

// ListSlots retrieves all preferred slots for an account
func (s *Service) ListSlots(ctx context.Context, accountID string) ([]entity.PreferredSlot, error) {
	return s.slots.List(ctx, accountID)
}

// CreateSlot validates and inserts a new preferred slot
func (s *Service) CreateSlot(ctx context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error) {
	now := time.Now()
	slot.ID = uuid.New().String()
	slot.CreatedAt = now
	slot.UpdatedAt = now

	if err := slot.Validate(); err != nil {
		return nil, err
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}

	return slot, nil
}

// UpdateSlot validates and updates an existing preferred slot
func (s *Service) UpdateSlot(ctx context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error) {
	existing, err := s.slots.GetByID(ctx, slot.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, entity.ErrSlotNotFound
	}

	slot.AccountID = existing.AccountID
	if err := slot.Validate(); err != nil {
		return nil, err
	}

	if err := s.slots.Update(ctx, slot); err != nil {
		return nil, err
	}

	return slot, nil
}

// DeleteSlot removes a preferred slot
func (s *Service) DeleteSlot(ctx context.Context, id string) error {
	return s.slots.Delete(ctx, id)
}

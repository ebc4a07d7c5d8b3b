package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vadim/neo-planner/internal/domain/schedule/allocator"
	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
	"github.com/vadim/neo-planner/internal/domain/schedule/service"
	"github.com/vadim/neo-planner/internal/eventbus"
)

// PlatformPublisher defines the interface for publishing a post to the
// external platform. Defined here (consumer) not in the upstream
// package (provider).
type PlatformPublisher interface {
	Publish(ctx context.Context, in PublishInput) (*PublishOutput, error)
}

// PublishInput represents input for publishing
type PublishInput struct {
	AuthorURN   string
	AccessToken string
	Post        *entity.Post
}

// PublishOutput represents output from publishing
type PublishOutput struct {
	PlatformPostID string
}

// AccountProvider defines the interface for platform connection state
// and credentials
type AccountProvider interface {
	IsConnected(ctx context.Context, accountID string) (bool, error)
	GetAccessToken(ctx context.Context, accountID string) (string, error)
	GetMemberURN(ctx context.Context, accountID string) (string, error)
}

// Options configures scheduling behavior
type Options struct {
	LeadTime       time.Duration  // minimum gap between "now" and an allocated slot
	HorizonWeeks   int            // forward search bound for the allocator
	PublishTimeout time.Duration  // bound on one platform publish call
	Location       *time.Location // timezone the preferred slots are defined in
}

// Policy orchestrates scheduling use-cases: single-post scheduling,
// whole-project auto-scheduling, and the publish lifecycle.
type Policy struct {
	svc       *service.Service
	publisher PlatformPublisher
	accounts  AccountProvider
	bus       *eventbus.Bus
	locks     *accountLocks
	opts      Options

	now func() time.Time
}

// New creates a new scheduling policy
func New(svc *service.Service, publisher PlatformPublisher, accounts AccountProvider, bus *eventbus.Bus, opts Options) *Policy {
	if opts.HorizonWeeks <= 0 {
		opts.HorizonWeeks = allocator.DefaultHorizonWeeks
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Policy{
		svc:       svc,
		publisher: publisher,
		accounts:  accounts,
		bus:       bus,
		locks:     newAccountLocks(),
		opts:      opts,
		now:       time.Now,
	}
}

// SchedulePost binds a post to a timestamp. With requestedAt the user
// picked the time (no auto-shifting on collision); without it the next
// free preferred slot is allocated.
func (p *Policy) SchedulePost(ctx context.Context, postID string, requestedAt *time.Time) (*entity.ScheduleAssignment, error) {
	post, err := p.approvedPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := p.requireConnected(ctx, post.AccountID); err != nil {
		return nil, err
	}

	unlock := p.locks.acquire(post.AccountID)
	defer unlock()

	now := p.now()

	var a *entity.ScheduleAssignment
	if requestedAt != nil {
		at := requestedAt.UTC()
		if !at.After(now) {
			return nil, entity.ErrInvalidTime
		}

		occupied, err := p.occupiedSet(ctx, post.AccountID, now)
		if err != nil {
			return nil, err
		}
		if occupied.Has(at) {
			return nil, entity.ErrSlotOccupied
		}

		a, err = p.svc.CreateAssignment(ctx, post, at, now)
		if err != nil {
			return nil, err
		}
	} else {
		a, err = p.allocate(ctx, post, nil, now)
		if err != nil {
			return nil, err
		}
	}

	p.emit(eventbus.TypeScheduled, a, "")
	return a, nil
}

// AutoSchedulePost schedules a post into the next free preferred slot
func (p *Policy) AutoSchedulePost(ctx context.Context, postID string) (*entity.ScheduleAssignment, error) {
	return p.SchedulePost(ctx, postID, nil)
}

// UnschedulePost removes a post's assignment while it is still
// scheduled. Once publishing has begun the operation is refused.
func (p *Policy) UnschedulePost(ctx context.Context, postID string) error {
	a, err := p.svc.GetAssignment(ctx, postID)
	if err != nil {
		return err
	}
	if a == nil {
		return entity.ErrNotScheduled
	}

	unlock := p.locks.acquire(a.AccountID)
	defer unlock()

	removed, err := p.svc.Unschedule(ctx, postID)
	if err != nil {
		return err
	}

	p.emit(eventbus.TypeUnscheduled, removed, "")
	return nil
}

// GetAssignment retrieves a post's assignment in any status
func (p *Policy) GetAssignment(ctx context.Context, postID string) (*entity.ScheduleAssignment, error) {
	a, err := p.svc.GetAssignment(ctx, postID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, entity.ErrNotScheduled
	}
	return a, nil
}

// AutoScheduleResult summarizes a bulk auto-scheduling run
type AutoScheduleResult struct {
	ScheduledCount int `json:"scheduled_count"`
	Requested      int `json:"requested"`
}

// AutoScheduleProject walks the project's eligible posts oldest first
// and allocates a slot for each, up to limit (0 = all eligible).
// Partial success is acceptable: when slot capacity or configuration
// runs out mid-batch the walk stops and the counts report how far it
// got. Posts that turned ineligible underway are skipped silently.
func (p *Policy) AutoScheduleProject(ctx context.Context, projectID string, limit int) (*AutoScheduleResult, error) {
	posts, err := p.svc.EligiblePosts(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}

	res := &AutoScheduleResult{Requested: len(posts)}
	if len(posts) == 0 {
		return res, nil
	}

	accountID := posts[0].AccountID
	if err := p.requireConnected(ctx, accountID); err != nil {
		return nil, err
	}

	unlock := p.locks.acquire(accountID)
	defer unlock()

	now := p.now()
	occupied, err := p.occupiedSet(ctx, accountID, now)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		a, err := p.allocate(ctx, &posts[i], occupied, now)
		if errors.Is(err, entity.ErrNoSlotsConfigured) || errors.Is(err, entity.ErrNoAvailableTimeslot) {
			break
		}
		if err != nil {
			// The post lost its eligibility between the listing and the
			// write; not a batch failure.
			continue
		}

		res.ScheduledCount++
		p.emit(eventbus.TypeScheduled, a, "")
	}

	return res, nil
}

// PublishNow publishes a post immediately, bypassing the timer. An
// existing assignment transitions in place; without one an audit
// record is written first.
func (p *Policy) PublishNow(ctx context.Context, postID string) error {
	post, err := p.approvedPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := p.requireConnected(ctx, post.AccountID); err != nil {
		return err
	}

	now := p.now()
	a, err := p.svc.GetAssignment(ctx, postID)
	if err != nil {
		return err
	}

	if a != nil {
		if a.Status == entity.AssignmentStatusPublishing {
			return entity.ErrPublishInProgress
		}
		ok, err := p.svc.BeginPublish(ctx, postID,
			[]entity.AssignmentStatus{entity.AssignmentStatusScheduled, entity.AssignmentStatusFailed}, now)
		if err != nil {
			return err
		}
		if !ok {
			return entity.ErrPublishInProgress
		}
	} else {
		a, err = p.svc.BeginImmediatePublish(ctx, post, now)
		if err != nil {
			return err
		}
	}

	p.emitStatus(eventbus.TypePublishing, post, a.ScheduledAt, entity.AssignmentStatusPublishing, "")
	return p.executePublish(ctx, post, a.ScheduledAt)
}

// FireDueAssignment is the entry point the external timer calls at or
// after scheduledAt. It is idempotent: firing an assignment that is not
// in 'scheduled' is a no-op.
func (p *Policy) FireDueAssignment(ctx context.Context, postID string) error {
	now := p.now()
	ok, err := p.svc.BeginPublish(ctx, postID,
		[]entity.AssignmentStatus{entity.AssignmentStatusScheduled}, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	post, err := p.svc.GetPost(ctx, postID)
	if err != nil {
		if ferr := p.svc.FailPublish(ctx, postID, err.Error()); ferr != nil {
			return ferr
		}
		return err
	}

	a, err := p.svc.GetAssignment(ctx, postID)
	if err != nil {
		return err
	}

	p.emitStatus(eventbus.TypePublishing, post, a.ScheduledAt, entity.AssignmentStatusPublishing, "")

	// A publish failure is recorded on the assignment, not raised: the
	// timer contract is at-least-once and retries go through PublishNow.
	if err := p.executePublish(ctx, post, a.ScheduledAt); err != nil && !errors.Is(err, entity.ErrPublishFailed) {
		return err
	}
	return nil
}

// ProcessDueAssignments fires every due assignment once. Called
// periodically by the interval scheduler.
func (p *Policy) ProcessDueAssignments(ctx context.Context) error {
	due, err := p.svc.DueAssignments(ctx, p.now())
	if err != nil {
		return err
	}

	for _, a := range due {
		// Failures are recorded per assignment; keep draining the batch.
		_ = p.FireDueAssignment(ctx, a.PostID)
	}

	return nil
}

// GetStatistics retrieves assignment statistics for an account
func (p *Policy) GetStatistics(ctx context.Context, accountID string) (*entity.ScheduleStatistics, error) {
	return p.svc.GetStatistics(ctx, accountID)
}

// ListSlots retrieves all preferred slots for an account
func (p *Policy) ListSlots(ctx context.Context, accountID string) ([]entity.PreferredSlot, error) {
	return p.svc.ListSlots(ctx, accountID)
}

// CreateSlot inserts a new preferred slot
func (p *Policy) CreateSlot(ctx context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error) {
	return p.svc.CreateSlot(ctx, slot)
}

// UpdateSlot updates an existing preferred slot
func (p *Policy) UpdateSlot(ctx context.Context, slot *entity.PreferredSlot) (*entity.PreferredSlot, error) {
	return p.svc.UpdateSlot(ctx, slot)
}

// DeleteSlot removes a preferred slot
func (p *Policy) DeleteSlot(ctx context.Context, id string) error {
	return p.svc.DeleteSlot(ctx, id)
}

// allocate picks the next free slot and writes the assignment. When
// the caller owns a batch it passes the occupied set so each write is
// visible to the next allocation; otherwise the set is read fresh.
func (p *Policy) allocate(ctx context.Context, post *entity.Post, occupied allocator.Occupied, now time.Time) (*entity.ScheduleAssignment, error) {
	slots, err := p.svc.EnabledSlots(ctx, post.AccountID)
	if err != nil {
		return nil, err
	}

	if occupied == nil {
		occupied, err = p.occupiedSet(ctx, post.AccountID, now)
		if err != nil {
			return nil, err
		}
	}

	floor := now.Add(p.opts.LeadTime)
	at, err := allocator.NextFreeWithin(slots, occupied, floor, p.opts.Location, p.opts.HorizonWeeks)
	if err != nil {
		return nil, err
	}

	a, err := p.svc.CreateAssignment(ctx, post, at, now)
	if err != nil {
		return nil, err
	}

	occupied.Add(at)
	return a, nil
}

// executePublish runs the platform call with a bounded timeout and
// records the terminal transition. It must be called without the
// account lock held.
func (p *Policy) executePublish(ctx context.Context, post *entity.Post, scheduledAt time.Time) error {
	out, err := p.publishToPlatform(ctx, post)
	if err != nil {
		if ferr := p.svc.FailPublish(ctx, post.ID, err.Error()); ferr != nil {
			return ferr
		}
		p.emitStatus(eventbus.TypeFailed, post, scheduledAt, entity.AssignmentStatusFailed, err.Error())
		return fmt.Errorf("%w: %v", entity.ErrPublishFailed, err)
	}

	if err := p.svc.CompletePublish(ctx, post.ID, out.PlatformPostID, p.now()); err != nil {
		return err
	}

	p.emitStatus(eventbus.TypePublished, post, scheduledAt, entity.AssignmentStatusPublished, "")
	return nil
}

func (p *Policy) publishToPlatform(ctx context.Context, post *entity.Post) (*PublishOutput, error) {
	token, err := p.accounts.GetAccessToken(ctx, post.AccountID)
	if err != nil {
		return nil, err
	}
	urn, err := p.accounts.GetMemberURN(ctx, post.AccountID)
	if err != nil {
		return nil, err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()

	return p.publisher.Publish(pubCtx, PublishInput{
		AuthorURN:   urn,
		AccessToken: token,
		Post:        post,
	})
}

func (p *Policy) approvedPost(ctx context.Context, postID string) (*entity.Post, error) {
	post, err := p.svc.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsApproved() {
		return nil, entity.ErrPostNotApproved
	}
	return post, nil
}

func (p *Policy) requireConnected(ctx context.Context, accountID string) error {
	connected, err := p.accounts.IsConnected(ctx, accountID)
	if err != nil {
		return err
	}
	if !connected {
		return entity.ErrPlatformNotConnected
	}
	return nil
}

func (p *Policy) occupiedSet(ctx context.Context, accountID string, now time.Time) (allocator.Occupied, error) {
	times, err := p.svc.OccupiedTimes(ctx, accountID, now)
	if err != nil {
		return nil, err
	}
	return allocator.NewOccupied(times), nil
}

func (p *Policy) emit(typ string, a *entity.ScheduleAssignment, errMsg string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{
		Type:        typ,
		PostID:      a.PostID,
		AccountID:   a.AccountID,
		Status:      string(a.Status),
		ScheduledAt: a.ScheduledAt,
		Error:       errMsg,
	})
}

func (p *Policy) emitStatus(typ string, post *entity.Post, scheduledAt time.Time, status entity.AssignmentStatus, errMsg string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{
		Type:        typ,
		PostID:      post.ID,
		AccountID:   post.AccountID,
		Status:      string(status),
		ScheduledAt: scheduledAt,
		Error:       errMsg,
	})
}

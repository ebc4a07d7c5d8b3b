package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
	"github.com/vadim/neo-planner/internal/domain/schedule/service"
)

// ---- in-memory repositories ----

type memAssignments struct {
	mu   sync.Mutex
	rows map[string]*entity.ScheduleAssignment // by post ID
}

func newMemAssignments() *memAssignments {
	return &memAssignments{rows: make(map[string]*entity.ScheduleAssignment)}
}

func (m *memAssignments) Create(_ context.Context, a *entity.ScheduleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.AccountID == a.AccountID && r.IsActive() && r.ScheduledAt.Equal(a.ScheduledAt) {
			return entity.ErrSlotOccupied
		}
	}
	cp := *a
	m.rows[a.PostID] = &cp
	return nil
}

func (m *memAssignments) GetByPostID(_ context.Context, postID string) (*entity.ScheduleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[postID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memAssignments) DeleteScheduled(_ context.Context, postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[postID]
	if !ok || r.Status != entity.AssignmentStatusScheduled {
		return false, nil
	}
	delete(m.rows, postID)
	return true, nil
}

func (m *memAssignments) DeleteFailed(_ context.Context, postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[postID]
	if !ok || r.Status != entity.AssignmentStatusFailed {
		return false, nil
	}
	delete(m.rows, postID)
	return true, nil
}

func (m *memAssignments) ActiveTimes(_ context.Context, accountID string, after time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, r := range m.rows {
		if r.AccountID == accountID && r.IsActive() && r.ScheduledAt.After(after) {
			out = append(out, r.ScheduledAt)
		}
	}
	return out, nil
}

func (m *memAssignments) Due(_ context.Context, now time.Time) ([]entity.ScheduleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.ScheduleAssignment
	for _, r := range m.rows {
		if r.Status == entity.AssignmentStatusScheduled && !r.ScheduledAt.After(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memAssignments) MarkPublishing(_ context.Context, postID string, from []entity.AssignmentStatus, attemptedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[postID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if r.Status == f {
			r.Status = entity.AssignmentStatusPublishing
			at := attemptedAt
			r.AttemptedAt = &at
			r.UpdatedAt = attemptedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *memAssignments) SetPublished(_ context.Context, postID, platformPostID string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[postID]
	if !ok || r.Status != entity.AssignmentStatusPublishing {
		return nil
	}
	r.Status = entity.AssignmentStatusPublished
	r.PlatformPostID = platformPostID
	at := publishedAt
	r.PublishedAt = &at
	return nil
}

func (m *memAssignments) SetFailed(_ context.Context, postID, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[postID]
	if !ok || r.Status != entity.AssignmentStatusPublishing {
		return nil
	}
	r.Status = entity.AssignmentStatusFailed
	r.ErrorMessage = errorMsg
	return nil
}

func (m *memAssignments) Statistics(_ context.Context, accountID string) (*entity.ScheduleStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &entity.ScheduleStatistics{AccountID: accountID}
	for _, r := range m.rows {
		if r.AccountID != accountID {
			continue
		}
		switch r.Status {
		case entity.AssignmentStatusScheduled:
			stats.Scheduled++
		case entity.AssignmentStatusPublishing:
			stats.Publishing++
		case entity.AssignmentStatusPublished:
			stats.Published++
		case entity.AssignmentStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type memSlots struct {
	rows []entity.PreferredSlot
}

func (m *memSlots) ListEnabled(_ context.Context, accountID string) ([]entity.PreferredSlot, error) {
	var out []entity.PreferredSlot
	for _, s := range m.rows {
		if s.AccountID == accountID && s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSlots) List(_ context.Context, accountID string) ([]entity.PreferredSlot, error) {
	var out []entity.PreferredSlot
	for _, s := range m.rows {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSlots) GetByID(_ context.Context, id string) (*entity.PreferredSlot, error) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			cp := m.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memSlots) Create(_ context.Context, s *entity.PreferredSlot) error {
	m.rows = append(m.rows, *s)
	return nil
}

func (m *memSlots) Update(_ context.Context, s *entity.PreferredSlot) error {
	for i := range m.rows {
		if m.rows[i].ID == s.ID {
			m.rows[i] = *s
		}
	}
	return nil
}

func (m *memSlots) Delete(_ context.Context, id string) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

type memPosts struct {
	rows        []entity.Post
	assignments *memAssignments
}

func (m *memPosts) GetByID(_ context.Context, id string) (*entity.Post, error) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			cp := m.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memPosts) ListEligible(ctx context.Context, projectID string, limit int) ([]entity.Post, error) {
	var out []entity.Post
	for _, p := range m.rows {
		if p.ProjectID != projectID || !p.IsApproved() {
			continue
		}
		a, _ := m.assignments.GetByPostID(ctx, p.ID)
		if a != nil && a.IsActive() {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memPosts) MarkPublished(_ context.Context, id string) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Status = entity.ModerationStatusPublished
		}
	}
	return nil
}

type fakeAccounts struct {
	connected map[string]bool
}

func (f *fakeAccounts) IsConnected(_ context.Context, accountID string) (bool, error) {
	return f.connected[accountID], nil
}

func (f *fakeAccounts) GetAccessToken(_ context.Context, accountID string) (string, error) {
	return "token-" + accountID, nil
}

func (f *fakeAccounts) GetMemberURN(_ context.Context, accountID string) (string, error) {
	return "urn:li:person:" + accountID, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, in PublishInput) (*PublishOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &PublishOutput{PlatformPostID: "urn:li:share:" + in.Post.ID}, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---- fixture ----

type fixture struct {
	policy      *Policy
	assignments *memAssignments
	slots       *memSlots
	posts       *memPosts
	accounts    *fakeAccounts
	publisher   *fakePublisher
}

// mondayMorning is a Monday 08:00 UTC, one hour before the fixture's
// default Monday 09:00 slot
var mondayMorning = time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	assignments := newMemAssignments()
	slots := &memSlots{}
	posts := &memPosts{assignments: assignments}
	accounts := &fakeAccounts{connected: map[string]bool{"acc-1": true}}
	publisher := &fakePublisher{}

	svc := service.New(assignments, slots, posts)
	p := New(svc, publisher, accounts, nil, opts)
	p.now = func() time.Time { return mondayMorning }

	return &fixture{
		policy:      p,
		assignments: assignments,
		slots:       slots,
		posts:       posts,
		accounts:    accounts,
		publisher:   publisher,
	}
}

func (f *fixture) addPost(id string, status entity.ModerationStatus) {
	f.posts.rows = append(f.posts.rows, entity.Post{
		ID:        id,
		ProjectID: "proj-1",
		AccountID: "acc-1",
		Content:   "content of " + id,
		Status:    status,
	})
}

func (f *fixture) addSlot(wd time.Weekday, hour, minute int) {
	f.slots.rows = append(f.slots.rows, entity.PreferredSlot{
		ID:        "slot-" + wd.String(),
		AccountID: "acc-1",
		Weekday:   wd,
		Hour:      hour,
		Minute:    minute,
		Enabled:   true,
	})
}

// ---- scheduling ----

func TestSchedulePost_AutoAllocatesNextFreeSlot(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()

	a1, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), a1.ScheduledAt, "one hour ahead still counts as this Monday")
	assert.Equal(t, entity.AssignmentStatusScheduled, a1.Status)

	a2, err := f.policy.AutoSchedulePost(ctx, "post-2")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), a2.ScheduledAt, "second post falls over to next Monday")
}

func TestSchedulePost_NoSlotsConfigured(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)

	_, err := f.policy.AutoSchedulePost(context.Background(), "post-1")
	assert.ErrorIs(t, err, entity.ErrNoSlotsConfigured)
}

func TestSchedulePost_PendingPostRejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusPending)
	f.addSlot(time.Monday, 9, 0)

	_, err := f.policy.AutoSchedulePost(context.Background(), "post-1")
	assert.ErrorIs(t, err, entity.ErrPostNotApproved)

	a, err := f.assignments.GetByPostID(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Nil(t, a, "rejected scheduling must leave no assignment behind")
}

func TestSchedulePost_PostNotFound(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.policy.AutoSchedulePost(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrPostNotFound)
}

func TestSchedulePost_PlatformNotConnected(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.accounts.connected["acc-1"] = false

	_, err := f.policy.AutoSchedulePost(context.Background(), "post-1")
	assert.ErrorIs(t, err, entity.ErrPlatformNotConnected)
}

func TestSchedulePost_AlreadyScheduled(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	_, err = f.policy.AutoSchedulePost(ctx, "post-1")
	assert.ErrorIs(t, err, entity.ErrAlreadyScheduled)
}

func TestSchedulePost_ManualTimeMustBeFuture(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)

	past := mondayMorning.Add(-time.Hour)
	_, err := f.policy.SchedulePost(context.Background(), "post-1", &past)
	assert.ErrorIs(t, err, entity.ErrInvalidTime)

	exact := mondayMorning
	_, err = f.policy.SchedulePost(context.Background(), "post-1", &exact)
	assert.ErrorIs(t, err, entity.ErrInvalidTime, "now itself is not in the future")
}

func TestSchedulePost_ManualCollisionNotShifted(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)

	ctx := context.Background()
	at := mondayMorning.Add(2 * time.Hour)

	_, err := f.policy.SchedulePost(ctx, "post-1", &at)
	require.NoError(t, err)

	// The user picked this exact time; no silent shifting
	_, err = f.policy.SchedulePost(ctx, "post-2", &at)
	assert.ErrorIs(t, err, entity.ErrSlotOccupied)

	a, err := f.assignments.GetByPostID(ctx, "post-2")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestSchedulePost_ManualTimeNeedsNoSlots(t *testing.T) {
	// Explicit timestamps are independent of the preferred slot config
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)

	at := mondayMorning.Add(30 * time.Minute)
	a, err := f.policy.SchedulePost(context.Background(), "post-1", &at)
	require.NoError(t, err)
	assert.Equal(t, at.UTC(), a.ScheduledAt)
}

func TestSchedulePost_LeadTimeSkipsNearSlot(t *testing.T) {
	f := newFixture(t, Options{LeadTime: 2 * time.Hour})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	a, err := f.policy.AutoSchedulePost(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), a.ScheduledAt, "this Monday is inside the lead window")
}

// ---- unscheduling ----

func TestUnschedulePost_FreesTheSlot(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	a1, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	require.NoError(t, f.policy.UnschedulePost(ctx, "post-1"))

	_, err = f.policy.GetAssignment(ctx, "post-1")
	assert.ErrorIs(t, err, entity.ErrNotScheduled)

	// The freed timeslot is immediately available again
	a2, err := f.policy.AutoSchedulePost(ctx, "post-2")
	require.NoError(t, err)
	assert.Equal(t, a1.ScheduledAt, a2.ScheduledAt)
}

func TestUnschedulePost_NotScheduled(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)

	err := f.policy.UnschedulePost(context.Background(), "post-1")
	assert.ErrorIs(t, err, entity.ErrNotScheduled)
}

func TestUnschedulePost_PublishingRefused(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	ok, err := f.assignments.MarkPublishing(ctx, "post-1",
		[]entity.AssignmentStatus{entity.AssignmentStatusScheduled}, mondayMorning)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.policy.UnschedulePost(ctx, "post-1")
	assert.ErrorIs(t, err, entity.ErrPublishInProgress)

	a, err := f.assignments.GetByPostID(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, a, "the in-flight assignment must survive")
	assert.Equal(t, entity.AssignmentStatusPublishing, a.Status)
}

// ---- bulk auto-scheduling ----

func TestAutoScheduleProject_FillsSlotsOldestFirst(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addPost("post-3", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.addSlot(time.Wednesday, 12, 0)

	res, err := f.policy.AutoScheduleProject(context.Background(), "proj-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 3, res.ScheduledCount)

	ctx := context.Background()
	a1, _ := f.assignments.GetByPostID(ctx, "post-1")
	a2, _ := f.assignments.GetByPostID(ctx, "post-2")
	a3, _ := f.assignments.GetByPostID(ctx, "post-3")
	require.NotNil(t, a1)
	require.NotNil(t, a2)
	require.NotNil(t, a3)

	assert.Equal(t, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), a1.ScheduledAt)
	assert.Equal(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC), a2.ScheduledAt)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), a3.ScheduledAt)
}

func TestAutoScheduleProject_PartialOnCapacity(t *testing.T) {
	// Two free slots inside the horizon, three posts requested: the
	// batch stops at capacity and reports how far it got
	f := newFixture(t, Options{HorizonWeeks: 2})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addPost("post-3", entity.ModerationStatusApproved)
	f.addPost("post-4", entity.ModerationStatusApproved)
	f.addPost("post-5", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	res, err := f.policy.AutoScheduleProject(context.Background(), "proj-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.ScheduledCount)

	ctx := context.Background()
	a3, _ := f.assignments.GetByPostID(ctx, "post-3")
	assert.Nil(t, a3, "post beyond capacity stays unscheduled")
}

func TestAutoScheduleProject_NoEligiblePosts(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusPending)
	f.addSlot(time.Monday, 9, 0)

	res, err := f.policy.AutoScheduleProject(context.Background(), "proj-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Requested)
	assert.Equal(t, 0, res.ScheduledCount)
}

func TestAutoScheduleProject_SkipsAlreadyScheduled(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	res, err := f.policy.AutoScheduleProject(ctx, "proj-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Requested, "scheduled post is no longer eligible")
	assert.Equal(t, 1, res.ScheduledCount)
}

// ---- publish lifecycle ----

func TestFireDueAssignment_Publishes(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	// Advance the clock past the scheduled time
	f.policy.now = func() time.Time { return mondayMorning.Add(2 * time.Hour) }

	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"))

	a, err := f.assignments.GetByPostID(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, entity.AssignmentStatusPublished, a.Status)
	assert.Equal(t, "urn:li:share:post-1", a.PlatformPostID)
	require.NotNil(t, a.PublishedAt)

	post, err := f.posts.GetByID(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ModerationStatusPublished, post.Status)
}

func TestFireDueAssignment_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	f.policy.now = func() time.Time { return mondayMorning.Add(2 * time.Hour) }

	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"))
	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"))

	assert.Equal(t, 1, f.publisher.callCount(), "a second fire must not publish again")
}

func TestFireDueAssignment_NoAssignmentIsNoop(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)

	require.NoError(t, f.policy.FireDueAssignment(context.Background(), "post-1"))
	assert.Equal(t, 0, f.publisher.callCount())
}

func TestFireDueAssignment_FailureIsRecordedNotRaised(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.publisher.err = errors.New("upstream returned 500")

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	f.policy.now = func() time.Time { return mondayMorning.Add(2 * time.Hour) }

	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"), "the timer contract records failure instead of raising it")

	a, err := f.assignments.GetByPostID(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, entity.AssignmentStatusFailed, a.Status)
	assert.Equal(t, "upstream returned 500", a.ErrorMessage)

	post, err := f.posts.GetByID(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ModerationStatusApproved, post.Status, "the post itself stays approved")
}

func TestFailedAssignmentDoesNotBlockRescheduling(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.publisher.err = errors.New("upstream returned 500")

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	f.policy.now = func() time.Time { return mondayMorning.Add(2 * time.Hour) }
	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"))

	// The failed row is replaced by a fresh scheduled one
	a, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)
	assert.Equal(t, entity.AssignmentStatusScheduled, a.Status)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), a.ScheduledAt)
}

func TestPublishNow_RetriesFailedAssignment(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.publisher.err = errors.New("upstream returned 500")

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	f.policy.now = func() time.Time { return mondayMorning.Add(2 * time.Hour) }
	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"))

	f.publisher.err = nil
	require.NoError(t, f.policy.PublishNow(ctx, "post-1"))

	a, err := f.assignments.GetByPostID(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, entity.AssignmentStatusPublished, a.Status)
}

func TestPublishNow_FailureSurfacesTypedError(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.publisher.err = errors.New("upstream returned 500")

	err := f.policy.PublishNow(context.Background(), "post-1")
	assert.ErrorIs(t, err, entity.ErrPublishFailed)

	a, gerr := f.assignments.GetByPostID(context.Background(), "post-1")
	require.NoError(t, gerr)
	require.NotNil(t, a)
	assert.Equal(t, entity.AssignmentStatusFailed, a.Status)
}

func TestPublishNow_WithoutAssignmentWritesAuditRow(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)

	ctx := context.Background()
	require.NoError(t, f.policy.PublishNow(ctx, "post-1"))

	a, err := f.assignments.GetByPostID(ctx, "post-1")
	require.NoError(t, err)
	require.NotNil(t, a, "publish-now of an unscheduled post leaves an audit record")
	assert.Equal(t, entity.AssignmentStatusPublished, a.Status)
	assert.Equal(t, mondayMorning, a.ScheduledAt)
}

func TestPublishNow_PublishingRefused(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)

	ok, err := f.assignments.MarkPublishing(ctx, "post-1",
		[]entity.AssignmentStatus{entity.AssignmentStatusScheduled}, mondayMorning)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.policy.PublishNow(ctx, "post-1")
	assert.ErrorIs(t, err, entity.ErrPublishInProgress)
	assert.Equal(t, 0, f.publisher.callCount())
}

func TestPublishNow_PendingPostRejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusPending)

	err := f.policy.PublishNow(context.Background(), "post-1")
	assert.ErrorIs(t, err, entity.ErrPostNotApproved)
}

func TestProcessDueAssignments_DrainsBatch(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.addSlot(time.Monday, 10, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)
	_, err = f.policy.AutoSchedulePost(ctx, "post-2")
	require.NoError(t, err)

	// Both assignments are due now
	f.policy.now = func() time.Time { return mondayMorning.Add(3 * time.Hour) }

	require.NoError(t, f.policy.ProcessDueAssignments(ctx))

	for _, id := range []string{"post-1", "post-2"} {
		a, err := f.assignments.GetByPostID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, entity.AssignmentStatusPublished, a.Status, "post %s", id)
	}
	assert.Equal(t, 2, f.publisher.callCount())
}

// ---- statistics ----

func TestGetStatistics(t *testing.T) {
	f := newFixture(t, Options{})
	f.addPost("post-1", entity.ModerationStatusApproved)
	f.addPost("post-2", entity.ModerationStatusApproved)
	f.addSlot(time.Monday, 9, 0)
	f.addSlot(time.Tuesday, 9, 0)

	ctx := context.Background()
	_, err := f.policy.AutoSchedulePost(ctx, "post-1")
	require.NoError(t, err)
	_, err = f.policy.AutoSchedulePost(ctx, "post-2")
	require.NoError(t, err)

	f.policy.now = func() time.Time { return mondayMorning.Add(2 * time.Hour) }
	require.NoError(t, f.policy.FireDueAssignment(ctx, "post-1"))

	stats, err := f.policy.GetStatistics(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Scheduled)
	assert.Equal(t, int64(1), stats.Published)
}

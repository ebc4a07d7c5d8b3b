package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// AssignmentPostgres implements AssignmentRepository for PostgreSQL.
//
// Table schedule_assignments carries a partial unique index
//
//	CREATE UNIQUE INDEX ON schedule_assignments (account_id, scheduled_at)
//	WHERE status IN ('scheduled', 'publishing');
//
// which closes the check-then-act window if the per-account lock is
// ever bypassed.
type AssignmentPostgres struct {
	pool *pgxpool.Pool
}

// NewAssignmentPostgres creates a new PostgreSQL assignment repository
func NewAssignmentPostgres(pool *pgxpool.Pool) *AssignmentPostgres {
	return &AssignmentPostgres{pool: pool}
}

const assignmentColumns = `id, post_id, account_id, scheduled_at, status,
       error_message, attempted_at, published_at, platform_post_id, created_at, updated_at`

// Create inserts a new assignment
func (r *AssignmentPostgres) Create(ctx context.Context, a *entity.ScheduleAssignment) error {
	query := `
		INSERT INTO schedule_assignments (id, post_id, account_id, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.PostID,
		a.AccountID,
		a.ScheduledAt,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return entity.ErrSlotOccupied
	}
	if err != nil {
		return fmt.Errorf("inserting assignment: %w", err)
	}

	return nil
}

// GetByPostID retrieves the assignment for a post
func (r *AssignmentPostgres) GetByPostID(ctx context.Context, postID string) (*entity.ScheduleAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM schedule_assignments WHERE post_id = $1`

	a, err := scanAssignment(r.pool.QueryRow(ctx, query, postID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning assignment: %w", err)
	}

	return a, nil
}

// DeleteScheduled removes the assignment while it is still scheduled
func (r *AssignmentPostgres) DeleteScheduled(ctx context.Context, postID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM schedule_assignments WHERE post_id = $1 AND status = 'scheduled'`, postID)
	if err != nil {
		return false, fmt.Errorf("deleting scheduled assignment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteFailed clears a failed assignment before re-scheduling
func (r *AssignmentPostgres) DeleteFailed(ctx context.Context, postID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM schedule_assignments WHERE post_id = $1 AND status = 'failed'`, postID)
	if err != nil {
		return false, fmt.Errorf("deleting failed assignment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ActiveTimes lists occupied timestamps of active assignments
func (r *AssignmentPostgres) ActiveTimes(ctx context.Context, accountID string, after time.Time) ([]time.Time, error) {
	query := `
		SELECT scheduled_at
		FROM schedule_assignments
		WHERE account_id = $1
		  AND status IN ('scheduled', 'publishing')
		  AND scheduled_at > $2
		ORDER BY scheduled_at ASC
	`

	rows, err := r.pool.Query(ctx, query, accountID, after)
	if err != nil {
		return nil, fmt.Errorf("querying active times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		times = append(times, t)
	}

	return times, rows.Err()
}

// Due retrieves assignments ready to be fired
func (r *AssignmentPostgres) Due(ctx context.Context, now time.Time) ([]entity.ScheduleAssignment, error) {
	query := `SELECT ` + assignmentColumns + `
		FROM schedule_assignments
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("querying due assignments: %w", err)
	}
	defer rows.Close()

	var assignments []entity.ScheduleAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		assignments = append(assignments, *a)
	}

	return assignments, rows.Err()
}

// MarkPublishing transitions to publishing when the current status allows it
func (r *AssignmentPostgres) MarkPublishing(ctx context.Context, postID string, from []entity.AssignmentStatus, attemptedAt time.Time) (bool, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	query := `
		UPDATE schedule_assignments
		SET status = 'publishing', attempted_at = $2, updated_at = $3
		WHERE post_id = $1 AND status = ANY($4)
	`

	tag, err := r.pool.Exec(ctx, query, postID, attemptedAt, time.Now(), statuses)
	if err != nil {
		return false, fmt.Errorf("marking publishing: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SetPublished records a successful publish. published_at is written
// once and never overwritten.
func (r *AssignmentPostgres) SetPublished(ctx context.Context, postID, platformPostID string, publishedAt time.Time) error {
	query := `
		UPDATE schedule_assignments
		SET status = 'published', platform_post_id = $2, error_message = NULL,
		    published_at = COALESCE(published_at, $3), updated_at = $4
		WHERE post_id = $1 AND status = 'publishing'
	`

	_, err := r.pool.Exec(ctx, query, postID, platformPostID, publishedAt, time.Now())
	if err != nil {
		return fmt.Errorf("setting published: %w", err)
	}

	return nil
}

// SetFailed records a failed publish attempt
func (r *AssignmentPostgres) SetFailed(ctx context.Context, postID, errorMsg string) error {
	query := `
		UPDATE schedule_assignments
		SET status = 'failed', error_message = $2, updated_at = $3
		WHERE post_id = $1 AND status = 'publishing'
	`

	_, err := r.pool.Exec(ctx, query, postID, errorMsg, time.Now())
	if err != nil {
		return fmt.Errorf("setting failed: %w", err)
	}

	return nil
}

// Statistics retrieves aggregated assignment counts for an account
func (r *AssignmentPostgres) Statistics(ctx context.Context, accountID string) (*entity.ScheduleStatistics, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'publishing'),
			COUNT(*) FILTER (WHERE status = 'published'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			MIN(scheduled_at) FILTER (WHERE status = 'scheduled' AND scheduled_at > NOW())
		FROM schedule_assignments
		WHERE account_id = $1
	`

	stats := entity.ScheduleStatistics{AccountID: accountID}
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&stats.Scheduled,
		&stats.Publishing,
		&stats.Published,
		&stats.Failed,
		&stats.NextScheduledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("querying statistics: %w", err)
	}

	return &stats, nil
}

// scanAssignment scans one assignment row
func scanAssignment(row pgx.Row) (*entity.ScheduleAssignment, error) {
	var a entity.ScheduleAssignment
	var errorMessage, platformPostID *string
	var attemptedAt, publishedAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PostID,
		&a.AccountID,
		&a.ScheduledAt,
		&a.Status,
		&errorMessage,
		&attemptedAt,
		&publishedAt,
		&platformPostID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMessage != nil {
		a.ErrorMessage = *errorMessage
	}
	if platformPostID != nil {
		a.PlatformPostID = *platformPostID
	}
	a.AttemptedAt = attemptedAt
	a.PublishedAt = publishedAt
	a.ScheduledAt = a.ScheduledAt.UTC()

	return &a, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

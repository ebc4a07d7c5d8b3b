package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// SlotPostgres implements SlotRepository for PostgreSQL
type SlotPostgres struct {
	pool *pgxpool.Pool
}

// NewSlotPostgres creates a new PostgreSQL slot repository
func NewSlotPostgres(pool *pgxpool.Pool) *SlotPostgres {
	return &SlotPostgres{pool: pool}
}

const slotColumns = `id, account_id, weekday, hour, minute, enabled, created_at, updated_at`

// ListEnabled retrieves the enabled slots for an account
func (r *SlotPostgres) ListEnabled(ctx context.Context, accountID string) ([]entity.PreferredSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM preferred_slots
		WHERE account_id = $1 AND enabled = TRUE
		ORDER BY weekday, hour, minute
	`
	return r.list(ctx, query, accountID)
}

// List retrieves all slots for an account
func (r *SlotPostgres) List(ctx context.Context, accountID string) ([]entity.PreferredSlot, error) {
	query := `SELECT ` + slotColumns + `
		FROM preferred_slots
		WHERE account_id = $1
		ORDER BY weekday, hour, minute
	`
	return r.list(ctx, query, accountID)
}

func (r *SlotPostgres) list(ctx context.Context, query, accountID string) ([]entity.PreferredSlot, error) {
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var slots []entity.PreferredSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		slots = append(slots, *s)
	}

	return slots, rows.Err()
}

// GetByID retrieves a slot by ID
func (r *SlotPostgres) GetByID(ctx context.Context, id string) (*entity.PreferredSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM preferred_slots WHERE id = $1`

	s, err := scanSlot(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning slot: %w", err)
	}

	return s, nil
}

// Create inserts a new slot
func (r *SlotPostgres) Create(ctx context.Context, s *entity.PreferredSlot) error {
	query := `
		INSERT INTO preferred_slots (id, account_id, weekday, hour, minute, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.AccountID,
		int(s.Weekday),
		s.Hour,
		s.Minute,
		s.Enabled,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting slot: %w", err)
	}

	return nil
}

// Update updates an existing slot
func (r *SlotPostgres) Update(ctx context.Context, s *entity.PreferredSlot) error {
	query := `
		UPDATE preferred_slots
		SET weekday = $2, hour = $3, minute = $4, enabled = $5, updated_at = $6
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		int(s.Weekday),
		s.Hour,
		s.Minute,
		s.Enabled,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("updating slot: %w", err)
	}

	return nil
}

// Delete removes a slot
func (r *SlotPostgres) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM preferred_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting slot: %w", err)
	}
	return nil
}

// scanSlot scans one slot row
func scanSlot(row pgx.Row) (*entity.PreferredSlot, error) {
	var s entity.PreferredSlot
	var weekday int

	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&weekday,
		&s.Hour,
		&s.Minute,
		&s.Enabled,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Weekday = time.Weekday(weekday)
	return &s, nil
}

package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/neo-planner/internal/domain/schedule/entity"
)

// PostPostgres implements PostRepository over the host's posts table.
// The scheduling core never creates or edits posts; it reads them and
// flips moderation_status to 'published' after a successful publish.
type PostPostgres struct {
	pool *pgxpool.Pool
}

// NewPostPostgres creates a new PostgreSQL post repository
func NewPostPostgres(pool *pgxpool.Pool) *PostPostgres {
	return &PostPostgres{pool: pool}
}

const postColumns = `id, project_id, account_id, content, media_key, moderation_status, created_at`

// GetByID retrieves a post by ID
func (r *PostPostgres) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	p, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	return p, nil
}

// ListEligible retrieves approved posts of a project that have no
// active assignment, oldest first
func (r *PostPostgres) ListEligible(ctx context.Context, projectID string, limit int) ([]entity.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts p
		WHERE p.project_id = $1
		  AND p.moderation_status = 'approved'
		  AND NOT EXISTS (
			SELECT 1 FROM schedule_assignments a
			WHERE a.post_id = p.id AND a.status IN ('scheduled', 'publishing')
		  )
		ORDER BY p.created_at ASC
	`
	args := []interface{}{projectID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying eligible posts: %w", err)
	}
	defer rows.Close()

	var posts []entity.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		posts = append(posts, *p)
	}

	return posts, rows.Err()
}

// MarkPublished flips the post's moderation status to published
func (r *PostPostgres) MarkPublished(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE posts SET moderation_status = 'published' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking post published: %w", err)
	}
	return nil
}

// scanPost scans one post row
func scanPost(row pgx.Row) (*entity.Post, error) {
	var p entity.Post
	var mediaKey *string

	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.AccountID,
		&p.Content,
		&mediaKey,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mediaKey != nil {
		p.MediaKey = *mediaKey
	}
	return &p, nil
}

package dao

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountPostgres implements AccountRepository using the host's
// platform_connections table. Connection discovery and token refresh
// belong to the host; this repository only reads the current state.
type AccountPostgres struct {
	pool *pgxpool.Pool
}

// NewAccountPostgres creates a new PostgreSQL account repository
func NewAccountPostgres(pool *pgxpool.Pool) *AccountPostgres {
	return &AccountPostgres{pool: pool}
}

// IsConnected reports whether the account has a non-revoked connection
func (r *AccountPostgres) IsConnected(ctx context.Context, accountID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM platform_connections
			WHERE account_id = $1 AND revoked_at IS NULL
		)
	`

	var connected bool
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&connected); err != nil {
		return false, fmt.Errorf("querying connection state: %w", err)
	}

	return connected, nil
}

// GetAccessToken retrieves the platform access token for an account
func (r *AccountPostgres) GetAccessToken(ctx context.Context, accountID string) (string, error) {
	query := `
		SELECT access_token
		FROM platform_connections
		WHERE account_id = $1 AND revoked_at IS NULL
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var token string
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&token)
	if err == pgx.ErrNoRows {
		return "", fmt.Errorf("no access token found for account %s", accountID)
	}
	if err != nil {
		return "", fmt.Errorf("querying access token: %w", err)
	}

	return token, nil
}

// GetMemberURN retrieves the LinkedIn member URN for an account
func (r *AccountPostgres) GetMemberURN(ctx context.Context, accountID string) (string, error) {
	query := `
		SELECT member_urn
		FROM platform_connections
		WHERE account_id = $1 AND revoked_at IS NULL
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var urn string
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&urn)
	if err == pgx.ErrNoRows {
		return "", fmt.Errorf("no connection found for account %s", accountID)
	}
	if err != nil {
		return "", fmt.Errorf("querying member urn: %w", err)
	}

	return urn, nil
}

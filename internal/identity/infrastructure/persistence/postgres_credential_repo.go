// Package persistence provides credential repositories for Postgres and SQLite.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
)

// PostgresCredentialRepository stores encrypted credentials in Postgres.
type PostgresCredentialRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialRepository creates a new PostgresCredentialRepository.
func NewPostgresCredentialRepository(pool *pgxpool.Pool) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{pool: pool}
}

// Save inserts or replaces the credential for (user, provider).
func (r *PostgresCredentialRepository) Save(ctx context.Context, cred *oauth.StoredCredential) error {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	query := `
		INSERT INTO oauth_credentials (
			user_id, provider, access_token, refresh_token,
			token_type, expiry, calendar_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, oauth_credentials.refresh_token),
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			calendar_id = EXCLUDED.calendar_id,
			updated_at = NOW()`

	var refresh any
	if len(cred.RefreshToken) > 0 {
		refresh = cred.RefreshToken
	}

	_, err := exec.Exec(ctx, query,
		cred.UserID, cred.Provider, cred.AccessToken, refresh,
		cred.TokenType, cred.Expiry, cred.CalendarID,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// FindByUser returns the credential for (user, provider), or nil when absent.
func (r *PostgresCredentialRepository) FindByUser(ctx context.Context, userID uuid.UUID, provider string) (*oauth.StoredCredential, error) {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	query := `
		SELECT user_id, provider, access_token, refresh_token,
		       token_type, expiry, calendar_id, created_at, updated_at
		FROM oauth_credentials
		WHERE user_id = $1 AND provider = $2`

	var cred oauth.StoredCredential
	err := exec.QueryRow(ctx, query, userID, provider).Scan(
		&cred.UserID, &cred.Provider, &cred.AccessToken, &cred.RefreshToken,
		&cred.TokenType, &cred.Expiry, &cred.CalendarID, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &cred, nil
}

// Delete removes the credential for (user, provider).
func (r *PostgresCredentialRepository) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	_, err := exec.Exec(ctx,
		`DELETE FROM oauth_credentials WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

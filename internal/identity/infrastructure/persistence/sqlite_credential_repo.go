package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaycrm/calsync/internal/identity/application/oauth"
	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
)

// SQLiteCredentialRepository stores encrypted credentials in SQLite for
// local mode.
type SQLiteCredentialRepository struct {
	db *sql.DB
}

// NewSQLiteCredentialRepository creates a new SQLiteCredentialRepository.
func NewSQLiteCredentialRepository(db *sql.DB) *SQLiteCredentialRepository {
	return &SQLiteCredentialRepository{db: db}
}

// Save inserts or replaces the credential for (user, provider).
func (r *SQLiteCredentialRepository) Save(ctx context.Context, cred *oauth.StoredCredential) error {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `
		INSERT INTO oauth_credentials (
			user_id, provider, access_token, refresh_token,
			token_type, expiry, calendar_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, oauth_credentials.refresh_token),
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			calendar_id = excluded.calendar_id,
			updated_at = excluded.updated_at`

	var refresh any
	if len(cred.RefreshToken) > 0 {
		refresh = cred.RefreshToken
	}

	_, err := q.ExecContext(ctx, query,
		cred.UserID.String(), cred.Provider, cred.AccessToken, refresh,
		cred.TokenType, cred.Expiry.UTC().Format(time.RFC3339Nano), cred.CalendarID,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// FindByUser returns the credential for (user, provider), or nil when absent.
func (r *SQLiteCredentialRepository) FindByUser(ctx context.Context, userID uuid.UUID, provider string) (*oauth.StoredCredential, error) {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)

	query := `
		SELECT user_id, provider, access_token, refresh_token,
		       token_type, expiry, calendar_id, created_at, updated_at
		FROM oauth_credentials
		WHERE user_id = ? AND provider = ?`

	var (
		cred      oauth.StoredCredential
		rawUserID string
		refresh   []byte
		expiry    string
		createdAt string
		updatedAt string
	)
	err := q.QueryRowContext(ctx, query, userID.String(), provider).Scan(
		&rawUserID, &cred.Provider, &cred.AccessToken, &refresh,
		&cred.TokenType, &expiry, &cred.CalendarID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}

	cred.UserID, err = uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("parse credential user id: %w", err)
	}
	cred.RefreshToken = refresh
	if cred.Expiry, err = time.Parse(time.RFC3339Nano, expiry); err != nil {
		return nil, fmt.Errorf("parse credential expiry: %w", err)
	}
	if cred.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse credential created_at: %w", err)
	}
	if cred.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse credential updated_at: %w", err)
	}
	return &cred, nil
}

// Delete removes the credential for (user, provider).
func (r *SQLiteCredentialRepository) Delete(ctx context.Context, userID uuid.UUID, provider string) error {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`DELETE FROM oauth_credentials WHERE user_id = ? AND provider = ?`,
		userID.String(), provider,
	)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

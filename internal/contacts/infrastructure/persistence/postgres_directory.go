// Package persistence implements the contact directory consumed by the
// sync services, backed by the CRM contacts table.
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
	syncApp "github.com/relaycrm/calsync/internal/sync/application"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// PostgresDirectory implements the contact directory on Postgres.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a new PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// FindByEmail returns the user's contact with the email, matched
// case-insensitively, or nil when there is none.
func (d *PostgresDirectory) FindByEmail(ctx context.Context, userID uuid.UUID, email string) (*syncApp.Contact, error) {
	exec := sharedPersistence.PgxExecutor(ctx, d.pool)

	var contact syncApp.Contact
	err := exec.QueryRow(ctx,
		`SELECT id, user_id, name, email, stage FROM contacts
		 WHERE user_id = $1 AND lower(email) = lower($2)`,
		userID, email,
	).Scan(&contact.ID, &contact.UserID, &contact.Name, &contact.Email, &contact.Stage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact by email: %w", err)
	}
	return &contact, nil
}

// FindByID returns the contact, or nil when absent.
func (d *PostgresDirectory) FindByID(ctx context.Context, id uuid.UUID) (*syncApp.Contact, error) {
	exec := sharedPersistence.PgxExecutor(ctx, d.pool)

	var contact syncApp.Contact
	err := exec.QueryRow(ctx,
		`SELECT id, user_id, name, email, stage FROM contacts WHERE id = $1`, id,
	).Scan(&contact.ID, &contact.UserID, &contact.Name, &contact.Email, &contact.Stage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return &contact, nil
}

// Create adds a contact at the given pipeline stage.
func (d *PostgresDirectory) Create(ctx context.Context, userID uuid.UUID, name, email string, stage domain.Stage) (*syncApp.Contact, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("invalid pipeline stage %q", stage)
	}
	exec := sharedPersistence.PgxExecutor(ctx, d.pool)

	contact := &syncApp.Contact{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Email:  email,
		Stage:  stage,
	}
	_, err := exec.Exec(ctx,
		`INSERT INTO contacts (id, user_id, name, email, stage, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		contact.ID, contact.UserID, contact.Name, contact.Email, contact.Stage,
	)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return contact, nil
}

// AdvanceStage moves the contact forward to stage. Contacts never move
// backwards.
func (d *PostgresDirectory) AdvanceStage(ctx context.Context, contactID uuid.UUID, stage domain.Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("invalid pipeline stage %q", stage)
	}
	exec := sharedPersistence.PgxExecutor(ctx, d.pool)

	var current domain.Stage
	err := exec.QueryRow(ctx,
		`SELECT stage FROM contacts WHERE id = $1`, contactID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("contact %s not found", contactID)
	}
	if err != nil {
		return fmt.Errorf("load contact stage: %w", err)
	}
	if !current.Precedes(stage) {
		return nil
	}

	_, err = exec.Exec(ctx,
		`UPDATE contacts SET stage = $1, updated_at = NOW() WHERE id = $2`,
		stage, contactID,
	)
	if err != nil {
		return fmt.Errorf("advance contact stage: %w", err)
	}
	return nil
}

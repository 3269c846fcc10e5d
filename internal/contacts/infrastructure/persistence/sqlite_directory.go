package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
	syncApp "github.com/relaycrm/calsync/internal/sync/application"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// SQLiteDirectory implements the contact directory on SQLite for local mode.
type SQLiteDirectory struct {
	db *sql.DB
}

// NewSQLiteDirectory creates a new SQLiteDirectory.
func NewSQLiteDirectory(db *sql.DB) *SQLiteDirectory {
	return &SQLiteDirectory{db: db}
}

// FindByEmail returns the user's contact with the email, matched
// case-insensitively, or nil when there is none.
func (d *SQLiteDirectory) FindByEmail(ctx context.Context, userID uuid.UUID, email string) (*syncApp.Contact, error) {
	q := sharedPersistence.SQLiteQuerier(ctx, d.db)

	row := q.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, stage FROM contacts
		 WHERE user_id = ? AND lower(email) = lower(?)`,
		userID.String(), email,
	)
	return scanContact(row)
}

// FindByID returns the contact, or nil when absent.
func (d *SQLiteDirectory) FindByID(ctx context.Context, id uuid.UUID) (*syncApp.Contact, error) {
	q := sharedPersistence.SQLiteQuerier(ctx, d.db)

	row := q.QueryRowContext(ctx,
		`SELECT id, user_id, name, email, stage FROM contacts WHERE id = ?`,
		id.String(),
	)
	return scanContact(row)
}

// Create adds a contact at the given pipeline stage.
func (d *SQLiteDirectory) Create(ctx context.Context, userID uuid.UUID, name, email string, stage domain.Stage) (*syncApp.Contact, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("invalid pipeline stage %q", stage)
	}
	q := sharedPersistence.SQLiteQuerier(ctx, d.db)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	contact := &syncApp.Contact{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Email:  email,
		Stage:  stage,
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO contacts (id, user_id, name, email, stage, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contact.ID.String(), contact.UserID.String(), contact.Name, contact.Email, string(contact.Stage),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return contact, nil
}

// AdvanceStage moves the contact forward to stage. Contacts never move
// backwards.
func (d *SQLiteDirectory) AdvanceStage(ctx context.Context, contactID uuid.UUID, stage domain.Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("invalid pipeline stage %q", stage)
	}
	q := sharedPersistence.SQLiteQuerier(ctx, d.db)

	var current domain.Stage
	err := q.QueryRowContext(ctx,
		`SELECT stage FROM contacts WHERE id = ?`, contactID.String(),
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("contact %s not found", contactID)
	}
	if err != nil {
		return fmt.Errorf("load contact stage: %w", err)
	}
	if !current.Precedes(stage) {
		return nil
	}

	_, err = q.ExecContext(ctx,
		`UPDATE contacts SET stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), time.Now().UTC().Format(time.RFC3339Nano), contactID.String(),
	)
	if err != nil {
		return fmt.Errorf("advance contact stage: %w", err)
	}
	return nil
}

func scanContact(row *sql.Row) (*syncApp.Contact, error) {
	var (
		rawID, rawUserID string
		contact          syncApp.Contact
		stage            string
	)
	err := row.Scan(&rawID, &rawUserID, &contact.Name, &contact.Email, &stage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contact: %w", err)
	}

	if contact.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse contact id: %w", err)
	}
	if contact.UserID, err = uuid.Parse(rawUserID); err != nil {
		return nil, fmt.Errorf("parse contact user id: %w", err)
	}
	contact.Stage = domain.Stage(stage)
	return &contact, nil
}

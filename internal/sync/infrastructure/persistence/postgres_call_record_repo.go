// Package persistence provides call record repositories for Postgres
// and SQLite.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// PostgresCallRecordRepository stores call records in Postgres.
type PostgresCallRecordRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCallRecordRepository creates a new PostgresCallRecordRepository.
func NewPostgresCallRecordRepository(pool *pgxpool.Pool) *PostgresCallRecordRepository {
	return &PostgresCallRecordRepository{pool: pool}
}

// Save inserts or updates the record.
func (r *PostgresCallRecordRepository) Save(ctx context.Context, record *domain.CallRecord) error {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	query := `
		INSERT INTO call_records (
			id, user_id, contact_id, title, starts_at, ends_at,
			location, notes, status, provider, external_event_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			contact_id = EXCLUDED.contact_id,
			title = EXCLUDED.title,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			location = EXCLUDED.location,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			provider = EXCLUDED.provider,
			external_event_id = EXCLUDED.external_event_id,
			updated_at = EXCLUDED.updated_at`

	_, err := exec.Exec(ctx, query,
		record.ID(), record.UserID(), record.ContactID(),
		record.Title(), record.StartsAt(), record.EndsAt(),
		record.Location(), record.Notes(), record.Status(),
		nullString(record.Provider()), nullString(record.ExternalEventID()),
		record.CreatedAt(), record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("save call record: %w", err)
	}
	return nil
}

// FindByID returns the record, or nil when absent.
func (r *PostgresCallRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	row := exec.QueryRow(ctx, selectColumns+` FROM call_records WHERE id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find call record: %w", err)
	}
	return record, nil
}

// FindByUser returns the user's records ordered by start time.
func (r *PostgresCallRecordRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CallRecord, error) {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	rows, err := exec.Query(ctx, selectColumns+` FROM call_records WHERE user_id = $1 ORDER BY starts_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list call records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CallRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// FindMirroredEventIDs returns the set of external event IDs already
// mirrored for the user and provider.
func (r *PostgresCallRecordRepository) FindMirroredEventIDs(ctx context.Context, userID uuid.UUID, provider string) (map[string]struct{}, error) {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)

	rows, err := exec.Query(ctx,
		`SELECT external_event_id FROM call_records
		 WHERE user_id = $1 AND provider = $2 AND external_event_id IS NOT NULL`,
		userID, provider,
	)
	if err != nil {
		return nil, fmt.Errorf("list mirrored event ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

const selectColumns = `
	SELECT id, user_id, contact_id, title, starts_at, ends_at,
	       location, notes, status, provider, external_event_id,
	       created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.CallRecord, error) {
	var (
		id, userID           uuid.UUID
		contactID            *uuid.UUID
		title                string
		startsAt, endsAt     time.Time
		location, notes      string
		status               string
		provider, externalID *string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&id, &userID, &contactID, &title, &startsAt, &endsAt,
		&location, &notes, &status, &provider, &externalID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateCallRecord(
		id, userID, contactID, title, startsAt, endsAt,
		location, notes, status,
		derefString(provider), derefString(externalID),
		createdAt, updatedAt,
	), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

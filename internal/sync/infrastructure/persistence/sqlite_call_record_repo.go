package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
	"github.com/relaycrm/calsync/internal/sync/domain"
)

// SQLiteCallRecordRepository stores call records in SQLite for local mode.
type SQLiteCallRecordRepository struct {
	db *sql.DB
}

// NewSQLiteCallRecordRepository creates a new SQLiteCallRecordRepository.
func NewSQLiteCallRecordRepository(db *sql.DB) *SQLiteCallRecordRepository {
	return &SQLiteCallRecordRepository{db: db}
}

// Save inserts or updates the record.
func (r *SQLiteCallRecordRepository) Save(ctx context.Context, record *domain.CallRecord) error {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)

	query := `
		INSERT INTO call_records (
			id, user_id, contact_id, title, starts_at, ends_at,
			location, notes, status, provider, external_event_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			contact_id = excluded.contact_id,
			title = excluded.title,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			location = excluded.location,
			notes = excluded.notes,
			status = excluded.status,
			provider = excluded.provider,
			external_event_id = excluded.external_event_id,
			updated_at = excluded.updated_at`

	var contactID any
	if record.ContactID() != nil {
		contactID = record.ContactID().String()
	}

	_, err := q.ExecContext(ctx, query,
		record.ID().String(), record.UserID().String(), contactID,
		record.Title(), formatTime(record.StartsAt()), formatTime(record.EndsAt()),
		record.Location(), record.Notes(), record.Status(),
		nullString(record.Provider()), nullString(record.ExternalEventID()),
		formatTime(record.CreatedAt()), formatTime(record.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("save call record: %w", err)
	}
	return nil
}

// FindByID returns the record, or nil when absent.
func (r *SQLiteCallRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)

	row := q.QueryRowContext(ctx, selectColumns+` FROM call_records WHERE id = ?`, id.String())
	record, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find call record: %w", err)
	}
	return record, nil
}

// FindByUser returns the user's records ordered by start time.
func (r *SQLiteCallRecordRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.CallRecord, error) {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)

	rows, err := q.QueryContext(ctx, selectColumns+` FROM call_records WHERE user_id = ? ORDER BY starts_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list call records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CallRecord
	for rows.Next() {
		record, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// FindMirroredEventIDs returns the set of external event IDs already
// mirrored for the user and provider.
func (r *SQLiteCallRecordRepository) FindMirroredEventIDs(ctx context.Context, userID uuid.UUID, provider string) (map[string]struct{}, error) {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)

	rows, err := q.QueryContext(ctx,
		`SELECT external_event_id FROM call_records
		 WHERE user_id = ? AND provider = ? AND external_event_id IS NOT NULL`,
		userID.String(), provider,
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

func scanSQLiteRecord(row rowScanner) (*domain.CallRecord, error) {
	var (
		rawID, rawUserID      string
		rawContactID          *string
		title                 string
		rawStarts, rawEnds    string
		location, notes       string
		status                string
		provider, externalID  *string
		rawCreated, rawUpdated string
	)
	err := row.Scan(
		&rawID, &rawUserID, &rawContactID, &title, &rawStarts, &rawEnds,
		&location, &notes, &status, &provider, &externalID,
		&rawCreated, &rawUpdated,
	)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	var contactID *uuid.UUID
	if rawContactID != nil {
		parsed, err := uuid.Parse(*rawContactID)
		if err != nil {
			return nil, fmt.Errorf("parse contact id: %w", err)
		}
		contactID = &parsed
	}

	startsAt, err := parseTime(rawStarts)
	if err != nil {
		return nil, err
	}
	endsAt, err := parseTime(rawEnds)
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(rawCreated)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(rawUpdated)
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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

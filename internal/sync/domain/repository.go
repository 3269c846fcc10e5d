package domain

import (
	"context"

	"github.com/google/uuid"
)

// CallRecordRepository persists call records.
type CallRecordRepository interface {
	// Save inserts or updates the record.
	Save(ctx context.Context, record *CallRecord) error
	// FindByID returns the record, or nil when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*CallRecord, error)
	// FindByUser returns the user's records ordered by start time.
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*CallRecord, error)
	// FindMirroredEventIDs returns the set of external event IDs the
	// user already has records for, keyed by provider event ID.
	FindMirroredEventIDs(ctx context.Context, userID uuid.UUID, provider string) (map[string]struct{}, error)
}

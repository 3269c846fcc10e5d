package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save persists a single outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING
	`
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)
	_, err := q.ExecContext(ctx, query,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.RoutingKey,
		string(msg.Payload),
		msg.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// SaveBatch persists a batch of outbox messages within the ambient transaction.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUnpublished returns unpublished messages oldest first.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload,
		       created_at, published_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT ?
	`
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]*Message, 0)
	for rows.Next() {
		var (
			msg         Message
			eventID     string
			aggregateID string
			payload     string
			createdAt   string
			publishedAt sql.NullString
		)
		if err := rows.Scan(
			&msg.ID,
			&eventID,
			&msg.AggregateType,
			&aggregateID,
			&msg.RoutingKey,
			&payload,
			&createdAt,
			&publishedAt,
			&msg.RetryCount,
			&msg.LastError,
		); err != nil {
			return nil, err
		}

		msg.EventID, err = uuid.Parse(eventID)
		if err != nil {
			return nil, err
		}
		msg.AggregateID, err = uuid.Parse(aggregateID)
		if err != nil {
			return nil, err
		}
		msg.Payload = []byte(payload)
		msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, err
		}
		if publishedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, publishedAt.String)
			if err != nil {
				return nil, err
			}
			msg.PublishedAt = &t
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished stamps a message as published.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64) error {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)
	_, err := q.ExecContext(ctx,
		`UPDATE outbox SET published_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	return err
}

// MarkFailed records a publish failure and bumps the retry counter.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	q := sharedPersistence.SQLiteQuerier(ctx, r.db)
	_, err := q.ExecContext(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`,
		errMsg, id,
	)
	return err
}

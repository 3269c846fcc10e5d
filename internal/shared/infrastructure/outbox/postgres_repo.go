package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	sharedPersistence "github.com/relaycrm/calsync/internal/shared/infrastructure/persistence"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save persists a single outbox message.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, query,
		msg.EventID,
		msg.AggregateType,
		msg.AggregateID,
		msg.RoutingKey,
		msg.Payload,
		msg.CreatedAt,
	)
	return err
}

// SaveBatch persists a batch of outbox messages within the ambient transaction.
func (r *PostgresRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	for _, msg := range msgs {
		if err := r.Save(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetUnpublished returns unpublished messages oldest first.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload,
		       created_at, published_at, retry_count, last_error
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)
	rows, err := exec.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]*Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID,
			&msg.EventID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.RoutingKey,
			&msg.Payload,
			&msg.CreatedAt,
			&msg.PublishedAt,
			&msg.RetryCount,
			&msg.LastError,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkPublished stamps a message as published.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64) error {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkFailed records a publish failure and bumps the retry counter.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	exec := sharedPersistence.PgxExecutor(ctx, r.pool)
	_, err := exec.Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`,
		id, errMsg,
	)
	return err
}

package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type eventRepo struct{}

// NewEventRepository returns a pgx-backed EventRepository.
func NewEventRepository() EventRepository {
	return &eventRepo{}
}

func (r *eventRepo) Insert(ctx context.Context, db DBTX, e *domain.DomainEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO domain_events
		  (id, created_at, aggregate_type, aggregate_id, event_type, event_time, payload, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.CreatedAt, string(e.AggregateType), e.AggregateID, string(e.EventType),
		e.EventTime, e.Payload, e.IdempotencyKey,
	)
	if err != nil {
		return fmt.Errorf("insert domain event: %w", err)
	}
	return nil
}

// FindByIdempotencyKey returns the most-recently-created event for the
// pair, matching the "most-recently-created event wins" rule in the data
// model, enforced here via ORDER BY created_at DESC LIMIT 1 rather than
// relying on the unique partial index alone (the index rejects a second
// concurrent insert; it does not change how a single SELECT picks among
// rows that predate the index).
func (r *eventRepo) FindByIdempotencyKey(ctx context.Context, db DBTX, aggregateType domain.AccountType, key string) (*domain.DomainEvent, error) {
	row := db.QueryRow(ctx, `
		SELECT id, created_at, aggregate_type, aggregate_id, event_type, event_time, payload, idempotency_key
		FROM domain_events
		WHERE aggregate_type = $1 AND idempotency_key = $2
		ORDER BY created_at DESC
		LIMIT 1`, string(aggregateType), key)
	return scanEvent(row)
}

func (r *eventRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.DomainEvent, error) {
	row := db.QueryRow(ctx, `
		SELECT id, created_at, aggregate_type, aggregate_id, event_type, event_time, payload, idempotency_key
		FROM domain_events WHERE id = $1`, id)
	return scanEvent(row)
}

func scanEvent(row pgx.Row) (*domain.DomainEvent, error) {
	var e domain.DomainEvent
	var aggregateType, eventType string
	err := row.Scan(&e.ID, &e.CreatedAt, &aggregateType, &e.AggregateID, &eventType,
		&e.EventTime, &e.Payload, &e.IdempotencyKey)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan domain event: %w", err)
	}
	e.AggregateType = domain.AccountType(aggregateType)
	e.EventType = domain.EventType(eventType)
	return &e, nil
}

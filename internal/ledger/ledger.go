// Package ledger provides the foundational operations every aggregate
// service builds on: posting a balanced journal row, checking for a prior
// event by idempotency key, and appending a new event with its outbox
// fan-out. Deposit and loan services share this one Engine rather than
// duplicating the staging logic.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/guard"
	"github.com/attaboy/ledgercore/internal/repository"
	"github.com/google/uuid"
)

// Engine provides the 3 foundational ledger operations:
//  1. PostEntry: append-only double-entry journal row
//  2. FindIdempotent: idempotency check by (aggregate_type, key)
//  3. AppendEvent: append a domain event and stage its outbox fan-out
type Engine struct {
	Ledger   repository.LedgerRepository
	Events   repository.EventRepository
	Outbox   repository.OutboxRepository
	Webhooks repository.WebhookSubscriptionRepository

	// Cache is an optional in-process hint layered on top of FindIdempotent's
	// durable lookup; nil disables it entirely. Never consulted for the
	// actual idempotency decision, only to log when a replay was expected.
	Cache *guard.IdempotencyCache
}

// NewEngine creates a ledger engine with the given repositories and an
// enabled in-process idempotency cache.
func NewEngine(
	ledger repository.LedgerRepository,
	events repository.EventRepository,
	outbox repository.OutboxRepository,
	webhooks repository.WebhookSubscriptionRepository,
) *Engine {
	return &Engine{Ledger: ledger, Events: events, Outbox: outbox, Webhooks: webhooks, Cache: guard.NewIdempotencyCache()}
}

// PostEntry appends one balanced journal row. Callers are responsible for
// choosing a self-balancing (debit, credit, amount) triple; no validation
// of double-entry balance is performed here beyond amount > 0, which the
// caller is expected to have already enforced via command validation.
func (e *Engine) PostEntry(ctx context.Context, db repository.DBTX, entry *domain.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := e.Ledger.Insert(ctx, db, entry); err != nil {
		return fmt.Errorf("post ledger entry: %w", err)
	}
	return nil
}

// FindIdempotent implements the replay check every deposit and loan command
// performs before mutating state: look up a prior event for (aggregateType,
// key); if one exists, matches wantEventType, and (when accountID is
// non-empty) matches aggregate_id, the caller should return current state
// unmutated.
func (e *Engine) FindIdempotent(ctx context.Context, db repository.DBTX, aggregateType domain.AccountType, key string, wantEventType domain.EventType, accountID string) (*domain.DomainEvent, error) {
	if key == "" {
		return nil, nil
	}
	if e.Cache != nil && e.Cache.Seen(string(aggregateType), key) {
		slog.Debug("idempotency cache hit, expecting replay", "aggregate_type", aggregateType, "key", key)
	}
	existing, err := e.Events.FindByIdempotencyKey(ctx, db, aggregateType, key)
	if err != nil {
		return nil, fmt.Errorf("find idempotent event: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.EventType != wantEventType {
		return nil, nil
	}
	if accountID != "" && existing.AggregateID != accountID {
		return nil, nil
	}
	return existing, nil
}

// AppendEvent inserts a DomainEvent and stages its outbox fan-out: one
// OutboxMessage per enabled WebhookSubscription, plus one additional
// OutboxMessage destined for "queue:domain_events". Every row lands with
// status=PENDING and next_attempt_at=now, staged in the caller's
// transaction so the dispatcher only ever sees a fan-out whose originating
// business mutation has already committed.
func (e *Engine) AppendEvent(
	ctx context.Context,
	db repository.DBTX,
	aggregateType domain.AccountType,
	aggregateID string,
	eventType domain.EventType,
	payload []byte,
	eventTime time.Time,
	idempotencyKey *string,
) (*domain.DomainEvent, error) {
	now := time.Now().UTC()
	event := &domain.DomainEvent{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		EventType:      eventType,
		EventTime:      eventTime,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
	}
	if err := e.Events.Insert(ctx, db, event); err != nil {
		return nil, fmt.Errorf("insert domain event: %w", err)
	}
	if e.Cache != nil && idempotencyKey != nil {
		e.Cache.Record(string(aggregateType), *idempotencyKey)
	}

	subs, err := e.Webhooks.ListEnabled(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("list enabled webhook subscriptions: %w", err)
	}
	for _, sub := range subs {
		if err := e.stageOutbox(ctx, db, event.ID, domain.WebhookDestination(sub.ID), now); err != nil {
			return nil, err
		}
	}
	if err := e.stageOutbox(ctx, db, event.ID, domain.QueueDestination("domain_events"), now); err != nil {
		return nil, err
	}

	return event, nil
}

func (e *Engine) stageOutbox(ctx context.Context, db repository.DBTX, eventID, destination string, now time.Time) error {
	msg := &domain.OutboxMessage{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		EventID:       eventID,
		Destination:   destination,
		Status:        domain.OutboxPending,
		Attempts:      0,
		MaxAttempts:   domain.DefaultMaxAttempts,
		NextAttemptAt: &now,
	}
	if err := e.Outbox.Insert(ctx, db, msg); err != nil {
		return fmt.Errorf("stage outbox message: %w", err)
	}
	return nil
}

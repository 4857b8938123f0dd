// Package repository is the persistence boundary every service in this
// module goes through. Each entity in the data model gets one repository
// interface plus a pgx-backed implementation; callers pass a DBTX so the
// same repository works against a bare pool for reads and against a
// transaction for the command write paths that must commit atomically.
package repository

import (
	"context"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// DepositAccountRepository provides access to deposit_accounts.
type DepositAccountRepository interface {
	Insert(ctx context.Context, db DBTX, a *domain.DepositAccount) error
	FindByID(ctx context.Context, db DBTX, id string) (*domain.DepositAccount, error)
	// LockForUpdate acquires a row-level lock; must run inside a transaction.
	LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.DepositAccount, error)
	Update(ctx context.Context, db DBTX, a *domain.DepositAccount) error
}

// LoanAccountRepository provides access to loan_accounts.
type LoanAccountRepository interface {
	Insert(ctx context.Context, db DBTX, a *domain.LoanAccount) error
	FindByID(ctx context.Context, db DBTX, id string) (*domain.LoanAccount, error)
	LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.LoanAccount, error)
	Update(ctx context.Context, db DBTX, a *domain.LoanAccount) error
}

// LedgerFilter narrows a ledger query; a nil field matches everything.
type LedgerFilter struct {
	AccountType   *domain.AccountType
	AccountID     *string
	TxnID         *string
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	Limit         int
	Offset        int
}

// LedgerRepository provides access to the append-only ledger_entries table.
type LedgerRepository interface {
	// Insert appends one balanced journal row. The journal is append-only;
	// no update or delete method exists anywhere in this interface.
	Insert(ctx context.Context, db DBTX, e *domain.LedgerEntry) error
	// Query returns entries matching filter, ordered by created_at DESC,
	// paginated by filter.Limit/Offset.
	Query(ctx context.Context, db DBTX, filter LedgerFilter) ([]domain.LedgerEntry, error)
}

// EventRepository provides access to domain_events.
type EventRepository interface {
	Insert(ctx context.Context, db DBTX, e *domain.DomainEvent) error
	// FindByIdempotencyKey returns the most-recently-created event for the
	// pair, or nil if none exists.
	FindByIdempotencyKey(ctx context.Context, db DBTX, aggregateType domain.AccountType, key string) (*domain.DomainEvent, error)
	FindByID(ctx context.Context, db DBTX, id string) (*domain.DomainEvent, error)
}

// OutboxRepository provides access to outbox_messages.
type OutboxRepository interface {
	Insert(ctx context.Context, db DBTX, m *domain.OutboxMessage) error
	// SelectDue returns at most limit PENDING rows whose next_attempt_at
	// has arrived (or is null), ordered by created_at ASC.
	SelectDue(ctx context.Context, db DBTX, now time.Time, limit int) ([]domain.OutboxMessage, error)
	Update(ctx context.Context, db DBTX, m *domain.OutboxMessage) error
	// ResetForReplay re-arms every row (joined to its event) matching
	// filter back to PENDING/attempts=0/no error, stamping next_attempt_at
	// with now. Returns the number of rows updated.
	ResetForReplay(ctx context.Context, db DBTX, filter domain.ReplayFilter, now time.Time) (int, error)
}

// WebhookSubscriptionRepository provides access to webhook_subscriptions.
type WebhookSubscriptionRepository interface {
	Insert(ctx context.Context, db DBTX, s *domain.WebhookSubscription) error
	Get(ctx context.Context, db DBTX, id string) (*domain.WebhookSubscription, error)
	// ListEnabled returns every subscription with enabled=true.
	ListEnabled(ctx context.Context, db DBTX) ([]domain.WebhookSubscription, error)
}

// QueueMessageRepository provides access to queue_messages, the terminal
// sink for "queue:<topic>" outbox destinations.
type QueueMessageRepository interface {
	Insert(ctx context.Context, db DBTX, m *domain.QueueMessage) error
}

// Transactor runs fn inside a single database transaction, committing on a
// nil return and rolling back otherwise.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

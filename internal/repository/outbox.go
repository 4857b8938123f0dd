package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db DBTX, m *domain.OutboxMessage) error {
	_, err := db.Exec(ctx, `
		INSERT INTO outbox_messages
		  (id, created_at, event_id, destination, status, attempts, max_attempts, next_attempt_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.CreatedAt, m.EventID, m.Destination, string(m.Status),
		m.Attempts, m.MaxAttempts, m.NextAttemptAt, m.LastError,
	)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// SelectDue implements the dispatcher's row-selection predicate from the
// outbox state machine: PENDING rows whose next_attempt_at has arrived or
// was never set, FIFO by created_at.
func (r *outboxRepo) SelectDue(ctx context.Context, db DBTX, now time.Time, limit int) ([]domain.OutboxMessage, error) {
	rows, err := db.Query(ctx, `
		SELECT id, created_at, event_id, destination, status, attempts, max_attempts, next_attempt_at, last_error
		FROM outbox_messages
		WHERE status = 'PENDING' AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY created_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due outbox messages: %w", err)
	}
	defer rows.Close()

	var out []domain.OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *outboxRepo) Update(ctx context.Context, db DBTX, m *domain.OutboxMessage) error {
	_, err := db.Exec(ctx, `
		UPDATE outbox_messages SET
		  status = $2, attempts = $3, next_attempt_at = $4, last_error = $5
		WHERE id = $1`,
		m.ID, string(m.Status), m.Attempts, m.NextAttemptAt, m.LastError,
	)
	if err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	return nil
}

// ResetForReplay resets matching rows back to PENDING, joining to
// domain_events to apply the aggregate_type/aggregate_id filters.
func (r *outboxRepo) ResetForReplay(ctx context.Context, db DBTX, filter domain.ReplayFilter, now time.Time) (int, error) {
	conds := []string{}
	args := []interface{}{now}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AggregateType != nil {
		conds = append(conds, "e.aggregate_type = "+arg(string(*filter.AggregateType)))
	}
	if filter.AggregateID != nil {
		conds = append(conds, "e.aggregate_id = "+arg(*filter.AggregateID))
	}
	if filter.Destination != nil {
		conds = append(conds, "m.destination = "+arg(*filter.Destination))
	}

	where := ""
	if len(conds) > 0 {
		where = "AND " + joinAnd(conds)
	}

	query := fmt.Sprintf(`
		UPDATE outbox_messages m SET
		  status = 'PENDING', attempts = 0, last_error = NULL, next_attempt_at = $1
		FROM domain_events e
		WHERE m.event_id = e.id
		%s`, where)

	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset outbox messages for replay: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func joinAnd(conds []string) string {
	out := conds[0]
	for _, c := range conds[1:] {
		out += " AND " + c
	}
	return out
}

func scanOutboxMessage(row pgx.Row) (*domain.OutboxMessage, error) {
	var m domain.OutboxMessage
	var status string
	err := row.Scan(&m.ID, &m.CreatedAt, &m.EventID, &m.Destination, &status,
		&m.Attempts, &m.MaxAttempts, &m.NextAttemptAt, &m.LastError)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan outbox message: %w", err)
	}
	m.Status = domain.OutboxStatus(status)
	return &m, nil
}

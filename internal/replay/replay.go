// Package replay implements the operator-facing reset tool: re-arm
// selected outbox rows back to PENDING so the dispatcher redelivers them,
// regardless of their current terminal status.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/repository"
)

// Tool resets outbox rows matching a filter back to PENDING.
type Tool struct {
	Outbox repository.OutboxRepository
}

// New builds a replay Tool over the given outbox repository.
func New(outbox repository.OutboxRepository) *Tool {
	return &Tool{Outbox: outbox}
}

// Replay resets every OutboxMessage row (joined to its DomainEvent)
// matching filter to status=PENDING, attempts=0, last_error=nil,
// next_attempt_at=now, including rows currently in a terminal state
// (SENT, DEAD, SKIPPED, FAILED). An unfiltered field in filter matches
// every row. Returns the number of rows updated.
func (t *Tool) Replay(ctx context.Context, db repository.DBTX, filter domain.ReplayFilter) (int, error) {
	count, err := t.Outbox.ResetForReplay(ctx, db, filter, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("replay outbox: %w", err)
	}
	return count, nil
}

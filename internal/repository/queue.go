package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/ledgercore/internal/domain"
)

type queueMessageRepo struct{}

// NewQueueMessageRepository returns a pgx-backed QueueMessageRepository.
func NewQueueMessageRepository() QueueMessageRepository {
	return &queueMessageRepo{}
}

// Insert records the durable queue fan-out row. This table is the
// always-present sink for queue: destinations; publishing to Kafka on top
// of it is an optional, best-effort addition handled by the dispatcher.
func (r *queueMessageRepo) Insert(ctx context.Context, db DBTX, m *domain.QueueMessage) error {
	_, err := db.Exec(ctx, `
		INSERT INTO queue_messages (id, created_at, topic, event_id, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.CreatedAt, m.Topic, m.EventID, m.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert queue message: %w", err)
	}
	return nil
}

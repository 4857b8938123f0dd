package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/jackc/pgx/v5"
)

type webhookSubscriptionRepo struct{}

// NewWebhookSubscriptionRepository returns a pgx-backed WebhookSubscriptionRepository.
func NewWebhookSubscriptionRepository() WebhookSubscriptionRepository {
	return &webhookSubscriptionRepo{}
}

func (r *webhookSubscriptionRepo) Insert(ctx context.Context, db DBTX, s *domain.WebhookSubscription) error {
	_, err := db.Exec(ctx, `
		INSERT INTO webhook_subscriptions
		  (id, created_at, url, enabled, secret)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.CreatedAt, s.URL, s.Enabled, s.Secret,
	)
	if err != nil {
		return fmt.Errorf("insert webhook subscription: %w", err)
	}
	return nil
}

func (r *webhookSubscriptionRepo) Get(ctx context.Context, db DBTX, id string) (*domain.WebhookSubscription, error) {
	row := db.QueryRow(ctx, `
		SELECT id, created_at, url, enabled, secret
		FROM webhook_subscriptions WHERE id = $1`, id)
	return scanWebhookSubscription(row)
}

func (r *webhookSubscriptionRepo) ListEnabled(ctx context.Context, db DBTX) ([]domain.WebhookSubscription, error) {
	rows, err := db.Query(ctx, `
		SELECT id, created_at, url, enabled, secret
		FROM webhook_subscriptions WHERE enabled = true
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list enabled webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookSubscription
	for rows.Next() {
		s, err := scanWebhookSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanWebhookSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	var s domain.WebhookSubscription
	err := row.Scan(&s.ID, &s.CreatedAt, &s.URL, &s.Enabled, &s.Secret)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan webhook subscription: %w", err)
	}
	return &s, nil
}

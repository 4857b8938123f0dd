// Package webhooks manages the delivery subscriptions the outbox fans out
// to. Subscriptions are created here and thereafter only read: the ledger
// engine enumerates enabled ones at staging time and the dispatcher loads
// them one by one at delivery time.
package webhooks

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/repository"
	"github.com/google/uuid"
)

// Service creates webhook subscriptions.
type Service struct {
	Subscriptions repository.WebhookSubscriptionRepository
}

// NewService builds a webhooks.Service over the given repository.
func NewService(subs repository.WebhookSubscriptionRepository) *Service {
	return &Service{Subscriptions: subs}
}

// Create registers a new enabled subscription for targetURL. The URL must
// be absolute http or https.
func (s *Service) Create(ctx context.Context, db repository.DBTX, targetURL string) (*domain.WebhookSubscription, error) {
	u, err := url.Parse(targetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.ErrValidation("target_url must be an absolute http(s) URL")
	}

	sub := &domain.WebhookSubscription{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		URL:       targetURL,
		Enabled:   true,
	}
	if err := s.Subscriptions.Insert(ctx, db, sub); err != nil {
		return nil, fmt.Errorf("create webhook subscription: %w", err)
	}
	return sub, nil
}

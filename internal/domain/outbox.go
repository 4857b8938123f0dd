package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// OutboxStatus is the lifecycle state of a staged OutboxMessage.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSent    OutboxStatus = "SENT"
	OutboxSkipped OutboxStatus = "SKIPPED"
	OutboxFailed  OutboxStatus = "FAILED"
	OutboxDead    OutboxStatus = "DEAD"
)

// DefaultMaxAttempts is the attempt ceiling a freshly staged OutboxMessage
// carries unless a caller overrides it.
const DefaultMaxAttempts = 10

// DestinationQueuePrefix and DestinationWebhookPrefix are the two
// recognized outbox destination schemes; anything else is unknown.
const (
	DestinationQueuePrefix   = "queue:"
	DestinationWebhookPrefix = "webhook:"
)

// QueueDestination builds a "queue:<topic>" destination string.
func QueueDestination(topic string) string { return DestinationQueuePrefix + topic }

// WebhookDestination builds a "webhook:<subscription_id>" destination string.
func WebhookDestination(subscriptionID string) string { return DestinationWebhookPrefix + subscriptionID }

// ParseDestination splits a destination into its scheme-specific target:
// "topic" for queue:<topic>, "subscription_id" for webhook:<id>. ok is
// false for any string carrying neither recognized prefix.
func ParseDestination(dest string) (scheme, target string, ok bool) {
	switch {
	case strings.HasPrefix(dest, DestinationQueuePrefix):
		return "queue", strings.TrimPrefix(dest, DestinationQueuePrefix), true
	case strings.HasPrefix(dest, DestinationWebhookPrefix):
		return "webhook", strings.TrimPrefix(dest, DestinationWebhookPrefix), true
	default:
		return "", "", false
	}
}

// OutboxMessage is a mutable delivery envelope staged alongside the
// DomainEvent it carries. It is driven through its state machine by
// internal/dispatcher.Dispatcher.
type OutboxMessage struct {
	ID            string
	CreatedAt     time.Time
	EventID       string
	Destination   string
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	NextAttemptAt *time.Time
	LastError     *string
}

// WebhookSubscription is an externally registered delivery target for event
// fan-out. Secret is stored and loaded with the row but is not read by the
// dispatcher; its optional SignPayload hook receives only the request body.
type WebhookSubscription struct {
	ID        string
	CreatedAt time.Time
	URL       string
	Enabled   bool
	Secret    *string
}

// QueueMessage is the terminal artifact the dispatcher writes for every
// "queue:<topic>" destination it sends successfully.
type QueueMessage struct {
	ID        string
	CreatedAt time.Time
	Topic     string
	EventID   string
	Payload   json.RawMessage
}

// ReplayFilter narrows which outbox rows internal/replay.Replay re-arms.
// A nil field is ignored (matches everything).
type ReplayFilter struct {
	AggregateType *AccountType
	AggregateID   *string
	Destination   *string
}

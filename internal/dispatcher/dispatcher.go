// Package dispatcher drives staged outbox messages to their destinations:
// an internal queue sink (always) and optionally Kafka, or an outbound
// HTTP webhook call, retrying transient failures with bounded exponential
// backoff until success, a terminal per-row outcome, or dead-lettering.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/infra"
	"github.com/attaboy/ledgercore/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// maxBackoffSeconds caps the exponential backoff applied between delivery attempts.
const maxBackoffSeconds = 300

// maxBatchSize bounds how many rows one DispatchCycle call may pick up.
const maxBatchSize = 500

// RowResult reports the outcome of dispatching a single OutboxMessage within a cycle.
type RowResult struct {
	ID            string
	Destination   string
	Status        domain.OutboxStatus
	Error         string
	NextAttemptAt *time.Time
}

// CycleResult summarizes one DispatchCycle invocation.
type CycleResult struct {
	Processed int
	Rows      []RowResult
}

// SignPayload optionally signs the outgoing webhook body, returning a
// header name and value to attach to the request. Nil by default, leaving
// webhook delivery unsigned, matching the source's behavior.
type SignPayload func(payload []byte) (header, value string)

// Dispatcher polls due outbox rows and drives them through delivery.
type Dispatcher struct {
	Tx         repository.Transactor
	Outbox     repository.OutboxRepository
	Events     repository.EventRepository
	Webhooks   repository.WebhookSubscriptionRepository
	Queue      repository.QueueMessageRepository
	Kafka      *infra.KafkaProducer
	HTTPClient *http.Client
	Sign       SignPayload
	Logger     *slog.Logger
}

// New builds a Dispatcher. httpClient and logger fall back to sane
// defaults (5-second timeout client, slog.Default()) when nil.
func New(tx repository.Transactor, outbox repository.OutboxRepository, events repository.EventRepository, webhooks repository.WebhookSubscriptionRepository, queue repository.QueueMessageRepository, kafka *infra.KafkaProducer, httpClient *http.Client, logger *slog.Logger) *Dispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Tx:         tx,
		Outbox:     outbox,
		Events:     events,
		Webhooks:   webhooks,
		Queue:      queue,
		Kafka:      kafka,
		HTTPClient: httpClient,
		Logger:     logger,
	}
}

// DispatchCycle selects up to maxMessages due rows (clamped to [1, 500])
// and drives each through the outbox state machine. The whole cycle runs
// inside one transaction and commits once after the batch: the status
// changes, including the QueueMessage a queue: delivery writes alongside
// its SENT flip, land atomically, so a crash mid-cycle leaves every
// selected row untouched rather than half-delivered. Dispatch errors
// never escape as a Go error from this call; they are reported per-row in
// the returned result. A non-nil error here means the selection query,
// writing a row's status back, or the commit itself failed; the whole
// cycle's transaction is then rolled back.
func (d *Dispatcher) DispatchCycle(ctx context.Context, maxMessages int) (*CycleResult, error) {
	if maxMessages < 1 {
		maxMessages = 1
	}
	if maxMessages > maxBatchSize {
		maxMessages = maxBatchSize
	}
	now := time.Now().UTC()

	result := &CycleResult{}
	err := d.Tx.WithTx(ctx, func(tx pgx.Tx) error {
		rows, err := d.Outbox.SelectDue(ctx, tx, now, maxMessages)
		if err != nil {
			return fmt.Errorf("select due outbox rows: %w", err)
		}
		for i := range rows {
			msg := rows[i]
			rr, err := d.dispatchOne(ctx, tx, &msg, now)
			if err != nil {
				return err
			}
			result.Rows = append(result.Rows, rr)
			result.Processed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch cycle: %w", err)
	}
	return result, nil
}

// dispatchOne drives a single row through the state machine. A non-nil
// error is a persistence failure writing the row's status back; delivery
// failures are folded into the row's status and returned in the RowResult.
func (d *Dispatcher) dispatchOne(ctx context.Context, db repository.DBTX, msg *domain.OutboxMessage, now time.Time) (RowResult, error) {
	if msg.Attempts >= msg.MaxAttempts {
		msg.Status = domain.OutboxDead
		if err := d.Outbox.Update(ctx, db, msg); err != nil {
			return RowResult{}, fmt.Errorf("mark outbox row dead: %w", err)
		}
		return RowResult{ID: msg.ID, Destination: msg.Destination, Status: domain.OutboxDead}, nil
	}

	msg.Attempts++

	scheme, target, ok := domain.ParseDestination(msg.Destination)
	if !ok {
		errMsg := "unknown_destination:" + msg.Destination
		msg.Status = domain.OutboxFailed
		msg.LastError = &errMsg
		if err := d.Outbox.Update(ctx, db, msg); err != nil {
			return RowResult{}, fmt.Errorf("mark outbox row failed: %w", err)
		}
		return RowResult{ID: msg.ID, Destination: msg.Destination, Status: domain.OutboxFailed, Error: errMsg}, nil
	}

	var dispatchErr error
	switch scheme {
	case "queue":
		dispatchErr = d.dispatchQueue(ctx, db, msg, target)
	case "webhook":
		dispatchErr = d.dispatchWebhook(ctx, db, msg, target)
	}

	if msg.Status == domain.OutboxSkipped {
		if err := d.Outbox.Update(ctx, db, msg); err != nil {
			return RowResult{}, fmt.Errorf("mark outbox row skipped: %w", err)
		}
		return RowResult{ID: msg.ID, Destination: msg.Destination, Status: msg.Status, Error: deref(msg.LastError)}, nil
	}

	if dispatchErr != nil {
		errMsg := dispatchErr.Error()
		msg.LastError = &errMsg
		if msg.Attempts >= msg.MaxAttempts {
			msg.Status = domain.OutboxDead
			msg.NextAttemptAt = nil
		} else {
			backoff := backoffSeconds(msg.Attempts)
			next := now.Add(time.Duration(backoff) * time.Second)
			msg.Status = domain.OutboxPending
			msg.NextAttemptAt = &next
		}
		if err := d.Outbox.Update(ctx, db, msg); err != nil {
			return RowResult{}, fmt.Errorf("reschedule outbox row: %w", err)
		}
		return RowResult{ID: msg.ID, Destination: msg.Destination, Status: msg.Status, Error: errMsg, NextAttemptAt: msg.NextAttemptAt}, nil
	}

	msg.Status = domain.OutboxSent
	msg.LastError = nil
	msg.NextAttemptAt = nil
	if err := d.Outbox.Update(ctx, db, msg); err != nil {
		return RowResult{}, fmt.Errorf("mark outbox row sent: %w", err)
	}
	return RowResult{ID: msg.ID, Destination: msg.Destination, Status: domain.OutboxSent}, nil
}

func (d *Dispatcher) dispatchQueue(ctx context.Context, db repository.DBTX, msg *domain.OutboxMessage, topic string) error {
	envelope, err := d.envelopeFor(ctx, db, msg)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	qm := &domain.QueueMessage{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Topic:     topic,
		EventID:   msg.EventID,
		Payload:   payload,
	}
	if err := d.Queue.Insert(ctx, db, qm); err != nil {
		return fmt.Errorf("insert queue message: %w", err)
	}

	// Kafka publication is best-effort on top of the QueueMessage row,
	// which remains the terminal artifact regardless of outcome here.
	if d.Kafka != nil {
		if err := d.Kafka.Publish(ctx, topic, []byte(msg.EventID), payload); err != nil {
			d.Logger.Warn("kafka publish failed", "topic", topic, "event_id", msg.EventID, "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) dispatchWebhook(ctx context.Context, db repository.DBTX, msg *domain.OutboxMessage, subscriptionID string) error {
	sub, err := d.Webhooks.Get(ctx, db, subscriptionID)
	if err != nil {
		return fmt.Errorf("load webhook subscription: %w", err)
	}
	if sub == nil || !sub.Enabled {
		errMsg := "subscription_disabled_or_missing"
		msg.Status = domain.OutboxSkipped
		msg.LastError = &errMsg
		return nil
	}

	envelope, err := d.envelopeFor(ctx, db, msg)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.Sign != nil {
		header, value := d.Sign(payload)
		req.Header.Set(header, value)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) envelopeFor(ctx context.Context, db repository.DBTX, msg *domain.OutboxMessage) (domain.Envelope, error) {
	event, err := d.Events.FindByID(ctx, db, msg.EventID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("load event for outbox message: %w", err)
	}
	if event == nil {
		return domain.Envelope{}, fmt.Errorf("event %s not found for outbox message %s", msg.EventID, msg.ID)
	}
	return domain.NewEnvelope(event), nil
}

// backoffSeconds computes min(300, 2^(attempts-1)).
func backoffSeconds(attempts int) int {
	backoff := 1
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= maxBackoffSeconds {
			return maxBackoffSeconds
		}
	}
	if backoff > maxBackoffSeconds {
		return maxBackoffSeconds
	}
	return backoff
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

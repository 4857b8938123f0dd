package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSeconds(t *testing.T) {
	tests := []struct {
		attempts int
		want     int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 8},
		{9, 256},
		{10, 300},
		{20, 300},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffSeconds(tt.attempts))
	}
}

// fakeTransactor satisfies repository.Transactor without a real database:
// it runs the cycle body directly, handing it a nil transaction the fake
// repositories below never touch.
type fakeTransactor struct{}

func (fakeTransactor) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeOutboxRepo struct {
	rows    map[string]*domain.OutboxMessage
	updated []domain.OutboxMessage
}

func newFakeOutboxRepo(rows ...*domain.OutboxMessage) *fakeOutboxRepo {
	m := map[string]*domain.OutboxMessage{}
	for _, r := range rows {
		m[r.ID] = r
	}
	return &fakeOutboxRepo{rows: m}
}

func (f *fakeOutboxRepo) Insert(ctx context.Context, db repository.DBTX, m *domain.OutboxMessage) error {
	f.rows[m.ID] = m
	return nil
}
func (f *fakeOutboxRepo) SelectDue(ctx context.Context, db repository.DBTX, now time.Time, limit int) ([]domain.OutboxMessage, error) {
	var out []domain.OutboxMessage
	for _, r := range f.rows {
		if r.Status != domain.OutboxPending {
			continue
		}
		if r.NextAttemptAt != nil && r.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, *r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
func (f *fakeOutboxRepo) Update(ctx context.Context, db repository.DBTX, m *domain.OutboxMessage) error {
	f.rows[m.ID] = m
	f.updated = append(f.updated, *m)
	return nil
}
func (f *fakeOutboxRepo) ResetForReplay(ctx context.Context, db repository.DBTX, filter domain.ReplayFilter, now time.Time) (int, error) {
	return 0, nil
}

type fakeEventRepo struct {
	events map[string]*domain.DomainEvent
}

func (f *fakeEventRepo) Insert(ctx context.Context, db repository.DBTX, e *domain.DomainEvent) error {
	f.events[e.ID] = e
	return nil
}
func (f *fakeEventRepo) FindByIdempotencyKey(ctx context.Context, db repository.DBTX, aggregateType domain.AccountType, key string) (*domain.DomainEvent, error) {
	return nil, nil
}
func (f *fakeEventRepo) FindByID(ctx context.Context, db repository.DBTX, id string) (*domain.DomainEvent, error) {
	return f.events[id], nil
}

type fakeWebhookRepo struct {
	subs map[string]*domain.WebhookSubscription
}

func (f *fakeWebhookRepo) Insert(ctx context.Context, db repository.DBTX, s *domain.WebhookSubscription) error {
	f.subs[s.ID] = s
	return nil
}
func (f *fakeWebhookRepo) Get(ctx context.Context, db repository.DBTX, id string) (*domain.WebhookSubscription, error) {
	return f.subs[id], nil
}
func (f *fakeWebhookRepo) ListEnabled(ctx context.Context, db repository.DBTX) ([]domain.WebhookSubscription, error) {
	var out []domain.WebhookSubscription
	for _, s := range f.subs {
		if s.Enabled {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeQueueRepo struct {
	messages []domain.QueueMessage
}

func (f *fakeQueueRepo) Insert(ctx context.Context, db repository.DBTX, m *domain.QueueMessage) error {
	f.messages = append(f.messages, *m)
	return nil
}

func newEvent(id string) *domain.DomainEvent {
	return &domain.DomainEvent{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		AggregateType: domain.AccountTypeDeposit,
		AggregateID:   uuid.NewString(),
		EventType:     domain.EventDepositPosted,
		EventTime:     time.Now().UTC(),
		Payload:       []byte(`{"amount":"10.00"}`),
	}
}

func TestDispatchCycle_QueueDestinationSent(t *testing.T) {
	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: "queue:domain_events", Status: domain.OutboxPending, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)
	queue := &fakeQueueRepo{}
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{}}

	d := New(fakeTransactor{}, outbox, events, webhooks, queue, nil, nil, nil)
	result, err := d.DispatchCycle(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, domain.OutboxSent, outbox.rows[msg.ID].Status)
	assert.Len(t, queue.messages, 1)
}

func TestDispatchCycle_WebhookSkippedWhenDisabled(t *testing.T) {
	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	subID := uuid.NewString()
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{
		subID: {ID: subID, URL: "http://example.invalid", Enabled: false},
	}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: domain.WebhookDestination(subID), Status: domain.OutboxPending, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)
	queue := &fakeQueueRepo{}

	d := New(fakeTransactor{}, outbox, events, webhooks, queue, nil, nil, nil)
	result, err := d.DispatchCycle(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	row := outbox.rows[msg.ID]
	assert.Equal(t, domain.OutboxSkipped, row.Status)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "subscription_disabled_or_missing", *row.LastError)
}

func TestDispatchCycle_WebhookSentOn2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	subID := uuid.NewString()
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{
		subID: {ID: subID, URL: server.URL, Enabled: true},
	}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: domain.WebhookDestination(subID), Status: domain.OutboxPending, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)
	queue := &fakeQueueRepo{}

	d := New(fakeTransactor{}, outbox, events, webhooks, queue, nil, server.Client(), nil)
	_, err := d.DispatchCycle(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxSent, outbox.rows[msg.ID].Status)
}

func TestDispatchCycle_UnknownDestinationFails(t *testing.T) {
	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: "sms:+1555", Status: domain.OutboxPending, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{}}
	queue := &fakeQueueRepo{}

	d := New(fakeTransactor{}, outbox, events, webhooks, queue, nil, nil, nil)
	_, err := d.DispatchCycle(context.Background(), 10)
	require.NoError(t, err)
	row := outbox.rows[msg.ID]
	assert.Equal(t, domain.OutboxFailed, row.Status)
	assert.Equal(t, "unknown_destination:sms:+1555", *row.LastError)
}

func TestDispatchCycle_AttemptsExceededGoesDeadWithoutAttempt(t *testing.T) {
	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: "queue:domain_events", Status: domain.OutboxPending, Attempts: 10, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{}}
	queue := &fakeQueueRepo{}

	d := New(fakeTransactor{}, outbox, events, webhooks, queue, nil, nil, nil)
	_, err := d.DispatchCycle(context.Background(), 10)
	require.NoError(t, err)
	row := outbox.rows[msg.ID]
	assert.Equal(t, domain.OutboxDead, row.Status)
	assert.Equal(t, 10, row.Attempts)
	assert.Empty(t, queue.messages)
}

func TestDispatchCycle_WebhookRetriesThenSent(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	subID := uuid.NewString()
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{
		subID: {ID: subID, URL: server.URL, Enabled: true},
	}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: domain.WebhookDestination(subID), Status: domain.OutboxPending, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)

	d := New(fakeTransactor{}, outbox, events, webhooks, &fakeQueueRepo{}, nil, server.Client(), nil)
	for cycle := 1; cycle <= 4; cycle++ {
		// Make the row due again regardless of the backoff it was given.
		outbox.rows[msg.ID].NextAttemptAt = nil

		_, err := d.DispatchCycle(context.Background(), 10)
		require.NoError(t, err)

		row := outbox.rows[msg.ID]
		assert.Equal(t, cycle, row.Attempts)
		if cycle < 4 {
			assert.Equal(t, domain.OutboxPending, row.Status)
			require.NotNil(t, row.NextAttemptAt)
		}
	}
	row := outbox.rows[msg.ID]
	assert.Equal(t, domain.OutboxSent, row.Status)
	assert.Equal(t, 4, row.Attempts)
	assert.Nil(t, row.LastError)
}

func TestDispatchCycle_WebhookFailureReschedulesWithBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	eventID := uuid.NewString()
	events := &fakeEventRepo{events: map[string]*domain.DomainEvent{eventID: newEvent(eventID)}}
	subID := uuid.NewString()
	webhooks := &fakeWebhookRepo{subs: map[string]*domain.WebhookSubscription{
		subID: {ID: subID, URL: server.URL, Enabled: true},
	}}
	msg := &domain.OutboxMessage{ID: uuid.NewString(), EventID: eventID, Destination: domain.WebhookDestination(subID), Status: domain.OutboxPending, MaxAttempts: 10}
	outbox := newFakeOutboxRepo(msg)
	queue := &fakeQueueRepo{}

	d := New(fakeTransactor{}, outbox, events, webhooks, queue, nil, server.Client(), nil)
	_, err := d.DispatchCycle(context.Background(), 10)
	require.NoError(t, err)
	row := outbox.rows[msg.ID]
	assert.Equal(t, domain.OutboxPending, row.Status)
	assert.Equal(t, 1, row.Attempts)
	require.NotNil(t, row.NextAttemptAt)
	assert.WithinDuration(t, time.Now().UTC().Add(1*time.Second), *row.NextAttemptAt, 2*time.Second)
}

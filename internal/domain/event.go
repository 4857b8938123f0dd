package domain

import (
	"encoding/json"
	"time"
)

// EventType enumerates every domain event this system can emit.
type EventType string

const (
	EventDepositAccountOpened EventType = "DEPOSIT_ACCOUNT_OPENED"
	EventDepositPosted        EventType = "DEPOSIT_POSTED"
	EventWithdrawalPosted     EventType = "WITHDRAWAL_POSTED"
	EventInterestAccrued      EventType = "INTEREST_ACCRUED"
	EventMonthEndApplied      EventType = "MONTH_END_APPLIED"

	EventLoanOpened          EventType = "LOAN_OPENED"
	EventLoanInterestAccrued EventType = "LOAN_INTEREST_ACCRUED"
	EventLoanRepaymentPosted EventType = "LOAN_REPAYMENT_POSTED"
)

// DomainEvent is an immutable record of a committed business fact. The
// pair (AggregateType, IdempotencyKey), when the key is non-null, is the
// lookup key used for replay detection (see internal/ledger.Engine.FindIdempotent).
type DomainEvent struct {
	ID             string
	CreatedAt      time.Time
	AggregateType  AccountType
	AggregateID    string
	EventType      EventType
	EventTime      time.Time
	Payload        json.RawMessage
	IdempotencyKey *string
}

// Envelope is the JSON wire shape delivered to both queue and webhook
// destinations by the outbox dispatcher.
type Envelope struct {
	EventID       string          `json:"event_id"`
	AggregateType AccountType     `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	EventTime     time.Time       `json:"event_time"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope builds the wire envelope for a domain event.
func NewEnvelope(e *DomainEvent) Envelope {
	return Envelope{
		EventID:       e.ID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		EventTime:     e.EventTime,
		Payload:       e.Payload,
	}
}

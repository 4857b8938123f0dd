package domain

import "encoding/json"

// Event payload shapes, one struct per EventType, giving each a typed Go
// shape rather than carrying the payload as loose JSON end to end.

// DepositAccountOpenedPayload is the payload for EventDepositAccountOpened.
type DepositAccountOpenedPayload struct {
	OpenedOn           string `json:"opened_on"`
	AnnualInterestRate string `json:"annual_interest_rate"`
	DayCountBasis      int    `json:"day_count_basis"`
}

// DepositPostedPayload is the payload for EventDepositPosted.
type DepositPostedPayload struct {
	Amount        string `json:"amount"`
	EffectiveDate string `json:"effective_date"`
}

// WithdrawalPostedPayload is the payload for EventWithdrawalPosted.
type WithdrawalPostedPayload struct {
	Amount        string `json:"amount"`
	EffectiveDate string `json:"effective_date"`
}

// InterestAccruedPayload is shared by EventInterestAccrued and
// EventLoanInterestAccrued.
type InterestAccruedPayload struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
	Days     int64  `json:"days"`
	Interest string `json:"interest"`
}

// MonthEndAppliedPayload is the payload for EventMonthEndApplied.
type MonthEndAppliedPayload struct {
	EffectiveDate  string `json:"effective_date"`
	InterestPosted string `json:"interest_posted"`
}

// LoanOpenedPayload is the payload for EventLoanOpened.
type LoanOpenedPayload struct {
	OpenedOn           string `json:"opened_on"`
	Principal          string `json:"principal"`
	AnnualInterestRate string `json:"annual_interest_rate"`
	DayCountBasis      int    `json:"day_count_basis"`
}

// LoanRepaymentPostedPayload is the payload for EventLoanRepaymentPosted.
type LoanRepaymentPostedPayload struct {
	Amount        string `json:"amount"`
	InterestPaid  string `json:"interest_paid"`
	PrincipalPaid string `json:"principal_paid"`
	EffectiveDate string `json:"effective_date"`
}

// MarshalPayload encodes a typed payload struct to the json.RawMessage
// shape DomainEvent.Payload and the outbox envelope store and transmit.
// Every payload type above is a plain struct of strings/ints, so encoding
// cannot fail in practice; a failure here indicates a programmer error in
// a newly added payload type, not a runtime condition callers should
// recover from.
func MarshalPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic("domain: marshal event payload: " + err.Error())
	}
	return b
}

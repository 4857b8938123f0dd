// Package loan implements the loan account aggregate: open/disburse,
// accrue daily interest on the outstanding principal, and post a repayment
// with interest-first allocation.
package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/ledger"
	"github.com/attaboy/ledgercore/internal/money"
	"github.com/attaboy/ledgercore/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const aggregateType = domain.AccountTypeLoan

// Service executes the loan aggregate's commands, locking its target
// account first in every mutating call, the same pattern deposit.Service uses.
type Service struct {
	Accounts repository.LoanAccountRepository
	Engine   *ledger.Engine
}

// NewService builds a loan.Service over the given repository and ledger engine.
func NewService(accounts repository.LoanAccountRepository, engine *ledger.Engine) *Service {
	return &Service{Accounts: accounts, Engine: engine}
}

func (s *Service) lock(ctx context.Context, tx pgx.Tx, accountID string) (*domain.LoanAccount, error) {
	acct, err := s.Accounts.LockForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lock loan account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound(accountID)
	}
	return acct, nil
}

// OpenParams are the inputs to Open.
type OpenParams struct {
	OpenedOn           time.Time
	Principal          money.Money
	AnnualInterestRate money.Rate
	DayCountBasis      int
	IdempotencyKey     string
}

// Open disburses a new loan account for principal, writing a
// loan_receivable/cash ledger entry and emitting LOAN_OPENED.
func (s *Service) Open(ctx context.Context, tx pgx.Tx, params OpenParams) (*domain.LoanAccount, error) {
	if params.Principal.Sign() <= 0 {
		return nil, domain.ErrValidation("principal must be > 0")
	}
	if params.AnnualInterestRate.Sign() < 0 {
		return nil, domain.ErrValidation("annual_interest_rate must be >= 0")
	}
	if params.DayCountBasis < 360 {
		return nil, domain.ErrValidation("day_count_basis must be >= 360")
	}

	if params.IdempotencyKey != "" {
		existing, err := s.Engine.FindIdempotent(ctx, tx, aggregateType, params.IdempotencyKey, domain.EventLoanOpened, "")
		if err != nil {
			return nil, err
		}
		if existing != nil {
			acct, err := s.Accounts.FindByID(ctx, tx, existing.AggregateID)
			if err != nil {
				return nil, fmt.Errorf("open loan: %w", err)
			}
			if acct != nil {
				return acct, nil
			}
		}
	}

	acct := &domain.LoanAccount{
		ID:                   uuid.NewString(),
		OpenedOn:             params.OpenedOn,
		Status:               domain.StatusOpen,
		Principal:            params.Principal,
		AnnualInterestRate:   params.AnnualInterestRate,
		DayCountBasis:        params.DayCountBasis,
		OutstandingPrincipal: params.Principal,
		AccruedInterest:      money.Zero,
		LastAccrualDate:      params.OpenedOn,
	}
	if err := s.Accounts.Insert(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("open loan: %w", err)
	}

	txnID := txnIDFor("loan_disburse", params.IdempotencyKey)
	entry := &domain.LedgerEntry{
		EffectiveDate: params.OpenedOn,
		AccountType:   aggregateType,
		AccountID:     acct.ID,
		TxnID:         txnID,
		Description:   "Loan disbursement",
		DebitAccount:  domain.BookLoanReceivable,
		CreditAccount: domain.BookCash,
		Amount:        params.Principal,
	}
	if err := s.Engine.PostEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("open loan: %w", err)
	}

	payload := domain.MarshalPayload(domain.LoanOpenedPayload{
		OpenedOn:           params.OpenedOn.Format("2006-01-02"),
		Principal:          params.Principal.String(),
		AnnualInterestRate: params.AnnualInterestRate.String(),
		DayCountBasis:      params.DayCountBasis,
	})
	var key *string
	if params.IdempotencyKey != "" {
		key = &params.IdempotencyKey
	}
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventLoanOpened, payload, time.Now().UTC(), key); err != nil {
		return nil, fmt.Errorf("open loan: %w", err)
	}
	return acct, nil
}

// Accrue adds interest on the outstanding principal for the window since
// the account's last accrual date. Identical shape to deposit.Accrue but
// the balance it accrues against is OutstandingPrincipal.
func (s *Service) Accrue(ctx context.Context, tx pgx.Tx, accountID string, asOfDate time.Time) (*domain.LoanAccount, error) {
	acct, err := s.lock(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	start := acct.LastAccrualDate
	if !asOfDate.After(start) {
		return acct, nil
	}

	days := int64(asOfDate.Sub(start).Hours() / 24)
	interest := money.AccrueInterest(acct.OutstandingPrincipal, acct.AnnualInterestRate, days, acct.DayCountBasis)

	acct.AccruedInterest = acct.AccruedInterest.Add(interest)
	acct.LastAccrualDate = asOfDate
	if err := s.Accounts.Update(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("accrue: %w", err)
	}

	payload := domain.MarshalPayload(domain.InterestAccruedPayload{
		FromDate: start.Format("2006-01-02"),
		ToDate:   asOfDate.Format("2006-01-02"),
		Days:     days,
		Interest: interest.String(),
	})
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventLoanInterestAccrued, payload, time.Now().UTC(), nil); err != nil {
		return nil, fmt.Errorf("accrue: %w", err)
	}
	return acct, nil
}

// RepayParams are the inputs to Repay.
type RepayParams struct {
	AccountID        string
	Amount           money.Money
	EffectiveDate    time.Time
	IdempotencyKey   string
	// RejectOverpayment turns an amount exceeding interest due plus
	// principal due into a validation error instead of the default
	// behavior of silently dropping the excess, matching the original
	// implementation's unconditional silent-drop when false.
	RejectOverpayment bool
}

// Repay allocates amount first against accrued interest, then against
// outstanding principal, posting one ledger row per non-zero bucket and
// emitting LOAN_REPAYMENT_POSTED.
func (s *Service) Repay(ctx context.Context, tx pgx.Tx, params RepayParams) (*domain.LoanAccount, error) {
	if params.Amount.Sign() <= 0 {
		return nil, domain.ErrValidation("amount must be > 0")
	}

	acct, err := s.lock(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	if params.IdempotencyKey != "" {
		existing, err := s.Engine.FindIdempotent(ctx, tx, aggregateType, params.IdempotencyKey, domain.EventLoanRepaymentPosted, params.AccountID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return acct, nil
		}
	}

	interestDue := acct.AccruedInterest
	principalDue := acct.OutstandingPrincipal

	payInterest := params.Amount.Min(interestDue)
	remaining := params.Amount.Sub(payInterest)
	payPrincipal := remaining.Min(principalDue)

	if params.RejectOverpayment && params.Amount.Cmp(payInterest.Add(payPrincipal)) > 0 {
		return nil, domain.ErrOverpayment()
	}

	acct.AccruedInterest = interestDue.Sub(payInterest)
	acct.OutstandingPrincipal = principalDue.Sub(payPrincipal)
	if err := s.Accounts.Update(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("repay: %w", err)
	}

	txnBase := params.IdempotencyKey
	if txnBase == "" {
		txnBase = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if payInterest.Sign() > 0 {
		entry := &domain.LedgerEntry{
			EffectiveDate: params.EffectiveDate,
			AccountType:   aggregateType,
			AccountID:     acct.ID,
			TxnID:         "loan_payment_interest:" + txnBase,
			Description:   "Loan payment (interest)",
			DebitAccount:  domain.BookCash,
			CreditAccount: domain.BookInterestIncome,
			Amount:        payInterest,
		}
		if err := s.Engine.PostEntry(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("repay: %w", err)
		}
	}

	if payPrincipal.Sign() > 0 {
		entry := &domain.LedgerEntry{
			EffectiveDate: params.EffectiveDate,
			AccountType:   aggregateType,
			AccountID:     acct.ID,
			TxnID:         "loan_payment_principal:" + txnBase,
			Description:   "Loan payment (principal)",
			DebitAccount:  domain.BookCash,
			CreditAccount: domain.BookLoanReceivable,
			Amount:        payPrincipal,
		}
		if err := s.Engine.PostEntry(ctx, tx, entry); err != nil {
			return nil, fmt.Errorf("repay: %w", err)
		}
	}

	payload := domain.MarshalPayload(domain.LoanRepaymentPostedPayload{
		Amount:        params.Amount.String(),
		InterestPaid:  payInterest.String(),
		PrincipalPaid: payPrincipal.String(),
		EffectiveDate: params.EffectiveDate.Format("2006-01-02"),
	})
	var key *string
	if params.IdempotencyKey != "" {
		key = &params.IdempotencyKey
	}
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventLoanRepaymentPosted, payload, time.Now().UTC(), key); err != nil {
		return nil, fmt.Errorf("repay: %w", err)
	}
	return acct, nil
}

func txnIDFor(prefix, idempotencyKey string) string {
	if idempotencyKey != "" {
		return prefix + ":" + idempotencyKey
	}
	return prefix + ":" + time.Now().UTC().Format(time.RFC3339Nano)
}

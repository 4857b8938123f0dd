// Package deposit implements the deposit account aggregate: open, post a
// deposit or withdrawal, accrue daily interest, and apply the month-end
// posting that moves accrued interest into the customer's balance.
package deposit

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

const aggregateType = domain.AccountTypeDeposit

// Service executes the deposit aggregate's commands. Every mutating method
// takes a pgx.Tx and locks its target account as the first statement,
// following a lock-then-idempotency-check-then-post pattern; callers open
// and commit the transaction.
type Service struct {
	Accounts repository.DepositAccountRepository
	Engine   *ledger.Engine
}

// NewService builds a deposit.Service over the given repository and ledger engine.
func NewService(accounts repository.DepositAccountRepository, engine *ledger.Engine) *Service {
	return &Service{Accounts: accounts, Engine: engine}
}

func (s *Service) lock(ctx context.Context, tx pgx.Tx, accountID string) (*domain.DepositAccount, error) {
	acct, err := s.Accounts.LockForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("lock deposit account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound(accountID)
	}
	return acct, nil
}

// OpenParams are the inputs to Open.
type OpenParams struct {
	OpenedOn           time.Time
	AnnualInterestRate money.Rate
	DayCountBasis      int
	IdempotencyKey     string
}

// Open creates a new deposit account with a zero balance, emitting
// DEPOSIT_ACCOUNT_OPENED. A repeated idempotency key replays the account
// already opened under it rather than creating a second account.
func (s *Service) Open(ctx context.Context, tx pgx.Tx, params OpenParams) (*domain.DepositAccount, error) {
	if params.AnnualInterestRate.Sign() < 0 {
		return nil, domain.ErrValidation("annual_interest_rate must be >= 0")
	}
	if params.DayCountBasis < 360 {
		return nil, domain.ErrValidation("day_count_basis must be >= 360")
	}

	if params.IdempotencyKey != "" {
		existing, err := s.Engine.FindIdempotent(ctx, tx, aggregateType, params.IdempotencyKey, domain.EventDepositAccountOpened, "")
		if err != nil {
			return nil, err
		}
		if existing != nil {
			acct, err := s.Accounts.FindByID(ctx, tx, existing.AggregateID)
			if err != nil {
				return nil, fmt.Errorf("open deposit: %w", err)
			}
			if acct != nil {
				return acct, nil
			}
		}
	}

	now := time.Now().UTC()
	acct := &domain.DepositAccount{
		ID:                 uuid.NewString(),
		OpenedOn:           params.OpenedOn,
		Status:             domain.StatusOpen,
		AnnualInterestRate: params.AnnualInterestRate,
		DayCountBasis:      params.DayCountBasis,
		CurrentBalance:     money.Zero,
		AccruedInterest:    money.Zero,
		LastAccrualDate:    params.OpenedOn,
	}
	if err := s.Accounts.Insert(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("open deposit: %w", err)
	}

	payload := domain.MarshalPayload(domain.DepositAccountOpenedPayload{
		OpenedOn:           params.OpenedOn.Format("2006-01-02"),
		AnnualInterestRate: params.AnnualInterestRate.String(),
		DayCountBasis:      params.DayCountBasis,
	})
	var key *string
	if params.IdempotencyKey != "" {
		key = &params.IdempotencyKey
	}
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventDepositAccountOpened, payload, now, key); err != nil {
		return nil, fmt.Errorf("open deposit: %w", err)
	}
	return acct, nil
}

// Deposit credits accountID's current_balance by amount, posting a
// cash/customer_deposits ledger pair and emitting DEPOSIT_POSTED.
func (s *Service) Deposit(ctx context.Context, tx pgx.Tx, accountID string, amount money.Money, effectiveDate time.Time, idempotencyKey string) (*domain.DepositAccount, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrValidation("amount must be > 0")
	}

	acct, err := s.lock(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.Engine.FindIdempotent(ctx, tx, aggregateType, idempotencyKey, domain.EventDepositPosted, accountID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return acct, nil
		}
	}

	acct.CurrentBalance = acct.CurrentBalance.Add(amount)
	if err := s.Accounts.Update(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	txnID := txnIDFor("deposit", idempotencyKey)
	entry := &domain.LedgerEntry{
		EffectiveDate: effectiveDate,
		AccountType:   aggregateType,
		AccountID:     acct.ID,
		TxnID:         txnID,
		Description:   "Customer deposit",
		DebitAccount:  domain.BookCash,
		CreditAccount: domain.BookCustomerDeposits,
		Amount:        amount,
	}
	if err := s.Engine.PostEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	payload := domain.MarshalPayload(domain.DepositPostedPayload{
		Amount:        amount.String(),
		EffectiveDate: effectiveDate.Format("2006-01-02"),
	})
	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventDepositPosted, payload, time.Now().UTC(), key); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return acct, nil
}

// Withdraw debits accountID's current_balance by amount, failing with
// insufficient_funds if the balance is too small.
func (s *Service) Withdraw(ctx context.Context, tx pgx.Tx, accountID string, amount money.Money, effectiveDate time.Time, idempotencyKey string) (*domain.DepositAccount, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrValidation("amount must be > 0")
	}

	acct, err := s.lock(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.Engine.FindIdempotent(ctx, tx, aggregateType, idempotencyKey, domain.EventWithdrawalPosted, accountID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return acct, nil
		}
	}

	if acct.CurrentBalance.Cmp(amount) < 0 {
		return nil, domain.ErrInsufficientFunds()
	}

	acct.CurrentBalance = acct.CurrentBalance.Sub(amount)
	if err := s.Accounts.Update(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	txnID := txnIDFor("withdrawal", idempotencyKey)
	entry := &domain.LedgerEntry{
		EffectiveDate: effectiveDate,
		AccountType:   aggregateType,
		AccountID:     acct.ID,
		TxnID:         txnID,
		Description:   "Customer withdrawal",
		DebitAccount:  domain.BookCustomerDeposits,
		CreditAccount: domain.BookCash,
		Amount:        amount,
	}
	if err := s.Engine.PostEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	payload := domain.MarshalPayload(domain.WithdrawalPostedPayload{
		Amount:        amount.String(),
		EffectiveDate: effectiveDate.Format("2006-01-02"),
	})
	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventWithdrawalPosted, payload, time.Now().UTC(), key); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return acct, nil
}

// Accrue adds interest on the current balance for the window since the
// account's last accrual date, using the flat-balance day-count formula. A
// no-op (no state change, no event) when asOfDate doesn't move the window
// forward.
func (s *Service) Accrue(ctx context.Context, tx pgx.Tx, accountID string, asOfDate time.Time) (*domain.DepositAccount, error) {
	acct, err := s.lock(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	start := acct.LastAccrualDate
	if !asOfDate.After(start) {
		return acct, nil
	}

	days := int64(asOfDate.Sub(start).Hours() / 24)
	interest := money.AccrueInterest(acct.CurrentBalance, acct.AnnualInterestRate, days, acct.DayCountBasis)

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
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventInterestAccrued, payload, time.Now().UTC(), nil); err != nil {
		return nil, fmt.Errorf("accrue: %w", err)
	}
	return acct, nil
}

// ApplyMonthEnd moves accrued_interest into current_balance and zeroes it,
// posting an interest_expense/customer_deposits ledger pair. A no-op when
// there is no accrued interest to post.
func (s *Service) ApplyMonthEnd(ctx context.Context, tx pgx.Tx, accountID string, effectiveDate time.Time) (*domain.DepositAccount, error) {
	acct, err := s.lock(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	if acct.AccruedInterest.IsZero() {
		return acct, nil
	}

	accrued := acct.AccruedInterest
	acct.CurrentBalance = acct.CurrentBalance.Add(accrued)
	acct.AccruedInterest = money.Zero
	if err := s.Accounts.Update(ctx, tx, acct); err != nil {
		return nil, fmt.Errorf("month end: %w", err)
	}

	txnID := fmt.Sprintf("interest_post:%s:%s", effectiveDate.Format("2006-01-02"), acct.ID)
	entry := &domain.LedgerEntry{
		EffectiveDate: effectiveDate,
		AccountType:   aggregateType,
		AccountID:     acct.ID,
		TxnID:         txnID,
		Description:   "Month-end interest posting",
		DebitAccount:  domain.BookInterestExpense,
		CreditAccount: domain.BookCustomerDeposits,
		Amount:        accrued,
	}
	if err := s.Engine.PostEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("month end: %w", err)
	}

	payload := domain.MarshalPayload(domain.MonthEndAppliedPayload{
		EffectiveDate:  effectiveDate.Format("2006-01-02"),
		InterestPosted: accrued.String(),
	})
	if _, err := s.Engine.AppendEvent(ctx, tx, aggregateType, acct.ID, domain.EventMonthEndApplied, payload, time.Now().UTC(), nil); err != nil {
		return nil, fmt.Errorf("month end: %w", err)
	}
	return acct, nil
}

func txnIDFor(prefix, idempotencyKey string) string {
	if idempotencyKey != "" {
		return prefix + ":" + idempotencyKey
	}
	return prefix + ":" + time.Now().UTC().Format(time.RFC3339Nano)
}

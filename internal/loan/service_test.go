package loan

import (
	"context"
	"testing"
	"time"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/ledger"
	"github.com/attaboy/ledgercore/internal/money"
	"github.com/attaboy/ledgercore/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{ pgx.Tx }

type fakeLoanAccountRepo struct {
	byID map[string]*domain.LoanAccount
}

func newFakeLoanAccountRepo() *fakeLoanAccountRepo {
	return &fakeLoanAccountRepo{byID: map[string]*domain.LoanAccount{}}
}
func (f *fakeLoanAccountRepo) Insert(ctx context.Context, db repository.DBTX, a *domain.LoanAccount) error {
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}
func (f *fakeLoanAccountRepo) FindByID(ctx context.Context, db repository.DBTX, id string) (*domain.LoanAccount, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}
func (f *fakeLoanAccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.LoanAccount, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}
func (f *fakeLoanAccountRepo) Update(ctx context.Context, db repository.DBTX, a *domain.LoanAccount) error {
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}

type fakeLedgerRepo struct{ inserted []domain.LedgerEntry }

func (f *fakeLedgerRepo) Insert(ctx context.Context, db repository.DBTX, e *domain.LedgerEntry) error {
	f.inserted = append(f.inserted, *e)
	return nil
}
func (f *fakeLedgerRepo) Query(ctx context.Context, db repository.DBTX, filter repository.LedgerFilter) ([]domain.LedgerEntry, error) {
	return f.inserted, nil
}

type fakeEventRepo struct {
	inserted []domain.DomainEvent
	byKey    map[string]*domain.DomainEvent
}

func newFakeEventRepo() *fakeEventRepo { return &fakeEventRepo{byKey: map[string]*domain.DomainEvent{}} }
func (f *fakeEventRepo) Insert(ctx context.Context, db repository.DBTX, e *domain.DomainEvent) error {
	f.inserted = append(f.inserted, *e)
	if e.IdempotencyKey != nil {
		f.byKey[string(e.AggregateType)+"|"+*e.IdempotencyKey] = e
	}
	return nil
}
func (f *fakeEventRepo) FindByIdempotencyKey(ctx context.Context, db repository.DBTX, aggregateType domain.AccountType, key string) (*domain.DomainEvent, error) {
	return f.byKey[string(aggregateType)+"|"+key], nil
}
func (f *fakeEventRepo) FindByID(ctx context.Context, db repository.DBTX, id string) (*domain.DomainEvent, error) {
	for i := range f.inserted {
		if f.inserted[i].ID == id {
			return &f.inserted[i], nil
		}
	}
	return nil, nil
}

type fakeOutboxRepo struct{ inserted []domain.OutboxMessage }

func (f *fakeOutboxRepo) Insert(ctx context.Context, db repository.DBTX, m *domain.OutboxMessage) error {
	f.inserted = append(f.inserted, *m)
	return nil
}
func (f *fakeOutboxRepo) SelectDue(ctx context.Context, db repository.DBTX, now time.Time, limit int) ([]domain.OutboxMessage, error) {
	return nil, nil
}
func (f *fakeOutboxRepo) Update(ctx context.Context, db repository.DBTX, m *domain.OutboxMessage) error {
	return nil
}
func (f *fakeOutboxRepo) ResetForReplay(ctx context.Context, db repository.DBTX, filter domain.ReplayFilter, now time.Time) (int, error) {
	return 0, nil
}

type fakeWebhookRepo struct{}

func (f *fakeWebhookRepo) Insert(ctx context.Context, db repository.DBTX, s *domain.WebhookSubscription) error {
	return nil
}
func (f *fakeWebhookRepo) Get(ctx context.Context, db repository.DBTX, id string) (*domain.WebhookSubscription, error) {
	return nil, nil
}
func (f *fakeWebhookRepo) ListEnabled(ctx context.Context, db repository.DBTX) ([]domain.WebhookSubscription, error) {
	return nil, nil
}

func newTestService() (*Service, *fakeLoanAccountRepo) {
	accounts := newFakeLoanAccountRepo()
	engine := ledger.NewEngine(&fakeLedgerRepo{}, newFakeEventRepo(), &fakeOutboxRepo{}, &fakeWebhookRepo{})
	return NewService(accounts, engine), accounts
}

func openTestLoan(t *testing.T, s *Service, principal, rate string) *domain.LoanAccount {
	t.Helper()
	acct, err := s.Open(context.Background(), fakeTx{}, OpenParams{
		OpenedOn:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Principal:          money.MustParseMoney(principal),
		AnnualInterestRate: money.MustParseRate(rate),
		DayCountBasis:      365,
	})
	require.NoError(t, err)
	return acct
}

func TestOpen_RejectsNonPositivePrincipal(t *testing.T) {
	s, _ := newTestService()
	_, err := s.Open(context.Background(), fakeTx{}, OpenParams{
		OpenedOn:           time.Now().UTC(),
		Principal:          money.Zero,
		AnnualInterestRate: money.MustParseRate("0.05"),
		DayCountBasis:      365,
	})
	assert.Error(t, err)
}

func TestOpen_IdempotentReplay(t *testing.T) {
	s, _ := newTestService()
	params := OpenParams{
		OpenedOn:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Principal:          money.MustParseMoney("5000.00"),
		AnnualInterestRate: money.MustParseRate("0.06"),
		DayCountBasis:      365,
		IdempotencyKey:     "loan-open-1",
	}
	first, err := s.Open(context.Background(), fakeTx{}, params)
	require.NoError(t, err)
	second, err := s.Open(context.Background(), fakeTx{}, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAccrue_AccruesOnOutstandingPrincipal(t *testing.T) {
	s, _ := newTestService()
	acct := openTestLoan(t, s, "1000.00", "0.05")

	asOf := acct.OpenedOn.AddDate(0, 0, 365)
	result, err := s.Accrue(context.Background(), fakeTx{}, acct.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, "50.00", result.AccruedInterest.String())
}

func TestAccrue_NoOpWhenAsOfDateDoesNotAdvance(t *testing.T) {
	s, _ := newTestService()
	acct := openTestLoan(t, s, "1000.00", "0.05")

	result, err := s.Accrue(context.Background(), fakeTx{}, acct.ID, acct.LastAccrualDate)
	require.NoError(t, err)
	assert.True(t, result.AccruedInterest.IsZero())
}

func TestRepay_InterestFirstAllocation(t *testing.T) {
	s, accounts := newTestService()
	acct := openTestLoan(t, s, "1000.00", "0.05")
	asOf := acct.OpenedOn.AddDate(0, 0, 365)
	_, err := s.Accrue(context.Background(), fakeTx{}, acct.ID, asOf)
	require.NoError(t, err)

	result, err := s.Repay(context.Background(), fakeTx{}, RepayParams{
		AccountID:     acct.ID,
		Amount:        money.MustParseMoney("100.00"),
		EffectiveDate: asOf,
	})
	require.NoError(t, err)
	assert.True(t, result.AccruedInterest.IsZero())
	assert.Equal(t, "950.00", result.OutstandingPrincipal.String())
	assert.Equal(t, "950.00", accounts.byID[acct.ID].OutstandingPrincipal.String())
}

func TestRepay_DefaultSilentlyDropsOverpayment(t *testing.T) {
	s, _ := newTestService()
	acct := openTestLoan(t, s, "100.00", "0.05")

	result, err := s.Repay(context.Background(), fakeTx{}, RepayParams{
		AccountID:     acct.ID,
		Amount:        money.MustParseMoney("150.00"),
		EffectiveDate: acct.OpenedOn,
	})
	require.NoError(t, err)
	assert.True(t, result.OutstandingPrincipal.IsZero())
}

func TestRepay_RejectOverpaymentFailsBeforeMutating(t *testing.T) {
	s, accounts := newTestService()
	acct := openTestLoan(t, s, "100.00", "0.05")

	_, err := s.Repay(context.Background(), fakeTx{}, RepayParams{
		AccountID:         acct.ID,
		Amount:            money.MustParseMoney("150.00"),
		EffectiveDate:     acct.OpenedOn,
		RejectOverpayment: true,
	})
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "overpayment", appErr.Code)
	assert.Equal(t, "100.00", accounts.byID[acct.ID].OutstandingPrincipal.String())
}

func TestRepay_IdempotentReplayDoesNotDoubleApply(t *testing.T) {
	s, accounts := newTestService()
	acct := openTestLoan(t, s, "1000.00", "0.05")

	_, err := s.Repay(context.Background(), fakeTx{}, RepayParams{
		AccountID:      acct.ID,
		Amount:         money.MustParseMoney("100.00"),
		EffectiveDate:  acct.OpenedOn,
		IdempotencyKey: "repay-1",
	})
	require.NoError(t, err)
	_, err = s.Repay(context.Background(), fakeTx{}, RepayParams{
		AccountID:      acct.ID,
		Amount:         money.MustParseMoney("100.00"),
		EffectiveDate:  acct.OpenedOn,
		IdempotencyKey: "repay-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "900.00", accounts.byID[acct.ID].OutstandingPrincipal.String())
}

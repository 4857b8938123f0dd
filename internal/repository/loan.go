package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type loanAccountRepo struct{}

// NewLoanAccountRepository returns a pgx-backed LoanAccountRepository.
func NewLoanAccountRepository() LoanAccountRepository {
	return &loanAccountRepo{}
}

func (r *loanAccountRepo) Insert(ctx context.Context, db DBTX, a *domain.LoanAccount) error {
	_, err := db.Exec(ctx, `
		INSERT INTO loan_accounts
		  (id, opened_on, status, principal, annual_interest_rate, day_count_basis,
		   outstanding_principal, accrued_interest, last_accrual_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OpenedOn, string(a.Status), a.Principal.Numeric(), a.AnnualInterestRate.Numeric(),
		a.DayCountBasis, a.OutstandingPrincipal.Numeric(), a.AccruedInterest.Numeric(), a.LastAccrualDate,
	)
	if err != nil {
		return fmt.Errorf("insert loan account: %w", err)
	}
	return nil
}

func (r *loanAccountRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.LoanAccount, error) {
	row := db.QueryRow(ctx, `
		SELECT id, opened_on, status, principal, annual_interest_rate, day_count_basis,
		       outstanding_principal, accrued_interest, last_accrual_date
		FROM loan_accounts WHERE id = $1`, id)
	return scanLoanAccount(row)
}

func (r *loanAccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.LoanAccount, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, opened_on, status, principal, annual_interest_rate, day_count_basis,
		       outstanding_principal, accrued_interest, last_accrual_date
		FROM loan_accounts WHERE id = $1 FOR UPDATE`, id)
	return scanLoanAccount(row)
}

func (r *loanAccountRepo) Update(ctx context.Context, db DBTX, a *domain.LoanAccount) error {
	_, err := db.Exec(ctx, `
		UPDATE loan_accounts SET
		  status = $2, outstanding_principal = $3, accrued_interest = $4, last_accrual_date = $5
		WHERE id = $1`,
		a.ID, string(a.Status), a.OutstandingPrincipal.Numeric(), a.AccruedInterest.Numeric(), a.LastAccrualDate,
	)
	if err != nil {
		return fmt.Errorf("update loan account: %w", err)
	}
	return nil
}

func scanLoanAccount(row pgx.Row) (*domain.LoanAccount, error) {
	var a domain.LoanAccount
	var status string
	var principalNum, rateNum, outstandingNum, accruedNum pgtype.Numeric
	err := row.Scan(&a.ID, &a.OpenedOn, &status, &principalNum, &rateNum, &a.DayCountBasis,
		&outstandingNum, &accruedNum, &a.LastAccrualDate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan loan account: %w", err)
	}
	a.Status = domain.AccountStatus(status)

	var convErr error
	a.Principal, convErr = money.MoneyFromNumeric(principalNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert principal: %w", convErr)
	}
	a.AnnualInterestRate, convErr = money.RateFromNumeric(rateNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert annual_interest_rate: %w", convErr)
	}
	a.OutstandingPrincipal, convErr = money.MoneyFromNumeric(outstandingNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert outstanding_principal: %w", convErr)
	}
	a.AccruedInterest, convErr = money.MoneyFromNumeric(accruedNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert accrued_interest: %w", convErr)
	}
	return &a, nil
}

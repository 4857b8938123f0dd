package repository

import (
	"context"
	"fmt"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type depositAccountRepo struct{}

// NewDepositAccountRepository returns a pgx-backed DepositAccountRepository.
func NewDepositAccountRepository() DepositAccountRepository {
	return &depositAccountRepo{}
}

func (r *depositAccountRepo) Insert(ctx context.Context, db DBTX, a *domain.DepositAccount) error {
	_, err := db.Exec(ctx, `
		INSERT INTO deposit_accounts
		  (id, opened_on, status, annual_interest_rate, day_count_basis,
		   current_balance, accrued_interest, last_accrual_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OpenedOn, string(a.Status), a.AnnualInterestRate.Numeric(), a.DayCountBasis,
		a.CurrentBalance.Numeric(), a.AccruedInterest.Numeric(), a.LastAccrualDate,
	)
	if err != nil {
		return fmt.Errorf("insert deposit account: %w", err)
	}
	return nil
}

func (r *depositAccountRepo) FindByID(ctx context.Context, db DBTX, id string) (*domain.DepositAccount, error) {
	row := db.QueryRow(ctx, `
		SELECT id, opened_on, status, annual_interest_rate, day_count_basis,
		       current_balance, accrued_interest, last_accrual_date
		FROM deposit_accounts WHERE id = $1`, id)
	return scanDepositAccount(row)
}

func (r *depositAccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.DepositAccount, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, opened_on, status, annual_interest_rate, day_count_basis,
		       current_balance, accrued_interest, last_accrual_date
		FROM deposit_accounts WHERE id = $1 FOR UPDATE`, id)
	return scanDepositAccount(row)
}

func (r *depositAccountRepo) Update(ctx context.Context, db DBTX, a *domain.DepositAccount) error {
	_, err := db.Exec(ctx, `
		UPDATE deposit_accounts SET
		  status = $2, current_balance = $3, accrued_interest = $4, last_accrual_date = $5
		WHERE id = $1`,
		a.ID, string(a.Status), a.CurrentBalance.Numeric(), a.AccruedInterest.Numeric(), a.LastAccrualDate,
	)
	if err != nil {
		return fmt.Errorf("update deposit account: %w", err)
	}
	return nil
}

func scanDepositAccount(row pgx.Row) (*domain.DepositAccount, error) {
	var a domain.DepositAccount
	var status string
	var rateNum, balNum, accruedNum pgtype.Numeric
	err := row.Scan(&a.ID, &a.OpenedOn, &status, &rateNum, &a.DayCountBasis,
		&balNum, &accruedNum, &a.LastAccrualDate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan deposit account: %w", err)
	}
	a.Status = domain.AccountStatus(status)

	var convErr error
	a.AnnualInterestRate, convErr = money.RateFromNumeric(rateNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert annual_interest_rate: %w", convErr)
	}
	a.CurrentBalance, convErr = money.MoneyFromNumeric(balNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert current_balance: %w", convErr)
	}
	a.AccruedInterest, convErr = money.MoneyFromNumeric(accruedNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert accrued_interest: %w", convErr)
	}
	return &a, nil
}

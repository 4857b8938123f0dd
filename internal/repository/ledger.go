package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type ledgerRepo struct{}

// NewLedgerRepository returns a pgx-backed LedgerRepository.
func NewLedgerRepository() LedgerRepository {
	return &ledgerRepo{}
}

func (r *ledgerRepo) Insert(ctx context.Context, db DBTX, e *domain.LedgerEntry) error {
	_, err := db.Exec(ctx, `
		INSERT INTO ledger_entries
		  (id, created_at, effective_date, account_type, account_id, txn_id,
		   description, debit_account, credit_account, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.CreatedAt, e.EffectiveDate, string(e.AccountType), e.AccountID, e.TxnID,
		e.Description, e.DebitAccount, e.CreditAccount, e.Amount.Numeric(),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Query builds a dynamic WHERE clause from the non-nil filter fields,
// appending each present predicate and its placeholder in turn.
func (r *ledgerRepo) Query(ctx context.Context, db DBTX, filter LedgerFilter) ([]domain.LedgerEntry, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AccountType != nil {
		conds = append(conds, "account_type = "+arg(string(*filter.AccountType)))
	}
	if filter.AccountID != nil {
		conds = append(conds, "account_id = "+arg(*filter.AccountID))
	}
	if filter.TxnID != nil {
		conds = append(conds, "txn_id = "+arg(*filter.TxnID))
	}
	if filter.EffectiveFrom != nil {
		conds = append(conds, "effective_date >= "+arg(*filter.EffectiveFrom))
	}
	if filter.EffectiveTo != nil {
		conds = append(conds, "effective_date <= "+arg(*filter.EffectiveTo))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT id, created_at, effective_date, account_type, account_id, txn_id,
		       description, debit_account, credit_account, amount
		FROM ledger_entries
		%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, arg(limit), arg(filter.Offset))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var accountType string
	var amountNum pgtype.Numeric
	err := row.Scan(&e.ID, &e.CreatedAt, &e.EffectiveDate, &accountType, &e.AccountID, &e.TxnID,
		&e.Description, &e.DebitAccount, &e.CreditAccount, &amountNum)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.AccountType = domain.AccountType(accountType)
	e.Amount, err = money.MoneyFromNumeric(amountNum)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	return &e, nil
}

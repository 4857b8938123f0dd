package domain

import (
	"time"

	"github.com/attaboy/ledgercore/internal/money"
)

// AccountType distinguishes which aggregate a ledger entry belongs to.
type AccountType string

const (
	AccountTypeDeposit AccountType = "deposit_account"
	AccountTypeLoan    AccountType = "loan_account"
)

// Chart-of-accounts names used on the credit/debit side of ledger entries.
// These are not account rows themselves; they are the fixed internal
// books (cash, customer_deposits, ...) every entry balances against.
const (
	BookCash             = "cash"
	BookCustomerDeposits = "customer_deposits"
	BookInterestExpense  = "interest_expense"
	BookLoanReceivable   = "loan_receivable"
	BookInterestIncome   = "interest_income"
)

// LedgerEntry is an immutable, append-only double-entry journal row.
type LedgerEntry struct {
	ID            string
	CreatedAt     time.Time
	EffectiveDate time.Time
	AccountType   AccountType
	AccountID     string
	TxnID         string
	Description   string
	DebitAccount  string
	CreditAccount string
	Amount        money.Money
}

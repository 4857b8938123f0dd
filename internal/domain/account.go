package domain

import (
	"time"

	"github.com/attaboy/ledgercore/internal/money"
)

// AccountStatus is the lifecycle status of a deposit or loan account.
// Only OPEN is reachable today; the type is kept distinct from a bare
// string so a future status can be added without touching call sites.
type AccountStatus string

// StatusOpen is the only status an account can currently hold.
const StatusOpen AccountStatus = "OPEN"

// DepositAccount is an interest-bearing customer deposit account.
type DepositAccount struct {
	ID                 string
	OpenedOn           time.Time
	Status             AccountStatus
	AnnualInterestRate money.Rate
	DayCountBasis      int
	CurrentBalance     money.Money
	AccruedInterest    money.Money
	LastAccrualDate    time.Time
}

// LoanAccount is an amortizing customer loan account.
type LoanAccount struct {
	ID                   string
	OpenedOn             time.Time
	Status               AccountStatus
	Principal            money.Money
	AnnualInterestRate   money.Rate
	DayCountBasis        int
	OutstandingPrincipal money.Money
	AccruedInterest      money.Money
	LastAccrualDate      time.Time
}

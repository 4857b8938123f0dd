// Package replaytest provides invariant checks against a snapshot of
// ledger/outbox state, the same "run commands, then validate a fixed set
// of named invariants" idiom as a deterministic replay harness, adapted
// here from a balance-replay check into the double-entry and outbox
// invariants this system must hold after any sequence of commands.
package replaytest

import (
	"fmt"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/money"
)

// InvariantCheck records the outcome of validating a single named
// invariant against a state snapshot.
type InvariantCheck struct {
	Name   string
	Passed bool
	Detail string
}

// Report is the result of running every invariant in this package against
// one snapshot.
type Report struct {
	Checks    []InvariantCheck
	AllPassed bool
}

func (r *Report) add(c InvariantCheck) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.AllPassed = false
	}
}

// CheckDepositLedgerParity validates the deposit book's balance parity:
// the sum of ledger credits to customer_deposits minus debits from
// customer_deposits, plus every INTEREST_ACCRUED-derived posted interest
// amount (i.e. every customer_deposits-crediting interest_expense entry,
// already included in the credit sum below since month-end posts through
// the same book), equals the sum of current_balance across the given
// deposit accounts as of the ledger snapshot provided.
func CheckDepositLedgerParity(entries []domain.LedgerEntry, accounts []domain.DepositAccount) InvariantCheck {
	net := money.Zero
	for _, e := range entries {
		switch {
		case e.CreditAccount == domain.BookCustomerDeposits:
			net = net.Add(e.Amount)
		case e.DebitAccount == domain.BookCustomerDeposits:
			net = net.Sub(e.Amount)
		}
	}

	total := money.Zero
	for _, a := range accounts {
		total = total.Add(a.CurrentBalance)
	}

	passed := net.Cmp(total) == 0
	return InvariantCheck{
		Name:   "deposit_ledger_parity",
		Passed: passed,
		Detail: fmt.Sprintf("ledger_net=%s balances_total=%s", net, total),
	}
}

// CheckLoanPrincipalBounds validates 0 <= outstanding_principal <=
// principal for every loan account given.
func CheckLoanPrincipalBounds(accounts []domain.LoanAccount) InvariantCheck {
	for _, a := range accounts {
		if a.OutstandingPrincipal.IsNegative() {
			return InvariantCheck{
				Name:   "loan_principal_bounds",
				Passed: false,
				Detail: fmt.Sprintf("account %s outstanding_principal=%s < 0", a.ID, a.OutstandingPrincipal),
			}
		}
		if a.OutstandingPrincipal.Cmp(a.Principal) > 0 {
			return InvariantCheck{
				Name:   "loan_principal_bounds",
				Passed: false,
				Detail: fmt.Sprintf("account %s outstanding_principal=%s > principal=%s", a.ID, a.OutstandingPrincipal, a.Principal),
			}
		}
	}
	return InvariantCheck{Name: "loan_principal_bounds", Passed: true, Detail: fmt.Sprintf("%d accounts checked", len(accounts))}
}

// CheckOutboxAttemptsBounded validates that no OutboxMessage ever carries
// attempts > max_attempts.
func CheckOutboxAttemptsBounded(messages []domain.OutboxMessage) InvariantCheck {
	for _, m := range messages {
		if m.Attempts > m.MaxAttempts {
			return InvariantCheck{
				Name:   "outbox_attempts_bounded",
				Passed: false,
				Detail: fmt.Sprintf("message %s attempts=%d > max_attempts=%d", m.ID, m.Attempts, m.MaxAttempts),
			}
		}
	}
	return InvariantCheck{Name: "outbox_attempts_bounded", Passed: true, Detail: fmt.Sprintf("%d messages checked", len(messages))}
}

// CheckSentHasArtifact validates that every SENT outbox message destined
// for a queue:<topic> has a corresponding QueueMessage row. webhook: SENT
// rows are not checked here: their artifact is an HTTP 2xx response that
// leaves no durable row, so callers asserting
// that property must do so against the HTTP stub a test installs.
func CheckSentHasArtifact(messages []domain.OutboxMessage, queueRows []domain.QueueMessage) InvariantCheck {
	byEvent := make(map[string]bool, len(queueRows))
	for _, q := range queueRows {
		byEvent[q.EventID] = true
	}
	for _, m := range messages {
		if m.Status != domain.OutboxSent {
			continue
		}
		scheme, _, ok := domain.ParseDestination(m.Destination)
		if !ok || scheme != "queue" {
			continue
		}
		if !byEvent[m.EventID] {
			return InvariantCheck{
				Name:   "sent_has_artifact",
				Passed: false,
				Detail: fmt.Sprintf("message %s SENT to %s has no queue_messages row for event %s", m.ID, m.Destination, m.EventID),
			}
		}
	}
	return InvariantCheck{Name: "sent_has_artifact", Passed: true, Detail: fmt.Sprintf("%d messages checked", len(messages))}
}

// Run executes every invariant check this package defines against the
// given snapshot and returns the combined report.
func Run(entries []domain.LedgerEntry, deposits []domain.DepositAccount, loans []domain.LoanAccount, outbox []domain.OutboxMessage, queue []domain.QueueMessage) *Report {
	r := &Report{AllPassed: true}
	r.add(CheckDepositLedgerParity(entries, deposits))
	r.add(CheckLoanPrincipalBounds(loans))
	r.add(CheckOutboxAttemptsBounded(outbox))
	r.add(CheckSentHasArtifact(outbox, queue))
	return r
}

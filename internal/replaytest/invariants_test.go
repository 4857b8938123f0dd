package replaytest

import (
	"testing"

	"github.com/attaboy/ledgercore/internal/domain"
	"github.com/attaboy/ledgercore/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestCheckDepositLedgerParity(t *testing.T) {
	accounts := []domain.DepositAccount{
		{ID: "a1", CurrentBalance: money.MustParseMoney("100.27")},
	}
	entries := []domain.LedgerEntry{
		{DebitAccount: domain.BookCash, CreditAccount: domain.BookCustomerDeposits, Amount: money.MustParseMoney("100.00")},
		{DebitAccount: domain.BookInterestExpense, CreditAccount: domain.BookCustomerDeposits, Amount: money.MustParseMoney("0.27")},
	}

	check := CheckDepositLedgerParity(entries, accounts)
	assert.True(t, check.Passed, check.Detail)
}

func TestCheckDepositLedgerParity_Violation(t *testing.T) {
	accounts := []domain.DepositAccount{{ID: "a1", CurrentBalance: money.MustParseMoney("200.00")}}
	entries := []domain.LedgerEntry{
		{DebitAccount: domain.BookCash, CreditAccount: domain.BookCustomerDeposits, Amount: money.MustParseMoney("100.00")},
	}

	check := CheckDepositLedgerParity(entries, accounts)
	assert.False(t, check.Passed)
}

func TestCheckLoanPrincipalBounds(t *testing.T) {
	ok := []domain.LoanAccount{
		{ID: "l1", Principal: money.MustParseMoney("1000.00"), OutstandingPrincipal: money.MustParseMoney("809.86")},
	}
	assert.True(t, CheckLoanPrincipalBounds(ok).Passed)

	exceedsPrincipal := []domain.LoanAccount{
		{ID: "l2", Principal: money.MustParseMoney("1000.00"), OutstandingPrincipal: money.MustParseMoney("1000.01")},
	}
	assert.False(t, CheckLoanPrincipalBounds(exceedsPrincipal).Passed)

	negative := []domain.LoanAccount{
		{ID: "l3", Principal: money.MustParseMoney("1000.00"), OutstandingPrincipal: money.MustParseMoney("-0.01")},
	}
	assert.False(t, CheckLoanPrincipalBounds(negative).Passed)
}

func TestCheckOutboxAttemptsBounded(t *testing.T) {
	within := []domain.OutboxMessage{{ID: "m1", Attempts: 10, MaxAttempts: 10}}
	assert.True(t, CheckOutboxAttemptsBounded(within).Passed)

	exceeded := []domain.OutboxMessage{{ID: "m2", Attempts: 11, MaxAttempts: 10}}
	assert.False(t, CheckOutboxAttemptsBounded(exceeded).Passed)
}

func TestCheckSentHasArtifact(t *testing.T) {
	sentWithArtifact := []domain.OutboxMessage{
		{ID: "m1", EventID: "e1", Destination: "queue:domain_events", Status: domain.OutboxSent},
	}
	queue := []domain.QueueMessage{{ID: "q1", EventID: "e1", Topic: "domain_events"}}
	assert.True(t, CheckSentHasArtifact(sentWithArtifact, queue).Passed)

	sentMissingArtifact := []domain.OutboxMessage{
		{ID: "m2", EventID: "e2", Destination: "queue:domain_events", Status: domain.OutboxSent},
	}
	assert.False(t, CheckSentHasArtifact(sentMissingArtifact, nil).Passed)

	// webhook SENT rows are not required to have a queue_messages row.
	sentWebhook := []domain.OutboxMessage{
		{ID: "m3", EventID: "e3", Destination: "webhook:sub-1", Status: domain.OutboxSent},
	}
	assert.True(t, CheckSentHasArtifact(sentWebhook, nil).Passed)
}

func TestRun_AllPassed(t *testing.T) {
	entries := []domain.LedgerEntry{
		{DebitAccount: domain.BookCash, CreditAccount: domain.BookCustomerDeposits, Amount: money.MustParseMoney("100.00")},
	}
	deposits := []domain.DepositAccount{{ID: "a1", CurrentBalance: money.MustParseMoney("100.00")}}
	loans := []domain.LoanAccount{{ID: "l1", Principal: money.MustParseMoney("500.00"), OutstandingPrincipal: money.MustParseMoney("500.00")}}
	outbox := []domain.OutboxMessage{
		{ID: "m1", EventID: "e1", Destination: "queue:domain_events", Status: domain.OutboxSent, Attempts: 1, MaxAttempts: 10},
	}
	queue := []domain.QueueMessage{{ID: "q1", EventID: "e1", Topic: "domain_events"}}

	report := Run(entries, deposits, loans, outbox, queue)
	assert.True(t, report.AllPassed)
	assert.Len(t, report.Checks, 4)
}

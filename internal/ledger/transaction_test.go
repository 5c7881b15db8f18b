package ledger

import (
	"errors"
	"testing"
	"time"

	"settlement-ledger-go/internal/money"
)

func fundedAccount(t *testing.T, ownerID string, amount money.MinorUnits) *Account {
	t.Helper()
	acct, err := NewAccount(AccountUser, "user", ownerID, "BDT", time.Now())
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if amount > 0 {
		if err := acct.Credit(amount); err != nil {
			t.Fatalf("Failed to fund account: %v", err)
		}
	}
	return acct
}

func TestBalancedTransactionCompletes(t *testing.T) {
	now := time.Now()
	payer := fundedAccount(t, "payer", 10000)
	payee := fundedAccount(t, "payee", 0)

	txn, err := NewTransaction(TxnTransfer, "booking", "bk-1", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddEntry(payer, Debit, money.MinorUnits(500), "transfer out", now); err != nil {
		t.Fatalf("AddEntry debit failed: %v", err)
	}
	if err := txn.AddEntry(payee, Credit, money.MinorUnits(500), "transfer in", now); err != nil {
		t.Fatalf("AddEntry credit failed: %v", err)
	}
	if err := txn.Complete(now); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if txn.Status != TxnCompleted {
		t.Errorf("Expected COMPLETED, got %s", txn.Status)
	}
	if txn.Amount != 500 {
		t.Errorf("Expected amount 500, got %d", txn.Amount)
	}
	if txn.CompletedAt == nil {
		t.Error("Expected completion timestamp")
	}
	if payer.Balance != 9500 || payee.Balance != 500 {
		t.Errorf("Balances: payer=%d payee=%d", payer.Balance, payee.Balance)
	}
}

func TestUnbalancedTransactionRejected(t *testing.T) {
	now := time.Now()
	payer := fundedAccount(t, "payer", 10000)
	payee := fundedAccount(t, "payee", 0)

	txn, err := NewTransaction(TxnTransfer, "booking", "bk-1", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddEntry(payer, Debit, money.MinorUnits(500), "out", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.AddEntry(payee, Credit, money.MinorUnits(499), "in", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}

	err = txn.Complete(now)
	if !errors.Is(err, ErrUnbalancedTransaction) {
		t.Fatalf("Expected ErrUnbalancedTransaction, got %v", err)
	}
	if txn.Status != TxnPending {
		t.Errorf("Failed completion must leave status PENDING, got %s", txn.Status)
	}
}

func TestEmptyTransactionCannotComplete(t *testing.T) {
	now := time.Now()
	txn, err := NewTransaction(TxnAdjustment, "", "", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.Complete(now); !errors.Is(err, ErrUnbalancedTransaction) {
		t.Errorf("Expected ErrUnbalancedTransaction for empty group, got %v", err)
	}
}

func TestCurrencyMismatchRejected(t *testing.T) {
	now := time.Now()
	usd, err := NewAccount(AccountUser, "user", "u-usd", "USD", now)
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}

	txn, err := NewTransaction(TxnTransfer, "", "", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddEntry(usd, Credit, money.MinorUnits(100), "mismatch", now); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Expected ErrCurrencyMismatch, got %v", err)
	}
	if len(txn.Entries) != 0 {
		t.Error("Rejected entry must not be recorded")
	}
}

func TestFailedEntryRecordsNothing(t *testing.T) {
	now := time.Now()
	payer := fundedAccount(t, "payer", 100)

	txn, err := NewTransaction(TxnTransfer, "", "", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddEntry(payer, Debit, money.MinorUnits(500), "too much", now); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	if len(txn.Entries) != 0 {
		t.Error("Failed entry must not be recorded")
	}
	if payer.Balance != 100 {
		t.Errorf("Failed entry must not move funds, balance=%d", payer.Balance)
	}
}

func TestCaptureEntryConsumesHold(t *testing.T) {
	now := time.Now()
	provider := fundedAccount(t, "prov", 10000)
	if err := provider.Reserve(money.MinorUnits(4000)); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	clearing := fundedAccount(t, "clearing", 0)

	txn, err := NewTransaction(TxnProviderPayout, "payout", "po-1", "BDT", "system", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddCaptureEntry(provider, money.MinorUnits(4000), "capture", now); err != nil {
		t.Fatalf("AddCaptureEntry failed: %v", err)
	}
	if err := txn.AddEntry(clearing, Credit, money.MinorUnits(4000), "disbursement", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.Complete(now); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if provider.Balance != 6000 || provider.Reserved != 0 || provider.Available != 6000 {
		t.Errorf("Provider after capture: balance=%d available=%d reserved=%d",
			provider.Balance, provider.Available, provider.Reserved)
	}
	if txn.Entries[0].Type != Debit {
		t.Errorf("Capture entry must post as a debit, got %s", txn.Entries[0].Type)
	}
}

func TestEntryPositionsAreAppendOrdered(t *testing.T) {
	now := time.Now()
	payer := fundedAccount(t, "payer", 10000)
	payee := fundedAccount(t, "payee", 0)
	fee := fundedAccount(t, "fees", 0)

	txn, err := NewTransaction(TxnBookingPayment, "booking", "bk-9", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddEntry(payer, Debit, money.MinorUnits(1000), "payment", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.AddEntry(payee, Credit, money.MinorUnits(900), "provider share", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.AddEntry(fee, Credit, money.MinorUnits(100), "platform fee", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.Complete(now); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	for i, e := range txn.Entries {
		if e.Position != i {
			t.Errorf("Entry %d has position %d", i, e.Position)
		}
	}
}

func TestCompletedTransactionIsImmutable(t *testing.T) {
	now := time.Now()
	payer := fundedAccount(t, "payer", 1000)
	payee := fundedAccount(t, "payee", 0)

	txn, err := NewTransaction(TxnTransfer, "", "", "BDT", "tester", now)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	if err := txn.AddEntry(payer, Debit, money.MinorUnits(100), "", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.AddEntry(payee, Credit, money.MinorUnits(100), "", now); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if err := txn.Complete(now); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if err := txn.AddEntry(payer, Debit, money.MinorUnits(1), "", now); !errors.Is(err, ErrInvalidTransactionState) {
		t.Errorf("Expected ErrInvalidTransactionState, got %v", err)
	}
	if err := txn.Complete(now); !errors.Is(err, ErrInvalidTransactionState) {
		t.Errorf("Expected ErrInvalidTransactionState on double complete, got %v", err)
	}
	if err := txn.Fail("late", now); !errors.Is(err, ErrInvalidTransactionState) {
		t.Errorf("Expected ErrInvalidTransactionState on fail after complete, got %v", err)
	}
}

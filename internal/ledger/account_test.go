package ledger

import (
	"errors"
	"testing"
	"time"

	"settlement-ledger-go/internal/money"
)

func newTestAccount(t *testing.T) *Account {
	t.Helper()
	acct, err := NewAccount(AccountProvider, "provider", "prov-1", "BDT", time.Now())
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return acct
}

func checkInvariant(t *testing.T, acct *Account) {
	t.Helper()
	if acct.Balance != acct.Available+acct.Reserved {
		t.Fatalf("Invariant broken: balance=%d available=%d reserved=%d",
			acct.Balance, acct.Available, acct.Reserved)
	}
	if acct.Balance < 0 || acct.Available < 0 || acct.Reserved < 0 {
		t.Fatalf("Negative balance component: balance=%d available=%d reserved=%d",
			acct.Balance, acct.Available, acct.Reserved)
	}
}

func TestNewAccountValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewAccount("", "provider", "p1", "BDT", now); err == nil {
		t.Error("Expected error for empty type")
	}
	if _, err := NewAccount(AccountUser, "user", "", "BDT", now); err == nil {
		t.Error("Expected error for empty owner id")
	}
	if _, err := NewAccount(AccountUser, "user", "u1", "taka", now); err == nil {
		t.Error("Expected error for invalid currency")
	}

	acct, err := NewAccount(AccountUser, "user", "u1", "BDT", now)
	if err != nil {
		t.Fatalf("NewAccount failed: %v", err)
	}
	if acct.Status != AccountActive {
		t.Errorf("Expected active status, got %s", acct.Status)
	}
	if acct.Balance != 0 || acct.Available != 0 || acct.Reserved != 0 {
		t.Error("New account must start at zero")
	}
	if acct.Version != 1 {
		t.Errorf("Expected version 1, got %d", acct.Version)
	}
}

func TestCreditDebit(t *testing.T) {
	acct := newTestAccount(t)

	if err := acct.Credit(money.MinorUnits(10000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	checkInvariant(t, acct)
	if acct.Balance != 10000 || acct.Available != 10000 {
		t.Errorf("After credit: balance=%d available=%d", acct.Balance, acct.Available)
	}

	if err := acct.Debit(money.MinorUnits(4000)); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	checkInvariant(t, acct)
	if acct.Balance != 6000 || acct.Available != 6000 {
		t.Errorf("After debit: balance=%d available=%d", acct.Balance, acct.Available)
	}
}

func TestDebitInsufficientLeavesAccountUntouched(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(500)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	err := acct.Debit(money.MinorUnits(501))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	if acct.Balance != 500 || acct.Available != 500 || acct.Reserved != 0 {
		t.Errorf("Failed debit must not mutate: balance=%d available=%d reserved=%d",
			acct.Balance, acct.Available, acct.Reserved)
	}
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(10000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if err := acct.Reserve(money.MinorUnits(4000)); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	checkInvariant(t, acct)
	if acct.Balance != 10000 || acct.Available != 6000 || acct.Reserved != 4000 {
		t.Errorf("After reserve: balance=%d available=%d reserved=%d",
			acct.Balance, acct.Available, acct.Reserved)
	}

	if err := acct.Release(money.MinorUnits(4000)); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	checkInvariant(t, acct)
	if acct.Balance != 10000 || acct.Available != 10000 || acct.Reserved != 0 {
		t.Errorf("Reserve then release must restore the original split: balance=%d available=%d reserved=%d",
			acct.Balance, acct.Available, acct.Reserved)
	}
}

func TestReserveInsufficientAvailable(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(1000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := acct.Reserve(money.MinorUnits(800)); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// 200 available left; reserving against total balance must fail.
	err := acct.Reserve(money.MinorUnits(300))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	checkInvariant(t, acct)
}

func TestCaptureReserved(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(10000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := acct.Reserve(money.MinorUnits(4000)); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if err := acct.CaptureReserved(money.MinorUnits(4000)); err != nil {
		t.Fatalf("CaptureReserved failed: %v", err)
	}
	checkInvariant(t, acct)
	if acct.Balance != 6000 || acct.Available != 6000 || acct.Reserved != 0 {
		t.Errorf("After capture: balance=%d available=%d reserved=%d",
			acct.Balance, acct.Available, acct.Reserved)
	}
}

func TestCaptureMoreThanReserved(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(1000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := acct.Reserve(money.MinorUnits(300)); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	err := acct.CaptureReserved(money.MinorUnits(301))
	if !errors.Is(err, ErrInsufficientReserved) {
		t.Fatalf("Expected ErrInsufficientReserved, got %v", err)
	}
	if err := acct.Release(money.MinorUnits(301)); !errors.Is(err, ErrInsufficientReserved) {
		t.Fatalf("Expected ErrInsufficientReserved on release, got %v", err)
	}
	checkInvariant(t, acct)
}

func TestZeroAndNegativeAmountsRejected(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(1000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	ops := map[string]func(money.MinorUnits) error{
		"credit":  acct.Credit,
		"debit":   acct.Debit,
		"reserve": acct.Reserve,
		"release": acct.Release,
		"capture": acct.CaptureReserved,
	}
	for name, op := range ops {
		if err := op(0); err == nil {
			t.Errorf("Expected %s of zero to fail", name)
		}
		if err := op(money.MinorUnits(-5)); err == nil {
			t.Errorf("Expected %s of negative amount to fail", name)
		}
	}
	checkInvariant(t, acct)
}

func TestSuspendedAccountRejectsMutations(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(1000)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	acct.Suspend()

	if err := acct.Credit(money.MinorUnits(1)); !errors.Is(err, ErrAccountNotActive) {
		t.Errorf("Expected ErrAccountNotActive, got %v", err)
	}
	if err := acct.Debit(money.MinorUnits(1)); !errors.Is(err, ErrAccountNotActive) {
		t.Errorf("Expected ErrAccountNotActive, got %v", err)
	}
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	acct := newTestAccount(t)
	if err := acct.Credit(money.MinorUnits(100)); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := acct.Close(); err == nil {
		t.Error("Expected close of funded account to fail")
	}

	if err := acct.Debit(money.MinorUnits(100)); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if err := acct.Close(); err != nil {
		t.Errorf("Close of zero-balance account failed: %v", err)
	}
	if acct.Status != AccountClosed {
		t.Errorf("Expected closed status, got %s", acct.Status)
	}
}

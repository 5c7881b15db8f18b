package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlement-ledger-go/internal/database"
	"settlement-ledger-go/internal/events"
	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

func setupTestService(t *testing.T) (*Service, store.LedgerStore, func()) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	svc := NewService(db, events.NoopPublisher{}, nil, Config{MaxWebhookRetries: 3})
	return svc, db, func() { db.Close() }
}

// seedFundedAccount inserts a pre-funded account directly, standing in for
// money that entered the system before the test begins.
func seedFundedAccount(t *testing.T, st store.LedgerStore, typ ledger.AccountType, ownerID string, amount money.MinorUnits) *ledger.Account {
	t.Helper()
	acct, err := ledger.NewAccount(typ, string(typ), ownerID, "BDT", time.Now())
	if err != nil {
		t.Fatalf("Failed to build account: %v", err)
	}
	if amount > 0 {
		if err := acct.Credit(amount); err != nil {
			t.Fatalf("Failed to fund account: %v", err)
		}
	}
	if err := st.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	return acct
}

func mustBalances(t *testing.T, svc *Service, accountID string, balance, available, reserved money.MinorUnits) {
	t.Helper()
	acct, err := svc.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if acct.Balance != balance || acct.Available != available || acct.Reserved != reserved {
		t.Fatalf("Account %s: balance=%d available=%d reserved=%d, want %d/%d/%d",
			accountID, acct.Balance, acct.Available, acct.Reserved, balance, available, reserved)
	}
}

func TestProviderSettlementLifecycle(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	escrow := seedFundedAccount(t, st, ledger.AccountEscrow, "escrow", 100000)
	provider, err := svc.FindOrCreateAccount(ctx, ledger.AccountProvider, "provider", "prov-1", "BDT")
	if err != nil {
		t.Fatalf("FindOrCreateAccount failed: %v", err)
	}

	// Booking payment settles 10000 to the provider.
	txn, err := svc.PostTransaction(ctx, PostTransactionParams{
		Type:          ledger.TxnBookingPayment,
		Currency:      "BDT",
		ReferenceType: "booking",
		ReferenceID:   "bk-1",
		CreatedBy:     "system",
		Entries: []EntryParams{
			{AccountID: escrow.ID, Type: ledger.Debit, Amount: 10000, Description: "booking bk-1 payout"},
			{AccountID: provider.ID, Type: ledger.Credit, Amount: 10000, Description: "booking bk-1 earnings"},
		},
	})
	if err != nil {
		t.Fatalf("PostTransaction failed: %v", err)
	}
	if txn.Status != ledger.TxnCompleted || txn.Amount != 10000 {
		t.Errorf("Posted transaction: status=%s amount=%d", txn.Status, txn.Amount)
	}
	mustBalances(t, svc, provider.ID, 10000, 10000, 0)

	// A dispute hold is placed, then settled.
	if err := svc.ReserveFunds(ctx, provider.ID, 4000); err != nil {
		t.Fatalf("ReserveFunds failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 10000, 6000, 4000)
	if err := svc.CaptureFunds(ctx, provider.ID, 4000); err != nil {
		t.Fatalf("CaptureFunds failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 6000, 6000, 0)

	// Provider withdraws 5000 over bKash.
	p, err := svc.RequestPayout(ctx, RequestPayoutParams{
		ProviderID:  "prov-1",
		Amount:      5000,
		Currency:    "BDT",
		Method:      ledger.PayoutBkash,
		Mobile:      &ledger.MobilePayload{WalletNumber: "01712345678", AccountHolder: "Rahim"},
		RequestedBy: "prov-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 6000, 6000, 0)

	if _, err := svc.ApprovePayout(ctx, p.ID, "admin"); err != nil {
		t.Fatalf("ApprovePayout failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 6000, 1000, 5000)

	if _, err := svc.StartProcessingPayout(ctx, p.ID, "worker"); err != nil {
		t.Fatalf("StartProcessingPayout failed: %v", err)
	}
	got, err := svc.CompletePayout(ctx, p.ID, "ext-123")
	if err != nil {
		t.Fatalf("CompletePayout failed: %v", err)
	}
	if got.Status != ledger.PayoutPaid || got.ExternalTransactionID != "ext-123" {
		t.Errorf("Completed payout: status=%s external=%s", got.Status, got.ExternalTransactionID)
	}
	mustBalances(t, svc, provider.ID, 1000, 1000, 0)

	// The disbursement landed in the clearing account, fully backed by
	// posted entries.
	clearing, err := st.FindAccount(ctx, ledger.AccountReserve, platformOwnerID, "BDT")
	if err != nil {
		t.Fatalf("Clearing account lookup failed: %v", err)
	}
	mustBalances(t, svc, clearing.ID, 5000, 5000, 0)
	if err := svc.ReconcileAccount(ctx, clearing.ID); err != nil {
		t.Errorf("Clearing account reconciliation failed: %v", err)
	}

	history, err := svc.GetTransactionHistory(ctx, provider.ID, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 provider entries (credit, capture), got %d", len(history))
	}
}

func TestPostTransactionUnbalancedLeavesNothingBehind(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	payer := seedFundedAccount(t, st, ledger.AccountUser, "payer", 10000)
	payee := seedFundedAccount(t, st, ledger.AccountUser, "payee", 0)

	_, err := svc.PostTransaction(ctx, PostTransactionParams{
		Type:     ledger.TxnTransfer,
		Currency: "BDT",
		Entries: []EntryParams{
			{AccountID: payer.ID, Type: ledger.Debit, Amount: 500},
			{AccountID: payee.ID, Type: ledger.Credit, Amount: 499},
		},
	})
	if !errors.Is(err, ledger.ErrUnbalancedTransaction) {
		t.Fatalf("Expected ErrUnbalancedTransaction, got %v", err)
	}

	mustBalances(t, svc, payer.ID, 10000, 10000, 0)
	mustBalances(t, svc, payee.ID, 0, 0, 0)
}

func TestPostTransactionInsufficientFunds(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	payer := seedFundedAccount(t, st, ledger.AccountUser, "payer", 100)
	payee := seedFundedAccount(t, st, ledger.AccountUser, "payee", 0)

	_, err := svc.PostTransaction(ctx, PostTransactionParams{
		Type:     ledger.TxnTransfer,
		Currency: "BDT",
		Entries: []EntryParams{
			{AccountID: payer.ID, Type: ledger.Debit, Amount: 500},
			{AccountID: payee.ID, Type: ledger.Credit, Amount: 500},
		},
	})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}
	mustBalances(t, svc, payer.ID, 100, 100, 0)
	mustBalances(t, svc, payee.ID, 0, 0, 0)
}

func TestCancelApprovedPayoutReleasesHoldOnce(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 10000)

	p, err := svc.RequestPayout(ctx, RequestPayoutParams{
		ProviderID:  "prov-1",
		Amount:      3000,
		Currency:    "BDT",
		Method:      ledger.PayoutNagad,
		Mobile:      &ledger.MobilePayload{WalletNumber: "01812345678"},
		RequestedBy: "prov-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout failed: %v", err)
	}
	if _, err := svc.ApprovePayout(ctx, p.ID, "admin"); err != nil {
		t.Fatalf("ApprovePayout failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 10000, 7000, 3000)

	if _, err := svc.CancelPayout(ctx, p.ID, "provider changed mind"); err != nil {
		t.Fatalf("CancelPayout failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 10000, 10000, 0)

	// A second cancel is an invalid transition and must not move funds.
	if _, err := svc.CancelPayout(ctx, p.ID, "again"); !errors.Is(err, ledger.ErrInvalidPayoutTransition) {
		t.Fatalf("Expected ErrInvalidPayoutTransition, got %v", err)
	}
	mustBalances(t, svc, provider.ID, 10000, 10000, 0)
}

// stalePayoutStore serves one stale payout snapshot, standing in for a read
// that happened before a concurrent transition committed.
type stalePayoutStore struct {
	store.LedgerStore
	stale *ledger.Payout
}

func (s *stalePayoutStore) GetPayout(ctx context.Context, id string) (*ledger.Payout, error) {
	if s.stale != nil && s.stale.ID == id {
		p := *s.stale
		s.stale = nil
		return &p, nil
	}
	return s.LedgerStore.GetPayout(ctx, id)
}

func TestApprovePayoutLosesRaceAgainstCancel(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 10000)

	p, err := svc.RequestPayout(ctx, RequestPayoutParams{
		ProviderID:  "prov-1",
		Amount:      4000,
		Currency:    "BDT",
		Method:      ledger.PayoutBkash,
		Mobile:      &ledger.MobilePayload{WalletNumber: "01712345678"},
		RequestedBy: "prov-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout failed: %v", err)
	}

	// An approver loads the payout while it is still PENDING, then an
	// operator cancels it before the approval commits.
	snapshot, err := st.GetPayout(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayout failed: %v", err)
	}
	if _, err := svc.CancelPayout(ctx, p.ID, "operator cancelled"); err != nil {
		t.Fatalf("CancelPayout failed: %v", err)
	}

	approver := NewService(&stalePayoutStore{LedgerStore: st, stale: snapshot},
		events.NoopPublisher{}, nil, Config{MaxWebhookRetries: 3})
	_, err = approver.ApprovePayout(ctx, p.ID, "admin")
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification, got %v", err)
	}

	// The cancellation stands and no funds are held for the dead payout.
	got, err := svc.GetPayout(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayout failed: %v", err)
	}
	if got.Status != ledger.PayoutCancelled {
		t.Errorf("Expected CANCELLED to stand, got %s", got.Status)
	}
	mustBalances(t, svc, provider.ID, 10000, 10000, 0)
}

func TestCancelPendingPayoutMovesNoFunds(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 5000)

	p, err := svc.RequestPayout(ctx, RequestPayoutParams{
		ProviderID:  "prov-1",
		Amount:      2000,
		Currency:    "BDT",
		Method:      ledger.PayoutRocket,
		Mobile:      &ledger.MobilePayload{WalletNumber: "01912345678"},
		RequestedBy: "prov-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout failed: %v", err)
	}
	if _, err := svc.CancelPayout(ctx, p.ID, "typo in amount"); err != nil {
		t.Fatalf("CancelPayout failed: %v", err)
	}
	mustBalances(t, svc, provider.ID, 5000, 5000, 0)
}

func TestFailPayoutReleasesHold(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 10000)

	p, err := svc.RequestPayout(ctx, RequestPayoutParams{
		ProviderID:  "prov-1",
		Amount:      4000,
		Currency:    "BDT",
		Method:      ledger.PayoutBkash,
		Mobile:      &ledger.MobilePayload{WalletNumber: "01712345678"},
		RequestedBy: "prov-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout failed: %v", err)
	}
	if _, err := svc.ApprovePayout(ctx, p.ID, "admin"); err != nil {
		t.Fatalf("ApprovePayout failed: %v", err)
	}
	if _, err := svc.StartProcessingPayout(ctx, p.ID, "worker"); err != nil {
		t.Fatalf("StartProcessingPayout failed: %v", err)
	}

	got, err := svc.FailPayout(ctx, p.ID, "wallet unreachable")
	if err != nil {
		t.Fatalf("FailPayout failed: %v", err)
	}
	if got.Status != ledger.PayoutFailed {
		t.Errorf("Expected FAILED, got %s", got.Status)
	}
	mustBalances(t, svc, provider.ID, 10000, 10000, 0)
}

func TestApprovePayoutInsufficientAvailable(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 1000)

	p, err := svc.RequestPayout(ctx, RequestPayoutParams{
		ProviderID:  "prov-1",
		Amount:      2000,
		Currency:    "BDT",
		Method:      ledger.PayoutBkash,
		Mobile:      &ledger.MobilePayload{WalletNumber: "01712345678"},
		RequestedBy: "prov-1",
	})
	if err != nil {
		t.Fatalf("RequestPayout failed: %v", err)
	}

	_, err = svc.ApprovePayout(ctx, p.ID, "admin")
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	// Nothing persisted: payout still PENDING, no hold placed.
	got, err := svc.GetPayout(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayout failed: %v", err)
	}
	if got.Status != ledger.PayoutPending {
		t.Errorf("Expected PENDING, got %s", got.Status)
	}
	mustBalances(t, svc, provider.ID, 1000, 1000, 0)
}

func TestRefundPostsCompensatingTransaction(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 10000)
	guest := seedFundedAccount(t, st, ledger.AccountUser, "guest-1", 0)

	r, err := svc.IssueRefund(ctx, IssueRefundParams{
		PaymentID:      "pay-1",
		BookingID:      "bk-1",
		Amount:         3000,
		OriginalAmount: 10000,
		Currency:       "BDT",
		Reason:         "guest cancelled",
	})
	if err != nil {
		t.Fatalf("IssueRefund failed: %v", err)
	}
	if _, err := svc.MarkRefundProcessing(ctx, r.ID); err != nil {
		t.Fatalf("MarkRefundProcessing failed: %v", err)
	}

	got, err := svc.MarkRefundSucceeded(ctx, r.ID, RefundSettlementParams{
		ProviderRefundID: "prov-ref-7",
		PayeeAccountID:   provider.ID,
		PayerAccountID:   guest.ID,
	})
	if err != nil {
		t.Fatalf("MarkRefundSucceeded failed: %v", err)
	}
	if got.Status != ledger.RefundSucceeded || got.ProviderRefundID != "prov-ref-7" {
		t.Errorf("Refund: status=%s provider_refund=%s", got.Status, got.ProviderRefundID)
	}

	mustBalances(t, svc, provider.ID, 7000, 7000, 0)
	mustBalances(t, svc, guest.ID, 3000, 3000, 0)

	// Both sides are fully backed by posted entries.
	if err := svc.ReconcileAccount(ctx, guest.ID); err != nil {
		t.Errorf("Guest reconciliation failed: %v", err)
	}

	history, err := svc.GetTransactionHistory(ctx, provider.ID, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Type != ledger.Debit || history[0].Amount != 3000 {
		t.Errorf("Provider history: %+v", history)
	}
}

func TestRefundFailedMovesNoFunds(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	provider := seedFundedAccount(t, st, ledger.AccountProvider, "prov-1", 10000)

	r, err := svc.IssueRefund(ctx, IssueRefundParams{
		PaymentID:      "pay-1",
		Amount:         3000,
		OriginalAmount: 10000,
		Currency:       "BDT",
		Reason:         "duplicate charge",
	})
	if err != nil {
		t.Fatalf("IssueRefund failed: %v", err)
	}
	if _, err := svc.MarkRefundProcessing(ctx, r.ID); err != nil {
		t.Fatalf("MarkRefundProcessing failed: %v", err)
	}
	got, err := svc.MarkRefundFailed(ctx, r.ID, "provider rejected")
	if err != nil {
		t.Fatalf("MarkRefundFailed failed: %v", err)
	}
	if got.Status != ledger.RefundFailed {
		t.Errorf("Expected FAILED, got %s", got.Status)
	}
	mustBalances(t, svc, provider.ID, 10000, 10000, 0)
}

func TestFindOrCreateAccountIsIdempotent(t *testing.T) {
	svc, _, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	first, err := svc.FindOrCreateAccount(ctx, ledger.AccountUser, "user", "u-1", "BDT")
	if err != nil {
		t.Fatalf("FindOrCreateAccount failed: %v", err)
	}
	second, err := svc.FindOrCreateAccount(ctx, ledger.AccountUser, "user", "u-1", "BDT")
	if err != nil {
		t.Fatalf("FindOrCreateAccount failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("Expected same account, got %s and %s", first.ID, second.ID)
	}

	other, err := svc.FindOrCreateAccount(ctx, ledger.AccountUser, "user", "u-1", "USD")
	if err != nil {
		t.Fatalf("FindOrCreateAccount failed: %v", err)
	}
	if other.ID == first.ID {
		t.Error("Different currency must yield a different account")
	}
}

func TestReleaseMoreThanReserved(t *testing.T) {
	svc, st, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	acct := seedFundedAccount(t, st, ledger.AccountUser, "u-1", 1000)
	if err := svc.ReserveFunds(ctx, acct.ID, 300); err != nil {
		t.Fatalf("ReserveFunds failed: %v", err)
	}
	if err := svc.ReleaseFunds(ctx, acct.ID, 400); !errors.Is(err, ledger.ErrInsufficientReserved) {
		t.Fatalf("Expected ErrInsufficientReserved, got %v", err)
	}
	mustBalances(t, svc, acct.ID, 1000, 700, 300)
}

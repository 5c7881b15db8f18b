package store

import (
	"context"
	"errors"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/money"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrAccountExists          = errors.New("account already exists for (type, owner, currency)")
	ErrDuplicateReference     = errors.New("duplicate reference number")
	ErrDuplicateWebhook       = errors.New("webhook id already recorded")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// CommitParams groups everything one settlement use case persists atomically:
// the balanced transaction with its entries, the touched accounts (saved with
// an optimistic version check), and optionally the payout or refund whose
// state change belongs to the same unit of work. Nil fields are skipped.
// Either everything in the params commits or nothing does.
type CommitParams struct {
	Transaction *ledger.Transaction
	Accounts    []*ledger.Account
	Payout      *ledger.Payout
	Refund      *ledger.Refund
}

// LedgerStore defines the contract every backend (SQLite, Postgres) must
// satisfy. Implementations provide a transactional boundary with at least
// read-committed isolation and per-account serialization, via a version
// column or row locks.
type LedgerStore interface {
	// --- Accounts ---
	CreateAccount(ctx context.Context, acct *ledger.Account) error
	GetAccount(ctx context.Context, id string) (*ledger.Account, error)
	FindAccount(ctx context.Context, typ ledger.AccountType, ownerID, currency string) (*ledger.Account, error)
	SaveAccount(ctx context.Context, acct *ledger.Account) error

	// --- Transactions & entries ---
	Commit(ctx context.Context, params CommitParams) error
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)
	GetEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]ledger.LedgerEntry, error)
	SumEntriesByAccount(ctx context.Context, accountID string) (debits, credits money.MinorUnits, err error)

	// --- Payouts ---
	CreatePayout(ctx context.Context, p *ledger.Payout) error
	GetPayout(ctx context.Context, id string) (*ledger.Payout, error)
	SavePayout(ctx context.Context, p *ledger.Payout) error

	// --- Refunds ---
	CreateRefund(ctx context.Context, r *ledger.Refund) error
	GetRefund(ctx context.Context, id string) (*ledger.Refund, error)
	SaveRefund(ctx context.Context, r *ledger.Refund) error

	// --- Webhook events ---
	CreateWebhookEvent(ctx context.Context, e *ledger.WebhookEvent) error
	GetWebhookEvent(ctx context.Context, webhookID string) (*ledger.WebhookEvent, error)
	// ClaimWebhookEvent conditionally flips a RECEIVED or FAILED event to
	// PROCESSING; false means another claimant won or the event is terminal.
	ClaimWebhookEvent(ctx context.Context, webhookID string) (bool, error)
	SaveWebhookEvent(ctx context.Context, e *ledger.WebhookEvent) error

	// --- FX rates ---
	UpsertFxRate(ctx context.Context, rate money.Rate) error
	GetFxRate(ctx context.Context, currency, date string) (money.Rate, error)
	GetLatestFxRateBefore(ctx context.Context, currency, date, earliest string) (money.Rate, error)

	// --- Lifecycle ---
	Close()
}

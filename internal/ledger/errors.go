package ledger

import "errors"

// Sentinel errors for domain rule violations. Business failures
// (insufficient funds, bad transitions) are returned to callers to translate;
// ErrInvariantViolation indicates a defect and must abort the enclosing unit
// of work, never be auto-corrected.
var (
	ErrInsufficientBalance      = errors.New("insufficient available balance")
	ErrInsufficientReserved     = errors.New("insufficient reserved balance")
	ErrInvariantViolation       = errors.New("account balance invariant violated")
	ErrUnbalancedTransaction    = errors.New("transaction debits do not equal credits")
	ErrInvalidTransactionState  = errors.New("invalid transaction state")
	ErrInvalidPayoutTransition  = errors.New("invalid payout state transition")
	ErrInvalidRefundTransition  = errors.New("invalid refund state transition")
	ErrInvalidWebhookTransition = errors.New("invalid webhook event state transition")
	ErrAccountNotActive         = errors.New("account is not active")
	ErrCurrencyMismatch         = errors.New("currency mismatch")
)

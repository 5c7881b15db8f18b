/**
 * Copyright 2025-present Meghna Commerce, Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"settlement-ledger-go/internal/money"
)

// EntryType distinguishes the two sides of a posting.
type EntryType string

const (
	Debit  EntryType = "DEBIT"
	Credit EntryType = "CREDIT"
)

// LedgerEntry is one posting against one account. Immutable once created;
// Position preserves append order within the owning transaction.
type LedgerEntry struct {
	ID            string
	TransactionID string
	AccountID     string
	Type          EntryType
	Amount        money.MinorUnits // always positive
	Currency      string
	ReferenceType string
	ReferenceID   string
	Description   string
	Position      int
	CreatedAt     time.Time
}

// TransactionType names the business movement a posting group records.
type TransactionType string

const (
	TxnBookingPayment TransactionType = "booking_payment"
	TxnProviderPayout TransactionType = "provider_payout"
	TxnRefund         TransactionType = "refund"
	TxnFeeCollection  TransactionType = "fee_collection"
	TxnAdjustment     TransactionType = "adjustment"
	TxnTransfer       TransactionType = "transfer"
)

// TransactionStatus is the posting group lifecycle. Completed, failed and
// cancelled are terminal.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "PENDING"
	TxnCompleted TransactionStatus = "COMPLETED"
	TxnFailed    TransactionStatus = "FAILED"
	TxnCancelled TransactionStatus = "CANCELLED"
)

// Transaction is an atomic, balanced group of ledger entries. Entries apply
// to their accounts in append order; Complete refuses an unbalanced group
// with ErrUnbalancedTransaction, which is a programming error on the caller's
// side, not a business failure.
type Transaction struct {
	ID            string
	Type          TransactionType
	Amount        money.MinorUnits // sum of debit entries, set on completion
	Currency      string
	Status        TransactionStatus
	ReferenceType string
	ReferenceID   string
	CreatedBy     string
	FailureReason string
	Entries       []LedgerEntry
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// NewTransaction opens a pending transaction.
func NewTransaction(typ TransactionType, referenceType, referenceID, currency, createdBy string, now time.Time) (*Transaction, error) {
	if typ == "" {
		return nil, fmt.Errorf("transaction type is required")
	}
	if !money.ValidCurrency(currency) {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	return &Transaction{
		ID:            uuid.New().String(),
		Type:          typ,
		Currency:      currency,
		Status:        TxnPending,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		CreatedBy:     createdBy,
		CreatedAt:     now,
	}, nil
}

// AddEntry appends a posting and applies the corresponding account mutation:
// debit entries call Account.Debit, credit entries call Account.Credit. The
// account's currency must match the transaction's.
func (t *Transaction) AddEntry(acct *Account, typ EntryType, amount money.MinorUnits, description string, now time.Time) error {
	if err := t.entryPreconditions(acct, amount); err != nil {
		return err
	}
	switch typ {
	case Debit:
		if err := acct.Debit(amount); err != nil {
			return err
		}
	case Credit:
		if err := acct.Credit(amount); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown entry type %q", typ)
	}
	t.appendEntry(acct, typ, amount, description, now)
	return nil
}

// AddCaptureEntry appends a debit-side posting applied via
// Account.CaptureReserved instead of Account.Debit, for reservation-flavored
// settlements (e.g. a payout consuming previously held funds).
func (t *Transaction) AddCaptureEntry(acct *Account, amount money.MinorUnits, description string, now time.Time) error {
	if err := t.entryPreconditions(acct, amount); err != nil {
		return err
	}
	if err := acct.CaptureReserved(amount); err != nil {
		return err
	}
	t.appendEntry(acct, Debit, amount, description, now)
	return nil
}

// Complete verifies debits equal credits, then marks the transaction
// completed and stamps the aggregate amount and completion time.
func (t *Transaction) Complete(now time.Time) error {
	if t.Status != TxnPending {
		return fmt.Errorf("transaction %s has status %s: %w", t.ID, t.Status, ErrInvalidTransactionState)
	}
	if len(t.Entries) == 0 {
		return fmt.Errorf("transaction %s has no entries: %w", t.ID, ErrUnbalancedTransaction)
	}
	debits, credits := t.DebitTotal(), t.CreditTotal()
	if debits != credits {
		return fmt.Errorf("transaction %s: debits %d != credits %d: %w",
			t.ID, debits, credits, ErrUnbalancedTransaction)
	}
	t.Status = TxnCompleted
	t.Amount = debits
	t.CompletedAt = &now
	return nil
}

// Fail marks a terminal negative outcome without requiring balance.
func (t *Transaction) Fail(reason string, now time.Time) error {
	if t.Status != TxnPending {
		return fmt.Errorf("transaction %s has status %s: %w", t.ID, t.Status, ErrInvalidTransactionState)
	}
	t.Status = TxnFailed
	t.FailureReason = reason
	t.CompletedAt = &now
	return nil
}

// Cancel abandons a pending transaction.
func (t *Transaction) Cancel(reason string, now time.Time) error {
	if t.Status != TxnPending {
		return fmt.Errorf("transaction %s has status %s: %w", t.ID, t.Status, ErrInvalidTransactionState)
	}
	t.Status = TxnCancelled
	t.FailureReason = reason
	t.CompletedAt = &now
	return nil
}

func (t *Transaction) DebitTotal() money.MinorUnits {
	var total money.MinorUnits
	for _, e := range t.Entries {
		if e.Type == Debit {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func (t *Transaction) CreditTotal() money.MinorUnits {
	var total money.MinorUnits
	for _, e := range t.Entries {
		if e.Type == Credit {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func (t *Transaction) entryPreconditions(acct *Account, amount money.MinorUnits) error {
	if t.Status != TxnPending {
		return fmt.Errorf("transaction %s has status %s: %w", t.ID, t.Status, ErrInvalidTransactionState)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("transaction %s: entry amount must be positive, got %d", t.ID, amount)
	}
	if acct.Currency != t.Currency {
		return fmt.Errorf("transaction %s is %s, account %s is %s: %w",
			t.ID, t.Currency, acct.ID, acct.Currency, ErrCurrencyMismatch)
	}
	return nil
}

func (t *Transaction) appendEntry(acct *Account, typ EntryType, amount money.MinorUnits, description string, now time.Time) {
	t.Entries = append(t.Entries, LedgerEntry{
		ID:            uuid.New().String(),
		TransactionID: t.ID,
		AccountID:     acct.ID,
		Type:          typ,
		Amount:        amount,
		Currency:      t.Currency,
		ReferenceType: t.ReferenceType,
		ReferenceID:   t.ReferenceID,
		Description:   description,
		Position:      len(t.Entries),
		CreatedAt:     now,
	})
}

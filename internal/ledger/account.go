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

// AccountType identifies the ledger participant an account belongs to.
type AccountType string

const (
	AccountPlatform AccountType = "platform"
	AccountProvider AccountType = "provider"
	AccountUser     AccountType = "user"
	AccountEscrow   AccountType = "escrow"
	AccountReserve  AccountType = "reserve"
)

// AccountStatus tracks the account lifecycle. Accounts are never deleted;
// they transition to closed instead.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// Account is one ledger participant in one currency. It maintains a
// three-way balance: Balance == Available + Reserved, all non-negative, at
// all times. Every mutation re-validates the invariant before it takes
// effect; a violation surfaces as ErrInvariantViolation and is a defect, not
// a business failure.
//
// At most one account exists per (type, owner, currency); the store enforces
// the uniqueness.
type Account struct {
	ID        string
	Type      AccountType
	OwnerType string
	OwnerID   string
	Currency  string
	Balance   money.MinorUnits
	Available money.MinorUnits
	Reserved  money.MinorUnits
	Status    AccountStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates an active zero-balance account.
func NewAccount(typ AccountType, ownerType, ownerID, currency string, now time.Time) (*Account, error) {
	if typ == "" || ownerID == "" {
		return nil, fmt.Errorf("account type and owner id are required")
	}
	if !money.ValidCurrency(currency) {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	return &Account{
		ID:        uuid.New().String(),
		Type:      typ,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Currency:  currency,
		Status:    AccountActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds funds: balance and available both grow by amount.
func (a *Account) Credit(amount money.MinorUnits) error {
	if err := a.mutable(amount); err != nil {
		return err
	}
	return a.apply(a.Balance+amount, a.Available+amount, a.Reserved)
}

// Debit removes available funds entirely. Fails with ErrInsufficientBalance
// if available < amount; on failure all three balances are untouched.
func (a *Account) Debit(amount money.MinorUnits) error {
	if err := a.mutable(amount); err != nil {
		return err
	}
	if a.Available < amount {
		return fmt.Errorf("account %s: available %d < debit %d: %w",
			a.ID, a.Available, amount, ErrInsufficientBalance)
	}
	return a.apply(a.Balance-amount, a.Available-amount, a.Reserved)
}

// Reserve places a hold: available -> reserved, balance unchanged.
func (a *Account) Reserve(amount money.MinorUnits) error {
	if err := a.mutable(amount); err != nil {
		return err
	}
	if a.Available < amount {
		return fmt.Errorf("account %s: available %d < reserve %d: %w",
			a.ID, a.Available, amount, ErrInsufficientBalance)
	}
	return a.apply(a.Balance, a.Available-amount, a.Reserved+amount)
}

// Release returns held funds: reserved -> available, balance unchanged.
func (a *Account) Release(amount money.MinorUnits) error {
	if err := a.mutable(amount); err != nil {
		return err
	}
	if a.Reserved < amount {
		return fmt.Errorf("account %s: reserved %d < release %d: %w",
			a.ID, a.Reserved, amount, ErrInsufficientReserved)
	}
	return a.apply(a.Balance, a.Available+amount, a.Reserved-amount)
}

// CaptureReserved consumes a hold: the funds leave the account entirely
// (balance and reserved both shrink, available unchanged). Used when a
// reservation is settled rather than returned.
func (a *Account) CaptureReserved(amount money.MinorUnits) error {
	if err := a.mutable(amount); err != nil {
		return err
	}
	if a.Reserved < amount {
		return fmt.Errorf("account %s: reserved %d < capture %d: %w",
			a.ID, a.Reserved, amount, ErrInsufficientReserved)
	}
	return a.apply(a.Balance-amount, a.Available, a.Reserved-amount)
}

// Suspend and Close transition the account status; closed is terminal.
func (a *Account) Suspend() {
	if a.Status == AccountActive {
		a.Status = AccountSuspended
	}
}

func (a *Account) Close() error {
	if a.Balance != 0 {
		return fmt.Errorf("account %s: cannot close with non-zero balance %d", a.ID, a.Balance)
	}
	a.Status = AccountClosed
	return nil
}

func (a *Account) mutable(amount money.MinorUnits) error {
	if a.Status != AccountActive {
		return fmt.Errorf("account %s has status %s: %w", a.ID, a.Status, ErrAccountNotActive)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("account %s: amount must be positive, got %d", a.ID, amount)
	}
	return nil
}

// apply validates the candidate balances against the three-way invariant and
// only then assigns them, so a violation leaves the account untouched.
func (a *Account) apply(balance, available, reserved money.MinorUnits) error {
	if balance.IsNegative() || available.IsNegative() || reserved.IsNegative() ||
		balance != available+reserved {
		return fmt.Errorf("account %s: balance=%d available=%d reserved=%d: %w",
			a.ID, balance, available, reserved, ErrInvariantViolation)
	}
	a.Balance = balance
	a.Available = available
	a.Reserved = reserved
	return nil
}

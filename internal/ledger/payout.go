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
	"strings"
	"time"

	"github.com/google/uuid"

	"settlement-ledger-go/internal/money"
)

// PayoutMethod is the disbursement channel for a provider withdrawal.
type PayoutMethod string

const (
	PayoutBank   PayoutMethod = "BANK"
	PayoutBkash  PayoutMethod = "BKASH"
	PayoutNagad  PayoutMethod = "NAGAD"
	PayoutRocket PayoutMethod = "ROCKET"
)

// PayoutStatus is the payout state machine. PAID, FAILED and CANCELLED are
// terminal.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutApproved   PayoutStatus = "APPROVED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutPaid       PayoutStatus = "PAID"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

// BankPayload holds bank transfer details for BANK payouts.
type BankPayload struct {
	BankName      string
	BranchName    string
	AccountName   string
	AccountNumber string
	RoutingNumber string
}

// MobilePayload holds mobile-money wallet details for BKASH/NAGAD/ROCKET
// payouts.
type MobilePayload struct {
	WalletNumber  string
	AccountHolder string
}

// Payout is a provider withdrawal request. Exactly one of Bank or Mobile is
// present, matching the method. The reference number is generated once at
// creation and never changes. Transitions attempted from a non-source state
// fail with ErrInvalidPayoutTransition and do not mutate the payout.
type Payout struct {
	ID                    string
	ProviderID            string
	Amount                money.MinorUnits
	Currency              string
	Method                PayoutMethod
	Bank                  *BankPayload
	Mobile                *MobilePayload
	Status                PayoutStatus
	ReferenceNumber       string
	RequestedBy           string
	ApprovedBy            string
	ProcessedBy           string
	ExternalTransactionID string
	FailureReason         string
	CancelReason          string
	Version               int64
	RequestedAt           time.Time
	ApprovedAt            *time.Time
	ProcessingAt          *time.Time
	FinishedAt            *time.Time // paid, failed or cancelled
}

// NewPayout validates and creates a pending payout request.
func NewPayout(providerID string, amount money.MinorUnits, currency string, method PayoutMethod,
	bank *BankPayload, mobile *MobilePayload, requestedBy string, now time.Time) (*Payout, error) {

	if providerID == "" {
		return nil, fmt.Errorf("provider id is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payout amount must be positive, got %d", amount)
	}
	if !money.ValidCurrency(currency) {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	if err := validatePayload(method, bank, mobile); err != nil {
		return nil, err
	}

	return &Payout{
		ID:              uuid.New().String(),
		ProviderID:      providerID,
		Amount:          amount,
		Currency:        currency,
		Method:          method,
		Bank:            bank,
		Mobile:          mobile,
		Status:          PayoutPending,
		ReferenceNumber: generateReference("PO"),
		Version:         1,
		RequestedBy:     requestedBy,
		RequestedAt:     now,
	}, nil
}

// Approve is valid only from PENDING.
func (p *Payout) Approve(approverID string, now time.Time) error {
	if p.Status != PayoutPending {
		return p.transitionErr("approve", PayoutPending)
	}
	p.Status = PayoutApproved
	p.ApprovedBy = approverID
	p.ApprovedAt = &now
	return nil
}

// Cancel is valid from PENDING or APPROVED. If funds were reserved at
// approval, the caller must release them as part of the same unit of work.
func (p *Payout) Cancel(reason string, now time.Time) error {
	if p.Status != PayoutPending && p.Status != PayoutApproved {
		return p.transitionErr("cancel", PayoutPending, PayoutApproved)
	}
	p.Status = PayoutCancelled
	p.CancelReason = reason
	p.FinishedAt = &now
	return nil
}

// StartProcessing is valid only from APPROVED.
func (p *Payout) StartProcessing(processorID string, now time.Time) error {
	if p.Status != PayoutApproved {
		return p.transitionErr("start processing", PayoutApproved)
	}
	p.Status = PayoutProcessing
	p.ProcessedBy = processorID
	p.ProcessingAt = &now
	return nil
}

// MarkPaid is valid only from PROCESSING.
func (p *Payout) MarkPaid(externalTxnID string, now time.Time) error {
	if p.Status != PayoutProcessing {
		return p.transitionErr("mark paid", PayoutProcessing)
	}
	if externalTxnID == "" {
		return fmt.Errorf("payout %s: external transaction id is required to mark paid", p.ID)
	}
	p.Status = PayoutPaid
	p.ExternalTransactionID = externalTxnID
	p.FinishedAt = &now
	return nil
}

// MarkFailed is valid only from PROCESSING.
func (p *Payout) MarkFailed(reason string, now time.Time) error {
	if p.Status != PayoutProcessing {
		return p.transitionErr("mark failed", PayoutProcessing)
	}
	p.Status = PayoutFailed
	p.FailureReason = reason
	p.FinishedAt = &now
	return nil
}

func (p *Payout) transitionErr(action string, from ...PayoutStatus) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	return fmt.Errorf("payout %s: cannot %s from %s (requires %s): %w",
		p.ID, action, p.Status, strings.Join(states, " or "), ErrInvalidPayoutTransition)
}

func validatePayload(method PayoutMethod, bank *BankPayload, mobile *MobilePayload) error {
	if bank != nil && mobile != nil {
		return fmt.Errorf("payout payload must be bank or mobile details, not both")
	}
	switch method {
	case PayoutBank:
		if bank == nil {
			return fmt.Errorf("bank payout requires bank details")
		}
		if bank.BankName == "" || bank.AccountName == "" || bank.AccountNumber == "" {
			return fmt.Errorf("bank payout requires bank name, account name and account number")
		}
	case PayoutBkash, PayoutNagad, PayoutRocket:
		if mobile == nil {
			return fmt.Errorf("%s payout requires mobile wallet details", method)
		}
		if mobile.WalletNumber == "" {
			return fmt.Errorf("%s payout requires a wallet number", method)
		}
	default:
		return fmt.Errorf("unknown payout method %q", method)
	}
	return nil
}

// generateReference builds a system reference like "PO-7F3A9C12". Uniqueness
// is backed by the store's unique index on the column.
func generateReference(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.New().String()[:8]))
}

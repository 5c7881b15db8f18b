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

// RefundStatus is the refund state machine. SUCCEEDED and FAILED are
// terminal.
type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundSucceeded  RefundStatus = "SUCCEEDED"
	RefundFailed     RefundStatus = "FAILED"
)

// Refund reverses part or all of a specific payment. A successful refund is
// only complete together with its compensating ledger transaction; the
// orchestrator commits both as one unit of work.
type Refund struct {
	ID               string
	PaymentID        string
	BookingID        string
	Amount           money.MinorUnits
	Currency         string
	Status           RefundStatus
	ProviderRefundID string
	Reason           string
	FailureReason    string
	ReferenceNumber  string
	Version          int64
	CreatedAt        time.Time
	ProcessingAt     *time.Time
	FinishedAt       *time.Time
}

// NewRefund validates and creates a pending refund. originalAmount is the
// amount of the payment being reversed; the refund may not exceed it.
func NewRefund(paymentID, bookingID string, amount, originalAmount money.MinorUnits, currency, reason string, now time.Time) (*Refund, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive, got %d", amount)
	}
	if amount > originalAmount {
		return nil, fmt.Errorf("refund amount %d exceeds original payment amount %d", amount, originalAmount)
	}
	if !money.ValidCurrency(currency) {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	return &Refund{
		ID:              uuid.New().String(),
		PaymentID:       paymentID,
		BookingID:       bookingID,
		Amount:          amount,
		Currency:        currency,
		Status:          RefundPending,
		Reason:          reason,
		ReferenceNumber: generateReference("RF"),
		Version:         1,
		CreatedAt:       now,
	}, nil
}

// MarkProcessing is valid only from PENDING.
func (r *Refund) MarkProcessing(now time.Time) error {
	if r.Status != RefundPending {
		return r.transitionErr("mark processing", RefundPending)
	}
	r.Status = RefundProcessing
	r.ProcessingAt = &now
	return nil
}

// MarkSucceeded is valid only from PROCESSING.
func (r *Refund) MarkSucceeded(providerRefundID string, now time.Time) error {
	if r.Status != RefundProcessing {
		return r.transitionErr("mark succeeded", RefundProcessing)
	}
	r.Status = RefundSucceeded
	r.ProviderRefundID = providerRefundID
	r.FinishedAt = &now
	return nil
}

// MarkFailed is valid only from PROCESSING.
func (r *Refund) MarkFailed(reason string, now time.Time) error {
	if r.Status != RefundProcessing {
		return r.transitionErr("mark failed", RefundProcessing)
	}
	r.Status = RefundFailed
	r.FailureReason = reason
	r.FinishedAt = &now
	return nil
}

func (r *Refund) transitionErr(action string, from RefundStatus) error {
	return fmt.Errorf("refund %s: cannot %s from %s (requires %s): %w",
		r.ID, action, r.Status, from, ErrInvalidRefundTransition)
}

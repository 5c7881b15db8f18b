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

// Package events defines the domain events the settlement engine emits
// after a state change has been durably committed, and the Publisher port
// transports implement.
package events

import (
	"context"
	"time"
)

const (
	TopicTransactionCompleted = "ledger.transaction.completed"
	TopicPayoutPaid           = "ledger.payout.paid"
	TopicRefundSucceeded      = "ledger.refund.succeeded"
)

// Publisher delivers committed domain events to downstream consumers.
// Publish failures must not roll back the state change that produced the
// event; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher discards all events. Used when no broker is configured
// and in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event any) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }

// TransactionCompleted is emitted once per committed balanced transaction.
type TransactionCompleted struct {
	TransactionID string    `json:"transaction_id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   string    `json:"reference_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PayoutPaid is emitted when a payout reaches its terminal PAID state.
type PayoutPaid struct {
	PayoutID        string    `json:"payout_id"`
	ReferenceNumber string    `json:"reference_number"`
	ProviderID      string    `json:"provider_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Method          string    `json:"method"`
	ExternalTxnID   string    `json:"external_txn_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// RefundSucceeded is emitted when a refund completes and its compensating
// transaction has been posted.
type RefundSucceeded struct {
	RefundID         string    `json:"refund_id"`
	PaymentID        string    `json:"payment_id"`
	BookingID        string    `json:"booking_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	ProviderRefundID string    `json:"provider_refund_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}

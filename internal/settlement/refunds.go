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

package settlement

import (
	"context"

	"go.uber.org/zap"

	"settlement-ledger-go/internal/events"
	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

// IssueRefundParams describes a refund against an external payment.
// OriginalAmount is the payment's full amount, used to cap the refund.
type IssueRefundParams struct {
	PaymentID      string
	BookingID      string
	Amount         money.MinorUnits
	OriginalAmount money.MinorUnits
	Currency       string
	Reason         string
}

// IssueRefund records a new refund in PENDING. Funds move only when the
// provider confirms and MarkRefundSucceeded posts the compensating
// transaction.
func (s *Service) IssueRefund(ctx context.Context, params IssueRefundParams) (*ledger.Refund, error) {
	r, err := ledger.NewRefund(params.PaymentID, params.BookingID, params.Amount,
		params.OriginalAmount, params.Currency, params.Reason, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRefund(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRefund returns the current refund state.
func (s *Service) GetRefund(ctx context.Context, refundID string) (*ledger.Refund, error) {
	return s.store.GetRefund(ctx, refundID)
}

// MarkRefundProcessing records the refund as submitted to the payment
// provider.
func (s *Service) MarkRefundProcessing(ctx context.Context, refundID string) (*ledger.Refund, error) {
	r, err := s.store.GetRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if err := r.MarkProcessing(s.now()); err != nil {
		return nil, err
	}
	if err := s.store.SaveRefund(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RefundSettlementParams names the accounts the compensating transaction
// moves money between: the payee account that originally received the
// payment is debited, the payer-side account is credited.
type RefundSettlementParams struct {
	ProviderRefundID string
	PayeeAccountID   string
	PayerAccountID   string
}

// MarkRefundSucceeded records the provider's confirmation and posts the
// compensating transaction in the same commit. If the posting cannot be
// built the refund stays PROCESSING.
func (s *Service) MarkRefundSucceeded(ctx context.Context, refundID string, params RefundSettlementParams) (*ledger.Refund, error) {
	r, err := s.store.GetRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAccounts([]string{params.PayeeAccountID, params.PayerAccountID})
	defer unlock()

	payee, err := s.store.GetAccount(ctx, params.PayeeAccountID)
	if err != nil {
		return nil, err
	}
	payer, err := s.store.GetAccount(ctx, params.PayerAccountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := r.MarkSucceeded(params.ProviderRefundID, now); err != nil {
		return nil, err
	}

	txn, err := ledger.NewTransaction(ledger.TxnRefund, "refund", r.ID, r.Currency, "", now)
	if err != nil {
		return nil, err
	}
	if err := txn.AddEntry(payee, ledger.Debit, r.Amount, "refund "+r.ReferenceNumber, now); err != nil {
		return nil, err
	}
	if err := txn.AddEntry(payer, ledger.Credit, r.Amount, "refund "+r.ReferenceNumber, now); err != nil {
		return nil, err
	}
	if err := txn.Complete(now); err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, store.CommitParams{
		Transaction: txn,
		Accounts:    []*ledger.Account{payee, payer},
		Refund:      r,
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicRefundSucceeded, events.RefundSucceeded{
		RefundID:         r.ID,
		PaymentID:        r.PaymentID,
		BookingID:        r.BookingID,
		Amount:           r.Amount.Int64(),
		Currency:         r.Currency,
		ProviderRefundID: params.ProviderRefundID,
		OccurredAt:       now,
	})
	zap.L().Info("Refund succeeded",
		zap.String("refund_id", r.ID),
		zap.String("provider_refund_id", params.ProviderRefundID),
		zap.String("transaction_id", txn.ID))
	return r, nil
}

// MarkRefundFailed records the provider's rejection. No funds moved, so
// there is nothing to compensate.
func (s *Service) MarkRefundFailed(ctx context.Context, refundID, reason string) (*ledger.Refund, error) {
	r, err := s.store.GetRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if err := r.MarkFailed(reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.SaveRefund(ctx, r); err != nil {
		return nil, err
	}
	zap.L().Warn("Refund failed",
		zap.String("refund_id", r.ID),
		zap.String("reason", reason))
	return r, nil
}

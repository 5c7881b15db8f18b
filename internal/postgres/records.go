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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

func (s *Service) CreatePayout(ctx context.Context, p *ledger.Payout) error {
	bank := p.Bank
	if bank == nil {
		bank = &ledger.BankPayload{}
	}
	mobile := p.Mobile
	if mobile == nil {
		mobile = &ledger.MobilePayload{}
	}
	_, err := s.pool.Exec(ctx, queryInsertPayout,
		p.ID, p.ProviderID, p.Amount.Int64(), p.Currency, p.Method,
		bank.BankName, bank.BranchName, bank.AccountName, bank.AccountNumber, bank.RoutingNumber,
		mobile.WalletNumber, mobile.AccountHolder, p.Status, p.ReferenceNumber,
		p.RequestedBy, p.ApprovedBy, p.ProcessedBy, p.ExternalTransactionID,
		p.FailureReason, p.CancelReason, p.Version,
		p.RequestedAt, p.ApprovedAt, p.ProcessingAt, p.FinishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payout reference %s: %w", p.ReferenceNumber, store.ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (s *Service) GetPayout(ctx context.Context, id string) (*ledger.Payout, error) {
	var p ledger.Payout
	var amount int64
	var bank ledger.BankPayload
	var mobile ledger.MobilePayload

	err := s.pool.QueryRow(ctx, queryGetPayout, id).Scan(
		&p.ID, &p.ProviderID, &amount, &p.Currency, &p.Method,
		&bank.BankName, &bank.BranchName, &bank.AccountName, &bank.AccountNumber, &bank.RoutingNumber,
		&mobile.WalletNumber, &mobile.AccountHolder, &p.Status, &p.ReferenceNumber,
		&p.RequestedBy, &p.ApprovedBy, &p.ProcessedBy, &p.ExternalTransactionID,
		&p.FailureReason, &p.CancelReason, &p.Version,
		&p.RequestedAt, &p.ApprovedAt, &p.ProcessingAt, &p.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payout: %w", err)
	}

	p.Amount = minor(amount)
	if p.Method == ledger.PayoutBank {
		p.Bank = &bank
	} else {
		p.Mobile = &mobile
	}
	return &p, nil
}

func (s *Service) SavePayout(ctx context.Context, p *ledger.Payout) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := updatePayout(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	p.Version++
	return nil
}

// updatePayout writes the payout conditionally on the version it was loaded
// at, like accounts. A transition raced by another writer surfaces as
// ErrConcurrentModification; the caller reloads and revalidates.
func updatePayout(ctx context.Context, tx pgx.Tx, p *ledger.Payout) error {
	tag, err := tx.Exec(ctx, queryUpdatePayout,
		p.Status, p.ApprovedBy, p.ProcessedBy, p.ExternalTransactionID,
		p.FailureReason, p.CancelReason,
		p.ApprovedAt, p.ProcessingAt, p.FinishedAt, p.ID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update payout %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %s at version %d: %w",
			p.ID, p.Version, store.ErrConcurrentModification)
	}
	return nil
}

func (s *Service) CreateRefund(ctx context.Context, r *ledger.Refund) error {
	_, err := s.pool.Exec(ctx, queryInsertRefund,
		r.ID, r.PaymentID, r.BookingID, r.Amount.Int64(), r.Currency, r.Status,
		r.ProviderRefundID, r.Reason, r.FailureReason, r.ReferenceNumber,
		r.Version, r.CreatedAt, r.ProcessingAt, r.FinishedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("refund reference %s: %w", r.ReferenceNumber, store.ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

func (s *Service) GetRefund(ctx context.Context, id string) (*ledger.Refund, error) {
	var r ledger.Refund
	var amount int64

	err := s.pool.QueryRow(ctx, queryGetRefund, id).Scan(
		&r.ID, &r.PaymentID, &r.BookingID, &amount, &r.Currency, &r.Status,
		&r.ProviderRefundID, &r.Reason, &r.FailureReason, &r.ReferenceNumber,
		&r.Version, &r.CreatedAt, &r.ProcessingAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}
	r.Amount = minor(amount)
	return &r, nil
}

func (s *Service) SaveRefund(ctx context.Context, r *ledger.Refund) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := updateRefund(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	r.Version++
	return nil
}

// updateRefund is version-conditioned like updatePayout.
func updateRefund(ctx context.Context, tx pgx.Tx, r *ledger.Refund) error {
	tag, err := tx.Exec(ctx, queryUpdateRefund,
		r.Status, r.ProviderRefundID, r.FailureReason,
		r.ProcessingAt, r.FinishedAt, r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("failed to update refund %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("refund %s at version %d: %w",
			r.ID, r.Version, store.ErrConcurrentModification)
	}
	return nil
}

func (s *Service) CreateWebhookEvent(ctx context.Context, e *ledger.WebhookEvent) error {
	headers, err := encodeMap(e.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode webhook headers: %w", err)
	}
	metadata, err := encodeMap(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode webhook metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, queryInsertWebhookEvent,
		e.WebhookID, e.Provider, e.EventType, e.Body, headers,
		e.Signature, e.Status, e.RetryCount, e.PaymentID, e.OrderID, metadata,
		e.ReceivedAt, e.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("webhook %s: %w", e.WebhookID, store.ErrDuplicateWebhook)
		}
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	return nil
}

func (s *Service) GetWebhookEvent(ctx context.Context, webhookID string) (*ledger.WebhookEvent, error) {
	var e ledger.WebhookEvent
	var headers, metadata string

	err := s.pool.QueryRow(ctx, queryGetWebhookEvent, webhookID).Scan(
		&e.WebhookID, &e.Provider, &e.EventType, &e.Body, &headers,
		&e.Signature, &e.Status, &e.RetryCount, &e.PaymentID, &e.OrderID, &metadata,
		&e.ReceivedAt, &e.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}

	if e.Headers, err = decodeMap(headers); err != nil {
		return nil, fmt.Errorf("failed to decode webhook headers: %w", err)
	}
	if e.Metadata, err = decodeMap(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode webhook metadata: %w", err)
	}
	return &e, nil
}

// ClaimWebhookEvent atomically flips a RECEIVED or FAILED event to
// PROCESSING. Exactly one of any set of concurrent claimants for the same
// webhook id wins; losers see false and treat the delivery as a duplicate.
func (s *Service) ClaimWebhookEvent(ctx context.Context, webhookID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, queryClaimWebhookEvent, webhookID)
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook event %s: %w", webhookID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Service) SaveWebhookEvent(ctx context.Context, e *ledger.WebhookEvent) error {
	metadata, err := encodeMap(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode webhook metadata: %w", err)
	}
	tag, err := s.pool.Exec(ctx, queryUpdateWebhookEvent,
		e.Status, e.RetryCount, e.PaymentID, e.OrderID, metadata,
		e.ProcessedAt, e.WebhookID)
	if err != nil {
		return fmt.Errorf("failed to update webhook event %s: %w", e.WebhookID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("webhook event %s: %w", e.WebhookID, store.ErrNotFound)
	}
	return nil
}

func (s *Service) UpsertFxRate(ctx context.Context, rate money.Rate) error {
	_, err := s.pool.Exec(ctx, queryUpsertFxRate,
		rate.Currency, rate.Date, rate.Rate.String(), rate.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert fx rate %s/%s: %w", rate.Currency, rate.Date, err)
	}
	return nil
}

func (s *Service) GetFxRate(ctx context.Context, currency, date string) (money.Rate, error) {
	return scanFxRate(s.pool.QueryRow(ctx, queryGetFxRate, currency, date))
}

func (s *Service) GetLatestFxRateBefore(ctx context.Context, currency, date, earliest string) (money.Rate, error) {
	return scanFxRate(s.pool.QueryRow(ctx, queryGetLatestFxRateBefore, currency, date, earliest))
}

func scanFxRate(row pgx.Row) (money.Rate, error) {
	var rate money.Rate
	var rateStr string
	err := row.Scan(&rate.Currency, &rate.Date, &rateStr, &rate.Source)
	if errors.Is(err, pgx.ErrNoRows) {
		return money.Rate{}, store.ErrNotFound
	}
	if err != nil {
		return money.Rate{}, fmt.Errorf("failed to scan fx rate: %w", err)
	}
	rate.Rate, err = decimal.NewFromString(rateStr)
	if err != nil {
		return money.Rate{}, fmt.Errorf("failed to parse fx rate %q: %w", rateStr, err)
	}
	return rate, nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMap(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

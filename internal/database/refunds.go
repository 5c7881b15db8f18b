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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/store"
)

func (s *Service) CreateRefund(ctx context.Context, r *ledger.Refund) error {
	_, err := s.db.ExecContext(ctx, queryInsertRefund,
		r.ID, r.PaymentID, r.BookingID, r.Amount.Int64(), r.Currency, r.Status,
		r.ProviderRefundID, r.Reason, r.FailureReason, r.ReferenceNumber,
		r.Version, r.CreatedAt, nullTime(r.ProcessingAt), nullTime(r.FinishedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("refund reference %s: %w", r.ReferenceNumber, store.ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create refund: %w", err)
	}

	zap.L().Info("Refund issued",
		zap.String("refund_id", r.ID),
		zap.String("payment_id", r.PaymentID),
		zap.String("reference", r.ReferenceNumber),
		zap.Int64("amount", r.Amount.Int64()),
		zap.String("currency", r.Currency))
	return nil
}

func (s *Service) GetRefund(ctx context.Context, id string) (*ledger.Refund, error) {
	var r ledger.Refund
	var amount int64
	var processingAt, finishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, queryGetRefund, id).Scan(
		&r.ID, &r.PaymentID, &r.BookingID, &amount, &r.Currency, &r.Status,
		&r.ProviderRefundID, &r.Reason, &r.FailureReason, &r.ReferenceNumber,
		&r.Version, &r.CreatedAt, &processingAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}

	r.Amount = minor(amount)
	r.ProcessingAt = timePtr(processingAt)
	r.FinishedAt = timePtr(finishedAt)
	return &r, nil
}

func (s *Service) SaveRefund(ctx context.Context, r *ledger.Refund) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := updateRefund(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	r.Version++
	return nil
}

// updateRefund is version-conditioned like updatePayout.
func updateRefund(ctx context.Context, tx *sql.Tx, r *ledger.Refund) error {
	result, err := tx.ExecContext(ctx, queryUpdateRefund,
		r.Status, r.ProviderRefundID, r.FailureReason,
		nullTime(r.ProcessingAt), nullTime(r.FinishedAt), r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("failed to update refund %s: %w", r.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("refund %s at version %d: %w",
			r.ID, r.Version, store.ErrConcurrentModification)
	}
	return nil
}

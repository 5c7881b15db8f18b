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

func (s *Service) CreatePayout(ctx context.Context, p *ledger.Payout) error {
	bank := p.Bank
	if bank == nil {
		bank = &ledger.BankPayload{}
	}
	mobile := p.Mobile
	if mobile == nil {
		mobile = &ledger.MobilePayload{}
	}
	_, err := s.db.ExecContext(ctx, queryInsertPayout,
		p.ID, p.ProviderID, p.Amount.Int64(), p.Currency, p.Method,
		bank.BankName, bank.BranchName, bank.AccountName, bank.AccountNumber, bank.RoutingNumber,
		mobile.WalletNumber, mobile.AccountHolder, p.Status, p.ReferenceNumber,
		p.RequestedBy, p.ApprovedBy, p.ProcessedBy, p.ExternalTransactionID,
		p.FailureReason, p.CancelReason, p.Version,
		p.RequestedAt, nullTime(p.ApprovedAt), nullTime(p.ProcessingAt), nullTime(p.FinishedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payout reference %s: %w", p.ReferenceNumber, store.ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create payout: %w", err)
	}

	zap.L().Info("Payout requested",
		zap.String("payout_id", p.ID),
		zap.String("provider_id", p.ProviderID),
		zap.String("reference", p.ReferenceNumber),
		zap.Int64("amount", p.Amount.Int64()),
		zap.String("currency", p.Currency),
		zap.String("method", string(p.Method)))
	return nil
}

func (s *Service) GetPayout(ctx context.Context, id string) (*ledger.Payout, error) {
	var p ledger.Payout
	var amount int64
	var bank ledger.BankPayload
	var mobile ledger.MobilePayload
	var approvedAt, processingAt, finishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, queryGetPayout, id).Scan(
		&p.ID, &p.ProviderID, &amount, &p.Currency, &p.Method,
		&bank.BankName, &bank.BranchName, &bank.AccountName, &bank.AccountNumber, &bank.RoutingNumber,
		&mobile.WalletNumber, &mobile.AccountHolder, &p.Status, &p.ReferenceNumber,
		&p.RequestedBy, &p.ApprovedBy, &p.ProcessedBy, &p.ExternalTransactionID,
		&p.FailureReason, &p.CancelReason, &p.Version,
		&p.RequestedAt, &approvedAt, &processingAt, &finishedAt)
	if err == sql.ErrNoRows {
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
	p.ApprovedAt = timePtr(approvedAt)
	p.ProcessingAt = timePtr(processingAt)
	p.FinishedAt = timePtr(finishedAt)
	return &p, nil
}

func (s *Service) SavePayout(ctx context.Context, p *ledger.Payout) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := updatePayout(ctx, tx, p); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	p.Version++
	return nil
}

// updatePayout writes the payout conditionally on the version it was loaded
// at, like accounts. A transition raced by another writer surfaces as
// ErrConcurrentModification; the caller reloads and revalidates.
func updatePayout(ctx context.Context, tx *sql.Tx, p *ledger.Payout) error {
	result, err := tx.ExecContext(ctx, queryUpdatePayout,
		p.Status, p.ApprovedBy, p.ProcessedBy, p.ExternalTransactionID,
		p.FailureReason, p.CancelReason,
		nullTime(p.ApprovedAt), nullTime(p.ProcessingAt), nullTime(p.FinishedAt),
		p.ID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update payout %s: %w", p.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("payout %s at version %d: %w",
			p.ID, p.Version, store.ErrConcurrentModification)
	}
	return nil
}

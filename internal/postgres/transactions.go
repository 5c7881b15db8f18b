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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

// Commit persists one settlement unit of work atomically, mirroring the
// SQLite backend: transaction row with entries, version-checked accounts,
// and the optional payout or refund state change.
func (s *Service) Commit(ctx context.Context, params store.CommitParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.Transaction != nil {
		if err := insertTransaction(ctx, tx, params.Transaction); err != nil {
			return err
		}
	}

	now := time.Now()
	for _, acct := range params.Accounts {
		tag, err := tx.Exec(ctx, queryUpdateAccount,
			acct.Balance.Int64(), acct.Available.Int64(), acct.Reserved.Int64(),
			acct.Status, now, acct.ID, acct.Version)
		if err != nil {
			return fmt.Errorf("failed to update account %s: %w", acct.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("account %s at version %d: %w",
				acct.ID, acct.Version, store.ErrConcurrentModification)
		}
	}

	if params.Payout != nil {
		if err := updatePayout(ctx, tx, params.Payout); err != nil {
			return err
		}
	}
	if params.Refund != nil {
		if err := updateRefund(ctx, tx, params.Refund); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	for _, acct := range params.Accounts {
		acct.Version++
	}
	if params.Payout != nil {
		params.Payout.Version++
	}
	if params.Refund != nil {
		params.Refund.Version++
	}

	if params.Transaction != nil {
		zap.L().Info("Transaction committed",
			zap.String("transaction_id", params.Transaction.ID),
			zap.String("type", string(params.Transaction.Type)),
			zap.String("status", string(params.Transaction.Status)),
			zap.Int64("amount", params.Transaction.Amount.Int64()),
			zap.String("currency", params.Transaction.Currency),
			zap.Int("entries", len(params.Transaction.Entries)))
	}
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn *ledger.Transaction) error {
	_, err := tx.Exec(ctx, queryInsertTransaction,
		txn.ID, txn.Type, txn.Amount.Int64(), txn.Currency, txn.Status,
		txn.ReferenceType, txn.ReferenceID, txn.CreatedBy, txn.FailureReason,
		txn.CreatedAt, txn.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
	}
	for _, e := range txn.Entries {
		_, err := tx.Exec(ctx, queryInsertEntry,
			e.ID, e.TransactionID, e.AccountID, e.Type, e.Amount.Int64(),
			e.Currency, e.ReferenceType, e.ReferenceID, e.Description,
			e.Position, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert ledger entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	var txn ledger.Transaction
	var amount int64
	err := s.pool.QueryRow(ctx, queryGetTransaction, id).Scan(
		&txn.ID, &txn.Type, &amount, &txn.Currency, &txn.Status,
		&txn.ReferenceType, &txn.ReferenceID, &txn.CreatedBy, &txn.FailureReason,
		&txn.CreatedAt, &txn.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.Amount = minor(amount)

	rows, err := s.pool.Query(ctx, queryGetEntriesByTransaction, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for transaction %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		txn.Entries = append(txn.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return &txn, nil
}

func (s *Service) GetEntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]ledger.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, queryGetEntriesByAccount, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return entries, nil
}

func (s *Service) SumEntriesByAccount(ctx context.Context, accountID string) (money.MinorUnits, money.MinorUnits, error) {
	var debits, credits int64
	err := s.pool.QueryRow(ctx, querySumEntriesByAccount, accountID).Scan(&debits, &credits)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum entries for account %s: %w", accountID, err)
	}
	return minor(debits), minor(credits), nil
}

func scanEntry(rows pgx.Rows) (ledger.LedgerEntry, error) {
	var e ledger.LedgerEntry
	var amount int64
	err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Type, &amount,
		&e.Currency, &e.ReferenceType, &e.ReferenceID, &e.Description,
		&e.Position, &e.CreatedAt)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	e.Amount = minor(amount)
	return e, nil
}

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

func minor(v int64) money.MinorUnits {
	return money.MinorUnits(v)
}

func (s *Service) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	_, err := s.pool.Exec(ctx, queryInsertAccount,
		acct.ID, acct.Type, acct.OwnerType, acct.OwnerID, acct.Currency,
		acct.Balance.Int64(), acct.Available.Int64(), acct.Reserved.Int64(),
		acct.Status, acct.Version, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account (%s, %s, %s): %w",
				acct.Type, acct.OwnerID, acct.Currency, store.ErrAccountExists)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	zap.L().Info("Account created",
		zap.String("account_id", acct.ID),
		zap.String("type", string(acct.Type)),
		zap.String("owner_id", acct.OwnerID),
		zap.String("currency", acct.Currency))
	return nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, queryGetAccount, id))
}

func (s *Service) FindAccount(ctx context.Context, typ ledger.AccountType, ownerID, currency string) (*ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, queryFindAccount, typ, ownerID, currency))
}

// SaveAccount writes the account's balances conditionally on the version it
// was loaded at. A lost race surfaces as ErrConcurrentModification; the
// caller reloads and retries.
func (s *Service) SaveAccount(ctx context.Context, acct *ledger.Account) error {
	tag, err := s.pool.Exec(ctx, queryUpdateAccount,
		acct.Balance.Int64(), acct.Available.Int64(), acct.Reserved.Int64(),
		acct.Status, time.Now(), acct.ID, acct.Version)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", acct.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s at version %d: %w",
			acct.ID, acct.Version, store.ErrConcurrentModification)
	}
	acct.Version++
	return nil
}

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var acct ledger.Account
	var balance, available, reserved int64
	err := row.Scan(&acct.ID, &acct.Type, &acct.OwnerType, &acct.OwnerID, &acct.Currency,
		&balance, &available, &reserved, &acct.Status, &acct.Version,
		&acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	acct.Balance = minor(balance)
	acct.Available = minor(available)
	acct.Reserved = minor(reserved)
	return &acct, nil
}

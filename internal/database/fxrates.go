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

	"github.com/shopspring/decimal"

	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

// Rates are stored as decimal TEXT and round-tripped through
// shopspring/decimal, never through float columns.

func (s *Service) UpsertFxRate(ctx context.Context, rate money.Rate) error {
	_, err := s.db.ExecContext(ctx, queryUpsertFxRate,
		rate.Currency, rate.Date, rate.Rate.String(), rate.Source)
	if err != nil {
		return fmt.Errorf("failed to upsert fx rate %s/%s: %w", rate.Currency, rate.Date, err)
	}
	return nil
}

func (s *Service) GetFxRate(ctx context.Context, currency, date string) (money.Rate, error) {
	return scanFxRate(s.db.QueryRowContext(ctx, queryGetFxRate, currency, date))
}

func (s *Service) GetLatestFxRateBefore(ctx context.Context, currency, date, earliest string) (money.Rate, error) {
	return scanFxRate(s.db.QueryRowContext(ctx, queryGetLatestFxRateBefore, currency, date, earliest))
}

func scanFxRate(row rowScanner) (money.Rate, error) {
	var rate money.Rate
	var rateStr string
	err := row.Scan(&rate.Currency, &rate.Date, &rateStr, &rate.Source)
	if err == sql.ErrNoRows {
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

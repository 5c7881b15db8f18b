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
	"errors"

	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

// storeRateSource adapts the persistence layer to the converter's rate
// lookup port.
type storeRateSource struct {
	store store.LedgerStore
}

var _ money.RateSource = storeRateSource{}

// NewStoreRateSource exposes persisted fx rates to a money.Converter.
func NewStoreRateSource(st store.LedgerStore) money.RateSource {
	return storeRateSource{store: st}
}

func (s storeRateSource) RateOn(ctx context.Context, currency, date string) (money.Rate, bool, error) {
	rate, err := s.store.GetFxRate(ctx, currency, date)
	if errors.Is(err, store.ErrNotFound) {
		return money.Rate{}, false, nil
	}
	if err != nil {
		return money.Rate{}, false, err
	}
	return rate, true, nil
}

func (s storeRateSource) LatestBefore(ctx context.Context, currency, date, earliest string) (money.Rate, bool, error) {
	rate, err := s.store.GetLatestFxRateBefore(ctx, currency, date, earliest)
	if errors.Is(err, store.ErrNotFound) {
		return money.Rate{}, false, nil
	}
	if err != nil {
		return money.Rate{}, false, err
	}
	return rate, true, nil
}

// UpsertRate stores or replaces the rate for one (currency, date) pair.
func (s *Service) UpsertRate(ctx context.Context, rate money.Rate) error {
	return s.store.UpsertFxRate(ctx, rate)
}

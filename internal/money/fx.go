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

package money

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the calendar-date layout used for FX rate rows. Rates have
// daily granularity; anything finer is intentionally unsupported.
const DateFormat = "2006-01-02"

// DateOf truncates a timestamp to its FX rate date.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

var (
	ErrRateNotFound = errors.New("fx rate not found")
	ErrStaleRate    = errors.New("fx rate is stale")
)

// Rate is one (currency, date) -> rate-to-base row. Rate is the amount of
// base currency one major unit of Currency buys.
type Rate struct {
	Currency string
	Date     string
	Rate     decimal.Decimal
	Source   string
}

// RateSource supplies dated FX rates. The bool return distinguishes "no row"
// from a lookup failure.
type RateSource interface {
	RateOn(ctx context.Context, currency, date string) (Rate, bool, error)
	LatestBefore(ctx context.Context, currency, date, earliest string) (Rate, bool, error)
}

// ConverterConfig configures the FX converter.
type ConverterConfig struct {
	BaseCurrency       string
	FallbackWindowDays int // how far back to look when the exact date has no rate
	StalenessDays      int // rates older than this are flagged, not trusted
}

// Converter converts minor-unit amounts between a quote currency and the base
// currency using a dated rate table. Conversion is a pure function of the
// rate table; the converter holds no mutable state.
//
// Rounding policy: half-up to integer minor units in both directions. The
// legacy system truncated in one direction and rounded in the other; that
// asymmetry is deliberately not reproduced.
type Converter struct {
	source RateSource
	cfg    ConverterConfig
}

func NewConverter(source RateSource, cfg ConverterConfig) (*Converter, error) {
	if !ValidCurrency(cfg.BaseCurrency) {
		return nil, fmt.Errorf("invalid base currency %q", cfg.BaseCurrency)
	}
	if cfg.FallbackWindowDays < 0 {
		return nil, fmt.Errorf("fallback window cannot be negative, got %d", cfg.FallbackWindowDays)
	}
	if cfg.StalenessDays <= 0 {
		return nil, fmt.Errorf("staleness threshold must be positive, got %d", cfg.StalenessDays)
	}
	return &Converter{source: source, cfg: cfg}, nil
}

func (c *Converter) BaseCurrency() string {
	return c.cfg.BaseCurrency
}

// ToBase converts a minor-unit amount of currency into minor units of the
// base currency as of the given date.
func (c *Converter) ToBase(ctx context.Context, amount MinorUnits, currency string, asOf time.Time) (MinorUnits, error) {
	if currency == c.cfg.BaseCurrency {
		return amount, nil
	}
	rate, err := c.lookup(ctx, currency, asOf)
	if err != nil {
		return 0, err
	}
	major := amount.Decimal(Exponent(currency))
	baseMinor := major.Mul(rate.Rate).Shift(int32(Exponent(c.cfg.BaseCurrency)))
	// decimal.Round is half-away-from-zero, which is half-up for the
	// non-negative amounts the ledger allows.
	return MinorUnits(baseMinor.Round(0).IntPart()), nil
}

// FromBase converts minor units of the base currency into minor units of
// currency as of the given date.
func (c *Converter) FromBase(ctx context.Context, baseAmount MinorUnits, currency string, asOf time.Time) (MinorUnits, error) {
	if currency == c.cfg.BaseCurrency {
		return baseAmount, nil
	}
	rate, err := c.lookup(ctx, currency, asOf)
	if err != nil {
		return 0, err
	}
	baseMajor := baseAmount.Decimal(Exponent(c.cfg.BaseCurrency))
	// Divide with generous precision before the final rounding step so the
	// half-up only happens once, at minor-unit scale.
	major := baseMajor.DivRound(rate.Rate, int32(Exponent(currency))+8)
	minor := major.Shift(int32(Exponent(currency)))
	return MinorUnits(minor.Round(0).IntPart()), nil
}

func (c *Converter) lookup(ctx context.Context, currency string, asOf time.Time) (Rate, error) {
	if !ValidCurrency(currency) {
		return Rate{}, fmt.Errorf("invalid currency %q: %w", currency, ErrRateNotFound)
	}
	date := DateOf(asOf)

	rate, found, err := c.source.RateOn(ctx, currency, date)
	if err != nil {
		return Rate{}, fmt.Errorf("fx rate lookup for %s on %s: %w", currency, date, err)
	}
	if !found {
		earliest := DateOf(asOf.AddDate(0, 0, -c.cfg.FallbackWindowDays))
		rate, found, err = c.source.LatestBefore(ctx, currency, date, earliest)
		if err != nil {
			return Rate{}, fmt.Errorf("fx rate fallback lookup for %s before %s: %w", currency, date, err)
		}
		if !found {
			return Rate{}, fmt.Errorf("no rate for %s on or within %d days before %s: %w",
				currency, c.cfg.FallbackWindowDays, date, ErrRateNotFound)
		}
	}
	if rate.Rate.Sign() <= 0 {
		return Rate{}, fmt.Errorf("non-positive rate %s for %s on %s: %w",
			rate.Rate.String(), currency, rate.Date, ErrRateNotFound)
	}

	staleCutoff := DateOf(asOf.AddDate(0, 0, -c.cfg.StalenessDays))
	// ISO dates compare correctly as strings.
	if rate.Date < staleCutoff {
		return Rate{}, fmt.Errorf("rate for %s dated %s is older than %d days: %w",
			currency, rate.Date, c.cfg.StalenessDays, ErrStaleRate)
	}
	return rate, nil
}

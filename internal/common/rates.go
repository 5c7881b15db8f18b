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

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"settlement-ledger-go/internal/money"
)

type RateEntry struct {
	Currency string `yaml:"currency"`
	Date     string `yaml:"date"`
	Rate     string `yaml:"rate"`
	Source   string `yaml:"source"`
}

type RatesConfig struct {
	Rates []RateEntry `yaml:"rates"`
}

// LoadRatesFile reads a YAML rate table for seeding the fx store. Each
// entry must carry a currency, an ISO date and a positive decimal rate.
func LoadRatesFile(ratesFile string) ([]money.Rate, error) {
	var ratesPath string
	if filepath.IsAbs(ratesFile) {
		ratesPath = ratesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		ratesPath = filepath.Join(wd, ratesFile)
	}

	data, err := os.ReadFile(ratesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", ratesFile, err)
	}

	var config RatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", ratesFile, err)
	}

	rates := make([]money.Rate, 0, len(config.Rates))
	for i, entry := range config.Rates {
		if !money.ValidCurrency(entry.Currency) {
			return nil, fmt.Errorf("rate at index %d has invalid currency %q", i, entry.Currency)
		}
		if _, err := time.Parse(money.DateFormat, entry.Date); err != nil {
			return nil, fmt.Errorf("rate at index %d has invalid date %q", i, entry.Date)
		}
		value, err := decimal.NewFromString(entry.Rate)
		if err != nil {
			return nil, fmt.Errorf("rate at index %d has invalid rate %q", i, entry.Rate)
		}
		if !value.IsPositive() {
			return nil, fmt.Errorf("rate at index %d must be positive, got %s", i, entry.Rate)
		}
		rates = append(rates, money.Rate{
			Currency: entry.Currency,
			Date:     entry.Date,
			Rate:     value,
			Source:   entry.Source,
		})
	}
	return rates, nil
}

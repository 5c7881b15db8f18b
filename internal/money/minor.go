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
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnits is an exact integer amount in the smallest denomination of a
// currency (poisha, cents). All ledger arithmetic goes through this type;
// floating point is never used for amounts.
type MinorUnits int64

func (m MinorUnits) Add(other MinorUnits) MinorUnits {
	return m + other
}

func (m MinorUnits) Sub(other MinorUnits) MinorUnits {
	return m - other
}

func (m MinorUnits) IsPositive() bool {
	return m > 0
}

func (m MinorUnits) IsNegative() bool {
	return m < 0
}

func (m MinorUnits) Int64() int64 {
	return int64(m)
}

// Decimal returns the amount as a decimal in major units for the given
// currency exponent, e.g. 1050 with exponent 2 -> 10.50.
func (m MinorUnits) Decimal(exponent int) decimal.Decimal {
	return decimal.New(int64(m), -int32(exponent))
}

// exponents maps ISO-4217 codes to their minor-unit exponent. Currencies not
// listed default to 2.
var exponents = map[string]int{
	"BDT": 2,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
	"INR": 2,
	"JPY": 0,
	"KWD": 3,
}

// Exponent returns the minor-unit exponent for a currency code.
func Exponent(currency string) int {
	if exp, ok := exponents[currency]; ok {
		return exp
	}
	return 2
}

// FormatMinor renders a minor-unit amount as a human-readable major-unit
// string, e.g. FormatMinor(123450, "BDT") -> "1234.50 BDT".
func FormatMinor(amount MinorUnits, currency string) string {
	return fmt.Sprintf("%s %s", amount.Decimal(Exponent(currency)).StringFixed(int32(Exponent(currency))), currency)
}

// ValidCurrency reports whether code looks like an ISO-4217 currency code:
// exactly three uppercase ASCII letters.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

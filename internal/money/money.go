/**
 * Copyright 2025-present Coinbase Global, Inc.
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

// Package money holds the exact monetary amount type used for donations and
// campaign totals. Amounts are integer counts of minor units (cents) and are
// only ever rendered as decimals with two fractional digits.
package money

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by every amount.
const Scale = 2

var (
	ErrNegativeResult = errors.New("money: result would be negative")
	ErrInvalidAmount  = errors.New("money: invalid amount")
)

// Money is an exact amount in minor units. The zero value is 0.00.
type Money struct {
	minor int64
}

// Zero is 0.00.
var Zero = Money{}

func FromMinorUnits(minor int64) Money {
	return Money{minor: minor}
}

// FromDecimal converts a decimal with at most two fractional digits.
// Negative values and values that do not fit in int64 minor units are rejected.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, d.String())
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return Zero, fmt.Errorf("%w: %s has more than %d fractional digits", ErrInvalidAmount, d.String(), Scale)
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return Zero, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Money{minor: bi.Int64()}, nil
}

// Parse reads a decimal string such as "50", "50.5" or "50.00".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

func (m Money) ToMinorUnits() int64 {
	return m.minor
}

func (m Money) Add(other Money) Money {
	return Money{minor: m.minor + other.minor}
}

// Sub returns m - other, or ErrNegativeResult when other is larger.
func (m Money) Sub(other Money) (Money, error) {
	if other.minor > m.minor {
		return Zero, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m, other)
	}
	return Money{minor: m.minor - other.minor}, nil
}

func (m Money) IsPositive() bool { return m.minor > 0 }

func (m Money) IsZero() bool { return m.minor == 0 }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(other Money) int {
	switch {
	case m.minor < other.minor:
		return -1
	case m.minor > other.minor:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(other Money) bool { return m.minor == other.minor }

// Decimal exposes the amount as a decimal with exponent -2.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Scale)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// MarshalJSON renders the amount as a decimal string ("50.00") so clients never
// round-trip through binary floating point.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Zero
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner; amounts are stored as INTEGER minor units.
func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Zero
	case int64:
		*m = Money{minor: v}
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: cannot scan %q", ErrInvalidAmount, v)
		}
		*m = Money{minor: n}
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: cannot scan %q", ErrInvalidAmount, v)
		}
		*m = Money{minor: n}
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidAmount, src)
	}
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.minor, nil
}

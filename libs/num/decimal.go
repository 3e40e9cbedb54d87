// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package num

import (
	"github.com/shopspring/decimal"
)

// Decimal is the arbitrary precision decimal type used at the edges of
// the engine: price parsing in tooling, human readable output, tests.
// Core arithmetic never goes through Decimal.
type Decimal = decimal.Decimal

var (
	dzero = decimal.Zero
	d1    = decimal.NewFromInt(1)
)

// DecimalZero returns the zero decimal.
func DecimalZero() Decimal {
	return dzero
}

// DecimalOne returns the decimal one.
func DecimalOne() Decimal {
	return d1
}

// DecimalFromString parses a decimal from its string representation.
func DecimalFromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// MustDecimalFromString parses a decimal from its string representation,
// panicking on invalid input. For constants and tests.
func MustDecimalFromString(s string) Decimal {
	d, err := DecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromInt64 returns the decimal representation of i.
func DecimalFromInt64(i int64) Decimal {
	return decimal.NewFromInt(i)
}

// DecimalFromUint returns the decimal representation of u.
func DecimalFromUint(u *Uint) Decimal {
	return decimal.NewFromBigInt(u.BigInt(), 0)
}

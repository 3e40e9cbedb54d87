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

// Package quantities defines the engine's numeric vocabulary: atom
// counts on the base, quote and global axes as checked uint64 new-types,
// and the fixed point price ratio converting between the base and quote
// axes with directional rounding.
package quantities

import (
	"math"

	"github.com/pkg/errors"
)

// ErrOverflow is returned when a checked quantity operation would wrap.
// The engine never silently saturates or wraps: an overflowing call is
// fatal for the current operation and the caller discards its mutations.
var ErrOverflow = errors.New("quantities: arithmetic overflow")

// BaseAtoms counts indivisible units of the base token.
type BaseAtoms uint64

// QuoteAtoms counts indivisible units of the quote token.
type QuoteAtoms uint64

// GlobalAtoms counts units deposited in a global ledger account. The
// axis (base or quote) depends on which side the backing serves.
type GlobalAtoms uint64

// CheckedAdd returns b + oth or ErrOverflow.
func (b BaseAtoms) CheckedAdd(oth BaseAtoms) (BaseAtoms, error) {
	if oth > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return b + oth, nil
}

// CheckedSub returns b - oth or ErrOverflow on underflow.
func (b BaseAtoms) CheckedSub(oth BaseAtoms) (BaseAtoms, error) {
	if oth > b {
		return 0, ErrOverflow
	}
	return b - oth, nil
}

// CheckedMul returns b * oth or ErrOverflow.
func (b BaseAtoms) CheckedMul(oth BaseAtoms) (BaseAtoms, error) {
	if b != 0 && oth > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return b * oth, nil
}

// Min returns the smaller of b and oth.
func (b BaseAtoms) Min(oth BaseAtoms) BaseAtoms {
	if oth < b {
		return oth
	}
	return b
}

// CheckedAdd returns q + oth or ErrOverflow.
func (q QuoteAtoms) CheckedAdd(oth QuoteAtoms) (QuoteAtoms, error) {
	if oth > math.MaxUint64-q {
		return 0, ErrOverflow
	}
	return q + oth, nil
}

// CheckedSub returns q - oth or ErrOverflow on underflow.
func (q QuoteAtoms) CheckedSub(oth QuoteAtoms) (QuoteAtoms, error) {
	if oth > q {
		return 0, ErrOverflow
	}
	return q - oth, nil
}

// CheckedMul returns q * oth or ErrOverflow.
func (q QuoteAtoms) CheckedMul(oth QuoteAtoms) (QuoteAtoms, error) {
	if q != 0 && oth > math.MaxUint64/q {
		return 0, ErrOverflow
	}
	return q * oth, nil
}

// WrappingAdd returns q + oth with silent wrap around. Only for advisory
// lifetime counters that are documented to overflow.
func (q QuoteAtoms) WrappingAdd(oth QuoteAtoms) QuoteAtoms {
	return q + oth
}

// CheckedAdd returns g + oth or ErrOverflow.
func (g GlobalAtoms) CheckedAdd(oth GlobalAtoms) (GlobalAtoms, error) {
	if oth > math.MaxUint64-g {
		return 0, ErrOverflow
	}
	return g + oth, nil
}

// CheckedSub returns g - oth or ErrOverflow on underflow.
func (g GlobalAtoms) CheckedSub(oth GlobalAtoms) (GlobalAtoms, error) {
	if oth > g {
		return 0, ErrOverflow
	}
	return g - oth, nil
}

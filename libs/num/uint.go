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
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Uint is a wrapper for a big unsigned int. All the engine's wide
// arithmetic (128 bit fixed point prices times 64 bit quantities) fits in
// 256 bits, so intermediate computations never overflow.
type Uint struct {
	u uint256.Int
}

// NewUint creates a new Uint with the value of the uint64 passed as a
// parameter.
func NewUint(val uint64) *Uint {
	return &Uint{*uint256.NewInt(val)}
}

// UintZero returns a new Uint set to zero.
func UintZero() *Uint {
	return NewUint(0)
}

// UintFromBig constructs a new Uint from a big.Int, the second return
// value is true if an overflow happened.
func UintFromBig(b *big.Int) (*Uint, bool) {
	u, overflow := uint256.FromBig(b)
	if overflow {
		return UintZero(), true
	}
	return &Uint{*u}, false
}

// UintFromWords builds a Uint out of little endian significance ordered
// 64 bit words. Used to lift the fixed point price representation into
// wide arithmetic.
func UintFromWords(lo, hi uint64) *Uint {
	z := &Uint{}
	z.u[0] = lo
	z.u[1] = hi
	return z
}

// Words returns the two low little endian significance ordered words of
// the value. The value must fit in 128 bits, use FitsUint128 to check.
func (z *Uint) Words() (lo, hi uint64) {
	return z.u[0], z.u[1]
}

// Min returns the smallest of the 2 numbers.
func Min(a, b *Uint) *Uint {
	if a.LT(b) {
		return a
	}
	return b
}

// Max returns the largest of the 2 numbers.
func Max(a, b *Uint) *Uint {
	if a.GT(b) {
		return a
	}
	return b
}

// Set sets z to the value of oth.
func (z *Uint) Set(oth *Uint) *Uint {
	z.u.Set(&oth.u)
	return z
}

// Add sets z to x + y, ignoring overflow. z is returned for convenience.
func (z *Uint) Add(x, y *Uint) *Uint {
	z.u.Add(&x.u, &y.u)
	return z
}

// AddOverflow sets z to x + y, the second return value is true if the
// addition overflowed.
func (z *Uint) AddOverflow(x, y *Uint) (*Uint, bool) {
	_, overflow := z.u.AddOverflow(&x.u, &y.u)
	return z, overflow
}

// Sub sets z to x - y. z is returned for convenience.
func (z *Uint) Sub(x, y *Uint) *Uint {
	z.u.Sub(&x.u, &y.u)
	return z
}

// SubOverflow sets z to x - y, the second return value is true if the
// subtraction underflowed.
func (z *Uint) SubOverflow(x, y *Uint) (*Uint, bool) {
	_, underflow := z.u.SubOverflow(&x.u, &y.u)
	return z, underflow
}

// Mul sets z to x * y. z is returned for convenience.
func (z *Uint) Mul(x, y *Uint) *Uint {
	z.u.Mul(&x.u, &y.u)
	return z
}

// Div sets z to x / y, truncated. z is returned for convenience.
func (z *Uint) Div(x, y *Uint) *Uint {
	z.u.Div(&x.u, &y.u)
	return z
}

// Mod sets z to x % y. z is returned for convenience.
func (z *Uint) Mod(x, y *Uint) *Uint {
	z.u.Mod(&x.u, &y.u)
	return z
}

// LT is z < oth.
func (z *Uint) LT(oth *Uint) bool {
	return z.u.Lt(&oth.u)
}

// LTE is z <= oth.
func (z *Uint) LTE(oth *Uint) bool {
	return z.u.Lt(&oth.u) || z.u.Eq(&oth.u)
}

// GT is z > oth.
func (z *Uint) GT(oth *Uint) bool {
	return z.u.Gt(&oth.u)
}

// GTE is z >= oth.
func (z *Uint) GTE(oth *Uint) bool {
	return z.u.Gt(&oth.u) || z.u.Eq(&oth.u)
}

// EQ is z == oth.
func (z *Uint) EQ(oth *Uint) bool {
	return z.u.Eq(&oth.u)
}

// IsZero returns whether z == 0 or not.
func (z *Uint) IsZero() bool {
	return z.u.IsZero()
}

// IsUint64 reports whether the value fits in 64 bits.
func (z *Uint) IsUint64() bool {
	return z.u.IsUint64()
}

// FitsUint128 reports whether the value fits in 128 bits.
func (z *Uint) FitsUint128() bool {
	return z.u[2] == 0 && z.u[3] == 0
}

// Uint64 returns the low 64 bits of the value. Callers check IsUint64
// first when truncation matters.
func (z *Uint) Uint64() uint64 {
	return z.u.Uint64()
}

// Clone creates a copy of this value.
func (z *Uint) Clone() *Uint {
	return &Uint{z.u}
}

// BigInt returns the value as a big.Int.
func (z *Uint) BigInt() *big.Int {
	return z.u.ToBig()
}

// String returns the stored value as a base 10 string.
func (z *Uint) String() string {
	return z.u.ToBig().String()
}

// Format implements fmt.Formatter.
func (z *Uint) Format(s fmt.State, ch rune) {
	z.u.Format(s, ch)
}

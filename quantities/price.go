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

package quantities

import (
	"fmt"

	"code.vegaprotocol.io/flatbook/libs/num"

	"github.com/pkg/errors"
)

// priceScaleDigits is the number of fixed point decimals in the stored
// ratio: a price of 1 quote atom per base atom is stored as 10^18.
const priceScaleDigits = 18

// Exponent bounds accepted when constructing a price from a mantissa and
// a power of ten.
const (
	MinPriceExponent = -priceScaleDigits
	MaxPriceExponent = 8
)

var (
	// ErrPriceConversion is returned when a conversion between the base
	// and quote axes cannot be represented, or a price construction is
	// out of range.
	ErrPriceConversion = errors.New("quantities: price conversion out of range")

	priceScale = num.NewUint(1_000_000_000_000_000_000)
	uintOne    = num.NewUint(1)
)

// QuoteAtomsPerBaseAtom is the fixed point ratio of quote atoms per base
// atom. It is stored as an unsigned 128 bit value scaled by 10^18, split
// in two little endian significance ordered words for the wire codec.
// Conversion between axes takes an explicit rounding direction; there is
// no global rounding mode.
type QuoteAtomsPerBaseAtom struct {
	lo uint64
	hi uint64
}

// ZeroPrice is the zero ratio.
var ZeroPrice = QuoteAtomsPerBaseAtom{}

// PriceFromWords rebuilds a price from its persisted words.
func PriceFromWords(lo, hi uint64) QuoteAtomsPerBaseAtom {
	return QuoteAtomsPerBaseAtom{lo: lo, hi: hi}
}

// Words returns the two little endian significance ordered words of the
// scaled ratio, for the wire codec.
func (p QuoteAtomsPerBaseAtom) Words() (lo, hi uint64) {
	return p.lo, p.hi
}

func (p QuoteAtomsPerBaseAtom) inner() *num.Uint {
	return num.UintFromWords(p.lo, p.hi)
}

func priceFromUint(u *num.Uint) (QuoteAtomsPerBaseAtom, error) {
	if !u.FitsUint128() {
		return ZeroPrice, ErrPriceConversion
	}
	lo, hi := u.Words()
	return QuoteAtomsPerBaseAtom{lo: lo, hi: hi}, nil
}

// PriceFromMantissaAndExponent builds the ratio mantissa*10^exponent.
// The exponent must lie in [MinPriceExponent, MaxPriceExponent].
func PriceFromMantissaAndExponent(mantissa uint32, exponent int8) (QuoteAtomsPerBaseAtom, error) {
	if int(exponent) < MinPriceExponent || int(exponent) > MaxPriceExponent {
		return ZeroPrice, ErrPriceConversion
	}
	// scaled = mantissa * 10^(18+exponent), at most ~2^119, fits 128 bits.
	scaled := num.NewUint(uint64(mantissa))
	scaled.Mul(scaled, pow10(priceScaleDigits+int(exponent)))
	return priceFromUint(scaled)
}

// PriceFromDecimal converts a decimal quote-per-base price to the fixed
// point representation, truncating below the 18th decimal.
func PriceFromDecimal(d num.Decimal) (QuoteAtomsPerBaseAtom, error) {
	if d.IsNegative() {
		return ZeroPrice, ErrPriceConversion
	}
	scaled := d.Shift(priceScaleDigits).Truncate(0)
	u, overflow := num.UintFromBig(scaled.BigInt())
	if overflow {
		return ZeroPrice, ErrPriceConversion
	}
	return priceFromUint(u)
}

// ToDecimal returns the ratio as an arbitrary precision decimal, for
// display and tests.
func (p QuoteAtomsPerBaseAtom) ToDecimal() num.Decimal {
	return num.DecimalFromUint(p.inner()).Shift(-priceScaleDigits)
}

// IsZero reports whether the ratio is zero.
func (p QuoteAtomsPerBaseAtom) IsZero() bool {
	return p.lo == 0 && p.hi == 0
}

// Compare orders ratios numerically.
func (p QuoteAtomsPerBaseAtom) Compare(oth QuoteAtomsPerBaseAtom) int {
	switch {
	case p.hi < oth.hi:
		return -1
	case p.hi > oth.hi:
		return 1
	case p.lo < oth.lo:
		return -1
	case p.lo > oth.lo:
		return 1
	}
	return 0
}

// AlmostEqual reports whether the two ratios are within one inner unit
// of each other. Reverse order coalescing treats such prices as the same
// level to stop re-quotes fragmenting the book.
func (p QuoteAtomsPerBaseAtom) AlmostEqual(oth QuoteAtomsPerBaseAtom) bool {
	a, b := p.inner(), oth.inner()
	if a.LT(b) {
		a, b = b, a
	}
	return a.Sub(a, b).LTE(uintOne)
}

// CheckedQuoteForBase converts a base quantity to the quote axis at this
// ratio: quote = base * ratio, rounded up or down as directed. Fails
// with ErrOverflow when the result does not fit the quote axis.
func (p QuoteAtomsPerBaseAtom) CheckedQuoteForBase(base BaseAtoms, roundUp bool) (QuoteAtoms, error) {
	prod := num.UintZero().Mul(p.inner(), num.NewUint(uint64(base)))
	q, rem := divMod(prod, priceScale)
	if roundUp && !rem.IsZero() {
		q.Add(q, uintOne)
	}
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return QuoteAtoms(q.Uint64()), nil
}

// CheckedBaseForQuote converts a quote quantity to the base axis at this
// ratio: base = quote / ratio, rounded up or down as directed. A zero
// ratio converts to zero.
func (p QuoteAtomsPerBaseAtom) CheckedBaseForQuote(quote QuoteAtoms, roundUp bool) (BaseAtoms, error) {
	if p.IsZero() {
		return 0, nil
	}
	prod := num.UintZero().Mul(num.NewUint(uint64(quote)), priceScale)
	b, rem := divMod(prod, p.inner())
	if roundUp && !rem.IsZero() {
		b.Add(b, uintOne)
	}
	if !b.IsUint64() {
		return 0, ErrOverflow
	}
	return BaseAtoms(b.Uint64()), nil
}

// CheckedMulRational scales the ratio by nmr/dnm with the directed
// rounding, used to re-quote reverse orders at a spread adjusted price.
func (p QuoteAtomsPerBaseAtom) CheckedMulRational(nmr, dnm uint32, roundUp bool) (QuoteAtomsPerBaseAtom, error) {
	if dnm == 0 {
		return ZeroPrice, ErrPriceConversion
	}
	prod := num.UintZero().Mul(p.inner(), num.NewUint(uint64(nmr)))
	q, rem := divMod(prod, num.NewUint(uint64(dnm)))
	if roundUp && !rem.IsZero() {
		q.Add(q, uintOne)
	}
	return priceFromUint(q)
}

func (p QuoteAtomsPerBaseAtom) String() string {
	return p.ToDecimal().String()
}

func divMod(x, y *num.Uint) (*num.Uint, *num.Uint) {
	q := num.UintZero().Div(x, y)
	r := num.UintZero().Mod(x, y)
	return q, r
}

var pow10Table = buildPow10()

func buildPow10() []*num.Uint {
	t := make([]*num.Uint, priceScaleDigits+MaxPriceExponent+1)
	v := num.NewUint(1)
	ten := num.NewUint(10)
	for i := range t {
		t[i] = v.Clone()
		v.Mul(v, ten)
	}
	return t
}

func pow10(n int) *num.Uint {
	if n < 0 || n >= len(pow10Table) {
		panic(fmt.Sprintf("quantities: pow10 out of range: %d", n))
	}
	return pow10Table[n]
}

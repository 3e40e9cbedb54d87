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

package quantities_test

import (
	"math"
	"testing"

	"code.vegaprotocol.io/flatbook/libs/num"
	"code.vegaprotocol.io/flatbook/quantities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPrice(t *testing.T, mantissa uint32, exponent int8) quantities.QuoteAtomsPerBaseAtom {
	t.Helper()
	p, err := quantities.PriceFromMantissaAndExponent(mantissa, exponent)
	require.NoError(t, err)
	return p
}

func TestCheckedAtomArithmetic(t *testing.T) {
	b, err := quantities.BaseAtoms(10).CheckedAdd(5)
	require.NoError(t, err)
	assert.Equal(t, quantities.BaseAtoms(15), b)

	_, err = quantities.BaseAtoms(math.MaxUint64).CheckedAdd(1)
	assert.ErrorIs(t, err, quantities.ErrOverflow)

	_, err = quantities.BaseAtoms(3).CheckedSub(4)
	assert.ErrorIs(t, err, quantities.ErrOverflow)

	q, err := quantities.QuoteAtoms(7).CheckedSub(7)
	require.NoError(t, err)
	assert.Equal(t, quantities.QuoteAtoms(0), q)

	b, err = quantities.BaseAtoms(1 << 32).CheckedMul(1 << 31)
	require.NoError(t, err)
	assert.Equal(t, quantities.BaseAtoms(1<<63), b)

	_, err = quantities.BaseAtoms(1 << 32).CheckedMul(1 << 32)
	assert.ErrorIs(t, err, quantities.ErrOverflow)

	_, err = quantities.QuoteAtoms(math.MaxUint64).CheckedMul(2)
	assert.ErrorIs(t, err, quantities.ErrOverflow)

	// The advisory volume counter wraps silently.
	assert.Equal(t, quantities.QuoteAtoms(4), quantities.QuoteAtoms(math.MaxUint64).WrappingAdd(5))

	_, err = quantities.GlobalAtoms(0).CheckedSub(1)
	assert.ErrorIs(t, err, quantities.ErrOverflow)
}

func TestPriceConstructionBounds(t *testing.T) {
	_, err := quantities.PriceFromMantissaAndExponent(1, -19)
	assert.ErrorIs(t, err, quantities.ErrPriceConversion)
	_, err = quantities.PriceFromMantissaAndExponent(1, 9)
	assert.ErrorIs(t, err, quantities.ErrPriceConversion)

	p := mustPrice(t, 2, 0)
	assert.Equal(t, "2", p.ToDecimal().String())

	p = mustPrice(t, 15, -1)
	assert.Equal(t, "1.5", p.ToDecimal().String())
}

func TestPriceDecimalRoundTrip(t *testing.T) {
	d := num.MustDecimalFromString("1234.000000056")
	p, err := quantities.PriceFromDecimal(d)
	require.NoError(t, err)
	assert.True(t, d.Equal(p.ToDecimal()))

	_, err = quantities.PriceFromDecimal(num.MustDecimalFromString("-1"))
	assert.ErrorIs(t, err, quantities.ErrPriceConversion)
}

func TestQuoteForBaseRounding(t *testing.T) {
	// 1.5 quote per base, 3 base -> 4.5 quote exactly on the boundary.
	p := mustPrice(t, 15, -1)

	down, err := p.CheckedQuoteForBase(3, false)
	require.NoError(t, err)
	assert.Equal(t, quantities.QuoteAtoms(4), down)

	up, err := p.CheckedQuoteForBase(3, true)
	require.NoError(t, err)
	assert.Equal(t, quantities.QuoteAtoms(5), up)

	// Exact conversions ignore the rounding direction.
	exact, err := p.CheckedQuoteForBase(2, true)
	require.NoError(t, err)
	assert.Equal(t, quantities.QuoteAtoms(3), exact)
}

func TestBaseForQuoteRounding(t *testing.T) {
	p := mustPrice(t, 3, 0)

	down, err := p.CheckedBaseForQuote(100, false)
	require.NoError(t, err)
	assert.Equal(t, quantities.BaseAtoms(33), down)

	up, err := p.CheckedBaseForQuote(100, true)
	require.NoError(t, err)
	assert.Equal(t, quantities.BaseAtoms(34), up)

	// Zero ratio converts to zero rather than dividing by zero.
	zero, err := quantities.ZeroPrice.CheckedBaseForQuote(100, true)
	require.NoError(t, err)
	assert.Equal(t, quantities.BaseAtoms(0), zero)
}

func TestQuoteForBaseOverflow(t *testing.T) {
	p := mustPrice(t, math.MaxUint32, 8)
	_, err := p.CheckedQuoteForBase(quantities.BaseAtoms(math.MaxUint64), false)
	assert.ErrorIs(t, err, quantities.ErrOverflow)
}

func TestMulRationalSpread(t *testing.T) {
	p := mustPrice(t, 1, 0)

	// 50 bps-like spread on the coarse reverse denominator.
	adj, err := p.CheckedMulRational(100_000-500, 100_000, false)
	require.NoError(t, err)
	assert.Equal(t, "0.995", adj.ToDecimal().String())

	widened, err := p.CheckedMulRational(100_000, 100_000-500, true)
	require.NoError(t, err)
	// 1 / 0.995 does not terminate, the up rounding lands one inner unit
	// above the truncation.
	assert.Equal(t, 1, widened.Compare(p))

	_, err = p.CheckedMulRational(1, 0, false)
	assert.ErrorIs(t, err, quantities.ErrPriceConversion)
}

func TestAlmostEqual(t *testing.T) {
	p := mustPrice(t, 1, 0)
	lo, hi := p.Words()
	require.Equal(t, uint64(0), hi)

	assert.True(t, p.AlmostEqual(quantities.PriceFromWords(lo+1, 0)))
	assert.True(t, p.AlmostEqual(quantities.PriceFromWords(lo-1, 0)))
	assert.True(t, p.AlmostEqual(p))
	assert.False(t, p.AlmostEqual(quantities.PriceFromWords(lo+2, 0)))
}

func TestPriceWordsRoundTrip(t *testing.T) {
	p := mustPrice(t, 123456789, 5)
	lo, hi := p.Words()
	assert.Equal(t, p, quantities.PriceFromWords(lo, hi))
}

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

package market_test

import (
	"testing"

	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/market"
	"code.vegaprotocol.io/flatbook/quantities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestingOrderInvariants(t *testing.T) {
	t.Run("reversible with expiration panics at construction", func(t *testing.T) {
		require.Panics(t, func() {
			market.NewRestingOrder(0, 10, quantities.ZeroPrice, 0, 5, true, market.Reverse)
		})
		require.Panics(t, func() {
			market.NewRestingOrder(0, 10, quantities.ZeroPrice, 0, 5, false, market.ReverseTight)
		})
	})

	t.Run("limit order with expiration is fine", func(t *testing.T) {
		o := market.NewRestingOrder(0, 10, quantities.ZeroPrice, 0, 5, true, market.Limit)
		assert.False(t, o.IsExpired(4))
		assert.False(t, o.IsExpired(5))
		assert.True(t, o.IsExpired(6))
	})

	t.Run("zero expiration never expires", func(t *testing.T) {
		o := market.NewRestingOrder(0, 10, quantities.ZeroPrice, 0, market.NoExpiration, true, market.Limit)
		assert.False(t, o.IsExpired(^uint32(0)))
	})
}

func TestRestingOrderCompare(t *testing.T) {
	mk := func(px string, seq uint64, isBid bool) *market.RestingOrder {
		return market.NewRestingOrder(0, 1, price(t, px), seq, 0, isBid, market.Limit)
	}

	t.Run("asks order by price ascending", func(t *testing.T) {
		assert.Negative(t, mk("1.0", 5, false).Compare(mk("2.0", 1, false)))
		assert.Positive(t, mk("2.0", 1, false).Compare(mk("1.0", 5, false)))
	})

	t.Run("bids order by price descending", func(t *testing.T) {
		assert.Negative(t, mk("2.0", 5, true).Compare(mk("1.0", 1, true)))
		assert.Positive(t, mk("1.0", 1, true).Compare(mk("2.0", 5, true)))
	})

	t.Run("equal price falls back to sequence", func(t *testing.T) {
		assert.Negative(t, mk("1.0", 1, false).Compare(mk("1.0", 2, false)))
		assert.Negative(t, mk("1.0", 1, true).Compare(mk("1.0", 2, true)))
		assert.Zero(t, mk("1.0", 3, true).Compare(mk("1.0", 3, true)))
	})
}

func TestRestingOrderEqual(t *testing.T) {
	reverse := func(px string) *market.RestingOrder {
		return market.NewRestingOrder(7, 1, price(t, px), 0, 0, true, market.Reverse)
	}

	t.Run("reversible tolerates one inner unit", func(t *testing.T) {
		a := reverse("1.0")
		b := reverse("1.0")
		blo, bhi := b.Price.Words()
		b.Price = quantities.PriceFromWords(blo+1, bhi)
		assert.True(t, a.Equal(b))
		assert.True(t, b.Equal(a))

		b.Price = quantities.PriceFromWords(blo+2, bhi)
		assert.False(t, a.Equal(b))
	})

	t.Run("non reversible requires exact price", func(t *testing.T) {
		a := market.NewRestingOrder(7, 1, price(t, "1.0"), 0, 0, true, market.Limit)
		b := market.NewRestingOrder(7, 1, price(t, "1.0"), 9, 0, true, market.Limit)
		assert.True(t, a.Equal(b))
		blo, bhi := b.Price.Words()
		b.Price = quantities.PriceFromWords(blo+1, bhi)
		assert.False(t, a.Equal(b))
	})

	t.Run("different seat or type never matches", func(t *testing.T) {
		a := reverse("1.0")
		b := reverse("1.0")
		b.TraderIndex = 8
		assert.False(t, a.Equal(b))

		c := reverse("1.0")
		c.Type = market.ReverseTight
		assert.False(t, a.Equal(c))
	})
}

func TestReversePrice(t *testing.T) {
	t.Run("tight spread uses the fine denominator", func(t *testing.T) {
		o := market.NewRestingOrder(0, 1, price(t, "1.0"), 0, 0, false, market.ReverseTight)
		o.ReverseSpread = 1000 // 0.001% of the 100_000_000 base

		rp, err := o.ReversePrice()
		require.NoError(t, err)
		assert.Equal(t, "0.99999", rp.ToDecimal().String())
	})

	t.Run("bid requote rounds up against the maker", func(t *testing.T) {
		o := market.NewRestingOrder(0, 1, price(t, "3.0"), 0, 0, true, market.Reverse)
		o.ReverseSpread = 1 // 3.0 * 100000/99999 is inexact

		rp, err := o.ReversePrice()
		require.NoError(t, err)
		assert.Positive(t, rp.Compare(price(t, "3.0")))
	})

	t.Run("non reversible returns its own price", func(t *testing.T) {
		o := market.NewRestingOrder(0, 1, price(t, "3.0"), 0, 0, true, market.Limit)
		rp, err := o.ReversePrice()
		require.NoError(t, err)
		assert.Zero(t, rp.Compare(o.Price))
	})
}

func TestHeaderRoundTrip(t *testing.T) {
	h := market.Header{
		Discriminant:        12345,
		Version:             market.Version,
		BaseMintDecimals:    9,
		QuoteMintDecimals:   6,
		BaseVaultBump:       254,
		QuoteVaultBump:      253,
		BaseMint:            crypto.RandomKey(),
		QuoteMint:           crypto.RandomKey(),
		BaseVault:           crypto.RandomKey(),
		QuoteVault:          crypto.RandomKey(),
		OrderSequenceNumber: 42,
		BytesAllocated:      market.BlockSize * 3,
		BidsRoot:            80,
		BidsBest:            160,
		AsksRoot:            0,
		AsksBest:            0,
		SeatsRoot:           240,
		FreeListHead:        320,
		QuoteVolume:         999,
	}
	buf := make([]byte, market.HeaderSize)
	h.MarshalInto(buf)

	var got market.Header
	got.UnmarshalFrom(buf)
	assert.Equal(t, h, got)
}

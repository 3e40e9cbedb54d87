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

package market

import (
	"encoding/binary"
	"fmt"

	"code.vegaprotocol.io/flatbook/arena"
	"code.vegaprotocol.io/flatbook/quantities"
)

// OrderType tags the lifecycle of a resting order.
type OrderType uint8

const (
	// Limit rests on the book until filled or cancelled.
	Limit OrderType = iota
	// ImmediateOrCancel takes only; it never rests.
	ImmediateOrCancel
	// PostOnly rests or fails; it never takes.
	PostOnly
	// Global is post-only liquidity backed by a ledger deposit held
	// outside the market instead of escrowed funds.
	Global
	// Reverse re-quotes on the opposite side when filled, keeping a
	// spread, like a single-level AMM. Reverse orders can take but do
	// not re-quote when taking.
	Reverse
	// ReverseTight is Reverse with a finer spread denominator, for
	// pairs that trade near parity.
	ReverseTight
)

// IsReversible reports whether the order re-quotes when filled.
func (ot OrderType) IsReversible() bool {
	return ot == Reverse || ot == ReverseTight
}

func (ot OrderType) String() string {
	switch ot {
	case Limit:
		return "limit"
	case ImmediateOrCancel:
		return "ioc"
	case PostOnly:
		return "post-only"
	case Global:
		return "global"
	case Reverse:
		return "reverse"
	case ReverseTight:
		return "reverse-tight"
	}
	return fmt.Sprintf("unknown(%d)", uint8(ot))
}

// NoExpiration is the lastValidSlot value of an order that never
// expires.
const NoExpiration uint32 = 0

// Spread denominators for reverse price computation. The spread field
// is expressed in units of the denominator, so ReverseTight resolves a
// thousand times finer.
const (
	reverseSpreadBase      = 100_000
	reverseTightSpreadBase = 100_000_000
)

// RestingOrder is a book entry. TraderIndex is a back-reference to the
// owning seat's arena index, not ownership: the seat outlives the
// order. SequenceNumber is assigned by the market at placement and is
// strictly increasing, giving equal prices a total time order.
type RestingOrder struct {
	Price          quantities.QuoteAtomsPerBaseAtom
	NumBaseAtoms   quantities.BaseAtoms
	SequenceNumber uint64
	TraderIndex    arena.Index
	LastValidSlot  uint32
	IsBid          bool
	Type           OrderType
	ReverseSpread  uint16
}

// NewRestingOrder builds a book entry. It panics when a reversible
// order carries an expiration: reverse orders exist to be permanent
// liquidity, and a caller combining the two has a bug, not bad input.
func NewRestingOrder(traderIndex arena.Index, atoms quantities.BaseAtoms, price quantities.QuoteAtomsPerBaseAtom,
	sequenceNumber uint64, lastValidSlot uint32, isBid bool, orderType OrderType,
) *RestingOrder {
	if orderType.IsReversible() && lastValidSlot != NoExpiration {
		panic("market: reversible order with expiration")
	}
	return &RestingOrder{
		Price:          price,
		NumBaseAtoms:   atoms,
		SequenceNumber: sequenceNumber,
		TraderIndex:    traderIndex,
		LastValidSlot:  lastValidSlot,
		IsBid:          isBid,
		Type:           orderType,
	}
}

// IsExpired reports whether the order has lapsed at the given slot.
func (o *RestingOrder) IsExpired(nowSlot uint32) bool {
	return o.LastValidSlot != NoExpiration && o.LastValidSlot < nowSlot
}

// IsGlobal reports whether fills are backed by the global ledger.
func (o *RestingOrder) IsGlobal() bool {
	return o.Type == Global
}

// ReversePrice returns the price this order re-quotes at on the
// opposite side once filled. A bid at P re-quotes an ask at
// P*base/(base-spread) rounded up; an ask at P re-quotes a bid at
// P*(base-spread)/base rounded down; the maker keeps the spread either
// way. Non-reversible orders return their own price.
func (o *RestingOrder) ReversePrice() (quantities.QuoteAtomsPerBaseAtom, error) {
	var base uint32
	switch o.Type {
	case Reverse:
		base = reverseSpreadBase
	case ReverseTight:
		base = reverseTightSpreadBase
	default:
		return o.Price, nil
	}
	if o.IsBid {
		return o.Price.CheckedMulRational(base, base-uint32(o.ReverseSpread), false)
	}
	return o.Price.CheckedMulRational(base-uint32(o.ReverseSpread), base, true)
}

// Reduce shrinks the order by size, failing on underflow.
func (o *RestingOrder) Reduce(size quantities.BaseAtoms) error {
	next, err := o.NumBaseAtoms.CheckedSub(size)
	if err != nil {
		return err
	}
	o.NumBaseAtoms = next
	return nil
}

// Increase grows the order by size. Only used when coalescing a
// re-quote into an existing reverse order; there is no order editing.
func (o *RestingOrder) Increase(size quantities.BaseAtoms) error {
	next, err := o.NumBaseAtoms.CheckedAdd(size)
	if err != nil {
		return err
	}
	o.NumBaseAtoms = next
	return nil
}

// Compare orders book entries in priority order, best first: bids by
// price descending, asks by price ascending, ties broken by placement
// sequence. Orders from opposite sides are never compared.
func (o *RestingOrder) Compare(oth *RestingOrder) int {
	c := o.Price.Compare(oth.Price)
	if o.IsBid {
		c = -c
	}
	if c != 0 {
		return c
	}
	switch {
	case o.SequenceNumber < oth.SequenceNumber:
		return -1
	case o.SequenceNumber > oth.SequenceNumber:
		return 1
	}
	return 0
}

// Equal is the lookup predicate: same seat and order type, and the same
// price. Reversible orders tolerate one inner price unit of drift so a
// re-quote coalesces into the existing order instead of fragmenting the
// level on every round trip.
func (o *RestingOrder) Equal(oth *RestingOrder) bool {
	if o.TraderIndex != oth.TraderIndex || o.Type != oth.Type {
		return false
	}
	if o.Type.IsReversible() {
		return o.Price.AlmostEqual(oth.Price)
	}
	return o.Price.Compare(oth.Price) == 0
}

// MarshalInto encodes the order into its 64 byte payload slot.
func (o *RestingOrder) MarshalInto(b []byte) {
	_ = b[63]
	lo, hi := o.Price.Words()
	binary.LittleEndian.PutUint64(b[0:8], lo)
	binary.LittleEndian.PutUint64(b[8:16], hi)
	binary.LittleEndian.PutUint64(b[16:24], uint64(o.NumBaseAtoms))
	binary.LittleEndian.PutUint64(b[24:32], o.SequenceNumber)
	binary.LittleEndian.PutUint32(b[32:36], uint32(o.TraderIndex))
	binary.LittleEndian.PutUint32(b[36:40], o.LastValidSlot)
	if o.IsBid {
		b[40] = 1
	} else {
		b[40] = 0
	}
	b[41] = uint8(o.Type)
	binary.LittleEndian.PutUint16(b[42:44], o.ReverseSpread)
	for i := 44; i < 64; i++ {
		b[i] = 0
	}
}

// UnmarshalFrom decodes the order from its payload slot.
func (o *RestingOrder) UnmarshalFrom(b []byte) {
	_ = b[63]
	lo := binary.LittleEndian.Uint64(b[0:8])
	hi := binary.LittleEndian.Uint64(b[8:16])
	o.Price = quantities.PriceFromWords(lo, hi)
	o.NumBaseAtoms = quantities.BaseAtoms(binary.LittleEndian.Uint64(b[16:24]))
	o.SequenceNumber = binary.LittleEndian.Uint64(b[24:32])
	o.TraderIndex = arena.Index(binary.LittleEndian.Uint32(b[32:36]))
	o.LastValidSlot = binary.LittleEndian.Uint32(b[36:40])
	o.IsBid = b[40] == 1
	o.Type = OrderType(b[41])
	o.ReverseSpread = binary.LittleEndian.Uint16(b[42:44])
}

func (o *RestingOrder) String() string {
	side := "ask"
	if o.IsBid {
		side = "bid"
	}
	return fmt.Sprintf("%s %d@%s", side, o.NumBaseAtoms, o.Price)
}

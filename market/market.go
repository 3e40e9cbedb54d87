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

// Package market implements the per-market order book state: a fixed
// header followed by a block arena shared by two book sides and the
// claimed seat registry. Every cross-entity reference is an arena
// index, so the whole market round-trips through a single flat buffer
// the caller owns. All operations are single threaded; the caller
// serializes access and commits or discards the buffer atomically
// around each call.
package market

import (
	"time"

	"code.vegaprotocol.io/flatbook/arena"
	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/loader"
	"code.vegaprotocol.io/flatbook/metrics"
	"code.vegaprotocol.io/flatbook/quantities"
	"code.vegaprotocol.io/flatbook/rbtree"

	"github.com/pkg/errors"
)

var (
	// ErrWrongDiscriminant is returned when a buffer does not carry the
	// market discriminant for the configured program.
	ErrWrongDiscriminant = errors.New("market: wrong account discriminant")
	// ErrSeatClaimed is returned when a trader claims a seat it already
	// holds.
	ErrSeatClaimed = errors.New("market: seat already claimed")
	// ErrNoSeat is returned when an operation references a trader
	// without a seat on this market.
	ErrNoSeat = errors.New("market: trader has no seat")
	// ErrCannotRest is returned when an immediate-or-cancel order is
	// asked to rest on the book.
	ErrCannotRest = errors.New("market: order type cannot rest")
	// ErrNotReversible is returned when a re-quote is requested for an
	// order that does not reverse.
	ErrNotReversible = errors.New("market: order is not reversible")
)

type bookside = rbtree.Tree[RestingOrder, *RestingOrder]

type seatTree = rbtree.Tree[ClaimedSeat, *ClaimedSeat]

// View is a decoded market over a caller owned buffer. Tree views are
// rebuilt per operation from the header's persisted roots; header
// mutations reach the buffer on Flush.
type View struct {
	header Header
	buf    []byte
	dyn    *arena.Arena
}

// InitArgs carries the identities fixed at market creation.
type InitArgs struct {
	Market            crypto.PublicKey
	BaseMint          crypto.PublicKey
	QuoteMint         crypto.PublicKey
	BaseMintDecimals  uint8
	QuoteMintDecimals uint8
}

// Initialize writes an empty market header. The buffer must be exactly
// HeaderSize bytes and all zero; vault addresses and bumps are derived
// here once and persisted.
func Initialize(data []byte, args InitArgs, cfg loader.Config) error {
	if err := loader.VerifyUninitialized(data, HeaderSize); err != nil {
		return err
	}
	baseVault, baseBump := loader.DeriveVaultAddress(cfg, args.Market, args.BaseMint)
	quoteVault, quoteBump := loader.DeriveVaultAddress(cfg, args.Market, args.QuoteMint)
	h := Header{
		Discriminant:      loader.DiscriminantFor(cfg.ProgramID, TypeName),
		Version:           Version,
		BaseMintDecimals:  args.BaseMintDecimals,
		QuoteMintDecimals: args.QuoteMintDecimals,
		BaseVaultBump:     baseBump,
		QuoteVaultBump:    quoteBump,
		BaseMint:          args.BaseMint,
		QuoteMint:         args.QuoteMint,
		BaseVault:         baseVault,
		QuoteVault:        quoteVault,
		BidsRoot:          arena.NIL,
		BidsBest:          arena.NIL,
		AsksRoot:          arena.NIL,
		AsksBest:          arena.NIL,
		SeatsRoot:         arena.NIL,
		FreeListHead:      arena.NIL,
	}
	h.MarshalInto(data)
	return nil
}

// Load decodes a market view over the buffer, checking size and
// discriminant. The dynamic region is whatever follows the header;
// growing the buffer between calls is the caller's concern.
func Load(data []byte, cfg loader.Config) (*View, error) {
	if len(data) < HeaderSize {
		return nil, loader.ErrTooSmall
	}
	v := &View{buf: data}
	v.header.UnmarshalFrom(data)
	if want := loader.DiscriminantFor(cfg.ProgramID, TypeName); v.header.Discriminant != want {
		return nil, errors.Wrapf(ErrWrongDiscriminant, "expected %d actual %d", want, v.header.Discriminant)
	}
	v.dyn = arena.New(data[HeaderSize:], BlockSize, v.header.FreeListHead, v.header.BytesAllocated)
	return v, nil
}

// LoadFromAccount verifies ownership, takes an exclusive borrow on the
// account and decodes a view. The returned release function gives the
// borrow back; the caller must invoke it once done with the view.
func LoadFromAccount(acc *loader.Account, cfg loader.Config) (*View, func(), error) {
	if err := loader.VerifyOwner(acc, cfg); err != nil {
		return nil, nil, err
	}
	data, release, err := acc.BorrowMut()
	if err != nil {
		return nil, nil, err
	}
	v, err := Load(data, cfg)
	if err != nil {
		release()
		return nil, nil, err
	}
	return v, release, nil
}

// Flush writes the header back into the buffer. Tree and allocator
// state is pulled into the header after every mutating operation, so
// this is the only persistence step.
func (v *View) Flush() {
	v.header.MarshalInto(v.buf)
	metrics.SetArenaBytes("market", v.header.BytesAllocated)
}

// BaseMint returns the base token identity.
func (v *View) BaseMint() crypto.PublicKey { return v.header.BaseMint }

// QuoteMint returns the quote token identity.
func (v *View) QuoteMint() crypto.PublicKey { return v.header.QuoteMint }

// BaseVault returns the derived base vault address.
func (v *View) BaseVault() crypto.PublicKey { return v.header.BaseVault }

// QuoteVault returns the derived quote vault address.
func (v *View) QuoteVault() crypto.PublicKey { return v.header.QuoteVault }

// OrderSequenceNumber returns the sequence the next placed order will
// take.
func (v *View) OrderSequenceNumber() uint64 { return v.header.OrderSequenceNumber }

// QuoteVolume returns the advisory lifetime quote volume counter.
func (v *View) QuoteVolume() quantities.QuoteAtoms { return v.header.QuoteVolume }

// HasFreeBlock reports whether one more allocation can succeed.
func (v *View) HasFreeBlock() bool { return v.dyn.HasFreeBlock() }

// HasTwoFreeBlocks reports whether two more allocations can succeed.
// Placing a reverse order checks this up front so the eventual re-quote
// can never fail on allocation.
func (v *View) HasTwoFreeBlocks() bool { return v.dyn.HasTwoFreeBlocks() }

func (v *View) bids() *bookside {
	return rbtree.New[RestingOrder](v.dyn, v.header.BidsRoot, v.header.BidsBest)
}

func (v *View) asks() *bookside {
	return rbtree.New[RestingOrder](v.dyn, v.header.AsksRoot, v.header.AsksBest)
}

func (v *View) seats() *seatTree {
	return rbtree.New[ClaimedSeat](v.dyn, v.header.SeatsRoot, arena.NIL)
}

func (v *View) saveSide(t *bookside, isBid bool) {
	if isBid {
		v.header.BidsRoot = t.Root()
		v.header.BidsBest = t.Best()
	} else {
		v.header.AsksRoot = t.Root()
		v.header.AsksBest = t.Best()
	}
	v.saveArena()
}

func (v *View) saveSeats(t *seatTree) {
	v.header.SeatsRoot = t.Root()
	v.saveArena()
}

func (v *View) saveArena() {
	v.header.FreeListHead = v.dyn.FreeListHead()
	v.header.BytesAllocated = v.dyn.BytesAllocated()
}

func (v *View) side(isBid bool) *bookside {
	if isBid {
		return v.bids()
	}
	return v.asks()
}

// Bids returns an iterator over resting bids in priority order, best
// price first, oldest first within a price.
func (v *View) Bids() *rbtree.Iterator[RestingOrder, *RestingOrder] {
	return v.bids().Ascend()
}

// Asks returns an iterator over resting asks in priority order.
func (v *View) Asks() *rbtree.Iterator[RestingOrder, *RestingOrder] {
	return v.asks().Ascend()
}

// ClaimSeat registers the trader on this market and returns the arena
// index of the new seat. The index is the trader's handle for order
// placement and stays valid until the seat is released.
func (v *View) ClaimSeat(trader crypto.PublicKey) (arena.Index, error) {
	st := v.seats()
	if st.Lookup(&ClaimedSeat{Trader: trader}) != arena.NIL {
		return arena.NIL, ErrSeatClaimed
	}
	idx, err := st.Insert(&ClaimedSeat{Trader: trader})
	if err != nil {
		return arena.NIL, err
	}
	v.saveSeats(st)
	return idx, nil
}

// GetSeat finds the trader's seat, ErrNoSeat when absent.
func (v *View) GetSeat(trader crypto.PublicKey) (arena.Index, *ClaimedSeat, error) {
	st := v.seats()
	idx := st.Lookup(&ClaimedSeat{Trader: trader})
	if idx == arena.NIL {
		return arena.NIL, nil, ErrNoSeat
	}
	seat, err := st.ReadPayload(idx)
	if err != nil {
		return arena.NIL, nil, err
	}
	return idx, seat, nil
}

// SeatByIndex reads the seat at a known index.
func (v *View) SeatByIndex(idx arena.Index) (*ClaimedSeat, error) {
	return v.seats().ReadPayload(idx)
}

// TraderKeyByIndex returns the identity owning the seat at idx. Used by
// the match walk to resolve an order's back-reference into a ledger
// key.
func (v *View) TraderKeyByIndex(idx arena.Index) (crypto.PublicKey, error) {
	seat, err := v.SeatByIndex(idx)
	if err != nil {
		return crypto.ZeroKey, err
	}
	return seat.Trader, nil
}

// DepositBase credits withdrawable base funds to the trader's seat.
func (v *View) DepositBase(trader crypto.PublicKey, atoms quantities.BaseAtoms) error {
	return v.updateSeat(trader, func(s *ClaimedSeat) error {
		next, err := s.BaseWithdrawableBalance.CheckedAdd(atoms)
		if err != nil {
			return err
		}
		s.BaseWithdrawableBalance = next
		return nil
	})
}

// WithdrawBase debits withdrawable base funds, failing on insufficient
// balance.
func (v *View) WithdrawBase(trader crypto.PublicKey, atoms quantities.BaseAtoms) error {
	return v.updateSeat(trader, func(s *ClaimedSeat) error {
		next, err := s.BaseWithdrawableBalance.CheckedSub(atoms)
		if err != nil {
			return err
		}
		s.BaseWithdrawableBalance = next
		return nil
	})
}

// DepositQuote credits withdrawable quote funds to the trader's seat.
func (v *View) DepositQuote(trader crypto.PublicKey, atoms quantities.QuoteAtoms) error {
	return v.updateSeat(trader, func(s *ClaimedSeat) error {
		next, err := s.QuoteWithdrawableBalance.CheckedAdd(atoms)
		if err != nil {
			return err
		}
		s.QuoteWithdrawableBalance = next
		return nil
	})
}

// WithdrawQuote debits withdrawable quote funds, failing on
// insufficient balance.
func (v *View) WithdrawQuote(trader crypto.PublicKey, atoms quantities.QuoteAtoms) error {
	return v.updateSeat(trader, func(s *ClaimedSeat) error {
		next, err := s.QuoteWithdrawableBalance.CheckedSub(atoms)
		if err != nil {
			return err
		}
		s.QuoteWithdrawableBalance = next
		return nil
	})
}

// RecordQuoteVolume bumps the advisory volume counters on the seat at
// idx and on the market. Both wrap silently, they secure nothing.
func (v *View) RecordQuoteVolume(idx arena.Index, atoms quantities.QuoteAtoms) error {
	st := v.seats()
	seat, err := st.ReadPayload(idx)
	if err != nil {
		return err
	}
	seat.QuoteVolume = seat.QuoteVolume.WrappingAdd(atoms)
	if err := st.WritePayload(idx, seat); err != nil {
		return err
	}
	v.header.QuoteVolume = v.header.QuoteVolume.WrappingAdd(atoms)
	return nil
}

func (v *View) updateSeat(trader crypto.PublicKey, update func(*ClaimedSeat) error) error {
	st := v.seats()
	idx := st.Lookup(&ClaimedSeat{Trader: trader})
	if idx == arena.NIL {
		return ErrNoSeat
	}
	seat, err := st.ReadPayload(idx)
	if err != nil {
		return err
	}
	if err := update(seat); err != nil {
		return err
	}
	// Balances are not part of the seat's tree position, so editing in
	// place is safe.
	return st.WritePayload(idx, seat)
}

// PlaceOrderArgs describes an order to rest on the book. TraderIndex is
// the seat handle from ClaimSeat. ReverseSpread only matters for
// reversible types.
type PlaceOrderArgs struct {
	TraderIndex   arena.Index
	NumBaseAtoms  quantities.BaseAtoms
	Price         quantities.QuoteAtomsPerBaseAtom
	IsBid         bool
	LastValidSlot uint32
	Type          OrderType
	ReverseSpread uint16
}

// PlaceOrder rests an order on the book, assigning it the next market
// sequence number, and returns its arena index. Immediate-or-cancel
// orders are rejected: they match against the book, they never join it.
// Crossing checks for post-only types are the caller's responsibility;
// see WouldCross.
func (v *View) PlaceOrder(args PlaceOrderArgs) (arena.Index, error) {
	defer metrics.EngineTimeCounterAdd(time.Now(), "place_order")

	if args.Type == ImmediateOrCancel {
		return arena.NIL, ErrCannotRest
	}
	if _, err := v.SeatByIndex(args.TraderIndex); err != nil {
		return arena.NIL, err
	}
	order := NewRestingOrder(args.TraderIndex, args.NumBaseAtoms, args.Price,
		v.header.OrderSequenceNumber, args.LastValidSlot, args.IsBid, args.Type)
	order.ReverseSpread = args.ReverseSpread

	side := v.side(args.IsBid)
	idx, err := side.Insert(order)
	if err != nil {
		return arena.NIL, err
	}
	v.saveSide(side, args.IsBid)
	v.header.OrderSequenceNumber++
	metrics.OrderPlaced(v.header.BaseMint.String(), args.Type.String())
	return idx, nil
}

// OrderByIndex reads the resting order at a known index.
func (v *View) OrderByIndex(idx arena.Index) (*RestingOrder, error) {
	// Bids and asks share the arena, either view decodes the payload.
	return v.bids().ReadPayload(idx)
}

// CancelOrder removes the resting order at idx and frees its block.
func (v *View) CancelOrder(idx arena.Index) error {
	defer metrics.EngineTimeCounterAdd(time.Now(), "cancel_order")

	order, err := v.OrderByIndex(idx)
	if err != nil {
		return err
	}
	side := v.side(order.IsBid)
	if err := side.Remove(idx); err != nil {
		return err
	}
	v.saveSide(side, order.IsBid)
	return nil
}

// ReduceOrder shrinks the order at idx by atoms, the partial fill
// bookkeeping step. When the order is fully consumed it is removed and
// its block freed; the index is then invalid.
func (v *View) ReduceOrder(idx arena.Index, atoms quantities.BaseAtoms) error {
	side, order, err := v.sideAndOrder(idx)
	if err != nil {
		return err
	}
	if err := order.Reduce(atoms); err != nil {
		return err
	}
	if order.NumBaseAtoms == 0 {
		if err := side.Remove(idx); err != nil {
			return err
		}
		v.saveSide(side, order.IsBid)
		return nil
	}
	// Size is not part of the order's tree position.
	return side.WritePayload(idx, order)
}

func (v *View) sideAndOrder(idx arena.Index) (*bookside, *RestingOrder, error) {
	order, err := v.OrderByIndex(idx)
	if err != nil {
		return nil, nil, err
	}
	return v.side(order.IsBid), order, nil
}

// WouldCross reports whether an order at price on the given side would
// match against the opposite best. Post-only and global placements
// check this first and fail instead of taking.
func (v *View) WouldCross(price quantities.QuoteAtomsPerBaseAtom, isBid bool) bool {
	opp := v.side(!isBid)
	best := opp.Best()
	if best == arena.NIL {
		return false
	}
	top, err := opp.ReadPayload(best)
	if err != nil {
		return false
	}
	if isBid {
		return price.Compare(top.Price) >= 0
	}
	return price.Compare(top.Price) <= 0
}

// RequoteReverse moves the filled reverse order at idx to the opposite
// side at its spread adjusted price. If the trader already has a
// coalescible reverse order there, within one inner price unit, the
// size folds into it instead of fragmenting the level. Returns the
// index of the order now carrying the liquidity.
func (v *View) RequoteReverse(idx arena.Index) (arena.Index, error) {
	order, err := v.OrderByIndex(idx)
	if err != nil {
		return arena.NIL, err
	}
	if !order.Type.IsReversible() {
		return arena.NIL, ErrNotReversible
	}
	price, err := order.ReversePrice()
	if err != nil {
		return arena.NIL, err
	}

	flipped := &RestingOrder{
		Price:         price,
		NumBaseAtoms:  order.NumBaseAtoms,
		TraderIndex:   order.TraderIndex,
		IsBid:         !order.IsBid,
		Type:          order.Type,
		ReverseSpread: order.ReverseSpread,
	}

	opp := v.side(!order.IsBid)
	if target := opp.Lookup(flipped); target != arena.NIL {
		existing, err := opp.ReadPayload(target)
		if err != nil {
			return arena.NIL, err
		}
		if err := existing.Increase(order.NumBaseAtoms); err != nil {
			return arena.NIL, err
		}
		if err := opp.WritePayload(target, existing); err != nil {
			return arena.NIL, err
		}
		if err := v.CancelOrder(idx); err != nil {
			return arena.NIL, err
		}
		return target, nil
	}

	// Remove first: the freed block guarantees the insert below cannot
	// fail on allocation.
	if err := v.CancelOrder(idx); err != nil {
		return arena.NIL, err
	}
	flipped.SequenceNumber = v.header.OrderSequenceNumber
	opp = v.side(flipped.IsBid)
	newIdx, err := opp.Insert(flipped)
	if err != nil {
		return arena.NIL, err
	}
	v.saveSide(opp, flipped.IsBid)
	v.header.OrderSequenceNumber++
	return newIdx, nil
}

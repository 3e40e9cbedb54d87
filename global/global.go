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

// Package global implements the shared deposit ledger backing global
// orders. One ledger exists per mint; traders deposit once and rest
// orders on any market against that single balance, which is re-checked
// at every prospective fill instead of being escrowed per order. A
// trader evicted for seat capacity simply stops backing fills: balance
// lookups on absent traders answer zero, never an error.
package global

import (
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
	// ledger discriminant for the configured program.
	ErrWrongDiscriminant = errors.New("global: wrong account discriminant")
	// ErrTraderExists is returned when a trader claims a ledger seat it
	// already holds.
	ErrTraderExists = errors.New("global: trader already has a seat")
	// ErrUnknownTrader is returned by mutating operations on a trader
	// without a seat. Read paths deliberately do not use it, see
	// GetBalanceAtoms.
	ErrUnknownTrader = errors.New("global: trader has no seat")
	// ErrSeatsExhausted is returned when the ledger is full and the
	// claimer does not out-rank the weakest holder.
	ErrSeatsExhausted = errors.New("global: seats exhausted")
)

type traderTree = rbtree.Tree[Trader, *Trader]

type depositTree = rbtree.Tree[Deposit, *Deposit]

// View is a decoded global ledger over a caller owned buffer. It is
// single threaded: the caller serializes access and calls Flush to
// persist header mutations before handing the buffer elsewhere.
type View struct {
	header Header
	buf    []byte
	dyn    *arena.Arena
}

// Initialize writes an empty ledger header for the given mint. The
// buffer must be exactly HeaderSize bytes and all zero.
func Initialize(data []byte, mint crypto.PublicKey, cfg loader.Config) error {
	if err := loader.VerifyUninitialized(data, HeaderSize); err != nil {
		return err
	}
	vault, vaultBump := loader.DeriveGlobalVaultAddress(cfg, mint)
	_, globalBump := loader.DeriveGlobalAddress(cfg, mint)
	h := Header{
		Discriminant: loader.DiscriminantFor(cfg.ProgramID, TypeName),
		Mint:         mint,
		Vault:        vault,
		TradersRoot:  arena.NIL,
		DepositsRoot: arena.NIL,
		DepositsBest: arena.NIL,
		FreeListHead: arena.NIL,
		VaultBump:    vaultBump,
		GlobalBump:   globalBump,
	}
	h.MarshalInto(data)
	return nil
}

// Load decodes a ledger view over the buffer, checking size and
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
	metrics.SetArenaBytes("global", v.header.BytesAllocated)
}

// Mint returns the mint this ledger serves.
func (v *View) Mint() crypto.PublicKey {
	return v.header.Mint
}

// Vault returns the derived vault address holding the deposits.
func (v *View) Vault() crypto.PublicKey {
	return v.header.Vault
}

// NumSeatsClaimed returns the number of traders currently tracked.
func (v *View) NumSeatsClaimed() uint16 {
	return v.header.NumSeatsClaimed
}

func (v *View) traders() *traderTree {
	return rbtree.New[Trader](v.dyn, v.header.TradersRoot, arena.NIL)
}

func (v *View) deposits() *depositTree {
	return rbtree.New[Deposit](v.dyn, v.header.DepositsRoot, v.header.DepositsBest)
}

func (v *View) saveTraders(t *traderTree) {
	v.header.TradersRoot = t.Root()
	v.saveArena()
}

func (v *View) saveDeposits(t *depositTree) {
	v.header.DepositsRoot = t.Root()
	v.header.DepositsBest = t.Best()
	v.saveArena()
}

func (v *View) saveArena() {
	v.header.FreeListHead = v.dyn.FreeListHead()
	v.header.BytesAllocated = v.dyn.BytesAllocated()
}

func (v *View) lookupTrader(trader crypto.PublicKey) (arena.Index, *Trader) {
	tt := v.traders()
	idx := tt.Lookup(&Trader{TraderKey: trader})
	if idx == arena.NIL {
		return arena.NIL, nil
	}
	t, err := tt.ReadPayload(idx)
	if err != nil {
		return arena.NIL, nil
	}
	return idx, t
}

// AddTrader claims a ledger seat, crediting initialDeposit atoms. When
// all seats are taken the weakest holder, the smallest deposit in the
// ledger, is evicted to make room, but only if the claimer's deposit
// out-ranks it; otherwise ErrSeatsExhausted. Returns the evicted trader
// key, or the zero key when nobody was displaced.
func (v *View) AddTrader(trader crypto.PublicKey, initialDeposit quantities.GlobalAtoms) (crypto.PublicKey, error) {
	if idx, _ := v.lookupTrader(trader); idx != arena.NIL {
		return crypto.ZeroKey, ErrTraderExists
	}

	evicted := crypto.ZeroKey
	if v.header.NumSeatsClaimed >= MaxGlobalSeats {
		dt := v.deposits()
		weakestIdx := dt.Best()
		if weakestIdx == arena.NIL {
			return crypto.ZeroKey, ErrSeatsExhausted
		}
		weakest, err := dt.ReadPayload(weakestIdx)
		if err != nil {
			return crypto.ZeroKey, err
		}
		if initialDeposit <= weakest.BalanceAtoms {
			return crypto.ZeroKey, ErrSeatsExhausted
		}
		if err := v.removeTrader(weakest.TraderKey); err != nil {
			return crypto.ZeroKey, err
		}
		evicted = weakest.TraderKey
	}

	dt := v.deposits()
	depIdx, err := dt.Insert(&Deposit{TraderKey: trader, BalanceAtoms: initialDeposit})
	if err != nil {
		return crypto.ZeroKey, err
	}
	v.saveDeposits(dt)

	tt := v.traders()
	if _, err := tt.Insert(&Trader{TraderKey: trader, DepositIndex: depIdx}); err != nil {
		// Roll the deposit back so a failed claim leaves no orphan.
		dt = v.deposits()
		_ = dt.Remove(depIdx)
		v.saveDeposits(dt)
		return crypto.ZeroKey, err
	}
	v.saveTraders(tt)
	v.header.NumSeatsClaimed++
	metrics.SetClaimedSeats(v.header.Mint.String(), int(v.header.NumSeatsClaimed))
	return evicted, nil
}

func (v *View) removeTrader(trader crypto.PublicKey) error {
	idx, t := v.lookupTrader(trader)
	if idx == arena.NIL {
		return ErrUnknownTrader
	}
	dt := v.deposits()
	if err := dt.Remove(t.DepositIndex); err != nil {
		return err
	}
	v.saveDeposits(dt)
	tt := v.traders()
	if err := tt.Remove(idx); err != nil {
		return err
	}
	v.saveTraders(tt)
	v.header.NumSeatsClaimed--
	return nil
}

// Deposit credits atoms to the trader's ledger balance. The deposit
// record is keyed by balance, so it is removed, adjusted and reinserted
// rather than edited in place; the membership record is updated with
// the new deposit index.
func (v *View) Deposit(trader crypto.PublicKey, atoms quantities.GlobalAtoms) error {
	return v.adjustBalance(trader, func(bal quantities.GlobalAtoms) (quantities.GlobalAtoms, error) {
		return bal.CheckedAdd(atoms)
	})
}

// Withdraw debits atoms from the trader's ledger balance, failing on
// insufficient funds.
func (v *View) Withdraw(trader crypto.PublicKey, atoms quantities.GlobalAtoms) error {
	return v.adjustBalance(trader, func(bal quantities.GlobalAtoms) (quantities.GlobalAtoms, error) {
		return bal.CheckedSub(atoms)
	})
}

func (v *View) adjustBalance(trader crypto.PublicKey, adjust func(quantities.GlobalAtoms) (quantities.GlobalAtoms, error)) error {
	idx, t := v.lookupTrader(trader)
	if idx == arena.NIL {
		return ErrUnknownTrader
	}
	dt := v.deposits()
	dep, err := dt.ReadPayload(t.DepositIndex)
	if err != nil {
		return err
	}
	next, err := adjust(dep.BalanceAtoms)
	if err != nil {
		return err
	}
	if err := dt.Remove(t.DepositIndex); err != nil {
		return err
	}
	depIdx, err := dt.Insert(&Deposit{TraderKey: trader, BalanceAtoms: next})
	if err != nil {
		return err
	}
	v.saveDeposits(dt)

	t.DepositIndex = depIdx
	tt := v.traders()
	if err := tt.WritePayload(idx, t); err != nil {
		return err
	}
	return nil
}

// GetBalanceAtoms returns the trader's ledger balance, zero when the
// trader has no seat. Absence is not an error: an evicted backer just
// stops backing future fills, it never fails the match walk.
func (v *View) GetBalanceAtoms(trader crypto.PublicKey) quantities.GlobalAtoms {
	idx, t := v.lookupTrader(trader)
	if idx == arena.NIL {
		return 0
	}
	dep, err := v.deposits().ReadPayload(t.DepositIndex)
	if err != nil {
		return 0
	}
	return dep.BalanceAtoms
}

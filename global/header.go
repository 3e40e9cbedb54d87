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

package global

import (
	"encoding/binary"

	"code.vegaprotocol.io/flatbook/arena"
	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/quantities"
)

const (
	// HeaderSize is the byte length of the fixed header at the start of
	// a global ledger buffer. An account holding only the header is a
	// valid, empty ledger.
	HeaderSize = 96

	// BlockSize is the uniform dynamic block size: 48 payload bytes
	// plus the tree node overhead. Trader and deposit records share one
	// free list.
	BlockSize = 48 + 16

	// TypeName seeds the ledger discriminant.
	TypeName = "flatbook::global::Header"

	// MaxGlobalSeats caps the number of traders a ledger tracks. Claims
	// past the cap evict the smallest deposit rather than growing.
	MaxGlobalSeats = 999
)

// Header is the decoded fixed region of a global ledger buffer. All
// tree roots, the deposit best cache and the allocator state live here
// so the dynamic region is nothing but blocks.
type Header struct {
	Discriminant uint64
	Mint         crypto.PublicKey
	Vault        crypto.PublicKey

	TradersRoot  arena.Index
	DepositsRoot arena.Index
	DepositsBest arena.Index
	FreeListHead arena.Index

	BytesAllocated uint32

	VaultBump       uint8
	GlobalBump      uint8
	NumSeatsClaimed uint16
}

// MarshalInto encodes the header little endian into b, which must be at
// least HeaderSize bytes.
func (h *Header) MarshalInto(b []byte) {
	_ = b[HeaderSize-1]
	binary.LittleEndian.PutUint64(b[0:8], h.Discriminant)
	copy(b[8:40], h.Mint.Bytes())
	copy(b[40:72], h.Vault.Bytes())
	binary.LittleEndian.PutUint32(b[72:76], uint32(h.TradersRoot))
	binary.LittleEndian.PutUint32(b[76:80], uint32(h.DepositsRoot))
	binary.LittleEndian.PutUint32(b[80:84], uint32(h.DepositsBest))
	binary.LittleEndian.PutUint32(b[84:88], uint32(h.FreeListHead))
	binary.LittleEndian.PutUint32(b[88:92], h.BytesAllocated)
	b[92] = h.VaultBump
	b[93] = h.GlobalBump
	binary.LittleEndian.PutUint16(b[94:96], h.NumSeatsClaimed)
}

// UnmarshalFrom decodes the header from b, which must be at least
// HeaderSize bytes.
func (h *Header) UnmarshalFrom(b []byte) {
	_ = b[HeaderSize-1]
	h.Discriminant = binary.LittleEndian.Uint64(b[0:8])
	h.Mint, _ = crypto.PublicKeyFromBytes(b[8:40])
	h.Vault, _ = crypto.PublicKeyFromBytes(b[40:72])
	h.TradersRoot = arena.Index(binary.LittleEndian.Uint32(b[72:76]))
	h.DepositsRoot = arena.Index(binary.LittleEndian.Uint32(b[76:80]))
	h.DepositsBest = arena.Index(binary.LittleEndian.Uint32(b[80:84]))
	h.FreeListHead = arena.Index(binary.LittleEndian.Uint32(b[84:88]))
	h.BytesAllocated = binary.LittleEndian.Uint32(b[88:92])
	h.VaultBump = b[92]
	h.GlobalBump = b[93]
	h.NumSeatsClaimed = binary.LittleEndian.Uint16(b[94:96])
}

// Trader is a ledger membership record, keyed by trader identity. It
// carries the arena index of the trader's deposit record so balance
// lookups cost one extra dereference instead of a second tree walk.
type Trader struct {
	TraderKey    crypto.PublicKey
	DepositIndex arena.Index
}

// Compare orders membership records by trader identity.
func (t *Trader) Compare(oth *Trader) int {
	return t.TraderKey.Compare(oth.TraderKey)
}

// Equal matches on trader identity.
func (t *Trader) Equal(oth *Trader) bool {
	return t.TraderKey == oth.TraderKey
}

// MarshalInto encodes the record into its 48 byte payload slot.
func (t *Trader) MarshalInto(b []byte) {
	copy(b[0:32], t.TraderKey.Bytes())
	binary.LittleEndian.PutUint32(b[32:36], uint32(t.DepositIndex))
	for i := 36; i < 48; i++ {
		b[i] = 0
	}
}

// UnmarshalFrom decodes the record from its payload slot.
func (t *Trader) UnmarshalFrom(b []byte) {
	t.TraderKey, _ = crypto.PublicKeyFromBytes(b[0:32])
	t.DepositIndex = arena.Index(binary.LittleEndian.Uint32(b[32:36]))
}

// Deposit is a ledger balance record. The deposit tree is ordered by
// balance ascending, so the tree's best cache always points at the
// smallest balance: the eviction candidate when seats run out.
type Deposit struct {
	TraderKey    crypto.PublicKey
	BalanceAtoms quantities.GlobalAtoms
}

// Compare orders balance records by balance ascending. Records never
// move within the tree in place: balance changes remove and reinsert.
func (d *Deposit) Compare(oth *Deposit) int {
	switch {
	case d.BalanceAtoms < oth.BalanceAtoms:
		return -1
	case d.BalanceAtoms > oth.BalanceAtoms:
		return 1
	}
	return 0
}

// Equal matches on trader identity.
func (d *Deposit) Equal(oth *Deposit) bool {
	return d.TraderKey == oth.TraderKey
}

// MarshalInto encodes the record into its 48 byte payload slot.
func (d *Deposit) MarshalInto(b []byte) {
	copy(b[0:32], d.TraderKey.Bytes())
	binary.LittleEndian.PutUint64(b[32:40], uint64(d.BalanceAtoms))
	for i := 40; i < 48; i++ {
		b[i] = 0
	}
}

// UnmarshalFrom decodes the record from its payload slot.
func (d *Deposit) UnmarshalFrom(b []byte) {
	d.TraderKey, _ = crypto.PublicKeyFromBytes(b[0:32])
	d.BalanceAtoms = quantities.GlobalAtoms(binary.LittleEndian.Uint64(b[32:40]))
}

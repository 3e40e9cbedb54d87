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

	"code.vegaprotocol.io/flatbook/arena"
	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/quantities"
)

const (
	// HeaderSize is the byte length of the fixed header at the start of
	// a market buffer. An account holding only the header is a valid,
	// empty market.
	HeaderSize = 256

	// BlockSize is the uniform dynamic block size: 64 payload bytes
	// plus the tree node overhead. Orders and seats share one free
	// list, so a cancelled order's block can become a seat and back.
	BlockSize = 64 + 16

	// TypeName seeds the market discriminant.
	TypeName = "flatbook::market::Header"

	// Version is the current header layout version.
	Version uint8 = 1
)

// Header is the decoded fixed region of a market buffer: identities,
// vault bumps, the order sequence counter, the roots and best caches of
// the three trees, and the allocator state. Everything mutable lives
// here; the dynamic region is nothing but blocks.
type Header struct {
	Discriminant uint64

	Version           uint8
	BaseMintDecimals  uint8
	QuoteMintDecimals uint8
	BaseVaultBump     uint8
	QuoteVaultBump    uint8

	BaseMint   crypto.PublicKey
	QuoteMint  crypto.PublicKey
	BaseVault  crypto.PublicKey
	QuoteVault crypto.PublicKey

	OrderSequenceNumber uint64

	BytesAllocated uint32

	BidsRoot     arena.Index
	BidsBest     arena.Index
	AsksRoot     arena.Index
	AsksBest     arena.Index
	SeatsRoot    arena.Index
	FreeListHead arena.Index

	QuoteVolume quantities.QuoteAtoms
}

// MarshalInto encodes the header little endian into b, which must be at
// least HeaderSize bytes.
func (h *Header) MarshalInto(b []byte) {
	_ = b[HeaderSize-1]
	binary.LittleEndian.PutUint64(b[0:8], h.Discriminant)
	b[8] = h.Version
	b[9] = h.BaseMintDecimals
	b[10] = h.QuoteMintDecimals
	b[11] = h.BaseVaultBump
	b[12] = h.QuoteVaultBump
	b[13], b[14], b[15] = 0, 0, 0
	copy(b[16:48], h.BaseMint.Bytes())
	copy(b[48:80], h.QuoteMint.Bytes())
	copy(b[80:112], h.BaseVault.Bytes())
	copy(b[112:144], h.QuoteVault.Bytes())
	binary.LittleEndian.PutUint64(b[144:152], h.OrderSequenceNumber)
	binary.LittleEndian.PutUint32(b[152:156], h.BytesAllocated)
	binary.LittleEndian.PutUint32(b[156:160], uint32(h.BidsRoot))
	binary.LittleEndian.PutUint32(b[160:164], uint32(h.BidsBest))
	binary.LittleEndian.PutUint32(b[164:168], uint32(h.AsksRoot))
	binary.LittleEndian.PutUint32(b[168:172], uint32(h.AsksBest))
	binary.LittleEndian.PutUint32(b[172:176], uint32(h.SeatsRoot))
	binary.LittleEndian.PutUint32(b[176:180], uint32(h.FreeListHead))
	binary.LittleEndian.PutUint32(b[180:184], 0)
	binary.LittleEndian.PutUint64(b[184:192], uint64(h.QuoteVolume))
	for i := 192; i < HeaderSize; i++ {
		b[i] = 0
	}
}

// UnmarshalFrom decodes the header from b, which must be at least
// HeaderSize bytes.
func (h *Header) UnmarshalFrom(b []byte) {
	_ = b[HeaderSize-1]
	h.Discriminant = binary.LittleEndian.Uint64(b[0:8])
	h.Version = b[8]
	h.BaseMintDecimals = b[9]
	h.QuoteMintDecimals = b[10]
	h.BaseVaultBump = b[11]
	h.QuoteVaultBump = b[12]
	h.BaseMint, _ = crypto.PublicKeyFromBytes(b[16:48])
	h.QuoteMint, _ = crypto.PublicKeyFromBytes(b[48:80])
	h.BaseVault, _ = crypto.PublicKeyFromBytes(b[80:112])
	h.QuoteVault, _ = crypto.PublicKeyFromBytes(b[112:144])
	h.OrderSequenceNumber = binary.LittleEndian.Uint64(b[144:152])
	h.BytesAllocated = binary.LittleEndian.Uint32(b[152:156])
	h.BidsRoot = arena.Index(binary.LittleEndian.Uint32(b[156:160]))
	h.BidsBest = arena.Index(binary.LittleEndian.Uint32(b[160:164]))
	h.AsksRoot = arena.Index(binary.LittleEndian.Uint32(b[164:168]))
	h.AsksBest = arena.Index(binary.LittleEndian.Uint32(b[168:172]))
	h.SeatsRoot = arena.Index(binary.LittleEndian.Uint32(b[172:176]))
	h.FreeListHead = arena.Index(binary.LittleEndian.Uint32(b[176:180]))
	h.QuoteVolume = quantities.QuoteAtoms(binary.LittleEndian.Uint64(b[184:192]))
}

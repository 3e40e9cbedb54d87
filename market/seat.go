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

	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/quantities"
)

// ClaimedSeat is a trader's per-market record: one per trader, keyed by
// identity. The balances are what the trader can withdraw right now;
// funds committed to open orders are not included. QuoteVolume is an
// advisory lifetime counter, allowed to wrap, double counts self
// trades and secures nothing.
type ClaimedSeat struct {
	Trader                   crypto.PublicKey
	BaseWithdrawableBalance  quantities.BaseAtoms
	QuoteWithdrawableBalance quantities.QuoteAtoms
	QuoteVolume              quantities.QuoteAtoms
}

// Compare orders seats by trader identity.
func (s *ClaimedSeat) Compare(oth *ClaimedSeat) int {
	return s.Trader.Compare(oth.Trader)
}

// Equal matches on trader identity.
func (s *ClaimedSeat) Equal(oth *ClaimedSeat) bool {
	return s.Trader == oth.Trader
}

// MarshalInto encodes the seat into its 64 byte payload slot.
func (s *ClaimedSeat) MarshalInto(b []byte) {
	_ = b[63]
	copy(b[0:32], s.Trader.Bytes())
	binary.LittleEndian.PutUint64(b[32:40], uint64(s.BaseWithdrawableBalance))
	binary.LittleEndian.PutUint64(b[40:48], uint64(s.QuoteWithdrawableBalance))
	binary.LittleEndian.PutUint64(b[48:56], uint64(s.QuoteVolume))
	for i := 56; i < 64; i++ {
		b[i] = 0
	}
}

// UnmarshalFrom decodes the seat from its payload slot.
func (s *ClaimedSeat) UnmarshalFrom(b []byte) {
	_ = b[63]
	s.Trader, _ = crypto.PublicKeyFromBytes(b[0:32])
	s.BaseWithdrawableBalance = quantities.BaseAtoms(binary.LittleEndian.Uint64(b[32:40]))
	s.QuoteWithdrawableBalance = quantities.QuoteAtoms(binary.LittleEndian.Uint64(b[40:48]))
	s.QuoteVolume = quantities.QuoteAtoms(binary.LittleEndian.Uint64(b[48:56]))
}

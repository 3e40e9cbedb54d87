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

package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// PublicKeyLen is the byte length of a public key.
const PublicKeyLen = 32

// ErrInvalidPublicKey is returned when parsing a public key from a string
// of the wrong length or encoding.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey identifies a trader, a mint, a vault or a program. It is an
// opaque 32 byte value, stored verbatim in account buffers.
type PublicKey [PublicKeyLen]byte

// ZeroKey is the all zero public key.
var ZeroKey = PublicKey{}

// PublicKeyFromBytes copies the given bytes into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeyLen {
		return ZeroKey, ErrInvalidPublicKey
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// PublicKeyFromHex parses a 64 character hex string into a PublicKey.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroKey, errors.Wrap(ErrInvalidPublicKey, err.Error())
	}
	return PublicKeyFromBytes(b)
}

// RandomKey generates a random public key, for use in tests and tooling.
func RandomKey() PublicKey {
	var pk PublicKey
	if _, err := rand.Read(pk[:]); err != nil {
		panic(err)
	}
	return pk
}

// Bytes returns the raw key bytes.
func (pk PublicKey) Bytes() []byte {
	return pk[:]
}

// IsZero returns true for the all zero key.
func (pk PublicKey) IsZero() bool {
	return pk == ZeroKey
}

// Compare orders keys lexicographically, the order used by identity keyed
// indices.
func (pk PublicKey) Compare(oth PublicKey) int {
	return bytes.Compare(pk[:], oth[:])
}

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

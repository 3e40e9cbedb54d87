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

package loader

import (
	"encoding/binary"

	"code.vegaprotocol.io/flatbook/libs/crypto"
)

// Seed literals for derived addresses.
var (
	vaultSeed       = []byte("vault")
	globalSeed      = []byte("global")
	globalVaultSeed = []byte("global-vault")
)

// DiscriminantFor computes the canonical discriminant of an account
// type: the first 8 little endian bytes of the keccak-256 digest of the
// program identity followed by the type name. Reinterpreting a buffer
// under the wrong type fails the discriminant check before any access.
func DiscriminantFor(programID crypto.PublicKey, typeName string) uint64 {
	digest := crypto.Hash(programID.Bytes(), []byte(typeName))
	return binary.LittleEndian.Uint64(digest[:8])
}

// DeriveAddress deterministically derives an address from the given
// seeds and the program identity. The bump byte is searched from 255
// downward until the digest satisfies the derived address criterion;
// callers persist the bump in their headers so the search runs once per
// account lifetime.
func DeriveAddress(programID crypto.PublicKey, seeds ...[]byte) (crypto.PublicKey, uint8) {
	for bump := 255; bump >= 0; bump-- {
		chunks := make([][]byte, 0, len(seeds)+2)
		chunks = append(chunks, seeds...)
		chunks = append(chunks, []byte{uint8(bump)}, programID.Bytes())
		digest := crypto.Hash(chunks...)
		// Reject digests ending in zero so derivation is a search, and
		// an address with a stale bump never verifies by accident.
		if digest[len(digest)-1] == 0 {
			continue
		}
		pk, _ := crypto.PublicKeyFromBytes(digest)
		return pk, uint8(bump)
	}
	panic("loader: no valid bump for address derivation")
}

// DeriveVaultAddress derives the token vault address of a market for
// the given mint.
func DeriveVaultAddress(cfg Config, market, mint crypto.PublicKey) (crypto.PublicKey, uint8) {
	return DeriveAddress(cfg.ProgramID, vaultSeed, market.Bytes(), mint.Bytes())
}

// DeriveGlobalAddress derives the global ledger account address for a
// mint.
func DeriveGlobalAddress(cfg Config, mint crypto.PublicKey) (crypto.PublicKey, uint8) {
	return DeriveAddress(cfg.ProgramID, globalSeed, mint.Bytes())
}

// DeriveGlobalVaultAddress derives the global ledger vault address for a
// mint.
func DeriveGlobalVaultAddress(cfg Config, mint crypto.PublicKey) (crypto.PublicKey, uint8) {
	return DeriveAddress(cfg.ProgramID, globalVaultSeed, mint.Bytes())
}

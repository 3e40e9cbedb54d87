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

// Package loader guards access to raw account buffers: ownership and
// discriminant validation before a typed view is handed out, zero checks
// on initialization, non-blocking borrow cells that make accidental
// aliasing visible, and deterministic address derivation for vaults and
// ledgers. The program identity is threaded explicitly through Config,
// never read from ambient state, so the engine is testable without a
// deployed identity.
package loader

import (
	"code.vegaprotocol.io/flatbook/libs/crypto"
)

// Config carries the program identity that owns every account this
// engine touches. Discriminants and derived addresses depend on it.
type Config struct {
	ProgramID crypto.PublicKey
}

// NewConfig builds a Config for the given program identity.
func NewConfig(programID crypto.PublicKey) Config {
	return Config{ProgramID: programID}
}

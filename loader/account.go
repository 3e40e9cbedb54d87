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
	"code.vegaprotocol.io/flatbook/libs/crypto"

	"github.com/pkg/errors"
)

var (
	// ErrBorrowed is returned when an account's data is requested in a
	// way that conflicts with an outstanding borrow. Callers treat it as
	// "unavailable right now", never as corruption; see
	// global.CanBackOrder for the one deliberate consumer.
	ErrBorrowed = errors.New("loader: account data already borrowed")
	// ErrWrongOwner is returned when an account is not owned by the
	// program identity in the Config.
	ErrWrongOwner = errors.New("loader: account not owned by program")
	// ErrWrongSize is returned when an uninitialized account buffer is
	// not exactly header sized.
	ErrWrongSize = errors.New("loader: wrong account size for init")
	// ErrNotZeroed is returned when an uninitialized account buffer
	// contains non-zero bytes.
	ErrNotZeroed = errors.New("loader: account data not zeroed")
	// ErrTooSmall is returned when an account buffer cannot even hold
	// its fixed header.
	ErrTooSmall = errors.New("loader: account data smaller than header")
)

// Account pairs a raw buffer with the identity that owns it and a
// borrow cell. The engine is single threaded; the cell exists to turn
// reentrant aliasing inside one call graph into a visible refusal
// instead of silent corruption. Borrows never block.
type Account struct {
	Key   crypto.PublicKey
	Owner crypto.PublicKey

	data    []byte
	readers int
	writer  bool
}

// NewAccount wraps a buffer. The caller layer keeps the slice alive and
// commits or discards it atomically around the engine call.
func NewAccount(key, owner crypto.PublicKey, data []byte) *Account {
	return &Account{Key: key, Owner: owner, data: data}
}

// Len returns the buffer length.
func (a *Account) Len() int {
	return len(a.data)
}

// Borrow hands out the buffer for reading. It fails with ErrBorrowed if
// an exclusive borrow is outstanding. The release function must be
// called exactly once.
func (a *Account) Borrow() ([]byte, func(), error) {
	if a.writer {
		return nil, nil, ErrBorrowed
	}
	a.readers++
	released := false
	return a.data, func() {
		if !released {
			released = true
			a.readers--
		}
	}, nil
}

// BorrowMut hands out the buffer for writing. It fails with ErrBorrowed
// if any borrow is outstanding.
func (a *Account) BorrowMut() ([]byte, func(), error) {
	if a.writer || a.readers > 0 {
		return nil, nil, ErrBorrowed
	}
	a.writer = true
	released := false
	return a.data, func() {
		if !released {
			released = true
			a.writer = false
		}
	}, nil
}

// VerifyOwner checks the account is owned by the configured program.
func VerifyOwner(a *Account, cfg Config) error {
	if a.Owner != cfg.ProgramID {
		return errors.Wrapf(ErrWrongOwner, "expected %s actual %s", cfg.ProgramID, a.Owner)
	}
	return nil
}

// VerifyUninitialized checks an account about to be initialized: the
// buffer must be exactly headerSize bytes and all zero.
func VerifyUninitialized(data []byte, headerSize int) error {
	if len(data) != headerSize {
		return errors.Wrapf(ErrWrongSize, "expected %d actual %d", headerSize, len(data))
	}
	for _, b := range data {
		if b != 0 {
			return ErrNotZeroed
		}
	}
	return nil
}

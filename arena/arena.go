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

// Package arena divides the dynamic region of an account buffer into
// uniform blocks and hands them out by integer index. A persisted,
// size-capped byte region cannot hold native references across calls, so
// every relation between entities stored here is an Index: a bounds
// checked offset, never a pointer and never ownership. Freed blocks are
// chained into a singly linked free list and reused before the buffer
// grows.
package arena

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Index identifies a block offset inside the dynamic region of a buffer.
type Index uint32

// NIL is the reserved sentinel index denoting absence. It is never a
// valid block offset.
const NIL Index = ^Index(0)

var (
	// ErrCapacity is returned when the buffer has no room left for
	// another block. The backing buffer must be enlarged externally
	// before retrying, it cannot grow within a call.
	ErrCapacity = errors.New("arena: buffer exhausted")
	// ErrIndexOutOfRange is returned for an index past the allocated
	// region or not aligned on a block boundary.
	ErrIndexOutOfRange = errors.New("arena: index out of range")
)

// Arena is a view over the dynamic region of an account buffer. The free
// list head and the allocated bytes counter live in the owning account
// header; the owner reads them into the arena when constructing the view
// and writes them back after mutating calls.
type Arena struct {
	buf       []byte
	blockSize uint32

	freeListHead   Index
	bytesAllocated uint32
}

// New builds an arena over buf with the given uniform block size,
// restoring the free list head and allocated byte count from the owning
// header.
func New(buf []byte, blockSize uint32, freeListHead Index, bytesAllocated uint32) *Arena {
	return &Arena{
		buf:            buf,
		blockSize:      blockSize,
		freeListHead:   freeListHead,
		bytesAllocated: bytesAllocated,
	}
}

// BlockSize returns the uniform block size of this arena.
func (a *Arena) BlockSize() uint32 {
	return a.blockSize
}

// FreeListHead returns the current free list head, to be written back to
// the owning header.
func (a *Arena) FreeListHead() Index {
	return a.freeListHead
}

// BytesAllocated returns the number of dynamic bytes handed out so far,
// to be written back to the owning header.
func (a *Arena) BytesAllocated() uint32 {
	return a.bytesAllocated
}

// HasFreeBlock reports whether Allocate can succeed without growing past
// the allocated region.
func (a *Arena) HasFreeBlock() bool {
	if a.freeListHead != NIL {
		return true
	}
	return uint64(a.bytesAllocated)+uint64(a.blockSize) <= uint64(len(a.buf))
}

// HasTwoFreeBlocks reports whether two consecutive allocations can
// succeed. Callers that must remove and reinsert nodes atomically check
// this before committing either side.
func (a *Arena) HasTwoFreeBlocks() bool {
	avail := uint64(len(a.buf)) - uint64(a.bytesAllocated)
	if a.freeListHead == NIL {
		return avail >= 2*uint64(a.blockSize)
	}
	next := a.readFreeNext(a.freeListHead)
	if next != NIL {
		return true
	}
	return avail >= uint64(a.blockSize)
}

// Allocate returns the index of a zeroed block: the free list head when
// one is available, otherwise the next block past the allocated bytes
// counter. Fails with ErrCapacity when the buffer is exhausted.
func (a *Arena) Allocate() (Index, error) {
	if a.freeListHead != NIL {
		idx := a.freeListHead
		a.freeListHead = a.readFreeNext(idx)
		a.zeroBlock(idx)
		return idx, nil
	}
	if uint64(a.bytesAllocated)+uint64(a.blockSize) > uint64(len(a.buf)) {
		return NIL, ErrCapacity
	}
	idx := Index(a.bytesAllocated)
	a.bytesAllocated += a.blockSize
	a.zeroBlock(idx)
	return idx, nil
}

// Free pushes the block at idx on the free list. No compaction, no
// coalescing.
func (a *Arena) Free(idx Index) error {
	if err := a.check(idx); err != nil {
		return err
	}
	a.zeroBlock(idx)
	a.writeFreeNext(idx, a.freeListHead)
	a.freeListHead = idx
	return nil
}

// Block returns the bytes of the block at idx, bounds checked against the
// allocated region.
func (a *Arena) Block(idx Index) ([]byte, error) {
	if err := a.check(idx); err != nil {
		return nil, err
	}
	return a.buf[idx : uint32(idx)+a.blockSize], nil
}

func (a *Arena) check(idx Index) error {
	if idx == NIL {
		return ErrIndexOutOfRange
	}
	if uint32(idx)%a.blockSize != 0 {
		return ErrIndexOutOfRange
	}
	if uint64(idx)+uint64(a.blockSize) > uint64(a.bytesAllocated) {
		return ErrIndexOutOfRange
	}
	return nil
}

func (a *Arena) zeroBlock(idx Index) {
	b := a.buf[idx : uint32(idx)+a.blockSize]
	for i := range b {
		b[i] = 0
	}
}

// Free list nodes reuse the payload slot, the only overhead is the 4 byte
// next link in the block's first bytes.
func (a *Arena) readFreeNext(idx Index) Index {
	return Index(binary.LittleEndian.Uint32(a.buf[idx : idx+4]))
}

func (a *Arena) writeFreeNext(idx, next Index) {
	binary.LittleEndian.PutUint32(a.buf[idx:idx+4], uint32(next))
}

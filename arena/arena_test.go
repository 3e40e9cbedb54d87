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

package arena_test

import (
	"testing"

	"code.vegaprotocol.io/flatbook/arena"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockSize = 80

func newTestArena(t *testing.T, blocks int) *arena.Arena {
	t.Helper()
	buf := make([]byte, blocks*blockSize)
	return arena.New(buf, blockSize, arena.NIL, 0)
}

func TestArenaBumpAllocation(t *testing.T) {
	a := newTestArena(t, 3)

	i0, err := a.Allocate()
	require.NoError(t, err)
	i1, err := a.Allocate()
	require.NoError(t, err)
	i2, err := a.Allocate()
	require.NoError(t, err)

	assert.Equal(t, arena.Index(0), i0)
	assert.Equal(t, arena.Index(blockSize), i1)
	assert.Equal(t, arena.Index(2*blockSize), i2)
	assert.Equal(t, uint32(3*blockSize), a.BytesAllocated())

	_, err = a.Allocate()
	assert.ErrorIs(t, err, arena.ErrCapacity)
}

func TestArenaFreeListReuse(t *testing.T) {
	a := newTestArena(t, 3)

	i0, _ := a.Allocate()
	i1, _ := a.Allocate()
	i2, _ := a.Allocate()

	require.NoError(t, a.Free(i1))
	require.NoError(t, a.Free(i0))

	// LIFO reuse: the most recently freed block comes back first.
	r0, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, i0, r0)
	r1, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, i1, r1)

	// No growth happened, the bump counter is unchanged.
	assert.Equal(t, uint32(3*blockSize), a.BytesAllocated())

	// All blocks live again, the buffer is full.
	_, err = a.Allocate()
	assert.ErrorIs(t, err, arena.ErrCapacity)
	_ = i2
}

func TestArenaFreeBlockProbes(t *testing.T) {
	a := newTestArena(t, 2)

	assert.True(t, a.HasFreeBlock())
	assert.True(t, a.HasTwoFreeBlocks())

	i0, _ := a.Allocate()
	assert.True(t, a.HasFreeBlock())
	assert.False(t, a.HasTwoFreeBlocks())

	i1, _ := a.Allocate()
	assert.False(t, a.HasFreeBlock())
	assert.False(t, a.HasTwoFreeBlocks())

	require.NoError(t, a.Free(i0))
	assert.True(t, a.HasFreeBlock())
	assert.False(t, a.HasTwoFreeBlocks())

	require.NoError(t, a.Free(i1))
	assert.True(t, a.HasTwoFreeBlocks())
}

func TestArenaAccountingInvariant(t *testing.T) {
	// Free block count plus live block count never exceeds the number of
	// blocks allocated from the buffer.
	a := newTestArena(t, 8)

	live := map[arena.Index]struct{}{}
	freed := 0
	for i := 0; i < 8; i++ {
		idx, err := a.Allocate()
		require.NoError(t, err)
		_, dup := live[idx]
		require.False(t, dup, "index handed out twice")
		live[idx] = struct{}{}
	}
	for idx := range live {
		if len(live) <= 4 {
			break
		}
		require.NoError(t, a.Free(idx))
		delete(live, idx)
		freed++
	}
	for i := 0; i < freed; i++ {
		idx, err := a.Allocate()
		require.NoError(t, err)
		_, dup := live[idx]
		require.False(t, dup, "freed index aliased a live one")
		live[idx] = struct{}{}
	}
	assert.Equal(t, uint32(8*blockSize), a.BytesAllocated())
}

func TestArenaBlockBoundsChecked(t *testing.T) {
	a := newTestArena(t, 2)
	i0, _ := a.Allocate()

	b, err := a.Block(i0)
	require.NoError(t, err)
	assert.Len(t, b, blockSize)

	_, err = a.Block(arena.NIL)
	assert.ErrorIs(t, err, arena.ErrIndexOutOfRange)
	// Past the allocated region.
	_, err = a.Block(arena.Index(blockSize))
	assert.ErrorIs(t, err, arena.ErrIndexOutOfRange)
	// Not on a block boundary.
	_, err = a.Block(arena.Index(7))
	assert.ErrorIs(t, err, arena.ErrIndexOutOfRange)
}

func TestArenaStateRestoredFromHeader(t *testing.T) {
	buf := make([]byte, 4*blockSize)
	a := arena.New(buf, blockSize, arena.NIL, 0)

	i0, _ := a.Allocate()
	_, _ = a.Allocate()
	require.NoError(t, a.Free(i0))

	// Rebuild the view the way an account loader would, from the
	// persisted head and counter.
	b := arena.New(buf, blockSize, a.FreeListHead(), a.BytesAllocated())
	idx, err := b.Allocate()
	require.NoError(t, err)
	assert.Equal(t, i0, idx)
}

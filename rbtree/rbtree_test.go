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

package rbtree_test

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"code.vegaprotocol.io/flatbook/arena"
	"code.vegaprotocol.io/flatbook/rbtree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockSize = 80

// entry is a minimal tree payload: ordered by key then seq, lookup
// equality on key alone.
type entry struct {
	key uint64
	seq uint64
}

func (e *entry) Compare(oth *entry) int {
	switch {
	case e.key < oth.key:
		return -1
	case e.key > oth.key:
		return 1
	case e.seq < oth.seq:
		return -1
	case e.seq > oth.seq:
		return 1
	}
	return 0
}

func (e *entry) Equal(oth *entry) bool {
	return e.key == oth.key
}

func (e *entry) MarshalInto(b []byte) {
	binary.LittleEndian.PutUint64(b, e.key)
	binary.LittleEndian.PutUint64(b[8:], e.seq)
}

func (e *entry) UnmarshalFrom(b []byte) {
	e.key = binary.LittleEndian.Uint64(b)
	e.seq = binary.LittleEndian.Uint64(b[8:])
}

type harness struct {
	a    *arena.Arena
	root arena.Index
	best arena.Index
}

func newHarness(blocks int) *harness {
	return &harness{
		a:    arena.New(make([]byte, blocks*blockSize), blockSize, arena.NIL, 0),
		root: arena.NIL,
		best: arena.NIL,
	}
}

// tree rebuilds the view per operation the way an account owner would.
func (h *harness) tree() *rbtree.Tree[entry, *entry] {
	return rbtree.New[entry, *entry](h.a, h.root, h.best)
}

func (h *harness) insert(t *testing.T, key, seq uint64) arena.Index {
	t.Helper()
	tr := h.tree()
	idx, err := tr.Insert(&entry{key: key, seq: seq})
	require.NoError(t, err)
	h.root, h.best = tr.Root(), tr.Best()
	return idx
}

func (h *harness) remove(t *testing.T, idx arena.Index) {
	t.Helper()
	tr := h.tree()
	require.NoError(t, tr.Remove(idx))
	h.root, h.best = tr.Root(), tr.Best()
}

func (h *harness) keys(t *testing.T) []uint64 {
	t.Helper()
	out := []uint64{}
	for it := h.tree().Ascend(); ; {
		_, e, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, e.key)
	}
	return out
}

func TestTreeAscendingIteration(t *testing.T) {
	h := newHarness(64)
	keys := []uint64{42, 7, 99, 1, 64, 13, 55, 2, 88, 31}
	for i, k := range keys {
		h.insert(t, k, uint64(i))
	}

	got := h.keys(t)
	want := append([]uint64{}, keys...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, got)

	tr := h.tree()
	minE, err := tr.ReadPayload(tr.Min())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), minE.key)
	maxE, err := tr.ReadPayload(tr.Max())
	require.NoError(t, err)
	assert.Equal(t, uint64(99), maxE.key)
}

func TestTreeBestCacheTracksMinimum(t *testing.T) {
	h := newHarness(64)
	i5 := h.insert(t, 5, 0)
	h.insert(t, 9, 1)
	i2 := h.insert(t, 2, 2)

	assert.Equal(t, h.tree().Min(), h.best)
	assert.Equal(t, i2, h.best)

	h.remove(t, i2)
	assert.Equal(t, i5, h.best)
	assert.Equal(t, h.tree().Min(), h.best)

	h.remove(t, i5)
	h.remove(t, h.best)
	assert.Equal(t, arena.NIL, h.best)
	assert.Equal(t, arena.NIL, h.root)
}

func TestTreeLookup(t *testing.T) {
	h := newHarness(64)
	for i, k := range []uint64{10, 20, 30, 40, 50} {
		h.insert(t, k, uint64(i))
	}
	tr := h.tree()

	idx := tr.Lookup(&entry{key: 30})
	require.NotEqual(t, arena.NIL, idx)
	e, err := tr.ReadPayload(idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), e.key)

	assert.Equal(t, arena.NIL, tr.Lookup(&entry{key: 31}))
}

func TestTreeEqualKeysIterateInInsertionOrder(t *testing.T) {
	h := newHarness(64)
	// Same key, increasing seq: seq is the comparator tie break, so
	// iteration yields insertion order.
	for seq := uint64(0); seq < 8; seq++ {
		h.insert(t, 77, seq)
	}
	h.insert(t, 5, 100)
	h.insert(t, 99, 101)

	var seqs []uint64
	for it := h.tree().Ascend(); ; {
		_, e, ok := it.Next()
		if !ok {
			break
		}
		if e.key == 77 {
			seqs = append(seqs, e.seq)
		}
	}
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7}, seqs)
}

func TestTreeIndexStabilityAcrossRemovals(t *testing.T) {
	h := newHarness(128)
	rng := rand.New(rand.NewSource(1))

	idxToKey := map[arena.Index]uint64{}
	for i := 0; i < 100; i++ {
		k := uint64(rng.Intn(1000))
		idx := h.insert(t, k, uint64(i))
		idxToKey[idx] = k
	}

	// Remove half the nodes; every surviving index must still decode its
	// original payload even though removals relink interior nodes.
	removed := 0
	for idx := range idxToKey {
		if removed >= 50 {
			break
		}
		h.remove(t, idx)
		delete(idxToKey, idx)
		removed++
	}
	tr := h.tree()
	for idx, key := range idxToKey {
		e, err := tr.ReadPayload(idx)
		require.NoError(t, err)
		assert.Equal(t, key, e.key)
	}
	assert.Len(t, h.keys(t), 50)
}

func TestTreeRandomisedAgainstReference(t *testing.T) {
	h := newHarness(256)
	rng := rand.New(rand.NewSource(42))

	type live struct {
		idx arena.Index
		key uint64
	}
	var nodes []live
	var seq uint64

	for step := 0; step < 2000; step++ {
		if len(nodes) == 0 || (len(nodes) < 200 && rng.Intn(2) == 0) {
			k := uint64(rng.Intn(500))
			idx := h.insert(t, k, seq)
			seq++
			nodes = append(nodes, live{idx, k})
		} else {
			i := rng.Intn(len(nodes))
			h.remove(t, nodes[i].idx)
			nodes[i] = nodes[len(nodes)-1]
			nodes = nodes[:len(nodes)-1]
		}
	}

	want := make([]uint64, 0, len(nodes))
	for _, n := range nodes {
		want = append(want, n.key)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, h.keys(t))
	if len(nodes) > 0 {
		assert.Equal(t, h.tree().Min(), h.best)
	} else {
		assert.Equal(t, arena.NIL, h.best)
	}
}

func TestTreeWritePayloadInPlace(t *testing.T) {
	h := newHarness(8)
	idx := h.insert(t, 10, 0)
	tr := h.tree()

	e, err := tr.ReadPayload(idx)
	require.NoError(t, err)
	e.seq = 9
	require.NoError(t, tr.WritePayload(idx, e))

	back, err := tr.ReadPayload(idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), back.seq)
}

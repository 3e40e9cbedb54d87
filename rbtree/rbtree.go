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

// Package rbtree implements a balanced ordered index over arena allocated
// blocks. Nodes never hold native pointers: left, right and parent links
// are arena indices, so the whole structure round-trips through a flat
// persisted buffer. The tree is generic over the payload type, which
// supplies ordering, lookup equality and a fixed width codec.
//
// Removal relinks nodes instead of copying payloads between them, so an
// index handed out by Insert stays attached to the same payload for the
// payload's whole life. Other entities rely on this to keep back
// references (seat indices, deposit links) valid across deletions.
package rbtree

import (
	"encoding/binary"

	"code.vegaprotocol.io/flatbook/arena"
)

// NodeOverhead is the number of bytes of linkage metadata at the end of
// every tree block; the rest of the block is payload.
const NodeOverhead = 16

const (
	red   byte = 0
	black byte = 1
)

// Payload constrains tree payloads: a value type with pointer receiver
// methods for ordering, lookup equality and fixed width serialization.
// Compare defines the iteration order with the best element first (the
// tree minimum). Equal is only consulted by Lookup and may be coarser
// than Compare.
type Payload[T any] interface {
	*T
	Compare(*T) int
	Equal(*T) bool
	MarshalInto([]byte)
	UnmarshalFrom([]byte)
}

// Tree is a red-black index over an arena. It is constructed per call
// from the root and best indices persisted in the owning account header;
// after mutating operations the caller reads Root and Best back into the
// header.
type Tree[T any, PT Payload[T]] struct {
	a           *arena.Arena
	root        arena.Index
	best        arena.Index
	payloadSize uint32
}

// New builds a tree view over the arena, restoring the persisted root
// index and best (minimum) cache.
func New[T any, PT Payload[T]](a *arena.Arena, root, best arena.Index) *Tree[T, PT] {
	if a.BlockSize() <= NodeOverhead {
		panic("rbtree: block size does not fit a payload")
	}
	return &Tree[T, PT]{
		a:           a,
		root:        root,
		best:        best,
		payloadSize: a.BlockSize() - NodeOverhead,
	}
}

// Root returns the current root index, to be written back to the header.
func (t *Tree[T, PT]) Root() arena.Index {
	return t.root
}

// Best returns the cached best (minimum) index, to be written back to
// the header. NIL for an empty tree.
func (t *Tree[T, PT]) Best() arena.Index {
	return t.best
}

// block accessors. The tree only follows links it wrote itself, so a
// failed block access means the buffer was corrupted outside the engine.
func (t *Tree[T, PT]) block(i arena.Index) []byte {
	b, err := t.a.Block(i)
	if err != nil {
		panic(err)
	}
	return b
}

func (t *Tree[T, PT]) left(i arena.Index) arena.Index {
	b := t.block(i)
	return arena.Index(binary.LittleEndian.Uint32(b[t.payloadSize:]))
}

func (t *Tree[T, PT]) right(i arena.Index) arena.Index {
	b := t.block(i)
	return arena.Index(binary.LittleEndian.Uint32(b[t.payloadSize+4:]))
}

func (t *Tree[T, PT]) parent(i arena.Index) arena.Index {
	b := t.block(i)
	return arena.Index(binary.LittleEndian.Uint32(b[t.payloadSize+8:]))
}

func (t *Tree[T, PT]) color(i arena.Index) byte {
	if i == arena.NIL {
		return black
	}
	return t.block(i)[t.payloadSize+12]
}

func (t *Tree[T, PT]) setLeft(i, v arena.Index) {
	binary.LittleEndian.PutUint32(t.block(i)[t.payloadSize:], uint32(v))
}

func (t *Tree[T, PT]) setRight(i, v arena.Index) {
	binary.LittleEndian.PutUint32(t.block(i)[t.payloadSize+4:], uint32(v))
}

func (t *Tree[T, PT]) setParent(i, v arena.Index) {
	binary.LittleEndian.PutUint32(t.block(i)[t.payloadSize+8:], uint32(v))
}

func (t *Tree[T, PT]) setColor(i arena.Index, c byte) {
	t.block(i)[t.payloadSize+12] = c
}

// ReadPayload decodes the payload stored at the given index.
func (t *Tree[T, PT]) ReadPayload(i arena.Index) (*T, error) {
	b, err := t.a.Block(i)
	if err != nil {
		return nil, err
	}
	var v T
	PT(&v).UnmarshalFrom(b[:t.payloadSize])
	return &v, nil
}

// WritePayload overwrites the payload stored at the given index in
// place. The caller must not change the payload's position in the
// ordering, except within the tolerance its own Equal allows.
func (t *Tree[T, PT]) WritePayload(i arena.Index, v *T) error {
	b, err := t.a.Block(i)
	if err != nil {
		return err
	}
	PT(v).MarshalInto(b[:t.payloadSize])
	return nil
}

func (t *Tree[T, PT]) payload(i arena.Index) *T {
	var v T
	PT(&v).UnmarshalFrom(t.block(i)[:t.payloadSize])
	return &v
}

// Insert allocates a block for the payload and links it into the tree,
// O(log n). Equal keys descend right, so a later insert lands after
// earlier equal ones in iteration order.
func (t *Tree[T, PT]) Insert(v *T) (arena.Index, error) {
	idx, err := t.a.Allocate()
	if err != nil {
		return arena.NIL, err
	}
	b := t.block(idx)
	PT(v).MarshalInto(b[:t.payloadSize])
	t.setLeft(idx, arena.NIL)
	t.setRight(idx, arena.NIL)
	t.setParent(idx, arena.NIL)
	t.setColor(idx, red)

	if t.root == arena.NIL {
		t.root = idx
		t.best = idx
		t.setColor(idx, black)
		return idx, nil
	}

	cur := t.root
	for {
		if PT(v).Compare(t.payload(cur)) < 0 {
			l := t.left(cur)
			if l == arena.NIL {
				t.setLeft(cur, idx)
				break
			}
			cur = l
		} else {
			r := t.right(cur)
			if r == arena.NIL {
				t.setRight(cur, idx)
				break
			}
			cur = r
		}
	}
	t.setParent(idx, cur)

	if t.best == arena.NIL || PT(v).Compare(t.payload(t.best)) < 0 {
		t.best = idx
	}
	t.insertFixup(idx)
	return idx, nil
}

func (t *Tree[T, PT]) insertFixup(z arena.Index) {
	for {
		p := t.parent(z)
		if p == arena.NIL || t.color(p) != red {
			break
		}
		g := t.parent(p)
		if p == t.left(g) {
			u := t.right(g)
			if t.color(u) == red {
				t.setColor(p, black)
				t.setColor(u, black)
				t.setColor(g, red)
				z = g
				continue
			}
			if z == t.right(p) {
				z = p
				t.rotateLeft(z)
				p = t.parent(z)
				g = t.parent(p)
			}
			t.setColor(p, black)
			t.setColor(g, red)
			t.rotateRight(g)
		} else {
			u := t.left(g)
			if t.color(u) == red {
				t.setColor(p, black)
				t.setColor(u, black)
				t.setColor(g, red)
				z = g
				continue
			}
			if z == t.left(p) {
				z = p
				t.rotateRight(z)
				p = t.parent(z)
				g = t.parent(p)
			}
			t.setColor(p, black)
			t.setColor(g, red)
			t.rotateLeft(g)
		}
	}
	t.setColor(t.root, black)
}

func (t *Tree[T, PT]) rotateLeft(x arena.Index) {
	y := t.right(x)
	yl := t.left(y)
	t.setRight(x, yl)
	if yl != arena.NIL {
		t.setParent(yl, x)
	}
	p := t.parent(x)
	t.setParent(y, p)
	if p == arena.NIL {
		t.root = y
	} else if x == t.left(p) {
		t.setLeft(p, y)
	} else {
		t.setRight(p, y)
	}
	t.setLeft(y, x)
	t.setParent(x, y)
}

func (t *Tree[T, PT]) rotateRight(x arena.Index) {
	y := t.left(x)
	yr := t.right(y)
	t.setLeft(x, yr)
	if yr != arena.NIL {
		t.setParent(yr, x)
	}
	p := t.parent(x)
	t.setParent(y, p)
	if p == arena.NIL {
		t.root = y
	} else if x == t.right(p) {
		t.setRight(p, y)
	} else {
		t.setLeft(p, y)
	}
	t.setRight(y, x)
	t.setParent(x, y)
}

// transplant replaces the subtree rooted at u with the one rooted at v.
func (t *Tree[T, PT]) transplant(u, v arena.Index) {
	p := t.parent(u)
	if p == arena.NIL {
		t.root = v
	} else if u == t.left(p) {
		t.setLeft(p, v)
	} else {
		t.setRight(p, v)
	}
	if v != arena.NIL {
		t.setParent(v, p)
	}
}

// Remove unlinks the node at idx and frees its block, O(log n). Only the
// removed index is invalidated; every other index keeps its payload.
func (t *Tree[T, PT]) Remove(z arena.Index) error {
	if _, err := t.a.Block(z); err != nil {
		return err
	}
	if z == t.best {
		t.best = t.successor(z)
	}

	var x, xParent arena.Index
	y := z
	yColor := t.color(y)
	switch {
	case t.left(z) == arena.NIL:
		x = t.right(z)
		xParent = t.parent(z)
		t.transplant(z, x)
	case t.right(z) == arena.NIL:
		x = t.left(z)
		xParent = t.parent(z)
		t.transplant(z, x)
	default:
		y = t.minimum(t.right(z))
		yColor = t.color(y)
		x = t.right(y)
		if t.parent(y) == z {
			xParent = y
			if x != arena.NIL {
				t.setParent(x, y)
			}
		} else {
			xParent = t.parent(y)
			t.transplant(y, x)
			zr := t.right(z)
			t.setRight(y, zr)
			t.setParent(zr, y)
		}
		t.transplant(z, y)
		zl := t.left(z)
		t.setLeft(y, zl)
		t.setParent(zl, y)
		t.setColor(y, t.color(z))
	}
	if yColor == black {
		t.removeFixup(x, xParent)
	}
	return t.a.Free(z)
}

func (t *Tree[T, PT]) removeFixup(x, xParent arena.Index) {
	for x != t.root && t.color(x) == black {
		if xParent == arena.NIL {
			break
		}
		if x == t.left(xParent) {
			w := t.right(xParent)
			if t.color(w) == red {
				t.setColor(w, black)
				t.setColor(xParent, red)
				t.rotateLeft(xParent)
				w = t.right(xParent)
			}
			if t.color(t.left(w)) == black && t.color(t.right(w)) == black {
				t.setColor(w, red)
				x = xParent
				xParent = t.parent(x)
			} else {
				if t.color(t.right(w)) == black {
					wl := t.left(w)
					if wl != arena.NIL {
						t.setColor(wl, black)
					}
					t.setColor(w, red)
					t.rotateRight(w)
					w = t.right(xParent)
				}
				t.setColor(w, t.color(xParent))
				t.setColor(xParent, black)
				wr := t.right(w)
				if wr != arena.NIL {
					t.setColor(wr, black)
				}
				t.rotateLeft(xParent)
				x = t.root
				break
			}
		} else {
			w := t.left(xParent)
			if t.color(w) == red {
				t.setColor(w, black)
				t.setColor(xParent, red)
				t.rotateRight(xParent)
				w = t.left(xParent)
			}
			if t.color(t.right(w)) == black && t.color(t.left(w)) == black {
				t.setColor(w, red)
				x = xParent
				xParent = t.parent(x)
			} else {
				if t.color(t.left(w)) == black {
					wr := t.right(w)
					if wr != arena.NIL {
						t.setColor(wr, black)
					}
					t.setColor(w, red)
					t.rotateLeft(w)
					w = t.left(xParent)
				}
				t.setColor(w, t.color(xParent))
				t.setColor(xParent, black)
				wl := t.left(w)
				if wl != arena.NIL {
					t.setColor(wl, black)
				}
				t.rotateRight(xParent)
				x = t.root
				break
			}
		}
	}
	if x != arena.NIL {
		t.setColor(x, black)
	}
}

// Lookup walks the tree steered by Compare and returns the first visited
// index whose payload is Equal to v, or NIL. Equal may be coarser than
// Compare, in which case only nodes on the Compare path are candidates.
func (t *Tree[T, PT]) Lookup(v *T) arena.Index {
	cur := t.root
	for cur != arena.NIL {
		p := t.payload(cur)
		if PT(v).Equal(p) {
			return cur
		}
		if PT(v).Compare(p) < 0 {
			cur = t.left(cur)
		} else {
			cur = t.right(cur)
		}
	}
	return arena.NIL
}

// Min returns the index of the smallest payload, NIL when empty.
func (t *Tree[T, PT]) Min() arena.Index {
	if t.root == arena.NIL {
		return arena.NIL
	}
	return t.minimum(t.root)
}

// Max returns the index of the largest payload, NIL when empty.
func (t *Tree[T, PT]) Max() arena.Index {
	if t.root == arena.NIL {
		return arena.NIL
	}
	cur := t.root
	for t.right(cur) != arena.NIL {
		cur = t.right(cur)
	}
	return cur
}

func (t *Tree[T, PT]) minimum(i arena.Index) arena.Index {
	for t.left(i) != arena.NIL {
		i = t.left(i)
	}
	return i
}

func (t *Tree[T, PT]) successor(i arena.Index) arena.Index {
	r := t.right(i)
	if r != arena.NIL {
		return t.minimum(r)
	}
	p := t.parent(i)
	for p != arena.NIL && i == t.right(p) {
		i = p
		p = t.parent(p)
	}
	return p
}

// Iterator yields (index, payload) pairs in ascending comparator order.
// It reflects live state: it must not be advanced across mutations of
// the tree.
type Iterator[T any, PT Payload[T]] struct {
	t   *Tree[T, PT]
	cur arena.Index
}

// Ascend returns an iterator positioned on the smallest payload.
func (t *Tree[T, PT]) Ascend() *Iterator[T, PT] {
	return &Iterator[T, PT]{t: t, cur: t.Min()}
}

// Next returns the current index and payload and advances, or false when
// the walk is done.
func (it *Iterator[T, PT]) Next() (arena.Index, *T, bool) {
	if it.cur == arena.NIL {
		return arena.NIL, nil, false
	}
	idx := it.cur
	v := it.t.payload(idx)
	it.cur = it.t.successor(idx)
	return idx, v, true
}

package interval

import (
	"iter"

	"github.com/Sumatoshi-tech/ivtree/pkg/rbtree"
)

// Tree is an augmented interval tree over nodes stored in an Arena.
type Tree struct {
	arena *Arena
	base  *rbtree.Tree[Node]
	aug   *augment
}

// NewTree creates an empty tree whose nodes live in arena.
func NewTree(arena *Arena) *Tree {
	return &Tree{
		arena: arena,
		base:  rbtree.NewTree(arena.nodes),
		aug:   &augment{nodes: arena.nodes},
	}
}

// Arena returns the arena the tree links nodes from.
func (t *Tree) Arena() *Arena {
	return t.arena
}

// Root returns the root handle, Nil for an empty tree.
func (t *Tree) Root() Handle {
	return t.base.Root()
}

// Node returns a copy of a node.
func (t *Tree) Node(h Handle) Node {
	return *t.arena.nodes.Value(h)
}

// Len returns the number of intervals in the tree.
func (t *Tree) Len() int {
	root := t.base.Root()
	if root == Nil {
		return 0
	}

	return t.Node(root).Size()
}

// Height returns the height of the tree, 0 when empty.
func (t *Tree) Height() int {
	root := t.base.Root()
	if root == Nil {
		return 0
	}

	return t.Node(root).Height()
}

// Contains reports whether h is linked into this tree.
func (t *Tree) Contains(h Handle) bool {
	return t.base.Contains(h)
}

// Insert links an allocated node into the tree.
//
// The node must not be linked into this or any other tree; violating this
// panics.
func (t *Tree) Insert(h Handle) {
	t.base.Insert(h, t.aug)
}

// Remove unlinks a node from the tree. The node stays allocated.
//
// The node must be linked into this tree; violating this panics.
func (t *Tree) Remove(h Handle) {
	t.base.Unlink(h, t.aug)
}

// Clear empties the tree in constant time without visiting any node.
// Callers that need to release nodes should collect them with All first.
func (t *Tree) Clear() {
	t.base.Clear()
}

// Min returns the first interval in tree order.
func (t *Tree) Min() (Handle, bool) {
	h := t.base.Min().Handle()

	return h, h != Nil
}

// Max returns the last interval in tree order.
func (t *Tree) Max() (Handle, bool) {
	h := t.base.Max().Handle()

	return h, h != Nil
}

// All returns every interval in ascending (Low, High) order.
func (t *Tree) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for it := t.base.Min(); !it.Limit(); it = it.Next() {
			if !yield(it.Handle()) {
				return
			}
		}
	}
}

// Find returns one interval overlapping [low, high]: the first one met on
// the way down from the root, not necessarily the leftmost. An empty tree,
// no overlap, or low > high yield (Nil, false).
func (t *Tree) Find(low, high Bound) (Handle, bool) {
	if low > high {
		return Nil, false
	}

	nodes := t.arena.nodes
	n := t.base.Root()

	for n != Nil {
		left := nodes.Left(n)

		switch {
		case nodes.Value(n).Overlaps(low, high):
			return n, true
		case left == Nil || nodes.Value(left).max < low:
			// Every interval on the left ends before low.
			n = nodes.Right(n)
		default:
			n = left
		}
	}

	return Nil, false
}

// Intersects reports whether any interval overlaps [low, high].
func (t *Tree) Intersects(low, high Bound) bool {
	_, ok := t.Find(low, high)

	return ok
}

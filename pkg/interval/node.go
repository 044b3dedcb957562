// Package interval provides an augmented interval index for efficient
// range-overlap queries over closed intervals [Low, High].
//
// The index is an augmentation layer over the red-black tree of package
// rbtree. Each node stores the maximum High of its subtree together with the
// subtree size and height; the base tree reports every structural change
// through the propagate and rotate hooks so these statistics stay exact. The
// max statistic lets Find and the overlap Iterator prune subtrees that end
// before the query starts.
//
// Nodes live in a caller-owned Arena. A Tree links and unlinks existing
// nodes, it never allocates or frees them. Neither type is safe for
// concurrent use.
package interval

import (
	"fmt"

	"github.com/Sumatoshi-tech/ivtree/pkg/rbtree"
)

// Bound is the ordered numeric domain of interval endpoints.
type Bound = uint32

// Handle addresses a node inside an Arena.
type Handle = rbtree.Handle

// Nil is the handle of no node.
const Nil = rbtree.Nil

// nodeColumns is the number of uint32 columns a Node packs into.
const nodeColumns = 5

// Node is the payload of one interval in the index.
type Node struct {
	Low  Bound
	High Bound

	// Derived statistics, maintained by the tree hooks.
	max    Bound
	size   int32
	height int32
}

// Max returns the largest High in the subtree rooted at the node.
func (n Node) Max() Bound {
	return n.max
}

// Size returns the number of nodes in the subtree rooted at the node.
func (n Node) Size() int {
	return int(n.size)
}

// Height returns the number of nodes on the longest path from the node down
// to a leaf, the node included.
func (n Node) Height() int {
	return int(n.height)
}

// Overlaps reports whether the node intersects the closed range [low, high].
func (n Node) Overlaps(low, high Bound) bool {
	return high >= n.Low && n.High >= low
}

func (n Node) String() string {
	return fmt.Sprintf("[%d, %d]", n.Low, n.High)
}

// Compare orders nodes by Low, then by High.
func Compare(a, b Node) int {
	if a.Low != b.Low {
		if a.Low < b.Low {
			return -1
		}

		return 1
	}

	if a.High != b.High {
		if a.High < b.High {
			return -1
		}

		return 1
	}

	return 0
}

// NodePacker packs nodes into columns for arena hibernation.
type NodePacker struct{}

// Width implements rbtree.Packer.
func (NodePacker) Width() int {
	return nodeColumns
}

// Pack implements rbtree.Packer.
func (NodePacker) Pack(value *Node, row []uint32) {
	row[0] = value.Low
	row[1] = value.High
	row[2] = value.max
	row[3] = uint32(value.size)   //nolint:gosec // sizes are bounded by the uint32 handle space.
	row[4] = uint32(value.height) //nolint:gosec // heights are bounded by the uint32 handle space.
}

// Unpack implements rbtree.Packer.
func (NodePacker) Unpack(row []uint32, value *Node) {
	value.Low = row[0]
	value.High = row[1]
	value.max = row[2]
	value.size = int32(row[3])   //nolint:gosec // written by Pack from an int32.
	value.height = int32(row[4]) //nolint:gosec // written by Pack from an int32.
}

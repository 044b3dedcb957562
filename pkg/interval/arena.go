package interval

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/ivtree/pkg/rbtree"
)

// Sentinel errors.
var (
	// ErrInvalidBounds is returned for intervals whose Low exceeds High.
	ErrInvalidBounds = errors.New("interval low bound exceeds high bound")
	// ErrLinked is returned when a linked node would be modified.
	ErrLinked = errors.New("node is linked into a tree")
)

// Arena is caller-owned storage for interval nodes.
type Arena struct {
	nodes *rbtree.Arena[Node]
}

// NewArena creates an empty node arena.
func NewArena() *Arena {
	return &Arena{nodes: rbtree.NewArena[Node]()}
}

// ArenaOf wraps an existing node arena, typically one shard of an
// rbtree.ShardedArena.
func ArenaOf(nodes *rbtree.Arena[Node]) *Arena {
	return &Arena{nodes: nodes}
}

// Nodes returns the underlying base arena.
func (a *Arena) Nodes() *rbtree.Arena[Node] {
	return a.nodes
}

// Alloc creates an unlinked node for [low, high].
func (a *Arena) Alloc(low, high Bound) (Handle, error) {
	if low > high {
		return Nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidBounds, low, high)
	}

	return a.nodes.Alloc(Node{Low: low, High: high}), nil
}

// Free releases an unlinked node.
func (a *Arena) Free(h Handle) {
	a.nodes.Free(h)
}

// Reset detaches a node left behind by Tree.Clear so that it can be inserted again.
func (a *Arena) Reset(h Handle) {
	a.nodes.Reset(h)
}

// SetBounds changes the interval of an unlinked node.
func (a *Arena) SetBounds(h Handle, low, high Bound) error {
	if a.nodes.Linked(h) {
		return fmt.Errorf("%w: handle %d", ErrLinked, h)
	}

	if low > high {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidBounds, low, high)
	}

	nd := a.nodes.Value(h)
	nd.Low = low
	nd.High = high

	return nil
}

// Node returns a copy of a node.
func (a *Arena) Node(h Handle) Node {
	return *a.nodes.Value(h)
}

// Linked reports whether the node is linked into a tree.
func (a *Arena) Linked(h Handle) bool {
	return a.nodes.Linked(h)
}

// Used returns the number of live nodes.
func (a *Arena) Used() int {
	return a.nodes.Used()
}

// Hibernate compresses the arena; see rbtree.Arena.Hibernate.
func (a *Arena) Hibernate() error {
	return a.nodes.Hibernate(NodePacker{})
}

// Boot restores a hibernated arena.
func (a *Arena) Boot() error {
	return a.nodes.Boot(NodePacker{})
}

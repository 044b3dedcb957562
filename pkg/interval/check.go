package interval

import (
	"errors"
	"fmt"
)

// ErrInvariant is returned by Check when the tree structure is corrupt.
var ErrInvariant = errors.New("interval tree invariant violated")

// subtreeFacts are the values Check recomputes from scratch for a subtree.
type subtreeFacts struct {
	size        int32
	height      int32
	blackHeight int
	max         Bound
	empty       bool
}

// Check walks the whole tree and verifies parent links, red-black coloring,
// the ordering rule and the max, size and height statistics of every node.
// It is meant for tests and diagnostics; it costs O(N).
func (t *Tree) Check() error {
	root := t.base.Root()
	if root == Nil {
		return nil
	}

	nodes := t.arena.nodes

	if nodes.Parent(root) != Nil {
		return fmt.Errorf("%w: root %d has a parent", ErrInvariant, root)
	}

	if !nodes.Black(root) {
		return fmt.Errorf("%w: root %d is red", ErrInvariant, root)
	}

	_, err := t.checkSubtree(root)
	if err != nil {
		return err
	}

	return t.checkOrder()
}

func (t *Tree) checkSubtree(n Handle) (subtreeFacts, error) {
	if n == Nil {
		return subtreeFacts{blackHeight: 1, empty: true}, nil
	}

	nodes := t.arena.nodes
	left := nodes.Left(n)
	right := nodes.Right(n)

	for _, child := range []Handle{left, right} {
		if child == Nil {
			continue
		}

		if nodes.Parent(child) != n {
			return subtreeFacts{}, fmt.Errorf("%w: child %d does not point back to %d", ErrInvariant, child, n)
		}

		if !nodes.Black(n) && !nodes.Black(child) {
			return subtreeFacts{}, fmt.Errorf("%w: red node %d has red child %d", ErrInvariant, n, child)
		}
	}

	lf, err := t.checkSubtree(left)
	if err != nil {
		return subtreeFacts{}, err
	}

	rf, err := t.checkSubtree(right)
	if err != nil {
		return subtreeFacts{}, err
	}

	if lf.blackHeight != rf.blackHeight {
		return subtreeFacts{}, fmt.Errorf("%w: black height differs below %d", ErrInvariant, n)
	}

	nd := nodes.Value(n)
	facts := subtreeFacts{
		size:        1 + lf.size + rf.size,
		height:      1 + max(lf.height, rf.height),
		blackHeight: lf.blackHeight,
		max:         nd.High,
	}

	if nodes.Black(n) {
		facts.blackHeight++
	}

	if !lf.empty && lf.max > facts.max {
		facts.max = lf.max
	}

	if !rf.empty && rf.max > facts.max {
		facts.max = rf.max
	}

	switch {
	case nd.size != facts.size:
		return subtreeFacts{}, fmt.Errorf("%w: node %d size %d, want %d", ErrInvariant, n, nd.size, facts.size)
	case nd.height != facts.height:
		return subtreeFacts{}, fmt.Errorf("%w: node %d height %d, want %d", ErrInvariant, n, nd.height, facts.height)
	case nd.max != facts.max:
		return subtreeFacts{}, fmt.Errorf("%w: node %d max %d, want %d", ErrInvariant, n, nd.max, facts.max)
	}

	return facts, nil
}

func (t *Tree) checkOrder() error {
	var prev Node

	first := true

	for h := range t.All() {
		nd := t.Node(h)

		if !first && Compare(prev, nd) > 0 {
			return fmt.Errorf("%w: %s ordered before %s", ErrInvariant, prev, nd)
		}

		prev = nd
		first = false
	}

	return nil
}

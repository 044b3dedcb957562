package interval

import "github.com/Sumatoshi-tech/ivtree/pkg/rbtree"

// augment implements rbtree.Callbacks: the ordering rule and the hooks that
// keep max, size and height exact.
type augment struct {
	nodes *rbtree.Arena[Node]
}

// Compare implements rbtree.Callbacks.
func (aug *augment) Compare(a, b Handle) int {
	return Compare(*aug.nodes.Value(a), *aug.nodes.Value(b))
}

// Propagate recomputes n and every ancestor of n, bottom-up.
func (aug *augment) Propagate(n Handle) {
	for n != Nil {
		aug.fixCounts(n)
		n = aug.nodes.Parent(n)
	}
}

// Rotate recomputes the demoted node first, then the promoted node, then its
// parent. Each step reads the previous result.
func (aug *augment) Rotate(oldTop, newTop Handle) {
	aug.fixCounts(oldTop)
	aug.fixCounts(newTop)

	if parent := aug.nodes.Parent(newTop); parent != Nil {
		aug.fixCounts(parent)
	}
}

func (aug *augment) fixCounts(n Handle) {
	left := aug.nodes.Left(n)
	right := aug.nodes.Right(n)
	nd := aug.nodes.Value(n)

	nd.size = 1 + aug.size(left) + aug.size(right)
	nd.height = 1 + max(aug.height(left), aug.height(right))
	nd.max = nd.High

	if m, ok := aug.max(left); ok && m > nd.max {
		nd.max = m
	}

	if m, ok := aug.max(right); ok && m > nd.max {
		nd.max = m
	}
}

func (aug *augment) size(n Handle) int32 {
	if n == Nil {
		return 0
	}

	return aug.nodes.Value(n).size
}

func (aug *augment) height(n Handle) int32 {
	if n == Nil {
		return 0
	}

	return aug.nodes.Value(n).height
}

// max reports the subtree maximum; an absent subtree has none.
func (aug *augment) max(n Handle) (Bound, bool) {
	if n == Nil {
		return 0, false
	}

	return aug.nodes.Value(n).max, true
}

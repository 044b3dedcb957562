package interval

import "iter"

// Iterator is a restartable cursor over the intervals overlapping a query.
// It holds no path stack: every step is recomputed from the parent and child
// links of the current node, so it is invalidated by Insert and Remove.
//
// The zero value is exhausted.
type Iterator struct {
	tree *Tree
	low  Bound
	high Bound
	node Handle
}

// IterFirst positions it on the leftmost interval overlapping [low, high].
// It returns (Nil, false) when nothing overlaps or low > high.
func (t *Tree) IterFirst(it *Iterator, low, high Bound) (Handle, bool) {
	*it = Iterator{tree: t, low: low, high: high}

	if low <= high {
		it.node = t.minInterval(t.base.Root(), low, high)
	}

	return it.node, it.node != Nil
}

// Next advances to the following overlapping interval in ascending order.
// Once exhausted it keeps returning (Nil, false).
func (it *Iterator) Next() (Handle, bool) {
	if it.node == Nil {
		return Nil, false
	}

	it.node = it.tree.nextInterval(it.node, it.low, it.high)

	return it.node, it.node != Nil
}

// Handle returns the current interval, Nil when exhausted.
func (it *Iterator) Handle() Handle {
	return it.node
}

// Overlapping returns the intervals overlapping [low, high] in ascending order.
func (t *Tree) Overlapping(low, high Bound) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		var it Iterator

		for h, ok := t.IterFirst(&it, low, high); ok; h, ok = it.Next() {
			if !yield(h) {
				return
			}
		}
	}
}

// QueryOverlap returns all intervals that overlap [low, high] in ascending order.
// An interval [a, b] overlaps [low, high] when a <= high AND b >= low.
func (t *Tree) QueryOverlap(low, high Bound) []Handle {
	var results []Handle

	for h := range t.Overlapping(low, high) {
		results = append(results, h)
	}

	return results
}

// QueryPoint returns all intervals containing the given point.
// Equivalent to QueryOverlap(point, point).
func (t *Tree) QueryPoint(point Bound) []Handle {
	return t.QueryOverlap(point, point)
}

// minInterval returns the leftmost node of the subtree at n that overlaps
// [low, high], or Nil.
func (t *Tree) minInterval(n Handle, low, high Bound) Handle {
	nodes := t.arena.nodes
	found := Nil

	for n != Nil {
		intersects := nodes.Value(n).Overlaps(low, high)
		if intersects {
			found = n
		}

		left := nodes.Left(n)

		// A left subtree ending before low holds no match. If it may hold
		// one, the right subtree cannot hold an earlier one.
		if left == Nil || nodes.Value(left).max < low {
			if intersects {
				break
			}

			n = nodes.Right(n)
		} else {
			n = left
		}
	}

	return found
}

// nextInterval returns the first node after n, in tree order, that overlaps
// [low, high], or Nil.
func (t *Tree) nextInterval(n Handle, low, high Bound) Handle {
	nodes := t.arena.nodes

	for n != Nil {
		if right := nodes.Right(n); right != Nil {
			if found := t.minInterval(right, low, high); found != Nil {
				return found
			}
		}

		// Climb until a left child link is traversed; ancestors reached
		// from the right were visited already.
		child := n
		n = nodes.Parent(n)

		for n != Nil && nodes.Right(n) == child {
			child = n
			n = nodes.Parent(n)
		}

		if n == Nil {
			break
		}

		nd := nodes.Value(n)

		// Everything from here on starts after high.
		if nd.Low > high {
			break
		}

		if nd.Overlaps(low, high) {
			return n
		}
	}

	return Nil
}

package rbtree

// Callbacks is the contract between a Tree and the code that augments it.
//
// Compare orders nodes; it must be pure and total. Propagate is called after
// a link change below n and must fix derived data from n up to the root.
// Rotate is called right after a rotation that replaced oldTop with newTop as
// the root of a subtree.
type Callbacks interface {
	Compare(a, b Handle) int
	Propagate(n Handle)
	Rotate(oldTop, newTop Handle)
}

// Tree is a red-black tree over nodes stored in an Arena.
//
// The balancing code is inspired by:
// http://en.literateprograms.org/Red-black_tree_(C)#chunk use:private function prototypes.
//
// Nodes are never allocated or freed by the tree. Equal keys are allowed and
// are placed after the existing equal keys.
type Tree[T any] struct {
	// Nodes storage.
	arena *Arena[T]

	// Root of the tree.
	root Handle

	// Number of nodes under root, including the root.
	count int32
}

// NewTree creates an empty tree whose nodes live in arena.
func NewTree[T any](arena *Arena[T]) *Tree[T] {
	return &Tree[T]{arena: arena}
}

func (tree *Tree[T]) storage() []node[T] {
	tree.arena.mustBeBooted()

	return tree.arena.storage
}

// Arena returns the bound node arena.
func (tree *Tree[T]) Arena() *Arena[T] {
	return tree.arena
}

// Root returns the root handle, Nil for an empty tree.
func (tree *Tree[T]) Root() Handle {
	return tree.root
}

// Len returns the number of linked nodes.
func (tree *Tree[T]) Len() int {
	return int(tree.count)
}

// Clear empties the tree in constant time. Nodes are not visited: their
// links go stale and they stay marked as linked until Arena.Reset.
func (tree *Tree[T]) Clear() {
	tree.root = Nil
	tree.count = 0
}

// Contains reports whether nodeIdx is linked into this tree.
func (tree *Tree[T]) Contains(nodeIdx Handle) bool {
	if nodeIdx == Nil || tree.root == Nil {
		return false
	}

	alloc := tree.storage()
	if int(nodeIdx) >= len(alloc) || !alloc[nodeIdx].linked {
		return false
	}

	for alloc[nodeIdx].parent != Nil {
		nodeIdx = alloc[nodeIdx].parent
	}

	return nodeIdx == tree.root
}

// Insert links an unlinked node into the tree.
//
// REQUIRES: the node is not linked into any tree.
func (tree *Tree[T]) Insert(nodeIdx Handle, cb Callbacks) {
	alloc := tree.storage()
	doAssert(nodeIdx != Nil && int(nodeIdx) < len(alloc))
	doAssert(!alloc[nodeIdx].linked)

	alloc[nodeIdx].parent = Nil
	alloc[nodeIdx].left = Nil
	alloc[nodeIdx].right = Nil
	alloc[nodeIdx].color = red
	alloc[nodeIdx].linked = true

	tree.doInsert(nodeIdx, cb)
	tree.count++

	cb.Propagate(nodeIdx)

	// Rotate only refreshes one level above the new subtree top; heights
	// further up still reflect the shape before rebalancing.
	if top := tree.insertFixup(nodeIdx, cb); top != Nil {
		if parent := alloc[top].parent; parent != Nil {
			cb.Propagate(parent)
		}
	}
}

// Unlink detaches a node from the tree. The node memory is left in the arena.
//
// REQUIRES: tree.Contains(nodeIdx).
func (tree *Tree[T]) Unlink(nodeIdx Handle, cb Callbacks) {
	doAssert(tree.Contains(nodeIdx))

	alloc := tree.storage()

	if alloc[nodeIdx].left != Nil && alloc[nodeIdx].right != Nil {
		pred := maxPredecessor(nodeIdx, alloc)
		tree.swapNodes(nodeIdx, pred)
		cb.Propagate(nodeIdx)
	}

	doAssert(alloc[nodeIdx].left == Nil || alloc[nodeIdx].right == Nil)

	child := alloc[nodeIdx].right
	if child == Nil {
		child = alloc[nodeIdx].left
	}

	if alloc[nodeIdx].color {
		alloc[nodeIdx].color = getColor(child, alloc)
		tree.deleteCase1(nodeIdx, cb)
	}

	parent := alloc[nodeIdx].parent
	tree.replaceNode(nodeIdx, child)

	if parent == Nil && child != Nil {
		alloc[child].color = black
	}

	alloc[nodeIdx].parent = Nil
	alloc[nodeIdx].left = Nil
	alloc[nodeIdx].right = Nil
	alloc[nodeIdx].linked = false
	tree.count--

	if parent != Nil {
		cb.Propagate(parent)
	}
}

// Min creates an iterator that points to the minimum node in the tree.
// If the tree is empty, returns Limit().
func (tree *Tree[T]) Min() Iterator[T] {
	if tree.root == Nil {
		return Iterator[T]{tree, Nil}
	}

	return Iterator[T]{tree, minimum(tree.root, tree.storage())}
}

// Max creates an iterator that points at the maximum node in the tree.
//
// If the tree is empty, returns NegativeLimit().
func (tree *Tree[T]) Max() Iterator[T] {
	if tree.root == Nil {
		return Iterator[T]{tree, limitHandle}
	}

	alloc := tree.storage()
	cursor := tree.root

	for alloc[cursor].right != Nil {
		cursor = alloc[cursor].right
	}

	return Iterator[T]{tree, cursor}
}

// Limit creates an iterator that points beyond the maximum node in the tree.
func (tree *Tree[T]) Limit() Iterator[T] {
	return Iterator[T]{tree, Nil}
}

// NegativeLimit creates an iterator that points before the minimum node in the tree.
func (tree *Tree[T]) NegativeLimit() Iterator[T] {
	return Iterator[T]{tree, limitHandle}
}

// At creates an iterator positioned at a linked node.
func (tree *Tree[T]) At(nodeIdx Handle) Iterator[T] {
	return Iterator[T]{tree, nodeIdx}
}

// Iterator allows scanning tree nodes in sort order.
//
// Iterators are invalidated by any Insert or Unlink on the tree.
type Iterator[T any] struct {
	tree *Tree[T]
	node Handle
}

// Equal checks for the underlying nodes equality.
func (iter Iterator[T]) Equal(other Iterator[T]) bool {
	return iter.node == other.node
}

// Limit checks if the iterator points beyond the max node in the tree.
func (iter Iterator[T]) Limit() bool {
	return iter.node == Nil
}

// NegativeLimit checks if the iterator points before the minimum node in the tree.
func (iter Iterator[T]) NegativeLimit() bool {
	return iter.node == limitHandle
}

// Handle returns the current node, Nil at either limit.
func (iter Iterator[T]) Handle() Handle {
	if iter.NegativeLimit() {
		return Nil
	}

	return iter.node
}

// Value returns the current payload. The result is nil if iter.Limit() || iter.NegativeLimit().
func (iter Iterator[T]) Value() *T {
	if iter.Limit() || iter.NegativeLimit() {
		return nil
	}

	return &iter.tree.storage()[iter.node].value
}

// Next creates a new iterator that points to the successor of the current node.
//
// REQUIRES: !iter.Limit().
func (iter Iterator[T]) Next() Iterator[T] {
	doAssert(!iter.Limit())

	if iter.NegativeLimit() {
		return iter.tree.Min()
	}

	return Iterator[T]{iter.tree, doNext(iter.node, iter.tree.storage())}
}

// Prev creates a new iterator that points to the predecessor of the current
// node.
//
// REQUIRES: !iter.NegativeLimit().
func (iter Iterator[T]) Prev() Iterator[T] {
	doAssert(!iter.NegativeLimit())

	if iter.Limit() {
		return iter.tree.Max()
	}

	return Iterator[T]{iter.tree, doPrev(iter.node, iter.tree.storage())}
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}

const (
	red   = false
	black = true
)

// Internal node attribute accessors.
func getColor[T any](nodeIdx Handle, alloc []node[T]) bool {
	if nodeIdx == Nil {
		return black
	}

	return alloc[nodeIdx].color
}

func isLeftChild[T any](nodeIdx Handle, alloc []node[T]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].left
}

func isRightChild[T any](nodeIdx Handle, alloc []node[T]) bool {
	return nodeIdx == alloc[alloc[nodeIdx].parent].right
}

func sibling[T any](nodeIdx Handle, alloc []node[T]) Handle {
	doAssert(alloc[nodeIdx].parent != Nil)

	if isLeftChild(nodeIdx, alloc) {
		return alloc[alloc[nodeIdx].parent].right
	}

	return alloc[alloc[nodeIdx].parent].left
}

func minimum[T any](nodeIdx Handle, alloc []node[T]) Handle {
	for alloc[nodeIdx].left != Nil {
		nodeIdx = alloc[nodeIdx].left
	}

	return nodeIdx
}

// Return the minimum node that's larger than N. Return Nil if no such
// node is found.
func doNext[T any](nodeIdx Handle, alloc []node[T]) Handle {
	if alloc[nodeIdx].right != Nil {
		return minimum(alloc[nodeIdx].right, alloc)
	}

	for nodeIdx != Nil {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == Nil {
			return Nil
		}

		if isLeftChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}

	return Nil
}

// Return the maximum node that's smaller than N. Return limitHandle if no
// such node is found.
func doPrev[T any](nodeIdx Handle, alloc []node[T]) Handle {
	if alloc[nodeIdx].left != Nil {
		return maxPredecessor(nodeIdx, alloc)
	}

	for nodeIdx != Nil {
		parentIdx := alloc[nodeIdx].parent
		if parentIdx == Nil {
			break
		}

		if isRightChild(nodeIdx, alloc) {
			return parentIdx
		}

		nodeIdx = parentIdx
	}

	return limitHandle
}

// Return the predecessor of "n".
func maxPredecessor[T any](nodeIdx Handle, alloc []node[T]) Handle {
	doAssert(alloc[nodeIdx].left != Nil)

	cursor := alloc[nodeIdx].left

	for alloc[cursor].right != Nil {
		cursor = alloc[cursor].right
	}

	return cursor
}

// Private methods.

// Attach a fresh leaf below the last node it does not precede.
func (tree *Tree[T]) doInsert(nodeIdx Handle, cb Callbacks) {
	if tree.root == Nil {
		tree.root = nodeIdx

		return
	}

	alloc := tree.storage()
	parent := tree.root

	for {
		if cb.Compare(nodeIdx, parent) < 0 {
			if alloc[parent].left == Nil {
				alloc[parent].left = nodeIdx
				alloc[nodeIdx].parent = parent

				return
			}

			parent = alloc[parent].left
		} else {
			if alloc[parent].right == Nil {
				alloc[parent].right = nodeIdx
				alloc[nodeIdx].parent = parent

				return
			}

			parent = alloc[parent].right
		}
	}
}

// insertFixup restores the red-black rules after nodeIdx was attached. It
// returns the top of the last rotated subtree, Nil when nothing rotated.
func (tree *Tree[T]) insertFixup(nodeIdx Handle, cb Callbacks) Handle {
	alloc := tree.storage()
	top := Nil

	for {
		// Case 1: N is at the root.
		if alloc[nodeIdx].parent == Nil {
			alloc[nodeIdx].color = black

			break
		}

		// Case 2: The parent is black, so the tree already
		// satisfies the RB properties.
		if alloc[alloc[nodeIdx].parent].color {
			break
		}

		// Case 3: parent and uncle are both red.
		// Then paint both black and make grandparent red.
		grandparent := alloc[alloc[nodeIdx].parent].parent

		var uncle Handle
		if isLeftChild(alloc[nodeIdx].parent, alloc) {
			uncle = alloc[grandparent].right
		} else {
			uncle = alloc[grandparent].left
		}

		if uncle != Nil && !alloc[uncle].color {
			alloc[alloc[nodeIdx].parent].color = black
			alloc[uncle].color = black
			alloc[grandparent].color = red
			nodeIdx = grandparent

			continue
		}

		// Case 4: parent is red, uncle is black (1).
		if isRightChild(nodeIdx, alloc) && isLeftChild(alloc[nodeIdx].parent, alloc) {
			tree.rotateLeft(alloc[nodeIdx].parent, cb)
			top = nodeIdx
			nodeIdx = alloc[nodeIdx].left

			continue
		}

		if isLeftChild(nodeIdx, alloc) && isRightChild(alloc[nodeIdx].parent, alloc) {
			tree.rotateRight(alloc[nodeIdx].parent, cb)
			top = nodeIdx
			nodeIdx = alloc[nodeIdx].right

			continue
		}

		// Case 5: parent is red, uncle is black (2).
		alloc[alloc[nodeIdx].parent].color = black
		alloc[grandparent].color = red
		top = alloc[nodeIdx].parent

		if isLeftChild(nodeIdx, alloc) {
			tree.rotateRight(grandparent, cb)
		} else {
			tree.rotateLeft(grandparent, cb)
		}

		break
	}

	return top
}

// Exchange the tree positions and colors of nodeIdx and its in-order
// predecessor. Payloads stay where they are: handles are stable.
func (tree *Tree[T]) swapNodes(nodeIdx, pred Handle) {
	doAssert(pred != nodeIdx)

	alloc := tree.storage()
	orig := alloc[nodeIdx]
	tmp := alloc[pred]

	doAssert(tmp.right == Nil)

	tree.replaceNode(nodeIdx, pred)

	if tmp.parent == nodeIdx {
		alloc[pred].left = nodeIdx
		alloc[nodeIdx].parent = pred
	} else {
		alloc[pred].left = orig.left
		alloc[orig.left].parent = pred
		alloc[tmp.parent].right = nodeIdx
		alloc[nodeIdx].parent = tmp.parent
	}

	alloc[pred].right = orig.right
	if orig.right != Nil {
		alloc[orig.right].parent = pred
	}

	alloc[nodeIdx].left = tmp.left
	if tmp.left != Nil {
		alloc[tmp.left].parent = nodeIdx
	}

	alloc[nodeIdx].right = Nil
	alloc[pred].color = orig.color
	alloc[nodeIdx].color = tmp.color
}

func (tree *Tree[T]) deleteCase1(nodeIdx Handle, cb Callbacks) {
	alloc := tree.storage()

	for alloc[nodeIdx].parent != Nil {
		if !getColor(sibling(nodeIdx, alloc), alloc) {
			alloc[alloc[nodeIdx].parent].color = red
			alloc[sibling(nodeIdx, alloc)].color = black

			if nodeIdx == alloc[alloc[nodeIdx].parent].left {
				tree.rotateLeft(alloc[nodeIdx].parent, cb)
			} else {
				tree.rotateRight(alloc[nodeIdx].parent, cb)
			}
		}

		if getColor(alloc[nodeIdx].parent, alloc) &&
			getColor(sibling(nodeIdx, alloc), alloc) &&
			getColor(alloc[sibling(nodeIdx, alloc)].left, alloc) &&
			getColor(alloc[sibling(nodeIdx, alloc)].right, alloc) {
			alloc[sibling(nodeIdx, alloc)].color = red
			nodeIdx = alloc[nodeIdx].parent

			continue
		}

		// Case 4.
		if !getColor(alloc[nodeIdx].parent, alloc) &&
			getColor(sibling(nodeIdx, alloc), alloc) &&
			getColor(alloc[sibling(nodeIdx, alloc)].left, alloc) &&
			getColor(alloc[sibling(nodeIdx, alloc)].right, alloc) {
			alloc[sibling(nodeIdx, alloc)].color = red
			alloc[alloc[nodeIdx].parent].color = black
		} else {
			tree.deleteCase5(nodeIdx, cb)
		}

		break
	}
}

func (tree *Tree[T]) deleteCase5(nodeIdx Handle, cb Callbacks) {
	alloc := tree.storage()

	if nodeIdx == alloc[alloc[nodeIdx].parent].left &&
		getColor(sibling(nodeIdx, alloc), alloc) &&
		!getColor(alloc[sibling(nodeIdx, alloc)].left, alloc) &&
		getColor(alloc[sibling(nodeIdx, alloc)].right, alloc) {
		alloc[sibling(nodeIdx, alloc)].color = red
		alloc[alloc[sibling(nodeIdx, alloc)].left].color = black
		tree.rotateRight(sibling(nodeIdx, alloc), cb)
	} else if nodeIdx == alloc[alloc[nodeIdx].parent].right &&
		getColor(sibling(nodeIdx, alloc), alloc) &&
		!getColor(alloc[sibling(nodeIdx, alloc)].right, alloc) &&
		getColor(alloc[sibling(nodeIdx, alloc)].left, alloc) {
		alloc[sibling(nodeIdx, alloc)].color = red
		alloc[alloc[sibling(nodeIdx, alloc)].right].color = black
		tree.rotateLeft(sibling(nodeIdx, alloc), cb)
	}

	// Case 6.
	alloc[sibling(nodeIdx, alloc)].color = getColor(alloc[nodeIdx].parent, alloc)
	alloc[alloc[nodeIdx].parent].color = black

	if nodeIdx == alloc[alloc[nodeIdx].parent].left {
		doAssert(!getColor(alloc[sibling(nodeIdx, alloc)].right, alloc))
		alloc[alloc[sibling(nodeIdx, alloc)].right].color = black
		tree.rotateLeft(alloc[nodeIdx].parent, cb)
	} else {
		doAssert(!getColor(alloc[sibling(nodeIdx, alloc)].left, alloc))
		alloc[alloc[sibling(nodeIdx, alloc)].left].color = black
		tree.rotateRight(alloc[nodeIdx].parent, cb)
	}
}

func (tree *Tree[T]) replaceNode(oldn, newn Handle) {
	alloc := tree.storage()

	if alloc[oldn].parent == Nil {
		tree.root = newn
	} else {
		if oldn == alloc[alloc[oldn].parent].left {
			alloc[alloc[oldn].parent].left = newn
		} else {
			alloc[alloc[oldn].parent].right = newn
		}
	}

	if newn != Nil {
		alloc[newn].parent = alloc[oldn].parent
	}
}

// rotateDirection performs a tree rotation in the specified direction and
// reports it through cb.Rotate(pivot, child).
// IsLeft=true performs left rotation, isLeft=false performs right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
func (tree *Tree[T]) rotateDirection(pivot Handle, isLeft bool, cb Callbacks) {
	alloc := tree.storage()

	// Get the child in the opposite direction of rotation.
	var child Handle
	if isLeft {
		child = alloc[pivot].right
	} else {
		child = alloc[pivot].left
	}

	// Move the inner subtree.
	var innerSubtree Handle
	if isLeft {
		innerSubtree = alloc[child].left
		alloc[pivot].right = innerSubtree
	} else {
		innerSubtree = alloc[child].right
		alloc[pivot].left = innerSubtree
	}

	if innerSubtree != Nil {
		alloc[innerSubtree].parent = pivot
	}

	// Update parent links.
	alloc[child].parent = alloc[pivot].parent

	if alloc[pivot].parent == Nil {
		tree.root = child
	} else {
		if isLeftChild(pivot, alloc) {
			alloc[alloc[pivot].parent].left = child
		} else {
			alloc[alloc[pivot].parent].right = child
		}
	}

	// Complete the rotation.
	if isLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child

	cb.Rotate(pivot, child)
}

func (tree *Tree[T]) rotateLeft(nodeIdx Handle, cb Callbacks) {
	tree.rotateDirection(nodeIdx, true, cb)
}

func (tree *Tree[T]) rotateRight(nodeIdx Handle, cb Callbacks) {
	tree.rotateDirection(nodeIdx, false, cb)
}

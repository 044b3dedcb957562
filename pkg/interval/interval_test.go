package interval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants.
const (
	testLow1    = 1
	testHigh3   = 3
	testLow2    = 2
	testLow4    = 4
	testLow5    = 5
	testHigh6   = 6
	testLow6    = 6
	testHigh7   = 7
	testHigh8   = 8
	testLow9    = 9
	testHigh10  = 10
	testLow30   = 30
	testHigh40  = 40
	testCount64 = 64
)

type span struct {
	low, high Bound
}

func newTestTree(t *testing.T) *Tree {
	t.Helper()

	return NewTree(NewArena())
}

func mustInsert(t *testing.T, tree *Tree, low, high Bound) Handle {
	t.Helper()

	h, err := tree.Arena().Alloc(low, high)
	require.NoError(t, err)

	tree.Insert(h)
	require.NoError(t, tree.Check())

	return h
}

func spansOf(tree *Tree, handles []Handle) []span {
	result := make([]span, 0, len(handles))

	for _, h := range handles {
		nd := tree.Node(h)
		result = append(result, span{nd.Low, nd.High})
	}

	return result
}

func collect(tree *Tree, low, high Bound) []Handle {
	var (
		it     Iterator
		result []Handle
	)

	for h, ok := tree.IterFirst(&it, low, high); ok; h, ok = it.Next() {
		result = append(result, h)
	}

	return result
}

// TestNewTree verifies empty tree creation.
func TestNewTree(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, 0, tree.Height())
	assert.Equal(t, Nil, tree.Root())
	require.NoError(t, tree.Check())

	_, ok := tree.Min()
	assert.False(t, ok)

	_, ok = tree.Max()
	assert.False(t, ok)
}

// TestOverlap_ExampleScenario walks the reference four-interval example.
func TestOverlap_ExampleScenario(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	a := mustInsert(t, tree, testLow1, testHigh3)
	b := mustInsert(t, tree, testLow5, testHigh8)
	c := mustInsert(t, tree, testLow6, testHigh7)
	mustInsert(t, tree, testLow2, testLow2)

	assert.Equal(t, []Handle{b, c}, collect(tree, testLow4, testHigh6))

	found, ok := tree.Find(testLow4, testHigh6)
	require.True(t, ok)
	assert.Contains(t, []Handle{b, c}, found)

	_, ok = tree.Find(testLow9, testHigh10)
	assert.False(t, ok)
	assert.Empty(t, collect(tree, testLow9, testHigh10))

	first, ok := tree.Min()
	require.True(t, ok)
	assert.Equal(t, a, first)

	last, ok := tree.Max()
	require.True(t, ok)
	assert.Equal(t, c, last)
}

// TestFind_EmptyTree verifies queries on an empty tree.
func TestFind_EmptyTree(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)

	_, ok := tree.Find(testLow1, testHigh10)
	assert.False(t, ok)
	assert.False(t, tree.Intersects(testLow1, testHigh10))
	assert.Nil(t, tree.QueryOverlap(testLow1, testHigh10))
}

// TestFind_InvertedQuery verifies that low > high matches nothing.
func TestFind_InvertedQuery(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	mustInsert(t, tree, testLow1, testHigh10)

	_, ok := tree.Find(testHigh6, testLow5)
	assert.False(t, ok)
	assert.Empty(t, collect(tree, testHigh6, testLow5))
}

// TestIterator_IdempotentExhaustion verifies Next after exhaustion.
func TestIterator_IdempotentExhaustion(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	h := mustInsert(t, tree, testLow1, testHigh3)

	var it Iterator

	first, ok := tree.IterFirst(&it, testLow2, testLow2)
	require.True(t, ok)
	assert.Equal(t, h, first)
	assert.Equal(t, h, it.Handle())

	for range 3 {
		next, more := it.Next()
		assert.False(t, more)
		assert.Equal(t, Nil, next)
	}

	var zero Iterator

	_, ok = zero.Next()
	assert.False(t, ok)
}

// TestIterator_ClimbPastNonOverlappingAncestor covers an ancestor that ends
// before the query while its right subtree still overlaps.
func TestIterator_ClimbPastNonOverlappingAncestor(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	root := mustInsert(t, tree, testLow2, testHigh3)
	wide := mustInsert(t, tree, testLow1, testHigh10)
	late := mustInsert(t, tree, testLow4, 9)

	require.Equal(t, root, tree.Root())

	assert.Equal(t, []Handle{wide, late}, collect(tree, testLow5, testHigh6))
}

// TestIterator_RestartsFromScratch verifies a cursor can be reused.
func TestIterator_RestartsFromScratch(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	for low := range Bound(testCount64) {
		mustInsert(t, tree, low, low+testLow2)
	}

	var it Iterator

	tree.IterFirst(&it, testLow30, testHigh40)
	it.Next()

	again, ok := tree.IterFirst(&it, 0, 0)
	require.True(t, ok)
	assert.Equal(t, span{0, testLow2}, spansOf(tree, []Handle{again})[0])
}

// TestQueryPoint_Boundary verifies point queries at interval boundaries.
func TestQueryPoint_Boundary(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	h := mustInsert(t, tree, testLow5, testHigh8)

	assert.Equal(t, []Handle{h}, tree.QueryPoint(testLow5))
	assert.Equal(t, []Handle{h}, tree.QueryPoint(testHigh8))
	assert.Empty(t, tree.QueryPoint(testLow4))
	assert.Empty(t, tree.QueryPoint(testLow9))
}

// TestInsert_ZeroBounds verifies that bound 0 is a regular value.
func TestInsert_ZeroBounds(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	zero := mustInsert(t, tree, 0, 0)
	mustInsert(t, tree, testLow5, testHigh6)

	assert.Equal(t, []Handle{zero}, tree.QueryPoint(0))

	found, ok := tree.Find(0, 0)
	require.True(t, ok)
	assert.Equal(t, zero, found)
}

// TestInsert_Duplicates verifies exact duplicates are kept in insertion order.
func TestInsert_Duplicates(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	first := mustInsert(t, tree, testLow5, testHigh8)
	mustInsert(t, tree, testLow1, testHigh3)
	second := mustInsert(t, tree, testLow5, testHigh8)
	third := mustInsert(t, tree, testLow5, testHigh8)

	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, []Handle{first, second, third}, collect(tree, testLow6, testLow6))
}

// TestInsert_LinkedPanics verifies double insertion is rejected.
func TestInsert_LinkedPanics(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	h := mustInsert(t, tree, testLow1, testHigh3)

	assert.Panics(t, func() { tree.Insert(h) })
	assert.Panics(t, func() { NewTree(tree.Arena()).Insert(h) })
}

// TestRemove_RoundTrip verifies inserting then removing everything empties the tree.
func TestRemove_RoundTrip(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)

	var handles []Handle
	for idx := range Bound(testCount64) {
		handles = append(handles, mustInsert(t, tree, idx%7, idx%7+idx))
	}

	assert.Equal(t, testCount64, tree.Len())
	assert.LessOrEqual(t, tree.Height(), 2*7)

	for _, h := range handles {
		tree.Remove(h)
		require.NoError(t, tree.Check())
		assert.False(t, tree.Arena().Linked(h))
	}

	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, Nil, tree.Root())
	assert.Equal(t, testCount64, tree.Arena().Used())
}

// TestRemove_NotLinkedPanics verifies removal of a foreign node is rejected.
func TestRemove_NotLinkedPanics(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	mustInsert(t, tree, testLow1, testHigh3)

	h, err := tree.Arena().Alloc(testLow5, testHigh8)
	require.NoError(t, err)

	assert.Panics(t, func() { tree.Remove(h) })
}

// TestClear verifies Clear drops the root without touching nodes.
func TestClear(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	a := mustInsert(t, tree, testLow1, testHigh3)
	b := mustInsert(t, tree, testLow5, testHigh8)

	var all []Handle
	for h := range tree.All() {
		all = append(all, h)
	}

	tree.Clear()

	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, collect(tree, 0, testHigh10))
	assert.Equal(t, span{testLow1, testHigh3}, spansOf(tree, []Handle{a})[0])

	for _, h := range all {
		tree.Arena().Reset(h)
		tree.Arena().Free(h)
	}

	assert.Equal(t, 0, tree.Arena().Used())
	assert.NotEqual(t, a, b)
}

// TestStatistics_RootCoversTree verifies root statistics after inserts.
func TestStatistics_RootCoversTree(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	mustInsert(t, tree, testLow5, testHigh6)
	mustInsert(t, tree, testLow1, testHigh40)
	mustInsert(t, tree, testLow9, testHigh10)

	root := tree.Node(tree.Root())
	assert.Equal(t, Bound(testHigh40), root.Max())
	assert.Equal(t, 3, root.Size())
	assert.Equal(t, 2, root.Height())
}

// TestStatistics_AscendingInserts verifies the stored heights after every
// rebalancing insert, including nodes above the rotated subtree.
func TestStatistics_AscendingInserts(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)

	for low := range Bound(testCount64) {
		mustInsert(t, tree, low, low)
	}

	assert.Equal(t, testCount64, tree.Len())
	assert.LessOrEqual(t, tree.Height(), 12)

	var handles []Handle
	for h := range tree.All() {
		handles = append(handles, h)
	}

	for _, h := range handles[:testCount64/2] {
		tree.Remove(h)
		require.NoError(t, tree.Check())
	}

	assert.Equal(t, testCount64/2, tree.Len())
}

// TestArena_InvalidBounds verifies bound validation on allocation.
func TestArena_InvalidBounds(t *testing.T) {
	t.Parallel()

	arena := NewArena()

	_, err := arena.Alloc(testHigh10, testLow1)
	require.ErrorIs(t, err, ErrInvalidBounds)

	h, err := arena.Alloc(testLow1, testHigh10)
	require.NoError(t, err)
	require.ErrorIs(t, arena.SetBounds(h, testHigh10, testLow1), ErrInvalidBounds)
	require.NoError(t, arena.SetBounds(h, testLow2, testHigh3))
	assert.Equal(t, Bound(testLow2), arena.Node(h).Low)
}

// TestArena_SetBoundsLinked verifies linked nodes cannot be re-keyed.
func TestArena_SetBoundsLinked(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	h := mustInsert(t, tree, testLow1, testHigh3)

	require.ErrorIs(t, tree.Arena().SetBounds(h, testLow5, testHigh8), ErrLinked)
}

// TestCheck_DetectsCorruption verifies the checker reports stale statistics.
func TestCheck_DetectsCorruption(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	for low := range Bound(8) {
		mustInsert(t, tree, low, low+1)
	}

	root := tree.Root()
	nd := tree.arena.nodes.Value(root)

	nd.max++
	require.ErrorIs(t, tree.Check(), ErrInvariant)
	nd.max--

	nd.size++
	require.ErrorIs(t, tree.Check(), ErrInvariant)
	nd.size--

	nd.height++
	require.ErrorIs(t, tree.Check(), ErrInvariant)
	nd.height--

	require.NoError(t, tree.Check())
}

// TestArena_HibernateBoot verifies a tree survives arena hibernation.
func TestArena_HibernateBoot(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	for low := range Bound(testCount64) {
		mustInsert(t, tree, low*2, low*2+testHigh3)
	}

	want := collect(tree, testLow30, testHigh40)

	require.NoError(t, tree.Arena().Hibernate())
	assert.Panics(t, func() { tree.Find(testLow30, testHigh40) })
	require.NoError(t, tree.Arena().Boot())

	assert.Equal(t, want, collect(tree, testLow30, testHigh40))
	require.NoError(t, tree.Check())
}

package rbtree

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sync"

	"github.com/Sumatoshi-tech/ivtree/pkg/safeconv"
)

// ErrHibernated is returned when an operation requires a booted arena.
var ErrHibernated = errors.New("arena is hibernated")

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// linkColumns is the number of uint32 columns used for structural fields
// (parent, left, right, flags) when an arena hibernates.
const linkColumns = 4

// Flag bits packed into the flags column.
const (
	flagBlack  = 1 << 0
	flagLinked = 1 << 1
)

// Handle addresses a node inside an Arena. The zero value is Nil.
type Handle uint32

// Nil is the reserved handle meaning "no node".
const Nil Handle = 0

// limitHandle is reserved as the iterator position before the first node.
const limitHandle = Handle(math.MaxUint32)

// Packer splits a node payload into fixed-width uint32 columns so that a
// hibernating arena can compress payloads column by column.
type Packer[T any] interface {
	// Width is the number of columns produced per payload.
	Width() int
	// Pack writes the payload into row, which has exactly Width() cells.
	Pack(value *T, row []uint32)
	// Unpack restores the payload from row.
	Unpack(row []uint32, value *T)
}

type node[T any] struct {
	value               T
	parent, left, right Handle
	color               bool // Black or red.
	linked              bool
}

// Arena is contiguous storage for tree nodes addressed by Handle. The arena
// owns node memory; trees only link and unlink nodes that live in it.
// Several trees may share one arena.
type Arena[T any] struct {
	storage              []node[T]
	gaps                 map[Handle]bool
	hibernatedData       []column
	HibernationThreshold int
	hibernatedStorageLen int
	hibernatedGapsLen    int
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{
		storage: []node[T]{},
		gaps:    map[Handle]bool{},
	}
}

// Size returns the currently allocated size, including the reserved slot and gaps.
func (arena *Arena[T]) Size() int {
	return len(arena.storage)
}

// Used returns the number of live nodes in the arena.
func (arena *Arena[T]) Used() int {
	arena.mustBeBooted()

	if len(arena.storage) == 0 {
		return 0
	}

	return len(arena.storage) - len(arena.gaps) - 1
}

// Hibernated reports whether the arena memory is currently compressed.
func (arena *Arena[T]) Hibernated() bool {
	return arena.storage == nil
}

// Alloc stores value in a fresh, unlinked node and returns its handle.
func (arena *Arena[T]) Alloc(value T) Handle {
	arena.mustBeBooted()

	if len(arena.gaps) > 0 {
		var key Handle

		for key = range arena.gaps {
			break
		}

		delete(arena.gaps, key)
		arena.storage[key] = node[T]{value: value}

		return key
	}

	nodeLen := len(arena.storage)
	if nodeLen == 0 {
		// Zero is reserved.
		arena.storage = append(arena.storage, node[T]{})
		nodeLen = 1
	}

	if nodeLen == int(limitHandle)-1 {
		// [math.MaxUint32] is reserved.
		panic("the arena has reached the maximum number of uint32 handles")
	}

	arena.storage = append(arena.storage, node[T]{value: value})

	return Handle(safeconv.MustIntToUint32(nodeLen))
}

// Free releases an unlinked node so that its slot can be reused.
func (arena *Arena[T]) Free(nodeIdx Handle) {
	arena.mustBeBooted()

	if nodeIdx == Nil {
		panic("node #0 is special and cannot be deallocated")
	}

	doAssert(int(nodeIdx) < len(arena.storage))
	doAssert(!arena.storage[nodeIdx].linked)

	_, exists := arena.gaps[nodeIdx]
	doAssert(!exists)

	arena.storage[nodeIdx] = node[T]{}
	arena.gaps[nodeIdx] = true
}

// Reset clears the structural fields of a node so that it can be linked
// again. Use it for nodes left behind by Tree.Clear.
func (arena *Arena[T]) Reset(nodeIdx Handle) {
	nd := arena.at(nodeIdx)
	nd.parent, nd.left, nd.right = Nil, Nil, Nil
	nd.color = red
	nd.linked = false
}

// Value returns a pointer to the payload of a node. The pointer is valid
// until the next Alloc, Hibernate or Boot.
func (arena *Arena[T]) Value(nodeIdx Handle) *T {
	return &arena.at(nodeIdx).value
}

// Parent returns the parent handle of a node.
func (arena *Arena[T]) Parent(nodeIdx Handle) Handle {
	return arena.at(nodeIdx).parent
}

// Left returns the left child handle of a node.
func (arena *Arena[T]) Left(nodeIdx Handle) Handle {
	return arena.at(nodeIdx).left
}

// Right returns the right child handle of a node.
func (arena *Arena[T]) Right(nodeIdx Handle) Handle {
	return arena.at(nodeIdx).right
}

// Black reports whether the node is colored black.
func (arena *Arena[T]) Black(nodeIdx Handle) bool {
	return arena.at(nodeIdx).color == black
}

// Linked reports whether the node is currently linked into a tree.
func (arena *Arena[T]) Linked(nodeIdx Handle) bool {
	return arena.at(nodeIdx).linked
}

// Clone copies the arena; handles remain valid in the copy.
func (arena *Arena[T]) Clone() *Arena[T] {
	arena.mustBeBooted()

	clone := &Arena[T]{
		HibernationThreshold: arena.HibernationThreshold,
		storage:              make([]node[T], len(arena.storage), cap(arena.storage)),
		gaps:                 make(map[Handle]bool, len(arena.gaps)),
	}
	copy(clone.storage, arena.storage)
	maps.Copy(clone.gaps, arena.gaps)

	return clone
}

// Hibernate compresses the arena memory. Arenas smaller than
// HibernationThreshold are left untouched. Calling Hibernate twice panics.
func (arena *Arena[T]) Hibernate(packer Packer[T]) error {
	if arena.hibernatedStorageLen > 0 || arena.hibernatedData != nil {
		panic("cannot hibernate an already hibernated arena")
	}

	if len(arena.storage) < arena.HibernationThreshold {
		return nil
	}

	arena.hibernatedStorageLen = len(arena.storage)
	if arena.hibernatedStorageLen == 0 {
		arena.storage = nil
		arena.gaps = nil

		return nil
	}

	width := linkColumns + packer.Width()
	buffers := make([][]uint32, width)

	for idx := range buffers {
		buffers[idx] = make([]uint32, len(arena.storage))
	}

	row := make([]uint32, packer.Width())

	// We deinterleave to achieve a better compression ratio.
	for idx := range arena.storage {
		nd := &arena.storage[idx]
		buffers[0][idx] = uint32(nd.parent)
		buffers[1][idx] = uint32(nd.left)
		buffers[2][idx] = uint32(nd.right)
		buffers[3][idx] = packFlags(nd)

		packer.Pack(&nd.value, row)

		for col, cell := range row {
			buffers[linkColumns+col][idx] = cell
		}
	}

	gapsBuffer := make([]uint32, 0, len(arena.gaps))
	for key := range arena.gaps {
		gapsBuffer = append(gapsBuffer, uint32(key))
	}

	buffers = append(buffers, gapsBuffer)
	hibernated := make([]column, len(buffers))
	errs := make([]error, len(buffers))

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers))

	for idx, buffer := range buffers {
		go func(bufIdx int, buf []uint32) {
			defer wg.Done()

			hibernated[bufIdx], errs[bufIdx] = compressColumn(buf)
		}(idx, buffer)
	}

	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		arena.hibernatedStorageLen = 0

		return fmt.Errorf("hibernate arena: %w", err)
	}

	arena.hibernatedData = hibernated
	arena.hibernatedGapsLen = len(gapsBuffer)
	arena.storage = nil
	arena.gaps = nil

	return nil
}

// Boot performs the opposite of Hibernate - decompresses and restores the arena memory.
func (arena *Arena[T]) Boot(packer Packer[T]) error {
	if arena.storage == nil && arena.hibernatedStorageLen == 0 {
		arena.storage = []node[T]{}
		arena.gaps = map[Handle]bool{}

		return nil
	}

	if arena.hibernatedStorageLen == 0 {
		// Not hibernated.
		return nil
	}

	width := linkColumns + packer.Width()
	doAssert(len(arena.hibernatedData) == width+1)

	buffers := make([][]uint32, width+1)
	errs := make([]error, width+1)

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers))

	for idx := range buffers {
		go func(bufIdx int) {
			defer wg.Done()

			count := arena.hibernatedStorageLen
			if bufIdx == width {
				count = arena.hibernatedGapsLen
			}

			buffers[bufIdx] = make([]uint32, count)
			errs[bufIdx] = decompressColumn(arena.hibernatedData[bufIdx], buffers[bufIdx])
		}(idx)
	}

	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		return fmt.Errorf("boot arena: %w", err)
	}

	capSize := (arena.hibernatedStorageLen * growCapacityNumerator) / growCapacityDenominator
	storage := make([]node[T], arena.hibernatedStorageLen, capSize)
	row := make([]uint32, packer.Width())

	for idx := range storage {
		nd := &storage[idx]
		nd.parent = Handle(buffers[0][idx])
		nd.left = Handle(buffers[1][idx])
		nd.right = Handle(buffers[2][idx])
		unpackFlags(buffers[3][idx], nd)

		for col := range row {
			row[col] = buffers[linkColumns+col][idx]
		}

		packer.Unpack(row, &nd.value)
	}

	gaps := make(map[Handle]bool, arena.hibernatedGapsLen)
	for _, key := range buffers[width] {
		gaps[Handle(key)] = true
	}

	arena.storage = storage
	arena.gaps = gaps
	arena.hibernatedData = nil
	arena.hibernatedStorageLen = 0
	arena.hibernatedGapsLen = 0

	return nil
}

func (arena *Arena[T]) mustBeBooted() {
	if arena.storage == nil {
		panic("hibernated arenas cannot be used")
	}
}

func (arena *Arena[T]) at(nodeIdx Handle) *node[T] {
	arena.mustBeBooted()
	doAssert(nodeIdx != Nil && int(nodeIdx) < len(arena.storage))

	return &arena.storage[nodeIdx]
}

func packFlags[T any](nd *node[T]) uint32 {
	var flags uint32

	if nd.color == black {
		flags |= flagBlack
	}

	if nd.linked {
		flags |= flagLinked
	}

	return flags
}

func unpackFlags[T any](flags uint32, nd *node[T]) {
	nd.color = flags&flagBlack != 0
	nd.linked = flags&flagLinked != 0
}

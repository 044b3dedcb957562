// Package rbtree provides an arena-backed red-black tree that exposes its
// structural changes through callbacks, so that callers can maintain derived
// per-node statistics. Arenas can be hibernated with LZ4 compression and
// sharded across several allocators.
package rbtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// ErrCorruptColumn is returned when a compressed column cannot be restored.
var ErrCorruptColumn = errors.New("corrupt compressed column")

// column is one compressed hibernation buffer. LZ4 refuses input it cannot
// shrink, such columns are kept raw.
type column struct {
	data []byte
	raw  bool
}

// CompressUInt32Slice compresses a slice of uint32-s with LZ4. It returns nil
// when the data is empty or incompressible.
func CompressUInt32Slice(data []uint32) []byte {
	col, err := compressColumn(data)
	if err != nil || col.raw {
		return nil
	}

	return col.data
}

// DecompressUInt32Slice decompresses a slice of uint32-s previously compressed with LZ4.
// `result` must be preallocated.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	return decompressColumn(column{data: data}, result)
}

func compressColumn(data []uint32) (column, error) {
	if len(data) == 0 {
		return column{raw: true}, nil
	}

	buf := new(bytes.Buffer)
	buf.Grow(len(data) * uint32ByteSize)

	err := binary.Write(buf, binary.LittleEndian, data)
	if err != nil {
		return column{}, fmt.Errorf("encode column: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(buf.Len()))

	written, err := lz4.CompressBlock(buf.Bytes(), compressed, nil)
	if err != nil {
		return column{}, fmt.Errorf("compress column: %w", err)
	}

	if written == 0 {
		return column{data: buf.Bytes(), raw: true}, nil
	}

	return column{data: compressed[:written]}, nil
}

func decompressColumn(col column, result []uint32) error {
	if len(result) == 0 {
		return nil
	}

	decompressed := col.data

	if !col.raw {
		decompressed = make([]byte, len(result)*uint32ByteSize)

		read, err := lz4.UncompressBlock(col.data, decompressed)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptColumn, err)
		}

		if read != len(decompressed) {
			return fmt.Errorf("%w: %d bytes instead of %d", ErrCorruptColumn, read, len(decompressed))
		}
	}

	err := binary.Read(bytes.NewReader(decompressed), binary.LittleEndian, result)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptColumn, err)
	}

	return nil
}

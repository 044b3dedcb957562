package rbtree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressUInt32Slice(t *testing.T) {
	t.Parallel()

	data := make([]uint32, 1000)
	for idx := range data {
		data[idx] = 7
	}

	packed := CompressUInt32Slice(data)

	// Check that compression actually reduced the size.
	require.NotEmpty(t, packed, "Compression should produce some output")
	assert.Less(t, len(packed), len(data)*uint32ByteSize)

	restored := make([]uint32, len(data))
	require.NoError(t, DecompressUInt32Slice(packed, restored))
	assert.Equal(t, data, restored)
}

func TestCompressColumn_Incompressible(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))

	data := make([]uint32, 4)
	for idx := range data {
		data[idx] = rng.Uint32()
	}

	col, err := compressColumn(data)
	require.NoError(t, err)

	restored := make([]uint32, len(data))
	require.NoError(t, decompressColumn(col, restored))
	assert.Equal(t, data, restored)
}

func TestCompressColumn_Empty(t *testing.T) {
	t.Parallel()

	col, err := compressColumn(nil)
	require.NoError(t, err)
	assert.True(t, col.raw)
	assert.NoError(t, decompressColumn(col, nil))
}

func TestDecompressColumn_Corrupt(t *testing.T) {
	t.Parallel()

	data := make([]uint32, 256)
	for idx := range data {
		data[idx] = uint32(idx % 3)
	}

	col, err := compressColumn(data)
	require.NoError(t, err)
	require.False(t, col.raw)

	restored := make([]uint32, len(data)*2)
	assert.ErrorIs(t, decompressColumn(col, restored), ErrCorruptColumn)
}

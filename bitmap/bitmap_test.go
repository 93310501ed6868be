package bitmap_test

import (
	"testing"

	"github.com/abdelsfs/sfs/bitmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetClear(t *testing.T) {
	b := bitmap.New(10, bitmap.Word32)

	assert.Equal(t, 0, b.Get(3), "bit should start clear")

	b.Set(3)
	assert.Equal(t, 1, b.Get(3), "bit should be set")

	b.Clear(3)
	assert.Equal(t, 0, b.Get(3), "bit should be clear again")
}

func TestFirstFreeOnEmptyBitmap(t *testing.T) {
	b := bitmap.New(16, bitmap.Word32)
	index, ok := b.FirstFree()
	require.True(t, ok)
	assert.Equal(t, 0, index)
}

func TestFirstFreeOnFullBitmap(t *testing.T) {
	b := bitmap.New(8, bitmap.Word32)
	for i := 0; i < 8; i++ {
		b.Set(i)
	}

	_, ok := b.FirstFree()
	assert.False(t, ok, "a fully-set bitmap has no free bit")
}

func TestFirstFreeSkipsReservedBits(t *testing.T) {
	b := bitmap.New(8, bitmap.Word32)
	b.Set(0)
	b.Set(1)

	index, ok := b.FirstFree()
	require.True(t, ok)
	assert.Equal(t, 2, index)
}

func TestBoundaryAtExactWordMultiple(t *testing.T) {
	// 64 bits is exactly two 32-bit words, and exactly one 64-bit word.
	for _, wordSize := range []bitmap.WordSize{bitmap.Word32, bitmap.Word64} {
		b := bitmap.New(64, wordSize)
		for i := 0; i < 64; i++ {
			b.Set(i)
			assert.Equal(t, 1, b.Get(i))
			b.Clear(i)
			assert.Equal(t, 0, b.Get(i))
		}
	}
}

func TestBoundaryNotAtExactWordMultiple(t *testing.T) {
	// 70 bits is not a multiple of either word size.
	for _, wordSize := range []bitmap.WordSize{bitmap.Word32, bitmap.Word64} {
		b := bitmap.New(70, wordSize)
		for i := 0; i < 70; i++ {
			b.Set(i)
			assert.Equal(t, 1, b.Get(i))
			b.Clear(i)
			assert.Equal(t, 0, b.Get(i))
		}
	}
}

func TestWordRoundTrip(t *testing.T) {
	b := bitmap.New(64, bitmap.Word32)
	b.SetWord(0, 0xDEADBEEF)
	b.SetWord(1, 0x00C0FFEE)

	assert.Equal(t, uint64(0xDEADBEEF), b.Word(0))
	assert.Equal(t, uint64(0x00C0FFEE), b.Word(1))

	// The individual bits within the word must match a big-endian reading.
	assert.Equal(t, 1, b.Get(0), "MSB of word 0 should be set for 0xDEADBEEF")
}

func TestNumWords(t *testing.T) {
	b := bitmap.New(NumDataBlocksForTest, bitmap.Word32)
	assert.Equal(t, (NumDataBlocksForTest+31)/32, b.NumWords())
}

const NumDataBlocksForTest = 32637

// Package bitmap implements a fixed-length packed bit array over words of a
// configurable size (32 or 64 bits), grounded on the teacher's own allocator
// (github.com/dargueta/disko drivers/common/allocatormap.go) but widened to
// expose the underlying words directly, since the on-disk super block format
// (spec.md §4.3) needs to serialize the bitmap word by word.
package bitmap

import (
	"fmt"

	gobitmap "github.com/boljen/go-bitmap"
)

// WordSize is the width, in bits, of one serialized bitmap word.
type WordSize int

const (
	// Word32 packs the bitmap into 32-bit words on disk.
	Word32 WordSize = 32
	// Word64 packs the bitmap into 64-bit words on disk.
	Word64 WordSize = 64
)

// Bitmap is a fixed-length packed bit array with get/set/clear and a
// first-free scan. Indices are caller-checked: 0 <= i < Bits() is the
// caller's contract, exactly as spec.md §4.1 describes.
type Bitmap struct {
	bits     int
	wordSize WordSize
	data     gobitmap.Bitmap
}

// New allocates a bitmap of the given bit length, cleared to all zero.
func New(bits int, wordSize WordSize) *Bitmap {
	if wordSize != Word32 && wordSize != Word64 {
		panic(fmt.Sprintf("bitmap: unsupported word size %d", wordSize))
	}
	// go-bitmap rounds up to a whole number of bytes; round up further here
	// to a whole number of words so partition-wise (de)serialization never
	// reads or writes past the backing array.
	wordBits := int(wordSize)
	roundedBits := ((bits + wordBits - 1) / wordBits) * wordBits
	return &Bitmap{
		bits:     bits,
		wordSize: wordSize,
		data:     gobitmap.New(roundedBits),
	}
}

// Bits returns the number of addressable bit positions.
func (b *Bitmap) Bits() int {
	return b.bits
}

// WordSize returns the configured word width.
func (b *Bitmap) WordSize() WordSize {
	return b.wordSize
}

// Set reserves bit i (sets it to 1).
func (b *Bitmap) Set(i int) {
	b.data.Set(i, true)
}

// Clear frees bit i (sets it to 0).
func (b *Bitmap) Clear(i int) {
	b.data.Set(i, false)
}

// Get returns 1 if bit i is reserved, 0 otherwise.
func (b *Bitmap) Get(i int) int {
	if b.data.Get(i) {
		return 1
	}
	return 0
}

// FirstFree performs a linear scan and returns the lowest index whose bit is
// 0, and true. If every bit in [0, Bits()) is set, it returns (0, false).
func (b *Bitmap) FirstFree() (int, bool) {
	for i := 0; i < b.bits; i++ {
		if !b.data.Get(i) {
			return i, true
		}
	}
	return 0, false
}

// PopCount returns the number of set bits in [0, Bits()).
func (b *Bitmap) PopCount() int {
	count := 0
	for i := 0; i < b.bits; i++ {
		if b.data.Get(i) {
			count++
		}
	}
	return count
}

// NumWords returns the number of on-disk words needed to store this bitmap,
// i.e. ceil(Bits() / WordSize()).
func (b *Bitmap) NumWords() int {
	wordBits := int(b.wordSize)
	return (b.bits + wordBits - 1) / wordBits
}

// Word returns the big-endian value of word index i, where word i covers
// bit positions [i*WordSize(), (i+1)*WordSize()). Bits beyond the backing
// array's length within the final word read as 0.
//
// This walks bit-by-bit through the underlying go-bitmap rather than
// slicing its raw byte buffer directly, since go-bitmap only documents
// Get/Set as its stable per-bit contract.
func (b *Bitmap) Word(i int) uint64 {
	wordBits := int(b.wordSize)
	var value uint64
	for offset := 0; offset < wordBits; offset++ {
		bitIndex := i*wordBits + offset
		if b.data.Get(bitIndex) {
			value |= 1 << uint(wordBits-1-offset)
		}
	}
	return value
}

// SetWord overwrites word index i with value, using the same big-endian
// bit ordering Word reads back.
func (b *Bitmap) SetWord(i int, value uint64) {
	wordBits := int(b.wordSize)
	for offset := 0; offset < wordBits; offset++ {
		bitIndex := i*wordBits + offset
		bit := (value >> uint(wordBits-1-offset)) & 1
		b.data.Set(bitIndex, bit != 0)
	}
}

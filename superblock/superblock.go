// Package superblock implements spec.md §3/§4.3: the super block that holds
// the free-block and free-inode bitmaps and counters, serialized into block
// 0. Grounded on original_source/src/sfs.c's sfs_init (which builds or loads
// this exact structure at mount) and original_source/src/helper.c's
// flush_super, translated to the bitmap/bytebuffer packages above.
package superblock

import (
	"fmt"

	"github.com/abdelsfs/sfs/bitmap"
	"github.com/abdelsfs/sfs/bytebuffer"
)

// SuperBlock holds the free-block and free-inode bitmaps and counters.
// Invariants (spec.md §3): NumFreeBlocks == zeros in BlockBitmap,
// NumFreeInodes == zeros in InodeBitmap, and the root inode's bit (index
// RootInodeID) is always 1.
type SuperBlock struct {
	NumFreeBlocks uint32
	NumFreeInodes uint8
	BlockBitmap   *bitmap.Bitmap
	InodeBitmap   *bitmap.Bitmap
}

// New creates a fresh super block for an empty image: every data block and
// inode is free.
func New(numDataBlocks, numInodeBlocks int) *SuperBlock {
	return &SuperBlock{
		NumFreeBlocks: uint32(numDataBlocks),
		NumFreeInodes: uint8(numInodeBlocks),
		BlockBitmap:   bitmap.New(numDataBlocks, bitmap.Word32),
		InodeBitmap:   bitmap.New(numInodeBlocks, bitmap.Word32),
	}
}

// RequiredBytes returns the number of bytes Serialize needs to hold the
// counters plus both bitmaps for a geometry of numDataBlocks data blocks and
// numInodeBlocks inodes, framed the way Serialize lays them out: 4 (free
// blocks) + 1 (free inodes) + 4 (block partition count) + 4*block partitions
// + 4 (inode partition count) + 4*inode partitions.
//
// Geometry.BlockSize must be chosen so this never exceeds one block;
// Serialize enforces that at runtime rather than silently truncating (New
// does not check it).
func RequiredBytes(numDataBlocks, numInodeBlocks int) int {
	blockPartitions := (numDataBlocks + 31) / 32
	inodePartitions := (numInodeBlocks + 31) / 32
	return 4 + 1 + 4 + 4*blockPartitions + 4 + 4*inodePartitions
}

// Serialize writes the super block into a BlockSize-sized buffer, in the
// layout spec.md §4.3 describes: num_free_blocks:u32, num_free_inodes:u8,
// block_partitions:u32, then that many u32 words of the block bitmap,
// inode_partitions:u32, then that many u32 words of the inode bitmap.
//
// This implementation resolves the §4.3/§9 open question by writing exactly
// `partitions` words, iterating [0, partitions), not [0, partitions] as the
// original C source does; Deserialize reads back the same convention.
//
// blockSize must be at least RequiredBytes(sb.BlockBitmap.Bits(),
// sb.InodeBitmap.Bits()); Serialize panics otherwise rather than letting the
// writer overrun the buffer mid-write; see DESIGN.md for why DefaultGeometry
// needed a larger BlockSize to satisfy this.
func (sb *SuperBlock) Serialize(blockSize int) []byte {
	needed := RequiredBytes(sb.BlockBitmap.Bits(), sb.InodeBitmap.Bits())
	if needed > blockSize {
		panic(fmt.Sprintf(
			"superblock: geometry needs %d bytes to persist but BlockSize is only %d; "+
				"grow BlockSize or shrink NumDataBlocks/NumInodeBlocks", needed, blockSize))
	}

	buf := make([]byte, blockSize)
	w := bytebuffer.NewWriter(buf)

	w.WriteU32(sb.NumFreeBlocks)
	w.WriteU8(sb.NumFreeInodes)

	blockPartitions := sb.BlockBitmap.NumWords()
	w.WriteU32(uint32(blockPartitions))
	for i := 0; i < blockPartitions; i++ {
		w.WriteU32(uint32(sb.BlockBitmap.Word(i)))
	}

	inodePartitions := sb.InodeBitmap.NumWords()
	w.WriteU32(uint32(inodePartitions))
	for i := 0; i < inodePartitions; i++ {
		w.WriteU32(uint32(sb.InodeBitmap.Word(i)))
	}

	return buf
}

// Deserialize reads a super block back out of a block previously produced by
// Serialize. numDataBlocks and numInodeBlocks must match the geometry the
// image was formatted with; they size the bitmaps before the words are
// poured into them.
func Deserialize(buf []byte, numDataBlocks, numInodeBlocks int) *SuperBlock {
	r := bytebuffer.NewReader(buf)

	sb := &SuperBlock{
		BlockBitmap: bitmap.New(numDataBlocks, bitmap.Word32),
		InodeBitmap: bitmap.New(numInodeBlocks, bitmap.Word32),
	}

	sb.NumFreeBlocks = r.ReadU32()
	sb.NumFreeInodes = r.ReadU8()

	blockPartitions := int(r.ReadU32())
	for i := 0; i < blockPartitions; i++ {
		sb.BlockBitmap.SetWord(i, uint64(r.ReadU32()))
	}

	inodePartitions := int(r.ReadU32())
	for i := 0; i < inodePartitions; i++ {
		sb.InodeBitmap.SetWord(i, uint64(r.ReadU32()))
	}

	return sb
}

// IsEmpty reports whether buf looks like an all-zero block, i.e. a mount
// against a freshly-created image that has never had a super block written
// to it (spec.md §3 Lifecycle: "created at mount if block 0 is empty").
func IsEmpty(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

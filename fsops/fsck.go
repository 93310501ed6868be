package fsops

import (
	"fmt"

	"github.com/abdelsfs/sfs"
	"github.com/abdelsfs/sfs/inode"
	"github.com/hashicorp/go-multierror"
)

// Fsck checks the five testable invariants of spec.md §8 against the
// mounted state, accumulating every violation found (rather than stopping
// at the first) into one error via github.com/hashicorp/go-multierror,
// mirroring the teacher's use of that library for aggregate validation
// failures. Returns nil if every invariant holds.
func (ctx *MountContext) Fsck() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	var result *multierror.Error

	numDataBlocks := int(ctx.geometry.NumDataBlocks())
	numInodeBlocks := int(ctx.geometry.NumInodeBlocks)

	// 1. num_free_blocks == NUM_DATA_BLOCKS - popcount(block_bitmap).
	if want := uint32(numDataBlocks - ctx.sb.BlockBitmap.PopCount()); ctx.sb.NumFreeBlocks != want {
		result = multierror.Append(result, fmt.Errorf(
			"num_free_blocks is %d, want %d (popcount of block bitmap)", ctx.sb.NumFreeBlocks, want))
	}

	// 2. num_free_inodes == NUM_INODE_BLOCKS - popcount(inode_bitmap).
	if want := uint8(numInodeBlocks - ctx.sb.InodeBitmap.PopCount()); ctx.sb.NumFreeInodes != want {
		result = multierror.Append(result, fmt.Errorf(
			"num_free_inodes is %d, want %d (popcount of inode bitmap)", ctx.sb.NumFreeInodes, want))
	}

	// 3. Root inode bit is always set; root's mode has directory type bit.
	root := ctx.table.Get(sfs.RootInodeID)
	if !inode.IsReserved(root, ctx.sb) {
		result = multierror.Append(result, fmt.Errorf("root inode's bit is not set in the inode bitmap"))
	}
	if !sfs.IsDir(root.Mode) {
		result = multierror.Append(result, fmt.Errorf("root inode's mode lacks the directory type bit"))
	}

	for id, n := range ctx.table.Nodes {
		if !inode.IsReserved(n, ctx.sb) {
			continue
		}

		// 4. For every inode reserved in the bitmap, its slot has id equal to
		// its index.
		if n.ID != uint64(id) {
			result = multierror.Append(result, fmt.Errorf(
				"inode slot %d holds an inode with id %d", id, n.ID))
		}

		// 5. For every non-(-1) block link in any reserved inode, the
		// corresponding block bitmap bit is set, and the block number lies in
		// [DataBlockStart, NumTotalBlocks).
		for slot, link := range n.BlockLinks {
			if link == sfs.UnusedBlockLink {
				continue
			}
			if int(link) < sfs.DataBlockStart || int(link) >= sfs.NumTotalBlocks {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d slot %d links out-of-range block %d", id, slot, link))
				continue
			}
			position := int(link) - sfs.DataBlockStart
			if ctx.sb.BlockBitmap.Get(position) == 0 {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d slot %d links block %d whose bitmap bit is clear", id, slot, link))
			}
		}
	}

	return result.ErrorOrNil()
}

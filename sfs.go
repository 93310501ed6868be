// Package sfs implements the core of a simple, single-image, POSIX-like file
// system: the on-disk layout, block allocator, inode table, directory graph,
// and path resolver a kernel-bridge (FUSE or otherwise) would sit on top of.
// The bridge itself, mount handshake, and CLI are out of scope; see
// sub-packages bitmap, bytebuffer, blockdev, superblock, inode, directory,
// and fsops for the pieces, and cmd/sfs for the entry point contract.
package sfs

// BlockSize is the fixed size, in bytes, of every block on the device.
//
// 512 (the value spec.md §3 states) is too small to hold the super block at
// DefaultGeometry: the free-block bitmap alone needs one bit per data block,
// and AllocationBytes/512 data blocks don't fit their own bitmap in a single
// 512-byte block (see superblock.RequiredBytes and DESIGN.md). 4096 keeps
// AllocationBytes and NumInodeBlocks at their stated defaults while giving
// the super block enough room in block 0.
const BlockSize = 4096

// AllocationBytes is the total size of a disk image using DefaultGeometry.
const AllocationBytes = 16777216

// NumInodeBlocks is the number of inodes (and inode blocks) a disk image
// using DefaultGeometry has.
const NumInodeBlocks = 128

// NumTotalBlocks is the total number of fixed-size blocks in the image.
const NumTotalBlocks = AllocationBytes / BlockSize

// NumDataBlocks is the number of blocks left over for file and directory
// payloads once block 0 (super block) and the inode table are accounted for.
const NumDataBlocks = NumTotalBlocks - NumInodeBlocks - 1

// SuperBlockIndex is the block holding the super block.
const SuperBlockIndex = 0

// InodeBlockStart is the block number of inode 0; inode i lives at block
// InodeBlockStart+i.
const InodeBlockStart = 1

// DataBlockStart is the first block number available for file/directory data.
const DataBlockStart = InodeBlockStart + NumInodeBlocks

// RootInodeID is the reserved inode number of "/".
const RootInodeID = 0

// NumBlockLinks is the number of direct block-pointer slots an inode owns.
const NumBlockLinks = 200

// UnusedBlockLink marks a block-link slot as unused ("none").
const UnusedBlockLink = -1

// MaxFileSize is the capacity of NumBlockLinks direct blocks of BlockSize
// bytes each. fsops keeps slot 0 for directory-graph linkage, so file content
// there is limited to (NumBlockLinks-1)*BlockSize bytes.
const MaxFileSize = NumBlockLinks * BlockSize

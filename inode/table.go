package inode

import (
	"github.com/abdelsfs/sfs"
	"github.com/abdelsfs/sfs/blockdev"
	"github.com/abdelsfs/sfs/superblock"
)

// Table is the array of inodes materialized at mount (spec.md §3 Lifecycle:
// "all inode slots materialized at mount").
type Table struct {
	Nodes []*Inode
}

// Mount loads or initializes every inode slot. Slot id is deserialized from
// block InodeBlockStart+id if that block holds data (non-zero bytes);
// otherwise it's initialized as an unlinked regular file with default
// permissions and flushed back, exactly as spec.md §3 describes. The root
// inode is additionally reserved and given one data block.
func Mount(dev blockdev.Device, sb *superblock.SuperBlock, numInodeBlocks int) (*Table, sfs.DriverError) {
	nodes := make([]*Inode, numInodeBlocks)

	for id := 0; id < numInodeBlocks; id++ {
		buf := make([]byte, sfs.BlockSize)
		count, err := dev.ReadBlock(uint32(sfs.InodeBlockStart+id), buf)
		if err != nil || count <= 0 {
			return nil, sfs.ErrIO.WithMessage("reading inode block at mount")
		}

		if superblock.IsEmpty(buf) {
			node := &Inode{}
			isRoot := id == sfs.RootInodeID

			mode := uint32(sfs.S_IFREG | sfs.S_IRWXU)
			nlinks := uint64(1)
			if isRoot {
				mode = sfs.S_IFDIR | sfs.S_IRWXU
				nlinks = 2
			}
			node.Stat(uint64(id), mode, nlinks)

			if isRoot {
				Reserve(node, sb)
				if _, _, ok := ReserveBlock(node, sb); !ok {
					return nil, sfs.ErrNoSpace.WithMessage("reserving root directory's data block")
				}
			}

			if err := node.Flush(dev); err != nil {
				return nil, err
			}
			nodes[id] = node
		} else {
			nodes[id] = Deserialize(buf)
		}
	}

	return &Table{Nodes: nodes}, nil
}

// Get returns the inode at index id. The caller is responsible for bounds
// checking against len(Nodes); spec.md treats inode ids as always valid
// once resolved through the directory graph.
func (t *Table) Get(id uint64) *Inode {
	return t.Nodes[id]
}

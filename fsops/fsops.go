// Package fsops implements spec.md §4.7: the filesystem operation layer
// (create/open/read/write/unlink/mkdir/rmdir/getattr/readdir) wired on top
// of the super block, inode table, and directory graph, plus the
// MountContext that holds the single coarse-grained lock of spec.md §5.
// Grounded on original_source/src/sfs.c's sfs_* operation handlers and
// sfs_init.
package fsops

import (
	"sync"

	"github.com/abdelsfs/sfs"
	"github.com/abdelsfs/sfs/blockdev"
	"github.com/abdelsfs/sfs/directory"
	"github.com/abdelsfs/sfs/inode"
	"github.com/abdelsfs/sfs/superblock"
)

// contentSlotStart is the first BlockLinks slot used for file/directory
// content. Slot 0 is reserved for the directory-graph linkage block every
// inode persists (spec.md §4.5 save()), so read/write addressing is offset
// by one slot relative to the raw BlockLinks array.
const contentSlotStart = 1

// maxContentBlocks is the number of slots available for content once slot 0
// is reserved for directory-graph linkage.
const maxContentBlocks = sfs.NumBlockLinks - contentSlotStart

// Attr is the subset of inode attributes getattr exposes (spec.md §4.7
// getattr).
type Attr struct {
	Ino          uint64
	UserID       uint32
	GroupID      uint32
	Mode         uint32
	NumFileLinks uint64
	LastAccess   uint64
	LastFileMod  uint64
	FileSize     uint64
	BlockSize    uint32
}

// MountContext is the process-wide state spec.md §9 Design Notes describes:
// the root directory pointer, super-block pointer, inode table, and the
// single init mutex, encapsulated in one value owned by the operation
// layer.
type MountContext struct {
	mu       sync.Mutex
	dev      blockdev.Device
	geometry sfs.Geometry
	sb       *superblock.SuperBlock
	table    *inode.Table
	root     *directory.Node
	arena    map[uint64]*directory.Node
}

// Mount brings up a MountContext against dev, exactly following spec.md §3
// Lifecycle: the super block is deserialized from block 0 if present or
// created fresh, every inode slot is materialized (inode.Mount), and the
// root directory's graph is loaded from disk or allocated fresh (S1).
func Mount(dev blockdev.Device, geometry sfs.Geometry) (*MountContext, sfs.DriverError) {
	numDataBlocks := int(geometry.NumDataBlocks())
	numInodeBlocks := int(geometry.NumInodeBlocks)

	sbBuf := make([]byte, sfs.BlockSize)
	count, err := dev.ReadBlock(sfs.SuperBlockIndex, sbBuf)
	if err != nil || count <= 0 {
		return nil, sfs.ErrIO.WithMessage("reading super block at mount")
	}

	var sb *superblock.SuperBlock
	if superblock.IsEmpty(sbBuf) {
		sb = superblock.New(numDataBlocks, numInodeBlocks)
	} else {
		sb = superblock.Deserialize(sbBuf, numDataBlocks, numInodeBlocks)
	}

	table, derr := inode.Mount(dev, sb, numInodeBlocks)
	if derr != nil {
		return nil, derr
	}

	ctx := &MountContext{dev: dev, geometry: geometry, sb: sb, table: table}
	if err := ctx.flushSuperBlock(); err != nil {
		return nil, err
	}

	root, derr := ctx.loadOrAllocateRoot()
	if derr != nil {
		return nil, derr
	}
	ctx.root = root
	ctx.rebuildArena()

	return ctx, nil
}

func (ctx *MountContext) loadOrAllocateRoot() (*directory.Node, sfs.DriverError) {
	rootInode := ctx.table.Get(sfs.RootInodeID)

	if rootInode.BlockLinks[0] == sfs.UnusedBlockLink {
		if _, ok := inode.ReserveBlockAt(rootInode, ctx.sb, 0); !ok {
			return nil, sfs.ErrNoSpace.WithMessage("reserving root directory's linkage block")
		}
		if err := rootInode.Flush(ctx.dev); err != nil {
			return nil, err
		}
	}

	dirBuf := make([]byte, sfs.BlockSize)
	count, err := ctx.dev.ReadBlock(uint32(rootInode.BlockLinks[0]), dirBuf)
	if err != nil || count <= 0 {
		return nil, sfs.ErrIO.WithMessage("reading root directory block")
	}

	if superblock.IsEmpty(dirBuf) {
		root := directory.Allocate(sfs.RootInodeID, "/")
		if err := directory.Save(ctx.dev, ctx.table, root); err != nil {
			return nil, err
		}
		return root, nil
	}

	return directory.LoadTree(ctx.dev, ctx.table, sfs.RootInodeID)
}

func (ctx *MountContext) rebuildArena() {
	ctx.arena = directory.BuildArena(ctx.root)
}

func (ctx *MountContext) flushSuperBlock() sfs.DriverError {
	buf := ctx.sb.Serialize(sfs.BlockSize)
	count, err := ctx.dev.WriteBlock(sfs.SuperBlockIndex, buf)
	if err != nil || count <= 0 {
		return sfs.ErrIO.WithMessage("flushing super block")
	}
	return nil
}

func (ctx *MountContext) resolve(path string) (*directory.Node, bool) {
	return directory.Resolve(ctx.root, path)
}

// GetAttr resolves path and reports its inode's attributes (spec.md §4.7
// getattr).
func (ctx *MountContext) GetAttr(path string) (Attr, sfs.DriverError) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return Attr{}, sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)

	return Attr{
		Ino:          n.ID,
		UserID:       n.UserID,
		GroupID:      n.GroupID,
		Mode:         n.Mode,
		NumFileLinks: n.NumFileLinks,
		LastAccess:   n.LastAccessTime,
		LastFileMod:  n.LastFileModTime,
		FileSize:     n.FileSize,
		BlockSize:    sfs.BlockSize,
	}, nil
}

// create is the shared body of Create and Mkdir: idempotent success if path
// already resolves, otherwise allocate an inode and a directory-graph
// linkage block, insert it under path's parent, and persist everything
// (spec.md §4.7 create/mkdir, §4.5 insertion policy).
func (ctx *MountContext) create(path string, mode uint32, numFileLinks uint64) (bool, sfs.DriverError) {
	if _, ok := ctx.resolve(path); ok {
		return false, nil
	}

	parent, ok := directory.ResolveParent(ctx.root, path)
	if !ok {
		return false, sfs.ErrNotFound
	}

	freeID, ok := ctx.sb.InodeBitmap.FirstFree()
	if !ok {
		return false, sfs.ErrNoSpace.WithMessage("no free inode")
	}

	n := ctx.table.Get(uint64(freeID))
	n.Stat(uint64(freeID), mode, numFileLinks)
	inode.Reserve(n, ctx.sb)

	if _, ok := inode.ReserveBlockAt(n, ctx.sb, 0); !ok {
		inode.Unreserve(n, ctx.sb)
		return false, sfs.ErrNoSpace.WithMessage("no free data block for directory linkage")
	}

	name := directory.EntryNameOf(path)
	node := directory.Allocate(uint64(freeID), name)
	changed := directory.Insert(parent, node)

	if err := directory.Save(ctx.dev, ctx.table, changed); err != nil {
		return false, err
	}
	if changed != node {
		if err := directory.Save(ctx.dev, ctx.table, node); err != nil {
			return false, err
		}
	}
	if err := n.Flush(ctx.dev); err != nil {
		return false, err
	}
	if err := ctx.flushSuperBlock(); err != nil {
		return false, err
	}

	ctx.arena[node.Entry.Ino] = node
	return true, nil
}

// Create resolves path; if it already exists, succeeds idempotently
// (spec.md §7 "exists" is a non-error). Otherwise allocates a regular-file
// (or caller-chosen mode) inode with nlink=1.
func (ctx *MountContext) Create(path string, mode uint32) (bool, sfs.DriverError) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	return ctx.create(path, mode, 1)
}

// Mkdir is Create with nlink=2 and the directory type bit forced on
// (spec.md §4.7 mkdir).
func (ctx *MountContext) Mkdir(path string, mode uint32) (bool, sfs.DriverError) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	return ctx.create(path, mode|sfs.S_IFDIR, 2)
}

// Unlink resolves path, rejects directories, and destroys the inode
// (spec.md §4.7 unlink). The directory-graph node is detached from its
// parent/sibling chain and the affected neighbor re-persisted (spec.md
// §4.5-A / §9, promoted from the original's undone SHOULD).
func (ctx *MountContext) Unlink(path string) sfs.DriverError {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if sfs.IsDir(n.Mode) {
		return sfs.ErrIsDirectory
	}

	return ctx.destroyAndDetach(node, n)
}

// Rmdir resolves path, rejects regular files, and destroys the inode
// (spec.md §4.7 rmdir), with the same detach behavior as Unlink.
func (ctx *MountContext) Rmdir(path string) sfs.DriverError {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if !sfs.IsDir(n.Mode) {
		return sfs.ErrNotDirectory
	}

	return ctx.destroyAndDetach(node, n)
}

func (ctx *MountContext) destroyAndDetach(node *directory.Node, n *inode.Inode) sfs.DriverError {
	if err := inode.Destroy(n, ctx.sb, ctx.dev); err != nil {
		return err
	}
	if err := ctx.flushSuperBlock(); err != nil {
		return err
	}

	if changed := directory.Detach(node); changed != nil {
		if err := directory.Save(ctx.dev, ctx.table, changed); err != nil {
			return err
		}
	}
	delete(ctx.arena, node.Entry.Ino)
	return nil
}

// Open resolves path, rejects directories, and requires the owner-execute
// bit (spec.md §4.7 open).
func (ctx *MountContext) Open(path string) sfs.DriverError {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if sfs.IsDir(n.Mode) {
		return sfs.ErrIsDirectory
	}
	if n.Mode&sfs.S_IXUSR == 0 {
		return sfs.ErrAccessDenied
	}
	return nil
}

// OpenDir resolves path, rejects regular files, and requires the
// owner-execute bit (spec.md §4.7 opendir).
func (ctx *MountContext) OpenDir(path string) sfs.DriverError {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if !sfs.IsDir(n.Mode) {
		return sfs.ErrNotDirectory
	}
	if n.Mode&sfs.S_IXUSR == 0 {
		return sfs.ErrAccessDenied
	}
	return nil
}

// Read copies up to len(buf) bytes starting at offset into buf, scattering
// the read across every content block it spans (spec.md §4.7-A, the
// multi-block extension of the literal single-block S4 walkthrough). Reads
// at or past file_size return (0, nil). Unallocated blocks within range
// read as zero without touching the disk.
func (ctx *MountContext) Read(path string, buf []byte, offset int64) (int, sfs.DriverError) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return 0, sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if sfs.IsDir(n.Mode) {
		return 0, sfs.ErrIsDirectory
	}

	if offset >= int64(n.FileSize) {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > int64(n.FileSize) {
		end = int64(n.FileSize)
	}
	toRead := int(end - offset)

	read := 0
	for read < toRead {
		abs := offset + int64(read)
		blockIndex := int(abs / sfs.BlockSize)
		blockOffset := int(abs % sfs.BlockSize)
		slot := contentSlotStart + blockIndex
		if slot >= sfs.NumBlockLinks {
			break
		}

		chunk := sfs.BlockSize - blockOffset
		if remaining := toRead - read; chunk > remaining {
			chunk = remaining
		}

		blockBuf := make([]byte, sfs.BlockSize)
		if link := n.BlockLinks[slot]; link != sfs.UnusedBlockLink {
			count, err := ctx.dev.ReadBlock(uint32(link), blockBuf)
			if err != nil || count <= 0 {
				return read, sfs.ErrIO.WithMessage("reading file content block")
			}
		}
		copy(buf[read:read+chunk], blockBuf[blockOffset:blockOffset+chunk])
		read += chunk
	}

	return read, nil
}

// Write writes len(buf) bytes to path starting at offset, allocating new
// content blocks as needed (spec.md §4.7-A) and advancing file_size to
// cover what was actually written. If a content block can't be allocated
// partway through — bitmap exhaustion or running past the 200-slot direct
// map — the bytes already written stay written (spec.md §7: no rollback)
// and ErrNoSpace is returned alongside the partial count.
func (ctx *MountContext) Write(path string, buf []byte, offset int64) (int, sfs.DriverError) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return 0, sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if sfs.IsDir(n.Mode) {
		return 0, sfs.ErrIsDirectory
	}

	written := 0
	var writeErr sfs.DriverError

	for written < len(buf) {
		abs := offset + int64(written)
		blockIndex := int(abs / sfs.BlockSize)
		blockOffset := int(abs % sfs.BlockSize)
		slot := contentSlotStart + blockIndex
		if slot >= sfs.NumBlockLinks {
			writeErr = sfs.ErrNoSpace.WithMessage("file has reached its maximum size")
			break
		}

		chunk := sfs.BlockSize - blockOffset
		if remaining := len(buf) - written; chunk > remaining {
			chunk = remaining
		}

		blockNumber, ok := inode.ReserveBlockAt(n, ctx.sb, slot)
		if !ok {
			writeErr = sfs.ErrNoSpace.WithMessage("no free data block for file content")
			break
		}

		blockBuf := make([]byte, sfs.BlockSize)
		if blockOffset != 0 || chunk != sfs.BlockSize {
			if _, err := ctx.dev.ReadBlock(uint32(blockNumber), blockBuf); err != nil {
				writeErr = sfs.ErrIO.WithMessage("reading content block for partial write")
				break
			}
		}
		copy(blockBuf[blockOffset:blockOffset+chunk], buf[written:written+chunk])

		count, err := ctx.dev.WriteBlock(uint32(blockNumber), blockBuf)
		if err != nil || count <= 0 {
			writeErr = sfs.ErrIO.WithMessage("writing file content block")
			break
		}
		written += chunk
	}

	if newSize := uint64(offset) + uint64(written); newSize > n.FileSize {
		n.FileSize = newSize
	}
	if err := n.Flush(ctx.dev); err != nil {
		return written, err
	}
	if err := ctx.flushSuperBlock(); err != nil {
		return written, err
	}

	return written, writeErr
}

// ReadDir locates path's directory node and invokes filler once per child in
// its sibling chain, in chain order (spec.md §4.7 readdir).
func (ctx *MountContext) ReadDir(path string, filler func(name string)) sfs.DriverError {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	node, ok := ctx.resolve(path)
	if !ok {
		return sfs.ErrNotFound
	}
	n := ctx.table.Get(node.Entry.Ino)
	if !sfs.IsDir(n.Mode) {
		return sfs.ErrNotDirectory
	}

	for c := node.Child; c != nil; c = c.Sibling {
		filler(c.Entry.Name)
	}
	return nil
}

// Release is a no-op (spec.md §4.7 release).
func (ctx *MountContext) Release(path string) sfs.DriverError {
	return nil
}

// ReleaseDir is a no-op (spec.md §4.7 releasedir).
func (ctx *MountContext) ReleaseDir(path string) sfs.DriverError {
	return nil
}

// Package directory implements spec.md §4.5/§4.6: the two-layer directory
// model (one data block per directory inode, holding a child/sibling linked
// structure addressed by inode number) and the path resolver that walks it.
// Grounded on original_source/src/sfs.c (directory_allocate, save, load,
// walk, find, find_parent, entry_name_of) and original_source/src/helper.c's
// node_stat/node_destroy interplay with the directory graph.
package directory

import (
	"strings"

	"github.com/abdelsfs/sfs"
	"github.com/abdelsfs/sfs/blockdev"
	"github.com/abdelsfs/sfs/bytebuffer"
	"github.com/abdelsfs/sfs/inode"
	"github.com/abdelsfs/sfs/superblock"
)

// noIno is the on-disk "none" sentinel for self/sibling/child inode numbers.
// spec.md §4.5 describes these fields as u16-or-(-1); this implementation
// stores them as int16, reusing the same -1 sentinel convention already
// established for inode.Inode.BlockLinks rather than inventing a second
// "none" encoding.
const noIno int16 = -1

// Entry is a directory's (name, inode) pair.
type Entry struct {
	Name string
	Ino  uint64
}

// Node is the in-memory directory tree node. Child is the first child
// directory/file, Sibling the next sibling under the same parent, Parent a
// non-owning back-reference (the owning container is the tree rooted at the
// mount's root node, per spec.md §5/§9).
type Node struct {
	Entry   Entry
	Child   *Node
	Sibling *Node
	Parent  *Node
}

// Allocate creates a fresh in-memory node with no children or siblings
// (spec.md §4.5 directory_allocate).
func Allocate(ino uint64, name string) *Node {
	return &Node{Entry: Entry{Name: name, Ino: ino}}
}

func inoOf(n *Node) int16 {
	if n == nil {
		return noIno
	}
	return int16(n.Entry.Ino)
}

// Serialize encodes (entry_name, self_ino, sibling_ino, child_ino) into a
// fresh block-sized buffer, per spec.md §4.5 save().
func Serialize(n *Node, blockSize int) []byte {
	buf := make([]byte, blockSize)
	w := bytebuffer.NewWriter(buf)

	w.WriteString(n.Entry.Name)
	w.WriteI16(int16(n.Entry.Ino))
	w.WriteI16(inoOf(n.Sibling))
	w.WriteI16(inoOf(n.Child))

	return buf
}

// persistedTuple is the raw (name, self, sibling, child) tuple read off
// disk, before it's stitched into the live tree.
type persistedTuple struct {
	name       string
	selfIno    int16
	siblingIno int16
	childIno   int16
}

func deserializeTuple(buf []byte) persistedTuple {
	r := bytebuffer.NewReader(buf)
	return persistedTuple{
		name:       r.ReadString(),
		selfIno:    r.ReadI16(),
		siblingIno: r.ReadI16(),
		childIno:   r.ReadI16(),
	}
}

// Save persists node into the first data block of its own inode
// (BlockLinks[0]), per spec.md §4.5 save().
func Save(dev blockdev.Device, table *inode.Table, node *Node) sfs.DriverError {
	n := table.Get(node.Entry.Ino)
	blockNumber := n.BlockLinks[0]
	if blockNumber == sfs.UnusedBlockLink {
		return sfs.ErrIO.WithMessage("directory inode has no data block reserved")
	}

	buf := Serialize(node, sfs.BlockSize)
	count, err := dev.WriteBlock(uint32(blockNumber), buf)
	if err != nil || count <= 0 {
		return sfs.ErrIO.WithMessage("writing directory block")
	}
	return nil
}

// LoadTree reads the directory block belonging to inode ino and rebuilds the
// in-memory subtree rooted there, recursively loading sibling and child
// subtrees (spec.md §4.5 load(): "shell children are later recursively
// loaded by the same routine via pre-order traversal"). If the persisted
// self_ino is absent (the block was never written), the node defaults to
// the root entry ("/", RootInodeID), matching load()'s documented fallback.
func LoadTree(dev blockdev.Device, table *inode.Table, ino uint64) (*Node, sfs.DriverError) {
	return loadTree(dev, table, ino, nil)
}

func loadTree(dev blockdev.Device, table *inode.Table, ino uint64, parent *Node) (*Node, sfs.DriverError) {
	n := table.Get(ino)
	blockNumber := n.BlockLinks[0]

	buf := make([]byte, sfs.BlockSize)
	if blockNumber != sfs.UnusedBlockLink {
		count, err := dev.ReadBlock(uint32(blockNumber), buf)
		if err != nil || count <= 0 {
			return nil, sfs.ErrIO.WithMessage("reading directory block")
		}
	}

	// A never-written (all-zero) block has no entry: default to the root
	// entry with no siblings or children.
	if blockNumber == sfs.UnusedBlockLink || superblock.IsEmpty(buf) {
		return &Node{Entry: Entry{Name: "/", Ino: sfs.RootInodeID}, Parent: parent}, nil
	}

	tuple := deserializeTuple(buf)

	node := &Node{Parent: parent}
	if tuple.selfIno == noIno {
		node.Entry = Entry{Name: "/", Ino: sfs.RootInodeID}
	} else {
		node.Entry = Entry{Name: tuple.name, Ino: uint64(tuple.selfIno)}
	}

	if tuple.siblingIno != noIno {
		sibling, err := loadTree(dev, table, uint64(tuple.siblingIno), parent)
		if err != nil {
			return nil, err
		}
		node.Sibling = sibling
	}
	if tuple.childIno != noIno {
		child, err := loadTree(dev, table, uint64(tuple.childIno), node)
		if err != nil {
			return nil, err
		}
		node.Child = child
	}

	return node, nil
}

// Walk performs the pre-order traversal of spec.md §4.5: visit node, then
// the subtree reached via Sibling, then the subtree reached via Child.
// Traversal stops as soon as visitor returns stop=true, and that result is
// propagated back up.
func Walk(node *Node, visitor func(*Node) (interface{}, bool)) (interface{}, bool) {
	if node == nil {
		return nil, false
	}
	if result, stop := visitor(node); stop {
		return result, true
	}
	if result, stop := Walk(node.Sibling, visitor); stop {
		return result, true
	}
	return Walk(node.Child, visitor)
}

// BuildArena walks the tree rooted at root and returns a map of every node
// keyed by inode number, the arena spec.md §9 Design Notes describes as
// giving O(1) lookup and safe parent back-references without ownership
// cycles.
func BuildArena(root *Node) map[uint64]*Node {
	arena := make(map[uint64]*Node)
	Walk(root, func(n *Node) (interface{}, bool) {
		arena[n.Entry.Ino] = n
		return nil, false
	})
	return arena
}

// Insert adds child as a new entry under parent, following spec.md §4.5's
// insertion policy: if parent has no child, child becomes parent's child;
// otherwise child is appended as the last sibling of parent's child chain.
// It returns the node whose on-disk block must be re-persisted by the
// caller (either parent, or the node that gained a new Sibling).
func Insert(parent, child *Node) *Node {
	child.Parent = parent

	if parent.Child == nil {
		parent.Child = child
		return parent
	}

	last := parent.Child
	for last.Sibling != nil {
		last = last.Sibling
	}
	last.Sibling = child
	return last
}

// Detach removes node from its parent's child/sibling chain (spec.md §4.5-A,
// promoting unlink/rmdir's detach behavior from a SHOULD to a MUST). It
// returns the node whose on-disk block must be re-persisted by the caller,
// or nil if node had no parent (the root, or an already-detached node).
func Detach(node *Node) *Node {
	parent := node.Parent
	if parent == nil {
		return nil
	}

	if parent.Child == node {
		parent.Child = node.Sibling
		node.Sibling = nil
		node.Parent = nil
		return parent
	}

	prev := parent.Child
	for prev != nil && prev.Sibling != node {
		prev = prev.Sibling
	}
	if prev == nil {
		return nil
	}
	prev.Sibling = node.Sibling
	node.Sibling = nil
	node.Parent = nil
	return prev
}

// EntryNameOf returns the substring of path after its final "/" (spec.md
// §4.6 entry_name_of).
func EntryNameOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func splitComponents(path string) []string {
	parts := strings.Split(path, "/")
	components := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			components = append(components, p)
		}
	}
	return components
}

// Resolve walks root's child chain matching each "/"-separated component of
// path exactly against Entry.Name (spec.md §4.6, the canonical component-wise
// replacement for the original's substring search). Returns (root, true) for
// "/" itself.
func Resolve(root *Node, path string) (*Node, bool) {
	components := splitComponents(path)
	current := root
	for _, name := range components {
		next := findChildByName(current, name)
		if next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

// ResolveParent resolves the directory node that would contain path's final
// component (spec.md §4.6 find_parent: find(root, "", strip_last_component(path))).
// Root has no parent.
func ResolveParent(root *Node, path string) (*Node, bool) {
	components := splitComponents(path)
	if len(components) == 0 {
		return nil, false
	}
	parentComponents := components[:len(components)-1]

	current := root
	for _, name := range parentComponents {
		next := findChildByName(current, name)
		if next == nil {
			return nil, false
		}
		current = next
	}
	return current, true
}

func findChildByName(dir *Node, name string) *Node {
	for c := dir.Child; c != nil; c = c.Sibling {
		if c.Entry.Name == name {
			return c
		}
	}
	return nil
}

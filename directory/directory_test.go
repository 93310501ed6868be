package directory_test

import (
	"testing"

	"github.com/abdelsfs/sfs"
	"github.com/abdelsfs/sfs/blockdev"
	"github.com/abdelsfs/sfs/directory"
	"github.com/abdelsfs/sfs/inode"
	"github.com/abdelsfs/sfs/superblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNumDataBlocks  = 32637
	testNumInodeBlocks = 128
	testTotalBlocks    = testNumDataBlocks + testNumInodeBlocks + 1
)

// setupMount builds a root directory node with a reserved data block, ready
// for directory-graph tests to build on.
func setupMount(t *testing.T) (blockdev.Device, *superblock.SuperBlock, *inode.Table, *directory.Node) {
	t.Helper()

	dev := blockdev.NewMemory(testTotalBlocks, sfs.BlockSize)
	sb := superblock.New(testNumDataBlocks, testNumInodeBlocks)

	table := &inode.Table{Nodes: make([]*inode.Inode, testNumInodeBlocks)}
	for i := range table.Nodes {
		table.Nodes[i] = &inode.Inode{}
	}

	root := table.Get(sfs.RootInodeID)
	root.Stat(sfs.RootInodeID, sfs.S_IFDIR|sfs.S_IRWXU, 2)
	inode.Reserve(root, sb)
	_, _, ok := inode.ReserveBlock(root, sb)
	require.True(t, ok)

	rootNode := directory.Allocate(sfs.RootInodeID, "/")
	require.Nil(t, directory.Save(dev, table, rootNode))

	return dev, sb, table, rootNode
}

func TestSerializeDeserializeRoundTripViaSaveLoad(t *testing.T) {
	dev, _, table, rootNode := setupMount(t)

	loaded, err := directory.LoadTree(dev, table, sfs.RootInodeID)
	require.Nil(t, err)
	assert.Equal(t, rootNode.Entry, loaded.Entry)
	assert.Nil(t, loaded.Child)
	assert.Nil(t, loaded.Sibling)
	assert.Nil(t, loaded.Parent)
}

func TestInsertSetsFirstChild(t *testing.T) {
	dev, sb, table, rootNode := setupMount(t)

	child := table.Get(1)
	child.Stat(1, sfs.S_IFDIR|sfs.S_IRWXU, 2)
	inode.Reserve(child, sb)
	_, _, ok := inode.ReserveBlock(child, sb)
	require.True(t, ok)

	childNode := directory.Allocate(1, "a")
	changed := directory.Insert(rootNode, childNode)
	assert.Same(t, rootNode, changed)
	assert.Same(t, childNode, rootNode.Child)
	assert.Same(t, rootNode, childNode.Parent)

	require.Nil(t, directory.Save(dev, table, rootNode))
	require.Nil(t, directory.Save(dev, table, childNode))

	loaded, err := directory.LoadTree(dev, table, sfs.RootInodeID)
	require.Nil(t, err)
	require.NotNil(t, loaded.Child)
	assert.Equal(t, "a", loaded.Child.Entry.Name)
	assert.Nil(t, loaded.Child.Sibling)
}

func TestInsertAppendsAsLastSibling(t *testing.T) {
	_, sb, table, rootNode := setupMount(t)

	first := table.Get(1)
	first.Stat(1, sfs.S_IFREG|sfs.S_IRWXU, 1)
	inode.Reserve(first, sb)
	inode.ReserveBlock(first, sb)
	firstNode := directory.Allocate(1, "f1")
	directory.Insert(rootNode, firstNode)

	second := table.Get(2)
	second.Stat(2, sfs.S_IFREG|sfs.S_IRWXU, 1)
	inode.Reserve(second, sb)
	inode.ReserveBlock(second, sb)
	secondNode := directory.Allocate(2, "f2")
	changed := directory.Insert(rootNode, secondNode)

	assert.Same(t, firstNode, changed)
	assert.Same(t, secondNode, rootNode.Child.Sibling)
	assert.Same(t, rootNode, secondNode.Parent)
}

func TestWalkVisitsSelfSiblingSubtreeThenChildSubtree(t *testing.T) {
	root := directory.Allocate(0, "/")
	a := directory.Allocate(1, "a")
	b := directory.Allocate(2, "b")
	c := directory.Allocate(3, "c")

	directory.Insert(root, a)
	directory.Insert(root, b)
	directory.Insert(a, c)

	var visited []string
	directory.Walk(root, func(n *directory.Node) (interface{}, bool) {
		visited = append(visited, n.Entry.Name)
		return nil, false
	})

	assert.Equal(t, []string{"/", "a", "b", "c"}, visited)
}

func TestWalkShortCircuits(t *testing.T) {
	root := directory.Allocate(0, "/")
	a := directory.Allocate(1, "a")
	b := directory.Allocate(2, "b")
	directory.Insert(root, a)
	directory.Insert(root, b)

	result, stop := directory.Walk(root, func(n *directory.Node) (interface{}, bool) {
		if n.Entry.Name == "a" {
			return "found", true
		}
		return nil, false
	})

	assert.True(t, stop)
	assert.Equal(t, "found", result)
}

func TestResolveCanonicalComponentWalk(t *testing.T) {
	root := directory.Allocate(0, "/")
	a := directory.Allocate(1, "a")
	f := directory.Allocate(2, "f")
	directory.Insert(root, a)
	directory.Insert(a, f)

	node, ok := directory.Resolve(root, "/")
	assert.True(t, ok)
	assert.Same(t, root, node)

	node, ok = directory.Resolve(root, "/a")
	assert.True(t, ok)
	assert.Same(t, a, node)

	node, ok = directory.Resolve(root, "/a/f")
	assert.True(t, ok)
	assert.Same(t, f, node)

	_, ok = directory.Resolve(root, "/missing")
	assert.False(t, ok)
}

func TestResolveParent(t *testing.T) {
	root := directory.Allocate(0, "/")
	a := directory.Allocate(1, "a")
	f := directory.Allocate(2, "f")
	directory.Insert(root, a)
	directory.Insert(a, f)

	parent, ok := directory.ResolveParent(root, "/a/f")
	assert.True(t, ok)
	assert.Same(t, a, parent)

	parent, ok = directory.ResolveParent(root, "/a")
	assert.True(t, ok)
	assert.Same(t, root, parent)
}

func TestEntryNameOf(t *testing.T) {
	assert.Equal(t, "f", directory.EntryNameOf("/a/f"))
	assert.Equal(t, "a", directory.EntryNameOf("/a"))
}

func TestDetachFirstChild(t *testing.T) {
	root := directory.Allocate(0, "/")
	a := directory.Allocate(1, "a")
	b := directory.Allocate(2, "b")
	directory.Insert(root, a)
	directory.Insert(root, b)

	changed := directory.Detach(a)
	assert.Same(t, root, changed)
	assert.Same(t, b, root.Child)
	assert.Nil(t, a.Parent)
	assert.Nil(t, a.Sibling)
}

func TestDetachMiddleSibling(t *testing.T) {
	root := directory.Allocate(0, "/")
	a := directory.Allocate(1, "a")
	b := directory.Allocate(2, "b")
	c := directory.Allocate(3, "c")
	directory.Insert(root, a)
	directory.Insert(root, b)
	directory.Insert(root, c)

	changed := directory.Detach(b)
	assert.Same(t, a, changed)
	assert.Same(t, c, a.Sibling)
	assert.Nil(t, b.Parent)
}

func TestDetachRootIsNoop(t *testing.T) {
	root := directory.Allocate(0, "/")
	assert.Nil(t, directory.Detach(root))
}

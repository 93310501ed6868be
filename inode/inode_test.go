package inode_test

import (
	"testing"

	"github.com/abdelsfs/sfs"
	"github.com/abdelsfs/sfs/blockdev"
	"github.com/abdelsfs/sfs/inode"
	"github.com/abdelsfs/sfs/superblock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNumDataBlocks  = 32637
	testNumInodeBlocks = 128
)

func newSuperBlock() *superblock.SuperBlock {
	return superblock.New(testNumDataBlocks, testNumInodeBlocks)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	n := &inode.Inode{}
	n.Stat(7, sfs.S_IFREG|sfs.S_IRWXU, 1)
	n.FileSize = 4096
	n.BlockLinks[0] = 130
	n.BlockLinks[1] = 131

	buf := n.Serialize(sfs.BlockSize)
	require.Len(t, buf, sfs.BlockSize)

	restored := inode.Deserialize(buf)

	assert.Equal(t, n.ID, restored.ID)
	assert.Equal(t, n.UserID, restored.UserID)
	assert.Equal(t, n.GroupID, restored.GroupID)
	assert.Equal(t, n.Mode, restored.Mode)
	assert.Equal(t, n.LastFileModTime, restored.LastFileModTime)
	assert.Equal(t, n.LastAccessTime, restored.LastAccessTime)
	assert.Equal(t, n.LastInodeModTime, restored.LastInodeModTime)
	assert.Equal(t, n.NumFileLinks, restored.NumFileLinks)
	assert.Equal(t, n.FileSize, restored.FileSize)
	assert.Equal(t, n.BlockLinks, restored.BlockLinks)
}

func TestStatResetsBlockLinks(t *testing.T) {
	n := &inode.Inode{}
	n.BlockLinks[3] = 42
	n.Stat(2, sfs.S_IFREG|sfs.S_IRWXU, 1)

	for _, link := range n.BlockLinks {
		assert.Equal(t, int16(sfs.UnusedBlockLink), link)
	}
}

func TestFlushRoundTripThroughDevice(t *testing.T) {
	dev := blockdev.NewMemory(uint32(testNumDataBlocks+testNumInodeBlocks+1), sfs.BlockSize)
	defer dev.Close()

	n := &inode.Inode{}
	n.Stat(3, sfs.S_IFREG|sfs.S_IRWXU, 1)
	n.FileSize = 99

	require.Nil(t, n.Flush(dev))

	buf := make([]byte, sfs.BlockSize)
	_, err := dev.ReadBlock(uint32(sfs.InodeBlockStart+3), buf)
	require.NoError(t, err)

	restored := inode.Deserialize(buf)
	assert.Equal(t, uint64(99), restored.FileSize)
}

func TestReserveUnreserveIsReservedUseConsistentIndex(t *testing.T) {
	sb := newSuperBlock()
	n := &inode.Inode{}
	n.Stat(5, sfs.S_IFREG|sfs.S_IRWXU, 1)

	assert.False(t, inode.IsReserved(n, sb))

	inode.Reserve(n, sb)
	assert.True(t, inode.IsReserved(n, sb))
	assert.Equal(t, uint8(testNumInodeBlocks-1), sb.NumFreeInodes)

	inode.Unreserve(n, sb)
	assert.False(t, inode.IsReserved(n, sb))
	assert.Equal(t, uint8(testNumInodeBlocks), sb.NumFreeInodes)
}

func TestReserveIsIdempotent(t *testing.T) {
	sb := newSuperBlock()
	n := &inode.Inode{}
	n.Stat(5, sfs.S_IFREG|sfs.S_IRWXU, 1)

	inode.Reserve(n, sb)
	inode.Reserve(n, sb)
	assert.Equal(t, uint8(testNumInodeBlocks-1), sb.NumFreeInodes)
}

func TestReserveBlockScansAllSlots(t *testing.T) {
	sb := newSuperBlock()
	n := &inode.Inode{}
	n.Stat(1, sfs.S_IFREG|sfs.S_IRWXU, 1)

	for i := 0; i < sfs.NumBlockLinks-1; i++ {
		n.BlockLinks[i] = 999
	}

	blockNumber, slot, ok := inode.ReserveBlock(n, sb)
	require.True(t, ok)
	assert.Equal(t, sfs.NumBlockLinks-1, slot)
	assert.Equal(t, blockNumber, int(n.BlockLinks[slot]))
	assert.Equal(t, uint32(testNumDataBlocks-1), sb.NumFreeBlocks)
}

func TestReserveBlockFailsWhenLinksExhausted(t *testing.T) {
	sb := newSuperBlock()
	n := &inode.Inode{}
	n.Stat(1, sfs.S_IFREG|sfs.S_IRWXU, 1)

	for i := 0; i < sfs.NumBlockLinks; i++ {
		n.BlockLinks[i] = int16(i)
	}

	_, _, ok := inode.ReserveBlock(n, sb)
	assert.False(t, ok)
}

func TestReserveBlockFailsWhenBitmapExhausted(t *testing.T) {
	sb := newSuperBlock()
	for i := 0; i < testNumDataBlocks; i++ {
		sb.BlockBitmap.Set(i)
	}
	sb.NumFreeBlocks = 0

	n := &inode.Inode{}
	n.Stat(1, sfs.S_IFREG|sfs.S_IRWXU, 1)

	_, _, ok := inode.ReserveBlock(n, sb)
	assert.False(t, ok)
}

func TestUnreserveBlockFreesBitOnly(t *testing.T) {
	sb := newSuperBlock()
	n := &inode.Inode{}
	n.Stat(1, sfs.S_IFREG|sfs.S_IRWXU, 1)

	blockNumber, slot, ok := inode.ReserveBlock(n, sb)
	require.True(t, ok)

	inode.UnreserveBlock(sb, blockNumber)
	assert.Equal(t, uint32(testNumDataBlocks), sb.NumFreeBlocks)
	assert.Equal(t, blockNumber, int(n.BlockLinks[slot]), "UnreserveBlock must not touch the inode's link slot")
}

func TestDestroyRefusesRootInode(t *testing.T) {
	sb := newSuperBlock()
	dev := blockdev.NewMemory(uint32(testNumDataBlocks+testNumInodeBlocks+1), sfs.BlockSize)
	defer dev.Close()

	root := &inode.Inode{}
	root.Stat(sfs.RootInodeID, sfs.S_IFDIR|sfs.S_IRWXU, 2)

	err := inode.Destroy(root, sb, dev)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, sfs.ErrAccessDenied)
}

func TestDestroyZeroesAndUnreservesBlocksThenResetsAttributes(t *testing.T) {
	sb := newSuperBlock()
	dev := blockdev.NewMemory(uint32(testNumDataBlocks+testNumInodeBlocks+1), sfs.BlockSize)
	defer dev.Close()

	n := &inode.Inode{}
	n.Stat(9, sfs.S_IFREG|sfs.S_IRWXU, 1)
	inode.Reserve(n, sb)

	blockNumber, _, ok := inode.ReserveBlock(n, sb)
	require.True(t, ok)

	payload := make([]byte, sfs.BlockSize)
	for i := range payload {
		payload[i] = 0xAB
	}
	_, err := dev.WriteBlock(uint32(blockNumber), payload)
	require.NoError(t, err)

	require.Nil(t, inode.Destroy(n, sb, dev))

	freed := make([]byte, sfs.BlockSize)
	_, readErr := dev.ReadBlock(uint32(blockNumber), freed)
	require.NoError(t, readErr)
	assert.Equal(t, make([]byte, sfs.BlockSize), freed)

	assert.False(t, inode.IsReserved(n, sb))
	assert.Equal(t, uint64(0), n.NumFileLinks)
	assert.Equal(t, uint32(sfs.S_IFREG|sfs.S_IRUSR|sfs.S_IWUSR|sfs.S_IXUSR), n.Mode)
	for _, link := range n.BlockLinks {
		assert.Equal(t, int16(sfs.UnusedBlockLink), link)
	}
}

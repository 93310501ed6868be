package blockdev_test

import (
	"bytes"
	"testing"

	"github.com/abdelsfs/sfs/blockdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeviceReadWriteRoundTrip(t *testing.T) {
	dev := blockdev.NewMemory(4, 512)
	defer dev.Close()

	payload := bytes.Repeat([]byte{0x42}, 512)
	n, err := dev.WriteBlock(2, payload)
	require.NoError(t, err)
	assert.Equal(t, 512, n)

	readBack := make([]byte, 512)
	n, err = dev.ReadBlock(2, readBack)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, payload, readBack)
}

func TestMemoryDeviceStartsZeroed(t *testing.T) {
	dev := blockdev.NewMemory(2, 512)
	defer dev.Close()

	buf := make([]byte, 512)
	n, err := dev.ReadBlock(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 512, n)
	assert.Equal(t, make([]byte, 512), buf)
}

func TestOutOfRangeBlockFails(t *testing.T) {
	dev := blockdev.NewMemory(2, 512)
	defer dev.Close()

	buf := make([]byte, 512)
	_, err := dev.ReadBlock(5, buf)
	assert.Error(t, err)
}

func TestWrongSizedBufferFails(t *testing.T) {
	dev := blockdev.NewMemory(2, 512)
	defer dev.Close()

	_, err := dev.WriteBlock(0, make([]byte, 10))
	assert.Error(t, err)
}

func TestFileBackedDeviceRoundTrip(t *testing.T) {
	path := t.TempDir() + "/image.bin"
	dev, err := blockdev.OpenFile(path, 4, 512)
	require.NoError(t, err)
	defer dev.Close()

	payload := bytes.Repeat([]byte{0x7A}, 512)
	_, err = dev.WriteBlock(1, payload)
	require.NoError(t, err)

	readBack := make([]byte, 512)
	_, err = dev.ReadBlock(1, readBack)
	require.NoError(t, err)
	assert.Equal(t, payload, readBack)
}

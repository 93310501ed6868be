// Package blockdev implements the block device contract spec.md §6 requires
// of the core's external collaborator: read_block/write_block against
// numbered fixed-size blocks of a backing image. Grounded on the teacher's
// drivers/common/blockdevice.go (offset arithmetic, bounds checking) and, for
// the in-memory variant used by tests, testing/images.go (wrapping a byte
// slice with github.com/xaionaro-go/bytesextra.NewReadWriteSeeker).
package blockdev

import (
	"fmt"
	"io"
	"os"

	"github.com/xaionaro-go/bytesextra"
)

// Device is the block device contract the core consumes. ReadBlock and
// WriteBlock both return the number of bytes transferred; spec.md §7 treats
// any non-positive count as an io-error.
type Device interface {
	ReadBlock(index uint32, buf []byte) (int, error)
	WriteBlock(index uint32, buf []byte) (int, error)
	Close() error
}

type device struct {
	blockSize   uint32
	totalBlocks uint32
	stream      io.ReadWriteSeeker
	closer      io.Closer
}

func (d *device) offsetOf(index uint32) (int64, error) {
	if index >= d.totalBlocks {
		return 0, fmt.Errorf(
			"blockdev: block %d out of range [0, %d)", index, d.totalBlocks)
	}
	return int64(index) * int64(d.blockSize), nil
}

func (d *device) ReadBlock(index uint32, buf []byte) (int, error) {
	if len(buf) != int(d.blockSize) {
		return 0, fmt.Errorf(
			"blockdev: read buffer must be exactly %d bytes, got %d", d.blockSize, len(buf))
	}
	offset, err := d.offsetOf(index)
	if err != nil {
		return 0, err
	}
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(d.stream, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return n, err
	}
	return n, nil
}

func (d *device) WriteBlock(index uint32, data []byte) (int, error) {
	if len(data) != int(d.blockSize) {
		return 0, fmt.Errorf(
			"blockdev: write buffer must be exactly %d bytes, got %d", d.blockSize, len(data))
	}
	offset, err := d.offsetOf(index)
	if err != nil {
		return 0, err
	}
	if _, err := d.stream.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return d.stream.Write(data)
}

func (d *device) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// OpenFile opens (creating if necessary) a file-backed block device at path,
// growing it to totalBlocks*blockSize bytes if it is smaller. This is the
// real disk_open(path) collaborator spec.md §6 describes.
func OpenFile(path string, totalBlocks, blockSize uint32) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	wantSize := int64(totalBlocks) * int64(blockSize)
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < wantSize {
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &device{
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
		stream:      f,
		closer:      f,
	}, nil
}

// NewMemory creates an in-memory, zero-filled block device of
// totalBlocks*blockSize bytes, backed by bytesextra.NewReadWriteSeeker.
// It is used by the test suite in place of a real disk image file.
func NewMemory(totalBlocks, blockSize uint32) Device {
	raw := make([]byte, int64(totalBlocks)*int64(blockSize))
	return &device{
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
		stream:      bytesextra.NewReadWriteSeeker(raw),
	}
}

// LoadMemory wraps existing bytes (e.g. read from a file) as an in-memory
// block device, for read-only inspection without touching the original file
// (`sfs fsck --dry-run`).
func LoadMemory(data []byte, totalBlocks, blockSize uint32) (Device, error) {
	wantSize := int64(totalBlocks) * int64(blockSize)
	if int64(len(data)) != wantSize {
		return nil, fmt.Errorf(
			"blockdev: image is %d bytes, expected %d", len(data), wantSize)
	}
	return &device{
		blockSize:   blockSize,
		totalBlocks: totalBlocks,
		stream:      bytesextra.NewReadWriteSeeker(data),
	}, nil
}

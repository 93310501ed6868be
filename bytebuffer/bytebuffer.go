// Package bytebuffer implements the big-endian, framed byte-buffer codec
// spec.md §4.2 describes: a fixed-capacity region with independent reader and
// writer cursors, both starting at 0, and primitives for u8/u16/u32/u64 and
// NUL-terminated strings. Grounded on the teacher's own
// github.com/noxer/bytewriter (drivers/unixv1/format.go wraps a fixed output
// slice with bytewriter.New and writes primitives through it with
// encoding/binary). bytewriter has no symmetric read-side counterpart in the
// retrieved corpus, so the reader cursor below is a small stdlib-backed type;
// see DESIGN.md for that one exception.
package bytebuffer

import (
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"
)

// Writer is a fixed-capacity, big-endian write cursor over a byte slice.
type Writer struct {
	buf    []byte
	cursor *bytewriter.Writer
	pos    int
}

// NewWriter wraps buf (which the caller must have sized to the block/region
// being written) with a write cursor starting at position 0.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf, cursor: bytewriter.New(buf)}
}

// Position returns the writer's current offset into the backing buffer.
func (w *Writer) Position() int {
	return w.pos
}

// Bytes returns the backing buffer the writer has been writing into.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) mustWrite(order binary.ByteOrder, v interface{}) {
	n := binary.Size(v)
	if err := binary.Write(w.cursor, order, v); err != nil {
		panic(fmt.Sprintf("bytebuffer: write overran fixed-capacity buffer: %s", err))
	}
	w.pos += n
}

// WriteU8 writes a single byte and advances the cursor by 1.
func (w *Writer) WriteU8(v uint8) {
	w.mustWrite(binary.BigEndian, v)
}

// WriteU16 writes a big-endian uint16 and advances the cursor by 2.
func (w *Writer) WriteU16(v uint16) {
	w.mustWrite(binary.BigEndian, v)
}

// WriteU32 writes a big-endian uint32 and advances the cursor by 4.
func (w *Writer) WriteU32(v uint32) {
	w.mustWrite(binary.BigEndian, v)
}

// WriteU64 writes a big-endian uint64 and advances the cursor by 8.
func (w *Writer) WriteU64(v uint64) {
	w.mustWrite(binary.BigEndian, v)
}

// WriteI16 writes a big-endian int16 and advances the cursor by 2.
func (w *Writer) WriteI16(v int16) {
	w.mustWrite(binary.BigEndian, v)
}

// WriteString writes the bytes of s followed by a single 0 terminator.
func (w *Writer) WriteString(s string) {
	n, err := w.cursor.Write([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("bytebuffer: write overran fixed-capacity buffer: %s", err))
	}
	w.pos += n
	w.WriteU8(0)
}

// Reader is a fixed-capacity, big-endian read cursor over a byte slice.
type Reader struct {
	buf    []byte
	cursor int
}

// NewReader wraps buf with a read cursor starting at position 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Position returns the reader's current offset into the backing buffer.
func (r *Reader) Position() int {
	return r.cursor
}

func (r *Reader) take(n int) []byte {
	if r.cursor+n > len(r.buf) {
		panic("bytebuffer: read overran fixed-capacity buffer")
	}
	chunk := r.buf[r.cursor : r.cursor+n]
	r.cursor += n
	return chunk
}

// ReadU8 reads a single byte and advances the cursor by 1.
func (r *Reader) ReadU8() uint8 {
	return r.take(1)[0]
}

// ReadU16 reads a big-endian uint16 and advances the cursor by 2.
func (r *Reader) ReadU16() uint16 {
	return binary.BigEndian.Uint16(r.take(2))
}

// ReadU32 reads a big-endian uint32 and advances the cursor by 4.
func (r *Reader) ReadU32() uint32 {
	return binary.BigEndian.Uint32(r.take(4))
}

// ReadU64 reads a big-endian uint64 and advances the cursor by 8.
func (r *Reader) ReadU64() uint64 {
	return binary.BigEndian.Uint64(r.take(8))
}

// ReadI16 reads a big-endian int16 and advances the cursor by 2.
func (r *Reader) ReadI16() int16 {
	return int16(r.ReadU16())
}

// ReadString reads bytes until a 0 terminator, returning the decoded string
// and advancing the cursor past the terminator.
func (r *Reader) ReadString() string {
	start := r.cursor
	for r.buf[r.cursor] != 0 {
		r.cursor++
		if r.cursor >= len(r.buf) {
			panic("bytebuffer: unterminated string overran fixed-capacity buffer")
		}
	}
	s := string(r.buf[start:r.cursor])
	r.cursor++ // skip the terminator
	return s
}

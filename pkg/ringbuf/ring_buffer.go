package ringbuf

import (
	"io"
)

var (
	_ io.Reader     = (*RingBuffer)(nil)
	_ io.Writer     = (*RingBuffer)(nil)
	_ io.ByteReader = (*RingBuffer)(nil)
	_ io.ByteWriter = (*RingBuffer)(nil)
)

// MinCapacity is the smallest storage a RingBuffer accepts.
const MinCapacity = 2

// RingBuffer is a fixed-capacity byte FIFO over caller-owned storage.
//
// The buffer uses head and tail offsets into the storage slice. Both wrap to
// 0 exactly when they reach the end of the slice, so the stored bytes are
// always the Len() bytes starting at head, continuing circularly. The buffer
// is full when Len() == Cap(); no slot is sacrificed to tell full from empty.
//
// The zero value is an empty buffer with no capacity; call Init before use.
type RingBuffer struct {
	buf    []byte
	head   int
	tail   int
	length int
}

// New creates a RingBuffer backed by storage. The capacity is len(storage).
// The buffer borrows storage and never reallocates it.
func New(storage []byte) (*RingBuffer, error) {
	rb := new(RingBuffer)
	if err := rb.Init(storage); err != nil {
		return nil, err
	}
	return rb, nil
}

// Init resets rb to an empty buffer backed by storage.
// Returns ErrInvalidCapacity if len(storage) < MinCapacity; rb is left
// unchanged in that case.
func (rb *RingBuffer) Init(storage []byte) error {
	if len(storage) < MinCapacity {
		return ErrInvalidCapacity
	}
	rb.buf = storage
	rb.head = 0
	rb.tail = 0
	rb.length = 0
	return nil
}

// Discard removes the n oldest bytes without reading them.
// Returns ErrUnderflow if fewer than n bytes are stored; nothing is removed
// in that case.
func (rb *RingBuffer) Discard(n int) error {
	if n < 0 {
		return ErrInvalidLength
	}
	if n > rb.length {
		return ErrUnderflow
	}
	rb.head = rb.advance(rb.head, n)
	rb.length -= n
	return nil
}

// WriteByte appends a single byte. Returns ErrBufferFull if the buffer is
// full.
func (rb *RingBuffer) WriteByte(c byte) error {
	if rb.length >= len(rb.buf) {
		return ErrBufferFull
	}
	rb.buf[rb.tail] = c
	rb.tail = rb.advance(rb.tail, 1)
	rb.length++
	return nil
}

// Write appends all of p or nothing.
//
// If p does not fit in the free space, Write returns 0 and ErrBufferFull and
// the buffer is unchanged. A write that crosses the end of the storage is
// split in two copies: from tail to the end of the slice, then the rest from
// the start.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n > rb.Free() {
		return 0, ErrBufferFull
	}
	if n == 0 {
		return 0, nil
	}
	if first := len(rb.buf) - rb.tail; first < n {
		copy(rb.buf[rb.tail:], p[:first])
		copy(rb.buf, p[first:])
	} else {
		copy(rb.buf[rb.tail:], p)
	}
	rb.tail = rb.advance(rb.tail, n)
	rb.length += n
	return n, nil
}

// ReadByte removes and returns the oldest byte. Returns ErrUnderflow if the
// buffer is empty.
func (rb *RingBuffer) ReadByte() (byte, error) {
	if rb.length == 0 {
		return 0, ErrUnderflow
	}
	c := rb.buf[rb.head]
	rb.head = rb.advance(rb.head, 1)
	rb.length--
	return c, nil
}

// ReadFull removes exactly len(p) of the oldest bytes into p.
//
// If fewer than len(p) bytes are stored, ReadFull returns 0 and ErrUnderflow
// and the buffer is unchanged.
func (rb *RingBuffer) ReadFull(p []byte) (int, error) {
	n := len(p)
	if n > rb.length {
		return 0, ErrUnderflow
	}
	rb.peek(p)
	rb.head = rb.advance(rb.head, n)
	rb.length -= n
	return n, nil
}

// Read implements io.Reader. It reads up to len(p) bytes and returns io.EOF
// when the buffer is empty. Use ReadFull for all-or-nothing reads.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if rb.length == 0 {
		return 0, io.EOF
	}
	return rb.ReadFull(p[:min(len(p), rb.length)])
}

// Bytes returns a copy of the stored bytes, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	out := make([]byte, rb.length)
	rb.peek(out)
	return out
}

// Reset empties the buffer. The storage is kept.
func (rb *RingBuffer) Reset() {
	rb.head = 0
	rb.tail = 0
	rb.length = 0
}

// Len returns the number of stored bytes.
func (rb *RingBuffer) Len() int {
	return rb.length
}

// Free returns the number of bytes that can be written before the buffer is
// full.
func (rb *RingBuffer) Free() int {
	return len(rb.buf) - rb.length
}

// Cap returns the capacity, which is the length of the backing storage.
func (rb *RingBuffer) Cap() int {
	return len(rb.buf)
}

// peek copies the len(p) oldest bytes into p without consuming them.
// The caller guarantees len(p) <= rb.length.
func (rb *RingBuffer) peek(p []byte) {
	n := len(p)
	if first := len(rb.buf) - rb.head; first < n {
		copy(p, rb.buf[rb.head:])
		copy(p[first:], rb.buf[:n-first])
	} else {
		copy(p, rb.buf[rb.head:rb.head+n])
	}
}

// advance moves offset forward by n positions, wrapping to 0 at the end of
// the storage. n never exceeds the capacity.
func (rb *RingBuffer) advance(offset, n int) int {
	offset += n
	if offset >= len(rb.buf) {
		offset -= len(rb.buf)
	}
	return offset
}

package ringbuf

import (
	"encoding/binary"
	"io"
	"math"
	"slices"
)

// ChapterWordSize is the width in bytes of one record length in the index
// ring.
const ChapterWordSize = 4

// IndexSize returns the index storage size needed to queue words record
// lengths.
func IndexSize(words int) int {
	return words * ChapterWordSize
}

var (
	_ io.Writer     = (*ChapteredRingBuffer)(nil)
	_ io.ByteReader = (*ChapteredRingBuffer)(nil)
	_ io.ByteWriter = (*ChapteredRingBuffer)(nil)
)

// ChapteredRingBuffer carries variable-length records ("chapters") through
// fixed storage.
//
// Record bytes go to a data ring. Each committed record's length goes to an
// index ring as a little-endian uint32 word. The length of the oldest record
// is cached in headLen; it is popped from the index ring when the previous
// record is fully consumed, or immediately on EndChapter when nothing is
// cached (drained).
//
// A record moves through: written (pending) → committed by EndChapter →
// partially read by ReadByte → consumed, after which the next record's
// length is loaded.
type ChapteredRingBuffer struct {
	data  RingBuffer
	index RingBuffer

	headLen int
	pending int
	drained bool
}

// NewChaptered creates a ChapteredRingBuffer over the given data and index
// storage. See Init.
func NewChaptered(data, index []byte) (*ChapteredRingBuffer, error) {
	cb := new(ChapteredRingBuffer)
	if err := cb.Init(data, index); err != nil {
		return nil, err
	}
	return cb, nil
}

// Init resets cb to empty over the given storage. data holds record bytes;
// index holds record lengths and must be a non-zero multiple of
// ChapterWordSize bytes, giving room for len(index)/ChapterWordSize queued
// records. Returns ErrInvalidCapacity, leaving cb unchanged, if either
// storage is unusable.
func (cb *ChapteredRingBuffer) Init(data, index []byte) error {
	if len(data) < MinCapacity || uint64(len(data)) > math.MaxUint32 {
		return ErrInvalidCapacity
	}
	if len(index) < ChapterWordSize || len(index)%ChapterWordSize != 0 {
		return ErrInvalidCapacity
	}
	if err := cb.data.Init(data); err != nil {
		return err
	}
	if err := cb.index.Init(index); err != nil {
		return err
	}
	cb.headLen = 0
	cb.pending = 0
	cb.drained = true
	return nil
}

// WriteByte appends c to the open chapter.
// Returns ErrChapterFull if no further chapter could be committed, or
// ErrBufferFull if the data ring is full.
func (cb *ChapteredRingBuffer) WriteByte(c byte) error {
	if cb.ChapterFree() == 0 {
		return ErrChapterFull
	}
	if err := cb.data.WriteByte(c); err != nil {
		return err
	}
	cb.pending++
	return nil
}

// Write appends all of p to the open chapter, or nothing.
// Returns ErrChapterFull if no further chapter could be committed, or
// ErrBufferFull if p does not fit in the data ring.
func (cb *ChapteredRingBuffer) Write(p []byte) (int, error) {
	if cb.ChapterFree() == 0 {
		return 0, ErrChapterFull
	}
	n, err := cb.data.Write(p)
	if err != nil {
		return 0, err
	}
	cb.pending += n
	return n, nil
}

// EndChapter commits the bytes written since the last commit as one
// chapter. Returns ErrNothingPending if nothing has been written.
func (cb *ChapteredRingBuffer) EndChapter() error {
	if cb.pending == 0 {
		return ErrNothingPending
	}
	if err := cb.pushWord(cb.pending); err != nil {
		return err
	}
	cb.pending = 0
	if cb.drained {
		cb.headLen = cb.popWord()
		cb.drained = false
	}
	return nil
}

// ReadByte removes and returns the next byte of the oldest chapter.
// Returns ErrNoChapter if no committed chapter is available.
func (cb *ChapteredRingBuffer) ReadByte() (byte, error) {
	if cb.headLen == 0 {
		return 0, ErrNoChapter
	}
	c, err := cb.data.ReadByte()
	if err != nil {
		return 0, err
	}
	cb.headLen--
	if cb.headLen == 0 {
		cb.loadHead()
	}
	return c, nil
}

// ReadChapter removes the rest of the oldest chapter into p and returns its
// length. Returns ErrNoChapter if no committed chapter is available and
// io.ErrShortBuffer if p is shorter than HeadChapterLen(); nothing is
// consumed in either case.
func (cb *ChapteredRingBuffer) ReadChapter(p []byte) (int, error) {
	if cb.headLen == 0 {
		return 0, ErrNoChapter
	}
	if len(p) < cb.headLen {
		return 0, io.ErrShortBuffer
	}
	n, err := cb.data.ReadFull(p[:cb.headLen])
	if err != nil {
		return 0, err
	}
	cb.headLen = 0
	cb.loadHead()
	return n, nil
}

// AppendChapter removes the rest of the oldest chapter and appends it to
// dst, growing dst if needed.
func (cb *ChapteredRingBuffer) AppendChapter(dst []byte) ([]byte, error) {
	if cb.headLen == 0 {
		return dst, ErrNoChapter
	}
	off := len(dst)
	dst = slices.Grow(dst, cb.headLen)[:off+cb.headLen]
	n, err := cb.ReadChapter(dst[off:])
	return dst[:off+n], err
}

// DeleteChapters discards the n oldest chapters, including whatever is left
// of a partially read one. Returns ErrUnderflow, removing nothing, if fewer
// than n chapters are queued.
func (cb *ChapteredRingBuffer) DeleteChapters(n int) error {
	if n < 0 {
		return ErrInvalidLength
	}
	if n > cb.ChapterCount() {
		return ErrUnderflow
	}
	if n == 0 {
		return nil
	}
	total := cb.headLen
	for i := 1; i < n; i++ {
		total += cb.popWord()
	}
	if err := cb.data.Discard(total); err != nil {
		return err
	}
	cb.headLen = 0
	cb.loadHead()
	return nil
}

// Reset drops every chapter, including the open one.
func (cb *ChapteredRingBuffer) Reset() {
	cb.data.Reset()
	cb.index.Reset()
	cb.headLen = 0
	cb.pending = 0
	cb.drained = true
}

// ChapterCount returns the number of committed chapters not yet fully
// consumed.
func (cb *ChapteredRingBuffer) ChapterCount() int {
	n := cb.index.Len() / ChapterWordSize
	if cb.headLen > 0 {
		n++
	}
	return n
}

// HeadChapterLen returns the number of unread bytes in the oldest chapter,
// or 0 if there is none.
func (cb *ChapteredRingBuffer) HeadChapterLen() int {
	return cb.headLen
}

// PendingLen returns the number of bytes written to the open chapter.
func (cb *ChapteredRingBuffer) PendingLen() int {
	return cb.pending
}

// Len returns the number of bytes in the data ring, committed or pending.
func (cb *ChapteredRingBuffer) Len() int {
	return cb.data.Len()
}

// DataFree returns the free space of the data ring.
func (cb *ChapteredRingBuffer) DataFree() int {
	return cb.data.Free()
}

// ChapterFree returns how many more chapters the index ring can queue.
func (cb *ChapteredRingBuffer) ChapterFree() int {
	return cb.index.Free() / ChapterWordSize
}

// loadHead caches the next queued length as the head chapter, or marks the
// buffer drained if the queue is empty.
func (cb *ChapteredRingBuffer) loadHead() {
	if cb.index.Len() >= ChapterWordSize {
		cb.headLen = cb.popWord()
		return
	}
	cb.drained = true
}

func (cb *ChapteredRingBuffer) pushWord(n int) error {
	var w [ChapterWordSize]byte
	binary.LittleEndian.PutUint32(w[:], uint32(n))
	if _, err := cb.index.Write(w[:]); err != nil {
		return ErrChapterFull
	}
	return nil
}

// popWord removes the oldest queued length. The caller guarantees one is
// queued.
func (cb *ChapteredRingBuffer) popWord() int {
	var w [ChapterWordSize]byte
	cb.index.ReadFull(w[:])
	return int(binary.LittleEndian.Uint32(w[:]))
}

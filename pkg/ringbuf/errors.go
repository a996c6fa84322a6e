package ringbuf

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every failed operation leaves the buffer exactly as it was.
var (
	// ErrInvalidCapacity is returned when the storage given to Init is too
	// small (or, for the index ring, not a whole number of length words).
	ErrInvalidCapacity = errors.New("ringbuf: invalid capacity")

	// ErrBufferFull is returned when a write does not fit in the free space.
	ErrBufferFull = errors.New("ringbuf: buffer full")

	// ErrChapterFull is returned by chaptered writes when the index ring has
	// no room left for another record length. It matches ErrBufferFull.
	ErrChapterFull = fmt.Errorf("%w: chapter capacity exceeded", ErrBufferFull)

	// ErrUnderflow is returned when a read or discard asks for more than is
	// stored.
	ErrUnderflow = errors.New("ringbuf: underflow")

	// ErrNotFound is returned when a keyword search finds no match.
	ErrNotFound = errors.New("ringbuf: keyword not found")

	// ErrNothingPending is returned by EndChapter when no byte has been
	// written since the last committed chapter.
	ErrNothingPending = errors.New("ringbuf: no pending chapter")

	// ErrNoChapter is returned by chapter reads when no committed chapter is
	// available.
	ErrNoChapter = errors.New("ringbuf: no chapter")

	// ErrInvalidKeyword is returned when a keyword size is outside 1..4.
	ErrInvalidKeyword = errors.New("ringbuf: keyword size must be 1 to 4 bytes")

	// ErrInvalidLength is returned for negative lengths and counts.
	ErrInvalidLength = errors.New("ringbuf: invalid length")
)

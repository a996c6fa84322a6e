package ringbuf

import (
	"encoding/binary"
)

// MaxKeywordSize is the longest keyword, in bytes, that FindKeyword and
// InsertKeyword accept.
const MaxKeywordSize = 4

// InsertKeyword writes the low size bytes of keyword into the buffer, laid
// out in the given byte order. A nil order means binary.BigEndian, which
// writes the most significant configured byte first.
//
// Like Write, it writes all size bytes or nothing.
func (rb *RingBuffer) InsertKeyword(keyword uint32, size int, order binary.ByteOrder) error {
	seq, err := keywordBytes(keyword, size, order)
	if err != nil {
		return err
	}
	_, err = rb.Write(seq[:size])
	return err
}

// FindKeyword searches the stored bytes, starting at the oldest, for the
// first occurrence of the low size bytes of keyword laid out in the given
// byte order. It consumes nothing.
//
// On a match it returns the number of bytes from the oldest stored byte up
// to and including the keyword, which is exactly how many bytes a following
// ReadFull needs to take the keyword out. Returns ErrNotFound if there is no
// match within the stored bytes.
func (rb *RingBuffer) FindKeyword(keyword uint32, size int, order binary.ByteOrder) (int, error) {
	seq, err := keywordBytes(keyword, size, order)
	if err != nil {
		return 0, err
	}
	if rb.length < size {
		return 0, ErrNotFound
	}

	// The search compares the stored bytes as a value assembled most
	// significant byte first, so the target is the stored sequence read the
	// same way, and its leading byte is the cheap trigger.
	target := getWord(seq[:size], 0, size)
	trigger := seq[0]

	pos := rb.head
	for distance := 0; distance <= rb.length-size; distance++ {
		if rb.buf[pos] == trigger && getWord(rb.buf, pos, size) == target {
			return distance + size, nil
		}
		pos = rb.advance(pos, 1)
	}
	return 0, ErrNotFound
}

// keywordBytes returns keyword's low size bytes in the order they are
// stored in the buffer.
func keywordBytes(keyword uint32, size int, order binary.ByteOrder) (seq [MaxKeywordSize]byte, err error) {
	if size < 1 || size > MaxKeywordSize {
		return seq, ErrInvalidKeyword
	}
	var be [MaxKeywordSize]byte
	binary.BigEndian.PutUint32(be[:], keyword)
	copy(seq[:], be[MaxKeywordSize-size:])
	if order != nil && !isBigEndian(order) {
		for i, j := 0, size-1; i < j; i, j = i+1, j-1 {
			seq[i], seq[j] = seq[j], seq[i]
		}
	}
	return seq, nil
}

func isBigEndian(order binary.ByteOrder) bool {
	var probe [2]byte
	order.PutUint16(probe[:], 1)
	return probe[1] == 1
}

// getWord assembles size bytes of storage, starting at start and wrapping at
// the end of the slice, into a value with the first byte most significant.
func getWord(storage []byte, start, size int) uint32 {
	var v uint32
	for i := 0; i < size; i++ {
		v = v<<8 | uint32(storage[start])
		start++
		if start == len(storage) {
			start = 0
		}
	}
	return v
}

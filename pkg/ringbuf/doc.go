// Package ringbuf provides fixed-capacity circular byte buffers that never
// allocate after initialization.
//
// The package offers two buffer types:
//
//   - RingBuffer: a FIFO of bytes over caller-owned storage. Writes that do
//     not fit and reads that ask for more than is stored fail as a whole;
//     nothing is ever partially written, read or overwritten. It can also
//     search its stored bytes for a 1 to 4 byte keyword without consuming
//     them, which is the usual way to find frame delimiters in a serial
//     stream.
//
//   - ChapteredRingBuffer: two RingBuffers working together. One holds the
//     message bytes and the other holds a queue of record lengths, so a
//     producer can write variable-length records ("chapters") and a consumer
//     can take them back out whole, in order, without any delimiter bytes
//     being embedded in the data.
//
// Neither type is safe for concurrent use. A producer and a consumer running
// on different goroutines must share a lock.
//
// Example usage:
//
//	var storage [256]byte
//	rb, _ := ringbuf.New(storage[:])
//	rb.Write([]byte("AT+OK\r\n"))
//	n, _ := rb.FindKeyword(0x0d0a, 2, binary.BigEndian)
//	line := make([]byte, n)
//	rb.ReadFull(line)
//
//	var data [512]byte
//	var index [ringbuf.ChapterWordSize * 16]byte
//	cb, _ := ringbuf.NewChaptered(data[:], index[:])
//	cb.Write([]byte("hello"))
//	cb.EndChapter()
//	msg, _ := cb.AppendChapter(nil)
package ringbuf

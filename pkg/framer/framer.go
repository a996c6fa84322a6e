// Package framer splits an unframed byte stream into records at a 1 to 4
// byte delimiter, such as "\r\n" on a serial line.
//
// Incoming bytes are staged in a ringbuf.RingBuffer. Each time a delimiter is
// found with FindKeyword, the bytes up to it are moved into a
// ringbuf.ChapteredRingBuffer as one chapter, where they wait for the
// consumer. All storage is supplied by the caller; the only allocation is a
// scratch slice the size of the staging ring, made once in New.
package framer

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haivivi/ringbuf/pkg/ringbuf"
)

// ErrInvalidConfig is returned by New when the configuration is unusable.
var ErrInvalidConfig = errors.New("framer: invalid config")

// Config configures a Framer.
type Config struct {
	// Raw is the staging storage for bytes not yet framed. It must be longer
	// than the delimiter.
	Raw []byte

	// Data and Index back the chapter queue. Data must be at least as long
	// as Raw so that any staged frame fits once the queue drains.
	Data  []byte
	Index []byte

	// Delimiter holds the delimiter in its low DelimiterSize bytes.
	Delimiter     uint32
	DelimiterSize int

	// ByteOrder is the order the delimiter bytes appear in the stream.
	// Nil means big-endian.
	ByteOrder binary.ByteOrder

	// KeepDelimiter keeps the delimiter at the end of each frame.
	KeepDelimiter bool

	// Logger receives overrun warnings and per-frame debug logs.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Stats counts what a Framer has processed.
type Stats struct {
	BytesIn  int64 `json:"bytes_in" yaml:"bytes_in" msgpack:"bytes_in"`
	Frames   int64 `json:"frames" yaml:"frames" msgpack:"frames"`
	Empty    int64 `json:"empty" yaml:"empty" msgpack:"empty"`
	Overruns int64 `json:"overruns" yaml:"overruns" msgpack:"overruns"`
	Dropped  int64 `json:"dropped" yaml:"dropped" msgpack:"dropped"`
}

// Framer frames a byte stream into chapters. It is not safe for concurrent
// use.
type Framer struct {
	raw ringbuf.RingBuffer
	out ringbuf.ChapteredRingBuffer

	scratch []byte
	delim   uint32
	size    int
	order   binary.ByteOrder
	keep    bool

	logger *slog.Logger
	stats  Stats
}

// New creates a Framer from cfg.
func New(cfg Config) (*Framer, error) {
	if cfg.DelimiterSize < 1 || cfg.DelimiterSize > ringbuf.MaxKeywordSize {
		return nil, fmt.Errorf("%w: delimiter size %d", ErrInvalidConfig, cfg.DelimiterSize)
	}
	if len(cfg.Raw) <= cfg.DelimiterSize {
		return nil, fmt.Errorf("%w: raw storage of %d bytes is too small", ErrInvalidConfig, len(cfg.Raw))
	}
	if len(cfg.Data) < len(cfg.Raw) {
		return nil, fmt.Errorf("%w: data storage (%d) smaller than raw storage (%d)",
			ErrInvalidConfig, len(cfg.Data), len(cfg.Raw))
	}
	f := &Framer{
		scratch: make([]byte, len(cfg.Raw)),
		delim:   cfg.Delimiter,
		size:    cfg.DelimiterSize,
		order:   cfg.ByteOrder,
		keep:    cfg.KeepDelimiter,
		logger:  cfg.Logger,
	}
	if f.order == nil {
		f.order = binary.BigEndian
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if err := f.raw.Init(cfg.Raw); err != nil {
		return nil, fmt.Errorf("framer: raw storage: %w", err)
	}
	if err := f.out.Init(cfg.Data, cfg.Index); err != nil {
		return nil, fmt.Errorf("framer: chapter storage: %w", err)
	}
	return f, nil
}

// Feed stages as much of p as there is room for and frames everything it
// can. It returns the number of bytes of p accepted; the caller feeds the
// rest again after taking frames out with Next.
//
// When the staging ring fills up without a delimiter, its content is
// dropped as an overrun so framing can resynchronize on the next delimiter.
// Feed returns ringbuf.ErrBufferFull only if none of p could be accepted
// because the chapter queue is full. Feed(nil) frames staged bytes again
// after the consumer has made room.
func (f *Framer) Feed(p []byte) (int, error) {
	accepted := 0
	for {
		if n := min(len(p)-accepted, f.raw.Free()); n > 0 {
			f.raw.Write(p[accepted : accepted+n])
			accepted += n
			f.stats.BytesIn += int64(n)
		}
		if blocked := f.extract(); blocked {
			break
		}
		if accepted == len(p) {
			break
		}
		if f.raw.Free() == 0 {
			f.overrun()
		}
	}
	if accepted == 0 && len(p) > 0 {
		return 0, ringbuf.ErrBufferFull
	}
	return accepted, nil
}

// Flush frames whatever is staged as a final frame without a delimiter,
// typically at end of input.
func (f *Framer) Flush() error {
	n := f.raw.Len()
	if n == 0 {
		return nil
	}
	if f.out.ChapterFree() == 0 || f.out.DataFree() < n {
		return fmt.Errorf("framer: flush %d bytes: %w", n, ringbuf.ErrBufferFull)
	}
	f.move(n, n)
	return nil
}

// Next removes the oldest frame and appends it to dst.
// Returns ringbuf.ErrNoChapter if no frame is ready.
func (f *Framer) Next(dst []byte) ([]byte, error) {
	return f.out.AppendChapter(dst)
}

// Frames returns the number of frames ready for Next.
func (f *Framer) Frames() int {
	return f.out.ChapterCount()
}

// Staged returns the number of bytes waiting for a delimiter.
func (f *Framer) Staged() int {
	return f.raw.Len()
}

// Stats returns the running counters.
func (f *Framer) Stats() Stats {
	return f.stats
}

// Chapters exposes the chapter queue, for consumers that drain frames
// directly (see spool.Spooler).
func (f *Framer) Chapters() *ringbuf.ChapteredRingBuffer {
	return &f.out
}

// extract moves every complete frame from the staging ring to the chapter
// queue. It reports whether it stopped because the queue is full.
func (f *Framer) extract() (blocked bool) {
	for {
		d, err := f.raw.FindKeyword(f.delim, f.size, f.order)
		if err != nil {
			return false
		}
		frameLen := d
		if !f.keep {
			frameLen -= f.size
		}
		if frameLen == 0 {
			f.raw.Discard(d)
			f.stats.Empty++
			continue
		}
		if f.out.ChapterFree() == 0 || f.out.DataFree() < frameLen {
			return true
		}
		f.move(d, frameLen)
	}
}

// move takes n staged bytes and commits the first frameLen of them as a
// chapter. The caller has checked there is room.
func (f *Framer) move(n, frameLen int) {
	buf := f.scratch[:n]
	f.raw.ReadFull(buf)
	f.out.Write(buf[:frameLen])
	f.out.EndChapter()
	f.stats.Frames++
	f.logger.Debug("framer: frame", "len", frameLen, "queued", f.out.ChapterCount())
}

// overrun drops the staged bytes, keeping a tail that could still be the
// start of a delimiter.
func (f *Framer) overrun() {
	drop := f.raw.Len() - (f.size - 1)
	f.raw.Discard(drop)
	f.stats.Overruns++
	f.stats.Dropped += int64(drop)
	f.logger.Warn("framer: overrun, no delimiter in staging buffer", "dropped", drop)
}

// ParseDelimiter parses a delimiter written as hex, such as "0d0a" or
// "0x7e", returning the value and its size in bytes.
func ParseDelimiter(s string) (uint32, int, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	s = strings.ReplaceAll(s, " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, 0, fmt.Errorf("framer: parse delimiter %q: %w", s, err)
	}
	if len(b) < 1 || len(b) > ringbuf.MaxKeywordSize {
		return 0, 0, fmt.Errorf("framer: delimiter %q must be 1 to %d bytes", s, ringbuf.MaxKeywordSize)
	}
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v, len(b), nil
}

// ParseByteOrder parses "big" or "little". An empty string means big-endian.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "big", "be", "big-endian":
		return binary.BigEndian, nil
	case "little", "le", "little-endian":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("framer: unknown byte order %q", s)
	}
}

package cli

import (
	"bytes"
	"io"
	"sync"

	"github.com/haivivi/ringbuf/pkg/ringbuf"
)

// LogWriter implements io.Writer and keeps the most recent log lines in a
// ChapteredRingBuffer, one chapter per line. When a line does not fit, the
// oldest lines are evicted until it does. Lines longer than the whole data
// ring are cut to fit; empty lines are not kept.
//
// It is safe for concurrent use, so it can sit behind an slog handler.
type LogWriter struct {
	mu   sync.Mutex
	ring ringbuf.ChapteredRingBuffer
	ch   chan string
}

// NewLogWriter creates a log writer keeping at most maxLines lines
// (minimum 2) and maxBytes bytes of text.
func NewLogWriter(maxLines, maxBytes int) (*LogWriter, error) {
	w := &LogWriter{ch: make(chan string, 100)}
	// The head chapter's length lives outside the index ring, so the index
	// needs one word less than the number of lines.
	words := max(maxLines-1, 1)
	if err := w.ring.Init(make([]byte, maxBytes), make([]byte, ringbuf.IndexSize(words))); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer.
// Handles multi-line input by splitting on newlines.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := bytes.TrimRight(p, "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	for line := range bytes.SplitSeq(text, []byte{'\n'}) {
		w.add(line)

		// Non-blocking send to channel
		select {
		case w.ch <- string(line):
		default:
		}
	}
	return len(p), nil
}

func (w *LogWriter) add(line []byte) {
	if len(line) == 0 {
		return
	}
	dataCap := w.ring.Len() + w.ring.DataFree()
	if len(line) > dataCap {
		line = line[:dataCap]
	}
	for w.ring.ChapterFree() == 0 || w.ring.DataFree() < len(line) {
		if err := w.ring.DeleteChapters(1); err != nil {
			return
		}
	}
	w.ring.Write(line)
	w.ring.EndChapter()
}

// Lines returns the buffered lines, oldest first, without consuming them.
func (w *LogWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Drain into a list and write every line back; the ring holds exactly
	// the same lines afterwards.
	n := w.ring.ChapterCount()
	lines := make([]string, 0, n)
	var buf []byte
	for range n {
		var err error
		buf, err = w.ring.AppendChapter(buf[:0])
		if err != nil {
			break
		}
		lines = append(lines, string(buf))
	}
	for _, line := range lines {
		w.ring.Write([]byte(line))
		w.ring.EndChapter()
	}
	return lines
}

// Len returns the number of buffered lines.
func (w *LogWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ring.ChapterCount()
}

// WriteTo writes the buffered lines to dst, one per line, and empties the
// buffer.
func (w *LogWriter) WriteTo(dst io.Writer) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var total int64
	var buf []byte
	for w.ring.ChapterCount() > 0 {
		var err error
		buf, err = w.ring.AppendChapter(buf[:0])
		if err != nil {
			return total, err
		}
		buf = append(buf, '\n')
		n, err := dst.Write(buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Channel returns the notification channel for new lines.
func (w *LogWriter) Channel() <-chan string {
	return w.ch
}

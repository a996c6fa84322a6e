package cli

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestLogWriter_KeepsRecentLines(t *testing.T) {
	w, err := NewLogWriter(3, 64)
	if err != nil {
		t.Fatalf("NewLogWriter error: %v", err)
	}
	for i := range 5 {
		fmt.Fprintf(w, "line %d\n", i)
	}
	if got, want := w.Lines(), []string{"line 2", "line 3", "line 4"}; !slices.Equal(got, want) {
		t.Fatalf("Lines() = %q, want %q", got, want)
	}
	// Lines does not consume.
	if w.Len() != 3 {
		t.Fatalf("Len() = %d", w.Len())
	}
}

func TestLogWriter_EvictsByBytes(t *testing.T) {
	w, _ := NewLogWriter(10, 10)
	w.Write([]byte("aaaa\nbbbb\ncccc\n"))
	if got := w.Lines(); !slices.Equal(got, []string{"bbbb", "cccc"}) {
		t.Fatalf("Lines() = %q", got)
	}
	// A line longer than the buffer is cut and replaces everything.
	w.Write([]byte(strings.Repeat("x", 20)))
	if got := w.Lines(); len(got) != 1 || got[0] != strings.Repeat("x", 10) {
		t.Fatalf("Lines() = %q", got)
	}
}

func TestLogWriter_MultiLineAndChannel(t *testing.T) {
	w, _ := NewLogWriter(4, 64)
	n, err := w.Write([]byte("one\n\ntwo\n"))
	if err != nil || n != 9 {
		t.Fatalf("Write n=%d err=%v", n, err)
	}
	if got := w.Lines(); !slices.Equal(got, []string{"one", "two"}) {
		t.Fatalf("Lines() = %q", got)
	}
	if got := <-w.Channel(); got != "one" {
		t.Fatalf("channel got %q", got)
	}
}

func TestLogWriter_WriteTo(t *testing.T) {
	w, _ := NewLogWriter(4, 64)
	w.Write([]byte("a\nb\n"))
	var buf bytes.Buffer
	n, err := w.WriteTo(&buf)
	if err != nil || n != 4 || buf.String() != "a\nb\n" {
		t.Fatalf("n=%d err=%v out=%q", n, err, buf.String())
	}
	if w.Len() != 0 {
		t.Fatalf("WriteTo should empty the buffer, Len() = %d", w.Len())
	}
}

func TestLogWriter_Concurrent(t *testing.T) {
	w, _ := NewLogWriter(8, 256)
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Go(func() {
			for j := range 50 {
				fmt.Fprintf(w, "g%d-%d\n", i, j)
			}
		})
	}
	wg.Wait()
	if w.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", w.Len())
	}
}

func TestNewLogWriter_Invalid(t *testing.T) {
	if _, err := NewLogWriter(4, 1); err == nil {
		t.Fatal("expected error for a 1 byte buffer")
	}
}

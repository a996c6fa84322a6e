package commands

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/ringbuf/pkg/cli"
	"github.com/haivivi/ringbuf/pkg/framer"
	"github.com/haivivi/ringbuf/pkg/ringbuf"
)

// layoutFlags maps buffer layout flags to profile keys.
var layoutFlags = []struct {
	flag string
	key  string
}{
	{"data-cap", "data_capacity"},
	{"index-words", "index_words"},
	{"raw-cap", "raw_capacity"},
	{"delim", "delimiter"},
	{"delim-size", "delimiter_size"},
	{"order", "byte_order"},
	{"keep", "keep_delimiter"},
	{"chunk", "chunk_size"},
}

// addLayoutFlags registers flags that override the active profile.
func addLayoutFlags(fs *pflag.FlagSet) {
	fs.Int("data-cap", 0, "chapter data ring size in bytes")
	fs.Int("index-words", 0, "number of chapters the index ring can queue")
	fs.Int("raw-cap", 0, "staging ring size in bytes")
	fs.String("delim", "", "frame delimiter in hex, e.g. 0d0a")
	fs.Int("delim-size", 0, "delimiter size in bytes (pads --delim)")
	fs.String("order", "", "delimiter byte order: big or little")
	fs.Bool("keep", false, "keep delimiters at the end of frames")
	fs.Int("chunk", 0, "read size when feeding input")
}

// layout is a resolved and checked buffer layout.
type layout struct {
	profile   *cli.Profile
	delim     uint32
	delimSize int
	order     binary.ByteOrder
}

// resolveLayout applies changed layout flags of cmd on top of the active
// profile.
func resolveLayout(cmd *cobra.Command) (*layout, error) {
	p, err := getProfile()
	if err != nil {
		return nil, err
	}
	p = p.WithDefaults()
	for _, lf := range layoutFlags {
		f := cmd.Flags().Lookup(lf.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := p.Set(lf.key, f.Value.String()); err != nil {
			return nil, fmt.Errorf("--%s: %w", lf.flag, err)
		}
	}
	return checkLayout(p)
}

// checkLayout validates the sizes and framing of p, which must have
// defaults applied.
func checkLayout(p *cli.Profile) (*layout, error) {
	delim, size, err := framer.ParseDelimiter(p.Delimiter)
	if err != nil {
		return nil, err
	}
	if p.DelimiterSize > 0 {
		if p.DelimiterSize < size || p.DelimiterSize > ringbuf.MaxKeywordSize {
			return nil, fmt.Errorf("delimiter size %d cannot hold %q", p.DelimiterSize, p.Delimiter)
		}
		size = p.DelimiterSize
	}
	order, err := framer.ParseByteOrder(p.ByteOrder)
	if err != nil {
		return nil, err
	}
	switch {
	case p.DataCapacity < ringbuf.MinCapacity:
		return nil, fmt.Errorf("data capacity %d is below %d", p.DataCapacity, ringbuf.MinCapacity)
	case p.IndexWords < 1:
		return nil, fmt.Errorf("index needs at least one word")
	case p.RawCapacity <= size:
		return nil, fmt.Errorf("raw capacity %d must exceed the delimiter size %d", p.RawCapacity, size)
	case p.DataCapacity < p.RawCapacity:
		return nil, fmt.Errorf("data capacity %d is smaller than raw capacity %d", p.DataCapacity, p.RawCapacity)
	case p.ChunkSize < 1:
		return nil, fmt.Errorf("chunk size must be positive")
	}
	return &layout{profile: p, delim: delim, delimSize: size, order: order}, nil
}

// newFramer allocates the storage described by l.
func (l *layout) newFramer() (*framer.Framer, error) {
	p := l.profile
	return framer.New(framer.Config{
		Raw:           make([]byte, p.RawCapacity),
		Data:          make([]byte, p.DataCapacity),
		Index:         make([]byte, ringbuf.IndexSize(p.IndexWords)),
		Delimiter:     l.delim,
		DelimiterSize: l.delimSize,
		ByteOrder:     l.order,
		KeepDelimiter: p.KeepDelimiter,
		Logger:        slog.Default(),
	})
}

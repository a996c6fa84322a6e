package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/ringbuf/pkg/framer"
	"github.com/haivivi/ringbuf/pkg/ringbuf"
)

var (
	findOrder  string
	findRotate int
	findAll    bool
)

var findCmd = &cobra.Command{
	Use:   "find <hex-keyword> [file|-]",
	Short: "Search input for a 1 to 4 byte keyword",
	Long: `Load input into a ring buffer and search it with FindKeyword.

--rotate moves the ring's start before loading, so the input wraps around
the end of the storage. The exit status is 1 when the keyword is not found.

Examples:
  ringbuf find 0d0a capture.bin
  ringbuf find --all --order little 3412 dump.bin
  printf 'abc\r\ndef' | ringbuf find --rotate 3 0d0a`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringVar(&findOrder, "order", "big", "keyword byte order: big or little")
	findCmd.Flags().IntVar(&findRotate, "rotate", 0, "bytes to advance the ring start before loading")
	findCmd.Flags().BoolVar(&findAll, "all", false, "report every occurrence")
	rootCmd.AddCommand(findCmd)
}

type findResult struct {
	Keyword string `json:"keyword" yaml:"keyword" msgpack:"keyword"`
	Size    int    `json:"size" yaml:"size" msgpack:"size"`
	Order   string `json:"order" yaml:"order" msgpack:"order"`
	Length  int    `json:"length" yaml:"length" msgpack:"length"`
	Found   bool   `json:"found" yaml:"found" msgpack:"found"`
	// Offsets are the input positions where the keyword starts.
	Offsets []int `json:"offsets" yaml:"offsets" msgpack:"offsets"`
}

func (r *findResult) TableHeader() []string {
	return []string{"KEYWORD", "LENGTH", "FOUND", "OFFSETS"}
}

func (r *findResult) TableRows() [][]string {
	offsets := make([]string, len(r.Offsets))
	for i, o := range r.Offsets {
		offsets[i] = fmt.Sprint(o)
	}
	return [][]string{{r.Keyword, fmt.Sprint(r.Length), fmt.Sprint(r.Found), strings.Join(offsets, ",")}}
}

func runFind(cmd *cobra.Command, args []string) error {
	keyword, size, err := framer.ParseDelimiter(args[0])
	if err != nil {
		return err
	}
	order, err := framer.ParseByteOrder(findOrder)
	if err != nil {
		return err
	}

	var src string
	if len(args) > 1 {
		src = args[1]
	}
	in, err := openInput(cmd.Context(), src)
	if err != nil {
		return err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	rb, err := loadRing(data, findRotate)
	if err != nil {
		return err
	}
	res := &findResult{
		Keyword: fmt.Sprintf("0x%0*x", size*2, keyword),
		Size:    size,
		Order:   findOrder,
		Length:  len(data),
		Offsets: []int{},
	}
	consumed := 0
	for {
		d, err := rb.FindKeyword(keyword, size, order)
		if errors.Is(err, ringbuf.ErrNotFound) {
			break
		}
		if err != nil {
			return err
		}
		res.Offsets = append(res.Offsets, consumed+d-size)
		if !findAll {
			break
		}
		rb.Discard(d)
		consumed += d
	}
	res.Found = len(res.Offsets) > 0

	if err := output(res); err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("keyword %s: %w", res.Keyword, ringbuf.ErrNotFound)
	}
	return nil
}

// loadRing returns a ring holding data whose start has been advanced by
// rotate bytes, so data wraps when rotate is non-zero.
func loadRing(data []byte, rotate int) (*ringbuf.RingBuffer, error) {
	capacity := max(len(data), ringbuf.MinCapacity)
	if rotate < 0 || rotate >= capacity {
		return nil, fmt.Errorf("--rotate must be in [0, %d)", capacity)
	}
	rb, err := ringbuf.New(make([]byte, capacity))
	if err != nil {
		return nil, err
	}
	if rotate > 0 {
		rb.Write(make([]byte, rotate))
		rb.Discard(rotate)
	}
	if _, err := rb.Write(data); err != nil {
		return nil, err
	}
	return rb, nil
}

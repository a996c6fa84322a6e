package commands

import (
	"bytes"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/ringbuf/pkg/cli"
	"github.com/haivivi/ringbuf/pkg/ringbuf"
)

var (
	simMessages int
	simSeed     uint64
	simMaxMsg   int
	simMaxChunk int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a producer/consumer simulation over a chaptered ring",
	Long: `Run a producer and a consumer goroutine over one chaptered ring buffer.

The producer writes each message in random sized pieces and ends a chapter
after the last piece, waiting whenever the ring is full. The consumer reads
whole chapters and checks they arrive intact and in order. Messages are
derived from --seed, so a run can be repeated.

Examples:
  ringbuf simulate --messages 100000 -f table
  ringbuf simulate --data-cap 64 --index-words 2 --max-msg 48`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Int("data-cap", 0, "chapter data ring size in bytes")
	simulateCmd.Flags().Int("index-words", 0, "number of chapters the index ring can queue")
	simulateCmd.Flags().IntVar(&simMessages, "messages", 1000, "number of messages")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1, "random seed")
	simulateCmd.Flags().IntVar(&simMaxMsg, "max-msg", 64, "maximum message length")
	simulateCmd.Flags().IntVar(&simMaxChunk, "max-chunk", 16, "maximum write size")
	rootCmd.AddCommand(simulateCmd)
}

type simResult struct {
	Messages       int    `json:"messages" yaml:"messages" msgpack:"messages"`
	Bytes          int64  `json:"bytes" yaml:"bytes" msgpack:"bytes"`
	Writes         int64  `json:"writes" yaml:"writes" msgpack:"writes"`
	ProducerWaits  int64  `json:"producer_waits" yaml:"producer_waits" msgpack:"producer_waits"`
	ConsumerWaits  int64  `json:"consumer_waits" yaml:"consumer_waits" msgpack:"consumer_waits"`
	MaxQueued      int    `json:"max_queued" yaml:"max_queued" msgpack:"max_queued"`
	Mismatches     int    `json:"mismatches" yaml:"mismatches" msgpack:"mismatches"`
	Duration       string `json:"duration" yaml:"duration" msgpack:"duration"`
	MessagesPerSec int64  `json:"messages_per_sec" yaml:"messages_per_sec" msgpack:"messages_per_sec"`
}

func (r *simResult) TableHeader() []string {
	return []string{"MESSAGES", "BYTES", "WRITES", "PRODUCER WAITS", "CONSUMER WAITS", "MAX QUEUED", "MISMATCHES", "DURATION"}
}

func (r *simResult) TableRows() [][]string {
	return [][]string{{
		fmt.Sprint(r.Messages), cli.FormatBytes(r.Bytes), fmt.Sprint(r.Writes),
		fmt.Sprint(r.ProducerWaits), fmt.Sprint(r.ConsumerWaits),
		fmt.Sprint(r.MaxQueued), fmt.Sprint(r.Mismatches), r.Duration,
	}}
}

// simMessage returns message i of a run. It depends only on its arguments,
// so the consumer can rebuild what the producer sent.
func simMessage(seed uint64, i, maxLen int) []byte {
	r := rand.New(rand.NewPCG(seed, uint64(i)))
	msg := make([]byte, 1+r.IntN(maxLen))
	for j := range msg {
		msg[j] = byte(r.UintN(256))
	}
	return msg
}

// simulation shares one ring between a producer and a consumer.
type simulation struct {
	mu   sync.Mutex
	cond *sync.Cond
	ring *ringbuf.ChapteredRingBuffer

	seed     uint64
	messages int
	maxMsg   int
	maxChunk int

	failed bool
	res    simResult
}

func (s *simulation) produce() {
	r := rand.New(rand.NewPCG(s.seed, ^uint64(0)))
	for i := range s.messages {
		msg := simMessage(s.seed, i, s.maxMsg)
		for len(msg) > 0 {
			n := min(len(msg), 1+r.IntN(s.maxChunk))
			s.mu.Lock()
			for !s.failed && (s.ring.ChapterFree() == 0 || s.ring.DataFree() < n) {
				s.res.ProducerWaits++
				s.cond.Wait()
			}
			if s.failed {
				s.mu.Unlock()
				return
			}
			s.ring.Write(msg[:n])
			s.res.Writes++
			s.res.Bytes += int64(n)
			s.cond.Broadcast()
			s.mu.Unlock()
			msg = msg[n:]
		}
		s.mu.Lock()
		s.ring.EndChapter()
		s.res.MaxQueued = max(s.res.MaxQueued, s.ring.ChapterCount())
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *simulation) consume() {
	var buf []byte
	for i := range s.messages {
		s.mu.Lock()
		for s.ring.ChapterCount() == 0 {
			s.res.ConsumerWaits++
			s.cond.Wait()
		}
		var err error
		buf, err = s.ring.AppendChapter(buf[:0])
		s.cond.Broadcast()
		s.mu.Unlock()

		if err != nil || !bytes.Equal(buf, simMessage(s.seed, i, s.maxMsg)) {
			slog.Error("simulate: message mismatch", "index", i, "len", len(buf), "error", err)
			s.mu.Lock()
			s.res.Mismatches++
			s.failed = true
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		s.res.Messages++
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	p, err := getProfile()
	if err != nil {
		return err
	}
	p = p.WithDefaults()
	if f := cmd.Flags().Lookup("data-cap"); f.Changed {
		p.DataCapacity, _ = cmd.Flags().GetInt("data-cap")
	}
	if f := cmd.Flags().Lookup("index-words"); f.Changed {
		p.IndexWords, _ = cmd.Flags().GetInt("index-words")
	}
	switch {
	case simMessages < 1:
		return fmt.Errorf("--messages must be positive")
	case simMaxMsg < 1 || simMaxChunk < 1:
		return fmt.Errorf("--max-msg and --max-chunk must be positive")
	case simMaxMsg > p.DataCapacity:
		// A message longer than the data ring could never be written.
		return fmt.Errorf("--max-msg %d exceeds data capacity %d", simMaxMsg, p.DataCapacity)
	}

	ring, err := ringbuf.NewChaptered(make([]byte, p.DataCapacity), make([]byte, ringbuf.IndexSize(p.IndexWords)))
	if err != nil {
		return err
	}
	s := &simulation{
		ring:     ring,
		seed:     simSeed,
		messages: simMessages,
		maxMsg:   simMaxMsg,
		maxChunk: simMaxChunk,
	}
	s.cond = sync.NewCond(&s.mu)

	slog.Debug("simulate: start", "messages", simMessages, "data_cap", p.DataCapacity, "index_words", p.IndexWords)
	start := time.Now()
	var wg sync.WaitGroup
	wg.Go(s.produce)
	wg.Go(s.consume)
	wg.Wait()
	elapsed := time.Since(start)

	s.res.Duration = cli.FormatDuration(elapsed)
	if secs := elapsed.Seconds(); secs > 0 {
		s.res.MessagesPerSec = int64(float64(s.res.Messages) / secs)
	}
	if err := output(&s.res); err != nil {
		return err
	}
	if s.res.Mismatches > 0 {
		return fmt.Errorf("simulation failed after %d messages", s.res.Messages)
	}
	return nil
}

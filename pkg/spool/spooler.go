package spool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/ringbuf/pkg/ringbuf"
)

// Spooler drains chapters into a Store under one session, numbering them
// in the order they are drained. It is not safe for concurrent use.
type Spooler struct {
	store   Store
	session string
	seq     uint64
	logger  *slog.Logger

	// unsaved holds records that were taken out of the ring but failed to
	// reach the store; they are retried first on the next Drain.
	unsaved []Record

	now func() time.Time
}

// SpoolerOptions configures a Spooler.
type SpoolerOptions struct {
	// Session is the session ID to write. Empty means a new random UUID.
	Session string

	// NextSeq is the sequence number of the first record, for resuming a
	// session.
	NextSeq uint64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewSpooler creates a Spooler writing to store.
func NewSpooler(store Store, opts SpoolerOptions) (*Spooler, error) {
	session := opts.Session
	if session == "" {
		session = uuid.NewString()
	}
	if err := validSession(session); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Spooler{
		store:   store,
		session: session,
		seq:     opts.NextSeq,
		logger:  logger.With("session", session),
		now:     time.Now,
	}, nil
}

// Session returns the session ID records are written under.
func (s *Spooler) Session() string {
	return s.session
}

// NextSeq returns the sequence number the next record will get.
func (s *Spooler) NextSeq() uint64 {
	return s.seq
}

// Unsaved returns the number of records waiting to be retried.
func (s *Spooler) Unsaved() int {
	return len(s.unsaved)
}

// Drain takes every committed chapter out of cb and appends them to the
// store as one batch. It returns the number of records stored.
//
// A chapter leaves the ring before it is stored; if the store fails, the
// records are kept and retried by the next Drain. Drain stops early,
// storing what it has taken, when ctx is cancelled.
func (s *Spooler) Drain(ctx context.Context, cb *ringbuf.ChapteredRingBuffer) (int, error) {
	batch := s.unsaved
	s.unsaved = nil
	for cb.ChapterCount() > 0 && ctx.Err() == nil {
		data, err := cb.AppendChapter(nil)
		if err != nil {
			if errors.Is(err, ringbuf.ErrNoChapter) {
				break
			}
			s.unsaved = batch
			return 0, fmt.Errorf("spool: read chapter: %w", err)
		}
		batch = append(batch, Record{
			Session: s.session,
			Seq:     s.seq,
			Time:    s.now(),
			Data:    data,
		})
		s.seq++
	}
	if len(batch) == 0 {
		return 0, ctx.Err()
	}
	// Store with a context that survives cancellation of ctx, so records
	// already taken from the ring are not left behind.
	if err := s.store.Append(context.WithoutCancel(ctx), batch...); err != nil {
		s.unsaved = batch
		s.logger.Error("spool: append failed, will retry", "records", len(batch), "error", err)
		return 0, fmt.Errorf("spool: append %d records: %w", len(batch), err)
	}
	s.logger.Debug("spool: drained", "records", len(batch), "next_seq", s.seq)
	return len(batch), ctx.Err()
}

package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("spool: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger.With("component", "badger")})
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("spool: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Append(ctx context.Context, recs ...Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range recs {
		if err := validSession(r.Session); err != nil {
			return err
		}
		val, err := encodeRecord(r)
		if err != nil {
			return err
		}
		if err := wb.Set(recordKey(r.Session, r.Seq), val); err != nil {
			return fmt.Errorf("spool: append %s/%d: %w", r.Session, r.Seq, err)
		}
	}
	return wb.Flush()
}

func (b *Badger) List(ctx context.Context, session string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if session != "" {
			if err := validSession(session); err != nil {
				yield(Record{}, err)
				return
			}
		}
		prefix := sessionPrefix(session)
		err := b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var rec Record
				err := it.Item().Value(func(val []byte) error {
					var err error
					rec, err = decodeRecord(val)
					return err
				})
				if !yield(rec, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(Record{}, err)
		}
	}
}

func (b *Badger) Sessions(ctx context.Context) ([]string, error) {
	var sessions []string
	prefix := sessionPrefix("")
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		// Keys sort by session, so after the first key of a session the
		// iterator jumps past the rest of it.
		it.Seek(prefix)
		for it.ValidForPrefix(prefix) {
			if err := ctx.Err(); err != nil {
				return err
			}
			session, _, err := parseKey(it.Item().Key())
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
			next := sessionPrefix(session)
			next[len(next)-1]++
			it.Seek(next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (b *Badger) Purge(ctx context.Context, session string) error {
	if err := validSession(session); err != nil {
		return err
	}
	prefix := sessionPrefix(session)
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("spool: purge %s: %w", session, err)
		}
	}
	return wb.Flush()
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger routes badger's printf-style logs to slog, dropping debug
// and info messages.
type badgerLogger struct {
	l *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any) {
	l.l.Error(string(bytes.TrimSpace(fmt.Appendf(nil, f, v...))))
}

func (l badgerLogger) Warningf(f string, v ...any) {
	l.l.Warn(string(bytes.TrimSpace(fmt.Appendf(nil, f, v...))))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}

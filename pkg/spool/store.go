// Package spool persists chapters drained from a ringbuf.ChapteredRingBuffer
// so that framed records outlive the process that captured them.
//
// Records are grouped by session. Each Spooler writes one session, numbering
// its records from zero; a Store keeps them ordered by sequence number.
//
// Two Store implementations are provided: Badger, backed by BadgerDB, and
// Memory, for tests and short-lived tools.
package spool

import (
	"context"
	"iter"
)

// Store persists spooled records.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores records. Records with the same session and sequence
	// number overwrite each other.
	Append(ctx context.Context, recs ...Record) error

	// List iterates over the records of session in sequence order.
	// An empty session lists every record, grouped by session.
	List(ctx context.Context, session string) iter.Seq2[Record, error]

	// Sessions returns the sorted IDs of every session with records.
	Sessions(ctx context.Context) ([]string, error)

	// Purge removes every record of session. Purging an unknown session is
	// not an error.
	Purge(ctx context.Context, session string) error

	// Close releases resources held by the store.
	Close() error
}

var (
	_ Store = (*Badger)(nil)
	_ Store = (*Memory)(nil)
)

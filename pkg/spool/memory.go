package spool

import (
	"bytes"
	"context"
	"iter"
	"slices"
	"sync"
)

// Memory is an in-memory Store. It keeps encoded records in a map keyed the
// same way as Badger, so both stores order and filter identically.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Append(ctx context.Context, recs ...Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded := make(map[string][]byte, len(recs))
	for _, r := range recs {
		if err := validSession(r.Session); err != nil {
			return err
		}
		val, err := encodeRecord(r)
		if err != nil {
			return err
		}
		encoded[string(recordKey(r.Session, r.Seq))] = val
	}
	m.mu.Lock()
	for k, v := range encoded {
		m.data[k] = v
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, session string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if session != "" {
			if err := validSession(session); err != nil {
				yield(Record{}, err)
				return
			}
		}
		prefix := sessionPrefix(session)

		// Snapshot matching entries under the read lock. Values are never
		// mutated after Append, so sharing them is safe.
		type entry struct {
			key string
			val []byte
		}
		var matches []entry
		m.mu.RLock()
		for k, v := range m.data {
			if bytes.HasPrefix([]byte(k), prefix) {
				matches = append(matches, entry{k, v})
			}
		}
		m.mu.RUnlock()
		slices.SortFunc(matches, func(a, b entry) int {
			return bytes.Compare([]byte(a.key), []byte(b.key))
		})

		for _, e := range matches {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(decodeRecord(e.val)) {
				return
			}
		}
	}
}

func (m *Memory) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sessions []string
	for k := range m.data {
		session, _, err := parseKey([]byte(k))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	slices.Sort(sessions)
	return slices.Compact(sessions), nil
}

func (m *Memory) Purge(ctx context.Context, session string) error {
	if err := validSession(session); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := sessionPrefix(session)
	m.mu.Lock()
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			delete(m.data, k)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

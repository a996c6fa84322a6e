package spool

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrInvalidSession is returned for an empty session ID or one that
	// contains the key separator.
	ErrInvalidSession = errors.New("spool: invalid session")

	// ErrInvalidKey is returned when a stored key does not parse.
	ErrInvalidKey = errors.New("spool: invalid key")
)

// Record is one spooled chapter.
type Record struct {
	Session string    `msgpack:"session" json:"session" yaml:"session"`
	Seq     uint64    `msgpack:"seq" json:"seq" yaml:"seq"`
	Time    time.Time `msgpack:"time" json:"time" yaml:"time"`
	Data    []byte    `msgpack:"data" json:"data" yaml:"data"`
}

// Key layout:
//
//	rec:{session}:{seq}    -> msgpack(Record)
//
// seq is zero padded to 20 digits so byte order is sequence order.
const (
	keyPrefix = "rec"
	keySep    = ':'
)

func validSession(session string) error {
	if session == "" || strings.IndexByte(session, keySep) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidSession, session)
	}
	return nil
}

func recordKey(session string, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%c%s%c%020d", keyPrefix, keySep, session, keySep, seq)
}

// sessionPrefix returns the prefix of all keys in session. An empty session
// gives the prefix of every record.
func sessionPrefix(session string) []byte {
	if session == "" {
		return []byte(keyPrefix + string(keySep))
	}
	return fmt.Appendf(nil, "%s%c%s%c", keyPrefix, keySep, session, keySep)
}

// parseKey splits a record key into its session and sequence number.
func parseKey(key []byte) (string, uint64, error) {
	parts := strings.Split(string(key), string(keySep))
	if len(parts) != 3 || parts[0] != keyPrefix {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidKey, key, err)
	}
	return parts[1], seq, nil
}

func encodeRecord(r Record) ([]byte, error) {
	data, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("spool: marshal record %s/%d: %w", r.Session, r.Seq, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("spool: unmarshal record: %w", err)
	}
	return r, nil
}

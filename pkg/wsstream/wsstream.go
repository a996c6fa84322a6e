// Package wsstream reads a byte stream carried in websocket messages, as
// exposed by serial-to-websocket bridges. Message boundaries are not
// preserved: the payloads are concatenated into one stream.
package wsstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the websocket handshake in Dial.
const DefaultHandshakeTimeout = 10 * time.Second

// Reader is an io.ReadCloser over the messages of a websocket connection.
// Read is not safe for concurrent use; Close may be called from any
// goroutine to unblock it.
type Reader struct {
	conn *websocket.Conn
	cur  io.Reader

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to url and returns a Reader over its messages.
func Dial(ctx context.Context, url string, header http.Header) (*Reader, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsstream: dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("wsstream: dial %s: %w", url, err)
	}
	return NewReader(conn), nil
}

// NewReader wraps an established connection.
func NewReader(conn *websocket.Conn) *Reader {
	return &Reader{conn: conn}
}

// Read reads from the current message, moving on to the next one when it
// is exhausted. A normal close by the peer reads as io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			_, msg, err := r.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, fmt.Errorf("wsstream: read: %w", err)
			}
			r.cur = msg
		}
		n, err := r.cur.Read(p)
		if errors.Is(err, io.EOF) {
			r.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Close sends a close frame and closes the connection.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		r.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

var _ io.ReadCloser = (*Reader)(nil)

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/haivivi/ringbuf/pkg/framer"
	"github.com/haivivi/ringbuf/pkg/mqttstream"
	"github.com/haivivi/ringbuf/pkg/wsstream"
)

// openInput opens a file, stdin ("" or "-"), a websocket URL, or an MQTT
// topic (mqtt://host:port/topic).
func openInput(ctx context.Context, arg string) (io.ReadCloser, error) {
	scheme, _, _ := strings.Cut(arg, "://")
	switch {
	case arg == "" || arg == "-":
		return io.NopCloser(os.Stdin), nil
	case scheme == "ws" || scheme == "wss":
		return wsstream.Dial(ctx, arg, nil)
	case scheme == "mqtt" || scheme == "mqtts":
		return mqttstream.Dial(ctx, arg, mqttstream.Options{Logger: slog.Default()})
	default:
		f, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		return f, nil
	}
}

// pump reads r in chunk sized pieces into f, calling drain whenever frames
// are ready. drain must take every ready frame out of f. At EOF the staged
// tail is flushed as a final frame.
func pump(ctx context.Context, r io.Reader, f *framer.Framer, chunk int, drain func() error) error {
	buf := make([]byte, chunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := r.Read(buf)
		for p := buf[:n]; len(p) > 0; {
			k, err := f.Feed(p)
			p = p[k:]
			if f.Frames() > 0 {
				if err := drain(); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read input: %w", rerr)
		}
	}

	// Frames held back by a full queue.
	for {
		f.Feed(nil)
		if f.Frames() == 0 {
			break
		}
		if err := drain(); err != nil {
			return err
		}
	}
	if err := f.Flush(); err != nil {
		return err
	}
	if f.Frames() > 0 {
		return drain()
	}
	return nil
}

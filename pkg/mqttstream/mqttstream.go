// Package mqttstream reads the messages of one MQTT topic as a byte stream.
//
// Serial bridges often publish whatever bytes arrived on a UART as MQTT
// messages without regard for frame boundaries. A Reader concatenates the
// payloads in arrival order so they can be framed again. An empty payload
// marks the end of the stream.
package mqttstream

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
)

const (
	defaultKeepAlive  = 20
	defaultRetryDelay = 3 * time.Second
	defaultQueue      = 256
)

// Options configures Dial. The zero value is usable.
type Options struct {
	// ClientID defaults to a random string.
	ClientID string

	// QoS is the subscription QoS, 0 to 2.
	QoS byte

	// KeepAlive in seconds, default 20.
	KeepAlive uint16

	// ConnectRetryDelay is the wait between connection attempts, default 3s.
	ConnectRetryDelay time.Duration

	// Queue is the number of messages held for the reader. Messages
	// arriving while it is full are dropped. Default 256.
	Queue int

	// TLS is used for mqtts:// URLs.
	TLS *tls.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Reader is an io.ReadCloser over the payloads of one topic.
type Reader struct {
	cm     *autopaho.ConnectionManager
	topic  string
	qos    byte
	logger *slog.Logger

	msgs    chan []byte
	done    chan struct{}
	cur     []byte
	eof     bool
	dropped atomic.Int64

	closeOnce sync.Once
	cancel    context.CancelFunc
	stop      func() bool
}

// ParseURL splits "mqtt://[user:pass@]host:port/topic" into the broker URL
// and the topic. The topic may contain '/' and the wildcard '+'; a '#'
// wildcard must be escaped as %23.
func ParseURL(raw string) (*url.URL, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("mqttstream: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp", "mqtts", "ssl", "tls":
	default:
		return nil, "", fmt.Errorf("mqttstream: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("mqttstream: missing broker address in %q", raw)
	}
	topic := strings.TrimPrefix(u.Path, "/")
	if topic == "" {
		return nil, "", fmt.Errorf("mqttstream: missing topic in %q", raw)
	}
	broker := *u
	broker.Path, broker.RawPath, broker.RawQuery, broker.Fragment = "", "", "", ""
	return &broker, topic, nil
}

// Dial connects to the broker in rawURL and subscribes to its topic. The
// connection is re-established, and the topic subscribed again, until the
// Reader is closed. Cancelling ctx closes the Reader.
func Dial(ctx context.Context, rawURL string, opts Options) (*Reader, error) {
	broker, topic, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	id := opts.ClientID
	if id == "" {
		var b [12]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, err
		}
		id = "ringbuf-" + base64.RawURLEncoding.EncodeToString(b[:])
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queue := opts.Queue
	if queue <= 0 {
		queue = defaultQueue
	}
	keepAlive := opts.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}
	retry := opts.ConnectRetryDelay
	if retry == 0 {
		retry = defaultRetryDelay
	}

	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Reader{
		topic:  topic,
		qos:    opts.QoS,
		logger: logger.With("broker", broker.Host, "topic", topic),
		msgs:   make(chan []byte, queue),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	var connected atomic.Bool
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		TlsCfg:                        opts.TLS,
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: true,
		ConnectRetryDelay:             retry,
		AttemptConnection:             attemptConnection,
		ConnectPacketBuilder:          setCredentials,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			if !connected.Load() {
				return
			}
			r.logger.Info("mqttstream: reconnected")
			go func() {
				if err := r.subscribe(connCtx, cm); err != nil {
					r.logger.Error("mqttstream: resubscribe failed", "error", err)
				}
			}()
		},
		OnConnectError: func(err error) {
			r.logger.Warn("mqttstream: connect failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: id,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					r.receive(pr.Packet.Payload)
					return true, nil
				},
			},
		},
	}

	cm, err := autopaho.NewConnection(connCtx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mqttstream: %w", err)
	}
	r.cm = cm
	if err := cm.AwaitConnection(ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("mqttstream: connect %s: %w", broker.Host, err)
	}
	if err := r.subscribe(ctx, cm); err != nil {
		r.Close()
		return nil, err
	}
	connected.Store(true)
	r.stop = context.AfterFunc(ctx, func() { r.Close() })
	return r, nil
}

func (r *Reader) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) error {
	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: r.topic, QoS: r.qos}},
	})
	if err != nil {
		return fmt.Errorf("mqttstream: subscribe %s: %w", r.topic, err)
	}
	r.logger.Debug("mqttstream: subscribed", "qos", r.qos)
	return nil
}

// receive queues a copy of payload for Read.
func (r *Reader) receive(payload []byte) {
	msg := append([]byte(nil), payload...)
	select {
	case <-r.done:
	case r.msgs <- msg:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("mqttstream: reader queue full, message dropped", "len", len(msg), "dropped", n)
	}
}

// Read implements io.Reader. It blocks until a message arrives.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.cur) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		select {
		case msg := <-r.msgs:
			if len(msg) == 0 {
				r.eof = true
			}
			r.cur = msg
		case <-r.done:
			return 0, io.EOF
		}
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// Dropped returns the number of messages lost to a full queue.
func (r *Reader) Dropped() int64 {
	return r.dropped.Load()
}

// Close disconnects from the broker. Pending Reads return io.EOF.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.cm != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err = r.cm.Disconnect(ctx)
		}
		r.cancel()
		if r.stop != nil {
			r.stop()
		}
	})
	return err
}

func setCredentials(pc *paho.Connect, u *url.URL) (*paho.Connect, error) {
	pc.UsernameFlag, pc.PasswordFlag = false, false
	pc.Username, pc.Password = "", nil
	if u.User == nil {
		return pc, nil
	}
	pc.UsernameFlag = true
	pc.Username = u.User.Username()
	if pwd, ok := u.User.Password(); ok {
		pc.PasswordFlag = true
		pc.Password = []byte(pwd)
	}
	return pc, nil
}

func attemptConnection(ctx context.Context, cc autopaho.ClientConfig, u *url.URL) (net.Conn, error) {
	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	case "mqtts", "ssl", "tls":
		d := tls.Dialer{Config: cc.TlsCfg}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	default:
		return nil, fmt.Errorf("mqttstream: unsupported scheme %q", u.Scheme)
	}
}

var _ io.ReadCloser = (*Reader)(nil)

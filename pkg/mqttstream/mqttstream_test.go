package mqttstream

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	mochimqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startBroker runs an in-process broker and returns it with its address.
func startBroker(t *testing.T) (*mochimqtt.Server, string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	srv := mochimqtt.New(&mochimqtt.Options{InlineClient: true, Logger: quietLogger()})
	if err := srv.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatal(err)
	}
	if err := srv.AddListener(listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})); err != nil {
		t.Fatal(err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, addr
}

func dial(t *testing.T, ctx context.Context, url string) *Reader {
	t.Helper()
	r, err := Dial(ctx, url, Options{ConnectRetryDelay: 50 * time.Millisecond, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestReaderConcatenates(t *testing.T) {
	srv, addr := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := dial(t, ctx, "mqtt://"+addr+"/uart/0")

	for _, msg := range []string{"hel", "lo\r", "\nworld", ""} {
		if err := srv.Publish("uart/0", []byte(msg), false, 0); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	// Another topic is not part of the stream.
	srv.Publish("uart/1", []byte("noise"), false, 0)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello\r\nworld" {
		t.Fatalf("got %q", got)
	}
	if r.Dropped() != 0 {
		t.Fatalf("dropped %d", r.Dropped())
	}
}

func TestReaderSmallReads(t *testing.T) {
	srv, addr := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := dial(t, ctx, "mqtt://"+addr+"/s")

	srv.Publish("s", []byte("abcdef"), false, 0)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil || string(buf[:n]) != "abcd" {
		t.Fatalf("n=%d err=%v buf=%q", n, err, buf[:n])
	}
	n, err = r.Read(buf)
	if err != nil || string(buf[:n]) != "ef" {
		t.Fatalf("n=%d err=%v buf=%q", n, err, buf[:n])
	}
}

func TestReaderClose(t *testing.T) {
	_, addr := startBroker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := dial(t, ctx, "mqtt://"+addr+"/idle")

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Read(make([]byte, 8))
		errCh <- err
	}()
	r.Close()
	select {
	case err := <-errCh:
		if err != io.EOF {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
	// Close is idempotent.
	r.Close()
}

func TestReaderContextCancel(t *testing.T) {
	_, addr := startBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := dial(t, ctx, "mqtt://"+addr+"/idle")
	cancel()
	if _, err := r.Read(make([]byte, 8)); err != io.EOF {
		t.Fatalf("err=%v", err)
	}
}

func TestDialUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := Dial(ctx, "mqtt://127.0.0.1:1/topic", Options{ConnectRetryDelay: 20 * time.Millisecond, Logger: quietLogger()})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseURL(t *testing.T) {
	broker, topic, err := ParseURL("mqtt://user:pw@broker:1883/dev/+/uart?x=1")
	if err != nil {
		t.Fatal(err)
	}
	if broker.String() != "mqtt://user:pw@broker:1883" || topic != "dev/+/uart" {
		t.Fatalf("broker=%s topic=%s", broker, topic)
	}
	for _, bad := range []string{"http://broker/t", "mqtt://broker", "mqtt://broker/", "mqtt:///t"} {
		if _, _, err := ParseURL(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

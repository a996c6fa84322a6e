package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/haivivi/ringbuf/pkg/spool"
)

// apiError implements smithy.APIError.
type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

// fakeS3 is an in-memory S3 backend.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (m *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{"NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{"NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func seedStore(t *testing.T, session string, frames ...string) spool.Store {
	t.Helper()
	s := spool.NewMemory()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, f := range frames {
		err := s.Append(context.Background(), spool.Record{Session: session, Seq: uint64(i), Time: ts, Data: []byte(f)})
		if err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func listData(t *testing.T, s spool.Store, session string) []string {
	t.Helper()
	var out []string
	for r, err := range s.List(context.Background(), session) {
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(r.Data))
	}
	return out
}

func TestExportImportLocal(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t, "s1", "AT", "OK", "+CSQ: 21,0")
	dir, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	res, err := Export(ctx, src, "s1", dir, FormatMsgpack)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Records != 3 || res.Path != "s1.msgpack" || res.Bytes == 0 {
		t.Fatalf("res = %+v", res)
	}
	info, err := os.Stat(filepath.Join(dir.Root(), "s1.msgpack"))
	if err != nil || info.Size() != res.Bytes {
		t.Fatalf("file size mismatch: %v %+v", err, res)
	}

	dst := spool.NewMemory()
	got, err := Import(ctx, dir, "s1.msgpack", dst)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got.Records != 3 || got.Session != "s1" {
		t.Fatalf("import res = %+v", got)
	}
	data := listData(t, dst, "s1")
	if len(data) != 3 || data[2] != "+CSQ: 21,0" {
		t.Fatalf("imported = %q", data)
	}
}

func TestExportRaw(t *testing.T) {
	ctx := context.Background()
	src := seedStore(t, "s", "one", "two")
	dir, _ := NewLocal(t.TempDir())
	if _, err := Export(ctx, src, "s", dir, FormatRaw); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(filepath.Join(dir.Root(), "s.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "one\ntwo\n" {
		t.Fatalf("content = %q", content)
	}
}

func TestExportEmptySession(t *testing.T) {
	ctx := context.Background()
	dir, _ := NewLocal(t.TempDir())
	_, err := Export(ctx, spool.NewMemory(), "nobody", dir, FormatMsgpack)
	if !errors.Is(err, ErrEmptySession) {
		t.Fatalf("err = %v", err)
	}
	if ok, _ := dir.Exists(ctx, "nobody.msgpack"); ok {
		t.Fatal("empty export left a file behind")
	}
}

func TestExportImportS3(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3(fake, "bucket", "captures/2026")
	src := seedStore(t, "s3session", "x", "y")

	if _, err := Export(ctx, src, "s3session", store, FormatMsgpack); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, ok := fake.objects["captures/2026/s3session.msgpack"]; !ok {
		t.Fatalf("object not stored under prefix: %v", fake.objects)
	}

	dst := spool.NewMemory()
	if _, err := Import(ctx, store, "s3session.msgpack", dst); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if data := listData(t, dst, "s3session"); len(data) != 2 {
		t.Fatalf("imported = %q", data)
	}

	if _, err := Import(ctx, store, "missing.msgpack", dst); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestExportS3UploadError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("upload failed")
	_, err := Export(context.Background(), seedStore(t, "s", "a"), "s", NewS3(fake, "b", ""), FormatMsgpack)
	if err == nil {
		t.Fatal("expected upload error")
	}
}

func TestImportCorrupt(t *testing.T) {
	ctx := context.Background()
	dir, _ := NewLocal(t.TempDir())
	os.WriteFile(filepath.Join(dir.Root(), "bad.msgpack"), []byte{0xc1, 0xc1}, 0o644)
	if _, err := Import(ctx, dir, "bad.msgpack", spool.NewMemory()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestOpen(t *testing.T) {
	fs, err := Open("s3://bucket/a/b/", S3Options{Endpoint: "http://localhost:9000"})
	if err != nil {
		t.Fatal(err)
	}
	s, ok := fs.(*S3Store)
	if !ok {
		t.Fatalf("Open returned %T", fs)
	}
	if s.bucket != "bucket" || s.prefix != "a/b" || s.URL("x") != "s3://bucket/a/b/x" {
		t.Fatalf("store = %+v", s)
	}
	if _, err := Open("s3://", S3Options{}); err == nil {
		t.Fatal("expected missing bucket error")
	}
	if fs, err := Open(t.TempDir(), S3Options{}); err != nil {
		t.Fatal(err)
	} else if _, ok := fs.(*Local); !ok {
		t.Fatalf("Open returned %T", fs)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatMsgpack, "MSGPACK": FormatMsgpack, "raw": FormatRaw} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("expected error")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&apiError{"NoSuchKey"}, true},
		{&apiError{"NotFound"}, true},
		{&apiError{"AccessDenied"}, false},
		{errors.New("timeout"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("isNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

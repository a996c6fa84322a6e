// Package archive moves spooled sessions between a spool.Store and file
// storage: a local directory or an S3-compatible bucket.
//
// A session is exported as one file, either a stream of msgpack-encoded
// spool.Record values (FormatMsgpack) or the record data one per line
// (FormatRaw). Only msgpack exports can be imported again.
package archive

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. If the file does not exist,
	// the error wraps os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating it. The caller
	// must close the returned WriteCloser to complete the write.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Format selects the export file layout.
type Format string

const (
	FormatMsgpack Format = "msgpack"
	FormatRaw     Format = "raw"
)

// ParseFormat parses a format name. An empty name means FormatMsgpack.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatMsgpack:
		return FormatMsgpack, nil
	case FormatRaw:
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("archive: unknown format %q", s)
	}
}

// FileName returns the file a session is exported to.
func (f Format) FileName(session string) string {
	if f == FormatRaw {
		return session + ".txt"
	}
	return session + ".msgpack"
}

// S3Options configures the S3 client built by Open.
type S3Options struct {
	// Region defaults to "us-east-1".
	Region string

	// Endpoint is the base URL of an S3-compatible service (MinIO, R2).
	// Empty means AWS. Setting it switches to path-style addressing.
	Endpoint string

	// AccessKeyID and SecretAccessKey are static credentials. Leave both
	// empty for anonymous access.
	AccessKeyID     string
	SecretAccessKey string
}

// Open returns the FileStore for dest: "s3://bucket/prefix" for S3, or a
// local directory path.
func Open(dest string, opts S3Options) (FileStore, error) {
	rest, ok := strings.CutPrefix(dest, "s3://")
	if !ok {
		return NewLocal(dest)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("archive: missing bucket in %q", dest)
	}
	return NewS3(newS3Client(opts), bucket, strings.Trim(prefix, "/")), nil
}

// Result summarizes an export or import. Bytes counts the file size for an
// export and the record data read for an import.
type Result struct {
	Session string `json:"session" yaml:"session" msgpack:"session"`
	Path    string `json:"path" yaml:"path" msgpack:"path"`
	Format  Format `json:"format" yaml:"format" msgpack:"format"`
	Records int    `json:"records" yaml:"records" msgpack:"records"`
	Bytes   int64  `json:"bytes" yaml:"bytes" msgpack:"bytes"`
}

func (r Result) TableHeader() []string {
	return []string{"SESSION", "PATH", "FORMAT", "RECORDS", "BYTES"}
}

func (r Result) TableRows() [][]string {
	return [][]string{{
		r.Session, r.Path, string(r.Format),
		fmt.Sprint(r.Records), fmt.Sprint(r.Bytes),
	}}
}

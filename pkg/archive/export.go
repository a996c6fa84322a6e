package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/ringbuf/pkg/spool"
)

// importBatch is the number of records appended to the store at once.
const importBatch = 256

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Export writes every record of session in src to dst as
// format.FileName(session). A failed export removes the partial file.
func Export(ctx context.Context, src spool.Store, session string, dst FileStore, format Format) (Result, error) {
	res := Result{Session: session, Path: format.FileName(session), Format: format}
	wc, err := dst.Write(ctx, res.Path)
	if err != nil {
		return res, fmt.Errorf("archive: export %s: %w", session, err)
	}
	cw := &countingWriter{w: wc}
	bw := bufio.NewWriter(cw)
	enc := msgpack.NewEncoder(bw)

	err = func() error {
		for rec, err := range src.List(ctx, session) {
			if err != nil {
				return err
			}
			if format == FormatRaw {
				bw.Write(rec.Data)
				err = bw.WriteByte('\n')
			} else {
				err = enc.Encode(&rec)
			}
			if err != nil {
				return err
			}
			res.Records++
		}
		return bw.Flush()
	}()
	if cerr := wc.Close(); err == nil {
		err = cerr
	}
	res.Bytes = cw.n
	if err != nil {
		dst.Delete(context.WithoutCancel(ctx), res.Path)
		return res, fmt.Errorf("archive: export %s: %w", session, err)
	}
	if res.Records == 0 {
		dst.Delete(ctx, res.Path)
		return res, fmt.Errorf("archive: export %s: %w", session, ErrEmptySession)
	}
	return res, nil
}

// ErrEmptySession is returned by Export for a session without records.
var ErrEmptySession = errors.New("archive: session has no records")

// Import reads a msgpack export from src and appends its records to dst.
// The Result's Session is the session of the last record read.
func Import(ctx context.Context, src FileStore, path string, dst spool.Store) (Result, error) {
	res := Result{Path: path, Format: FormatMsgpack}
	rc, err := src.Read(ctx, path)
	if err != nil {
		return res, fmt.Errorf("archive: import %s: %w", path, err)
	}
	defer rc.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(rc))
	batch := make([]spool.Record, 0, importBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dst.Append(ctx, batch...); err != nil {
			return err
		}
		res.Records += len(batch)
		batch = batch[:0]
		return nil
	}
	for {
		var rec spool.Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("archive: import %s: record %d: %w", path, res.Records+len(batch), err)
		}
		res.Session = rec.Session
		res.Bytes += int64(len(rec.Data))
		batch = append(batch, rec)
		if len(batch) == importBatch {
			if err := flush(); err != nil {
				return res, fmt.Errorf("archive: import %s: %w", path, err)
			}
		}
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("archive: import %s: %w", path, err)
	}
	return res, nil
}

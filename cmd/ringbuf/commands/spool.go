package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/ringbuf/pkg/archive"
	"github.com/haivivi/ringbuf/pkg/cli"
	"github.com/haivivi/ringbuf/pkg/spool"
)

var (
	spoolDB      string
	spoolSession string
	spoolLimit   int
	spoolJQ      string
	spoolAs      string
	archiveLoc   string
	s3Endpoint   string
	s3Region     string
)

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Persist frames in a badger spool",
	Long: `Persist frames in a badger database, grouped by session.

The database defaults to the profile's spool_dir, then to
~/.ringbuf/ringbuf/data/spool.

Examples:
  ringbuf spool write --session uart0 capture.bin
  ringbuf spool sessions -f table
  ringbuf spool list --session uart0 -f raw
  ringbuf spool export uart0 --dest s3://captures/2026
  ringbuf spool import ./exports/uart0.msgpack`,
}

var spoolWriteCmd = &cobra.Command{
	Use:   "write [file|-|ws://url|mqtt://host/topic]",
	Short: "Frame input and store every frame",
	Long: `Frame input like "ringbuf frame" and store the frames under a session.

Writing to an existing session appends after its last record. Without
--session a new UUID session is created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSpoolWrite,
}

var spoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records",
	Args:  cobra.NoArgs,
	RunE:  runSpoolList,
}

var spoolSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions with record counts",
	Args:  cobra.NoArgs,
	RunE:  runSpoolSessions,
}

var spoolPurgeCmd = &cobra.Command{
	Use:   "purge <session>",
	Short: "Delete every record of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpoolPurge,
}

var spoolExportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Export a session to a directory or S3 bucket",
	Long: `Export a session as <session>.msgpack (or <session>.txt with --as raw).

--dest is a local directory or s3://bucket/prefix. S3 credentials are read
from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY; --s3-endpoint selects an
S3-compatible service such as MinIO.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpoolExport,
}

var spoolImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import a msgpack export into the spool",
	Long: `Import a msgpack export. <path> is relative to --src, a local
directory (default: the current directory) or s3://bucket/prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: runSpoolImport,
}

func init() {
	spoolCmd.PersistentFlags().StringVar(&spoolDB, "db", "", "spool database directory")

	addLayoutFlags(spoolWriteCmd.Flags())
	spoolWriteCmd.Flags().StringVar(&spoolSession, "session", "", "session to write (default: new UUID)")

	spoolListCmd.Flags().StringVar(&spoolSession, "session", "", "only list this session")
	spoolListCmd.Flags().IntVar(&spoolLimit, "limit", 0, "maximum number of records (0 for all)")
	spoolListCmd.Flags().StringVar(&spoolJQ, "jq", "", "jq expression applied to the result")

	spoolSessionsCmd.Flags().StringVar(&spoolJQ, "jq", "", "jq expression applied to the result")

	spoolExportCmd.Flags().StringVar(&archiveLoc, "dest", ".", "local directory or s3://bucket/prefix")
	spoolImportCmd.Flags().StringVar(&archiveLoc, "src", ".", "local directory or s3://bucket/prefix")
	for _, c := range []*cobra.Command{spoolExportCmd, spoolImportCmd} {
		c.Flags().StringVar(&s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
		c.Flags().StringVar(&s3Region, "s3-region", "", "S3 region (default: $AWS_REGION or us-east-1)")
	}
	spoolExportCmd.Flags().StringVar(&spoolAs, "as", "msgpack", "export format: msgpack or raw")

	spoolCmd.AddCommand(spoolWriteCmd, spoolListCmd, spoolSessionsCmd, spoolPurgeCmd, spoolExportCmd, spoolImportCmd)
	rootCmd.AddCommand(spoolCmd)
}

// spoolDir resolves the database directory: --db, the profile, then the
// default data directory.
func spoolDir() (string, error) {
	if spoolDB != "" {
		return spoolDB, nil
	}
	if p, err := getProfile(); err == nil && p.SpoolDir != "" {
		return p.SpoolDir, nil
	}
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return "", err
	}
	return paths.SpoolDir(), nil
}

func openSpool() (*spool.Badger, error) {
	dir, err := spoolDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	slog.Debug("spool: open", "dir", dir)
	return spool.NewBadger(spool.BadgerOptions{Dir: dir, Logger: slog.Default()})
}

func s3Options() archive.S3Options {
	region := s3Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	return archive.S3Options{
		Region:          region,
		Endpoint:        s3Endpoint,
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
}

// nextSeq returns the sequence number following the last record of session.
func nextSeq(ctx context.Context, store spool.Store, session string) (uint64, error) {
	var next uint64
	for r, err := range store.List(ctx, session) {
		if err != nil {
			return 0, err
		}
		next = r.Seq + 1
	}
	return next, nil
}

type writeResult struct {
	Session  string `json:"session" yaml:"session" msgpack:"session"`
	FirstSeq uint64 `json:"first_seq" yaml:"first_seq" msgpack:"first_seq"`
	Records  int    `json:"records" yaml:"records" msgpack:"records"`
	BytesIn  int64  `json:"bytes_in" yaml:"bytes_in" msgpack:"bytes_in"`
	Overruns int64  `json:"overruns" yaml:"overruns" msgpack:"overruns"`
	Dropped  int64  `json:"dropped" yaml:"dropped" msgpack:"dropped"`
}

func (r *writeResult) TableHeader() []string {
	return []string{"SESSION", "FIRST SEQ", "RECORDS", "BYTES IN", "OVERRUNS"}
}

func (r *writeResult) TableRows() [][]string {
	return [][]string{{
		r.Session, fmt.Sprint(r.FirstSeq), fmt.Sprint(r.Records),
		cli.FormatBytes(r.BytesIn), fmt.Sprint(r.Overruns),
	}}
}

func runSpoolWrite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	l, err := resolveLayout(cmd)
	if err != nil {
		return err
	}
	f, err := l.newFramer()
	if err != nil {
		return err
	}

	store, err := openSpool()
	if err != nil {
		return err
	}
	defer store.Close()

	var first uint64
	if spoolSession != "" {
		if first, err = nextSeq(ctx, store, spoolSession); err != nil {
			return err
		}
	}
	sp, err := spool.NewSpooler(store, spool.SpoolerOptions{
		Session: spoolSession,
		NextSeq: first,
		Logger:  slog.Default(),
	})
	if err != nil {
		return err
	}

	var src string
	if len(args) > 0 {
		src = args[0]
	}
	in, err := openInput(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	res := &writeResult{Session: sp.Session(), FirstSeq: first}
	drain := func() error {
		n, err := sp.Drain(ctx, f.Chapters())
		res.Records += n
		return err
	}
	err = pump(ctx, in, f, l.profile.ChunkSize, drain)
	// Retry records a failed drain kept back.
	if sp.Unsaved() > 0 {
		n, rerr := sp.Drain(context.WithoutCancel(ctx), f.Chapters())
		res.Records += n
		if err == nil {
			err = rerr
		}
	}
	st := f.Stats()
	res.BytesIn, res.Overruns, res.Dropped = st.BytesIn, st.Overruns, st.Dropped
	if err != nil {
		slog.Error("spool: write interrupted", "session", res.Session, "records", res.Records, "error", err)
		return err
	}
	return output(res)
}

// recordView is a spool.Record in command output.
type recordView struct {
	Session string    `json:"session" yaml:"session" msgpack:"session"`
	Seq     uint64    `json:"seq" yaml:"seq" msgpack:"seq"`
	Time    time.Time `json:"time" yaml:"time" msgpack:"time"`
	Len     int       `json:"len" yaml:"len" msgpack:"len"`
	Data    string    `json:"data" yaml:"data" msgpack:"data"`

	raw []byte
}

type recordList struct {
	Records []recordView `json:"records" yaml:"records" msgpack:"records"`
}

func (l *recordList) TableHeader() []string {
	return []string{"SESSION", "SEQ", "TIME", "LEN", "DATA"}
}

func (l *recordList) TableRows() [][]string {
	rows := make([][]string, len(l.Records))
	for i, r := range l.Records {
		rows[i] = []string{
			cli.TruncateString(r.Session, 13), fmt.Sprint(r.Seq),
			r.Time.Local().Format(time.DateTime), fmt.Sprint(r.Len), cli.QuoteData(r.raw, 40),
		}
	}
	return rows
}

func (l *recordList) Raw() []byte {
	var buf bytes.Buffer
	for _, r := range l.Records {
		buf.Write(r.raw)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func runSpoolList(cmd *cobra.Command, args []string) error {
	store, err := openSpool()
	if err != nil {
		return err
	}
	defer store.Close()

	list := &recordList{Records: []recordView{}}
	for r, err := range store.List(cmd.Context(), spoolSession) {
		if err != nil {
			return err
		}
		if spoolLimit > 0 && len(list.Records) >= spoolLimit {
			break
		}
		list.Records = append(list.Records, recordView{
			Session: r.Session,
			Seq:     r.Seq,
			Time:    r.Time,
			Len:     len(r.Data),
			Data:    string(r.Data),
			raw:     r.Data,
		})
	}
	return outputQuery(list, spoolJQ)
}

type sessionInfo struct {
	Session string    `json:"session" yaml:"session" msgpack:"session"`
	Records int       `json:"records" yaml:"records" msgpack:"records"`
	Bytes   int64     `json:"bytes" yaml:"bytes" msgpack:"bytes"`
	First   time.Time `json:"first" yaml:"first" msgpack:"first"`
	Last    time.Time `json:"last" yaml:"last" msgpack:"last"`
}

type sessionList struct {
	Sessions []sessionInfo `json:"sessions" yaml:"sessions" msgpack:"sessions"`
}

func (l *sessionList) TableHeader() []string {
	return []string{"SESSION", "RECORDS", "BYTES", "FIRST", "SPAN"}
}

func (l *sessionList) TableRows() [][]string {
	rows := make([][]string, len(l.Sessions))
	for i, s := range l.Sessions {
		rows[i] = []string{
			s.Session, fmt.Sprint(s.Records), cli.FormatBytes(s.Bytes),
			s.First.Local().Format(time.DateTime), cli.FormatDuration(s.Last.Sub(s.First)),
		}
	}
	return rows
}

func runSpoolSessions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openSpool()
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	list := &sessionList{Sessions: make([]sessionInfo, 0, len(names))}
	for _, name := range names {
		info := sessionInfo{Session: name}
		for r, err := range store.List(ctx, name) {
			if err != nil {
				return err
			}
			if info.Records == 0 {
				info.First = r.Time
			}
			info.Last = r.Time
			info.Records++
			info.Bytes += int64(len(r.Data))
		}
		list.Sessions = append(list.Sessions, info)
	}
	return outputQuery(list, spoolJQ)
}

func runSpoolPurge(cmd *cobra.Command, args []string) error {
	store, err := openSpool()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Purge(cmd.Context(), args[0]); err != nil {
		return err
	}
	cli.PrintSuccess(os.Stdout, "Session %q purged", args[0])
	return nil
}

func runSpoolExport(cmd *cobra.Command, args []string) error {
	format, err := archive.ParseFormat(spoolAs)
	if err != nil {
		return err
	}
	dst, err := archive.Open(archiveLoc, s3Options())
	if err != nil {
		return err
	}
	store, err := openSpool()
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := archive.Export(cmd.Context(), store, args[0], dst, format)
	if err != nil {
		return err
	}
	if s3, ok := dst.(*archive.S3Store); ok {
		res.Path = s3.URL(res.Path)
	}
	return output(res)
}

func runSpoolImport(cmd *cobra.Command, args []string) error {
	src, err := archive.Open(archiveLoc, s3Options())
	if err != nil {
		return err
	}
	store, err := openSpool()
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := archive.Import(cmd.Context(), src, args[0], store)
	if err != nil {
		return err
	}
	return output(res)
}

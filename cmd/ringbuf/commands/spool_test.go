package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSpoolWriteList(t *testing.T) {
	setupTestEnv(t)
	db := t.TempDir()

	stdout, stderr, code := runCmd(t, "spool", "write", "--db", db, "--session", "s1", "-f", "json", writeInput(t, "a\nb\nc"))
	if code != 0 {
		t.Fatalf("write exit %d: %s", code, stderr)
	}
	var res writeResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if res.Session != "s1" || res.Records != 3 || res.FirstSeq != 0 || res.BytesIn != 5 {
		t.Fatalf("result = %+v", res)
	}

	// A second write resumes the sequence.
	stdout, _, code = runCmd(t, "spool", "write", "--db", db, "--session", "s1", "-f", "json", writeInput(t, "d\n"))
	if code != 0 {
		t.Fatalf("second write exit %d", code)
	}
	json.Unmarshal([]byte(stdout), &res)
	if res.FirstSeq != 3 || res.Records != 1 {
		t.Fatalf("second result = %+v", res)
	}

	stdout, _, code = runCmd(t, "spool", "list", "--db", db, "--session", "s1", "-f", "raw")
	if code != 0 || stdout != "a\nb\nc\nd\n" {
		t.Fatalf("list exit %d stdout %q", code, stdout)
	}

	stdout, _, code = runCmd(t, "spool", "list", "--db", db, "--limit", "2", "-f", "json", "--jq", "[.records[].seq]")
	if code != 0 || strings.Join(strings.Fields(stdout), "") != "[0,1]" {
		t.Fatalf("limited list exit %d stdout %q", code, stdout)
	}
}

func TestSpoolWriteNewSession(t *testing.T) {
	setupTestEnv(t)
	db := t.TempDir()

	stdout, _, code := runCmd(t, "spool", "write", "--db", db, "-f", "json", writeInput(t, "x\n"))
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	var res writeResult
	json.Unmarshal([]byte(stdout), &res)
	if len(res.Session) != 36 || res.Records != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSpoolSessionsPurge(t *testing.T) {
	setupTestEnv(t)
	db := t.TempDir()
	for _, s := range []string{"beta", "alpha"} {
		if _, stderr, code := runCmd(t, "spool", "write", "--db", db, "--session", s, writeInput(t, s+"\n"+s+"\n")); code != 0 {
			t.Fatalf("write %s: %s", s, stderr)
		}
	}

	stdout, _, code := runCmd(t, "spool", "sessions", "--db", db, "-f", "json", "--jq", "[.sessions[] | [.session, .records, .bytes]]")
	if code != 0 {
		t.Fatalf("sessions exit %d", code)
	}
	if got := strings.Join(strings.Fields(stdout), ""); got != `[["alpha",2,10],["beta",2,8]]` {
		t.Fatalf("sessions = %s", got)
	}

	if stdout, _, code := runCmd(t, "spool", "purge", "--db", db, "alpha"); code != 0 || !strings.Contains(stdout, "purged") {
		t.Fatalf("purge exit %d stdout %q", code, stdout)
	}
	stdout, _, _ = runCmd(t, "spool", "sessions", "--db", db, "-f", "json", "--jq", "[.sessions[].session]")
	if got := strings.Join(strings.Fields(stdout), ""); got != `["beta"]` {
		t.Fatalf("sessions after purge = %s", got)
	}
}

func TestSpoolProfileDir(t *testing.T) {
	setupTestEnv(t)
	db := filepath.Join(t.TempDir(), "spool")
	runCmd(t, "config", "add-profile", "disk", "--spool-dir", db)

	if _, stderr, code := runCmd(t, "spool", "write", "-p", "disk", "--session", "p", writeInput(t, "q\n")); code != 0 {
		t.Fatalf("write: %s", stderr)
	}
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("profile spool dir not used: %v", err)
	}
}

func TestSpoolExportImport(t *testing.T) {
	setupTestEnv(t)
	db := t.TempDir()
	exports := t.TempDir()
	runCmd(t, "spool", "write", "--db", db, "--session", "cap", writeInput(t, "one\ntwo\n"))

	stdout, stderr, code := runCmd(t, "spool", "export", "--db", db, "--dest", exports, "-f", "json", "cap")
	if code != 0 {
		t.Fatalf("export exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"records": 2`) {
		t.Fatalf("export result = %s", stdout)
	}
	if _, err := os.Stat(filepath.Join(exports, "cap.msgpack")); err != nil {
		t.Fatal(err)
	}

	if _, _, code := runCmd(t, "spool", "export", "--db", db, "--dest", exports, "--as", "raw", "cap"); code != 0 {
		t.Fatal("raw export failed")
	}
	raw, _ := os.ReadFile(filepath.Join(exports, "cap.txt"))
	if string(raw) != "one\ntwo\n" {
		t.Fatalf("raw export = %q", raw)
	}

	other := t.TempDir()
	if _, stderr, code := runCmd(t, "spool", "import", "--db", other, "--src", exports, "cap.msgpack"); code != 0 {
		t.Fatalf("import: %s", stderr)
	}
	stdout, _, _ = runCmd(t, "spool", "list", "--db", other, "--session", "cap", "-f", "raw")
	if stdout != "one\ntwo\n" {
		t.Fatalf("imported = %q", stdout)
	}
}

func TestSpoolExportEmpty(t *testing.T) {
	setupTestEnv(t)
	_, stderr, code := runCmd(t, "spool", "export", "--db", t.TempDir(), "--dest", t.TempDir(), "nothing")
	if code == 0 || !strings.Contains(stderr, "no records") {
		t.Fatalf("exit %d stderr %q", code, stderr)
	}
}

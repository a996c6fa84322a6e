package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSimulate(t *testing.T) {
	setupTestEnv(t)
	stdout, stderr, code := runCmd(t, "simulate", "-f", "json",
		"--messages", "500", "--data-cap", "64", "--index-words", "3", "--max-msg", "48", "--max-chunk", "7")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	var res simResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if res.Messages != 500 || res.Mismatches != 0 {
		t.Fatalf("result = %+v", res)
	}
	// One index word queues two chapters plus the head.
	if res.MaxQueued < 1 || res.MaxQueued > 4 {
		t.Fatalf("max queued = %d", res.MaxQueued)
	}
}

func TestSimulateMessageTooLarge(t *testing.T) {
	setupTestEnv(t)
	_, stderr, code := runCmd(t, "simulate", "--data-cap", "16", "--max-msg", "17")
	if code == 0 || !strings.Contains(stderr, "exceeds data capacity") {
		t.Fatalf("exit %d stderr %q", code, stderr)
	}
}

func TestSimMessageDeterministic(t *testing.T) {
	a := simMessage(7, 3, 32)
	b := simMessage(7, 3, 32)
	if !bytes.Equal(a, b) || len(a) < 1 || len(a) > 32 {
		t.Fatalf("a=%x b=%x", a, b)
	}
	if bytes.Equal(a, simMessage(7, 4, 32)) && bytes.Equal(a, simMessage(8, 3, 32)) {
		t.Fatal("messages do not vary")
	}
}

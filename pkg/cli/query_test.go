package cli

import (
	"strings"
	"testing"
)

func TestQuery(t *testing.T) {
	in := frameList{Frames: []string{"AT", "OK", "+CSQ: 21,0"}}

	got, err := Query(".frames[1]", in)
	if err != nil || got != "OK" {
		t.Fatalf("got=%v err=%v", got, err)
	}

	got, err = Query(`.frames[] | select(startswith("+"))`, in)
	if err != nil || got != "+CSQ: 21,0" {
		t.Fatalf("got=%v err=%v", got, err)
	}

	got, err = Query(".frames[]", in)
	if list, ok := got.([]any); err != nil || !ok || len(list) != 3 {
		t.Fatalf("got=%v err=%v", got, err)
	}

	got, err = Query(".frames[] | select(. == \"nope\")", in)
	if list, ok := got.([]any); err != nil || !ok || len(list) != 0 {
		t.Fatalf("empty result got=%#v err=%v", got, err)
	}
}

func TestQueryErrors(t *testing.T) {
	if _, err := Query(".[", nil); err == nil || !strings.Contains(err.Error(), "invalid jq expression") {
		t.Errorf("parse err=%v", err)
	}
	// keys is not defined on strings.
	if _, err := Query(".frames[0] | keys", frameList{Frames: []string{"a"}}); err == nil {
		t.Error("expected runtime error")
	}
}

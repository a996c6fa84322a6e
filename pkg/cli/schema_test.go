package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestProfileSchema(t *testing.T) {
	s, err := ProfileSchema()
	if err != nil {
		t.Fatalf("ProfileSchema: %v", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"data_capacity"`, `"keep_delimiter"`, `"little-endian"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %s: %s", want, data)
		}
	}
}

func TestValidateProfile(t *testing.T) {
	if err := ValidateProfile(DefaultProfile()); err != nil {
		t.Fatalf("default profile: %v", err)
	}

	bad := []*Profile{
		{Name: "order", ByteOrder: "middle"},
		{Name: "delim", Delimiter: "zz"},
		{Name: "size", DelimiterSize: 5},
		{Name: "neg", DataCapacity: -1},
	}
	for _, p := range bad {
		if err := ValidateProfile(p); err == nil {
			t.Errorf("profile %q should fail validation", p.Name)
		}
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type frameList struct {
	Frames []string `json:"frames" yaml:"frames" msgpack:"frames"`
}

func (l frameList) TableHeader() []string { return []string{"#", "frame"} }

func (l frameList) TableRows() [][]string {
	rows := make([][]string, len(l.Frames))
	for i, f := range l.Frames {
		rows[i] = []string{string(rune('0' + i)), f}
	}
	return rows
}

func (l frameList) Raw() []byte {
	return []byte(strings.Join(l.Frames, "\n") + "\n")
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"name": "test", "value": 123}

	if err := Output(data, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("name = %v, want %q", result["name"], "test")
	}
}

func TestOutput_YAML(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{"name": "test", "value": 123}

	if err := Output(data, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "name: test") {
		t.Errorf("Output should contain 'name: test', got: %s", buf.String())
	}
}

func TestOutput_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer

	// Empty format should default to YAML
	if err := Output(map[string]string{"key": "value"}, OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "key: value") {
		t.Errorf("Default format should be YAML, got: %s", buf.String())
	}
}

func TestOutput_Raw(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"bytes", []byte("raw binary data"), "raw binary data"},
		{"string", "raw string data", "raw string data"},
		{"rawer", frameList{Frames: []string{"a", "b"}}, "a\nb\n"},
		{"other falls back to yaml", map[string]int{"count": 42}, "count: 42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Output(tt.data, OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
				t.Fatalf("Output error: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestOutput_Msgpack(t *testing.T) {
	var buf bytes.Buffer
	in := frameList{Frames: []string{"AT", "OK"}}
	if err := Output(in, OutputOptions{Format: FormatMsgpack, Writer: &buf}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	var out frameList
	if err := msgpack.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if strings.Join(out.Frames, ",") != "AT,OK" {
		t.Errorf("frames = %v", out.Frames)
	}
}

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	plain := PlainStyles()
	in := frameList{Frames: []string{"AT", "+CSQ: 21,0"}}
	if err := Output(in, OutputOptions{Format: FormatTable, Writer: &buf, Styles: &plain}); err != nil {
		t.Fatalf("Output error: %v", err)
	}
	want := "#  frame\n" +
		"─  ──────────\n" +
		"0  AT\n" +
		"1  +CSQ: 21,0\n"
	if buf.String() != want {
		t.Errorf("table =\n%s\nwant\n%s", buf.String(), want)
	}

	if err := Output(map[string]int{}, OutputOptions{Format: FormatTable, Writer: &buf}); err == nil {
		t.Error("table output of a non-Tabler should fail")
	}
}

func TestOutput_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Output("data", OutputOptions{Format: "invalid", Writer: &buf}); err == nil {
		t.Error("Output should fail for unsupported format")
	}
}

func TestOutput_ToFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "output.json")

	if err := Output(map[string]string{"key": "value"}, OutputOptions{Format: FormatJSON, File: filePath}); err != nil {
		t.Fatalf("Output error: %v", err)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	var result map[string]string
	if err := json.Unmarshal(content, &result); err != nil {
		t.Fatalf("Invalid JSON in file: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("key = %q, want %q", result["key"], "value")
	}
}

func TestOutput_JSONIndent(t *testing.T) {
	var buf bytes.Buffer
	err := Output(map[string]string{"key": "value"}, OutputOptions{
		Format: FormatJSON,
		Writer: &buf,
		Indent: "    ",
	})
	if err != nil {
		t.Fatalf("Output error: %v", err)
	}
	if !strings.Contains(buf.String(), "    \"key\"") {
		t.Errorf("Output should be indented, got: %s", buf.String())
	}
}

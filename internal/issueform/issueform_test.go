package issueform

import (
	"reflect"
	"testing"
)

func TestParseForm(t *testing.T) {
	body := `### Version

1.2.3

### Operating System

_No response_

### Error Message

panic: nil pointer
in handler.go:42

### Repro Steps
`
	got := ParseForm(body)
	want := map[string]string{
		"version":       "1.2.3",
		"error_message": "panic: nil pointer\nin handler.go:42",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseForm = %#v, want %#v", got, want)
	}
}

func TestParseFormIgnoresLeadingProse(t *testing.T) {
	got := ParseForm("some intro text\nnot under a heading\n\n### Version\n2.0\n")
	if got["version"] != "2.0" {
		t.Fatalf("got %#v", got)
	}
	if len(got) != 1 {
		t.Fatalf("prose leaked into fields: %#v", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Version", "version"},
		{"Operating System", "operating_system"},
		{"  OS / Platform ", "os_platform"},
		{"What happened?", "what_happened"},
		{"repro-steps", "repro_steps"},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractKeyValuePairs(t *testing.T) {
	body := "version: 3.1.4\nOS: macOS 15\n" +
		"```\nerror: this colon is a log line\n```\n" +
		"version: 9.9.9\n"
	got := ExtractKeyValuePairs(body)
	if got["version"] != "3.1.4" {
		t.Fatalf("first occurrence should win, got %#v", got)
	}
	if got["os"] != "macOS 15" {
		t.Fatalf("got %#v", got)
	}
	if _, ok := got["error"]; ok {
		t.Fatalf("fenced code line was parsed: %#v", got)
	}
}

func TestMergeFieldsLaterWins(t *testing.T) {
	a := map[string]string{"version": "1.0", "os": "linux"}
	b := map[string]string{"version": "2.0", "error_message": "boom", "empty": "  "}
	got := MergeFields(a, b)
	want := map[string]string{"version": "2.0", "os": "linux", "error_message": "boom"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeFields = %#v, want %#v", got, want)
	}
	if a["version"] != "1.0" {
		t.Fatalf("input map mutated")
	}
}

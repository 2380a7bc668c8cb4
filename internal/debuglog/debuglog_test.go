package debuglog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestActionsLabel(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "noop"},
		{[]string{"goto"}, "goto"},
		{[]string{"goto", "click"}, "goto+click"},
		{[]string{"goto", "click", "fill"}, "goto+click+fill"},
		{[]string{"goto", "click", "fill", "goto", "click"}, "goto+click+fill+2"},
	}
	for _, c := range cases {
		if got := actionsLabel(c.in); got != c.want {
			t.Errorf("actionsLabel(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSafeAlias(t *testing.T) {
	if got := safeAlias(""); got != "notab" {
		t.Errorf("safeAlias(\"\") = %q, want notab", got)
	}
	if got := safeAlias("t1"); got != "t1" {
		t.Errorf("safeAlias(t1) = %q, want t1", got)
	}
}

func TestWrite_FilenameAndContent(t *testing.T) {
	dir := t.TempDir()
	entry := Entry{Request: map[string]any{"steps": []any{}}, Response: map[string]any{"status": "ok"}}

	path, err := Write(dir, "t1", "ok", []string{"goto", "click"}, entry)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	base := filepath.Base(path)
	if !strings.HasPrefix(base, "001-t1-goto+click.ok") {
		t.Errorf("filename = %q, want prefix 001-t1-goto+click.ok", base)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var decoded Entry
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
}

func TestWrite_SequenceNumberIncrements(t *testing.T) {
	dir := t.TempDir()
	entry := Entry{Request: "r", Response: "s"}

	first, err := Write(dir, "t1", "ok", []string{"goto"}, entry)
	if err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	second, err := Write(dir, "t1", "ok", []string{"goto"}, entry)
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}

	if !strings.HasPrefix(filepath.Base(first), "001-") {
		t.Errorf("first filename = %q, want prefix 001-", filepath.Base(first))
	}
	if !strings.HasPrefix(filepath.Base(second), "002-") {
		t.Errorf("second filename = %q, want prefix 002-", filepath.Base(second))
	}
}

package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppend_NoopWhenEnvUnset(t *testing.T) {
	t.Setenv("CDP_METRICS_FILE", "")
	if err := Append(Record{Ts: 1}); err != nil {
		t.Fatalf("Append() error = %v, want nil (no-op)", err)
	}
}

func TestAppend_WritesJSONLLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	t.Setenv("CDP_METRICS_FILE", path)

	rec := Record{Ts: 1700000000, InputBytes: 42, OutputBytes: 128, Steps: 3, TimeMs: 57, Tab: "t1"}
	if err := Append(rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatalf("no lines written")
	}
	var got Record
	if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != rec {
		t.Errorf("decoded record = %+v, want %+v", got, rec)
	}
	if scanner.Scan() {
		t.Errorf("unexpected second line")
	}
}

func TestAppend_AppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")
	t.Setenv("CDP_METRICS_FILE", path)

	if err := Append(Record{Ts: 1}); err != nil {
		t.Fatalf("first Append() error = %v", err)
	}
	if err := Append(Record{Ts: 2}); err != nil {
		t.Fatalf("second Append() error = %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := 0
	for _, c := range b {
		if c == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

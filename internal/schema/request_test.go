package schema

import (
	"encoding/json"
	"sort"
	"testing"
)

func TestStep_UnmarshalJSON_ActionAndModifiers(t *testing.T) {
	var s Step
	in := `{"click":{"ref":"e3"},"optional":true,"timeout":5000}`
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !s.Optional {
		t.Errorf("Optional = false, want true")
	}
	if s.Timeout != 5000 {
		t.Errorf("Timeout = %d, want 5000", s.Timeout)
	}
	if _, ok := s.Raw["click"]; !ok {
		t.Errorf("Raw missing %q key", "click")
	}
}

func TestStep_ActionKeys_SingleAction(t *testing.T) {
	var s Step
	in := `{"goto":"https://example.com","readyWhen":"load"}`
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	keys := s.ActionKeys()
	if len(keys) != 1 || keys[0] != "goto" {
		t.Errorf("ActionKeys() = %v, want [goto]", keys)
	}
}

func TestStep_ActionKeys_NoAction(t *testing.T) {
	var s Step
	in := `{"optional":true}`
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if keys := s.ActionKeys(); len(keys) != 0 {
		t.Errorf("ActionKeys() = %v, want empty", keys)
	}
}

func TestStep_ActionKeys_MultipleActions(t *testing.T) {
	var s Step
	in := `{"click":{"ref":"e3"},"fill":{"ref":"e4","text":"hi"}}`
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	keys := s.ActionKeys()
	sort.Strings(keys)
	want := []string{"click", "fill"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("ActionKeys() = %v, want %v", keys, want)
	}
}

func TestRequest_EmptyStepsArray(t *testing.T) {
	var req Request
	in := `{"steps":[]}`
	if err := json.Unmarshal([]byte(in), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(req.Steps) != 0 {
		t.Errorf("len(Steps) = %d, want 0", len(req.Steps))
	}
}

func TestRequest_ConfigKeyDecodesAsRawMessage(t *testing.T) {
	var req Request
	in := `{"config":{"foo":"bar"},"steps":[{"chromeStatus":true}]}`
	if err := json.Unmarshal([]byte(in), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(req.Config) == 0 {
		t.Errorf("Config not populated")
	}
}

func TestResponse_OmitsEmptyFields(t *testing.T) {
	resp := Response{Status: "ok", Tab: "t1"}
	b, err := json.Marshal(&resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, field := range []string{"errors", "console", "changes", "context", "fullSnapshot", "viewportSnapshot", "navigated", "truncated"} {
		if _, present := decoded[field]; present {
			t.Errorf("field %q present in marshaled output, want omitted", field)
		}
	}
}

package runner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cdp-skill/cdp-skill/internal/schema"
)

func init() {
	registerAction("testOK", func(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
		return "done", nil
	})
	registerAction("testErr", func(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})
}

func TestStepTimeout_DefaultsAndClamps(t *testing.T) {
	if got := stepTimeout(&schema.Step{}, 5000); got != 5*time.Second {
		t.Errorf("stepTimeout() = %v, want 5s", got)
	}
	if got := stepTimeout(&schema.Step{Timeout: 2000}, 5000); got != 2*time.Second {
		t.Errorf("stepTimeout() = %v, want 2s (step overrides default)", got)
	}
	if got := stepTimeout(&schema.Step{Timeout: 600000}, 5000); got != maxStepTimeout {
		t.Errorf("stepTimeout() = %v, want %v (clamped)", got, maxStepTimeout)
	}
}

func TestRunStep_SuccessfulAction(t *testing.T) {
	stepJSON := []byte(`{"testOK":{}}`)
	var s schema.Step
	if err := unmarshalStep(t, stepJSON, &s); err != nil {
		t.Fatalf("unmarshalStep() error = %v", err)
	}

	inv := &Invocation{DefaultStepTimeoutMS: 1000}
	r := RunStep(context.Background(), inv, &s)
	if r.Status != "ok" || r.Action != "testOK" {
		t.Errorf("RunStep() = %+v, want status ok action testOK", r)
	}
}

func TestRunStep_ErrorActionNotOptional(t *testing.T) {
	var s schema.Step
	if err := unmarshalStep(t, []byte(`{"testErr":{}}`), &s); err != nil {
		t.Fatalf("unmarshalStep() error = %v", err)
	}

	inv := &Invocation{DefaultStepTimeoutMS: 1000}
	r := RunStep(context.Background(), inv, &s)
	if r.Status != "error" {
		t.Errorf("Status = %q, want error", r.Status)
	}
	if r.Error == nil {
		t.Errorf("Error = nil, want non-nil")
	}
}

func TestRunStep_OptionalActionBecomesSkipped(t *testing.T) {
	var s schema.Step
	if err := unmarshalStep(t, []byte(`{"testErr":{},"optional":true}`), &s); err != nil {
		t.Fatalf("unmarshalStep() error = %v", err)
	}

	inv := &Invocation{DefaultStepTimeoutMS: 1000}
	r := RunStep(context.Background(), inv, &s)
	if r.Status != "skipped" {
		t.Errorf("Status = %q, want skipped", r.Status)
	}
}

func TestFinishStep_SuccessCarriesOutput(t *testing.T) {
	r := finishStep("testOK", &schema.Step{}, "value", nil)
	if r.Status != "ok" || r.Output != "value" {
		t.Errorf("finishStep() = %+v, want status ok output value", r)
	}
}

func unmarshalStep(t *testing.T, raw []byte, s *schema.Step) error {
	t.Helper()
	return s.UnmarshalJSON(raw)
}

package errtaxonomy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToResponse_TaxonomyError(t *testing.T) {
	err := Execution(SubtypeElementNotFound, nil, "no element matches %q", "#save")

	got := ToResponse(err)
	want := Response{Type: "ElementNotFoundError", Message: `no element matches "#save"`}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToResponse() mismatch (-want +got):\n%s", diff)
	}
}

func TestToResponse_NoSubtypeUsesClassName(t *testing.T) {
	err := ValidationErrorf("steps must be a non-empty array")

	got := ToResponse(err)
	if got.Type != "VALIDATION" {
		t.Errorf("Type = %q, want VALIDATION", got.Type)
	}
}

func TestToResponse_OpaqueErrorBecomesExecution(t *testing.T) {
	got := ToResponse(errors.New("boom"))
	if got.Type != string(ExecutionClass) {
		t.Errorf("Type = %q, want %q", got.Type, ExecutionClass)
	}
	if got.Message != "boom" {
		t.Errorf("Message = %q, want boom", got.Message)
	}
}

func TestError_UnwrapAndAs(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := ConnectionErrorf(cause, "chrome unreachable: %v", cause)

	wrapped := fmt.Errorf("invoke: %w", err)

	got, ok := As(wrapped)
	if !ok {
		t.Fatalf("As() did not find the wrapped *Error")
	}
	if got.Class != Connection {
		t.Errorf("Class = %q, want CONNECTION", got.Class)
	}
	if !errors.Is(wrapped, cause) {
		t.Errorf("errors.Is(wrapped, cause) = false, want true (Unwrap chain broken)")
	}
}

func TestIsStale(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"Could not find node with given id", true},
		{"Node is detached from document", true},
		{"Cannot find context with specified id", true},
		{"No node with given id found", true},
		{"some unrelated failure", false},
	}
	for _, c := range cases {
		if got := IsStale(c.msg); got != c.want {
			t.Errorf("IsStale(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestIsContextDestroyed(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"Execution context was destroyed", true},
		{"Inspected target navigated or closed", true},
		{"element not found", false},
	}
	for _, c := range cases {
		if got := IsContextDestroyed(c.msg); got != c.want {
			t.Errorf("IsContextDestroyed(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestStepValidationErrorf_SubtypeAndClass(t *testing.T) {
	err := StepValidationErrorf("step has multiple action keys: %v", []string{"click", "fill"})
	if err.Class != ExecutionClass {
		t.Errorf("Class = %q, want EXECUTION", err.Class)
	}
	if err.Subtype != SubtypeStepValidation {
		t.Errorf("Subtype = %q, want StepValidationError", err.Subtype)
	}
}

// Package runner implements the step validator and lifecycle execution
// loop: per-step readyWhen/action/settledWhen/observe hooks, stop-on-error
// semantics, and response-envelope assembly (spec.md §4.5).
package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/schema"
)

// ActionFunc executes one recognized action against the current invocation.
// raw is the JSON value under the step's single action key.
type ActionFunc func(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error)

// actions is the closed set of recognized action keys (spec.md §9 "model a
// step as a tagged union over action variants; the validator is then a
// total function"). Registered in register.go to keep this file free of the
// (lengthy) per-action wiring.
var actions = map[string]ActionFunc{}

// registerAction adds a handler to the closed action set. Called only from
// package-level init in register.go.
func registerAction(name string, fn ActionFunc) {
	if _, exists := actions[name]; exists {
		panic("runner: duplicate action registration for " + name)
	}
	actions[name] = fn
}

// validateStep enforces spec.md §3 "Step": exactly one recognized action
// key, no unknown keys.
func validateStep(s *schema.Step) (actionKey string, err error) {
	keys := s.ActionKeys()
	switch len(keys) {
	case 0:
		return "", errtaxonomy.ValidationErrorf("step has no recognized action key")
	case 1:
		key := keys[0]
		if _, ok := actions[key]; !ok {
			return "", errtaxonomy.ValidationErrorf("unrecognized action %q", key)
		}
		return key, nil
	default:
		return "", errtaxonomy.ValidationErrorf("step has multiple action keys: %v", keys)
	}
}

// ValidateRequest runs validateStep over every step up front, before any
// step executes (spec.md §4.5 "Parameter type/shape validation runs per
// action before execution").
func ValidateRequest(steps []schema.Step) error {
	if len(steps) == 0 {
		return errtaxonomy.ValidationErrorf("steps must be a non-empty array")
	}
	for i, s := range steps {
		if _, err := validateStep(&s); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/schema"
)

const (
	defaultStepTimeout = 30 * time.Second
	maxStepTimeout     = 5 * time.Minute
	hookPollInterval   = 100 * time.Millisecond
)

// warner lets an action's output attach a non-fatal warning to its step
// result (e.g. dom.ClickResult's interception warning) without failing the
// step.
type warner interface{ StepWarning() string }

// stepTimeout resolves a step's effective timeout: its own `timeout` field,
// else the request-level default, clamped to the 5-minute absolute ceiling
// (spec.md §4.5 "wraps the entire lifecycle including hooks, clamped to a
// 5-minute absolute ceiling").
func stepTimeout(s *schema.Step, defaultMS int64) time.Duration {
	ms := s.Timeout
	if ms <= 0 {
		ms = defaultMS
	}
	d := time.Duration(ms) * time.Millisecond
	if d <= 0 {
		d = defaultStepTimeout
	}
	if d > maxStepTimeout {
		d = maxStepTimeout
	}
	return d
}

// RunStep executes one step's full lifecycle: readyWhen -> action ->
// settledWhen -> observe (spec.md §4.5 "Lifecycle").
func RunStep(ctx context.Context, inv *Invocation, s *schema.Step) schema.StepResult {
	actionKey, err := validateStep(s)
	if err != nil {
		return errorResult("", err)
	}

	timeout := stepTimeout(s, inv.DefaultStepTimeoutMS)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.ReadyWhen != "" {
		if _, err := pollPredicate(stepCtx, inv, s.ReadyWhen); err != nil {
			return finishStep(actionKey, s, nil, err)
		}
	}

	output, actErr := actions[actionKey](stepCtx, inv, s.Raw[actionKey])
	result := finishStep(actionKey, s, output, actErr)
	if result.Status == "error" {
		result.Context = captureFailureContext(ctx, inv, s.Raw[actionKey])
		return result
	}
	if result.Status == "skipped" {
		return result
	}

	if s.SettledWhen != "" {
		start := time.Now()
		lastValue, err := pollPredicate(stepCtx, inv, s.SettledWhen)
		if err != nil {
			result.Warning = fmt.Sprintf("settledWhen did not become true within %s (last value: %s): %v", time.Since(start), lastValue, err)
		}
	}

	if s.Observe != "" {
		raw, err := inv.Page.Evaluate(stepCtx, s.Observe)
		if err == nil {
			var v any
			if json.Unmarshal(raw, &v) == nil {
				result.Observation = v
			}
		}
	}

	return result
}

// finishStep assembles a StepResult from an action's (output, err), honoring
// the optional-step-becomes-skipped rule (spec.md §4.5 "Optional steps").
func finishStep(actionKey string, s *schema.Step, output any, err error) schema.StepResult {
	if err != nil {
		if s.Optional {
			return schema.StepResult{Action: actionKey, Status: "skipped"}
		}
		return errorResult(actionKey, err)
	}
	r := schema.StepResult{Action: actionKey, Status: "ok", Output: output}
	if w, ok := output.(warner); ok {
		if msg := w.StepWarning(); msg != "" {
			r.Warning = msg
		}
	}
	return r
}

func errorResult(actionKey string, err error) schema.StepResult {
	resp := errtaxonomy.ToResponse(err)
	return schema.StepResult{Action: actionKey, Status: "error", Error: &resp}
}

// pollPredicate evaluates expr every 100ms until truthy, timeout, or
// cancellation (spec.md §4.5 steps 2 and 4). It returns the predicate's last
// observed value alongside any error, so a timeout warning can report what
// the predicate was actually returning when it gave up (spec.md §4.5 step 4
// "the warning includes the last returned value and elapsed time").
func pollPredicate(ctx context.Context, inv *Invocation, expr string) (lastValue json.RawMessage, err error) {
	for {
		raw, evalErr := inv.Page.Evaluate(ctx, expr)
		if evalErr != nil {
			return lastValue, evalErr
		}
		lastValue = raw
		var truthy bool
		_ = json.Unmarshal(raw, &truthy)
		if truthy {
			return lastValue, nil
		}
		select {
		case <-time.After(hookPollInterval):
		case <-ctx.Done():
			return lastValue, ctx.Err()
		}
	}
}

package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
)

// Action names the action an actionability check gates (spec.md §4.3
// "Actionability").
type Action string

const (
	ActionClick  Action = "click"
	ActionFill   Action = "fill"
	ActionHover  Action = "hover"
	ActionSelect Action = "select"
)

// retrySchedule and actionabilityTimeout implement spec.md §4.3: "0ms, 50ms,
// 100ms, 200ms, bounded by an actionability timeout of 5 seconds".
var retrySchedule = []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

const actionabilityTimeout = 5 * time.Second

// CheckResult is the outcome of one actionability probe.
type CheckResult struct {
	Ready   bool
	Reason  string
}

// checkScript evaluates the preconditions for a given action against the
// element at selector, returning whether it is ready.
const checkScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return { ready: false, reason: 'not attached' };
  if (!el.isConnected) return { ready: false, reason: 'not attached' };
  const action = %s;
  if (action === 'fill') {
    const editableTags = ['INPUT', 'TEXTAREA'];
    const isContentEditable = el.isContentEditable;
    if (!editableTags.includes(el.tagName) && !isContentEditable) {
      return { ready: false, reason: 'not editable' };
    }
    if (el.disabled || el.readOnly) return { ready: false, reason: 'not editable' };
    if (editableTags.includes(el.tagName)) {
      const type = (el.getAttribute('type') || 'text').toLowerCase();
      const nonText = ['checkbox', 'radio', 'button', 'submit', 'reset', 'file', 'range', 'color'];
      if (nonText.includes(type)) return { ready: false, reason: 'not a text-accepting input' };
    }
  }
  return { ready: true };
})()`

// WaitActionable polls the retry schedule until the element at t.Selector
// satisfies the preconditions for action, or the 5s ceiling elapses. On
// timeout, it reports whether the element still exists in the DOM so the
// caller can decide whether to auto-force (spec.md §4.3 "Auto-force").
func WaitActionable(ctx context.Context, p *page.Page, t *Target, action Action) (ready bool, existsInDOM bool, err error) {
	deadline := time.Now().Add(actionabilityTimeout)
	scheduleIdx := 0

	for {
		script := fmt.Sprintf(checkScript, jsString(t.Selector), jsString(string(action)))
		raw, evalErr := p.Evaluate(ctx, script)
		if evalErr != nil {
			return false, false, evalErr
		}
		var result struct {
			Ready  bool   `json:"ready"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			return false, false, fmt.Errorf("dom: decode actionability result: %w", err)
		}
		if result.Ready {
			return true, true, nil
		}
		exists := result.Reason != "not attached"

		if time.Now().After(deadline) {
			return false, exists, nil
		}

		wait := retrySchedule[min(scheduleIdx, len(retrySchedule)-1)]
		scheduleIdx++
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false, exists, ctx.Err()
		}
	}
}

// RequireActionable wraps WaitActionable with spec.md's auto-force fallback:
// if the timeout elapses but the element still exists, it reports
// autoForced=true without running the checks again, and the caller performs
// the action with the checks bypassed.
func RequireActionable(ctx context.Context, p *page.Page, t *Target, action Action) (autoForced bool, err error) {
	ready, exists, err := WaitActionable(ctx, p, t, action)
	if err != nil {
		return false, err
	}
	if ready {
		return false, nil
	}
	if !exists {
		return false, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil,
			"element %q not found for %s", t.Selector, action)
	}
	return true, nil
}

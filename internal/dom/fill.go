package dom

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
)

// FillResult reports the outcome of one field fill (spec.md §4.3 "Fill
// execution").
type FillResult struct {
	ReResolved bool `json:"reResolved,omitempty"`
	React      bool `json:"react,omitempty"`
}

const focusAndClearScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.scrollIntoView({ block: 'center', inline: 'center' });
  el.focus();
  const clear = %s;
  if (clear) {
    if (el.isContentEditable) {
      document.execCommand('selectAll', false, null);
    } else {
      el.select();
    }
  }
  return true;
})()`

// nativeSetterScript bypasses the React synthetic-event layer by invoking
// the native HTMLInputElement/HTMLTextAreaElement prototype value setter
// before dispatching input/change, matching the common trick for
// React-controlled inputs (spec.md §4.3 step 3).
const nativeSetterScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const proto = el.tagName === 'TEXTAREA' ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
  const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
  setter.call(el, %s);
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

const dispatchInputChangeScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

// Fill resolves t, focuses and optionally clears the existing value, inserts
// text via Input.insertText, and dispatches input/change. When react is
// true, the native-setter bypass is used in place of Input.insertText
// (spec.md §4.3 "Fill execution").
func Fill(ctx context.Context, p *page.Page, t *Target, value string, clear bool, react bool) (*FillResult, error) {
	if _, err := RequireActionable(ctx, p, t, ActionFill); err != nil {
		return nil, err
	}

	focusRaw, err := p.Evaluate(ctx, fmt.Sprintf(focusAndClearScript, jsString(t.Selector), boolLit(clear)))
	if err != nil {
		return nil, err
	}
	var focused bool
	_ = json.Unmarshal(focusRaw, &focused)
	if !focused {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "element %q disappeared before fill", t.Selector)
	}

	if react {
		if _, err := p.Evaluate(ctx, fmt.Sprintf(nativeSetterScript, jsString(t.Selector), jsString(value))); err != nil {
			return nil, err
		}
		return &FillResult{ReResolved: t.ReResolved, React: true}, nil
	}

	params := map[string]any{"text": value}
	if _, err := p.Session.Send(ctx, "Input.insertText", params); err != nil {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeNone, err, "insertText: %s", err)
	}
	if _, err := p.Evaluate(ctx, fmt.Sprintf(dispatchInputChangeScript, jsString(t.Selector))); err != nil {
		return nil, err
	}

	return &FillResult{ReResolved: t.ReResolved}, nil
}

// BatchFillResult is one field's outcome within a batch form fill.
type BatchFillResult struct {
	Locator string `json:"locator"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// BatchFill processes a mapping {selector-or-ref: value}, reporting
// per-field success/failure without stopping on the first error (spec.md
// §4.3 "Batch form fill").
func BatchFill(ctx context.Context, p *page.Page, fields map[string]string, react bool) []BatchFillResult {
	results := make([]BatchFillResult, 0, len(fields))
	for locator, value := range fields {
		t, err := Locate(ctx, p, mustMarshal(locator))
		if err != nil {
			results = append(results, BatchFillResult{Locator: locator, Status: "error", Error: err.Error()})
			continue
		}
		if _, err := Fill(ctx, p, t, value, true, react); err != nil {
			results = append(results, BatchFillResult{Locator: locator, Status: "error", Error: err.Error()})
			continue
		}
		results = append(results, BatchFillResult{Locator: locator, Status: "ok"})
	}
	return results
}

func boolLit(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

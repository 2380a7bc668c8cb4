package dom

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
)

const hoverScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return null;
  const rect = el.getBoundingClientRect();
  return { x: rect.left + rect.width / 2, y: rect.top + rect.height / 2 };
})()`

// Hover moves the mouse over t's center via CDP (spec.md §4.3 "hover:
// attached").
func Hover(ctx context.Context, p *page.Page, t *Target) error {
	if _, err := RequireActionable(ctx, p, t, ActionHover); err != nil {
		return err
	}
	raw, err := p.Evaluate(ctx, fmt.Sprintf(hoverScript, jsString(t.Selector)))
	if err != nil {
		return err
	}
	var center *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &center); err != nil {
		return fmt.Errorf("dom: decode hover center: %w", err)
	}
	if center == nil {
		return errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "element %q disappeared before hover", t.Selector)
	}
	_, err = p.Session.Send(ctx, "Input.dispatchMouseEvent", map[string]any{
		"type": "mouseMoved", "x": center.X, "y": center.Y,
	})
	return err
}

const selectScript = `(() => {
  const el = document.querySelector(%s);
  if (!el || el.tagName !== 'SELECT') return { ok: false };
  const value = %s;
  let matched = false;
  for (const opt of el.options) {
    if (opt.value === value || opt.textContent.trim() === value) {
      el.value = opt.value;
      matched = true;
      break;
    }
  }
  if (!matched) return { ok: false };
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return { ok: true };
})()`

// Select chooses an <option> by value or visible text (spec.md §4.3
// "select: attached").
func Select(ctx context.Context, p *page.Page, t *Target, value string) error {
	if _, err := RequireActionable(ctx, p, t, ActionSelect); err != nil {
		return err
	}
	raw, err := p.Evaluate(ctx, fmt.Sprintf(selectScript, jsString(t.Selector), jsString(value)))
	if err != nil {
		return err
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("dom: decode select result: %w", err)
	}
	if !out.OK {
		return errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no option matching %q in %q", value, t.Selector)
	}
	return nil
}

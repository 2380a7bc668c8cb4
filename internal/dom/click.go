package dom

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
)

// ClickResult reports what the click executor actually did (spec.md §4.3
// "Click execution").
type ClickResult struct {
	Method      string         `json:"method"`
	CDPAttempted bool          `json:"cdpAttempted"`
	AutoForced  bool           `json:"autoForced,omitempty"`
	ReResolved  bool           `json:"reResolved,omitempty"`
	Navigated   bool           `json:"navigated,omitempty"`
	NewTabs     []NewTabInfo   `json:"newTabs,omitempty"`
	Warning     string         `json:"-"`
}

// StepWarning lets the runner attach a non-fatal warning (e.g. "click target
// intercepted by ...") to the step result without failing the step.
func (r *ClickResult) StepWarning() string { return r.Warning }

// NewTabInfo describes a browser tab opened as a side effect of a click.
type NewTabInfo struct {
	TargetID string `json:"targetId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// interceptorClasses names the usual suspects surfaced when
// elementFromPoint returns something other than the target (spec.md §4.3
// step 1 "identify the interceptor... cookie banner, consent dialog, modal,
// overlay, popup, notification").
var interceptorClasses = []string{"cookie", "consent", "modal", "overlay", "popup", "notification", "banner"}

const centerAndInterceptorScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return { ok: false };
  const rect = el.getBoundingClientRect();
  const cx = rect.left + rect.width / 2;
  const cy = rect.top + rect.height / 2;
  const hit = document.elementFromPoint(cx, cy);
  const isTargetOrDescendant = hit && (hit === el || el.contains(hit));
  let interceptor = null;
  if (!isTargetOrDescendant && hit) {
    const classes = (hit.className || '').toString().toLowerCase();
    const role = (hit.getAttribute('role') || '').toLowerCase();
    const needles = %s;
    for (const n of needles) {
      if (classes.includes(n) || role.includes(n)) { interceptor = n; break; }
    }
    if (!interceptor) interceptor = hit.tagName.toLowerCase();
  }
  return { ok: true, x: cx, y: cy, intercepted: !isTargetOrDescendant, interceptor };
})()`

// installPointerdownScript arms a one-shot pointerdown listener so the
// caller can verify the CDP-dispatched mouse event actually reached the
// element (spec.md §4.3 step 3).
const installPointerdownScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  window.__cdpSkillPointerdownFired = false;
  el.addEventListener('pointerdown', () => { window.__cdpSkillPointerdownFired = true; }, { once: true });
  return true;
})()`

const checkPointerdownScript = `window.__cdpSkillPointerdownFired === true`

const jsClickScript = `(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.click();
  return true;
})()`

// Click executes the click pipeline: actionability, interceptor detection,
// CDP mouse events, then the pointerdown-gated JS fallback (spec.md §4.3
// "Click execution"). Navigation and new tabs are not detected here; the
// caller records them with AnnotatePostClick.
func Click(ctx context.Context, p *page.Page, t *Target, doubleClick bool) (*ClickResult, error) {
	result := &ClickResult{ReResolved: t.ReResolved}

	autoForced, err := RequireActionable(ctx, p, t, ActionClick)
	if err != nil {
		return nil, err
	}
	result.AutoForced = autoForced

	if !autoForced {
		checkRaw, err := p.Evaluate(ctx, fmt.Sprintf(centerAndInterceptorScript, jsString(t.Selector), jsStringArray(interceptorClasses)))
		if err != nil {
			return nil, err
		}
		var center struct {
			OK          bool    `json:"ok"`
			X           float64 `json:"x"`
			Y           float64 `json:"y"`
			Intercepted bool    `json:"intercepted"`
			Interceptor string  `json:"interceptor"`
		}
		if err := json.Unmarshal(checkRaw, &center); err != nil {
			return nil, fmt.Errorf("dom: decode click center result: %w", err)
		}
		if !center.OK {
			return nil, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "element %q disappeared before click", t.Selector)
		}
		if center.Intercepted {
			result.Warning = fmt.Sprintf("click target intercepted by %s", center.Interceptor)
		}

		if _, err := p.Evaluate(ctx, fmt.Sprintf(installPointerdownScript, jsString(t.Selector))); err != nil {
			return nil, err
		}

		clickCount := 1
		if doubleClick {
			clickCount = 2
		}
		if err := dispatchMouseClick(ctx, p, center.X, center.Y, clickCount); err != nil {
			return nil, errtaxonomy.Execution(errtaxonomy.SubtypeNone, err, "dispatch mouse click: %s", err)
		}
		result.CDPAttempted = true

		firedRaw, err := p.Evaluate(ctx, checkPointerdownScript)
		if err != nil {
			return nil, err
		}
		var fired bool
		_ = json.Unmarshal(firedRaw, &fired)

		if fired {
			result.Method = "cdp"
		} else {
			if _, err := p.Evaluate(ctx, fmt.Sprintf(jsClickScript, jsString(t.Selector))); err != nil {
				return nil, err
			}
			result.Method = "jsClick-auto"
		}
	} else {
		if _, err := p.Evaluate(ctx, fmt.Sprintf(jsClickScript, jsString(t.Selector))); err != nil {
			return nil, err
		}
		result.Method = "jsClick-auto"
	}

	return result, nil
}

func dispatchMouseClick(ctx context.Context, p *page.Page, x, y float64, clickCount int) error {
	moved := map[string]any{"type": "mouseMoved", "x": x, "y": y}
	if _, err := p.Session.Send(ctx, "Input.dispatchMouseEvent", moved); err != nil {
		return err
	}
	pressed := map[string]any{
		"type": "mousePressed", "x": x, "y": y,
		"button": "left", "clickCount": clickCount,
	}
	if _, err := p.Session.Send(ctx, "Input.dispatchMouseEvent", pressed); err != nil {
		return err
	}
	released := map[string]any{
		"type": "mouseReleased", "x": x, "y": y,
		"button": "left", "clickCount": clickCount,
	}
	_, err := p.Session.Send(ctx, "Input.dispatchMouseEvent", released)
	return err
}

// AnnotatePostClick records what the caller (the runner) observed after the
// click: navigated comes from comparing the page URL before and after. The
// runner's click handler passes nil for newTabs, so no new tabs are reported.
func AnnotatePostClick(result *ClickResult, navigated bool, newTabs []NewTabInfo) {
	result.Navigated = navigated
	result.NewTabs = newTabs
}

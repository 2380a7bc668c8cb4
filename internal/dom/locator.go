// Package dom implements element location, actionability gating, and the
// click/fill executors that act on located elements.
package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
	"github.com/cdp-skill/cdp-skill/internal/snapshot"
)

var refPattern = regexp.MustCompile(`^s\d+e\d+$`)

// Target describes one resolved element: a browser-side handle the engine
// keeps no mirror of (spec.md §9 "Refs map in the browser"). Actions address
// the element through its Selector.
type Target struct {
	ObjectID    string
	Selector    string // best-known CSS selector, for diagnostics/re-resolution
	Role        string
	Name        string
	ReResolved  bool
}

// Locate resolves one of: a ref string (s\d+e\d+), a CSS selector, a text
// descriptor, coordinates, or a list of selectors tried in order (spec.md
// §4.3 "Locator inputs").
func Locate(ctx context.Context, p *page.Page, raw json.RawMessage) (*Target, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if refPattern.MatchString(s) {
			return resolveRefTarget(ctx, p, s)
		}
		return locateCSS(ctx, p, s)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var lastErr error
		for _, sel := range list {
			t, err := Locate(ctx, p, mustMarshal(sel))
			if err == nil {
				return t, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "empty selector list")
		}
		return nil, lastErr
	}

	var obj struct {
		Text   string   `json:"text"`
		Label  string   `json:"label"`
		X      *float64 `json:"x"`
		Y      *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.X != nil && obj.Y != nil {
			return locateCoordinate(ctx, p, *obj.X, *obj.Y)
		}
		if obj.Label != "" {
			return locateLabel(ctx, p, obj.Label)
		}
		if obj.Text != "" {
			return locateText(ctx, p, obj.Text)
		}
	}

	return nil, errtaxonomy.StepValidationErrorf("unrecognized locator payload: %s", string(raw))
}

func mustMarshal(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func locateCSS(ctx context.Context, p *page.Page, selector string) (*Target, error) {
	script := fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return null;
  return { role: el.getAttribute('role') || el.tagName.toLowerCase(), name: (el.getAttribute('aria-label') || el.textContent || '').trim().slice(0,80) };
})()`, jsString(selector))
	desc, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if string(desc) == "null" {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no element matches selector %q", selector)
	}
	var d struct {
		Role string `json:"role"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(desc, &d); err != nil {
		return nil, fmt.Errorf("dom: decode locate result: %w", err)
	}
	return &Target{Selector: selector, Role: d.Role, Name: d.Name}, nil
}

// textSearchPriority orders tag candidates for a text-content locator
// (spec.md §4.3 "buttons, links, role=button, then other interactive-like
// tags").
var textSearchPriority = []string{
	"button", "a", "[role=button]", "input[type=submit]", "input[type=button]",
	"[role=link]", "[role=tab]", "[role=menuitem]", "[role=checkbox]",
	"[role=radio]", "input", "select", "textarea", "*",
}

func locateText(ctx context.Context, p *page.Page, text string) (*Target, error) {
	script := fmt.Sprintf(`(() => {
  const needle = %s.toLowerCase();
  const candidates = %s;
  for (const sel of candidates) {
    const els = Array.from(document.querySelectorAll(sel));
    for (const el of els) {
      const name = (el.getAttribute('aria-label') || el.textContent || el.value || '').trim();
      if (name.toLowerCase().includes(needle)) {
        let selector = el.tagName.toLowerCase();
        if (el.id) selector += '#' + el.id;
        return { role: el.getAttribute('role') || el.tagName.toLowerCase(), name: name.slice(0,80), selector };
      }
    }
  }
  return null;
})()`, jsString(text), jsStringArray(textSearchPriority))
	desc, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if string(desc) == "null" {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no element with text matching %q", text)
	}
	var d struct {
		Role     string `json:"role"`
		Name     string `json:"name"`
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal(desc, &d); err != nil {
		return nil, fmt.Errorf("dom: decode locate-text result: %w", err)
	}
	return &Target{Selector: d.Selector, Role: d.Role, Name: d.Name}, nil
}

// labelChainCandidates restricts the label-chain search to elements that can
// plausibly be a form control or actionable target; walking every element on
// the page would make labelTextFor's closest('label') and placeholder checks
// far too loose.
const labelChainCandidates = "input,select,textarea,button,a,[role=button],[role=checkbox],[role=radio],[contenteditable]"

// locateLabel resolves a target via its label chain: `<label for>`, nested
// `<label>`, `aria-label`, `aria-labelledby`, or `placeholder` (spec.md §4.3
// "selector / ref / label chain").
func locateLabel(ctx context.Context, p *page.Page, label string) (*Target, error) {
	script := fmt.Sprintf(`(() => {
  const needle = %s.toLowerCase();

  function labelTextFor(el) {
    const labelledBy = el.getAttribute('aria-labelledby');
    if (labelledBy) {
      const parts = labelledBy.split(/\s+/).map(id => {
        const n = document.getElementById(id);
        return n ? n.textContent.trim() : '';
      }).filter(Boolean);
      if (parts.length) return parts.join(' ');
    }
    const ariaLabel = el.getAttribute('aria-label');
    if (ariaLabel) return ariaLabel.trim();
    if (el.id) {
      const lbl = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
      if (lbl) return lbl.textContent.trim();
    }
    const parentLabel = el.closest('label');
    if (parentLabel) return parentLabel.textContent.trim();
    if (el.getAttribute('placeholder')) return el.getAttribute('placeholder').trim();
    return '';
  }

  const candidates = Array.from(document.querySelectorAll(%s));
  for (const el of candidates) {
    const text = labelTextFor(el);
    if (text && text.toLowerCase().includes(needle)) {
      let selector = el.tagName.toLowerCase();
      if (el.id) selector += '#' + el.id;
      return { role: el.getAttribute('role') || el.tagName.toLowerCase(), name: text.slice(0,80), selector };
    }
  }
  return null;
})()`, jsString(label), jsString(labelChainCandidates))
	desc, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if string(desc) == "null" {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no control matches label %q", label)
	}
	var d struct {
		Role     string `json:"role"`
		Name     string `json:"name"`
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal(desc, &d); err != nil {
		return nil, fmt.Errorf("dom: decode locate-label result: %w", err)
	}
	return &Target{Selector: d.Selector, Role: d.Role, Name: d.Name}, nil
}

func locateCoordinate(ctx context.Context, p *page.Page, x, y float64) (*Target, error) {
	script := fmt.Sprintf(`(() => {
  const el = document.elementFromPoint(%f, %f);
  if (!el) return null;
  return { role: el.getAttribute('role') || el.tagName.toLowerCase(), name: (el.getAttribute('aria-label') || el.textContent || '').trim().slice(0,80) };
})()`, x, y)
	desc, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	if string(desc) == "null" {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no element at (%.0f,%.0f)", x, y)
	}
	var d struct {
		Role string `json:"role"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(desc, &d); err != nil {
		return nil, fmt.Errorf("dom: decode locate-coordinate result: %w", err)
	}
	return &Target{Role: d.Role, Name: d.Name}, nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStringArray(ss []string) string {
	b, _ := json.Marshal(ss)
	return string(b)
}

package runner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cdp-skill/cdp-skill/internal/schema"
)

// diagnosticsScript gathers the page-state snapshot used on step failure
// (spec.md §4.7 "Failure Diagnostics"). Any DOM access here runs inside the
// same try/catch-free evaluate call the caller already wraps in a recover-
// free best-effort: a thrown exception just means no context is attached.
const diagnosticsScript = `(() => {
  function visible(el) {
    const r = el.getBoundingClientRect();
    if (r.width === 0 || r.height === 0) return false;
    const s = getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden';
  }
  function text(el, max) {
    return (el.textContent || '').trim().slice(0, max);
  }
  function bestSelector(el) {
    if (el.id) return '#' + el.id;
    if (el.className && typeof el.className === 'string') {
      const cls = el.className.trim().split(/\s+/)[0];
      if (cls) return el.tagName.toLowerCase() + '.' + cls;
    }
    return el.tagName.toLowerCase();
  }

  const buttons = [];
  for (const el of document.querySelectorAll('button,[role=button],input[type=submit],input[type=button]')) {
    if (!visible(el)) continue;
    buttons.push({ text: text(el, 50), selector: bestSelector(el) });
    if (buttons.length >= 8) break;
  }

  const links = [];
  for (const el of document.querySelectorAll('a[href]')) {
    if (!visible(el)) continue;
    links.push({ text: text(el, 50), href: (el.href || '').slice(0, 100) });
    if (links.length >= 5) break;
  }

  const errors = [];
  for (const el of document.querySelectorAll('.error,.alert,[role=alert],.error-message,.form-error')) {
    if (!visible(el)) continue;
    errors.push({ text: text(el, 50), selector: bestSelector(el) });
    if (errors.length >= 3) break;
  }

  return JSON.stringify({
    title: document.title,
    url: location.href,
    scroll: { x: window.scrollX, y: window.scrollY, maxY: document.documentElement.scrollHeight - window.innerHeight },
    buttons, links, errors,
  });
})()`

type diagnosticsSnapshot struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Scroll struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		MaxY float64 `json:"maxY"`
	} `json:"scroll"`
	Buttons []candidateRaw `json:"buttons"`
	Links   []candidateRaw `json:"links"`
	Errors  []candidateRaw `json:"errors"`
}

type candidateRaw struct {
	Text     string `json:"text"`
	Href     string `json:"href"`
	Selector string `json:"selector"`
}

// captureFailureContext gathers best-effort diagnostics for a failed step.
// Any error here is swallowed so the primary step error is preserved
// (spec.md §4.7 "Any exception raised while gathering context is
// swallowed").
func captureFailureContext(ctx context.Context, inv *Invocation, actionParams json.RawMessage) *schema.FailureContext {
	if inv == nil || inv.Page == nil {
		return nil
	}
	raw, err := inv.Page.Evaluate(ctx, diagnosticsScript)
	if err != nil {
		return nil
	}
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err != nil {
		return nil
	}
	var snap diagnosticsSnapshot
	if err := json.Unmarshal([]byte(jsonStr), &snap); err != nil {
		return nil
	}

	fc := &schema.FailureContext{
		Title: snap.Title,
		URL:   snap.URL,
		Scroll: schema.ScrollContext{
			X: snap.Scroll.X, Y: snap.Scroll.Y, MaxY: snap.Scroll.MaxY,
			Percent: percent(snap.Scroll.Y, snap.Scroll.MaxY),
		},
	}
	for _, b := range snap.Buttons {
		fc.Buttons = append(fc.Buttons, schema.Candidate{Text: b.Text, Selector: b.Selector})
	}
	for _, l := range snap.Links {
		fc.Links = append(fc.Links, schema.Candidate{Text: l.Text, Href: l.Href})
	}
	for _, e := range snap.Errors {
		fc.Errors = append(fc.Errors, schema.Candidate{Text: e.Text, Selector: e.Selector})
	}

	if term := extractSearchTerm(actionParams); term != "" {
		fc.Matches = nearMatches(term, snap)
	}
	return fc
}

func percent(y, maxY float64) float64 {
	if maxY <= 0 {
		return 0
	}
	return y / maxY * 100
}

// extractSearchTerm best-effort-recovers the selector/text argument a
// failed locate-driven action carried, for near-match scoring (spec.md
// §4.7 "if the failure carried a selector or text argument").
func extractSearchTerm(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Selector string `json:"selector"`
		Text     string `json:"text"`
		Ref      string `json:"ref"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Text != "" {
			return obj.Text
		}
		if obj.Selector != "" {
			return obj.Selector
		}
		return obj.Ref
	}
	return ""
}

// nearMatches scores visible buttons/links/errors against term per spec.md
// §4.7's table, returning up to 5 ranked by score.
func nearMatches(term string, snap diagnosticsSnapshot) []schema.NearMatch {
	needle := strings.ToLower(strings.TrimSpace(term))
	var out []schema.NearMatch
	score := func(text string) int {
		t := strings.ToLower(strings.TrimSpace(text))
		if t == "" || needle == "" {
			return 0
		}
		if t == needle {
			return 100
		}
		if strings.Contains(t, needle) {
			return 80
		}
		if len(t) >= 3 && strings.Contains(needle, t) {
			return 70
		}
		if commonWord(t, needle) {
			return 50
		}
		return 0
	}
	add := func(c candidateRaw, isLink bool) {
		s := score(c.Text)
		if s == 0 {
			return
		}
		cand := schema.Candidate{Text: c.Text, Selector: c.Selector}
		if isLink {
			cand.Href = c.Href
		}
		out = append(out, schema.NearMatch{Candidate: cand, Score: s})
	}
	for _, b := range snap.Buttons {
		add(b, false)
	}
	for _, l := range snap.Links {
		add(l, true)
	}
	for _, e := range snap.Errors {
		add(e, false)
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score > out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// commonWord reports whether a and b share a word of at least 3 characters
// (spec.md §4.7 "at least one ≥3-char word in common").
func commonWord(a, b string) bool {
	wordsOf := func(s string) map[string]bool {
		m := make(map[string]bool)
		for _, w := range strings.Fields(s) {
			if len(w) >= 3 {
				m[w] = true
			}
		}
		return m
	}
	aw := wordsOf(a)
	for w := range wordsOf(b) {
		if aw[w] {
			return true
		}
	}
	return false
}

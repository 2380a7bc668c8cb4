package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/page"
)

// MatchMode selects how SearchQuery.Text is compared against element
// accessible names/content (spec.md §4.4 "word-boundary / exact / substring
// match modes").
type MatchMode string

const (
	MatchSubstring    MatchMode = "substring"
	MatchExact        MatchMode = "exact"
	MatchWordBoundary MatchMode = "wordBoundary"
)

// SearchQuery is a targeted snapshot-search request (spec.md §4.4 "Snapshot
// search").
type SearchQuery struct {
	Text      string
	Pattern   string
	Role      string
	X, Y      *float64
	Radius    float64
	Mode      MatchMode
}

// SearchResult is one matching element.
type SearchResult struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Ref      string `json:"ref,omitempty"`
	State    map[string]bool `json:"state,omitempty"`
}

const searchScript = `(() => {
  const lib = window.__cdpSkillLib;
  const q = %s;
  const mode = q.mode || 'substring';

  function matches(name) {
    if (q.pattern) {
      try { return new RegExp(q.pattern, 'i').test(name); } catch (e) { return false; }
    }
    if (!q.text) return true;
    const n = name.toLowerCase();
    const t = q.text.toLowerCase();
    if (mode === 'exact') return n === t;
    if (mode === 'wordBoundary') return new RegExp('\\b' + t.replace(/[.*+?^${}()|[\]\\]/g, '\\$&') + '\\b', 'i').test(n);
    return n.includes(t);
  }

  function path(el) {
    const parts = [];
    let cur = el;
    while (cur && cur.nodeType === 1 && parts.length < 6) {
      let seg = cur.tagName.toLowerCase();
      if (cur.id) seg += '#' + cur.id;
      parts.unshift(seg);
      cur = cur.parentElement;
    }
    return parts.join(' > ');
  }

  let candidates;
  if (q.x !== null && q.y !== null) {
    const r = q.radius || 20;
    candidates = [];
    for (let dx = -r; dx <= r; dx += Math.max(5, r / 2)) {
      for (let dy = -r; dy <= r; dy += Math.max(5, r / 2)) {
        const el = document.elementFromPoint(q.x + dx, q.y + dy);
        if (el && !candidates.includes(el)) candidates.push(el);
      }
    }
  } else {
    candidates = Array.from(document.querySelectorAll('*'));
  }

  const results = [];
  for (const el of candidates) {
    if (q.role && lib.computeRole(el) !== q.role) continue;
    const name = lib.computeName(el);
    if (!matches(name)) continue;
    const result = { role: lib.computeRole(el), name, path: path(el) };
    const state = lib.stateAttrs(el);
    if (Object.keys(state).length) result.state = state;
    if (lib.isInteractive(el)) result.ref = lib.refFor(el);
    results.push(result);
    if (results.length >= 50) break;
  }
  return JSON.stringify(results);
})()`

// Search runs a targeted query against the live page (spec.md §4.4).
func Search(ctx context.Context, p *page.Page, q SearchQuery) ([]SearchResult, error) {
	if err := EnsureLib(ctx, p); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"text":    q.Text,
		"pattern": q.Pattern,
		"role":    q.Role,
		"radius":  q.Radius,
		"mode":    string(q.Mode),
	}
	if q.X != nil && q.Y != nil {
		payload["x"] = *q.X
		payload["y"] = *q.Y
	} else {
		payload["x"] = nil
		payload["y"] = nil
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal search query: %w", err)
	}
	script := fmt.Sprintf(searchScript, string(payloadJSON))
	raw, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err != nil {
		return nil, fmt.Errorf("snapshot: decode search wrapper: %w", err)
	}
	var results []SearchResult
	if err := json.Unmarshal([]byte(jsonStr), &results); err != nil {
		return nil, fmt.Errorf("snapshot: decode search results: %w", err)
	}
	return results, nil
}

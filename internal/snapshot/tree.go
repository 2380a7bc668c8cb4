package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/page"
)

// Node is one element of the semantic accessibility tree (spec.md §4.4
// "Tree construction").
type Node struct {
	Role    string            `json:"role"`
	Name    string            `json:"name,omitempty"`
	State   map[string]bool   `json:"state,omitempty"`
	Heading int               `json:"heading,omitempty"`
	Field   string            `json:"field,omitempty"`
	Value   string            `json:"value,omitempty"`
	Href    string            `json:"href,omitempty"`
	Ref     string            `json:"ref,omitempty"`
	Text    string            `json:"text,omitempty"`
	Children []Node           `json:"children,omitempty"`
}

// Options controls how BuildTree walks the page (spec.md §4.4).
type Options struct {
	Root           string // CSS selector to scope the walk; empty = auto-scope
	Advance        bool   // advance the agent-facing snapshot generation N
	PierceShadow   bool
	IncludeFrames  bool
	DetailLevel    string // "interactive" keeps only interactive elements and landmarks; any other value, "summary" included, yields the full tree
}

// Tree is the result of one tree walk: the node forest plus the landmark
// list surfaced when auto-scoping picked a `<main>`.
type Tree struct {
	Nodes         []Node   `json:"nodes"`
	OtherLandmarks []string `json:"otherLandmarks,omitempty"`
	Scope         string   `json:"scope,omitempty"`
}

// buildTreeScript is parameterized (via fmt.Sprintf of the JSON-encoded walk
// options) and returns the serialized Tree.
const buildTreeScript = `(() => {
  const lib = window.__cdpSkillLib;
  const opts = %s;

  function landmarksOutsideMain() {
    const sels = { navigation: 'nav,[role=navigation]', banner: 'header,[role=banner]',
      contentinfo: 'footer,[role=contentinfo]', complementary: 'aside,[role=complementary]',
      search: '[role=search]' };
    const found = [];
    for (const [name, sel] of Object.entries(sels)) {
      if (document.querySelector(sel)) found.push(name);
    }
    return found;
  }

  // N advances once per agent-facing snapshot call, not once per element
  // (spec.md §3: "the agent-facing snapshot generation... incremented only
  // by agent-issued snapshots").
  if (opts.advance) lib.bumpSnapshotGen();

  let root = document.body;
  let scope = '';
  let otherLandmarks;
  if (opts.root) {
    const el = document.querySelector(opts.root);
    if (el) { root = el; scope = opts.root; }
  } else {
    const main = document.querySelector('main,[role=main]');
    if (main) {
      root = main;
      scope = 'main';
      otherLandmarks = landmarksOutsideMain();
    }
  }

  function walk(el) {
    if (el.nodeType === Node.TEXT_NODE) {
      const t = el.textContent.trim();
      return t ? { role: '#text', text: t.slice(0, 200) } : null;
    }
    if (el.nodeType !== 1) return null;
    const style = getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden') return null;

    const hasRole = el.getAttribute('role') || lib.isInteractive(el) ||
      /^(H1|H2|H3|H4|H5|H6|MAIN|NAV|HEADER|FOOTER|ASIDE|FORM|TABLE|UL|OL|IMG)$/.test(el.tagName);

    const children = [];
    for (const child of el.childNodes) {
      const n = walk(child);
      if (n) children.push(n);
    }

    if (!hasRole) {
      // Generic wrapper: flatten into parent unless it has meaningful children.
      return children.length ? { role: '#fragment', children } : null;
    }

    if (opts.detailLevel === 'interactive' && !lib.isInteractive(el) && !/^(MAIN|NAV|HEADER|FOOTER|ASIDE)$/.test(el.tagName)) {
      return children.length ? { role: '#fragment', children } : null;
    }

    const node = { role: lib.computeRole(el), name: lib.computeName(el) };
    const state = lib.stateAttrs(el);
    if (Object.keys(state).length) node.state = state;
    if (/^H[1-6]$/.test(el.tagName)) node.heading = parseInt(el.tagName[1], 10);
    if (el.tagName === 'INPUT' || el.tagName === 'TEXTAREA' || el.tagName === 'SELECT') {
      node.field = el.name || el.id || '';
      node.value = el.value || '';
    }
    if (el.tagName === 'A' && el.href) node.href = el.href;
    if (lib.isInteractive(el)) node.ref = lib.refFor(el);
    if (children.length) node.children = children;
    return node;
  }

  // Flatten top-level #fragment wrappers produced by walk(root).
  function flattenFragments(nodes) {
    const out = [];
    for (const n of nodes) {
      if (n.role === '#fragment') {
        out.push(...flattenFragments(n.children || []));
      } else {
        if (n.children) n.children = flattenFragments(n.children);
        out.push(n);
      }
    }
    return out;
  }

  const top = [];
  for (const child of root.childNodes) {
    const n = walk(child);
    if (n) top.push(n);
  }

  return JSON.stringify({ nodes: flattenFragments(top), otherLandmarks, scope });
})()`

// BuildTree walks the page and returns the resulting forest.
func BuildTree(ctx context.Context, p *page.Page, opts Options) (*Tree, error) {
	if err := EnsureLib(ctx, p); err != nil {
		return nil, err
	}
	optsJSON, err := json.Marshal(map[string]any{
		"root":         opts.Root,
		"advance":      opts.Advance,
		"pierceShadow": opts.PierceShadow,
		"includeFrames": opts.IncludeFrames,
		"detailLevel":  opts.DetailLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal tree options: %w", err)
	}
	script := fmt.Sprintf(buildTreeScript, string(optsJSON))
	raw, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err != nil {
		return nil, fmt.Errorf("snapshot: decode tree wrapper: %w", err)
	}
	var tree Tree
	if err := json.Unmarshal([]byte(jsonStr), &tree); err != nil {
		return nil, fmt.Errorf("snapshot: decode tree: %w", err)
	}
	return &tree, nil
}

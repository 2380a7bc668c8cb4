package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
)

// ResolvedRef is the outcome of resolving a ref string against the
// browser-side refs map.
type ResolvedRef struct {
	ObjectID   string // unset: the engine addresses elements by Selector, not a CDP remote objectId
	Selector   string
	Role       string
	Name       string
	ReResolved bool
}

// ResolveRef runs the 5-stage re-resolution ladder from spec.md §4.3 against
// window.__cdpSkillLib's refs map: fast path, selector fallback, role+name
// search, shadow-path traversal, then a document-wide shadow sweep as a last
// resort.
func ResolveRef(ctx context.Context, p *page.Page, ref string) (*ResolvedRef, error) {
	if err := EnsureLib(ctx, p); err != nil {
		return nil, err
	}
	script := fmt.Sprintf(`JSON.stringify(window.__cdpSkillLib.resolveRef(%q))`, ref)
	raw, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, err
	}
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err != nil {
		return nil, fmt.Errorf("snapshot: decode resolveRef wrapper: %w", err)
	}
	var out struct {
		Found      bool   `json:"found"`
		ReResolved bool   `json:"reResolved"`
		Selector   string `json:"selector"`
		Role       string `json:"role"`
		Name       string `json:"name"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return nil, fmt.Errorf("snapshot: decode resolveRef result: %w", err)
	}
	if !out.Found {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeStaleElement, nil,
			"ref %s no longer resolves to a live element; take a fresh snapshot", ref)
	}
	return &ResolvedRef{
		Selector:   out.Selector,
		Role:       out.Role,
		Name:       out.Name,
		ReResolved: out.ReResolved,
	}, nil
}

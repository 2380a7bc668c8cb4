package dom

import (
	"context"

	"github.com/cdp-skill/cdp-skill/internal/page"
	"github.com/cdp-skill/cdp-skill/internal/snapshot"
)

// resolveRefTarget delegates to the snapshot engine's ref re-resolution
// ladder (spec.md §4.3 "Ref resolution algorithm" — fast path through
// document-wide shadow sweep) and adapts the result to a dom.Target.
func resolveRefTarget(ctx context.Context, p *page.Page, ref string) (*Target, error) {
	r, err := snapshot.ResolveRef(ctx, p, ref)
	if err != nil {
		return nil, err
	}
	return &Target{
		ObjectID:   r.ObjectID,
		Selector:   r.Selector,
		Role:       r.Role,
		Name:       r.Name,
		ReResolved: r.ReResolved,
	}, nil
}

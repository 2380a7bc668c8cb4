// Package snapshot implements the accessibility-tree/ref engine: tree
// construction, versioned element references with a 5-stage re-resolution
// ladder, content-hash caching for `since`, YAML-like rendering, and
// targeted search — all backed by a small JavaScript runtime library
// installed once per tab (spec.md §4.4, §9 "Refs map in the browser").
package snapshot

import (
	"context"
	_ "embed"

	"github.com/cdp-skill/cdp-skill/internal/page"
)

//go:embed js/lib.js
var libScript string

// EnsureLib installs the in-page runtime library if it is not already
// present. Idempotent: lib.js itself guards against double-installation.
func EnsureLib(ctx context.Context, p *page.Page) error {
	_, err := p.Evaluate(ctx, libScript)
	return err
}

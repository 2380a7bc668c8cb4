package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cdp-skill/cdp-skill/internal/page"
)

// contentHashScript computes the tuple this engine widens beyond the
// original `(url, scrollY, DOM-size, interactive-count)` per the Open
// Question decision in SPEC_FULL.md / DESIGN.md: it also folds in a checksum
// of every interactive element's state attributes, so toggling a checkbox or
// expanding a dropdown changes the hash even though DOM size is unchanged
// (spec.md §9 "widen the equality relation").
const contentHashScript = `(() => {
  const lib = window.__cdpSkillLib;
  const all = document.querySelectorAll('*');
  let interactiveCount = 0;
  let stateChecksum = 0;
  for (const el of all) {
    if (!lib.isInteractive(el)) continue;
    interactiveCount++;
    const state = lib.stateAttrs(el);
    const s = Object.keys(state).sort().map(k => k + '=' + state[k]).join(',');
    for (let i = 0; i < s.length; i++) {
      stateChecksum = (stateChecksum * 31 + s.charCodeAt(i)) >>> 0;
    }
  }
  return JSON.stringify({
    url: location.href,
    scrollY: window.scrollY,
    domSize: all.length,
    interactiveCount,
    stateChecksum,
  });
})()`

// ContentHash computes the current page's content-hash tuple and folds it
// into an opaque hex digest tied to a snapshot generation (spec.md §3
// "Content hash").
func ContentHash(ctx context.Context, p *page.Page) (string, error) {
	raw, err := p.Evaluate(ctx, contentHashScript)
	if err != nil {
		return "", err
	}
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err != nil {
		return "", fmt.Errorf("snapshot: decode content-hash wrapper: %w", err)
	}
	sum := sha256.Sum256([]byte(jsonStr))
	return hex.EncodeToString(sum[:]), nil
}

// RecordHash stores hash against generation gen in the browser's runtime
// library state. The store must live in the browser, not the Go process:
// the CLI is stateless per invocation, so a `since` check made in a later
// invocation can only compare against a hash recorded during an earlier one
// if that hash outlives the process (spec.md §9 "Global counters... the
// host holds no mirror").
func RecordHash(ctx context.Context, p *page.Page, gen int, hash string) error {
	script := fmt.Sprintf("window.__cdpSkillLib.recordHash(%d, %q)", gen, hash)
	_, err := p.Evaluate(ctx, script)
	return err
}

// CheckSince computes the current content hash and compares it against the
// hash recorded for generation gen, implementing the `since:"sN"` unchanged
// contract (spec.md §4.4 "Change-hash caching").
func CheckSince(ctx context.Context, p *page.Page, gen int) (unchanged bool, err error) {
	if err := EnsureLib(ctx, p); err != nil {
		return false, err
	}
	current, err := ContentHash(ctx, p)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf("window.__cdpSkillLib.getHash(%d)", gen)
	raw, err := p.Evaluate(ctx, script)
	if err != nil {
		return false, err
	}
	var stored *string
	if err := json.Unmarshal(raw, &stored); err != nil {
		return false, fmt.Errorf("snapshot: decode stored hash: %w", err)
	}
	if stored == nil {
		return false, nil
	}
	return *stored == current, nil
}

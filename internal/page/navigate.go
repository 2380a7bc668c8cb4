package page

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
)

// WaitUntil selects when Goto considers navigation complete (spec.md §4.2).
type WaitUntil string

const (
	WaitCommit            WaitUntil = "commit"
	WaitDOMContentLoaded  WaitUntil = "DOMContentLoaded"
	WaitLoad              WaitUntil = "load"
	WaitNetworkIdle       WaitUntil = "networkidle"
)

// NavResult reports what Goto actually did, for the runner's envelope.
type NavResult struct {
	URL        string
	HashOnly   bool
	SPA        bool
}

// spaNavScript is evaluated once per attached page to detect client-side
// route changes within the same command (spec.md §9 bug 11.1): it wraps
// history.pushState/replaceState and records the most recent URL on a global
// the engine polls after an action.
const spaNavScript = `(() => {
  if (window.__cdpSkillSpaHooked) return;
  window.__cdpSkillSpaHooked = true;
  window.__cdpSkillSpaNav = null;
  const wrap = (fn) => function(...args) {
    const ret = fn.apply(this, args);
    window.__cdpSkillSpaNav = location.href;
    return ret;
  };
  history.pushState = wrap(history.pushState);
  history.replaceState = wrap(history.replaceState);
})()`

// InstrumentSPANavigation installs the pushState/replaceState hook. Safe to
// call multiple times; idempotent in the page.
func (p *Page) InstrumentSPANavigation(ctx context.Context) error {
	_, err := p.Evaluate(ctx, spaNavScript)
	return err
}

// ConsumeSPANavigation returns the URL recorded by the pushState hook since
// it was last consumed, or "" if no client-side navigation was observed.
func (p *Page) ConsumeSPANavigation(ctx context.Context) (string, error) {
	result, err := p.Evaluate(ctx, `(() => { const u = window.__cdpSkillSpaNav; window.__cdpSkillSpaNav = null; return u || ""; })()`)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", nil
	}
	return s, nil
}

// Goto navigates to rawURL, honoring waitUntil, and runs the network-settle
// best-effort wait afterward. Hash-only same-origin targets are handled via
// location.hash assignment rather than a full navigation (spec.md §9 bug
// 11.2), which never triggers a new document load.
func (p *Page) Goto(ctx context.Context, rawURL string, waitUntil WaitUntil) (*NavResult, error) {
	current, _ := p.CurrentURL(ctx)
	if hashOnlyTarget(current, rawURL) {
		if err := p.setLocationHash(ctx, rawURL); err != nil {
			return nil, err
		}
		return &NavResult{URL: rawURL, HashOnly: true}, nil
	}

	lifecycleCh := make(chan string, 8)
	var unsub func()
	unsub = p.onLifecycleEvent(func(name string) {
		select {
		case lifecycleCh <- name:
		default:
		}
	})
	defer unsub()

	params := map[string]any{"url": rawURL}
	if _, err := p.Session.Send(ctx, "Page.navigate", params); err != nil {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeNavigation, err, "navigate to %s: %s", rawURL, err)
	}

	target := lifecycleTarget(waitUntil)
	if target != "" {
		if err := waitForLifecycle(ctx, lifecycleCh, target); err != nil {
			return nil, errtaxonomy.Execution(errtaxonomy.SubtypeTimeout, err, "navigation wait %q timed out", waitUntil)
		}
	}

	if waitUntil == WaitNetworkIdle {
		if err := p.NetworkIdle(ctx); err != nil {
			return nil, errtaxonomy.Execution(errtaxonomy.SubtypeTimeout, err, "network idle wait timed out")
		}
	} else {
		p.NetworkSettle(ctx)
	}

	_ = p.InstrumentSPANavigation(ctx)
	return &NavResult{URL: rawURL}, nil
}

// Reload issues Page.reload and waits for the load event.
func (p *Page) Reload(ctx context.Context) error {
	lifecycleCh := make(chan string, 8)
	unsub := p.onLifecycleEvent(func(name string) {
		select {
		case lifecycleCh <- name:
		default:
		}
	})
	defer unsub()
	if _, err := p.Session.Send(ctx, "Page.reload", map[string]any{}); err != nil {
		return errtaxonomy.Execution(errtaxonomy.SubtypeNavigation, err, "reload: %s", err)
	}
	if err := waitForLifecycle(ctx, lifecycleCh, "load"); err != nil {
		return errtaxonomy.Execution(errtaxonomy.SubtypeTimeout, err, "reload wait timed out")
	}
	p.NetworkSettle(ctx)
	return nil
}

// Back and Forward replay browser history via Page.navigateToHistoryEntry,
// resolved against Page.getNavigationHistory.
func (p *Page) Back(ctx context.Context) error  { return p.navigateHistory(ctx, -1) }
func (p *Page) Forward(ctx context.Context) error { return p.navigateHistory(ctx, 1) }

func (p *Page) navigateHistory(ctx context.Context, delta int) error {
	result, err := p.Session.Send(ctx, "Page.getNavigationHistory", nil)
	if err != nil {
		return errtaxonomy.Execution(errtaxonomy.SubtypeNavigation, err, "get navigation history: %s", err)
	}
	var hist struct {
		CurrentIndex int `json:"currentIndex"`
		Entries      []struct {
			ID int64 `json:"id"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(result, &hist); err != nil {
		return fmt.Errorf("page: decode navigation history: %w", err)
	}
	target := hist.CurrentIndex + delta
	if target < 0 || target >= len(hist.Entries) {
		return errtaxonomy.Execution(errtaxonomy.SubtypeNavigationAborted, nil, "no history entry in that direction")
	}
	_, err = p.Session.Send(ctx, "Page.navigateToHistoryEntry", map[string]any{"entryId": hist.Entries[target].ID})
	if err != nil {
		return errtaxonomy.Execution(errtaxonomy.SubtypeNavigation, err, "navigateToHistoryEntry: %s", err)
	}
	p.NetworkSettle(ctx)
	return nil
}

// CurrentURL reads location.href in the current frame's execution context
// (see Evaluate).
func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	result, err := p.Evaluate(ctx, "location.href")
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", nil
	}
	return s, nil
}

func hashOnlyTarget(currentURL, target string) bool {
	if currentURL == "" {
		return false
	}
	cu, err1 := url.Parse(currentURL)
	tu, err2 := url.Parse(target)
	if err1 != nil || err2 != nil {
		return false
	}
	if tu.Fragment == "" {
		return false
	}
	sameOrigin := cu.Scheme == tu.Scheme && cu.Host == tu.Host
	samePath := cu.Path == tu.Path || (tu.Path == "" && !strings.Contains(target, tu.Host))
	return sameOrigin && samePath && tu.RawQuery == cu.RawQuery
}

func (p *Page) setLocationHash(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("page: parse hash target: %w", err)
	}
	script := fmt.Sprintf("location.hash = %q", u.Fragment)
	_, err = p.Evaluate(ctx, script)
	return err
}

// onLifecycleEvent subscribes to Page.lifecycleEvent, returning an unsubscribe
// func. Listener registration in cdp.Session is append-only; the returned
// func clears an active flag that makes the handler a no-op afterwards.
func (p *Page) onLifecycleEvent(fn func(name string)) func() {
	active := true
	p.Session.On("Page.lifecycleEvent", func(raw json.RawMessage) {
		if !active {
			return
		}
		var ev struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		fn(ev.Name)
	})
	return func() { active = false }
}

func lifecycleTarget(w WaitUntil) string {
	switch w {
	case WaitCommit:
		return "commit"
	case WaitDOMContentLoaded:
		return "DOMContentLoaded"
	case WaitLoad, WaitNetworkIdle, "":
		return "load"
	default:
		return "load"
	}
}

func waitForLifecycle(ctx context.Context, ch <-chan string, name string) error {
	for {
		select {
		case got := <-ch:
			if got == name {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Evaluate runs expr in the current frame's execution context (main frame or
// the cached isolated world for the active cross-origin frame).
func (p *Page) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	params := map[string]any{
		"expression":    expr,
		"returnByValue": true,
		"awaitPromise":  true,
	}
	if ctxID, ok := p.currentContextID(); ok {
		params["contextId"] = ctxID
	}
	result, err := p.Session.Send(ctx, "Runtime.evaluate", params)
	if err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "Runtime.evaluate: %s", err)
	}
	var out struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("page: decode evaluate result: %w", err)
	}
	if out.ExceptionDetails != nil {
		msg := out.ExceptionDetails.Text
		if errtaxonomy.IsContextDestroyed(msg) {
			return nil, errtaxonomy.Execution(errtaxonomy.SubtypeContextDestroyed, nil, "%s", msg)
		}
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeNone, nil, "evaluate threw: %s", msg)
	}
	return out.Result.Value, nil
}

func (p *Page) currentContextID() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentFrameID == "" {
		return 0, false
	}
	id, ok := p.isolatedWorlds[p.currentFrameID]
	return id, ok
}

package runner

import (
	"github.com/sirupsen/logrus"

	"github.com/cdp-skill/cdp-skill/internal/cdp"
	"github.com/cdp-skill/cdp-skill/internal/page"
	"github.com/cdp-skill/cdp-skill/internal/siteprofile"
	"github.com/cdp-skill/cdp-skill/internal/tabs"
)

// Invocation carries everything an action handler needs to touch the
// browser, the registry, and the site-profile store for the duration of one
// CLI invocation (spec.md §3 "Sessions live for the duration of one CLI
// invocation").
type Invocation struct {
	Transport *cdp.Transport
	Session   *cdp.Session
	Page      *page.Page
	Endpoint  cdp.Endpoint

	Registry *tabs.Registry
	Alias    string

	Sites *siteprofile.Store

	Log *logrus.Entry

	// DefaultStepTimeoutMS is request.timeout, or 30000 if unset (spec.md
	// §6 "timeout (number, ms, default 30000): per-step ceiling").
	DefaultStepTimeoutMS int64

	// navigatedDuringCommand is set by the goto/back/forward/reload/click
	// handlers and read by the envelope assembler to decide whether to
	// skip the viewport diff (spec.md §4.5 "navigation detection").
	navigatedDuringCommand bool
	lastURL                string

	// actionContexts accumulates a short label per executed action
	// ("Clicked", "Typed", ...) for the diff summary's action-context
	// prefix (spec.md §4.6).
	actionContexts []string
}

func (inv *Invocation) markNavigated(url string) {
	inv.navigatedDuringCommand = true
	inv.lastURL = url
}

func (inv *Invocation) noteAction(label string) {
	inv.actionContexts = append(inv.actionContexts, label)
}

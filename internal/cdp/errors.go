package cdp

import (
	"errors"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
)

// errChromeNotFound is returned by the platform probes when no Chrome or
// Chromium binary can be located and CHROME_PATH is unset.
var errChromeNotFound = errors.New("cdp: no chrome/chromium executable found; set CHROME_PATH")

// Classify maps a raw CDP error message to the execution error taxonomy
// (spec.md §5 "Error handling"): stale-reference and context-destroyed
// messages get their dedicated subtypes, everything else a generic
// connection-class error.
func Classify(cause error) *errtaxonomy.Error {
	if cause == nil {
		return nil
	}
	msg := cause.Error()
	switch {
	case errtaxonomy.IsStale(msg):
		return errtaxonomy.Execution(errtaxonomy.SubtypeStaleElement, cause, "%s", msg)
	case errtaxonomy.IsContextDestroyed(msg):
		return errtaxonomy.Execution(errtaxonomy.SubtypeContextDestroyed, cause, "%s", msg)
	default:
		return errtaxonomy.ConnectionErrorf(cause, "%s", msg)
	}
}

package schema

import "github.com/cdp-skill/cdp-skill/internal/errtaxonomy"

// Response is the top-level JSON object emitted to stdout. Every field except
// Status is `omitempty`; that tag alone is what drops the fields the spec
// calls out as "present only on failure"/"only true" when they are unset, as
// nothing clears them before marshalling.
type Response struct {
	Status string `json:"status"`
	Tab    string `json:"tab,omitempty"`

	SiteProfile    string          `json:"siteProfile,omitempty"`
	ActionRequired *ActionRequired `json:"actionRequired,omitempty"`

	Navigated bool `json:"navigated,omitempty"`

	FullSnapshot string `json:"fullSnapshot,omitempty"`
	Screenshot   string `json:"screenshot,omitempty"`

	Context *PageContext `json:"context,omitempty"`

	ViewportSnapshot string `json:"viewportSnapshot,omitempty"`

	Changes *Diff `json:"changes,omitempty"`

	Console *ConsoleSummary `json:"console,omitempty"`

	Steps []StepResult `json:"steps,omitempty"`

	Errors *errtaxonomy.Response `json:"errors,omitempty"`

	Truncated bool `json:"truncated,omitempty"`
}

// ActionRequired describes an interstitial the engine detected (e.g. a site
// profile prompting the agent to handle a login wall) that the caller should
// resolve before continuing.
type ActionRequired struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// ActiveElement describes the currently focused element, or nil.
type ActiveElement struct {
	Role string `json:"role,omitempty"`
	Name string `json:"name,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// ModalDescriptor describes an open native or ARIA-role modal dialog, or nil.
type ModalDescriptor struct {
	Role  string `json:"role,omitempty"`
	Title string `json:"title,omitempty"`
}

// ScrollPosition is the page's current scroll offset.
type ScrollPosition struct {
	Y       float64 `json:"y"`
	Percent float64 `json:"percent"`
}

// PageContext is the per-command page context snapshot (spec §4.5).
type PageContext struct {
	URL            string           `json:"url"`
	Title          string           `json:"title"`
	Scroll         ScrollPosition   `json:"scroll"`
	ViewportWidth  int64            `json:"viewportWidth"`
	ViewportHeight int64            `json:"viewportHeight"`
	ActiveElement  *ActiveElement   `json:"activeElement,omitempty"`
	Modal          *ModalDescriptor `json:"modal,omitempty"`
}

// ConsoleSummary summarises the console-capture buffer for the command's
// time window.
type ConsoleSummary struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// StepResult is one entry of Response.Steps.
type StepResult struct {
	Action      string                `json:"action"`
	Status      string                `json:"status"`
	Output      any                   `json:"output,omitempty"`
	Warning     string                `json:"warning,omitempty"`
	Error       *errtaxonomy.Response `json:"error,omitempty"`
	Context     *FailureContext       `json:"context,omitempty"`
	Observation any                   `json:"observation,omitempty"`
}

// FailureContext is the best-effort diagnostic bundle attached to a failed
// step (spec §4.7).
type FailureContext struct {
	Title    string        `json:"title,omitempty"`
	URL      string        `json:"url,omitempty"`
	Scroll   ScrollContext `json:"scroll"`
	Buttons  []Candidate   `json:"buttons,omitempty"`
	Links    []Candidate   `json:"links,omitempty"`
	Errors   []Candidate   `json:"errors,omitempty"`
	Matches  []NearMatch   `json:"matches,omitempty"`
}

type ScrollContext struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	MaxY    float64 `json:"maxY"`
	Percent float64 `json:"percentY"`
}

// Candidate is a visible element surfaced in failure diagnostics.
type Candidate struct {
	Text     string `json:"text,omitempty"`
	Href     string `json:"href,omitempty"`
	Selector string `json:"selector,omitempty"`
	Ref      string `json:"ref,omitempty"`
}

// NearMatch is a scored near-match candidate (spec §4.7 scoring table).
type NearMatch struct {
	Candidate
	Score int `json:"score"`
}

// Diff is the viewport-diff object (spec §4.6).
type Diff struct {
	Summary string       `json:"summary"`
	Added   []string     `json:"added,omitempty"`
	Removed []string     `json:"removed,omitempty"`
	Changes []DiffChange `json:"changes,omitempty"`
}

// DiffChange is one changed-attribute record within a Diff.
type DiffChange struct {
	Ref   string `json:"ref"`
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

package runner

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/cdp-skill/cdp-skill/internal/cdp"
	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/schema"
	"github.com/cdp-skill/cdp-skill/internal/tabs"
)

// registryFreeActions are the action keys spec.md §2 step 2 names as
// needing no live session at all: chromeStatus probes a browser endpoint
// directly, closeTab only needs the registry.
var registryFreeActions = map[string]bool{
	"chromeStatus": true,
	"closeTab":     true,
}

// Bootstrap resolves the session for req before the step loop runs (spec.md
// §2 steps 2-3). When req.Tab names an existing alias, it reattaches to
// that target. Otherwise the first step must either be registry-free or
// establish a tab itself (openTab/connectTab); in the latter case Bootstrap
// executes that step directly, since only it can produce the Page the rest
// of the command needs, and returns it as an already-completed prefix
// result so the caller does not execute it twice.
func Bootstrap(ctx context.Context, req *schema.Request, reg *tabs.Registry, ep cdp.Endpoint, log *logrus.Entry) (inv *Invocation, prefix []schema.StepResult, remaining []schema.Step, fatal error) {
	timeoutMS := req.Timeout
	if timeoutMS <= 0 {
		timeoutMS = 30000
	}
	inv = &Invocation{Registry: reg, Endpoint: ep, Log: log, DefaultStepTimeoutMS: timeoutMS}

	if req.Tab != "" {
		opened, err := ResolveTab(ctx, reg, req.Tab, log)
		if err != nil {
			return inv, nil, nil, err
		}
		inv.Alias = opened.Alias
		inv.Transport = opened.Transport
		inv.Session = opened.Session
		inv.Page = opened.Page
		_ = inv.Page.ResetViewport(ctx)
		return inv, nil, req.Steps, nil
	}

	first := req.Steps[0]
	keys := first.ActionKeys()
	if len(keys) != 1 {
		return inv, nil, nil, errtaxonomy.ValidationErrorf("step has no recognized action key")
	}
	actionKey := keys[0]

	switch actionKey {
	case "openTab":
		params, err := parseOpenTabParams(first.Raw["openTab"])
		if err != nil {
			return inv, nil, nil, err
		}
		tabEP := ep
		if params.Host != "" {
			tabEP.Host = params.Host
		}
		if params.Port != 0 {
			tabEP.Port = params.Port
		}
		opened, err := OpenTab(ctx, reg, tabEP, params.Headless, params.URL, log)
		if err != nil {
			return inv, nil, nil, err
		}
		inv.Alias, inv.Transport, inv.Session, inv.Page = opened.Alias, opened.Transport, opened.Session, opened.Page
		prefix = []schema.StepResult{{Action: "openTab", Status: "ok", Output: fmtTabOutput(opened.Alias, opened.Entry)}}
		return inv, prefix, req.Steps[1:], nil

	case "connectTab":
		var params struct {
			TargetID string `json:"targetId"`
			Host     string `json:"host"`
			Port     int    `json:"port"`
		}
		if err := json.Unmarshal(first.Raw["connectTab"], &params); err != nil {
			return inv, nil, nil, errtaxonomy.StepValidationErrorf("connectTab: %v", err)
		}
		tabEP := ep
		if params.Host != "" {
			tabEP.Host = params.Host
		}
		if params.Port != 0 {
			tabEP.Port = params.Port
		}
		opened, err := ConnectTab(ctx, reg, tabEP, params.TargetID, log)
		if err != nil {
			return inv, nil, nil, err
		}
		inv.Alias, inv.Transport, inv.Session, inv.Page = opened.Alias, opened.Transport, opened.Session, opened.Page
		prefix = []schema.StepResult{{Action: "connectTab", Status: "ok", Output: fmtTabOutput(opened.Alias, opened.Entry)}}
		return inv, prefix, req.Steps[1:], nil

	default:
		if !registryFreeActions[actionKey] {
			return inv, nil, nil, errtaxonomy.ValidationErrorf("tab required: no tab given and first step %q does not establish one", actionKey)
		}
		return inv, nil, req.Steps, nil
	}
}

package runner

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/target"
	"github.com/sirupsen/logrus"

	"github.com/cdp-skill/cdp-skill/internal/cdp"
	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
	"github.com/cdp-skill/cdp-skill/internal/tabs"
)

// openTabParams is the object form of an openTab step. A bare JSON string is
// treated as {url: <string>}. Host/port/headless are only meaningful on the
// very first step of a session (spec.md §6 "Connection parameters...
// accepted inside the openTab object form on the first step").
type openTabParams struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Headless bool   `json:"headless"`
}

func parseOpenTabParams(raw json.RawMessage) (openTabParams, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return openTabParams{URL: s}, nil
	}
	var p openTabParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errtaxonomy.StepValidationErrorf("openTab: expected a URL string or object, got %s", raw)
	}
	return p, nil
}

// defaultEndpoint is spec.md §4.1's implicit default discovery address when
// a step does not name one explicitly.
func defaultEndpoint() cdp.Endpoint { return cdp.Endpoint{Host: "localhost", Port: 9222} }

// OpenedTab is what establishing or attaching to a tab yields, whether via
// an explicit openTab/connectTab step or the engine's first-step bootstrap.
type OpenedTab struct {
	Alias     string
	Entry     tabs.Entry
	Transport *cdp.Transport
	Session   *cdp.Session
	Page      *page.Page
}

// OpenTab launches Chrome if needed, creates a new target navigated to url
// (or blank if url is empty), attaches a session, and registers an alias
// (spec.md §4.1 "Auto-launch", §3 "Tab registry").
func OpenTab(ctx context.Context, reg *tabs.Registry, ep cdp.Endpoint, headless bool, url string, log *logrus.Entry) (*OpenedTab, error) {
	if err := cdp.EnsureRunning(ctx, ep, cdp.LaunchOptions{Port: ep.Port, Headless: headless}, log); err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "chrome unreachable: %v", err)
	}
	info, err := cdp.New(ctx, ep, url)
	if err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "create target: %v", err)
	}
	return attachNewTab(ctx, reg, ep, info.ID, log)
}

// ConnectTab attaches to an already-existing targetId without creating a
// new tab (the `connectTab` action).
func ConnectTab(ctx context.Context, reg *tabs.Registry, ep cdp.Endpoint, targetID string, log *logrus.Entry) (*OpenedTab, error) {
	if err := cdp.EnsureRunning(ctx, ep, cdp.LaunchOptions{Port: ep.Port}, log); err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "chrome unreachable: %v", err)
	}
	return attachNewTab(ctx, reg, ep, targetID, log)
}

func attachNewTab(ctx context.Context, reg *tabs.Registry, ep cdp.Endpoint, targetID string, log *logrus.Entry) (*OpenedTab, error) {
	ver, err := cdp.Version(ctx, ep)
	if err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "fetch browser endpoint: %v", err)
	}
	transport, err := cdp.Dial(ctx, ver.WebSocketDebuggerURL, log)
	if err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "dial browser websocket: %v", err)
	}
	sess, err := cdp.Attach(ctx, transport, target.ID(targetID))
	if err != nil {
		transport.Close()
		return nil, errtaxonomy.ConnectionErrorf(err, "attach session: %v", err)
	}
	if err := sess.Enable(ctx); err != nil {
		sess.Detach(ctx)
		transport.Close()
		return nil, errtaxonomy.ConnectionErrorf(err, "enable CDP domains: %v", err)
	}

	entry := tabs.Entry{TargetID: targetID, Host: ep.Host, Port: ep.Port}
	alias := reg.Add(entry)

	return &OpenedTab{
		Alias:     alias,
		Entry:     entry,
		Transport: transport,
		Session:   sess,
		Page:      page.New(sess),
	}, nil
}

// ResolveTab reconnects to an already-registered alias (spec.md §3 "Tab
// registry").
func ResolveTab(ctx context.Context, reg *tabs.Registry, alias string, log *logrus.Entry) (*OpenedTab, error) {
	entry, ok := reg.Get(alias)
	if !ok {
		return nil, errtaxonomy.ValidationErrorf("unknown tab alias %q", alias)
	}
	ep := cdp.Endpoint{Host: entry.Host, Port: entry.Port}
	ver, err := cdp.Version(ctx, ep)
	if err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "fetch browser endpoint: %v", err)
	}
	transport, err := cdp.Dial(ctx, ver.WebSocketDebuggerURL, log)
	if err != nil {
		return nil, errtaxonomy.ConnectionErrorf(err, "dial browser websocket: %v", err)
	}
	sess, err := cdp.Attach(ctx, transport, target.ID(entry.TargetID))
	if err != nil {
		transport.Close()
		return nil, errtaxonomy.ConnectionErrorf(err, "attach session: %v", err)
	}
	if err := sess.Enable(ctx); err != nil {
		sess.Detach(ctx)
		transport.Close()
		return nil, errtaxonomy.ConnectionErrorf(err, "enable CDP domains: %v", err)
	}
	return &OpenedTab{
		Alias:     alias,
		Entry:     entry,
		Transport: transport,
		Session:   sess,
		Page:      page.New(sess),
	}, nil
}

// CloseTab closes the target and removes its registry entry. It tolerates
// the target already being gone, since the registry entry is the thing that
// must end up removed either way.
func CloseTab(ctx context.Context, reg *tabs.Registry, alias string) error {
	entry, ok := reg.Get(alias)
	if !ok {
		return errtaxonomy.ValidationErrorf("unknown tab alias %q", alias)
	}
	ep := cdp.Endpoint{Host: entry.Host, Port: entry.Port}
	_ = cdp.Close(ctx, ep, entry.TargetID)
	reg.Remove(alias)
	return nil
}

func fmtTabOutput(alias string, entry tabs.Entry) map[string]any {
	return map[string]any{"tab": alias, "targetId": entry.TargetID}
}

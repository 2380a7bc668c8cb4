package runner

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cdp-skill/cdp-skill/internal/cdp"
	"github.com/cdp-skill/cdp-skill/internal/dom"
	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/page"
	"github.com/cdp-skill/cdp-skill/internal/snapshot"
)

func init() {
	registerAction("openTab", actionOpenTab)
	registerAction("connectTab", actionConnectTab)
	registerAction("closeTab", actionCloseTab)
	registerAction("chromeStatus", actionChromeStatus)

	registerAction("goto", actionGoto)
	registerAction("navigate", actionGoto)
	registerAction("reload", actionReload)
	registerAction("back", actionBack)
	registerAction("forward", actionForward)

	registerAction("click", actionClick)
	registerAction("doubleClick", actionDoubleClick)
	registerAction("fill", actionFill)
	registerAction("type", actionFill)
	registerAction("batchFill", actionBatchFill)
	registerAction("hover", actionHover)
	registerAction("select", actionSelect)

	registerAction("snapshot", actionSnapshot)
	registerAction("search", actionSearch)
	registerAction("scroll", actionScroll)
	registerAction("screenshot", actionScreenshot)
	registerAction("waitFor", actionWaitFor)

	registerAction("switchFrame", actionSwitchFrame)
	registerAction("setViewport", actionSetViewport)

	registerAction("writeSiteProfile", actionWriteSiteProfile)
	registerAction("readSiteProfile", actionReadSiteProfile)
}

// --- tab lifecycle -----------------------------------------------------

func actionOpenTab(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	params, err := parseOpenTabParams(raw)
	if err != nil {
		return nil, err
	}
	ep := inv.Endpoint
	if params.Host != "" {
		ep.Host = params.Host
	}
	if params.Port != 0 {
		ep.Port = params.Port
	}
	opened, err := OpenTab(ctx, inv.Registry, ep, params.Headless, params.URL, inv.Log)
	if err != nil {
		return nil, err
	}
	return fmtTabOutput(opened.Alias, opened.Entry), nil
}

func actionConnectTab(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		TargetID string `json:"targetId"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("connectTab: %v", err)
	}
	ep := inv.Endpoint
	if params.Host != "" {
		ep.Host = params.Host
	}
	if params.Port != 0 {
		ep.Port = params.Port
	}
	opened, err := ConnectTab(ctx, inv.Registry, ep, params.TargetID, inv.Log)
	if err != nil {
		return nil, err
	}
	return fmtTabOutput(opened.Alias, opened.Entry), nil
}

func actionCloseTab(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	alias, err := aliasParam(raw, inv.Alias)
	if err != nil {
		return nil, err
	}
	if err := CloseTab(ctx, inv.Registry, alias); err != nil {
		return nil, err
	}
	return map[string]any{"closed": alias}, nil
}

func aliasParam(raw json.RawMessage, fallback string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	var obj struct {
		Tab string `json:"tab"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Tab != "" {
		return obj.Tab, nil
	}
	if fallback == "" {
		return "", errtaxonomy.StepValidationErrorf("no tab alias given or implied")
	}
	return fallback, nil
}

func actionChromeStatus(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	ep := inv.Endpoint
	var params struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	_ = json.Unmarshal(raw, &params)
	if params.Host != "" {
		ep.Host = params.Host
	}
	if params.Port != 0 {
		ep.Port = params.Port
	}
	return map[string]any{"reachable": cdp.Reachable(ctx, ep)}, nil
}

// --- navigation ---------------------------------------------------------

func actionGoto(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var url string
	var waitUntil page.WaitUntil
	if err := json.Unmarshal(raw, &url); err != nil {
		var obj struct {
			URL       string `json:"url"`
			WaitUntil string `json:"waitUntil"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errtaxonomy.StepValidationErrorf("goto: expected a URL string or {url, waitUntil}")
		}
		url = obj.URL
		waitUntil = page.WaitUntil(obj.WaitUntil)
	}
	before, _ := inv.Page.CurrentURL(ctx)
	res, err := inv.Page.Goto(ctx, url, waitUntil)
	if err != nil {
		return nil, err
	}
	inv.noteAction("Navigated")
	if !res.HashOnly && !dom.SameDocument(before, res.URL) {
		inv.markNavigated(res.URL)
	}
	return map[string]any{"url": res.URL, "hashOnly": res.HashOnly}, nil
}

func actionReload(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	if err := inv.Page.Reload(ctx); err != nil {
		return nil, err
	}
	inv.noteAction("Reloaded")
	url, _ := inv.Page.CurrentURL(ctx)
	inv.markNavigated(url)
	return map[string]any{"url": url}, nil
}

func actionBack(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	if err := inv.Page.Back(ctx); err != nil {
		return nil, err
	}
	inv.noteAction("Navigated")
	url, _ := inv.Page.CurrentURL(ctx)
	inv.markNavigated(url)
	return map[string]any{"url": url}, nil
}

func actionForward(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	if err := inv.Page.Forward(ctx); err != nil {
		return nil, err
	}
	inv.noteAction("Navigated")
	url, _ := inv.Page.CurrentURL(ctx)
	inv.markNavigated(url)
	return map[string]any{"url": url}, nil
}

// --- element actions ------------------------------------------------------

func actionClick(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	return doClick(ctx, inv, raw, false)
}

func actionDoubleClick(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	return doClick(ctx, inv, raw, true)
}

func doClick(ctx context.Context, inv *Invocation, raw json.RawMessage, double bool) (any, error) {
	target, err := dom.Locate(ctx, inv.Page, raw)
	if err != nil {
		return nil, err
	}
	before, _ := inv.Page.CurrentURL(ctx)
	result, err := dom.Click(ctx, inv.Page, target, double)
	if err != nil {
		return nil, err
	}
	after, _ := inv.Page.CurrentURL(ctx)
	navigated := after != "" && !dom.SameDocument(before, after)
	dom.AnnotatePostClick(result, navigated, nil)
	if navigated {
		inv.noteAction("Clicked")
		inv.markNavigated(after)
	} else {
		inv.noteAction("Clicked")
	}
	return result, nil
}

func actionFill(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Selector json.RawMessage `json:"selector"`
		Ref      json.RawMessage `json:"ref"`
		Label    string          `json:"label"`
		Value    string          `json:"value"`
		Clear    *bool           `json:"clear"`
		React    bool            `json:"react"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("fill: %v", err)
	}
	locator := params.Selector
	if len(locator) == 0 {
		locator = params.Ref
	}
	if len(locator) == 0 && params.Label != "" {
		locator, _ = json.Marshal(map[string]string{"label": params.Label})
	}
	if len(locator) == 0 {
		return nil, errtaxonomy.StepValidationErrorf("fill: missing selector/ref/label")
	}
	target, err := dom.Locate(ctx, inv.Page, locator)
	if err != nil {
		return nil, err
	}
	clear := true
	if params.Clear != nil {
		clear = *params.Clear
	}
	result, err := dom.Fill(ctx, inv.Page, target, params.Value, clear, params.React)
	if err != nil {
		return nil, err
	}
	inv.noteAction("Typed")
	return result, nil
}

func actionBatchFill(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Fields map[string]string `json:"fields"`
		React  bool               `json:"react"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		// Allow a bare {selector: value} object too.
		if err := json.Unmarshal(raw, &params.Fields); err != nil {
			return nil, errtaxonomy.StepValidationErrorf("batchFill: %v", err)
		}
	}
	inv.noteAction("Typed")
	return dom.BatchFill(ctx, inv.Page, params.Fields, params.React), nil
}

func actionHover(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	target, err := dom.Locate(ctx, inv.Page, raw)
	if err != nil {
		return nil, err
	}
	if err := dom.Hover(ctx, inv.Page, target); err != nil {
		return nil, err
	}
	inv.noteAction("Hovered")
	return map[string]any{"reResolved": target.ReResolved}, nil
}

func actionSelect(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Selector json.RawMessage `json:"selector"`
		Ref      json.RawMessage `json:"ref"`
		Value    string          `json:"value"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("select: %v", err)
	}
	locator := params.Selector
	if len(locator) == 0 {
		locator = params.Ref
	}
	target, err := dom.Locate(ctx, inv.Page, locator)
	if err != nil {
		return nil, err
	}
	if err := dom.Select(ctx, inv.Page, target, params.Value); err != nil {
		return nil, err
	}
	inv.noteAction("Selected")
	return map[string]any{"reResolved": target.ReResolved}, nil
}

// --- snapshot/search ------------------------------------------------------

func actionSnapshot(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	opts := snapshot.Options{Advance: true, DetailLevel: "full"}
	var since string
	var preserveRefs bool

	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err != nil {
		var obj struct {
			Root          string `json:"root"`
			PierceShadow  bool   `json:"pierceShadow"`
			IncludeFrames bool   `json:"includeFrames"`
			Detail        string `json:"detail"`
			Since         string `json:"since"`
			PreserveRefs  bool   `json:"preserveRefs"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errtaxonomy.StepValidationErrorf("snapshot: %v", err)
		}
		opts.Root = obj.Root
		opts.PierceShadow = obj.PierceShadow
		opts.IncludeFrames = obj.IncludeFrames
		if obj.Detail != "" {
			opts.DetailLevel = obj.Detail
		}
		since = obj.Since
		preserveRefs = obj.PreserveRefs
	}
	if preserveRefs {
		opts.Advance = false
	}

	if since != "" {
		gen, ok := parseGen(since)
		if ok {
			unchanged, err := snapshot.CheckSince(ctx, inv.Page, gen)
			if err != nil {
				return nil, err
			}
			if unchanged {
				return map[string]any{"unchanged": true, "snapshotId": since}, nil
			}
		}
	}

	tree, err := snapshot.BuildTree(ctx, inv.Page, opts)
	if err != nil {
		return nil, err
	}
	yamlText, refCount := snapshot.Render(tree)
	inv.noteAction("Snapshotted")

	genRaw, _ := inv.Page.Evaluate(ctx, "window.__cdpSkillLib.state.snapshotGen")
	var gen int
	_ = json.Unmarshal(genRaw, &gen)
	hash, err := snapshot.ContentHash(ctx, inv.Page)
	if err == nil {
		_ = snapshot.RecordHash(ctx, inv.Page, gen, hash)
	}

	out := map[string]any{"snapshotId": fmt.Sprintf("s%d", gen), "refCount": refCount}
	if snapshot.ShouldSpill(yamlText, refCount) {
		path, werr := spillSnapshot(inv.Alias, yamlText)
		if werr == nil {
			out["snapshot"] = path
			out["truncatedInline"] = true
		} else {
			out["snapshot"] = yamlText
		}
	} else {
		out["snapshot"] = yamlText
	}
	if tree.Scope != "" {
		out["scope"] = tree.Scope
	}
	if len(tree.OtherLandmarks) > 0 {
		out["otherLandmarks"] = tree.OtherLandmarks
	}
	return out, nil
}

func parseGen(sid string) (int, bool) {
	sid = strings.TrimPrefix(sid, "s")
	n, err := strconv.Atoi(sid)
	if err != nil {
		return 0, false
	}
	return n, true
}

func spillSnapshot(alias, yamlText string) (string, error) {
	dir := filepath.Join(os.TempDir(), "cdp-skill")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, alias+".after.yaml")
	if err := os.WriteFile(path, []byte(yamlText), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func actionSearch(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Text    string   `json:"text"`
		Pattern string   `json:"pattern"`
		Role    string   `json:"role"`
		X       *float64 `json:"x"`
		Y       *float64 `json:"y"`
		Radius  float64  `json:"radius"`
		Mode    string   `json:"mode"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("search: %v", err)
	}
	q := snapshot.SearchQuery{
		Text: params.Text, Pattern: params.Pattern, Role: params.Role,
		X: params.X, Y: params.Y, Radius: params.Radius, Mode: snapshot.MatchMode(params.Mode),
	}
	results, err := snapshot.Search(ctx, inv.Page, q)
	if err != nil {
		return nil, err
	}
	inv.noteAction("Searched")
	return results, nil
}

func actionScroll(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Selector string  `json:"selector"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("scroll: %v", err)
	}
	var script string
	if params.Selector != "" {
		b, _ := json.Marshal(params.Selector)
		script = fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.scrollIntoView({block:'center'}); return true; })()`, string(b))
	} else {
		script = fmt.Sprintf(`(() => { window.scrollTo(%f, %f); return true; })()`, params.X, params.Y)
	}
	if _, err := inv.Page.Evaluate(ctx, script); err != nil {
		return nil, err
	}
	inv.noteAction("Scrolled")
	return map[string]any{"ok": true}, nil
}

func actionScreenshot(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	path, err := captureScreenshot(ctx, inv, "after")
	if err != nil {
		return nil, err
	}
	inv.noteAction("Screenshotted")
	return map[string]any{"path": path}, nil
}

// captureScreenshot grabs a PNG of the current viewport via
// Page.captureScreenshot and writes it under the OS temp dir, shared by the
// explicit `screenshot` step and runEnvelope's automatic per-command capture
// (spec.md §2 step 6 "Capture post-command screenshot").
func captureScreenshot(ctx context.Context, inv *Invocation, suffix string) (string, error) {
	result, err := inv.Page.Session.Send(ctx, "Page.captureScreenshot", map[string]any{"format": "png"})
	if err != nil {
		return "", errtaxonomy.Execution(errtaxonomy.SubtypeNone, err, "captureScreenshot: %s", err)
	}
	var out struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return "", fmt.Errorf("runner: decode screenshot result: %w", err)
	}
	dir := filepath.Join(os.TempDir(), "cdp-skill")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("runner: create screenshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.png", inv.Alias, suffix))
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return "", fmt.Errorf("runner: decode screenshot bytes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("runner: write screenshot: %w", err)
	}
	return path, nil
}

func actionWaitFor(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Predicate string `json:"predicate"`
		TimeoutMS int64  `json:"timeout"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		var s string
		if err2 := json.Unmarshal(raw, &s); err2 != nil {
			return nil, errtaxonomy.StepValidationErrorf("waitFor: %v", err)
		}
		params.Predicate = s
	}
	timeout := time.Duration(params.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(inv.DefaultStepTimeoutMS) * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		raw, err := inv.Page.Evaluate(ctx, params.Predicate)
		if err != nil {
			return nil, err
		}
		var truthy bool
		_ = json.Unmarshal(raw, &truthy)
		if truthy {
			inv.noteAction("Waited")
			return map[string]any{"ok": true}, nil
		}
		if time.Now().After(deadline) {
			return nil, errtaxonomy.Execution(errtaxonomy.SubtypeTimeout, nil, "waitFor predicate did not become true within %s", timeout)
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func actionSwitchFrame(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var selector string
	if err := json.Unmarshal(raw, &selector); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("switchFrame: expected a selector/index/name string")
	}
	warning, err := inv.Page.SwitchFrame(ctx, selector)
	if err != nil {
		return nil, err
	}
	inv.noteAction("SwitchedFrame")
	out := map[string]any{"ok": true}
	if warning != "" {
		out["warning"] = warning
	}
	return out, nil
}

func actionSetViewport(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var opts page.ViewportOptions
	var params struct {
		Device            string  `json:"device"`
		Width             int64   `json:"width"`
		Height            int64   `json:"height"`
		DeviceScaleFactor float64 `json:"deviceScaleFactor"`
		Mobile            bool    `json:"mobile"`
		UserAgent         string  `json:"userAgent"`
		Latitude          float64 `json:"latitude"`
		Longitude         float64 `json:"longitude"`
		Geolocation       bool    `json:"geolocation"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("setViewport: %v", err)
	}
	opts = page.ViewportOptions{
		Device: params.Device, Width: params.Width, Height: params.Height,
		DeviceScaleFactor: params.DeviceScaleFactor, Mobile: params.Mobile,
		UserAgent: params.UserAgent, Latitude: params.Latitude, Longitude: params.Longitude,
		HasGeolocation: params.Geolocation,
	}
	if err := inv.Page.SetViewport(ctx, opts); err != nil {
		return nil, err
	}
	inv.noteAction("ResizedViewport")
	return map[string]any{"ok": true}, nil
}

// --- site profile ---------------------------------------------------------

func actionWriteSiteProfile(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var params struct {
		Domain  string `json:"domain"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errtaxonomy.StepValidationErrorf("writeSiteProfile: %v", err)
	}
	if inv.Sites == nil {
		return nil, errtaxonomy.Execution(errtaxonomy.SubtypeNone, nil, "site profile store unavailable")
	}
	if err := inv.Sites.Write(params.Domain, params.Content); err != nil {
		return nil, err
	}
	return map[string]any{"written": true, "domain": params.Domain}, nil
}

func actionReadSiteProfile(ctx context.Context, inv *Invocation, raw json.RawMessage) (any, error) {
	var domain string
	if err := json.Unmarshal(raw, &domain); err != nil {
		var obj struct {
			Domain string `json:"domain"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errtaxonomy.StepValidationErrorf("readSiteProfile: %v", err)
		}
		domain = obj.Domain
	}
	if inv.Sites == nil {
		return map[string]any{"found": false, "domain": domain}, nil
	}
	content, found := inv.Sites.Read(domain)
	if !found {
		return map[string]any{"found": false, "domain": domain}, nil
	}
	return map[string]any{"found": true, "domain": domain, "content": content}, nil
}

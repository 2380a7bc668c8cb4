// Package runner's envelope.go assembles the top-level response: the
// before/after bracketing snapshots, navigation detection, viewport diff,
// and page context that wrap every step loop (spec.md §4.5 "Command-level
// envelope").
package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
	"github.com/cdp-skill/cdp-skill/internal/schema"
	"github.com/cdp-skill/cdp-skill/internal/snapshot"
)

// Run validates and executes req.Steps against inv, then assembles the full
// response envelope (spec.md §2 "Data flow per invocation", steps 4-7).
func Run(ctx context.Context, inv *Invocation, req *schema.Request) *schema.Response {
	if err := ValidateRequest(req.Steps); err != nil {
		resp := errtaxonomy.ToResponse(err)
		return &schema.Response{Status: "error", Errors: &resp}
	}
	return runEnvelope(ctx, inv, req.Steps, nil)
}

// RunSteps is Run's counterpart for a command whose first step was already
// executed by Bootstrap to establish the session (openTab/connectTab with no
// prior tab alias): prefix carries that completed StepResult, steps the
// remainder. Unlike Run it does not reject an empty steps slice, since
// prefix alone may satisfy the "at least one step" invariant.
func RunSteps(ctx context.Context, inv *Invocation, steps []schema.Step, prefix []schema.StepResult) *schema.Response {
	return runEnvelope(ctx, inv, steps, prefix)
}

func runEnvelope(ctx context.Context, inv *Invocation, steps []schema.Step, prefix []schema.StepResult) *schema.Response {
	var beforeTree *snapshot.Tree
	if inv.Page != nil {
		beforeTree, _ = snapshot.BuildTree(ctx, inv.Page, snapshot.Options{Advance: false, DetailLevel: "full"})
	}

	results := append([]schema.StepResult{}, prefix...)
	stopped := len(prefix) > 0 && prefix[len(prefix)-1].Status == "error"
	if !stopped {
		for i := range steps {
			r := RunStep(ctx, inv, &steps[i])
			results = append(results, r)
			if r.Status == "error" {
				break
			}
		}
	}

	resp := &schema.Response{Status: "ok", Tab: inv.Alias, Steps: results}
	for _, r := range results {
		if r.Status == "error" {
			resp.Status = "error"
			resp.Errors = r.Error
			break
		}
	}

	if inv.Page == nil {
		return resp
	}

	if errs, warnings := inv.Page.ConsoleSummary(); len(errs) > 0 || len(warnings) > 0 {
		resp.Console = &schema.ConsoleSummary{Errors: errs, Warnings: warnings}
	}

	// Best-effort: a screenshot failure doesn't fail the command (spec.md
	// §4.7 "best-effort failures in context/screenshot capture").
	if path, err := captureScreenshot(ctx, inv, "after"); err == nil {
		resp.Screenshot = path
	}

	if inv.navigatedDuringCommand {
		resp.Navigated = true
		resp.Context = captureContext(ctx, inv)
		return resp
	}

	afterTree, err := snapshot.BuildTree(ctx, inv.Page, snapshot.Options{Advance: false, DetailLevel: "full"})
	if err == nil {
		yamlText, refCount := snapshot.Render(afterTree)
		resp.ViewportSnapshot = yamlText
		if full, ferr := snapshot.BuildTree(ctx, inv.Page, snapshot.Options{Advance: false, Root: "body", DetailLevel: "full"}); ferr == nil {
			fullYAML, fullRefs := snapshot.Render(full)
			if path, werr := writeFullSnapshot(inv.Alias, fullYAML); werr == nil {
				resp.FullSnapshot = path
			}
			if snapshot.ShouldSpill(fullYAML, fullRefs) {
				resp.Truncated = true
			}
		}
		var beforeNodes []snapshot.Node
		if beforeTree != nil {
			beforeNodes = beforeTree.Nodes
		}
		resp.Changes = ComputeDiff(beforeNodes, afterTree.Nodes, inv.actionContexts)
		if refCount > 0 && snapshot.ShouldSpill(yamlText, refCount) {
			resp.Truncated = true
		}
	}

	resp.Context = captureContext(ctx, inv)
	return resp
}

func writeFullSnapshot(alias, yamlText string) (string, error) {
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

const contextScript = `(() => {
  const active = document.activeElement;
  let activeElement = null;
  if (active && active !== document.body) {
    const lib = window.__cdpSkillLib;
    activeElement = { role: lib ? lib.computeRole(active) : active.tagName.toLowerCase(), name: lib ? lib.computeName(active) : '' };
  }
  let modal = null;
  const dialog = document.querySelector('dialog[open], [role=dialog], [role=alertdialog]');
  if (dialog) {
    const lib = window.__cdpSkillLib;
    modal = { role: dialog.getAttribute('role') || 'dialog', title: (dialog.getAttribute('aria-label') || dialog.querySelector('h1,h2,h3')?.textContent || '').trim() };
  }
  const maxY = document.documentElement.scrollHeight - window.innerHeight;
  return JSON.stringify({
    url: location.href,
    title: document.title,
    scrollY: window.scrollY,
    scrollPercent: maxY > 0 ? (window.scrollY / maxY * 100) : 0,
    viewportWidth: window.innerWidth,
    viewportHeight: window.innerHeight,
    activeElement,
    modal,
  });
})()`

// captureContext gathers the per-command page context (spec.md §4.5 "page
// context (URL, title, scroll {y, percent}, viewport w/h, active-element
// descriptor or null, modal descriptor or null)"). Best-effort: a failure
// here yields a zero-value context rather than failing the whole command.
func captureContext(ctx context.Context, inv *Invocation) *schema.PageContext {
	raw, err := inv.Page.Evaluate(ctx, contextScript)
	if err != nil {
		return nil
	}
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err != nil {
		return nil
	}
	var c struct {
		URL            string  `json:"url"`
		Title          string  `json:"title"`
		ScrollY        float64 `json:"scrollY"`
		ScrollPercent  float64 `json:"scrollPercent"`
		ViewportWidth  int64   `json:"viewportWidth"`
		ViewportHeight int64   `json:"viewportHeight"`
		ActiveElement  *struct {
			Role string `json:"role"`
			Name string `json:"name"`
		} `json:"activeElement"`
		Modal *struct {
			Role  string `json:"role"`
			Title string `json:"title"`
		} `json:"modal"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &c); err != nil {
		return nil
	}
	pc := &schema.PageContext{
		URL: c.URL, Title: c.Title,
		Scroll:         schema.ScrollPosition{Y: c.ScrollY, Percent: c.ScrollPercent},
		ViewportWidth:  c.ViewportWidth,
		ViewportHeight: c.ViewportHeight,
	}
	if c.ActiveElement != nil {
		pc.ActiveElement = &schema.ActiveElement{Role: c.ActiveElement.Role, Name: c.ActiveElement.Name}
	}
	if c.Modal != nil {
		pc.Modal = &schema.ModalDescriptor{Role: c.Modal.Role, Title: c.Modal.Title}
	}
	return pc
}

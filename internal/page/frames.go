package page

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cdp-skill/cdp-skill/internal/errtaxonomy"
)

// FrameInfo is one node of the frame tree (spec.md §4.2 "frame tree
// enumeration including cross-origin detection").
type FrameInfo struct {
	ID            string
	ParentID      string
	Name          string
	URL           string
	CrossOrigin   bool
	ChildFrameIDs []string
}

type frameTreeNode struct {
	Frame struct {
		ID       string `json:"id"`
		ParentID string `json:"parentId"`
		Name     string `json:"name"`
		URL      string `json:"url"`
	} `json:"frame"`
	ChildFrames []frameTreeNode `json:"childFrames"`
}

// FrameTree returns every frame in the page, flattened, with cross-origin
// flags relative to the main frame's origin.
func (p *Page) FrameTree(ctx context.Context) ([]FrameInfo, error) {
	result, err := p.Session.Send(ctx, "Page.getFrameTree", nil)
	if err != nil {
		return nil, fmt.Errorf("page: getFrameTree: %w", err)
	}
	var out struct {
		FrameTree frameTreeNode `json:"frameTree"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("page: decode frame tree: %w", err)
	}

	mainOrigin := origin(out.FrameTree.Frame.URL)
	var flat []FrameInfo
	var walk func(n frameTreeNode)
	walk = func(n frameTreeNode) {
		info := FrameInfo{
			ID:          n.Frame.ID,
			ParentID:    n.Frame.ParentID,
			Name:        n.Frame.Name,
			URL:         n.Frame.URL,
			CrossOrigin: origin(n.Frame.URL) != mainOrigin,
		}
		for _, c := range n.ChildFrames {
			info.ChildFrameIDs = append(info.ChildFrameIDs, c.Frame.ID)
		}
		flat = append(flat, info)
		for _, c := range n.ChildFrames {
			walk(c)
		}
	}
	walk(out.FrameTree)
	return flat, nil
}

func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

// SwitchFrame resolves selector (a numeric index, frame name, or raw
// frameId; a CSS selector is not resolved and yields a not-found error)
// against the current frame tree and makes it the active
// frame for subsequent Evaluate calls. Cross-origin frames get an isolated
// world created via Page.createIsolatedWorld, cached per frame (spec.md
// §4.2).
func (p *Page) SwitchFrame(ctx context.Context, selector string) (warning string, err error) {
	frames, err := p.FrameTree(ctx)
	if err != nil {
		return "", err
	}

	target, err := resolveFrame(ctx, p, frames, selector)
	if err != nil {
		return "", err
	}

	if !target.CrossOrigin {
		p.setFrameID(target.ID)
		return "", nil
	}

	ctxID, cached := p.isolatedWorldFor(target.ID)
	if !cached {
		ctxID, err = p.createIsolatedWorld(ctx, target.ID)
		if err != nil {
			return "", err
		}
	}
	p.mu.Lock()
	p.isolatedWorlds[target.ID] = ctxID
	p.mu.Unlock()
	p.setFrameID(target.ID)
	return fmt.Sprintf("frame %s is cross-origin; evaluating in an isolated world", target.ID), nil
}

func (p *Page) isolatedWorldFor(frameID string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.isolatedWorlds[frameID]
	return id, ok
}

func (p *Page) createIsolatedWorld(ctx context.Context, frameID string) (int64, error) {
	params := map[string]any{
		"frameId":   frameID,
		"worldName": "cdp-skill-isolated",
	}
	result, err := p.Session.Send(ctx, "Page.createIsolatedWorld", params)
	if err != nil {
		return 0, errtaxonomy.Execution(errtaxonomy.SubtypeNone, err, "create isolated world: %s", err)
	}
	var out struct {
		ExecutionContextID int64 `json:"executionContextId"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return 0, fmt.Errorf("page: decode isolated world result: %w", err)
	}
	return out.ExecutionContextID, nil
}

func resolveFrame(_ context.Context, _ *Page, frames []FrameInfo, selector string) (FrameInfo, error) {
	if idx, err := strconv.Atoi(selector); err == nil {
		if idx < 0 || idx >= len(frames) {
			return FrameInfo{}, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no frame at index %d", idx)
		}
		return frames[idx], nil
	}
	for _, f := range frames {
		if f.ID == selector || f.Name == selector {
			return f, nil
		}
	}
	return FrameInfo{}, errtaxonomy.Execution(errtaxonomy.SubtypeElementNotFound, nil, "no frame matching %q", selector)
}

// MainFrame resets the active frame to the main document.
func (p *Page) MainFrame() {
	p.setFrameID("")
}

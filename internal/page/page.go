// Package page implements the page controller: navigation, viewport
// emulation, frame switching, and network-activity tracking layered on top
// of one attached internal/cdp.Session.
package page

import (
	"sync"

	"github.com/cdp-skill/cdp-skill/internal/cdp"
)

const consoleBufferCap = 10000

// ConsoleMessage is one captured Runtime/Console entry.
type ConsoleMessage struct {
	Level string
	Text  string
}

// Page owns the per-invocation state layered on a session: the current
// frame's execution context, cached isolated worlds for cross-origin frames,
// and the console FIFO (spec.md §5 "fixed cap 10000, oldest dropped").
type Page struct {
	Session *cdp.Session

	mu               sync.Mutex
	currentFrameID   string // empty means main frame
	isolatedWorlds   map[string]int64
	inflight         *networkTracker
	console          []ConsoleMessage
	consoleOverflowed bool
}

// New wraps an attached session, enabling console and network capture.
func New(s *cdp.Session) *Page {
	p := &Page{
		Session:        s,
		isolatedWorlds: make(map[string]int64),
		inflight:       newNetworkTracker(),
	}
	p.installListeners()
	return p
}

func (p *Page) installListeners() {
	p.Session.On("Runtime.consoleAPICalled", p.onConsoleAPI)
	p.Session.On("Log.entryAdded", p.onLogEntry)
	p.Session.On("Network.requestWillBeSent", p.inflight.onRequestWillBeSent)
	p.Session.On("Network.loadingFinished", p.inflight.onLoadingFinished)
	p.Session.On("Network.loadingFailed", p.inflight.onLoadingFailed)
	p.Session.On("Network.webSocketCreated", p.inflight.onWebSocketCreated)
	p.Session.On("Network.eventSourceMessageReceived", p.inflight.onEventSourceMessage)
}

// FrameID returns the current frame id, "" for the main frame.
func (p *Page) FrameID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentFrameID
}

func (p *Page) setFrameID(id string) {
	p.mu.Lock()
	p.currentFrameID = id
	p.mu.Unlock()
}

// ConsoleSummary returns the errors/warnings captured since the page was
// created, for response assembly (spec.md §6 "console").
func (p *Page) ConsoleSummary() (errs, warnings []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.console {
		switch m.Level {
		case "error":
			errs = append(errs, m.Text)
		case "warning":
			warnings = append(warnings, m.Text)
		}
	}
	return errs, warnings
}

func (p *Page) pushConsole(level, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.console) >= consoleBufferCap {
		p.console = p.console[1:]
		p.consoleOverflowed = true
	}
	p.console = append(p.console, ConsoleMessage{Level: level, Text: text})
}

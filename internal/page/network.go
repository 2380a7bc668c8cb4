package page

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// networkTracker counts in-flight HTTP requests, excluding long-lived
// connections (WebSocket, EventSource/SSE) which must never hold up an idle
// wait (spec.md §4.2 "long-lived connections are excluded from in-flight
// counting").
type networkTracker struct {
	mu        sync.Mutex
	inflight  map[string]struct{}
	excluded  map[string]struct{}
	lastEvent time.Time
	waiters   []chan struct{}
}

func newNetworkTracker() *networkTracker {
	return &networkTracker{
		inflight: make(map[string]struct{}),
		excluded: make(map[string]struct{}),
	}
}

type requestWillBeSentEvent struct {
	RequestID string `json:"requestId"`
	Type      string `json:"type"`
}

func (t *networkTracker) onRequestWillBeSent(raw json.RawMessage) {
	var ev requestWillBeSentEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	t.mu.Lock()
	t.inflight[ev.RequestID] = struct{}{}
	t.lastEvent = time.Now()
	t.mu.Unlock()
}

type requestIDEvent struct {
	RequestID string `json:"requestId"`
}

func (t *networkTracker) onLoadingFinished(raw json.RawMessage) { t.complete(raw) }
func (t *networkTracker) onLoadingFailed(raw json.RawMessage)   { t.complete(raw) }

func (t *networkTracker) complete(raw json.RawMessage) {
	var ev requestIDEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	t.mu.Lock()
	delete(t.inflight, ev.RequestID)
	delete(t.excluded, ev.RequestID)
	t.lastEvent = time.Now()
	notify := len(t.inflight) == 0
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()
	if notify {
		for _, w := range waiters {
			close(w)
		}
	}
}

func (t *networkTracker) onWebSocketCreated(raw json.RawMessage) {
	var ev requestIDEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	t.mu.Lock()
	t.excluded[ev.RequestID] = struct{}{}
	delete(t.inflight, ev.RequestID)
	t.mu.Unlock()
}

func (t *networkTracker) onEventSourceMessage(raw json.RawMessage) {
	var ev requestIDEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	t.mu.Lock()
	t.excluded[ev.RequestID] = struct{}{}
	delete(t.inflight, ev.RequestID)
	t.mu.Unlock()
}

func (t *networkTracker) activeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

func (t *networkTracker) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastEvent
}

const (
	strictIdleWindow  = 500 * time.Millisecond
	settleIdleWindow  = 300 * time.Millisecond
	settleTotalBudget = 2 * time.Second
)

// NetworkIdle blocks until there have been zero in-flight requests for a
// continuous 500ms window, returning an error on ctx cancellation or
// deadline (spec.md §4.2 "Strict network idle").
func (p *Page) NetworkIdle(ctx context.Context) error {
	return waitIdleWindow(ctx, p.inflight, strictIdleWindow)
}

// NetworkSettle is the best-effort variant run automatically after
// navigations and before snapshots: up to 2s total, looking for a 300ms idle
// window, returning cleanly (nil) on timeout rather than erroring.
func (p *Page) NetworkSettle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, settleTotalBudget)
	defer cancel()
	_ = waitIdleWindow(ctx, p.inflight, settleIdleWindow)
}

func waitIdleWindow(ctx context.Context, t *networkTracker, window time.Duration) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if t.activeCount() == 0 && time.Since(t.idleSince()) >= window {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

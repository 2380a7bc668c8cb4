package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/target"
)

// Session represents one attached CDP session (spec.md §3 "Session"): one
// sessionId bound to one target, a private command-id sequence space shared
// through the underlying Transport, and an event-subscription table local to
// this session.
type Session struct {
	transport *Transport
	sessionID target.SessionID
	targetID  target.ID

	handlersMu sync.RWMutex
	handlers   map[string][]func(json.RawMessage)

	crashed bool
}

// registry tracks live sessions by target, enforcing spec.md §4.1's "a
// per-target mutex serializes concurrent attaches" and §3's "only one
// session per targetId active at once per process".
type registry struct {
	mu    sync.Mutex
	locks map[target.ID]*sync.Mutex
	live  map[target.ID]*Session
}

func newRegistry() *registry {
	return &registry{
		locks: make(map[target.ID]*sync.Mutex),
		live:  make(map[target.ID]*Session),
	}
}

func (r *registry) lockFor(id target.ID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	return m
}

// globalRegistry is process-wide: the spec models one in-process mutex per
// target, not one per Transport, since a process may in principle attach to
// the same target through separately-dialed transports.
var globalRegistry = newRegistry()

// Attach locks the given target and performs Target.attachToTarget with
// flatten:true, returning a Session the caller must Detach when done.
func Attach(ctx context.Context, t *Transport, targetID target.ID) (*Session, error) {
	lock := globalRegistry.lockFor(targetID)
	lock.Lock()
	defer lock.Unlock()

	if _, already := globalRegistry.live[targetID]; already {
		return nil, fmt.Errorf("cdp: target %s already has an active session in this process", targetID)
	}

	params := struct {
		TargetID target.ID `json:"targetId"`
		Flatten  bool      `json:"flatten"`
	}{TargetID: targetID, Flatten: true}

	result, err := t.Send(ctx, "", "Target.attachToTarget", params)
	if err != nil {
		return nil, fmt.Errorf("cdp: Target.attachToTarget: %w", err)
	}
	var out struct {
		SessionID target.SessionID `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("cdp: decode attachToTarget result: %w", err)
	}

	s := &Session{
		transport: t,
		sessionID: out.SessionID,
		targetID:  targetID,
		handlers:  make(map[string][]func(json.RawMessage)),
	}

	t.Subscribe(func(sid target.SessionID, method string, params json.RawMessage) {
		if sid != s.sessionID {
			return
		}
		if method == "Inspector.targetCrashed" {
			s.crashed = true
		}
		s.handlersMu.RLock()
		hs := append([]func(json.RawMessage)(nil), s.handlers[method]...)
		s.handlersMu.RUnlock()
		for _, h := range hs {
			h(params)
		}
	})

	globalRegistry.mu.Lock()
	globalRegistry.live[targetID] = s
	globalRegistry.mu.Unlock()

	return s, nil
}

// Detach sends Target.detachFromTarget and releases the per-target lock slot.
func (s *Session) Detach(ctx context.Context) {
	params := struct {
		SessionID target.SessionID `json:"sessionId"`
	}{SessionID: s.sessionID}
	_, _ = s.transport.Send(ctx, "", "Target.detachFromTarget", params)

	globalRegistry.mu.Lock()
	delete(globalRegistry.live, s.targetID)
	globalRegistry.mu.Unlock()
}

// ID returns the attached sessionId.
func (s *Session) ID() target.SessionID { return s.sessionID }

// TargetID returns the attached target's id.
func (s *Session) TargetID() target.ID { return s.targetID }

// Crashed reports whether Inspector.targetCrashed fired for this session.
func (s *Session) Crashed() bool { return s.crashed }

// Send issues a session-scoped CDP command.
func (s *Session) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.crashed {
		return nil, fmt.Errorf("cdp: target %s crashed", s.targetID)
	}
	return s.transport.Send(ctx, s.sessionID, method, params)
}

// On registers a handler for one CDP event method on this session.
func (s *Session) On(method string, h func(json.RawMessage)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = append(s.handlers[method], h)
}

// Enable turns on the CDP domains the engine always needs: Page, Network,
// Runtime, DOM, Inspector (spec.md §6 "CDP protocol surface").
func (s *Session) Enable(ctx context.Context) error {
	domains := []string{"Page.enable", "Network.enable", "Runtime.enable", "DOM.enable", "Inspector.enable"}
	for _, m := range domains {
		if _, err := s.Send(ctx, m, nil); err != nil {
			return fmt.Errorf("cdp: %s: %w", m, err)
		}
	}
	return nil
}

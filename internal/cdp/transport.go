package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message is the generic CDP wire frame: `{id, method, params, sessionId}`
// outbound, `{id, result, error}` or `{method, params, sessionId}` inbound.
// Modelled directly on spec.md §4.1: "Outbound frames are
// {id, method, params, sessionId?}; inbound frames are either responses
// (matched by id) or events (dispatched to listeners keyed by
// (sessionId, method))".
type Message struct {
	ID        int64             `json:"id,omitempty"`
	Method    string            `json:"method,omitempty"`
	Params    json.RawMessage   `json:"params,omitempty"`
	SessionID target.SessionID  `json:"sessionId,omitempty"`
	Result    json.RawMessage   `json:"result,omitempty"`
	Error     *MessageError     `json:"error,omitempty"`
}

// MessageError is CDP's inline command-error shape.
type MessageError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

const (
	defaultCommandTimeout = 30 * time.Second
	dialRetryBackoff      = 500 * time.Millisecond
)

// EventHandler receives events for a given (sessionId, method) pair.
// sessionId is empty for browser-level events.
type EventHandler func(sessionID target.SessionID, method string, params json.RawMessage)

// Transport is a single multiplexed WebSocket connection to a browser's
// debugging endpoint, shared by every Session attached to that browser.
type Transport struct {
	conn *websocket.Conn
	log  *logrus.Entry

	writeMu sync.Mutex
	nextID  int64

	pendingMu sync.Mutex
	pending   map[int64]chan *Message

	listenersMu sync.RWMutex
	listeners   []EventHandler

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the browser-level WebSocket URL obtained from discovery
// (spec.md §4.1 "Connection"). It retries once with exponential backoff on
// a transient dial failure.
func Dial(ctx context.Context, wsURL string, log *logrus.Entry) (*Transport, error) {
	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err = dialer.DialContext(ctx, wsURL, nil)
		if err == nil {
			break
		}
		if attempt == 0 {
			select {
			case <-time.After(dialRetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
	}
	if err != nil {
		return nil, fmt.Errorf("cdp: dial %s: %w", wsURL, err)
	}

	t := &Transport{
		conn:    conn,
		log:     log,
		pending: make(map[int64]chan *Message),
		closed:  make(chan struct{}),
	}
	go t.recvLoop()
	return t, nil
}

// Subscribe registers an EventHandler for every inbound event frame
// (messages with a non-empty Method and no ID).
func (t *Transport) Subscribe(h EventHandler) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, h)
}

func (t *Transport) recvLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.log.WithError(err).Debug("cdp: websocket read error, closing transport")
			t.Close()
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.log.WithError(err).Warn("cdp: malformed frame, dropping")
			continue
		}

		if msg.ID != 0 {
			t.pendingMu.Lock()
			ch, ok := t.pending[msg.ID]
			if ok {
				delete(t.pending, msg.ID)
			}
			t.pendingMu.Unlock()
			if ok {
				ch <- &msg
			}
			continue
		}

		t.listenersMu.RLock()
		listeners := append([]EventHandler(nil), t.listeners...)
		t.listenersMu.RUnlock()
		for _, l := range listeners {
			l(msg.SessionID, msg.Method, msg.Params)
		}
	}
}

// Send issues one command and blocks for its matching response, honoring
// ctx and a default 30s command timeout (spec.md §4.1).
func (t *Transport) Send(ctx context.Context, sessionID target.SessionID, method string, params any) (json.RawMessage, error) {
	select {
	case <-t.closed:
		return nil, fmt.Errorf("cdp: transport closed")
	default:
	}

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("cdp: marshal params for %s: %w", method, err)
		}
		raw = b
	}

	id := atomic.AddInt64(&t.nextID, 1)
	msg := &Message{ID: id, Method: method, Params: raw, SessionID: sessionID}

	ch := make(chan *Message, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()

	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	buf, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("cdp: marshal frame for %s: %w", method, err)
	}

	t.writeMu.Lock()
	writeErr := t.conn.WriteMessage(websocket.TextMessage, buf)
	t.writeMu.Unlock()
	if writeErr != nil {
		return nil, fmt.Errorf("cdp: send %s: %w", method, writeErr)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
	defer cancel()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("cdp: command %s timed out: %w", method, timeoutCtx.Err())
	case <-t.closed:
		return nil, fmt.Errorf("cdp: transport closed while waiting for %s", method)
	}
}

// Close shuts the WebSocket down and unblocks any in-flight Send calls.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.conn.Close()
	})
}

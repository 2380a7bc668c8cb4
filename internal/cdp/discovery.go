package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TargetInfo mirrors one entry of Chrome's `/json/list` response.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo mirrors `/json/version`.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Endpoint addresses one Chrome DevTools HTTP+WebSocket endpoint.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) httpBase() string {
	return fmt.Sprintf("http://%s:%d", e.Host, e.Port)
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// Version calls GET /json/version and returns the browser-level WebSocket
// URL plus browser product string.
func Version(ctx context.Context, ep Endpoint) (*VersionInfo, error) {
	var v VersionInfo
	if err := getJSON(ctx, ep.httpBase()+"/json/version", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// List calls GET /json/list and enumerates all current targets.
func List(ctx context.Context, ep Endpoint) ([]TargetInfo, error) {
	var targets []TargetInfo
	if err := getJSON(ctx, ep.httpBase()+"/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// New calls GET /json/new?url=... to create a tab, blank if url is empty.
func New(ctx context.Context, ep Endpoint, url string) (*TargetInfo, error) {
	u := ep.httpBase() + "/json/new"
	if url != "" {
		u += "?url=" + url
	}
	var t TargetInfo
	if err := getJSON(ctx, u, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Close calls GET /json/close/{targetId} to close one tab.
func Close(ctx context.Context, ep Endpoint, targetID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.httpBase()+"/json/close/"+targetID, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("cdp: close target %s: http %d", targetID, resp.StatusCode)
	}
	return nil
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("cdp: GET %s: http %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Reachable reports whether the discovery endpoint answers /json/version
// within a short timeout. Used by the registry-free `chromeStatus` step.
func Reachable(ctx context.Context, ep Endpoint) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := Version(ctx, ep)
	return err == nil
}

package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DiscoveryPollInterval and DiscoveryTimeout bound how long
// DiscoverTargets and FirstPageTarget retry Chromium's HTTP debugging endpoint while the
// browser process is still starting up.
const (
	DiscoveryPollInterval = 200 * time.Millisecond
	DiscoveryTimeout      = 10 * time.Second
)

// TargetListEntry is one entry in the `GET /json/list` response.
type TargetListEntry struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the `GET /json/version` response, used to discover the
// browser-level WebSocket endpoint (as opposed to a page-level one).
type VersionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// newDiscoveryClient builds a retryablehttp client tuned to the cadence
// spec.md names for target discovery: a request every
// DiscoveryPollInterval, give up after DiscoveryTimeout. Its own
// default logger is silenced; failures are expected and routine while
// the browser process is still coming up.
func newDiscoveryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryWaitMin = DiscoveryPollInterval
	c.RetryWaitMax = DiscoveryPollInterval
	c.RetryMax = int(DiscoveryTimeout / DiscoveryPollInterval)
	return c
}

// DiscoverTargets polls `GET http://host:port/json/list` until it gets a
// response or DiscoveryTimeout elapses, per spec.md 4.4 step 1.
func DiscoverTargets(ctx context.Context, debuggingAddr string) ([]TargetListEntry, error) {
	body, err := getJSON(ctx, debuggingAddr, "/json/list")
	if err != nil {
		return nil, fmt.Errorf("devtools: discover targets: %w", err)
	}
	var entries []TargetListEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("devtools: discover targets: %w", err)
	}
	return entries, nil
}

// DiscoverVersion fetches `GET http://host:port/json/version`, used to
// find the browser-level WebSocket URL for the download/target channel.
func DiscoverVersion(ctx context.Context, debuggingAddr string) (*VersionInfo, error) {
	body, err := getJSON(ctx, debuggingAddr, "/json/version")
	if err != nil {
		return nil, fmt.Errorf("devtools: discover version: %w", err)
	}
	var v VersionInfo
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("devtools: discover version: %w", err)
	}
	return &v, nil
}

func getJSON(ctx context.Context, debuggingAddr, path string) ([]byte, error) {
	client := newDiscoveryClient()
	url := "http://" + debuggingAddr + path
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// FirstPageTarget finds the first attachable page target, retrying the
// whole listing at DiscoveryPollInterval (not just the HTTP call) since
// Chromium may answer `/json/list` with zero page targets for a brief
// window right after process start, per spec.md 4.4 step 1.
func FirstPageTarget(ctx context.Context, debuggingAddr string, logger *log.Logger) (TargetListEntry, error) {
	deadline := time.Now().Add(DiscoveryTimeout)
	for {
		entries, err := DiscoverTargets(ctx, debuggingAddr)
		if err == nil {
			for _, e := range entries {
				if e.Type == "page" {
					return e, nil
				}
			}
		} else if logger != nil {
			logger.Printf("devtools: discovery attempt failed: %v", err)
		}
		if time.Now().After(deadline) {
			return TargetListEntry{}, ErrNoTarget
		}
		select {
		case <-ctx.Done():
			return TargetListEntry{}, ctx.Err()
		case <-time.After(DiscoveryPollInterval):
		}
	}
}

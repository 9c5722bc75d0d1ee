package devtools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"
)

// correlationPollInterval is how often sendCommand re-checks the response
// queue for its id. Sub-millisecond CDP round trips are common on
// localhost, so polling too slowly would add visible latency; 1ms keeps
// the busy-wait cheap while staying well under typical command latency.
const correlationPollInterval = time.Millisecond

// correlationTimeout bounds how long sendCommand waits for a response
// before giving up. Chromium can take several seconds to answer commands
// like Page.captureScreenshot under load, so this is generous.
const correlationTimeout = 15 * time.Second

// pollForResponse blocks until a response queue yields the entry for id,
// ctx is cancelled, or correlationTimeout elapses.
func pollForResponse(ctx context.Context, q *responseQueue, id int64, method string) (json.RawMessage, error) {
	ticker := time.NewTicker(correlationPollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(correlationTimeout)
	defer deadline.Stop()

	for {
		if resp, ok := q.take(id); ok {
			if resp.Error != nil {
				return nil, &CommandError{Method: method, Err: resp.Error}
			}
			return resp.Result, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrCommandTimeout
		case <-ticker.C:
		}
	}
}

// decodeBase64 decodes a screencast frame's "data" field, which Chromium
// always emits as standard (not URL-safe) base64.
func decodeBase64(b []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(b)))
	n, err := base64.StdEncoding.Decode(out, b)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

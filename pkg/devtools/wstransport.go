package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daabr/termweb-core/pkg/framepool"
	"github.com/daabr/termweb-core/pkg/websocket"
)

// wsResponseQueueCap and wsEventQueueCap bound the correlation state a
// single WsTransport carries; both are oldest-dropped, so a caller that
// abandons a command or never drains events can't grow them unbounded.
const (
	wsResponseQueueCap = 50
	wsEventQueueCap    = 100
)

// wsKeepaliveSilence is how long a transport waits without receiving
// anything before sending an unsolicited ping, to keep Chromium's
// WebSocket handler (and any intermediate proxy, though this client never
// talks to one) from timing the connection out.
const wsKeepaliveSilence = 15 * time.Second

// writeBackoff implements the bounded try-lock-then-backoff strategy a
// high-priority send (mouse/keyboard input, which must never queue behind
// a large in-flight screenshot write) uses before falling back to a
// blocking acquire of the write mutex.
const (
	writeBackoffBase       = 10 * time.Microsecond
	writeBackoffMaxShift   = 4
	writeBackoffMaxRetries = 10
)

// WsTransport is a CDP transport over a single WebSocket connection (a
// browser-level or session-level devtools endpoint). One reader goroutine
// owns the connection for reads; sendCommand and sendCommandAsync share a
// write mutex, with high-priority sends competing for it via a short
// backoff instead of blocking outright so that a slow consumer of a large
// response never stalls input delivery.
type WsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Int64

	responses *responseQueue
	events    *eventQueue

	// allowedEvents restricts which event methods are queued for
	// consumption; a nil map means "forward everything". The client wires
	// nav-ws and browser-ws to only the events their channel cares about
	// (each sees a different slice of the CDP event surface), which is what
	// avoids head-of-line blocking between unrelated event classes;
	// mouse-ws and keyboard-ws are dialed without a whitelist.
	allowedEvents map[string]bool

	pool      *framepool.FramePool
	ackPolicy AckPolicy
	ackMu     sync.Mutex
	ack       pendingAck

	lastRecv atomic.Int64 // unix nanoseconds, updated by the reader goroutine

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	logger *log.Logger
}

// WsTransportOption configures a WsTransport at construction time.
type WsTransportOption func(*WsTransport)

// WithEventWhitelist restricts the transport to forwarding only the named
// event methods; anything else observed on the connection is silently
// dropped instead of being queued.
func WithEventWhitelist(methods ...string) WsTransportOption {
	return func(t *WsTransport) {
		m := make(map[string]bool, len(methods))
		for _, name := range methods {
			m[name] = true
		}
		t.allowedEvents = m
	}
}

// WithScreencastPool wires a FramePool (and acknowledgement policy) into
// the transport, for the port-based launch mode where screencast frames
// arrive over a WebSocket rather than the pipe.
func WithScreencastPool(pool *framepool.FramePool, policy AckPolicy) WsTransportOption {
	return func(t *WsTransport) {
		t.pool = pool
		t.ackPolicy = policy
	}
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) WsTransportOption {
	return func(t *WsTransport) { t.logger = l }
}

// NewWsTransport wraps an already-established WebSocket connection (see
// pkg/websocket.Handshake) as a CDP transport.
func NewWsTransport(conn *websocket.Conn, opts ...WsTransportOption) *WsTransport {
	t := &WsTransport{
		conn:      conn,
		responses: newResponseQueue(wsResponseQueueCap),
		events:    newEventQueue(wsEventQueueCap),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.New(os.Stderr, "devtools/ws: ", log.LstdFlags)
	}
	t.lastRecv.Store(time.Now().UnixNano())
	return t
}

// DialWsTransport performs the WebSocket handshake to addr/path and
// returns a transport over the resulting connection. Options are applied
// before dialing so that WithLogger's logger also becomes the
// connection-level logger pkg/websocket reports handshake and keepalive
// anomalies to — one injected logger per transport, not two.
func DialWsTransport(ctx context.Context, addr, path string, opts ...WsTransportOption) (*WsTransport, error) {
	t := &WsTransport{
		responses: newResponseQueue(wsResponseQueueCap),
		events:    newEventQueue(wsEventQueueCap),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.New(os.Stderr, "devtools/ws: ", log.LstdFlags)
	}

	conn, err := websocket.Handshake(ctx, addr, path, websocket.WithLogger(t.logger))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	t.conn = conn
	t.lastRecv.Store(time.Now().UnixNano())
	return t, nil
}

// Start launches the reader goroutine and the keepalive-ping goroutine. It
// must be called exactly once.
func (t *WsTransport) Start() {
	go t.readLoop()
	go t.keepaliveLoop()
}

func (t *WsTransport) readLoop() {
	for {
		b, err := t.conn.Read()
		if err != nil {
			t.logger.Printf("ws read loop exiting: %v", err)
			t.Close()
			return
		}
		t.lastRecv.Store(time.Now().UnixNano())
		t.dispatch(b)
	}
}

func (t *WsTransport) keepaliveLoop() {
	ticker := time.NewTicker(wsKeepaliveSilence / 3)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			silentFor := time.Since(time.Unix(0, t.lastRecv.Load()))
			if silentFor >= wsKeepaliveSilence {
				if err := t.conn.WritePing([]byte("keepalive")); err != nil {
					t.logger.Printf("keepalive ping failed: %v", err)
				}
			}
		}
	}
}

func (t *WsTransport) dispatch(raw []byte) {
	if method, ok := scanMethod(raw); ok {
		t.dispatchEvent(method, raw)
		return
	}
	id, ok := scanID(raw)
	if !ok {
		t.logger.Printf("ws: dropping malformed message with neither method nor id: %s", raw)
		return
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.logger.Printf("ws: failed to unmarshal response %d: %v", id, err)
		return
	}
	t.responses.push(ResponseMessage{ID: m.ID, Result: m.Result, Error: m.Error})
}

func (t *WsTransport) dispatchEvent(method string, raw []byte) {
	if method == "Page.screencastFrame" && t.pool != nil {
		params, ok := scanParamsObject(raw)
		if ok {
			t.handleScreencastFrame(raw, params)
		}
		return
	}
	if t.allowedEvents != nil && !t.allowedEvents[method] {
		return
	}
	sid, _ := scanSessionID(raw)
	params, _ := scanParamsObject(raw)
	t.events.push(EventMessage{Method: method, Params: json.RawMessage(params), SessionID: sid})
}

func (t *WsTransport) handleScreencastFrame(raw, params []byte) {
	dataB64, ok := scanDataField(params)
	if !ok {
		t.logger.Printf("ws: screencastFrame event missing data field")
		return
	}
	payload, err := decodeBase64(dataB64)
	if err != nil {
		t.logger.Printf("ws: failed to decode screencastFrame data: %v", err)
		return
	}
	width, height, _ := scanMetadataDimensions(params)
	routingSID, _ := scanSessionID(raw)
	frameSID, _ := scanFrameSessionID(params)

	t.pool.WriteFrame(payload, routingSID, width, height)

	t.ackMu.Lock()
	t.ack = pendingAck{valid: true, routingSessionID: routingSID, frameSessionID: frameSID}
	t.ackMu.Unlock()
}

// AcquireLatestFrame is the WebSocket-carried-screencast counterpart of
// PipeTransport.AcquireLatestFrame; see its documentation. It is only
// meaningful when the transport was constructed with WithScreencastPool.
func (t *WsTransport) AcquireLatestFrame() (*framepool.FrameSlot, uint64, bool) {
	slot, gen, ok := t.pool.AcquireLatestFrame()
	if ok && t.ackPolicy == AckConsumerPull {
		t.sendPendingAck()
	}
	return slot, gen, ok
}

func (t *WsTransport) sendPendingAck() {
	t.ackMu.Lock()
	ack := t.ack
	t.ack = pendingAck{}
	t.ackMu.Unlock()
	if !ack.valid {
		return
	}
	params, _ := json.Marshal(struct {
		SessionID int64 `json:"sessionId"`
	}{SessionID: ack.frameSessionID})
	if _, err := t.SendCommandAsync("Page.screencastFrameAck", params, ack.routingSessionID, false); err != nil {
		t.logger.Printf("ws: failed to send screencastFrameAck: %v", err)
	}
}

// NextEvent pops the oldest queued event, if any is waiting.
func (t *WsTransport) NextEvent() (EventMessage, bool) {
	return t.events.pop()
}

// SendCommandAsync writes a CDP command and returns its id without
// waiting for a response. highPriority sends (mouse/keyboard input) use a
// bounded try-lock-then-backoff strategy to acquire the write mutex ahead
// of whatever large write might already be in flight; everything else
// just blocks on it.
func (t *WsTransport) SendCommandAsync(method string, params json.RawMessage, sessionID string, highPriority bool) (int64, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	id := t.nextID.Add(1)
	m := Message{ID: id, Method: method, Params: params, SessionID: sessionID}
	b, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("devtools: marshal command %s: %w", method, err)
	}

	if highPriority {
		if err := t.writeHighPriority(b); err != nil {
			return 0, err
		}
		return id, nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteText(b); err != nil {
		return 0, fmt.Errorf("devtools: write command %s: %w", method, err)
	}
	return id, nil
}

// writeHighPriority tries to acquire the write mutex immediately, and
// failing that retries with exponential backoff (10us * 2^n, capped at
// n=4) for up to writeBackoffMaxRetries attempts before falling back to a
// plain blocking Lock.
func (t *WsTransport) writeHighPriority(b []byte) error {
	for attempt := 0; attempt < writeBackoffMaxRetries; attempt++ {
		if t.writeMu.TryLock() {
			err := t.conn.WriteText(b)
			t.writeMu.Unlock()
			if err != nil {
				return fmt.Errorf("devtools: write high-priority command: %w", err)
			}
			return nil
		}
		shift := attempt
		if shift > writeBackoffMaxShift {
			shift = writeBackoffMaxShift
		}
		time.Sleep(writeBackoffBase * time.Duration(uint64(1)<<uint(shift)))
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteText(b); err != nil {
		return fmt.Errorf("devtools: write high-priority command: %w", err)
	}
	return nil
}

// SendCommand sends a command and blocks until its response is observed or
// ctx is done.
func (t *WsTransport) SendCommand(ctx context.Context, method string, params json.RawMessage, sessionID string, highPriority bool) (json.RawMessage, error) {
	id, err := t.SendCommandAsync(method, params, sessionID, highPriority)
	if err != nil {
		return nil, err
	}
	return pollForResponse(ctx, t.responses, id, method)
}

// Close closes the underlying WebSocket connection and stops the reader
// and keepalive goroutines. Safe to call more than once.
func (t *WsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		err = t.conn.Close(1000, []byte("client closing"))
	})
	return err
}

package devtools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daabr/termweb-core/pkg/framepool"
)

// AckPolicy selects how a PipeTransport acknowledges screencast frames back
// to the browser. Chromium pauses the screencast stream whenever the
// acknowledgement for the previous frame is outstanding, so the policy
// directly controls how the renderer trades frame freshness for its own
// pace.
type AckPolicy int

const (
	// AckConsumerPull acknowledges a frame only when the renderer actually
	// acquires it from the FramePool. A slow renderer naturally throttles
	// the browser's frame rate; a fast renderer sees every frame Chromium
	// is willing to send.
	AckConsumerPull AckPolicy = iota
	// AckRateLimited acknowledges automatically, at most once every
	// rateLimitedAckInterval, independent of whether anything consumed the
	// frame. Useful when nothing is pulling frames yet but the screencast
	// stream must not stall out entirely.
	AckRateLimited
)

// rateLimitedAckInterval approximates a 24fps acknowledgement cadence.
const rateLimitedAckInterval = 41 * time.Millisecond

// pipeResponseQueueCap bounds the pipe transport's correlation state the
// same way the WebSocket transport bounds its own (see wstransport.go); the
// pipe only ever carries screencast traffic plus the occasional Target/Page
// command, so it is sized smaller. pipeEventQueueCap is not used: the pipe
// transport keeps no event queue.
const (
	pipeResponseQueueCap = 32
	pipeEventQueueCap    = 8
)

// pendingAck is the single most recently written screencast frame's
// identity, cached so a consumer-pull acquire can acknowledge exactly the
// frame it just took without the FramePool itself knowing anything about
// CDP acknowledgement semantics.
type pendingAck struct {
	valid            bool
	routingSessionID string
	frameSessionID   int64
}

// PipeTransport is a CDP transport over a pair of inherited OS pipes (the
// browser's stdin/stdout when launched with --remote-debugging-pipe),
// framed with a NUL byte between JSON messages instead of newlines or
// WebSocket frames. It is dedicated to the screencast role: its reader
// dispatch only understands Page.screencastFrame (which it writes into a
// FramePool and, depending on AckPolicy, acknowledges) and otherwise
// ignores events, on the assumption that every other event type is
// subscribed to on a session-scoped WebSocket instead.
type PipeTransport struct {
	in     *os.File
	reader *bufio.Reader

	writeMu sync.Mutex
	nextID  atomic.Int64

	responses *responseQueue

	pool      *framepool.FramePool
	ackPolicy AckPolicy

	ackMu sync.Mutex
	ack   pendingAck

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	logger *log.Logger
}

// NewPipeTransport constructs a transport over in (write end, towards the
// browser) and out (read end, from the browser). pool receives decoded
// screencast frame payloads; it may be shared with other consumers but
// must not be written to by anyone else.
func NewPipeTransport(in, out *os.File, pool *framepool.FramePool, policy AckPolicy, logger *log.Logger) *PipeTransport {
	if logger == nil {
		logger = log.New(os.Stderr, "devtools/pipe: ", log.LstdFlags)
	}
	t := &PipeTransport{
		in:        in,
		reader:    bufio.NewReaderSize(out, framepool.MinSlotCapacity),
		responses: newResponseQueue(pipeResponseQueueCap),
		pool:      pool,
		ackPolicy: policy,
		done:      make(chan struct{}),
		logger:    logger,
	}
	return t
}

// Start launches the reader goroutine (and, for AckRateLimited, the
// background ack ticker). It must be called exactly once.
func (t *PipeTransport) Start() {
	go t.readLoop()
	if t.ackPolicy == AckRateLimited {
		go t.rateLimitedAckLoop()
	}
}

func (t *PipeTransport) readLoop() {
	for {
		b, err := t.reader.ReadBytes(0)
		if err != nil {
			t.logger.Printf("pipe read loop exiting: %v", err)
			t.Close()
			return
		}
		msg := b[:len(b)-1] // drop the trailing NUL delimiter
		if len(msg) == 0 {
			continue
		}
		t.dispatch(msg)
	}
}

func (t *PipeTransport) dispatch(raw []byte) {
	if method, ok := scanMethod(raw); ok {
		t.dispatchEvent(method, raw)
		return
	}
	id, ok := scanID(raw)
	if !ok {
		t.logger.Printf("pipe: dropping malformed message with neither method nor id: %s", raw)
		return
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.logger.Printf("pipe: failed to unmarshal response %d: %v", id, err)
		return
	}
	t.responses.push(ResponseMessage{ID: m.ID, Result: m.Result, Error: m.Error})
}

// dispatchEvent implements the screencast-only event filter: every event
// other than Page.screencastFrame is dropped on the floor, since nothing on
// this transport subscribes to it.
func (t *PipeTransport) dispatchEvent(method string, raw []byte) {
	if method != "Page.screencastFrame" {
		return
	}
	params, ok := scanParamsObject(raw)
	if !ok {
		t.logger.Printf("pipe: screencastFrame event missing params")
		return
	}
	t.handleScreencastFrame(raw, params)
}

func (t *PipeTransport) handleScreencastFrame(raw, params []byte) {
	dataB64, ok := scanDataField(params)
	if !ok {
		t.logger.Printf("pipe: screencastFrame event missing data field")
		return
	}
	payload, err := decodeBase64(dataB64)
	if err != nil {
		t.logger.Printf("pipe: failed to decode screencastFrame data: %v", err)
		return
	}
	width, height, _ := scanMetadataDimensions(params)
	routingSID, _ := scanSessionID(raw)
	frameSID, _ := scanFrameSessionID(params)

	t.pool.WriteFrame(payload, routingSID, width, height)

	t.ackMu.Lock()
	t.ack = pendingAck{valid: true, routingSessionID: routingSID, frameSessionID: frameSID}
	t.ackMu.Unlock()

	if t.ackPolicy == AckConsumerPull {
		// No automatic ack here: AcquireLatestFrame below is what triggers it.
		return
	}
}

// AcquireLatestFrame borrows the newest screencast frame from the shared
// FramePool. Under AckConsumerPull this is also what tells the browser it
// may send another frame; under AckRateLimited acknowledgement happens on
// its own schedule and this call has no side effect on the wire.
func (t *PipeTransport) AcquireLatestFrame() (*framepool.FrameSlot, uint64, bool) {
	slot, gen, ok := t.pool.AcquireLatestFrame()
	if ok && t.ackPolicy == AckConsumerPull {
		t.sendPendingAck()
	}
	return slot, gen, ok
}

// Release returns a frame slot obtained from AcquireLatestFrame.
func (t *PipeTransport) Release(slot *framepool.FrameSlot) {
	t.pool.Release(slot)
}

func (t *PipeTransport) sendPendingAck() {
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
	if _, err := t.SendCommandAsync("Page.screencastFrameAck", params, ack.routingSessionID); err != nil {
		t.logger.Printf("pipe: failed to send screencastFrameAck: %v", err)
	}
}

func (t *PipeTransport) rateLimitedAckLoop() {
	ticker := time.NewTicker(rateLimitedAckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.sendPendingAck()
		}
	}
}

// SendCommandAsync writes a CDP command to the pipe and returns its id
// without waiting for a response. Use SendCommand, which polls the
// response queue internally, when the reply is needed.
func (t *PipeTransport) SendCommandAsync(method string, params json.RawMessage, sessionID string) (int64, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	id := t.nextID.Add(1)
	m := Message{ID: id, Method: method, Params: params, SessionID: sessionID}
	b, err := json.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("devtools: marshal command %s: %w", method, err)
	}
	b = append(b, 0)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.in.Write(b); err != nil {
		return 0, fmt.Errorf("devtools: write command %s to pipe: %w", method, err)
	}
	return id, nil
}

// SendCommand sends a command and blocks until its response is observed or
// ctx is done. It polls the shared response queue roughly once a
// millisecond, the same correlation strategy the WebSocket transport uses.
func (t *PipeTransport) SendCommand(ctx context.Context, method string, params json.RawMessage, sessionID string) (json.RawMessage, error) {
	id, err := t.SendCommandAsync(method, params, sessionID)
	if err != nil {
		return nil, err
	}
	return pollForResponse(ctx, t.responses, id, method)
}

// Close marks the transport closed, stops the ack ticker if running, and
// closes the write end of the pipe. It does not close the read end, so the
// reader goroutine keeps running until that end reports EOF or an error.
// It is safe to call more than once.
func (t *PipeTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		err = t.in.Close()
	})
	return err
}

package devtools

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/daabr/termweb-core/pkg/framepool"
)

// fakeBrowserPipe simulates the browser side of a --remote-debugging-pipe
// connection: it reads NUL-delimited JSON commands from the transport's
// write end and lets the test script canned responses/events back.
type fakeBrowserPipe struct {
	reader  *bufio.Reader
	writeTo *os.File
}

func newPipeTransportForTest(t *testing.T, pool *framepool.FramePool, policy AckPolicy) (*PipeTransport, *fakeBrowserPipe) {
	t.Helper()
	// Pipe A carries transport->fake traffic (the commands the transport
	// "writes to the browser"); pipe B carries fake->transport traffic
	// (responses and events "from the browser").
	aRead, aWrite, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe(): %v", err)
	}
	bRead, bWrite, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe(): %v", err)
	}
	transport := NewPipeTransport(aWrite, bRead, pool, policy, nil)
	fake := &fakeBrowserPipe{reader: bufio.NewReader(aRead), writeTo: bWrite}
	t.Cleanup(func() {
		aWrite.Close()
		aRead.Close()
		bRead.Close()
		bWrite.Close()
	})
	transport.Start()
	return transport, fake
}

// nextCommand reads one NUL-delimited message the transport wrote.
func (f *fakeBrowserPipe) nextCommand(t *testing.T) Message {
	t.Helper()
	b, err := f.reader.ReadBytes(0)
	if err != nil {
		t.Fatalf("fakeBrowserPipe.nextCommand: %v", err)
	}
	var m Message
	if err := json.Unmarshal(b[:len(b)-1], &m); err != nil {
		t.Fatalf("fakeBrowserPipe.nextCommand: unmarshal: %v", err)
	}
	return m
}

func (f *fakeBrowserPipe) send(raw string) {
	f.writeTo.Write(append([]byte(raw), 0))
}

func TestPipeTransportSendCommandRoundTrip(t *testing.T) {
	transport, fake := newPipeTransportForTest(t, framepool.New(0), AckConsumerPull)
	defer transport.Close()

	replyDone := make(chan struct{})
	go func() {
		defer close(replyDone)
		cmd := fake.nextCommand(t)
		if cmd.Method != "Target.setDiscoverTargets" {
			t.Errorf("command method = %q, want %q", cmd.Method, "Target.setDiscoverTargets")
		}
		fake.send(fmt.Sprintf(`{"id":%d,"result":{"ok":true}}`, cmd.ID))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := transport.SendCommand(ctx, "Target.setDiscoverTargets", json.RawMessage(`{"discover":true}`), "")
	if err != nil {
		t.Fatalf("SendCommand() error: %v", err)
	}
	if !strings.Contains(string(result), `"ok":true`) {
		t.Errorf("SendCommand() result = %s, want it to contain ok:true", result)
	}
	<-replyDone
}

func TestPipeTransportSendCommandError(t *testing.T) {
	transport, fake := newPipeTransportForTest(t, framepool.New(0), AckConsumerPull)
	defer transport.Close()

	go func() {
		cmd := fake.nextCommand(t)
		fake.send(fmt.Sprintf(`{"id":%d,"error":{"code":-32000,"message":"no such target"}}`, cmd.ID))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := transport.SendCommand(ctx, "Target.activateTarget", json.RawMessage(`{}`), "")
	if err == nil {
		t.Fatal("SendCommand() error = nil, want the CDP error to surface")
	}
	var cmdErr *CommandError
	if !errorsAs(err, &cmdErr) {
		t.Fatalf("SendCommand() error = %v, want a *CommandError", err)
	}
	if cmdErr.Err.Code != -32000 {
		t.Errorf("CommandError.Err.Code = %d, want -32000", cmdErr.Err.Code)
	}
}

func TestPipeTransportScreencastFrameConsumerPullAck(t *testing.T) {
	pool := framepool.New(0)
	transport, fake := newPipeTransportForTest(t, pool, AckConsumerPull)
	defer transport.Close()

	payload := []byte("jpeg-bytes-here")
	data := base64.StdEncoding.EncodeToString(payload)
	event := fmt.Sprintf(`{"method":"Page.screencastFrame","params":{"data":%q,"metadata":{"deviceWidth":640,"deviceHeight":480},"sessionId":7},"sessionId":"ROUTE-1"}`, data)
	fake.send(event)

	// Give the reader goroutine a moment to land the frame in the pool.
	var slot *framepool.FrameSlot
	var ok bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		slot, _, ok = transport.AcquireLatestFrame()
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !ok {
		t.Fatal("AcquireLatestFrame() never observed the written frame")
	}
	if string(slot.Bytes()) != string(payload) {
		t.Errorf("frame bytes = %q, want %q", slot.Bytes(), payload)
	}
	transport.Release(slot)

	ackCmd := fake.nextCommand(t)
	if ackCmd.Method != "Page.screencastFrameAck" {
		t.Fatalf("ack command method = %q, want Page.screencastFrameAck", ackCmd.Method)
	}
	if ackCmd.SessionID != "ROUTE-1" {
		t.Errorf("ack command sessionId = %q, want %q", ackCmd.SessionID, "ROUTE-1")
	}
	var params struct {
		SessionID int64 `json:"sessionId"`
	}
	if err := json.Unmarshal(ackCmd.Params, &params); err != nil {
		t.Fatalf("unmarshal ack params: %v", err)
	}
	if params.SessionID != 7 {
		t.Errorf("ack params.sessionId = %d, want 7", params.SessionID)
	}
}

// errorsAs is a tiny indirection so this file doesn't need a direct
// "errors" import collision with the package's own error values.
func errorsAs(err error, target **CommandError) bool {
	ce, ok := err.(*CommandError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loafbrew/dapheadless/internal/wire"
)

// fakeAdapter reads requests off one end of a net.Pipe and lets the test
// script canned responses, mirroring how util/daptest drives a real
// adapter in the teacher's test suite.
type fakeAdapter struct {
	r *bufio.Reader
	w net.Conn
}

func newFakeAdapterPair(t *testing.T) (*Transport, *fakeAdapter) {
	t.Helper()
	clientConn, adapterConn := net.Pipe()

	tr := newTransport(wire.New(clientConn, clientConn), clientConn, WithRequestTimeout(200*time.Millisecond))
	tr.start(context.Background())

	fa := &fakeAdapter{r: bufio.NewReader(adapterConn), w: adapterConn}
	t.Cleanup(func() { _ = tr.Close() })
	return tr, fa
}

func (f *fakeAdapter) recvRequest(t *testing.T) *dap.Request {
	t.Helper()
	m, err := dap.ReadProtocolMessage(f.r)
	require.NoError(t, err)
	req, ok := m.(dap.RequestMessage)
	require.True(t, ok, "expected a request message, got %T", m)
	return req.GetRequest()
}

func (f *fakeAdapter) reply(seq int, command string, success bool, message string, body any) {
	var bodyRaw json.RawMessage
	if body != nil {
		b, _ := json.Marshal(body)
		bodyRaw = b
	}
	resp := &rawResponse{
		Response: &dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq + 1000, Type: "response"},
			RequestSeq:      seq,
			Success:         success,
			Command:         command,
			Message:         message,
		},
		Body: bodyRaw,
	}
	_ = dap.WriteProtocolMessage(f.w, resp)
}

func TestSendRequestResolvesWithBody(t *testing.T) {
	tr, adapter := newFakeAdapterPair(t)

	done := make(chan struct{})
	var body json.RawMessage
	var err error
	go func() {
		defer close(done)
		body, err = tr.SendRequest(context.Background(), "initialize", map[string]string{"adapterID": "x"})
	}()

	req := adapter.recvRequest(t)
	assert.Equal(t, "initialize", req.Command)
	adapter.reply(req.Seq, "initialize", true, "", map[string]bool{"supportsConfigurationDoneRequest": true})

	<-done
	require.NoError(t, err)

	var parsed map[string]bool
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.True(t, parsed["supportsConfigurationDoneRequest"])
}

func TestSendRequestProtocolFailurePropagatesMessage(t *testing.T) {
	tr, adapter := newFakeAdapterPair(t)

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = tr.SendRequest(context.Background(), "launch", nil)
	}()

	req := adapter.recvRequest(t)
	adapter.reply(req.Seq, "launch", false, "program not found", nil)

	<-done
	require.Error(t, err)
	assert.Equal(t, "program not found", err.Error())
}

func TestSendRequestTimesOut(t *testing.T) {
	tr, adapter := newFakeAdapterPair(t)
	// The adapter reads the request off the unbuffered pipe (so the write
	// completes) but intentionally never replies.
	go func() { _, _ = dap.ReadProtocolMessage(adapter.r) }()

	_, err := tr.SendRequest(context.Background(), "pause", nil)
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestCloseRejectsAllPendingRequests(t *testing.T) {
	clientConn, adapterConn := net.Pipe()
	defer adapterConn.Close()

	tr := newTransport(wire.New(clientConn, clientConn), clientConn, WithRequestTimeout(5*time.Second))
	tr.start(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.SendRequest(context.Background(), "threads", nil)
		errCh <- err
	}()

	// Give SendRequest time to register its pending entry before closing.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, <-errCh, ErrTransportClosed)
	assert.False(t, tr.IsOpen())
}

func TestEventDispatchDeliversBodyOnly(t *testing.T) {
	tr, adapter := newFakeAdapterPair(t)

	received := make(chan json.RawMessage, 1)
	tr.OnEvent("stopped", func(body json.RawMessage) {
		received <- body
	})

	ev := &dap.StoppedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"}, Event: "stopped"},
		Body:  dap.StoppedEventBody{Reason: "breakpoint", ThreadId: 1},
	}
	require.NoError(t, dap.WriteProtocolMessage(adapter.w, ev))

	select {
	case body := <-received:
		var parsed dap.StoppedEventBody
		require.NoError(t, json.Unmarshal(body, &parsed))
		assert.Equal(t, "breakpoint", parsed.Reason)
	case <-time.After(time.Second):
		t.Fatal("event was not dispatched")
	}
}

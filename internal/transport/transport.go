// Package transport owns one framed channel to an adapter: sequence-number
// allocation, request/response correlation with timeouts, and dispatch of
// inbound events and reverse-requests (§4.2 of the spec).
//
// The concurrency shape follows the teacher's dap/conn.go and
// util/daptest/client.go: one goroutine owns the read loop. The
// pending-request map is shared between that loop, callers of SendRequest
// and the per-request timers, and every access to it holds the
// transport's mutex; each caller receives its result over its own
// pending entry's channel.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/loafbrew/dapheadless/internal/wire"
)

// Sentinel errors per the spec's transport-error taxonomy (§7).
var (
	ErrTransportClosed = errors.New("transport: closed")
	ErrTimedOut        = errors.New("transport: request timed out")
)

// DefaultRequestTimeout is the per-request timeout (§9, "individual
// request timeouts (default 30s)").
const DefaultRequestTimeout = 30 * time.Second

// EventHandler receives the body of one received event.
type EventHandler func(body json.RawMessage)

// ReverseRequestHandler receives one inbound request (type "request") and
// must eventually call (*Transport).SendResponse with the same RequestSeq.
type ReverseRequestHandler func(req dap.Message)

type pendingResult struct {
	resp dap.ResponseMessage
	err  error
}

type pendingEntry struct {
	resp  chan pendingResult
	timer *time.Timer
	once  sync.Once
}

// Transport owns a Framer over a byte stream plus whatever process or
// socket produced that stream.
type Transport struct {
	framer *wire.Framer
	closer io.Closer

	seq atomic.Int64

	mu      sync.Mutex
	pending map[int]*pendingEntry
	closed  bool

	eventMu     sync.RWMutex
	eventSubs   map[string][]EventHandler
	reverseSubs map[string]ReverseRequestHandler

	requestTimeout time.Duration

	eg     *errgroup.Group
	cancel context.CancelCauseFunc

	log *logrus.Entry
}

// Option customizes a Transport at construction time.
type Option func(*Transport)

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(t *Transport) { t.requestTimeout = d }
}

// WithLogger attaches a diagnostic logger; one is constructed from
// logrus.StandardLogger() if this option is omitted.
func WithLogger(log *logrus.Entry) Option {
	return func(t *Transport) { t.log = log }
}

func newTransport(framer *wire.Framer, closer io.Closer, opts ...Option) *Transport {
	t := &Transport{
		framer:         framer,
		closer:         closer,
		pending:        make(map[int]*pendingEntry),
		eventSubs:      make(map[string][]EventHandler),
		reverseSubs:    make(map[string]ReverseRequestHandler),
		requestTimeout: DefaultRequestTimeout,
		log:            logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ChildProcess spawns cmd with args, diverting stderr to the transport's
// diagnostic logger, and frames messages over its stdin/stdout.
func ChildProcess(ctx context.Context, name string, args []string, dir string, env []string, opts ...Option) (*Transport, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "transport: stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "transport: stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "transport: stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "transport: start adapter process")
	}

	t := newTransport(wire.New(stdout, stdin), processCloser{cmd, stdin}, opts...)
	t.start(ctx)
	t.relayStderr(stderr)
	return t, nil
}

type processCloser struct {
	cmd   *exec.Cmd
	stdin io.Closer
}

func (p processCloser) Close() error {
	p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}

// Socket connects to a previously started adapter server through dial,
// after an optional startup delay (some socket adapters need a moment to
// bind).
func Socket(ctx context.Context, dial func(ctx context.Context) (io.ReadWriteCloser, error), startupDelay time.Duration, opts ...Option) (*Transport, error) {
	if startupDelay > 0 {
		select {
		case <-time.After(startupDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	conn, err := dial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "transport: dial adapter socket")
	}

	t := newTransport(wire.New(conn, conn), conn, opts...)
	t.start(ctx)
	return t, nil
}

func (t *Transport) relayStderr(r io.Reader) {
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				t.log.WithField("stream", "stderr").Debug(string(buf[:n]))
			}
			if err != nil {
				return
			}
		}
	}()
}

func (t *Transport) start(ctx context.Context) {
	ctx, cancel := context.WithCancelCause(ctx)
	t.cancel = cancel
	t.eg, _ = errgroup.WithContext(ctx)
	t.eg.Go(func() error {
		return t.readLoop()
	})
}

func (t *Transport) nextSeq() int {
	return int(t.seq.Add(1))
}

func (t *Transport) readLoop() error {
	for {
		m, err := t.framer.ReadMessage()
		if err != nil {
			t.closeWithCause(err)
			return nil
		}

		switch m := m.(type) {
		case dap.ResponseMessage:
			t.dispatchResponse(m)
		case dap.EventMessage:
			t.dispatchEvent(m)
		case dap.RequestMessage:
			t.dispatchReverseRequest(m)
		default:
			t.log.Warnf("transport: unrecognized message %T", m)
		}
	}
}

func (t *Transport) dispatchResponse(m dap.ResponseMessage) {
	reqSeq := m.GetResponse().RequestSeq

	t.mu.Lock()
	entry := t.pending[reqSeq]
	delete(t.pending, reqSeq)
	t.mu.Unlock()

	if entry == nil {
		return
	}
	entry.once.Do(func() {
		entry.timer.Stop()
		entry.resp <- pendingResult{resp: m}
		close(entry.resp)
	})
}

func (t *Transport) dispatchEvent(m dap.EventMessage) {
	name := m.GetEvent().Event
	body, _ := json.Marshal(m)

	var env struct {
		Body json.RawMessage `json:"body"`
	}
	_ = json.Unmarshal(body, &env)

	t.eventMu.RLock()
	handlers := append([]EventHandler(nil), t.eventSubs[name]...)
	t.eventMu.RUnlock()

	for _, h := range handlers {
		h(env.Body)
	}
}

func (t *Transport) dispatchReverseRequest(m dap.RequestMessage) {
	cmd := m.GetRequest().Command

	t.eventMu.RLock()
	handler := t.reverseSubs[cmd]
	t.eventMu.RUnlock()

	if handler == nil {
		_ = t.SendResponse(m.GetRequest().Seq, cmd, false, nil, "not implemented")
		return
	}
	handler(m)
}

// OnEvent registers a subscriber for one named event. Subscribers see only
// the event body.
func (t *Transport) OnEvent(name string, h EventHandler) {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()
	t.eventSubs[name] = append(t.eventSubs[name], h)
}

// OnReverseRequest registers the single handler for one reverse-request
// command. The handler must call SendResponse.
func (t *Transport) OnReverseRequest(command string, h ReverseRequestHandler) {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()
	t.reverseSubs[command] = h
}

// SendRequest allocates a sequence number, writes req, and blocks until a
// matching response arrives, the per-request timeout fires, or the
// transport closes. On success==false in the response, it returns a
// protocol error carrying the adapter's message verbatim.
func (t *Transport) SendRequest(ctx context.Context, command string, arguments any) (json.RawMessage, error) {
	seq := t.nextSeq()

	var argBytes json.RawMessage
	if arguments != nil {
		b, err := json.Marshal(arguments)
		if err != nil {
			return nil, errors.Wrap(err, "transport: marshal request arguments")
		}
		argBytes = b
	}

	req := &dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}
	msg := &rawRequest{Request: req, Arguments: argBytes}

	entry := &pendingEntry{resp: make(chan pendingResult, 1)}
	entry.timer = time.AfterFunc(t.requestTimeout, func() {
		t.mu.Lock()
		_, ok := t.pending[seq]
		delete(t.pending, seq)
		t.mu.Unlock()

		if ok {
			entry.once.Do(func() {
				entry.resp <- pendingResult{err: ErrTimedOut}
				close(entry.resp)
			})
		}
	})

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		entry.timer.Stop()
		return nil, ErrTransportClosed
	}
	t.pending[seq] = entry
	t.mu.Unlock()

	if err := t.framer.WriteMessage(msg); err != nil {
		t.mu.Lock()
		delete(t.pending, seq)
		closed := t.closed
		t.mu.Unlock()
		entry.timer.Stop()
		if closed {
			return nil, ErrTransportClosed
		}
		return nil, errors.Wrap(err, "transport: write request")
	}

	select {
	case result, ok := <-entry.resp:
		if !ok {
			return nil, ErrTimedOut
		}
		if result.err != nil {
			return nil, result.err
		}
		r := result.resp.GetResponse()
		if !r.Success {
			msg := r.Message
			if msg == "" {
				msg = "adapter reported failure"
			}
			return nil, errors.New(msg)
		}
		return marshalBody(result.resp)
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pending, seq)
		t.mu.Unlock()
		entry.timer.Stop()
		return nil, ctx.Err()
	}
}

func marshalBody(resp dap.ResponseMessage) (json.RawMessage, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var env struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	return env.Body, nil
}

// SendResponse replies to a reverse-request.
func (t *Transport) SendResponse(requestSeq int, command string, success bool, body any, message string) error {
	var bodyRaw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyRaw = b
	}

	resp := &rawResponse{
		Response: &dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: t.nextSeq(), Type: "response"},
			RequestSeq:      requestSeq,
			Success:         success,
			Command:         command,
			Message:         message,
		},
		Body: bodyRaw,
	}
	return t.framer.WriteMessage(resp)
}

// IsOpen reports whether the transport's underlying channel is still
// usable.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Close is idempotent: it rejects all pending requests with
// ErrTransportClosed, closes the underlying channel, and (for a child
// process) terminates it.
func (t *Transport) Close() error {
	t.closeWithCause(ErrTransportClosed)
	// Unblock the read loop (it is parked in a blocking I/O read, which
	// does not observe context cancellation) before waiting on it.
	err := t.closer.Close()
	if t.eg != nil {
		_ = t.eg.Wait()
	}
	return err
}

func (t *Transport) closeWithCause(cause error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pending := t.pending
	t.pending = make(map[int]*pendingEntry)
	t.mu.Unlock()

	for _, entry := range pending {
		entry.once.Do(func() {
			entry.timer.Stop()
			entry.resp <- pendingResult{err: ErrTransportClosed}
			close(entry.resp)
		})
	}
	if t.cancel != nil {
		t.cancel(cause)
	}
}

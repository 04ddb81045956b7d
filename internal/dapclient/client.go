// Package dapclient presents typed DAP operations over a transport,
// tracks adapter capabilities, bootstraps the adapter process or socket,
// performs the signed handshake for adapters that demand one, and fans
// out to a child transport for multiplexing ("supervisor") adapters
// (§4.3 of the spec).
package dapclient

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loafbrew/dapheadless/internal/model"
	"github.com/loafbrew/dapheadless/internal/profile"
	"github.com/loafbrew/dapheadless/internal/transport"
)

// initializedEventTimeout bounds the wait for the adapter's `initialized`
// event after `initialize`; some adapters only emit it after
// launch/attach (profile.RequiresLaunchFirst), so the client proceeds
// regardless once this fires (spec §9, Open Question 2).
const initializedEventTimeout = 30 * time.Second

// Listener receives everything the client observes from the adapter. The
// session manager is the production implementation; tests may supply a
// recording stub.
type Listener interface {
	OnStopped(StoppedEventBody)
	OnTerminated()
	OnExited(ExitedEventBody)
	OnOutput(OutputEventBody)
	OnBreakpointEvent(BreakpointEventBody)
	OnInitializedEvent()
	OnThreadEvent(ThreadEventBody)
	OnEvent(name string, body json.RawMessage)
	OnProcessError(error)
}

// Dialer constructs a parent transport for a profile. Exactly one of the
// two bootstrap strategies applies per profile.TransportKind; Connect
// picks the right one.
type Dialer struct {
	// SpawnEnv/SpawnDir configure a child-process transport.
	SpawnEnv []string
	SpawnDir string
	// SocketDial opens a byte stream to a socket adapter's address. It is
	// required when profile.TransportKind == profile.ClientSocket.
	SocketDial func(ctx context.Context) (io.ReadWriteCloser, error)
}

// Client drives one adapter: one parent transport, and (for multiplexing
// adapters) one child transport opened on demand from a reverse
// `startDebugging` request.
type Client struct {
	profile *profile.Profile
	dialer  Dialer
	log     *logrus.Entry

	parent *transport.Transport
	child  *transport.Transport
	mu     sync.RWMutex

	capabilities Capabilities
	initialized  bool

	listener Listener
	signer   Signer

	initializedCh chan struct{}

	// lastBreakpoints/lastFilters are replayed onto a child transport
	// opened by a multi-session fan-out, since the child adapter starts
	// with none of the parent's installed state.
	lastBreakpoints map[string][]model.Breakpoint
	lastFilters     []string
	bpMu            sync.Mutex
}

// New constructs a Client bound to one adapter profile. listener receives
// every relayed event; it is typically the session manager.
func New(p *profile.Profile, dialer Dialer, listener Listener) *Client {
	return &Client{
		profile:         p,
		dialer:          dialer,
		listener:        listener,
		signer:          NewDefaultSigner(),
		log:             logrus.WithField("adapter", p.ID),
		initializedCh:   make(chan struct{}),
		lastBreakpoints: make(map[string][]model.Breakpoint),
	}
}

// Connect bootstraps the adapter: spawns the child process, or starts a
// socket connection (after the profile's connect delay), and wires event
// relay and reverse-request handling on the resulting transport.
func (c *Client) Connect(ctx context.Context) error {
	var (
		t   *transport.Transport
		err error
	)

	switch c.profile.TransportKind {
	case profile.ChildProcessStdio:
		argv, aerr := c.profile.Argv()
		if aerr != nil {
			return errors.Wrap(aerr, "dapclient: split adapter command")
		}
		if len(argv) == 0 {
			return errors.New("dapclient: adapter command is empty")
		}
		t, err = transport.ChildProcess(ctx, argv[0], argv[1:], c.dialer.SpawnDir, c.dialer.SpawnEnv)
	case profile.ClientSocket:
		if c.dialer.SocketDial == nil {
			return errors.New("dapclient: socket dialer not configured")
		}
		delay := time.Duration(c.profile.ConnectDelayMillis) * time.Millisecond
		t, err = transport.Socket(ctx, c.dialer.SocketDial, delay)
	default:
		return errors.Errorf("dapclient: unknown transport kind %v", c.profile.TransportKind)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.parent = t
	c.mu.Unlock()

	c.wireTransport(t, true)
	return nil
}

func (c *Client) wireTransport(t *transport.Transport, isParent bool) {
	t.OnEvent("stopped", forwardEvent(c, func(b StoppedEventBody) { c.listener.OnStopped(b) }))
	t.OnEvent("terminated", func(json.RawMessage) { c.listener.OnTerminated() })
	t.OnEvent("exited", forwardEvent(c, func(b ExitedEventBody) { c.listener.OnExited(b) }))
	t.OnEvent("output", forwardEvent(c, func(b OutputEventBody) { c.listener.OnOutput(b) }))
	t.OnEvent("breakpoint", forwardEvent(c, func(b BreakpointEventBody) { c.listener.OnBreakpointEvent(b) }))
	t.OnEvent("thread", forwardEvent(c, func(b ThreadEventBody) { c.listener.OnThreadEvent(b) }))
	for _, name := range []string{"process", "module", "loadedSource", "capabilities", "progressStart", "progressUpdate", "progressEnd"} {
		name := name
		t.OnEvent(name, func(body json.RawMessage) { c.listener.OnEvent(name, body) })
	}

	if isParent {
		t.OnEvent("initialized", func(json.RawMessage) {
			c.mu.Lock()
			select {
			case <-c.initializedCh:
			default:
				close(c.initializedCh)
			}
			c.mu.Unlock()
			c.listener.OnInitializedEvent()
		})
		t.OnReverseRequest("handshake", c.handleHandshake)
		t.OnReverseRequest("startDebugging", c.handleStartDebugging)
	}
}

// forwardEvent adapts a typed event handler into a transport.EventHandler.
// Standalone (not a method) because Go methods cannot carry their own
// type parameters.
func forwardEvent[T any](c *Client, fn func(T)) transport.EventHandler {
	return func(raw json.RawMessage) {
		v, err := decodeBody[T](raw)
		if err != nil {
			c.log.WithError(err).Warn("dapclient: failed to decode event body")
			return
		}
		fn(v)
	}
}

// activeTransport returns the child transport if one has been opened by
// multi-session fan-out, else the parent. Administrative operations
// always bypass this and address c.parent directly.
func (c *Client) activeTransport() *transport.Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.child != nil {
		return c.child
	}
	return c.parent
}

// WaitInitialized blocks until the adapter's `initialized` event arrives
// or initializedEventTimeout elapses, whichever comes first. A missing
// event is masked rather than surfaced as an error, though it is logged:
// the only error returned is ctx's, when ctx ends before either happens.
func (c *Client) WaitInitialized(ctx context.Context) error {
	select {
	case <-c.initializedCh:
		return nil
	case <-time.After(initializedEventTimeout):
		c.log.Warn("dapclient: adapter did not emit 'initialized' within timeout; proceeding anyway")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Initialize sends the `initialize` request and stores the returned
// capabilities.
func (c *Client) Initialize(ctx context.Context) (Capabilities, error) {
	args := map[string]any{
		"adapterID":                    c.profile.ID,
		"pathFormat":                   "path",
		"linesStartAt1":                true,
		"columnsStartAt1":              true,
		"supportsVariablePaging":       true,
		"supportsVariableType":         true,
		"supportsRunInTerminalRequest": false,
	}
	raw, err := c.parent.SendRequest(ctx, "initialize", args)
	if err != nil {
		return Capabilities{}, errors.Wrap(err, "dapclient: initialize")
	}
	caps, err := decodeBody[Capabilities](raw)
	if err != nil {
		return Capabilities{}, errors.Wrap(err, "dapclient: decode capabilities")
	}

	c.mu.Lock()
	c.capabilities = caps
	c.initialized = true
	c.mu.Unlock()
	return caps, nil
}

// Capabilities returns the capabilities captured at Initialize.
func (c *Client) Capabilities() Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities
}

// Launch sends the `launch` request with the given (already built)
// argument object.
func (c *Client) Launch(ctx context.Context, args any) error {
	_, err := c.parent.SendRequest(ctx, "launch", args)
	return errors.Wrap(err, "dapclient: launch")
}

// Attach sends the `attach` request.
func (c *Client) Attach(ctx context.Context, args any) error {
	_, err := c.parent.SendRequest(ctx, "attach", args)
	return errors.Wrap(err, "dapclient: attach")
}

// ConfigurationDone sends `configurationDone`.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	_, err := c.parent.SendRequest(ctx, "configurationDone", struct{}{})
	return errors.Wrap(err, "dapclient: configurationDone")
}

// SetBreakpoints installs the full breakpoint list for one source path,
// replacing whatever was previously set for that source (administrative
// operation: always issued against the parent transport).
func (c *Client) SetBreakpoints(ctx context.Context, sourcePath string, bps []model.Breakpoint) ([]BreakpointResult, error) {
	type sourceBreakpoint struct {
		Line         int    `json:"line"`
		Condition    string `json:"condition,omitempty"`
		HitCondition string `json:"hitCondition,omitempty"`
		LogMessage   string `json:"logMessage,omitempty"`
	}
	args := struct {
		Source      map[string]string  `json:"source"`
		Breakpoints []sourceBreakpoint `json:"breakpoints"`
	}{
		Source: map[string]string{"path": sourcePath, "name": baseName(sourcePath)},
	}
	for _, bp := range bps {
		args.Breakpoints = append(args.Breakpoints, sourceBreakpoint{
			Line:         bp.Line,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
			LogMessage:   bp.LogMessage,
		})
	}

	raw, err := c.parent.SendRequest(ctx, "setBreakpoints", args)
	if err != nil {
		return nil, errors.Wrapf(err, "dapclient: setBreakpoints %s", sourcePath)
	}

	body, err := decodeBody[struct {
		Breakpoints []BreakpointResult `json:"breakpoints"`
	}](raw)
	if err != nil {
		return nil, errors.Wrap(err, "dapclient: decode setBreakpoints response")
	}

	c.bpMu.Lock()
	c.lastBreakpoints[sourcePath] = append([]model.Breakpoint(nil), bps...)
	c.bpMu.Unlock()

	return body.Breakpoints, nil
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}

// SetExceptionBreakpoints installs the requested exception filters.
func (c *Client) SetExceptionBreakpoints(ctx context.Context, filters []string) error {
	args := struct {
		Filters []string `json:"filters"`
	}{Filters: filters}

	_, err := c.parent.SendRequest(ctx, "setExceptionBreakpoints", args)
	if err != nil {
		return errors.Wrap(err, "dapclient: setExceptionBreakpoints")
	}

	c.bpMu.Lock()
	c.lastFilters = append([]string(nil), filters...)
	c.bpMu.Unlock()
	return nil
}

// Threads lists the adapter's known threads.
func (c *Client) Threads(ctx context.Context) ([]Thread, error) {
	raw, err := c.activeTransport().SendRequest(ctx, "threads", struct{}{})
	if err != nil {
		return nil, errors.Wrap(err, "dapclient: threads")
	}
	body, err := decodeBody[struct {
		Threads []Thread `json:"threads"`
	}](raw)
	return body.Threads, errors.Wrap(err, "dapclient: decode threads response")
}

// StackTrace fetches up to levels frames for threadID, starting at
// startFrame.
func (c *Client) StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]StackFrame, error) {
	args := struct {
		ThreadId   int `json:"threadId"`
		StartFrame int `json:"startFrame,omitempty"`
		Levels     int `json:"levels,omitempty"`
	}{threadID, startFrame, levels}

	raw, err := c.activeTransport().SendRequest(ctx, "stackTrace", args)
	if err != nil {
		return nil, errors.Wrap(err, "dapclient: stackTrace")
	}
	body, err := decodeBody[struct {
		StackFrames []StackFrame `json:"stackFrames"`
	}](raw)
	return body.StackFrames, errors.Wrap(err, "dapclient: decode stackTrace response")
}

// Scopes fetches the scopes visible within one stack frame.
func (c *Client) Scopes(ctx context.Context, frameID int) ([]Scope, error) {
	args := struct {
		FrameId int `json:"frameId"`
	}{frameID}

	raw, err := c.activeTransport().SendRequest(ctx, "scopes", args)
	if err != nil {
		return nil, errors.Wrap(err, "dapclient: scopes")
	}
	body, err := decodeBody[struct {
		Scopes []Scope `json:"scopes"`
	}](raw)
	return body.Scopes, errors.Wrap(err, "dapclient: decode scopes response")
}

// Variables fetches the children of one variables reference, optionally
// capped at count (0 means "adapter default").
func (c *Client) Variables(ctx context.Context, variablesReference, count int) ([]Variable, error) {
	args := struct {
		VariablesReference int `json:"variablesReference"`
		Count              int `json:"count,omitempty"`
	}{variablesReference, count}

	raw, err := c.activeTransport().SendRequest(ctx, "variables", args)
	if err != nil {
		return nil, errors.Wrap(err, "dapclient: variables")
	}
	body, err := decodeBody[struct {
		Variables []Variable `json:"variables"`
	}](raw)
	return body.Variables, errors.Wrap(err, "dapclient: decode variables response")
}

// Evaluate evaluates expression in the context of frameID.
func (c *Client) Evaluate(ctx context.Context, expression string, frameID int, evalContext string) (EvaluateResult, error) {
	args := struct {
		Expression string `json:"expression"`
		FrameId    int    `json:"frameId,omitempty"`
		Context    string `json:"context,omitempty"`
	}{expression, frameID, evalContext}

	raw, err := c.activeTransport().SendRequest(ctx, "evaluate", args)
	if err != nil {
		return EvaluateResult{}, err
	}
	return decodeBody[EvaluateResult](raw)
}

func (c *Client) threadArgRequest(ctx context.Context, command string, threadID int) error {
	args := struct {
		ThreadId int `json:"threadId"`
	}{threadID}
	_, err := c.activeTransport().SendRequest(ctx, command, args)
	return errors.Wrapf(err, "dapclient: %s", command)
}

// Continue resumes threadID.
func (c *Client) Continue(ctx context.Context, threadID int) error { return c.threadArgRequest(ctx, "continue", threadID) }

// Next issues a step-over for threadID.
func (c *Client) Next(ctx context.Context, threadID int) error { return c.threadArgRequest(ctx, "next", threadID) }

// StepIn issues a step-into for threadID.
func (c *Client) StepIn(ctx context.Context, threadID int) error { return c.threadArgRequest(ctx, "stepIn", threadID) }

// StepOut issues a step-out for threadID.
func (c *Client) StepOut(ctx context.Context, threadID int) error { return c.threadArgRequest(ctx, "stepOut", threadID) }

// Pause requests the adapter pause threadID.
func (c *Client) Pause(ctx context.Context, threadID int) error { return c.threadArgRequest(ctx, "pause", threadID) }

// Terminate asks the adapter to terminate the debuggee gracefully.
func (c *Client) Terminate(ctx context.Context) error {
	_, err := c.parent.SendRequest(ctx, "terminate", struct{}{})
	return errors.Wrap(err, "dapclient: terminate")
}

// Disconnect closes the child transport first (if present), then the
// parent, trying a graceful `disconnect` request on each before falling
// back to a hard close. In attach mode terminateDebuggee should be false
// so the running process is left alive.
func (c *Client) Disconnect(ctx context.Context, terminateDebuggee, restart bool) error {
	args := struct {
		TerminateDebuggee bool `json:"terminateDebuggee"`
		Restart           bool `json:"restart"`
	}{terminateDebuggee, restart}

	c.mu.Lock()
	child := c.child
	parent := c.parent
	c.child = nil
	c.mu.Unlock()

	if child != nil {
		if _, err := child.SendRequest(ctx, "disconnect", args); err != nil {
			c.log.WithError(err).Debug("dapclient: graceful disconnect of child transport failed")
		}
		_ = child.Close()
	}

	if parent == nil {
		return nil
	}
	if _, err := parent.SendRequest(ctx, "disconnect", args); err != nil {
		c.log.WithError(err).Debug("dapclient: graceful disconnect of parent transport failed")
	}
	return parent.Close()
}

// IsOpen reports whether the parent transport is still usable.
func (c *Client) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent != nil && c.parent.IsOpen()
}

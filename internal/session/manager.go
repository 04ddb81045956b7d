package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loafbrew/dapheadless/internal/breakpoints"
	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/model"
)

// traceState holds the per-trace bookkeeping that exists only between
// trace_started and trace_completed.
type traceState struct {
	threadID          int
	startLocation      model.StackFrameInfo
	initialStackDepth int
	stepNumber        int
	path              []model.StackFrameInfo
	snapshot          map[string]*model.VariableValue
}

// deferredEval holds the state of an "evalAfterStep" breakpoint hit: the
// breakpoint fired, a `next` was issued instead of evaluating
// immediately, and the evaluations/event are completed on the following
// stop.
type deferredEval struct {
	threadID      int
	breakpointID  int
	origLocation  model.StackFrameInfo
	origStack     []model.StackFrameInfo
	origLocals    map[string]*model.VariableValue
}

// stopMode distinguishes what the manager is doing between stops, since
// a bare "step" event is ambiguous without this context.
type stopMode int

const (
	modeNone stopMode = iota
	modeStepping
	modeTracing
	modeEvalAfterStep
)

// sessionClient is the subset of *dapclient.Client the session manager
// drives. Declared here (rather than depended on concretely) so tests can
// supply a recording fake instead of a real adapter connection.
type sessionClient interface {
	Connect(ctx context.Context) error
	Initialize(ctx context.Context) (dapclient.Capabilities, error)
	WaitInitialized(ctx context.Context) error
	Launch(ctx context.Context, args any) error
	Attach(ctx context.Context, args any) error
	ConfigurationDone(ctx context.Context) error
	SetBreakpoints(ctx context.Context, sourcePath string, bps []model.Breakpoint) ([]dapclient.BreakpointResult, error)
	SetExceptionBreakpoints(ctx context.Context, filters []string) error
	Threads(ctx context.Context) ([]dapclient.Thread, error)
	StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]dapclient.StackFrame, error)
	Scopes(ctx context.Context, frameID int) ([]dapclient.Scope, error)
	Variables(ctx context.Context, variablesReference, count int) ([]dapclient.Variable, error)
	Evaluate(ctx context.Context, expression string, frameID int, evalContext string) (dapclient.EvaluateResult, error)
	Continue(ctx context.Context, threadID int) error
	Next(ctx context.Context, threadID int) error
	StepIn(ctx context.Context, threadID int) error
	StepOut(ctx context.Context, threadID int) error
	Pause(ctx context.Context, threadID int) error
	Terminate(ctx context.Context) error
	Disconnect(ctx context.Context, terminateDebuggee, restart bool) error
	IsOpen() bool
}

// Manager is the session state machine described in §4.7. One Manager
// drives exactly one session; it is not reusable.
type Manager struct {
	cfg  Config
	sink *events.Sink
	log  *logrus.Entry

	client   sessionClient
	registry *breakpoints.Registry
	insp     *inspector.Inspector
	ctx      context.Context

	mu                sync.Mutex
	state             string
	stats             model.SessionStatistics
	storedErr         error
	sessionEndEmitted bool

	mode           stopMode
	stepsRemaining int
	trace          *traceState
	eval           *deferredEval

	workCh chan func()
	done   chan struct{}

	attachMode bool
}

// New builds a Manager for one session configuration; events are written
// to sink as they occur.
func New(cfg Config, sink *events.Sink) *Manager {
	return &Manager{
		cfg:        cfg,
		sink:       sink,
		log:        logrus.WithFields(logrus.Fields{"component": "session", "sessionID": uuid.NewString()}),
		attachMode: cfg.IsAttach(),
		workCh:     make(chan func(), 256),
		done:       make(chan struct{}),
		stats:      model.SessionStatistics{StartTimeUnixMilli: time.Now().UnixMilli()},
	}
}

// Run drives the session to completion and returns the stored session
// error, if any. The session's internal promise never rejects (per spec
// §4.7); this method is the run wrapper that re-raises the stored error
// as an outward failure.
func (m *Manager) Run(ctx context.Context) error {
	m.emitSessionStart()

	sessionCtx, cancel := context.WithTimeout(ctx, m.effectiveTimeout())
	defer cancel()

	go m.processLoop()
	go m.watchTimeout(sessionCtx)

	if m.client == nil {
		dialer := dapclient.Dialer{
			SpawnDir:   m.cfg.Cwd,
			SpawnEnv:   envSlice(m.cfg.Env),
			SocketDial: m.socketDialer(),
		}
		m.client = dapclient.New(m.cfg.Adapter, dialer, m)
	}

	if err := m.client.Connect(sessionCtx); err != nil {
		m.failSession(errors.Wrap(err, "session: connect to adapter"))
		<-m.done
		return m.storedErr
	}

	if err := m.startup(sessionCtx); err != nil {
		m.failSession(err)
	}

	<-m.done
	return m.storedErr
}

func (m *Manager) effectiveTimeout() time.Duration {
	if m.cfg.GlobalTimeout > 0 {
		return m.cfg.GlobalTimeout
	}
	return 10 * time.Minute
}

func (m *Manager) watchTimeout(ctx context.Context) {
	<-ctx.Done()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		m.enqueue(func() {
			m.failSession(errors.New("session: global timeout exceeded"))
		})
	}
}

func (m *Manager) socketDialer() func(ctx context.Context) (io.ReadWriteCloser, error) {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		addr := fmt.Sprintf("localhost:%d", m.cfg.Adapter.Port)
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// enqueue serializes one unit of session work onto the session's single
// logical task (spec §5, "Single-threaded cooperative concurrency within
// one session"). It is a no-op once the session has ended.
func (m *Manager) enqueue(fn func()) {
	select {
	case <-m.done:
		return
	default:
	}
	select {
	case m.workCh <- fn:
	case <-m.done:
	}
}

func (m *Manager) processLoop() {
	for {
		select {
		case fn := <-m.workCh:
			fn()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) setState(s string) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// State returns the current state machine state.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot of the session's counters.
func (m *Manager) Stats() model.SessionStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// failSession records err as the session's stored error (first one wins)
// and ends the session, emitting an error event first.
func (m *Manager) failSession(err error) {
	m.mu.Lock()
	if m.storedErr == nil {
		m.storedErr = err
	}
	m.mu.Unlock()

	m.emitError(err.Error(), nil)
	m.endSession()
}

// endSession transitions to terminated and emits session_end exactly
// once, per the session_end_emitted invariant.
func (m *Manager) endSession() {
	m.mu.Lock()
	if m.sessionEndEmitted {
		m.mu.Unlock()
		return
	}
	m.sessionEndEmitted = true
	m.state = "terminated"
	stats := m.stats
	m.mu.Unlock()

	m.cleanup()

	duration := time.Now().UnixMilli() - stats.StartTimeUnixMilli
	m.sink.Emit(events.TypeSessionEnd, events.SessionEndBody{
		Summary: events.SessionEndSummary{
			DurationMs:       duration,
			ExitCode:         stats.ExitCode,
			BreakpointsHit:   stats.BreakpointsHit,
			ExceptionsCaught: stats.ExceptionsCaught,
			StepsExecuted:    stats.StepsExecuted,
		},
	})

	close(m.done)
}

// cleanup clears the global timer (via context cancellation in Run's
// defer) and disconnects the client, ignoring any error.
func (m *Manager) cleanup() {
	if m.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = m.client.Disconnect(ctx, !m.attachMode, false)
}

func (m *Manager) emitSessionStart() {
	body := events.SessionStartBody{
		Adapter: m.cfg.Adapter.ID,
		Program: m.cfg.Program,
		PID:     m.cfg.PID,
		Args:    m.cfg.Args,
		Cwd:     m.cfg.Cwd,
		Attach:  m.attachMode,
	}
	m.sink.Emit(events.TypeSessionStart, body)
	m.setState("connecting")
}

func (m *Manager) emitError(message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	m.sink.Emit(events.TypeError, events.ErrorBody{Message: message, Details: details})
}

func (m *Manager) emitBreakpointSet(e breakpoints.SetEvent) {
	m.sink.Emit(events.TypeBreakpointSet, events.BreakpointSetBody{
		ID:        e.Breakpoint.ID,
		File:      e.SourcePath,
		Line:      e.Breakpoint.Line,
		Verified:  e.Breakpoint.Verified,
		Condition: e.Breakpoint.Condition,
		Message:   e.Breakpoint.Message,
	})
}


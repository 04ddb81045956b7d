package session

import (
	"context"
	"time"

	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/exception"
	"github.com/loafbrew/dapheadless/internal/model"
)

// exceptionChainMaxDepth bounds how many InnerException levels the
// exception analyzer walks; independent of the variable inspector's own
// expansion depth.
const exceptionChainMaxDepth = 10

// stopSnapshot bundles the location/stack/locals triple captured at every
// stop, the repeated payload of most event bodies.
type stopSnapshot struct {
	frameID int
	stack   []model.StackFrameInfo
	locals  map[string]*model.VariableValue
}

func (s stopSnapshot) location() any {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[0]
}

func firstFrame(stack []model.StackFrameInfo) model.StackFrameInfo {
	if len(stack) == 0 {
		return model.StackFrameInfo{}
	}
	return stack[0]
}

// handleStopped is the dispatch table driving every `stopped` event
// (spec §4.7): breakpoint and exception reasons always route to their own
// handler regardless of mode; a bare "step" reason is only meaningful
// relative to whichever mode put the session mid-step.
func (m *Manager) handleStopped(body dapclient.StoppedEventBody) {
	ctx := m.ctx
	threadID := body.ThreadId

	switch {
	case body.Reason == "breakpoint" || body.Reason == "function breakpoint":
		m.handleBreakpointHit(ctx, threadID, body)
	case body.Reason == "exception":
		m.handleExceptionStop(ctx, threadID)
	case m.mode == modeEvalAfterStep && body.Reason == "step":
		m.handleEvalAfterStepStop(ctx, threadID)
	case m.mode == modeStepping && body.Reason == "step":
		m.handleSteppingStop(ctx, threadID)
	case m.mode == modeTracing && body.Reason == "step":
		m.handleTraceStep(ctx, threadID)
	default:
		m.handleOtherStop(ctx, threadID, body.Reason)
	}
}

func (m *Manager) captureSnapshot(ctx context.Context, threadID int) stopSnapshot {
	frames, err := m.client.StackTrace(ctx, threadID, 0, 0)
	if err != nil {
		m.log.WithError(err).Warn("session: stackTrace failed")
		return stopSnapshot{}
	}

	stack := make([]model.StackFrameInfo, 0, len(frames))
	for _, f := range frames {
		info := model.StackFrameInfo{FrameID: f.ID, Function: f.Name, Line: f.Line, Column: f.Column}
		if f.Source != nil {
			info.File = f.Source.Path
		}
		stack = append(stack, info)
	}

	snap := stopSnapshot{stack: stack}
	if len(stack) > 0 {
		snap.frameID = stack[0].FrameID
	}

	if m.cfg.CaptureLocals {
		locals, err := m.insp.GetLocals(ctx, snap.frameID)
		if err != nil {
			m.log.WithError(err).Warn("session: failed to inspect locals")
		} else {
			snap.locals = locals
		}
	}
	return snap
}

func (m *Manager) evaluateAll(ctx context.Context, frameID int) []model.EvaluationResult {
	if len(m.cfg.Evaluations) == 0 {
		return nil
	}
	return m.insp.Evaluate(ctx, frameID, m.cfg.Evaluations)
}

// handleBreakpointHit processes a breakpoint stop: logpoints resume
// immediately after logging, other breakpoints run evaluations and
// assertions and enter whichever follow-up mode (stepping/tracing) the
// configuration selects.
func (m *Manager) handleBreakpointHit(ctx context.Context, threadID int, body dapclient.StoppedEventBody) {
	m.incrementStat(func(s *model.SessionStatistics) { s.BreakpointsHit++ })

	bp := m.matchBreakpoint(body.HitBreakpointIds)
	if bp != nil && bp.IsLogpoint() {
		m.sink.Emit(events.TypeLogpointHit, events.LogpointHitBody{
			ID:        bp.ID,
			ThreadID:  threadID,
			Location:  nil,
			LogOutput: bp.LogMessage,
		})
		if err := m.client.Continue(ctx, threadID); err != nil {
			m.failSession(err)
		}
		return
	}

	bpID := 0
	if bp != nil {
		bpID = bp.ID
	}

	snap := m.captureSnapshot(ctx, threadID)

	if m.mode == modeTracing {
		m.completeTrace(threadID, "breakpoint", snap)
	}

	if m.cfg.Stepping.Enabled && m.cfg.Stepping.EvalAfterStep {
		m.startEvalAfterStep(ctx, threadID, bpID, snap)
		return
	}

	evals := m.evaluateAll(ctx, snap.frameID)

	if failed := m.checkAssertions(ctx, snap); failed != nil {
		m.emitAssertionFailed(threadID, *failed, snap)
		m.endSession()
		return
	}

	m.sink.Emit(events.TypeBreakpointHit, events.BreakpointHitBody{
		ID:       bpID,
		ThreadID: threadID,
		StopContext: events.StopContext{
			Location:    snap.location(),
			StackTrace:  snap.stack,
			Locals:      snap.locals,
			Evaluations: evals,
		},
	})

	switch {
	case m.cfg.Trace.Enabled:
		m.startTrace(ctx, threadID, snap)
	case m.cfg.Stepping.Enabled && m.cfg.Stepping.Count > 0:
		m.startStepping(ctx, threadID)
	default:
		if err := m.client.Continue(ctx, threadID); err != nil {
			m.failSession(err)
		}
	}
}

func (m *Manager) matchBreakpoint(ids []int) *model.Breakpoint {
	if m.registry == nil || len(ids) == 0 {
		return nil
	}
	for _, bp := range m.registry.All() {
		for _, id := range ids {
			if bp.ID == id {
				b := bp
				return &b
			}
		}
	}
	return nil
}

func (m *Manager) handleExceptionStop(ctx context.Context, threadID int) {
	m.incrementStat(func(s *model.SessionStatistics) { s.ExceptionsCaught++ })

	snap := m.captureSnapshot(ctx, threadID)
	var chain []model.ExceptionChainEntry
	var rootCause *model.ExceptionChainEntry
	if snap.locals != nil {
		chain = exception.Analyze(snap.locals, exceptionChainMaxDepth)
		for i := range chain {
			if chain[i].IsRootCause {
				rc := chain[i]
				rootCause = &rc
			}
		}
	}

	m.sink.Emit(events.TypeExceptionThrown, events.ExceptionThrownBody{
		ThreadID:       threadID,
		Exception:      exceptionVariable(snap.locals),
		Location:       snap.location(),
		Locals:         snap.locals,
		ExceptionChain: chain,
		RootCause:      rootCause,
	})

	if m.mode == modeTracing {
		m.completeTrace(threadID, "exception", snap)
	}

	if err := m.client.Continue(ctx, threadID); err != nil {
		m.failSession(err)
	}
}

func exceptionVariable(locals map[string]*model.VariableValue) any {
	for _, name := range []string{"$exception", "$Exception", "$err", "exception"} {
		if v, ok := locals[name]; ok {
			return v
		}
	}
	return nil
}

func (m *Manager) handleOtherStop(ctx context.Context, threadID int, reason string) {
	m.log.WithField("reason", reason).Debug("session: unhandled stop reason, resuming")
	if err := m.client.Continue(ctx, threadID); err != nil {
		m.failSession(err)
	}
}

func (m *Manager) handleTerminated() {
	m.endSession()
}

func (m *Manager) handleExited(body dapclient.ExitedEventBody) {
	code := body.ExitCode
	m.mu.Lock()
	m.stats.ExitCode = &code
	started := m.stats.StartTimeUnixMilli
	m.mu.Unlock()

	m.sink.Emit(events.TypeProcessExited, events.ProcessExitedBody{
		ExitCode:   code,
		DurationMs: time.Now().UnixMilli() - started,
	})

	m.endSession()
}

func (m *Manager) incrementStat(fn func(*model.SessionStatistics)) {
	m.mu.Lock()
	fn(&m.stats)
	m.mu.Unlock()
}

package session

import (
	"context"

	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/model"
)

// startTrace begins trace mode after a breakpoint hit, recording the
// starting location and stack depth so function_return can be detected.
func (m *Manager) startTrace(ctx context.Context, threadID int, snap stopSnapshot) {
	m.mode = modeTracing
	m.trace = &traceState{
		threadID:          threadID,
		startLocation:     firstFrame(snap.stack),
		initialStackDepth: len(snap.stack),
		snapshot:          snap.locals,
	}

	m.sink.Emit(events.TypeTraceStarted, events.TraceStartedBody{
		ThreadID:          threadID,
		StartLocation:     m.trace.startLocation,
		InitialStackDepth: m.trace.initialStackDepth,
		TraceConfig: events.TraceConfig{
			StepInto:        m.cfg.Trace.StepInto,
			Limit:           m.cfg.Trace.Limit,
			UntilExpression: m.cfg.Trace.UntilExpression,
		},
	})

	m.issueTraceStep(ctx, threadID)
}

func (m *Manager) issueTraceStep(ctx context.Context, threadID int) {
	var err error
	if m.cfg.Trace.StepInto {
		err = m.client.StepIn(ctx, threadID)
	} else {
		err = m.client.Next(ctx, threadID)
	}
	if err != nil {
		m.failSession(err)
	}
}

// handleTraceStep processes one trace step: it checks the three stop
// conditions (limit, function_return, expression_true) in that order and
// either completes the trace or emits trace_step and keeps stepping.
func (m *Manager) handleTraceStep(ctx context.Context, threadID int) {
	ts := m.trace
	if ts == nil {
		m.handleOtherStop(ctx, threadID, "step")
		return
	}

	snap := m.captureSnapshot(ctx, threadID)
	ts.stepNumber++
	m.incrementStat(func(s *model.SessionStatistics) { s.StepsExecuted++ })

	var changes []model.VariableChange
	if m.cfg.Trace.DiffVars && snap.locals != nil {
		changes = inspector.Diff(ts.snapshot, snap.locals)
		ts.snapshot = snap.locals
	}

	ts.path = append(ts.path, firstFrame(snap.stack))
	m.sink.Emit(events.TypeTraceStep, events.TraceStepBody{
		ThreadID:   threadID,
		StepNumber: ts.stepNumber,
		Location:   snap.location(),
		StackDepth: len(snap.stack),
		Changes:    changes,
	})

	if reason, stop := m.traceStopReason(ctx, ts, snap); stop {
		m.completeTrace(threadID, reason, snap)
		if err := m.client.Continue(ctx, threadID); err != nil {
			m.failSession(err)
		}
		return
	}

	m.issueTraceStep(ctx, threadID)
}

func (m *Manager) traceStopReason(ctx context.Context, ts *traceState, snap stopSnapshot) (string, bool) {
	if m.cfg.Trace.Limit > 0 && ts.stepNumber >= m.cfg.Trace.Limit {
		return "limit", true
	}
	if len(snap.stack) < ts.initialStackDepth {
		return "function_return", true
	}
	if m.cfg.Trace.UntilExpression != "" {
		result, err := m.client.Evaluate(ctx, m.cfg.Trace.UntilExpression, snap.frameID, "watch")
		if err == nil && isTruthy(result.Result) {
			return "expression_true", true
		}
	}
	return "", false
}

// completeTrace ends trace mode and emits trace_completed. It does not
// resume the debuggee: a normal stop-condition completion resumes right
// after, while an interrupting breakpoint/exception stop decides the
// resume for itself.
func (m *Manager) completeTrace(threadID int, stopReason string, snap stopSnapshot) {
	ts := m.trace
	m.trace = nil
	m.mode = modeNone
	if ts == nil {
		return
	}

	evals := m.evaluateAll(m.ctx, snap.frameID)
	m.sink.Emit(events.TypeTraceCompleted, events.TraceCompletedBody{
		ThreadID:      threadID,
		StopReason:    stopReason,
		StepsExecuted: ts.stepNumber,
		Path:          ts.path,
		FinalLocation: snap.location(),
		StackTrace:    snap.stack,
		Locals:        snap.locals,
		Evaluations:   evals,
	})
}

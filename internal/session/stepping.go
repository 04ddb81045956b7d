package session

import (
	"context"

	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/model"
)

// startStepping begins the fixed-count step sequence configured by
// SteppingPolicy after a plain (non-eval-after-step) breakpoint hit.
func (m *Manager) startStepping(ctx context.Context, threadID int) {
	m.mode = modeStepping
	m.stepsRemaining = m.cfg.Stepping.Count
	if err := m.client.Next(ctx, threadID); err != nil {
		m.failSession(err)
	}
}

// handleSteppingStop processes one step of a fixed-count stepping run,
// emitting step_completed and continuing until the configured count is
// exhausted.
func (m *Manager) handleSteppingStop(ctx context.Context, threadID int) {
	m.incrementStat(func(s *model.SessionStatistics) { s.StepsExecuted++ })

	snap := m.captureSnapshot(ctx, threadID)
	m.sink.Emit(events.TypeStepCompleted, events.StepCompletedBody{
		ThreadID:   threadID,
		Location:   snap.location(),
		StackTrace: snap.stack,
		Locals:     snap.locals,
	})

	m.stepsRemaining--
	if m.stepsRemaining > 0 {
		if err := m.client.Next(ctx, threadID); err != nil {
			m.failSession(err)
		}
		return
	}

	m.mode = modeNone
	if err := m.client.Continue(ctx, threadID); err != nil {
		m.failSession(err)
	}
}

// startEvalAfterStep defers a breakpoint hit's evaluations by one `next`,
// re-evaluating and completing the breakpoint_hit event at the following
// stop (spec §4.7, stepping policy "eval_after_step").
func (m *Manager) startEvalAfterStep(ctx context.Context, threadID, breakpointID int, snap stopSnapshot) {
	m.mode = modeEvalAfterStep
	m.eval = &deferredEval{
		threadID:     threadID,
		breakpointID: breakpointID,
		origLocation: firstFrame(snap.stack),
		origStack:    snap.stack,
		origLocals:   snap.locals,
	}
	if err := m.client.Next(ctx, threadID); err != nil {
		m.failSession(err)
	}
}

// handleEvalAfterStepStop completes a deferred breakpoint_hit event at
// the post-step location, then resumes normally.
func (m *Manager) handleEvalAfterStepStop(ctx context.Context, threadID int) {
	deferred := m.eval
	m.eval = nil
	m.mode = modeNone
	if deferred == nil {
		m.handleOtherStop(ctx, threadID, "step")
		return
	}

	snap := m.captureSnapshot(ctx, threadID)
	evals := m.evaluateAll(ctx, snap.frameID)

	if failed := m.checkAssertions(ctx, snap); failed != nil {
		m.emitAssertionFailed(threadID, *failed, snap)
		m.endSession()
		return
	}

	m.sink.Emit(events.TypeBreakpointHit, events.BreakpointHitBody{
		ID:       deferred.breakpointID,
		ThreadID: threadID,
		StopContext: events.StopContext{
			Location:    deferred.origLocation,
			StackTrace:  deferred.origStack,
			Locals:      deferred.origLocals,
			Evaluations: evals,
		},
	})

	switch {
	case m.cfg.Trace.Enabled:
		m.startTrace(ctx, threadID, snap)
	default:
		if err := m.client.Continue(ctx, threadID); err != nil {
			m.failSession(err)
		}
	}
}

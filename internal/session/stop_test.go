package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loafbrew/dapheadless/internal/breakpoints"
	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/model"
	"github.com/loafbrew/dapheadless/internal/profile"
)

func installedBreakpoint(t *testing.T, m *Manager, fc *fakeClient, sourcePath string, line, id int) {
	t.Helper()
	fc.setBreakpointsFn = func(string, []model.Breakpoint) ([]dapclient.BreakpointResult, error) {
		return []dapclient.BreakpointResult{{ID: id, Verified: true, Line: line}}, nil
	}
	m.registry = breakpoints.New([]model.Breakpoint{{SourcePath: sourcePath, Line: line}})
	m.registry.InstallAll(context.Background(), fc)
}

func TestHandleBreakpointHitEmitsEventAndResumes(t *testing.T) {
	fc := &fakeClient{stackFrames: []dapclient.StackFrame{{ID: 1, Name: "main", Line: 5}}}
	cfg := Config{Adapter: &profile.Profile{ID: "x"}, Inspector: inspector.DefaultConfig()}
	m, buf := newTestManager(t, cfg, fc)
	installedBreakpoint(t, m, fc, "main.go", 5, 7)

	m.handleStopped(dapclient.StoppedEventBody{Reason: "breakpoint", ThreadId: 1, HitBreakpointIds: []int{7}})

	assert.Equal(t, 1, fc.continueCalls)
	assert.Equal(t, 1, m.Stats().BreakpointsHit)

	lines := linesOf(buf)
	found := false
	for _, l := range lines {
		if strings.Contains(l, events.TypeBreakpointHit) && strings.Contains(l, `"id":7`) {
			found = true
		}
	}
	assert.True(t, found, "expected breakpoint_hit for id 7, got: %v", lines)
}

func TestHandleBreakpointHitLogpointDoesNotEmitBreakpointHit(t *testing.T) {
	fc := &fakeClient{}
	cfg := Config{Adapter: &profile.Profile{ID: "x"}, Inspector: inspector.DefaultConfig()}
	m, buf := newTestManager(t, cfg, fc)

	m.registry = breakpoints.New([]model.Breakpoint{{SourcePath: "a.go", Line: 1, LogMessage: "hit a.go:1"}})
	fc.setBreakpointsFn = func(string, []model.Breakpoint) ([]dapclient.BreakpointResult, error) {
		return []dapclient.BreakpointResult{{ID: 9, Verified: true, Line: 1}}, nil
	}
	m.registry.InstallAll(context.Background(), fc)

	m.handleStopped(dapclient.StoppedEventBody{Reason: "breakpoint", ThreadId: 1, HitBreakpointIds: []int{9}})

	assert.Equal(t, 1, fc.continueCalls)
	lines := linesOf(buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], events.TypeLogpointHit)
}

func TestHandleBreakpointHitFailingAssertionEndsSessionWithoutEmittingHit(t *testing.T) {
	fc := &fakeClient{
		stackFrames: []dapclient.StackFrame{{ID: 1, Name: "main"}},
		evalFn: func(expr string) (dapclient.EvaluateResult, error) {
			return dapclient.EvaluateResult{Result: "false"}, nil
		},
	}
	cfg := Config{
		Adapter:    &profile.Profile{ID: "x"},
		Inspector:  inspector.DefaultConfig(),
		Assertions: []string{"x == 1"},
	}
	m, buf := newTestManager(t, cfg, fc)
	installedBreakpoint(t, m, fc, "a.go", 1, 1)

	m.handleStopped(dapclient.StoppedEventBody{Reason: "breakpoint", ThreadId: 1, HitBreakpointIds: []int{1}})

	assert.Equal(t, 0, fc.continueCalls)
	lines := linesOf(buf)
	var sawFailed, sawHit, sawEnd bool
	for _, l := range lines {
		sawFailed = sawFailed || strings.Contains(l, events.TypeAssertionFailed)
		sawHit = sawHit || strings.Contains(l, events.TypeBreakpointHit)
		sawEnd = sawEnd || strings.Contains(l, events.TypeSessionEnd)
	}
	assert.True(t, sawFailed)
	assert.False(t, sawHit)
	assert.True(t, sawEnd)
}

func TestHandleSteppingSequenceResumesAfterConfiguredCount(t *testing.T) {
	fc := &fakeClient{stackFrames: []dapclient.StackFrame{{ID: 1, Name: "main"}}}
	m, _ := newTestManager(t, Config{Adapter: &profile.Profile{ID: "x"}, Inspector: inspector.DefaultConfig()}, fc)

	m.mode = modeStepping
	m.stepsRemaining = 2

	m.handleSteppingStop(context.Background(), 1)
	assert.Equal(t, 1, fc.nextCalls)
	assert.Equal(t, 0, fc.continueCalls)

	m.handleSteppingStop(context.Background(), 1)
	assert.Equal(t, 1, fc.nextCalls)
	assert.Equal(t, 1, fc.continueCalls)
	assert.Equal(t, modeNone, m.mode)
	assert.Equal(t, 2, m.Stats().StepsExecuted)
}

func TestHandleExitedEmitsProcessExitedBeforeSessionEnd(t *testing.T) {
	fc := &fakeClient{}
	m, buf := newTestManager(t, Config{Adapter: &profile.Profile{ID: "x"}}, fc)

	m.handleExited(dapclient.ExitedEventBody{ExitCode: 0})

	lines := linesOf(buf)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], events.TypeProcessExited)
	assert.Contains(t, lines[0], `"exitCode":0`)
	assert.Contains(t, lines[1], events.TypeSessionEnd)

	require.NotNil(t, m.Stats().ExitCode)
	assert.Equal(t, 0, *m.Stats().ExitCode)
}

func TestHandleEvalAfterStepUsesOriginalLocationWithPostStepEvaluations(t *testing.T) {
	fc := &fakeClient{
		stackFrames: []dapclient.StackFrame{{ID: 2, Name: "afterStep", Line: 99}},
		evalFn: func(expr string) (dapclient.EvaluateResult, error) {
			return dapclient.EvaluateResult{Result: "125.50"}, nil
		},
	}
	cfg := Config{Adapter: &profile.Profile{ID: "x"}, Inspector: inspector.DefaultConfig(), Evaluations: []string{"order.Total"}}
	m, buf := newTestManager(t, cfg, fc)

	origSnap := stopSnapshot{
		frameID: 1,
		stack:   []model.StackFrameInfo{{FrameID: 1, Function: "original", Line: 42}},
	}
	m.startEvalAfterStep(context.Background(), 1, 7, origSnap)
	require.Equal(t, modeEvalAfterStep, m.mode)

	m.handleEvalAfterStepStop(context.Background(), 1)

	assert.Equal(t, modeNone, m.mode)
	lines := linesOf(buf)
	var hitLine string
	for _, l := range lines {
		if strings.Contains(l, events.TypeBreakpointHit) {
			hitLine = l
		}
	}
	require.NotEmpty(t, hitLine)
	assert.Contains(t, hitLine, `"line":42`, "location must come from the original breakpoint stop, not the post-step frame")
	assert.Contains(t, hitLine, `"original"`)
	assert.NotContains(t, hitLine, `"afterStep"`)
	assert.Contains(t, hitLine, `"result":"125.50"`, "evaluations must come from the post-step frame")
}

func TestIsTruthyPolicy(t *testing.T) {
	falsy := []string{"", "null", "None", "nil", "undefined", "false", "False", "0"}
	for _, v := range falsy {
		assert.False(t, isTruthy(v), "expected %q to be falsy", v)
	}
	truthy := []string{"1", "true", "hello", "[]", "{}"}
	for _, v := range truthy {
		assert.True(t, isTruthy(v), "expected %q to be truthy", v)
	}
}

package session

import (
	"context"
	"sync"

	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/model"
)

// fakeClient is a recording stand-in for *dapclient.Client used to drive
// the session manager's logic without a real adapter process.
type fakeClient struct {
	mu    sync.Mutex
	calls []string

	initializeErr   error
	waitInitErr     error
	launchErr       error
	attachErr       error
	configDoneErr   error
	setBreakpointsFn func(sourcePath string, bps []model.Breakpoint) ([]dapclient.BreakpointResult, error)

	stackFrames []dapclient.StackFrame
	scopes      []dapclient.Scope
	variables   map[int][]dapclient.Variable
	evalFn      func(expression string) (dapclient.EvaluateResult, error)

	continueCalls int
	nextCalls     int
	stepInCalls   int
	disconnectCalls int
}

func (f *fakeClient) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeClient) Connect(ctx context.Context) error { f.record("Connect"); return nil }

func (f *fakeClient) Initialize(ctx context.Context) (dapclient.Capabilities, error) {
	f.record("Initialize")
	return dapclient.Capabilities{}, f.initializeErr
}

func (f *fakeClient) WaitInitialized(ctx context.Context) error {
	f.record("WaitInitialized")
	return f.waitInitErr
}

func (f *fakeClient) Launch(ctx context.Context, args any) error {
	f.record("Launch")
	return f.launchErr
}

func (f *fakeClient) Attach(ctx context.Context, args any) error {
	f.record("Attach")
	return f.attachErr
}

func (f *fakeClient) ConfigurationDone(ctx context.Context) error {
	f.record("ConfigurationDone")
	return f.configDoneErr
}

func (f *fakeClient) SetBreakpoints(ctx context.Context, sourcePath string, bps []model.Breakpoint) ([]dapclient.BreakpointResult, error) {
	f.record("SetBreakpoints")
	if f.setBreakpointsFn != nil {
		return f.setBreakpointsFn(sourcePath, bps)
	}
	results := make([]dapclient.BreakpointResult, len(bps))
	for i, bp := range bps {
		results[i] = dapclient.BreakpointResult{ID: i + 1, Verified: true, Line: bp.Line}
	}
	return results, nil
}

func (f *fakeClient) SetExceptionBreakpoints(ctx context.Context, filters []string) error {
	f.record("SetExceptionBreakpoints")
	return nil
}

func (f *fakeClient) Threads(ctx context.Context) ([]dapclient.Thread, error) {
	return []dapclient.Thread{{ID: 1, Name: "main"}}, nil
}

func (f *fakeClient) StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]dapclient.StackFrame, error) {
	return f.stackFrames, nil
}

func (f *fakeClient) Scopes(ctx context.Context, frameID int) ([]dapclient.Scope, error) {
	return f.scopes, nil
}

func (f *fakeClient) Variables(ctx context.Context, variablesReference, count int) ([]dapclient.Variable, error) {
	return f.variables[variablesReference], nil
}

func (f *fakeClient) Evaluate(ctx context.Context, expression string, frameID int, evalContext string) (dapclient.EvaluateResult, error) {
	if f.evalFn != nil {
		return f.evalFn(expression)
	}
	return dapclient.EvaluateResult{Result: "true"}, nil
}

func (f *fakeClient) Continue(ctx context.Context, threadID int) error {
	f.mu.Lock()
	f.continueCalls++
	f.mu.Unlock()
	f.record("Continue")
	return nil
}

func (f *fakeClient) Next(ctx context.Context, threadID int) error {
	f.mu.Lock()
	f.nextCalls++
	f.mu.Unlock()
	f.record("Next")
	return nil
}

func (f *fakeClient) StepIn(ctx context.Context, threadID int) error {
	f.mu.Lock()
	f.stepInCalls++
	f.mu.Unlock()
	f.record("StepIn")
	return nil
}

func (f *fakeClient) StepOut(ctx context.Context, threadID int) error { f.record("StepOut"); return nil }

func (f *fakeClient) Pause(ctx context.Context, threadID int) error { f.record("Pause"); return nil }

func (f *fakeClient) Terminate(ctx context.Context) error { f.record("Terminate"); return nil }

func (f *fakeClient) Disconnect(ctx context.Context, terminateDebuggee, restart bool) error {
	f.mu.Lock()
	f.disconnectCalls++
	f.mu.Unlock()
	f.record("Disconnect")
	return nil
}

func (f *fakeClient) IsOpen() bool { return true }

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

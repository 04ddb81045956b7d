// Package events defines the driver's external event catalog and a
// newline-delimited JSON sink that serializes them in emission order
// (§6 of the driver's external interfaces).
package events

// Event type name constants; these are the wire contract, not Go
// identifiers a consumer ever sees.
const (
	TypeSessionStart           = "session_start"
	TypeProcessLaunched        = "process_launched"
	TypeProcessAttached        = "process_attached"
	TypeProcessExited          = "process_exited"
	TypeBreakpointSet          = "breakpoint_set"
	TypeBreakpointHit          = "breakpoint_hit"
	TypeLogpointHit            = "logpoint_hit"
	TypeExceptionThrown        = "exception_thrown"
	TypeExceptionBreakpointSet = "exception_breakpoint_set"
	TypeStepCompleted          = "step_completed"
	TypeTraceStarted           = "trace_started"
	TypeTraceStep              = "trace_step"
	TypeTraceCompleted         = "trace_completed"
	TypeAssertionFailed        = "assertion_failed"
	TypeProgramOutput          = "program_output"
	TypeError                  = "error"
	TypeSessionEnd              = "session_end"
)

// SessionStartBody is the session_start event body.
type SessionStartBody struct {
	Adapter string   `json:"adapter"`
	Program string   `json:"program,omitempty"`
	PID     int      `json:"pid,omitempty"`
	Args    []string `json:"args,omitempty"`
	Cwd     string   `json:"cwd,omitempty"`
	Attach  bool     `json:"attach,omitempty"`
}

// ProcessLaunchedBody is the process_launched event body.
type ProcessLaunchedBody struct {
	PID int `json:"pid,omitempty"`
}

// ProcessAttachedBody is the process_attached event body.
type ProcessAttachedBody struct {
	PID int `json:"pid"`
}

// ProcessExitedBody is the process_exited event body.
type ProcessExitedBody struct {
	ExitCode   int   `json:"exitCode"`
	DurationMs int64 `json:"durationMs"`
}

// BreakpointSetBody is the breakpoint_set event body.
type BreakpointSetBody struct {
	ID        int    `json:"id,omitempty"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Verified  bool   `json:"verified"`
	Condition string `json:"condition,omitempty"`
	Message   string `json:"message,omitempty"`
}

// StopContext is the location/stack/locals bundle repeated across most
// stop-related event bodies.
type StopContext struct {
	Location    any   `json:"location"`
	StackTrace  any   `json:"stackTrace"`
	Locals      any   `json:"locals"`
	Evaluations any   `json:"evaluations,omitempty"`
}

// BreakpointHitBody is the breakpoint_hit event body.
type BreakpointHitBody struct {
	ID       int `json:"id,omitempty"`
	ThreadID int `json:"threadId"`
	StopContext
}

// LogpointHitBody is the logpoint_hit event body.
type LogpointHitBody struct {
	ID        int    `json:"id,omitempty"`
	ThreadID  int    `json:"threadId"`
	Location  any    `json:"location"`
	LogOutput string `json:"logOutput"`
}

// ExceptionThrownBody is the exception_thrown event body.
type ExceptionThrownBody struct {
	ThreadID       int   `json:"threadId"`
	Exception      any   `json:"exception"`
	Location       any   `json:"location"`
	Locals         any   `json:"locals"`
	ExceptionChain any   `json:"exceptionChain,omitempty"`
	RootCause      any   `json:"rootCause,omitempty"`
}

// ExceptionBreakpointSetBody is the exception_breakpoint_set event body.
type ExceptionBreakpointSetBody struct {
	Filters []string `json:"filters"`
}

// StepCompletedBody is the step_completed event body.
type StepCompletedBody struct {
	ThreadID   int `json:"threadId"`
	Location   any `json:"location"`
	StackTrace any `json:"stackTrace"`
	Locals     any `json:"locals"`
}

// TraceConfig describes one trace run's configuration.
type TraceConfig struct {
	StepInto        bool   `json:"stepInto"`
	Limit           int    `json:"limit,omitempty"`
	UntilExpression string `json:"untilExpression,omitempty"`
}

// TraceStartedBody is the trace_started event body.
type TraceStartedBody struct {
	ThreadID          int         `json:"threadId"`
	StartLocation     any         `json:"startLocation"`
	InitialStackDepth int         `json:"initialStackDepth"`
	TraceConfig       TraceConfig `json:"traceConfig"`
}

// TraceStepBody is the trace_step event body.
type TraceStepBody struct {
	ThreadID   int `json:"threadId"`
	StepNumber int `json:"stepNumber"`
	Location   any `json:"location"`
	StackDepth int `json:"stackDepth,omitempty"`
	Changes    any `json:"changes,omitempty"`
}

// TraceCompletedBody is the trace_completed event body.
type TraceCompletedBody struct {
	ThreadID      int   `json:"threadId"`
	StopReason    string `json:"stopReason"`
	StepsExecuted int   `json:"stepsExecuted"`
	Path          any   `json:"path"`
	FinalLocation any   `json:"finalLocation"`
	StackTrace    any   `json:"stackTrace"`
	Locals        any   `json:"locals"`
	Evaluations   any   `json:"evaluations,omitempty"`
}

// AssertionFailedBody is the assertion_failed event body.
type AssertionFailedBody struct {
	ThreadID        int    `json:"threadId"`
	Assertion       string `json:"assertion"`
	ActualValue     any    `json:"actualValue,omitempty"`
	EvaluationError string `json:"evaluationError,omitempty"`
	Location        any    `json:"location"`
	StackTrace      any    `json:"stackTrace"`
	Locals          any    `json:"locals"`
}

// ProgramOutputBody is the program_output event body.
type ProgramOutputBody struct {
	Category string `json:"category"`
	Output   string `json:"output"`
}

// ErrorBody is the error event body.
type ErrorBody struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SessionEndSummary is the session_end event's nested summary.
type SessionEndSummary struct {
	DurationMs       int64 `json:"durationMs"`
	ExitCode         *int  `json:"exitCode"`
	BreakpointsHit   int   `json:"breakpointsHit"`
	ExceptionsCaught int   `json:"exceptionsCaught"`
	StepsExecuted    int   `json:"stepsExecuted"`
}

// SessionEndBody is the session_end event body.
type SessionEndBody struct {
	Summary SessionEndSummary `json:"summary"`
}

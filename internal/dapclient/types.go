package dapclient

import "encoding/json"

// Capabilities is the subset of the adapter's initialize-response
// capabilities that the rest of the driver consults.
type Capabilities struct {
	SupportsConfigurationDoneRequest bool     `json:"supportsConfigurationDoneRequest"`
	SupportsConditionalBreakpoints   bool     `json:"supportsConditionalBreakpoints"`
	SupportsHitConditionalBreakpoints bool    `json:"supportsHitConditionalBreakpoints"`
	SupportsLogPoints                bool     `json:"supportsLogPoints"`
	SupportsEvaluateForHovers        bool     `json:"supportsEvaluateForHovers"`
	SupportsExceptionOptions         bool     `json:"supportsExceptionOptions"`
	SupportTerminateDebuggee         bool     `json:"supportTerminateDebuggee"`
	ExceptionBreakpointFilters       []Filter `json:"exceptionBreakpointFilters"`
	SupportsTerminateRequest         bool     `json:"supportsTerminateRequest"`
}

// Filter is one adapter-advertised exception-breakpoint filter.
type Filter struct {
	Filter      string `json:"filter"`
	Label       string `json:"label"`
	Default     bool   `json:"default"`
	Description string `json:"description,omitempty"`
}

// BreakpointResult is the adapter's verdict on one installed breakpoint.
type BreakpointResult struct {
	ID       int    `json:"id"`
	Verified bool   `json:"verified"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Thread is one adapter-reported thread.
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StackFrame is the adapter's raw stack frame shape (before projection to
// model.StackFrameInfo, which also needs the owning thread ID).
type StackFrame struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Source *struct {
		Name string `json:"name"`
		Path string `json:"path"`
	} `json:"source"`
	ModuleID any `json:"moduleId,omitempty"`
}

// Scope is one scope within a stack frame.
type Scope struct {
	Name               string `json:"name"`
	PresentationHint   string `json:"presentationHint,omitempty"`
	VariablesReference int    `json:"variablesReference"`
	IndexedVariables   int    `json:"indexedVariables,omitempty"`
	NamedVariables     int    `json:"namedVariables,omitempty"`
	Expensive          bool   `json:"expensive"`
}

// Variable is one adapter-reported variable.
type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
	IndexedVariables   int    `json:"indexedVariables,omitempty"`
	NamedVariables     int    `json:"namedVariables,omitempty"`
}

// EvaluateResult is the adapter's response to one `evaluate` request.
type EvaluateResult struct {
	Result             string `json:"result"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
}

// StoppedEventBody mirrors the DAP `stopped` event body.
type StoppedEventBody struct {
	Reason            string `json:"reason"`
	Description       string `json:"description,omitempty"`
	ThreadId          int    `json:"threadId"`
	AllThreadsStopped bool   `json:"allThreadsStopped"`
	Text              string `json:"text,omitempty"`
	HitBreakpointIds  []int  `json:"hitBreakpointIds,omitempty"`
}

// BreakpointEventBody mirrors the DAP `breakpoint` event body.
type BreakpointEventBody struct {
	Reason     string           `json:"reason"`
	Breakpoint BreakpointResult `json:"breakpoint"`
}

// OutputEventBody mirrors the DAP `output` event body.
type OutputEventBody struct {
	Category string `json:"category"`
	Output   string `json:"output"`
}

// ThreadEventBody mirrors the DAP `thread` event body.
type ThreadEventBody struct {
	Reason   string `json:"reason"`
	ThreadId int    `json:"threadId"`
}

// ExitedEventBody mirrors the DAP `exited` event body.
type ExitedEventBody struct {
	ExitCode int `json:"exitCode"`
}

func decodeBody[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

// Package session implements the state machine that drives one debug
// session end to end: connect, initialize, launch/attach in the
// adapter's required order, configure breakpoints, react to stops, drive
// stepping/tracing, run assertions, enforce a global timeout, emit the
// event stream, and dispose cleanly (§4.7 of the driver's component
// design — the largest single component).
package session

import (
	"time"

	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/model"
	"github.com/loafbrew/dapheadless/internal/profile"
)

// SteppingPolicy configures fixed-count stepping after a breakpoint hit.
type SteppingPolicy struct {
	Enabled bool
	Count   int
	// EvalAfterStep defers the breakpoint_hit evaluations by one `next`,
	// re-evaluating at the following stop instead of immediately.
	EvalAfterStep bool
}

// TracePolicy configures trace mode entered after a breakpoint hit.
type TracePolicy struct {
	Enabled         bool
	StepInto        bool
	Limit           int
	UntilExpression string
	DiffVars        bool
}

// Config is immutable once the session starts (spec §3, "Lifecycle").
type Config struct {
	Adapter *profile.Profile

	// Exactly one of Program or PID is set; PID selects attach mode.
	Program string
	PID     int
	Args    []string
	Cwd     string
	Env     map[string]string

	Breakpoints      []model.Breakpoint
	ExceptionFilters []string
	Evaluations      []string
	Assertions       []string

	GlobalTimeout time.Duration
	CaptureLocals bool

	Stepping SteppingPolicy
	Trace    TracePolicy

	Inspector inspector.Config
}

// IsAttach reports whether this configuration attaches to an existing
// process rather than launching a new one.
func (c *Config) IsAttach() bool {
	return c.PID != 0
}

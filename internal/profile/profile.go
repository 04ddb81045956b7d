// Package profile declares the adapter profile: a declarative description
// of one debug backend (§3 of the spec). The profile table is what the
// session manager and client consult to pick an ordering policy and a
// transport kind without ever subclassing per adapter (§9 "Adapter-specific
// ordering").
package profile

import "github.com/google/shlex"

// TransportKind selects how the client reaches the adapter process.
type TransportKind int

const (
	// ChildProcessStdio spawns the adapter and frames messages over its
	// stdin/stdout pipes.
	ChildProcessStdio TransportKind = iota
	// ClientSocket starts the adapter as a TCP server and connects to it.
	ClientSocket
)

// LaunchBuilder turns launch inputs (program path, args, cwd, env) into the
// adapter-specific launch-argument object, later marshaled into the
// `launch` request's Arguments field.
type LaunchBuilder func(in LaunchInputs) any

// AttachBuilder is the attach-mode equivalent of LaunchBuilder.
type AttachBuilder func(in AttachInputs) any

// LaunchInputs carries the subset of session configuration relevant to
// building a launch-argument object.
type LaunchInputs struct {
	Program string
	Args    []string
	Cwd     string
	Env     map[string]string
}

// AttachInputs carries the subset of session configuration relevant to
// building an attach-argument object.
type AttachInputs struct {
	PID int
	Cwd string
	Env map[string]string
}

// Profile is the declarative description of one debug backend.
type Profile struct {
	// ID is the stable identifier sent as `adapterID` in the initialize
	// request.
	ID   string
	Name string

	TransportKind TransportKind
	// Port is only meaningful when TransportKind == ClientSocket.
	Port int
	// ConnectDelayMillis is an optional pre-connect delay for socket
	// adapters that need a moment to bind their listener.
	ConnectDelayMillis int

	// Command is the adapter's launch command, authored as a single
	// string the way an operator would write it in a profile file (e.g.
	// "netcoredbg --interpreter=vscode"). It is split into argv with
	// shlex rather than a hand-rolled tokenizer.
	Command string

	BuildLaunch LaunchBuilder
	BuildAttach AttachBuilder

	// SupportedExceptionFilters lists the exception-filter tags this
	// adapter accepts in setExceptionBreakpoints.
	SupportedExceptionFilters []string

	// RequiresLaunchFirst is set for adapters (typically dynamic-language
	// backends) that emit their `initialized` notification only after
	// launch/attach rather than immediately after initialize.
	RequiresLaunchFirst bool

	// SignedHandshake is set for adapters that issue a reverse
	// `handshake` request whose challenge must be signed before they
	// proceed.
	SignedHandshake bool
}

// Argv splits Command into argv using shell-word rules, the same way the
// teacher splits REPL expressions in its evaluate handler.
func (p *Profile) Argv() ([]string, error) {
	return shlex.Split(p.Command)
}

// OrderingPolicy classifies the three explicit startup orderings the
// session manager picks among (§4.7).
type OrderingPolicy int

const (
	// OrderLaunchThenConfigure: launch, then configurationDone (native
	// debugger family).
	OrderLaunchThenConfigure OrderingPolicy = iota
	// OrderConfigureThenLaunch: configurationDone before launch (socket
	// transport / supervisor family).
	OrderConfigureThenLaunch
	// OrderLaunchFirst: launch, wait for initialized, install
	// breakpoints/filters, configurationDone, then await launch
	// completion (dynamic-language family, RequiresLaunchFirst).
	OrderLaunchFirst
)

// Ordering derives the startup ordering policy from the profile's flags.
func (p *Profile) Ordering() OrderingPolicy {
	switch {
	case p.RequiresLaunchFirst:
		return OrderLaunchFirst
	case p.TransportKind == ClientSocket:
		return OrderConfigureThenLaunch
	default:
		return OrderLaunchThenConfigure
	}
}

// Command dapheadless drives one headless DAP debug session from a
// pre-parsed JSON configuration file and streams the resulting events as
// newline-delimited JSON on stdout (§6, §8 scenario set). Flag parsing,
// breakpoint-spec string parsing, and adapter-binary discovery are all
// out of scope (§1): this binary's only input is a single config path,
// already resolved by its caller.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/model"
	"github.com/loafbrew/dapheadless/internal/profile"
	"github.com/loafbrew/dapheadless/internal/session"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dapheadless <config.json>")
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "dapheadless:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "dapheadless: read config")
	}

	var fileCfg fileConfig
	if err := json.Unmarshal(raw, &fileCfg); err != nil {
		return errors.Wrap(err, "dapheadless: parse config")
	}

	cfg, err := fileCfg.toSessionConfig()
	if err != nil {
		return errors.Wrap(err, "dapheadless: invalid config")
	}

	logrus.SetOutput(os.Stderr)
	if fileCfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	sink := events.NewSink(os.Stdout, fileCfg.IncludeEvents, fileCfg.ExcludeEvents)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := session.New(cfg, sink)
	return mgr.Run(ctx)
}

// fileConfig is the on-disk shape of the config path argument. It is a
// direct, declarative projection of the adapter profile and session
// configuration (§3); nothing here resolves paths or parses breakpoint
// spec strings, matching the collaborator boundary in §6.
type fileConfig struct {
	Adapter adapterConfig `json:"adapter"`

	Program string            `json:"program,omitempty"`
	PID     int               `json:"pid,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	Breakpoints      []model.Breakpoint `json:"breakpoints,omitempty"`
	ExceptionFilters []string           `json:"exceptionFilters,omitempty"`
	Evaluations      []string           `json:"evaluations,omitempty"`
	Assertions       []string           `json:"assertions,omitempty"`

	TimeoutSeconds int  `json:"timeoutSeconds,omitempty"`
	CaptureLocals  bool `json:"captureLocals"`

	Stepping *steppingConfig `json:"stepping,omitempty"`
	Trace    *traceConfig    `json:"trace,omitempty"`

	Inspector *inspectorConfig `json:"inspector,omitempty"`

	IncludeEvents []string `json:"includeEvents,omitempty"`
	ExcludeEvents []string `json:"excludeEvents,omitempty"`
	Verbose       bool     `json:"verbose,omitempty"`
}

type adapterConfig struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	TransportKind      string `json:"transportKind"` // "stdio" or "socket"
	Port               int    `json:"port,omitempty"`
	ConnectDelayMillis int    `json:"connectDelayMillis,omitempty"`

	Command string `json:"command"`

	SupportedExceptionFilters []string `json:"supportedExceptionFilters,omitempty"`
	RequiresLaunchFirst       bool     `json:"requiresLaunchFirst,omitempty"`
	SignedHandshake           bool     `json:"signedHandshake,omitempty"`

	// LaunchExtra/AttachExtra are merged on top of the {program,args,
	// cwd,env} / {processId,cwd,env} defaults when building the
	// launch/attach argument object, for adapter-specific fields like
	// "stopOnEntry" or "justMyCode" that the generic defaults don't know
	// about.
	LaunchExtra map[string]any `json:"launchExtra,omitempty"`
	AttachExtra map[string]any `json:"attachExtra,omitempty"`
}

type steppingConfig struct {
	Enabled       bool `json:"enabled"`
	Count         int  `json:"count,omitempty"`
	EvalAfterStep bool `json:"evalAfterStep,omitempty"`
}

type traceConfig struct {
	Enabled         bool   `json:"enabled"`
	StepInto        bool   `json:"stepInto,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	UntilExpression string `json:"untilExpression,omitempty"`
	DiffVars        bool   `json:"diffVars,omitempty"`
}

type inspectorConfig struct {
	MaxDepth             *int  `json:"maxDepth,omitempty"`
	MaxCollectionItems   *int  `json:"maxCollectionItems,omitempty"`
	DeduplicateByContent *bool `json:"deduplicateByContent,omitempty"`
	CompactServices      *bool `json:"compactServices,omitempty"`
	OmitNullProperties   *bool `json:"omitNullProperties,omitempty"`
}

func (f fileConfig) toSessionConfig() (session.Config, error) {
	if (f.Program == "") == (f.PID == 0) {
		return session.Config{}, errors.New("exactly one of program or pid must be set")
	}
	if f.Adapter.Command == "" {
		return session.Config{}, errors.New("adapter.command is required")
	}

	kind := profile.ChildProcessStdio
	if f.Adapter.TransportKind == "socket" {
		kind = profile.ClientSocket
	}

	prof := &profile.Profile{
		ID:                        f.Adapter.ID,
		Name:                      f.Adapter.Name,
		TransportKind:             kind,
		Port:                      f.Adapter.Port,
		ConnectDelayMillis:        f.Adapter.ConnectDelayMillis,
		Command:                   f.Adapter.Command,
		SupportedExceptionFilters: f.Adapter.SupportedExceptionFilters,
		RequiresLaunchFirst:       f.Adapter.RequiresLaunchFirst,
		SignedHandshake:           f.Adapter.SignedHandshake,
	}
	if len(f.Adapter.LaunchExtra) > 0 {
		extra := f.Adapter.LaunchExtra
		prof.BuildLaunch = func(in profile.LaunchInputs) any {
			return mergeArgs(map[string]any{
				"program": in.Program, "args": in.Args, "cwd": in.Cwd, "env": in.Env,
			}, extra)
		}
	}
	if len(f.Adapter.AttachExtra) > 0 {
		extra := f.Adapter.AttachExtra
		prof.BuildAttach = func(in profile.AttachInputs) any {
			return mergeArgs(map[string]any{
				"processId": in.PID, "cwd": in.Cwd, "env": in.Env,
			}, extra)
		}
	}

	cfg := session.Config{
		Adapter:          prof,
		Program:          f.Program,
		PID:              f.PID,
		Args:             f.Args,
		Cwd:              f.Cwd,
		Env:              f.Env,
		Breakpoints:      f.Breakpoints,
		ExceptionFilters: f.ExceptionFilters,
		Evaluations:      f.Evaluations,
		Assertions:       f.Assertions,
		CaptureLocals:    f.CaptureLocals,
		Inspector:        resolveInspectorConfig(f.Inspector),
	}
	if f.TimeoutSeconds > 0 {
		cfg.GlobalTimeout = time.Duration(f.TimeoutSeconds) * time.Second
	}
	if f.Stepping != nil {
		cfg.Stepping = session.SteppingPolicy{
			Enabled: f.Stepping.Enabled, Count: f.Stepping.Count, EvalAfterStep: f.Stepping.EvalAfterStep,
		}
	}
	if f.Trace != nil {
		cfg.Trace = session.TracePolicy{
			Enabled: f.Trace.Enabled, StepInto: f.Trace.StepInto, Limit: f.Trace.Limit,
			UntilExpression: f.Trace.UntilExpression, DiffVars: f.Trace.DiffVars,
		}
	}

	return cfg, nil
}

func mergeArgs(base map[string]any, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func resolveInspectorConfig(ic *inspectorConfig) inspector.Config {
	cfg := inspector.DefaultConfig()
	if ic == nil {
		return cfg
	}
	if ic.MaxDepth != nil {
		cfg.MaxDepth = *ic.MaxDepth
	}
	if ic.MaxCollectionItems != nil {
		cfg.MaxCollectionItems = *ic.MaxCollectionItems
	}
	if ic.DeduplicateByContent != nil {
		cfg.DeduplicateByContent = *ic.DeduplicateByContent
	}
	if ic.CompactServices != nil {
		cfg.CompactServices = *ic.CompactServices
	}
	if ic.OmitNullProperties != nil {
		cfg.OmitNullProperties = *ic.OmitNullProperties
	}
	return cfg
}

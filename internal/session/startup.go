package session

import (
	"context"

	"github.com/loafbrew/dapheadless/internal/breakpoints"
	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/profile"
)

// startup performs steps 3-7 of the lifecycle: initialize, instantiate the
// breakpoint registry and inspector, then launch/attach observing the
// adapter's ordering policy, finally transitioning to running.
func (m *Manager) startup(ctx context.Context) error {
	m.setState("initializing")
	if _, err := m.client.Initialize(ctx); err != nil {
		return err
	}

	m.registry = breakpoints.New(m.cfg.Breakpoints)
	m.insp = inspector.New(m.cfg.Inspector, m.client)

	m.setState("configuring")

	launch := func(ctx context.Context) error {
		if m.cfg.IsAttach() {
			return m.client.Attach(ctx, m.buildAttachArgs())
		}
		return m.client.Launch(ctx, m.buildLaunchArgs())
	}

	install := func(ctx context.Context) {
		setEvents := m.registry.InstallAll(ctx, m.client)
		for _, e := range setEvents {
			m.emitBreakpointSet(e)
		}
		if len(m.cfg.ExceptionFilters) > 0 {
			if err := m.client.SetExceptionBreakpoints(ctx, m.cfg.ExceptionFilters); err != nil {
				m.emitError("failed to set exception breakpoints", err)
			} else {
				m.sink.Emit(events.TypeExceptionBreakpointSet, events.ExceptionBreakpointSetBody{Filters: m.cfg.ExceptionFilters})
			}
		}
	}

	switch m.cfg.Adapter.Ordering() {
	case profile.OrderLaunchFirst:
		launchErrCh := make(chan error, 1)
		go func() { launchErrCh <- launch(ctx) }()
		_ = m.client.WaitInitialized(ctx)
		install(ctx)
		if err := m.client.ConfigurationDone(ctx); err != nil {
			return err
		}
		if err := <-launchErrCh; err != nil {
			return err
		}
	case profile.OrderConfigureThenLaunch:
		install(ctx)
		if err := m.client.ConfigurationDone(ctx); err != nil {
			return err
		}
		if err := launch(ctx); err != nil {
			return err
		}
	default: // profile.OrderLaunchThenConfigure
		install(ctx)
		if err := launch(ctx); err != nil {
			return err
		}
		if err := m.client.ConfigurationDone(ctx); err != nil {
			return err
		}
	}

	m.ctx = ctx
	m.setState("running")
	if m.cfg.IsAttach() {
		m.sink.Emit(events.TypeProcessAttached, events.ProcessAttachedBody{PID: m.cfg.PID})
	} else {
		m.sink.Emit(events.TypeProcessLaunched, events.ProcessLaunchedBody{})
	}
	return nil
}

func (m *Manager) buildLaunchArgs() any {
	in := profile.LaunchInputs{Program: m.cfg.Program, Args: m.cfg.Args, Cwd: m.cfg.Cwd, Env: m.cfg.Env}
	if m.cfg.Adapter.BuildLaunch != nil {
		return m.cfg.Adapter.BuildLaunch(in)
	}
	return map[string]any{"program": in.Program, "args": in.Args, "cwd": in.Cwd, "env": in.Env}
}

func (m *Manager) buildAttachArgs() any {
	in := profile.AttachInputs{PID: m.cfg.PID, Cwd: m.cfg.Cwd, Env: m.cfg.Env}
	if m.cfg.Adapter.BuildAttach != nil {
		return m.cfg.Adapter.BuildAttach(in)
	}
	return map[string]any{"processId": in.PID, "cwd": in.Cwd, "env": in.Env}
}

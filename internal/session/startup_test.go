package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loafbrew/dapheadless/internal/breakpoints"
	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/inspector"
	"github.com/loafbrew/dapheadless/internal/model"
	"github.com/loafbrew/dapheadless/internal/profile"
)

func indexOf(calls []string, name string) int {
	for i, c := range calls {
		if c == name {
			return i
		}
	}
	return -1
}

func TestStartupOrderLaunchThenConfigureForNativeAdapter(t *testing.T) {
	fc := &fakeClient{}
	m, _ := newTestManager(t, Config{Adapter: &profile.Profile{ID: "native", TransportKind: profile.ChildProcessStdio}}, fc)

	require.NoError(t, m.startup(context.Background()))

	calls := fc.callLog()
	assert.Less(t, indexOf(calls, "Launch"), indexOf(calls, "ConfigurationDone"))
}

func TestStartupOrderConfigureThenLaunchForSocketAdapter(t *testing.T) {
	fc := &fakeClient{}
	m, _ := newTestManager(t, Config{Adapter: &profile.Profile{ID: "socket", TransportKind: profile.ClientSocket}}, fc)

	require.NoError(t, m.startup(context.Background()))

	calls := fc.callLog()
	assert.Less(t, indexOf(calls, "ConfigurationDone"), indexOf(calls, "Launch"))
}

func TestStartupOrderLaunchFirstWaitsForInitializedBeforeConfiguring(t *testing.T) {
	fc := &fakeClient{}
	m, _ := newTestManager(t, Config{Adapter: &profile.Profile{ID: "dynamic", RequiresLaunchFirst: true}}, fc)

	require.NoError(t, m.startup(context.Background()))

	calls := fc.callLog()
	assert.Less(t, indexOf(calls, "WaitInitialized"), indexOf(calls, "ConfigurationDone"))
	assert.GreaterOrEqual(t, indexOf(calls, "Launch"), 0)
}

func TestStartupInstallsBreakpointsBeforeConfigurationDone(t *testing.T) {
	fc := &fakeClient{}
	cfg := Config{
		Adapter:     &profile.Profile{ID: "native", TransportKind: profile.ChildProcessStdio},
		Breakpoints: []model.Breakpoint{{SourcePath: "main.go", Line: 10}},
		Inspector:   inspector.DefaultConfig(),
	}
	m, buf := newTestManager(t, cfg, fc)
	m.registry = breakpoints.New(cfg.Breakpoints)

	require.NoError(t, m.startup(context.Background()))

	calls := fc.callLog()
	assert.Less(t, indexOf(calls, "SetBreakpoints"), indexOf(calls, "ConfigurationDone"))

	lines := linesOf(buf)
	require.NotEmpty(t, lines)
	found := false
	for _, l := range lines {
		if strings.Contains(l, events.TypeBreakpointSet) && strings.Contains(l, `"file":"main.go"`) {
			found = true
		}
	}
	assert.True(t, found, "expected a breakpoint_set event for main.go")
}

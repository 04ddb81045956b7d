package breakpoints

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/model"
)

type fakeInstaller struct {
	results map[string][]dapclient.BreakpointResult
	errs    map[string]error
	calls   map[string]int
}

func (f *fakeInstaller) SetBreakpoints(ctx context.Context, sourcePath string, bps []model.Breakpoint) ([]dapclient.BreakpointResult, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[sourcePath]++
	if err, ok := f.errs[sourcePath]; ok {
		return nil, err
	}
	return f.results[sourcePath], nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func TestInstallAllUpdatesVerifiedState(t *testing.T) {
	reg := New([]model.Breakpoint{
		{SourcePath: "main.go", Line: 10},
		{SourcePath: "main.go", Line: 20},
	})

	installer := &fakeInstaller{
		results: map[string][]dapclient.BreakpointResult{
			"main.go": {
				{ID: 1, Verified: true, Line: 10},
				{ID: 2, Verified: false, Message: "no code at line"},
			},
		},
	}

	events := reg.InstallAll(context.Background(), installer)
	require.Len(t, events, 2)
	assert.Equal(t, 1, installer.calls["main.go"])
	assert.True(t, events[0].Breakpoint.Verified)
	assert.False(t, events[1].Breakpoint.Verified)
	assert.Equal(t, "no code at line", events[1].Breakpoint.Message)
}

func TestInstallAllMarksSourceFailureUnverified(t *testing.T) {
	reg := New([]model.Breakpoint{
		{SourcePath: "a.go", Line: 1},
		{SourcePath: "a.go", Line: 2},
	})

	installer := &fakeInstaller{errs: map[string]error{"a.go": fakeErr("adapter rejected source")}}

	events := reg.InstallAll(context.Background(), installer)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.False(t, e.Breakpoint.Verified)
		assert.Equal(t, "adapter rejected source", e.Breakpoint.Message)
	}
}

func TestInstallAllIssuesExactlyOneRequestPerSource(t *testing.T) {
	reg := New([]model.Breakpoint{
		{SourcePath: "a.go", Line: 1},
		{SourcePath: "b.go", Line: 2},
		{SourcePath: "a.go", Line: 3},
	})

	installer := &fakeInstaller{results: map[string][]dapclient.BreakpointResult{
		"a.go": {{ID: 1, Verified: true}, {ID: 2, Verified: true}},
		"b.go": {{ID: 3, Verified: true}},
	}}

	reg.InstallAll(context.Background(), installer)
	assert.Equal(t, 1, installer.calls["a.go"])
	assert.Equal(t, 1, installer.calls["b.go"])
}

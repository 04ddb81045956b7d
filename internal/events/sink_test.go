package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, nil, nil)

	require.NoError(t, sink.Emit(TypeSessionStart, SessionStartBody{Adapter: "netcoredbg", Program: "a.dll"}))
	require.NoError(t, sink.Emit(TypeProcessLaunched, ProcessLaunchedBody{PID: 123}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, TypeSessionStart, first["type"])
	assert.Equal(t, "netcoredbg", first["adapter"])
	assert.NotEmpty(t, first["timestamp"])
}

func TestEmitExcludeFilterSuppressesType(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, nil, []string{TypeProgramOutput})

	require.NoError(t, sink.Emit(TypeProgramOutput, ProgramOutputBody{Category: "stdout", Output: "hi"}))
	require.NoError(t, sink.Emit(TypeSessionEnd, SessionEndBody{}))

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), TypeSessionEnd)
}

func TestEmitIncludeFilterOnlyAllowsListedTypes(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf, []string{TypeSessionStart}, nil)

	require.NoError(t, sink.Emit(TypeSessionStart, SessionStartBody{Adapter: "x"}))
	require.NoError(t, sink.Emit(TypeProgramOutput, ProgramOutputBody{Category: "stdout", Output: "hi"}))

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), TypeSessionStart)
}

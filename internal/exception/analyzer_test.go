package exception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loafbrew/dapheadless/internal/model"
)

func strVal(s string) *model.VariableValue {
	return &model.VariableValue{Type: "string", Kind: model.KindPrimitive, Primitive: s}
}

func intVal(n int64) *model.VariableValue {
	return &model.VariableValue{Type: "int", Kind: model.KindPrimitive, Primitive: n}
}

func TestAnalyzeFlattensChainAndMarksRootCause(t *testing.T) {
	innermost := &model.VariableValue{
		Type: "System.Net.Sockets.SocketException {SocketException}",
		Kind: model.KindObject,
		Object: map[string]*model.VariableValue{
			"Message":   strVal("Connection refused"),
			"ErrorCode": intVal(111),
		},
	}
	middle := &model.VariableValue{
		Type: "System.Data.SqlClient.SqlException {SqlException}",
		Kind: model.KindObject,
		Object: map[string]*model.VariableValue{
			"Message":        strVal("A network-related error occurred"),
			"InnerException": innermost,
		},
	}
	locals := map[string]*model.VariableValue{
		"$exception": middle,
	}

	entries := Analyze(locals, 5)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsRootCause)
	assert.True(t, entries[1].IsRootCause)
	assert.Equal(t, "SocketException", entries[1].Type)
	assert.Equal(t, string(CategoryNetwork), entries[1].Category)
	assert.NotEmpty(t, entries[1].Hint)
}

func TestAnalyzeTruncatesAtMaxDepth(t *testing.T) {
	leaf := &model.VariableValue{Type: "Exception", Kind: model.KindObject, Object: map[string]*model.VariableValue{
		"Message": strVal("leaf"),
	}}
	mid := &model.VariableValue{Type: "Exception", Kind: model.KindObject, Object: map[string]*model.VariableValue{
		"Message":        strVal("mid"),
		"InnerException": leaf,
	}}
	top := &model.VariableValue{Type: "Exception", Kind: model.KindObject, Object: map[string]*model.VariableValue{
		"Message":        strVal("top"),
		"InnerException": mid,
	}}

	entries := Analyze(map[string]*model.VariableValue{"$exception": top}, 2)
	require.Len(t, entries, 2)
	assert.Equal(t, "top", entries[0].Message)
	assert.Equal(t, "mid", entries[1].Message)
	assert.True(t, entries[1].IsRootCause)
}

func TestAnalyzeReturnsEmptyWhenNoExceptionPresent(t *testing.T) {
	entries := Analyze(map[string]*model.VariableValue{"x": intVal(1)}, 5)
	assert.Empty(t, entries)
}

func TestClassifyIsDeterministic(t *testing.T) {
	a := Classify("System.ArgumentNullException")
	b := Classify("System.ArgumentNullException")
	assert.Equal(t, a, b)
	assert.Equal(t, CategoryArgument, a)
}

func TestSqlCompositeHintOverridesTypeHint(t *testing.T) {
	hint := Hint("SqlException", "18456", CategoryDatabase)
	assert.Contains(t, hint, "login failed")
}

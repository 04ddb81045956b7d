package session

import (
	"context"
	"strings"

	"github.com/loafbrew/dapheadless/internal/events"
	"github.com/loafbrew/dapheadless/internal/model"
)

// checkAssertions evaluates each configured assertion in order against
// snap's frame and returns the first one that fails, or nil if every
// assertion held (or none are configured). An evaluation error counts as
// a failure: an assertion that cannot be checked is not trusted.
func (m *Manager) checkAssertions(ctx context.Context, snap stopSnapshot) *model.EvaluationResult {
	for _, expr := range m.cfg.Assertions {
		results := m.insp.Evaluate(ctx, snap.frameID, []string{expr})
		if len(results) == 0 {
			continue
		}
		r := results[0]
		if r.Error != "" {
			return &r
		}
		if !isTruthy(r.Result) {
			return &r
		}
	}
	return nil
}

// isTruthy applies the driver's fixed truthiness policy to a rendered
// evaluate result: empty, null-ish, or literal-false/zero text is
// falsy; everything else is truthy.
func isTruthy(rendered string) bool {
	switch strings.TrimSpace(rendered) {
	case "", "null", "None", "nil", "undefined", "false", "False", "0":
		return false
	default:
		return true
	}
}

func (m *Manager) emitAssertionFailed(threadID int, failed model.EvaluationResult, snap stopSnapshot) {
	m.sink.Emit(events.TypeAssertionFailed, events.AssertionFailedBody{
		ThreadID:        threadID,
		Assertion:       failed.Expression,
		ActualValue:     failed.Result,
		EvaluationError: failed.Error,
		Location:        snap.location(),
		StackTrace:      snap.stack,
		Locals:          snap.locals,
	})
}

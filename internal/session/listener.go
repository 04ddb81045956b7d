package session

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/events"
)

// The methods below implement dapclient.Listener. Every one of them only
// enqueues work onto the session's single logical task; none does I/O or
// touches shared state directly, since they run on the transport's own
// read-loop goroutine (spec §5).

func (m *Manager) OnStopped(body dapclient.StoppedEventBody) {
	m.enqueue(func() { m.handleStopped(body) })
}

func (m *Manager) OnTerminated() {
	m.enqueue(func() { m.handleTerminated() })
}

func (m *Manager) OnExited(body dapclient.ExitedEventBody) {
	m.enqueue(func() { m.handleExited(body) })
}

func (m *Manager) OnOutput(body dapclient.OutputEventBody) {
	m.enqueue(func() {
		m.sink.Emit(events.TypeProgramOutput, events.ProgramOutputBody{Category: body.Category, Output: body.Output})
	})
}

func (m *Manager) OnBreakpointEvent(body dapclient.BreakpointEventBody) {
	m.enqueue(func() {
		if body.Reason != "changed" && body.Reason != "new" {
			return
		}
		m.log.WithField("id", body.Breakpoint.ID).Debug("session: adapter reported breakpoint state change")
	})
}

func (m *Manager) OnInitializedEvent() {}

func (m *Manager) OnThreadEvent(dapclient.ThreadEventBody) {}

func (m *Manager) OnEvent(string, json.RawMessage) {}

func (m *Manager) OnProcessError(err error) {
	m.enqueue(func() { m.failSession(errors.Wrap(err, "session: adapter process error")) })
}

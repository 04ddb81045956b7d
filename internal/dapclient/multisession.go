package dapclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/go-dap"

	"github.com/loafbrew/dapheadless/internal/profile"
	"github.com/loafbrew/dapheadless/internal/transport"
)

// startDebuggingRequest is the reverse-request shape adapters use to ask
// the driver to open a second connection and launch/attach a child
// configuration (e.g. a debuggee that itself spawns a child process to
// debug). The field names mirror the DAP `startDebugging` extension.
type startDebuggingRequest struct {
	Configuration json.RawMessage `json:"configuration"`
	RequestType   string          `json:"request"` // "launch" or "attach"
}

// handleStartDebugging opens a child transport to the same adapter
// endpoint, replays the parent's installed breakpoints and exception
// filters onto it, then launches or attaches the child configuration.
// Once a child transport exists, all debugging operations route to it;
// administrative operations (setBreakpoints, setExceptionBreakpoints,
// terminate) continue to address the parent, and Disconnect closes the
// child before the parent (spec §9, "active_transport selector").
func (c *Client) handleStartDebugging(m dap.Message) {
	req, ok := m.(dap.RequestMessage)
	if !ok {
		return
	}
	r := req.GetRequest()

	var envelope struct {
		Arguments startDebuggingRequest `json:"arguments"`
	}
	if raw, err := json.Marshal(m); err == nil {
		_ = json.Unmarshal(raw, &envelope)
	}
	args := envelope.Arguments

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	child, err := c.openChildTransport(ctx)
	if err != nil {
		c.log.WithError(err).Warn("dapclient: failed to open child transport for startDebugging")
		_ = c.parent.SendResponse(r.Seq, r.Command, false, nil, err.Error())
		return
	}

	if err := c.bootstrapChild(ctx, child, args); err != nil {
		c.log.WithError(err).Warn("dapclient: failed to bootstrap child session")
		_ = child.Close()
		_ = c.parent.SendResponse(r.Seq, r.Command, false, nil, err.Error())
		return
	}

	c.mu.Lock()
	c.child = child
	c.mu.Unlock()

	_ = c.parent.SendResponse(r.Seq, r.Command, true, nil, "")
}

func (c *Client) openChildTransport(ctx context.Context) (*transport.Transport, error) {
	var (
		t   *transport.Transport
		err error
	)
	switch c.profile.TransportKind {
	case profile.ChildProcessStdio:
		argv, aerr := c.profile.Argv()
		if aerr != nil {
			return nil, aerr
		}
		t, err = transport.ChildProcess(ctx, argv[0], argv[1:], c.dialer.SpawnDir, c.dialer.SpawnEnv)
	default:
		delay := time.Duration(c.profile.ConnectDelayMillis) * time.Millisecond
		t, err = transport.Socket(ctx, c.dialer.SocketDial, delay)
	}
	if err != nil {
		return nil, err
	}
	c.wireTransport(t, false)
	return t, nil
}

// bootstrapChild runs the child through initialize, replays the parent's
// breakpoint and exception-filter state, issues configurationDone, then
// launch/attach with the adapter-supplied configuration.
func (c *Client) bootstrapChild(ctx context.Context, child *transport.Transport, args startDebuggingRequest) error {
	if _, err := child.SendRequest(ctx, "initialize", map[string]any{
		"adapterID":       c.profile.ID,
		"pathFormat":      "path",
		"linesStartAt1":   true,
		"columnsStartAt1": true,
	}); err != nil {
		return err
	}

	c.bpMu.Lock()
	filters := append([]string(nil), c.lastFilters...)
	savedBreakpoints := c.lastBreakpoints
	c.bpMu.Unlock()

	for sourcePath, bps := range savedBreakpoints {
		type sourceBreakpoint struct {
			Line         int    `json:"line"`
			Condition    string `json:"condition,omitempty"`
			HitCondition string `json:"hitCondition,omitempty"`
			LogMessage   string `json:"logMessage,omitempty"`
		}
		reqArgs := struct {
			Source      map[string]string  `json:"source"`
			Breakpoints []sourceBreakpoint `json:"breakpoints"`
		}{Source: map[string]string{"path": sourcePath, "name": baseName(sourcePath)}}
		for _, bp := range bps {
			reqArgs.Breakpoints = append(reqArgs.Breakpoints, sourceBreakpoint{
				Line:         bp.Line,
				Condition:    bp.Condition,
				HitCondition: bp.HitCondition,
				LogMessage:   bp.LogMessage,
			})
		}
		if _, err := child.SendRequest(ctx, "setBreakpoints", reqArgs); err != nil {
			c.log.WithError(err).Warnf("dapclient: failed to replay breakpoints for %s onto child session", sourcePath)
		}
	}

	if len(filters) > 0 {
		if _, err := child.SendRequest(ctx, "setExceptionBreakpoints", struct {
			Filters []string `json:"filters"`
		}{filters}); err != nil {
			c.log.WithError(err).Warn("dapclient: failed to replay exception filters onto child session")
		}
	}

	if _, err := child.SendRequest(ctx, "configurationDone", struct{}{}); err != nil {
		return err
	}

	command := args.RequestType
	if command == "" {
		command = "launch"
	}
	_, err := child.SendRequest(ctx, command, args.Configuration)
	return err
}

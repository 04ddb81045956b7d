package transport

import (
	"encoding/json"

	"github.com/google/go-dap"
)

// rawRequest is an outgoing request whose Arguments are already-marshaled
// JSON. The typed *dap.XxxRequest structs in go-dap only exist for
// standard DAP commands with statically known argument shapes; a generic
// client that forwards whatever the caller passes needs a request type
// that carries arbitrary arguments, so that's what this is.
type rawRequest struct {
	*dap.Request
	Arguments json.RawMessage
}

func (r *rawRequest) GetRequest() *dap.Request { return r.Request }

func (r *rawRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seq       int             `json:"seq"`
		Type      string          `json:"type"`
		Command   string          `json:"command"`
		Arguments json.RawMessage `json:"arguments,omitempty"`
	}{
		Seq:       r.Seq,
		Type:      r.Type,
		Command:   r.Command,
		Arguments: r.Arguments,
	})
}

// rawResponse is an outgoing response to a reverse-request, with an
// already-marshaled body.
type rawResponse struct {
	*dap.Response
	Body json.RawMessage
}

func (r *rawResponse) GetResponse() *dap.Response { return r.Response }

func (r *rawResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Seq        int             `json:"seq"`
		Type       string          `json:"type"`
		RequestSeq int             `json:"request_seq"`
		Success    bool            `json:"success"`
		Command    string          `json:"command"`
		Message    string          `json:"message,omitempty"`
		Body       json.RawMessage `json:"body,omitempty"`
	}{
		Seq:        r.Seq,
		Type:       r.Type,
		RequestSeq: r.RequestSeq,
		Success:    r.Success,
		Command:    r.Command,
		Message:    r.Message,
		Body:       r.Body,
	})
}

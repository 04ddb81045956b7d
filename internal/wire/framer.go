// Package wire implements the DAP framed-message wire format: one or more
// "Header: value\r\n" lines terminated by a blank line, followed by a JSON
// body whose byte length equals Content-Length.
//
// The framing and JSON decoding is delegated to github.com/google/go-dap,
// the same way the teacher's dap/conn.go wraps dap.ReadProtocolMessage and
// dap.WriteProtocolMessage rather than re-implementing frame parsing. What
// this package owns is the seam the spec names as its own component: a
// Framer bound to one byte stream, independently testable for
// fragmentation and malformed-message robustness.
package wire

import (
	"bufio"
	"bytes"
	"io"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
)

// ErrParse wraps a malformed message body. The offending message is
// dropped; the framer's internal buffer is otherwise undisturbed so the
// next well-formed message still parses.
var ErrParse = errors.New("wire: malformed message")

// Framer reads and writes DAP protocol messages on one reader/writer pair.
// It is not safe for concurrent reads, nor concurrent writes, but a
// reader and a writer may run concurrently on the same Framer (read and
// write use independent underlying state in go-dap's codec).
type Framer struct {
	r *bufio.Reader
	w io.Writer
}

// New constructs a Framer over rd/wr. rd is wrapped in a bufio.Reader
// because dap.ReadProtocolMessage requires one to scan the header block.
func New(rd io.Reader, wr io.Writer) *Framer {
	return &Framer{r: bufio.NewReader(rd), w: wr}
}

// ReadMessage blocks until one full message has been framed and decoded,
// or returns an error. io.EOF indicates a clean stream close. A body that
// fails to unmarshal as JSON surfaces as ErrParse; the caller may keep
// reading from the same Framer, since go-dap has already consumed exactly
// that message's bytes before reporting the failure.
func (f *Framer) ReadMessage() (dap.Message, error) {
	m, err := dap.ReadProtocolMessage(f.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(ErrParse, err.Error())
	}
	return m, nil
}

// WriteMessage serializes m as one DAP frame: header block, blank line,
// JSON body, in a single write.
func (f *Framer) WriteMessage(m dap.Message) error {
	var buf bytes.Buffer
	if err := dap.WriteProtocolMessage(&buf, m); err != nil {
		return err
	}
	_, err := f.w.Write(buf.Bytes())
	return err
}

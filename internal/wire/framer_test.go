package wire

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, m dap.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, dap.WriteProtocolMessage(&buf, m))
	return buf.Bytes()
}

func sampleEvent(seq int) *dap.OutputEvent {
	return &dap.OutputEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "event"},
			Event:           "output",
		},
		Body: dap.OutputEventBody{Category: "stdout", Output: fmt.Sprintf("line %d\n", seq)},
	}
}

func TestRoundTrip(t *testing.T) {
	var out bytes.Buffer
	f := New(bytes.NewReader(nil), &out)

	ev := sampleEvent(1)
	require.NoError(t, f.WriteMessage(ev))

	rf := New(bytes.NewReader(out.Bytes()), io.Discard)
	m, err := rf.ReadMessage()
	require.NoError(t, err)

	got, ok := m.(*dap.OutputEvent)
	require.True(t, ok)
	assert.Equal(t, ev.Body.Output, got.Body.Output)
	assert.Equal(t, ev.Seq, got.Seq)
}

// TestFragmentation feeds the same byte stream chopped at arbitrary byte
// boundaries and checks the same message sequence comes out, matching the
// spec's framing testable property.
func TestFragmentation(t *testing.T) {
	var full bytes.Buffer
	var want []string
	for i := 1; i <= 5; i++ {
		ev := sampleEvent(i)
		b := encode(t, ev)
		full.Write(b)
		want = append(want, ev.Body.Output)
	}

	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		t.Run(fmt.Sprintf("chunk=%d", chunkSize), func(t *testing.T) {
			pr, pw := io.Pipe()
			f := New(pr, io.Discard)

			go func() {
				defer pw.Close()
				data := full.Bytes()
				for len(data) > 0 {
					n := chunkSize
					if n > len(data) {
						n = len(data)
					}
					pw.Write(data[:n])
					data = data[n:]
					time.Sleep(time.Millisecond)
				}
			}()

			var got []string
			for i := 0; i < 5; i++ {
				m, err := f.ReadMessage()
				require.NoError(t, err)
				ev := m.(*dap.OutputEvent)
				got = append(got, ev.Body.Output)
			}
			assert.Equal(t, want, got)
		})
	}
}

// TestMalformedBodyDoesNotDesyncStream checks that a body which isn't
// valid JSON surfaces ErrParse for that message only, and a subsequent
// well-formed message still parses.
func TestMalformedBodyDoesNotDesyncStream(t *testing.T) {
	badFrame := []byte("Content-Length: 9\r\n\r\nnot-json!")
	good := encode(t, sampleEvent(2))

	var stream bytes.Buffer
	stream.Write(badFrame)
	stream.Write(good)

	f := New(&stream, io.Discard)

	_, err := f.ReadMessage()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)

	m, err := f.ReadMessage()
	require.NoError(t, err)
	ev := m.(*dap.OutputEvent)
	assert.Equal(t, "line 2\n", ev.Body.Output)
}

func TestReadMessageReportsEOF(t *testing.T) {
	f := New(bytes.NewReader(nil), io.Discard)
	_, err := f.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

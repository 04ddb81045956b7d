package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// envelope wraps one typed event body with the two fields every event
// carries: type and an ISO-8601 UTC timestamp. MarshalJSON flattens Body's
// fields alongside them so the wire shape matches the catalog exactly
// (no nested "body" key).
type envelope struct {
	Type      string
	Timestamp string
	Body      any
}

func (e envelope) MarshalJSON() ([]byte, error) {
	bodyBytes, err := json.Marshal(e.Body)
	if err != nil {
		return nil, errors.Wrap(err, "events: marshal event body")
	}

	fields := make(map[string]json.RawMessage)
	if len(bodyBytes) > 0 && string(bodyBytes) != "null" {
		if err := json.Unmarshal(bodyBytes, &fields); err != nil {
			return nil, errors.Wrap(err, "events: event body is not a JSON object")
		}
	}

	typeBytes, _ := json.Marshal(e.Type)
	tsBytes, _ := json.Marshal(e.Timestamp)
	fields["type"] = typeBytes
	fields["timestamp"] = tsBytes

	return json.Marshal(fields)
}

// Sink serializes events as one JSON object per line, in emission order,
// optionally filtered by an include and/or exclude set of type names.
type Sink struct {
	mu      sync.Mutex
	w       io.Writer
	include map[string]bool
	exclude map[string]bool
	now     func() time.Time
}

// NewSink builds a Sink writing to w. An empty include set means "all
// types"; exclude always wins over include for a type present in both.
func NewSink(w io.Writer, include, exclude []string) *Sink {
	s := &Sink{w: w, now: time.Now}
	if len(include) > 0 {
		s.include = toSet(include)
	}
	if len(exclude) > 0 {
		s.exclude = toSet(exclude)
	}
	return s
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func (s *Sink) allowed(typ string) bool {
	if s.exclude != nil && s.exclude[typ] {
		return false
	}
	if s.include != nil && !s.include[typ] {
		return false
	}
	return true
}

// Emit writes one event if it passes the filter. It is safe for
// concurrent use; writes are serialized and each is a single line.
func (s *Sink) Emit(typ string, body any) error {
	if !s.allowed(typ) {
		return nil
	}

	env := envelope{Type: typ, Timestamp: s.now().UTC().Format(time.RFC3339Nano), Body: body}
	line, err := json.Marshal(env)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return errors.Wrap(err, "events: write event line")
}

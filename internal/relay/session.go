package relay

import (
	"sync/atomic"
	"time"

	"github.com/raaihank/iron-mask/internal/privacy"
)

// State is the lifecycle position of a relay session
type State int32

const (
	StateIdle State = iota
	StateReceiving
	StateDraining
	StateForwarding
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateDraining:
		return "draining"
	case StateForwarding:
		return "forwarding"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Failure reasons reported by Session.Reason
const (
	ReasonNone      = ""
	ReasonUpstream  = "upstream"
	ReasonTimeout   = "timeout"
	ReasonInbound   = "inbound"
	ReasonTooLarge  = "too_large"
	ReasonCanceled  = "canceled"
	ReasonTransport = "response_stream"
)

// Session binds one inbound body to one outbound upstream request. The
// producer goroutine owns units until it closes them; everything it records
// is read by the handler only after done is closed.
type Session struct {
	ID        string
	StartedAt time.Time

	units chan []byte
	done  chan struct{}
	state atomic.Int32

	// written by the producer
	inboundErr   error
	bytesIn      int64
	bytesMasked  int64
	unitsSent    int
	findings     map[string]int
	findingOrder []string

	// written by the consumer
	err        error
	reason     string
	statusCode int
	bytesOut   int64
	duration   time.Duration
}

func newSession(id string, capacity int) *Session {
	s := &Session{
		ID:        id,
		StartedAt: time.Now(),
		units:     make(chan []byte, capacity),
		done:      make(chan struct{}),
		findings:  make(map[string]int),
	}
	s.state.Store(int32(StateIdle))
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// advance moves forward from an earlier state only. The producer and the
// consumer run concurrently and must not move each other backwards.
func (s *Session) advance(state State) {
	for {
		cur := s.state.Load()
		if State(cur) >= state {
			return
		}
		if s.state.CompareAndSwap(cur, int32(state)) {
			return
		}
	}
}

func (s *Session) addFindings(findings []privacy.Finding) {
	for _, f := range findings {
		if _, seen := s.findings[f.EntityType]; !seen {
			s.findingOrder = append(s.findingOrder, f.EntityType)
		}
		s.findings[f.EntityType] += f.Count
	}
}

// Findings returns redaction counts per rule for the whole session
func (s *Session) Findings() []privacy.Finding {
	out := make([]privacy.Finding, 0, len(s.findingOrder))
	for _, name := range s.findingOrder {
		out = append(out, privacy.Finding{EntityType: name, Count: s.findings[name]})
	}
	return out
}

// TotalFindings sums Findings
func (s *Session) TotalFindings() int {
	total := 0
	for _, n := range s.findings {
		total += n
	}
	return total
}

// Err returns the error that ended the session, if any
func (s *Session) Err() error { return s.err }

// Reason classifies a failed session
func (s *Session) Reason() string { return s.reason }

// StatusCode is the status sent to the caller
func (s *Session) StatusCode() int { return s.statusCode }

// BytesIn counts raw inbound body bytes read
func (s *Session) BytesIn() int64 { return s.bytesIn }

// BytesMasked counts masked bytes handed to the upstream body
func (s *Session) BytesMasked() int64 { return s.bytesMasked }

// BytesOut counts response bytes streamed back to the caller
func (s *Session) BytesOut() int64 { return s.bytesOut }

// Units counts masked units pushed through the channel
func (s *Session) Units() int { return s.unitsSent }

// Duration is the wall time from session start to completion
func (s *Session) Duration() time.Duration { return s.duration }

package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/omtlabs/marketing-bridge/internal/marketing"
)

// SessionState is the lifecycle state of one conversation session.
type SessionState string

const (
	StateCreated   SessionState = "created"
	StateStreaming SessionState = "streaming"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
)

var (
	// ErrSessionTerminated is returned for any emission after the session
	// reached a terminal state. Emitting past termination is a programming
	// error, not a condition to swallow: downstream consumers rely on the
	// terminal envelope being last.
	ErrSessionTerminated = errors.New("session terminated: no further events may be emitted")

	// ErrSessionNotStreaming is returned when an event other than the
	// session-started event is emitted before the stream has started.
	ErrSessionNotStreaming = errors.New("conversation_started must be emitted first")
)

// Sequencer owns event ordering for one conversation session. All emissions
// go through it, in a fixed relative order: started, echo, results, then
// either an error or the completion event. Once a terminal event is emitted
// the sequencer rejects everything else.
type Sequencer struct {
	conversationID string
	w              EventWriter

	mu    sync.Mutex
	state SessionState
}

func NewSequencer(conversationID string, w EventWriter) *Sequencer {
	return &Sequencer{
		conversationID: conversationID,
		w:              w,
		state:          StateCreated,
	}
}

// State returns the current lifecycle state.
func (s *Sequencer) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EmitStarted emits the session-started event. Always first; it moves the
// session from Created to Streaming.
func (s *Sequencer) EmitStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted || s.state == StateFailed {
		return ErrSessionTerminated
	}
	if s.state != StateCreated {
		return fmt.Errorf("conversation_started already emitted (state %s)", s.state)
	}

	ev := newEvent(EventConversationStarted, EventData{
		Type: DataTypeConversationStarted,
		Payload: map[string]interface{}{
			"conversation_id": s.conversationID,
		},
	})

	if err := s.write(ev); err != nil {
		return err
	}

	s.state = StateStreaming
	return nil
}

// EmitEcho echoes the submitted query text back to the client. Emitted before
// any result event.
func (s *Sequencer) EmitEcho(queryText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStreaming(); err != nil {
		return err
	}

	return s.write(newEvent(EventUserSendMessage, EventData{
		Type: DataTypeUserSendMessage,
		InputParams: map[string]interface{}{
			"text":        queryText,
			"attachments": []interface{}{},
		},
	}))
}

// EmitResult emits one result envelope. May be called more than once per
// query; each call carries a fresh event id.
func (s *Sequencer) EmitResult(result *marketing.QueryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStreaming(); err != nil {
		return err
	}

	return s.write(newEvent(EventToolEnd, EventData{
		Type:     DataTypeMarketingResponse,
		ToolName: ToolNameFilter,
		Payload:  result,
	}))
}

// EmitSummary emits the aggregated summary envelope for a non-empty result.
func (s *Sequencer) EmitSummary(summary ResultSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStreaming(); err != nil {
		return err
	}

	return s.write(newEvent(EventToolEnd, EventData{
		Type:     DataTypeMarketingSummary,
		ToolName: ToolNameSummary,
		Payload:  summary,
	}))
}

// EmitError emits the terminal error envelope and moves the session to
// Failed. Mutually exclusive with further result emissions.
func (s *Sequencer) EmitError(message string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStreaming(); err != nil {
		return err
	}

	ev := newEvent(EventToolEnd, EventData{
		Type:     DataTypeError,
		ToolName: ToolNameError,
		Error:    message,
		Payload:  payload,
	})

	// Failed is reached even when the write itself fails: either way the
	// session is over.
	s.state = StateFailed
	return s.write(ev)
}

// EmitCompleted emits the final event of a successful session and moves it
// to Completed.
func (s *Sequencer) EmitCompleted() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStreaming(); err != nil {
		return err
	}

	ev := newEvent(EventStreamCompleted, EventData{
		Type: DataTypeStreamCompleted,
		Payload: map[string]interface{}{
			"conversation_id": s.conversationID,
		},
	})

	if err := s.write(ev); err != nil {
		return err
	}

	s.state = StateCompleted
	return nil
}

// Abort moves the session to Failed without emitting anything. Used when the
// client is gone and no further envelope can be delivered.
func (s *Sequencer) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
}

// requireStreaming enforces the ordering contract. Callers must hold s.mu.
func (s *Sequencer) requireStreaming() error {
	switch s.state {
	case StateCompleted, StateFailed:
		return ErrSessionTerminated
	case StateCreated:
		return ErrSessionNotStreaming
	}
	return nil
}

// write pushes one envelope to the stream. A write failure means the client
// is unreachable: the session fails and stays failed. Callers must hold s.mu.
func (s *Sequencer) write(ev Event) error {
	if err := s.w.WriteEvent(ev); err != nil {
		s.state = StateFailed
		return err
	}
	return nil
}

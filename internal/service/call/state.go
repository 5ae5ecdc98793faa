// Package call owns the lifecycle of one inbound call: it relays the call
// leg's audio and control traffic to a transcription session and drives
// tone analysis and dashboard fan-out from the transcripts that come back.
package call

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a call session.
type State int

const (
	// StateOpening - transcription handshake in flight, audio not yet relayed.
	StateOpening State = iota
	// StateActive - transcription session ready, audio is relayed.
	StateActive
	// StateClosing - close in progress, stop being issued.
	StateClosing
	// StateClosed - terminal. The transcription session has been released.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpening:
		return "OPENING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is CLOSED.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrSessionClosed = errors.New("call session is closed")
	ErrNotOpening    = errors.New("call session is not in the opening state")
)

// Lifecycle manages the state machine for a single call session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	OPENING → ACTIVE → CLOSING → CLOSED
//	   │                  ▲
//	   └── handshake ─────┘  (a failed handshake closes without activating)
//
// Rules:
//   - OPENING: audio is dropped, the start configuration is held back
//   - ACTIVE: audio and control are relayed
//   - CLOSING/CLOSED: nothing is relayed; activation is rejected
type Lifecycle struct {
	mu     sync.RWMutex
	callId string
	state  State
}

// NewLifecycle creates a new call lifecycle in OPENING state.
func NewLifecycle(callId string) *Lifecycle {
	return &Lifecycle{
		callId: callId,
		state:  StateOpening,
	}
}

// CallID returns the call session ID.
func (l *Lifecycle) CallID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.callId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanRelay returns true if audio may be forwarded to transcription.
func (l *Lifecycle) CanRelay() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateActive
}

// IsClosed returns true if the session reached the terminal state.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateClosed
}

// Activate transitions OPENING → ACTIVE.
// Fails once close has begun; a session never reactivates.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateOpening:
		l.state = StateActive
		return nil
	case StateClosing, StateClosed:
		return ErrSessionClosed
	default:
		return fmt.Errorf("%w: state %v", ErrNotOpening, l.state)
	}
}

// BeginClose transitions to CLOSING. Returns false if close already began,
// so the close path runs at most once.
func (l *Lifecycle) BeginClose() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosing || l.state == StateClosed {
		return false
	}
	l.state = StateClosing
	return true
}

// FinishClose transitions to the terminal CLOSED state. Idempotent.
func (l *Lifecycle) FinishClose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}

// Package transcribe defines the interface for streaming transcription
// providers.
package transcribe

import (
	"context"
	"errors"

	"call-sentiment-gateway/internal/models"
)

// ErrTranscriptionUnavailable reports that a transcription session could not
// be established (token retrieval or connection failure).
var ErrTranscriptionUnavailable = errors.New("transcription unavailable")

// Handler receives transcript events from an established session.
type Handler interface {
	// OnTranscript is called once per inbound endpoint message that carries
	// at least one result. Events are delivered in arrival order.
	OnTranscript(ev models.TranscriptEvent)

	// OnError is called when the session's receive path fails. It is not
	// called after Close.
	OnError(err error)
}

// Session is one outbound streaming connection to a transcription endpoint.
type Session interface {
	// SendAudio forwards a binary audio frame. Fire-and-forget; frames are
	// delivered in send order.
	SendAudio(frame []byte) error

	// SendStart forwards the one-time start configuration.
	SendStart(config []byte) error

	// Close sends the stop control message if not already sent, then closes
	// the underlying connection. Idempotent.
	Close() error
}

// Dialer establishes transcription sessions. Dial blocks until the
// connection is ready or fails with ErrTranscriptionUnavailable.
type Dialer interface {
	Dial(ctx context.Context, callId string, h Handler) (Session, error)
}

package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"call-sentiment-gateway/internal/models"
	"call-sentiment-gateway/internal/observability/logging"
	"call-sentiment-gateway/internal/observability/metrics"
	"call-sentiment-gateway/internal/service/transcribe"
)

// Analyzer performs the tone analysis round trip for one transcript.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (models.ToneResult, error)
}

// Broadcaster fans a payload out to all dashboard observers.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Publisher publishes transcript and tone events for downstream consumers.
type Publisher interface {
	PublishTranscript(ctx context.Context, callId string, event any) error
	PublishTone(ctx context.Context, callId string, event any) error
}

// Session relays one inbound call. It owns exactly one transcription
// session, created on open and released on close.
type Session struct {
	id        string
	dialer    transcribe.Dialer
	analyzer  Analyzer
	hub       Broadcaster
	publisher Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	lifecycle *Lifecycle

	ctx    context.Context
	cancel context.CancelFunc

	openedAt time.Time
	opened   atomic.Bool
	ready    chan struct{} // closed once the handshake resolves, either way

	mu           sync.Mutex
	transcriber  transcribe.Session
	startClaimed bool
	pendingStart []byte
	closeOnce    sync.Once
}

// NewSession creates a relay for one call. id should identify the underlying
// socket. publisher may be nil.
func NewSession(id string, dialer transcribe.Dialer, analyzer Analyzer, hub Broadcaster, publisher Publisher) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		dialer:    dialer,
		analyzer:  analyzer,
		hub:       hub,
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
		logger:    logging.WithCall(id),
		lifecycle: NewLifecycle(id),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
	}
}

// ID returns the call session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Ready returns a channel closed once the transcription handshake has
// resolved, successfully or not.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Open starts the transcription handshake. It returns immediately; the
// session stays in OPENING until the handshake resolves. Audio arriving
// before then is dropped, not buffered. A closed session cannot be reopened.
func (s *Session) Open() error {
	if s.lifecycle.State() != StateOpening {
		return ErrSessionClosed
	}
	if !s.opened.CompareAndSwap(false, true) {
		return ErrNotOpening
	}

	s.openedAt = time.Now()
	s.metrics.RecordCallStart()
	s.logger.Info().Msg("Call session opened, starting transcription handshake")

	go s.connect()
	return nil
}

// connect performs the blocking handshake and resolves the session's
// readiness. A handshake failure closes the session; the call itself
// continues, just without transcription.
func (s *Session) connect() {
	defer close(s.ready)

	transcriber, err := s.dialer.Dial(s.ctx, s.id, s)
	s.metrics.RecordTranscriptionSession(err)
	if err != nil {
		s.logger.Error().Err(err).Msg("Transcription session unavailable, call proceeds unanalyzed")
		s.shutdown()
		return
	}

	s.attach(transcriber)

	if err := s.activate(); err != nil {
		// Close won the race; release the transcriber we just acquired.
		transcriber.Close()
	}
}

func (s *Session) attach(transcriber transcribe.Session) {
	s.mu.Lock()
	s.transcriber = transcriber
	s.mu.Unlock()
}

// activate commits the transition to ACTIVE and then flushes any start
// configuration parked while the handshake was in flight. The parked config
// must be collected after the transition: a control message landing between
// attach and the CanRelay flip parks itself, and collecting earlier would
// strand it.
func (s *Session) activate() error {
	if err := s.lifecycle.Activate(); err != nil {
		return err
	}
	s.logger.Info().Msg("Transcription session established")

	s.mu.Lock()
	pending := s.pendingStart
	s.pendingStart = nil
	s.mu.Unlock()

	if pending != nil {
		s.sendStart(pending)
	}
	return nil
}

// OnAudio relays one binary frame to the transcription session. Frames
// arriving before the handshake completes, or after close, are dropped.
func (s *Session) OnAudio(frame []byte) {
	if !s.lifecycle.CanRelay() {
		reason := "handshake_pending"
		if s.lifecycle.State() != StateOpening {
			reason = "session_closed"
		}
		s.metrics.RecordAudioDropped(reason)
		return
	}

	s.mu.Lock()
	transcriber := s.transcriber
	s.mu.Unlock()
	if transcriber == nil {
		s.metrics.RecordAudioDropped("handshake_pending")
		return
	}

	if err := transcriber.SendAudio(frame); err != nil {
		s.metrics.RecordAudioDropped("send_failed")
		s.logger.Debug().Err(err).Msg("Audio relay failed")
		return
	}
	s.metrics.RecordAudioRelayed(len(frame))
}

// OnControl handles a control JSON object from the call leg. The first one
// becomes the start configuration: the session stamps the fixed start
// fields and forwards it once the transcription session is ready. Later
// control objects are ignored.
func (s *Session) OnControl(payload []byte) {
	merged, err := models.MergeStartFields(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring unparseable control message")
		return
	}

	s.mu.Lock()
	if s.startClaimed {
		s.mu.Unlock()
		s.logger.Debug().Msg("Start configuration already sent, ignoring control message")
		return
	}
	s.startClaimed = true
	active := s.transcriber != nil && s.lifecycle.CanRelay()
	if !active {
		// Handshake still in flight; hold the start config until it resolves.
		s.pendingStart = merged
	}
	s.mu.Unlock()

	if active {
		s.sendStart(merged)
	}
}

func (s *Session) sendStart(config []byte) {
	s.mu.Lock()
	transcriber := s.transcriber
	s.mu.Unlock()
	if transcriber == nil {
		return
	}
	if err := transcriber.SendStart(config); err != nil {
		s.logger.Error().Err(err).Msg("Failed to send start configuration")
		return
	}
	s.logger.Info().Msg("Start configuration sent")
}

// OnTranscript receives one transcript event from the transcription session.
// Tone analysis runs synchronously here, so events for this session are
// processed one at a time, in order.
func (s *Session) OnTranscript(ev models.TranscriptEvent) {
	text, final, ok := ev.Transcript()
	if !ok || text == "" {
		return
	}
	s.metrics.RecordTranscript(final)
	s.logger.Info().Str("transcript", text).Bool("final", final).Msg("Transcript received")

	if s.publisher != nil {
		record := models.TranscriptRecord{
			EventType: "call.transcript",
			CallID:    s.id,
			Timestamp: time.Now().UnixMilli(),
			Text:      text,
			Final:     final,
		}
		if err := s.publisher.PublishTranscript(s.ctx, s.id, record); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish transcript event")
		}
	}

	result, err := s.analyzer.Analyze(s.ctx, text)
	if err != nil {
		// Fatal to this transcript only; the session carries on.
		s.logger.Error().Err(err).Str("transcript", text).Msg("Tone analysis failed, dropping transcript")
		return
	}

	// The round trip may have outlived the call; never broadcast for a
	// session that has begun closing.
	if !s.lifecycle.CanRelay() {
		s.logger.Debug().Msg("Discarding tone result for closed session")
		return
	}

	payload, err := result.DashboardPayload()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode tone result")
		return
	}
	s.hub.Broadcast(payload)

	if s.publisher != nil {
		record := models.ToneRecord{
			EventType: "call.tone",
			CallID:    s.id,
			Timestamp: time.Now().UnixMilli(),
			Text:      text,
			Tones:     result.Tones,
		}
		if err := s.publisher.PublishTone(s.ctx, s.id, record); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish tone event")
		}
	}
}

// OnError is invoked when the transcription session's receive path fails.
// The call continues; remaining audio is dropped at the relay boundary.
func (s *Session) OnError(err error) {
	s.logger.Warn().Err(err).Msg("Transcription session receive failed")
}

// Close releases the transcription session (issuing its stop message) and
// moves the session to CLOSED. Idempotent.
func (s *Session) Close() {
	if !s.lifecycle.BeginClose() {
		return
	}
	s.shutdown()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		transcriber := s.transcriber
		s.transcriber = nil
		s.mu.Unlock()

		if transcriber != nil {
			if err := transcriber.Close(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to close transcription session")
			}
		}

		s.lifecycle.FinishClose()
		s.metrics.RecordCallEnd(time.Since(s.openedAt).Seconds())
		s.logger.Info().Dur("duration", time.Since(s.openedAt)).Msg("Call session closed")
	})
}

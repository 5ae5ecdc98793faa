// Package watson provides a Watson-style streaming speech-to-text session
// over WebSocket, authenticated with a per-session token.
package watson

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"call-sentiment-gateway/internal/config"
	"call-sentiment-gateway/internal/models"
	"call-sentiment-gateway/internal/observability/logging"
	"call-sentiment-gateway/internal/service/transcribe"
)

// Dialer establishes Watson streaming sessions.
type Dialer struct {
	cfg        config.TranscriptionConfig
	httpClient *http.Client
	wsDialer   *websocket.Dialer
}

// NewDialer creates a dialer for the configured endpoint.
func NewDialer(cfg config.TranscriptionConfig) *Dialer {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dialer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		wsDialer:   &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

// Dial fetches a session token, connects to the streaming endpoint, and
// starts the receive loop. Blocks until the connection is established.
func (d *Dialer) Dial(ctx context.Context, callId string, h transcribe.Handler) (transcribe.Session, error) {
	tok, err := d.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %v", transcribe.ErrTranscriptionUnavailable, err)
	}

	u, err := url.Parse(d.cfg.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("%w: stream url: %v", transcribe.ErrTranscriptionUnavailable, err)
	}
	q := u.Query()
	q.Set("watson-token", tok)
	q.Set("model", d.cfg.Model)
	u.RawQuery = q.Encode()

	conn, _, err := d.wsDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", transcribe.ErrTranscriptionUnavailable, err)
	}

	s := &Session{
		conn:    conn,
		handler: h,
		logger:  logging.WithTranscription(callId, d.cfg.Model),
	}
	go s.listen()
	return s, nil
}

// Session is one live connection to the streaming endpoint.
type Session struct {
	conn    *websocket.Conn
	handler transcribe.Handler
	logger  zerolog.Logger

	writeMu  sync.Mutex
	closed   atomic.Bool
	stopOnce sync.Once
}

// SendAudio forwards a binary audio frame verbatim.
func (s *Session) SendAudio(frame []byte) error {
	return s.write(websocket.BinaryMessage, frame)
}

// SendStart forwards the start configuration as a text frame.
func (s *Session) SendStart(config []byte) error {
	return s.write(websocket.TextMessage, config)
}

// Close sends the stop control message once, then closes the connection.
// Subsequent calls have no effect.
func (s *Session) Close() error {
	s.stopOnce.Do(func() {
		s.closed.Store(true)

		stop, err := json.Marshal(models.NewStopMessage())
		if err == nil {
			if err := s.write(websocket.TextMessage, stop); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to send stop message")
			}
		}
		if err := s.conn.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close transcription connection")
		}
	})
	return nil
}

func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// listen is the receive loop. It runs until the connection closes and
// delivers transcript events to the handler in arrival order.
func (s *Session) listen() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.handler.OnError(err)
			}
			return
		}

		ev, err := models.ParseTranscriptEvent(data)
		if err != nil {
			// Malformed endpoint messages are ignored, not surfaced.
			s.logger.Debug().Err(err).Msg("Ignoring malformed transcript event")
			continue
		}
		if _, _, ok := ev.Transcript(); !ok {
			// Silence / keep-alive events carry no results.
			continue
		}
		s.handler.OnTranscript(ev)
	}
}

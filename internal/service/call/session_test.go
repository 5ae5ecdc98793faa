package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"call-sentiment-gateway/internal/models"
	"call-sentiment-gateway/internal/service/transcribe"
)

// fakeTranscriber records every operation in order.
type fakeTranscriber struct {
	mu     sync.Mutex
	ops    []string
	frames [][]byte
	starts [][]byte
	closes int
}

func (f *fakeTranscriber) SendAudio(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "audio")
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTranscriber) SendStart(config []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "start")
	f.starts = append(f.starts, append([]byte(nil), config...))
	return nil
}

func (f *fakeTranscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes == 0 {
		f.ops = append(f.ops, "stop")
	}
	f.closes++
	return nil
}

func (f *fakeTranscriber) snapshot() (ops []string, frames [][]byte, starts [][]byte, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...), f.frames, f.starts, f.closes
}

// fakeDialer hands out one transcriber, optionally failing or blocking the
// handshake until released.
type fakeDialer struct {
	transcriber *fakeTranscriber
	err         error
	block       chan struct{} // if non-nil, Dial waits on it
}

func (d *fakeDialer) Dial(ctx context.Context, callId string, h transcribe.Handler) (transcribe.Session, error) {
	if d.block != nil {
		<-d.block
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.transcriber, nil
}

// fakeAnalyzer returns a fixed result, optionally blocking until released.
type fakeAnalyzer struct {
	mu     sync.Mutex
	texts  []string
	result models.ToneResult
	err    error
	block  chan struct{}
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, text string) (models.ToneResult, error) {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	if a.block != nil {
		<-a.block
	}
	if a.err != nil {
		return models.ToneResult{}, a.err
	}
	return a.result, nil
}

func (a *fakeAnalyzer) analyzed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

// fakeHub records broadcast payloads.
type fakeHub struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (h *fakeHub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, append([]byte(nil), payload...))
}

func (h *fakeHub) broadcasts() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.payloads...)
}

func joyResult() models.ToneResult {
	return models.ToneResult{
		Transcript: "hello there",
		Tones:      []models.Tone{{ToneID: "joy", ToneName: "Joy", Score: 0.8}},
	}
}

func transcriptEvent(text string, final bool) models.TranscriptEvent {
	return models.TranscriptEvent{
		Results: []models.TranscriptResult{{
			Alternatives: []models.TranscriptAlternative{{Transcript: text}},
			Final:        final,
		}},
	}
}

func openSession(t *testing.T, d *fakeDialer, a *fakeAnalyzer, h *fakeHub) *Session {
	t.Helper()
	s := NewSession("call-1", d, a, h, nil)
	if err := s.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake to resolve")
	}
}

func TestSession_EndToEnd(t *testing.T) {
	transcriber := &fakeTranscriber{}
	dialer := &fakeDialer{transcriber: transcriber}
	analyzer := &fakeAnalyzer{result: joyResult()}
	hub := &fakeHub{}

	s := openSession(t, dialer, analyzer, hub)
	waitReady(t, s)

	if s.State() != StateActive {
		t.Fatalf("expected ACTIVE after handshake, got %v", s.State())
	}

	s.OnControl([]byte(`{"content-type":"audio/l16;rate=16000"}`))
	s.OnAudio([]byte{0xAA, 0xAA})
	s.OnTranscript(transcriptEvent("hello there", true))

	if got := analyzer.analyzed(); len(got) != 1 || got[0] != "hello there" {
		t.Errorf("expected analyzer called with 'hello there', got %v", got)
	}

	broadcasts := hub.broadcasts()
	if len(broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(broadcasts))
	}
	want := `[{"tone_id":"joy","tone_name":"Joy","score":0.8}]`
	if string(broadcasts[0]) != want {
		t.Errorf("expected broadcast %s, got %s", want, broadcasts[0])
	}

	ops, frames, _, _ := transcriber.snapshot()
	if len(ops) < 2 || ops[0] != "start" || ops[1] != "audio" {
		t.Errorf("expected start before audio, got %v", ops)
	}
	if len(frames) != 1 || frames[0][0] != 0xAA {
		t.Errorf("expected the audio frame relayed verbatim, got %v", frames)
	}
}

func TestSession_StartOnceStopOnce(t *testing.T) {
	transcriber := &fakeTranscriber{}
	dialer := &fakeDialer{transcriber: transcriber}

	s := openSession(t, dialer, &fakeAnalyzer{result: joyResult()}, &fakeHub{})
	waitReady(t, s)

	s.OnControl([]byte(`{"a":1}`))
	s.OnControl([]byte(`{"a":2}`)) // second control must not resend start
	s.Close()
	s.Close() // idempotent

	ops, _, starts, closes := transcriber.snapshot()
	if len(starts) != 1 {
		t.Fatalf("expected exactly one start, got %d", len(starts))
	}
	if closes != 1 {
		t.Fatalf("expected exactly one close, got %d", closes)
	}
	if len(ops) != 2 || ops[0] != "start" || ops[1] != "stop" {
		t.Errorf("expected start strictly before stop, got %v", ops)
	}
	if s.State() != StateClosed {
		t.Errorf("expected CLOSED after Close, got %v", s.State())
	}
}

func TestSession_StartConfigCarriesFixedFields(t *testing.T) {
	transcriber := &fakeTranscriber{}
	dialer := &fakeDialer{transcriber: transcriber}

	s := openSession(t, dialer, &fakeAnalyzer{}, &fakeHub{})
	waitReady(t, s)

	s.OnControl([]byte(`{"content-type":"audio/l16;rate=16000"}`))

	_, _, starts, _ := transcriber.snapshot()
	if len(starts) != 1 {
		t.Fatalf("expected one start config, got %d", len(starts))
	}
	for _, want := range []string{`"action":"start"`, `"continuous":true`, `"interim_results":true`, `"content-type"`} {
		if !contains(starts[0], want) {
			t.Errorf("start config missing %s: %s", want, starts[0])
		}
	}
}

func contains(b []byte, sub string) bool {
	s := string(b)
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestSession_AudioDroppedWhileOpening(t *testing.T) {
	transcriber := &fakeTranscriber{}
	release := make(chan struct{})
	dialer := &fakeDialer{transcriber: transcriber, block: release}

	s := openSession(t, dialer, &fakeAnalyzer{}, &fakeHub{})

	// Handshake still in flight: these frames are dropped, not buffered.
	s.OnAudio([]byte{0x01})
	s.OnAudio([]byte{0x02})

	close(release)
	waitReady(t, s)

	s.OnAudio([]byte{0x03})

	_, frames, _, _ := transcriber.snapshot()
	if len(frames) != 1 || frames[0][0] != 0x03 {
		t.Errorf("expected only the post-handshake frame, got %v", frames)
	}
}

func TestSession_StartHeldUntilHandshakeResolves(t *testing.T) {
	transcriber := &fakeTranscriber{}
	release := make(chan struct{})
	dialer := &fakeDialer{transcriber: transcriber, block: release}

	s := openSession(t, dialer, &fakeAnalyzer{}, &fakeHub{})

	s.OnControl([]byte(`{"content-type":"audio/l16;rate=16000"}`))

	if _, _, starts, _ := transcriber.snapshot(); len(starts) != 0 {
		t.Fatal("start must not be sent before the session is ready")
	}

	close(release)
	waitReady(t, s)

	if _, _, starts, _ := transcriber.snapshot(); len(starts) != 1 {
		t.Errorf("expected start sent once the session became ready, got %d", len(starts))
	}
}

func TestSession_ControlInActivationWindowStillStarts(t *testing.T) {
	transcriber := &fakeTranscriber{}
	s := NewSession("call-1", &fakeDialer{transcriber: transcriber}, &fakeAnalyzer{}, &fakeHub{}, nil)

	// Replay the handshake interleaving where a control message lands after
	// the transcriber is attached but before the session turns ACTIVE: the
	// config parks itself and must be flushed by the activation.
	s.attach(transcriber)
	s.OnControl([]byte(`{"content-type":"audio/l16;rate=16000"}`))

	if _, _, starts, _ := transcriber.snapshot(); len(starts) != 0 {
		t.Fatal("start must not be sent while the session is still opening")
	}

	if err := s.activate(); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if _, _, starts, _ := transcriber.snapshot(); len(starts) != 1 {
		t.Fatalf("expected the parked start config sent on activation, got %d starts", len(starts))
	}

	// The claim is spent: a later control message must not resend start.
	s.OnControl([]byte(`{"a":2}`))
	if _, _, starts, _ := transcriber.snapshot(); len(starts) != 1 {
		t.Errorf("expected exactly one start after a later control message, got %d", len(starts))
	}
}

func TestSession_FrameOrderPreserved(t *testing.T) {
	transcriber := &fakeTranscriber{}
	dialer := &fakeDialer{transcriber: transcriber}

	s := openSession(t, dialer, &fakeAnalyzer{}, &fakeHub{})
	waitReady(t, s)

	for i := 0; i < 32; i++ {
		s.OnAudio([]byte{byte(i)})
	}

	_, frames, _, _ := transcriber.snapshot()
	if len(frames) != 32 {
		t.Fatalf("expected 32 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f[0] != byte(i) {
			t.Fatalf("frame %d out of order: got %d", i, f[0])
		}
	}
}

func TestSession_HandshakeFailureClosesSession(t *testing.T) {
	dialer := &fakeDialer{err: fmt.Errorf("%w: bad credentials", transcribe.ErrTranscriptionUnavailable)}
	analyzer := &fakeAnalyzer{}

	s := openSession(t, dialer, analyzer, &fakeHub{})
	waitReady(t, s)

	if s.State() != StateClosed {
		t.Fatalf("expected CLOSED after handshake failure, got %v", s.State())
	}

	// No audio is ever relayed for this call, and reopening is rejected.
	s.OnAudio([]byte{0xAA})
	if err := s.Open(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed on reopen, got %v", err)
	}
	if got := analyzer.analyzed(); len(got) != 0 {
		t.Errorf("no analysis expected, got %v", got)
	}
}

func TestSession_EmptyResultsProduceNothing(t *testing.T) {
	dialer := &fakeDialer{transcriber: &fakeTranscriber{}}
	analyzer := &fakeAnalyzer{result: joyResult()}
	hub := &fakeHub{}

	s := openSession(t, dialer, analyzer, hub)
	waitReady(t, s)

	s.OnTranscript(models.TranscriptEvent{})
	s.OnTranscript(models.TranscriptEvent{Results: []models.TranscriptResult{}})

	if got := analyzer.analyzed(); len(got) != 0 {
		t.Errorf("empty results must not reach tone analysis, got %v", got)
	}
	if got := hub.broadcasts(); len(got) != 0 {
		t.Errorf("empty results must not broadcast, got %d payloads", len(got))
	}
}

func TestSession_ToneFailureDropsTranscriptOnly(t *testing.T) {
	dialer := &fakeDialer{transcriber: &fakeTranscriber{}}
	analyzer := &fakeAnalyzer{err: errors.New("tone analysis failed")}
	hub := &fakeHub{}

	s := openSession(t, dialer, analyzer, hub)
	waitReady(t, s)

	s.OnTranscript(transcriptEvent("doomed transcript", false))

	if len(hub.broadcasts()) != 0 {
		t.Error("failed analysis must not broadcast")
	}
	if s.State() != StateActive {
		t.Errorf("tone failure must not close the session, state %v", s.State())
	}

	// The next transcript goes through normally.
	analyzer.err = nil
	analyzer.result = joyResult()
	s.OnTranscript(transcriptEvent("hello there", true))

	if len(hub.broadcasts()) != 1 {
		t.Errorf("expected session to recover, got %d broadcasts", len(hub.broadcasts()))
	}
}

func TestSession_LateToneResultDiscardedAfterClose(t *testing.T) {
	dialer := &fakeDialer{transcriber: &fakeTranscriber{}}
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{result: joyResult(), block: release}
	hub := &fakeHub{}

	s := openSession(t, dialer, analyzer, hub)
	waitReady(t, s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.OnTranscript(transcriptEvent("hello there", true))
	}()

	// Wait until the analysis round trip is in flight, then close the call.
	for i := 0; len(analyzer.analyzed()) == 0 && i < 100; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	s.Close()
	close(release)
	<-done

	if got := hub.broadcasts(); len(got) != 0 {
		t.Errorf("tone result arriving after close must be discarded, got %d broadcasts", len(got))
	}
}

func TestSession_IndependentSessionsUseOwnTranscribers(t *testing.T) {
	tA := &fakeTranscriber{}
	tB := &fakeTranscriber{}

	sA := openSession(t, &fakeDialer{transcriber: tA}, &fakeAnalyzer{}, &fakeHub{})
	sB := openSession(t, &fakeDialer{transcriber: tB}, &fakeAnalyzer{}, &fakeHub{})
	waitReady(t, sA)
	waitReady(t, sB)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			sA.OnAudio([]byte{0xA0})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			sB.OnAudio([]byte{0xB0})
		}
	}()
	wg.Wait()

	_, framesA, _, _ := tA.snapshot()
	_, framesB, _, _ := tB.snapshot()
	if len(framesA) != 20 || len(framesB) != 20 {
		t.Fatalf("expected 20 frames each, got %d and %d", len(framesA), len(framesB))
	}
	for _, f := range framesA {
		if f[0] != 0xA0 {
			t.Fatal("session A transcriber saw session B audio")
		}
	}
	for _, f := range framesB {
		if f[0] != 0xB0 {
			t.Fatal("session B transcriber saw session A audio")
		}
	}
}

func TestSession_CloseDuringHandshakeReleasesTranscriber(t *testing.T) {
	transcriber := &fakeTranscriber{}
	release := make(chan struct{})
	dialer := &fakeDialer{transcriber: transcriber, block: release}

	s := openSession(t, dialer, &fakeAnalyzer{}, &fakeHub{})
	s.Close()
	close(release)
	waitReady(t, s)

	if s.State() != StateClosed {
		t.Fatalf("expected CLOSED, got %v", s.State())
	}
	_, _, _, closes := transcriber.snapshot()
	if closes != 1 {
		t.Errorf("transcriber acquired after close must be released, closes=%d", closes)
	}
}

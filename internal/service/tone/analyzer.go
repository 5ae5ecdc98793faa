// Package tone wraps the sentiment analysis round trip: transcript text in,
// tone categories out.
package tone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"call-sentiment-gateway/internal/config"
	"call-sentiment-gateway/internal/models"
	"call-sentiment-gateway/internal/observability/metrics"
)

// ErrToneAnalysisFailed reports a failed analysis round trip: network error,
// non-success response, or a response body missing the expected tone
// structure. The caller decides whether to retry; this package never does.
var ErrToneAnalysisFailed = errors.New("tone analysis failed")

// Analyzer performs single round trips to the sentiment service.
type Analyzer struct {
	cfg     config.ToneConfig
	client  *http.Client
	metrics *metrics.Metrics
}

// New creates an analyzer for the configured endpoint.
func New(cfg config.ToneConfig) *Analyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Analyzer{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		metrics: metrics.DefaultMetrics,
	}
}

// toneResponse is the service's response envelope.
type toneResponse struct {
	DocumentTone struct {
		ToneCategories []struct {
			Tones []models.Tone `json:"tones"`
		} `json:"tone_categories"`
	} `json:"document_tone"`
}

// Analyze sends text to the sentiment service and returns its tone sequence.
// text must be non-empty.
func (a *Analyzer) Analyze(ctx context.Context, text string) (models.ToneResult, error) {
	if text == "" {
		return models.ToneResult{}, fmt.Errorf("%w: empty text", ErrToneAnalysisFailed)
	}

	start := time.Now()
	result, err := a.analyze(ctx, text)
	a.metrics.RecordToneCall(err, time.Since(start).Seconds())
	return result, err
}

func (a *Analyzer) analyze(ctx context.Context, text string) (models.ToneResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, strings.NewReader(text))
	if err != nil {
		return models.ToneResult{}, fmt.Errorf("%w: %v", ErrToneAnalysisFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.SetBasicAuth(a.cfg.Username, a.cfg.Password)

	resp, err := a.client.Do(req)
	if err != nil {
		return models.ToneResult{}, fmt.Errorf("%w: %v", ErrToneAnalysisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.ToneResult{}, fmt.Errorf("%w: %s: %s", ErrToneAnalysisFailed, resp.Status, body)
	}

	var out toneResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.ToneResult{}, fmt.Errorf("%w: decode: %v", ErrToneAnalysisFailed, err)
	}
	if len(out.DocumentTone.ToneCategories) == 0 {
		return models.ToneResult{}, fmt.Errorf("%w: response missing tone categories", ErrToneAnalysisFailed)
	}

	return models.ToneResult{
		Transcript: text,
		Tones:      out.DocumentTone.ToneCategories[0].Tones,
	}, nil
}

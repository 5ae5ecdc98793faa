// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds the HTTP listener and public address settings.
type ServiceConfig struct {
	Principal     string
	HTTPPort      string
	MetricsPort   string
	ServerURL     string // public base URL the call provider reaches us on
	VirtualNumber string // caller ID used in the call-flow document
	StaticDir     string
}

// TranscriptionConfig holds the speech-to-text endpoint settings.
type TranscriptionConfig struct {
	StreamURL   string // wss endpoint for streaming recognition
	TokenURL    string // http endpoint that issues session tokens
	ResourceURL string // API base URL the token is scoped to
	Username    string
	Password    string
	Model       string
	DialTimeout time.Duration
}

// ToneConfig holds the sentiment analysis endpoint settings.
type ToneConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// DashboardConfig holds fan-out settings for observer sockets.
type DashboardConfig struct {
	WriteTimeout time.Duration
}

// KafkaConfig holds optional event publication settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicTone       string
}

// Configuration is the root configuration for the gateway.
type Configuration struct {
	Service       ServiceConfig
	Transcription TranscriptionConfig
	Tone          ToneConfig
	Dashboard     DashboardConfig
	Kafka         KafkaConfig
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:     envOrDefault("SERVICE_PRINCIPAL", "svc-call-sentiment"),
			HTTPPort:      envOrDefault("HTTP_PORT", "8000"),
			MetricsPort:   envOrDefault("METRICS_PORT", "9090"),
			ServerURL:     envOrDefault("SERVER_URL", "http://localhost:8000"),
			VirtualNumber: os.Getenv("VIRTUAL_NUMBER"),
			StaticDir:     envOrDefault("STATIC_DIR", "static"),
		},
		Transcription: TranscriptionConfig{
			StreamURL:   envOrDefault("TRANSCRIPTION_STREAM_URL", "wss://stream.watsonplatform.net/speech-to-text/api/v1/recognize"),
			TokenURL:    envOrDefault("TRANSCRIPTION_TOKEN_URL", "https://stream.watsonplatform.net/authorization/api/v1/token"),
			ResourceURL: envOrDefault("TRANSCRIPTION_RESOURCE_URL", "https://stream.watsonplatform.net/speech-to-text/api"),
			Username:    os.Getenv("TRANSCRIPTION_USERNAME"),
			Password:    os.Getenv("TRANSCRIPTION_PASSWORD"),
			Model:       envOrDefault("TRANSCRIPTION_MODEL", "en-UK_NarrowbandModel"),
			DialTimeout: envDurationOrDefault("TRANSCRIPTION_DIAL_TIMEOUT", 10*time.Second),
		},
		Tone: ToneConfig{
			URL:      envOrDefault("TONE_URL", "https://gateway.watsonplatform.net/tone-analyzer/api/v3/tone?version=2017-09-21"),
			Username: os.Getenv("TONE_USERNAME"),
			Password: os.Getenv("TONE_PASSWORD"),
			Timeout:  envDurationOrDefault("TONE_TIMEOUT", 10*time.Second),
		},
		Dashboard: DashboardConfig{
			WriteTimeout: envDurationOrDefault("DASHBOARD_WRITE_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:         envListOrDefault("KAFKA_BROKERS", nil),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "call.transcript"),
			TopicTone:       envOrDefault("KAFKA_TOPIC_TONE", "call.tone"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envListOrDefault(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package events provides optional Kafka publication of transcripts and
// tone results for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"call-sentiment-gateway/internal/observability/metrics"
)

// Publisher publishes call events to separate Kafka topics.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerTone       *kafka.Writer
	principal        string
	topicTranscript  string
	topicTone        string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicTone       string
	Principal       string
	Enabled         bool
}

// New creates a Kafka publisher with separate topics for transcripts and
// tone results. With Kafka disabled the publisher runs in log-only mode.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicTranscript: cfg.TopicTranscript,
			topicTone:       cfg.TopicTone,
			enabled:         false,
			metrics:         m,
		}
	}

	// Dial timeout sized to tolerate slow broker DNS at startup
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerTranscript := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranscript,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerTone := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTone,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicTone", cfg.TopicTone).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscript: writerTranscript,
		writerTone:       writerTone,
		principal:        cfg.Principal,
		topicTranscript:  cfg.TopicTranscript,
		topicTone:        cfg.TopicTone,
		enabled:          true,
		metrics:          m,
	}
}

// Ready reports whether the publisher can accept events. Log-only mode is
// always ready; with Kafka enabled both writers must be initialized.
func (p *Publisher) Ready() error {
	if !p.enabled {
		return nil
	}
	if p.writerTranscript == nil || p.writerTone == nil {
		return errors.New("kafka writers not initialized")
	}
	return nil
}

// PublishTranscript publishes a transcript event to the transcript topic.
func (p *Publisher) PublishTranscript(ctx context.Context, callId string, event any) error {
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, "transcript", callId, event)
}

// PublishTone publishes a tone result event to the tone topic.
func (p *Publisher) PublishTone(ctx context.Context, callId string, event any) error {
	return p.publish(ctx, p.writerTone, p.topicTone, "tone", callId, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerTone != nil {
		if e := p.writerTone.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing tone writer")
			err = e
		}
	}
	return err
}

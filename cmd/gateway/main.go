package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"call-sentiment-gateway/internal/app"
	"call-sentiment-gateway/internal/config"
	"call-sentiment-gateway/internal/dashboard"
	"call-sentiment-gateway/internal/events"
	gatewayhttp "call-sentiment-gateway/internal/http"
	"call-sentiment-gateway/internal/observability"
	"call-sentiment-gateway/internal/service/tone"
	"call-sentiment-gateway/internal/service/transcribe/watson"
)

func main() {
	cfg := config.Load()

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}
	defer application.Shutdown()

	// Kafka publisher for downstream transcript/tone consumers
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicTone:       cfg.Kafka.TopicTone,
		Principal:       cfg.Service.Principal,
	})
	defer publisher.Close()

	handlers := &gatewayhttp.Handlers{
		Config:    cfg,
		Dialer:    watson.NewDialer(cfg.Transcription),
		Analyzer:  tone.New(cfg.Tone),
		Hub:       dashboard.NewHub(),
		Publisher: publisher,
	}

	server := &http.Server{
		Addr:        ":" + cfg.Service.HTTPPort,
		Handler:     gatewayhttp.NewRouter(handlers),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	obsServer := observability.NewServer(":"+cfg.Service.MetricsPort,
		observability.ReadyCheck{Name: "kafka", Check: publisher.Ready},
	)
	obsServer.Start()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Call sentiment gateway listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown failed")
	}
}

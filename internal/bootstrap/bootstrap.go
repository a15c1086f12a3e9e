package bootstrap

import (
	"context"
	"fmt"

	"reservation-bridge/internal/clients/openai"
	"reservation-bridge/internal/config"
	"reservation-bridge/internal/events"
	"reservation-bridge/internal/kafka"
	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/session"

	voiceCallHandler "reservation-bridge/internal/voicecall/handler"
	voiceCallProcessor "reservation-bridge/internal/voicecall/processor"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Logger   *observability.Logger
	Sessions *session.Store

	// Handlers
	VoiceCallHandler   voiceCallHandler.Handler
	VoiceCallProcessor *voiceCallProcessor.VoiceCallProcessor

	// Kafka producer (for cleanup), nil when call events are disabled
	KafkaProducer *kafka.Producer
	Publisher     *events.Publisher
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger:   logger,
		Sessions: session.NewStore(),
	}

	// Initialize clients
	realtimeClient, err := openai.NewRealtimeClient(openai.RealtimeConfig{
		APIKey: cfg.Services.OpenAIAPIKey,
		URL:    cfg.Services.OpenAIRealtimeURL,
		Model:  cfg.Services.OpenAIRealtimeModel,
		Voice:  cfg.Services.OpenAIVoice,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create realtime client: %w", err)
	}

	// Initialize call event publishing
	if cfg.Kafka.Enabled() {
		deps.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			Compression: "snappy",
		}, logger)
		deps.Publisher = events.NewPublisher(deps.KafkaProducer, logger)
		logger.Info(ctx, fmt.Sprintf("Publishing call events to topic %s", cfg.Kafka.Topic))
	} else {
		deps.Publisher = events.NewPublisher(nil, logger)
		logger.Info(ctx, "KAFKA_BROKERS not set, call events disabled")
	}

	// Initialize voice call processor and handler
	deps.VoiceCallProcessor = voiceCallProcessor.NewVoiceCallProcessor(
		realtimeClient,
		deps.Sessions,
		deps.Publisher,
		voiceCallProcessor.CallConfig(*cfg),
		logger,
	)
	deps.VoiceCallHandler = voiceCallHandler.New(deps.VoiceCallProcessor, cfg.Server.PublicStreamURL, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup. Live calls must have ended
// first, see VoiceCallProcessor.Shutdown.
func (d *Dependencies) Cleanup() {
	if d.KafkaProducer != nil {
		ctx := context.Background()
		stats := d.KafkaProducer.Stats()
		d.Logger.Metrics(ctx,
			observability.MetricField{Key: "metric", Value: "kafka_producer"},
			observability.MetricField{Key: "topic", Value: stats.Topic},
			observability.MetricField{Key: "writes", Value: stats.Writes},
			observability.MetricField{Key: "messages", Value: stats.Messages},
			observability.MetricField{Key: "bytes", Value: stats.Bytes},
			observability.MetricField{Key: "errors", Value: stats.Errors},
		)
		if err := d.KafkaProducer.Close(); err != nil {
			d.Logger.Error(ctx, "failed to close kafka producer", err)
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"reservation-bridge/internal/kafka"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Services ServicesConfig
	Call     CallConfig
	Kafka    KafkaConfig
	Server   ServerConfig
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	OpenAIAPIKey        string
	OpenAIRealtimeURL   string
	OpenAIRealtimeModel string
	OpenAIVoice         string
}

// CallConfig holds the fixed timings used by every bridged call
type CallConfig struct {
	// SpeechLegInitDelay is how long the bridge waits after dialing the speech
	// service before sending the session configuration.
	SpeechLegInitDelay time.Duration
	// HangupDelay is a static estimate of how long the closing utterance takes
	// to play before the call is stopped.
	HangupDelay time.Duration
}

// KafkaConfig holds call event streaming configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether call events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	// PublicStreamURL is the wss:// address Twilio is told to stream the call to.
	PublicStreamURL string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	var err error
	if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	cfg.Services.OpenAIRealtimeURL = getEnvWithDefault("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime")
	cfg.Services.OpenAIRealtimeModel = getEnvWithDefault("OPENAI_REALTIME_MODEL", "gpt-realtime")
	cfg.Services.OpenAIVoice = getEnvWithDefault("OPENAI_VOICE", "alloy")

	if cfg.Server.PublicStreamURL, err = requireEnv("PUBLIC_STREAM_URL"); err != nil {
		return nil, err
	}
	serverPort := getEnvWithDefault("SERVER_PORT", "5050")
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	if cfg.Call.SpeechLegInitDelay, err = durationMsFromEnv("SPEECH_LEG_INIT_DELAY_MS", "100"); err != nil {
		return nil, err
	}
	if cfg.Call.HangupDelay, err = durationMsFromEnv("HANGUP_DELAY_MS", "8000"); err != nil {
		return nil, err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.Topic = getEnvWithDefault("KAFKA_CALL_EVENTS_TOPIC", kafka.TopicCallEvents)

	return cfg, nil
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func durationMsFromEnv(key, defaultValue string) (time.Duration, error) {
	ms, err := strconv.Atoi(getEnvWithDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

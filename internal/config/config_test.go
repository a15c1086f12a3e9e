package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PUBLIC_STREAM_URL", "wss://bridge.example.com/api/phone/media-stream")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Services.OpenAIAPIKey)
	assert.Equal(t, "alloy", cfg.Services.OpenAIVoice)
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Call.SpeechLegInitDelay)
	assert.Equal(t, 8*time.Second, cfg.Call.HangupDelay)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "voicecall.events.call", cfg.Kafka.Topic)
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	if !errors.Is(err, ErrEmptyEnvironmentVariable) {
		t.Fatalf("expected ErrEmptyEnvironmentVariable, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("HANGUP_DELAY_MS", "2500")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 2500*time.Millisecond, cfg.Call.HangupDelay)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestLoad_InvalidDelay(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not a number", value: "soon"},
		{name: "negative", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("SPEECH_LEG_INIT_DELAY_MS", tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

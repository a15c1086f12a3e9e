package openai

import (
	"encoding/json"
	"errors"
	"testing"

	"reservation-bridge/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRealtimeClient(t *testing.T) {
	logger := observability.NewLogger()

	t.Run("requires api key", func(t *testing.T) {
		_, err := NewRealtimeClient(RealtimeConfig{}, logger)
		assert.Error(t, err)
	})

	t.Run("defaults url and appends model", func(t *testing.T) {
		c, err := NewRealtimeClient(RealtimeConfig{APIKey: "sk-test", Model: "gpt-realtime", Voice: "alloy"}, logger)
		require.NoError(t, err)

		endpoint, err := c.endpoint()
		require.NoError(t, err)
		assert.Equal(t, "wss://api.openai.com/v1/realtime?model=gpt-realtime", endpoint)
		assert.Equal(t, "alloy", c.Voice())
	})

	t.Run("keeps custom url query", func(t *testing.T) {
		c, err := NewRealtimeClient(RealtimeConfig{APIKey: "sk-test", URL: "ws://localhost:9000/rt?x=1"}, logger)
		require.NoError(t, err)

		endpoint, err := c.endpoint()
		require.NoError(t, err)
		assert.Equal(t, "ws://localhost:9000/rt?x=1", endpoint)
	})
}

func TestSessionUpdate(t *testing.T) {
	ev := SessionUpdate(SessionConfig{
		Model:        "gpt-realtime",
		Voice:        "alloy",
		Instructions: "be brief",
		Tools: []Tool{{
			Type:       "function",
			Name:       "update_reservation",
			Parameters: map[string]any{"type": "object"},
		}},
	})

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "session.update",
		"session": {
			"type": "realtime",
			"model": "gpt-realtime",
			"output_modalities": ["audio"],
			"audio": {
				"input": {"format": {"type": "audio/pcmu"}, "turn_detection": {"type": "server_vad"}},
				"output": {"format": {"type": "audio/pcmu"}, "voice": "alloy"}
			},
			"instructions": "be brief",
			"tools": [{"type": "function", "name": "update_reservation", "parameters": {"type": "object"}}],
			"tool_choice": "auto"
		}
	}`, string(raw))
}

func TestSessionUpdateWithoutTools(t *testing.T) {
	raw, err := json.Marshal(SessionUpdate(SessionConfig{}))
	require.NoError(t, err)

	var decoded struct {
		Session struct {
			Tools []Tool `json:"tools"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotNil(t, decoded.Session.Tools)
	assert.Empty(t, decoded.Session.Tools)
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		ev   ClientEvent
		want string
	}{
		{
			name: "append",
			ev:   AppendAudio("f39/fw=="),
			want: `{"type":"input_audio_buffer.append","audio":"f39/fw=="}`,
		},
		{
			name: "truncate",
			ev:   Truncate("item_1", 1500),
			want: `{"type":"conversation.item.truncate","item_id":"item_1","content_index":0,"audio_end_ms":1500}`,
		},
		{
			name: "truncate at zero keeps fields",
			ev:   Truncate("item_1", 0),
			want: `{"type":"conversation.item.truncate","item_id":"item_1","content_index":0,"audio_end_ms":0}`,
		},
		{
			name: "assistant message",
			ev:   AssistantMessage("What time?"),
			want: `{"type":"conversation.item.create","item":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"What time?"}]}}`,
		},
		{
			name: "response create",
			ev:   ResponseCreate(),
			want: `{"type":"response.create"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestParseServerEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ServerEvent
		wantErr bool
	}{
		{
			name: "function call done",
			raw:  `{"type":"response.function_call_arguments.done","name":"update_reservation","arguments":"{\"name\":\"Ana\"}","call_id":"call_1","item_id":"it"}`,
			want: FunctionCall{Type: "response.function_call_arguments.done", Name: "update_reservation", Arguments: `{"name":"Ana"}`, CallID: "call_1"},
		},
		{
			name: "legacy function call",
			raw:  `{"type":"response.function_call","name":"update_reservation","arguments":"{}"}`,
			want: FunctionCall{Type: "response.function_call", Name: "update_reservation", Arguments: "{}"},
		},
		{
			name: "audio delta",
			raw:  `{"type":"response.output_audio.delta","response_id":"r","item_id":"item_9","output_index":0,"content_index":0,"delta":"AAEC"}`,
			want: AudioDelta{Type: "response.output_audio.delta", Delta: "AAEC", ItemID: "item_9"},
		},
		{
			name: "legacy audio delta",
			raw:  `{"type":"response.audio.delta","item_id":"item_9","delta":"AAEC"}`,
			want: AudioDelta{Type: "response.audio.delta", Delta: "AAEC", ItemID: "item_9"},
		},
		{
			name: "speech started",
			raw:  `{"type":"input_audio_buffer.speech_started","audio_start_ms":420,"item_id":"x"}`,
			want: SpeechStarted{AudioStartMs: 420},
		},
		{
			name: "error",
			raw:  `{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope"}}`,
			want: ErrorEvent{Code: "bad", Message: "nope"},
		},
		{
			name: "observed",
			raw:  `{"type":"session.updated","session":{}}`,
			want: Observed{Type: "session.updated"},
		},
		{
			name: "unhandled",
			raw:  `{"type":"response.output_audio_transcript.delta","delta":"hi"}`,
			want: Unhandled{Type: "response.output_audio_transcript.delta"},
		},
		{name: "not json", raw: `nope`, wantErr: true},
		{name: "no type", raw: `{"delta":"AA"}`, wantErr: true},
		{name: "function call without name", raw: `{"type":"response.function_call_arguments.done","arguments":"{}"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServerEvent([]byte(tt.raw))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedEvent), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

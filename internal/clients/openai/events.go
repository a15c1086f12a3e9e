package openai

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEvent = errors.New("malformed realtime event")

// ServerEvent is one decoded event from the speech leg.
type ServerEvent interface {
	EventType() string
}

// FunctionCall is a completed tool call.
type FunctionCall struct {
	Type      string
	Name      string
	Arguments string
	CallID    string
}

// AudioDelta is one chunk of assistant audio, base64 as received.
type AudioDelta struct {
	Type   string
	Delta  string
	ItemID string
}

// SpeechStarted means server VAD heard the caller start talking.
type SpeechStarted struct {
	AudioStartMs int64
}

// ErrorEvent is an error reported by the service for this session.
type ErrorEvent struct {
	Code    string
	Message string
}

// Observed is an event kept only for logging.
type Observed struct {
	Type string
}

// Unhandled is any other event.
type Unhandled struct {
	Type string
}

func (e FunctionCall) EventType() string { return e.Type }
func (e AudioDelta) EventType() string   { return e.Type }
func (SpeechStarted) EventType() string  { return "input_audio_buffer.speech_started" }
func (ErrorEvent) EventType() string     { return "error" }
func (e Observed) EventType() string     { return e.Type }
func (e Unhandled) EventType() string    { return e.Type }

// LoggedEventTypes are logged for observability and otherwise ignored.
var LoggedEventTypes = map[string]bool{
	"session.created":                       true,
	"session.updated":                       true,
	"response.done":                         true,
	"response.content.done":                 true,
	"response.output_audio.done":            true,
	"response.output_audio_transcript.done": true,
	"rate_limits.updated":                   true,
	"input_audio_buffer.committed":          true,
	"input_audio_buffer.speech_stopped":     true,
	"conversation.item.truncated":           true,
}

type rawServerEvent struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	Arguments    string `json:"arguments"`
	CallID       string `json:"call_id"`
	Delta        string `json:"delta"`
	ItemID       string `json:"item_id"`
	AudioStartMs int64  `json:"audio_start_ms"`
	Error        *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseServerEvent decodes a raw text frame from the speech leg. Errors wrap
// ErrMalformedEvent.
func ParseServerEvent(raw []byte) (ServerEvent, error) {
	var e rawServerEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch e.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	case "response.function_call_arguments.done", "response.function_call":
		if e.Name == "" {
			return nil, fmt.Errorf("%w: %s without name", ErrMalformedEvent, e.Type)
		}
		return FunctionCall{Type: e.Type, Name: e.Name, Arguments: e.Arguments, CallID: e.CallID}, nil
	case "response.output_audio.delta", "response.audio.delta":
		return AudioDelta{Type: e.Type, Delta: e.Delta, ItemID: e.ItemID}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStarted{AudioStartMs: e.AudioStartMs}, nil
	case "error":
		ev := ErrorEvent{}
		if e.Error != nil {
			ev.Code = e.Error.Code
			ev.Message = e.Error.Message
		}
		return ev, nil
	}

	if LoggedEventTypes[e.Type] {
		return Observed{Type: e.Type}, nil
	}
	return Unhandled{Type: e.Type}, nil
}

package openai

// Tool describes a function the model may call.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// SessionConfig is the per-call configuration sent once the leg is up.
type SessionConfig struct {
	Model        string
	Voice        string
	Instructions string
	Tools        []Tool
}

type audioFormat struct {
	Type string `json:"type"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type audioInput struct {
	Format        audioFormat   `json:"format"`
	TurnDetection turnDetection `json:"turn_detection"`
}

type audioOutput struct {
	Format audioFormat `json:"format"`
	Voice  string      `json:"voice,omitempty"`
}

type sessionAudio struct {
	Input  audioInput  `json:"input"`
	Output audioOutput `json:"output"`
}

type SessionPayload struct {
	Type             string       `json:"type"`
	Model            string       `json:"model,omitempty"`
	OutputModalities []string     `json:"output_modalities"`
	Audio            sessionAudio `json:"audio"`
	Instructions     string       `json:"instructions"`
	Tools            []Tool       `json:"tools"`
	ToolChoice       string       `json:"tool_choice"`
}

type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Item struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ClientEvent is any command sent on the speech leg. Unused fields are omitted.
type ClientEvent struct {
	Type         string          `json:"type"`
	Session      *SessionPayload `json:"session,omitempty"`
	Audio        string          `json:"audio,omitempty"`
	ItemID       string          `json:"item_id,omitempty"`
	ContentIndex *int            `json:"content_index,omitempty"`
	AudioEndMs   *int64          `json:"audio_end_ms,omitempty"`
	Item         *Item           `json:"item,omitempty"`
}

// SessionUpdate declares G.711 mu-law audio both ways (what Twilio streams),
// server-side voice activity detection, the voice, instructions and tools.
func SessionUpdate(cfg SessionConfig) ClientEvent {
	tools := cfg.Tools
	if tools == nil {
		tools = []Tool{}
	}
	return ClientEvent{
		Type: "session.update",
		Session: &SessionPayload{
			Type:             "realtime",
			Model:            cfg.Model,
			OutputModalities: []string{"audio"},
			Audio: sessionAudio{
				Input: audioInput{
					Format:        audioFormat{Type: "audio/pcmu"},
					TurnDetection: turnDetection{Type: "server_vad"},
				},
				Output: audioOutput{
					Format: audioFormat{Type: "audio/pcmu"},
					Voice:  cfg.Voice,
				},
			},
			Instructions: cfg.Instructions,
			Tools:        tools,
			ToolChoice:   "auto",
		},
	}
}

// AppendAudio adds caller audio (base64, relayed untouched) to the input buffer.
func AppendAudio(audio string) ClientEvent {
	return ClientEvent{Type: "input_audio_buffer.append", Audio: audio}
}

// Truncate tells the model the caller only heard the first audioEndMs of itemID.
func Truncate(itemID string, audioEndMs int64) ClientEvent {
	contentIndex := 0
	return ClientEvent{
		Type:         "conversation.item.truncate",
		ItemID:       itemID,
		ContentIndex: &contentIndex,
		AudioEndMs:   &audioEndMs,
	}
}

// AssistantMessage injects text the assistant is to say next.
func AssistantMessage(text string) ClientEvent {
	return ClientEvent{
		Type: "conversation.item.create",
		Item: &Item{
			Type:    "message",
			Role:    "assistant",
			Content: []ContentPart{{Type: "output_text", Text: text}},
		},
	}
}

// ResponseCreate asks the model to generate a response now.
func ResponseCreate() ClientEvent {
	return ClientEvent{Type: "response.create"}
}

// Package twilio encodes and decodes Twilio Media Streams websocket frames.
package twilio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedFrame = errors.New("malformed media stream frame")

// MediaEvent is the wire shape of every frame Twilio sends.
type MediaEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid,omitempty"`
	Start     *struct {
		StreamSid  string `json:"streamSid"`
		CallSid    string `json:"callSid"`
		AccountSid string `json:"accountSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Track     string `json:"track"`
		Chunk     string `json:"chunk"`
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
	Stop *struct {
		CallSid string `json:"callSid"`
	} `json:"stop,omitempty"`
}

// Frame is one decoded inbound frame.
type Frame interface {
	Kind() string
}

type StartFrame struct {
	StreamSid string
	CallSid   string
}

type MediaFrame struct {
	TimestampMs int64
	// Payload is the base64 audio exactly as received.
	Payload string
}

type MarkFrame struct {
	Name string
}

type StopFrame struct {
	StreamSid string
}

// OtherFrame is any frame kind the bridge does not act on (connected, dtmf, ...).
type OtherFrame struct {
	Event string
}

func (StartFrame) Kind() string   { return "start" }
func (MediaFrame) Kind() string   { return "media" }
func (MarkFrame) Kind() string    { return "mark" }
func (StopFrame) Kind() string    { return "stop" }
func (f OtherFrame) Kind() string { return f.Event }

// ParseFrame decodes a raw text frame. Errors wrap ErrMalformedFrame.
func ParseFrame(raw []byte) (Frame, error) {
	var event MediaEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch event.Event {
	case "start":
		if event.Start == nil || event.Start.StreamSid == "" {
			return nil, fmt.Errorf("%w: start without streamSid", ErrMalformedFrame)
		}
		return StartFrame{StreamSid: event.Start.StreamSid, CallSid: event.Start.CallSid}, nil
	case "media":
		if event.Media == nil {
			return nil, fmt.Errorf("%w: media without body", ErrMalformedFrame)
		}
		ts, err := strconv.ParseInt(event.Media.Timestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: media timestamp %q", ErrMalformedFrame, event.Media.Timestamp)
		}
		return MediaFrame{TimestampMs: ts, Payload: event.Media.Payload}, nil
	case "mark":
		f := MarkFrame{}
		if event.Mark != nil {
			f.Name = event.Mark.Name
		}
		return f, nil
	case "stop":
		return StopFrame{StreamSid: event.StreamSid}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	default:
		return OtherFrame{Event: event.Event}, nil
	}
}

type payload struct {
	Payload string `json:"payload"`
}

type markName struct {
	Name string `json:"name"`
}

// OutboundMessage is a frame sent to Twilio.
type OutboundMessage struct {
	Event     string    `json:"event"`
	StreamSid string    `json:"streamSid"`
	Media     *payload  `json:"media,omitempty"`
	Mark      *markName `json:"mark,omitempty"`
}

// Media plays base64 audio to the caller.
func Media(streamSid, audio string) OutboundMessage {
	return OutboundMessage{Event: "media", StreamSid: streamSid, Media: &payload{Payload: audio}}
}

// Mark asks Twilio to echo name back once all audio sent before it has played.
func Mark(streamSid, name string) OutboundMessage {
	return OutboundMessage{Event: "mark", StreamSid: streamSid, Mark: &markName{Name: name}}
}

// Clear discards audio buffered by Twilio that has not been played yet.
func Clear(streamSid string) OutboundMessage {
	return OutboundMessage{Event: "clear", StreamSid: streamSid}
}

// Stop ends the media stream, which hangs up a <Connect><Stream> call.
func Stop(streamSid string) OutboundMessage {
	return OutboundMessage{Event: "stop", StreamSid: streamSid}
}

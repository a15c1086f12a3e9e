package bridge

import (
	"context"
	"time"

	"reservation-bridge/internal/clients/openai"
	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/dialogue"
	"reservation-bridge/internal/voicecall/session"
	"reservation-bridge/internal/voicecall/twilio"
)

// initializeSpeechSession configures the speech leg and has the assistant
// open the conversation.
func (b *Bridge) initializeSpeechSession() {
	if !b.speechOpen {
		return
	}

	b.sendSpeech(openai.SessionUpdate(b.cfg.Session))
	b.logger.Info(b.ctx, "Speech session configured", observability.Field{Key: "voice", Value: b.cfg.Session.Voice})

	if b.confirmed {
		return
	}
	step := session.StepAskName
	if b.cs != nil {
		step = b.cs.Step
	}
	b.askNextQuestion(step)
}

// askNextQuestion has the assistant ask the question for step. Steps without
// a prompt are a no-op.
func (b *Bridge) askNextQuestion(step session.Step) {
	var fields session.Fields
	if b.cs != nil {
		fields = b.cs.Fields
	}
	prompt, ok := dialogue.Prompt(step, fields)
	if !ok {
		return
	}
	b.injectPrompt(prompt)
}

func (b *Bridge) injectPrompt(text string) {
	if !b.speechOpen {
		return
	}
	b.stats.PromptsInjected++
	b.sendSpeech(openai.AssistantMessage(text))
	b.sendSpeech(openai.ResponseCreate())
}

// finalizeAndHangup speaks the closing message and stops the telephony stream
// once HangupDelay has passed. The delay is a fixed estimate of how long the
// closing message takes to play.
func (b *Bridge) finalizeAndHangup() {
	if b.confirmed {
		return
	}
	b.confirmed = true
	b.logger.Info(b.ctx, "Reservation confirmed")

	if b.cs != nil {
		streamSid, callSid := b.streamSid, b.callSid
		fields := make(session.Fields, len(b.cs.Fields))
		for k, v := range b.cs.Fields {
			fields[k] = v
		}
		b.enqueue(func(ctx context.Context) error {
			return b.publisher.PublishReservationConfirmed(ctx, streamSid, callSid, fields)
		})
	}

	b.injectPrompt(dialogue.ClosingMessage)

	b.hangupTimer = time.AfterFunc(b.cfg.HangupDelay, func() {
		b.post(event{kind: eventHangup})
	})
}

func (b *Bridge) hangup() {
	if !b.telephonyOpen || b.streamSid == "" {
		return
	}
	b.logger.Info(b.ctx, "Hanging up")
	b.sendTelephony(twilio.Stop(b.streamSid))
}

// Package bridge relays one phone call between the telephony leg and the
// speech leg, and drives the reservation dialogue from the speech service's
// tool calls.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"reservation-bridge/internal/clients/openai"
	"reservation-bridge/internal/events"
	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/dialogue"
	"reservation-bridge/internal/voicecall/session"
	"reservation-bridge/internal/voicecall/turn"
	"reservation-bridge/internal/voicecall/twilio"

	"github.com/gorilla/websocket"
)

const publishTimeout = 5 * time.Second

// Config controls one bridge.
type Config struct {
	Session openai.SessionConfig
	// InitDelay is how long after start the session.update is sent.
	InitDelay time.Duration
	// HangupDelay is how long the closing message is given to play before
	// the telephony stream is stopped.
	HangupDelay time.Duration
}

// EventPublisher receives call lifecycle events. Errors are logged by the
// implementation and otherwise ignored.
type EventPublisher interface {
	PublishCallStarted(ctx context.Context, streamSID, callSID string) error
	PublishReservationConfirmed(ctx context.Context, streamSID, callSID string, fields session.Fields) error
	PublishCallEnded(ctx context.Context, streamSID, callSID string, summary events.CallSummary) error
}

type source string

const (
	telephonyLeg source = "telephony"
	speechLeg    source = "speech"
)

type eventKind int

const (
	eventMessage eventKind = iota
	eventClosed
	eventSessionInit
	eventHangup
)

type event struct {
	kind   eventKind
	source source
	data   []byte
	err    error
}

type notification struct {
	ctx     context.Context
	publish func(ctx context.Context) error
}

type relayStats struct {
	CallerFrames        int
	CallerAudioBytes    int
	AssistantFrames     int
	AssistantAudioBytes int
	MarksSent           int
	MarksAcked          int
	Truncations         int
	PromptsInjected     int
	ToolCalls           int
	MalformedFrames     int
}

// Bridge owns both legs of one call. All call state is touched only by the
// goroutine running Run.
type Bridge struct {
	telephony Leg
	speech    Leg
	store     *session.Store
	publisher EventPublisher
	logger    *observability.Logger
	cfg       Config

	ctx    context.Context
	events chan event
	done   chan struct{}

	notifications chan notification
	notifyDone    chan struct{}

	streamSid string
	callSid   string
	cs        *session.CallSession
	playback  session.Playback
	turns     *turn.Controller

	telephonyOpen bool
	speechOpen    bool
	confirmed     bool
	initTimer     *time.Timer
	hangupTimer   *time.Timer
	startedAt     time.Time
	stats         relayStats
}

// New returns a bridge over an accepted telephony leg and a dialed speech
// leg. publisher may be nil.
func New(telephony, speech Leg, store *session.Store, publisher EventPublisher, cfg Config, logger *observability.Logger) *Bridge {
	b := &Bridge{
		telephony:     telephony,
		speech:        speech,
		store:         store,
		publisher:     publisher,
		logger:        logger,
		cfg:           cfg,
		events:        make(chan event, 64),
		done:          make(chan struct{}),
		notifications: make(chan notification, 8),
		notifyDone:    make(chan struct{}),
		telephonyOpen: true,
		speechOpen:    true,
	}
	b.turns = turn.New(&b.playback)
	return b
}

// Run relays frames until both legs are closed or ctx is done. Closing either
// leg closes the other. The call's session is removed before Run returns.
func (b *Bridge) Run(ctx context.Context) {
	defer close(b.done)

	b.ctx = ctx
	b.startedAt = time.Now()

	go b.notify()
	go b.read(telephonyLeg, b.telephony)
	go b.read(speechLeg, b.speech)

	b.initTimer = time.AfterFunc(b.cfg.InitDelay, func() {
		b.post(event{kind: eventSessionInit})
	})
	defer b.stopTimers()

	for b.telephonyOpen || b.speechOpen {
		select {
		case <-ctx.Done():
			b.logger.Info(b.ctx, "Call context cancelled, closing both legs")
			b.closeLeg(telephonyLeg)
			b.closeLeg(speechLeg)
		case ev := <-b.events:
			b.handle(ev)
		}
	}

	b.teardown()
}

func (b *Bridge) read(src source, leg Leg) {
	for {
		_, data, err := leg.ReadMessage()
		if err != nil {
			b.post(event{kind: eventClosed, source: src, err: err})
			return
		}
		b.post(event{kind: eventMessage, source: src, data: data})
	}
}

// post hands an event to the loop. It gives up once Run has returned.
func (b *Bridge) post(ev event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

func (b *Bridge) handle(ev event) {
	switch ev.kind {
	case eventMessage:
		if !b.isOpen(ev.source) {
			return
		}
		if ev.source == telephonyLeg {
			b.onTelephonyFrame(ev.data)
		} else {
			b.onSpeechEvent(ev.data)
		}
	case eventClosed:
		b.onLegClosed(ev.source, ev.err)
	case eventSessionInit:
		b.initializeSpeechSession()
	case eventHangup:
		b.hangup()
	}
}

func (b *Bridge) isOpen(src source) bool {
	if src == telephonyLeg {
		return b.telephonyOpen
	}
	return b.speechOpen
}

func (b *Bridge) onLegClosed(src source, err error) {
	if !b.isOpen(src) {
		return
	}

	if isNormalClose(err) {
		b.logger.Info(b.ctx, fmt.Sprintf("%s leg closed", src))
	} else {
		b.logger.Error(b.ctx, fmt.Sprintf("%s leg read failed", src), err)
	}

	if src == telephonyLeg {
		b.telephonyOpen = false
		b.closeLeg(speechLeg)
	} else {
		b.speechOpen = false
		b.closeLeg(telephonyLeg)
	}
}

func isNormalClose(err error) bool {
	return errors.Is(err, io.EOF) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (b *Bridge) closeLeg(src source) {
	var leg Leg
	switch {
	case src == telephonyLeg && b.telephonyOpen:
		b.telephonyOpen = false
		leg = b.telephony
	case src == speechLeg && b.speechOpen:
		b.speechOpen = false
		leg = b.speech
	default:
		return
	}

	if err := leg.Close(); err != nil {
		b.logger.InfoWithError(b.ctx, fmt.Sprintf("Closing %s leg", src), err)
	}
}

func (b *Bridge) onTelephonyFrame(raw []byte) {
	frame, err := twilio.ParseFrame(raw)
	if err != nil {
		b.stats.MalformedFrames++
		b.logger.Error(b.ctx, fmt.Sprintf("Dropping telephony frame: %s", raw), err)
		return
	}

	switch f := frame.(type) {
	case twilio.StartFrame:
		b.onStart(f)
	case twilio.MediaFrame:
		b.stats.CallerFrames++
		b.stats.CallerAudioBytes += len(f.Payload)
		b.turns.ObserveInbound(f.TimestampMs)
		if b.speechOpen {
			b.sendSpeech(openai.AppendAudio(f.Payload))
		}
	case twilio.MarkFrame:
		if _, ok := b.turns.OnMark(); ok {
			b.stats.MarksAcked++
		} else {
			b.logger.Debug(b.ctx, "Mark received with no audio pending", observability.Field{Key: "mark", Value: f.Name})
		}
	case twilio.StopFrame:
		b.logger.Info(b.ctx, "Telephony stream stopped")
		b.closeLeg(telephonyLeg)
		b.closeLeg(speechLeg)
	default:
		b.logger.Debug(b.ctx, fmt.Sprintf("Ignoring telephony event: %s", frame.Kind()))
	}
}

func (b *Bridge) onStart(f twilio.StartFrame) {
	if b.cs != nil && b.cs.ID != f.StreamSid {
		b.store.Remove(b.cs)
	}

	cs, err := b.store.Create(f.StreamSid)
	if errors.Is(err, session.ErrSessionExists) {
		b.logger.Warn(b.ctx, "Replacing existing call session", observability.Field{Key: "stream_sid", Value: f.StreamSid})
		cs = b.store.Replace(f.StreamSid)
	} else if err != nil {
		b.logger.Error(b.ctx, "Failed to create call session", err)
		return
	}
	cs.CallSID = f.CallSid
	cs.Playback.Reset()

	b.cs = cs
	b.streamSid = f.StreamSid
	b.callSid = f.CallSid
	b.turns = turn.New(&cs.Playback)
	b.ctx = observability.WithFields(b.ctx,
		observability.Field{Key: "stream_sid", Value: f.StreamSid},
		observability.Field{Key: "call_sid", Value: f.CallSid},
	)

	b.logger.Info(b.ctx, fmt.Sprintf("Telephony stream started: %s", f.StreamSid))

	streamSid, callSid := b.streamSid, b.callSid
	b.enqueue(func(ctx context.Context) error {
		return b.publisher.PublishCallStarted(ctx, streamSid, callSid)
	})
}

func (b *Bridge) onSpeechEvent(raw []byte) {
	ev, err := openai.ParseServerEvent(raw)
	if err != nil {
		b.stats.MalformedFrames++
		b.logger.Error(b.ctx, fmt.Sprintf("Dropping speech event: %s", raw), err)
		return
	}

	switch e := ev.(type) {
	case openai.FunctionCall:
		b.onFunctionCall(e)
	case openai.AudioDelta:
		b.onAudioDelta(e)
	case openai.SpeechStarted:
		b.onSpeechStarted()
	case openai.ErrorEvent:
		b.logger.Error(b.ctx, "Speech service reported an error", fmt.Errorf("%s: %s", e.Code, e.Message))
	case openai.Observed:
		b.logger.Info(b.ctx, fmt.Sprintf("Speech event: %s", e.Type))
	}
}

func (b *Bridge) onFunctionCall(e openai.FunctionCall) {
	b.stats.ToolCalls++

	u, err := dialogue.ParseCall(e.Name, e.Arguments)
	if errors.Is(err, dialogue.ErrUnknownTool) {
		b.logger.Warn(b.ctx, "Ignoring call to unknown tool",
			observability.Field{Key: "tool", Value: e.Name},
			observability.Field{Key: "arguments", Value: e.Arguments},
		)
		return
	}
	if err != nil {
		b.logger.Error(b.ctx, fmt.Sprintf("Dropping tool call with arguments: %s", e.Arguments), err)
		return
	}

	res, err := dialogue.Advance(b.cs, u)
	if err != nil {
		b.logger.Error(b.ctx, "Dropping tool call", err)
		return
	}

	b.logger.Info(b.ctx, "Reservation updated", observability.Field{Key: "step", Value: res.Step.String()})

	if res.Terminal {
		b.finalizeAndHangup()
		return
	}
	if res.Prompt != "" {
		b.injectPrompt(res.Prompt)
	}
}

func (b *Bridge) onAudioDelta(e openai.AudioDelta) {
	if b.streamSid == "" || !b.telephonyOpen {
		b.logger.Warn(b.ctx, "Dropping assistant audio, telephony stream not started")
		return
	}

	b.stats.AssistantFrames++
	b.stats.AssistantAudioBytes += len(e.Delta)
	b.sendTelephony(twilio.Media(b.streamSid, e.Delta))

	token := b.turns.OnAudioDelta(e.ItemID)
	b.stats.MarksSent++
	b.sendTelephony(twilio.Mark(b.streamSid, token))
}

func (b *Bridge) onSpeechStarted() {
	t, ok := b.turns.OnSpeechStarted()
	if !ok {
		return
	}

	b.stats.Truncations++
	b.logger.Info(b.ctx, "Caller interrupted assistant",
		observability.Field{Key: "item_id", Value: t.ItemID},
		observability.Field{Key: "audio_end_ms", Value: t.AudioEndMs},
	)

	if t.ItemID != "" && b.speechOpen {
		b.sendSpeech(openai.Truncate(t.ItemID, t.AudioEndMs))
	}
	if b.telephonyOpen {
		b.sendTelephony(twilio.Clear(b.streamSid))
	}
}

func (b *Bridge) sendTelephony(msg twilio.OutboundMessage) {
	if err := b.telephony.WriteJSON(msg); err != nil {
		b.logger.Error(b.ctx, fmt.Sprintf("Failed to send %s frame to telephony leg", msg.Event), err)
	}
}

func (b *Bridge) sendSpeech(ev openai.ClientEvent) {
	if err := b.speech.WriteJSON(ev); err != nil {
		b.logger.Error(b.ctx, fmt.Sprintf("Failed to send %s to speech leg", ev.Type), err)
	}
}

func (b *Bridge) stopTimers() {
	if b.initTimer != nil {
		b.initTimer.Stop()
	}
	if b.hangupTimer != nil {
		b.hangupTimer.Stop()
	}
}

func (b *Bridge) enqueue(publish func(ctx context.Context) error) {
	if b.publisher == nil {
		return
	}
	b.notifications <- notification{ctx: b.ctx, publish: publish}
}

// notify publishes call events in order, off the relay path.
func (b *Bridge) notify() {
	defer close(b.notifyDone)

	for n := range b.notifications {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(n.ctx), publishTimeout)
		_ = n.publish(ctx)
		cancel()
	}
}

func (b *Bridge) teardown() {
	if b.cs != nil && !b.store.Remove(b.cs) {
		b.logger.Info(b.ctx, "Call session was replaced by a newer stream, leaving it in place")
	}

	duration := time.Since(b.startedAt)
	step := ""
	if b.cs != nil {
		step = b.cs.Step.String()
	}

	b.logger.Metrics(b.ctx,
		observability.MetricField{Key: "metric", Value: "call_relay"},
		observability.MetricField{Key: "duration_ms", Value: duration.Milliseconds()},
		observability.MetricField{Key: "step", Value: step},
		observability.MetricField{Key: "confirmed", Value: b.confirmed},
		observability.MetricField{Key: "caller_frames", Value: b.stats.CallerFrames},
		observability.MetricField{Key: "caller_audio_bytes", Value: b.stats.CallerAudioBytes},
		observability.MetricField{Key: "assistant_frames", Value: b.stats.AssistantFrames},
		observability.MetricField{Key: "assistant_audio_bytes", Value: b.stats.AssistantAudioBytes},
		observability.MetricField{Key: "marks_sent", Value: b.stats.MarksSent},
		observability.MetricField{Key: "marks_acked", Value: b.stats.MarksAcked},
		observability.MetricField{Key: "truncations", Value: b.stats.Truncations},
		observability.MetricField{Key: "prompts_injected", Value: b.stats.PromptsInjected},
		observability.MetricField{Key: "tool_calls", Value: b.stats.ToolCalls},
		observability.MetricField{Key: "malformed_frames", Value: b.stats.MalformedFrames},
	)

	if b.streamSid != "" {
		streamSid, callSid := b.streamSid, b.callSid
		summary := events.CallSummary{
			Step:           step,
			Confirmed:      b.confirmed,
			Duration:       duration,
			InboundFrames:  b.stats.CallerFrames,
			OutboundFrames: b.stats.AssistantFrames,
			Truncations:    b.stats.Truncations,
			ToolCalls:      b.stats.ToolCalls,
		}
		b.enqueue(func(ctx context.Context) error {
			return b.publisher.PublishCallEnded(ctx, streamSid, callSid, summary)
		})
	}

	close(b.notifications)
	<-b.notifyDone

	b.logger.Info(b.ctx, "Call bridge closed")
}

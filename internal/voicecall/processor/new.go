package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reservation-bridge/internal/clients/openai"
	"reservation-bridge/internal/config"
	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/bridge"
	"reservation-bridge/internal/voicecall/dialogue"
	"reservation-bridge/internal/voicecall/session"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RealtimeDialer opens the speech leg of a call.
type RealtimeDialer interface {
	Dial(ctx context.Context) (*websocket.Conn, error)
}

// ErrShuttingDown is returned for calls that arrive after Shutdown.
var ErrShuttingDown = errors.New("voice call processor is shutting down")

// teardownTimeout bounds how long Shutdown waits for ended calls to finish
// their teardown.
const teardownTimeout = 10 * time.Second

type VoiceCallProcessor struct {
	realtime  RealtimeDialer
	store     *session.Store
	publisher bridge.EventPublisher
	callCfg   bridge.Config
	logger    *observability.Logger

	mu        sync.Mutex
	draining  bool
	live      sync.WaitGroup
	stopCtx   context.Context
	stopCalls context.CancelFunc
}

func NewVoiceCallProcessor(realtime RealtimeDialer, store *session.Store, publisher bridge.EventPublisher, callCfg bridge.Config, logger *observability.Logger) *VoiceCallProcessor {
	stopCtx, stopCalls := context.WithCancel(context.Background())
	return &VoiceCallProcessor{
		realtime:  realtime,
		store:     store,
		publisher: publisher,
		callCfg:   callCfg,
		logger:    logger,
		stopCtx:   stopCtx,
		stopCalls: stopCalls,
	}
}

// CallConfig builds the per-call bridge configuration: the reservation
// instructions and tool, the voice and the call timings.
func CallConfig(cfg config.Config) bridge.Config {
	return bridge.Config{
		Session: openai.SessionConfig{
			Model:        cfg.Services.OpenAIRealtimeModel,
			Voice:        cfg.Services.OpenAIVoice,
			Instructions: dialogue.SystemInstructions,
			Tools: []openai.Tool{{
				Type:        "function",
				Name:        dialogue.ToolName,
				Description: dialogue.ToolDescription,
				Parameters:  dialogue.ToolParameters(),
			}},
		},
		InitDelay:   cfg.Call.SpeechLegInitDelay,
		HangupDelay: cfg.Call.HangupDelay,
	}
}

// HandleCall dials the speech leg and bridges it with telephony until the
// call ends. telephony is closed when HandleCall returns.
func (v *VoiceCallProcessor) HandleCall(ctx context.Context, telephony bridge.Leg) error {
	v.mu.Lock()
	if v.draining {
		v.mu.Unlock()
		_ = telephony.Close()
		return ErrShuttingDown
	}
	v.live.Add(1)
	v.mu.Unlock()
	defer v.live.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.stopCtx, cancel)
	defer stop()

	ctx = observability.WithFields(ctx, observability.Field{Key: "call_id", Value: uuid.New().String()})

	conn, err := v.realtime.Dial(ctx)
	if err != nil {
		v.logger.Error(ctx, "Failed to connect speech leg", err)
		_ = telephony.Close()
		return fmt.Errorf("failed to connect speech leg: %w", err)
	}

	v.logger.Info(ctx, "Bridging call")
	b := bridge.New(telephony, bridge.NewWSLeg(conn), v.store, v.publisher, v.callCfg, v.logger)
	b.Run(ctx)
	return nil
}

// Shutdown stops accepting calls and waits for live ones to end. Calls still
// running when ctx is done are ended, and Shutdown waits for their teardown
// so that every call.ended event is handed to the publisher.
func (v *VoiceCallProcessor) Shutdown(ctx context.Context) error {
	v.mu.Lock()
	v.draining = true
	v.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		v.live.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
	}

	v.logger.Warn(ctx, "Ending live calls for shutdown")
	v.stopCalls()

	select {
	case <-idle:
		return nil
	case <-time.After(teardownTimeout):
		return fmt.Errorf("live calls still tearing down after %s", teardownTimeout)
	}
}

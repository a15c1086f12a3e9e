package handler

import (
	"context"
	"fmt"
	"net/http"

	"reservation-bridge/internal/apierrors"
	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/bridge"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/twilio/twilio-go/twiml"
)

const connectingMessage = "Please wait while we connect you to our reservation assistant."

// CallHandler bridges one accepted media stream until the call ends.
type CallHandler interface {
	HandleCall(ctx context.Context, telephony bridge.Leg) error
}

type Handler struct {
	voiceProcessor CallHandler
	streamURL      string
	logger         *observability.Logger
}

func New(voiceProcessor CallHandler, streamURL string, logger *observability.Logger) Handler {
	return Handler{
		voiceProcessor: voiceProcessor,
		streamURL:      streamURL,
		logger:         logger,
	}
}

// upgrader is a shared WebSocket upgrader. Twilio sends no Origin header, so
// the default origin check accepts it.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleIncomingCall answers Twilio's voice webhook with TwiML that greets the
// caller and connects the call to the media stream endpoint.
func (h *Handler) HandleIncomingCall(c *gin.Context) {
	ctx := c.Request.Context()

	say := &twiml.VoiceSay{
		Message: connectingMessage,
	}

	stream := twiml.VoiceStream{
		Name: "reservation-stream",
		Url:  h.streamURL,
	}

	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	twimlResult, err := twiml.Voice([]twiml.Element{say, connect})
	if err != nil {
		apierrors.InternalError(c, fmt.Errorf("failed to build TwiML: %w", err))
		return
	}

	h.logger.Info(ctx, fmt.Sprintf("Incoming call routed to %s", h.streamURL))
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twimlResult)
}

// HandleMediaStream upgrades Twilio's media stream request and bridges it
// with a new speech leg.
func (h *Handler) HandleMediaStream(c *gin.Context) {
	ctx := c.Request.Context()

	if !websocket.IsWebSocketUpgrade(c.Request) {
		apierrors.BadRequest(c, "NOT_WEBSOCKET", "Expected a websocket upgrade")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}

	h.logger.Info(ctx, "Twilio media stream connected")

	if err := h.voiceProcessor.HandleCall(ctx, bridge.NewWSLeg(conn)); err != nil {
		h.logger.Error(ctx, "Call ended with error", err)
		return
	}
	h.logger.Info(ctx, "Twilio media stream ended")
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reservation-bridge/internal/observability"
	"reservation-bridge/internal/voicecall/bridge"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStreamURL = "wss://example.com/api/phone/media-stream"

// echoCall reads one frame from the telephony leg and writes it back.
type echoCall struct {
	err error
}

func (e *echoCall) HandleCall(ctx context.Context, telephony bridge.Leg) error {
	defer telephony.Close()

	_, msg, err := telephony.ReadMessage()
	if err != nil {
		return err
	}
	if err := telephony.WriteJSON(map[string]string{"echo": string(msg)}); err != nil {
		return err
	}
	return e.err
}

func newRouter(calls CallHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(calls, testStreamURL, observability.NewLogger())

	r := gin.New()
	r.POST("/api/phone/incoming-call", h.HandleIncomingCall)
	r.GET("/api/phone/incoming-call", h.HandleIncomingCall)
	r.GET("/api/phone/media-stream", h.HandleMediaStream)
	return r
}

func TestHandleIncomingCall(t *testing.T) {
	r := newRouter(&echoCall{})

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(method, "/api/phone/incoming-call", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "text/xml", w.Header().Get("Content-Type"))

			body := w.Body.String()
			assert.Contains(t, body, "<Response>")
			assert.Contains(t, body, "<Say>"+connectingMessage+"</Say>")
			assert.Contains(t, body, "<Connect>")
			assert.Contains(t, body, "<Stream")
			assert.Contains(t, body, testStreamURL)
			assert.Less(t, strings.Index(body, "<Say>"), strings.Index(body, "<Connect>"))
		})
	}
}

func TestHandleMediaStream_RequiresUpgrade(t *testing.T) {
	r := newRouter(&echoCall{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/phone/media-stream", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_WEBSOCKET")
}

func TestHandleMediaStream_HandsConnectionToCall(t *testing.T) {
	tests := []struct {
		name    string
		callErr error
	}{
		{name: "call ends cleanly"},
		{name: "call ends with error", callErr: errors.New("speech leg unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(newRouter(&echoCall{err: tt.callErr}))
			defer server.Close()

			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/phone/media-stream"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			require.NoError(t, err)
			defer conn.Close()

			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"connected"}`)))

			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			var reply map[string]string
			require.NoError(t, conn.ReadJSON(&reply))
			assert.Equal(t, `{"event":"connected"}`, reply["echo"])

			_, _, err = conn.ReadMessage()
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
		})
	}
}

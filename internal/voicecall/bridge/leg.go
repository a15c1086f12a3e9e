package bridge

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	closeTimeout = time.Second
)

// Leg is one duplex connection of a call. ReadMessage is only called by the
// leg's reader goroutine; WriteJSON and Close may be called from anywhere.
type Leg interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// WSLeg adapts a websocket connection to Leg.
type WSLeg struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
	closeOnce  sync.Once
	closeErr   error
}

func NewWSLeg(conn *websocket.Conn) *WSLeg {
	return &WSLeg{conn: conn}
}

func (l *WSLeg) ReadMessage() (int, []byte, error) {
	return l.conn.ReadMessage()
}

func (l *WSLeg) WriteJSON(v interface{}) error {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	if err := l.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return l.conn.WriteJSON(v)
}

// Close sends a normal close frame and closes the connection. Subsequent
// calls return the first result.
func (l *WSLeg) Close() error {
	l.closeOnce.Do(func() {
		l.writeMutex.Lock()
		_ = l.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout),
		)
		l.writeMutex.Unlock()

		l.closeErr = l.conn.Close()
	})
	return l.closeErr
}

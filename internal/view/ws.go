package view

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 8 << 10
)

// WSTransport adapts a gorilla/websocket connection to Transport.
type WSTransport struct {
	conn  *websocket.Conn
	start sync.Once
}

// NewWSTransport wraps conn. The connection is closed when the context of
// the first Receive ends.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	conn.SetReadLimit(maxMessage)
	return &WSTransport{conn: conn}
}

func (t *WSTransport) Receive(ctx context.Context) (Inbound, error) {
	t.start.Do(func() { t.keepalive(ctx) })

	var msg Inbound
	if err := t.conn.ReadJSON(&msg); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Inbound{}, io.EOF
		}
		if ctx.Err() != nil {
			return Inbound{}, ctx.Err()
		}
		return Inbound{}, err
	}
	return msg, nil
}

func (t *WSTransport) Send(_ context.Context, m Outbound) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteJSON(m)
}

// keepalive pings the browser and drops it when pongs stop coming.
func (t *WSTransport) keepalive(ctx context.Context) {
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = t.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait),
				)
				_ = t.conn.Close()
				return
			case <-ticker.C:
				if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					_ = t.conn.Close()
					return
				}
			}
		}
	}()
}

package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Upgrader принимает WebSocket соединения. Мини-игра открывается из
// произвольного origin, поэтому проверка origin отключена.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWebSocketConn оборачивает готовое gorilla соединение
func NewWebSocketConn(c *websocket.Conn) Conn {
	c.SetReadLimit(MaxFrameSize)
	return &wsConn{conn: c}
}

// Upgrade переводит HTTP запрос в WebSocket соединение
func Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	c, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка upgrade до websocket: %w", err)
	}
	return NewWebSocketConn(c), nil
}

// DialWebSocket подключается к ws:// или wss:// адресу
func DialWebSocket(ctx context.Context, wsURL string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	c, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к %s: %w", wsURL, err)
	}
	return NewWebSocketConn(c), nil
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

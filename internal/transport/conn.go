package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// MaxFrameSize - максимальный размер одного сообщения (1 МБ)
const MaxFrameSize = 1024 * 1024

var (
	// ErrFrameTooLarge - входящее или исходящее сообщение больше MaxFrameSize
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrClosed - операция на закрытом соединении
	ErrClosed = errors.New("connection closed")
)

// Conn - постоянное соединение, передающее целые сообщения.
// ReadMessage вызывается из одной горутины; WriteMessage безопасен для
// конкурентного вызова.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() string
}

// Dial открывает соединение по URL: ws:// и wss:// - WebSocket,
// kcp://host:port - KCP. Отмена ctx прерывает установку соединения.
func Dial(ctx context.Context, rawURL string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("неверный адрес %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return DialWebSocket(ctx, rawURL)
	case "kcp":
		if u.Host == "" {
			return nil, fmt.Errorf("в адресе %q нет host:port", rawURL)
		}
		return DialKCP(ctx, u.Host)
	default:
		return nil, fmt.Errorf("неподдерживаемая схема %q", u.Scheme)
	}
}

// writeTimeout ограничивает запись одного сообщения
const writeTimeout = 10 * time.Second

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// framedConn передаёт сообщения по потоку: 4 байта длины (big endian) и тело
type framedConn struct {
	conn    net.Conn
	header  [4]byte
	writeMu sync.Mutex
}

// NewFramedConn оборачивает потоковое соединение (KCP, TCP, net.Pipe)
func NewFramedConn(c net.Conn) Conn {
	return &framedConn{conn: c}
}

// ReadMessage возвращает следующий непустой кадр. Кадры нулевой длины
// служебные (hello, keepalive) и пропускаются.
func (c *framedConn) ReadMessage() ([]byte, error) {
	for {
		if _, err := io.ReadFull(c.conn, c.header[:]); err != nil {
			if err == io.EOF {
				return nil, ErrClosed
			}
			return nil, fmt.Errorf("ошибка чтения заголовка: %w", err)
		}

		size := binary.BigEndian.Uint32(c.header[:])
		if size == 0 {
			continue
		}
		if size > MaxFrameSize {
			return nil, fmt.Errorf("%w: %d байт", ErrFrameTooLarge, size)
		}

		body := make([]byte, size)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return nil, fmt.Errorf("ошибка чтения тела сообщения: %w", err)
		}
		return body, nil
	}
}

// writeHello отправляет пустой кадр
func (c *framedConn) writeHello() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write([]byte{0, 0, 0, 0})
	return err
}

func (c *framedConn) WriteMessage(data []byte) error {
	if len(data) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(data)))
	copy(frame[4:], data)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.conn.Write(frame)
	return err
}

func (c *framedConn) Close() error {
	return c.conn.Close()
}

func (c *framedConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

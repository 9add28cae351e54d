package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/xtaci/kcp-go/v5"
)

// tuneSession настраивает KCP параметры для игрового трафика
func tuneSession(s *kcp.UDPSession) {
	s.SetStreamMode(true)
	s.SetWriteDelay(false)
	s.SetNoDelay(1, 20, 2, 1) // Агрессивные настройки для игр
	s.SetWindowSize(512, 512)
	s.SetMtu(1400)
}

// DialKCP подключается к KCP серверу по адресу host:port
func DialKCP(ctx context.Context, addr string) (Conn, error) {
	type result struct {
		sess *kcp.UDPSession
		err  error
	}
	done := make(chan result, 1)

	go func() {
		sess, err := kcp.DialWithOptions(addr, nil, 10, 3)
		done <- result{sess, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", addr, r.err)
		}
		tuneSession(r.sess)
		// Сервер видит KCP сессию только после первого пакета, а первым
		// говорит он (welcome): отправляем пустой кадр
		conn := &framedConn{conn: r.sess}
		if err := conn.writeHello(); err != nil {
			r.sess.Close()
			return nil, fmt.Errorf("failed to greet %s: %w", addr, err)
		}
		return conn, nil
	case <-ctx.Done():
		// Сессия, созданная после отмены, закрывается в фоне
		go func() {
			if r := <-done; r.sess != nil {
				r.sess.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// KCPListener принимает входящие KCP сессии
type KCPListener struct {
	listener *kcp.Listener
}

// ListenKCP открывает KCP listener
func ListenKCP(addr string) (*KCPListener, error) {
	l, err := kcp.ListenWithOptions(addr, nil, 10, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to listen KCP on %s: %w", addr, err)
	}
	return &KCPListener{listener: l}, nil
}

// Accept ждёт следующую сессию
func (l *KCPListener) Accept() (Conn, error) {
	sess, err := l.listener.AcceptKCP()
	if err != nil {
		return nil, err
	}
	tuneSession(sess)
	return NewFramedConn(sess), nil
}

// Addr возвращает локальный адрес
func (l *KCPListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close закрывает listener
func (l *KCPListener) Close() error {
	return l.listener.Close()
}

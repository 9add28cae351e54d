package network

import (
	"sync"

	"github.com/annel0/blockverse/internal/transport"
)

// peer - подключённый игрок. Поля name и roomID принадлежат горутине
// диспетчера; остальное неизменно после создания.
type peer struct {
	id     string
	name   string
	roomID string

	conn      transport.Conn
	outbox    chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

func newPeer(id string, conn transport.Conn, outboxSize int) *peer {
	return &peer{
		id:     id,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		quit:   make(chan struct{}),
	}
}

// enqueue ставит кадр в очередь отправки, не блокируясь. false - очередь
// переполнена или соединение уже закрыто.
func (p *peer) enqueue(data []byte) bool {
	select {
	case <-p.quit:
		return false
	default:
	}

	select {
	case p.outbox <- data:
		return true
	default:
		return false
	}
}

// writeLoop пишет кадры из очереди в соединение
func (p *peer) writeLoop() {
	for {
		select {
		case data := <-p.outbox:
			if err := p.conn.WriteMessage(data); err != nil {
				p.close()
				return
			}
		case <-p.quit:
			return
		}
	}
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		p.conn.Close()
	})
}

func (p *peer) closed() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

func (p *peer) inRoom() bool {
	return p.roomID != ""
}

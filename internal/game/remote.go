package game

import (
	"time"

	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/vec"
)

type sample struct {
	pos vec.Vec3Float
	at  time.Time
}

// RemotePlayer - другой игрок комнаты. Позиция интерполируется между двумя
// последними обновлениями без экстраполяции.
type RemotePlayer struct {
	State protocol.PlayerState

	prev, last sample
	samples    int
}

func newRemotePlayer(state protocol.PlayerState, at time.Time) *RemotePlayer {
	rp := &RemotePlayer{}
	rp.update(state, at)
	return rp
}

func (rp *RemotePlayer) update(state protocol.PlayerState, at time.Time) {
	rp.State = state
	rp.prev = rp.last
	rp.last = sample{pos: state.Position, at: at}
	if rp.samples < 2 {
		rp.samples++
	}
}

// Position возвращает отрисовываемую позицию на момент now. Картинка
// отстаёт на один интервал обновлений: от предыдущей точки к последней.
func (rp *RemotePlayer) Position(now time.Time) vec.Vec3Float {
	if rp.samples < 2 {
		return rp.last.pos
	}

	interval := rp.last.at.Sub(rp.prev.at)
	if interval <= 0 {
		return rp.last.pos
	}

	t := float64(now.Sub(rp.last.at)) / float64(interval)
	switch {
	case t <= 0:
		return rp.prev.pos
	case t >= 1:
		return rp.last.pos
	}
	return rp.prev.pos.Lerp(rp.last.pos, t)
}

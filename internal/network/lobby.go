package network

import (
	"context"

	"github.com/annel0/blockverse/internal/api"
	"github.com/annel0/blockverse/internal/protocol"
)

// Запросы REST к диспетчеру. Каждый выполняется внутри его цикла через Do.

func (d *Dispatcher) ListRooms(ctx context.Context) ([]protocol.RoomSummary, error) {
	var out []protocol.RoomSummary
	err := d.Do(ctx, func(s *State) {
		rooms := s.Rooms.List()
		out = make([]protocol.RoomSummary, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r.Summary())
		}
	})
	return out, err
}

func (d *Dispatcher) RoomInfo(ctx context.Context, id string) (api.RoomInfo, error) {
	var (
		info   api.RoomInfo
		getErr error
	)
	err := d.Do(ctx, func(s *State) {
		r, err := s.Rooms.Get(id)
		if err != nil {
			getErr = err
			return
		}
		info = api.RoomInfo{
			RoomSummary:  r.Summary(),
			Seed:         r.Seed,
			CreatedAt:    r.CreatedAt,
			Changes:      r.Log().Len(),
			TotalChanges: r.Log().Total(),
			Members:      r.Members(),
		}
	})
	if err != nil {
		return api.RoomInfo{}, err
	}
	return info, getErr
}

func (d *Dispatcher) CloseRoom(ctx context.Context, id string) error {
	var closeErr error
	err := d.Do(ctx, func(*State) {
		closeErr = d.closeRoom(id)
	})
	if err != nil {
		return err
	}
	if closeErr == nil {
		d.logger.Info("🔨 Комната %s закрыта через API", id)
	}
	return closeErr
}

func (d *Dispatcher) Online(ctx context.Context) (api.Online, error) {
	var online api.Online
	err := d.Do(ctx, func(s *State) {
		online = api.Online{Players: s.Online(), Rooms: s.Rooms.Len()}
	})
	return online, err
}

var _ api.Lobby = (*Dispatcher)(nil)

package api

import (
	"context"
	"time"

	"github.com/annel0/blockverse/internal/protocol"
)

// RoomInfo - подробности комнаты для REST
type RoomInfo struct {
	protocol.RoomSummary
	Seed         int64                  `json:"seed"`
	CreatedAt    time.Time              `json:"createdAt"`
	Changes      int                    `json:"changes"`      // записей в журнале сейчас
	TotalChanges uint64                 `json:"totalChanges"` // за всё время
	Members      []protocol.PlayerState `json:"members"`
}

// Online - сводка по процессу
type Online struct {
	Players int `json:"players"`
	Rooms   int `json:"rooms"`
}

// Lobby - то, что REST видит от игрового сервера. Отсутствие комнаты
// сообщается ошибкой, оборачивающей room.ErrRoomNotFound.
type Lobby interface {
	ListRooms(ctx context.Context) ([]protocol.RoomSummary, error)
	RoomInfo(ctx context.Context, id string) (RoomInfo, error)
	CloseRoom(ctx context.Context, id string) error
	Online(ctx context.Context) (Online, error)
}

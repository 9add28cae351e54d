package protocol

import "github.com/annel0/blockverse/internal/vec"

// Действия блока в block_change
const (
	ActionPlace = "place"
	ActionBreak = "break"
)

// Rotation - ориентация камеры игрока
type Rotation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PlayerState - состояние игрока, которое пересылается между пирами
type PlayerState struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Position   vec.Vec3Float `json:"position"`
	Rotation   Rotation      `json:"rotation"`
	Velocity   vec.Vec3Float `json:"velocity"`
	Flying     bool          `json:"flying"`
	LastUpdate int64         `json:"lastUpdate,omitempty"` // unix ms, ставит сервер
}

// WorldChangeRecord - запись журнала изменений комнаты
type WorldChangeRecord struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	BlockType int    `json:"blockType"`
	Action    string `json:"action"`
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"` // unix ms
}

// RoomSummary - строка списка комнат в лобби
type RoomSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	HostID     string `json:"hostId"`
}

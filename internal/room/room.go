package room

import (
	"errors"
	"time"

	"github.com/annel0/blockverse/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// Room - серверная сессия: участники, сид и журнал правок.
// Не потокобезопасна: комнатами владеет одна горутина диспетчера.
type Room struct {
	ID         string
	Name       string
	MaxPlayers int
	HostID     string
	Seed       int64
	CreatedAt  time.Time
	EmptySince time.Time // ноль, пока в комнате есть игроки

	members map[string]*protocol.PlayerState
	order   []string // порядок входа
	log     *ChangeLog
}

// NewRoom создаёт пустую комнату
func NewRoom(id, name string, maxPlayers int, seed int64, logCap int, now time.Time) *Room {
	return &Room{
		ID:         id,
		Name:       name,
		MaxPlayers: maxPlayers,
		Seed:       seed,
		CreatedAt:  now,
		EmptySince: now,
		members:    make(map[string]*protocol.PlayerState),
		log:        NewChangeLog(logCap),
	}
}

// AddPlayer добавляет игрока. Возвращает false, если комната заполнена
// или игрок уже в ней. Первый вошедший в пустую комнату становится хостом.
func (r *Room) AddPlayer(p protocol.PlayerState) bool {
	if _, exists := r.members[p.ID]; exists {
		return false
	}
	if len(r.members) >= r.MaxPlayers {
		return false
	}

	state := p
	r.members[p.ID] = &state
	r.order = append(r.order, p.ID)
	if r.HostID == "" {
		r.HostID = p.ID
	}
	r.EmptySince = time.Time{}
	return true
}

// RemovePlayer удаляет игрока. Если ушёл хост, хостом становится самый
// ранний из оставшихся участников.
func (r *Room) RemovePlayer(id string, now time.Time) (removed, hostChanged bool) {
	if _, exists := r.members[id]; !exists {
		return false, false
	}

	delete(r.members, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if len(r.order) == 0 {
		r.HostID = ""
		r.EmptySince = now
		return true, false
	}
	if r.HostID == id {
		r.HostID = r.order[0]
		return true, true
	}
	return true, false
}

// Has сообщает, состоит ли игрок в комнате
func (r *Room) Has(id string) bool {
	_, ok := r.members[id]
	return ok
}

// Player возвращает состояние участника
func (r *Room) Player(id string) (protocol.PlayerState, bool) {
	p, ok := r.members[id]
	if !ok {
		return protocol.PlayerState{}, false
	}
	return *p, true
}

// UpdatePlayer заменяет состояние участника, сохраняя id и имя
func (r *Room) UpdatePlayer(p protocol.PlayerState) bool {
	cur, ok := r.members[p.ID]
	if !ok {
		return false
	}
	name := cur.Name
	*cur = p
	if cur.Name == "" {
		cur.Name = name
	}
	return true
}

// Members возвращает участников в порядке входа
func (r *Room) Members() []protocol.PlayerState {
	out := make([]protocol.PlayerState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id])
	}
	return out
}

// MemberIDs возвращает id участников в порядке входа
func (r *Room) MemberIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Room) Len() int        { return len(r.order) }
func (r *Room) IsEmpty() bool   { return len(r.order) == 0 }
func (r *Room) IsFull() bool    { return len(r.order) >= r.MaxPlayers }
func (r *Room) Log() *ChangeLog { return r.log }

// Summary - строка для списка комнат
func (r *Room) Summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		ID:         r.ID,
		Name:       r.Name,
		Players:    len(r.order),
		MaxPlayers: r.MaxPlayers,
		HostID:     r.HostID,
	}
}

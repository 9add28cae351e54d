package room

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Registry - комнаты процесса по id. Не потокобезопасен.
type Registry struct {
	rooms   map[string]*Room
	logCap  int
	newID   func() string
	newSeed func() int64
}

// NewRegistry создаёт реестр с ёмкостью журналов logCap
func NewRegistry(logCap int) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		logCap: logCap,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
		newSeed: rand.Int63,
	}
}

// Create создаёт комнату со свежим id и сидом
func (reg *Registry) Create(name string, maxPlayers int, now time.Time) *Room {
	id := reg.newID()
	for reg.rooms[id] != nil {
		id = reg.newID()
	}
	if name == "" {
		name = fmt.Sprintf("Комната %s", id)
	}

	r := NewRoom(id, name, maxPlayers, reg.newSeed(), reg.logCap, now)
	reg.rooms[id] = r
	return r
}

// Get возвращает комнату или ErrRoomNotFound
func (reg *Registry) Get(id string) (*Room, error) {
	r, ok := reg.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return r, nil
}

// Delete удаляет комнату; false если её не было
func (reg *Registry) Delete(id string) bool {
	if _, ok := reg.rooms[id]; !ok {
		return false
	}
	delete(reg.rooms, id)
	return true
}

// List возвращает комнаты в порядке создания
func (reg *Registry) List() []*Room {
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (reg *Registry) Len() int { return len(reg.rooms) }

// SweepEmpty удаляет комнаты, пустующие дольше grace. Возвращает их id.
func (reg *Registry) SweepEmpty(now time.Time, grace time.Duration) []string {
	var removed []string
	for id, r := range reg.rooms {
		if !r.IsEmpty() {
			continue
		}
		if now.Sub(r.EmptySince) >= grace {
			delete(reg.rooms, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

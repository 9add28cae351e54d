package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockverse/internal/protocol"
)

// ErrDirectoryClosed - операция над закрытым каталогом
var ErrDirectoryClosed = errors.New("room directory closed")

// Entry - запись каталога: метаданные комнаты и сервер, который её держит.
// Состояние мира в каталог не попадает.
type Entry struct {
	protocol.RoomSummary
	Seed      int64     `json:"seed"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoomDirectory - каталог комнат, видимый за пределами одного процесса
// (лобби нескольких серверов, внешние панели).
type RoomDirectory interface {
	Put(ctx context.Context, e Entry) error
	Remove(ctx context.Context, roomID string) error
	List(ctx context.Context) ([]Entry, error)
	// Purge удаляет все записи источника; вызывается при старте сервера,
	// чьи прошлые комнаты пропали вместе с процессом
	Purge(ctx context.Context, source string) (int, error)
	Close() error
}

// sortEntries упорядочивает записи по id для стабильной выдачи
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
}

// MemoryDirectory - каталог в памяти процесса
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	closed  bool
}

var _ RoomDirectory = (*MemoryDirectory)(nil)

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{entries: make(map[string]Entry)}
}

func (m *MemoryDirectory) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDirectoryClosed
	}
	m.entries[e.ID] = e
	return nil
}

func (m *MemoryDirectory) Remove(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrDirectoryClosed
	}
	delete(m.entries, roomID)
	return nil
}

func (m *MemoryDirectory) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrDirectoryClosed
	}

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (m *MemoryDirectory) Purge(_ context.Context, source string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrDirectoryClosed
	}

	n := 0
	for id, e := range m.entries {
		if e.Source == source {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryDirectory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

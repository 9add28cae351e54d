package meshing

import (
	"sync"

	"github.com/annel0/blockverse/internal/world"
)

// Sink - граница с рендером: загрузка буферов в GPU и их освобождение
type Sink interface {
	Upload(key world.ChunkKey, m *Mesh)
	Release(key world.ChunkKey, m *Mesh)
}

// Cache держит не больше одного живого меша на ключ чанка. Старый меш
// освобождается до загрузки нового.
type Cache struct {
	sink   Sink
	mu     sync.Mutex
	meshes map[world.ChunkKey]*Mesh
}

// NewCache создаёт кэш мешей поверх sink; nil sink допустим (без рендера)
func NewCache(sink Sink) *Cache {
	return &Cache{
		sink:   sink,
		meshes: make(map[world.ChunkKey]*Mesh),
	}
}

// Rebuild перестраивает меши dirty-чанков мира, не больше limit за вызов
// (limit <= 0 - без ограничения). Возвращает число перестроенных чанков.
func (mc *Cache) Rebuild(w *world.World, limit int) int {
	rebuilt := 0
	for _, key := range w.DirtyChunks() {
		if limit > 0 && rebuilt >= limit {
			break
		}
		c := w.GetChunk(key.X, key.Y, key.Z)
		if c == nil || !c.ConsumeDirty() {
			continue
		}
		mc.install(key, BuildMesh(c))
		rebuilt++
	}
	return rebuilt
}

func (mc *Cache) install(key world.ChunkKey, m *Mesh) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if old, ok := mc.meshes[key]; ok {
		if mc.sink != nil {
			mc.sink.Release(key, old)
		}
		delete(mc.meshes, key)
	}
	if m == nil {
		return
	}
	if mc.sink != nil {
		mc.sink.Upload(key, m)
	}
	mc.meshes[key] = m
}

// Drop освобождает меши выгруженных чанков
func (mc *Cache) Drop(keys []world.ChunkKey) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if old, ok := mc.meshes[key]; ok {
			if mc.sink != nil {
				mc.sink.Release(key, old)
			}
			delete(mc.meshes, key)
		}
	}
}

// Reset освобождает все меши, например при смене мира
func (mc *Cache) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for key, old := range mc.meshes {
		if mc.sink != nil {
			mc.sink.Release(key, old)
		}
		delete(mc.meshes, key)
	}
}

// Get возвращает текущий меш чанка
func (mc *Cache) Get(key world.ChunkKey) (*Mesh, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	m, ok := mc.meshes[key]
	return m, ok
}

// Stats - сводка по живым мешам
type Stats struct {
	Meshes    int
	Quads     int
	Vertices  int
	Triangles int
}

func (mc *Cache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	var s Stats
	for _, m := range mc.meshes {
		s.Meshes++
		s.Quads += m.QuadCount()
		s.Vertices += m.VertexCount()
		s.Triangles += m.TriangleCount()
	}
	return s
}

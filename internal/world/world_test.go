package world

import (
	"testing"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore - простое хранилище для проверки выгрузки
type memoryStore struct {
	data map[ChunkKey]ChunkData
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[ChunkKey]ChunkData)}
}

func (m *memoryStore) Put(key ChunkKey, data ChunkData) error {
	m.data[key] = data
	return nil
}

func (m *memoryStore) Take(key ChunkKey) (ChunkData, bool, error) {
	d, ok := m.data[key]
	delete(m.data, key)
	return d, ok, nil
}

func (m *memoryStore) Close() error { return nil }

func consumeAll(w *World) {
	for _, key := range w.DirtyChunks() {
		w.GetChunk(key.X, key.Y, key.Z).ConsumeDirty()
	}
}

func TestWorldSetGetBlock(t *testing.T) {
	w := NewWorld(1, WithGenerator(EmptyGenerator{}))

	points := []vec.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: -1, Y: 5, Z: -1},
		{X: 17, Y: 40, Z: -33},
		{X: -16, Y: 16, Z: 15},
	}
	for _, p := range points {
		require.True(t, w.SetBlock(p.X, p.Y, p.Z, Cobblestone), "SetBlock %v", p)
		assert.Equal(t, Cobblestone, w.GetBlock(p.X, p.Y, p.Z), "GetBlock %v", p)
	}

	// Блок (-1,5,-1) живёт в чанке (-1,0,-1) по локальным (15,5,15)
	c := w.GetChunk(-1, 0, -1)
	require.NotNil(t, c)
	assert.Equal(t, Cobblestone, c.Get(15, 5, 15))
}

func TestWorldRejectsInvalidBlockType(t *testing.T) {
	w := NewWorld(1, WithGenerator(EmptyGenerator{}))
	assert.False(t, w.SetBlock(1, 1, 1, BlockType(42)))
	assert.Equal(t, Air, w.GetBlock(1, 1, 1))
}

func TestGetOrCreateChunkIdempotent(t *testing.T) {
	w := NewWorld(42)

	a := w.GetOrCreateChunk(1, 0, -2)
	b := w.GetOrCreateChunk(1, 0, -2)
	assert.Same(t, a, b, "Повторный вызов должен вернуть тот же чанк")
	assert.Equal(t, 1, w.ChunkCount())
	assert.Nil(t, w.GetChunk(5, 0, 5), "GetChunk не создаёт чанки")
}

func TestGenerationIsDeterministic(t *testing.T) {
	w1 := NewWorld(987654321)
	w2 := NewWorld(987654321)

	for _, key := range []ChunkKey{{X: 0, Y: 0, Z: 0}, {X: 3, Y: 1, Z: -4}, {X: -7, Y: 2, Z: 9}} {
		a := w1.GetOrCreateChunk(key.X, key.Y, key.Z).Snapshot()
		b := w2.GetOrCreateChunk(key.X, key.Y, key.Z).Snapshot()
		assert.Equal(t, a, b, "Чанк %v должен совпадать в мирах с одним сидом", key)
	}
}

func TestBoundaryEditMarksNeighbourDirty(t *testing.T) {
	w := NewWorld(7, WithGenerator(EmptyGenerator{}))
	w.GetOrCreateChunk(0, 0, 0)
	w.GetOrCreateChunk(-1, 0, 0)
	w.GetOrCreateChunk(1, 0, 0)
	w.GetOrCreateChunk(0, 1, 0)
	consumeAll(w)

	// x=0 - локальная 0 по оси X: сосед (-1,0,0)
	require.True(t, w.SetBlock(0, 5, 5, Stone))
	assert.ElementsMatch(t, []ChunkKey{{X: 0, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0}}, w.DirtyChunks())
	consumeAll(w)

	// y=15 - верхняя граница: сосед (0,1,0)
	require.True(t, w.SetBlock(5, 15, 5, Stone))
	assert.ElementsMatch(t, []ChunkKey{{X: 0, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}, w.DirtyChunks())
	consumeAll(w)

	// Внутренний блок: только свой чанк
	require.True(t, w.SetBlock(5, 5, 5, Stone))
	assert.Equal(t, []ChunkKey{{X: 0, Y: 0, Z: 0}}, w.DirtyChunks())
	consumeAll(w)

	// Сосед по Z не загружен: не создаётся
	require.True(t, w.SetBlock(5, 5, 0, Stone))
	assert.Nil(t, w.GetChunk(0, 0, -1))
}

func TestGetChunksAround(t *testing.T) {
	w := NewWorld(3, WithGenerator(EmptyGenerator{}))

	chunks := w.GetChunksAround(-1, 100, 20, 1)
	assert.Len(t, chunks, 3*3*VerticalChunks)

	seen := map[ChunkKey]bool{}
	for _, c := range chunks {
		seen[c.Coords] = true
		assert.True(t, c.Coords.Y >= 0 && c.Coords.Y < VerticalChunks)
	}
	// Центр: чанк (-1, *, 1)
	assert.True(t, seen[ChunkKey{X: -2, Y: 0, Z: 0}])
	assert.True(t, seen[ChunkKey{X: 0, Y: 2, Z: 2}])
	assert.False(t, seen[ChunkKey{X: 1, Y: 0, Z: 1}])
}

func TestRaycastHitsStone(t *testing.T) {
	w := NewWorld(0, WithGenerator(EmptyGenerator{}))
	require.True(t, w.SetBlock(0, 30, 0, Stone))

	res := w.Raycast(vec.Vec3Float{X: 0, Y: 51, Z: 0}, vec.Vec3Float{X: 0, Y: -1, Z: 0}, 100)
	assert.True(t, res.Hit)
	assert.Equal(t, Stone, res.Block)
	assert.Equal(t, vec.Vec3{X: 0, Y: 30, Z: 0}, res.Position)
	assert.Equal(t, vec.Vec3{X: 0, Y: 31, Z: 0}, res.LastPosition)
}

func TestRaycastSkipsWaterAndMisses(t *testing.T) {
	w := NewWorld(0, WithGenerator(EmptyGenerator{}))
	w.SetBlock(0, 10, 0, Water)
	w.SetBlock(0, 5, 0, Sand)

	res := w.Raycast(vec.Vec3Float{X: 0.5, Y: 20.5, Z: 0.5}, vec.Vec3Float{X: 0, Y: -2, Z: 0}, 30)
	require.True(t, res.Hit)
	assert.Equal(t, Sand, res.Block)
	assert.Equal(t, vec.Vec3{X: 0, Y: 6, Z: 0}, res.LastPosition)

	miss := w.Raycast(vec.Vec3Float{X: 0.5, Y: 20.5, Z: 0.5}, vec.Vec3Float{X: 0, Y: 1, Z: 0}, 5)
	assert.False(t, miss.Hit)

	zero := w.Raycast(vec.Vec3Float{}, vec.Vec3Float{}, 5)
	assert.False(t, zero.Hit)
}

func TestSpawnPoint(t *testing.T) {
	w := NewWorld(0, WithGenerator(FlatGenerator{Height: 10}))
	assert.Equal(t, vec.Vec3Float{X: 0.5, Y: 11, Z: 0.5}, w.GetSpawnPoint())

	empty := NewWorld(0, WithGenerator(EmptyGenerator{}))
	assert.Equal(t, 1.0, empty.GetSpawnPoint().Y)
}

func TestEvictParksModifiedChunks(t *testing.T) {
	store := newMemoryStore()
	w := NewWorld(5, WithGenerator(EmptyGenerator{}), WithChunkStore(store))

	w.GetOrCreateChunk(0, 0, 0)
	far := w.GetOrCreateChunk(10, 0, 10)
	w.GetOrCreateChunk(-10, 0, 0)
	require.True(t, w.SetBlock(10*ChunkSize+3, 4, 10*ChunkSize+5, Brick))
	require.True(t, far.Modified())

	evicted := w.Evict(0, 0, 2)
	assert.ElementsMatch(t, []ChunkKey{{X: 10, Y: 0, Z: 10}, {X: -10, Y: 0, Z: 0}}, evicted)
	assert.Equal(t, 1, w.ChunkCount())
	assert.Len(t, store.data, 1, "Отложен только изменённый чанк")

	// Возвращаемся: правка на месте, чанк снова dirty
	restored := w.GetOrCreateChunk(10, 0, 10)
	assert.NotSame(t, far, restored)
	assert.Equal(t, Brick, restored.Get(3, 4, 5))
	assert.True(t, restored.Dirty())
	assert.True(t, restored.Modified())
	assert.Empty(t, store.data)
}

func TestEvictWithoutStoreKeepsModified(t *testing.T) {
	w := NewWorld(5, WithGenerator(EmptyGenerator{}))
	w.GetOrCreateChunk(9, 0, 9)
	w.SetBlock(9*ChunkSize, 1, 9*ChunkSize, Stone)
	w.GetOrCreateChunk(-9, 0, 0)

	evicted := w.Evict(0, 0, 1)
	assert.Equal(t, []ChunkKey{{X: -9, Y: 0, Z: 0}}, evicted)
	assert.NotNil(t, w.GetChunk(9, 0, 9))
}

package world

import (
	"sync"

	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/vec"
)

// World - лениво материализуемая карта чанков одного сида.
// Все изменения блоков идут через SetBlock.
type World struct {
	seed      int64
	generator Generator
	store     ChunkStore // куда откладываются изменённые чанки при выгрузке
	logger    *logging.Logger

	mu     sync.RWMutex
	chunks map[ChunkKey]*Chunk
}

// Option настраивает World
type Option func(*World)

// WithGenerator заменяет генератор рельефа
func WithGenerator(g Generator) Option {
	return func(w *World) { w.generator = g }
}

// WithChunkStore подключает хранилище для выгружаемых изменённых чанков
func WithChunkStore(s ChunkStore) Option {
	return func(w *World) { w.store = s }
}

// WithLogger задаёт логгер мира
func WithLogger(l *logging.Logger) Option {
	return func(w *World) { w.logger = l }
}

// NewWorld создаёт мир. По умолчанию используется TerrainGenerator от сида.
func NewWorld(seed int64, opts ...Option) *World {
	w := &World{
		seed:   seed,
		chunks: make(map[ChunkKey]*Chunk),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.generator == nil {
		w.generator = NewTerrainGenerator(seed)
	}
	if w.logger == nil {
		w.logger = logging.GetWorldLogger()
	}
	return w
}

// Seed возвращает сид мира
func (w *World) Seed() int64 {
	return w.seed
}

// GetChunk возвращает чанк без создания; nil если его нет
func (w *World) GetChunk(cx, cy, cz int) *Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[ChunkKey{X: cx, Y: cy, Z: cz}]
}

// GetOrCreateChunk возвращает существующий чанк или создаёт новый.
// Повторные вызовы возвращают тот же экземпляр.
func (w *World) GetOrCreateChunk(cx, cy, cz int) *Chunk {
	key := ChunkKey{X: cx, Y: cy, Z: cz}

	w.mu.RLock()
	if c, ok := w.chunks[key]; ok {
		w.mu.RUnlock()
		return c
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	// Проверяем еще раз: чанк мог создать другой поток
	if c, ok := w.chunks[key]; ok {
		return c
	}

	c := w.restoreLocked(key)
	if c == nil {
		c = NewChunk(cx, cy, cz)
		w.generator.Generate(c)
	}
	w.chunks[key] = c
	return c
}

// restoreLocked достаёт ранее выгруженный чанк из хранилища
func (w *World) restoreLocked(key ChunkKey) *Chunk {
	if w.store == nil {
		return nil
	}

	data, ok, err := w.store.Take(key)
	if err != nil {
		w.logger.Error("Ошибка восстановления чанка %v, генерируем заново: %v", key, err)
		return nil
	}
	if !ok {
		return nil
	}

	c, err := DeserializeChunk(data)
	if err != nil {
		w.logger.Error("Повреждённый чанк %v в хранилище: %v", key, err)
		return nil
	}
	c.modified = true
	w.logger.Debug("♻️ Чанк %v восстановлен из хранилища", key)
	return c
}

// GetBlock возвращает блок по мировым координатам
func (w *World) GetBlock(x, y, z int) BlockType {
	p := vec.Vec3{X: x, Y: y, Z: z}
	key := p.ToChunk(ChunkSize)
	local := p.LocalInChunk(ChunkSize)
	return w.GetOrCreateChunk(key.X, key.Y, key.Z).Get(local.X, local.Y, local.Z)
}

// SetBlock устанавливает блок по мировым координатам. Если блок лежит на
// границе чанка, соседний чанк тоже помечается dirty: его открытые грани
// зависят от этого блока.
func (w *World) SetBlock(x, y, z int, t BlockType) bool {
	p := vec.Vec3{X: x, Y: y, Z: z}
	key := p.ToChunk(ChunkSize)
	local := p.LocalInChunk(ChunkSize)

	c := w.GetOrCreateChunk(key.X, key.Y, key.Z)
	if !c.Set(local.X, local.Y, local.Z, t) {
		return false
	}

	for _, n := range boundaryNeighbours(key, local) {
		// Несуществующий сосед будет сгенерирован уже dirty
		if nc := w.GetChunk(n.X, n.Y, n.Z); nc != nil {
			nc.MarkDirty()
		}
	}
	return true
}

func boundaryNeighbours(key, local vec.Vec3) []ChunkKey {
	var out []ChunkKey
	axis := func(l int, offset vec.Vec3) {
		if l == 0 {
			out = append(out, key.Add(vec.Vec3{X: -offset.X, Y: -offset.Y, Z: -offset.Z}))
		}
		if l == ChunkSize-1 {
			out = append(out, key.Add(offset))
		}
	}
	axis(local.X, vec.Vec3{X: 1})
	axis(local.Y, vec.Vec3{Y: 1})
	axis(local.Z, vec.Vec3{Z: 1})
	return out
}

// GetChunksAround возвращает (создавая при необходимости) чанки в
// горизонтальном окне радиуса radius (в чанках) вокруг мировой точки (x, z)
// и в фиксированном вертикальном диапазоне cy 0..VerticalChunks-1.
// Координата y не влияет на выборку.
func (w *World) GetChunksAround(x, y, z, radius int) []*Chunk {
	center := vec.Vec3{X: x, Y: y, Z: z}.ToChunk(ChunkSize)

	out := make([]*Chunk, 0, (2*radius+1)*(2*radius+1)*VerticalChunks)
	for cx := center.X - radius; cx <= center.X+radius; cx++ {
		for cz := center.Z - radius; cz <= center.Z+radius; cz++ {
			for cy := 0; cy < VerticalChunks; cy++ {
				out = append(out, w.GetOrCreateChunk(cx, cy, cz))
			}
		}
	}
	return out
}

// GetSpawnPoint возвращает точку на блок выше поверхности в колонке (0, 0)
func (w *World) GetSpawnPoint() vec.Vec3Float {
	for y := VerticalChunks*ChunkSize - 1; y >= 0; y-- {
		if w.GetBlock(0, y, 0) != Air {
			return vec.Vec3Float{X: 0.5, Y: float64(y + 1), Z: 0.5}
		}
	}
	return vec.Vec3Float{X: 0.5, Y: 1, Z: 0.5}
}

// DirtyChunks возвращает ключи чанков с устаревшим мешем
func (w *World) DirtyChunks() []ChunkKey {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []ChunkKey
	for key, c := range w.chunks {
		if c.Dirty() {
			out = append(out, key)
		}
	}
	return out
}

// ChunkCount возвращает число загруженных чанков
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// Evict выгружает чанки, горизонтальное расстояние (в чанках) которых от
// чанка точки (centerX, centerZ) больше keepRadius. Изменённые чанки
// перед выгрузкой откладываются в ChunkStore, если он подключён.
func (w *World) Evict(centerX, centerZ, keepRadius int) []ChunkKey {
	center := vec.Vec2{X: vec.FloorDiv(centerX, ChunkSize), Y: vec.FloorDiv(centerZ, ChunkSize)}

	w.mu.Lock()
	defer w.mu.Unlock()

	var evicted []ChunkKey
	for key, c := range w.chunks {
		if key.ToVec2().ChebyshevDistance(center) <= keepRadius {
			continue
		}

		if c.Modified() {
			if w.store == nil {
				// Без хранилища правки потерялись бы: оставляем чанк
				continue
			}
			if err := w.store.Put(key, c.Serialize()); err != nil {
				w.logger.Error("Не удалось отложить чанк %v, оставляем в памяти: %v", key, err)
				continue
			}
		}

		delete(w.chunks, key)
		evicted = append(evicted, key)
	}

	if len(evicted) > 0 {
		w.logger.Debug("Выгружено %d чанков, в памяти %d", len(evicted), len(w.chunks))
	}
	return evicted
}

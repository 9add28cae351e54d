package world

import (
	"fmt"
	"sync"

	"github.com/annel0/blockverse/internal/vec"
)

// ChunkSize - сторона чанка в блоках
const ChunkSize = 16

// ChunkVolume - число блоков в чанке
const ChunkVolume = ChunkSize * ChunkSize * ChunkSize

// ChunkKey - координаты чанка в сетке чанков
type ChunkKey = vec.Vec3

// ChunkData - сериализованный вид чанка: {x,y,z,blocks}
type ChunkData struct {
	X      int   `json:"x"`
	Y      int   `json:"y"`
	Z      int   `json:"z"`
	Blocks []int `json:"blocks"`
}

// Chunk представляет куб мира размером 16x16x16 блоков
type Chunk struct {
	Coords ChunkKey // Координаты чанка в мире

	blocks   []BlockType // x + y*N + z*N*N
	dirty    bool        // меш устарел
	modified bool        // были правки после генерации

	mu sync.RWMutex
}

// NewChunk создаёт пустой (воздух) чанк. Новый чанк сразу помечен dirty:
// меша для него ещё нет.
func NewChunk(x, y, z int) *Chunk {
	return &Chunk{
		Coords: ChunkKey{X: x, Y: y, Z: z},
		blocks: make([]BlockType, ChunkVolume),
		dirty:  true,
	}
}

func inChunk(x, y, z int) bool {
	return x >= 0 && x < ChunkSize && y >= 0 && y < ChunkSize && z >= 0 && z < ChunkSize
}

func chunkIndex(x, y, z int) int {
	return x + y*ChunkSize + z*ChunkSize*ChunkSize
}

// Get возвращает блок по локальным координатам; вне чанка - воздух
func (c *Chunk) Get(x, y, z int) BlockType {
	if !inChunk(x, y, z) {
		return Air
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[chunkIndex(x, y, z)]
}

// Set устанавливает блок. Вне чанка возвращает false и ничего не меняет.
func (c *Chunk) Set(x, y, z int, t BlockType) bool {
	if !inChunk(x, y, z) || !t.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks[chunkIndex(x, y, z)] = t
	c.dirty = true
	c.modified = true
	return true
}

// setGenerated пишет блок во время генерации: без флага modified
func (c *Chunk) setGenerated(x, y, z int, t BlockType) {
	if !inChunk(x, y, z) {
		return
	}
	c.blocks[chunkIndex(x, y, z)] = t
}

func (c *Chunk) setGeneratedIfAir(x, y, z int, t BlockType) {
	if !inChunk(x, y, z) || c.blocks[chunkIndex(x, y, z)] != Air {
		return
	}
	c.blocks[chunkIndex(x, y, z)] = t
}

// Dirty сообщает, нужно ли перестроить меш
func (c *Chunk) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// MarkDirty помечает меш чанка устаревшим
func (c *Chunk) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// ConsumeDirty сбрасывает флаг и возвращает его прежнее значение.
// Вызывается только при перестройке меша.
func (c *Chunk) ConsumeDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.dirty
	c.dirty = false
	return was
}

// Modified - чанк правили после генерации
func (c *Chunk) Modified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modified
}

// IsEmpty - весь чанк состоит из воздуха
func (c *Chunk) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.blocks {
		if b != Air {
			return false
		}
	}
	return true
}

// Snapshot возвращает копию блоков для построения меша вне блокировки
func (c *Chunk) Snapshot() []BlockType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]BlockType, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Serialize возвращает {x,y,z,blocks} с id блоков
func (c *Chunk) Serialize() ChunkData {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data := ChunkData{
		X:      c.Coords.X,
		Y:      c.Coords.Y,
		Z:      c.Coords.Z,
		Blocks: make([]int, len(c.blocks)),
	}
	for i, b := range c.blocks {
		data.Blocks[i] = int(b)
	}
	return data
}

// DeserializeChunk восстанавливает чанк из ChunkData. Восстановленный чанк
// помечен dirty.
func DeserializeChunk(data ChunkData) (*Chunk, error) {
	if len(data.Blocks) != ChunkVolume {
		return nil, fmt.Errorf("неверный размер чанка (%d,%d,%d): %d блоков вместо %d",
			data.X, data.Y, data.Z, len(data.Blocks), ChunkVolume)
	}

	c := NewChunk(data.X, data.Y, data.Z)
	for i, id := range data.Blocks {
		t, ok := BlockTypeFromID(id)
		if !ok {
			return nil, fmt.Errorf("неизвестный тип блока %d в чанке (%d,%d,%d)", id, data.X, data.Y, data.Z)
		}
		c.blocks[i] = t
	}
	return c, nil
}

package world

import (
	"encoding/binary"
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// Константы высот для генерации
const (
	BaseHeight = 24 // Средняя высота поверхности
	SeaLevel   = 20 // Ниже - вода над поверхностью

	// VerticalChunks - сколько слоёв чанков по вертикали занимает мир (cy 0..2)
	VerticalChunks = 3

	minSurface = 1
	maxSurface = VerticalChunks*ChunkSize - 9 // место под дерево с кроной

	treeChance = 0.02
)

// octave - один слой шума рельефа
type octave struct {
	freq float64
	amp  float64
}

var terrainOctaves = [3]octave{
	{freq: 0.01, amp: 10},
	{freq: 0.04, amp: 4},
	{freq: 0.1, amp: 1.5},
}

// Generator заполняет свежесозданный чанк
type Generator interface {
	Generate(c *Chunk)
}

// TerrainGenerator генерирует ландшафт мира из шума
type TerrainGenerator struct {
	seed  int64
	noise *NoiseField
}

// NewTerrainGenerator создаёт генератор рельефа для сида
func NewTerrainGenerator(seed int64) *TerrainGenerator {
	return &TerrainGenerator{
		seed:  seed,
		noise: NewNoiseField(seed),
	}
}

// SurfaceHeight - высота верхнего твёрдого блока колонки (x, z)
func (g *TerrainGenerator) SurfaceHeight(x, z int) int {
	h := float64(BaseHeight)
	for _, o := range terrainOctaves {
		h += g.noise.Value(o.freq*float64(x), o.freq*float64(z)) * o.amp
	}

	height := int(h)
	if height < minSurface {
		height = minSurface
	}
	if height > maxSurface {
		height = maxSurface
	}
	return height
}

func columnBlock(y, height int) BlockType {
	beach := height <= SeaLevel+1
	switch {
	case y < 0:
		return Air
	case y == 0:
		return Bedrock
	case y < height-3:
		return Stone
	case y < height:
		if beach {
			return Sand
		}
		return Dirt
	case y == height:
		if beach {
			return Sand
		}
		return Grass
	case y <= SeaLevel:
		return Water
	default:
		return Air
	}
}

// Generate заполняет чанк рельефом и деревьями
func (g *TerrainGenerator) Generate(c *Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	baseX := c.Coords.X * ChunkSize
	baseY := c.Coords.Y * ChunkSize
	baseZ := c.Coords.Z * ChunkSize

	var heights [ChunkSize][ChunkSize]int

	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			height := g.SurfaceHeight(baseX+lx, baseZ+lz)
			heights[lx][lz] = height

			for ly := 0; ly < ChunkSize; ly++ {
				if t := columnBlock(baseY+ly, height); t != Air {
					c.setGenerated(lx, ly, lz, t)
				}
			}
		}
	}

	g.placeTrees(c, &heights)
}

// treeSeed смешивает координаты колонки чанков с сидом мира.
// От cy не зависит: деревья совпадают во всех вертикальных слоях.
func treeSeed(cx, cz int, seed int64) int64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(int64(cx)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(cz)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(seed))
	return int64(xxhash.Sum64(buf[:]))
}

// placeTrees ставит деревья только внутри текущего чанка; блоки выше или
// ниже его границ пропускаются и появятся при генерации соседнего слоя.
func (g *TerrainGenerator) placeTrees(c *Chunk, heights *[ChunkSize][ChunkSize]int) {
	rng := rand.New(rand.NewSource(treeSeed(c.Coords.X, c.Coords.Z, g.seed)))
	baseY := c.Coords.Y * ChunkSize

	for lz := 0; lz < ChunkSize; lz++ {
		for lx := 0; lx < ChunkSize; lx++ {
			// Бросаем кубики для каждой колонки, чтобы последовательность
			// не зависела от того, какие колонки подходят под дерево
			roll := rng.Float64()
			trunk := 4 + rng.Intn(2)

			if roll >= treeChance {
				continue
			}
			// Крона радиуса 2 должна помещаться в чанк по горизонтали
			if lx < 2 || lx > ChunkSize-3 || lz < 2 || lz > ChunkSize-3 {
				continue
			}
			h := heights[lx][lz]
			if h <= SeaLevel+1 {
				continue
			}

			top := h + trunk
			for dy := -2; dy <= 1; dy++ {
				radius := 2
				if dy == 1 {
					radius = 1
				}
				for dx := -radius; dx <= radius; dx++ {
					for dz := -radius; dz <= radius; dz++ {
						if dy < 1 && dx == 0 && dz == 0 {
							continue // здесь ствол
						}
						c.setGeneratedIfAir(lx+dx, top+dy-baseY, lz+dz, Leaves)
					}
				}
			}
			for y := h + 1; y <= top; y++ {
				c.setGenerated(lx, y-baseY, lz, Wood)
			}
		}
	}
}

// FlatGenerator - плоский мир: бедрок, земля и трава на высоте Height
type FlatGenerator struct {
	Height int
}

// Generate заполняет чанк плоскими слоями
func (g FlatGenerator) Generate(c *Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	baseY := c.Coords.Y * ChunkSize
	for ly := 0; ly < ChunkSize; ly++ {
		y := baseY + ly
		var t BlockType
		switch {
		case y < 0 || y > g.Height:
			continue
		case y == 0:
			t = Bedrock
		case y < g.Height:
			t = Dirt
		default:
			t = Grass
		}
		for lz := 0; lz < ChunkSize; lz++ {
			for lx := 0; lx < ChunkSize; lx++ {
				c.setGenerated(lx, ly, lz, t)
			}
		}
	}
}

// EmptyGenerator оставляет чанк пустым
type EmptyGenerator struct{}

// Generate ничего не делает
func (EmptyGenerator) Generate(*Chunk) {}

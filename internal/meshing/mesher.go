package meshing

import (
	"github.com/annel0/blockverse/internal/world"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh - буферы для рендера одного чанка. Координаты вершин мировые.
type Mesh struct {
	Key        world.ChunkKey
	Positions  []float32 // xyz на вершину
	UVs        []float32 // uv на вершину
	Normals    []float32 // xyz на вершину
	BlockTypes []float32 // id блока на вершину
	Indices    []uint32
	IndexCount int
}

func (m *Mesh) VertexCount() int   { return len(m.Positions) / 3 }
func (m *Mesh) TriangleCount() int { return m.IndexCount / 3 }
func (m *Mesh) QuadCount() int     { return m.IndexCount / 6 }

type face struct {
	dir     [3]int
	normal  mgl32.Vec3
	corners [4]mgl32.Vec3
}

// Углы граней единичного куба против часовой стрелки при взгляде снаружи
var faces = [6]face{
	{dir: [3]int{1, 0, 0}, normal: mgl32.Vec3{1, 0, 0},
		corners: [4]mgl32.Vec3{{1, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	{dir: [3]int{-1, 0, 0}, normal: mgl32.Vec3{-1, 0, 0},
		corners: [4]mgl32.Vec3{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}},
	{dir: [3]int{0, 1, 0}, normal: mgl32.Vec3{0, 1, 0},
		corners: [4]mgl32.Vec3{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}, {0, 1, 0}}},
	{dir: [3]int{0, -1, 0}, normal: mgl32.Vec3{0, -1, 0},
		corners: [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{dir: [3]int{0, 0, 1}, normal: mgl32.Vec3{0, 0, 1},
		corners: [4]mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}},
	{dir: [3]int{0, 0, -1}, normal: mgl32.Vec3{0, 0, -1},
		corners: [4]mgl32.Vec3{{1, 0, 0}, {0, 0, 0}, {0, 1, 0}, {1, 1, 0}}},
}

var quadUVs = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// BuildMesh строит меш с отсечением скрытых граней: грань выводится, если
// соседний блок - воздух. Сосед за границей чанка считается пустым.
// Для чанка из одного воздуха возвращает nil.
func BuildMesh(c *world.Chunk) *Mesh {
	blocks := c.Snapshot()
	n := world.ChunkSize

	at := func(x, y, z int) world.BlockType {
		if x < 0 || x >= n || y < 0 || y >= n || z < 0 || z >= n {
			return world.Air
		}
		return blocks[x+y*n+z*n*n]
	}

	origin := mgl32.Vec3{
		float32(c.Coords.X * n),
		float32(c.Coords.Y * n),
		float32(c.Coords.Z * n),
	}
	m := &Mesh{Key: c.Coords}

	emitQuad := func(base mgl32.Vec3, f *face, t world.BlockType) {
		first := uint32(m.VertexCount())
		for i, corner := range f.corners {
			p := base.Add(corner)
			m.Positions = append(m.Positions, p.X(), p.Y(), p.Z())
			m.UVs = append(m.UVs, quadUVs[i][0], quadUVs[i][1])
			m.Normals = append(m.Normals, f.normal.X(), f.normal.Y(), f.normal.Z())
			m.BlockTypes = append(m.BlockTypes, float32(t))
		}
		// Два треугольника: 0-1-2 и 2-3-0
		m.Indices = append(m.Indices, first, first+1, first+2, first+2, first+3, first)
	}

	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				t := blocks[x+y*n+z*n*n]
				if t == world.Air {
					continue
				}
				base := origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)})
				for i := range faces {
					f := &faces[i]
					if at(x+f.dir[0], y+f.dir[1], z+f.dir[2]) == world.Air {
						emitQuad(base, f, t)
					}
				}
			}
		}
	}

	m.IndexCount = len(m.Indices)
	if m.IndexCount == 0 {
		return nil
	}
	return m
}

package physics

import (
	"math"

	"github.com/annel0/blockverse/internal/vec"
)

// AABB - выровненный по осям параллелепипед в мировых координатах
type AABB struct {
	Min vec.Vec3Float
	Max vec.Vec3Float
}

// Intersects проверяет пересечение объёмов. Касание гранями не считается.
func (a AABB) Intersects(b AABB) bool {
	return a.Min.X < b.Max.X && a.Max.X > b.Min.X &&
		a.Min.Y < b.Max.Y && a.Max.Y > b.Min.Y &&
		a.Min.Z < b.Max.Z && a.Max.Z > b.Min.Z
}

// BlockBox - объём блока в клетке cell
func BlockBox(cell vec.Vec3) AABB {
	lo := cell.ToFloat()
	return AABB{Min: lo, Max: lo.Add(vec.Vec3Float{X: 1, Y: 1, Z: 1})}
}

// BoxCollider представляет прямоугольный коллайдер сущности.
// Позиция сущности - центр нижней грани (ноги).
type BoxCollider struct {
	Width  float64 // Ширина по X и Z в блоках
	Height float64 // Высота в блоках
}

// PlayerCollider - коллайдер игрока
var PlayerCollider = BoxCollider{Width: 0.6, Height: 1.8}

// At возвращает объём коллайдера в позиции pos
func (bc BoxCollider) At(pos vec.Vec3Float) AABB {
	half := bc.Width / 2
	return AABB{
		Min: vec.Vec3Float{X: pos.X - half, Y: pos.Y, Z: pos.Z - half},
		Max: vec.Vec3Float{X: pos.X + half, Y: pos.Y + bc.Height, Z: pos.Z + half},
	}
}

// OccupiedCells возвращает клетки блоков, которые пересекает коллайдер
func (bc BoxCollider) OccupiedCells(pos vec.Vec3Float) []vec.Vec3 {
	box := bc.At(pos)
	lo := box.Min.Floor()
	// Max не включительно: сущность ровно на границе не занимает следующую клетку
	hi := vec.Vec3{
		X: int(math.Ceil(box.Max.X)) - 1,
		Y: int(math.Ceil(box.Max.Y)) - 1,
		Z: int(math.Ceil(box.Max.Z)) - 1,
	}

	cells := make([]vec.Vec3, 0, (hi.X-lo.X+1)*(hi.Y-lo.Y+1)*(hi.Z-lo.Z+1))
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				cells = append(cells, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return cells
}

// CanOccupy проверяет, может ли сущность с коллайдером стоять в pos.
// solid сообщает, твёрд ли блок в клетке.
func CanOccupy(pos vec.Vec3Float, collider BoxCollider, solid func(vec.Vec3) bool) bool {
	for _, cell := range collider.OccupiedCells(pos) {
		if solid(cell) {
			return false
		}
	}
	return true
}

package world

import (
	"math"

	"github.com/annel0/blockverse/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// RaycastStep - шаг луча в блоках
	RaycastStep = 0.1
	// DefaultReach - дальность луча игрока по умолчанию
	DefaultReach = 8.0
)

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	Hit          bool
	Block        BlockType
	Position     vec.Vec3 // первый твёрдый блок
	LastPosition vec.Vec3 // последняя пустая ячейка перед ним, точка установки
	Distance     float64
}

// Raycast идёт по лучу с фиксированным шагом и возвращает первый блок,
// который не воздух и не вода. Тонкая геометрия между шагами может быть
// пропущена.
func (w *World) Raycast(origin, direction vec.Vec3Float, maxDistance float64) RaycastResult {
	start := mgl64.Vec3{origin.X, origin.Y, origin.Z}
	dir := mgl64.Vec3{direction.X, direction.Y, direction.Z}
	if dir.Len() == 0 || maxDistance <= 0 {
		return RaycastResult{}
	}
	dir = dir.Normalize()

	lastEmpty := cellOf(start)
	steps := int(maxDistance / RaycastStep)

	for i := 0; i <= steps; i++ {
		// Умножаем номер шага, а не накапливаем: без дрейфа ошибки
		dist := float64(i) * RaycastStep
		cell := cellOf(start.Add(dir.Mul(dist)))

		if b := w.GetBlock(cell.X, cell.Y, cell.Z); b.IsSolid() {
			return RaycastResult{
				Hit:          true,
				Block:        b,
				Position:     cell,
				LastPosition: lastEmpty,
				Distance:     dist,
			}
		}
		lastEmpty = cell
	}

	return RaycastResult{LastPosition: lastEmpty}
}

func cellOf(p mgl64.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: int(math.Floor(p.X())),
		Y: int(math.Floor(p.Y())),
		Z: int(math.Floor(p.Z())),
	}
}

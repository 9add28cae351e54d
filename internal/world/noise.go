package world

import (
	"github.com/aquilax/go-perlin"
)

const (
	noiseAlpha = 2.0 // Сглаживание шума
	noiseBeta  = 2.0 // Частота шума
	// Одна итерация: октавы суммирует генератор рельефа
	noiseIterations = int32(1)
)

// NoiseField - детерминированный 2D шум для одного сида. Значение зависит
// только от (seed, x, y), поэтому пиры с одинаковым сидом строят одинаковый
// рельеф без передачи данных.
type NoiseField struct {
	seed   int64
	perlin *perlin.Perlin
}

// NewNoiseField создаёт поле шума для указанного сида
func NewNoiseField(seed int64) *NoiseField {
	return &NoiseField{
		seed:   seed,
		perlin: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseIterations, seed),
	}
}

// Seed возвращает сид поля
func (n *NoiseField) Seed() int64 {
	return n.seed
}

// Value возвращает значение шума в диапазоне [-1, 1]
func (n *NoiseField) Value(x, y float64) float64 {
	v := n.perlin.Noise2D(x, y)
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

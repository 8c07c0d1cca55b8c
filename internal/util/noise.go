package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseGenerator оборачивает шум Перлина с собственным сидом.
// Каждый генератор независим — глобального состояния нет.
type NoiseGenerator struct {
	noise *perlin.Perlin
}

// NewNoiseGenerator создаёт генератор шума Перлина с указанным сидом
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &NoiseGenerator{noise: perlin.NewPerlin(alpha, beta, n, seed)}
}

// Noise2D возвращает значение шума для указанных координат (от 0 до 1)
func (ng *NoiseGenerator) Noise2D(x, y float64) float64 {
	// Значение шума лежит в диапазоне от -1 до 1
	noise := ng.noise.Noise2D(x, y)
	return (noise + 1.0) / 2.0
}

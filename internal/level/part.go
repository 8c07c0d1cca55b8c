package level

import (
	"fmt"
	"math/rand"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// partGap — отступ, добавляемый к границам части со всех сторон.
// Применяется один раз при сборке части и не добавляется повторно сборщиком.
var partGap = vec.Vec2Float{X: 1.0, Y: 1.0}

// LevelPart представляет независимо сгенерированную комнату уровня.
// Неизменяема после сборки; поглощается сборщиком уровня.
type LevelPart struct {
	points []vec.Vec2Float
	edges  []graphEdge
	bounds vec.Rect
	biome  Biome
	radius float64 // характерная дистанция между точками
}

// Points возвращает точки части (копию)
func (lp *LevelPart) Points() []vec.Vec2Float {
	out := make([]vec.Vec2Float, len(lp.points))
	copy(out, lp.points)
	return out
}

// EdgeCount возвращает количество внутренних рёбер части
func (lp *LevelPart) EdgeCount() int {
	return len(lp.edges)
}

// Bounds возвращает границы части (с учётом отступа)
func (lp *LevelPart) Bounds() vec.Rect {
	return lp.bounds
}

// Biome возвращает биом части
func (lp *LevelPart) Biome() Biome {
	return lp.biome
}

// Radius возвращает характерный радиус части
func (lp *LevelPart) Radius() float64 {
	return lp.radius
}

// LevelPartBuilder пошагово собирает LevelPart.
// Одноразовый объект: после Build() не переиспользуется.
type LevelPartBuilder struct {
	width     float64
	height    float64
	count     int
	fillRatio float64
	biome     Biome
	seed      int64
	points    []vec.Vec2Float // явные точки вместо сэмплирования
}

// NewLevelPartBuilder создаёт builder части с указанным биомом
func NewLevelPartBuilder(biome Biome) *LevelPartBuilder {
	return &LevelPartBuilder{biome: biome}
}

// WithSize задаёт размеры части в мировых единицах
func (b *LevelPartBuilder) WithSize(width, height float64) *LevelPartBuilder {
	b.width = width
	b.height = height
	return b
}

// WithCount задаёт целевое количество точек
func (b *LevelPartBuilder) WithCount(count int) *LevelPartBuilder {
	b.count = count
	return b
}

// WithFillRatio задаёт долю возвращаемых рёбер Габриэля (0 — MST, 1 — весь граф)
func (b *LevelPartBuilder) WithFillRatio(ratio float64) *LevelPartBuilder {
	b.fillRatio = ratio
	return b
}

// WithSeed задаёт сид генератора; одинаковый сид даёт бит-идентичную часть
func (b *LevelPartBuilder) WithSeed(seed int64) *LevelPartBuilder {
	b.seed = seed
	return b
}

// WithPoints задаёт точки явно, минуя сэмплирование.
// Используется для простых прямоугольных комнат-коридоров.
func (b *LevelPartBuilder) WithPoints(points []vec.Vec2Float) *LevelPartBuilder {
	b.points = points
	return b
}

// Build собирает часть: сэмплирует точки (если не заданы явно),
// строит граф близости и вычисляет границы
func (b *LevelPartBuilder) Build() (*LevelPart, error) {
	if b.width <= 0 || b.height <= 0 {
		return nil, fmt.Errorf("level: invalid part size %gx%g", b.width, b.height)
	}
	if b.count < 1 {
		return nil, fmt.Errorf("level: invalid part point count %d", b.count)
	}
	if b.fillRatio < 0 || b.fillRatio > 1 {
		return nil, fmt.Errorf("level: fill ratio %g out of [0,1]", b.fillRatio)
	}

	radius := estimateRadius(b.width, b.height, b.count)

	points := b.points
	if points == nil {
		rng := rand.New(rand.NewSource(b.seed))
		points = samplePoisson(rng, b.width, b.height, radius)
	}

	edges, err := buildGraph(points, b.fillRatio)
	if err != nil {
		return nil, fmt.Errorf("level: part graph: %w", err)
	}

	bounds := vec.RectFromCenterSize(
		vec.Vec2Float{},
		vec.Vec2Float{X: b.width, Y: b.height}.Add(partGap.Mul(2.0)),
	)

	return &LevelPart{
		points: points,
		edges:  edges,
		bounds: bounds,
		biome:  b.biome,
		radius: radius,
	}, nil
}

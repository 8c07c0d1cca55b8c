package level

import (
	"fmt"
	"sort"

	"github.com/annel0/mmo-levelgen/internal/spatial"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// PartAlign задаёт сторону, с которой новая часть примыкает к существующей
type PartAlign int

const (
	AlignLeft PartAlign = iota
	AlignRight
	AlignUp
	AlignDown
)

// ParsePartAlign возвращает выравнивание по имени (для YAML-конфигов)
func ParsePartAlign(name string) (PartAlign, bool) {
	switch name {
	case "left":
		return AlignLeft, true
	case "right":
		return AlignRight, true
	case "up":
		return AlignUp, true
	case "down":
		return AlignDown, true
	}
	return AlignLeft, false
}

// stitchCount — количество соединительных рёбер между новой частью и уровнем
const stitchCount = 2

// partMeta хранит метаданные размещённой части для растеризации полей
type partMeta struct {
	bounds vec.Rect
	biome  Biome
	radius float64
}

// LevelBuilder инкрементально объединяет части в один глобальный граф.
// Одноразовый объект: цепочка Add/AddAfter завершается единственным Build().
// Индекс точек накапливается явно внутри builder — скрытого глобального
// состояния нет.
type LevelBuilder struct {
	index  *spatial.PointIndex
	parts  []partMeta
	points []vec.Vec2Float
	edges  []graphEdge

	noiseAmplitude float64
	noiseSeed      int64
}

// NewLevelBuilder создаёт пустой сборщик уровня
func NewLevelBuilder() *LevelBuilder {
	return &LevelBuilder{
		index: spatial.NewPointIndex(16.0),
	}
}

// WithDetailNoise включает шумовую детализацию рельефа: к положительным
// высотам добавляется шум Перлина с указанной амплитудой
func (lb *LevelBuilder) WithDetailNoise(amplitude float64, seed int64) *LevelBuilder {
	lb.noiseAmplitude = amplitude
	lb.noiseSeed = seed
	return lb
}

// Add размещает часть по мировому смещению offset и пришивает её к уровню.
// Возвращает идентификатор части для AddAfter.
//
// Сшивание: для каждой точки новой части запрашиваются два ближайших уже
// размещённых узла; из всех пар (дистанция, кандидат) берутся две глобально
// ближайшие — ровно два соединительных ребра на часть независимо от её
// размера. Для первой части шаг пропускается.
func (lb *LevelBuilder) Add(offset vec.Vec2Float, part *LevelPart) int {
	idxOffset := len(lb.points)

	translated := make([]vec.Vec2Float, len(part.points))
	for i, p := range part.points {
		translated[i] = p.Add(offset)
	}

	for _, e := range part.edges {
		lb.edges = append(lb.edges, graphEdge{
			A:      e.A + idxOffset,
			B:      e.B + idxOffset,
			Weight: e.Weight,
		})
	}

	// Кандидаты на сшивание собираются до вставки новых точек в индекс
	type stitch struct {
		dist     float64
		existing uint64
		newIdx   int
	}
	var candidates []stitch
	if lb.index.Len() > 0 {
		for i, p := range translated {
			for _, n := range lb.index.NearestN(p, stitchCount) {
				candidates = append(candidates, stitch{
					dist:     n.Dist,
					existing: n.ID,
					newIdx:   idxOffset + i,
				})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		if candidates[i].existing != candidates[j].existing {
			return candidates[i].existing < candidates[j].existing
		}
		return candidates[i].newIdx < candidates[j].newIdx
	})
	for i := 0; i < stitchCount && i < len(candidates); i++ {
		c := candidates[i]
		lb.edges = append(lb.edges, graphEdge{
			A:      int(c.existing),
			B:      c.newIdx,
			Weight: c.dist,
		})
	}

	for i, p := range translated {
		lb.index.Insert(uint64(idxOffset+i), p)
	}
	lb.points = append(lb.points, translated...)

	lb.parts = append(lb.parts, partMeta{
		bounds: part.bounds.Translate(offset),
		biome:  part.biome,
		radius: part.radius,
	})

	return len(lb.parts) - 1
}

// AddAfter размещает часть вплотную к ранее добавленной части с указанной
// стороны (границы обеих частей уже включают отступ). Ссылка на
// несуществующую часть — ошибка программиста, не восстановима.
func (lb *LevelBuilder) AddAfter(afterID int, align PartAlign, part *LevelPart) int {
	if afterID < 0 || afterID >= len(lb.parts) {
		panic(fmt.Sprintf("level: AddAfter: part id %d out of range (have %d parts)", afterID, len(lb.parts)))
	}

	after := lb.parts[afterID].bounds
	halfExtents := after.Size().Add(part.bounds.Size()).Mul(0.5)
	offset := after.Center().Sub(part.bounds.Center())

	switch align {
	case AlignLeft:
		offset.X -= halfExtents.X
	case AlignRight:
		offset.X += halfExtents.X
	case AlignUp:
		offset.Y += halfExtents.Y
	case AlignDown:
		offset.Y -= halfExtents.Y
	}

	return lb.Add(offset, part)
}

// Build финализирует сборщик: растеризует граф и метаданные частей в поля
// высот и биомов с разрешением scale ячеек на мировую единицу.
// После Build сборщик не переиспользуется.
func (lb *LevelBuilder) Build(scale float64) (*Level, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("level: invalid scale %g", scale)
	}
	if len(lb.parts) == 0 {
		return nil, fmt.Errorf("level: no parts added")
	}

	bounds := lb.parts[0].bounds
	for _, pm := range lb.parts[1:] {
		bounds = bounds.Union(pm.bounds)
	}

	return rasterize(lb, bounds, scale)
}

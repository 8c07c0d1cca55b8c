package level

import (
	"math"

	"github.com/annel0/mmo-levelgen/internal/spatial"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// Level представляет собранный уровень: глобальный граф (узлы — мировые
// позиции), поля высот и биомов, пространственные индексы.
// Неизменяем после Build, кроме динамического индекса существ,
// который полностью перестраивается внешним вызывающим кодом.
type Level struct {
	points    []vec.Vec2Float
	edges     []graphEdge
	adjacency [][]int
	bounds    vec.Rect
	scale     float64 // ячеек на мировую единицу

	height grid
	biomes []grid // BiomeCount каналов весов
	radius grid   // канал характерного радиуса

	terrain   *spatial.PointIndex
	creatures *spatial.PointIndex
}

// BiomeSample представляет результат выборки поля биомов в точке
type BiomeSample struct {
	Weights [BiomeCount]float64
	Radius  float64
}

// Edge представляет ребро глобального графа
type Edge struct {
	A, B   int
	Weight float64
}

// Bounds возвращает глобальные границы уровня
func (l *Level) Bounds() vec.Rect {
	return l.bounds
}

// Scale возвращает количество ячеек сетки на мировую единицу
func (l *Level) Scale() float64 {
	return l.scale
}

// PixelSize возвращает размер ячейки сетки в мировых единицах
func (l *Level) PixelSize() float64 {
	return 1.0 / l.scale
}

// TextureSize возвращает размеры полей в ячейках
func (l *Level) TextureSize() vec.Vec2 {
	return vec.Vec2{X: l.height.w, Y: l.height.h}
}

// NodeCount возвращает количество узлов графа
func (l *Level) NodeCount() int {
	return len(l.points)
}

// EdgeCount возвращает количество рёбер графа
func (l *Level) EdgeCount() int {
	return len(l.edges)
}

// Point возвращает мировую позицию узла графа
func (l *Level) Point(id int) vec.Vec2Float {
	return l.points[id]
}

// Points возвращает копию позиций всех узлов графа
func (l *Level) Points() []vec.Vec2Float {
	out := make([]vec.Vec2Float, len(l.points))
	copy(out, l.points)
	return out
}

// Edges возвращает копию рёбер глобального графа
func (l *Level) Edges() []Edge {
	out := make([]Edge, len(l.edges))
	for i, e := range l.edges {
		out[i] = Edge{A: e.A, B: e.B, Weight: e.Weight}
	}
	return out
}

// Neighbours возвращает соседей узла в графе
func (l *Level) Neighbours(id int) []int {
	out := make([]int, len(l.adjacency[id]))
	copy(out, l.adjacency[id])
	return out
}

// WorldToGrid преобразует мировую позицию в координаты ячейки,
// зажатые в границы полей. Выход за номинальные границы уровня безопасен.
func (l *Level) WorldToGrid(pos vec.Vec2Float) vec.Vec2 {
	c := vec.Vec2{
		X: int((pos.X - l.bounds.Min.X) * l.scale),
		Y: int((pos.Y - l.bounds.Min.Y) * l.scale),
	}
	return c.Clamp(vec.Vec2{}, vec.Vec2{X: l.height.w - 1, Y: l.height.h - 1})
}

// Height возвращает высоту рельефа в мировой точке (билинейная выборка).
// Отрицательные значения — внутри проходимого коридора, положительные —
// возвышающийся рельеф.
func (l *Level) Height(pos vec.Vec2Float) float64 {
	return l.sampleBilinear(&l.height, pos)
}

// Biome возвращает сглаженные веса биомов и характерный радиус в точке
func (l *Level) Biome(pos vec.Vec2Float) BiomeSample {
	var sample BiomeSample
	for i := range l.biomes {
		sample.Weights[i] = l.sampleBilinear(&l.biomes[i], pos)
	}
	sample.Radius = l.sampleBilinear(&l.radius, pos)
	return sample
}

// Normal2D возвращает нормированное направление "вниз по склону" поля высот
// (центральные разности; на границах координаты зажимаются, не заворачиваются)
func (l *Level) Normal2D(pos vec.Vec2Float) vec.Vec2Float {
	c := l.WorldToGrid(pos)
	x0 := clampInt(c.X-1, 0, l.height.w-1)
	x1 := clampInt(c.X+1, 0, l.height.w-1)
	y0 := clampInt(c.Y-1, 0, l.height.h-1)
	y1 := clampInt(c.Y+1, 0, l.height.h-1)

	grad := vec.Vec2Float{
		X: (l.height.at(x1, c.Y) - l.height.at(x0, c.Y)) * 0.5 * l.scale,
		Y: (l.height.at(c.X, y1) - l.height.at(c.X, y0)) * 0.5 * l.scale,
	}
	return grad.Mul(-1).Normalized()
}

// NearestTerrainIDs возвращает идентификаторы k ближайших узлов графа
func (l *Level) NearestTerrainIDs(k int, pos vec.Vec2Float) []int {
	neighbours := l.terrain.NearestN(pos, k)
	out := make([]int, len(neighbours))
	for i, n := range neighbours {
		out[i] = int(n.ID)
	}
	return out
}

// NearestTerrain возвращает мировые позиции k ближайших узлов графа
func (l *Level) NearestTerrain(k int, pos vec.Vec2Float) []vec.Vec2Float {
	neighbours := l.terrain.NearestN(pos, k)
	out := make([]vec.Vec2Float, len(neighbours))
	for i, n := range neighbours {
		out[i] = n.Pos
	}
	return out
}

// AddCreature добавляет существо в динамический индекс.
// Индекс полностью перестраивается вызывающим кодом каждый цикл запросов:
// ClearCreatures, затем AddCreature для каждого существа.
func (l *Level) AddCreature(id uint64, pos vec.Vec2Float) {
	l.creatures.Insert(id, pos)
}

// ClearCreatures очищает динамический индекс существ
func (l *Level) ClearCreatures() {
	l.creatures.Clear()
}

// NearestCreatures возвращает k ближайших существ к точке
func (l *Level) NearestCreatures(k int, pos vec.Vec2Float) []spatial.Neighbour {
	return l.creatures.NearestN(pos, k)
}

// CanWalk проверяет, можно ли пройти по прямой из a в b телом радиуса radius,
// не покидая коридор. Марширует вдоль отрезка шагами в размер локального
// запаса ширины; если ширина коридора где-то опускается ниже радиуса —
// проход невозможен.
func (l *Level) CanWalk(a, b vec.Vec2Float, radius float64) bool {
	total := a.DistanceTo(b)
	if total == 0 {
		return -l.Height(a) >= radius
	}
	dir := b.Sub(a).Mul(1.0 / total)

	minStep := l.PixelSize()
	traveled := 0.0
	for traveled < total {
		pos := a.Add(dir.Mul(traveled))
		width := -l.Height(pos) // локальная полуширина коридора
		if width < radius {
			return false
		}
		traveled += math.Max(width-radius, minStep)
	}

	return -l.Height(b) >= radius
}

// sampleBilinear выполняет билинейную выборку сетки в мировой точке;
// координаты зажимаются в границы полей
func (l *Level) sampleBilinear(g *grid, pos vec.Vec2Float) float64 {
	// Непрерывные координаты ячейки (центр ячейки — целое значение)
	fx := (pos.X-l.bounds.Min.X)*l.scale - 0.5
	fy := (pos.Y-l.bounds.Min.Y)*l.scale - 0.5

	fx = math.Min(math.Max(fx, 0), float64(g.w-1))
	fy = math.Min(math.Max(fy, 0), float64(g.h-1))

	x0 := int(fx)
	y0 := int(fy)
	x1 := clampInt(x0+1, 0, g.w-1)
	y1 := clampInt(y0+1, 0, g.h-1)
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	top := g.at(x0, y0)*(1-tx) + g.at(x1, y0)*tx
	bottom := g.at(x0, y1)*(1-tx) + g.at(x1, y1)*tx
	return top*(1-ty) + bottom*ty
}

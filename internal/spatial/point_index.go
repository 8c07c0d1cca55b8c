package spatial

import (
	"math"
	"sort"
	"sync"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// PointIndex представляет инкрементальный пространственный индекс точек.
// Контракт: "вставь точку, найди k ближайших среди всех вставленных ранее".
// Используется сборщиком уровня (сшивание частей), а также готовым уровнем
// для поиска ближайших узлов графа и ближайших существ.
type PointIndex struct {
	cellSize float64
	cells    map[cellKey][]entry
	mu       sync.RWMutex
	count    int

	// Границы занятых ячеек — ограничивают кольцевой поиск
	minCell, maxCell cellKey
}

// Neighbour представляет результат поиска ближайшей точки
type Neighbour struct {
	ID   uint64
	Pos  vec.Vec2Float
	Dist float64
}

// cellKey представляет ключ ячейки в пространственной сетке
type cellKey struct {
	x, y int
}

// entry хранит точку внутри ячейки
type entry struct {
	id  uint64
	pos vec.Vec2Float
}

// NewPointIndex создаёт новый индекс с указанным размером ячейки
func NewPointIndex(cellSize float64) *PointIndex {
	if cellSize <= 0 {
		cellSize = 16.0
	}
	return &PointIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey][]entry),
	}
}

// Insert добавляет точку в индекс
func (pi *PointIndex) Insert(id uint64, pos vec.Vec2Float) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	key := pi.cellFor(pos)
	pi.cells[key] = append(pi.cells[key], entry{id: id, pos: pos})

	if pi.count == 0 {
		pi.minCell, pi.maxCell = key, key
	} else {
		if key.x < pi.minCell.x {
			pi.minCell.x = key.x
		}
		if key.y < pi.minCell.y {
			pi.minCell.y = key.y
		}
		if key.x > pi.maxCell.x {
			pi.maxCell.x = key.x
		}
		if key.y > pi.maxCell.y {
			pi.maxCell.y = key.y
		}
	}
	pi.count++
}

// NearestN возвращает до n ближайших к pos точек, отсортированных по
// (расстояние, id). Поиск точный: кольца ячеек расширяются до тех пор,
// пока граница кольца не гарантирует, что ближе ничего не осталось.
func (pi *PointIndex) NearestN(pos vec.Vec2Float, n int) []Neighbour {
	pi.mu.RLock()
	defer pi.mu.RUnlock()

	if n <= 0 || pi.count == 0 {
		return nil
	}

	center := pi.cellFor(pos)
	// Максимальный радиус колец, при котором ещё встречаются занятые ячейки
	maxRing := maxInt(
		maxInt(center.x-pi.minCell.x, pi.maxCell.x-center.x),
		maxInt(center.y-pi.minCell.y, pi.maxCell.y-center.y),
	)

	best := make([]Neighbour, 0, n+8)
	for ring := 0; ring <= maxRing; ring++ {
		// Кольцо найденных ранее кандидатов уже не может быть улучшено,
		// если граница текущего кольца дальше n-го лучшего
		if len(best) >= n {
			bound := float64(ring-1) * pi.cellSize
			if bound >= best[n-1].Dist {
				break
			}
		}

		pi.scanRing(center, ring, pos, &best)
		sortNeighbours(best)
		if len(best) > n+8 {
			best = best[:n+8]
		}
	}

	if len(best) > n {
		best = best[:n]
	}
	return best
}

// Len возвращает количество точек в индексе
func (pi *PointIndex) Len() int {
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	return pi.count
}

// Clear удаляет все точки из индекса
func (pi *PointIndex) Clear() {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	pi.cells = make(map[cellKey][]entry)
	pi.count = 0
}

// scanRing собирает кандидатов из ячеек на расстоянии Чебышёва ring от центра
func (pi *PointIndex) scanRing(center cellKey, ring int, pos vec.Vec2Float, best *[]Neighbour) {
	appendCell := func(key cellKey) {
		for _, e := range pi.cells[key] {
			*best = append(*best, Neighbour{ID: e.id, Pos: e.pos, Dist: e.pos.DistanceTo(pos)})
		}
	}

	if ring == 0 {
		appendCell(center)
		return
	}

	for x := center.x - ring; x <= center.x+ring; x++ {
		appendCell(cellKey{x: x, y: center.y - ring})
		appendCell(cellKey{x: x, y: center.y + ring})
	}
	for y := center.y - ring + 1; y <= center.y+ring-1; y++ {
		appendCell(cellKey{x: center.x - ring, y: y})
		appendCell(cellKey{x: center.x + ring, y: y})
	}
}

// cellFor возвращает ключ ячейки для мировой позиции
func (pi *PointIndex) cellFor(pos vec.Vec2Float) cellKey {
	return cellKey{
		x: int(math.Floor(pos.X / pi.cellSize)),
		y: int(math.Floor(pos.Y / pi.cellSize)),
	}
}

func sortNeighbours(ns []Neighbour) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Dist != ns[j].Dist {
			return ns[i].Dist < ns[j].Dist
		}
		return ns[i].ID < ns[j].ID
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package level

import (
	"sort"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// Построение графа близости: Делоне → подграф Габриэля → MST →
// возврат части рёбер Габриэля по коэффициенту заполнения.

// gabrielEdges возвращает подмножество рёбер, у которых диаметральная
// окружность (центр — середина ребра, радиус — половина длины) не содержит
// строго внутри ни одной другой точки
func gabrielEdges(points []vec.Vec2Float, edges []graphEdge) []graphEdge {
	result := make([]graphEdge, 0, len(edges))
	for _, e := range edges {
		mid := points[e.A].Add(points[e.B]).Mul(0.5)
		radius := e.Weight * 0.5
		ok := true
		for i, p := range points {
			if i == e.A || i == e.B {
				continue
			}
			if mid.DistanceTo(p) < radius {
				ok = false
				break
			}
		}
		if ok {
			result = append(result, e)
		}
	}
	return result
}

// minimumSpanningTree строит MST алгоритмом Крускала.
// Рёбра с равным весом упорядочены канонически (A, B), так что
// результат детерминирован для одинакового входа.
func minimumSpanningTree(pointCount int, edges []graphEdge) []graphEdge {
	sorted := make([]graphEdge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight < sorted[j].Weight
		}
		if sorted[i].A != sorted[j].A {
			return sorted[i].A < sorted[j].A
		}
		return sorted[i].B < sorted[j].B
	})

	parent := make([]int, pointCount)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	mst := make([]graphEdge, 0, pointCount-1)
	for _, e := range sorted {
		ra, rb := find(e.A), find(e.B)
		if ra == rb {
			continue
		}
		parent[ra] = rb
		mst = append(mst, e)
		if len(mst) == pointCount-1 {
			break
		}
	}

	sortEdges(mst)
	return mst
}

// buildGraph строит связный граф над точками: гарантированно входит MST
// триангуляции Делоне, плюс доля отброшенных рёбер Габриэля по fillRatio.
// Рёбра Габриэля добавляются от самых длинных к коротким: при малом
// коэффициенте в первую очередь возвращаются длинные "срезки".
//
// fillRatio = 0 — ровно MST (дерево), fillRatio = 1 — полный граф Габриэля.
func buildGraph(points []vec.Vec2Float, fillRatio float64) ([]graphEdge, error) {
	switch len(points) {
	case 0, 1:
		return nil, nil
	case 2:
		// Триангуляция невозможна — вырожденный коридор из одного ребра
		return []graphEdge{makeEdge(0, 1, points)}, nil
	}

	delaunayEdges, err := delaunay(points)
	if err != nil {
		return nil, err
	}

	gabriel := gabrielEdges(points, delaunayEdges)
	mst := minimumSpanningTree(len(points), delaunayEdges)

	present := make(map[[2]int]struct{}, len(mst))
	for _, e := range mst {
		present[[2]int{e.A, e.B}] = struct{}{}
	}

	// Кандидаты на возврат — от длинных к коротким; при равной длине
	// канонический порядок индексов сохраняет детерминизм
	candidates := make([]graphEdge, len(gabriel))
	copy(candidates, gabriel)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Weight != candidates[j].Weight {
			return candidates[i].Weight > candidates[j].Weight
		}
		if candidates[i].A != candidates[j].A {
			return candidates[i].A < candidates[j].A
		}
		return candidates[i].B < candidates[j].B
	})

	targetCount := len(mst) + int(fillRatio*float64(len(gabriel)-len(mst)))

	result := make([]graphEdge, len(mst), targetCount)
	copy(result, mst)
	for _, e := range candidates {
		if len(result) >= targetCount {
			break
		}
		if _, dup := present[[2]int{e.A, e.B}]; dup {
			continue
		}
		present[[2]int{e.A, e.B}] = struct{}{}
		result = append(result, e)
	}

	sortEdges(result)
	return result, nil
}

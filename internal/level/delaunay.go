package level

import (
	"errors"
	"math"
	"sort"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// ErrCannotTriangulate возвращается при вырожденной геометрии:
// меньше трёх точек, коллинеарные точки или совпадающие точки.
var ErrCannotTriangulate = errors.New("level: cannot triangulate point set")

// graphEdge представляет ребро графа уровня; A < B, вес = евклидова дистанция
type graphEdge struct {
	A, B   int
	Weight float64
}

// makeEdge нормализует пару индексов (меньший первым)
func makeEdge(a, b int, points []vec.Vec2Float) graphEdge {
	if a > b {
		a, b = b, a
	}
	return graphEdge{A: a, B: b, Weight: points[a].DistanceTo(points[b])}
}

// sortEdges сортирует рёбра по (A, B) — канонический порядок для детерминизма
func sortEdges(edges []graphEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
}

// triangle хранит индексы вершин; вершины ≥ len(points) принадлежат супертреугольнику
type triangle struct {
	a, b, c int
}

// delaunay строит триангуляцию Делоне (алгоритм Боуэра-Ватсона) и возвращает
// дедуплицированный список рёбер. Каждое ребро триангуляции входит ровно один раз.
func delaunay(points []vec.Vec2Float) ([]graphEdge, error) {
	n := len(points)
	if n < 3 {
		return nil, ErrCannotTriangulate
	}

	// Совпадающие точки ломают поиск полости — отклоняем заранее
	seen := make(map[vec.Vec2Float]struct{}, n)
	for _, p := range points {
		if _, dup := seen[p]; dup {
			return nil, ErrCannotTriangulate
		}
		seen[p] = struct{}{}
	}

	// Супертреугольник, накрывающий все точки с запасом
	minP := points[0]
	maxP := points[0]
	for _, p := range points[1:] {
		minP.X = math.Min(minP.X, p.X)
		minP.Y = math.Min(minP.Y, p.Y)
		maxP.X = math.Max(maxP.X, p.X)
		maxP.Y = math.Max(maxP.Y, p.Y)
	}
	span := math.Max(maxP.X-minP.X, maxP.Y-minP.Y)
	if span == 0 {
		return nil, ErrCannotTriangulate
	}
	mid := minP.Add(maxP).Mul(0.5)

	verts := make([]vec.Vec2Float, n, n+3)
	copy(verts, points)
	verts = append(verts,
		vec.Vec2Float{X: mid.X - 20*span, Y: mid.Y - span},
		vec.Vec2Float{X: mid.X + 20*span, Y: mid.Y - span},
		vec.Vec2Float{X: mid.X, Y: mid.Y + 20*span},
	)

	triangles := []triangle{{a: n, b: n + 1, c: n + 2}}

	for i := 0; i < n; i++ {
		p := verts[i]

		// Треугольники, чья описанная окружность содержит точку
		bad := triangles[:0:0]
		rest := triangles[:0:0]
		for _, t := range triangles {
			if inCircumcircle(verts[t.a], verts[t.b], verts[t.c], p) {
				bad = append(bad, t)
			} else {
				rest = append(rest, t)
			}
		}

		// Граница полости: рёбра плохих треугольников, не разделяемые парой
		type uedge struct{ a, b int }
		boundary := make(map[uedge]int)
		norm := func(a, b int) uedge {
			if a > b {
				a, b = b, a
			}
			return uedge{a: a, b: b}
		}
		for _, t := range bad {
			boundary[norm(t.a, t.b)]++
			boundary[norm(t.b, t.c)]++
			boundary[norm(t.c, t.a)]++
		}

		triangles = rest
		for e, cnt := range boundary {
			if cnt == 1 {
				triangles = append(triangles, triangle{a: e.a, b: e.b, c: i})
			}
		}
	}

	// Сбрасываем всё, что опирается на супертреугольник, собираем рёбра
	edgeSet := make(map[[2]int]struct{})
	for _, t := range triangles {
		if t.a >= n || t.b >= n || t.c >= n {
			continue
		}
		for _, pair := range [][2]int{{t.a, t.b}, {t.b, t.c}, {t.c, t.a}} {
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			edgeSet[pair] = struct{}{}
		}
	}

	if len(edgeSet) == 0 {
		// Все точки коллинеарны — ни одного конечного треугольника
		return nil, ErrCannotTriangulate
	}

	edges := make([]graphEdge, 0, len(edgeSet))
	for pair := range edgeSet {
		edges = append(edges, makeEdge(pair[0], pair[1], points))
	}
	sortEdges(edges)
	return edges, nil
}

// inCircumcircle проверяет, лежит ли p внутри описанной окружности (a, b, c)
func inCircumcircle(a, b, c, p vec.Vec2Float) bool {
	// Ориентируем треугольник против часовой стрелки
	orient := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	if orient < 0 {
		b, c = c, b
	} else if orient == 0 {
		return false // вырожденный треугольник
	}

	ax, ay := a.X-p.X, a.Y-p.Y
	bx, by := b.X-p.X, b.Y-p.Y
	cx, cy := c.X-p.X, c.Y-p.Y

	det := (ax*ax+ay*ay)*(bx*cy-cx*by) -
		(bx*bx+by*by)*(ax*cy-cx*ay) +
		(cx*cx+cy*cy)*(ax*by-bx*ay)

	return det > 0
}

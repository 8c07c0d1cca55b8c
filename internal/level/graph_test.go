package level

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

func testPoints(t *testing.T, seed int64, count int) []vec.Vec2Float {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	radius := estimateRadius(80, 80, count)
	points := samplePoisson(rng, 80, 80, radius)
	require.GreaterOrEqual(t, len(points), 4, "Нужно минимум 4 точки для содержательного графа")
	return points
}

func edgeSet(edges []graphEdge) map[[2]int]bool {
	set := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		set[[2]int{e.A, e.B}] = true
	}
	return set
}

// isConnected проверяет связность графа обходом в ширину
func isConnected(n int, edges []graphEdge) bool {
	if n == 0 {
		return true
	}
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	visited := make([]bool, n)
	queue := []int{0}
	visited[0] = true
	seen := 1
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range adj[v] {
			if !visited[u] {
				visited[u] = true
				seen++
				queue = append(queue, u)
			}
		}
	}
	return seen == n
}

func TestDelaunay_Errors(t *testing.T) {
	// Меньше трёх точек
	_, err := delaunay([]vec.Vec2Float{{X: 0, Y: 0}, {X: 1, Y: 1}})
	assert.ErrorIs(t, err, ErrCannotTriangulate, "Две точки нельзя триангулировать")

	// Коллинеарные точки
	_, err = delaunay([]vec.Vec2Float{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}})
	assert.ErrorIs(t, err, ErrCannotTriangulate, "Коллинеарные точки нельзя триангулировать")

	// Дубликаты
	_, err = delaunay([]vec.Vec2Float{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 1}})
	assert.ErrorIs(t, err, ErrCannotTriangulate, "Дубликаты точек недопустимы")
}

func TestDelaunay_Square(t *testing.T) {
	points := []vec.Vec2Float{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	edges, err := delaunay(points)
	require.NoError(t, err)

	// Квадрат: 4 стороны + 1 диагональ
	assert.Len(t, edges, 5, "Триангуляция квадрата должна содержать 5 рёбер")
	assert.True(t, isConnected(4, edges), "Триангуляция должна быть связной")
}

func TestGabriel_SubsetOfDelaunay(t *testing.T) {
	points := testPoints(t, 21, 30)

	del, err := delaunay(points)
	require.NoError(t, err)
	gab := gabrielEdges(points, del)

	delSet := edgeSet(del)
	for _, e := range gab {
		assert.True(t, delSet[[2]int{e.A, e.B}], "Ребро Габриэля (%d,%d) отсутствует в триангуляции", e.A, e.B)
	}
	assert.LessOrEqual(t, len(gab), len(del), "Граф Габриэля не больше триангуляции")
	assert.True(t, isConnected(len(points), gab), "Граф Габриэля должен быть связным")
}

func TestMST_SubsetOfGabriel(t *testing.T) {
	points := testPoints(t, 22, 30)

	del, err := delaunay(points)
	require.NoError(t, err)
	gab := gabrielEdges(points, del)
	mst := minimumSpanningTree(len(points), gab)

	require.Len(t, mst, len(points)-1, "MST содержит ровно n-1 рёбер")
	assert.True(t, isConnected(len(points), mst), "MST должно быть связным")

	gabSet := edgeSet(gab)
	for _, e := range mst {
		assert.True(t, gabSet[[2]int{e.A, e.B}], "Ребро MST (%d,%d) отсутствует в графе Габриэля", e.A, e.B)
	}
}

func TestBuildGraph_FillRatioEndpoints(t *testing.T) {
	points := testPoints(t, 23, 30)

	del, err := delaunay(points)
	require.NoError(t, err)
	gab := gabrielEdges(points, del)
	mst := minimumSpanningTree(len(points), gab)

	// ratio 0 — ровно MST
	e0, err := buildGraph(points, 0)
	require.NoError(t, err)
	assert.Len(t, e0, len(mst), "При ratio=0 граф совпадает с MST по количеству рёбер")

	// ratio 1 — весь граф Габриэля
	e1, err := buildGraph(points, 1)
	require.NoError(t, err)
	assert.Len(t, e1, len(gab), "При ratio=1 граф совпадает с графом Габриэля")
}

func TestBuildGraph_FillRatioMonotonic(t *testing.T) {
	points := testPoints(t, 24, 30)

	prev := -1
	for _, ratio := range []float64{0, 0.25, 0.5, 0.75, 1} {
		edges, err := buildGraph(points, ratio)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(edges), prev, "Количество рёбер не должно убывать с ростом ratio")
		assert.True(t, isConnected(len(points), edges), "Граф должен быть связным при ratio=%g", ratio)
		prev = len(edges)
	}
}

func TestBuildGraph_SmallInputs(t *testing.T) {
	// Ноль и одна точка — пустой граф
	edges, err := buildGraph(nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, edges, "Пустой вход — пустой граф")

	edges, err = buildGraph([]vec.Vec2Float{{X: 1, Y: 2}}, 0.5)
	require.NoError(t, err)
	assert.Empty(t, edges, "Одна точка — без рёбер")

	// Две точки — единственное ребро
	edges, err = buildGraph([]vec.Vec2Float{{X: 0, Y: 0}, {X: 3, Y: 4}}, 0.5)
	require.NoError(t, err)
	require.Len(t, edges, 1, "Две точки соединяются одним ребром")
	assert.InDelta(t, 5.0, edges[0].Weight, 1e-9, "Вес ребра — евклидова дистанция")
}

func TestBuildGraph_Deterministic(t *testing.T) {
	points := testPoints(t, 25, 30)

	a, err := buildGraph(points, 0.4)
	require.NoError(t, err)
	b, err := buildGraph(points, 0.4)
	require.NoError(t, err)

	assert.Equal(t, a, b, "Построение графа должно быть детерминированным")
}

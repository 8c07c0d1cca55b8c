package level

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// corridorPart строит часть из двух явных точек на оси X
func corridorPart(t *testing.T) *LevelPart {
	t.Helper()
	part, err := NewLevelPartBuilder(BiomeForest).
		WithSize(10, 4).
		WithCount(2).
		WithFillRatio(1.0).
		WithPoints([]vec.Vec2Float{{X: -2, Y: 0}, {X: 2, Y: 0}}).
		Build()
	require.NoError(t, err)
	return part
}

func TestPartBuilder_Validation(t *testing.T) {
	_, err := NewLevelPartBuilder(BiomeForest).WithSize(0, 10).WithCount(5).Build()
	assert.Error(t, err, "Нулевая ширина недопустима")

	_, err = NewLevelPartBuilder(BiomeForest).WithSize(10, 10).WithCount(0).Build()
	assert.Error(t, err, "Нулевое количество точек недопустимо")

	_, err = NewLevelPartBuilder(BiomeForest).WithSize(10, 10).WithCount(5).WithFillRatio(1.5).Build()
	assert.Error(t, err, "Fill ratio вне [0,1] недопустим")
}

func TestPartBuilder_Deterministic(t *testing.T) {
	build := func() *LevelPart {
		part, err := NewLevelPartBuilder(BiomeCave).
			WithSize(60, 60).
			WithCount(20).
			WithFillRatio(0.3).
			WithSeed(42).
			Build()
		require.NoError(t, err)
		return part
	}

	a, b := build(), build()
	assert.Equal(t, a.Points(), b.Points(), "Одинаковый сид должен давать одинаковые точки")
	assert.Equal(t, a.EdgeCount(), b.EdgeCount(), "Одинаковый сид должен давать одинаковый граф")
}

func TestPartBuilder_BoundsIncludeGap(t *testing.T) {
	part := corridorPart(t)

	size := part.Bounds().Size()
	assert.InDelta(t, 12.0, size.X, 1e-9, "Границы включают отступ по X")
	assert.InDelta(t, 6.0, size.Y, 1e-9, "Границы включают отступ по Y")

	center := part.Bounds().Center()
	assert.InDelta(t, 0.0, center.X, 1e-9)
	assert.InDelta(t, 0.0, center.Y, 1e-9)
}

func TestLevelBuilder_StitchExactlyTwoEdges(t *testing.T) {
	lb := NewLevelBuilder()

	first := lb.Add(vec.Vec2Float{}, corridorPart(t))
	assert.Equal(t, 0, first, "Первая часть получает идентификатор 0")
	assert.Len(t, lb.edges, 1, "Первая часть пришивается без соединительных рёбер")

	lb.Add(vec.Vec2Float{X: 20, Y: 0}, corridorPart(t))
	// 1 внутреннее + 1 внутреннее + ровно 2 соединительных
	require.Len(t, lb.edges, 4, "Вторая часть добавляет ровно два соединительных ребра")

	// Соединительные рёбра — две глобально ближайшие пары:
	// (2,0)-(18,0) дистанция 16 и (-2,0)-(18,0) дистанция 20
	weights := []float64{lb.edges[2].Weight, lb.edges[3].Weight}
	assert.InDelta(t, 16.0, weights[0], 1e-9, "Первое соединительное ребро — ближайшая пара")
	assert.InDelta(t, 20.0, weights[1], 1e-9, "Второе соединительное ребро — следующая пара")
}

func TestLevelBuilder_AddAfterAlignment(t *testing.T) {
	cases := []struct {
		name   string
		align  PartAlign
		expect vec.Vec2Float // позиция первой точки новой части
	}{
		{"right", AlignRight, vec.Vec2Float{X: 10, Y: 0}},
		{"left", AlignLeft, vec.Vec2Float{X: -14, Y: 0}},
		{"up", AlignUp, vec.Vec2Float{X: -2, Y: 6}},
		{"down", AlignDown, vec.Vec2Float{X: -2, Y: -6}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lb := NewLevelBuilder()
			lb.Add(vec.Vec2Float{}, corridorPart(t))
			lb.AddAfter(0, tc.align, corridorPart(t))

			require.Len(t, lb.points, 4)
			got := lb.points[2]
			assert.InDelta(t, tc.expect.X, got.X, 1e-9, "Смещение по X при выравнивании %s", tc.name)
			assert.InDelta(t, tc.expect.Y, got.Y, 1e-9, "Смещение по Y при выравнивании %s", tc.name)
		})
	}
}

func TestLevelBuilder_AddAfterPanicsOnBadID(t *testing.T) {
	lb := NewLevelBuilder()
	lb.Add(vec.Vec2Float{}, corridorPart(t))

	assert.Panics(t, func() {
		lb.AddAfter(5, AlignRight, corridorPart(t))
	}, "Ссылка на несуществующую часть — ошибка программиста")
}

func TestLevelBuilder_BuildErrors(t *testing.T) {
	lb := NewLevelBuilder()
	_, err := lb.Build(4.0)
	assert.Error(t, err, "Сборка без частей недопустима")

	lb.Add(vec.Vec2Float{}, corridorPart(t))
	_, err = lb.Build(0)
	assert.Error(t, err, "Неположительный масштаб недопустим")
	_, err = lb.Build(-1)
	assert.Error(t, err, "Отрицательный масштаб недопустим")
}

func TestLevelBuilder_BuildAndPath(t *testing.T) {
	lb := NewLevelBuilder()
	lb.Add(vec.Vec2Float{}, corridorPart(t))
	lb.AddAfter(0, AlignRight, corridorPart(t))

	lvl, err := lb.Build(4.0)
	require.NoError(t, err)

	assert.Equal(t, 4, lvl.NodeCount())
	assert.Equal(t, 4, lvl.EdgeCount())

	// Путь из первой части во вторую проходит через соединительные рёбра
	path, err := lvl.Path(0, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, path[0], "Путь начинается в исходном узле")
	assert.Equal(t, 3, path[len(path)-1], "Путь заканчивается в целевом узле")

	// Границы уровня — объединение границ частей
	bounds := lvl.Bounds()
	assert.InDelta(t, -6.0, bounds.Min.X, 1e-9)
	assert.InDelta(t, 18.0, bounds.Max.X, 1e-9)

	// Путь между несвязанными идентификаторами — ошибка диапазона
	_, err = lvl.Path(0, 99)
	assert.Error(t, err, "Узел вне диапазона — ошибка")
}

func TestLevelBuilder_SampledPartsConnected(t *testing.T) {
	home, err := NewLevelPartBuilder(BiomeHome).
		WithSize(30, 30).WithCount(5).WithFillRatio(0.2).WithSeed(1).Build()
	require.NoError(t, err)
	forest, err := NewLevelPartBuilder(BiomeForest).
		WithSize(120, 120).WithCount(40).WithFillRatio(0.35).WithSeed(2).Build()
	require.NoError(t, err)

	lb := NewLevelBuilder()
	lb.Add(vec.Vec2Float{}, home)
	lb.AddAfter(0, AlignRight, forest)

	lvl, err := lb.Build(2.0)
	require.NoError(t, err)

	assert.True(t, isConnected(lvl.NodeCount(), lvl.edges), "Собранный уровень должен быть связным")

	internal := home.EdgeCount() + forest.EdgeCount()
	assert.Equal(t, internal+stitchCount, lvl.EdgeCount(),
		"Рёбра уровня — внутренние рёбра частей плюс два соединительных")
}

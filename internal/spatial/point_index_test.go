package spatial

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// bruteForceNearest возвращает эталонный результат полным перебором
func bruteForceNearest(points []vec.Vec2Float, pos vec.Vec2Float, n int) []Neighbour {
	all := make([]Neighbour, len(points))
	for i, p := range points {
		all[i] = Neighbour{ID: uint64(i), Pos: p, Dist: p.DistanceTo(pos)}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Dist != all[j].Dist {
			return all[i].Dist < all[j].Dist
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func TestNearestN_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	points := make([]vec.Vec2Float, 200)
	index := NewPointIndex(16.0)
	for i := range points {
		points[i] = vec.Vec2Float{
			X: (rng.Float64() - 0.5) * 300,
			Y: (rng.Float64() - 0.5) * 300,
		}
		index.Insert(uint64(i), points[i])
	}

	queries := []vec.Vec2Float{
		{X: 0, Y: 0},
		{X: 150, Y: 150},
		{X: -200, Y: 50},
		{X: 1000, Y: 1000}, // далеко за пределами облака точек
	}
	for _, q := range queries {
		for _, k := range []int{1, 2, 5, 20} {
			got := index.NearestN(q, k)
			want := bruteForceNearest(points, q, k)
			require.Len(t, got, len(want), "Запрос %v k=%d вернул неверное количество", q, k)
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID,
					"Запрос %v k=%d: сосед %d не совпадает с перебором", q, k, i)
				assert.InDelta(t, want[i].Dist, got[i].Dist, 1e-9)
			}
		}
	}
}

func TestNearestN_TieBrokenByID(t *testing.T) {
	index := NewPointIndex(16.0)
	// Четыре точки на одинаковом расстоянии от начала координат
	index.Insert(7, vec.Vec2Float{X: 1, Y: 0})
	index.Insert(3, vec.Vec2Float{X: -1, Y: 0})
	index.Insert(9, vec.Vec2Float{X: 0, Y: 1})
	index.Insert(1, vec.Vec2Float{X: 0, Y: -1})

	got := index.NearestN(vec.Vec2Float{}, 4)
	require.Len(t, got, 4)
	ids := []uint64{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	assert.Equal(t, []uint64{1, 3, 7, 9}, ids, "При равной дистанции порядок определяется идентификатором")
}

func TestNearestN_EdgeCases(t *testing.T) {
	index := NewPointIndex(16.0)

	assert.Nil(t, index.NearestN(vec.Vec2Float{}, 3), "Пустой индекс возвращает nil")

	index.Insert(1, vec.Vec2Float{X: 5, Y: 5})
	assert.Nil(t, index.NearestN(vec.Vec2Float{}, 0), "Неположительный k возвращает nil")

	got := index.NearestN(vec.Vec2Float{}, 10)
	require.Len(t, got, 1, "Запрос больше размера индекса возвращает всё, что есть")
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestLenAndClear(t *testing.T) {
	index := NewPointIndex(16.0)
	assert.Equal(t, 0, index.Len())

	for i := 0; i < 10; i++ {
		index.Insert(uint64(i), vec.Vec2Float{X: float64(i) * 20, Y: 0})
	}
	assert.Equal(t, 10, index.Len())

	index.Clear()
	assert.Equal(t, 0, index.Len(), "Clear должен опустошать индекс")
	assert.Nil(t, index.NearestN(vec.Vec2Float{}, 3), "После Clear поиск ничего не находит")

	// Индекс переиспользуется после очистки
	index.Insert(99, vec.Vec2Float{X: 1, Y: 1})
	assert.Equal(t, 1, index.Len())
	got := index.NearestN(vec.Vec2Float{}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(99), got[0].ID)
}

func TestNewPointIndex_DefaultCellSize(t *testing.T) {
	// Неположительный размер ячейки заменяется значением по умолчанию
	index := NewPointIndex(-1)
	index.Insert(1, vec.Vec2Float{X: 100, Y: -100})
	got := index.NearestN(vec.Vec2Float{}, 1)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

package level

import (
	"math"
	"math/rand"

	"github.com/annel0/mmo-levelgen/internal/vec"
)

// Сэмплер точек: диск Пуассона методом Бридсона.
// Количество точек не гарантируется точно — радиус подбирается аналитически
// так, чтобы матожидание количества точек совпадало с запрошенным.

const samplerAttempts = 30 // кандидатов на активную точку (k у Бридсона)

// estimateRadius возвращает минимальную дистанцию между точками,
// при которой площадь width×height в среднем вмещает count точек
func estimateRadius(width, height float64, count int) float64 {
	return math.Sqrt(2.0 * width * height / (math.E * float64(count)))
}

// samplePoisson генерирует точки с минимальной попарной дистанцией radius
// внутри прямоугольника width×height, центрированного в начале координат.
// Детерминирован: одинаковый rng даёт бит-идентичный результат.
func samplePoisson(rng *rand.Rand, width, height, radius float64) []vec.Vec2Float {
	// Сетка ускорения: ячейка вмещает не более одной точки
	cellSize := radius / math.Sqrt2
	gridW := int(math.Ceil(width / cellSize))
	gridH := int(math.Ceil(height / cellSize))
	grid := make([]int, gridW*gridH) // индекс точки + 1, 0 = пусто

	var points []vec.Vec2Float
	var active []int

	cellOf := func(p vec.Vec2Float) (int, int) {
		cx := int(p.X / cellSize)
		cy := int(p.Y / cellSize)
		if cx >= gridW {
			cx = gridW - 1
		}
		if cy >= gridH {
			cy = gridH - 1
		}
		return cx, cy
	}

	fits := func(p vec.Vec2Float) bool {
		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			return false
		}
		cx, cy := cellOf(p)
		for y := cy - 2; y <= cy+2; y++ {
			if y < 0 || y >= gridH {
				continue
			}
			for x := cx - 2; x <= cx+2; x++ {
				if x < 0 || x >= gridW {
					continue
				}
				if idx := grid[y*gridW+x]; idx != 0 {
					if points[idx-1].DistanceSqTo(p) < radius*radius {
						return false
					}
				}
			}
		}
		return true
	}

	insert := func(p vec.Vec2Float) {
		points = append(points, p)
		active = append(active, len(points)-1)
		cx, cy := cellOf(p)
		grid[cy*gridW+cx] = len(points)
	}

	insert(vec.Vec2Float{X: rng.Float64() * width, Y: rng.Float64() * height})

	for len(active) > 0 {
		// Берём последнюю активную точку — порядок детерминирован
		last := len(active) - 1
		base := points[active[last]]

		placed := false
		for i := 0; i < samplerAttempts; i++ {
			angle := rng.Float64() * 2 * math.Pi
			dist := radius * (1 + rng.Float64())
			candidate := vec.Vec2Float{
				X: base.X + math.Cos(angle)*dist,
				Y: base.Y + math.Sin(angle)*dist,
			}
			if fits(candidate) {
				insert(candidate)
				placed = true
				break
			}
		}

		if !placed {
			active = active[:last]
		}
	}

	// Центрируем выборку на начало координат
	center := vec.Vec2Float{X: 0.5 * width, Y: 0.5 * height}
	for i := range points {
		points[i] = points[i].Sub(center)
	}

	return points
}

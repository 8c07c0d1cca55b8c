package level

import (
	"math"

	"github.com/annel0/mmo-levelgen/internal/spatial"
	"github.com/annel0/mmo-levelgen/internal/util"
	"github.com/annel0/mmo-levelgen/internal/vec"
)

// Растеризация собранного графа в непрерывные поля:
// бинарная маска рёбер → дистанционное преобразование → поле высот;
// прямоугольники частей → каналы биомов + канал радиуса → размытие Гаусса.

const (
	biomeBlurSigma = 8.0  // std-dev размытия каналов биомов, в ячейках
	minMaxHeight   = 1e-3 // защита от деления на ноль при схлопнувшемся радиусе

	// Большое конечное значение вместо +Inf: преобразование дистанций
	// оперирует разностями, и бесконечности дали бы NaN
	distFar = 1e20

	// Фоновые значения для областей вне частей
	backgroundRadius = 1.0
	backgroundBiome  = BiomeForest
)

// grid представляет регулярную сетку скалярных значений
type grid struct {
	w, h  int
	cells []float64
}

func newGrid(w, h int, fill float64) grid {
	g := grid{w: w, h: h, cells: make([]float64, w*h)}
	if fill != 0 {
		for i := range g.cells {
			g.cells[i] = fill
		}
	}
	return g
}

func (g grid) at(x, y int) float64 {
	return g.cells[y*g.w+x]
}

func (g grid) set(x, y int, v float64) {
	g.cells[y*g.w+x] = v
}

// rasterize строит все поля уровня и собирает итоговый Level
func rasterize(lb *LevelBuilder, bounds vec.Rect, scale float64) (*Level, error) {
	size := bounds.Size()
	w := int(math.Round(size.X * scale))
	h := int(math.Round(size.Y * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	worldToCell := func(p vec.Vec2Float) vec.Vec2 {
		c := vec.Vec2{
			X: int((p.X - bounds.Min.X) * scale),
			Y: int((p.Y - bounds.Min.Y) * scale),
		}
		return c.Clamp(vec.Vec2{}, vec.Vec2{X: w - 1, Y: h - 1})
	}

	// === Поле биомов ===
	biomes := make([]grid, BiomeCount)
	for i := range biomes {
		fill := 0.0
		if Biome(i) == backgroundBiome {
			fill = 1.0
		}
		biomes[i] = newGrid(w, h, fill)
	}
	radius := newGrid(w, h, backgroundRadius)

	for _, pm := range lb.parts {
		lo := worldToCell(pm.bounds.Min)
		hi := worldToCell(pm.bounds.Max)
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				for b := range biomes {
					weight := 0.0
					if Biome(b) == pm.biome {
						weight = 1.0
					}
					biomes[b].set(x, y, weight)
				}
				radius.set(x, y, pm.radius)
			}
		}
	}

	for i := range biomes {
		gaussianBlur(&biomes[i], biomeBlurSigma)
	}
	gaussianBlur(&radius, biomeBlurSigma)

	// === Поле высот ===
	// Рёбра графа — осевые линии проходимых коридоров
	mask := newGrid(w, h, distFar)
	for _, e := range lb.edges {
		drawLine(&mask, worldToCell(lb.points[e.A]), worldToCell(lb.points[e.B]))
	}
	distanceTransform(&mask)

	var noise *util.NoiseGenerator
	if lb.noiseAmplitude > 0 {
		noise = util.NewNoiseGenerator(lb.noiseSeed)
	}

	height := newGrid(w, h, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dist := math.Sqrt(mask.at(x, y)) / scale
			r := radius.at(x, y)
			roadWidth := 0.25 * r
			maxHeight := math.Max(0.5*r-roadWidth, minMaxHeight)

			var v float64
			if dist < roadWidth {
				// Внутри коридора: глубже к осевой линии
				v = dist - roadWidth
			} else {
				v = 3.0 * math.Max(dist-roadWidth, 0) / math.Pow(maxHeight, 0.75)
			}

			if noise != nil && v > 0 {
				v += lb.noiseAmplitude * noise.Noise2D(float64(x)/scale*0.1, float64(y)/scale*0.1)
			}

			height.set(x, y, v)
		}
	}

	// === Индекс узлов графа ===
	terrain := spatial.NewPointIndex(16.0)
	for i, p := range lb.points {
		terrain.Insert(uint64(i), p)
	}

	adjacency := make([][]int, len(lb.points))
	for _, e := range lb.edges {
		adjacency[e.A] = append(adjacency[e.A], e.B)
		adjacency[e.B] = append(adjacency[e.B], e.A)
	}

	return &Level{
		points:    lb.points,
		edges:     lb.edges,
		adjacency: adjacency,
		bounds:    bounds,
		scale:     scale,
		height:    height,
		biomes:    biomes,
		radius:    radius,
		terrain:   terrain,
		creatures: spatial.NewPointIndex(16.0),
	}, nil
}

// drawLine рисует отрезок по алгоритму Брезенхэма (значение 0 = линия)
func drawLine(g *grid, from, to vec.Vec2) {
	dx := absInt(to.X - from.X)
	dy := -absInt(to.Y - from.Y)
	sx := signInt(to.X - from.X)
	sy := signInt(to.Y - from.Y)
	err := dx + dy

	x, y := from.X, from.Y
	for {
		g.set(x, y, 0)
		if x == to.X && y == to.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// distanceTransform заменяет значения сетки квадратом евклидовой дистанции
// до ближайшей нулевой ячейки (алгоритм Фельценшвальба-Хаттенлохера,
// два прохода одномерного преобразования)
func distanceTransform(g *grid) {
	column := make([]float64, g.h)
	for x := 0; x < g.w; x++ {
		for y := 0; y < g.h; y++ {
			column[y] = g.at(x, y)
		}
		transformed := distanceTransform1D(column)
		for y := 0; y < g.h; y++ {
			g.set(x, y, transformed[y])
		}
	}

	row := make([]float64, g.w)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			row[x] = g.at(x, y)
		}
		transformed := distanceTransform1D(row)
		for x := 0; x < g.w; x++ {
			g.set(x, y, transformed[x])
		}
	}
}

// distanceTransform1D — одномерное преобразование нижней огибающей парабол
func distanceTransform1D(f []float64) []float64 {
	n := len(f)
	d := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)

	for q := 1; q < n; q++ {
		var s float64
		for {
			p := v[k]
			s = ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
			if s > z[k] {
				break
			}
			k--
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		diff := float64(q - v[k])
		d[q] = diff*diff + f[v[k]]
	}
	return d
}

// gaussianBlur применяет сепарабельное размытие Гаусса с границами,
// зажатыми по краям сетки
func gaussianBlur(g *grid, sigma float64) {
	kernel := gaussianKernel(sigma)
	half := len(kernel) / 2

	tmp := newGrid(g.w, g.h, 0)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			sum := 0.0
			for i, wgt := range kernel {
				sx := clampInt(x+i-half, 0, g.w-1)
				sum += wgt * g.at(sx, y)
			}
			tmp.set(x, y, sum)
		}
	}
	for x := 0; x < g.w; x++ {
		for y := 0; y < g.h; y++ {
			sum := 0.0
			for i, wgt := range kernel {
				sy := clampInt(y+i-half, 0, g.h-1)
				sum += wgt * tmp.at(x, sy)
			}
			g.set(x, y, sum)
		}
	}
}

// gaussianKernel возвращает нормированное одномерное ядро (радиус 3σ)
func gaussianKernel(sigma float64) []float64 {
	half := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*half+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - half)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func signInt(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

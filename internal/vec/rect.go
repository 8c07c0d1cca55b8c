package vec

import "math"

// Rect представляет прямоугольник, выровненный по осям (Min ≤ Max)
type Rect struct {
	Min, Max Vec2Float
}

// RectFromCenterSize создает прямоугольник по центру и размеру
func RectFromCenterSize(center, size Vec2Float) Rect {
	half := size.Mul(0.5)
	return Rect{Min: center.Sub(half), Max: center.Add(half)}
}

// Center возвращает центр прямоугольника
func (r Rect) Center() Vec2Float {
	return r.Min.Add(r.Max).Mul(0.5)
}

// Size возвращает размеры прямоугольника
func (r Rect) Size() Vec2Float {
	return r.Max.Sub(r.Min)
}

// Translate возвращает прямоугольник, сдвинутый на offset
func (r Rect) Translate(offset Vec2Float) Rect {
	return Rect{Min: r.Min.Add(offset), Max: r.Max.Add(offset)}
}

// Union возвращает минимальный прямоугольник, покрывающий оба
func (r Rect) Union(other Rect) Rect {
	return Rect{
		Min: Vec2Float{X: math.Min(r.Min.X, other.Min.X), Y: math.Min(r.Min.Y, other.Min.Y)},
		Max: Vec2Float{X: math.Max(r.Max.X, other.Max.X), Y: math.Max(r.Max.Y, other.Max.Y)},
	}
}

// Contains проверяет, лежит ли точка внутри прямоугольника (границы включены)
func (r Rect) Contains(p Vec2Float) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// ClampPoint возвращает ближайшую к p точку внутри прямоугольника
func (r Rect) ClampPoint(p Vec2Float) Vec2Float {
	return Vec2Float{
		X: math.Min(math.Max(p.X, r.Min.X), r.Max.X),
		Y: math.Min(math.Max(p.Y, r.Min.Y), r.Max.Y),
	}
}

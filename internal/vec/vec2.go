package vec

import "math"

// Vec2 представляет целочисленные 2D координаты (ячейки сетки полей)
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Clamp ограничивает обе координаты диапазоном [min, max] покомпонентно
func (v Vec2) Clamp(min, max Vec2) Vec2 {
	clamped := v
	if clamped.X < min.X {
		clamped.X = min.X
	}
	if clamped.X > max.X {
		clamped.X = max.X
	}
	if clamped.Y < min.Y {
		clamped.Y = min.Y
	}
	if clamped.Y > max.Y {
		clamped.Y = max.Y
	}
	return clamped
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// ToVec2Float преобразует в координаты с плавающей точкой
func (v Vec2) ToVec2Float() Vec2Float {
	return Vec2Float{X: float64(v.X), Y: float64(v.Y)}
}

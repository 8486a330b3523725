package services

import "github.com/razmetka/server/internal/models"

// IoU вычисляет Intersection-over-Union двух выровненных по осям
// прямоугольников. Возвращает значение в [0, 1]; для совпадающих
// прямоугольников - 1, для непересекающихся - 0. Функция симметрична.
func IoU(a, b models.BoundingBox) float64 {
	interLeft := max(a.X, b.X)
	interTop := max(a.Y, b.Y)
	interRight := min(a.X+a.Width, b.X+b.Width)
	interBottom := min(a.Y+a.Height, b.Y+b.Height)

	interWidth := interRight - interLeft
	interHeight := interBottom - interTop
	if interWidth <= 0 || interHeight <= 0 {
		return 0
	}

	interArea := interWidth * interHeight
	unionArea := a.Width*a.Height + b.Width*b.Height - interArea
	if unionArea <= 0 {
		return 0
	}

	return interArea / unionArea
}

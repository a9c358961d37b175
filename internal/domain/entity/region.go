package entity

// Region представляет связную область опухоли, пережившую фильтрацию
type Region struct {
	X      int // координата X левого верхнего угла
	Y      int // координата Y левого верхнего угла
	Width  int // ширина ограничивающего прямоугольника
	Height int // высота ограничивающего прямоугольника
	Area   int // число пикселей области
}

// Center возвращает координаты центра ограничивающего прямоугольника
func (r Region) Center() (x, y int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

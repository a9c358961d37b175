package segmentation

import (
	"image"

	"tumor-scan/internal/domain/entity"
)

// Component связная область маски.
type Component struct {
	Label  int
	Pixels []int // индексы y*Width+x
	Bounds image.Rectangle
}

// Area возвращает число пикселей области.
func (c Component) Area() int {
	return len(c.Pixels)
}

// Region переводит область в доменную сущность.
func (c Component) Region() entity.Region {
	return entity.Region{
		X:      c.Bounds.Min.X,
		Y:      c.Bounds.Min.Y,
		Width:  c.Bounds.Dx(),
		Height: c.Bounds.Dy(),
		Area:   c.Area(),
	}
}

// Labeler размечает связные области ненулевых пикселей маски.
// Области возвращаются в порядке меток (по первому пикселю в растровом порядке).
type Labeler interface {
	Label(mask *entity.Mask) []Component
}

// EightConnected размечает области обходом в ширину, диагональные соседи считаются связанными.
type EightConnected struct{}

// Label реализует Labeler.
func (EightConnected) Label(mask *entity.Mask) []Component {
	w, h := mask.Width, mask.Height
	labels := make([]int, w*h)
	queue := make([]int, 0, 64)

	var comps []Component
	for start, v := range mask.Pix {
		if v == 0 || labels[start] != 0 {
			continue
		}

		label := len(comps) + 1
		labels[start] = label
		queue = append(queue[:0], start)

		for head := 0; head < len(queue); head++ {
			idx := queue[head]
			x, y := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w || (dx == 0 && dy == 0) {
						continue
					}
					n := ny*w + nx
					if mask.Pix[n] != 0 && labels[n] == 0 {
						labels[n] = label
						queue = append(queue, n)
					}
				}
			}
		}

		comps = append(comps, newComponent(label, append([]int(nil), queue...), w))
	}
	return comps
}

// CollectComponents собирает области по готовой карте меток (0: фон).
// Используется внешними реализациями Labeler.
func CollectComponents(w, h, n int, labelAt func(x, y int) int) []Component {
	if n <= 0 {
		return nil
	}
	pixels := make([][]int, n+1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := labelAt(x, y)
			if l <= 0 || l > n {
				continue
			}
			pixels[l] = append(pixels[l], y*w+x)
		}
	}

	comps := make([]Component, 0, n)
	for l := 1; l <= n; l++ {
		if len(pixels[l]) == 0 {
			continue
		}
		comps = append(comps, newComponent(len(comps)+1, pixels[l], w))
	}
	return comps
}

func newComponent(label int, pixels []int, w int) Component {
	minX, minY := w, -1
	maxX, maxY := -1, -1
	for _, idx := range pixels {
		x, y := idx%w, idx/w
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if minY < 0 || y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return Component{
		Label:  label,
		Pixels: pixels,
		Bounds: image.Rect(minX, minY, maxX+1, maxY+1),
	}
}

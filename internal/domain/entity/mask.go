package entity

// Mask бинарная маска опухоли (1 опухоль, 0 фон).
type Mask struct {
	Width  int
	Height int
	Pix    []uint8 // row-major, len = Width*Height
}

// NewMask создаёт пустую маску.
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At возвращает значение пикселя (x, y).
func (m *Mask) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Set задаёт значение пикселя (x, y).
func (m *Mask) Set(x, y int, v uint8) {
	m.Pix[y*m.Width+x] = v
}

// Any сообщает, есть ли в маске хотя бы один пиксель опухоли.
func (m *Mask) Any() bool {
	for _, v := range m.Pix {
		if v != 0 {
			return true
		}
	}
	return false
}

// Count возвращает число пикселей опухоли.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone возвращает независимую копию маски.
func (m *Mask) Clone() *Mask {
	return &Mask{
		Width:  m.Width,
		Height: m.Height,
		Pix:    append([]uint8(nil), m.Pix...),
	}
}

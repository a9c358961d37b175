package entity

import "fmt"

// Tensor плотный массив float32 в порядке row-major (NHWC для изображений).
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor создаёт нулевой тензор заданной формы.
func NewTensor(shape ...int) Tensor {
	return Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, volume(shape)),
	}
}

// Len возвращает число элементов по форме.
func (t Tensor) Len() int {
	return volume(t.Shape)
}

// Validate проверяет, что длина данных совпадает с формой.
func (t Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("tensor has no shape")
	}
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor shape %v has non-positive dimension", t.Shape)
		}
	}
	if t.Len() != len(t.Data) {
		return fmt.Errorf("tensor shape %v wants %d values, got %d", t.Shape, t.Len(), len(t.Data))
	}
	return nil
}

func volume(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

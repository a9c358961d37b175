package segmentation

import (
	"fmt"

	"tumor-scan/internal/domain/entity"
)

const (
	// DefaultThreshold порог вероятности, выше которого пиксель считается опухолью.
	DefaultThreshold = 0.5
	// DefaultMinSize минимальная площадь области, переживающей фильтрацию.
	DefaultMinSize = 200
)

// Postprocessor превращает сырой выход модели в бинарную маску.
type Postprocessor struct {
	Threshold float64
	MinSize   int
	Labeler   Labeler // nil: EightConnected
}

// Postprocess убирает измерения батча и канала, применяет порог и удаляет
// области площадью меньше MinSize. Возвращает маску и оставшиеся области.
func (p Postprocessor) Postprocess(pred entity.Tensor) (*entity.Mask, []Component, error) {
	plane, w, h, err := Plane(pred)
	if err != nil {
		return nil, nil, err
	}

	mask := Binarize(plane, w, h, p.Threshold)
	kept := RemoveSmallObjects(mask, p.MinSize, p.labeler())
	return mask, kept, nil
}

func (p Postprocessor) labeler() Labeler {
	if p.Labeler == nil {
		return EightConnected{}
	}
	return p.Labeler
}

// Plane возвращает двумерную плоскость вероятностей из тензора формы
// [H,W], [1,H,W], [H,W,1] или [1,H,W,1].
func Plane(t entity.Tensor) ([]float32, int, int, error) {
	if err := t.Validate(); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrUnexpectedOutput, err)
	}

	s := t.Shape
	switch {
	case len(s) == 2:
		return t.Data, s[1], s[0], nil
	case len(s) == 3 && s[0] == 1:
		return t.Data, s[2], s[1], nil
	case len(s) == 3 && s[2] == 1:
		return t.Data, s[1], s[0], nil
	case len(s) == 4 && s[0] == 1 && s[3] == 1:
		return t.Data, s[2], s[1], nil
	}
	return nil, 0, 0, fmt.Errorf("%w: cannot squeeze shape %v to a single plane", ErrUnexpectedOutput, s)
}

// Binarize строит маску: 1, если значение строго больше порога.
func Binarize(plane []float32, w, h int, threshold float64) *entity.Mask {
	mask := entity.NewMask(w, h)
	for i, v := range plane[:w*h] {
		if float64(v) > threshold {
			mask.Pix[i] = 1
		}
	}
	return mask
}

// RemoveSmallObjects обнуляет области площадью меньше minSize и возвращает
// оставшиеся. Область площадью ровно minSize сохраняется.
func RemoveSmallObjects(mask *entity.Mask, minSize int, labeler Labeler) []Component {
	comps := labeler.Label(mask)
	kept := comps[:0]
	for _, c := range comps {
		if c.Area() < minSize {
			for _, idx := range c.Pixels {
				mask.Pix[idx] = 0
			}
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

package segmentation

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"tumor-scan/internal/domain/entity"
)

// DefaultInputSize сторона квадратного входа модели.
const DefaultInputSize = 256

// Preprocessor приводит изображение к входу модели [1,H,W,C] со значениями в [0,1].
type Preprocessor struct {
	Width    int
	Height   int
	Channels int // 1 (яркость) или 3 (RGB)
}

// NewPreprocessor создаёт препроцессор для квадратного входа size×size.
func NewPreprocessor(size, channels int) (Preprocessor, error) {
	if size <= 0 {
		return Preprocessor{}, fmt.Errorf("input size must be positive, got %d", size)
	}
	if channels != 1 && channels != 3 {
		return Preprocessor{}, fmt.Errorf("input channels must be 1 or 3, got %d", channels)
	}
	return Preprocessor{Width: size, Height: size, Channels: channels}, nil
}

// Prepare масштабирует изображение билинейной интерполяцией, делит значения
// на 255 и добавляет измерение батча.
func (p Preprocessor) Prepare(img image.Image) (entity.Tensor, error) {
	if err := checkImage(img); err != nil {
		return entity.Tensor{}, err
	}

	resized := imaging.Resize(img, p.Width, p.Height, imaging.Linear)
	t := entity.NewTensor(1, p.Height, p.Width, p.Channels)

	k := 0
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			i := resized.PixOffset(x, y)
			r := float32(resized.Pix[i]) / 255
			g := float32(resized.Pix[i+1]) / 255
			b := float32(resized.Pix[i+2]) / 255
			if p.Channels == 1 {
				t.Data[k] = 0.299*r + 0.587*g + 0.114*b
				k++
				continue
			}
			t.Data[k] = r
			t.Data[k+1] = g
			t.Data[k+2] = b
			k += 3
		}
	}
	return t, nil
}

func checkImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrMalformedImage)
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("%w: empty bounds %v", ErrMalformedImage, img.Bounds())
	}
	return nil
}

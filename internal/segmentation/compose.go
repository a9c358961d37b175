package segmentation

import (
	"image"

	"github.com/disintegration/imaging"

	"tumor-scan/internal/domain/entity"
)

// Compose строит изображение «оригинал | маска» шириной 2×mask.Width.
// Оригинал масштабируется бикубически до размера маски; полутоновые
// изображения дают R=G=B, альфа-канал отбрасывается. Маска рисуется белым по чёрному.
func Compose(original image.Image, mask *entity.Mask) *image.RGBA {
	w, h := mask.Width, mask.Height
	resized := imaging.Resize(original, w, h, imaging.CatmullRom)
	out := image.NewRGBA(image.Rect(0, 0, 2*w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := resized.PixOffset(x, y)
			dst := out.PixOffset(x, y)
			out.Pix[dst] = resized.Pix[src]
			out.Pix[dst+1] = resized.Pix[src+1]
			out.Pix[dst+2] = resized.Pix[src+2]
			out.Pix[dst+3] = 0xff

			var v uint8
			if mask.At(x, y) != 0 {
				v = 0xff
			}
			dst = out.PixOffset(x+w, y)
			out.Pix[dst] = v
			out.Pix[dst+1] = v
			out.Pix[dst+2] = v
			out.Pix[dst+3] = 0xff
		}
	}
	return out
}

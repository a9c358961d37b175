package entity

import (
	"image"
	"image/color"
	"time"
)

// MaxScanBytes предельный размер сохраняемого снимка.
const MaxScanBytes = 16 << 20

// ScanRecord загруженный пользователем снимок МРТ.
type ScanRecord struct {
	ID         string
	Owner      string    // идентификатор владельца (email, tg:<id>)
	Image      []byte    // исходные байты файла
	Format     string    // png, jpeg, tiff ...
	UploadedAt time.Time // время загрузки
	SizeBytes  int
	Mode       string // цветовой режим: L, RGB, RGBA ...
	Width      int
	Height     int
}

// NewScanRecord собирает запись по исходным байтам и декодированному изображению.
func NewScanRecord(owner string, data []byte, format string, img image.Image, now time.Time) *ScanRecord {
	b := img.Bounds()
	return &ScanRecord{
		Owner:      owner,
		Image:      data,
		Format:     format,
		UploadedAt: now,
		SizeBytes:  len(data),
		Mode:       ColorMode(img.ColorModel()),
		Width:      b.Dx(),
		Height:     b.Dy(),
	}
}

// ColorMode возвращает короткое имя цветовой модели изображения.
func ColorMode(m color.Model) string {
	switch m {
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.YCbCrModel:
		return "RGB"
	case color.NYCbCrAModel, color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return "RGBA"
	case color.CMYKModel:
		return "CMYK"
	}
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	return "unknown"
}

//go:build gocv
// +build gocv

package vision

import (
	"gocv.io/x/gocv"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/segmentation"
)

// Backend имя реализации разметки для логов.
const Backend = "opencv"

// GoCVLabeler размечает связные области через OpenCV (8-связность).
type GoCVLabeler struct{}

// NewLabeler возвращает разметку на OpenCV.
func NewLabeler() segmentation.Labeler {
	return GoCVLabeler{}
}

// Label реализует segmentation.Labeler.
func (GoCVLabeler) Label(mask *entity.Mask) []segmentation.Component {
	src, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8U, mask.Pix)
	if err != nil {
		return segmentation.EightConnected{}.Label(mask)
	}
	defer src.Close()

	labels := gocv.NewMat()
	defer labels.Close()

	// n включает метку фона 0
	n := gocv.ConnectedComponentsWithParams(src, &labels, 8, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)
	return segmentation.CollectComponents(mask.Width, mask.Height, n-1, func(x, y int) int {
		return int(labels.GetIntAt(y, x))
	})
}

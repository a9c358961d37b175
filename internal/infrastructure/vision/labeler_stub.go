//go:build !gocv
// +build !gocv

package vision

import "tumor-scan/internal/segmentation"

// Backend имя реализации разметки для логов.
const Backend = "go"

// NewLabeler возвращает разметку на чистом Go, если сборка без тега gocv.
func NewLabeler() segmentation.Labeler {
	return segmentation.EightConnected{}
}

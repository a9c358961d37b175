package entity

import "image"

// InferenceResult хранит итог одного прогона сегментации.
type InferenceResult struct {
	ResultImage  *image.RGBA // оригинал и маска рядом
	Mask         *Mask       // маска после удаления мелких областей
	Regions      []Region    // оставшиеся связные области
	TumorArea    int         // число пикселей опухоли
	TumorPresent bool        // флаг наличия опухоли
	Accuracy     float64     // эвристическая точность, %
	Confidence   float64     // эвристическая уверенность, %
}

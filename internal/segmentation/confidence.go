package segmentation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tumor-scan/internal/domain/entity"
)

// Coefficients настроечные константы эвристики уверенности и точности.
// Это подобранные значения, а не откалиброванные клинические метрики.
type Coefficients struct {
	// Опухоль найдена
	TumorConfidenceScale float64 // средняя вероятность в области опухоли -> 0..scale %
	UncertaintyPenalty   float64 // штраф за стандартное отклонение всей карты
	TumorAccuracyBase    float64
	TumorAccuracySpan    float64 // вклад согласованности (1 - дисперсия)

	// Маска непуста, но нет значений выше порога
	WeakConfidenceScale float64
	WeakAccuracyBase    float64
	WeakAccuracyFactor  float64

	// Опухоль не найдена
	CleanMeanScale        float64 // (1 - среднее) -> до scale %
	CleanConsistencyBonus float64 // (1 - отклонение) -> до bonus %
	CleanAccuracyBase     float64
	CleanAccuracyFactor   float64

	// Итоговая поправка на неопределённость
	UncertaintyCorrection    float64
	AccuracyCorrectionFactor float64

	ConfidenceMin float64
	ConfidenceMax float64
	AccuracyMin   float64
	AccuracyMax   float64
}

// DefaultCoefficients возвращает значения по умолчанию.
func DefaultCoefficients() Coefficients {
	return Coefficients{
		TumorConfidenceScale: 70,
		UncertaintyPenalty:   40,
		TumorAccuracyBase:    50,
		TumorAccuracySpan:    35,

		WeakConfidenceScale: 45,
		WeakAccuracyBase:    45,
		WeakAccuracyFactor:  0.3,

		CleanMeanScale:        60,
		CleanConsistencyBonus: 20,
		CleanAccuracyBase:     55,
		CleanAccuracyFactor:   0.4,

		UncertaintyCorrection:    5,
		AccuracyCorrectionFactor: 0.8,

		ConfidenceMin: 35,
		ConfidenceMax: 82,
		AccuracyMin:   45,
		AccuracyMax:   88,
	}
}

// Scores эвристические оценки в процентах.
type Scores struct {
	Confidence float64
	Accuracy   float64
}

// Estimator выводит уверенность и точность из статистик сырого предсказания.
type Estimator struct {
	Coefficients Coefficients
}

// Estimate чистая функция от (pred, mask, threshold). Результат всегда лежит
// в [ConfidenceMin, ConfidenceMax] и [AccuracyMin, AccuracyMax].
func (e Estimator) Estimate(pred []float32, mask *entity.Mask, threshold float64) Scores {
	c := e.Coefficients
	if len(pred) == 0 {
		return Scores{Confidence: c.ConfidenceMin, Accuracy: c.AccuracyMin}
	}

	values := make([]float64, len(pred))
	var region []float64
	for i, v := range pred {
		values[i] = float64(v)
		if values[i] > threshold {
			region = append(region, values[i])
		}
	}

	maxPred := floats.Max(values)
	mean, std := stat.PopMeanStdDev(values, nil)

	var confidence, accuracy float64
	switch {
	case mask.Any() && len(region) > 0:
		regionMean, regionVar := stat.PopMeanVariance(region, nil)
		confidence = regionMean*c.TumorConfidenceScale - std*c.UncertaintyPenalty
		accuracy = c.TumorAccuracyBase + (1-regionVar)*c.TumorAccuracySpan
	case mask.Any():
		confidence = maxPred * c.WeakConfidenceScale
		accuracy = c.WeakAccuracyBase + confidence*c.WeakAccuracyFactor
	default:
		confidence = (1-mean)*c.CleanMeanScale + (1-std)*c.CleanConsistencyBonus
		accuracy = c.CleanAccuracyBase + confidence*c.CleanAccuracyFactor
	}

	confidence = clamp(confidence, c.ConfidenceMin, c.ConfidenceMax)
	accuracy = clamp(accuracy, c.AccuracyMin, c.AccuracyMax)

	correction := std * c.UncertaintyCorrection
	confidence = clamp(confidence-correction, c.ConfidenceMin, c.ConfidenceMax)
	accuracy = clamp(accuracy-correction*c.AccuracyCorrectionFactor, c.AccuracyMin, c.AccuracyMax)

	return Scores{Confidence: confidence, Accuracy: accuracy}
}

// clamp ограничивает v отрезком [lo, hi]; NaN превращается в lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

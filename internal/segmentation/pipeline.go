// Package segmentation реализует обработку снимка МРТ вокруг внешней модели
// сегментации: подготовку входа, пороговую маску с удалением мелких областей,
// эвристическую оценку уверенности и изображение для просмотра.
//
// Пакет не выполняет ввод-вывод и не хранит состояния между вызовами.
package segmentation

import (
	"context"
	"fmt"
	"image"
	"math"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
)

// Config задаёт параметры пайплайна.
type Config struct {
	InputSize    int
	Channels     int
	Threshold    float64
	MinSize      int
	Coefficients Coefficients
	Labeler      Labeler // nil: EightConnected
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		InputSize:    DefaultInputSize,
		Channels:     3,
		Threshold:    DefaultThreshold,
		MinSize:      DefaultMinSize,
		Coefficients: DefaultCoefficients(),
	}
}

// Pipeline единственная точка входа для вызывающих слоёв.
type Pipeline struct {
	pre  Preprocessor
	post Postprocessor
	est  Estimator
}

// NewPipeline проверяет конфигурацию и собирает пайплайн.
func NewPipeline(cfg Config) (*Pipeline, error) {
	pre, err := NewPreprocessor(cfg.InputSize, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if cfg.Threshold < 0 || cfg.Threshold >= 1 || math.IsNaN(cfg.Threshold) {
		return nil, fmt.Errorf("threshold must be in [0,1), got %v", cfg.Threshold)
	}
	if cfg.MinSize < 0 {
		return nil, fmt.Errorf("min region size must not be negative, got %d", cfg.MinSize)
	}

	return &Pipeline{
		pre: pre,
		post: Postprocessor{
			Threshold: cfg.Threshold,
			MinSize:   cfg.MinSize,
			Labeler:   cfg.Labeler,
		},
		est: Estimator{Coefficients: cfg.Coefficients},
	}, nil
}

// Run выполняет один прогон: подготовка -> модель -> маска и оценки -> композиция.
// Таймаутов и повторов нет: отмена задаётся контекстом, который получает модель.
func (p *Pipeline) Run(ctx context.Context, img image.Image, model port.Model) (*entity.InferenceResult, error) {
	if model == nil {
		return nil, ErrModelUnavailable
	}

	input, err := p.pre.Prepare(img)
	if err != nil {
		return nil, err
	}

	raw, err := model.Predict(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}

	pred, err := Clip(raw)
	if err != nil {
		return nil, err
	}

	mask, kept, err := p.post.Postprocess(pred)
	if err != nil {
		return nil, err
	}

	scores := p.est.Estimate(pred.Data, mask, p.post.Threshold)

	regions := make([]entity.Region, 0, len(kept))
	for _, c := range kept {
		regions = append(regions, c.Region())
	}

	return &entity.InferenceResult{
		ResultImage:  Compose(img, mask),
		Mask:         mask,
		Regions:      regions,
		TumorArea:    mask.Count(),
		TumorPresent: mask.Any(),
		Accuracy:     scores.Accuracy,
		Confidence:   scores.Confidence,
	}, nil
}

// Clip копирует предсказание, ограничивая значения отрезком [0,1]; NaN становится 0.
func Clip(t entity.Tensor) (entity.Tensor, error) {
	if err := t.Validate(); err != nil {
		return entity.Tensor{}, fmt.Errorf("%w: %v", ErrUnexpectedOutput, err)
	}

	out := entity.Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  make([]float32, len(t.Data)),
	}
	for i, v := range t.Data {
		switch {
		case v > 1:
			out.Data[i] = 1
		case v >= 0:
			out.Data[i] = v
		}
	}
	return out, nil
}

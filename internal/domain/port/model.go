package port

import (
	"context"

	"tumor-scan/internal/domain/entity"
)

// Model интерфейс обученной модели сегментации
type Model interface {
	// Predict выполняет один прямой проход: [1,H,W,C] -> [1,H,W,1]
	Predict(ctx context.Context, input entity.Tensor) (entity.Tensor, error)
}

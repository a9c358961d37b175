package segmentation

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"tumor-scan/internal/domain/entity"
)

// modelFunc адаптирует функцию к port.Model.
type modelFunc func(ctx context.Context, in entity.Tensor) (entity.Tensor, error)

func (f modelFunc) Predict(ctx context.Context, in entity.Tensor) (entity.Tensor, error) {
	return f(ctx, in)
}

// redChannelModel возвращает красный канал входа как вероятность опухоли.
func redChannelModel() modelFunc {
	return func(_ context.Context, in entity.Tensor) (entity.Tensor, error) {
		h, w, c := in.Shape[1], in.Shape[2], in.Shape[3]
		out := entity.NewTensor(1, h, w, 1)
		for i := range out.Data {
			out.Data[i] = in.Data[i*c]
		}
		return out, nil
	}
}

func constantModel(v float32) modelFunc {
	return func(_ context.Context, in entity.Tensor) (entity.Tensor, error) {
		out := entity.NewTensor(1, in.Shape[1], in.Shape[2], 1)
		for i := range out.Data {
			out.Data[i] = v
		}
		return out, nil
	}
}

// squareScan чёрный снимок size×size с белым квадратом side×side в центре.
func squareScan(size, side int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	start := (size - side) / 2
	for y := start; y < start+side; y++ {
		for x := start; x < start+side; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)
	return p
}

func TestRunDetectsLargeRegion(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Run(context.Background(), squareScan(512, 80), redChannelModel())
	require.NoError(t, err)
	require.True(t, res.TumorPresent)
	require.True(t, res.Mask.Any())
	require.Len(t, res.Regions, 1)
	require.Equal(t, res.TumorArea, res.Regions[0].Area)
	require.GreaterOrEqual(t, res.TumorArea, 200)

	require.Equal(t, image.Rect(0, 0, 512, 256), res.ResultImage.Bounds())
	cx, cy := res.Regions[0].Center()
	require.InDelta(t, 128, cx, 2)
	require.InDelta(t, 128, cy, 2)
}

func TestRunDropsSmallRegion(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Run(context.Background(), squareScan(512, 16), redChannelModel())
	require.NoError(t, err)
	require.False(t, res.TumorPresent)
	require.False(t, res.Mask.Any())
	require.Zero(t, res.TumorArea)
	require.Empty(t, res.Regions)
}

func TestRunIsDeterministic(t *testing.T) {
	p := newTestPipeline(t)
	scan := squareScan(300, 90)

	first, err := p.Run(context.Background(), scan, redChannelModel())
	require.NoError(t, err)
	second, err := p.Run(context.Background(), scan, redChannelModel())
	require.NoError(t, err)

	require.Equal(t, first.ResultImage.Pix, second.ResultImage.Pix)
	require.Equal(t, first.TumorPresent, second.TumorPresent)
	require.Equal(t, first.Confidence, second.Confidence)
	require.Equal(t, first.Accuracy, second.Accuracy)
}

func TestRunClipsModelOutput(t *testing.T) {
	p := newTestPipeline(t)

	res, err := p.Run(context.Background(), squareScan(64, 8), constantModel(7))
	require.NoError(t, err)
	require.True(t, res.TumorPresent)
	require.Equal(t, 256*256, res.TumorArea)
	// все значения равны 1: 1*70 - 0 = 70; 50 + 35 = 85
	require.InDelta(t, 70, res.Confidence, 1e-9)
	require.InDelta(t, 85, res.Accuracy, 1e-9)

	res, err = p.Run(context.Background(), squareScan(64, 8), constantModel(-3))
	require.NoError(t, err)
	require.False(t, res.TumorPresent)
	require.InDelta(t, 80, res.Confidence, 1e-9)
}

func TestRunPresenceMatchesFilteredMask(t *testing.T) {
	p := newTestPipeline(t)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 8; i++ {
		density := rng.Float32()
		noise := modelFunc(func(_ context.Context, in entity.Tensor) (entity.Tensor, error) {
			out := entity.NewTensor(1, 256, 256, 1)
			for j := range out.Data {
				out.Data[j] = rng.Float32() * density * 1.2
			}
			return out, nil
		})

		res, err := p.Run(context.Background(), squareScan(64, 8), noise)
		require.NoError(t, err)
		require.Equal(t, res.Mask.Any(), res.TumorPresent)
		require.Equal(t, res.Mask.Count(), res.TumorArea)
		require.GreaterOrEqual(t, res.Confidence, 35.0)
		require.LessOrEqual(t, res.Confidence, 82.0)
		require.GreaterOrEqual(t, res.Accuracy, 45.0)
		require.LessOrEqual(t, res.Accuracy, 88.0)
	}
}

func TestRunErrors(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	scan := squareScan(64, 8)

	_, err := p.Run(ctx, scan, nil)
	require.ErrorIs(t, err, ErrModelUnavailable)

	_, err = p.Run(ctx, nil, redChannelModel())
	require.ErrorIs(t, err, ErrMalformedImage)

	boom := errors.New("session crashed")
	_, err = p.Run(ctx, scan, modelFunc(func(context.Context, entity.Tensor) (entity.Tensor, error) {
		return entity.Tensor{}, boom
	}))
	require.ErrorIs(t, err, ErrModelFailure)
	require.ErrorIs(t, err, boom)

	_, err = p.Run(ctx, scan, modelFunc(func(context.Context, entity.Tensor) (entity.Tensor, error) {
		return entity.NewTensor(2, 256, 256, 1), nil
	}))
	require.ErrorIs(t, err, ErrUnexpectedOutput)

	// пайплайн без состояния: после ошибки следующий вызов работает
	_, err = p.Run(ctx, scan, redChannelModel())
	require.NoError(t, err)
}

func TestNewPipelineValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Threshold = 1
	_, err := NewPipeline(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.MinSize = -1
	_, err = NewPipeline(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Channels = 2
	_, err = NewPipeline(cfg)
	require.Error(t, err)
}

func TestClipReplacesOutOfRangeValues(t *testing.T) {
	in := entity.Tensor{Shape: []int{1, 4}, Data: []float32{-1, 0.25, 2, float32(math.NaN())}}
	out, err := Clip(in)
	require.NoError(t, err)
	require.Equal(t, []float32{0, 0.25, 1, 0}, out.Data)
	require.Equal(t, float32(-1), in.Data[0])
}

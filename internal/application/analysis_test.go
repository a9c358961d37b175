package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
	"tumor-scan/internal/infrastructure/storage"
	"tumor-scan/internal/segmentation"
)

type modelFunc func(ctx context.Context, in entity.Tensor) (entity.Tensor, error)

func (f modelFunc) Predict(ctx context.Context, in entity.Tensor) (entity.Tensor, error) {
	return f(ctx, in)
}

// brightnessModel считает яркость красного канала вероятностью опухоли.
var brightnessModel = modelFunc(func(_ context.Context, in entity.Tensor) (entity.Tensor, error) {
	h, w, c := in.Shape[1], in.Shape[2], in.Shape[3]
	out := entity.NewTensor(1, h, w, 1)
	for i := range out.Data {
		out.Data[i] = in.Data[i*c]
	}
	return out, nil
})

type failingScanRepository struct {
	*storage.MemoryScanRepository
}

func (failingScanRepository) Save(context.Context, *entity.ScanRecord) (string, error) {
	return "", errors.New("disk full")
}

// scanPNG кодирует чёрный снимок с белым квадратом side×side.
func scanPNG(t *testing.T, size, side int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	start := (size - side) / 2
	for y := start; y < start+side; y++ {
		for x := start; x < start+side; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newService(t *testing.T, model port.Model, scans port.ScanRepository) (*AnalysisService, *test.Hook) {
	t.Helper()
	pipeline, err := segmentation.NewPipeline(segmentation.DefaultConfig())
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewAnalysisService(pipeline, model, scans, logger), hook
}

func TestAnalysisService_AnalyzeStoresScan(t *testing.T) {
	repo := storage.NewMemoryScanRepository()
	svc, hook := newService(t, brightnessModel, repo)
	ctx := context.Background()

	out, err := svc.Analyze(ctx, "doc@example.com", scanPNG(t, 512, 100))
	require.NoError(t, err)
	require.True(t, out.Result.TumorPresent)
	require.NotEmpty(t, out.ScanID)

	decoded, err := png.Decode(bytes.NewReader(out.ResultPNG))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 512, 256), decoded.Bounds())

	rec, err := repo.Get(ctx, "doc@example.com", out.ScanID)
	require.NoError(t, err)
	require.Equal(t, "png", rec.Format)
	require.Equal(t, "L", rec.Mode)
	require.Equal(t, 512, rec.Width)

	require.Equal(t, "scan analysed", hook.LastEntry().Message)
	require.Equal(t, true, hook.LastEntry().Data["tumor_present"])
}

func TestAnalysisService_AnalyzeWithoutOwner(t *testing.T) {
	repo := storage.NewMemoryScanRepository()
	svc, _ := newService(t, brightnessModel, repo)

	out, err := svc.Analyze(context.Background(), "", scanPNG(t, 256, 8))
	require.NoError(t, err)
	require.False(t, out.Result.TumorPresent)
	require.Empty(t, out.ScanID)
	require.Zero(t, repo.Status(context.Background()).Collections)
}

func TestAnalysisService_MalformedImage(t *testing.T) {
	repo := storage.NewMemoryScanRepository()
	svc, _ := newService(t, brightnessModel, repo)

	_, err := svc.Analyze(context.Background(), "doc", []byte("definitely not a scan"))
	require.ErrorIs(t, err, segmentation.ErrMalformedImage)

	_, err = svc.Analyze(context.Background(), "doc", nil)
	require.ErrorIs(t, err, segmentation.ErrMalformedImage)

	list, err := repo.List(context.Background(), "doc")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestAnalysisService_OversizeScanIsNotMalformed(t *testing.T) {
	repo := storage.NewMemoryScanRepository()
	svc, _ := newService(t, brightnessModel, repo)

	// PNG, обрезанный на MaxScanBytes+1 байтах, как при ограниченной загрузке
	data := make([]byte, entity.MaxScanBytes+1)
	copy(data, scanPNG(t, 64, 8))

	_, err := svc.Analyze(context.Background(), "doc", data)
	require.ErrorIs(t, err, port.ErrScanTooLarge)
	require.NotErrorIs(t, err, segmentation.ErrMalformedImage)

	list, err := repo.List(context.Background(), "doc")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestAnalysisService_ModelUnavailableKeepsUpload(t *testing.T) {
	repo := storage.NewMemoryScanRepository()
	svc, _ := newService(t, nil, repo)
	require.False(t, svc.ModelLoaded())

	_, err := svc.Analyze(context.Background(), "doc", scanPNG(t, 64, 10))
	require.ErrorIs(t, err, segmentation.ErrModelUnavailable)

	list, err := repo.List(context.Background(), "doc")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAnalysisService_StorageFailureIsLogged(t *testing.T) {
	svc, hook := newService(t, brightnessModel, failingScanRepository{storage.NewMemoryScanRepository()})

	out, err := svc.Analyze(context.Background(), "doc", scanPNG(t, 64, 10))
	require.NoError(t, err)
	require.Empty(t, out.ScanID)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "failed to store scan" {
			warned = true
		}
	}
	require.True(t, warned)
}

func TestAnalysisService_AnalyzeStored(t *testing.T) {
	repo := storage.NewMemoryScanRepository()
	svc, _ := newService(t, brightnessModel, repo)
	ctx := context.Background()

	first, err := svc.Analyze(ctx, "doc", scanPNG(t, 512, 100))
	require.NoError(t, err)

	again, err := svc.AnalyzeStored(ctx, "doc", first.ScanID)
	require.NoError(t, err)
	require.Equal(t, first.ScanID, again.ScanID)
	require.Equal(t, first.ResultPNG, again.ResultPNG)
	require.Equal(t, first.Result.Confidence, again.Result.Confidence)

	list, err := svc.ListScans(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.AnalyzeStored(ctx, "doc", "missing")
	require.ErrorIs(t, err, port.ErrScanNotFound)

	require.NoError(t, svc.DeleteScan(ctx, "doc", first.ScanID))
	n, err := svc.ClearScans(ctx, "doc")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAnalysisService_StorageDisabled(t *testing.T) {
	svc, _ := newService(t, brightnessModel, nil)
	ctx := context.Background()

	out, err := svc.Analyze(ctx, "doc", scanPNG(t, 64, 10))
	require.NoError(t, err)
	require.Empty(t, out.ScanID)

	_, err = svc.ListScans(ctx, "doc")
	require.ErrorIs(t, err, ErrStorageDisabled)
	_, err = svc.AnalyzeStored(ctx, "doc", "1")
	require.ErrorIs(t, err, ErrStorageDisabled)
	require.ErrorIs(t, svc.DeleteScan(ctx, "doc", "1"), ErrStorageDisabled)
	_, err = svc.ClearScans(ctx, "doc")
	require.ErrorIs(t, err, ErrStorageDisabled)
	require.Equal(t, "none", svc.StorageStatus(ctx).Backend)
}

package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/sirupsen/logrus"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
	"tumor-scan/internal/segmentation"
)

// ErrStorageDisabled возвращается, если хранилище снимков не настроено.
var ErrStorageDisabled = errors.New("scan storage is not configured")

type AnalysisService struct {
	pipeline *segmentation.Pipeline
	model    port.Model
	scans    port.ScanRepository
	log      logrus.FieldLogger
	now      func() time.Time
}

// AnalysisOutput содержит результат сегментации и готовую картинку для показа.
type AnalysisOutput struct {
	Result    *entity.InferenceResult
	ResultPNG []byte
	ScanID    string // пусто, если снимок не сохранялся
}

// NewAnalysisService создаёт сервис анализа снимков. model и scans могут быть nil.
func NewAnalysisService(pipeline *segmentation.Pipeline, model port.Model, scans port.ScanRepository, log logrus.FieldLogger) *AnalysisService {
	return &AnalysisService{
		pipeline: pipeline,
		model:    model,
		scans:    scans,
		log:      log,
		now:      time.Now,
	}
}

// ModelLoaded сообщает, подключена ли модель.
func (s *AnalysisService) ModelLoaded() bool {
	return s.model != nil
}

// Analyze декодирует загруженный снимок, сохраняет его за владельцем (если он
// указан) и прогоняет через сегментацию. Снимки больше MaxScanBytes отклоняются
// с ErrScanTooLarge до декодирования. Ошибка сохранения только логируется.
func (s *AnalysisService) Analyze(ctx context.Context, owner string, data []byte) (*AnalysisOutput, error) {
	if len(data) > entity.MaxScanBytes {
		return nil, fmt.Errorf("%w: %d bytes", port.ErrScanTooLarge, len(data))
	}

	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"owner":  owner,
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	})
	log.Debug("scan decoded")

	var scanID string
	if owner != "" && s.scans != nil {
		rec := entity.NewScanRecord(owner, data, format, img, s.now())
		if scanID, err = s.scans.Save(ctx, rec); err != nil {
			log.WithError(err).Warn("failed to store scan")
		}
	}

	out, err := s.run(ctx, log, img)
	if err != nil {
		return nil, err
	}
	out.ScanID = scanID
	return out, nil
}

// AnalyzeStored прогоняет ранее сохранённый снимок без повторного сохранения.
func (s *AnalysisService) AnalyzeStored(ctx context.Context, owner, id string) (*AnalysisOutput, error) {
	if s.scans == nil {
		return nil, ErrStorageDisabled
	}

	rec, err := s.scans.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	img, _, err := DecodeImage(rec.Image)
	if err != nil {
		return nil, err
	}

	out, err := s.run(ctx, s.log.WithFields(logrus.Fields{"owner": owner, "scan_id": id}), img)
	if err != nil {
		return nil, err
	}
	out.ScanID = id
	return out, nil
}

// ListScans возвращает снимки владельца, новые первыми.
func (s *AnalysisService) ListScans(ctx context.Context, owner string) ([]*entity.ScanRecord, error) {
	if s.scans == nil {
		return nil, ErrStorageDisabled
	}
	return s.scans.List(ctx, owner)
}

// DeleteScan удаляет снимок владельца.
func (s *AnalysisService) DeleteScan(ctx context.Context, owner, id string) error {
	if s.scans == nil {
		return ErrStorageDisabled
	}
	return s.scans.Delete(ctx, owner, id)
}

// ClearScans удаляет все снимки владельца.
func (s *AnalysisService) ClearScans(ctx context.Context, owner string) (int, error) {
	if s.scans == nil {
		return 0, ErrStorageDisabled
	}
	return s.scans.Clear(ctx, owner)
}

// StorageStatus возвращает состояние хранилища снимков.
func (s *AnalysisService) StorageStatus(ctx context.Context) port.StorageStatus {
	if s.scans == nil {
		return port.StorageStatus{Backend: "none"}
	}
	return s.scans.Status(ctx)
}

func (s *AnalysisService) run(ctx context.Context, log logrus.FieldLogger, img image.Image) (*AnalysisOutput, error) {
	started := time.Now()
	result, err := s.pipeline.Run(ctx, img, s.model)
	if err != nil {
		log.WithError(err).Error("segmentation failed")
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result.ResultImage); err != nil {
		return nil, fmt.Errorf("encode result image: %w", err)
	}

	log.WithFields(logrus.Fields{
		"tumor_present": result.TumorPresent,
		"tumor_area":    result.TumorArea,
		"regions":       len(result.Regions),
		"confidence":    result.Confidence,
		"accuracy":      result.Accuracy,
		"elapsed":       time.Since(started),
	}).Info("scan analysed")

	return &AnalysisOutput{Result: result, ResultPNG: buf.Bytes()}, nil
}

package port

import (
	"context"
	"errors"

	"tumor-scan/internal/domain/entity"
)

var (
	// ErrScanNotFound возвращается, если снимок владельца не найден
	ErrScanNotFound = errors.New("scan not found")
	// ErrScanTooLarge возвращается для снимков больше entity.MaxScanBytes
	ErrScanTooLarge = errors.New("scan is too large")
)

// StorageStatus описывает состояние хранилища снимков
type StorageStatus struct {
	Connected   bool   `json:"connected"`
	Backend     string `json:"backend"`
	Collections int    `json:"collections"`
	Error       string `json:"error,omitempty"`
}

// ScanRepository интерфейс хранилища снимков пользователей
type ScanRepository interface {
	// Save сохраняет снимок и возвращает его ID
	Save(ctx context.Context, scan *entity.ScanRecord) (string, error)

	// List возвращает снимки владельца, новые первыми
	List(ctx context.Context, owner string) ([]*entity.ScanRecord, error)

	// Get возвращает снимок владельца по ID
	Get(ctx context.Context, owner, id string) (*entity.ScanRecord, error)

	// Delete удаляет снимок владельца
	Delete(ctx context.Context, owner, id string) error

	// Clear удаляет все снимки владельца и возвращает их число
	Clear(ctx context.Context, owner string) (int, error)

	// Status проверяет доступность хранилища
	Status(ctx context.Context) StorageStatus
}

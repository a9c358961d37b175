package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
)

// MemoryScanRepository in-memory хранилище снимков, по коллекции на владельца
type MemoryScanRepository struct {
	mu    sync.RWMutex
	seq   uint64
	scans map[string][]*entity.ScanRecord
}

// NewMemoryScanRepository создаёт новое in-memory хранилище снимков
func NewMemoryScanRepository() *MemoryScanRepository {
	return &MemoryScanRepository{
		scans: make(map[string][]*entity.ScanRecord),
	}
}

// Save сохраняет копию снимка и возвращает его ID
func (r *MemoryScanRepository) Save(ctx context.Context, scan *entity.ScanRecord) (string, error) {
	if len(scan.Image) > entity.MaxScanBytes {
		return "", port.ErrScanTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	stored := *scan
	stored.ID = fmt.Sprintf("%016x", r.seq)
	stored.Image = append([]byte(nil), scan.Image...)
	r.scans[scan.Owner] = append(r.scans[scan.Owner], &stored)

	return stored.ID, nil
}

// List возвращает снимки владельца, новые первыми
func (r *MemoryScanRepository) List(ctx context.Context, owner string) ([]*entity.ScanRecord, error) {
	r.mu.RLock()
	stored := r.scans[owner]
	out := make([]*entity.ScanRecord, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		c := *stored[i]
		out = append(out, &c)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// Get возвращает снимок владельца по ID
func (r *MemoryScanRepository) Get(ctx context.Context, owner, id string) (*entity.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.scans[owner] {
		if s.ID == id {
			c := *s
			return &c, nil
		}
	}
	return nil, port.ErrScanNotFound
}

// Delete удаляет снимок владельца
func (r *MemoryScanRepository) Delete(ctx context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.scans[owner]
	for i, s := range stored {
		if s.ID == id {
			r.scans[owner] = append(stored[:i], stored[i+1:]...)
			return nil
		}
	}
	return port.ErrScanNotFound
}

// Clear удаляет все снимки владельца
func (r *MemoryScanRepository) Clear(ctx context.Context, owner string) (int, error) {
	r.mu.Lock()
	n := len(r.scans[owner])
	delete(r.scans, owner)
	r.mu.Unlock()

	return n, nil
}

// Status всегда сообщает о доступном хранилище
func (r *MemoryScanRepository) Status(ctx context.Context) port.StorageStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collections := 0
	for _, s := range r.scans {
		if len(s) > 0 {
			collections++
		}
	}
	return port.StorageStatus{
		Connected:   true,
		Backend:     "memory",
		Collections: collections,
	}
}

// Проверка реализации интерфейса
var _ port.ScanRepository = (*MemoryScanRepository)(nil)

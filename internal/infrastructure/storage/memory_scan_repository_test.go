package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
)

func newScan(owner string, at time.Time) *entity.ScanRecord {
	return &entity.ScanRecord{
		Owner:      owner,
		Image:      []byte("png-bytes"),
		Format:     "png",
		UploadedAt: at,
		SizeBytes:  9,
		Mode:       "L",
		Width:      256,
		Height:     256,
	}
}

func TestMemoryScanRepository_SaveListGet(t *testing.T) {
	repo := NewMemoryScanRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	oldID, err := repo.Save(ctx, newScan("a@example.com", base))
	require.NoError(t, err)
	newID, err := repo.Save(ctx, newScan("a@example.com", base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = repo.Save(ctx, newScan("b@example.com", base))
	require.NoError(t, err)
	require.NotEqual(t, oldID, newID)

	list, err := repo.List(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newID, list[0].ID)
	require.Equal(t, oldID, list[1].ID)

	got, err := repo.Get(ctx, "a@example.com", oldID)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), got.Image)

	_, err = repo.Get(ctx, "b@example.com", oldID)
	require.ErrorIs(t, err, port.ErrScanNotFound)

	status := repo.Status(ctx)
	require.True(t, status.Connected)
	require.Equal(t, 2, status.Collections)
}

func TestMemoryScanRepository_SaveCopiesImage(t *testing.T) {
	repo := NewMemoryScanRepository()
	ctx := context.Background()

	scan := newScan("a", time.Now())
	id, err := repo.Save(ctx, scan)
	require.NoError(t, err)
	scan.Image[0] = 'X'

	got, err := repo.Get(ctx, "a", id)
	require.NoError(t, err)
	require.Equal(t, byte('p'), got.Image[0])
}

func TestMemoryScanRepository_DeleteAndClear(t *testing.T) {
	repo := NewMemoryScanRepository()
	ctx := context.Background()

	id, err := repo.Save(ctx, newScan("a", time.Now()))
	require.NoError(t, err)
	_, err = repo.Save(ctx, newScan("a", time.Now()))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "a", id))
	require.ErrorIs(t, repo.Delete(ctx, "a", id), port.ErrScanNotFound)

	n, err := repo.Clear(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = repo.Clear(ctx, "a")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryScanRepository_RejectsLargeScan(t *testing.T) {
	repo := NewMemoryScanRepository()
	scan := newScan("a", time.Now())
	scan.Image = make([]byte, entity.MaxScanBytes+1)

	_, err := repo.Save(context.Background(), scan)
	require.ErrorIs(t, err, port.ErrScanTooLarge)
}

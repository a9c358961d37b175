package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "MASK_THRESHOLD", "MIN_REGION_SIZE", "INPUT_SIZE", "INPUT_CHANNELS", "MONGO_DATABASE", "MAX_UPLOAD_BYTES", "LOG_FORMAT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, 0.5, cfg.Threshold)
	require.Equal(t, 200, cfg.MinRegionSize)
	require.Equal(t, 256, cfg.InputSize)
	require.Equal(t, 3, cfg.InputChannels)
	require.Equal(t, "Brain", cfg.MongoDatabase)
	require.Equal(t, int64(16<<20), cfg.MaxUploadBytes)
	require.Equal(t, "text", cfg.LogFormat)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MASK_THRESHOLD", "0.65")
	t.Setenv("MIN_REGION_SIZE", "50")
	t.Setenv("INPUT_CHANNELS", "1")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 0.65, cfg.Threshold)
	require.Equal(t, 50, cfg.MinRegionSize)
	require.Equal(t, 1, cfg.InputChannels)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("MIN_REGION_SIZE", "many")
	_, err := Load()
	require.ErrorContains(t, err, "MIN_REGION_SIZE")

	t.Setenv("MIN_REGION_SIZE", "")
	t.Setenv("MASK_THRESHOLD", "half")
	_, err = Load()
	require.ErrorContains(t, err, "MASK_THRESHOLD")

	t.Setenv("MASK_THRESHOLD", "")
	t.Setenv("LOG_FORMAT", "xml")
	_, err = Load()
	require.Error(t, err)
}

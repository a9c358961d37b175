package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string // пусто: бот выключен
	HTTPAddr      string

	ModelPath         string // пусто: модель не загружается
	ModelMetadataPath string
	ONNXRuntimeLib    string

	Threshold     float64
	MinRegionSize int
	InputSize     int
	InputChannels int

	MongoURI      string // пусто: снимки хранятся в памяти
	MongoDatabase string

	MaxUploadBytes int64

	LogLevel  string
	LogFormat string // text или json
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:     os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:          getString("HTTP_ADDR", ":8080"),
		ModelPath:         os.Getenv("MODEL_PATH"),
		ModelMetadataPath: os.Getenv("MODEL_METADATA_PATH"),
		ONNXRuntimeLib:    os.Getenv("ONNXRUNTIME_LIB"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     getString("MONGO_DATABASE", "Brain"),
		LogLevel:          getString("LOG_LEVEL", "info"),
		LogFormat:         getString("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.Threshold, err = getFloat("MASK_THRESHOLD", 0.5); err != nil {
		return nil, err
	}
	if cfg.MinRegionSize, err = getInt("MIN_REGION_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.InputSize, err = getInt("INPUT_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.InputChannels, err = getInt("INPUT_CHANNELS", 3); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 16<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"tumor-scan/config"
	"tumor-scan/internal/api/rest"
	"tumor-scan/internal/api/telegram"
	"tumor-scan/internal/container"
	"tumor-scan/internal/domain/port"
	"tumor-scan/internal/infrastructure/model"
	"tumor-scan/internal/infrastructure/storage"
	"tumor-scan/internal/infrastructure/vision"
	"tumor-scan/internal/segmentation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipelineCfg := segmentation.DefaultConfig()
	pipelineCfg.InputSize = cfg.InputSize
	pipelineCfg.Channels = cfg.InputChannels
	pipelineCfg.Threshold = cfg.Threshold
	pipelineCfg.MinSize = cfg.MinRegionSize
	pipelineCfg.Labeler = vision.NewLabeler()

	pipeline, err := segmentation.NewPipeline(pipelineCfg)
	if err != nil {
		logger.WithError(err).Fatal("invalid pipeline configuration")
	}
	logger.WithFields(logrus.Fields{
		"input_size": cfg.InputSize,
		"channels":   cfg.InputChannels,
		"threshold":  cfg.Threshold,
		"min_size":   cfg.MinRegionSize,
		"labeler":    vision.Backend,
	}).Info("segmentation pipeline ready")

	// Модель загружается один раз; без неё сервис отвечает ErrModelUnavailable
	var segModel port.Model
	if cfg.ModelPath != "" {
		onnx, err := model.NewONNXModel(model.Options{
			ModelPath:    cfg.ModelPath,
			MetadataPath: cfg.ModelMetadataPath,
			LibraryPath:  cfg.ONNXRuntimeLib,
			Size:         cfg.InputSize,
			Channels:     cfg.InputChannels,
		})
		if err != nil {
			logger.WithError(err).Error("failed to load model, analysis disabled")
		} else {
			defer onnx.Close()
			segModel = onnx
			logger.WithField("path", cfg.ModelPath).Info("model loaded")
		}
	} else {
		logger.Warn("MODEL_PATH is not set, analysis disabled")
	}

	scans := newScanRepository(ctx, cfg, logger)

	userRepo := storage.NewMemoryUserRepository()
	appContainer := container.New(userRepo, scans, pipeline, segModel, logger)

	var wg sync.WaitGroup

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logger.WithField("component", "telegram"))
		if err != nil {
			logger.WithError(err).Fatal("failed to create bot")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				logger.WithError(err).Error("bot stopped")
			}
		}()
	} else {
		logger.Info("TELEGRAM_TOKEN is not set, bot disabled")
	}

	handler := rest.NewHandler(appContainer.AnalysisService, cfg.MaxUploadBytes, logger.WithField("component", "http"))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("http shutdown failed")
		}
	}()

	logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("http server failed")
		stop()
	}

	wg.Wait()
	logger.Info("shut down gracefully")
}

// newScanRepository подключает MongoDB, если задан MONGO_URI, иначе хранит снимки в памяти
func newScanRepository(ctx context.Context, cfg *config.Config, logger *logrus.Logger) port.ScanRepository {
	if cfg.MongoURI == "" {
		logger.Info("MONGO_URI is not set, scans are kept in memory")
		return storage.NewMemoryScanRepository()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, err := storage.NewMongoScanRepository(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.WithError(err).Warn("mongo unavailable, scans are kept in memory")
		return storage.NewMemoryScanRepository()
	}

	go func() {
		<-ctx.Done()
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("failed to close mongo connection")
		}
	}()

	logger.WithField("database", cfg.MongoDatabase).Info("scans are stored in mongo")
	return repo
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}

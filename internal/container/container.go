package container

import (
	"github.com/sirupsen/logrus"

	app "tumor-scan/internal/application"
	"tumor-scan/internal/domain/port"
	"tumor-scan/internal/segmentation"
)

type Container struct {
	UserService     *app.UserService
	AnalysisService *app.AnalysisService
}

// New собирает сервисы приложения. model и scans могут быть nil.
func New(userRepo port.UserRepository, scans port.ScanRepository, pipeline *segmentation.Pipeline, model port.Model, log logrus.FieldLogger) *Container {
	userService := app.NewUserService(userRepo)
	analysisService := app.NewAnalysisService(pipeline, model, scans, log.WithField("component", "analysis"))

	return &Container{
		UserService:     userService,
		AnalysisService: analysisService,
	}
}

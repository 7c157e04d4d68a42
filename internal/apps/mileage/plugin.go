package mileage

import (
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/apps"
	"github.com/gofiber/fiber/v2"
)

type MileagePlugin struct{}

func New() *MileagePlugin {
	return &MileagePlugin{}
}

func (p *MileagePlugin) ID() string { return "mileage" }

func (p *MileagePlugin) Models() []interface{} {
	return []interface{}{
		&MileageLog{},
		&Trip{},
	}
}

func (p *MileagePlugin) RegisterRoutes(router fiber.Router, deps apps.Deps) {
	svc := NewLogService(deps.DB)
	handler := NewLogHandler(svc)

	router.Post("/mileage/logs", handler.Generate)
	router.Get("/mileage/logs", handler.List)
	router.Get("/mileage/logs/:id", handler.Get)
	router.Get("/mileage/logs/:id/export", handler.Export)
	router.Delete("/mileage/logs/:id", handler.Delete)
}

var _ apps.Plugin = (*MileagePlugin)(nil)

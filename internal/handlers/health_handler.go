package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db        *gorm.DB
	rateLimit func() string
}

// NewHealthHandler reports rate limiting as "disabled" when rateLimit is nil.
func NewHealthHandler(db *gorm.DB, rateLimit func() string) *HealthHandler {
	return &HealthHandler{db: db, rateLimit: rateLimit}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(h.db); err != nil {
		dbStatus = "unhealthy"
	}

	rl := "disabled"
	if h.rateLimit != nil {
		rl = h.rateLimit()
	}

	status := "ok"
	if dbStatus != "ok" {
		status = "degraded"
	}

	return c.JSON(dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
		RateLimit: rl,
	})
}

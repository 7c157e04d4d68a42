package apps

import (
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps is what a plugin may use when mounting its routes.
type Deps struct {
	DB     *gorm.DB
	Config *config.Config
}

// Plugin defines the interface every premium feature module implements.
type Plugin interface {
	// ID returns the unique plugin identifier used in logs.
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts routes on the premium group. The group already
	// requires a resolved identity and an active subscription.
	RegisterRoutes(router fiber.Router, deps Deps)
}

// handlers/rivalry_routes.go
package handlers

import (
	"score-sync-system/middleware"
	"score-sync-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRivalryRoutes(app *fiber.App, db *gorm.DB, rivalryService *services.RivalryService) {
	scoped := app.Group("/environments/:env", middleware.EnvironmentContextMiddleware(db))

	scoped.Get("/rivalries", rivalryService.ListRivalries)
	scoped.Get("/rivalries/:id", rivalryService.GetRivalry)
}

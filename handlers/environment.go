// handlers/environment_routes.go
package handlers

import (
	"score-sync-system/middleware"
	"score-sync-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupEnvironmentRoutes(app *fiber.App, db *gorm.DB, envService *services.EnvironmentService, gameTypeService *services.GameTypeService, snapshotService *services.SnapshotService) {
	// Shared catalog — not scoped to an environment.
	app.Get("/game-types", gameTypeService.ListGameTypes)
	app.Post("/game-types", gameTypeService.CreateGameTypeHandler)

	app.Post("/environments", envService.CreateEnvironmentHandler)

	// Everything below requires a valid environment token.
	scoped := app.Group("/environments/:env", middleware.EnvironmentContextMiddleware(db))
	scoped.Get("/", envService.GetEnvironment)
	scoped.Post("/players", envService.CreatePlayerHandler)
	scoped.Patch("/players/:id", envService.RenamePlayerHandler)
	scoped.Post("/game-types/:id/favorite", gameTypeService.ToggleFavoriteHandler)
	scoped.Post("/export", snapshotService.ExportEnvironment)
}

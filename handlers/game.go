// handlers/game_routes.go
package handlers

import (
	"score-sync-system/middleware"
	"score-sync-system/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupGameRoutes(app *fiber.App, db *gorm.DB, gameService *services.GameService, scoreService *services.ScoreService) {
	scoped := app.Group("/environments/:env", middleware.EnvironmentContextMiddleware(db))

	scoped.Post("/games", gameService.CreateGameHandler)
	scoped.Get("/games/:id", gameService.GetGame)
	scoped.Patch("/games/:id", gameService.UpdateGameHandler)

	scoped.Post("/games/:id/scores", scoreService.ApplyScoreBatch)
	scoped.Put("/games/:id/scores/:player_id", scoreService.SetPlayerScore)
	scoped.Put("/games/:id/player-order", gameService.SetPlayerOrderHandler)
}

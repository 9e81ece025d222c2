// handlers/ws.go
package handlers

import (
	"errors"
	"log"

	"score-sync-system/models"
	"score-sync-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SetupWebSocketRoutes mounts the live-update channel. A connection names
// its environment at connect time and is joined to exactly that channel;
// cross-environment subscription is not possible. Validation (token format
// plus existence) happens before the upgrade.
func SetupWebSocketRoutes(app *fiber.App, db *gorm.DB, hub *services.BroadcastHub) {
	app.Use("/ws/:env", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Params("env")
		if _, err := uuid.Parse(token); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid environment token"})
		}
		var env models.Environment
		err := db.First(&env, "id = ?", token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "environment not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.Next()
	})

	app.Get("/ws/:env", websocket.New(func(conn *websocket.Conn) {
		environmentID := conn.Params("env")
		sub := hub.Subscribe(environmentID)
		defer hub.Unsubscribe(sub)

		// Reader: clients send nothing we act on. Some legacy clients
		// still emit a "join" frame after connecting; it is read and
		// discarded like everything else. A read error means the client
		// is gone and the subscriber is silently dropped.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case payload, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					log.Printf("[WS] write failed on env %s: %v", environmentID, err)
					return
				}
			case <-done:
				return
			}
		}
	}))
}

// middleware/environment.go
package middleware

import (
	"errors"

	"score-sync-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnvironmentContextMiddleware resolves the :env path parameter — the
// opaque access token — to a loaded Environment and attaches it to the
// request context. Malformed tokens are rejected before touching storage.
func EnvironmentContextMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Params("env")
		if _, err := uuid.Parse(token); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid environment token",
			})
		}

		var env models.Environment
		err := db.First(&env, "id = ?", token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "environment not found",
			})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		c.Locals("environment", &env)
		return c.Next()
	}
}

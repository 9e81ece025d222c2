// services/game_type_service.go
package services

import (
	"errors"
	"strings"

	"score-sync-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameTypeService manages the shared catalog of game definitions and the
// per-environment favorite flags on top of it.
type GameTypeService struct {
	DB *gorm.DB
}

func NewGameTypeService(db *gorm.DB) *GameTypeService {
	return &GameTypeService{DB: db}
}

// CreateGameType adds a catalog entry, global across environments.
func (s *GameTypeService) CreateGameType(name, description, conditionKind string, defaultThreshold int) (*models.GameTypeDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("game type name is required")
	}
	if conditionKind != models.ConditionReachTarget && conditionKind != models.ConditionFallBelowFloor {
		return nil, validationf("unknown condition kind %q", conditionKind)
	}

	var existing models.GameTypeDefinition
	err := s.DB.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil, conflictf("game type %q already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	gameType := &models.GameTypeDefinition{
		ID:               uuid.NewString(),
		Name:             name,
		Description:      description,
		ConditionKind:    conditionKind,
		DefaultThreshold: defaultThreshold,
	}
	if err := s.DB.Create(gameType).Error; err != nil {
		return nil, err
	}
	return gameType, nil
}

// ToggleFavorite flips the favorite flag for a game type within one
// environment and reports the new state.
func (s *GameTypeService) ToggleFavorite(environmentID, gameTypeID string) (bool, error) {
	var gameType models.GameTypeDefinition
	err := s.DB.First(&gameType, "id = ?", gameTypeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, notFound("game type", gameTypeID)
	}
	if err != nil {
		return false, err
	}

	favorited := false
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var fav models.GameTypeFavorite
		err := tx.Where("environment_id = ? AND game_type_id = ?", environmentID, gameTypeID).
			First(&fav).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			favorited = true
			return tx.Create(&models.GameTypeFavorite{
				ID:            uuid.NewString(),
				EnvironmentID: environmentID,
				GameTypeID:    gameTypeID,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Delete(&fav).Error
	})
	return favorited, err
}

// --- HTTP handlers ---

// ListGameTypes handles GET /game-types.
func (s *GameTypeService) ListGameTypes(c *fiber.Ctx) error {
	var types []models.GameTypeDefinition
	if err := s.DB.Order("name").Find(&types).Error; err != nil {
		return RespondError(c, err)
	}
	return c.JSON(types)
}

// CreateGameTypeHandler handles POST /game-types.
func (s *GameTypeService) CreateGameTypeHandler(c *fiber.Ctx) error {
	var req struct {
		Name             string `json:"name"`
		Description      string `json:"description"`
		ConditionKind    string `json:"condition_kind"`
		DefaultThreshold int    `json:"default_threshold"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	gameType, err := s.CreateGameType(req.Name, req.Description, req.ConditionKind, req.DefaultThreshold)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(gameType)
}

// ToggleFavoriteHandler handles POST /environments/:env/game-types/:id/favorite.
func (s *GameTypeService) ToggleFavoriteHandler(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	favorited, err := s.ToggleFavorite(env.ID, c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{
		"game_type_id": c.Params("id"),
		"favorited":    favorited,
	})
}

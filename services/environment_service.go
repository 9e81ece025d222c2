// services/environment_service.go
package services

import (
	"errors"
	"strings"

	"score-sync-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

type EnvironmentService struct {
	DB *gorm.DB
}

func NewEnvironmentService(db *gorm.DB) *EnvironmentService {
	return &EnvironmentService{DB: db}
}

// NormalizePlayerName folds a display name to the form used for the
// per-environment uniqueness check: unidecoded, lower-cased, trimmed.
func NormalizePlayerName(name string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
}

// CreateEnvironment mints a new isolation boundary. The generated id is
// the opaque access token shared with viewers.
func (s *EnvironmentService) CreateEnvironment(name string) (*models.Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("environment name is required")
	}

	env := &models.Environment{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := s.DB.Create(env).Error; err != nil {
		return nil, err
	}
	return env, nil
}

// CreatePlayer adds a player with a palette color assigned round-robin:
// the least-used color wins, palette order breaks ties, so colors stay
// unique until the palette is exhausted.
func (s *EnvironmentService) CreatePlayer(environmentID, name string) (*models.Player, error) {
	var player *models.Player
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		player, err = createPlayerTx(tx, environmentID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

func createPlayerTx(tx *gorm.DB, environmentID, name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("player name is required")
	}
	normalized := NormalizePlayerName(name)

	var existing models.Player
	err := tx.Where("environment_id = ? AND normalized_name = ?", environmentID, normalized).
		First(&existing).Error
	if err == nil {
		return nil, conflictf("player name %q already taken in this environment", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	color, err := nextPaletteColor(tx, environmentID)
	if err != nil {
		return nil, err
	}

	player := &models.Player{
		ID:             uuid.NewString(),
		EnvironmentID:  environmentID,
		Name:           name,
		NormalizedName: normalized,
		Color:          color,
	}
	if err := tx.Create(player).Error; err != nil {
		return nil, err
	}
	return player, nil
}

func nextPaletteColor(tx *gorm.DB, environmentID string) (string, error) {
	var players []models.Player
	if err := tx.Where("environment_id = ?", environmentID).Find(&players).Error; err != nil {
		return "", err
	}

	usage := make(map[string]int, len(models.PlayerColorPalette))
	for _, p := range players {
		usage[p.Color]++
	}

	best := models.PlayerColorPalette[0]
	for _, color := range models.PlayerColorPalette {
		if usage[color] < usage[best] {
			best = color
		}
	}
	return best, nil
}

// EnsurePlayers resolves a list of display names to player ids within the
// caller's transaction, creating any that do not exist yet. Used when a
// game is started with names instead of ids.
func EnsurePlayers(tx *gorm.DB, environmentID string, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		normalized := NormalizePlayerName(name)
		if normalized == "" {
			return nil, validationf("player name is required")
		}
		if _, dup := seen[normalized]; dup {
			return nil, validationf("player name %q listed twice", name)
		}
		seen[normalized] = struct{}{}

		var player models.Player
		err := tx.Where("environment_id = ? AND normalized_name = ?", environmentID, normalized).
			First(&player).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created, cerr := createPlayerTx(tx, environmentID, name)
			if cerr != nil {
				return nil, cerr
			}
			ids = append(ids, created.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, player.ID)
	}
	return ids, nil
}

// RenamePlayer changes a player's display name, keeping the
// case-insensitive uniqueness rule intact.
func (s *EnvironmentService) RenamePlayer(environmentID, playerID, name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("player name is required")
	}
	normalized := NormalizePlayerName(name)

	var player models.Player
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&player, "id = ? AND environment_id = ?", playerID, environmentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("player", playerID)
		}
		if err != nil {
			return err
		}

		var clash models.Player
		err = tx.Where("environment_id = ? AND normalized_name = ? AND id <> ?",
			environmentID, normalized, playerID).First(&clash).Error
		if err == nil {
			return conflictf("player name %q already taken in this environment", name)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		player.Name = name
		player.NormalizedName = normalized
		return tx.Model(&player).Updates(map[string]any{
			"name":            name,
			"normalized_name": normalized,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// --- HTTP handlers ---

// CreateEnvironmentHandler handles POST /environments.
func (s *EnvironmentService) CreateEnvironmentHandler(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	env, err := s.CreateEnvironment(req.Name)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(env)
}

// GetEnvironment handles GET /environments/:env — the full-state fetch
// clients use to reconcile after a missed broadcast.
func (s *EnvironmentService) GetEnvironment(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	if err := s.DB.Preload("Players").First(env, "id = ?", env.ID).Error; err != nil {
		return RespondError(c, err)
	}

	var active models.Game
	err := s.DB.Preload("Scores.Player").Preload("GameType").
		Where("environment_id = ? AND finalized = ?", env.ID, false).
		First(&active).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"environment": env, "active_game": nil})
	}
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"environment": env, "active_game": active})
}

// CreatePlayerHandler handles POST /environments/:env/players.
func (s *EnvironmentService) CreatePlayerHandler(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	player, err := s.CreatePlayer(env.ID, req.Name)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(player)
}

// RenamePlayerHandler handles PATCH /environments/:env/players/:id.
func (s *EnvironmentService) RenamePlayerHandler(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	player, err := s.RenamePlayer(env.ID, c.Params("id"), req.Name)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(player)
}

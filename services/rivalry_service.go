// services/rivalry_service.go
package services

import (
	"errors"
	"sort"
	"strings"

	"score-sync-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RivalryService struct {
	DB *gorm.DB
}

func NewRivalryService(db *gorm.DB) *RivalryService {
	return &RivalryService{DB: db}
}

// PlayerSetKey normalizes a player-id set into its canonical lookup key:
// sorted, deduplicated, joined with "|". Identity is therefore invariant
// under permutation of the input.
func PlayerSetKey(playerIDs []string) string {
	seen := make(map[string]struct{}, len(playerIDs))
	unique := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Strings(unique)
	return strings.Join(unique, "|")
}

// Resolve maps a player set to its rivalry within the environment, creating
// one if absent, and idempotently links the game type. It runs on the
// caller's transaction; the unique index on (environment_id, player_set_key)
// guarantees concurrent identical requests cannot produce two rows — the
// loser of the race re-reads the winner's row.
func (s *RivalryService) Resolve(tx *gorm.DB, environmentID, gameTypeID string, playerIDs []string) (*models.Rivalry, error) {
	key := PlayerSetKey(playerIDs)
	if key == "" {
		return nil, validationf("rivalry requires at least one player")
	}

	var rivalry models.Rivalry
	err := tx.Where("environment_id = ? AND player_set_key = ?", environmentID, key).
		First(&rivalry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rivalry = models.Rivalry{
			ID:            uuid.NewString(),
			EnvironmentID: environmentID,
			PlayerSetKey:  key,
		}
		if err := tx.Create(&rivalry).Error; err != nil {
			// Lost a concurrent create: the unique index rejected us, so
			// the row must exist now.
			if ferr := tx.Where("environment_id = ? AND player_set_key = ?", environmentID, key).
				First(&rivalry).Error; ferr != nil {
				return nil, err
			}
		} else {
			links := make([]models.RivalryPlayer, 0, len(playerIDs))
			for _, id := range strings.Split(key, "|") {
				links = append(links, models.RivalryPlayer{
					ID:        uuid.NewString(),
					RivalryID: rivalry.ID,
					PlayerID:  id,
				})
			}
			if err := tx.Create(&links).Error; err != nil {
				return nil, err
			}
		}
	} else if err != nil {
		return nil, err
	}

	var link models.RivalryGameType
	err = tx.Where("rivalry_id = ? AND game_type_id = ?", rivalry.ID, gameTypeID).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		link = models.RivalryGameType{
			ID:         uuid.NewString(),
			RivalryID:  rivalry.ID,
			GameTypeID: gameTypeID,
		}
		if err := tx.Create(&link).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return &rivalry, nil
}

// Get loads a rivalry with its player set, linked game types and stats.
func (s *RivalryService) Get(environmentID, rivalryID string) (*models.Rivalry, []models.RivalryPlayerStats, error) {
	var rivalry models.Rivalry
	err := s.DB.Preload("Players.Player").Preload("GameTypes.GameType").
		First(&rivalry, "id = ? AND environment_id = ?", rivalryID, environmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, notFound("rivalry", rivalryID)
	}
	if err != nil {
		return nil, nil, err
	}

	var stats []models.RivalryPlayerStats
	if err := s.DB.Where("rivalry_id = ?", rivalry.ID).
		Order("game_type_id, player_id").Find(&stats).Error; err != nil {
		return nil, nil, err
	}
	return &rivalry, stats, nil
}

// --- HTTP handlers ---

// ListRivalries returns all rivalries in the environment.
func (s *RivalryService) ListRivalries(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var rivalries []models.Rivalry
	if err := s.DB.Preload("Players.Player").Preload("GameTypes.GameType").
		Where("environment_id = ?", env.ID).
		Order("created_at").Find(&rivalries).Error; err != nil {
		return RespondError(c, err)
	}
	return c.JSON(rivalries)
}

// GetRivalry returns one rivalry with per-(player, game type) stats.
func (s *RivalryService) GetRivalry(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	rivalry, stats, err := s.Get(env.ID, c.Params("id"))
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{
		"rivalry": rivalry,
		"stats":   stats,
	})
}

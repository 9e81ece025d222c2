// services/game_service.go
package services

import (
	"errors"
	"time"

	"score-sync-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GameService struct {
	DB        *gorm.DB
	Hub       *BroadcastHub
	Rivalries *RivalryService
	Stats     *RivalryStatsService
}

func NewGameService(db *gorm.DB, hub *BroadcastHub, rivalries *RivalryService, stats *RivalryStatsService) *GameService {
	return &GameService{DB: db, Hub: hub, Rivalries: rivalries, Stats: stats}
}

// CreateGameRequest starts a new game for a set of players, addressed
// either by id or by display name (unknown names are created on the fly).
type CreateGameRequest struct {
	GameTypeID     string   `json:"game_type_id"`
	PlayerIDs      []string `json:"player_ids,omitempty"`
	PlayerNames    []string `json:"player_names,omitempty"`
	ConditionKind  string   `json:"condition_kind,omitempty"`  // optional override
	ConditionValue *int     `json:"condition_value,omitempty"` // optional override
}

// UpdateGameRequest updates lifecycle fields. Finalization is one-way.
type UpdateGameRequest struct {
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Finalized *bool      `json:"finalized,omitempty"`
	WinnerID  *string    `json:"winner_id,omitempty"`
}

// CreateGame starts a game: any prior unfinalized game in the environment
// is deleted with its score rows, zero-score rows are seeded for every
// player, and the player set is resolved to its rivalry — all in one
// transaction. The game_started event goes out after commit.
func (s *GameService) CreateGame(environmentID string, req CreateGameRequest) (*models.Game, error) {
	if len(req.PlayerIDs) == 0 && len(req.PlayerNames) == 0 {
		return nil, validationf("player_ids or player_names must not be empty")
	}

	var gameType models.GameTypeDefinition
	err := s.DB.First(&gameType, "id = ?", req.GameTypeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("game type", req.GameTypeID)
	}
	if err != nil {
		return nil, err
	}

	game := &models.Game{
		ID:             uuid.NewString(),
		EnvironmentID:  environmentID,
		GameTypeID:     gameType.ID,
		ConditionKind:  gameType.ConditionKind,
		ConditionValue: gameType.DefaultThreshold,
		StartedAt:      time.Now().UTC(),
	}
	if req.ConditionKind != "" {
		if req.ConditionKind != models.ConditionReachTarget && req.ConditionKind != models.ConditionFallBelowFloor {
			return nil, validationf("unknown condition kind %q", req.ConditionKind)
		}
		game.ConditionKind = req.ConditionKind
	}
	if req.ConditionValue != nil {
		game.ConditionValue = *req.ConditionValue
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		playerIDs, err := resolveGamePlayers(tx, environmentID, req)
		if err != nil {
			return err
		}

		// One unfinalized game per environment: drop the old one first.
		var stale []models.Game
		if err := tx.Where("environment_id = ? AND finalized = ?", environmentID, false).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, old := range stale {
			if err := tx.Where("game_id = ?", old.ID).Delete(&models.PlayerGameScore{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&old).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(game).Error; err != nil {
			return err
		}

		scores := make([]models.PlayerGameScore, 0, len(playerIDs))
		for _, pid := range playerIDs {
			scores = append(scores, models.PlayerGameScore{
				ID:       uuid.NewString(),
				GameID:   game.ID,
				PlayerID: pid,
			})
		}
		if err := tx.Create(&scores).Error; err != nil {
			return err
		}
		game.Scores = scores

		rivalry, err := s.Rivalries.Resolve(tx, environmentID, gameType.ID, playerIDs)
		if err != nil {
			return err
		}
		game.RivalryID = &rivalry.ID
		return tx.Model(game).Update("rivalry_id", rivalry.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.Hub.Publish(Event{
		Type:          EventGameStarted,
		EnvironmentID: environmentID,
		GameID:        game.ID,
		Scores:        game.Scores,
	})
	return game, nil
}

// UpdateGame applies lifecycle changes. A finalized game accepts no further
// mutation, and finalized=false on a finalized game is a conflict. On the
// false→true transition the rivalry statistics are recomputed synchronously
// (against committed history) before the call returns.
func (s *GameService) UpdateGame(environmentID, gameID string, req UpdateGameRequest) (*models.Game, error) {
	var game models.Game
	var finalizing bool

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockGame(tx, environmentID, gameID, &game); err != nil {
			return err
		}

		if game.Finalized {
			return conflictf("game %s is already finalized", game.ID)
		}
		if req.Finalized != nil && !*req.Finalized {
			// Nothing to revert on an unfinalized game, but spelling it out
			// keeps the contract visible.
			req.Finalized = nil
		}

		updates := map[string]any{}
		if req.EndedAt != nil {
			game.EndedAt = req.EndedAt
			updates["ended_at"] = req.EndedAt
		}
		if req.WinnerID != nil {
			if _, err := s.gameScore(tx, game.ID, *req.WinnerID); err != nil {
				return err
			}
			game.WinnerID = req.WinnerID
			updates["winner_id"] = req.WinnerID
		}
		if req.Finalized != nil && *req.Finalized {
			finalizing = true
			game.Finalized = true
			updates["finalized"] = true
			if game.EndedAt == nil {
				now := time.Now().UTC()
				game.EndedAt = &now
				updates["ended_at"] = &now
			}
		}

		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&game).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if finalizing {
		// Runs after commit so the aggregator reads committed history.
		if err := s.Stats.RecomputeForGame(&game); err != nil {
			return nil, err
		}
	}

	event := Event{
		Type:          EventGameUpdated,
		EnvironmentID: environmentID,
		GameID:        game.ID,
		Finalized:     game.Finalized,
	}
	if game.WinnerID != nil {
		event.WinnerID = *game.WinnerID
	}
	s.Hub.Publish(event)
	return &game, nil
}

// SetPlayerOrder persists a 1-based display order. The submitted list must
// be a permutation of the game's players.
func (s *GameService) SetPlayerOrder(environmentID, gameID string, order []string) (*models.Game, error) {
	var game models.Game
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockGame(tx, environmentID, gameID, &game); err != nil {
			return err
		}

		stats, byPlayer, err := loadScores(tx, game.ID)
		if err != nil {
			return err
		}
		if len(order) != len(stats) {
			return validationf("order must list all %d players exactly once", len(stats))
		}
		seen := make(map[string]struct{}, len(order))
		for _, pid := range order {
			if _, ok := byPlayer[pid]; !ok {
				return validationf("player %s is not part of game %s", pid, game.ID)
			}
			if _, dup := seen[pid]; dup {
				return validationf("player %s listed twice", pid)
			}
			seen[pid] = struct{}{}
		}

		for i, pid := range order {
			pos := i + 1
			idx := byPlayer[pid]
			if err := tx.Model(&stats[idx]).Update("sort_order", pos).Error; err != nil {
				return err
			}
			stats[idx].SortOrder = &pos
		}
		game.Scores = stats
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Hub.Publish(Event{
		Type:          EventPlayerOrderUpdated,
		EnvironmentID: environmentID,
		GameID:        game.ID,
		Scores:        game.Scores,
	})
	return &game, nil
}

// resolveGamePlayers turns the request's id or name list into a verified,
// deduplicated player-id set within the environment.
func resolveGamePlayers(tx *gorm.DB, environmentID string, req CreateGameRequest) ([]string, error) {
	if len(req.PlayerIDs) == 0 {
		return EnsurePlayers(tx, environmentID, req.PlayerNames)
	}

	seen := make(map[string]struct{}, len(req.PlayerIDs))
	unique := make([]string, 0, len(req.PlayerIDs))
	for _, id := range req.PlayerIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var count int64
	if err := tx.Model(&models.Player{}).
		Where("environment_id = ? AND id IN ?", environmentID, unique).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if int(count) != len(unique) {
		return nil, validationf("one or more players do not belong to this environment")
	}
	return unique, nil
}

func (s *GameService) gameScore(tx *gorm.DB, gameID, playerID string) (*models.PlayerGameScore, error) {
	var stat models.PlayerGameScore
	err := tx.Where("game_id = ? AND player_id = ?", gameID, playerID).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, validationf("player %s is not part of game %s", playerID, gameID)
	}
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// --- HTTP handlers ---

// CreateGameHandler handles POST /environments/:env/games.
func (s *GameService) CreateGameHandler(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req CreateGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	game, err := s.CreateGame(env.ID, req)
	if err != nil {
		return RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

// GetGame handles GET /environments/:env/games/:id.
func (s *GameService) GetGame(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var game models.Game
	err := s.DB.Preload("Scores.Player").Preload("GameType").
		First(&game, "id = ? AND environment_id = ?", c.Params("id"), env.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RespondError(c, notFound("game", c.Params("id")))
	}
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(game)
}

// UpdateGameHandler handles PATCH /environments/:env/games/:id.
func (s *GameService) UpdateGameHandler(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req UpdateGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	game, err := s.UpdateGame(env.ID, c.Params("id"), req)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(game)
}

// SetPlayerOrderHandler handles PUT /environments/:env/games/:id/player-order.
func (s *GameService) SetPlayerOrderHandler(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req struct {
		PlayerIDs []string `json:"player_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	game, err := s.SetPlayerOrder(env.ID, c.Params("id"), req.PlayerIDs)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(game)
}

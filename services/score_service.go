// services/score_service.go
package services

import (
	"errors"
	"log"
	"os"
	"strconv"

	"score-sync-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultMinScore = -999
	DefaultMaxScore = 999
)

// ScoreDelta is one (player, signed delta) entry of a batch.
type ScoreDelta struct {
	PlayerID string `json:"player_id"`
	Delta    int    `json:"delta"`
}

type ScoreService struct {
	DB  *gorm.DB
	Hub *BroadcastHub

	MinScore int
	MaxScore int
}

func NewScoreService(db *gorm.DB, hub *BroadcastHub) *ScoreService {
	return &ScoreService{
		DB:       db,
		Hub:      hub,
		MinScore: scoreBoundFromEnv("MIN_SCORE", DefaultMinScore),
		MaxScore: scoreBoundFromEnv("MAX_SCORE", DefaultMaxScore),
	}
}

func scoreBoundFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Scores] invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

// ApplyDeltas applies a whole delta batch atomically. The game row is
// locked for the duration of the transaction so concurrent batches for the
// same game serialize and no read-modify-write update is lost. If any
// resulting score leaves [MinScore, MaxScore] the batch is rejected with
// no partial application. On success the refreshed score set is run
// through the winner evaluator; a newly found winner is recorded on the
// game without finalizing it.
func (s *ScoreService) ApplyDeltas(environmentID, gameID string, deltas []ScoreDelta) (*models.Game, error) {
	if len(deltas) == 0 {
		return nil, validationf("score batch is empty")
	}

	var game models.Game
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockGame(tx, environmentID, gameID, &game); err != nil {
			return err
		}
		if game.Finalized {
			return conflictf("game %s is finalized; scores are immutable", game.ID)
		}

		stats, byPlayer, err := loadScores(tx, game.ID)
		if err != nil {
			return err
		}

		// Compute every new score before writing anything so a violation
		// anywhere rejects the batch as a whole.
		next := make(map[string]int, len(deltas))
		for _, d := range deltas {
			idx, ok := byPlayer[d.PlayerID]
			if !ok {
				return validationf("player %s is not part of game %s", d.PlayerID, game.ID)
			}
			current, staged := next[d.PlayerID]
			if !staged {
				current = stats[idx].Score
			}
			current += d.Delta
			if current < s.MinScore || current > s.MaxScore {
				return &RangeViolation{PlayerID: d.PlayerID, Score: current, Min: s.MinScore, Max: s.MaxScore}
			}
			next[d.PlayerID] = current
		}

		for playerID, score := range next {
			idx := byPlayer[playerID]
			if err := tx.Model(&stats[idx]).Update("score", score).Error; err != nil {
				return err
			}
			stats[idx].Score = score
		}

		return s.recordWinner(tx, &game, stats)
	})
	if err != nil {
		return nil, err
	}

	s.publishScoreUpdate(&game, deltas)
	return &game, nil
}

// SetScore sets one player's score to an absolute value, bypassing delta
// arithmetic but keeping the same bound check and winner evaluation.
func (s *ScoreService) SetScore(environmentID, gameID, playerID string, value int) (*models.Game, error) {
	if value < s.MinScore || value > s.MaxScore {
		return nil, &RangeViolation{PlayerID: playerID, Score: value, Min: s.MinScore, Max: s.MaxScore}
	}

	var game models.Game
	var delta int
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockGame(tx, environmentID, gameID, &game); err != nil {
			return err
		}
		if game.Finalized {
			return conflictf("game %s is finalized; scores are immutable", game.ID)
		}

		stats, byPlayer, err := loadScores(tx, game.ID)
		if err != nil {
			return err
		}
		idx, ok := byPlayer[playerID]
		if !ok {
			return validationf("player %s is not part of game %s", playerID, game.ID)
		}

		delta = value - stats[idx].Score
		if err := tx.Model(&stats[idx]).Update("score", value).Error; err != nil {
			return err
		}
		stats[idx].Score = value

		return s.recordWinner(tx, &game, stats)
	})
	if err != nil {
		return nil, err
	}

	s.publishScoreUpdate(&game, []ScoreDelta{{PlayerID: playerID, Delta: delta}})
	return &game, nil
}

// lockGame loads the game under FOR UPDATE, scoping it to the environment.
// sqlite has no row locks but serializes writers on its own, so the clause
// only applies on postgres.
func lockGame(tx *gorm.DB, environmentID, gameID string, game *models.Game) error {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(game, "id = ? AND environment_id = ?", gameID, environmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound("game", gameID)
	}
	return err
}

func loadScores(tx *gorm.DB, gameID string) ([]models.PlayerGameScore, map[string]int, error) {
	var stats []models.PlayerGameScore
	if err := tx.Where("game_id = ?", gameID).Order("player_id").Find(&stats).Error; err != nil {
		return nil, nil, err
	}
	byPlayer := make(map[string]int, len(stats))
	for i, st := range stats {
		byPlayer[st.PlayerID] = i
	}
	return stats, byPlayer, nil
}

// recordWinner evaluates the refreshed score set and records a first-time
// winner on the game. Finalization stays a separate, explicit caller
// action.
func (s *ScoreService) recordWinner(tx *gorm.DB, game *models.Game, stats []models.PlayerGameScore) error {
	game.Scores = stats
	if game.WinnerID != nil {
		return nil
	}

	scores := make([]PlayerScore, len(stats))
	for i, st := range stats {
		scores[i] = PlayerScore{PlayerID: st.PlayerID, Score: st.Score}
	}
	winnerID, ok := EvaluateWinner(game.ConditionKind, game.ConditionValue, scores)
	if !ok {
		return nil
	}

	if err := tx.Model(game).Update("winner_id", winnerID).Error; err != nil {
		return err
	}
	game.WinnerID = &winnerID
	return nil
}

// publishScoreUpdate emits one score_update after the batch commits.
// Single-entry batches carry the originating player and signed delta for
// tally rendering; the refreshed score list rides along either way.
func (s *ScoreService) publishScoreUpdate(game *models.Game, deltas []ScoreDelta) {
	event := Event{
		Type:          EventScoreUpdate,
		EnvironmentID: game.EnvironmentID,
		GameID:        game.ID,
		Scores:        game.Scores,
	}
	if game.WinnerID != nil {
		event.WinnerID = *game.WinnerID
	}
	if len(deltas) == 1 {
		event.PlayerID = deltas[0].PlayerID
		d := deltas[0].Delta
		event.Delta = &d
	}
	s.Hub.Publish(event)
}

// --- HTTP handlers ---

// ApplyScoreBatch handles POST /environments/:env/games/:id/scores.
func (s *ScoreService) ApplyScoreBatch(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req struct {
		Deltas []ScoreDelta `json:"deltas"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	game, err := s.ApplyDeltas(env.ID, c.Params("id"), req.Deltas)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(game)
}

// SetPlayerScore handles PUT /environments/:env/games/:id/scores/:player_id.
func (s *ScoreService) SetPlayerScore(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	var req struct {
		Score int `json:"score"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	game, err := s.SetScore(env.ID, c.Params("id"), c.Params("player_id"), req.Score)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(game)
}

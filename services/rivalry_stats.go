// services/rivalry_stats.go
package services

import (
	"errors"
	"log"

	"score-sync-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RivalryStatsService recomputes RivalryPlayerStats from the full
// finalized-game history. Recomputation from scratch (instead of
// incremental patching) keeps the rows consistent even if an earlier run
// was skipped or interrupted; volumes per rivalry are small enough that
// the O(games) cost does not matter.
type RivalryStatsService struct {
	DB *gorm.DB
}

func NewRivalryStatsService(db *gorm.DB) *RivalryStatsService {
	return &RivalryStatsService{DB: db}
}

// RecomputeForGame refreshes the stats of every player in the game's
// rivalry for the game's type. Called exactly once per non-finalized →
// finalized transition, after that transition has committed. No-op for
// games without a rivalry.
func (s *RivalryStatsService) RecomputeForGame(game *models.Game) error {
	if game.RivalryID == nil {
		return nil
	}

	var members []models.RivalryPlayer
	if err := s.DB.Where("rivalry_id = ?", *game.RivalryID).Find(&members).Error; err != nil {
		return err
	}

	games, err := s.finalizedHistory(*game.RivalryID, game.GameTypeID)
	if err != nil {
		return err
	}

	for _, member := range members {
		if err := s.recompute(*game.RivalryID, game.GameTypeID, member.PlayerID, games); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeAll sweeps every (rivalry, game type) pair. Used by the nightly
// consistency job; it is the same code path as the finalize trigger.
func (s *RivalryStatsService) RecomputeAll() error {
	var links []models.RivalryGameType
	if err := s.DB.Find(&links).Error; err != nil {
		return err
	}

	for _, link := range links {
		var members []models.RivalryPlayer
		if err := s.DB.Where("rivalry_id = ?", link.RivalryID).Find(&members).Error; err != nil {
			return err
		}
		games, err := s.finalizedHistory(link.RivalryID, link.GameTypeID)
		if err != nil {
			return err
		}
		for _, member := range members {
			if err := s.recompute(link.RivalryID, link.GameTypeID, member.PlayerID, games); err != nil {
				log.Printf("[Stats] recompute failed for rivalry %s player %s: %v", link.RivalryID, member.PlayerID, err)
			}
		}
	}
	return nil
}

// finalizedHistory loads the committed finalized games for a rivalry/game
// type in chronological order, scores included.
func (s *RivalryStatsService) finalizedHistory(rivalryID, gameTypeID string) ([]models.Game, error) {
	var games []models.Game
	err := s.DB.Preload("Scores").
		Where("rivalry_id = ? AND game_type_id = ? AND finalized = ?", rivalryID, gameTypeID, true).
		Order("started_at ASC").
		Find(&games).Error
	return games, err
}

func (s *RivalryStatsService) recompute(rivalryID, gameTypeID, playerID string, games []models.Game) error {
	var (
		total      int
		wins       int
		losses     int
		winMargins []int
		lossMargin []int
		results    []byte
	)

	for _, game := range games {
		playerScore, ok := scoreOf(game.Scores, playerID)
		if !ok {
			continue
		}
		total++

		if game.WinnerID == nil {
			// Finalized without an outcome: counts toward the history but
			// contributes neither a W nor an L.
			continue
		}

		if *game.WinnerID == playerID {
			wins++
			winMargins = append(winMargins, winMargin(&game, playerID, playerScore))
			results = append(results, 'W')
		} else {
			losses++
			if winnerScore, ok := scoreOf(game.Scores, *game.WinnerID); ok {
				lossMargin = append(lossMargin, absDiff(winnerScore, playerScore))
			}
			results = append(results, 'L')
		}
	}

	if len(results) > 10 {
		results = results[len(results)-10:]
	}

	stats := models.RivalryPlayerStats{
		RivalryID:     rivalryID,
		PlayerID:      playerID,
		GameTypeID:    gameTypeID,
		TotalGames:    total,
		Wins:          wins,
		Losses:        losses,
		Last10Results: string(results),
	}
	stats.MinWinMargin, stats.MaxWinMargin = marginExtremes(winMargins, total)
	stats.MinLossMargin, stats.MaxLossMargin = marginExtremes(lossMargin, total)

	return s.upsert(&stats)
}

// upsert writes the single stats row for (rivalry, player, game type),
// creating it on first finalization.
func (s *RivalryStatsService) upsert(stats *models.RivalryPlayerStats) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.RivalryPlayerStats
		err := tx.Where("rivalry_id = ? AND player_id = ? AND game_type_id = ?",
			stats.RivalryID, stats.PlayerID, stats.GameTypeID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats.ID = uuid.NewString()
			return tx.Create(stats).Error
		}
		if err != nil {
			return err
		}

		stats.ID = existing.ID
		return tx.Model(&existing).Select(
			"total_games", "wins", "losses",
			"min_win_margin", "max_win_margin",
			"min_loss_margin", "max_loss_margin",
			"last10_results", "updated_at",
		).Updates(map[string]any{
			"total_games":     stats.TotalGames,
			"wins":            stats.Wins,
			"losses":          stats.Losses,
			"min_win_margin":  stats.MinWinMargin,
			"max_win_margin":  stats.MaxWinMargin,
			"min_loss_margin": stats.MinLossMargin,
			"max_loss_margin": stats.MaxLossMargin,
			"last10_results":  stats.Last10Results,
		}).Error
	})
}

// winMargin is the gap between the winner and the closest opponent in the
// winning direction, 0 when the winner had no opponents with scores.
func winMargin(game *models.Game, winnerID string, winnerScore int) int {
	best := 0
	found := false
	for _, sc := range game.Scores {
		if sc.PlayerID == winnerID {
			continue
		}
		if !found {
			best = sc.Score
			found = true
			continue
		}
		if game.ConditionKind == models.ConditionFallBelowFloor {
			if sc.Score < best {
				best = sc.Score
			}
		} else if sc.Score > best {
			best = sc.Score
		}
	}
	if !found {
		return 0
	}
	return absDiff(winnerScore, best)
}

func marginExtremes(margins []int, totalGames int) (*int, *int) {
	if len(margins) == 0 {
		if totalGames == 0 {
			return nil, nil
		}
		zero := 0
		z2 := 0
		return &zero, &z2
	}
	min, max := margins[0], margins[0]
	for _, m := range margins[1:] {
		if m < min {
			min = m
		}
		if m > max {
			max = m
		}
	}
	return &min, &max
}

func scoreOf(scores []models.PlayerGameScore, playerID string) (int, bool) {
	for _, sc := range scores {
		if sc.PlayerID == playerID {
			return sc.Score, true
		}
	}
	return 0, false
}

func absDiff(a, b int) int {
	if a < b {
		return b - a
	}
	return a - b
}

// services/scheduler.go
package services

import (
	"log"
	"os"
	"strconv"
	"time"

	"score-sync-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartSweepScheduler runs the background consistency jobs: a nightly full
// rivalry-stats recompute (the same code path as the finalize trigger) and
// an hourly pass stamping ended_at on long-idle unfinalized games. Games
// are never finalized automatically.
func (s *GameService) StartSweepScheduler() {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Scheduler] failed to start: %v", err)
		return
	}
	sched.Start()

	staleAfter := 72 * time.Hour
	if raw := os.Getenv("STALE_GAME_HOURS"); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			staleAfter = time.Duration(hours) * time.Hour
		}
	}

	// Nightly: recompute every rivalry's stats from scratch.
	_, _ = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			if err := s.Stats.RecomputeAll(); err != nil {
				log.Printf("[Scheduler] stats sweep failed: %v", err)
				return
			}
			log.Println("[Scheduler] rivalry stats sweep complete")
		}),
	)

	// Hourly: mark abandoned games as ended.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().Add(-staleAfter)
			var games []models.Game
			err := s.DB.Where("finalized = ? AND ended_at IS NULL AND updated_at < ?", false, cutoff).
				Find(&games).Error
			if err != nil {
				log.Printf("[Scheduler] stale-game query failed: %v", err)
				return
			}
			for _, g := range games {
				now := time.Now().UTC()
				if err := s.DB.Model(&g).Update("ended_at", &now).Error; err != nil {
					log.Printf("[Scheduler] failed to end stale game %s: %v", g.ID, err)
				} else {
					log.Printf("[Scheduler] marked stale game %s as ended", g.ID)
				}
			}
		}),
	)
}

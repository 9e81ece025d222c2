package workers

import (
	"context"
	"log"
	"time"

	"score-sync-system/models"
	"score-sync-system/services"
	"score-sync-system/utils"

	"gorm.io/gorm"
)

// SnapshotWorker periodically exports every environment to the R2 bucket.
type SnapshotWorker struct {
	DB        *gorm.DB
	Snapshots *services.SnapshotService
}

func NewSnapshotWorker(db *gorm.DB, snapshots *services.SnapshotService) *SnapshotWorker {
	return &SnapshotWorker{DB: db, Snapshots: snapshots}
}

// PollSnapshots exports all environments on a fixed interval until the
// context is canceled. A failed export is logged and skipped; the next
// tick retries everything.
func PollSnapshots(ctx context.Context, w *SnapshotWorker, interval time.Duration) {
	if !utils.R2Enabled() {
		log.Println("[Snapshots] R2 not configured, snapshot worker disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Snapshots] worker stopping")
			return
		case <-ticker.C:
			w.exportAll(ctx)
		}
	}
}

func (w *SnapshotWorker) exportAll(ctx context.Context) {
	var environments []models.Environment
	if err := w.DB.Find(&environments).Error; err != nil {
		log.Printf("[Snapshots] listing environments failed: %v", err)
		return
	}

	for _, env := range environments {
		url, err := w.Snapshots.Export(ctx, env.ID)
		if err != nil {
			log.Printf("[Snapshots] export failed for %s: %v", env.ID, err)
			continue
		}
		log.Printf("[Snapshots] exported %s -> %s", env.Name, url)
	}
}

// services/snapshot_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"score-sync-system/models"
	"score-sync-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// SnapshotService serializes an environment's full state and ships it to
// the R2 bucket, both on a schedule and on demand.
type SnapshotService struct {
	DB *gorm.DB
}

func NewSnapshotService(db *gorm.DB) *SnapshotService {
	return &SnapshotService{DB: db}
}

type EnvironmentSnapshot struct {
	Environment models.Environment          `json:"environment"`
	Games       []models.Game               `json:"games"`
	Rivalries   []models.Rivalry            `json:"rivalries"`
	Stats       []models.RivalryPlayerStats `json:"stats"`
	ExportedAt  time.Time                   `json:"exported_at"`
}

// Build assembles the snapshot from committed state.
func (s *SnapshotService) Build(environmentID string) (*EnvironmentSnapshot, error) {
	var env models.Environment
	err := s.DB.Preload("Players").First(&env, "id = ?", environmentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("environment", environmentID)
	}
	if err != nil {
		return nil, err
	}

	snapshot := &EnvironmentSnapshot{
		Environment: env,
		ExportedAt:  time.Now().UTC(),
	}

	if err := s.DB.Preload("Scores").Where("environment_id = ?", environmentID).
		Order("started_at").Find(&snapshot.Games).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Preload("Players").Preload("GameTypes").
		Where("environment_id = ?", environmentID).
		Find(&snapshot.Rivalries).Error; err != nil {
		return nil, err
	}

	rivalryIDs := make([]string, 0, len(snapshot.Rivalries))
	for _, r := range snapshot.Rivalries {
		rivalryIDs = append(rivalryIDs, r.ID)
	}
	if len(rivalryIDs) > 0 {
		if err := s.DB.Where("rivalry_id IN ?", rivalryIDs).
			Find(&snapshot.Stats).Error; err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

// Export uploads the snapshot and returns the object URL. The key embeds a
// slug of the environment name so buckets stay browsable.
func (s *SnapshotService) Export(ctx context.Context, environmentID string) (string, error) {
	snapshot, err := s.Build(environmentID)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("snapshots/%s/%s.json",
		slug.Make(snapshot.Environment.Name),
		snapshot.ExportedAt.Format("20060102T150405Z"),
	)
	return utils.UploadBytesToR2(ctx, payload, key, "application/json")
}

// ExportEnvironment handles POST /environments/:env/export.
func (s *SnapshotService) ExportEnvironment(c *fiber.Ctx) error {
	env := c.Locals("environment").(*models.Environment)

	if !utils.R2Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "snapshot export is not configured"})
	}

	url, err := s.Export(c.Context(), env.ID)
	if err != nil {
		return RespondError(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

package services

import (
	"fmt"
	"strings"
	"testing"

	"score-sync-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database, migrated with the
// full schema. One connection keeps transactions serialized the same way
// a single postgres row lock would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Environment{},
		&models.Player{},
		&models.GameTypeDefinition{},
		&models.GameTypeFavorite{},
		&models.Game{},
		&models.PlayerGameScore{},
		&models.Rivalry{},
		&models.RivalryPlayer{},
		&models.RivalryGameType{},
		&models.RivalryPlayerStats{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestStack wires the full service graph on a fresh database.
func newTestStack(t *testing.T) (*gorm.DB, *BroadcastHub, *EnvironmentService, *GameTypeService, *GameService, *ScoreService, *RivalryStatsService) {
	t.Helper()
	db := newTestDB(t)
	hub := NewBroadcastHub()
	envService := NewEnvironmentService(db)
	gameTypeService := NewGameTypeService(db)
	rivalryService := NewRivalryService(db)
	statsService := NewRivalryStatsService(db)
	gameService := NewGameService(db, hub, rivalryService, statsService)
	scoreService := NewScoreService(db, hub)
	return db, hub, envService, gameTypeService, gameService, scoreService, statsService
}

func mustEnvironment(t *testing.T, s *EnvironmentService, name string) *models.Environment {
	t.Helper()
	env, err := s.CreateEnvironment(name)
	if err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	return env
}

func mustPlayer(t *testing.T, s *EnvironmentService, envID, name string) *models.Player {
	t.Helper()
	player, err := s.CreatePlayer(envID, name)
	if err != nil {
		t.Fatalf("CreatePlayer(%s): %v", name, err)
	}
	return player
}

func mustGameType(t *testing.T, s *GameTypeService, name, kind string, threshold int) *models.GameTypeDefinition {
	t.Helper()
	gameType, err := s.CreateGameType(name, "", kind, threshold)
	if err != nil {
		t.Fatalf("CreateGameType(%s): %v", name, err)
	}
	return gameType
}

func mustGame(t *testing.T, s *GameService, envID string, req CreateGameRequest) *models.Game {
	t.Helper()
	game, err := s.CreateGame(envID, req)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	return game
}

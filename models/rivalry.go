// models/rivalry.go
package models

import (
	"time"
)

// Rivalry is the stable identity for an exact, order-independent set of
// players within one environment. PlayerSetKey is the sorted, deduplicated
// player-id list joined with "|"; the unique index on it is what makes
// concurrent find-or-create race-safe.
type Rivalry struct {
	ID            string `json:"id" gorm:"primaryKey"`
	EnvironmentID string `json:"environment_id" gorm:"not null;uniqueIndex:idx_env_player_set"`
	PlayerSetKey  string `json:"-" gorm:"not null;uniqueIndex:idx_env_player_set"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Players   []RivalryPlayer   `json:"players,omitempty" gorm:"foreignKey:RivalryID"`
	GameTypes []RivalryGameType `json:"game_types,omitempty" gorm:"foreignKey:RivalryID"`
}

type RivalryPlayer struct {
	ID        string `json:"id" gorm:"primaryKey"`
	RivalryID string `json:"rivalry_id" gorm:"not null;uniqueIndex:idx_rivalry_player"`
	PlayerID  string `json:"player_id" gorm:"not null;uniqueIndex:idx_rivalry_player"`

	Player Player `json:"player,omitempty" gorm:"foreignKey:PlayerID"`
}

// RivalryGameType links a rivalry to a game type it has been played under.
type RivalryGameType struct {
	ID         string `json:"id" gorm:"primaryKey"`
	RivalryID  string `json:"rivalry_id" gorm:"not null;uniqueIndex:idx_rivalry_game_type"`
	GameTypeID string `json:"game_type_id" gorm:"not null;uniqueIndex:idx_rivalry_game_type"`

	GameType GameTypeDefinition `json:"game_type,omitempty" gorm:"foreignKey:GameTypeID"`
}

// RivalryPlayerStats is the aggregated record per (rivalry, player, game
// type). It is recomputed from the full finalized-game history whenever a
// game under the rivalry finalizes — never patched incrementally.
type RivalryPlayerStats struct {
	ID         string `json:"id" gorm:"primaryKey"`
	RivalryID  string `json:"rivalry_id" gorm:"not null;uniqueIndex:idx_rivalry_player_type"`
	PlayerID   string `json:"player_id" gorm:"not null;uniqueIndex:idx_rivalry_player_type"`
	GameTypeID string `json:"game_type_id" gorm:"not null;uniqueIndex:idx_rivalry_player_type"`

	TotalGames int `json:"total_games" gorm:"default:0"`
	Wins       int `json:"wins" gorm:"default:0"`
	Losses     int `json:"losses" gorm:"default:0"`

	// Margin extremes are nil only while the player has zero finalized
	// games under this rivalry/game type.
	MinWinMargin  *int `json:"min_win_margin"`
	MaxWinMargin  *int `json:"max_win_margin"`
	MinLossMargin *int `json:"min_loss_margin"`
	MaxLossMargin *int `json:"max_loss_margin"`

	// Last10Results holds 'W'/'L' outcomes chronologically, most recent
	// last, capped at 10 characters.
	Last10Results string `json:"last_10_results" gorm:"size:10"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// models/game.go
package models

import (
	"time"
)

// Game is one scored session within an environment. At most one
// non-finalized game exists per environment at any time; starting a new
// game deletes the prior unfinalized one together with its score rows.
type Game struct {
	ID            string `json:"id" gorm:"primaryKey"`
	EnvironmentID string `json:"environment_id" gorm:"not null;index"`
	GameTypeID    string `json:"game_type_id" gorm:"not null;index"`

	// Win condition, defaulted from the game type and overridable per game.
	ConditionKind  string `json:"condition_kind" gorm:"not null"`
	ConditionValue int    `json:"condition_value" gorm:"not null"`

	StartedAt time.Time  `json:"started_at" gorm:"not null"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Finalized is monotonic: once true it never reverts.
	Finalized bool    `json:"finalized" gorm:"default:false"`
	WinnerID  *string `json:"winner_id,omitempty"`
	RivalryID *string `json:"rivalry_id,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	GameType GameTypeDefinition `json:"game_type,omitempty" gorm:"foreignKey:GameTypeID"`
	Scores   []PlayerGameScore  `json:"scores,omitempty" gorm:"foreignKey:GameID"`
}

// PlayerGameScore holds one player's running score in one game. Created at
// zero when the game starts; mutable only while the game is not finalized;
// destroyed only by game deletion.
type PlayerGameScore struct {
	ID       string `json:"id" gorm:"primaryKey"`
	GameID   string `json:"game_id" gorm:"not null;uniqueIndex:idx_game_player"`
	PlayerID string `json:"player_id" gorm:"not null;uniqueIndex:idx_game_player"`

	Score int `json:"score" gorm:"default:0"`

	// SortOrder is the 1-based display position, nil until the caller sets
	// an explicit player order.
	SortOrder *int `json:"sort_order,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Player Player `json:"player,omitempty" gorm:"foreignKey:PlayerID"`
}

// models/environment.go
package models

import (
	"time"
)

// Environment is the isolation boundary for players, games and rivalries.
// Its ID doubles as the opaque access token clients share to join a board.
type Environment struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`

	Players []Player `json:"players,omitempty" gorm:"foreignKey:EnvironmentID"`
}

// PlayerColorPalette is the fixed set of display colors handed out
// round-robin when players are created. Colors repeat only once every
// palette entry is in use within the environment.
var PlayerColorPalette = []string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#46f0f0", // cyan
	"#f032e6", // magenta
	"#bcf60c", // lime
	"#fabebe", // pink
	"#008080", // teal
}

type Player struct {
	ID            string `json:"id" gorm:"primaryKey"`
	EnvironmentID string `json:"environment_id" gorm:"not null;uniqueIndex:idx_env_player_name"`
	Name          string `json:"name" gorm:"not null"`

	// NormalizedName is the unidecoded, lower-cased form used to enforce
	// case-insensitive uniqueness per environment.
	NormalizedName string `json:"-" gorm:"uniqueIndex:idx_env_player_name"`
	Color          string `json:"color"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

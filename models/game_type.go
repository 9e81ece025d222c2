// models/game_type.go
package models

import (
	"time"
)

const (
	ConditionReachTarget    = "reach-target"     // highest qualifying score wins once >= threshold
	ConditionFallBelowFloor = "fall-below-floor" // lowest qualifying score wins once <= threshold
)

// GameTypeDefinition is a shared catalog entry, global across environments.
type GameTypeDefinition struct {
	ID               string `json:"id" gorm:"primaryKey"`
	Name             string `json:"name" gorm:"uniqueIndex;not null"`
	Description      string `json:"description"`
	ConditionKind    string `json:"condition_kind" gorm:"not null"`
	DefaultThreshold int    `json:"default_threshold" gorm:"not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// GameTypeFavorite marks a catalog entry as favorited within one environment.
type GameTypeFavorite struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	EnvironmentID string    `json:"environment_id" gorm:"not null;uniqueIndex:idx_env_fav_type"`
	GameTypeID    string    `json:"game_type_id" gorm:"not null;uniqueIndex:idx_env_fav_type"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

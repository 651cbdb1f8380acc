package models

import (
	"time"

	"github.com/google/uuid"
)

// WatchEvent is one append-only entry in a user's watch log.
type WatchEvent struct {
	LogID     uuid.UUID `json:"log_id"`
	UserID    uuid.UUID `json:"user_id" validate:"required"`
	MovieID   int64     `json:"movie_id" validate:"required,gt=0"`
	Genres    []string  `json:"genres,omitempty"`
	Mood      string    `json:"mood,omitempty"`
	Source    string    `json:"source" validate:"omitempty,oneof=organic recommendation"`
	WatchedAt time.Time `json:"watched_at"`
}

// GenreAffinity is a normalized genre-frequency vector built from a user's
// watch log. Weights sum to 1 when the log is non-empty.
type GenreAffinity struct {
	UserID    uuid.UUID          `json:"user_id"`
	Weights   map[string]float64 `json:"weights"`
	TopGenres []string           `json:"top_genres"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Badge is a threshold rule over a watch-log counter.
type Badge struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Tier          string `json:"tier"` // bronze, silver, gold
	Description   string `json:"description,omitempty"`
	Threshold     int    `json:"threshold"`
	TrackingField string `json:"tracking_field"` // movies_watched, genres_explored, moods_used
}

// BadgeProgress pairs a badge with a user's current counter value.
type BadgeProgress struct {
	Badge    Badge   `json:"badge"`
	Current  int     `json:"current"`
	Progress float64 `json:"progress"` // clamped to [0, 1]
	Earned   bool    `json:"earned"`
}

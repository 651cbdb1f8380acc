package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/pkg/models"
)

// WatchStore interface for watch-log database operations
type WatchStore interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// WatchHistoryService owns the append-only watch log and the genre-affinity
// vectors derived from it. Entries are only ever added, never rewritten.
type WatchHistoryService struct {
	db       WatchStore
	redis    *redis.Client // warm cache
	config   *config.RecommendationConfig
	logger   *logrus.Logger
	validate *validator.Validate
}

const affinityCachePrefix = "affinity:"

// Counter names badges track against.
const (
	CounterMoviesWatched  = "movies_watched"
	CounterGenresExplored = "genres_explored"
	CounterMoodsUsed      = "moods_used"
)

func NewWatchHistoryService(
	db WatchStore,
	redis *redis.Client,
	config *config.RecommendationConfig,
	logger *logrus.Logger,
) *WatchHistoryService {
	return &WatchHistoryService{
		db:       db,
		redis:    redis,
		config:   config,
		logger:   logger,
		validate: validator.New(),
	}
}

// Record appends one watch event to the log. Missing log IDs and timestamps
// are filled in; the affinity cache for the user is invalidated.
func (s *WatchHistoryService) Record(ctx context.Context, event *models.WatchEvent) error {
	if event.LogID == uuid.Nil {
		event.LogID = uuid.New()
	}
	if event.WatchedAt.IsZero() {
		event.WatchedAt = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = "organic"
	}

	if err := s.validate.Struct(event); err != nil {
		return fmt.Errorf("invalid watch event: %w", err)
	}

	query := `
		INSERT INTO watch_history (log_id, user_id, movie_id, genres, mood, source, watched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, query,
		event.LogID, event.UserID, event.MovieID, event.Genres, event.Mood, event.Source, event.WatchedAt)
	if err != nil {
		return fmt.Errorf("failed to record watch event: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Del(ctx, affinityCachePrefix+event.UserID.String()).Err(); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate affinity cache")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  event.UserID,
		"movie_id": event.MovieID,
		"source":   event.Source,
	}).Debug("Watch event recorded")

	return nil
}

// History returns a user's watch log, oldest first.
func (s *WatchHistoryService) History(ctx context.Context, userID uuid.UUID) ([]models.WatchEvent, error) {
	query := `
		SELECT log_id, movie_id, genres, mood, source, watched_at
		FROM watch_history
		WHERE user_id = $1
		ORDER BY watched_at, log_id`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("watch history query failed: %w", err)
	}
	defer rows.Close()

	var events []models.WatchEvent
	for rows.Next() {
		event := models.WatchEvent{UserID: userID}
		if err := rows.Scan(&event.LogID, &event.MovieID, &event.Genres, &event.Mood, &event.Source, &event.WatchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watch event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("watch history iteration failed: %w", err)
	}

	return events, nil
}

// Affinity computes the user's normalized genre-frequency vector from the
// watch log. Weights sum to 1 for a non-empty log; top genres are ordered by
// weight descending with alphabetical tie-break for determinism.
func (s *WatchHistoryService) Affinity(ctx context.Context, userID uuid.UUID) (*models.GenreAffinity, error) {
	cacheKey := affinityCachePrefix + userID.String()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var affinity models.GenreAffinity
			if err := json.Unmarshal([]byte(cached), &affinity); err == nil {
				return &affinity, nil
			}
		}
	}

	events, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	total := 0
	for _, event := range events {
		for _, genre := range event.Genres {
			counts[genre]++
			total++
		}
	}

	weights := make(map[string]float64, len(counts))
	for genre, count := range counts {
		weights[genre] = float64(count) / float64(total)
	}

	affinity := &models.GenreAffinity{
		UserID:    userID,
		Weights:   weights,
		TopGenres: topGenres(weights, 3),
		UpdatedAt: time.Now().UTC(),
	}

	if s.redis != nil {
		if data, err := json.Marshal(affinity); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, s.config.Caching.AffinityTTL).Err(); err != nil {
				s.logger.WithError(err).Warn("Failed to cache genre affinity")
			}
		}
	}

	return affinity, nil
}

// Counters aggregates the watch log into the counters the badge rules
// track: movies watched, distinct genres explored, distinct moods used.
func (s *WatchHistoryService) Counters(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	events, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	genres := make(map[string]bool)
	moods := make(map[string]bool)
	for _, event := range events {
		for _, genre := range event.Genres {
			genres[genre] = true
		}
		if event.Mood != "" {
			moods[event.Mood] = true
		}
	}

	return map[string]int{
		CounterMoviesWatched:  len(events),
		CounterGenresExplored: len(genres),
		CounterMoodsUsed:      len(moods),
	}, nil
}

func topGenres(weights map[string]float64, limit int) []string {
	genres := make([]string, 0, len(weights))
	for genre := range weights {
		genres = append(genres, genre)
	}

	sort.Slice(genres, func(i, j int) bool {
		if weights[genres[i]] != weights[genres[j]] {
			return weights[genres[i]] > weights[genres[j]]
		}
		return genres[i] < genres[j]
	})

	if len(genres) > limit {
		genres = genres[:limit]
	}
	return genres
}

package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviepulse/kino/pkg/models"
)

const testBadgesJSON = `{
	"badges": [
		{"id": "cinephile", "name": "Cinephile", "tier": "gold", "description": "Watch 50 movies", "threshold": 50, "tracking_field": "movies_watched"},
		{"id": "explorer", "name": "Genre Explorer", "tier": "silver", "description": "Explore 8 genres", "threshold": 8, "tracking_field": "genres_explored"},
		{"id": "first-steps", "name": "First Steps", "tier": "bronze", "description": "Watch 5 movies", "threshold": 5, "tracking_field": "movies_watched"},
		{"id": "mood-surfer", "name": "Mood Surfer", "tier": "bronze", "description": "Use 3 moods", "threshold": 3, "tracking_field": "moods_used"}
	]
}`

func writeBadgesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "badges.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBadgeService_DefinitionsOrder(t *testing.T) {
	svc, err := NewBadgeService(writeBadgesFile(t, testBadgesJSON), nil, testLogger())
	require.NoError(t, err)

	var ids []string
	for _, badge := range svc.Definitions() {
		ids = append(ids, badge.ID)
	}

	// Tier order gold, silver, bronze; id within a tier.
	assert.Equal(t, []string{"cinephile", "explorer", "first-steps", "mood-surfer"}, ids)
}

func TestBadgeService_SkipsInvalidDefinitions(t *testing.T) {
	badges := `{
		"badges": [
			{"id": "valid", "name": "Valid", "tier": "bronze", "threshold": 5, "tracking_field": "movies_watched"},
			{"id": "", "name": "No ID", "tier": "bronze", "threshold": 5, "tracking_field": "movies_watched"},
			{"id": "bad-threshold", "name": "Bad", "tier": "bronze", "threshold": 0, "tracking_field": "movies_watched"},
			{"id": "bad-field", "name": "Bad", "tier": "bronze", "threshold": 5, "tracking_field": "minutes_streamed"}
		]
	}`

	svc, err := NewBadgeService(writeBadgesFile(t, badges), nil, testLogger())
	require.NoError(t, err)

	require.Len(t, svc.Definitions(), 1)
	assert.Equal(t, "valid", svc.Definitions()[0].ID)
}

func TestBadgeService_RejectsMalformedFile(t *testing.T) {
	_, err := NewBadgeService(writeBadgesFile(t, `{"not_badges": []}`), nil, testLogger())
	assert.Error(t, err)

	_, err = NewBadgeService(filepath.Join(t.TempDir(), "missing.json"), nil, testLogger())
	assert.Error(t, err)
}

func TestBadgeService_Progress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	watch := NewWatchHistoryService(mock, nil, testRecConfig(), testLogger())
	svc, err := NewBadgeService(writeBadgesFile(t, testBadgesJSON), watch, testLogger())
	require.NoError(t, err)

	userID := uuid.New()
	now := time.Now().UTC()
	rows := watchRows(
		models.WatchEvent{LogID: uuid.New(), MovieID: 1, Genres: []string{"Sci-Fi"}, Mood: "cosmic", Source: "organic", WatchedAt: now},
		models.WatchEvent{LogID: uuid.New(), MovieID: 2, Genres: []string{"Drama"}, Mood: "tense", Source: "organic", WatchedAt: now},
		models.WatchEvent{LogID: uuid.New(), MovieID: 3, Genres: []string{"Comedy"}, Mood: "uplifting", Source: "organic", WatchedAt: now},
		models.WatchEvent{LogID: uuid.New(), MovieID: 4, Genres: []string{"Horror"}, Source: "organic", WatchedAt: now},
		models.WatchEvent{LogID: uuid.New(), MovieID: 5, Genres: []string{"Action"}, Source: "organic", WatchedAt: now},
	)
	mock.ExpectQuery("SELECT log_id, movie_id, genres, mood, source, watched_at").
		WithArgs(userID).
		WillReturnRows(rows)

	progress, err := svc.Progress(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, progress, 4)

	byID := make(map[string]models.BadgeProgress, len(progress))
	for _, p := range progress {
		byID[p.Badge.ID] = p
	}

	// 5 movies watched: bronze earned, gold at 10%.
	assert.True(t, byID["first-steps"].Earned)
	assert.InDelta(t, 1.0, byID["first-steps"].Progress, 1e-9)

	assert.False(t, byID["cinephile"].Earned)
	assert.Equal(t, 5, byID["cinephile"].Current)
	assert.InDelta(t, 0.1, byID["cinephile"].Progress, 1e-9)

	// 5 distinct genres of 8.
	assert.False(t, byID["explorer"].Earned)
	assert.InDelta(t, 0.625, byID["explorer"].Progress, 1e-9)

	// 3 distinct moods hits the threshold exactly.
	assert.True(t, byID["mood-surfer"].Earned)
}

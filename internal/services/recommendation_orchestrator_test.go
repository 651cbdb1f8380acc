package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/pkg/models"
)

func testOrchestrator(t *testing.T) *RecommendationOrchestrator {
	t.Helper()

	cfg := testRecConfig()
	logger := testLogger()

	cat := catalog.NewStatic([]*models.Movie{
		{ID: 101, Title: "Inception", Genres: []string{"Sci-Fi", "Thriller"}},
		{ID: 102, Title: "Interstellar", Genres: []string{"Sci-Fi", "Drama"}},
		{ID: 103, Title: "Tenet", Genres: []string{"Sci-Fi", "Action"}},
		{ID: 104, Title: "Heat", Genres: []string{"Crime", "Thriller"}},
		{ID: 105, Title: "Collateral", Genres: []string{"Crime", "Thriller"}},
		{ID: 199, Title: "Unindexed", Genres: []string{"Thriller"}},
	}, logger)

	store := loadEmbeddings(t, 3, `{
		"101": [1, 0, 0],
		"102": [0.9, 0.1, 0],
		"103": [0.8, 0.2, 0],
		"104": [0, 1, 0],
		"105": [0, 0.9, 0.1]
	}`)

	tables := loadTables(t,
		`{"Sci-Fi": [102, 103], "Thriller": [101, 104, 105, 199], "Crime": [104, 105]}`,
		`{"tense": ["Thriller", "Crime"], "cosmic": ["Sci-Fi"]}`,
	)

	return NewRecommendationOrchestrator(
		NewSimilaritySearchService(store, cfg, logger),
		NewRuleBasedFallbackService(tables, logger),
		NewHybridMerger(cfg, logger),
		NewExplanationService(logger),
		nil,
		cat,
		nil,
		cfg,
		nil,
		logger,
	)
}

func TestRecommendationOrchestrator_SimilarBlended(t *testing.T) {
	orchestrator := testOrchestrator(t)

	resp, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{
		MovieID: 101,
		Count:   4,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, resp.Status)
	assert.Equal(t, models.SourceBlended, resp.Source)
	assert.Len(t, resp.Recommendations, 4)

	// Semantic neighbors rank first, then genre-table candidates.
	assert.Equal(t, int64(102), resp.Recommendations[0].MovieID)
	assert.Equal(t, models.SourceSemantic, resp.Recommendations[0].Source)
	assert.Equal(t, int64(103), resp.Recommendations[1].MovieID)

	for i, rec := range resp.Recommendations {
		assert.Equal(t, i+1, rec.Position)
		assert.NotEqual(t, int64(101), rec.MovieID, "query movie must never recommend itself")
		require.NotNil(t, rec.Movie)
	}
}

func TestRecommendationOrchestrator_UnknownMovie(t *testing.T) {
	orchestrator := testOrchestrator(t)

	_, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{MovieID: 999})
	assert.ErrorIs(t, err, ErrUnknownMovie)
}

func TestRecommendationOrchestrator_MissingEmbeddingFallsBack(t *testing.T) {
	orchestrator := testOrchestrator(t)

	// Movie 199 is in the catalog and the genre tables but has no vector.
	resp, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{
		MovieID: 199,
		Count:   3,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SourceFallback, resp.Source)
	for _, rec := range resp.Recommendations {
		assert.Equal(t, models.SourceFallback, rec.Source)
		assert.Equal(t, float64(0), rec.Score)
		assert.NotEqual(t, int64(199), rec.MovieID)
	}
}

func TestRecommendationOrchestrator_MoodBrowse(t *testing.T) {
	orchestrator := testOrchestrator(t)

	resp, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{
		Mood:  "tense",
		Count: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, models.SourceFallback, resp.Source)
	// First-appearance order over the mood's genre sequence.
	assert.Equal(t, int64(101), resp.Recommendations[0].MovieID)
	assert.Equal(t, int64(104), resp.Recommendations[1].MovieID)
	assert.Equal(t, int64(105), resp.Recommendations[2].MovieID)
}

func TestRecommendationOrchestrator_UnknownMoodIsEmpty(t *testing.T) {
	orchestrator := testOrchestrator(t)

	resp, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{
		Mood:  "nonexistent",
		Count: 5,
	})
	require.NoError(t, err)

	assert.Empty(t, resp.Recommendations)
	assert.Equal(t, models.StatusEmpty, resp.Status)
}

func TestRecommendationOrchestrator_EmptyRequestRejected(t *testing.T) {
	orchestrator := testOrchestrator(t)

	_, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRecommendationOrchestrator_CountNormalization(t *testing.T) {
	orchestrator := testOrchestrator(t)

	resp, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{Mood: "tense"})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.config.DefaultCount, resp.RequestedCount)

	resp, err = orchestrator.Recommend(context.Background(), &models.RecommendationRequest{
		Mood:  "tense",
		Count: orchestrator.config.MaxCount + 50,
	})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.config.MaxCount, resp.RequestedCount)
}

func TestRecommendationOrchestrator_Explanations(t *testing.T) {
	orchestrator := testOrchestrator(t)

	resp, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{
		MovieID: 101,
		Count:   4,
		Explain: true,
	})
	require.NoError(t, err)

	for _, rec := range resp.Recommendations {
		require.NotNil(t, rec.Explanation)
		if rec.Source == models.SourceSemantic {
			assert.Contains(t, *rec.Explanation, "Inception")
		}
	}
}

func TestRecommendationOrchestrator_Determinism(t *testing.T) {
	orchestrator := testOrchestrator(t)

	first, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{MovieID: 101, Count: 5})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		next, err := orchestrator.Recommend(context.Background(), &models.RecommendationRequest{MovieID: 101, Count: 5})
		require.NoError(t, err)
		require.Len(t, next.Recommendations, len(first.Recommendations))
		for j := range next.Recommendations {
			assert.Equal(t, first.Recommendations[j].MovieID, next.Recommendations[j].MovieID)
			assert.Equal(t, first.Recommendations[j].Score, next.Recommendations[j].Score)
		}
	}
}

package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/ml"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testRecConfig() *config.RecommendationConfig {
	return &config.RecommendationConfig{
		SimilarityThreshold: 0.30,
		SemanticWeight:      0.70,
		FallbackWeight:      0.30,
		MinSemanticResults:  2,
		DefaultCount:        10,
		MaxCount:            100,
	}
}

func loadEmbeddings(t *testing.T, dims int, content string) *ml.EmbeddingStore {
	t.Helper()
	store := ml.NewEmbeddingStore(dims, nil, 0, testLogger())
	path := filepath.Join(t.TempDir(), "embeddings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, store.LoadFile(path))
	return store
}

func TestSimilaritySearch_FindSimilar(t *testing.T) {
	// 2D vectors with known angles to the query (1, 0).
	store := loadEmbeddings(t, 2, `{
		"1": [1, 0],
		"2": [1, 0.1],
		"3": [0.8, 0.6],
		"4": [0, 1],
		"5": [-1, 0]
	}`)

	svc := NewSimilaritySearchService(store, testRecConfig(), testLogger())

	results, err := svc.FindSimilar(1, 10, 0.30)
	require.NoError(t, err)

	// Movie 4 (cos 0) and 5 (cos -1) are below threshold; the query movie is
	// excluded from its own results.
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].MovieID)
	assert.Equal(t, int64(3), results[1].MovieID)
	assert.Greater(t, results[0].Score, results[1].Score)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, -1.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSimilaritySearch_TieBreakByID(t *testing.T) {
	// Identical vectors score identically; ties resolve by ascending ID.
	store := loadEmbeddings(t, 2, `{
		"9": [1, 0],
		"30": [0, 1],
		"20": [0, 1],
		"10": [0, 1]
	}`)

	cfg := testRecConfig()
	cfg.MinSemanticResults = 1
	svc := NewSimilaritySearchService(store, cfg, testLogger())

	results, err := svc.Search([]float32{0, 1}, 9, 10, 0.30)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(10), results[0].MovieID)
	assert.Equal(t, int64(20), results[1].MovieID)
	assert.Equal(t, int64(30), results[2].MovieID)
}

func TestSimilaritySearch_MissingEmbedding(t *testing.T) {
	store := loadEmbeddings(t, 2, `{"1": [1, 0]}`)
	svc := NewSimilaritySearchService(store, testRecConfig(), testLogger())

	_, err := svc.FindSimilar(999, 10, 0.30)
	assert.ErrorIs(t, err, ErrMissingEmbedding)
}

func TestSimilaritySearch_InsufficientResults(t *testing.T) {
	store := loadEmbeddings(t, 2, `{
		"1": [1, 0],
		"2": [1, 0.05],
		"3": [-1, 0]
	}`)

	cfg := testRecConfig()
	cfg.MinSemanticResults = 3
	svc := NewSimilaritySearchService(store, cfg, testLogger())

	// Only movie 2 clears the threshold; the partial result comes back with
	// the sentinel so the caller can backfill.
	results, err := svc.FindSimilar(1, 10, 0.30)
	assert.ErrorIs(t, err, ErrInsufficientResults)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].MovieID)
}

func TestSimilaritySearch_ZeroVector(t *testing.T) {
	store := loadEmbeddings(t, 2, `{
		"1": [0, 0],
		"2": [1, 0],
		"3": [0, 1]
	}`)

	cfg := testRecConfig()
	cfg.MinSemanticResults = 0
	svc := NewSimilaritySearchService(store, cfg, testLogger())

	// A zero query vector scores 0 against everything: no division error,
	// nothing clears a positive threshold.
	results, err := svc.FindSimilar(1, 10, 0.30)
	require.NoError(t, err)
	assert.Empty(t, results)

	// With the threshold at 0 the zero-vector candidate is included at
	// exactly 0 when scored from a real query.
	results, err = svc.Search([]float32{1, 0}, 2, 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.MovieID == 1 {
			assert.Equal(t, 0.0, r.Score)
		}
		assert.GreaterOrEqual(t, r.Score, 0.0)
	}
}

func TestSimilaritySearch_TopKTruncation(t *testing.T) {
	store := loadEmbeddings(t, 2, `{
		"1": [1, 0],
		"2": [1, 0.1],
		"3": [1, 0.2],
		"4": [1, 0.3],
		"5": [1, 0.4]
	}`)

	svc := NewSimilaritySearchService(store, testRecConfig(), testLogger())

	results, err := svc.FindSimilar(1, 2, 0.30)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].MovieID)
}

func TestSimilaritySearch_Determinism(t *testing.T) {
	store := loadEmbeddings(t, 3, `{
		"1": [0.5, 0.5, 0.1],
		"2": [0.4, 0.6, 0.2],
		"3": [0.3, 0.7, 0.1],
		"4": [0.9, 0.1, 0.3]
	}`)

	svc := NewSimilaritySearchService(store, testRecConfig(), testLogger())

	first, err := svc.FindSimilar(1, 10, 0.30)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := svc.FindSimilar(1, 10, 0.30)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

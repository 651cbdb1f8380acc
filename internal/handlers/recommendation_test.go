package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/ml"
	"github.com/moviepulse/kino/internal/rules"
	"github.com/moviepulse/kino/internal/services"
	"github.com/moviepulse/kino/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := testLogger()
	cfg := &config.RecommendationConfig{
		SimilarityThreshold: 0.30,
		SemanticWeight:      0.70,
		FallbackWeight:      0.30,
		MinSemanticResults:  2,
		DefaultCount:        10,
		MaxCount:            100,
	}

	cat := catalog.NewStatic([]*models.Movie{
		{ID: 101, Title: "Inception", Genres: []string{"Sci-Fi", "Thriller"}},
		{ID: 102, Title: "Interstellar", Genres: []string{"Sci-Fi", "Drama"}},
		{ID: 103, Title: "Tenet", Genres: []string{"Sci-Fi", "Action"}},
		{ID: 104, Title: "Heat", Genres: []string{"Crime", "Thriller"}},
	}, logger)

	embeddingsFile := writeFile(t, "embeddings.json", `{
		"101": [1, 0],
		"102": [0.9, 0.1],
		"103": [0.8, 0.2],
		"104": [0, 1]
	}`)
	store := ml.NewEmbeddingStore(2, nil, 0, logger)
	require.NoError(t, store.LoadFile(embeddingsFile))

	genresFile := writeFile(t, "genres.json", `{"Sci-Fi": [102, 103], "Thriller": [101, 104], "Crime": [104]}`)
	moodsFile := writeFile(t, "moods.json", `{"tense": ["Thriller", "Crime"]}`)
	tables, err := rules.Load(genresFile, moodsFile, cat, logger)
	require.NoError(t, err)

	orchestrator := services.NewRecommendationOrchestrator(
		services.NewSimilaritySearchService(store, cfg, logger),
		services.NewRuleBasedFallbackService(tables, logger),
		services.NewHybridMerger(cfg, logger),
		services.NewExplanationService(logger),
		nil, cat, nil, cfg, nil, logger,
	)

	handler := NewRecommendationHandler(orchestrator, logger)

	router := gin.New()
	router.GET("/api/v1/recommendations/similar/:movieId", handler.GetSimilar)
	router.GET("/api/v1/recommendations/browse", handler.Browse)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestGetSimilar_OK(t *testing.T) {
	router := testRouter(t)

	w, body := doRequest(t, router, "/api/v1/recommendations/similar/101?count=3")
	assert.Equal(t, http.StatusOK, w.Code)

	recommendations := body["recommendations"].([]interface{})
	assert.Len(t, recommendations, 3)

	first := recommendations[0].(map[string]interface{})
	assert.Equal(t, float64(102), first["movie_id"])
	assert.Equal(t, "semantic", first["source"])
}

func TestGetSimilar_NotFound(t *testing.T) {
	router := testRouter(t)

	w, body := doRequest(t, router, "/api/v1/recommendations/similar/999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "MOVIE_NOT_FOUND", errBody["code"])
}

func TestGetSimilar_BadInput(t *testing.T) {
	tests := []struct {
		name string
		path string
		code string
	}{
		{"non-numeric id", "/api/v1/recommendations/similar/abc", "INVALID_MOVIE_ID"},
		{"negative id", "/api/v1/recommendations/similar/-5", "INVALID_MOVIE_ID"},
		{"threshold out of range", "/api/v1/recommendations/similar/101?threshold=2", "INVALID_THRESHOLD"},
	}

	router := testRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := doRequest(t, router, tt.path)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			errBody := body["error"].(map[string]interface{})
			assert.Equal(t, tt.code, errBody["code"])
		})
	}
}

func TestBrowse_ByMood(t *testing.T) {
	router := testRouter(t)

	w, body := doRequest(t, router, "/api/v1/recommendations/browse?mood=tense&count=2")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "fallback", body["source"])
	recommendations := body["recommendations"].([]interface{})
	assert.Len(t, recommendations, 2)
}

func TestBrowse_UnknownMoodIsEmpty(t *testing.T) {
	router := testRouter(t)

	w, body := doRequest(t, router, "/api/v1/recommendations/browse?mood=nonexistent")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "empty", body["status"])
}

func TestBrowse_MissingFilter(t *testing.T) {
	router := testRouter(t)

	w, body := doRequest(t, router, "/api/v1/recommendations/browse")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "MISSING_BROWSE_FILTER", errBody["code"])
}

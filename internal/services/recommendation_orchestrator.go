package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/pkg/models"
)

// ErrUnknownMovie is returned when a "similar to X" request names a movie
// the catalog does not know.
var ErrUnknownMovie = errors.New("unknown movie")

// ErrInvalidRequest is returned when a request names neither a movie nor a
// mood nor a genre.
var ErrInvalidRequest = errors.New("request must specify a movie, mood, or genre")

// RecommendationOrchestrator drives the scoring pipeline: similarity search,
// rule-based fallback, hybrid merge, optional affinity boost and
// explanations. Each request is an independent, bounded in-memory
// computation over immutable inputs; no locking is needed on the read path.
type RecommendationOrchestrator struct {
	similarity   *SimilaritySearchService
	fallback     *RuleBasedFallbackService
	merger       *HybridMerger
	explanations *ExplanationService
	watch        *WatchHistoryService
	catalog      *catalog.Catalog
	redis        *redis.Client // warm cache
	config       *config.RecommendationConfig
	metrics      *PipelineMetrics
	logger       *logrus.Logger
}

func NewRecommendationOrchestrator(
	similarity *SimilaritySearchService,
	fallback *RuleBasedFallbackService,
	merger *HybridMerger,
	explanations *ExplanationService,
	watch *WatchHistoryService,
	catalog *catalog.Catalog,
	redis *redis.Client,
	config *config.RecommendationConfig,
	metrics *PipelineMetrics,
	logger *logrus.Logger,
) *RecommendationOrchestrator {
	return &RecommendationOrchestrator{
		similarity:   similarity,
		fallback:     fallback,
		merger:       merger,
		explanations: explanations,
		watch:        watch,
		catalog:      catalog,
		redis:        redis,
		config:       config,
		metrics:      metrics,
		logger:       logger,
	}
}

// Recommend produces the final ranked list for a request. Recoverable
// scoring conditions (missing embedding, thin semantic results, unknown
// labels) are reflected in the response status, never surfaced as errors.
func (o *RecommendationOrchestrator) Recommend(
	ctx context.Context,
	req *models.RecommendationRequest,
) (*models.RecommendationResponse, error) {
	start := time.Now()

	o.normalizeRequest(req)

	if req.MovieID == 0 && req.Mood == "" && req.Genre == "" {
		return nil, ErrInvalidRequest
	}

	cacheKey := o.cacheKey(req)
	if cached := o.getCachedResponse(ctx, cacheKey); cached != nil {
		if o.metrics != nil {
			o.metrics.CacheHits.WithLabelValues("recommendations").Inc()
		}
		cached.CacheHit = true
		return cached, nil
	}

	var (
		blend *BlendResult
		ectx  = &ExplanationContext{Mood: req.Mood, Genre: req.Genre}
		err   error
	)

	if req.MovieID != 0 {
		blend, ectx.SourceMovie, err = o.recommendSimilar(req)
		if err != nil {
			return nil, err
		}
	} else {
		blend = o.recommendBrowse(req)
	}

	o.attachMovies(blend.Recommendations)

	if req.UserID != "" {
		o.applyAffinity(ctx, req.UserID, blend.Recommendations, ectx)
	}

	if req.Explain {
		o.explanations.Annotate(blend.Recommendations, ectx)
	}

	response := &models.RecommendationResponse{
		Recommendations: blend.Recommendations,
		Status:          blend.Status,
		Source:          blend.Source,
		RequestedCount:  req.Count,
		GeneratedAt:     time.Now().UTC(),
	}

	o.cacheResponse(ctx, cacheKey, response)

	if o.metrics != nil {
		o.metrics.RecommendationsTotal.WithLabelValues(string(response.Source), string(response.Status)).Inc()
		o.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}

	o.logger.WithFields(logrus.Fields{
		"movie_id": req.MovieID,
		"mood":     req.Mood,
		"genre":    req.Genre,
		"count":    len(response.Recommendations),
		"status":   response.Status,
		"latency":  time.Since(start),
	}).Info("Recommendations generated")

	return response, nil
}

// recommendSimilar handles "similar to X": semantic search first, rule-based
// candidates always computed so the merger can fill its fallback quota or
// backfill a semantic shortfall.
func (o *RecommendationOrchestrator) recommendSimilar(req *models.RecommendationRequest) (*BlendResult, *models.Movie, error) {
	movie, ok := o.catalog.Get(req.MovieID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnknownMovie, req.MovieID)
	}

	threshold := o.config.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	semantic, err := o.similarity.FindSimilar(req.MovieID, req.Count, threshold)
	switch {
	case errors.Is(err, ErrMissingEmbedding):
		// Recovered locally: the request routes entirely to fallback.
		semantic = nil
		if o.metrics != nil {
			o.metrics.FallbackActivations.Inc()
		}
	case errors.Is(err, ErrInsufficientResults):
		// Keep the partial list; the merger backfills from fallback.
		if o.metrics != nil {
			o.metrics.FallbackActivations.Inc()
		}
	case err != nil:
		return nil, nil, fmt.Errorf("similarity search failed: %w", err)
	}

	fallbackIDs := o.fallback.ForMovie(movie)
	return o.merger.Blend(semantic, fallbackIDs, req.Count), movie, nil
}

// recommendBrowse handles mood/genre catalog browsing. There is no query
// vector, so the result is fallback-only by construction; unknown labels
// come back as an empty, explicitly flagged response.
func (o *RecommendationOrchestrator) recommendBrowse(req *models.RecommendationRequest) *BlendResult {
	var candidates []int64
	if req.Mood != "" {
		candidates = o.fallback.ForMood(req.Mood)
	} else {
		candidates = o.fallback.ForGenre(req.Genre)
	}

	return o.merger.Blend(nil, candidates, req.Count)
}

func (o *RecommendationOrchestrator) normalizeRequest(req *models.RecommendationRequest) {
	if req.Count <= 0 {
		req.Count = o.config.DefaultCount
	}
	if req.Count > o.config.MaxCount {
		req.Count = o.config.MaxCount
	}
}

func (o *RecommendationOrchestrator) attachMovies(recommendations []models.Recommendation) {
	for i := range recommendations {
		if movie, ok := o.catalog.Get(recommendations[i].MovieID); ok {
			recommendations[i].Movie = movie
		}
	}
}

// applyAffinity boosts scores by the user's genre affinity (multiplier
// 1 + affinity mass of the movie's genres) and re-sorts. The sort is stable
// on descending score only, so the zero-scored fallback tail keeps its
// original relative order.
func (o *RecommendationOrchestrator) applyAffinity(
	ctx context.Context,
	userIDStr string,
	recommendations []models.Recommendation,
	ectx *ExplanationContext,
) {
	if o.watch == nil {
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		o.logger.WithField("user_id", userIDStr).Debug("Ignoring malformed user id")
		return
	}

	affinity, err := o.watch.Affinity(ctx, userID)
	if err != nil {
		o.logger.WithError(err).Warn("Genre affinity lookup failed, skipping boost")
		return
	}
	if len(affinity.Weights) == 0 {
		return
	}

	ectx.TopGenres = affinity.TopGenres

	boosted := false
	for i := range recommendations {
		if recommendations[i].Movie == nil {
			continue
		}
		var mass float64
		for _, genre := range recommendations[i].Movie.Genres {
			mass += affinity.Weights[genre]
		}
		if mass > 0 && recommendations[i].Score > 0 {
			recommendations[i].Score *= 1 + mass
			boosted = true
		}
	}

	if !boosted {
		return
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Score > recommendations[j].Score
	})
	for i := range recommendations {
		recommendations[i].Position = i + 1
	}
}

func (o *RecommendationOrchestrator) cacheKey(req *models.RecommendationRequest) string {
	threshold := o.config.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	return fmt.Sprintf("rec:%d:%s:%s:%s:%d:%g:%t",
		req.MovieID, req.Mood, req.Genre, req.UserID, req.Count, threshold, req.Explain)
}

func (o *RecommendationOrchestrator) getCachedResponse(ctx context.Context, key string) *models.RecommendationResponse {
	if o.redis == nil {
		return nil
	}

	cached, err := o.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var response models.RecommendationResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		return nil
	}
	return &response
}

func (o *RecommendationOrchestrator) cacheResponse(ctx context.Context, key string, response *models.RecommendationResponse) {
	if o.redis == nil {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := o.redis.Set(ctx, key, data, o.config.Caching.RecommendationsTTL).Err(); err != nil {
		o.logger.WithError(err).Warn("Failed to cache recommendations")
	}
}

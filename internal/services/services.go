package services

import (
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/database"
	"github.com/moviepulse/kino/internal/messaging"
	"github.com/moviepulse/kino/internal/ml"
	"github.com/moviepulse/kino/internal/rules"
)

type Services struct {
	Auth         *AuthService
	Health       *HealthService
	RateLimit    *RateLimitService
	MessageBus   *messaging.MessageBus
	Similarity   *SimilaritySearchService
	Fallback     *RuleBasedFallbackService
	Merger       *HybridMerger
	Explanation  *ExplanationService
	WatchHistory *WatchHistoryService
	Badges       *BadgeService
	Orchestrator *RecommendationOrchestrator
	Metrics      *PipelineMetrics
}

// New wires the service graph. The catalog, rule tables, and embedding
// snapshot are loaded by the caller before the services come up; everything
// here only holds references.
func New(
	cfg *config.Config,
	logger *logrus.Logger,
	db *database.Database,
	cat *catalog.Catalog,
	tables *rules.Tables,
	embeddings *ml.EmbeddingStore,
) (*Services, error) {
	authService := NewAuthService(cfg, logger, db.Redis.Hot)
	healthService := NewHealthService(cfg, logger, db)
	rateLimitService := NewRateLimitService(cfg, logger, db.Redis.Hot)

	messageBus, err := messaging.NewMessageBus(cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := NewPipelineMetrics(logger)

	similarity := NewSimilaritySearchService(embeddings, &cfg.Recommendation, logger)
	fallback := NewRuleBasedFallbackService(tables, logger)
	merger := NewHybridMerger(&cfg.Recommendation, logger)
	explanation := NewExplanationService(logger)

	watchHistory := NewWatchHistoryService(db.PG, db.Redis.Warm, &cfg.Recommendation, logger)

	badges, err := NewBadgeService(cfg.Data.BadgesFile, watchHistory, logger)
	if err != nil {
		return nil, err
	}

	orchestrator := NewRecommendationOrchestrator(
		similarity, fallback, merger, explanation, watchHistory,
		cat, db.Redis.Warm, &cfg.Recommendation, metrics, logger,
	)

	return &Services{
		Auth:         authService,
		Health:       healthService,
		RateLimit:    rateLimitService,
		MessageBus:   messageBus,
		Similarity:   similarity,
		Fallback:     fallback,
		Merger:       merger,
		Explanation:  explanation,
		WatchHistory: watchHistory,
		Badges:       badges,
		Orchestrator: orchestrator,
		Metrics:      metrics,
	}, nil
}

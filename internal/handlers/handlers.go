package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/rules"
	"github.com/moviepulse/kino/internal/services"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Watch          *WatchHandler
	Badge          *BadgeHandler
	Admin          *AdminHandler
	Metrics        *MetricsHandler
}

func New(
	cfg *config.Config,
	logger *logrus.Logger,
	svc *services.Services,
	cat *catalog.Catalog,
	tables *rules.Tables,
) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Recommendation: NewRecommendationHandler(svc.Orchestrator, logger),
		Watch:          NewWatchHandler(svc.WatchHistory, svc.MessageBus, cat, logger),
		Badge:          NewBadgeHandler(svc.Badges, svc.WatchHistory, logger),
		Admin:          NewAdminHandler(logger, cfg, tables),
		Metrics:        NewMetricsHandler(logger, svc.MessageBus, cat),
	}
}

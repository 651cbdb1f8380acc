package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/messaging"
)

// MetricsHandler serves the JSON operational snapshot used by the ops
// dashboard. The Prometheus scrape endpoint is mounted separately.
type MetricsHandler struct {
	logger     *logrus.Logger
	messageBus *messaging.MessageBus
	catalog    *catalog.Catalog
}

func NewMetricsHandler(logger *logrus.Logger, messageBus *messaging.MessageBus, cat *catalog.Catalog) *MetricsHandler {
	return &MetricsHandler{
		logger:     logger,
		messageBus: messageBus,
		catalog:    cat,
	}
}

// GetOverview handles GET /api/v1/admin/metrics.
func (h *MetricsHandler) GetOverview(c *gin.Context) {
	overview := gin.H{
		"catalog_size": h.catalog.Len(),
		"timestamp":    time.Now().UTC(),
	}

	if h.messageBus != nil {
		overview["kafka"] = h.messageBus.GetMetrics()
	}

	c.JSON(http.StatusOK, overview)
}

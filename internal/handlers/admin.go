package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/rules"
)

// AdminHandler exposes operational endpoints: rule table reload and the
// current pipeline configuration.
type AdminHandler struct {
	logger *logrus.Logger
	config *config.Config
	tables *rules.Tables
}

func NewAdminHandler(logger *logrus.Logger, cfg *config.Config, tables *rules.Tables) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		config: cfg,
		tables: tables,
	}
}

// ReloadRules handles POST /api/v1/admin/rules/reload. Validation failures
// leave the running tables untouched.
func (h *AdminHandler) ReloadRules(c *gin.Context) {
	if err := h.tables.Reload(); err != nil {
		h.logger.WithError(err).Error("Rule table reload rejected")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": gin.H{
				"code":    "RULES_RELOAD_REJECTED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "reloaded",
		"genres":      len(h.tables.Genres()),
		"moods":       len(h.tables.Moods()),
		"reloaded_at": time.Now().UTC(),
	})
}

// GetPipelineConfig handles GET /api/v1/admin/config.
func (h *AdminHandler) GetPipelineConfig(c *gin.Context) {
	rec := h.config.Recommendation
	c.JSON(http.StatusOK, gin.H{
		"similarity_threshold": rec.SimilarityThreshold,
		"semantic_weight":      rec.SemanticWeight,
		"fallback_weight":      rec.FallbackWeight,
		"min_semantic_results": rec.MinSemanticResults,
		"default_count":        rec.DefaultCount,
		"max_count":            rec.MaxCount,
	})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/services"
)

type BadgeHandler struct {
	badges *services.BadgeService
	watch  *services.WatchHistoryService
	logger *logrus.Logger
}

func NewBadgeHandler(badges *services.BadgeService, watch *services.WatchHistoryService, logger *logrus.Logger) *BadgeHandler {
	return &BadgeHandler{
		badges: badges,
		watch:  watch,
		logger: logger,
	}
}

// Definitions handles GET /api/v1/badges.
func (h *BadgeHandler) Definitions(c *gin.Context) {
	definitions := h.badges.Definitions()
	c.JSON(http.StatusOK, gin.H{
		"badges": definitions,
		"count":  len(definitions),
	})
}

// Progress handles GET /api/v1/users/:userId/badges.
func (h *BadgeHandler) Progress(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	progress, err := h.badges.Progress(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute badge progress")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "BADGE_PROGRESS_FAILED",
				"message": "Failed to compute badge progress",
			},
		})
		return
	}

	earned := 0
	for _, p := range progress {
		if p.Earned {
			earned++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"badges":  progress,
		"earned":  earned,
	})
}

// Affinity handles GET /api/v1/users/:userId/affinity.
func (h *BadgeHandler) Affinity(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	affinity, err := h.watch.Affinity(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to compute genre affinity")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "AFFINITY_FAILED",
				"message": "Failed to compute genre affinity",
			},
		})
		return
	}

	c.JSON(http.StatusOK, affinity)
}

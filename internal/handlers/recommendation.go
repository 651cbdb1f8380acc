package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/services"
	"github.com/moviepulse/kino/pkg/models"
)

type RecommendationHandler struct {
	orchestrator *services.RecommendationOrchestrator
	logger       *logrus.Logger
}

func NewRecommendationHandler(orchestrator *services.RecommendationOrchestrator, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// GetSimilar handles GET /api/v1/recommendations/similar/:movieId.
func (h *RecommendationHandler) GetSimilar(c *gin.Context) {
	movieIDStr := c.Param("movieId")
	movieID, err := strconv.ParseInt(movieIDStr, 10, 64)
	if err != nil || movieID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_MOVIE_ID",
				"message": "Movie ID must be a positive integer",
			},
		})
		return
	}

	req := &models.RecommendationRequest{
		MovieID: movieID,
		UserID:  c.Query("user_id"),
		Count:   parseCount(c),
		Explain: c.Query("explain") == "true",
	}

	if thresholdStr := c.Query("threshold"); thresholdStr != "" {
		threshold, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil || threshold < -1 || threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_THRESHOLD",
					"message": "Threshold must be a number between -1 and 1",
				},
			})
			return
		}
		req.Threshold = &threshold
	}

	h.respond(c, req)
}

// Browse handles GET /api/v1/recommendations/browse?mood=...|genre=...
func (h *RecommendationHandler) Browse(c *gin.Context) {
	mood := c.Query("mood")
	genre := c.Query("genre")

	if mood == "" && genre == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "MISSING_BROWSE_FILTER",
				"message": "Either mood or genre query parameter is required",
			},
		})
		return
	}

	req := &models.RecommendationRequest{
		Mood:    mood,
		Genre:   genre,
		UserID:  c.Query("user_id"),
		Count:   parseCount(c),
		Explain: c.Query("explain") == "true",
	}

	h.respond(c, req)
}

func (h *RecommendationHandler) respond(c *gin.Context, req *models.RecommendationRequest) {
	response, err := h.orchestrator.Recommend(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownMovie):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "MOVIE_NOT_FOUND",
					"message": "Movie not found in catalog",
				},
			})
		case errors.Is(err, services.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_REQUEST",
					"message": err.Error(),
				},
			})
		default:
			h.logger.WithError(err).Error("Failed to generate recommendations")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "RECOMMENDATION_GENERATION_FAILED",
					"message": "Failed to generate recommendations",
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, response)
}

func parseCount(c *gin.Context) int {
	if countStr := c.Query("count"); countStr != "" {
		if count, err := strconv.Atoi(countStr); err == nil && count > 0 {
			return count
		}
	}
	return 0 // orchestrator applies the configured default
}

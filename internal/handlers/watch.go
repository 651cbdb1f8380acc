package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/catalog"
	"github.com/moviepulse/kino/internal/messaging"
	"github.com/moviepulse/kino/internal/services"
	"github.com/moviepulse/kino/pkg/models"
)

type WatchHandler struct {
	watch      *services.WatchHistoryService
	messageBus *messaging.MessageBus
	catalog    *catalog.Catalog
	logger     *logrus.Logger
}

func NewWatchHandler(
	watch *services.WatchHistoryService,
	messageBus *messaging.MessageBus,
	cat *catalog.Catalog,
	logger *logrus.Logger,
) *WatchHandler {
	return &WatchHandler{
		watch:      watch,
		messageBus: messageBus,
		catalog:    cat,
		logger:     logger,
	}
}

type watchRequest struct {
	UserID  uuid.UUID `json:"user_id" binding:"required"`
	MovieID int64     `json:"movie_id" binding:"required,gt=0"`
	Mood    string    `json:"mood,omitempty"`
	Source  string    `json:"source,omitempty" binding:"omitempty,oneof=organic recommendation"`
}

// Record handles POST /api/v1/watch. The event's genres come from the
// catalog, not the client. Persistence goes through Kafka; the synchronous
// write is the fallback when the bus is unavailable.
func (h *WatchHandler) Record(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST_BODY",
				"message": err.Error(),
			},
		})
		return
	}

	movie, ok := h.catalog.Get(req.MovieID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "MOVIE_NOT_FOUND",
				"message": "Movie not found in catalog",
			},
		})
		return
	}

	event := models.WatchEvent{
		LogID:   uuid.New(),
		UserID:  req.UserID,
		MovieID: req.MovieID,
		Genres:  movie.Genres,
		Mood:    req.Mood,
		Source:  req.Source,
	}

	if h.messageBus != nil {
		err := h.messageBus.PublishWatchEvent(event)
		if err == nil {
			c.JSON(http.StatusAccepted, gin.H{
				"log_id": event.LogID,
				"status": "queued",
			})
			return
		}
		h.logger.WithError(err).Warn("Watch event publish failed, writing synchronously")
	}

	if err := h.watch.Record(c.Request.Context(), &event); err != nil {
		h.logger.WithError(err).Error("Failed to record watch event")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "WATCH_RECORD_FAILED",
				"message": "Failed to record watch event",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"log_id":     event.LogID,
		"status":     "recorded",
		"watched_at": event.WatchedAt,
	})
}

// History handles GET /api/v1/users/:userId/watch.
func (h *WatchHandler) History(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	events, err := h.watch.History(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to fetch watch history")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "WATCH_HISTORY_FAILED",
				"message": "Failed to fetch watch history",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"events":  events,
		"count":   len(events),
	})
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user ID format",
			},
		})
		return uuid.Nil, false
	}
	return userID, true
}

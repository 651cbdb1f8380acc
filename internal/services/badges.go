package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/moviepulse/kino/pkg/models"
)

const badgesSchema = `{
	"type": "object",
	"required": ["badges"],
	"properties": {
		"badges": {
			"type": "array",
			"items": {"type": "object"}
		}
	}
}`

// Tier sort priority for badge listings.
var tierOrder = map[string]int{"gold": 0, "silver": 1, "bronze": 2}

// BadgeService evaluates threshold rules over the watch-log counters. The
// earned set is always derived from the current counters, never stored ahead
// of them.
type BadgeService struct {
	definitions []models.Badge
	watch       *WatchHistoryService
	logger      *logrus.Logger
}

func NewBadgeService(definitionsFile string, watch *WatchHistoryService, logger *logrus.Logger) (*BadgeService, error) {
	definitions, err := loadBadgeDefinitions(definitionsFile, logger)
	if err != nil {
		return nil, err
	}

	return &BadgeService{
		definitions: definitions,
		watch:       watch,
		logger:      logger,
	}, nil
}

// Definitions returns the loaded badge rules in display order: tier
// (gold first), then id.
func (s *BadgeService) Definitions() []models.Badge {
	return s.definitions
}

// Progress computes each badge's current counter, completion ratio, and
// earned flag for a user.
func (s *BadgeService) Progress(ctx context.Context, userID uuid.UUID) ([]models.BadgeProgress, error) {
	counters, err := s.watch.Counters(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate badge counters: %w", err)
	}

	progress := make([]models.BadgeProgress, 0, len(s.definitions))
	for _, badge := range s.definitions {
		current := counters[badge.TrackingField]

		ratio := float64(current) / float64(badge.Threshold)
		if ratio > 1 {
			ratio = 1
		}

		progress = append(progress, models.BadgeProgress{
			Badge:    badge,
			Current:  current,
			Progress: ratio,
			Earned:   current >= badge.Threshold,
		})
	}

	return progress, nil
}

func loadBadgeDefinitions(path string, logger *logrus.Logger) ([]models.Badge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read badge definitions: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(badgesSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate badge definitions: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid badge definitions file %s", path)
	}

	var file struct {
		Badges []models.Badge `json:"badges"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to decode badge definitions: %w", err)
	}

	// Invalid entries are skipped rather than failing the whole file.
	valid := make([]models.Badge, 0, len(file.Badges))
	for _, badge := range file.Badges {
		if badge.ID == "" || badge.Name == "" || badge.Threshold <= 0 || !validTrackingField(badge.TrackingField) {
			logger.WithField("badge_id", badge.ID).Warn("Skipping invalid badge definition")
			continue
		}
		valid = append(valid, badge)
	}

	sort.Slice(valid, func(i, j int) bool {
		ti, tj := tierRank(valid[i].Tier), tierRank(valid[j].Tier)
		if ti != tj {
			return ti < tj
		}
		return valid[i].ID < valid[j].ID
	})

	logger.WithField("badges", len(valid)).Info("Badge definitions loaded")
	return valid, nil
}

func validTrackingField(field string) bool {
	switch field {
	case CounterMoviesWatched, CounterGenresExplored, CounterMoodsUsed:
		return true
	}
	return false
}

func tierRank(tier string) int {
	if rank, ok := tierOrder[tier]; ok {
		return rank
	}
	return len(tierOrder)
}

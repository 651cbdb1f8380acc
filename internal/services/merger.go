package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/pkg/models"
)

// BlendResult is the merged, deduplicated ranking produced by the hybrid
// merger, plus the response-level provenance and fill status.
type BlendResult struct {
	Recommendations []models.Recommendation
	Status          models.RecommendationStatus
	Source          models.RecommendationSource
}

// HybridMerger combines a score-ranked semantic list with an order-ranked
// fallback list under the configured weight split (default 70/30). Output is
// exactly reproducible for fixed inputs and configuration: there is no
// randomness anywhere in the merge.
type HybridMerger struct {
	config *config.RecommendationConfig
	logger *logrus.Logger
}

func NewHybridMerger(config *config.RecommendationConfig, logger *logrus.Logger) *HybridMerger {
	return &HybridMerger{
		config: config,
		logger: logger,
	}
}

// Blend merges up to k entries. The semantic quota is round(k * semantic
// weight); the remainder belongs to fallback. A semantic shortfall is
// backfilled entirely from fallback, skipping identifiers already selected.
// If fallback also runs dry the result is returned short and flagged
// incomplete, never padded with synthetic entries.
//
// A movie appearing in both inputs is tagged semantic: fallback duplicates
// are skipped, so the scored entry wins.
func (m *HybridMerger) Blend(
	semantic []models.SimilarityResult,
	fallback []int64,
	k int,
) *BlendResult {
	if k <= 0 {
		return &BlendResult{Status: models.StatusEmpty, Source: models.SourceBlended}
	}

	semanticQuota := int(math.Round(float64(k) * m.config.SemanticWeight))
	if semanticQuota > k {
		semanticQuota = k
	}

	recommendations := make([]models.Recommendation, 0, k)
	chosen := make(map[int64]bool)

	for _, result := range semantic {
		if len(recommendations) >= semanticQuota {
			break
		}
		if chosen[result.MovieID] {
			continue
		}
		chosen[result.MovieID] = true
		recommendations = append(recommendations, models.Recommendation{
			MovieID: result.MovieID,
			Score:   result.Score,
			Source:  models.SourceSemantic,
		})
	}

	semanticCount := len(recommendations)

	// Fallback fills its own quota plus any semantic shortfall, in fallback
	// order. Duplicates against the semantic selection are skipped.
	for _, movieID := range fallback {
		if len(recommendations) >= k {
			break
		}
		if chosen[movieID] {
			continue
		}
		chosen[movieID] = true
		recommendations = append(recommendations, models.Recommendation{
			MovieID: movieID,
			Source:  models.SourceFallback,
		})
	}

	fallbackCount := len(recommendations) - semanticCount

	for i := range recommendations {
		recommendations[i].Position = i + 1
	}

	result := &BlendResult{
		Recommendations: recommendations,
		Status:          blendStatus(len(recommendations), k),
		Source:          blendSource(semanticCount, fallbackCount),
	}

	m.logger.WithFields(logrus.Fields{
		"requested": k,
		"semantic":  semanticCount,
		"fallback":  fallbackCount,
		"status":    result.Status,
	}).Debug("Hybrid blend completed")

	return result
}

func blendStatus(got, want int) models.RecommendationStatus {
	switch {
	case got == 0:
		return models.StatusEmpty
	case got < want:
		return models.StatusIncomplete
	default:
		return models.StatusComplete
	}
}

func blendSource(semanticCount, fallbackCount int) models.RecommendationSource {
	switch {
	case semanticCount > 0 && fallbackCount > 0:
		return models.SourceBlended
	case fallbackCount > 0:
		return models.SourceFallback
	default:
		return models.SourceSemantic
	}
}

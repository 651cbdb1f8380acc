package services

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/internal/ml"
	"github.com/moviepulse/kino/pkg/models"
)

// ErrMissingEmbedding is returned when the query movie has no vector. The
// caller recovers by routing the request entirely to the rule-based fallback.
var ErrMissingEmbedding = errors.New("query movie has no embedding")

// ErrInsufficientResults is returned alongside the partial result set when
// fewer than the configured minimum of candidates clear the threshold, so the
// caller can backfill instead of silently returning a short list.
var ErrInsufficientResults = errors.New("insufficient semantic results")

// SimilaritySearchService ranks candidate movies by cosine similarity against
// a query embedding. All vectors are pre-normalized at load, so scoring is a
// plain dot product per candidate row.
type SimilaritySearchService struct {
	embeddings *ml.EmbeddingStore
	config     *config.RecommendationConfig
	logger     *logrus.Logger
}

func NewSimilaritySearchService(
	embeddings *ml.EmbeddingStore,
	config *config.RecommendationConfig,
	logger *logrus.Logger,
) *SimilaritySearchService {
	return &SimilaritySearchService{
		embeddings: embeddings,
		config:     config,
		logger:     logger,
	}
}

// FindSimilar returns the top-k movies most similar to the query movie whose
// score clears the threshold. The query movie itself is excluded. Results are
// sorted by score descending with ties broken by ascending movie identifier.
func (s *SimilaritySearchService) FindSimilar(
	queryMovieID int64,
	k int,
	threshold float64,
) ([]models.SimilarityResult, error) {
	query, ok := s.embeddings.Vector(queryMovieID)
	if !ok {
		s.logger.WithField("movie_id", queryMovieID).Debug("Query movie has no embedding")
		return nil, ErrMissingEmbedding
	}

	return s.Search(query, queryMovieID, k, threshold)
}

// Search scores a query vector against every candidate embedding. A zero
// query or candidate vector yields similarity 0 for that pairing rather than
// a division error; pre-normalization guarantees this because zero vectors
// keep all-zero components.
func (s *SimilaritySearchService) Search(
	query []float32,
	excludeMovieID int64,
	k int,
	threshold float64,
) ([]models.SimilarityResult, error) {
	results := make([]models.SimilarityResult, 0, k)

	for _, movieID := range s.embeddings.IDs() {
		if movieID == excludeMovieID {
			continue
		}

		candidate, _ := s.embeddings.Vector(movieID)
		score := ml.Dot(query, candidate)
		if score < threshold {
			continue
		}

		results = append(results, models.SimilarityResult{
			MovieID: movieID,
			Score:   score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].MovieID < results[j].MovieID
	})

	if len(results) > k {
		results = results[:k]
	}

	s.logger.WithFields(logrus.Fields{
		"exclude":   excludeMovieID,
		"threshold": threshold,
		"results":   len(results),
	}).Debug("Similarity search completed")

	if len(results) < s.config.MinSemanticResults {
		return results, ErrInsufficientResults
	}

	return results, nil
}

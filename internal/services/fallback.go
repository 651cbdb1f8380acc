package services

import (
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/rules"
	"github.com/moviepulse/kino/pkg/models"
)

// RuleBasedFallbackService resolves mood, genre, or source-movie queries into
// candidate movie identifiers using the static rule tables. Fallback
// candidates carry no score; their ranking is first-appearance order across
// the unioned genre lookups, which makes the output deterministic for a
// fixed table state.
type RuleBasedFallbackService struct {
	tables *rules.Tables
	logger *logrus.Logger
}

func NewRuleBasedFallbackService(tables *rules.Tables, logger *logrus.Logger) *RuleBasedFallbackService {
	return &RuleBasedFallbackService{
		tables: tables,
		logger: logger,
	}
}

// ForMood resolves mood -> genre sequence -> union of genre movie lists.
// Unknown moods yield an empty candidate set, not an error.
func (s *RuleBasedFallbackService) ForMood(mood string) []int64 {
	genres := s.tables.GenresForMood(mood)
	if len(genres) == 0 {
		s.logger.WithField("mood", mood).Debug("Unknown or empty mood, no fallback candidates")
		return nil
	}

	return s.unionGenres(genres, 0)
}

// ForGenre resolves a single genre label. Unknown genres yield an empty set.
func (s *RuleBasedFallbackService) ForGenre(genre string) []int64 {
	return s.unionGenres([]string{genre}, 0)
}

// ForMovie unions the genre lists of the movie's own genres, in the order the
// genres appear on the movie, excluding the movie itself. A movie without
// genres yields an empty set; the caller decides how to react.
func (s *RuleBasedFallbackService) ForMovie(movie *models.Movie) []int64 {
	if movie == nil || len(movie.Genres) == 0 {
		return nil
	}

	return s.unionGenres(movie.Genres, movie.ID)
}

// unionGenres walks the genre sequence in order and collects each genre's
// movie list, keeping the first appearance of every identifier.
func (s *RuleBasedFallbackService) unionGenres(genres []string, exclude int64) []int64 {
	var candidates []int64
	seen := make(map[int64]bool)

	for _, genre := range genres {
		for _, movieID := range s.tables.MoviesForGenre(genre) {
			if movieID == exclude || seen[movieID] {
				continue
			}
			seen[movieID] = true
			candidates = append(candidates, movieID)
		}
	}

	return candidates
}

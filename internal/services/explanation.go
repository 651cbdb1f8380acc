package services

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/pkg/models"
)

// ExplanationContext carries the request facts the explanation text is
// built from.
type ExplanationContext struct {
	SourceMovie *models.Movie
	Mood        string
	Genre       string
	TopGenres   []string // user's favorite genres from watch history, may be empty
}

// ExplanationService turns provenance tags into the "why this was
// recommended" strings shown next to each title.
type ExplanationService struct {
	logger *logrus.Logger
}

func NewExplanationService(logger *logrus.Logger) *ExplanationService {
	return &ExplanationService{logger: logger}
}

// Annotate fills the Explanation field of each recommendation in place.
// Personalized genre matches take priority over provenance-derived text.
func (es *ExplanationService) Annotate(recommendations []models.Recommendation, ectx *ExplanationContext) {
	for i := range recommendations {
		explanation := es.explain(&recommendations[i], ectx)
		recommendations[i].Explanation = &explanation
	}
}

func (es *ExplanationService) explain(rec *models.Recommendation, ectx *ExplanationContext) string {
	if rec.Movie != nil && len(ectx.TopGenres) > 0 {
		if matched := matchGenres(rec.Movie.Genres, ectx.TopGenres, 2); len(matched) > 0 {
			return fmt.Sprintf("Matches your favorite genres: %s", strings.Join(matched, ", "))
		}
	}

	switch rec.Source {
	case models.SourceSemantic:
		if ectx.SourceMovie != nil {
			return fmt.Sprintf("Because it's similar to %q (%.0f%% match)", ectx.SourceMovie.Title, rec.Score*100)
		}
		return fmt.Sprintf("Semantically similar pick (%.0f%% match)", rec.Score*100)
	case models.SourceFallback:
		switch {
		case ectx.Mood != "":
			return fmt.Sprintf("Great for %q moods", ectx.Mood)
		case ectx.Genre != "":
			return fmt.Sprintf("More %s picks", ectx.Genre)
		case ectx.SourceMovie != nil:
			return fmt.Sprintf("Shares genres with %q", ectx.SourceMovie.Title)
		}
	}

	return "Recommended for you"
}

func matchGenres(movieGenres, topGenres []string, limit int) []string {
	var matched []string
	for _, genre := range movieGenres {
		for _, top := range topGenres {
			if strings.EqualFold(genre, top) {
				matched = append(matched, genre)
				break
			}
		}
		if len(matched) == limit {
			break
		}
	}
	return matched
}

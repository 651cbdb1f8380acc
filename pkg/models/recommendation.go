package models

import "time"

// RecommendationSource tags where a recommendation entry came from.
type RecommendationSource string

const (
	SourceSemantic RecommendationSource = "semantic"
	SourceFallback RecommendationSource = "fallback"
	SourceBlended  RecommendationSource = "blended"
)

// RecommendationStatus reports whether a response could be filled to the
// requested count.
type RecommendationStatus string

const (
	StatusComplete   RecommendationStatus = "complete"
	StatusIncomplete RecommendationStatus = "incomplete"
	StatusEmpty      RecommendationStatus = "empty"
)

// SimilarityResult is a transient (movie, score) pair produced by the
// similarity search. Scores are always within [-1, 1].
type SimilarityResult struct {
	MovieID int64   `json:"movie_id"`
	Score   float64 `json:"score"`
}

type Recommendation struct {
	MovieID     int64                `json:"movie_id"`
	Score       float64              `json:"score"`
	Source      RecommendationSource `json:"source"`
	Explanation *string              `json:"explanation,omitempty"`
	Position    int                  `json:"position"`
	Movie       *Movie               `json:"movie,omitempty"`
}

// RecommendationRequest is either a "similar to X" query (MovieID set) or a
// catalog-style browse by mood or genre.
type RecommendationRequest struct {
	MovieID   int64    `json:"movie_id,omitempty"`
	Mood      string   `json:"mood,omitempty"`
	Genre     string   `json:"genre,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	Count     int      `json:"count" validate:"min=1,max=100"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=-1,lte=1"`
	Explain   bool     `json:"explain"`
}

type RecommendationResponse struct {
	Recommendations []Recommendation     `json:"recommendations"`
	Status          RecommendationStatus `json:"status"`
	Source          RecommendationSource `json:"source"`
	RequestedCount  int                  `json:"requested_count"`
	GeneratedAt     time.Time            `json:"generated_at"`
	CacheHit        bool                 `json:"cache_hit"`
}

package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// Provider computes an embedding vector for a movie's text fields. The model
// behind it (sentence transformer, remote inference service) is an external
// collaborator; this package only consumes its output.
type Provider interface {
	Embed(ctx context.Context, movieID int64) ([]float32, error)
}

// EmbeddingStore holds movie embeddings keyed by identifier. Vectors are
// L2-normalized once at load so cosine similarity reduces to a dot product
// at query time. The snapshot is immutable after load; the Redis cold cache
// in front of the provider is append-only (SetNX, never rewritten).
type EmbeddingStore struct {
	dimensions  int
	redisClient *redis.Client
	cacheTTL    time.Duration
	logger      *logrus.Logger

	vectors map[int64][]float32
	ids     []int64
}

const embeddingCachePrefix = "embed:movie:"

func NewEmbeddingStore(dimensions int, redisClient *redis.Client, cacheTTL time.Duration, logger *logrus.Logger) *EmbeddingStore {
	return &EmbeddingStore{
		dimensions:  dimensions,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger,
		vectors:     make(map[int64][]float32),
	}
}

// LoadFile reads an embedding snapshot of the shape {"101": [0.1, ...]}.
// Vectors with the wrong dimensionality fail the load; zero vectors are
// kept (they score 0 against everything, by definition) but logged.
func (s *EmbeddingStore) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read embeddings file: %w", err)
	}

	var snapshot map[string][]float32
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("failed to decode embeddings file: %w", err)
	}

	vectors := make(map[int64][]float32, len(snapshot))
	ids := make([]int64, 0, len(snapshot))
	zeroVectors := 0

	for key, vec := range snapshot {
		movieID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("embeddings file has non-numeric movie id %q", key)
		}
		if len(vec) != s.dimensions {
			return fmt.Errorf("movie %d has %d dimensions, expected %d", movieID, len(vec), s.dimensions)
		}

		if !Normalize(vec) {
			zeroVectors++
		}
		vectors[movieID] = vec
		ids = append(ids, movieID)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	s.vectors = vectors
	s.ids = ids

	if zeroVectors > 0 {
		s.logger.WithField("count", zeroVectors).Warn("Embedding snapshot contains zero vectors")
	}
	s.logger.WithFields(logrus.Fields{
		"embeddings": len(vectors),
		"dimensions": s.dimensions,
	}).Info("Embedding snapshot loaded")

	return nil
}

// Vector returns the normalized embedding for a movie, if present.
func (s *EmbeddingStore) Vector(movieID int64) ([]float32, bool) {
	vec, ok := s.vectors[movieID]
	return vec, ok
}

// IDs returns all movie identifiers with embeddings, ascending.
func (s *EmbeddingStore) IDs() []int64 {
	return s.ids
}

// Len returns the number of embeddings in the snapshot.
func (s *EmbeddingStore) Len() int {
	return len(s.vectors)
}

// Dimensions returns the configured vector dimensionality.
func (s *EmbeddingStore) Dimensions() int {
	return s.dimensions
}

// Resolve returns a normalized embedding for a movie: snapshot first, then
// the append-only Redis cache, then the provider. Provider results are cached
// with SetNX so an existing entry is never overwritten.
func (s *EmbeddingStore) Resolve(ctx context.Context, movieID int64, provider Provider) ([]float32, error) {
	if vec, ok := s.vectors[movieID]; ok {
		return vec, nil
	}

	cacheKey := embeddingCachePrefix + strconv.FormatInt(movieID, 10)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var vec []float32
			if err := json.Unmarshal([]byte(cached), &vec); err == nil && len(vec) == s.dimensions {
				return vec, nil
			}
		}
	}

	if provider == nil {
		return nil, fmt.Errorf("no embedding for movie %d", movieID)
	}

	vec, err := provider.Embed(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("embedding provider failed for movie %d: %w", movieID, err)
	}
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("provider returned %d dimensions for movie %d, expected %d", len(vec), movieID, s.dimensions)
	}

	Normalize(vec)

	if s.redisClient != nil {
		data, _ := json.Marshal(vec)
		if err := s.redisClient.SetNX(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
			s.logger.WithError(err).Warn("Failed to cache provider embedding")
		}
	}

	return vec, nil
}

// Normalize scales a vector to unit length in place. Zero vectors are left
// untouched so similarity against them is 0 instead of a division error.
// Returns false for zero vectors.
func Normalize(vec []float32) bool {
	v := make([]float64, len(vec))
	for i, x := range vec {
		v[i] = float64(x)
	}

	norm := floats.Norm(v, 2)
	if norm == 0 {
		return false
	}

	floats.Scale(1/norm, v)
	for i, x := range v {
		vec[i] = float32(x)
	}
	return true
}

// Dot computes the dot product of two equal-length vectors. With both sides
// pre-normalized this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

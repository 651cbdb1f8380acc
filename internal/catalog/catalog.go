package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/moviepulse/kino/pkg/models"
)

// Querier interface for database operations
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Catalog is the in-memory snapshot of the movie metadata table. It is
// loaded once at startup and read-only afterwards, so concurrent readers
// need no coordination beyond the snapshot swap lock.
type Catalog struct {
	db     Querier
	logger *logrus.Logger

	mu     sync.RWMutex
	movies map[int64]*models.Movie
}

func New(db Querier, logger *logrus.Logger) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger,
		movies: make(map[int64]*models.Movie),
	}
}

// NewStatic builds a catalog from an in-memory movie list, bypassing the
// database. Used by fixture-driven setups and tests.
func NewStatic(movies []*models.Movie, logger *logrus.Logger) *Catalog {
	snapshot := make(map[int64]*models.Movie, len(movies))
	for _, m := range movies {
		snapshot[m.ID] = m
	}
	return &Catalog{logger: logger, movies: snapshot}
}

// Load reads the full movie table into memory. Original-language codes are
// normalized to canonical BCP 47 tags; unparseable codes are kept verbatim
// and logged.
func (c *Catalog) Load(ctx context.Context) error {
	query := `
		SELECT id, title, genres, original_language, critic_score, release_year
		FROM movies
		ORDER BY id`

	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	movies := make(map[int64]*models.Movie)
	for rows.Next() {
		var m models.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Genres, &m.OriginalLanguage, &m.CriticScore, &m.ReleaseYear); err != nil {
			return fmt.Errorf("failed to scan movie row: %w", err)
		}

		m.OriginalLanguage = c.normalizeLanguage(m.ID, m.OriginalLanguage)
		movies[m.ID] = &m
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("catalog row iteration failed: %w", err)
	}

	c.mu.Lock()
	c.movies = movies
	c.mu.Unlock()

	c.logger.WithField("movies", len(movies)).Info("Movie catalog loaded")
	return nil
}

// Get returns the catalog entry for a movie identifier.
func (c *Catalog) Get(movieID int64) (*models.Movie, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.movies[movieID]
	return m, ok
}

// Exists reports whether the movie identifier is known. Satisfies
// rules.MovieResolver for referential-integrity checks at table load.
func (c *Catalog) Exists(movieID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.movies[movieID]
	return ok
}

// Len returns the number of movies in the snapshot.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.movies)
}

func (c *Catalog) normalizeLanguage(movieID int64, code string) string {
	if code == "" {
		return ""
	}

	tag, err := language.Parse(code)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"movie_id": movieID,
			"language": code,
		}).Warn("Unparseable original-language code, keeping verbatim")
		return code
	}
	return tag.String()
}

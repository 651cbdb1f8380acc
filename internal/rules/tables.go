package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
)

// Table shapes on disk:
//
//	genres.json: { "action": [101, 102, 103], "comedy": [201, 202] }
//	moods.json:  { "uplifting": ["comedy", "family"], "dark": ["thriller"] }
//
// Array order is significant and preserved: the fallback ranking is defined
// as first-appearance order across an explicit sequence of genre lookups.

const genresSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "array",
		"items": {"type": "integer", "minimum": 1}
	}
}`

const moodsSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "array",
		"items": {"type": "string", "minLength": 1}
	}
}`

// MovieResolver answers whether a movie identifier exists in the catalog.
// Referential integrity of the genre table is checked against it at load
// time, not at query time.
type MovieResolver interface {
	Exists(movieID int64) bool
}

type tableData struct {
	genreMovies map[string][]int64
	moodGenres  map[string][]string
}

// Tables holds the static genre and mood rule tables. Reads are lock-free in
// practice: the data pointer is swapped atomically on Reload, and the tables
// themselves are never mutated after load.
type Tables struct {
	genresFile string
	moodsFile  string
	resolver   MovieResolver
	logger     *logrus.Logger

	mu   sync.RWMutex
	data *tableData
}

func Load(genresFile, moodsFile string, resolver MovieResolver, logger *logrus.Logger) (*Tables, error) {
	t := &Tables{
		genresFile: genresFile,
		moodsFile:  moodsFile,
		resolver:   resolver,
		logger:     logger,
	}

	if err := t.Reload(); err != nil {
		return nil, err
	}

	return t, nil
}

// Reload re-reads both table files and swaps them in atomically. Callers
// observing the old tables mid-reload keep a consistent snapshot.
func (t *Tables) Reload() error {
	genreMovies, err := loadGenreTable(t.genresFile)
	if err != nil {
		return fmt.Errorf("failed to load genre table: %w", err)
	}

	moodGenres, err := loadMoodTable(t.moodsFile)
	if err != nil {
		return fmt.Errorf("failed to load mood table: %w", err)
	}

	if t.resolver != nil {
		for genre, ids := range genreMovies {
			for _, id := range ids {
				if !t.resolver.Exists(id) {
					return fmt.Errorf("genre table references unknown movie %d under %q", id, genre)
				}
			}
		}
	}

	data := &tableData{
		genreMovies: genreMovies,
		moodGenres:  moodGenres,
	}

	t.mu.Lock()
	t.data = data
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"genres": len(genreMovies),
		"moods":  len(moodGenres),
	}).Info("Rule tables loaded")

	return nil
}

// MoviesForGenre returns the movie identifiers mapped to a genre label, in
// table order. Unknown labels yield an empty slice, not an error.
func (t *Tables) MoviesForGenre(genre string) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.genreMovies[genre]
}

// GenresForMood resolves a mood label into its genre sequence, in table
// order. Unknown labels yield an empty slice, not an error.
func (t *Tables) GenresForMood(mood string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data.moodGenres[mood]
}

// HasMood reports whether a mood label is known.
func (t *Tables) HasMood(mood string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.data.moodGenres[mood]
	return ok
}

// Genres lists the known genre labels in sorted order.
func (t *Tables) Genres() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	genres := make([]string, 0, len(t.data.genreMovies))
	for genre := range t.data.genreMovies {
		genres = append(genres, genre)
	}
	sort.Strings(genres)
	return genres
}

// Moods lists the known mood labels in sorted order.
func (t *Tables) Moods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	moods := make([]string, 0, len(t.data.moodGenres))
	for mood := range t.data.moodGenres {
		moods = append(moods, mood)
	}
	sort.Strings(moods)
	return moods
}

func loadGenreTable(path string) (map[string][]int64, error) {
	raw, err := validateFile(path, genresSchema)
	if err != nil {
		return nil, err
	}

	var table map[string][]int64
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return table, nil
}

func loadMoodTable(path string) (map[string][]string, error) {
	raw, err := validateFile(path, moodsSchema)
	if err != nil {
		return nil, err
	}

	var table map[string][]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return table, nil
}

func validateFile(path, schema string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate %s: %w", path, err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return nil, fmt.Errorf("invalid table file %s: %s", path, errs[0].String())
		}
		return nil, fmt.Errorf("invalid table file %s", path)
	}

	return raw, nil
}

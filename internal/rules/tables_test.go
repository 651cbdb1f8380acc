package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	known map[int64]bool
}

func (f *fakeResolver) Exists(movieID int64) bool {
	return f.known[movieID]
}

func writeTableFiles(t *testing.T, genres, moods string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	genresFile := filepath.Join(dir, "genres.json")
	require.NoError(t, os.WriteFile(genresFile, []byte(genres), 0o644))

	moodsFile := filepath.Join(dir, "moods.json")
	require.NoError(t, os.WriteFile(moodsFile, []byte(moods), 0o644))

	return genresFile, moodsFile
}

func TestTables_Load(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	genresFile, moodsFile := writeTableFiles(t,
		`{"action": [101, 102, 103], "comedy": [201, 202, 203]}`,
		`{"uplifting": ["comedy", "family"], "dark": ["thriller", "horror"]}`,
	)

	tables, err := Load(genresFile, moodsFile, nil, logger)
	require.NoError(t, err)

	assert.Equal(t, []int64{101, 102, 103}, tables.MoviesForGenre("action"))
	assert.Equal(t, []string{"comedy", "family"}, tables.GenresForMood("uplifting"))
	assert.Equal(t, []string{"action", "comedy"}, tables.Genres())
	assert.Equal(t, []string{"dark", "uplifting"}, tables.Moods())
	assert.True(t, tables.HasMood("dark"))
}

func TestTables_UnknownLabels(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	genresFile, moodsFile := writeTableFiles(t,
		`{"action": [101]}`,
		`{"uplifting": ["comedy"]}`,
	)

	tables, err := Load(genresFile, moodsFile, nil, logger)
	require.NoError(t, err)

	// Unknown labels are empty sets, not errors.
	assert.Empty(t, tables.MoviesForGenre("nonexistent"))
	assert.Empty(t, tables.GenresForMood("nonexistent"))
	assert.False(t, tables.HasMood("nonexistent"))
}

func TestTables_SchemaValidation(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	tests := []struct {
		name   string
		genres string
		moods  string
	}{
		{
			name:   "genre values must be integers",
			genres: `{"action": ["not-a-number"]}`,
			moods:  `{"uplifting": ["comedy"]}`,
		},
		{
			name:   "mood values must be strings",
			genres: `{"action": [101]}`,
			moods:  `{"uplifting": [35, 10751]}`,
		},
		{
			name:   "genre table must be an object",
			genres: `[101, 102]`,
			moods:  `{"uplifting": ["comedy"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			genresFile, moodsFile := writeTableFiles(t, tt.genres, tt.moods)
			_, err := Load(genresFile, moodsFile, nil, logger)
			assert.Error(t, err)
		})
	}
}

func TestTables_ReferentialIntegrity(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	genresFile, moodsFile := writeTableFiles(t,
		`{"action": [101, 999]}`,
		`{"uplifting": ["comedy"]}`,
	)

	resolver := &fakeResolver{known: map[int64]bool{101: true}}

	_, err := Load(genresFile, moodsFile, resolver, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown movie 999")
}

func TestTables_Reload(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	genresFile, moodsFile := writeTableFiles(t,
		`{"action": [101]}`,
		`{"uplifting": ["comedy"]}`,
	)

	tables, err := Load(genresFile, moodsFile, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, []int64{101}, tables.MoviesForGenre("action"))

	require.NoError(t, os.WriteFile(genresFile, []byte(`{"action": [101, 102]}`), 0o644))
	require.NoError(t, tables.Reload())
	assert.Equal(t, []int64{101, 102}, tables.MoviesForGenre("action"))

	// A broken file leaves the previous tables in place.
	require.NoError(t, os.WriteFile(genresFile, []byte(`{broken`), 0o644))
	require.Error(t, tables.Reload())
	assert.Equal(t, []int64{101, 102}, tables.MoviesForGenre("action"))
}

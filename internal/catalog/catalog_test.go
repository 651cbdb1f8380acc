package catalog

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Load(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	rows := pgxmock.NewRows([]string{"id", "title", "genres", "original_language", "critic_score", "release_year"}).
		AddRow(int64(101), "Heat Rising", []string{"action", "thriller"}, "en", 84, 2019).
		AddRow(int64(201), "Punchline Summer", []string{"comedy"}, "EN-us", 71, 2021).
		AddRow(int64(301), "Family Matters", []string{"family"}, "not a language", 65, 2018)

	mockDB.ExpectQuery("SELECT id, title, genres").WillReturnRows(rows)

	c := New(mockDB, logger)
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, mockDB.ExpectationsWereMet())

	assert.Equal(t, 3, c.Len())

	m, ok := c.Get(101)
	require.True(t, ok)
	assert.Equal(t, "Heat Rising", m.Title)
	assert.Equal(t, []string{"action", "thriller"}, m.Genres)
	assert.Equal(t, "en", m.OriginalLanguage)

	// Language codes are canonicalized.
	m, ok = c.Get(201)
	require.True(t, ok)
	assert.Equal(t, "en-US", m.OriginalLanguage)

	// Unparseable codes survive verbatim.
	m, ok = c.Get(301)
	require.True(t, ok)
	assert.Equal(t, "not a language", m.OriginalLanguage)

	assert.True(t, c.Exists(101))
	assert.False(t, c.Exists(999))
}

func TestCatalog_LoadQueryError(t *testing.T) {
	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockDB.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	mockDB.ExpectQuery("SELECT id, title, genres").WillReturnError(assert.AnError)

	c := New(mockDB, logger)
	assert.Error(t, c.Load(context.Background()))
	assert.Equal(t, 0, c.Len())
}

package models

// Movie is the catalog view of a title. The scoring core only reads the
// identifier and genre labels; the remaining fields feed filtering and
// explanation text.
type Movie struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Genres           []string `json:"genres"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	CriticScore      int      `json:"critic_score"` // 0-100
	ReleaseYear      int      `json:"release_year"`
}

// HasGenre reports whether the movie carries the given genre label.
func (m *Movie) HasGenre(genre string) bool {
	for _, g := range m.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

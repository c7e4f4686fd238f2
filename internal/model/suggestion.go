package model

// Suggestion is one ranked candidate match returned by a provider's
// interactive search.
type Suggestion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"releaseDate"`
	PosterPath  string `json:"posterPath"`
	Subtitle    string `json:"subtitle"`
}

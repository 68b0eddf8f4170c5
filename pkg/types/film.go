// Package types defines shared data structures for the filmclub pipeline:
// the film records produced by extraction, stage configuration, and the
// error taxonomy shared by the fetch, parse, and write steps.
package types

// Film is the general record for one film, keyed by its Letterboxd id.
type Film struct {
	// ID is the stable Letterboxd film id (data-film-id).
	ID string `json:"letterboxd_id" yaml:"letterboxd_id"`

	// ShortTitle is the bare title, e.g. "Alien".
	ShortTitle string `json:"letterboxd_shorttitle" yaml:"letterboxd_shorttitle"`

	// LongTitle is the og:title, e.g. "Alien (1979)".
	LongTitle string `json:"letterboxd_longtitle" yaml:"letterboxd_longtitle"`

	Slug    string `json:"letterboxd_slug" yaml:"letterboxd_slug"`
	URL     string `json:"letterboxd_url" yaml:"letterboxd_url"`
	IMDbURL string `json:"imdb_url" yaml:"imdb_url"`
	TMDbURL string `json:"tmdb_url" yaml:"tmdb_url"`
	TMDbID  string `json:"tmdb_id" yaml:"tmdb_id"`

	// ReleaseYear is zero when the page shows no year.
	ReleaseYear int `json:"release_year" yaml:"release_year"`

	// Duration is the runtime in minutes, zero when unknown.
	Duration int `json:"duration" yaml:"duration"`

	// AvgRating is the Letterboxd average, nil when the film has none.
	AvgRating *float64 `json:"avg_rating,omitempty" yaml:"avg_rating,omitempty"`

	// SourcePage is the 1-based list page the film was found on.
	SourcePage int `json:"source_page" yaml:"source_page"`
}

// CastMember is one credited actor of a film.
type CastMember struct {
	Name          string `json:"name" yaml:"name"`
	Link          string `json:"link" yaml:"link"`
	CharacterName string `json:"character_name" yaml:"character_name"`
}

// CrewMember is one credited crew member; Role is the path segment of the
// crew link ("director", "writer", ...).
type CrewMember struct {
	Name string `json:"name" yaml:"name"`
	Role string `json:"role" yaml:"role"`
	Link string `json:"link" yaml:"link"`
}

// DetailKey classifies entries of the details tab.
type DetailKey string

const (
	DetailStudio   DetailKey = "studio"
	DetailCountry  DetailKey = "country"
	DetailLanguage DetailKey = "language"
	DetailUnknown  DetailKey = "ERROR"
)

// Detail is one studio, country, or language entry of a film.
type Detail struct {
	Key   DetailKey `json:"key" yaml:"key"`
	Value string    `json:"value" yaml:"value"`
	Link  string    `json:"link" yaml:"link"`
}

// FilmData bundles everything parsed from one film page.
type FilmData struct {
	General Film         `json:"general_data" yaml:"general_data"`
	Cast    []CastMember `json:"cast" yaml:"cast"`
	Crew    []CrewMember `json:"crew" yaml:"crew"`
	Details []Detail     `json:"details" yaml:"details"`
	Genres  []string     `json:"genres_and_themes" yaml:"genres_and_themes"`
}

// Float returns a pointer to v, for optional ratings.
func Float(v float64) *float64 { return &v }

// Page is one page of a film list.
type Page struct {
	Number int

	// Links are film links relative to the site root, e.g. "/film/alien/".
	Links []string

	// Last is set when the page carries no link to a following page.
	Last bool
}

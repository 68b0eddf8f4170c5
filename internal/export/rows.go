// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/filmclub/pkg/types"
)

// NewRawTables returns empty raw tables keyed by name.
func NewRawTables() map[string]*Table {
	tables := make(map[string]*Table, len(RawTables))
	for _, name := range RawTables {
		tables[name] = NewRawTable(name)
	}
	return tables
}

// AppendFilm normalizes one parsed film into rows of every raw table.
func AppendFilm(tables map[string]*Table, fd types.FilmData) {
	g := fd.General
	tables[General].Append(
		g.ID, g.ShortTitle, g.LongTitle, g.Slug, g.URL, g.IMDbURL, g.TMDbURL, g.TMDbID,
		formatInt(g.ReleaseYear), formatInt(g.Duration), FormatRating(g.AvgRating),
		formatInt(g.SourcePage),
	)
	for _, c := range fd.Cast {
		tables[Cast].Append(c.Name, c.Link, c.CharacterName, g.ID, g.ShortTitle)
	}
	for _, c := range fd.Crew {
		tables[Crew].Append(c.Name, c.Role, c.Link, g.ID, g.ShortTitle)
	}
	for _, d := range fd.Details {
		tables[Details].Append(string(d.Key), d.Value, d.Link, g.ID, g.ShortTitle)
	}
	for _, v := range fd.Genres {
		tables[GenresThemes].Append(v, g.ID, g.ShortTitle)
	}
}

// FormatRating renders an optional rating with two decimals.
func FormatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 2, 64)
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// Films decodes the general table into typed records.
func Films(t *Table) ([]types.Film, error) {
	if err := t.CheckColumns(Schema(General)); err != nil {
		return nil, err
	}
	films := make([]types.Film, 0, t.Len())
	for i := range t.Rows {
		f := types.Film{
			ID:         t.Value(i, "letterboxd_id"),
			ShortTitle: t.Value(i, "letterboxd_shorttitle"),
			LongTitle:  t.Value(i, "letterboxd_longtitle"),
			Slug:       t.Value(i, "letterboxd_slug"),
			URL:        t.Value(i, "letterboxd_url"),
			IMDbURL:    t.Value(i, "imdb_url"),
			TMDbURL:    t.Value(i, "tmdb_url"),
			TMDbID:     t.Value(i, "tmdb_id"),
		}
		var err error
		if f.ReleaseYear, err = parseInt(t.Value(i, "release_year")); err != nil {
			return nil, fmt.Errorf("row %d release_year: %w", i+1, err)
		}
		if f.Duration, err = parseInt(t.Value(i, "duration")); err != nil {
			return nil, fmt.Errorf("row %d duration: %w", i+1, err)
		}
		if f.SourcePage, err = parseInt(t.Value(i, "source_page")); err != nil {
			return nil, fmt.Errorf("row %d source_page: %w", i+1, err)
		}
		if raw := strings.TrimSpace(t.Value(i, "avg_rating")); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d avg_rating: %w", i+1, err)
			}
			f.AvgRating = &v
		}
		films = append(films, f)
	}
	return films, nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// Older exports wrote whole numbers as floats ("1979.0").
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

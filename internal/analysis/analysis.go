// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis derives the analytical tables of the film club report
// from the raw export: headline metrics, per-decade counts, the most
// frequent actors, directors and writers, and country, language, studio,
// genre and theme counts.
package analysis

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/pkg/types"
)

// Analytical table names, in write order.
const (
	MainMetrics            = "main_metrics"
	MoviesPerDecade        = "movies_per_release_decade"
	PopularActors          = "popular_actors"
	PopularActorsMovies    = "popular_actors_movies"
	PopularDirectors       = "popular_directors"
	PopularDirectorsMovies = "popular_directors_movies"
	PopularWriters         = "popular_writers"
	PopularWritersMovies   = "popular_writers_movies"
	MoviesPerCountry       = "movies_per_country"
	MoviesPerLanguage      = "movies_per_language"
	MoviesPerStudio        = "movies_per_studio"
	PopularGenres          = "popular_complete_genres"
	PopularPrimaryGenres   = "popular_primary_genres"
	PopularThemes          = "popular_themes"
)

// Tables lists every analytical table.
var Tables = []string{
	MainMetrics, MoviesPerDecade,
	PopularActors, PopularActorsMovies,
	PopularDirectors, PopularDirectorsMovies,
	PopularWriters, PopularWritersMovies,
	MoviesPerCountry, MoviesPerLanguage, MoviesPerStudio,
	PopularGenres, PopularPrimaryGenres, PopularThemes,
}

// ColCount is the count column of every ranking table.
const ColCount = "movie_count"

// Thresholds: a person or studio must exceed these film counts to be listed.
const (
	minActorFilms  = 2
	minCrewFilms   = 1
	minStudioFilms = 2
)

// genreNames separates genres from themes in the genres/themes table.
var genreNames = map[string]bool{
	"Adventure": true, "Family": true, "Drama": true, "Comedy": true,
	"Fantasy": true, "Action": true, "Horror": true, "Mystery": true,
	"Thriller": true, "Science Fiction": true, "Crime": true, "Western": true,
	"Animation": true, "History": true, "Romance": true, "Music": true,
}

// Build derives every analytical table from the raw tables.
func Build(raw map[string]*export.Table) (map[string]*export.Table, error) {
	for _, name := range export.RawTables {
		if raw[name] == nil {
			return nil, fmt.Errorf("missing raw table %s", name)
		}
	}
	films, err := export.Films(raw[export.General])
	if err != nil {
		return nil, fmt.Errorf("reading films: %w", err)
	}

	out := make(map[string]*export.Table, len(Tables))
	out[MainMetrics] = mainMetrics(films)
	out[MoviesPerDecade] = moviesPerDecade(films)

	out[PopularActors], out[PopularActorsMovies] = popularPeople(
		raw[export.Cast], "", PopularActors, PopularActorsMovies, minActorFilms)
	out[PopularDirectors], out[PopularDirectorsMovies] = popularPeople(
		raw[export.Crew], "director", PopularDirectors, PopularDirectorsMovies, minCrewFilms)
	out[PopularWriters], out[PopularWritersMovies] = popularPeople(
		raw[export.Crew], "writer", PopularWriters, PopularWritersMovies, minCrewFilms)

	out[MoviesPerCountry], out[MoviesPerLanguage], out[MoviesPerStudio] = detailCounts(raw[export.Details])
	out[PopularGenres], out[PopularPrimaryGenres], out[PopularThemes] = genreCounts(raw[export.GenresThemes])
	return out, nil
}

// Write commits every analytical table to dir as one set.
func Write(dir, prefix string, tables map[string]*export.Table) ([]string, error) {
	files := make([]export.Pending, 0, len(Tables))
	paths := make([]string, 0, len(Tables))
	for _, name := range Tables {
		t, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("missing analytical table %s", name)
		}
		data, err := export.Encode(t)
		if err != nil {
			return nil, err
		}
		p := export.Path(dir, prefix, name, "")
		files = append(files, export.Pending{Path: p, Data: data})
		paths = append(paths, p)
	}
	if err := export.Commit(files); err != nil {
		return nil, err
	}
	return paths, nil
}

// Run loads the raw export, builds the analytical tables, writes them and
// lists the written files on w.
func Run(cfg types.AnalysisConfig, w io.Writer) ([]string, error) {
	raw, err := export.LoadRaw(cfg.InputDir, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	tables, err := Build(raw)
	if err != nil {
		return nil, err
	}
	paths, err := Write(cfg.OutputDir, cfg.Prefix, tables)
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(w, "Wrote analytical tables:")
	for _, p := range paths {
		fmt.Fprintf(w, "- %s\n", p)
	}
	return paths, nil
}

// --- metrics ---

func mainMetrics(films []types.Film) *export.Table {
	t := export.NewTable(MainMetrics, []string{
		"movies_watched", "minutes_watched", "hours_watched", "days_watched",
		"avg_movie_length", "name_longest_movie", "duration_longest_movie",
		"name_shortest_movie", "duration_shortest_movie",
		"avg_lbxd_rating", "best_lbxd_rating", "worst_lbxd_rating",
	})

	var minutes, timed, rated int
	var ratingSum float64
	var longest, shortest, best, worst *types.Film
	for i := range films {
		f := &films[i]
		if f.Duration > 0 {
			minutes += f.Duration
			timed++
			if longest == nil || f.Duration > longest.Duration {
				longest = f
			}
			if shortest == nil || f.Duration < shortest.Duration {
				shortest = f
			}
		}
		if f.AvgRating != nil {
			ratingSum += *f.AvgRating
			rated++
			if best == nil || *f.AvgRating > *best.AvgRating {
				best = f
			}
			if worst == nil || *f.AvgRating < *worst.AvgRating {
				worst = f
			}
		}
	}

	row := make([]string, 0, len(t.Columns))
	row = append(row, strconv.Itoa(len(films)), strconv.Itoa(minutes),
		formatFloat(float64(minutes)/60), formatFloat(float64(minutes)/60/24))
	if timed > 0 {
		row = append(row, formatFloat(float64(minutes)/float64(timed)),
			longest.ShortTitle, strconv.Itoa(longest.Duration),
			shortest.ShortTitle, strconv.Itoa(shortest.Duration))
	} else {
		row = append(row, "", "", "", "", "")
	}
	if rated > 0 {
		row = append(row, formatFloat(ratingSum/float64(rated)), best.ShortTitle, worst.ShortTitle)
	} else {
		row = append(row, "", "", "")
	}
	t.Append(row...)
	return t
}

// moviesPerDecade counts films per release decade, listing every decade
// between the earliest and latest one.
func moviesPerDecade(films []types.Film) *export.Table {
	t := export.NewTable(MoviesPerDecade, []string{"release_decade", ColCount})
	counts := make(map[int]int)
	lo, hi := 0, 0
	for _, f := range films {
		if f.ReleaseYear <= 0 {
			continue
		}
		d := f.ReleaseYear / 10 * 10
		if len(counts) == 0 || d < lo {
			lo = d
		}
		if len(counts) == 0 || d > hi {
			hi = d
		}
		counts[d]++
	}
	if len(counts) == 0 {
		return t
	}
	for d := lo; d <= hi; d += 10 {
		t.Append(strconv.Itoa(d), strconv.Itoa(counts[d]))
	}
	return t
}

// --- people ---

type personKey struct{ link, name string }

// popularPeople ranks the people of a cast or crew table by film count.
// An empty role takes every row. Only people with more than threshold
// films are kept. The companion table lists each kept person's films.
func popularPeople(src *export.Table, role, name, moviesName string, threshold int) (*export.Table, *export.Table) {
	counts := make(map[personKey]int)
	for i := range src.Rows {
		if role != "" && src.Value(i, "role") != role {
			continue
		}
		counts[personKey{src.Value(i, "link"), src.Value(i, "name")}]++
	}

	type ranked struct {
		personKey
		n int
	}
	var people []ranked
	for k, n := range counts {
		if n > threshold {
			people = append(people, ranked{k, n})
		}
	}
	sort.Slice(people, func(i, j int) bool {
		a, b := people[i], people[j]
		if a.n != b.n {
			return a.n > b.n
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.link < b.link
	})

	top := export.NewTable(name, []string{"name", ColCount, "link"})
	kept := make(map[string]bool, len(people))
	for _, p := range people {
		top.Append(p.name, strconv.Itoa(p.n), p.link)
		kept[p.name] = true
	}

	type credit struct{ name, title string }
	var credits []credit
	for i := range src.Rows {
		if role != "" && src.Value(i, "role") != role {
			continue
		}
		if n := src.Value(i, "name"); kept[n] {
			credits = append(credits, credit{n, src.Value(i, "film_title")})
		}
	}
	// Names descending, titles ascending.
	sort.SliceStable(credits, func(i, j int) bool {
		if credits[i].name != credits[j].name {
			return credits[i].name > credits[j].name
		}
		return credits[i].title < credits[j].title
	})
	movies := export.NewTable(moviesName, []string{"name", "film_title"})
	for _, c := range credits {
		movies.Append(c.name, c.title)
	}
	return top, movies
}

// --- details ---

// detailCounts counts distinct films per country, language and studio.
// Studios need more than minStudioFilms films to be listed.
func detailCounts(src *export.Table) (country, language, studio *export.Table) {
	type detail struct{ filmID, title, key, value, link string }
	seen := make(map[detail]bool)
	perLink := make(map[string]int)
	var rows []detail
	for i := range src.Rows {
		d := detail{
			filmID: src.Value(i, "film_id"),
			title:  src.Value(i, "film_title"),
			key:    src.Value(i, "key"),
			value:  src.Value(i, "value"),
			link:   src.Value(i, "link"),
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		perLink[d.link]++
		rows = append(rows, d)
	}

	byKey := map[string]map[string]int{
		string(types.DetailCountry):  {},
		string(types.DetailLanguage): {},
		string(types.DetailStudio):   {},
	}
	for _, d := range rows {
		m, ok := byKey[d.key]
		if !ok {
			continue
		}
		if n := perLink[d.link]; n > m[d.value] {
			m[d.value] = n
		}
	}

	country = rankTable(MoviesPerCountry, "country", byKey[string(types.DetailCountry)], 0)
	language = rankTable(MoviesPerLanguage, "language", byKey[string(types.DetailLanguage)], 0)
	studio = rankTable(MoviesPerStudio, "studio", byKey[string(types.DetailStudio)], minStudioFilms)
	return country, language, studio
}

// --- genres and themes ---

func genreCounts(src *export.Table) (complete, primary, themes *export.Table) {
	all := make(map[string]int)
	first := make(map[string]int)
	themeCounts := make(map[string]int)
	hasPrimary := make(map[string]bool)

	for i := range src.Rows {
		v := src.Value(i, "value")
		if !genreNames[v] {
			themeCounts[v]++
			continue
		}
		all[v]++
		film := src.Value(i, "film_id")
		if !hasPrimary[film] {
			hasPrimary[film] = true
			first[v]++
		}
	}

	complete = rankTable(PopularGenres, "genre", all, 0)
	primary = rankTable(PopularPrimaryGenres, "genre", first, 0)
	themes = rankTable(PopularThemes, "theme", themeCounts, 0)
	return complete, primary, themes
}

// rankTable lists counts above threshold, highest first, ties by label.
func rankTable(name, label string, counts map[string]int, threshold int) *export.Table {
	labels := make([]string, 0, len(counts))
	for l, n := range counts {
		if n > threshold {
			labels = append(labels, l)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := counts[labels[i]], counts[labels[j]]
		if a != b {
			return a > b
		}
		return labels[i] < labels[j]
	})
	t := export.NewTable(name, []string{label, ColCount})
	for _, l := range labels {
		t.Append(l, strconv.Itoa(counts[l]))
	}
	return t
}

// formatFloat rounds to two decimals without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}

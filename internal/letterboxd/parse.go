// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package letterboxd

import (
	"errors"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pdiddy/filmclub/pkg/types"
)

var (
	yearRe     = regexp.MustCompile(`\((\d{4})\)`)
	durationRe = regexp.MustCompile(`(\d+)\s+mins`)
	ratingRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

	stripTags = bluemonday.StripTagsPolicy()
)

// errNoFilmID marks a film page without a data-film-id attribute.
var errNoFilmID = errors.New("page has no film id")

// listLinkSelectors are tried in order; the first that yields links wins.
var listLinkSelectors = []struct{ sel, attr string }{
	{"[data-item-link]", "data-item-link"},
	{"[data-target-link]", "data-target-link"},
	{`a[href^="/film/"]`, "href"},
}

// ParseListPage returns the film links of a list page in page order and
// whether the page is the last one.
func ParseListPage(doc *goquery.Document) ([]string, bool) {
	var links []string
	for _, s := range listLinkSelectors {
		doc.Find(s.sel).Each(func(_ int, el *goquery.Selection) {
			if v := strings.TrimSpace(el.AttrOr(s.attr, "")); v != "" {
				links = append(links, v)
			}
		})
		if len(links) > 0 {
			break
		}
	}
	last := doc.Find(".paginate-nextprev a.next").Length() == 0
	return links, last
}

// ParseFilm extracts the general record and the child rows of a film page.
func ParseFilm(doc *goquery.Document) (types.FilmData, error) {
	general, err := parseGeneral(doc)
	if err != nil {
		return types.FilmData{}, err
	}
	return types.FilmData{
		General: general,
		Cast:    parseCast(doc),
		Crew:    parseCrew(doc),
		Details: parseDetails(doc),
		Genres:  parseGenres(doc),
	}, nil
}

func parseGeneral(doc *goquery.Document) (types.Film, error) {
	var f types.Film

	el := doc.Find("[data-item-link]").First()
	f.ID = el.AttrOr("data-film-id", "")
	if f.ID == "" {
		f.ID = doc.Find("[data-film-id]").First().AttrOr("data-film-id", "")
	}
	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		return f, errNoFilmID
	}

	ogURL := meta(doc, "property", "og:url")
	link := el.AttrOr("data-item-link", "")
	if link == "" {
		link = ogURL
	}
	link = filmPath(link)
	if link != "" {
		parts := strings.Split(strings.TrimRight(link, "/"), "/")
		f.Slug = parts[len(parts)-1]
	}
	f.URL = ogURL

	f.LongTitle = clean(meta(doc, "property", "og:title"))
	if h1 := doc.Find("h1.filmtitle").First(); h1.Length() > 0 {
		f.ShortTitle = clean(h1.Text())
	} else if f.LongTitle != "" {
		f.ShortTitle, _, _ = strings.Cut(f.LongTitle, " (")
	}

	twitterTitle := meta(doc, "name", "twitter:title")
	for _, s := range []string{twitterTitle, f.LongTitle} {
		if m := yearRe.FindStringSubmatch(s); m != nil {
			f.ReleaseYear, _ = strconv.Atoi(m[1])
			break
		}
	}

	footer := strings.ReplaceAll(doc.Find(".text-footer").First().Text(), "\u00a0", " ")
	if m := durationRe.FindStringSubmatch(footer); m != nil {
		f.Duration, _ = strconv.Atoi(m[1])
	}

	if m := ratingRe.FindStringSubmatch(meta(doc, "name", "twitter:data2")); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.AvgRating = &v
		}
	}

	f.IMDbURL = doc.Find(`a[data-track-action="IMDb"]`).First().AttrOr("href", "")
	f.TMDbURL = doc.Find(`a[data-track-action="TMDb"]`).First().AttrOr("href", "")
	if f.TMDbURL != "" {
		f.TMDbID = lastSegment(f.TMDbURL)
	} else if body := doc.Find("body").First(); body.AttrOr("data-tmdb-id", "") != "" {
		f.TMDbID = body.AttrOr("data-tmdb-id", "")
		f.TMDbURL = "https://www.themoviedb.org/" + body.AttrOr("data-tmdb-type", "movie") + "/" + f.TMDbID
	}
	return f, nil
}

func parseCast(doc *goquery.Document) []types.CastMember {
	var cast []types.CastMember
	doc.Find("div.cast-list a.tooltip").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		cast = append(cast, types.CastMember{
			Name:          clean(a.Text()),
			Link:          href,
			CharacterName: clean(a.AttrOr("title", "")),
		})
	})
	return cast
}

func parseCrew(doc *goquery.Document) []types.CrewMember {
	var crew []types.CrewMember
	doc.Find("#tab-crew a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		parts := strings.Split(href, "/")
		if len(parts) < 2 || parts[1] == "" {
			return
		}
		crew = append(crew, types.CrewMember{
			Name: clean(a.Text()),
			Role: parts[1],
			Link: href,
		})
	})
	return crew
}

func parseDetails(doc *goquery.Document) []types.Detail {
	var details []types.Detail
	doc.Find("#tab-details a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		details = append(details, types.Detail{
			Key:   detailKey(href),
			Value: clean(a.Text()),
			Link:  href,
		})
	})
	return details
}

func detailKey(href string) types.DetailKey {
	switch {
	case strings.Contains(href, "studio"):
		return types.DetailStudio
	case strings.Contains(href, "country"):
		return types.DetailCountry
	case strings.Contains(href, "language"):
		return types.DetailLanguage
	default:
		return types.DetailUnknown
	}
}

// parseGenres drops the trailing "Show All…" link of the genres tab.
func parseGenres(doc *goquery.Document) []string {
	var genres []string
	doc.Find("#tab-genres a").Each(func(_ int, a *goquery.Selection) {
		genres = append(genres, clean(a.Text()))
	})
	if len(genres) == 0 {
		return nil
	}
	return genres[:len(genres)-1]
}

func meta(doc *goquery.Document, attr, name string) string {
	return strings.TrimSpace(doc.Find(`meta[` + attr + `="` + name + `"]`).First().AttrOr("content", ""))
}

// filmPath reduces an absolute film URL to its site-relative path.
func filmPath(link string) string {
	if !strings.HasPrefix(link, "http") {
		return link
	}
	if _, rest, ok := strings.Cut(link, "/film/"); ok {
		return "/film/" + rest
	}
	return ""
}

func lastSegment(url string) string {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	return parts[len(parts)-1]
}

// clean strips markup from free text and collapses whitespace.
func clean(s string) string {
	s = html.UnescapeString(stripTags.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

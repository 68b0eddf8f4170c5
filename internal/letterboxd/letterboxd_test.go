// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package letterboxd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/filmclub/internal/httputil"
	"github.com/pdiddy/filmclub/pkg/types"
)

const alienPage = `<!DOCTYPE html>
<html>
<head>
<meta property="og:url" content="https://letterboxd.com/film/alien/">
<meta property="og:title" content="Alien (1979)">
<meta name="twitter:title" content="Alien (1979)">
<meta name="twitter:data2" content="4.27 out of 5">
</head>
<body data-tmdb-id="348" data-tmdb-type="movie">
<div class="film-poster" data-film-id="51612" data-item-link="/film/alien/"></div>
<h1 class="filmtitle"><span class="name">Alien</span></h1>
<div class="cast-list">
  <a class="text-slug tooltip" href="/actor/sigourney-weaver/" title="Ellen Ripley">Sigourney Weaver</a>
  <a class="text-slug tooltip" href="/actor/tom-skerritt/" title="Dallas">Tom Skerritt</a>
  <a class="text-slug" href="/actor/no-tooltip/">Ignored</a>
</div>
<div id="tab-crew">
  <a href="/director/ridley-scott/">Ridley Scott</a>
  <a href="/writer/dan-obannon/">Dan O&#39;Bannon</a>
</div>
<div id="tab-details">
  <a href="/studio/brandywine-productions/">Brandywine Productions</a>
  <a href="/films/country/uk/">UK</a>
  <a href="/films/language/english/">English</a>
  <a href="/films/other/">Other</a>
</div>
<div id="tab-genres">
  <a href="/films/genre/horror/">Horror</a>
  <a href="/films/genre/science-fiction/">Science Fiction</a>
  <a href="/film/alien/themes/">Show All…</a>
</div>
<p class="text-footer">117&nbsp;mins &nbsp; More at <a href="https://www.imdb.com/title/tt0078748/" data-track-action="IMDb">IMDb</a>
<a href="https://www.themoviedb.org/movie/348/" data-track-action="TMDb">TMDb</a></p>
</body>
</html>`

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	retry := types.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	f := httputil.NewFetcher(ts.Client(), types.HTTPConfig{}, retry, nil)
	return NewClient(f, ts.URL)
}

func doc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return d
}

func TestParseFilm(t *testing.T) {
	fd, err := ParseFilm(doc(t, alienPage))
	require.NoError(t, err)

	want := types.FilmData{
		General: types.Film{
			ID:          "51612",
			ShortTitle:  "Alien",
			LongTitle:   "Alien (1979)",
			Slug:        "alien",
			URL:         "https://letterboxd.com/film/alien/",
			IMDbURL:     "https://www.imdb.com/title/tt0078748/",
			TMDbURL:     "https://www.themoviedb.org/movie/348/",
			TMDbID:      "348",
			ReleaseYear: 1979,
			Duration:    117,
			AvgRating:   types.Float(4.27),
		},
		Cast: []types.CastMember{
			{Name: "Sigourney Weaver", Link: "/actor/sigourney-weaver/", CharacterName: "Ellen Ripley"},
			{Name: "Tom Skerritt", Link: "/actor/tom-skerritt/", CharacterName: "Dallas"},
		},
		Crew: []types.CrewMember{
			{Name: "Ridley Scott", Role: "director", Link: "/director/ridley-scott/"},
			{Name: "Dan O'Bannon", Role: "writer", Link: "/writer/dan-obannon/"},
		},
		Details: []types.Detail{
			{Key: types.DetailStudio, Value: "Brandywine Productions", Link: "/studio/brandywine-productions/"},
			{Key: types.DetailCountry, Value: "UK", Link: "/films/country/uk/"},
			{Key: types.DetailLanguage, Value: "English", Link: "/films/language/english/"},
			{Key: types.DetailUnknown, Value: "Other", Link: "/films/other/"},
		},
		Genres: []string{"Horror", "Science Fiction"},
	}
	if diff := cmp.Diff(want, fd); diff != "" {
		t.Errorf("ParseFilm mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFilm_Fallbacks(t *testing.T) {
	page := `<html><head>
<meta property="og:url" content="https://letterboxd.com/film/stalker/">
<meta property="og:title" content="Stalker (1979)">
</head><body data-tmdb-id="1398" data-tmdb-type="movie">
<div data-film-id="1001"></div>
</body></html>`

	fd, err := ParseFilm(doc(t, page))
	require.NoError(t, err)
	g := fd.General
	assert.Equal(t, "1001", g.ID)
	assert.Equal(t, "Stalker", g.ShortTitle)
	assert.Equal(t, "stalker", g.Slug)
	assert.Equal(t, 1979, g.ReleaseYear)
	assert.Equal(t, "1398", g.TMDbID)
	assert.Equal(t, "https://www.themoviedb.org/movie/1398", g.TMDbURL)
	assert.Zero(t, g.Duration)
	assert.Nil(t, g.AvgRating)
	assert.Empty(t, fd.Cast)
	assert.Empty(t, fd.Genres)
}

func TestParseFilm_NoID(t *testing.T) {
	_, err := ParseFilm(doc(t, `<html><head><meta property="og:title" content="X"></head></html>`))
	assert.ErrorIs(t, err, errNoFilmID)
}

func TestParseListPage(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		wantLinks []string
		wantLast  bool
	}{
		{
			name: "item links with next",
			page: `<div data-item-link="/film/a/"></div><div data-item-link="/film/b/"></div>
<div class="paginate-nextprev"><a class="next" href="page/2/">Next</a></div>`,
			wantLinks: []string{"/film/a/", "/film/b/"},
		},
		{
			name:      "target links fallback",
			page:      `<div data-target-link="/film/c/"></div>`,
			wantLinks: []string{"/film/c/"},
			wantLast:  true,
		},
		{
			name:      "anchor fallback",
			page:      `<a href="/film/d/">D</a><a href="/actor/x/">X</a>`,
			wantLinks: []string{"/film/d/"},
			wantLast:  true,
		},
		{
			name:     "empty",
			page:     `<p>nothing here</p>`,
			wantLast: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links, last := ParseListPage(doc(t, tt.page))
			assert.Equal(t, tt.wantLinks, links)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestClientListPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/u/list/l/page/1/":
			fmt.Fprint(w, `<div data-item-link="/film/a/"></div><div class="paginate-nextprev"><a class="next">n</a></div>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()
	c := newTestClient(t, ts)
	listURL := ts.URL + "/u/list/l"

	p1, err := c.ListPage(context.Background(), listURL, 1)
	require.NoError(t, err)
	assert.Equal(t, types.Page{Number: 1, Links: []string{"/film/a/"}}, p1)

	p2, err := c.ListPage(context.Background(), listURL, 2)
	require.NoError(t, err)
	assert.Empty(t, p2.Links)
	assert.True(t, p2.Last)

	_, err = c.ListPage(context.Background(), ts.URL+"/missing", 1)
	assert.True(t, httputil.IsNotFound(err))
}

func TestClientFilm(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/film/alien/":
			fmt.Fprint(w, alienPage)
		case "/film/broken/":
			fmt.Fprint(w, `<html><body>no id</body></html>`)
		case "/film/private/":
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer ts.Close()
	c := newTestClient(t, ts)
	ctx := context.Background()

	fd, err := c.Film(ctx, "/film/alien/")
	require.NoError(t, err)
	assert.Equal(t, "51612", fd.General.ID)

	_, err = c.Film(ctx, "/film/broken/")
	assert.True(t, types.IsSchema(err))

	atomic.StoreInt32(&calls, 0)
	_, err = c.Film(ctx, "/film/private/")
	assert.True(t, types.IsAuth(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "auth errors are not retried")
}

func TestClientURLs(t *testing.T) {
	c := NewClient(nil, "")
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, "https://letterboxd.com/someone/films/", c.ProfileURL("someone"))
	assert.Equal(t, "https://letterboxd.com/film/alien/", c.AbsURL("/film/alien/"))
	assert.Equal(t, "https://example.com/x", c.AbsURL("https://example.com/x"))
	assert.Equal(t, "https://letterboxd.com/l/page/3/", PageURL("https://letterboxd.com/l", 3))
}

func TestExtractImageURL(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "data-image wins over src",
			page: `<img class="js-tmdb-person" data-image="https://a.ltrbxd.com/p.jpg" src="/empty.png">`,
			want: "https://a.ltrbxd.com/p.jpg",
		},
		{
			name: "avatar src",
			page: `<div class="avatar person-image"><img src="https://a.ltrbxd.com/q.webp"></div>`,
			want: "https://a.ltrbxd.com/q.webp",
		},
		{
			name: "background image",
			page: `<div class="avatar person-image" style="background-image: url('https://a.ltrbxd.com/bg.png')"></div>`,
			want: "https://a.ltrbxd.com/bg.png",
		},
		{
			name: "raw data-image",
			page: `<script>var x = '<span data-image="https://a.ltrbxd.com/raw.jpg">';</script>`,
			want: "https://a.ltrbxd.com/raw.jpg",
		},
		{
			name: "tmdb url",
			page: `<script>load("https://image.tmdb.org/t/p/w185/abc.jpg")</script>`,
			want: "https://image.tmdb.org/t/p/w185/abc.jpg",
		},
		{
			name: "none",
			page: `<p>no picture</p>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractImageURL(tt.page))
		})
	}
}

func TestSavedPageName(t *testing.T) {
	assert.Equal(t, "letterboxd.com_actor_sigourney-weaver_.html", SavedPageName("/actor/sigourney-weaver/"))
}

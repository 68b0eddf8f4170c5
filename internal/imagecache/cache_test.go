// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagecache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/filmclub/internal/analysis"
	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/internal/httputil"
	"github.com/pdiddy/filmclub/internal/letterboxd"
	"github.com/pdiddy/filmclub/pkg/types"
)

// writePopular writes the three popular people tables with one person each.
func writePopular(t *testing.T, dir string) {
	t.Helper()
	people := map[string][3]string{
		analysis.PopularActors:    {"Ann Actor", "4", "/actor/ann/"},
		analysis.PopularDirectors: {"Dee Director", "3", "/director/dee/"},
		analysis.PopularWriters:   {"Wes Writer", "2", "/writer/wes/"},
	}
	var files []export.Pending
	for name, p := range people {
		tbl := export.NewTable(name, []string{"name", analysis.ColCount, "link"})
		tbl.Append(p[0], p[1], p[2])
		data, err := export.Encode(tbl)
		require.NoError(t, err)
		files = append(files, export.Pending{Path: export.Path(dir, "fc_", name, ""), Data: data})
	}
	require.NoError(t, export.Commit(files))
}

type site struct {
	*httptest.Server
	downloads int32
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	mux := http.NewServeMux()
	mux.HandleFunc("/actor/ann/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<div class="avatar person-image"><img class="js-tmdb-person" data-image="%s/img/ann.png"></div>`, s.URL)
	})
	mux.HandleFunc("/director/dee/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<p>no portrait</p>`)
	})
	mux.HandleFunc("/writer/wes/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&s.downloads, 1)
		w.Write([]byte("image-bytes"))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *site) client() *letterboxd.Client {
	retry := types.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return letterboxd.NewClient(httputil.NewFetcher(s.Client(), types.HTTPConfig{}, retry, nil), s.URL)
}

func cacheConfig(t *testing.T, s *site) types.ImageCacheConfig {
	analysisDir := t.TempDir()
	writePopular(t, analysisDir)
	return types.ImageCacheConfig{
		HTTPConfig:  types.HTTPConfig{BaseURL: s.URL},
		AnalysisDir: analysisDir,
		ImagesDir:   filepath.Join(analysisDir, "person_images"),
		Prefix:      "fc_",
	}
}

func readMapping(t *testing.T, cfg types.ImageCacheConfig) map[string][]string {
	t.Helper()
	tbl, err := export.Read(export.Path(cfg.AnalysisDir, "fc_", Table, ""), Table)
	require.NoError(t, err)
	require.Equal(t, columns, tbl.Columns)
	out := make(map[string][]string)
	for _, r := range tbl.Rows {
		out[r[1]] = r
	}
	return out
}

func TestRun(t *testing.T) {
	s := newSite(t)
	cfg := cacheConfig(t, s)

	sum, err := New(cfg, s.client(), nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{OK: 1, NoImage: 1, Errors: 1}, sum)
	assert.True(t, sum.HasFailures())

	rows := readMapping(t, cfg)
	actor := rows["actor"]
	assert.Equal(t, s.URL+"/actor/ann/", actor[3])
	assert.Equal(t, s.URL+"/img/ann.png", actor[4])
	assert.Equal(t, "person_images/actor_ann_actor.png", actor[5])
	assert.Equal(t, StatusOK, actor[6])

	data, err := os.ReadFile(filepath.Join(cfg.ImagesDir, "actor_ann_actor.png"))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))

	assert.Equal(t, StatusNoImage, rows["director"][6])
	assert.Equal(t, StatusError, rows["writer"][6])
	assert.Contains(t, rows["writer"][7], "403")
}

func TestRun_SkipsExistingUnlessForced(t *testing.T) {
	s := newSite(t)
	cfg := cacheConfig(t, s)

	_, err := New(cfg, s.client(), nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	_, err = New(cfg, s.client(), nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&s.downloads))

	cfg.Force = true
	_, err = New(cfg, s.client(), nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&s.downloads))
}

func TestRun_SavedPageFallback(t *testing.T) {
	s := newSite(t)
	cfg := cacheConfig(t, s)
	cfg.HTMLDir = t.TempDir()
	saved := fmt.Sprintf(`<img class="js-tmdb-person" data-image="%s/img/wes.webp">`, s.URL)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.HTMLDir, "letterboxd.com_writer_wes_.html"), []byte(saved), 0o644))

	sum, err := New(cfg, s.client(), nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Errors)

	rows := readMapping(t, cfg)
	assert.Equal(t, StatusOK, rows["writer"][6])
	assert.FileExists(t, filepath.Join(cfg.ImagesDir, "writer_wes_writer.webp"))
}

type fakeRenderer struct {
	pages map[string]string
	err   error
}

func (r fakeRenderer) Render(_ context.Context, url string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.pages[url], nil
}

func TestRun_Renderer(t *testing.T) {
	s := newSite(t)
	cfg := cacheConfig(t, s)
	r := fakeRenderer{pages: map[string]string{
		s.URL + "/writer/wes/": `<div class="avatar person-image" style="background-image: url('/img/wes.jpeg')"></div>`,
	}}

	sum, err := New(cfg, s.client(), r, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.OK)
	assert.Equal(t, 2, sum.NoImage)

	rows := readMapping(t, cfg)
	assert.Equal(t, s.URL+"/img/wes.jpeg", rows["writer"][4])
}

func TestRun_RendererFailure(t *testing.T) {
	s := newSite(t)
	cfg := cacheConfig(t, s)

	sum, err := New(cfg, s.client(), fakeRenderer{err: errors.New("chrome gone")}, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Errors)
}

func TestLoadPeople_MissingTables(t *testing.T) {
	_, err := LoadPeople(t.TempDir(), "fc_")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze")
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"actor_Sigourney Weaver", "actor_sigourney_weaver"},
		{"  Zoë  ", "zo"},
		{"!!!", "unknown"},
		{"writer_Dan O'Bannon", "writer_dan_o_bannon"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestNormalizeURL(t *testing.T) {
	base := "https://letterboxd.com"
	tests := []struct{ in, want string }{
		{"https://letterboxd.com/actor/x/", "https://letterboxd.com/actor/x/"},
		{"letterboxd.com/actor/x/", "https://letterboxd.com/actor/x/"},
		{"www.letterboxd.com/actor/x/", "https://www.letterboxd.com/actor/x/"},
		{"/actor/x/", "https://letterboxd.com/actor/x/"},
		{"actor/x/", "https://letterboxd.com/actor/x/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in, base), tt.in)
	}
}

func TestGuessExt(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://a.ltrbxd.com/x.PNG?v=2", ".png"},
		{"https://a.ltrbxd.com/x.jpeg", ".jpeg"},
		{"https://a.ltrbxd.com/x.webp", ".webp"},
		{"https://a.ltrbxd.com/x.gif", ".jpg"},
		{"https://a.ltrbxd.com/x", ".jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GuessExt(tt.in), tt.in)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report serves the analytical tables and cached avatars as a
// small read-only web report.
package report

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/filmclub/internal/analysis"
	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/internal/imagecache"
	"github.com/pdiddy/filmclub/pkg/types"
)

const (
	defaultAddr     = ":8080"
	defaultTitle    = "Film club"
	shutdownTimeout = 10 * time.Second
	csvSuffix       = ".csv"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"label": label,
}).ParseFS(templateFS, "templates/*.html"))

// peopleRoles maps the popular people tables to the role used in the
// image mapping.
var peopleRoles = map[string]string{
	analysis.PopularActors:    "actor",
	analysis.PopularDirectors: "director",
	analysis.PopularWriters:   "writer",
}

// Server renders the report from files on disk. Every request reads the
// current tables so a rerun of analyze shows up without a restart.
type Server struct {
	cfg   types.ReportConfig
	log   logrus.FieldLogger
	known map[string]bool
}

// New returns a Server.
func New(cfg types.ReportConfig, log logrus.FieldLogger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	known := make(map[string]bool, len(analysis.Tables)+1)
	for _, name := range analysis.Tables {
		known[name] = true
	}
	known[imagecache.Table] = true
	return &Server{cfg: cfg, log: log, known: known}
}

// Handler returns the report routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.log, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/tables/{name}", s.handleTable)
	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(s.cfg.ImagesDir))))
	r.Get("/healthz", handleHealthCheck)
	return r
}

// ListenAndServe serves the report until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Addr).Info("report server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down report server: %w", err)
	}
	return nil
}

// tableView is one table as rendered.
type tableView struct {
	Name    string
	Columns []string
	Rows    [][]string
	Missing bool

	// Images holds one image path per row, relative to the images route;
	// nil for tables without avatars.
	Images []string
}

type metric struct {
	Name  string
	Value string
}

type pageView struct {
	Title   string
	Metrics []metric
	Tables  []tableView
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	images := s.imageIndex()
	view := pageView{Title: s.cfg.Title}
	for _, name := range analysis.Tables {
		tv, err := s.load(name, images)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if name == analysis.MainMetrics {
			if !tv.Missing && len(tv.Rows) > 0 {
				for i, c := range tv.Columns {
					view.Metrics = append(view.Metrics, metric{Name: c, Value: tv.Rows[0][i]})
				}
			}
			continue
		}
		view.Tables = append(view.Tables, tv)
	}
	s.render(w, r, http.StatusOK, "index.html", view)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	download := strings.HasSuffix(name, csvSuffix)
	name = strings.TrimSuffix(name, csvSuffix)
	if !s.known[name] {
		http.NotFound(w, r)
		return
	}

	if download {
		path := export.Path(s.cfg.AnalysisDir, s.cfg.Prefix, name, "")
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
		w.Write(data)
		return
	}

	tv, err := s.load(name, s.imageIndex())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if tv.Missing {
		status = http.StatusNotFound
	}
	s.render(w, r, status, "table.html", pageView{Title: s.cfg.Title, Tables: []tableView{tv}})
}

func handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// load reads one table. A table that was never generated is returned
// with Missing set.
func (s *Server) load(name string, images map[string]string) (tableView, error) {
	t, err := export.Read(export.Path(s.cfg.AnalysisDir, s.cfg.Prefix, name, ""), name)
	if errors.Is(err, fs.ErrNotExist) {
		return tableView{Name: name, Missing: true}, nil
	}
	if err != nil {
		return tableView{}, err
	}
	tv := tableView{Name: name, Columns: t.Columns, Rows: t.Rows}

	if role, ok := peopleRoles[name]; ok && len(images) > 0 && t.Col("link") >= 0 {
		tv.Images = make([]string, len(t.Rows))
		for i := range t.Rows {
			tv.Images[i] = images[role+"|"+t.Value(i, "link")]
		}
	}
	return tv, nil
}

// imageIndex maps "<role>|<link>" to an image path under the images
// route, for every person whose image was cached.
func (s *Server) imageIndex() map[string]string {
	t, err := export.Read(export.Path(s.cfg.AnalysisDir, s.cfg.Prefix, imagecache.Table, ""), imagecache.Table)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).Warn("reading image mapping")
		}
		return nil
	}
	out := make(map[string]string, t.Len())
	for i := range t.Rows {
		if t.Value(i, "status") != imagecache.StatusOK {
			continue
		}
		abs := filepath.FromSlash(t.Value(i, "image_path"))
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.cfg.AnalysisDir, abs)
		}
		rel, err := filepath.Rel(s.cfg.ImagesDir, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		out[t.Value(i, "role")+"|"+t.Value(i, "link")] = filepath.ToSlash(rel)
	}
	return out
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, view pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, view); err != nil {
		s.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("rendering page")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("serving report")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// label turns a column or table name into a heading.
func label(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

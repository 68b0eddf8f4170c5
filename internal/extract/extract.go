// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract runs one extraction batch: it pages through a film list,
// fetches every film once, merges the batch into the prior export, and
// commits all tables and the batch manifest together.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/pkg/types"
)

// State is a step of the extraction state machine.
type State string

const (
	StateInit         State = "INIT"
	StateFetchingPage State = "FETCHING_PAGE"
	StatePageOK       State = "PAGE_OK"
	StatePageEmpty    State = "PAGE_EMPTY"
	StateRetrying     State = "RETRYING"
	StateMerging      State = "MERGING"
	StateWriting      State = "WRITING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Source yields list pages and film records.
type Source interface {
	FetchPage(ctx context.Context, n int) (types.Page, error)
	FetchFilm(ctx context.Context, link string) (types.FilmData, error)
}

// Recorder persists batch outcomes. Implementations must tolerate Finish
// being called for a batch that failed before writing.
type Recorder interface {
	Begin(ctx context.Context, m *export.Manifest) error
	Finish(ctx context.Context, m *export.Manifest, runErr error) error
}

// Result summarizes a run.
type Result struct {
	RunID    string
	State    State
	Trace    []State
	Manifest *export.Manifest
	Pages    int
	Films    int
	Added    int
	Updated  int
	Skipped  int
	Written  bool
}

// HasSkips reports whether any film was skipped for an unexpected shape.
func (r Result) HasSkips() bool {
	return r.Skipped > 0
}

// Extractor runs extraction batches against a Source.
type Extractor struct {
	cfg types.ExtractionConfig
	src Source
	log logrus.FieldLogger
	out io.Writer
	rec Recorder

	now func() time.Time
}

// New returns an Extractor. Progress lines go to w; a nil w discards them.
func New(cfg types.ExtractionConfig, src Source, log logrus.FieldLogger, w io.Writer) *Extractor {
	if w == nil {
		w = io.Discard
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if cfg.PriorDir == "" {
		cfg.PriorDir = cfg.OutDir
	}
	return &Extractor{cfg: cfg, src: src, log: log, out: w, now: time.Now}
}

// WithRecorder attaches a batch recorder.
func (e *Extractor) WithRecorder(r Recorder) *Extractor {
	e.rec = r
	return e
}

// run carries the mutable state of one batch.
type run struct {
	*Extractor
	res   Result
	log   logrus.FieldLogger
	seen  map[string]bool
	order []string
	films map[string]types.FilmData
}

func (r *run) enter(s State) {
	r.res.State = s
	r.res.Trace = append(r.res.Trace, s)
	r.log.WithField("state", s).Debug("state change")
}

// Run executes one batch. Nothing is written unless every page and film
// fetch either succeeded or was skipped as malformed; a transient failure
// that outlives the retry budget, an auth failure, or a cancelled context
// leaves every export untouched.
func (e *Extractor) Run(ctx context.Context) (Result, error) {
	runID := uuid.NewString()
	prefix := e.cfg.Prefix()
	r := &run{
		Extractor: e,
		res:       Result{RunID: runID},
		log:       e.log.WithFields(logrus.Fields{"run_id": runID, "prefix": prefix}),
		seen:      make(map[string]bool),
		films:     make(map[string]types.FilmData),
	}
	m := &export.Manifest{
		RunID:     runID,
		Source:    string(e.cfg.Source),
		Prefix:    prefix,
		Target:    e.cfg.OutDir,
		StartedAt: e.now().UTC(),
	}
	r.res.Manifest = m
	r.enter(StateInit)

	// The ledger outlives the run: a cancelled run is still recorded.
	recCtx := context.WithoutCancel(ctx)
	if e.rec != nil {
		if err := e.rec.Begin(recCtx, m); err != nil {
			r.log.WithError(err).Warn("recording batch start")
		}
	}

	err := r.execute(ctx, prefix)
	if err != nil {
		m.FinishedAt = e.now().UTC()
		m.Pages, m.Films, m.Skipped = r.res.Pages, r.res.Films, r.res.Skipped
		r.enter(StateFailed)
		r.log.WithError(err).Error("extraction failed")
	}
	if e.rec != nil {
		if recErr := e.rec.Finish(recCtx, m, err); recErr != nil {
			r.log.WithError(recErr).Warn("recording batch outcome")
		}
	}
	return r.res, err
}

func (r *run) execute(ctx context.Context, prefix string) error {
	prior, err := export.LoadRaw(r.cfg.PriorDir, prefix)
	if err != nil {
		return fmt.Errorf("loading prior export: %w", err)
	}

	if err := r.fetchAll(ctx); err != nil {
		return err
	}

	r.enter(StateMerging)
	fresh := export.NewRawTables()
	for _, id := range r.order {
		export.AppendFilm(fresh, r.films[id])
	}
	merged, stats, err := export.MergeRaw(prior, fresh)
	if err != nil {
		return fmt.Errorf("merging: %w", err)
	}
	r.res.Added = stats[export.General].Added
	r.res.Updated = stats[export.General].Replaced

	r.enter(StateWriting)
	if err := r.write(merged, prefix); err != nil {
		return err
	}
	r.res.Written = true
	r.enter(StateDone)

	fmt.Fprintf(r.out, "\nRun summary: %d films (%d added, %d updated), %d skipped, %d pages\n",
		r.res.Films, r.res.Added, r.res.Updated, r.res.Skipped, r.res.Pages)
	r.log.WithFields(logrus.Fields{
		"films": r.res.Films, "added": r.res.Added, "updated": r.res.Updated, "skipped": r.res.Skipped,
	}).Info("extraction complete")
	return nil
}

// fetchAll pages until an empty page, a page without a next link, or the
// page limit.
func (r *run) fetchAll(ctx context.Context) error {
	for n := 1; r.cfg.MaxPages <= 0 || n <= r.cfg.MaxPages; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.enter(StateFetchingPage)
		page, err := r.src.FetchPage(ctx, n)
		if err != nil {
			return r.fetchFailed(fmt.Errorf("page %d: %w", n, err))
		}
		if len(page.Links) == 0 {
			r.enter(StatePageEmpty)
			return nil
		}
		r.enter(StatePageOK)
		r.res.Pages = n
		fmt.Fprintf(r.out, "page %d: %d films\n", n, len(page.Links))

		if err := r.fetchFilms(ctx, n, page.Links); err != nil {
			return err
		}
		if page.Last {
			return nil
		}
	}
	return nil
}

func (r *run) fetchFilms(ctx context.Context, n int, links []string) error {
	log := r.log.WithField("page", n)
	for _, link := range links {
		if r.seen[link] {
			continue
		}
		r.seen[link] = true
		if err := ctx.Err(); err != nil {
			return err
		}

		fd, err := r.src.FetchFilm(ctx, link)
		if types.IsSchema(err) {
			r.res.Skipped++
			fmt.Fprintf(r.out, "skipped: %s (%v)\n", link, err)
			log.WithField("film", link).WithError(err).Warn("skipping malformed film page")
			continue
		}
		if err != nil {
			return r.fetchFailed(fmt.Errorf("film %s: %w", link, err))
		}

		fd.General.SourcePage = n
		id := fd.General.ID
		if _, dup := r.films[id]; !dup {
			r.order = append(r.order, id)
			r.res.Films++
		}
		r.films[id] = fd
		fmt.Fprintf(r.out, "extracted: %s (%s)\n", fd.General.ShortTitle, link)
		log.WithField("film", link).Debug("film extracted")
	}
	return nil
}

// fetchFailed moves through RETRYING when the error outlived the retry
// budget so the trace records it.
func (r *run) fetchFailed(err error) error {
	if types.IsTransient(err) {
		r.enter(StateRetrying)
	}
	return err
}

func (r *run) write(merged map[string]*export.Table, prefix string) error {
	m := r.res.Manifest
	m.Pages, m.Films = r.res.Pages, r.res.Films
	m.Added, m.Updated, m.Skipped = r.res.Added, r.res.Updated, r.res.Skipped

	var files []export.Pending
	m.Tables = m.Tables[:0]
	for _, name := range export.RawTables {
		data, err := export.Encode(merged[name])
		if err != nil {
			return err
		}
		p := export.Pending{Path: export.Path(r.cfg.OutDir, prefix, name, r.cfg.Suffix), Data: data}
		m.Tables = append(m.Tables, export.ManifestTable{
			Name:      name,
			File:      filepath.Base(p.Path),
			Rows:      merged[name].Len(),
			MD5:       export.MD5(data),
			Unchanged: p.Unchanged(),
		})
		files = append(files, p)
	}

	m.FinishedAt = r.now().UTC()
	data, err := m.Encode()
	if err != nil {
		return err
	}
	files = append(files, export.Pending{Path: export.ManifestPath(r.cfg.OutDir, prefix, r.cfg.Suffix), Data: data})

	if err := export.Commit(files); err != nil {
		var we *types.WriteError
		if errors.As(err, &we) {
			return err
		}
		return &types.WriteError{Path: r.cfg.OutDir, Err: err}
	}
	for _, t := range m.Tables {
		r.log.WithFields(logrus.Fields{"table": t.Name, "rows": t.Rows, "unchanged": t.Unchanged}).Info("table written")
	}
	return nil
}

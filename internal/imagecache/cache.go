// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package imagecache downloads avatar images of the most frequent actors,
// directors and writers so the report can show them offline.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/filmclub/internal/analysis"
	"github.com/pdiddy/filmclub/internal/export"
	"github.com/pdiddy/filmclub/internal/letterboxd"
	"github.com/pdiddy/filmclub/pkg/types"
)

// Table is the name of the person-to-image mapping table.
const Table = "person_images"

// Statuses of a mapping row.
const (
	StatusOK      = "ok"
	StatusNoImage = "no_image_found"
	StatusError   = "error"
)

// Selection of people per role.
const (
	topPerRole = 3
	maxPerRole = 5
)

// roles maps a role to its popular people table.
var roles = []struct{ role, table string }{
	{"actor", analysis.PopularActors},
	{"director", analysis.PopularDirectors},
	{"writer", analysis.PopularWriters},
}

var columns = []string{"name", "role", "link", "person_url", "image_url", "image_path", "status", "error_message"}

// Source fetches person pages and images.
type Source interface {
	PersonImage(ctx context.Context, personURL string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Renderer renders a page in a browser and returns its HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Person is one person whose image is cached.
type Person struct {
	Name string
	Role string
	Link string
}

// Summary counts mapping rows by status.
type Summary struct {
	OK      int
	NoImage int
	Errors  int
}

// Total returns the number of people processed.
func (s Summary) Total() int { return s.OK + s.NoImage + s.Errors }

// HasFailures reports whether any image could not be fetched.
func (s Summary) HasFailures() bool { return s.Errors > 0 }

// Cache resolves and downloads person images.
type Cache struct {
	cfg      types.ImageCacheConfig
	src      Source
	renderer Renderer
	base     string
	log      logrus.FieldLogger
	out      io.Writer
}

// New returns a Cache. A nil renderer resolves images over plain HTTP.
func New(cfg types.ImageCacheConfig, src Source, renderer Renderer, log logrus.FieldLogger, w io.Writer) *Cache {
	if w == nil {
		w = io.Discard
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	base := cfg.BaseURL
	if base == "" {
		base = letterboxd.DefaultBaseURL
	}
	return &Cache{cfg: cfg, src: src, renderer: renderer, base: strings.TrimRight(base, "/"), log: log, out: w}
}

// LoadPeople reads the popular people tables from dir and selects the top
// people of each role.
func LoadPeople(dir, prefix string) ([]Person, error) {
	var people []Person
	seen := make(map[Person]bool)
	for _, r := range roles {
		p := export.Path(dir, prefix, r.table, "")
		t, err := export.Read(p, r.table)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("missing %s; run the analyze command first", p)
		}
		if err != nil {
			return nil, err
		}
		top, err := analysis.TopPeople(t, topPerRole, maxPerRole)
		if err != nil {
			return nil, err
		}
		for _, tp := range top {
			person := Person{Name: tp.Name, Role: r.role, Link: tp.Link}
			if !seen[person] {
				seen[person] = true
				people = append(people, person)
			}
		}
	}
	return people, nil
}

// Run caches the image of every selected person and writes the mapping
// table to the analysis directory.
func (c *Cache) Run(ctx context.Context) (Summary, error) {
	people, err := LoadPeople(c.cfg.AnalysisDir, c.cfg.Prefix)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(c.cfg.ImagesDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating images directory: %w", err)
	}
	fmt.Fprintf(c.out, "Found %d people to process.\n", len(people))

	mapping := export.NewTable(Table, columns)
	var sum Summary
	for i, p := range people {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		fmt.Fprintf(c.out, "[%d/%d] %s (%s)\n", i+1, len(people), p.Name, p.Role)
		row := c.cachePerson(ctx, p)
		switch row[6] {
		case StatusOK:
			sum.OK++
		case StatusNoImage:
			sum.NoImage++
		default:
			sum.Errors++
		}
		mapping.Append(row...)
	}

	data, err := export.Encode(mapping)
	if err != nil {
		return sum, err
	}
	out := export.Path(c.cfg.AnalysisDir, c.cfg.Prefix, Table, "")
	if err := export.Commit([]export.Pending{{Path: out, Data: data}}); err != nil {
		return sum, err
	}

	fmt.Fprintf(c.out, "\nImage summary: %d ok, %d without image, %d errors (total: %d)\nWrote %s\n",
		sum.OK, sum.NoImage, sum.Errors, sum.Total(), out)
	return sum, nil
}

// cachePerson returns the mapping row of one person.
func (c *Cache) cachePerson(ctx context.Context, p Person) []string {
	personURL := NormalizeURL(p.Link, c.base)
	slug := Slugify(p.Role + "_" + p.Name)
	log := c.log.WithFields(logrus.Fields{"person": p.Name, "role": p.Role})
	row := func(imageURL, imagePath, status, msg string) []string {
		return []string{p.Name, p.Role, p.Link, personURL, imageURL, imagePath, status, msg}
	}

	imageURL, err := c.resolve(ctx, personURL, p.Link)
	if err != nil {
		log.WithError(err).Warn("resolving image")
		return row("", "", StatusError, err.Error())
	}
	if imageURL == "" {
		return row("", "", StatusNoImage, "")
	}
	imageURL = c.absURL(imageURL)

	dest := filepath.Join(c.cfg.ImagesDir, slug+GuessExt(imageURL))
	rel := dest
	if r, err := filepath.Rel(c.cfg.AnalysisDir, dest); err == nil {
		rel = filepath.ToSlash(r)
	}

	if _, statErr := os.Stat(dest); c.cfg.Force || statErr != nil {
		data, err := c.src.Download(ctx, imageURL)
		if err != nil {
			log.WithError(err).Warn("downloading image")
			return row(imageURL, rel, StatusError, err.Error())
		}
		if err := export.Commit([]export.Pending{{Path: dest, Data: data}}); err != nil {
			return row(imageURL, rel, StatusError, err.Error())
		}
		log.WithField("path", dest).Debug("image cached")
	}
	return row(imageURL, rel, StatusOK, "")
}

// resolve finds the avatar URL of a person page. A refused request falls
// back to a saved copy of the page when one exists.
func (c *Cache) resolve(ctx context.Context, personURL, link string) (string, error) {
	if c.renderer != nil {
		page, err := c.renderer.Render(ctx, personURL)
		if err != nil {
			return "", err
		}
		return letterboxd.ExtractImageURL(page), nil
	}

	imageURL, err := c.src.PersonImage(ctx, personURL)
	if err == nil {
		return imageURL, nil
	}
	var ae *types.AuthError
	if errors.As(err, &ae) && ae.Status == http.StatusForbidden && c.cfg.HTMLDir != "" {
		saved, readErr := os.ReadFile(filepath.Join(c.cfg.HTMLDir, letterboxd.SavedPageName(link)))
		if readErr == nil {
			c.log.WithField("url", personURL).Info("using saved page")
			return letterboxd.ExtractImageURL(string(saved)), nil
		}
	}
	return "", err
}

func (c *Cache) absURL(u string) string {
	switch {
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return c.base + u
	default:
		return u
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases value and joins its alphanumeric runs with "_".
func Slugify(value string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}

// NormalizeURL turns a person link into an absolute URL on base.
func NormalizeURL(link, base string) string {
	switch {
	case strings.HasPrefix(link, "http://"), strings.HasPrefix(link, "https://"):
		return link
	case strings.HasPrefix(link, "www.letterboxd.com"), strings.HasPrefix(link, "letterboxd.com"):
		return "https://" + link
	default:
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(link, "/")
	}
}

// GuessExt returns the image extension of u, defaulting to ".jpg".
func GuessExt(u string) string {
	p := u
	if parsed, err := url.Parse(u); err == nil {
		p = parsed.Path
	}
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

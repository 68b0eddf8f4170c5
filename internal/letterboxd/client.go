// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package letterboxd fetches and parses Letterboxd list pages, film pages,
// and person pages.
package letterboxd

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/filmclub/internal/httputil"
	"github.com/pdiddy/filmclub/pkg/types"
)

// DefaultBaseURL is the site root film links are resolved against.
const DefaultBaseURL = "https://letterboxd.com"

// DefaultListURL is the film club list.
const DefaultListURL = "https://letterboxd.com/dromemario/list/fff-film-fueled-friends/"

const acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Client reads Letterboxd pages through a retrying, paced fetcher.
type Client struct {
	fetch *httputil.Fetcher
	base  string
}

// NewClient returns a client resolving relative links against baseURL
// (DefaultBaseURL when empty).
func NewClient(f *httputil.Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetch: f, base: strings.TrimRight(baseURL, "/")}
}

// BaseURL returns the site root.
func (c *Client) BaseURL() string { return c.base }

// ProfileURL returns the watched-films list of a user.
func (c *Client) ProfileURL(username string) string {
	return c.base + "/" + strings.Trim(username, "/") + "/films/"
}

// AbsURL resolves a site-relative link.
func (c *Client) AbsURL(link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return c.base + "/" + strings.TrimLeft(link, "/")
}

// PageURL returns the URL of page n of a list.
func PageURL(listURL string, n int) string {
	if !strings.HasSuffix(listURL, "/") {
		listURL += "/"
	}
	return fmt.Sprintf("%spage/%d/", listURL, n)
}

// ListPage fetches page n of a list. A 404 past the first page is an
// empty last page.
func (c *Client) ListPage(ctx context.Context, listURL string, n int) (types.Page, error) {
	page := types.Page{Number: n}
	url := PageURL(listURL, n)

	body, err := c.fetch.GetBytes(ctx, url, acceptHTML)
	if err != nil {
		if n > 1 && httputil.IsNotFound(err) {
			page.Last = true
			return page, nil
		}
		return page, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page, &types.SchemaError{Source: url, Reason: fmt.Sprintf("parsing HTML: %v", err)}
	}
	page.Links, page.Last = ParseListPage(doc)
	return page, nil
}

// Film fetches and parses the page of one film.
func (c *Client) Film(ctx context.Context, link string) (types.FilmData, error) {
	url := c.AbsURL(link)
	body, err := c.fetch.GetBytes(ctx, url, acceptHTML)
	if err != nil {
		return types.FilmData{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return types.FilmData{}, &types.SchemaError{Source: url, Reason: fmt.Sprintf("parsing HTML: %v", err)}
	}
	fd, err := ParseFilm(doc)
	if err != nil {
		return types.FilmData{}, &types.SchemaError{Source: url, Reason: err.Error()}
	}
	return fd, nil
}

// PersonImage fetches a person page and returns the avatar image URL, or
// "" when the page has none.
func (c *Client) PersonImage(ctx context.Context, personURL string) (string, error) {
	body, err := c.fetch.GetBytes(ctx, personURL, acceptHTML)
	if err != nil {
		return "", err
	}
	return ExtractImageURL(string(body)), nil
}

// Download fetches a binary resource such as an image.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	return c.fetch.GetBytes(ctx, url, "image/avif,image/webp,image/*,*/*;q=0.8")
}

// ListSource pages through one list. It satisfies the extractor's source
// interface.
type ListSource struct {
	Client  *Client
	ListURL string
}

// FetchPage fetches page n of the list.
func (s ListSource) FetchPage(ctx context.Context, n int) (types.Page, error) {
	return s.Client.ListPage(ctx, s.ListURL, n)
}

// FetchFilm fetches one film of the list.
func (s ListSource) FetchFilm(ctx context.Context, link string) (types.FilmData, error) {
	return s.Client.Film(ctx, link)
}

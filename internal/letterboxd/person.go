// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package letterboxd

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var personImageSelectors = []string{
	"img.js-tmdb-person",
	"div.avatar.person-image.image-loaded img",
	"div.avatar.person-image img",
}

var (
	backgroundRe = regexp.MustCompile(`background-image:\s*url\(["']?([^"')]+)["']?\)`)
	dataImageRe  = regexp.MustCompile(`data-image\s*=\s*["']([^"']+)["']`)
	tmdbImageRe  = regexp.MustCompile(`https://image\.tmdb\.org/t/p/[^"']+`)
)

// ExtractImageURL finds the avatar image of a person page. It tries the
// known avatar elements first (data-image before src), then the avatar
// container's background image, then a raw scan for a data-image
// attribute or any TMDb image URL. It returns "" when nothing matches.
func ExtractImageURL(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		for _, sel := range personImageSelectors {
			img := doc.Find(sel).First()
			if img.Length() == 0 {
				continue
			}
			if v := img.AttrOr("data-image", ""); v != "" {
				return v
			}
			if v := img.AttrOr("src", ""); v != "" {
				return v
			}
		}
		style := doc.Find("div.avatar.person-image").First().AttrOr("style", "")
		if m := backgroundRe.FindStringSubmatch(style); m != nil {
			return m[1]
		}
	}

	if m := dataImageRe.FindStringSubmatch(page); m != nil {
		return m[1]
	}
	return tmdbImageRe.FindString(page)
}

// SavedPageName returns the file name a browser gives a saved person
// page, e.g. "letterboxd.com_actor_sigourney-weaver_.html".
func SavedPageName(link string) string {
	slug := strings.ReplaceAll(strings.Trim(link, "/"), "/", "_")
	return "letterboxd.com_" + slug + "_.html"
}

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Extract refreshes the club export in data/film_club_data.
func Extract() error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath, "extract")
}

// Verify re-extracts into suffixed tables and compares them with the
// canonical export.
func Verify() error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath, "extract", "--suffix", "_new", "--report-path", "data/film_club_data/compare_report.txt")
}

// Analyze writes the report tables to data/analysis.
func Analyze() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "analyze")
}

// Images caches avatars of the most frequent people.
func Images() error {
	mg.Deps(Analyze)
	return sh.RunV(binPath, "images")
}

// Serve starts the web report on :8080.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath, "serve")
}

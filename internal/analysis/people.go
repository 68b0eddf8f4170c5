// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pdiddy/filmclub/internal/export"
)

// Person is one row of a popular people table.
type Person struct {
	Name  string
	Link  string
	Count int
}

// TopPeople returns the topN people of a popular people table by film
// count. When people beyond topN tie with the topN-th, they are included
// as long as the total stays within maxTotal; otherwise the first maxTotal
// are returned.
func TopPeople(t *export.Table, topN, maxTotal int) ([]Person, error) {
	for _, col := range []string{"name", "link", ColCount} {
		if t.Col(col) < 0 {
			return nil, fmt.Errorf("table %s has no %s column", t.Name, col)
		}
	}
	people := make([]Person, 0, t.Len())
	for i := range t.Rows {
		n, err := strconv.Atoi(t.Value(i, ColCount))
		if err != nil {
			return nil, fmt.Errorf("table %s row %d: %w", t.Name, i+1, err)
		}
		people = append(people, Person{Name: t.Value(i, "name"), Link: t.Value(i, "link"), Count: n})
	}
	sort.SliceStable(people, func(i, j int) bool { return people[i].Count > people[j].Count })

	if len(people) <= topN {
		return people, nil
	}
	cutoff := people[topN-1].Count
	tied := 0
	for _, p := range people {
		if p.Count >= cutoff {
			tied++
		}
	}
	if tied <= maxTotal {
		return people[:tied], nil
	}
	return people[:maxTotal], nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"slices"
)

// MergeStats counts key groups by outcome.
type MergeStats struct {
	Added    int
	Replaced int
	Kept     int
}

// Merge combines a prior table with a freshly fetched one. Rows are grouped
// by the key column. Every key in refreshed (or, when refreshed is nil,
// every key present in fresh) replaces all prior rows of that key with its
// fresh rows: last write wins, and a key is never duplicated. Prior keys
// keep their position; keys new to the export follow in fresh order.
//
// Prior keys are never dropped from the general table because a refreshed
// film always has exactly one fresh general row.
func Merge(prior, fresh *Table, key string, refreshed map[string]bool) (*Table, MergeStats, error) {
	if fresh == nil {
		return nil, MergeStats{}, fmt.Errorf("merge: fresh table is nil")
	}
	if prior == nil {
		prior = NewTable(fresh.Name, fresh.Columns)
	}
	if !slices.Equal(prior.Columns, fresh.Columns) {
		return nil, MergeStats{}, fmt.Errorf("merge %s: prior columns %v differ from fresh columns %v",
			fresh.Name, prior.Columns, fresh.Columns)
	}
	kc := fresh.Col(key)
	if kc < 0 {
		return nil, MergeStats{}, fmt.Errorf("merge %s: no key column %q", fresh.Name, key)
	}

	priorOrder, priorGroups := group(prior, kc)
	freshOrder, freshGroups := group(fresh, kc)
	if refreshed == nil {
		refreshed = make(map[string]bool, len(freshOrder))
		for _, k := range freshOrder {
			refreshed[k] = true
		}
	}

	out := NewTable(fresh.Name, slices.Clone(fresh.Columns))
	var stats MergeStats
	for _, k := range priorOrder {
		if refreshed[k] {
			out.Rows = append(out.Rows, freshGroups[k]...)
			stats.Replaced++
			continue
		}
		out.Rows = append(out.Rows, priorGroups[k]...)
		stats.Kept++
	}
	for _, k := range freshOrder {
		if _, ok := priorGroups[k]; ok {
			continue
		}
		out.Rows = append(out.Rows, freshGroups[k]...)
		stats.Added++
	}
	return out, stats, nil
}

// group buckets rows by the key column, returning keys in first-seen order.
func group(t *Table, kc int) ([]string, map[string][][]string) {
	groups := make(map[string][][]string)
	var order []string
	for _, row := range t.Rows {
		k := row[kc]
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}
	return order, groups
}

// MergeRaw merges every raw table. The set of refreshed films is taken
// from the fresh general table so that a refreshed film with no cast, for
// example, also clears its stale prior cast rows.
func MergeRaw(prior, fresh map[string]*Table) (map[string]*Table, map[string]MergeStats, error) {
	refreshed := make(map[string]bool)
	for _, id := range fresh[General].Keys(ColFilmID) {
		refreshed[id] = true
	}

	merged := make(map[string]*Table, len(RawTables))
	stats := make(map[string]MergeStats, len(RawTables))
	for _, name := range RawTables {
		t, s, err := Merge(prior[name], fresh[name], KeyColumn(name), refreshed)
		if err != nil {
			return nil, nil, err
		}
		merged[name] = t
		stats[name] = s
	}
	return merged, stats, nil
}

package domain

import "sort"

// Categorize keeps the topN most frequent values and replaces the others with RestLabel.
// Empty values are missing: they are not counted and stay empty. Ties are broken by
// first appearance. A value already equal to RestLabel is never ranked, so applying
// Categorize to its own output changes nothing. topN <= 0 disables collapsing.
func Categorize(values []string, topN int) []string {
	out := make([]string, len(values))
	copy(out, values)
	if topN <= 0 {
		return out
	}

	keep := TopValues(values, topN)
	for i, v := range out {
		if v == "" || v == RestLabel {
			continue
		}
		if _, ok := keep[v]; !ok {
			out[i] = RestLabel
		}
	}
	return out
}

// TopValues returns the set of the n most frequent non-empty values other than RestLabel.
func TopValues(values []string, n int) map[string]struct{} {
	type entry struct {
		value string
		count int
		first int
	}
	index := make(map[string]int)
	var entries []entry
	for i, v := range values {
		if v == "" || v == RestLabel {
			continue
		}
		pos, ok := index[v]
		if !ok {
			index[v] = len(entries)
			entries = append(entries, entry{value: v, first: i})
			pos = len(entries) - 1
		}
		entries[pos].count++
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].first < entries[j].first
	})
	if n > len(entries) {
		n = len(entries)
	}
	top := make(map[string]struct{}, n)
	for _, e := range entries[:n] {
		top[e.value] = struct{}{}
	}
	return top
}

// CategorizeProviders returns a copy of t whose ProviderBucket is recomputed over t itself.
func CategorizeProviders(t Table, topN int) Table {
	return t.withProviderBuckets(Categorize(t.Providers(), topN))
}

package domain

import (
	"slices"
	"strings"
)

// MergeCategories unions server categories with those seen on tasks, sorted.
// Comparison is case-sensitive; blank names are dropped.
func MergeCategories(server []string, tasks []Task) []string {
	seen := make(map[string]struct{}, len(server)+len(tasks))
	out := make([]string, 0, len(server)+len(tasks))
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, name := range server {
		add(name)
	}
	for _, task := range tasks {
		add(task.Category)
	}
	slices.Sort(out)
	return out
}

// SelectPreserved keeps previous when options still contains it, else fallback.
func SelectPreserved(options []string, previous, fallback string) string {
	if previous != "" && slices.Contains(options, previous) {
		return previous
	}
	return fallback
}

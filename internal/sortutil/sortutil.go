// Package sortutil defines the canonical file order shared by the collector,
// the writer and the reports.
package sortutil

import (
	"path/filepath"
	"sort"
	"strings"
)

// StablePathSort returns a new slice containing the input paths sorted
// lexicographically. The original slice is not modified.
func StablePathSort(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}

// RelKey returns abs relative to root with forward slashes. Paths outside
// root fall back to the slash form of abs itself.
func RelKey(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(abs)
	}
	return rel
}

// UniqueByRel drops repeated paths and orders the rest by RelKey.
func UniqueByRel(root string, paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return RelKey(root, out[i]) < RelKey(root, out[j])
	})
	return out
}

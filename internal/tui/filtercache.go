package tui

import (
	"sort"
	"strings"
)

// Filter index growth limits. The index starts at the initial size and
// grows by the step until a match appears, the scan finishes, or the hard
// cap is hit.
const (
	filterIndexInitialEntries = 50_000
	filterIndexStep           = 50_000
	filterIndexMaxEntries     = 200_000
)

// unmanagedFilterCache is an incrementally grown breadth-first index over
// the unmanaged tree. It lets leaf-name filtering see deep paths without an
// eager full recursive walk; the frontier holds directories not yet
// descended into.
type unmanagedFilterCache struct {
	entries      []string
	seen         map[string]struct{}
	frontier     []string
	initialized  bool
	scanComplete bool
}

// filterSourcePaths returns the candidate paths for filtered unmanaged
// rendering, growing the index as needed for the query.
func (m *Model) filterSourcePaths(query string) []string {
	return m.filterSourcePathsWithLimits(query, filterIndexInitialEntries, filterIndexStep, filterIndexMaxEntries)
}

func (m *Model) filterSourcePathsWithLimits(query string, initialLimit, step, maxLimit int) []string {
	initial := initialLimit
	if initial > maxLimit {
		initial = maxLimit
	}
	if initial < 1 {
		initial = 1
	}
	m.scanFilterIndexTo(initial)

	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return append([]string(nil), m.filterCache.entries...)
	}

	limit := initial
	for !m.filterCache.scanComplete && !m.filterIndexHasMatch(normalized) && limit < maxLimit {
		limit += step
		if limit > maxLimit {
			limit = maxLimit
		}
		m.scanFilterIndexTo(limit)
	}

	return append([]string(nil), m.filterCache.entries...)
}

func (m *Model) filterIndexHasMatch(query string) bool {
	for _, p := range m.filterCache.entries {
		if strings.Contains(strings.ToLower(p), query) {
			return true
		}
	}
	return false
}

// scanFilterIndexTo grows the index breadth first until it holds limit
// entries or the frontier empties.
func (m *Model) scanFilterIndexTo(limit int) {
	m.ensureFilterIndexSeeded()
	if m.filterCache.scanComplete {
		return
	}

	for len(m.filterCache.entries) < limit {
		if len(m.filterCache.frontier) == 0 {
			m.filterCache.scanComplete = true
			break
		}
		p := m.filterCache.frontier[0]
		m.filterCache.frontier = m.filterCache.frontier[1:]

		if _, dup := m.filterCache.seen[p]; dup {
			continue
		}
		m.filterCache.seen[p] = struct{}{}
		m.filterCache.entries = append(m.filterCache.entries, p)

		if m.pathDirStateForView(p, viewUnmanaged).CanExpand {
			m.filterCache.frontier = append(m.filterCache.frontier, m.readChildren(p)...)
		}
	}

	if len(m.filterCache.frontier) == 0 {
		m.filterCache.scanComplete = true
	}
}

// ensureFilterIndexSeeded fills the frontier with the visible unmanaged
// roots. A "." placeholder is replaced by the working directory's children.
func (m *Model) ensureFilterIndexSeeded() {
	if m.filterCache.initialized {
		return
	}

	var roots []string
	hasDot := false
	for _, p := range m.unmanagedEntries {
		if !m.isVisibleInUnmanagedView(p) {
			continue
		}
		if p == "." {
			hasDot = true
			continue
		}
		roots = append(roots, p)
	}
	if hasDot {
		roots = append(roots, m.readChildren(".")...)
	}
	sort.Strings(roots)

	m.filterCache.seen = make(map[string]struct{})
	m.filterCache.frontier = roots
	m.filterCache.initialized = true
	if len(m.filterCache.frontier) == 0 {
		m.filterCache.scanComplete = true
	}
}

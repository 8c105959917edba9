package tui

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildIndexFixture lays out two top-level directories with one nested
// level so breadth-first ordering is observable.
func buildIndexFixture(t *testing.T) Model {
	t.Helper()
	working := t.TempDir()
	writeFile(t, filepath.Join(working, "a", "aa.txt"))
	writeFile(t, filepath.Join(working, "a", "sub", "deep.txt"))
	writeFile(t, filepath.Join(working, "b", "bb.txt"))

	return NewBuilder(t).
		WithWorkingDir(working).
		WithUnmanaged("a", "b").
		WithView(viewUnmanaged).
		Build()
}

func TestFilterIndexScansBreadthFirst(t *testing.T) {
	m := buildIndexFixture(t)

	got := m.filterSourcePathsWithLimits("", 3, 1, 100)

	// Both roots come before any of their children.
	want := []string{"a", "b", "a/aa.txt"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("breadth-first prefix mismatch (-want +got):\n%s", diff)
	}
	if m.filterCache.scanComplete {
		t.Error("scan reported complete with frontier remaining")
	}
}

func TestFilterIndexScanIsIdempotent(t *testing.T) {
	m := buildIndexFixture(t)

	first := m.filterSourcePathsWithLimits("", 3, 1, 100)
	second := m.filterSourcePathsWithLimits("", 3, 1, 100)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated scan at the same limit changed entries (-first +second):\n%s", diff)
	}
	if got := len(m.filterCache.entries); got != len(first) {
		t.Errorf("cached entries = %d after rescan, want %d", got, len(first))
	}
}

func TestFilterIndexGrowsUntilMatch(t *testing.T) {
	m := buildIndexFixture(t)

	got := m.filterSourcePathsWithLimits("deep", 2, 2, 100)

	found := false
	for _, p := range got {
		if p == "a/sub/deep.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("index never grew to the match, entries: %v", got)
	}
	if !m.filterCache.scanComplete {
		t.Error("scan should be complete after exhausting the frontier")
	}
}

func TestFilterIndexStopsAtHardCap(t *testing.T) {
	m := buildIndexFixture(t)

	got := m.filterSourcePathsWithLimits("no-such-name", 1, 1, 2)

	if len(got) != 2 {
		t.Errorf("entries = %d, want the hard cap of 2", len(got))
	}
	if m.filterCache.scanComplete {
		t.Error("scan reported complete though the cap stopped it")
	}
}

func TestFilterIndexEmptyQueryDoesNotGrow(t *testing.T) {
	m := buildIndexFixture(t)

	got := m.filterSourcePathsWithLimits("", 2, 1, 100)
	if len(got) != 2 {
		t.Errorf("entries = %d, want 2 for the empty query", len(got))
	}
}

func TestFilterIndexSkipsExcludedRoots(t *testing.T) {
	working := t.TempDir()
	writeFile(t, filepath.Join(working, "tmp", "scratch.txt"))
	writeFile(t, filepath.Join(working, "keep", "file.txt"))

	m := NewBuilder(t).
		WithWorkingDir(working).
		WithUnmanaged("tmp", "keep").
		WithView(viewUnmanaged).
		Build()

	got := m.filterSourcePathsWithLimits("", 100, 100, 1000)

	want := []string{"keep", "keep/file.txt"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("excluded root leaked into the index (-want +got):\n%s", diff)
	}
}

func TestFilterIndexSeedsDotPlaceholderFromWorkingDir(t *testing.T) {
	working := t.TempDir()
	writeFile(t, filepath.Join(working, "z.txt"))
	writeFile(t, filepath.Join(working, "a.txt"))

	m := NewBuilder(t).
		WithWorkingDir(working).
		WithUnmanaged(".").
		WithView(viewUnmanaged).
		Build()

	got := m.filterSourcePathsWithLimits("", 10, 10, 100)

	want := []string{"a.txt", "z.txt"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dot seeding mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshInvalidatesFilterIndex(t *testing.T) {
	m := buildIndexFixture(t)

	m.filterSourcePathsWithLimits("", 100, 100, 1000)
	if !m.filterCache.initialized {
		t.Fatal("index not initialized after a scan")
	}

	m.applyRefreshEntries(nil, nil, []string{"a"})
	if m.filterCache.initialized {
		t.Error("index survived a refresh")
	}
}

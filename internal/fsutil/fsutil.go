// Package fsutil provides the file-system primitives the session core
// builds trees from: entry classification, child listing, exclusion
// matching, and capped file previews.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
)

// State classifies one tree entry. Symlinks are never followed for
// expansion: a symlink to a directory is shown as a directory that cannot
// be expanded.
type State struct {
	IsDir     bool
	CanExpand bool
	IsSymlink bool
}

// Classify inspects path without following symlinks. Stat failures yield
// the zero State; the entry still renders as a plain leaf.
func Classify(absPath string) State {
	info, err := os.Lstat(absPath)
	if err != nil {
		return State{}
	}
	if info.IsDir() {
		return State{IsDir: true, CanExpand: true}
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(absPath)
		if err == nil && target.IsDir() {
			return State{IsDir: true, IsSymlink: true}
		}
		return State{IsSymlink: true}
	}
	return State{}
}

// ChildNames lists the immediate children of dir, sorted by name. A
// directory that cannot be read produces no children rather than an error;
// the tree simply omits it.
func ChildNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

// defaultExcludePrefixes hides well-known cache and scratch directories
// from the unmanaged view.
var defaultExcludePrefixes = []string{
	".cache",
	".vscode-server",
	".npm",
	".cargo/registry",
	".cargo/git",
	"tmp",
}

// ExcludeSet matches relative paths against a list of normalized path
// prefixes, whole components only: "tmp" excludes tmp/file.txt but not
// template/file.txt.
type ExcludeSet struct {
	prefixes []string
}

// NewExcludeSet combines the built-in prefixes with extra operator-supplied
// entries. Entries normalizing to "." are dropped.
func NewExcludeSet(extra []string) *ExcludeSet {
	var prefixes []string
	for _, entry := range append(append([]string{}, defaultExcludePrefixes...), extra...) {
		if normalized := NormalizeMatchPath(entry); normalized != "." {
			prefixes = append(prefixes, normalized)
		}
	}
	return &ExcludeSet{prefixes: prefixes}
}

// Match reports whether relPath falls under any exclusion prefix.
func (s *ExcludeSet) Match(relPath string) bool {
	normalized := NormalizeMatchPath(relPath)
	for _, prefix := range s.prefixes {
		if normalized == prefix || strings.HasPrefix(normalized, prefix+"/") {
			return true
		}
	}
	return false
}

// NormalizeMatchPath canonicalizes a path for prefix matching: separators
// become "/", leading "./" and "/" and any trailing "/" are stripped.
// An empty result becomes ".".
func NormalizeMatchPath(p string) string {
	normalized := strings.ReplaceAll(p, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.TrimPrefix(normalized, "/")
	normalized = strings.TrimSuffix(normalized, "/")
	if normalized == "" {
		return "."
	}
	return normalized
}

// Leaf returns the final path component used for filter matching.
func Leaf(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}

const (
	previewMaxBytes          = 64 * 1024
	previewBinarySampleBytes = 4096
)

// Preview reads a capped portion of the file at absPath for display.
// Directories, symlinks, and binary content produce sentinel messages
// instead of file bytes; oversized files are truncated with a marker.
func Preview(absPath string) (string, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		return "", fmt.Errorf("preview target metadata failed: %s: %w", absPath, err)
	}

	if info.IsDir() {
		return "This is a directory. Expand it and select a file inside.", nil
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(absPath)
		switch {
		case err == nil && target.IsDir():
			return "This is a directory symlink. Directory links are shown but not expanded by default.", nil
		case err == nil:
			// symlink to a regular file, previewed below
		case errors.Is(err, os.ErrNotExist):
			return "Cannot preview broken symlink.", nil
		default:
			return "", fmt.Errorf("failed to inspect symlink target: %s: %w", absPath, err)
		}
	}

	f, err := os.Open(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read: %s: %w", absPath, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, previewMaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read: %s: %w", absPath, err)
	}

	sampleLen := len(raw)
	if sampleLen > previewBinarySampleBytes {
		sampleLen = previewBinarySampleBytes
	}
	for _, b := range raw[:sampleLen] {
		if b == 0 {
			return "Cannot preview binary file.", nil
		}
	}

	truncated := len(raw) > previewMaxBytes
	if truncated {
		raw = raw[:previewMaxBytes]
	}

	text := strings.ToValidUTF8(string(raw), "�")
	if truncated {
		size := info.Size()
		if resolved, err := os.Stat(absPath); err == nil {
			size = resolved.Size()
		}
		text += fmt.Sprintf("\n\n--- preview truncated at %d bytes (file size: %d bytes) ---",
			previewMaxBytes, size)
	}
	return text, nil
}

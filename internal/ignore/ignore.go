// Package ignore builds engine ignore patterns and appends them to the
// source directory's ignore file.
package ignore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects the path-pattern strategy for an ignore rule.
type Mode int

const (
	// ModeAuto ignores a file exactly and a directory recursively.
	ModeAuto Mode = iota
	// ModeExact ignores the path itself only.
	ModeExact
	// ModeChildren ignores a directory's immediate children.
	ModeChildren
	// ModeRecursive ignores a directory and everything beneath it.
	ModeRecursive
	// ModeGlobalName ignores the basename everywhere under home.
	ModeGlobalName
)

// Modes lists every mode in menu order.
var Modes = []Mode{ModeAuto, ModeExact, ModeChildren, ModeRecursive, ModeGlobalName}

func (m Mode) Tag() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeExact:
		return "exact"
	case ModeChildren:
		return "children"
	case ModeRecursive:
		return "recursive"
	case ModeGlobalName:
		return "global-name"
	default:
		return "auto"
	}
}

func (m Mode) Description() string {
	switch m {
	case ModeAuto:
		return "file exactly, directory recursively"
	case ModeExact:
		return "this path only"
	case ModeChildren:
		return "direct children of the directory"
	case ModeRecursive:
		return "directory and everything below"
	case ModeGlobalName:
		return "this name anywhere under home"
	default:
		return ""
	}
}

// ModeFromTag parses a mode tag; unknown tags report ok=false.
func ModeFromTag(tag string) (Mode, bool) {
	for _, m := range Modes {
		if m.Tag() == tag {
			return m, true
		}
	}
	return ModeAuto, false
}

// ModeFromIndex returns the mode at the menu index, defaulting to auto.
func ModeFromIndex(index int) Mode {
	if index < 0 || index >= len(Modes) {
		return ModeAuto
	}
	return Modes[index]
}

// Apply stats target, builds the pattern for mode, and appends it uniquely
// to sourceDir's ignore file. It returns the pattern and whether it was
// already present.
func Apply(target, homeDir, sourceDir string, mode Mode) (pattern string, existed bool, err error) {
	info, err := os.Lstat(target)
	if err != nil {
		return "", false, fmt.Errorf("failed to stat ignore target: %s: %w", target, err)
	}

	pattern, err = BuildPattern(target, info.IsDir(), homeDir, mode)
	if err != nil {
		return "", false, err
	}

	existed, err = AppendUniqueLine(IgnoreFilePath(sourceDir), pattern)
	if err != nil {
		return "", false, err
	}
	return pattern, existed, nil
}

// IgnoreFilePath returns the ignore file location inside the engine's
// source directory.
func IgnoreFilePath(sourceDir string) string {
	return filepath.Join(sourceDir, ".chezmoiignore")
}

// EnsureIgnoreFile creates the ignore file and its parent directories if
// missing, returning the file's path. Editors on some platforms refuse to
// open a path whose directory does not exist.
func EnsureIgnoreFile(sourceDir string) (string, error) {
	path := IgnoreFilePath(sourceDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// BuildPattern derives the ignore pattern for target. Except in global-name
// mode, the target must live under homeDir since patterns are matched
// home-relative.
func BuildPattern(target string, isDir bool, homeDir string, mode Mode) (string, error) {
	if mode == ModeGlobalName {
		name := filepath.Base(target)
		if name == "." || name == string(filepath.Separator) || name == "" {
			return "", fmt.Errorf("cannot infer ignore name from target: %s", target)
		}
		escaped := escapeGlobComponent(name)
		if isDir {
			return "**/" + escaped + "/**", nil
		}
		return "**/" + escaped, nil
	}

	rel, err := filepath.Rel(homeDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("ignore target is outside home directory: target=%s home=%s", target, homeDir)
	}

	pattern := normalizeIgnorePath(rel)
	if pattern == "" || pattern == "." {
		return "", errors.New("ignore target resolved to an empty pattern")
	}

	var suffix string
	switch mode {
	case ModeAuto, ModeRecursive:
		if isDir {
			suffix = "/**"
		}
	case ModeChildren:
		if isDir {
			suffix = "/*"
		}
	}

	if suffix != "" {
		pattern = strings.TrimRight(pattern, "/") + suffix
	}
	return pattern, nil
}

func normalizeIgnorePath(p string) string {
	normalized := strings.ReplaceAll(p, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.TrimPrefix(normalized, "/")
	return normalized
}

func escapeGlobComponent(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, ch := range name {
		switch ch {
		case '\\', '/', '*', '?', '[', ']', '{', '}', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// AppendUniqueLine appends line to the file at path unless an identical
// line (after trimming) is already present. It reports whether the line
// already existed, creating the file and parent directories as needed.
func AppendUniqueLine(path, line string) (bool, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content := string(existing)
	for _, entry := range strings.Split(content, "\n") {
		if strings.TrimSpace(entry) == line {
			return true, nil
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	defer f.Close()

	var out strings.Builder
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		out.WriteByte('\n')
	}
	out.WriteString(line)
	out.WriteByte('\n')
	if _, err := f.WriteString(out.String()); err != nil {
		return false, fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return false, nil
}

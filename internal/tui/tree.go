package tui

import (
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chezmui/chezmui/internal/fsutil"
)

// rebuildVisibleEntries rebuilds the left pane, keeping the current
// selection's path selected when it survives the rebuild.
func (m *Model) rebuildVisibleEntries() {
	m.rebuildVisibleEntriesWithSelection(m.selectedPath())
}

func (m *Model) rebuildVisibleEntriesReset() {
	m.rebuildVisibleEntriesWithSelection("")
}

// rebuildVisibleEntriesWithSelection rebuilds the visible list, drops marks
// on paths that are no longer visible, and re-finds preferred (or the
// previous selection) by path. Falls back to clamping the index.
func (m *Model) rebuildVisibleEntriesWithSelection(preferred string) {
	previous := preferred
	if previous == "" {
		previous = m.selectedPath()
	}

	if strings.TrimSpace(m.listFilter) != "" {
		m.visibleEntries = m.buildFilteredVisibleEntries()
	} else {
		m.visibleEntries = m.buildUnfilteredVisibleEntries()
	}

	visible := make(map[string]struct{}, len(m.visibleEntries))
	for _, entry := range m.visibleEntries {
		visible[entry.path] = struct{}{}
	}
	for marked := range m.markedEntries {
		if _, ok := visible[marked]; !ok {
			delete(m.markedEntries, marked)
		}
	}

	if previous != "" {
		for i, entry := range m.visibleEntries {
			if entry.path == previous {
				m.selectedIndex = i
				return
			}
		}
	}
	m.syncSelectionBounds()
}

func (m *Model) buildUnfilteredVisibleEntries() []visibleEntry {
	switch m.view {
	case viewUnmanaged:
		return m.buildUnmanagedEntries()
	case viewManaged:
		return m.buildManagedEntries()
	default:
		return m.buildStatusEntries()
	}
}

// buildStatusEntries renders the status list flat: one row per reported
// path, no tree metadata.
func (m *Model) buildStatusEntries() []visibleEntry {
	seen := make(map[string]struct{})
	var entries []visibleEntry
	for _, status := range m.statusEntries {
		if _, dup := seen[status.Path]; dup {
			continue
		}
		seen[status.Path] = struct{}{}
		entries = append(entries, visibleEntry{
			path:  status.Path,
			isDir: m.pathIsDirectory(status.Path),
		})
	}
	return entries
}

// buildUnmanagedEntries walks the visible unmanaged roots depth first with
// an explicit stack, descending only into expanded directories.
func (m *Model) buildUnmanagedEntries() []visibleEntry {
	type frame struct {
		path  string
		depth int
	}

	roots := m.basePathsForView()
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{path: roots[i]})
	}

	seen := make(map[string]struct{})
	var entries []visibleEntry
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := seen[top.path]; dup {
			continue
		}
		seen[top.path] = struct{}{}

		state := m.pathDirStateForView(top.path, m.view)
		entries = append(entries, visibleEntry{
			path:      top.path,
			depth:     top.depth,
			isDir:     state.IsDir,
			canExpand: state.CanExpand,
			isSymlink: state.IsSymlink,
		})

		if !state.CanExpand {
			continue
		}
		if _, expanded := m.expandedDirs[top.path]; !expanded {
			continue
		}
		children := m.readChildren(top.path)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{path: children[i], depth: top.depth + 1})
		}
	}
	return entries
}

// buildManagedEntries synthesizes the managed hierarchy: every managed path
// plus all of its ancestors become nodes, emitted depth first and gated on
// expansion.
func (m *Model) buildManagedEntries() []visibleEntry {
	nodes := make(map[string]struct{})
	for _, managed := range m.managedEntries {
		if managed == "" {
			continue
		}
		for current := managed; current != ""; current = parentPath(current) {
			nodes[current] = struct{}{}
		}
	}
	if len(nodes) == 0 {
		return nil
	}

	children, roots := buildChildrenIndex(nodes)

	type frame struct {
		path  string
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{path: roots[i]})
	}

	seen := make(map[string]struct{})
	var entries []visibleEntry
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := seen[top.path]; dup {
			continue
		}
		seen[top.path] = struct{}{}

		childPaths := children[top.path]
		state := m.dirStateWithBase(top.path, m.homeDir)
		isDir := len(childPaths) > 0 || state.IsDir
		canExpand := len(childPaths) > 0 || state.CanExpand
		entries = append(entries, visibleEntry{
			path:      top.path,
			depth:     top.depth,
			isDir:     isDir,
			canExpand: canExpand,
			isSymlink: state.IsSymlink,
		})

		if !canExpand {
			continue
		}
		if _, expanded := m.expandedDirs[top.path]; !expanded {
			continue
		}
		for i := len(childPaths) - 1; i >= 0; i-- {
			stack = append(stack, frame{path: childPaths[i], depth: top.depth + 1})
		}
	}
	return entries
}

func (m *Model) buildFilteredVisibleEntries() []visibleEntry {
	query := strings.ToLower(strings.TrimSpace(m.listFilter))
	switch m.view {
	case viewStatus:
		return m.buildFilteredStatusEntries(query)
	case viewManaged:
		var source []string
		for _, managed := range m.managedEntries {
			if managed != "" {
				source = append(source, managed)
			}
		}
		return m.buildFilteredTreeEntries(source, query)
	default:
		return m.buildFilteredTreeEntries(m.filterSourcePaths(query), query)
	}
}

// buildFilteredStatusEntries matches the filter against the full path, not
// just the leaf, because status rows render full paths.
func (m *Model) buildFilteredStatusEntries(query string) []visibleEntry {
	var entries []visibleEntry
	for _, status := range m.statusEntries {
		if query != "" && !strings.Contains(strings.ToLower(status.Path), query) {
			continue
		}
		entries = append(entries, visibleEntry{
			path:  status.Path,
			isDir: m.pathIsDirectory(status.Path),
		})
	}
	return entries
}

// buildFilteredTreeEntries keeps every source path whose leaf name contains
// the query, plus all ancestors of each match, and renders the resulting
// connected sub-trees fully expanded.
func (m *Model) buildFilteredTreeEntries(sourcePaths []string, query string) []visibleEntry {
	if query == "" {
		return nil
	}

	keep := make(map[string]struct{})
	for _, p := range sourcePaths {
		if treeEntryNameMatchesQuery(p, query) {
			keep[p] = struct{}{}
		}
	}
	if len(keep) == 0 {
		return nil
	}

	for p := range keep {
		for ancestor := parentPath(p); ancestor != ""; ancestor = parentPath(ancestor) {
			keep[ancestor] = struct{}{}
		}
	}

	return m.buildTreeEntriesFromPaths(keep)
}

// treeEntryNameMatchesQuery matches the leaf name case-insensitively,
// falling back to the full path for nameless paths.
func treeEntryNameMatchesQuery(p, query string) bool {
	name := fsutil.Leaf(p)
	if name == "." || name == "/" || name == "" {
		name = p
	}
	return strings.Contains(strings.ToLower(name), query)
}

// buildTreeEntriesFromPaths emits the node set as a fully expanded tree. A
// node with children in the set renders as an expandable directory even
// when the filesystem no longer agrees.
func (m *Model) buildTreeEntriesFromPaths(nodes map[string]struct{}) []visibleEntry {
	if len(nodes) == 0 {
		return nil
	}

	children, roots := buildChildrenIndex(nodes)

	type frame struct {
		path  string
		depth int
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{path: roots[i]})
	}

	var entries []visibleEntry
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		childPaths := children[top.path]
		state := m.pathDirStateForView(top.path, m.view)
		entries = append(entries, visibleEntry{
			path:      top.path,
			depth:     top.depth,
			isDir:     len(childPaths) > 0 || state.IsDir,
			canExpand: len(childPaths) > 0 || state.CanExpand,
			isSymlink: state.IsSymlink,
		})

		for i := len(childPaths) - 1; i >= 0; i-- {
			stack = append(stack, frame{path: childPaths[i], depth: top.depth + 1})
		}
	}
	return entries
}

// buildChildrenIndex splits a node set into a parent-to-children map and
// the sorted list of roots (nodes whose parent is not in the set).
func buildChildrenIndex(nodes map[string]struct{}) (map[string][]string, []string) {
	children := make(map[string][]string)
	var roots []string
	for node := range nodes {
		parent := parentPath(node)
		if parent != "" {
			if _, ok := nodes[parent]; ok {
				children[parent] = append(children[parent], node)
				continue
			}
		}
		roots = append(roots, node)
	}
	for _, siblings := range children {
		sort.Strings(siblings)
	}
	sort.Strings(roots)
	return children, roots
}

// basePathsForView returns the depth-zero paths for the current view. For
// the unmanaged view a bare "." placeholder from the engine is replaced by
// the working directory's direct children.
func (m *Model) basePathsForView() []string {
	switch m.view {
	case viewStatus:
		paths := make([]string, 0, len(m.statusEntries))
		for _, status := range m.statusEntries {
			paths = append(paths, status.Path)
		}
		return paths
	case viewManaged:
		return append([]string(nil), m.managedEntries...)
	default:
		var paths []string
		hasDot := false
		for _, p := range m.unmanagedEntries {
			if !m.isVisibleInUnmanagedView(p) {
				continue
			}
			if p == "." {
				hasDot = true
			}
			paths = append(paths, p)
		}
		if hasDot {
			return m.readChildren(".")
		}
		return paths
	}
}

// readChildren lists a directory's visible children as view-relative paths,
// sorted by name. Children of "." lose the leading "./".
func (m *Model) readChildren(parent string) []string {
	abs := m.resolveWithBase(parent, m.workingDir)
	names := fsutil.ChildNames(abs)
	children := make([]string, 0, len(names))
	for _, name := range names {
		var child string
		if parent == "." {
			child = name
		} else {
			child = path.Join(parent, name)
		}
		if m.isVisibleInUnmanagedView(child) {
			children = append(children, child)
		}
	}
	sort.Strings(children)
	return children
}

func (m *Model) managedAbsolutePath(managed string) string {
	return m.resolveWithBase(managed, m.homeDir)
}

func (m *Model) isAbsolutePathManaged(abs string) bool {
	for _, managed := range m.managedEntries {
		if m.managedAbsolutePath(managed) == abs {
			return true
		}
	}
	return false
}

// isExactManagedPathInWorkingDir hides managed files from the unmanaged
// tree: a managed path under the working directory that resolves exactly to
// abs excludes it.
func (m *Model) isExactManagedPathInWorkingDir(abs string) bool {
	for _, managed := range m.managedEntries {
		managedAbs := m.managedAbsolutePath(managed)
		if strings.HasPrefix(managedAbs, strings.TrimSuffix(m.workingDir, string(filepath.Separator))+string(filepath.Separator)) || managedAbs == m.workingDir {
			if managedAbs == abs {
				return true
			}
		}
	}
	return false
}

func (m *Model) isVisibleInUnmanagedView(p string) bool {
	return !m.isExcludedUnmanagedPath(p)
}

func (m *Model) isExcludedUnmanagedPath(p string) bool {
	abs := m.resolveWithBase(p, m.workingDir)
	if m.isExactManagedPathInWorkingDir(abs) {
		return true
	}
	return m.excludes.Match(m.normalizeUnmanagedRelativePath(p))
}

// normalizeUnmanagedRelativePath strips the working directory prefix from
// absolute paths so exclusion prefixes match either form.
func (m *Model) normalizeUnmanagedRelativePath(p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(m.workingDir, p); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			p = rel
		}
	}
	return fsutil.NormalizeMatchPath(p)
}

// formatVisibleEntry renders one list row. Status rows show the two change
// symbols; tree rows show indentation, the mark column, and an expansion
// marker.
func (m *Model) formatVisibleEntry(entry visibleEntry) string {
	_, marked := m.markedEntries[entry.path]

	var b strings.Builder
	if m.view == viewStatus {
		if marked {
			b.WriteString("* ")
		} else {
			b.WriteString("  ")
		}
		found := false
		for _, status := range m.statusEntries {
			if status.Path == entry.path {
				b.WriteByte(status.Recorded.Symbol())
				b.WriteByte(status.Target.Symbol())
				found = true
				break
			}
		}
		if !found {
			b.WriteString("  ")
		}
		b.WriteByte(' ')
		b.WriteString(entry.path)
		if entry.isSymlink {
			b.WriteByte('@')
		}
		if entry.isDir {
			b.WriteByte('/')
		}
		return b.String()
	}

	b.WriteString(strings.Repeat("  ", entry.depth))
	if marked {
		b.WriteString("* ")
	} else {
		b.WriteString("  ")
	}

	_, expanded := m.expandedDirs[entry.path]
	var marker string
	switch {
	case entry.isSymlink && entry.isDir:
		marker = "[L]"
	case entry.isSymlink:
		marker = " L "
	case entry.canExpand && expanded:
		marker = "[-]"
	case entry.canExpand:
		marker = "[+]"
	case entry.isDir:
		marker = "[ ]"
	default:
		marker = "   "
	}
	b.WriteString(marker)
	b.WriteByte(' ')

	name := entry.path
	if entry.depth > 0 {
		name = fsutil.Leaf(entry.path)
	}
	b.WriteString(name)
	if entry.isSymlink {
		b.WriteByte('@')
	}
	if entry.isDir {
		b.WriteByte('/')
	}
	return b.String()
}

func (m *Model) pathIsDirectory(p string) bool {
	return m.pathDirStateForView(p, m.view).IsDir
}

func (m *Model) pathDirStateForView(p string, view viewKind) fsutil.State {
	return fsutil.Classify(m.resolvePathForView(p, view))
}

func (m *Model) dirStateWithBase(p, base string) fsutil.State {
	return fsutil.Classify(m.resolveWithBase(p, base))
}

// resolvePathForView anchors status and managed paths at the home directory
// and unmanaged paths at the working directory.
func (m *Model) resolvePathForView(p string, view viewKind) string {
	if view == viewUnmanaged {
		return m.resolveWithBase(p, m.workingDir)
	}
	return m.resolveWithBase(p, m.homeDir)
}

func (m *Model) resolveWithBase(p, base string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// collapseTree removes dir and every expanded descendant from the expansion
// set.
func (m *Model) collapseTree(dir string) {
	prefix := dir + "/"
	for expanded := range m.expandedDirs {
		if expanded == dir || strings.HasPrefix(expanded, prefix) {
			delete(m.expandedDirs, expanded)
		}
	}
}

// parentPath returns the parent of a slash-relative or absolute path, or ""
// at the top.
func parentPath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		dir := filepath.Dir(p)
		if dir == p {
			return ""
		}
		return dir
	}
	dir := path.Dir(strings.ReplaceAll(p, "\\", "/"))
	if dir == "." || dir == "/" || dir == p {
		return ""
	}
	return dir
}

func (m *Model) invalidateFilterCache() {
	m.filterCache = unmanagedFilterCache{}
}

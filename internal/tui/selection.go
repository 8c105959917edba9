package tui

// toggleSelectedMark flips the mark on the selected entry. Reports whether
// anything changed.
func (m *Model) toggleSelectedMark() bool {
	p := m.selectedPath()
	if p == "" {
		return false
	}
	if _, ok := m.markedEntries[p]; ok {
		delete(m.markedEntries, p)
	} else {
		m.markedEntries[p] = struct{}{}
	}
	return true
}

func (m *Model) clearMarkedEntries() bool {
	if len(m.markedEntries) == 0 {
		return false
	}
	m.markedEntries = make(map[string]struct{})
	return true
}

func (m *Model) markedCount() int {
	return len(m.markedEntries)
}

// selectedActionTargetsAbsolute returns the action targets in visible
// order: the marked entries when any exist, otherwise the single selection.
func (m *Model) selectedActionTargetsAbsolute() []string {
	if len(m.markedEntries) == 0 {
		if abs := m.selectedAbsolutePath(); abs != "" {
			return []string{abs}
		}
		return nil
	}

	var targets []string
	for _, entry := range m.visibleEntries {
		if _, marked := m.markedEntries[entry.path]; marked {
			targets = append(targets, m.resolvePathForView(entry.path, m.view))
		}
	}
	return targets
}

// expandSelectedDirectory opens the selected directory and rebuilds with
// the selection pinned to it.
func (m *Model) expandSelectedDirectory() bool {
	if !m.view.supportsTree() {
		return false
	}
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.visibleEntries) {
		return false
	}
	entry := m.visibleEntries[m.selectedIndex]
	if !entry.canExpand {
		return false
	}
	if _, already := m.expandedDirs[entry.path]; already {
		return false
	}
	m.expandedDirs[entry.path] = struct{}{}
	m.rebuildVisibleEntriesWithSelection(entry.path)
	return true
}

// collapseSelectedDirectoryOrParent collapses the nearest expanded ancestor
// of the selection, including the selection itself, and moves the selection
// onto the collapsed directory.
func (m *Model) collapseSelectedDirectoryOrParent() bool {
	if !m.view.supportsTree() {
		return false
	}
	selected := m.selectedPath()
	if selected == "" {
		return false
	}

	for current := selected; current != ""; current = parentPath(current) {
		if _, expanded := m.expandedDirs[current]; expanded {
			m.collapseTree(current)
			m.rebuildVisibleEntriesWithSelection(current)
			return true
		}
	}
	return false
}

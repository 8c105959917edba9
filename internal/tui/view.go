package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/ignore"
)

var (
	paneBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#bbbbbb", Dark: "#444444"})

	focusedPaneBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.AdaptiveColor{Light: "#0087af", Dark: "#00afd7"})

	paneTitleStyle = lipgloss.NewStyle().Bold(true)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
				Background(lipgloss.AdaptiveColor{Light: "#a8d8a8", Dark: "#87d787"})

	busyBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"})

	idleBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#ffffff"}).
			Background(lipgloss.AdaptiveColor{Light: "#888888", Dark: "#555555"})

	statusHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"})

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#0087af", Dark: "#00afd7"}).
			Padding(1, 2)

	dangerModalStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.AdaptiveColor{Light: "#af0000", Dark: "#ff5f5f"}).
				Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().Bold(true)

	menuCursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"})

	phraseRequiredStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#af0000", Dark: "#ff5f5f"})

	diffFileStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0087af", Dark: "#00afd7"})
	diffHunkStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#af8700", Dark: "#ffd700"})
	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#87d787"})
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#af0000", Dark: "#ff5f5f"})
)

// listViewportRows is how many entry rows fit in the list pane.
func (m Model) listViewportRows() int {
	rows := m.contentHeight() - 2
	if rows < 1 {
		return 1
	}
	return rows
}

func (m Model) contentHeight() int {
	if m.height <= 0 {
		return 22
	}
	return m.height - 1
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width <= 0 {
		width = 100
	}
	contentHeight := m.contentHeight()

	listWidth := width * 35 / 100
	if listWidth < 20 {
		listWidth = 20
	}
	rightWidth := width - listWidth
	if rightWidth < 20 {
		rightWidth = 20
	}
	detailHeight := contentHeight * 65 / 100
	if detailHeight < 3 {
		detailHeight = 3
	}
	logHeight := contentHeight - detailHeight
	if logHeight < 3 {
		logHeight = 3
	}

	list := m.renderListPane(listWidth, contentHeight)
	detail := m.renderDetailPane(rightWidth, detailHeight)
	logPane := m.renderLogPane(rightWidth, logHeight)

	content := lipgloss.JoinHorizontal(lipgloss.Top, list, lipgloss.JoinVertical(lipgloss.Left, detail, logPane))
	if m.modal != nil {
		content = lipgloss.Place(width, contentHeight, lipgloss.Center, lipgloss.Center, m.renderModal())
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, m.renderStatusBar(width))
}

func (m Model) renderListPane(width, height int) string {
	innerWidth := width - 2
	rows := height - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	if rows < 1 {
		rows = 1
	}

	title := " " + m.view.title() + " "
	if m.listFilter != "" {
		title = fmt.Sprintf(" %s [filter: %s] ", m.view.title(), m.listFilter)
	}

	var lines []string
	lines = append(lines, paneTitleStyle.Render(truncateRunes(title, innerWidth)))
	rows--

	end := m.listScroll + rows
	if end > len(m.visibleEntries) {
		end = len(m.visibleEntries)
	}
	for i := m.listScroll; i < end; i++ {
		row := truncateRunes(m.formatVisibleEntry(m.visibleEntries[i]), innerWidth)
		if i == m.selectedIndex {
			row = selectedRowStyle.Render(padRight(row, innerWidth))
		}
		lines = append(lines, row)
	}

	style := paneBorderStyle
	if m.focus == focusList {
		style = focusedPaneBorderStyle
	}
	return style.Width(innerWidth).Height(height - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetailPane(width, height int) string {
	innerWidth := width - 2
	rows := height - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	if rows < 2 {
		rows = 2
	}

	var lines []string
	lines = append(lines, paneTitleStyle.Render(truncateRunes(" "+m.detailTitle+" ", innerWidth)))
	rows--

	if strings.TrimSpace(m.detailText) == "" {
		lines = append(lines, "No detail loaded.")
		lines = append(lines, "Enter / d: diff, v: file preview")
	} else {
		body := strings.Split(m.detailText, "\n")
		start := m.detailScroll
		if start > len(body) {
			start = len(body)
		}
		end := start + rows
		if end > len(body) {
			end = len(body)
		}
		for _, line := range body[start:end] {
			line = truncateRunes(line, innerWidth)
			if m.detailKind == detailDiff {
				line = colorizeDiffLine(line)
			}
			lines = append(lines, line)
		}
	}

	style := paneBorderStyle
	if m.focus == focusDetail {
		style = focusedPaneBorderStyle
	}
	return style.Width(innerWidth).Height(height - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderLogPane(width, height int) string {
	innerWidth := width - 2
	rows := height - 2
	if innerWidth < 1 {
		innerWidth = 1
	}
	if rows < 1 {
		rows = 1
	}

	var lines []string
	lines = append(lines, paneTitleStyle.Render(truncateRunes(" Log ", innerWidth)))
	rows--

	// The log renders bottom-anchored; the tail offset scrolls back.
	end := len(m.logs) - m.logTailOffset
	if end > len(m.logs) {
		end = len(m.logs)
	}
	if end < 0 {
		end = 0
	}
	start := end - rows
	if start < 0 {
		start = 0
	}
	for _, line := range m.logs[start:end] {
		lines = append(lines, truncateRunes(line, innerWidth))
	}

	style := paneBorderStyle
	if m.focus == focusLog {
		style = focusedPaneBorderStyle
	}
	return style.Width(innerWidth).Height(height - 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar(width int) string {
	var badge string
	if m.busy {
		badge = busyBadgeStyle.Render(" " + spinnerFrames[m.spinnerFrame] + " BUSY ")
	} else {
		badge = idleBadgeStyle.Render(" IDLE ")
	}

	parts := []string{badge, statusHintStyle.Render("1:status 2:managed 3:unmanaged")}
	if n := m.markedCount(); n > 0 {
		parts = append(parts, statusHintStyle.Render(fmt.Sprintf("marked:%d", n)))
	}
	if m.batchInProgress() {
		parts = append(parts, statusHintStyle.Render(
			fmt.Sprintf("batch:%s %d/%d", m.batchAction.Label(), m.batchTotal-len(m.batchQueue), m.batchTotal)))
	}
	if m.footerHelp {
		parts = append(parts, statusHintStyle.Render(
			"j/k move  h/l collapse/expand  space mark  c clear  / filter  tab focus  d diff  v preview  a action  e edit  r refresh  q quit"))
	} else {
		parts = append(parts, statusHintStyle.Render("? help"))
	}

	return truncateToWidth(strings.Join(parts, "  "), width)
}

func (m Model) renderModal() string {
	switch modal := m.modal.(type) {
	case *listFilterModal:
		return modalStyle.Render(strings.Join([]string{
			modalTitleStyle.Render("Filter"),
			"",
			modal.input.View(),
			"",
			statusHintStyle.Render("Enter: apply  Esc: cancel"),
		}, "\n"))

	case *ignoreModal:
		lines := []string{modalTitleStyle.Render("Ignore Pattern"), ""}
		for i, mode := range ignore.Modes {
			row := fmt.Sprintf("%-12s %s", mode.Tag(), mode.Description())
			if i == modal.selected {
				row = menuCursorStyle.Render(row)
			}
			lines = append(lines, row)
		}
		lines = append(lines, "", statusHintStyle.Render(fmt.Sprintf("targets: %d", len(modal.requests))))
		lines = append(lines, statusHintStyle.Render("Enter: queue  Esc: cancel"))
		return modalStyle.Render(strings.Join(lines, "\n"))

	case *actionMenuModal:
		lines := []string{modalTitleStyle.Render("Action Menu"), modal.input.View(), ""}
		indices := actionMenuIndices(m.view, modal.input.Value())
		if len(indices) == 0 {
			lines = append(lines, statusHintStyle.Render("(no matching action)"))
		}
		for i, idx := range indices {
			action := chezmoi.Actions[idx]
			row := fmt.Sprintf("%-12s %s", action.Label(), action.Description())
			if i == modal.selected {
				row = menuCursorStyle.Render(row)
			}
			lines = append(lines, row)
		}
		lines = append(lines, "", statusHintStyle.Render("Enter: run  Esc: cancel"))
		return modalStyle.Render(strings.Join(lines, "\n"))

	case *confirmModal:
		target := modal.request.Target
		if target == "" {
			target = "(none)"
		}
		lines := []string{}
		if modal.step == confirmPrimary {
			lines = append(lines, modalTitleStyle.Render("Confirm Action"))
		} else {
			lines = append(lines, modalTitleStyle.Render("Dangerous Action"))
		}
		lines = append(lines,
			"",
			"action: "+modal.request.Action.Label(),
			"target: "+target,
		)
		if modal.request.ChattrAttrs != "" {
			lines = append(lines, "attributes: "+modal.request.ChattrAttrs)
		}
		lines = append(lines, "")
		if modal.step == confirmPrimary {
			lines = append(lines, statusHintStyle.Render("Enter: run  Esc: cancel"))
			if modal.request.Action.Dangerous() {
				lines = append(lines, statusHintStyle.Render("A confirmation phrase is required next."))
			}
		} else {
			lines = append(lines, statusHintStyle.Render("Type the phrase and press Enter. Esc cancels."))
			lines = append(lines, phraseRequiredStyle.Render("required: "+modal.request.ConfirmPhrase()))
			lines = append(lines, modal.input.View())
		}
		return dangerModalStyle.Render(strings.Join(lines, "\n"))

	case *attrInputModal:
		target := modal.request.Target
		if target == "" {
			target = "(none)"
		}
		return modalStyle.Render(strings.Join([]string{
			modalTitleStyle.Render("Input"),
			"",
			"action: " + modal.request.Action.Label(),
			"target: " + target,
			"",
			modal.input.View(),
			"",
			statusHintStyle.Render("Enter: confirm  Esc: cancel"),
		}, "\n"))
	}
	return ""
}

// colorizeDiffLine styles one unified diff line by its prefix.
func colorizeDiffLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return diffFileStyle.Render(line)
	case strings.HasPrefix(line, "@@"):
		return diffHunkStyle.Render(line)
	case strings.HasPrefix(line, "+"):
		return diffAddStyle.Render(line)
	case strings.HasPrefix(line, "-"):
		return diffDelStyle.Render(line)
	default:
		return line
	}
}

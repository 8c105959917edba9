package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/ignore"
)

// modalState is the open modal, or nil. The active modal owns its in-flight
// request payload until it resolves or cancels.
type modalState interface {
	isModal()
}

// listFilterModal edits the list filter. original restores on cancel.
type listFilterModal struct {
	input    textinput.Model
	original string
}

// ignoreModal picks the ignore pattern shape for a prepared request set.
type ignoreModal struct {
	requests []chezmoi.ActionRequest
	selected int
}

// actionMenuModal picks an action, with fuzzy label filtering.
type actionMenuModal struct {
	input    textinput.Model
	selected int
}

type confirmStep int

const (
	confirmPrimary confirmStep = iota
	confirmDangerPhrase
)

// confirmModal guards dangerous requests: an acknowledgment step, then a
// typed-phrase step when required.
type confirmModal struct {
	request chezmoi.ActionRequest
	step    confirmStep
	input   textinput.Model
}

// attrInputModal collects the attribute string for a chattr request.
type attrInputModal struct {
	request chezmoi.ActionRequest
	input   textinput.Model
}

func (*listFilterModal) isModal() {}
func (*ignoreModal) isModal()     {}
func (*actionMenuModal) isModal() {}
func (*confirmModal) isModal()    {}
func (*attrInputModal) isModal()  {}

func newModalInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = 200
	ti.Focus()
	return ti
}

func newListFilterModal(current string) *listFilterModal {
	ti := newModalInput("filter by name")
	ti.SetValue(current)
	ti.CursorEnd()
	return &listFilterModal{input: ti, original: current}
}

func newIgnoreModal(requests []chezmoi.ActionRequest) *ignoreModal {
	return &ignoreModal{requests: requests}
}

func newActionMenuModal() *actionMenuModal {
	return &actionMenuModal{input: newModalInput("filter actions")}
}

func newConfirmModal(request chezmoi.ActionRequest) *confirmModal {
	return &confirmModal{request: request, step: confirmPrimary, input: newModalInput("")}
}

func newAttrInputModal(request chezmoi.ActionRequest) *attrInputModal {
	return &attrInputModal{request: request, input: newModalInput("chattr attributes (e.g. private,template)")}
}

// handleKey routes a key press to the open modal, or to the main key map.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch modal := m.modal.(type) {
	case *listFilterModal:
		return m.handleListFilterKey(modal, msg)
	case *ignoreModal:
		return m.handleIgnoreKey(modal, msg)
	case *actionMenuModal:
		return m.handleActionMenuKey(modal, msg)
	case *confirmModal:
		return m.handleConfirmKey(modal, msg)
	case *attrInputModal:
		return m.handleAttrInputKey(modal, msg)
	default:
		return m.handleKeyWithoutModal(msg)
	}
}

func (m Model) handleKeyWithoutModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	selectionChanged := false

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.footerHelp = !m.footerHelp

	case "/":
		if m.focus == focusList {
			m.clearStagedFilter()
			m.modal = newListFilterModal(m.listFilter)
		}

	case "esc":
		if m.focus == focusList && m.listFilter != "" {
			m.applyListFilterImmediately("")
			selectionChanged = true
		}

	case "tab":
		m.focus = m.focus.next()

	case " ":
		if m.focus == focusList {
			m.toggleSelectedMark()
		}

	case "c":
		if m.focus == focusList && m.clearMarkedEntries() {
			m.log("cleared multi-selection")
		}

	case "j", "down":
		switch m.focus {
		case focusDetail:
			m.scrollDetailDown(1)
		case focusLog:
			m.scrollLogDown(1)
		default:
			m.selectNext()
			selectionChanged = true
		}

	case "k", "up":
		switch m.focus {
		case focusDetail:
			m.scrollDetailUp(1)
		case focusLog:
			m.scrollLogUp(1)
		default:
			m.selectPrev()
			selectionChanged = true
		}

	case "pgdown", "ctrl+d":
		switch m.focus {
		case focusDetail:
			m.scrollDetailDown(detailPageLines)
		case focusLog:
			m.scrollLogDown(detailPageLines)
		}

	case "pgup", "ctrl+u":
		switch m.focus {
		case focusDetail:
			m.scrollDetailUp(detailPageLines)
		case focusLog:
			m.scrollLogUp(detailPageLines)
		}

	case "l", "right":
		if m.expandSelectedDirectory() {
			selectionChanged = true
		}

	case "h", "left":
		if m.collapseSelectedDirectoryOrParent() {
			selectionChanged = true
		}

	case "1":
		m.switchView(viewStatus)
		selectionChanged = true

	case "2":
		m.switchView(viewManaged)
		selectionChanged = true

	case "3":
		m.switchView(viewUnmanaged)
		selectionChanged = true

	case "r":
		cmd = m.submitTask(taskRefreshAll{})

	case "d", "enter":
		if m.view == viewUnmanaged && m.selectedIsDirectory() {
			m.clearDetail()
			return m, nil
		}
		cmd = m.submitTask(taskLoadDiff{target: m.selectedAbsolutePath()})

	case "v":
		target := m.selectedPath()
		abs := m.selectedAbsolutePath()
		if target == "" || abs == "" {
			m.log("No target selected for preview")
			break
		}
		if m.view == viewUnmanaged && m.selectedIsDirectory() {
			m.clearDetail()
			return m, nil
		}
		cmd = m.submitTask(taskLoadPreview{target: target, absolute: abs})

	case "a":
		m.modal = newActionMenuModal()

	case "e":
		request := chezmoi.ActionRequest{Action: chezmoi.ActionEdit, Target: m.selectedAbsolutePath()}
		switch {
		case request.Target == "":
			m.log("edit requires a target path")
		case !m.selectedIsManaged():
			m.log("edit is available only for managed files")
		default:
			cmd = m.executeActionRequest(request)
		}
	}

	if selectionChanged {
		m.syncListScroll(m.listViewportRows())
		detailCmd := m.maybeEnqueueAutoDetail()
		return m, tea.Batch(cmd, detailCmd)
	}
	return m, cmd
}

// handleListFilterKey edits the filter draft. Typing stages the value
// behind a short debounce; Enter commits, Escape restores the original.
func (m Model) handleListFilterKey(modal *listFilterModal, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.applyListFilterImmediately(modal.original)
		m.modal = nil
		m.rebuildVisibleEntries()
		m.syncListScroll(m.listViewportRows())
		return m, m.maybeEnqueueAutoDetail()

	case "enter":
		m.applyListFilterImmediately(modal.input.Value())
		m.modal = nil
		m.rebuildVisibleEntries()
		m.syncListScroll(m.listViewportRows())
		return m, m.maybeEnqueueAutoDetail()

	default:
		before := modal.input.Value()
		var cmd tea.Cmd
		modal.input, cmd = modal.input.Update(msg)
		if modal.input.Value() != before {
			return m, tea.Batch(cmd, m.stageListFilter(modal.input.Value()))
		}
		return m, cmd
	}
}

func (m Model) handleIgnoreKey(modal *ignoreModal, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = nil
		return m, nil

	case "j", "down":
		modal.selected = (modal.selected + 1) % len(ignore.Modes)
		return m, nil

	case "k", "up":
		if modal.selected == 0 {
			modal.selected = len(ignore.Modes) - 1
		} else {
			modal.selected--
		}
		return m, nil

	case "enter":
		tag := ignore.ModeFromIndex(modal.selected).Tag()
		prepared := append([]chezmoi.ActionRequest(nil), modal.requests...)
		for i := range prepared {
			prepared[i].ChattrAttrs = tag
		}
		if len(prepared) > 1 {
			m.log(fmt.Sprintf("batch queued: action=ignore targets=%d", len(prepared)))
		}
		m.modal = nil
		if first, ok := m.startBatch(prepared); ok {
			return m, m.dispatchActionRequest(first)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleActionMenuKey(modal *actionMenuModal, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.modal = nil
		return m, nil

	case "down":
		if indices := actionMenuIndices(m.view, modal.input.Value()); len(indices) > 0 {
			modal.selected = (modal.selected + 1) % len(indices)
		}
		return m, nil

	case "up":
		if indices := actionMenuIndices(m.view, modal.input.Value()); len(indices) > 0 {
			if modal.selected == 0 {
				modal.selected = len(indices) - 1
			} else {
				modal.selected--
			}
		}
		return m, nil

	case "enter":
		indices := actionMenuIndices(m.view, modal.input.Value())
		if modal.selected >= len(indices) {
			m.log("No action matches the current filter")
			return m, nil
		}
		return m.runMenuAction(chezmoi.Actions[indices[modal.selected]])

	default:
		before := modal.input.Value()
		var cmd tea.Cmd
		modal.input, cmd = modal.input.Update(msg)
		if modal.input.Value() != before {
			modal.selected = 0
		}
		return m, cmd
	}
}

// runMenuAction builds, validates, and launches the chosen action,
// including the ignore hand-off to the pattern-shape modal.
func (m Model) runMenuAction(action chezmoi.Action) (tea.Model, tea.Cmd) {
	requests := m.buildActionRequests(action)
	if len(requests) == 0 {
		m.log(action.Label() + " requires a target file")
		m.modal = nil
		return m, nil
	}
	if message := m.validateActionRequests(action, requests); message != "" {
		m.log(message)
		m.modal = nil
		m.clearBatch()
		return m, nil
	}
	if action == chezmoi.ActionIgnore {
		m.modal = newIgnoreModal(requests)
		return m, nil
	}

	if len(requests) > 1 {
		m.log(fmt.Sprintf("batch queued: action=%s targets=%d", action.Label(), len(requests)))
	}
	m.modal = nil
	if first, ok := m.startBatch(requests); ok {
		return m, m.dispatchActionRequest(first)
	}
	return m, nil
}

func (m Model) handleConfirmKey(modal *confirmModal, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.cancelBatch()
		m.modal = nil
		return m, nil

	case "enter":
		switch modal.step {
		case confirmPrimary:
			if modal.request.StrictConfirm() ||
				(modal.request.Action.Dangerous() && m.config.Confirm.TwoStep) {
				modal.step = confirmDangerPhrase
				return m, nil
			}
			request := modal.request
			m.modal = nil
			return m, m.executeActionRequest(request)

		case confirmDangerPhrase:
			phrase := modal.request.ConfirmPhrase()
			if phrase == "" {
				return m, nil
			}
			if modal.input.Value() == phrase {
				request := modal.request
				m.modal = nil
				return m, m.executeActionRequest(request)
			}
			m.log(fmt.Sprintf("Confirmation phrase mismatch. required=%s input=%s", phrase, modal.input.Value()))
			return m, nil
		}
		return m, nil

	default:
		if modal.step == confirmDangerPhrase {
			var cmd tea.Cmd
			modal.input, cmd = modal.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m Model) handleAttrInputKey(modal *attrInputModal, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.cancelBatch()
		m.modal = nil
		return m, nil

	case "enter":
		attrs := strings.TrimSpace(modal.input.Value())
		if attrs == "" {
			m.log("Please enter chattr attributes")
			return m, nil
		}
		request := modal.request
		request.ChattrAttrs = attrs
		if request.Action == chezmoi.ActionChattr {
			m.applyChattrAttrsToBatch(attrs)
		}
		m.modal = nil
		return m, m.dispatchActionRequest(request)

	default:
		var cmd tea.Cmd
		modal.input, cmd = modal.input.Update(msg)
		return m, cmd
	}
}

// actionMenuIndices returns the menu's entries as indexes into
// chezmoi.Actions: actions visible in the view, filtered by fuzzy label
// match, ordered by section (no target, target-taking, dangerous) then
// label.
func actionMenuIndices(view viewKind, filter string) []int {
	var candidates []int
	for i, action := range chezmoi.Actions {
		if actionVisibleInView(view, action) {
			candidates = append(candidates, i)
		}
	}

	if query := strings.TrimSpace(filter); query != "" {
		labels := make([]string, len(candidates))
		for j, i := range candidates {
			labels[j] = chezmoi.Actions[i].Label()
		}
		matches := fuzzy.Find(query, labels)
		filtered := make([]int, 0, len(matches))
		for _, match := range matches {
			filtered = append(filtered, candidates[match.Index])
		}
		candidates = filtered
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		left, right := chezmoi.Actions[candidates[a]], chezmoi.Actions[candidates[b]]
		if so1, so2 := actionSectionOrder(left), actionSectionOrder(right); so1 != so2 {
			return so1 < so2
		}
		return left.Label() < right.Label()
	})
	return candidates
}

func actionSectionOrder(action chezmoi.Action) int {
	switch {
	case action.Dangerous():
		return 2
	case action.NeedsTarget():
		return 1
	default:
		return 0
	}
}

// actionVisibleInView scopes the menu to actions that make sense for the
// entries the view shows.
func actionVisibleInView(view viewKind, action chezmoi.Action) bool {
	switch view {
	case viewStatus:
		switch action {
		case chezmoi.ActionApply, chezmoi.ActionUpdate, chezmoi.ActionEditConfig,
			chezmoi.ActionEditConfigTemplate, chezmoi.ActionEditIgnore, chezmoi.ActionReAdd,
			chezmoi.ActionMerge, chezmoi.ActionMergeAll, chezmoi.ActionEdit,
			chezmoi.ActionForget, chezmoi.ActionChattr, chezmoi.ActionPurge:
			return true
		}
	case viewManaged:
		switch action {
		case chezmoi.ActionApply, chezmoi.ActionUpdate, chezmoi.ActionEditConfig,
			chezmoi.ActionEditConfigTemplate, chezmoi.ActionEditIgnore, chezmoi.ActionEdit,
			chezmoi.ActionForget, chezmoi.ActionChattr, chezmoi.ActionDestroy,
			chezmoi.ActionPurge:
			return true
		}
	case viewUnmanaged:
		switch action {
		case chezmoi.ActionAdd, chezmoi.ActionIgnore, chezmoi.ActionApply,
			chezmoi.ActionUpdate, chezmoi.ActionEditConfig, chezmoi.ActionEditConfigTemplate,
			chezmoi.ActionEditIgnore, chezmoi.ActionPurge:
			return true
		}
	}
	return false
}

// Package tui provides the interactive terminal session for chezmui.
package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/config"
	"github.com/chezmui/chezmui/internal/fsutil"
)

// maxLogLines bounds the session log ring. Older lines are dropped.
const maxLogLines = 500

// listFilterDebounce is how long a staged list filter sits before it is
// applied to the visible list.
const listFilterDebounce = 120 * time.Millisecond

// detailPageLines is the scroll step for page-wise detail and log movement.
const detailPageLines = 20

const spinnerInterval = 100 * time.Millisecond

// spinnerFrames are the Braille dot animation frames for the busy spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// viewKind selects which of the three entry lists fills the left pane.
type viewKind int

const (
	viewStatus viewKind = iota
	viewManaged
	viewUnmanaged
)

// title returns the pane heading for the view.
func (v viewKind) title() string {
	switch v {
	case viewStatus:
		return "Status"
	case viewManaged:
		return "Managed"
	case viewUnmanaged:
		return "Unmanaged"
	default:
		return "Status"
	}
}

// supportsTree reports whether the view renders an expandable hierarchy.
func (v viewKind) supportsTree() bool {
	return v == viewManaged || v == viewUnmanaged
}

// paneFocus identifies which pane receives scroll and selection keys.
type paneFocus int

const (
	focusList paneFocus = iota
	focusDetail
	focusLog
)

// next cycles List -> Detail -> Log -> List.
func (f paneFocus) next() paneFocus {
	switch f {
	case focusList:
		return focusDetail
	case focusDetail:
		return focusLog
	default:
		return focusList
	}
}

// detailKind distinguishes what the right pane currently shows.
type detailKind int

const (
	detailDiff detailKind = iota
	detailPreview
)

// visibleEntry is one row of the left pane: a path plus the tree metadata
// needed to render markers and drive expansion.
type visibleEntry struct {
	path      string
	depth     int
	isDir     bool
	canExpand bool
	isSymlink bool
}

// Options configures a new session model.
type Options struct {
	Config  *config.Config
	Client  chezmoi.Client
	Version string

	// HomeDir and WorkingDir anchor relative entry paths. Empty values fall
	// back to the client's notion when it is a ShellClient, else to ".".
	HomeDir    string
	WorkingDir string
}

// Model is the session state, following the Elm architecture.
type Model struct {
	config  *config.Config
	client  chezmoi.Client
	worker  *worker
	version string

	focus paneFocus
	view  viewKind

	statusEntries    []chezmoi.StatusEntry
	managedEntries   []string
	unmanagedEntries []string

	selectedIndex int
	listScroll    int

	detailKind   detailKind
	detailTitle  string
	detailText   string
	detailTarget string
	detailScroll int

	logs          []string
	logTailOffset int

	// modal is nil when no modal is open. Exactly one modal owns any
	// in-flight request payload until it resolves or cancels.
	modal modalState

	listFilter      string
	stagedFilter    string
	stagedFilterSet bool
	filterGen       uint64

	busy         bool
	footerHelp   bool
	spinnerFrame int

	homeDir    string
	workingDir string

	expandedDirs  map[string]struct{}
	markedEntries map[string]struct{}

	batchActive bool
	batchAction chezmoi.Action
	batchTotal  int
	batchQueue  []chezmoi.ActionRequest

	visibleEntries []visibleEntry
	filterCache    unmanagedFilterCache
	excludes       *fsutil.ExcludeSet

	width    int
	height   int
	quitting bool
}

// New builds the session model. The backend worker is started lazily by Init.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	homeDir := opts.HomeDir
	workingDir := opts.WorkingDir
	if sc, ok := opts.Client.(*chezmoi.ShellClient); ok {
		if homeDir == "" {
			homeDir = sc.HomeDir()
		}
		if workingDir == "" {
			workingDir = sc.WorkingDir()
		}
	}
	if workingDir == "" {
		workingDir = "."
	}
	if homeDir == "" {
		homeDir = workingDir
	}

	m := Model{
		config:        cfg,
		client:        opts.Client,
		version:       opts.Version,
		focus:         focusList,
		view:          viewStatus,
		detailTitle:   "Diff / Preview",
		homeDir:       homeDir,
		workingDir:    workingDir,
		expandedDirs:  make(map[string]struct{}),
		markedEntries: make(map[string]struct{}),
		excludes:      fsutil.NewExcludeSet(cfg.Unmanaged.ExcludePaths),
	}
	m.rebuildVisibleEntriesReset()
	return m
}

// Init implements tea.Model. It starts the backend worker, queues the first
// refresh, and arms the event listener.
func (m Model) Init() tea.Cmd {
	if m.worker == nil {
		// Update receives the started worker through workerReadyMsg so the
		// value-semantics model keeps a single shared instance.
		w := newWorker(m.client)
		return tea.Batch(
			func() tea.Msg { return workerReadyMsg{worker: w} },
			listenBackend(w),
			spinnerTick(),
		)
	}
	return tea.Batch(listenBackend(m.worker), spinnerTick())
}

// workerReadyMsg delivers the backend worker created during Init.
type workerReadyMsg struct {
	worker *worker
}

// spinnerTickMsg advances the busy spinner.
type spinnerTickMsg struct{}

// filterDebounceMsg flushes a staged list filter once the debounce elapses.
type filterDebounceMsg struct {
	gen uint64
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// listenBackend waits for the next backend event. It is re-armed after every
// received event so the channel is always drained.
func listenBackend(w *worker) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		return <-w.events
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width < 0 {
			m.width = 0
		}
		if m.height < 0 {
			m.height = 0
		}
		m.syncListScroll(m.listViewportRows())
		return m, nil

	case workerReadyMsg:
		m.worker = msg.worker
		cmd := m.submitTask(taskRefreshAll{})
		return m, cmd

	case spinnerTickMsg:
		if m.busy {
			m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		}
		return m, spinnerTick()

	case filterDebounceMsg:
		if msg.gen == m.filterGen {
			m.flushStagedFilter()
		}
		return m, nil

	case refreshedMsg:
		m.applyRefreshEntries(msg.status, msg.managed, msg.unmanaged)
		m.rebuildVisibleEntries()
		m.busy = false
		cmd := m.maybeEnqueueAutoDetail()
		return m, tea.Batch(cmd, listenBackend(m.worker))

	case diffLoadedMsg:
		m.setDetailDiff(msg.target, msg.text)
		m.busy = false
		return m, listenBackend(m.worker)

	case previewLoadedMsg:
		m.setDetailPreview(msg.target, msg.content)
		m.busy = false
		return m, listenBackend(m.worker)

	case actionFinishedMsg:
		cmd := m.handleActionFinished(msg.request, msg.result)
		return m, tea.Batch(cmd, listenBackend(m.worker))

	case backendErrorMsg:
		m.busy = false
		m.log("error[" + msg.context + "]: " + msg.message)
		var cmd tea.Cmd
		if msg.context == "action" && m.batchInProgress() {
			cmd = m.maybeContinueBatch()
		}
		return m, tea.Batch(cmd, listenBackend(m.worker))

	case foregroundFinishedMsg:
		cmd := m.handleForegroundFinished(msg)
		return m, cmd
	}

	return m, nil
}

// switchView resets all per-view state: filter, marks, filter index, and
// selection. Expansion state is shared across views on purpose so returning
// to a tree keeps its shape.
func (m *Model) switchView(view viewKind) {
	m.view = view
	m.listFilter = ""
	m.clearStagedFilter()
	m.invalidateFilterCache()
	m.clearMarkedEntries()
	m.rebuildVisibleEntriesReset()
}

// applyRefreshEntries swaps in a fresh snapshot from the engine and drops the
// unmanaged filter index, which may reference paths that no longer exist.
func (m *Model) applyRefreshEntries(status []chezmoi.StatusEntry, managed, unmanaged []string) {
	m.statusEntries = status
	m.managedEntries = managed
	m.unmanagedEntries = unmanaged
	m.invalidateFilterCache()
}

func (m *Model) selectNext() {
	n := len(m.visibleEntries)
	if n == 0 {
		m.selectedIndex = 0
		return
	}
	m.selectedIndex = (m.selectedIndex + 1) % n
}

func (m *Model) selectPrev() {
	n := len(m.visibleEntries)
	if n == 0 {
		m.selectedIndex = 0
		return
	}
	if m.selectedIndex == 0 {
		m.selectedIndex = n - 1
	} else {
		m.selectedIndex--
	}
}

// syncListScroll keeps the selection inside the viewport window.
func (m *Model) syncListScroll(viewportRows int) {
	n := len(m.visibleEntries)
	if n == 0 {
		m.listScroll = 0
		return
	}
	rows := viewportRows
	if rows < 1 {
		rows = 1
	}
	if m.selectedIndex < m.listScroll {
		m.listScroll = m.selectedIndex
	} else if m.selectedIndex >= m.listScroll+rows {
		m.listScroll = m.selectedIndex + 1 - rows
	}
	maxOffset := n - rows
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.listScroll > maxOffset {
		m.listScroll = maxOffset
	}
}

func (m *Model) syncSelectionBounds() {
	n := len(m.visibleEntries)
	if n == 0 {
		m.selectedIndex = 0
		m.listScroll = 0
	} else if m.selectedIndex >= n {
		m.selectedIndex = n - 1
	}
}

// selectedPath returns the selected entry's view-relative path, or "".
func (m *Model) selectedPath() string {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.visibleEntries) {
		return m.visibleEntries[m.selectedIndex].path
	}
	return ""
}

// selectedAbsolutePath resolves the selection against the view's base
// directory, or returns "".
func (m *Model) selectedAbsolutePath() string {
	p := m.selectedPath()
	if p == "" {
		return ""
	}
	return m.resolvePathForView(p, m.view)
}

func (m *Model) selectedIsDirectory() bool {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.visibleEntries) {
		return m.visibleEntries[m.selectedIndex].isDir
	}
	return false
}

func (m *Model) selectedIsManaged() bool {
	abs := m.selectedAbsolutePath()
	if abs == "" {
		return false
	}
	return m.isAbsolutePathManaged(abs)
}

// log appends a line to the session log, preserving a manual scrollback
// position and trimming to the ring size.
func (m *Model) log(line string) {
	m.logs = append(m.logs, line)
	if m.logTailOffset > 0 {
		m.logTailOffset++
	}
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func (m *Model) scrollLogUp(lines int) bool {
	before := m.logTailOffset
	m.logTailOffset += lines
	return m.logTailOffset != before
}

func (m *Model) scrollLogDown(lines int) bool {
	before := m.logTailOffset
	m.logTailOffset -= lines
	if m.logTailOffset < 0 {
		m.logTailOffset = 0
	}
	return m.logTailOffset != before
}

func (m *Model) scrollDetailUp(lines int) bool {
	if m.detailScroll == 0 {
		return false
	}
	m.detailScroll -= lines
	if m.detailScroll < 0 {
		m.detailScroll = 0
	}
	return true
}

func (m *Model) scrollDetailDown(lines int) bool {
	max := m.detailMaxScroll()
	if m.detailScroll >= max {
		return false
	}
	m.detailScroll += lines
	if m.detailScroll > max {
		m.detailScroll = max
	}
	return true
}

func (m *Model) detailMaxScroll() int {
	n := 0
	if m.detailText != "" {
		n = strings.Count(m.detailText, "\n") + 1
	}
	if n <= 1 {
		return 0
	}
	return n - 1
}

// setDetailDiff shows diff text. An empty target means the full diff.
func (m *Model) setDetailDiff(target, text string) {
	m.detailKind = detailDiff
	if target != "" {
		m.detailTitle = "Diff: " + target
	} else {
		m.detailTitle = "Diff: (all)"
	}
	m.detailText = text
	m.detailTarget = target
	m.detailScroll = 0
}

func (m *Model) setDetailPreview(target, content string) {
	m.detailKind = detailPreview
	m.detailTitle = "Preview: " + target
	m.detailText = content
	m.detailTarget = target
	m.detailScroll = 0
}

func (m *Model) clearDetail() {
	m.detailTitle = "Diff / Preview"
	m.detailText = ""
	m.detailTarget = ""
	m.detailScroll = 0
}

// stageListFilter records a draft filter value and returns the debounce
// timer that will apply it.
func (m *Model) stageListFilter(value string) tea.Cmd {
	m.stagedFilter = value
	m.stagedFilterSet = true
	m.filterGen++
	gen := m.filterGen
	return tea.Tick(listFilterDebounce, func(time.Time) tea.Msg {
		return filterDebounceMsg{gen: gen}
	})
}

// flushStagedFilter applies the staged value if one is pending. Reports
// whether the visible list changed.
func (m *Model) flushStagedFilter() bool {
	if !m.stagedFilterSet {
		return false
	}
	value := m.stagedFilter
	m.clearStagedFilter()
	if m.listFilter == value {
		return false
	}
	m.listFilter = value
	m.rebuildVisibleEntries()
	return true
}

func (m *Model) applyListFilterImmediately(value string) {
	m.clearStagedFilter()
	if m.listFilter == value {
		return
	}
	m.listFilter = value
	m.rebuildVisibleEntries()
}

func (m *Model) clearStagedFilter() {
	m.stagedFilter = ""
	m.stagedFilterSet = false
	m.filterGen++
}

// submitTask hands a task to the backend worker and marks the session busy.
func (m *Model) submitTask(task backendTask) tea.Cmd {
	if m.worker == nil {
		return nil
	}
	m.busy = true
	m.worker.submit(task)
	return nil
}

package tui

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/config"
)

// colorProfileMu serializes tests that mutate the global lipgloss color profile.
var colorProfileMu sync.Mutex

// forceColorProfile sets lipgloss to ANSI color output for tests that assert
// on styled output. It acquires colorProfileMu to prevent data races with
// parallel tests and restores the original profile via t.Cleanup.
func forceColorProfile(t *testing.T) {
	t.Helper()
	colorProfileMu.Lock()
	orig := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.ANSI)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(orig)
		colorProfileMu.Unlock()
	})
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// stubClient is an in-memory chezmoi.Client for session tests. Run calls
// are recorded so tests can assert on dispatched engine work.
type stubClient struct {
	status    []chezmoi.StatusEntry
	managed   []string
	unmanaged []string
	diffText  string
	sourceDir string

	statusErr    error
	managedErr   error
	unmanagedErr error
	diffErr      error

	runResult chezmoi.CommandResult
	runErr    error

	mu          sync.Mutex
	runRequests []chezmoi.ActionRequest
}

func (c *stubClient) Status(context.Context) ([]chezmoi.StatusEntry, error) {
	if c.statusErr != nil {
		return nil, c.statusErr
	}
	return c.status, nil
}

func (c *stubClient) Managed(context.Context) ([]string, error) {
	if c.managedErr != nil {
		return nil, c.managedErr
	}
	return c.managed, nil
}

func (c *stubClient) Unmanaged(context.Context) ([]string, error) {
	if c.unmanagedErr != nil {
		return nil, c.unmanagedErr
	}
	return c.unmanaged, nil
}

func (c *stubClient) Diff(context.Context, string) (string, error) {
	if c.diffErr != nil {
		return "", c.diffErr
	}
	return c.diffText, nil
}

func (c *stubClient) Run(_ context.Context, req chezmoi.ActionRequest) (chezmoi.CommandResult, error) {
	c.mu.Lock()
	c.runRequests = append(c.runRequests, req)
	c.mu.Unlock()
	if c.runErr != nil {
		return chezmoi.CommandResult{}, c.runErr
	}
	return c.runResult, nil
}

func (c *stubClient) SourcePath(context.Context) (string, error) {
	return c.sourceDir, nil
}

func (c *stubClient) Command(req chezmoi.ActionRequest) ([]string, error) {
	args, err := chezmoi.ActionArgs(req)
	if err != nil {
		return nil, err
	}
	return append([]string{"true"}, args...), nil
}

// newRecordingWorker builds a worker with buffered channels and no
// goroutines, so submitted tasks stay inspectable in the tasks channel.
func newRecordingWorker() *worker {
	return &worker{
		tasks:  make(chan backendTask, 64),
		ready:  make(chan backendTask, 64),
		events: make(chan tea.Msg, 64),
	}
}

// drainTasks empties and returns the tasks submitted to a recording worker.
func drainTasks(w *worker) []backendTask {
	var tasks []backendTask
	for {
		select {
		case task := <-w.tasks:
			tasks = append(tasks, task)
		default:
			return tasks
		}
	}
}

// TestModelBuilder constructs Model fixtures.
type TestModelBuilder struct {
	t *testing.T

	status    []chezmoi.StatusEntry
	managed   []string
	unmanaged []string

	homeDir    string
	workingDir string
	sourceDir  string

	view       viewKind
	viewSet    bool
	twoStep    bool
	twoStepSet bool
	excludes   []string

	client *stubClient
	worker *worker
}

func NewBuilder(t *testing.T) *TestModelBuilder {
	t.Helper()
	return &TestModelBuilder{t: t}
}

func (b *TestModelBuilder) WithStatus(entries ...chezmoi.StatusEntry) *TestModelBuilder {
	b.status = entries
	return b
}

func (b *TestModelBuilder) WithManaged(paths ...string) *TestModelBuilder {
	b.managed = paths
	return b
}

func (b *TestModelBuilder) WithUnmanaged(paths ...string) *TestModelBuilder {
	b.unmanaged = paths
	return b
}

func (b *TestModelBuilder) WithHomeDir(dir string) *TestModelBuilder {
	b.homeDir = dir
	return b
}

func (b *TestModelBuilder) WithWorkingDir(dir string) *TestModelBuilder {
	b.workingDir = dir
	return b
}

func (b *TestModelBuilder) WithSourceDir(dir string) *TestModelBuilder {
	b.sourceDir = dir
	return b
}

func (b *TestModelBuilder) WithView(view viewKind) *TestModelBuilder {
	b.view = view
	b.viewSet = true
	return b
}

func (b *TestModelBuilder) WithTwoStep(enabled bool) *TestModelBuilder {
	b.twoStep = enabled
	b.twoStepSet = true
	return b
}

func (b *TestModelBuilder) WithExcludePaths(paths ...string) *TestModelBuilder {
	b.excludes = paths
	return b
}

func (b *TestModelBuilder) WithWorker(w *worker) *TestModelBuilder {
	b.worker = w
	return b
}

func (b *TestModelBuilder) Build() Model {
	b.t.Helper()

	if b.homeDir == "" {
		b.homeDir = b.t.TempDir()
	}
	if b.workingDir == "" {
		b.workingDir = b.homeDir
	}
	if b.sourceDir == "" {
		b.sourceDir = b.t.TempDir()
	}

	cfg := config.Default()
	if b.twoStepSet {
		cfg.Confirm.TwoStep = b.twoStep
	}
	cfg.Unmanaged.ExcludePaths = b.excludes

	b.client = &stubClient{
		status:    b.status,
		managed:   b.managed,
		unmanaged: b.unmanaged,
		sourceDir: b.sourceDir,
	}

	m := New(Options{
		Config:     cfg,
		Client:     b.client,
		HomeDir:    b.homeDir,
		WorkingDir: b.workingDir,
	})
	m.worker = b.worker
	m.width = 100
	m.height = 30
	m.applyRefreshEntries(b.status, b.managed, b.unmanaged)
	if b.viewSet {
		m.switchView(b.view)
	} else {
		m.rebuildVisibleEntries()
	}
	return m
}

// Client returns the stub wired into the last Build.
func (b *TestModelBuilder) Client() *stubClient {
	return b.client
}

// keyMsg converts a key name into the tea.KeyMsg the program would receive.
func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "pgup":
		return tea.KeyMsg{Type: tea.KeyPgUp}
	case "pgdown":
		return tea.KeyMsg{Type: tea.KeyPgDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

// pressKey routes one key through Update and returns the concrete model.
func pressKey(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(keyMsg(key))
	model, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", updated)
	}
	return model, cmd
}

// typeString feeds each rune as its own key press.
func typeString(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		m, _ = pressKey(t, m, string(r))
	}
	return m
}

func hasLogLine(m Model, substr string) bool {
	for _, line := range m.logs {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

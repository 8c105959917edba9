package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/ignore"
)

// foregroundFinishedMsg reports a terminal-attached action (editor, merge
// tool) that has finished and returned the screen.
type foregroundFinishedMsg struct {
	request chezmoi.ActionRequest
	err     error
	started time.Time
}

// buildActionRequests expands an action into requests: one per selected
// target for target-taking actions, a single bare request otherwise.
func (m *Model) buildActionRequests(action chezmoi.Action) []chezmoi.ActionRequest {
	if !action.NeedsTarget() {
		return []chezmoi.ActionRequest{{Action: action}}
	}

	targets := m.selectedActionTargetsAbsolute()
	requests := make([]chezmoi.ActionRequest, 0, len(targets))
	for _, target := range targets {
		requests = append(requests, chezmoi.ActionRequest{Action: action, Target: target})
	}
	return requests
}

// validateActionRequests returns a user-facing message when the request set
// cannot run, or "" when it is acceptable.
func (m *Model) validateActionRequests(action chezmoi.Action, requests []chezmoi.ActionRequest) string {
	if len(requests) == 0 {
		return action.Label() + " requires a target file"
	}

	for _, req := range requests {
		if req.Target == "" {
			continue
		}
		if action == chezmoi.ActionAdd {
			if info, err := os.Stat(req.Target); err == nil && info.IsDir() {
				return "Adding a whole directory is disabled. Expand it and select only required files."
			}
		}
		if action == chezmoi.ActionEdit && !m.isAbsolutePathManaged(req.Target) {
			return "edit is available only for managed files"
		}
	}
	return ""
}

// startBatch begins executing a request set. A single request runs with no
// batch bookkeeping; two or more queue the remainder. Returns the first
// request and whether there is one.
func (m *Model) startBatch(requests []chezmoi.ActionRequest) (chezmoi.ActionRequest, bool) {
	if len(requests) == 0 {
		return chezmoi.ActionRequest{}, false
	}
	if len(requests) == 1 {
		m.clearBatch()
		return requests[0], true
	}

	first := requests[0]
	m.batchActive = true
	m.batchAction = first.Action
	m.batchTotal = len(requests)
	m.batchQueue = append([]chezmoi.ActionRequest(nil), requests[1:]...)
	return first, true
}

func (m *Model) popNextBatchRequest() (chezmoi.ActionRequest, bool) {
	if len(m.batchQueue) == 0 {
		return chezmoi.ActionRequest{}, false
	}
	next := m.batchQueue[0]
	m.batchQueue = m.batchQueue[1:]
	return next, true
}

func (m *Model) batchInProgress() bool {
	return m.batchActive
}

// applyChattrAttrsToBatch broadcasts a just-entered attribute string to the
// queued chattr requests so the modal is asked once per batch, not once per
// file.
func (m *Model) applyChattrAttrsToBatch(attrs string) {
	for i := range m.batchQueue {
		if m.batchQueue[i].Action == chezmoi.ActionChattr {
			m.batchQueue[i].ChattrAttrs = attrs
		}
	}
}

func (m *Model) clearBatch() {
	m.batchActive = false
	m.batchTotal = 0
	m.batchQueue = nil
}

// cancelBatch discards the remaining queue. Completed requests are not
// rolled back.
func (m *Model) cancelBatch() {
	if !m.batchInProgress() {
		return
	}
	m.clearBatch()
	m.log("batch canceled")
}

// dispatchActionRequest routes a request through its gates: attribute entry
// for chattr, confirmation for dangerous actions, then execution.
func (m *Model) dispatchActionRequest(req chezmoi.ActionRequest) tea.Cmd {
	if req.Action == chezmoi.ActionChattr && req.ChattrAttrs == "" {
		m.modal = newAttrInputModal(req)
		return nil
	}
	if req.Action.Dangerous() {
		m.modal = newConfirmModal(req)
		return nil
	}
	return m.executeActionRequest(req)
}

// executeActionRequest runs a gated request: internal ignore edits run
// inline, foreground actions take over the terminal, everything else goes
// to the backend worker.
func (m *Model) executeActionRequest(req chezmoi.ActionRequest) tea.Cmd {
	if req.Action == chezmoi.ActionIgnore {
		if err := m.runInternalIgnore(req); err != nil {
			m.log(fmt.Sprintf("ignore action error: %v", err))
			if m.batchInProgress() {
				return m.maybeContinueBatch()
			}
			return nil
		}
		if m.batchInProgress() {
			return m.maybeContinueBatch()
		}
		return m.submitTask(taskRefreshAll{})
	}

	if req.Action.Foreground() {
		return m.foregroundCommand(req)
	}
	return m.submitTask(taskRunAction{request: req})
}

// maybeContinueBatch pops and dispatches the next queued request, re-running
// its gates. An empty queue logs the summary and refreshes.
func (m *Model) maybeContinueBatch() tea.Cmd {
	if !m.batchInProgress() {
		return nil
	}
	if next, ok := m.popNextBatchRequest(); ok {
		return m.dispatchActionRequest(next)
	}

	m.log(fmt.Sprintf("batch completed: action=%s total=%d", m.batchAction.Label(), m.batchTotal))
	m.clearBatch()
	return m.submitTask(taskRefreshAll{})
}

// runInternalIgnore appends an ignore pattern for the request's target to
// the source tree's ignore file. The pattern shape comes from the mode tag
// stored in the request's attribute field.
func (m *Model) runInternalIgnore(req chezmoi.ActionRequest) error {
	if req.Target == "" {
		return errors.New("ignore requires a target file or directory")
	}

	sourceDir, err := m.client.SourcePath(context.Background())
	if err != nil {
		return err
	}

	mode := ignore.ModeAuto
	if req.ChattrAttrs != "" {
		if parsed, ok := ignore.ModeFromTag(req.ChattrAttrs); ok {
			mode = parsed
		}
	}

	pattern, existed, err := ignore.Apply(req.Target, m.homeDir, sourceDir, mode)
	if err != nil {
		return err
	}
	if existed {
		m.log("ignore pattern already exists: " + pattern)
	} else {
		m.log("ignore pattern added: " + pattern)
	}
	return nil
}

// foregroundCommand suspends the session and attaches the action to the
// terminal. The edit-ignore pseudo action opens the operator's editor on
// the source tree's ignore file; everything else runs the engine directly.
func (m *Model) foregroundCommand(req chezmoi.ActionRequest) tea.Cmd {
	var argv []string
	if req.Action == chezmoi.ActionEditIgnore {
		ignorePath, err := m.ensureIgnoreFile()
		if err != nil {
			m.log(fmt.Sprintf("foreground action error: %v", err))
			if m.batchInProgress() {
				return m.maybeContinueBatch()
			}
			return nil
		}
		argv = []string{"sh", "-c", `${VISUAL:-${EDITOR:-vi}} "$1"`, "sh", ignorePath}
	} else {
		var err error
		argv, err = m.client.Command(req)
		if err != nil {
			m.log(fmt.Sprintf("foreground action error: %v", err))
			if m.batchInProgress() {
				return m.maybeContinueBatch()
			}
			return nil
		}
	}

	m.busy = true
	started := time.Now()
	c := exec.Command(argv[0], argv[1:]...)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return foregroundFinishedMsg{request: req, err: err, started: started}
	})
}

// ensureIgnoreFile resolves the ignore file path and makes sure it exists
// so the editor does not start on a missing directory.
func (m *Model) ensureIgnoreFile() (string, error) {
	sourceDir, err := m.client.SourcePath(context.Background())
	if err != nil {
		return "", err
	}
	return ignore.EnsureIgnoreFile(sourceDir)
}

// handleForegroundFinished logs the foreground outcome and resumes any
// batch, refreshing after a clean standalone run.
func (m *Model) handleForegroundFinished(msg foregroundFinishedMsg) tea.Cmd {
	m.busy = false

	exitCode := 0
	if msg.err != nil {
		var exitErr *exec.ExitError
		if errors.As(msg.err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			m.log(fmt.Sprintf("foreground action error: %v", msg.err))
			if m.batchInProgress() {
				return m.maybeContinueBatch()
			}
			return nil
		}
	}

	target := msg.request.Target
	if target == "" {
		target = "(none)"
	}
	m.log(fmt.Sprintf("foreground action done: %s %s exit=%d duration=%dms",
		msg.request.Action.Label(), target, exitCode, time.Since(msg.started).Milliseconds()))

	if m.batchInProgress() {
		return m.maybeContinueBatch()
	}
	if exitCode == 0 {
		return m.submitTask(taskRefreshAll{})
	}
	return nil
}

// handleActionFinished logs a background action outcome, surfaces trimmed
// stderr, and resumes any batch or refreshes after success.
func (m *Model) handleActionFinished(req chezmoi.ActionRequest, result chezmoi.CommandResult) tea.Cmd {
	m.busy = false

	target := req.Target
	if target == "" {
		target = "(none)"
	}
	m.log(fmt.Sprintf("action %s %s exit=%d duration=%dms",
		req.Action.Label(), target, result.ExitCode, result.Duration.Milliseconds()))
	if strings.TrimSpace(result.Stderr) != "" {
		m.log("stderr: " + squashLines(result.Stderr))
	}

	if m.batchInProgress() {
		return m.maybeContinueBatch()
	}
	if result.ExitCode == 0 {
		return m.submitTask(taskRefreshAll{})
	}
	return nil
}

// maybeEnqueueAutoDetail loads the detail pane for the new selection: a
// per-file diff in the status view, a content preview for files in the tree
// views. Directories clear the pane, and a detail already showing the
// selection is left alone.
func (m *Model) maybeEnqueueAutoDetail() tea.Cmd {
	switch m.view {
	case viewStatus:
		target := m.selectedAbsolutePath()
		if target == "" {
			return nil
		}
		if m.detailKind == detailDiff && m.detailTarget == target {
			return nil
		}
		return m.submitTask(taskLoadDiff{target: target})

	case viewManaged, viewUnmanaged:
		if m.selectedIsDirectory() {
			m.clearDetail()
			return nil
		}
		target := m.selectedPath()
		abs := m.selectedAbsolutePath()
		if target == "" || abs == "" {
			return nil
		}
		if m.detailKind == detailPreview && m.detailTarget == target {
			return nil
		}
		return m.submitTask(taskLoadPreview{target: target, absolute: abs})
	}
	return nil
}

// squashLines compacts multi-line command output into a single log line:
// trimmed, blanks dropped, at most five lines.
func squashLines(input string) string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == 5 {
			break
		}
	}
	return strings.Join(kept, " | ")
}

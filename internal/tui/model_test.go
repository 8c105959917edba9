package tui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chezmui/chezmui/internal/chezmoi"
)

func TestLogRingTrimsOldLines(t *testing.T) {
	m := NewBuilder(t).Build()

	for i := 0; i < maxLogLines+25; i++ {
		m.log(fmt.Sprintf("line %d", i))
	}

	if len(m.logs) != maxLogLines {
		t.Fatalf("log lines = %d, want %d", len(m.logs), maxLogLines)
	}
	if got, want := m.logs[0], "line 25"; got != want {
		t.Errorf("oldest kept line = %q, want %q", got, want)
	}
}

func TestLogAppendPreservesScrollbackPosition(t *testing.T) {
	m := NewBuilder(t).Build()
	m.log("one")
	m.log("two")

	m.scrollLogUp(1)
	m.log("three")

	// The viewed window must not shift when new lines arrive.
	if m.logTailOffset != 2 {
		t.Errorf("tail offset = %d, want 2", m.logTailOffset)
	}

	m.scrollLogDown(5)
	if m.logTailOffset != 0 {
		t.Errorf("tail offset after overscroll down = %d, want 0", m.logTailOffset)
	}
}

func TestDetailTitles(t *testing.T) {
	m := NewBuilder(t).Build()

	m.setDetailDiff("/home/u/.bashrc", "body")
	if m.detailTitle != "Diff: /home/u/.bashrc" {
		t.Errorf("title = %q", m.detailTitle)
	}

	m.setDetailDiff("", "body")
	if m.detailTitle != "Diff: (all)" {
		t.Errorf("title = %q", m.detailTitle)
	}

	m.setDetailPreview("notes.txt", "body")
	if m.detailTitle != "Preview: notes.txt" {
		t.Errorf("title = %q", m.detailTitle)
	}

	m.clearDetail()
	if m.detailTitle != "Diff / Preview" || m.detailText != "" || m.detailTarget != "" {
		t.Errorf("cleared detail: title=%q text=%q target=%q", m.detailTitle, m.detailText, m.detailTarget)
	}
}

func TestDetailScrollClamps(t *testing.T) {
	m := NewBuilder(t).Build()
	m.setDetailDiff("/x", "a\nb\nc\nd")

	if !m.scrollDetailDown(10) {
		t.Fatal("scroll down reported no movement")
	}
	if m.detailScroll != 3 {
		t.Errorf("scroll = %d, want the last line index 3", m.detailScroll)
	}
	if m.scrollDetailDown(1) {
		t.Error("scroll past the end reported movement")
	}

	if !m.scrollDetailUp(10) {
		t.Fatal("scroll up reported no movement")
	}
	if m.detailScroll != 0 {
		t.Errorf("scroll = %d, want 0", m.detailScroll)
	}
	if m.scrollDetailUp(1) {
		t.Error("scroll above the top reported movement")
	}
}

func TestSelectWrapOnEmptyList(t *testing.T) {
	m := NewBuilder(t).Build()

	m.selectNext()
	m.selectPrev()
	if m.selectedIndex != 0 {
		t.Errorf("selectedIndex = %d, want 0", m.selectedIndex)
	}
}

func TestSyncListScrollFollowsSelection(t *testing.T) {
	entries := make([]chezmoi.StatusEntry, 30)
	for i := range entries {
		entries[i] = chezmoi.StatusEntry{
			Path:     fmt.Sprintf(".file%02d", i),
			Recorded: chezmoi.ChangeModified,
			Target:   chezmoi.ChangeModified,
		}
	}
	m := NewBuilder(t).WithStatus(entries...).Build()

	m.selectedIndex = 15
	m.syncListScroll(10)
	if m.listScroll != 6 {
		t.Errorf("scroll = %d, want 6", m.listScroll)
	}

	m.selectedIndex = 2
	m.syncListScroll(10)
	if m.listScroll != 2 {
		t.Errorf("scroll = %d, want 2", m.listScroll)
	}
}

func TestFlushWithoutStagedFilterIsNoop(t *testing.T) {
	m := NewBuilder(t).Build()
	if m.flushStagedFilter() {
		t.Error("flush with nothing staged reported a change")
	}
}

func TestStageThenClearDropsDraft(t *testing.T) {
	m := statusFixture(t, ".bashrc", ".vimrc")

	m.stageListFilter("vim")
	m.clearStagedFilter()
	if m.flushStagedFilter() {
		t.Error("cleared draft still applied")
	}
	if len(m.visibleEntries) != 2 {
		t.Errorf("visible entries = %d, want 2", len(m.visibleEntries))
	}
}

func TestWorkerReadyTriggersInitialRefresh(t *testing.T) {
	m := statusFixture(t, ".bashrc")
	w := newRecordingWorker()

	updated, _ := m.Update(workerReadyMsg{worker: w})
	m = updated.(Model)

	if m.worker != w {
		t.Error("worker not stored")
	}
	if !m.busy {
		t.Error("model not busy during the initial refresh")
	}
	tasks := drainTasks(w)
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}
	if _, ok := tasks[0].(taskRefreshAll); !ok {
		t.Errorf("task = %T, want taskRefreshAll", tasks[0])
	}
}

func TestRefreshedMsgAppliesSnapshot(t *testing.T) {
	m := statusFixture(t, ".bashrc")
	m.busy = true

	updated, _ := m.Update(refreshedMsg{
		status: []chezmoi.StatusEntry{
			{Path: ".profile", Recorded: chezmoi.ChangeAdded, Target: chezmoi.ChangeAdded},
		},
		managed: []string{".profile"},
	})
	m = updated.(Model)

	if m.busy {
		t.Error("model still busy after the refresh")
	}
	if len(m.statusEntries) != 1 || m.statusEntries[0].Path != ".profile" {
		t.Errorf("status entries = %+v", m.statusEntries)
	}
	if got := m.selectedPath(); got != ".profile" {
		t.Errorf("selection = %q, want .profile", got)
	}
}

func TestDiffLoadedMsgFillsDetail(t *testing.T) {
	m := NewBuilder(t).Build()
	m.busy = true

	updated, _ := m.Update(diffLoadedMsg{target: "/x", text: "+added line"})
	m = updated.(Model)

	if m.busy {
		t.Error("model still busy")
	}
	if m.detailKind != detailDiff || m.detailTarget != "/x" || m.detailText != "+added line" {
		t.Errorf("detail = kind=%v target=%q text=%q", m.detailKind, m.detailTarget, m.detailText)
	}
}

func TestSpinnerAdvancesOnlyWhenBusy(t *testing.T) {
	m := NewBuilder(t).Build()

	updated, _ := m.Update(spinnerTickMsg{})
	m = updated.(Model)
	if m.spinnerFrame != 0 {
		t.Errorf("idle spinner advanced to %d", m.spinnerFrame)
	}

	m.busy = true
	updated, _ = m.Update(spinnerTickMsg{})
	m = updated.(Model)
	if m.spinnerFrame != 1 {
		t.Errorf("busy spinner frame = %d, want 1", m.spinnerFrame)
	}
}

func TestWindowSizeClampsNegativeValues(t *testing.T) {
	m := NewBuilder(t).Build()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: -5, Height: -5})
	m = updated.(Model)
	if m.width != 0 || m.height != 0 {
		t.Errorf("size = %dx%d, want 0x0", m.width, m.height)
	}
}

func TestInitStartsWorker(t *testing.T) {
	m := NewBuilder(t).Build()
	if cmd := m.Init(); cmd == nil {
		t.Error("Init returned no command")
	}
}

package tui

import (
	"strings"
	"testing"

	"github.com/chezmui/chezmui/internal/chezmoi"
)

func TestViewRendersPanesAndStatusBar(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc", ".vimrc")
	m.log("hello from the log")

	out := stripANSI(m.View())

	for _, want := range []string{"Status", "Log", ".bashrc", ".vimrc", "hello from the log", "IDLE", "1:status 2:managed 3:unmanaged", "? help"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(out, "BUSY") {
		t.Error("idle view shows the busy badge")
	}
}

func TestViewBusyBadgeAndBatchProgress(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	m.busy = true
	m.batchActive = true
	m.batchAction = chezmoi.ActionForget
	m.batchTotal = 3
	m.batchQueue = []chezmoi.ActionRequest{{Action: chezmoi.ActionForget, Target: "/b"}}

	out := stripANSI(m.View())

	if !strings.Contains(out, "BUSY") {
		t.Error("busy badge missing")
	}
	if !strings.Contains(out, "batch:forget 2/3") {
		t.Error("batch progress missing")
	}
}

func TestViewShowsFilterInListTitle(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	m.listFilter = "bash"
	m.rebuildVisibleEntries()

	out := stripANSI(m.View())
	if !strings.Contains(out, "Status [filter: bash]") {
		t.Error("filter missing from the list title")
	}
}

func TestViewFooterHelpExpands(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	m.footerHelp = true
	m.width = 250

	out := stripANSI(m.View())
	if !strings.Contains(out, "space mark") {
		t.Error("expanded help missing")
	}
}

func TestViewMarkedCount(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc", ".vimrc")
	m.markedEntries[".bashrc"] = struct{}{}
	m.markedEntries[".vimrc"] = struct{}{}

	out := stripANSI(m.View())
	if !strings.Contains(out, "marked:2") {
		t.Error("marked count missing")
	}
}

func TestViewEmptyDetailShowsPlaceholder(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	out := stripANSI(m.View())

	if !strings.Contains(out, "Diff / Preview") {
		t.Error("default detail title missing")
	}
	if !strings.Contains(out, "No detail loaded.") {
		t.Error("placeholder missing")
	}
}

func TestViewModalReplacesContent(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	m.modal = newActionMenuModal()

	out := stripANSI(m.View())
	if !strings.Contains(out, "Action Menu") {
		t.Error("action menu title missing")
	}
	if !strings.Contains(out, "apply") {
		t.Error("action labels missing")
	}
}

func TestViewConfirmModalShowsRequiredPhrase(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	modal := newConfirmModal(chezmoi.ActionRequest{Action: chezmoi.ActionDestroy, Target: "/home/u/.vimrc"})
	modal.step = confirmDangerPhrase
	m.modal = modal

	out := stripANSI(m.View())
	for _, want := range []string{"Dangerous Action", "action: destroy", "target: /home/u/.vimrc", "required: DESTROY /home/u/.vimrc"} {
		if !strings.Contains(out, want) {
			t.Errorf("confirm modal missing %q", want)
		}
	}
}

func TestViewIgnoreModalListsModes(t *testing.T) {
	forceColorProfile(t)

	m := statusFixture(t, ".bashrc")
	m.modal = newIgnoreModal([]chezmoi.ActionRequest{{Action: chezmoi.ActionIgnore, Target: "/a"}})

	out := stripANSI(m.View())
	for _, want := range []string{"Ignore Pattern", "auto", "exact", "recursive", "global-name", "targets: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("ignore modal missing %q", want)
		}
	}
}

func TestViewQuittingIsEmpty(t *testing.T) {
	m := statusFixture(t, ".bashrc")
	m.quitting = true
	if got := m.View(); got != "" {
		t.Errorf("quitting view = %q, want empty", got)
	}
}

func TestColorizeDiffLinePassthrough(t *testing.T) {
	forceColorProfile(t)

	if got := colorizeDiffLine("context line"); got != "context line" {
		t.Errorf("context line restyled: %q", got)
	}
	for _, line := range []string{"+++ b/file", "--- a/file", "@@ -1,2 +1,2 @@", "+added", "-removed"} {
		got := colorizeDiffLine(line)
		if got == line {
			t.Errorf("%q not styled", line)
		}
		if stripANSI(got) != line {
			t.Errorf("styling changed the text: %q -> %q", line, stripANSI(got))
		}
	}
}

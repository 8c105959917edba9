package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/chezmui/chezmui/internal/chezmoi"
	"github.com/chezmui/chezmui/internal/fsutil"
)

// backendTask is one unit of work for the backend worker. Tasks run strictly
// in submission order, one at a time, so engine invocations never overlap.
type backendTask interface {
	isTask()
}

type taskRefreshAll struct{}

type taskLoadDiff struct {
	// target is absolute, or empty for the full diff.
	target string
}

type taskLoadPreview struct {
	// target is the view-relative path used for display and matching;
	// absolute is the resolved filesystem path that gets read.
	target   string
	absolute string
}

type taskRunAction struct {
	request chezmoi.ActionRequest
}

func (taskRefreshAll) isTask()  {}
func (taskLoadDiff) isTask()    {}
func (taskLoadPreview) isTask() {}
func (taskRunAction) isTask()   {}

// refreshedMsg carries a full engine snapshot.
type refreshedMsg struct {
	status    []chezmoi.StatusEntry
	managed   []string
	unmanaged []string
}

type diffLoadedMsg struct {
	target string
	text   string
}

type previewLoadedMsg struct {
	target  string
	content string
}

type actionFinishedMsg struct {
	request chezmoi.ActionRequest
	result  chezmoi.CommandResult
}

// backendErrorMsg reports a failed task. context tags the task kind so the
// session can decide whether a batch should continue.
type backendErrorMsg struct {
	context string
	message string
}

// worker serializes backend work on a single goroutine. submit never blocks:
// an intermediate pump goroutine holds an unbounded queue between the intake
// channel and the runner.
type worker struct {
	client chezmoi.Client
	tasks  chan backendTask
	ready  chan backendTask
	events chan tea.Msg
}

func newWorker(client chezmoi.Client) *worker {
	w := &worker{
		client: client,
		tasks:  make(chan backendTask),
		ready:  make(chan backendTask),
		events: make(chan tea.Msg),
	}
	go w.pump()
	go w.run()
	return w
}

// submit enqueues a task. Safe to call from the update loop.
func (w *worker) submit(task backendTask) {
	w.tasks <- task
}

// pump shuttles tasks from the intake channel into the runner, buffering in
// a slice so submit never blocks on a slow engine call.
func (w *worker) pump() {
	var queue []backendTask
	for {
		var out chan backendTask
		var next backendTask
		if len(queue) > 0 {
			out = w.ready
			next = queue[0]
		}
		select {
		case task, ok := <-w.tasks:
			if !ok {
				for _, pending := range queue {
					w.ready <- pending
				}
				close(w.ready)
				return
			}
			queue = append(queue, task)
		case out <- next:
			queue = queue[1:]
		}
	}
}

// run executes tasks one at a time and emits exactly one event per task.
func (w *worker) run() {
	for task := range w.ready {
		w.events <- w.execute(task)
	}
}

func (w *worker) execute(task backendTask) (msg tea.Msg) {
	defer func() {
		if r := recover(); r != nil {
			msg = backendErrorMsg{
				context: taskContext(task),
				message: fmt.Sprintf("task panic: %v", r),
			}
		}
	}()

	ctx := context.Background()
	switch task := task.(type) {
	case taskRefreshAll:
		return w.refreshAll(ctx)

	case taskLoadDiff:
		text, err := w.client.Diff(ctx, task.target)
		if err != nil {
			return backendErrorMsg{context: "diff", message: fmt.Sprintf("diff failed: %v", err)}
		}
		return diffLoadedMsg{target: task.target, text: text}

	case taskLoadPreview:
		content, err := fsutil.Preview(task.absolute)
		if err != nil {
			return backendErrorMsg{context: "preview", message: fmt.Sprintf("preview failed: %v", err)}
		}
		return previewLoadedMsg{target: task.target, content: content}

	case taskRunAction:
		result, err := w.client.Run(ctx, task.request)
		if err != nil {
			return backendErrorMsg{context: "action", message: fmt.Sprintf("action failed: %v", err)}
		}
		return actionFinishedMsg{request: task.request, result: result}

	default:
		return backendErrorMsg{context: "task", message: fmt.Sprintf("unknown task %T", task)}
	}
}

// refreshAll runs the three snapshot calls concurrently. All three must
// succeed; a partial snapshot would desynchronize the views.
func (w *worker) refreshAll(ctx context.Context) tea.Msg {
	var (
		status    []chezmoi.StatusEntry
		managed   []string
		unmanaged []string

		statusErr    error
		managedErr   error
		unmanagedErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, statusErr = w.client.Status(gctx)
		return statusErr
	})
	g.Go(func() error {
		managed, managedErr = w.client.Managed(gctx)
		return managedErr
	})
	g.Go(func() error {
		unmanaged, unmanagedErr = w.client.Unmanaged(gctx)
		return unmanagedErr
	})

	if err := g.Wait(); err != nil {
		message := fmt.Sprintf("refresh failed: status=%s, managed=%s, unmanaged=%s",
			describeRefreshError(statusErr),
			describeRefreshError(managedErr),
			describeRefreshError(unmanagedErr))
		return backendErrorMsg{context: "refresh", message: message}
	}

	return refreshedMsg{status: status, managed: managed, unmanaged: unmanaged}
}

func describeRefreshError(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func taskContext(task backendTask) string {
	switch task.(type) {
	case taskRefreshAll:
		return "refresh"
	case taskLoadDiff:
		return "diff"
	case taskLoadPreview:
		return "preview"
	case taskRunAction:
		return "action"
	default:
		return "task"
	}
}

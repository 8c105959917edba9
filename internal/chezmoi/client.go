package chezmoi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Client is the session's view of the dotfile engine. Every call is one
// engine invocation; the engine process is never held open.
type Client interface {
	Status(ctx context.Context) ([]StatusEntry, error)
	Managed(ctx context.Context) ([]string, error)
	Unmanaged(ctx context.Context) ([]string, error)
	// Diff returns raw diff text. target may be empty for a full diff.
	Diff(ctx context.Context, target string) (string, error)
	// Run executes the request's engine subcommand and captures the outcome.
	// A non-zero exit is reported in the result, not as an error.
	Run(ctx context.Context, req ActionRequest) (CommandResult, error)
	// SourcePath returns the engine's source directory.
	SourcePath(ctx context.Context) (string, error)
	// Command returns the argv for running the request attached to the
	// terminal, including the binary and destination flag.
	Command(req ActionRequest) ([]string, error)
}

// ShellClient drives the engine binary through os/exec.
type ShellClient struct {
	binary     string
	homeDir    string
	workingDir string
}

// NewShellClient builds a client for binary rooted at homeDir, with
// workingDir scoping the unmanaged view. Empty arguments fall back to the
// user's home directory and the process working directory.
func NewShellClient(binary, homeDir, workingDir string) *ShellClient {
	if binary == "" {
		binary = "chezmoi"
	}
	if workingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workingDir = wd
		} else {
			workingDir = "."
		}
	}
	if homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			homeDir = home
		} else {
			homeDir = workingDir
		}
	}
	return &ShellClient{binary: binary, homeDir: homeDir, workingDir: workingDir}
}

// HomeDir returns the destination used for home-scoped invocations.
func (c *ShellClient) HomeDir() string { return c.homeDir }

// WorkingDir returns the directory scoping the unmanaged view.
func (c *ShellClient) WorkingDir() string { return c.workingDir }

func (c *ShellClient) runRaw(ctx context.Context, destination string, args ...string) (CommandResult, error) {
	argv := append([]string{"--destination", destination}, args...)
	cmd := exec.CommandContext(ctx, c.binary, argv...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	elapsed := time.Since(started)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return CommandResult{}, fmt.Errorf("failed to execute %s %v: %w", c.binary, args, err)
		}
	}

	return CommandResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}, nil
}

// destinationForTarget picks the engine destination directory for a target.
// Absolute paths under home map to home, absolute paths under the working
// directory map to it, any other absolute path maps to home, relative paths
// map to the working directory, and no target maps to home.
func (c *ShellClient) destinationForTarget(target string) string {
	return destinationForTarget(target, c.homeDir, c.workingDir)
}

func destinationForTarget(target, homeDir, workingDir string) string {
	switch {
	case target == "":
		return homeDir
	case !filepath.IsAbs(target):
		return workingDir
	case pathHasPrefix(target, homeDir):
		return homeDir
	case pathHasPrefix(target, workingDir):
		return workingDir
	default:
		return homeDir
	}
}

func (c *ShellClient) Status(ctx context.Context) ([]StatusEntry, error) {
	result, err := c.runRaw(ctx, c.homeDir, "status")
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("chezmoi status failed: %s", strings.TrimSpace(result.Stderr))
	}
	return ParseStatusOutput(result.Stdout)
}

func (c *ShellClient) Managed(ctx context.Context) ([]string, error) {
	result, err := c.runRaw(ctx, c.homeDir, "managed", "--format", "json")
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("chezmoi managed failed: %s", strings.TrimSpace(result.Stderr))
	}
	return ParseManagedOutput(result.Stdout), nil
}

// Unmanaged lists untracked paths scoped to the working directory. When the
// working directory sits under home the engine runs against home and the
// results are re-rooted; a bare "." root entry is expanded into the working
// directory's immediate children so the view has real rows to show.
func (c *ShellClient) Unmanaged(ctx context.Context) ([]string, error) {
	useHome := pathHasPrefix(c.workingDir, c.homeDir)
	destination := c.workingDir
	if useHome {
		destination = c.homeDir
	}

	result, err := c.runRaw(ctx, destination, "unmanaged")
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("chezmoi unmanaged failed: %s", strings.TrimSpace(result.Stderr))
	}

	paths := ParseUnmanagedOutput(result.Stdout)
	if !useHome {
		return paths, nil
	}

	scoped := scopeUnmanagedToWorkingDir(paths, c.homeDir, c.workingDir)
	for _, p := range scoped {
		if p == "." {
			return c.expandWorkingRootEntries(ctx, scoped)
		}
	}
	return scoped, nil
}

// expandWorkingRootEntries replaces a "." placeholder, which the engine
// reports when the whole working directory is untracked, with the
// per-child unmanaged listings so the tree has concrete root entries.
func (c *ShellClient) expandWorkingRootEntries(ctx context.Context, scoped []string) ([]string, error) {
	merged := make(map[string]struct{})
	for _, p := range scoped {
		if p != "." {
			merged[p] = struct{}{}
		}
	}

	children, err := os.ReadDir(c.workingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.workingDir, err)
	}

	var homeResults []string
	for _, child := range children {
		childPath := filepath.Join(c.workingDir, child.Name())
		result, err := c.runRaw(ctx, c.homeDir, "unmanaged", "--", childPath)
		if err != nil {
			return nil, err
		}
		if result.ExitCode != 0 {
			return nil, fmt.Errorf("chezmoi unmanaged failed: %s", strings.TrimSpace(result.Stderr))
		}
		homeResults = append(homeResults, ParseUnmanagedOutput(result.Stdout)...)
	}

	for _, p := range scopeUnmanagedToWorkingDir(homeResults, c.homeDir, c.workingDir) {
		if p != "." {
			merged[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(merged))
	for p := range merged {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (c *ShellClient) Diff(ctx context.Context, target string) (string, error) {
	args := []string{"diff"}
	if target != "" {
		args = append(args, "--", target)
	}
	result, err := c.runRaw(ctx, c.destinationForTarget(target), args...)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		// The engine exits 0 even when differences exist; non-zero means
		// the invocation itself failed.
		return "", fmt.Errorf("chezmoi diff failed: %s", strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

func (c *ShellClient) Run(ctx context.Context, req ActionRequest) (CommandResult, error) {
	args, err := ActionArgs(req)
	if err != nil {
		return CommandResult{}, err
	}
	return c.runRaw(ctx, c.destinationForTarget(req.Target), args...)
}

func (c *ShellClient) SourcePath(ctx context.Context) (string, error) {
	result, err := c.runRaw(ctx, c.homeDir, "source-path")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("chezmoi source-path failed: %s", strings.TrimSpace(result.Stderr))
	}
	path := strings.TrimSpace(result.Stdout)
	if path == "" {
		return "", errors.New("chezmoi source-path returned no output")
	}
	return path, nil
}

func (c *ShellClient) Command(req ActionRequest) ([]string, error) {
	args, err := ActionArgs(req)
	if err != nil {
		return nil, err
	}
	argv := []string{c.binary, "--destination", c.destinationForTarget(req.Target)}
	return append(argv, args...), nil
}

// ParseStatusOutput parses engine status lines: two change-kind bytes, a
// space, then the path. Blank lines are skipped.
func ParseStatusOutput(output string) ([]StatusEntry, error) {
	var entries []StatusEntry
	for i, raw := range strings.Split(output, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if len(raw) < 4 {
			return nil, fmt.Errorf("invalid status line %d: %q", i+1, raw)
		}
		entries = append(entries, StatusEntry{
			Path:     raw[3:],
			Recorded: ChangeKind(raw[0]),
			Target:   ChangeKind(raw[1]),
		})
	}
	return entries, nil
}

// ParseManagedOutput parses `managed --format json` output, falling back to
// newline splitting when the output is not a JSON array.
func ParseManagedOutput(output string) []string {
	var paths []string
	if err := json.Unmarshal([]byte(output), &paths); err == nil {
		return paths
	}
	return splitNonEmptyLines(output)
}

// ParseUnmanagedOutput parses newline-delimited unmanaged paths.
func ParseUnmanagedOutput(output string) []string {
	return splitNonEmptyLines(output)
}

func splitNonEmptyLines(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}

// scopeUnmanagedToWorkingDir re-roots home-relative unmanaged paths at the
// working directory. Paths covering the working directory itself (or an
// ancestor of it) collapse to ".". Paths outside the working directory are
// dropped. Results are sorted and deduplicated.
func scopeUnmanagedToWorkingDir(paths []string, homeDir, workingDir string) []string {
	if workingDir == homeDir {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			if rel, ok := relativeToHome(p, homeDir); ok {
				out = append(out, rel)
			}
		}
		return out
	}

	workingRel, err := filepath.Rel(homeDir, workingDir)
	if err != nil || strings.HasPrefix(workingRel, "..") {
		return paths
	}

	scoped := make(map[string]struct{})
	for _, p := range paths {
		rel, ok := relativeToHome(p, homeDir)
		if !ok {
			continue
		}
		if rel == workingRel || pathHasPrefix(workingRel, rel) {
			scoped["."] = struct{}{}
			continue
		}
		if !pathHasPrefix(rel, workingRel) {
			continue
		}
		inner := strings.TrimPrefix(rel[len(workingRel):], "/")
		if inner == "" {
			inner = "."
		}
		scoped[inner] = struct{}{}
	}

	out := make([]string, 0, len(scoped))
	for p := range scoped {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func relativeToHome(path, homeDir string) (string, bool) {
	if !filepath.IsAbs(path) {
		return path, true
	}
	if !pathHasPrefix(path, homeDir) {
		return "", false
	}
	rel := strings.TrimPrefix(path[len(homeDir):], string(filepath.Separator))
	return filepath.ToSlash(rel), true
}

// pathHasPrefix reports whether path is base or lives under base, matching
// whole path components only.
func pathHasPrefix(path, base string) bool {
	if base == "" {
		return false
	}
	if path == base {
		return true
	}
	base = strings.TrimSuffix(base, string(filepath.Separator))
	return strings.HasPrefix(path, base+string(filepath.Separator))
}

// ActionArgs maps a request to engine subcommand arguments, excluding the
// destination flag. Internal actions (ignore, edit-ignore) have no engine
// subcommand and return an error.
func ActionArgs(req ActionRequest) ([]string, error) {
	target := req.Target
	required := func() (string, error) {
		if target == "" {
			return "", fmt.Errorf("%s requires target", req.Action.Label())
		}
		return target, nil
	}

	switch req.Action {
	case ActionApply:
		return []string{"apply"}, nil
	case ActionUpdate:
		return []string{"update"}, nil
	case ActionEditConfig:
		return []string{"edit-config"}, nil
	case ActionEditConfigTemplate:
		return []string{"edit-config-template"}, nil
	case ActionReAdd:
		return []string{"re-add"}, nil
	case ActionMerge:
		if target == "" {
			return []string{"merge"}, nil
		}
		return []string{"merge", "--", target}, nil
	case ActionMergeAll:
		return []string{"merge-all"}, nil
	case ActionAdd:
		t, err := required()
		if err != nil {
			return nil, err
		}
		return []string{"add", "--", t}, nil
	case ActionEdit:
		t, err := required()
		if err != nil {
			return nil, err
		}
		return []string{"edit", "--", t}, nil
	case ActionForget:
		t, err := required()
		if err != nil {
			return nil, err
		}
		return []string{"forget", "--force", "--no-tty", "--", t}, nil
	case ActionChattr:
		t, err := required()
		if err != nil {
			return nil, err
		}
		if req.ChattrAttrs == "" {
			return nil, errors.New("chattr requires attributes")
		}
		return []string{"chattr", "--", req.ChattrAttrs, t}, nil
	case ActionDestroy:
		t, err := required()
		if err != nil {
			return nil, err
		}
		return []string{"destroy", "--", t}, nil
	case ActionPurge:
		return []string{"purge", "--force", "--no-tty"}, nil
	case ActionEditIgnore:
		return nil, errors.New("edit-ignore is an internal action with no engine subcommand")
	case ActionIgnore:
		return nil, errors.New("ignore is an internal action with no engine subcommand")
	default:
		return nil, fmt.Errorf("unknown action %d", req.Action)
	}
}

// Package chezmoi defines the domain types for a chezmoi-style dotfile
// engine and a shell client that drives the engine binary one invocation
// per task.
package chezmoi

import (
	"fmt"
	"time"
)

// ChangeKind classifies one column of a status line. The value is the raw
// status byte, so unknown codes pass through unchanged.
type ChangeKind byte

const (
	ChangeNone     ChangeKind = ' '
	ChangeAdded    ChangeKind = 'A'
	ChangeDeleted  ChangeKind = 'D'
	ChangeModified ChangeKind = 'M'
	ChangeRun      ChangeKind = 'R'
)

// Symbol returns the single-character code used in status output.
func (k ChangeKind) Symbol() byte { return byte(k) }

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	case ChangeModified:
		return "modified"
	case ChangeRun:
		return "run"
	default:
		return fmt.Sprintf("unknown(%c)", byte(k))
	}
}

// StatusEntry is one line of engine status output: a managed path with two
// independent change indicators.
type StatusEntry struct {
	Path string
	// Recorded compares the destination against the last recorded state.
	Recorded ChangeKind
	// Target compares the destination against the target state.
	Target ChangeKind
}

func (e StatusEntry) String() string {
	return fmt.Sprintf("%c%c %s", e.Recorded.Symbol(), e.Target.Symbol(), e.Path)
}

// Action is the closed set of operations the session can dispatch.
type Action int

const (
	ActionApply Action = iota
	ActionUpdate
	ActionReAdd
	ActionMerge
	ActionMergeAll
	ActionAdd
	ActionEdit
	ActionForget
	ActionChattr
	ActionDestroy
	ActionPurge
	ActionEditConfig
	ActionEditConfigTemplate
	ActionEditIgnore
	ActionIgnore
)

// Actions lists every action in declaration order.
var Actions = []Action{
	ActionApply,
	ActionUpdate,
	ActionReAdd,
	ActionMerge,
	ActionMergeAll,
	ActionAdd,
	ActionEdit,
	ActionForget,
	ActionChattr,
	ActionDestroy,
	ActionPurge,
	ActionEditConfig,
	ActionEditConfigTemplate,
	ActionEditIgnore,
	ActionIgnore,
}

func (a Action) Label() string {
	switch a {
	case ActionApply:
		return "apply"
	case ActionUpdate:
		return "update"
	case ActionReAdd:
		return "re-add"
	case ActionMerge:
		return "merge"
	case ActionMergeAll:
		return "merge-all"
	case ActionAdd:
		return "add"
	case ActionEdit:
		return "edit"
	case ActionForget:
		return "forget"
	case ActionChattr:
		return "chattr"
	case ActionDestroy:
		return "destroy"
	case ActionPurge:
		return "purge"
	case ActionEditConfig:
		return "edit-config"
	case ActionEditConfigTemplate:
		return "edit-config-template"
	case ActionEditIgnore:
		return "edit-ignore"
	case ActionIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

func (a Action) Description() string {
	switch a {
	case ActionApply:
		return "apply target state to destination"
	case ActionUpdate:
		return "update source and apply changes"
	case ActionReAdd:
		return "re-import modified files"
	case ActionMerge:
		return "run 3-way merge"
	case ActionMergeAll:
		return "run 3-way merge for all changes"
	case ActionAdd:
		return "add existing file to managed set"
	case ActionEdit:
		return "edit source state in external editor"
	case ActionForget:
		return "remove from managed set"
	case ActionChattr:
		return "change source attributes"
	case ActionDestroy:
		return "delete from source/destination/state"
	case ActionPurge:
		return "remove chezmoi config and data"
	case ActionEditConfig:
		return "edit chezmoi config in external editor"
	case ActionEditConfigTemplate:
		return "edit chezmoi config template in external editor"
	case ActionEditIgnore:
		return "edit ignore file in external editor"
	case ActionIgnore:
		return "add ignore pattern for the target"
	default:
		return ""
	}
}

// Dangerous reports whether the action destroys data and must be confirmed.
func (a Action) Dangerous() bool {
	return a == ActionDestroy || a == ActionPurge
}

// NeedsTarget reports whether the action operates on explicit target paths.
func (a Action) NeedsTarget() bool {
	switch a {
	case ActionMerge, ActionAdd, ActionEdit, ActionForget, ActionChattr, ActionDestroy, ActionIgnore:
		return true
	default:
		return false
	}
}

// Foreground reports whether the action needs the terminal for itself
// (editors, interactive merges, update output) and must run attached
// rather than through the background worker.
func (a Action) Foreground() bool {
	switch a {
	case ActionEdit, ActionUpdate, ActionMerge, ActionMergeAll,
		ActionEditConfig, ActionEditConfigTemplate, ActionEditIgnore:
		return true
	default:
		return false
	}
}

// confirmKeyword is the fixed keyword the operator must type to authorize
// a dangerous action.
func (a Action) confirmKeyword() string {
	switch a {
	case ActionDestroy:
		return "DESTROY"
	case ActionPurge:
		return "PURGE"
	default:
		return ""
	}
}

// ActionRequest is one unit of dispatchable work: an action plus its
// optional target and, for chattr, the attribute string. Immutable once
// built; a batch is an ordered slice of requests sharing one action.
type ActionRequest struct {
	Action      Action
	Target      string
	ChattrAttrs string
}

// StrictConfirm reports whether the request always requires a typed phrase,
// regardless of the two-step confirmation setting.
func (r ActionRequest) StrictConfirm() bool {
	return r.Action.Dangerous()
}

// ConfirmPhrase returns the exact phrase the operator must type: the action
// keyword plus, for single-target destructive actions, the literal target
// path. Empty for actions that need no phrase.
func (r ActionRequest) ConfirmPhrase() string {
	keyword := r.Action.confirmKeyword()
	if keyword == "" {
		return ""
	}
	if r.Target != "" && r.Action.NeedsTarget() {
		return keyword + " " + r.Target
	}
	return keyword
}

// CommandResult captures one engine invocation.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

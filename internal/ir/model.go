package ir

import "strings"

// Playbook is the structured model of one playbook or task-list file.
// A file that failed to parse carries ParseError and possibly the plays
// decoded before the error.
type Playbook struct {
	File       string
	Plays      []*Play
	ParseError *ParseError
	Warnings   []Warning
}

type ParseError struct {
	Line    int // 0 when the parser could not locate the error
	Message string
}

// Warning is a problem found while building the model.
type Warning struct {
	Line    int
	Kind    WarningKind
	Message string
}

type WarningKind int

const (
	// StructureWarning: a section that is not what Ansible expects, e.g. a
	// tasks section that is not a list.
	StructureWarning WarningKind = iota
	// DiagnosticWarning: content the parser dropped, e.g. an alias that
	// refers back to one of its own ancestors.
	DiagnosticWarning
)

// Play is one entry of a playbook. Implicit plays wrap bare task lists
// (role task files, included task files) and have no header attributes.
type Play struct {
	Line     int
	Implicit bool
	Attrs    Attrs

	PreTasks  []*Task
	Tasks     []*Task
	PostTasks []*Task
	Handlers  []*Task
}

// Name returns the play name or "" when unnamed.
func (p *Play) Name() string {
	if a, ok := p.Attrs.Get("name"); ok {
		return a.String()
	}
	return ""
}

// IsImport reports whether the play is an import_playbook entry.
func (p *Play) IsImport() bool {
	return p.Attrs.Has("import_playbook") || p.Attrs.Has("ansible.builtin.import_playbook")
}

// AllTasks returns the tasks of every task section, blocks flattened
// depth-first. Block nodes themselves are not included.
func (p *Play) AllTasks() []*Task {
	var out []*Task
	for _, sec := range [][]*Task{p.PreTasks, p.Tasks, p.PostTasks} {
		out = appendLeaves(out, sec)
	}
	return out
}

// AllHandlers returns handler tasks, blocks flattened.
func (p *Play) AllHandlers() []*Task {
	return appendLeaves(nil, p.Handlers)
}

func appendLeaves(out []*Task, ts []*Task) []*Task {
	for _, t := range ts {
		if t.IsBlock() {
			out = appendLeaves(out, t.Block)
			out = appendLeaves(out, t.Rescue)
			out = appendLeaves(out, t.Always)
			continue
		}
		out = append(out, t)
	}
	return out
}

// Task is a task, handler or block node.
type Task struct {
	Line  int
	Attrs Attrs

	Block  []*Task
	Rescue []*Task
	Always []*Task
}

func (t *Task) IsBlock() bool { return t.Attrs.Has("block") }

// Name returns the task name or "" when unnamed.
func (t *Task) Name() string {
	if a, ok := t.Attrs.Get("name"); ok {
		return strings.TrimSpace(a.String())
	}
	return ""
}

// Module returns the attribute holding the module invocation: the first key
// that is not a task keyword.
func (t *Task) Module() (Attr, bool) {
	if t.IsBlock() {
		return Attr{}, false
	}
	for _, a := range t.Attrs {
		if !IsTaskKeyword(a.Key) {
			return a, true
		}
	}
	return Attr{}, false
}

// ModuleName returns the module key without the FQCN namespace
// ("ansible.builtin.shell" -> "shell").
func (t *Task) ModuleName() string {
	m, ok := t.Module()
	if !ok {
		return ""
	}
	return ShortModule(m.Key)
}

// Arg returns a module argument given either in mapping form or through the
// task-level args keyword.
func (t *Task) Arg(key string) (Attr, bool) {
	if m, ok := t.Module(); ok && m.IsMap() {
		if a, ok := m.Map().Get(key); ok {
			return a, true
		}
	}
	if args, ok := t.Attrs.Get("args"); ok && args.IsMap() {
		return args.Map().Get(key)
	}
	return Attr{}, false
}

// ShortModule strips a collection namespace from a module name.
func ShortModule(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// RoleMeta is the structured model of a role's meta/main.yml.
type RoleMeta struct {
	File       string
	Attrs      Attrs
	ParseError *ParseError
	Warnings   []Warning
}

// GalaxyInfo returns the galaxy_info mapping.
func (m *RoleMeta) GalaxyInfo() (Attr, bool) {
	a, ok := m.Attrs.Get("galaxy_info")
	if !ok || !a.IsMap() {
		return Attr{}, false
	}
	return a, true
}

var taskKeywords = map[string]bool{
	"any_errors_fatal": true, "args": true, "async": true, "become": true,
	"become_exe": true, "become_flags": true, "become_method": true, "become_user": true,
	"changed_when": true, "check_mode": true, "collections": true, "connection": true,
	"debugger": true, "delay": true, "delegate_facts": true, "delegate_to": true,
	"diff": true, "environment": true, "failed_when": true, "ignore_errors": true,
	"ignore_unreachable": true, "listen": true, "loop": true, "loop_control": true,
	"module_defaults": true, "name": true, "no_log": true, "notify": true,
	"poll": true, "port": true, "register": true, "remote_user": true,
	"retries": true, "run_once": true, "tags": true, "throttle": true,
	"timeout": true, "until": true, "vars": true, "when": true,
	"block": true, "rescue": true, "always": true,
	"sudo": true, "sudo_user": true, "su": true, "su_user": true,
}

// IsTaskKeyword reports whether key is a task-level keyword rather than a
// module name.
func IsTaskKeyword(key string) bool {
	if strings.HasPrefix(key, "with_") {
		return true
	}
	return taskKeywords[key]
}

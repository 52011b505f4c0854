package rules

import (
	"log/slog"
	"sort"

	"github.com/qualimetry/qansible/internal/ir"
)

// Walker runs a fixed set of checks over playbook and role metadata models.
// Checks are ordered by key once, and that order is used at every node.
type Walker struct {
	checks []Check
	logger *slog.Logger
}

func NewWalker(checks []Check, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	cs := make([]Check, len(checks))
	copy(cs, checks)
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Key < cs[j].Key })
	return &Walker{checks: cs, logger: logger}
}

// Checks returns the walker's checks in invocation order.
func (w *Walker) Checks() []Check {
	out := make([]Check, len(w.checks))
	copy(out, w.checks)
	return out
}

type visit struct {
	w      *Walker
	src    *Source
	issues []Issue
	ctxs   []*Context
}

func (w *Walker) begin(src *Source) *visit {
	v := &visit{w: w, src: src}
	v.ctxs = make([]*Context, len(w.checks))
	for i, c := range w.checks {
		v.ctxs[i] = &Context{Source: src, key: c.Key, issues: &v.issues, logger: w.logger}
	}
	return v
}

// WalkPlaybook visits every node of pb once, depth-first, and returns the
// issues of all checks in emission order.
func (w *Walker) WalkPlaybook(src *Source, pb *ir.Playbook) []Issue {
	v := w.begin(src)
	for i, c := range w.checks {
		if c.File != nil {
			v.call(c.Key, 0, func() { c.File(v.ctxs[i], pb) })
		}
	}
	for _, p := range pb.Plays {
		v.play(p)
	}
	return v.issues
}

// WalkRoleMeta runs the role metadata hooks.
func (w *Walker) WalkRoleMeta(src *Source, m *ir.RoleMeta) []Issue {
	v := w.begin(src)
	for i, c := range w.checks {
		if c.RoleMeta != nil {
			v.call(c.Key, 0, func() { c.RoleMeta(v.ctxs[i], m) })
		}
	}
	return v.issues
}

func (v *visit) play(p *ir.Play) {
	for i, c := range v.w.checks {
		if c.Play != nil {
			v.call(c.Key, p.Line, func() { c.Play(v.ctxs[i], p) })
		}
	}
	sections := []struct {
		name  string
		tasks []*ir.Task
	}{
		{"pre_tasks", p.PreTasks},
		{"tasks", p.Tasks},
		{"post_tasks", p.PostTasks},
		{"handlers", p.Handlers},
	}
	for _, sec := range sections {
		s := Scope{Play: p, Section: sec.name}
		for _, t := range sec.tasks {
			v.node(t, s)
		}
	}
}

func (v *visit) node(t *ir.Task, s Scope) {
	if t.IsBlock() {
		for i, c := range v.w.checks {
			if c.Block != nil {
				v.call(c.Key, t.Line, func() { c.Block(v.ctxs[i], t, s) })
			}
		}
		inner := s.with(t)
		for _, children := range [][]*ir.Task{t.Block, t.Rescue, t.Always} {
			for _, child := range children {
				v.node(child, inner)
			}
		}
		return
	}
	handler := s.Section == "handlers"
	for i, c := range v.w.checks {
		switch {
		case handler && c.Handler != nil:
			v.call(c.Key, t.Line, func() { c.Handler(v.ctxs[i], t, s) })
		case !handler && c.Task != nil:
			v.call(c.Key, t.Line, func() { c.Task(v.ctxs[i], t, s) })
		}
	}
}

// call runs one hook. A panicking hook is logged and skipped; the walk goes on.
func (v *visit) call(key string, line int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			v.w.logger.Error("check failed", "rule", key, "file", v.src.Path, "line", line, "panic", r)
		}
	}()
	fn()
}

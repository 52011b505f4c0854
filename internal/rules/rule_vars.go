package rules

import (
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-variable-name-format",
		Summary: "Variable names are lowercase snake_case.",
		Play:    func(c *Context, p *ir.Play) { reportVarNames(c, p.Attrs) },
		Block:   func(c *Context, b *ir.Task, _ Scope) { reportVarNames(c, b.Attrs) },
		Task:    checkTaskVarNames,
		Handler: checkTaskVarNames,
	})
	Register(taskHooks(Check{
		Key:     "qa-fact-name-format",
		Summary: "Facts set with set_fact are lowercase snake_case.",
	}, checkFactNames))
	Register(Check{
		Key:     "qa-prefix-loop-var",
		Summary: "Loop variables in roles carry the role name as a prefix to avoid collisions.",
		Task:    checkLoopVarPrefix,
	})
}

func reportVarNames(c *Context, as ir.Attrs) {
	vars, ok := as.Get("vars")
	if !ok {
		return
	}
	for _, v := range vars.Map() {
		if !snakeCaseRe.MatchString(v.Key) {
			c.Report(v.Line, "Rename variable %q to lowercase snake_case.", v.Key)
		}
	}
}

func checkTaskVarNames(c *Context, t *ir.Task, _ Scope) {
	reportVarNames(c, t.Attrs)
	if r, ok := t.Attrs.Get("register"); ok && r.IsScalar() && !hasJinja(r.String()) && !snakeCaseRe.MatchString(r.String()) {
		c.Report(r.Line, "Rename registered variable %q to lowercase snake_case.", r.String())
	}
}

func checkFactNames(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "set_fact") {
		return
	}
	m, _ := t.Module()
	for _, f := range m.Map() {
		if f.Key == "cacheable" {
			continue
		}
		if !snakeCaseRe.MatchString(f.Key) {
			c.Report(f.Line, "Rename fact %q to lowercase snake_case.", f.Key)
		}
	}
}

func checkLoopVarPrefix(c *Context, t *ir.Task, _ Scope) {
	role := roleOf(c.Path)
	if role == "" {
		return
	}
	prefix := strings.ReplaceAll(role, "-", "_") + "_"
	lc, ok := t.Attrs.Get("loop_control")
	if !ok {
		return
	}
	lv, ok := lc.Map().Get("loop_var")
	if !ok || hasJinja(lv.String()) {
		return
	}
	if !strings.HasPrefix(lv.String(), prefix) {
		c.Report(lv.Line, "Prefix loop variable %q with %q.", lv.String(), prefix)
	}
}

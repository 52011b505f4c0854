package rules

import (
	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-play-has-tags",
		Summary: "Tagged plays can be selected or skipped with --tags and --skip-tags.",
		Play:    checkPlayTags,
	})
	Register(Check{
		Key:     "qa-limit-tasks-per-play",
		Summary: "Plays with very many tasks should be split into roles or included task files.",
		Play:    checkTasksPerPlay,
	})
	Register(Check{
		Key:     "qa-handler-for-notify",
		Summary: "Every notified handler must be defined by a handler name or listen topic.",
		Play:    checkNotifyHandlers,
	})
	Register(Check{
		Key:     "qa-unique-tasks",
		Summary: "Identical tasks in one play are usually a copy-paste mistake.",
		Play:    checkDuplicateTasks,
	})
	Register(Check{
		Key:     "qa-group-tasks-in-block",
		Summary: "Consecutive tasks sharing a condition read better as one block.",
		Play:    checkSharedConditions,
	})
	Register(Check{
		Key:     "qa-no-vars-prompt",
		Summary: "vars_prompt blocks unattended runs.",
		Play:    checkVarsPrompt,
	})
	Register(Check{
		Key:     "qa-run-once-documented",
		Summary: "run_once does not run once per play under the free strategy.",
		Task:    checkRunOnce,
		Handler: checkRunOnce,
	})
}

func checkPlayTags(c *Context, p *ir.Play) {
	if p.Implicit || p.IsImport() || p.Attrs.Has("tags") {
		return
	}
	c.Report(p.Line, "Add tags to this play so it can be run selectively.")
}

func checkTasksPerPlay(c *Context, p *ir.Play) {
	limit := CurrentSettings().MaxTasksPerPlay
	if n := len(p.AllTasks()); n > limit {
		c.Report(p.Line, "This play has %d tasks; the limit is %d.", n, limit)
	}
}

var roleModules = map[string]bool{"include_role": true, "import_role": true}

// handlerIncludes bring in handlers this play cannot see.
var handlerIncludes = map[string]bool{"include_tasks": true, "import_tasks": true, "include": true}

func checkNotifyHandlers(c *Context, p *ir.Play) {
	if p.Implicit || p.Attrs.Has("roles") {
		return
	}
	defined := map[string]bool{}
	for _, h := range p.AllHandlers() {
		if handlerIncludes[h.ModuleName()] {
			return
		}
		if n := h.Name(); n != "" {
			defined[n] = true
		}
		if l, ok := h.Attrs.Get("listen"); ok {
			for _, topic := range l.Strings() {
				defined[topic] = true
			}
		}
	}
	tasks := append(p.AllTasks(), p.AllHandlers()...)
	for _, t := range tasks {
		if roleModules[t.ModuleName()] {
			return
		}
	}
	for _, t := range tasks {
		n, ok := t.Attrs.Get("notify")
		if !ok {
			continue
		}
		for _, name := range n.Strings() {
			if hasJinja(name) || defined[name] {
				continue
			}
			c.Report(n.Line, "Handler %q is notified but not defined in this play.", name)
		}
	}
}

func checkDuplicateTasks(c *Context, p *ir.Play) {
	seen := map[string]int{}
	for _, t := range p.AllTasks() {
		m, ok := t.Module()
		if !ok {
			continue
		}
		fp := t.Name() + "\x00" + m.Key + "\x00" + fingerprint(m.Node)
		if when, ok := t.Attrs.Get("when"); ok {
			fp += "\x00" + fingerprint(when.Node)
		}
		if first, dup := seen[fp]; dup {
			c.Report(t.Line, "This task duplicates the task at line %d.", first)
			continue
		}
		seen[fp] = t.Line
	}
}

// minSharedConditions is the run length of identical when clauses that
// should become a block.
const minSharedConditions = 3

func checkSharedConditions(c *Context, p *ir.Play) {
	for _, sec := range [][]*ir.Task{p.PreTasks, p.Tasks, p.PostTasks} {
		reportConditionRuns(c, sec)
	}
}

func reportConditionRuns(c *Context, tasks []*ir.Task) {
	start, prev := 0, ""
	flush := func(end int) {
		if prev != "" && end-start >= minSharedConditions {
			c.Report(tasks[start].Line, "%d consecutive tasks share the same when condition; group them in a block.", end-start)
		}
	}
	for i, t := range tasks {
		if t.IsBlock() {
			reportConditionRuns(c, t.Block)
			reportConditionRuns(c, t.Rescue)
			reportConditionRuns(c, t.Always)
		}
		cond := ""
		if w, ok := t.Attrs.Get("when"); ok && !t.IsBlock() {
			cond = fingerprint(w.Node)
		}
		if cond != prev {
			flush(i)
			start, prev = i, cond
		}
	}
	flush(len(tasks))
}

func checkVarsPrompt(c *Context, p *ir.Play) {
	if a, ok := p.Attrs.Get("vars_prompt"); ok {
		c.Report(a.Line, "Avoid vars_prompt; pass values as extra vars or from a vault.")
	}
}

func checkRunOnce(c *Context, t *ir.Task, s Scope) {
	ro, ok := t.Attrs.Get("run_once")
	if !ok || !ro.IsTrue() || s.Play == nil {
		return
	}
	if st, ok := s.Play.Attrs.Get("strategy"); ok && st.String() == "free" {
		c.Report(ro.Line, "run_once runs on every host batch under the free strategy; document or remove it.")
	}
}

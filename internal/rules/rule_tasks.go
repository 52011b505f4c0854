package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-task-has-name",
		Summary: "Named tasks make playbook output readable.",
		Task:    checkTaskName,
	})
	Register(Check{
		Key:     "qa-handler-has-name",
		Summary: "Handlers are notified by name and must have one.",
		Handler: checkHandlerName,
	})
	Register(taskHooks(Check{
		Key:     "qa-task-name-first",
		Summary: "The name key should come before the module key.",
	}, checkNameFirst))
	Register(taskHooks(Check{
		Key:     "qa-task-name-min-chars",
		Summary: "Task names should describe what the task does.",
	}, checkNameLength))
	Register(taskHooks(Check{
		Key:     "qa-full-module-name",
		Summary: "Use fully qualified collection names for modules.",
	}, checkFQCN))
	Register(taskHooks(Check{
		Key:     "qa-builtin-modules-only",
		Summary: "Only ansible.builtin modules are allowed.",
	}, checkBuiltinOnly))
	Register(taskHooks(Check{
		Key:     "qa-limit-task-attributes",
		Summary: "Tasks with very many keywords are hard to read.",
	}, checkTaskAttributes))
	Register(Check{
		Key:     "qa-block-task-limit",
		Summary: "Blocks with very many tasks should be split.",
		Block:   checkBlockSize,
	})
	Register(taskHooks(Check{
		Key:     "qa-jinja-format",
		Summary: "Jinja2 expressions are written with a space inside the delimiters.",
	}, checkJinjaSpacing))
}

func checkTaskName(c *Context, t *ir.Task, _ Scope) {
	if t.Name() == "" {
		c.Report(t.Line, "Give this task a name.")
	}
}

func checkHandlerName(c *Context, h *ir.Task, _ Scope) {
	if h.Name() == "" {
		c.Report(h.Line, "Give this handler a name; handlers are notified by name.")
	}
}

func checkNameFirst(c *Context, t *ir.Task, _ Scope) {
	ni := t.Attrs.Index("name")
	m, ok := t.Module()
	if ni < 0 || !ok {
		return
	}
	if t.Attrs.Index(m.Key) < ni {
		c.Report(t.Attrs[ni].Line, "Put the task name before the %s key.", m.Key)
	}
}

func checkNameLength(c *Context, t *ir.Task, _ Scope) {
	n := t.Name()
	if n == "" {
		return
	}
	if limit := CurrentSettings().MinTaskNameChars; utf8.RuneCountInString(n) < limit {
		c.Report(t.Line, "Task name %q is shorter than %d characters.", n, limit)
	}
}

// moduleKey returns the module attribute, ignoring action forms that carry
// the module name in their value.
func moduleKey(t *ir.Task) (ir.Attr, bool) {
	m, ok := t.Module()
	if !ok || m.Key == "action" || m.Key == "local_action" {
		return ir.Attr{}, false
	}
	return m, true
}

func checkFQCN(c *Context, t *ir.Task, _ Scope) {
	m, ok := moduleKey(t)
	if !ok || strings.Contains(m.Key, ".") {
		return
	}
	c.Report(m.Line, "Use the fully qualified name for module %q, for example ansible.builtin.%s.", m.Key, m.Key)
}

func checkBuiltinOnly(c *Context, t *ir.Task, _ Scope) {
	m, ok := moduleKey(t)
	if !ok || !strings.Contains(m.Key, ".") {
		return
	}
	if strings.HasPrefix(m.Key, "ansible.builtin.") || strings.HasPrefix(m.Key, "ansible.legacy.") {
		return
	}
	c.Report(m.Line, "Module %q is not part of ansible.builtin.", m.Key)
}

func checkTaskAttributes(c *Context, t *ir.Task, _ Scope) {
	if limit := CurrentSettings().MaxTaskAttributes; len(t.Attrs) > limit {
		c.Report(t.Line, "This task has %d keys; the limit is %d.", len(t.Attrs), limit)
	}
}

func checkBlockSize(c *Context, b *ir.Task, _ Scope) {
	if limit := CurrentSettings().MaxBlockTasks; len(b.Block) > limit {
		c.Report(b.Line, "This block has %d tasks; the limit is %d.", len(b.Block), limit)
	}
}

var jinjaTightRe = regexp.MustCompile(`\{\{[^\s\-{]|[^\s\-}]\}\}`)

func checkJinjaSpacing(c *Context, t *ir.Task, _ Scope) {
	for _, a := range t.Attrs {
		for _, s := range a.Scalars() {
			if jinjaTightRe.MatchString(s.String()) {
				c.Report(s.Line, "Write Jinja2 expressions as {{ var }} with spaces inside the braces.")
				return
			}
		}
	}
}

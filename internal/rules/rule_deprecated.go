package rules

import (
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(taskHooks(Check{
		Key:     "qa-replace-deprecated-module",
		Summary: "Deprecated modules are removed in later releases.",
	}, checkDeprecatedModule))
	Register(Check{
		Key:     "qa-replace-deprecated-param",
		Summary: "Deprecated keywords such as sudo are replaced by become.",
		Task:    checkDeprecatedKeywords,
		Handler: checkDeprecatedKeywords,
		Block:   checkDeprecatedKeywords,
		Play:    func(c *Context, p *ir.Play) { reportDeprecatedKeywords(c, p.Attrs) },
	})
	Register(Check{
		Key:     "qa-import-versus-include",
		Summary: "Static task files load faster and fail earlier with import_tasks.",
		Task:    checkStaticInclude,
	})
	Register(taskHooks(Check{
		Key:     "qa-delegate-to-localhost",
		Summary: "local_action is the old form of delegate_to: localhost.",
	}, checkLocalAction))
}

var deprecatedModules = map[string]string{
	"include":        "ansible.builtin.include_tasks or ansible.builtin.import_tasks",
	"docker":         "community.docker.docker_container",
	"docker_service": "community.docker.docker_compose_v2",
	"ec2":            "amazon.aws.ec2_instance",
	"s3":             "amazon.aws.s3_object",
	"aws_s3":         "amazon.aws.s3_object",
	"win_msi":        "ansible.windows.win_package",
	"easy_install":   "ansible.builtin.pip",
	"jenkins_job":    "community.general.jenkins_job",
}

func checkDeprecatedModule(c *Context, t *ir.Task, _ Scope) {
	m, ok := t.Module()
	if !ok {
		return
	}
	repl, dep := deprecatedModules[ir.ShortModule(m.Key)]
	if !dep {
		return
	}
	c.Report(m.Line, "Module %q is deprecated; use %s.", m.Key, repl)
}

var deprecatedKeywords = map[string]string{
	"sudo":       "become",
	"sudo_user":  "become_user",
	"su":         "become with become_method: su",
	"su_user":    "become_user",
	"always_run": "check_mode: false",
}

func reportDeprecatedKeywords(c *Context, as ir.Attrs) {
	for _, a := range as {
		if repl, ok := deprecatedKeywords[a.Key]; ok {
			c.Report(a.Line, "Keyword %q is deprecated; use %s.", a.Key, repl)
		}
	}
}

func checkDeprecatedKeywords(c *Context, t *ir.Task, _ Scope) { reportDeprecatedKeywords(c, t.Attrs) }

func checkStaticInclude(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "include_tasks") {
		return
	}
	for _, a := range t.Attrs {
		if a.Key == "loop" || a.Key == "when" || strings.HasPrefix(a.Key, "with_") {
			return
		}
	}
	ref, ok := includeTarget(t)
	if !ok || hasJinja(ref) {
		return
	}
	c.Report(t.Line, "Use import_tasks for the static file %q.", ref)
}

func checkLocalAction(c *Context, t *ir.Task, _ Scope) {
	if a, ok := t.Attrs.Get("local_action"); ok {
		c.Report(a.Line, "Use delegate_to: localhost instead of local_action.")
	}
}

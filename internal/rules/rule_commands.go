package rules

import (
	"path"
	"regexp"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(taskHooks(Check{
		Key:     "qa-use-module-not-command",
		Summary: "Use a dedicated module instead of running its command-line equivalent.",
	}, checkModuleInsteadOfCommand))
	Register(taskHooks(Check{
		Key:     "qa-command-not-shell-when-possible",
		Summary: "The command module does not run a shell; use shell when the command needs shell features.",
	}, checkShellFeatures))
	Register(taskHooks(Check{
		Key:     "qa-command-args-form",
		Summary: "Pass commands through cmd or argv instead of free-form text.",
	}, checkCommandArgsForm))
	Register(taskHooks(Check{
		Key:     "qa-command-changed-when",
		Summary: "Command tasks should say when they change the system.",
	}, checkCommandChangedWhen))
	Register(taskHooks(Check{
		Key:     "qa-shell-pipe-safe",
		Summary: "Pipelines hide failures of all but the last command unless pipefail is set.",
	}, checkPipefail))
	Register(taskHooks(Check{
		Key:     "qa-env-block-not-inline",
		Summary: "Set environment variables with the environment keyword.",
	}, checkInlineEnv))
}

// commandModules maps executables to the module that should replace them.
var commandModules = map[string]string{
	"apt": "ansible.builtin.apt", "apt-get": "ansible.builtin.apt",
	"yum": "ansible.builtin.yum", "dnf": "ansible.builtin.dnf",
	"git": "ansible.builtin.git", "curl": "ansible.builtin.get_url or ansible.builtin.uri",
	"wget": "ansible.builtin.get_url", "systemctl": "ansible.builtin.systemd",
	"service": "ansible.builtin.service", "rm": "ansible.builtin.file",
	"mkdir": "ansible.builtin.file", "chmod": "ansible.builtin.file",
	"chown": "ansible.builtin.file", "ln": "ansible.builtin.file",
	"touch": "ansible.builtin.file", "tar": "ansible.builtin.unarchive",
	"unzip": "ansible.builtin.unarchive", "rsync": "ansible.posix.synchronize",
	"mount": "ansible.posix.mount", "useradd": "ansible.builtin.user",
	"usermod": "ansible.builtin.user", "groupadd": "ansible.builtin.group",
	"crontab": "ansible.builtin.cron", "pip": "ansible.builtin.pip",
	"sed": "ansible.builtin.lineinfile or ansible.builtin.replace",
}

var envAssignRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=\S*(\s+|$)`)

// executable returns the first program of a command line, after env
// assignments and sudo.
func executable(cmd string) string {
	for {
		loc := envAssignRe.FindStringIndex(cmd)
		if loc == nil {
			break
		}
		cmd = cmd[loc[1]:]
	}
	fields := strings.Fields(cmd)
	for len(fields) > 0 && (fields[0] == "sudo" || fields[0] == "env") {
		fields = fields[1:]
	}
	if len(fields) == 0 || hasJinja(fields[0]) {
		return ""
	}
	return path.Base(fields[0])
}

func checkModuleInsteadOfCommand(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "command", "shell") {
		return
	}
	exe := executable(commandText(t))
	if mod, ok := commandModules[exe]; ok {
		c.Report(t.Line, "Use %s instead of running %s.", mod, exe)
	}
}

var shellFeatureRe = regexp.MustCompile(`[|<>;&*~` + "`" + `]|\$[({A-Za-z_]`)

func checkShellFeatures(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "command") {
		return
	}
	cmd := stripJinjaBodies(commandText(t))
	if shellFeatureRe.MatchString(cmd) {
		c.Report(t.Line, "The command module does not run a shell; use ansible.builtin.shell for this command.")
	}
}

var jinjaBodyRe = regexp.MustCompile(`\{\{.*?\}\}|\{%.*?%\}`)

func stripJinjaBodies(s string) string { return jinjaBodyRe.ReplaceAllString(s, "") }

func checkCommandArgsForm(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "command", "shell") {
		return
	}
	if m, _ := t.Module(); m.IsScalar() && !m.IsNull() {
		c.Report(m.Line, "Pass the command through cmd or argv instead of free-form text.")
	}
}

func checkCommandChangedWhen(c *Context, t *ir.Task, _ Scope) {
	if !isCommandModule(t) {
		return
	}
	if cw, ok := t.Attrs.Get("changed_when"); ok {
		if cw.IsTrue() {
			c.Report(cw.Line, "changed_when: true always reports a change; derive it from the command result.")
		}
		return
	}
	if _, ok := t.Arg("creates"); ok {
		return
	}
	if _, ok := t.Arg("removes"); ok {
		return
	}
	if m, ok := t.Module(); ok && m.IsScalar() {
		s := m.String()
		if strings.Contains(s, "creates=") || strings.Contains(s, "removes=") {
			return
		}
	}
	c.Report(t.Line, "Set changed_when, creates or removes so the task reports change accurately.")
}

var pipeRe = regexp.MustCompile(`[^|]\|[^|]`)

func checkPipefail(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "shell") {
		return
	}
	cmd := stripJinjaBodies(commandText(t))
	if !pipeRe.MatchString(cmd) || strings.Contains(cmd, "pipefail") {
		return
	}
	if exe, ok := t.Arg("executable"); ok && !strings.HasSuffix(exe.String(), "bash") {
		return
	}
	c.Report(t.Line, "Start piped shell commands with set -o pipefail.")
}

func checkInlineEnv(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "command", "shell") {
		return
	}
	if envAssignRe.MatchString(commandText(t)) {
		c.Report(t.Line, "Set environment variables with the environment keyword, not inline in the command.")
	}
}

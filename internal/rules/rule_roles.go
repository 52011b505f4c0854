package rules

import (
	"path"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-role-dir-layout",
		Summary: "Role files live in the standard role directories, and task and handler directories have a main.yml entry point.",
		File:    checkRoleLayout,
	})
	Register(Check{
		Key:     "qa-role-defaults-dir",
		Summary: "Values users may override belong in defaults/main.yml; vars/ has high precedence.",
		File:    checkRoleDefaults,
	})
	Register(Check{
		Key:      "qa-diagnostic-warning",
		Summary:  "Content the analyzer had to drop, such as an alias that refers to itself, is reported so it can be fixed.",
		File:     func(c *Context, pb *ir.Playbook) { reportDiagnostics(c, pb.Warnings) },
		RoleMeta: func(c *Context, m *ir.RoleMeta) { reportDiagnostics(c, m.Warnings) },
	})
}

var roleDirs = map[string]bool{
	"tasks": true, "handlers": true, "defaults": true, "vars": true, "meta": true,
	"files": true, "templates": true, "library": true, "module_utils": true,
	"lookup_plugins": true, "filter_plugins": true, "tests": true, "molecule": true,
}

// roleParts splits p into the role root (".../roles/<name>") and the path
// below it.
func roleParts(p string) (root string, rest []string) {
	parts := strings.Split(path.Clean(p), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "roles" {
			return path.Join(parts[:i+2]...), parts[i+2:]
		}
	}
	return "", nil
}

// hasMain reports whether the project-relative dir holds main.yml or
// main.yaml. The resolver works relative to the current file, so the
// reference climbs back to the project root first.
func (c *Context) hasMain(dir string) bool {
	up := strings.Repeat("../", strings.Count(path.Clean(c.Path), "/"))
	return c.Exists(up+path.Join(dir, "main.yml")) || c.Exists(up+path.Join(dir, "main.yaml"))
}

func checkRoleLayout(c *Context, _ *ir.Playbook) {
	root, rest := roleParts(c.Path)
	if root == "" {
		return
	}
	if len(rest) == 1 || !roleDirs[rest[0]] {
		c.Report(0, "Move %q into a standard role directory such as tasks/ or handlers/.", path.Join(rest...))
		return
	}
	if dir := rest[0]; (dir == "tasks" || dir == "handlers") && !c.hasMain(path.Join(root, dir)) {
		c.Report(0, "Add %s/main.yml to role %q; Ansible loads the role's %s from it.", dir, path.Base(root), dir)
	}
}

func checkRoleDefaults(c *Context, _ *ir.Playbook) {
	root, rest := roleParts(c.Path)
	if root == "" || len(rest) != 2 || rest[0] != "tasks" || !isMainFile(rest[1]) {
		return
	}
	if c.hasMain(path.Join(root, "vars")) && !c.hasMain(path.Join(root, "defaults")) {
		c.Report(0, "Role %q has vars/main.yml but no defaults/main.yml; put values users may override in defaults/.", path.Base(root))
	}
}

func isMainFile(name string) bool {
	return name == "main.yml" || name == "main.yaml"
}

func reportDiagnostics(c *Context, ws []ir.Warning) {
	for _, w := range ws {
		if w.Kind == ir.DiagnosticWarning {
			c.Report(w.Line, "Fix the content the analyzer skipped: %s.", w.Message)
		}
	}
}

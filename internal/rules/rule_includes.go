package rules

import (
	"path"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-includes-resolve",
		Summary: "Statically included and imported files must exist in the project.",
		Task:    checkIncludeTarget,
		Handler: checkIncludeTarget,
		Play:    checkImportPlaybook,
	})
}

var includeModules = map[string]bool{
	"include_tasks": true, "import_tasks": true, "include_vars": true, "include": true,
}

// includeTarget returns the static file argument of an include-style task.
func includeTarget(t *ir.Task) (string, bool) {
	m, ok := t.Module()
	if !ok || !includeModules[ir.ShortModule(m.Key)] {
		return "", false
	}
	var ref string
	switch {
	case m.IsScalar():
		ref = m.String()
	case m.IsMap():
		for _, k := range []string{"file", "_raw_params"} {
			if a, ok := m.Map().Get(k); ok {
				ref = a.String()
				break
			}
		}
	}
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.ContainsAny(ref, " =") {
		return "", false
	}
	return ref, true
}

// fromRoot turns a project-relative target into a reference relative to the
// directory of current.
func fromRoot(current, target string) string {
	dir := path.Dir(current)
	if dir == "." {
		return target
	}
	return strings.Repeat("../", strings.Count(dir, "/")+1) + target
}

func includeCandidates(current, module, ref string) []string {
	out := []string{ref}
	if role := roleOf(current); role != "" {
		base := "roles/" + role + "/"
		if module == "include_vars" {
			return append(out, fromRoot(current, base+"vars/"+ref))
		}
		return append(out, fromRoot(current, base+"tasks/"+ref))
	}
	if module == "include_vars" {
		return append(out, "vars/"+ref)
	}
	return out
}

func checkIncludeTarget(c *Context, t *ir.Task, _ Scope) {
	ref, ok := includeTarget(t)
	if !ok || hasJinja(ref) || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "~") {
		return
	}
	if t.ModuleName() == "include_vars" && path.Ext(ref) == "" {
		// a directory of vars files
		return
	}
	for _, cand := range includeCandidates(c.Path, t.ModuleName(), ref) {
		if c.Exists(cand) {
			return
		}
	}
	c.Report(t.Line, "Included file %q cannot be found in the project.", ref)
}

func checkImportPlaybook(c *Context, p *ir.Play) {
	if !p.IsImport() {
		return
	}
	a, ok := p.Attrs.Get("import_playbook")
	if !ok {
		a, _ = p.Attrs.Get("ansible.builtin.import_playbook")
	}
	ref := strings.TrimSpace(a.String())
	if ref == "" || hasJinja(ref) || strings.HasPrefix(ref, "/") {
		return
	}
	if ext := path.Ext(ref); ext != ".yml" && ext != ".yaml" {
		// collection playbook (namespace.collection.name)
		return
	}
	if !c.Exists(ref) {
		c.Report(a.Line, "Imported playbook %q cannot be found in the project.", ref)
	}
}

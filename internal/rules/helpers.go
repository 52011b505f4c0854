package rules

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qualimetry/qansible/internal/ir"
)

var (
	jinjaRe     = regexp.MustCompile(`\{\{|\{%`)
	snakeCaseRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	secretKeyRe = regexp.MustCompile(`(?i)(password|passwd|secret|token|api_?key|private_?key|credential)`)
)

func hasJinja(s string) bool { return jinjaRe.MatchString(s) }

// isModule reports whether the task's module is one of names (short form).
func isModule(t *ir.Task, names ...string) bool {
	m := t.ModuleName()
	if m == "" {
		return false
	}
	for _, n := range names {
		if m == n {
			return true
		}
	}
	return false
}

// commandText returns the command line of a command/shell/raw task.
func commandText(t *ir.Task) string {
	m, ok := t.Module()
	if !ok {
		return ""
	}
	if m.IsScalar() {
		return strings.TrimSpace(m.String())
	}
	args := m.Map()
	for _, k := range []string{"cmd", "_raw_params"} {
		if a, ok := args.Get(k); ok {
			return strings.TrimSpace(a.String())
		}
	}
	if a, ok := args.Get("argv"); ok {
		return strings.Join(a.Strings(), " ")
	}
	if a, ok := t.Attrs.Get("args"); ok {
		if c, ok := a.Map().Get("cmd"); ok {
			return strings.TrimSpace(c.String())
		}
	}
	return ""
}

func isCommandModule(t *ir.Task) bool { return isModule(t, "command", "shell", "raw") }

// effective returns a keyword set on the task or inherited from the
// enclosing blocks and play.
func effective(t *ir.Task, s Scope, key string) (ir.Attr, bool) {
	if a, ok := t.Attrs.Get(key); ok {
		return a, true
	}
	return s.Inherited(key)
}

// fileMode is a parsed mode argument.
type fileMode struct {
	raw      string
	perm     uint32
	symbolic bool
	decimal  bool // unquoted integer without a leading zero
}

func parseMode(a ir.Attr) (fileMode, bool) {
	if !a.IsScalar() || a.IsNull() {
		return fileMode{}, false
	}
	raw := strings.TrimSpace(a.String())
	if raw == "" || hasJinja(raw) {
		return fileMode{}, false
	}
	fm := fileMode{raw: raw}
	if strings.ContainsAny(raw, "ugoa+-=") && !strings.HasPrefix(raw, "0") {
		fm.symbolic = true
		return fm, true
	}
	if a.Tag() == "!!int" && !a.Quoted() && !strings.HasPrefix(raw, "0") {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fileMode{}, false
		}
		fm.perm, fm.decimal = uint32(n), true
		return fm, true
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(raw, "0o"), "0"), 8, 32)
	if err != nil {
		if raw == "0" {
			return fm, true
		}
		return fileMode{}, false
	}
	fm.perm = uint32(n)
	return fm, true
}

// worldWritable reports whether the mode grants write permission to others.
func (m fileMode) worldWritable() bool {
	if !m.symbolic {
		return m.perm&0o002 != 0
	}
	for _, clause := range strings.Split(m.raw, ",") {
		i := strings.IndexAny(clause, "+=")
		if i < 0 {
			continue
		}
		who, perms := clause[:i], clause[i+1:]
		if (who == "" || strings.ContainsAny(who, "oa")) && strings.Contains(perms, "w") {
			return true
		}
	}
	return false
}

func (m fileMode) setID() bool {
	if m.symbolic {
		for _, clause := range strings.Split(m.raw, ",") {
			if i := strings.IndexAny(clause, "+="); i >= 0 && strings.Contains(clause[i+1:], "s") {
				return true
			}
		}
		return false
	}
	return m.perm&0o6000 != 0
}

// fingerprint renders a node canonically, for duplicate detection.
func fingerprint(n *yaml.Node) string {
	var b strings.Builder
	onPath := map[*yaml.Node]bool{}
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		n = ir.Resolve(n)
		if n == nil {
			b.WriteString("~")
			return
		}
		if onPath[n] {
			b.WriteString("*")
			return
		}
		onPath[n] = true
		defer delete(onPath, n)
		switch n.Kind {
		case yaml.ScalarNode:
			b.WriteString(strconv.Quote(n.Value))
		case yaml.SequenceNode:
			b.WriteByte('[')
			for _, c := range n.Content {
				walk(c)
				b.WriteByte(',')
			}
			b.WriteByte(']')
		case yaml.MappingNode:
			b.WriteByte('{')
			for i := 0; i+1 < len(n.Content); i += 2 {
				walk(n.Content[i])
				b.WriteByte(':')
				walk(n.Content[i+1])
				b.WriteByte(',')
			}
			b.WriteByte('}')
		}
	}
	walk(n)
	return b.String()
}

// roleOf returns the role name when path lies under roles/<name>/.
func roleOf(p string) string {
	parts := strings.Split(path.Clean(p), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "roles" {
			return parts[i+1]
		}
	}
	return ""
}

// taskHooks sets the same function for tasks and handlers.
func taskHooks(c Check, fn func(*Context, *ir.Task, Scope)) Check {
	c.Task = fn
	c.Handler = fn
	return c
}

package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

// Check is a single analysis rule bound to one rule key. Every hook is
// optional; the walker only calls the ones that are set. Hooks must not keep
// state on the Check itself: one Check value serves every file of a run.
type Check struct {
	Key     string
	Summary string

	// File runs once per playbook file, before any play.
	File     func(c *Context, pb *ir.Playbook)
	Play     func(c *Context, p *ir.Play)
	Block    func(c *Context, b *ir.Task, s Scope)
	Task     func(c *Context, t *ir.Task, s Scope)
	Handler  func(c *Context, h *ir.Task, s Scope)
	RoleMeta func(c *Context, m *ir.RoleMeta)
}

// Issue is one finding produced by a check. Line 0 means file-level.
type Issue struct {
	RuleKey string
	Message string
	Line    int
}

// PathResolver answers whether a path referenced from the current file exists
// in the project.
type PathResolver interface {
	ExistsInProject(ref string) bool
}

// Source is the per-file input shared by all checks of one traversal.
type Source struct {
	Path     string // project-relative, slash separated
	Content  []byte
	Resolver PathResolver

	lines []string
}

// Lines returns the content split on "\n" with "\r" trimmed. A trailing
// newline does not produce an extra empty line.
func (s *Source) Lines() []string {
	if s.lines == nil {
		text := strings.TrimSuffix(string(s.Content), "\n")
		if text == "" {
			s.lines = []string{}
			return s.lines
		}
		s.lines = strings.Split(text, "\n")
		for i, l := range s.lines {
			s.lines[i] = strings.TrimSuffix(l, "\r")
		}
	}
	return s.lines
}

// Context is what a check sees while visiting one file.
type Context struct {
	*Source

	key    string
	issues *[]Issue
	logger *slog.Logger
}

// Report records a finding for the check's rule key.
func (c *Context) Report(line int, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if strings.TrimSpace(msg) == "" {
		c.logger.Warn("check reported empty message; finding dropped", "rule", c.key, "file", c.Path, "line", line)
		return
	}
	if line < 0 {
		line = 0
	}
	*c.issues = append(*c.issues, Issue{RuleKey: c.key, Message: msg, Line: line})
}

// Exists resolves ref against the current file; false without a resolver.
func (c *Context) Exists(ref string) bool {
	if c.Resolver == nil {
		return false
	}
	return c.Resolver.ExistsInProject(ref)
}

// Scope is the enclosing context of a task, handler or block.
type Scope struct {
	Play    *ir.Play
	Blocks  []*ir.Task // outermost first
	Section string     // pre_tasks|tasks|post_tasks|handlers
}

func (s Scope) with(b *ir.Task) Scope {
	blocks := make([]*ir.Task, len(s.Blocks), len(s.Blocks)+1)
	copy(blocks, s.Blocks)
	s.Blocks = append(blocks, b)
	return s
}

// Inherited looks key up on the innermost enclosing block first, then the play.
func (s Scope) Inherited(key string) (ir.Attr, bool) {
	for i := len(s.Blocks) - 1; i >= 0; i-- {
		if a, ok := s.Blocks[i].Attrs.Get(key); ok {
			return a, true
		}
	}
	if s.Play != nil {
		return s.Play.Attrs.Get(key)
	}
	return ir.Attr{}, false
}

// Tags accumulates play and block tags.
func (s Scope) Tags() []string {
	var out []string
	if s.Play != nil {
		if a, ok := s.Play.Attrs.Get("tags"); ok {
			out = append(out, a.Strings()...)
		}
	}
	for _, b := range s.Blocks {
		if a, ok := b.Attrs.Get("tags"); ok {
			out = append(out, a.Strings()...)
		}
	}
	return out
}

// VarNames accumulates variable names declared by the play and blocks.
func (s Scope) VarNames() []string {
	var out []string
	collect := func(as ir.Attrs) {
		if a, ok := as.Get("vars"); ok {
			out = append(out, a.Map().Keys()...)
		}
	}
	if s.Play != nil {
		collect(s.Play.Attrs)
	}
	for _, b := range s.Blocks {
		collect(b.Attrs)
	}
	return out
}

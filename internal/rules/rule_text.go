package rules

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-spaces-not-tabs",
		Summary: "YAML forbids tabs for indentation; tab characters also confuse diffs and editors.",
		File:    checkTabs,
	})
	Register(Check{
		Key:     "qa-strip-trailing-whitespace",
		Summary: "Lines should not end with spaces or tabs.",
		File:    checkTrailingWhitespace,
	})
	Register(Check{
		Key:     "qa-file-ends-newline",
		Summary: "Files should end with a single newline.",
		File:    checkEndsNewline,
	})
	Register(Check{
		Key:     "qa-max-line-length",
		Summary: "Long lines are hard to read and review.",
		File:    checkLineLength,
	})
	Register(Check{
		Key:     "qa-even-spaces-indent",
		Summary: "Indentation should use an even number of spaces.",
		File:    checkEvenIndent,
	})
	Register(Check{
		Key:      "qa-valid-yaml",
		Summary:  "The file must be valid YAML.",
		File:     func(c *Context, pb *ir.Playbook) { reportParseError(c, pb.ParseError) },
		RoleMeta: func(c *Context, m *ir.RoleMeta) { reportParseError(c, m.ParseError) },
	})
	Register(Check{
		Key:     "qa-yaml-parse-error",
		Summary: "The playbook structure must be what Ansible expects: plays and task sections are lists of mappings.",
		File:    checkStructure,
	})
	Register(Check{
		Key:     "qa-yml-extension",
		Summary: "Playbook files use lowercase names with a .yml or .yaml extension.",
		File:    checkFileName,
	})
	Register(Check{
		Key:     "qa-playbook-yml-extension",
		Summary: "Playbooks use the .yml or .yaml extension.",
		File:    checkPlaybookExtension,
	})
	Register(Check{
		Key:     "qa-limit-plays",
		Summary: "Playbooks with many plays should be split with import_playbook.",
		File:    checkPlayCount,
	})
}

func checkTabs(c *Context, _ *ir.Playbook) {
	for i, l := range c.Lines() {
		if strings.Contains(l, "\t") {
			c.Report(i+1, "Replace tab characters with spaces.")
		}
	}
}

func checkTrailingWhitespace(c *Context, _ *ir.Playbook) {
	for i, l := range c.Lines() {
		if strings.HasSuffix(l, " ") || strings.HasSuffix(l, "\t") {
			c.Report(i+1, "Remove trailing whitespace.")
		}
	}
}

func checkEndsNewline(c *Context, _ *ir.Playbook) {
	if len(c.Content) == 0 || c.Content[len(c.Content)-1] == '\n' {
		return
	}
	c.Report(len(c.Lines()), "Add a newline at the end of the file.")
}

func checkLineLength(c *Context, _ *ir.Playbook) {
	limit := CurrentSettings().MaxLineLength
	for i, l := range c.Lines() {
		if n := utf8.RuneCountInString(l); n > limit {
			c.Report(i+1, "Line is %d characters long; the limit is %d.", n, limit)
		}
	}
}

// blockScalarRe matches a line that opens a literal or folded block scalar.
var blockScalarRe = regexp.MustCompile(`(:|^\s*-)\s*[|>][-+0-9]*\s*(#.*)?$`)

func checkEvenIndent(c *Context, _ *ir.Playbook) {
	blockIndent := -1
	for i, l := range c.Lines() {
		trimmed := strings.TrimLeft(l, " ")
		if trimmed == "" {
			continue
		}
		indent := len(l) - len(trimmed)
		if blockIndent >= 0 {
			if indent > blockIndent {
				continue
			}
			blockIndent = -1
		}
		if blockScalarRe.MatchString(l) {
			blockIndent = indent
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if indent%2 != 0 {
			c.Report(i+1, "Indent with an even number of spaces; found %d.", indent)
		}
	}
}

func reportParseError(c *Context, pe *ir.ParseError) {
	if pe == nil {
		return
	}
	msg := strings.TrimSpace(pe.Message)
	if msg == "" {
		msg = "unknown error"
	}
	c.Report(pe.Line, "Fix the YAML syntax error: %s", msg)
}

func checkStructure(c *Context, pb *ir.Playbook) {
	for _, w := range pb.Warnings {
		if w.Kind == ir.StructureWarning {
			c.Report(w.Line, "Fix the playbook structure: %s.", w.Message)
		}
	}
}

var fileNameRe = regexp.MustCompile(`^[a-z0-9_][a-z0-9_.-]*\.ya?ml$`)

func checkFileName(c *Context, _ *ir.Playbook) {
	base := path.Base(c.Path)
	if !fileNameRe.MatchString(base) {
		c.Report(0, "Rename %q to a lowercase name ending in .yml or .yaml.", base)
	}
}

func checkPlaybookExtension(c *Context, pb *ir.Playbook) {
	hasPlay := false
	for _, p := range pb.Plays {
		hasPlay = hasPlay || !p.Implicit
	}
	if ext := path.Ext(c.Path); hasPlay && ext != ".yml" && ext != ".yaml" {
		c.Report(0, "Give this playbook a .yml or .yaml extension instead of %q.", ext)
	}
}

func checkPlayCount(c *Context, pb *ir.Playbook) {
	limit := CurrentSettings().MaxPlays
	n := 0
	for _, p := range pb.Plays {
		if p.Implicit {
			continue
		}
		n++
		if n == limit+1 {
			c.Report(p.Line, "This playbook has more than %d plays; split it with import_playbook.", limit)
			return
		}
	}
}

package rules

import (
	"regexp"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:     "qa-when-bare-variable",
		Summary: "when is already a Jinja2 expression; do not wrap it in braces.",
		Task:    checkWhenBraces,
		Handler: checkWhenBraces,
		Block:   checkWhenBraces,
	})
	Register(taskHooks(Check{
		Key:     "qa-bare-var-in-condition",
		Summary: "failed_when, changed_when and until are Jinja2 expressions; do not wrap them in braces.",
	}, checkConditionBraces))
	Register(Check{
		Key:     "qa-avoid-literal-bool-compare",
		Summary: "Test booleans directly instead of comparing them with true or false.",
		Task:    checkBoolCompare,
		Handler: checkBoolCompare,
		Block:   checkBoolCompare,
	})
	Register(Check{
		Key:     "qa-check-length-not-empty",
		Summary: "Test for emptiness with length or truthiness, not by comparing with an empty string.",
		Task:    checkEmptyCompare,
		Handler: checkEmptyCompare,
		Block:   checkEmptyCompare,
	})
	Register(taskHooks(Check{
		Key:     "qa-explicit-error-handling",
		Summary: "ignore_errors hides failures; register the result or use failed_when.",
	}, checkIgnoreErrors))
}

var conditionKeys = []string{"when", "failed_when", "changed_when", "until"}

// conditions yields the scalar expressions of the given keys.
func conditions(t *ir.Task, keys ...string) []ir.Attr {
	var out []ir.Attr
	for _, k := range keys {
		if a, ok := t.Attrs.Get(k); ok {
			out = append(out, a.Scalars()...)
		}
	}
	return out
}

func checkWhenBraces(c *Context, t *ir.Task, _ Scope) {
	for _, s := range conditions(t, "when") {
		if hasJinja(s.String()) {
			c.Report(s.Line, "Write the when condition without {{ }}.")
		}
	}
}

func checkConditionBraces(c *Context, t *ir.Task, _ Scope) {
	for _, s := range conditions(t, "failed_when", "changed_when", "until") {
		if hasJinja(s.String()) {
			c.Report(s.Line, "Write the %s condition without {{ }}.", s.Key)
		}
	}
}

var boolCompareRe = regexp.MustCompile(`(?i)(==|!=)\s*(true|false|yes|no|"(true|false|yes|no)"|'(true|false|yes|no)')(\s|\)|$)|\bis\s+(not\s+)?(true|false)\b`)

func checkBoolCompare(c *Context, t *ir.Task, _ Scope) {
	for _, s := range conditions(t, conditionKeys...) {
		if boolCompareRe.MatchString(s.String()) {
			c.Report(s.Line, "Use the variable directly (var or not var) instead of comparing it with a boolean literal.")
		}
	}
}

var emptyCompareRe = regexp.MustCompile(`(==|!=)\s*(""|'')|(""|'')\s*(==|!=)`)

func checkEmptyCompare(c *Context, t *ir.Task, _ Scope) {
	for _, s := range conditions(t, conditionKeys...) {
		if emptyCompareRe.MatchString(s.String()) {
			c.Report(s.Line, "Use length or truthiness instead of comparing with an empty string.")
		}
	}
}

func checkIgnoreErrors(c *Context, t *ir.Task, _ Scope) {
	ie, ok := t.Attrs.Get("ignore_errors")
	if !ok || !ie.IsTrue() || t.Attrs.Has("register") {
		return
	}
	c.Report(ie.Line, "Do not ignore errors silently; register the result or use failed_when.")
}

package rulesdsl

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"gopkg.in/Knetic/govaluate.v3"
	"gopkg.in/yaml.v3"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/rules"
)

type dslPack struct {
	Rules []dslRule `yaml:"rules"`
}

type dslRule struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`     // VULNERABILITY|BUG|CODE_SMELL
	Severity string   `yaml:"severity"` // INFO..BLOCKER
	Tags     []string `yaml:"tags"`
	Message  string   `yaml:"message"`
	// Profiles the rule joins; nil means the default profile only and an
	// explicit empty list means none.
	Profiles []string `yaml:"profiles"`

	Where struct {
		Module     string `yaml:"module"`      // regex (case-insensitive)
		Attribute  string `yaml:"attribute"`   // require this task attribute (optional)
		ValueRegex string `yaml:"value_regex"` // regex on the attribute scalar (optional)
		Expr       string `yaml:"expr"`        // govaluate boolean expression (optional)
	} `yaml:"where"`
}

type compiled struct {
	rule     dslRule
	reModule *regexp.Regexp
	reValue  *regexp.Regexp
	expr     *govaluate.EvaluableExpression
	severity catalog.Severity
	kind     catalog.RuleType
}

// LoadAndRegister compiles every rule of the pack at path, registers it as
// a check and returns the catalog entries describing the new rules.
func LoadAndRegister(path string) ([]catalog.Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules pack: %w", err)
	}
	return Register(b)
}

// Register is LoadAndRegister for an in-memory pack.
func Register(pack []byte) ([]catalog.Entry, error) {
	var p dslPack
	if err := yaml.Unmarshal(pack, &p); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	crs := make([]*compiled, 0, len(p.Rules))
	seen := map[string]bool{}
	for _, r := range p.Rules {
		cr, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Key, err)
		}
		if _, dup := rules.Get(r.Key); dup || seen[r.Key] {
			return nil, fmt.Errorf("compile rule %q: key already registered", r.Key)
		}
		seen[r.Key] = true
		crs = append(crs, cr)
	}
	entries := make([]catalog.Entry, 0, len(crs))
	for _, cr := range crs {
		rules.Register(cr.check())
		entries = append(entries, cr.entry())
	}
	return entries, nil
}

func compile(r dslRule) (*compiled, error) {
	if r.Key == "" || r.Message == "" {
		return nil, fmt.Errorf("missing required fields (key/message)")
	}
	c := &compiled{rule: r, severity: catalog.Minor, kind: catalog.CodeSmell}
	if r.Severity != "" {
		s, err := catalog.ParseSeverity(r.Severity)
		if err != nil {
			return nil, err
		}
		c.severity = s
	}
	if r.Type != "" {
		k, err := catalog.ParseRuleType(r.Type)
		if err != nil {
			return nil, err
		}
		c.kind = k
	}
	w := r.Where
	if w.Module == "" && w.Attribute == "" && w.Expr == "" {
		return nil, fmt.Errorf("where needs at least one of module, attribute or expr")
	}
	if w.ValueRegex != "" && w.Attribute == "" {
		return nil, fmt.Errorf("value_regex requires attribute")
	}
	if w.Module != "" {
		re, err := regexp.Compile("(?i)" + w.Module)
		if err != nil {
			return nil, fmt.Errorf("module regex: %w", err)
		}
		c.reModule = re
	}
	if w.ValueRegex != "" {
		re, err := regexp.Compile(w.ValueRegex)
		if err != nil {
			return nil, fmt.Errorf("value_regex: %w", err)
		}
		c.reValue = re
	}
	if w.Expr != "" {
		e, err := govaluate.NewEvaluableExpression(w.Expr)
		if err != nil {
			return nil, fmt.Errorf("expr: %w", err)
		}
		sample, err := e.Evaluate(params(&ir.Task{}, rules.Scope{}))
		if err != nil {
			return nil, fmt.Errorf("expr: %w", err)
		}
		if _, ok := sample.(bool); !ok {
			return nil, fmt.Errorf("expr must evaluate to a bool, got %T", sample)
		}
		c.expr = e
	}
	return c, nil
}

// params are the variables available to a where expression.
func params(t *ir.Task, s rules.Scope) map[string]interface{} {
	fqcn := ""
	if m, ok := t.Module(); ok {
		fqcn = m.Key
	}
	become := false
	if b, ok := t.Attrs.Get("become"); ok {
		become = b.IsTrue()
	} else if b, ok := s.Inherited("become"); ok {
		become = b.IsTrue()
	}
	return map[string]interface{}{
		"module":     t.ModuleName(),
		"fqcn":       fqcn,
		"name":       t.Name(),
		"attr_count": float64(len(t.Attrs)),
		"become":     become,
		"section":    s.Section,
	}
}

func (c *compiled) check() rules.Check {
	eval := func(ctx *rules.Context, t *ir.Task, s rules.Scope) {
		if line, ok := c.match(t, s); ok {
			ctx.Report(line, "%s", c.rule.Message)
		}
	}
	summary := c.rule.Name
	if summary == "" {
		summary = c.rule.Message
	}
	return rules.Check{
		Key:     c.rule.Key,
		Summary: summary,
		Task:    eval,
		Handler: eval,
	}
}

// match reports whether t satisfies every where condition and the line to
// report at.
func (c *compiled) match(t *ir.Task, s rules.Scope) (int, bool) {
	line := t.Line
	if c.reModule != nil {
		m, ok := t.Module()
		if !ok || !c.reModule.MatchString(m.Key) {
			return 0, false
		}
	}
	if attr := c.rule.Where.Attribute; attr != "" {
		a, ok := t.Attrs.Get(attr)
		if !ok {
			return 0, false
		}
		if c.reValue != nil && !c.reValue.MatchString(a.String()) {
			return 0, false
		}
		line = a.Line
	}
	if c.expr != nil {
		v, err := c.expr.Evaluate(params(t, s))
		if err != nil {
			slog.Debug("rule expression failed", "rule", c.rule.Key, "line", t.Line, "err", err)
			return 0, false
		}
		if b, ok := v.(bool); !ok || !b {
			return 0, false
		}
	}
	return line, true
}

func (c *compiled) entry() catalog.Entry {
	name := c.rule.Name
	if name == "" {
		name = catalog.DisplayName(c.rule.Key)
	}
	tags := c.rule.Tags
	if len(tags) == 0 {
		tags = []string{"custom"}
	}
	profiles := c.rule.Profiles
	if profiles == nil {
		profiles = []string{catalog.DefaultProfile}
	}
	return catalog.Entry{
		Key:         c.rule.Key,
		Name:        name,
		Severity:    c.severity,
		Type:        c.kind,
		Tags:        append([]string(nil), tags...),
		Description: strings.TrimSpace(c.rule.Message),
		Profiles:    append([]string{}, profiles...),
	}
}

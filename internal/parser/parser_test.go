package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/qualimetry/qansible/internal/ir"
)

func TestParsePlaybook_Sections(t *testing.T) {
	src := `---
- name: Web
  hosts: web
  pre_tasks:
    - name: Pre
      ansible.builtin.ping:
  tasks:
    - name: Outer
      block:
        - name: Inner
          ansible.builtin.ping:
      rescue:
        - name: Recover
          ansible.builtin.ping:
  handlers:
    - name: Restart
      ansible.builtin.service: {name: web, state: restarted}
`
	pb := ParsePlaybook("site.yml", []byte(src))
	if pb.ParseError != nil || len(pb.Warnings) != 0 {
		t.Fatalf("unexpected errors: %+v %+v", pb.ParseError, pb.Warnings)
	}
	if len(pb.Plays) != 1 {
		t.Fatalf("plays: %d", len(pb.Plays))
	}
	p := pb.Plays[0]
	if p.Implicit || p.Line != 2 || p.Name() != "Web" {
		t.Fatalf("play header: %+v", p)
	}
	if len(p.PreTasks) != 1 || len(p.Tasks) != 1 || len(p.Handlers) != 1 {
		t.Fatalf("sections: pre=%d tasks=%d handlers=%d", len(p.PreTasks), len(p.Tasks), len(p.Handlers))
	}
	outer := p.Tasks[0]
	if !outer.IsBlock() || outer.Line != 8 || len(outer.Block) != 1 || len(outer.Rescue) != 1 {
		t.Fatalf("block: %+v", outer)
	}
	if got := len(p.AllTasks()); got != 3 {
		t.Fatalf("AllTasks = %d, want 3", got)
	}
	if outer.Block[0].ModuleName() != "ping" || outer.Block[0].Line != 10 {
		t.Fatalf("inner task: %q line %d", outer.Block[0].ModuleName(), outer.Block[0].Line)
	}
}

func TestParsePlaybook_ImplicitTaskList(t *testing.T) {
	pb := ParsePlaybook("roles/web/tasks/main.yml", []byte("- name: One\n  ansible.builtin.ping:\n- name: Two\n  ansible.builtin.ping:\n"))
	if len(pb.Plays) != 1 || !pb.Plays[0].Implicit || len(pb.Plays[0].Tasks) != 2 {
		t.Fatalf("implicit play: %+v", pb.Plays)
	}
	if pb.Plays[0].Tasks[1].Line != 3 {
		t.Fatalf("second task line = %d", pb.Plays[0].Tasks[1].Line)
	}
}

func TestParsePlaybook_NotAPlaybook(t *testing.T) {
	for _, src := range []string{"", "# only a comment\n", "key: value\n", "---\n...\n"} {
		pb := ParsePlaybook("vars.yml", []byte(src))
		if pb.ParseError != nil || len(pb.Plays) != 0 {
			t.Fatalf("%q: %+v %d plays", src, pb.ParseError, len(pb.Plays))
		}
	}
}

func TestParsePlaybook_SyntaxError(t *testing.T) {
	pb := ParsePlaybook("bad.yml", []byte("- hosts: all\n  tasks:\n    - name: x\n   bad: [\n"))
	if pb.ParseError == nil {
		t.Fatalf("expected parse error")
	}
	if pb.ParseError.Message == "" {
		t.Fatalf("empty parse error message")
	}
}

func TestParsePlaybook_KeepsDocumentsBeforeError(t *testing.T) {
	pb := ParsePlaybook("multi.yml", []byte("- hosts: a\n---\n- hosts: [\n"))
	if pb.ParseError == nil || len(pb.Plays) != 1 {
		t.Fatalf("got err=%v plays=%d", pb.ParseError, len(pb.Plays))
	}
}

func TestParsePlaybook_Warnings(t *testing.T) {
	pb := ParsePlaybook("site.yml", []byte("- hosts: all\n  tasks: nope\n  handlers:\n    - just a string\n- 42\n"))
	want := map[string]int{"tasks must be a list": 2, "handler must be a mapping": 4, "play must be a mapping": 5}
	if len(pb.Warnings) != len(want) {
		t.Fatalf("warnings: %+v", pb.Warnings)
	}
	for _, w := range pb.Warnings {
		if line, ok := want[w.Message]; !ok || line != w.Line {
			t.Fatalf("unexpected warning %+v", w)
		}
	}
}

func TestParsePlaybook_BOMAndAliases(t *testing.T) {
	src := "\xEF\xBB\xBF- hosts: all\n  tasks:\n    - &t\n      name: Ping\n      ansible.builtin.ping:\n    - *t\n"
	pb := ParsePlaybook("site.yml", []byte(src))
	if pb.ParseError != nil || len(pb.Plays) != 1 || len(pb.Plays[0].Tasks) != 2 {
		t.Fatalf("got %+v", pb)
	}
}

func TestParseRoleMeta(t *testing.T) {
	m := ParseRoleMeta("roles/web/meta/main.yml", []byte("galaxy_info:\n  author: me\ndependencies: []\n"))
	if m.ParseError != nil {
		t.Fatal(m.ParseError)
	}
	gi, ok := m.GalaxyInfo()
	if !ok || gi.Line != 1 {
		t.Fatalf("galaxy_info: %+v %v", gi, ok)
	}
	if m := ParseRoleMeta("roles/web/meta/main.yml", []byte("galaxy_info: [\n")); m.ParseError == nil {
		t.Fatalf("expected parse error")
	}
}

func TestIsRoleMetaFile(t *testing.T) {
	cases := map[string]bool{
		"roles/web/meta/main.yml":    true,
		"roles/web/meta/main.yaml":   true,
		"roles\\web\\meta\\MAIN.YML": true,
		"meta/main.yml":              true,
		"roles/web/meta/other.yml":   false,
		"roles/web/tasks/main.yml":   false,
		"main.yml":                   false,
	}
	for p, want := range cases {
		if got := IsRoleMetaFile(p); got != want {
			t.Fatalf("IsRoleMetaFile(%q) = %v", p, got)
		}
	}
}

func TestToParseError(t *testing.T) {
	pb := ParsePlaybook("x.yml", []byte("a: b: c\n"))
	if pb.ParseError == nil || pb.ParseError.Line != 1 {
		t.Fatalf("got %+v", pb.ParseError)
	}
	for _, c := range []struct {
		msg  string
		line int
	}{
		{"yaml: line 7: did not find expected key", 7},
		{"yaml: mapping values are not allowed in this context", 1},
		{"yaml: ", 1},
	} {
		pe := toParseError(errors.New(c.msg))
		if pe.Line != c.line || pe.Message == "" {
			t.Fatalf("toParseError(%q) = %+v, want line %d", c.msg, pe, c.line)
		}
	}
}

func TestParsePlaybook_RecursiveAlias(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		tasks int
	}{
		{"block includes its own task", "- hosts: all\n  tasks:\n    - &t\n      name: loop\n      block:\n        - *t\n", 1},
		{"merge of the enclosing task", "- hosts: all\n  tasks:\n    - &m\n      name: self\n      <<: *m\n", 1},
		{"nested rescue cycle", "- hosts: all\n  tasks:\n    - &outer\n      name: outer\n      block:\n        - name: inner\n          rescue:\n            - *outer\n", 2},
	}
	for _, c := range cases {
		pb := ParsePlaybook("cycle.yml", []byte(c.src))
		if pb.ParseError != nil || len(pb.Plays) != 1 {
			t.Fatalf("%s: err=%v plays=%d", c.name, pb.ParseError, len(pb.Plays))
		}
		if got := len(pb.Plays[0].AllTasks()) + countBlocks(pb.Plays[0].Tasks); got != c.tasks {
			t.Fatalf("%s: %d tasks, want %d", c.name, got, c.tasks)
		}
		if !hasWarning(pb.Warnings, "recursive alias") {
			t.Fatalf("%s: warnings %+v", c.name, pb.Warnings)
		}
	}
}

func TestParsePlaybook_SharedAnchorIsNotACycle(t *testing.T) {
	src := "- hosts: all\n  tasks:\n    - &ping\n      name: Ping\n      ansible.builtin.ping:\n    - *ping\n"
	pb := ParsePlaybook("site.yml", []byte(src))
	if len(pb.Warnings) != 0 || len(pb.Plays[0].Tasks) != 2 {
		t.Fatalf("warnings=%+v tasks=%d", pb.Warnings, len(pb.Plays[0].Tasks))
	}
}

func TestRecursiveVarsScalars(t *testing.T) {
	pb := ParsePlaybook("site.yml", []byte("- hosts: all\n  vars: &v\n    a:\n      - *v\n    b: x\n  tasks: []\n"))
	vars, ok := pb.Plays[0].Attrs.Get("vars")
	if !ok {
		t.Fatalf("vars missing")
	}
	sc := vars.Scalars()
	if len(sc) != 1 || sc[0].Key != "b" || sc[0].String() != "x" {
		t.Fatalf("scalars: %+v", sc)
	}
}

func TestParseRoleMeta_RecursiveMerge(t *testing.T) {
	m := ParseRoleMeta("roles/web/meta/main.yml", []byte("--- &root\ngalaxy_info:\n  author: me\n<<: *root\n"))
	if !m.Attrs.Has("galaxy_info") || !hasWarning(m.Warnings, "recursive alias") {
		t.Fatalf("attrs=%v warnings=%+v", m.Attrs.Keys(), m.Warnings)
	}
}

func countBlocks(ts []*ir.Task) int {
	n := 0
	for _, t := range ts {
		if t.IsBlock() {
			n++
			n += countBlocks(t.Block) + countBlocks(t.Rescue) + countBlocks(t.Always)
		}
	}
	return n
}

func hasWarning(ws []ir.Warning, sub string) bool {
	for _, w := range ws {
		if strings.Contains(w.Message, sub) {
			return true
		}
	}
	return false
}

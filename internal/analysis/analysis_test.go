package analysis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/project"
	"github.com/qualimetry/qansible/internal/rules"
)

type memSink struct{ issues []Issue }

func (s *memSink) Report(is Issue) { s.issues = append(s.issues, is) }

func (s *memSink) byKey(key string) []Issue {
	var out []Issue
	for _, is := range s.issues {
		if is.RuleKey == key {
			out = append(out, is)
		}
	}
	return out
}

func newAnalyzer(t *testing.T, sink Sink) *Analyzer {
	t.Helper()
	cat, err := catalog.Build(rules.All())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return New(cat, sink, Options{Workers: 4})
}

func defaultChecks(t *testing.T, a *Analyzer) []rules.Check {
	t.Helper()
	checks, err := a.ActiveChecks(catalog.DefaultProfile)
	if err != nil {
		t.Fatalf("active checks: %v", err)
	}
	return checks
}

func mem(files map[string]string) ([]project.File, *project.Index) {
	var out []project.File
	var paths []string
	for p, body := range files {
		out = append(out, project.MemFile{Rel: p, Data: []byte(body)})
		paths = append(paths, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out, project.NewIndex(paths)
}

const cleanPlaybook = `- hosts: all
  tags: [test]
  tasks:
    - name: Print a greeting
      ansible.builtin.debug:
        msg: hello
`

func TestRun_CleanBaseline(t *testing.T) {
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	files, idx := mem(map[string]string{"site.yml": cleanPlaybook})
	sum := a.Run(files, defaultChecks(t, a), idx)
	if len(sink.issues) != 0 {
		t.Fatalf("expected no findings, got %+v", sink.issues)
	}
	if sum.Analyzed != 1 || sum.Reported != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestRun_TabBeforeMappingKey(t *testing.T) {
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	files, idx := mem(map[string]string{"site.yml": "- hosts: all\n\ttasks: []\n"})
	a.Run(files, defaultChecks(t, a), idx)
	tabs := sink.byKey("qa-spaces-not-tabs")
	if len(tabs) != 1 || tabs[0].Line != 2 {
		t.Fatalf("tab findings: %+v", tabs)
	}
	if !strings.Contains(strings.ToLower(tabs[0].Message), "tab") {
		t.Fatalf("message does not mention tab: %q", tabs[0].Message)
	}
	if tabs[0].RuleID != "qualimetry-ansible:qa-spaces-not-tabs" {
		t.Fatalf("rule id: %s", tabs[0].RuleID)
	}
}

func TestRun_ParseErrorReported(t *testing.T) {
	broken := "- hosts: all\n  tasks: [\n"
	for _, keys := range [][]string{
		{"qa-valid-yaml"},
		{"qa-valid-yaml", "qa-task-has-name", "qa-play-has-tags"},
	} {
		sink := &memSink{}
		a := newAnalyzer(t, sink)
		checks, _ := rules.Select(keys)
		files, idx := mem(map[string]string{"broken.yml": broken})
		sum := a.Run(files, checks, idx)
		got := sink.byKey("qa-valid-yaml")
		if len(got) == 0 || strings.TrimSpace(got[0].Message) == "" {
			t.Fatalf("%v: expected a valid-yaml finding, got %+v", keys, sink.issues)
		}
		if sum.Analyzed != 1 {
			t.Fatalf("summary: %+v", sum)
		}
	}
}

// spy counts hook calls and reports one issue per file.
func spy(key string, calls *atomic.Int64) rules.Check {
	count := func() { calls.Add(1) }
	return rules.Check{
		Key: key,
		File: func(c *rules.Context, _ *ir.Playbook) {
			count()
			c.Report(0, "spy saw the file")
		},
		Play:     func(*rules.Context, *ir.Play) { count() },
		Task:     func(*rules.Context, *ir.Task, rules.Scope) { count() },
		Handler:  func(*rules.Context, *ir.Task, rules.Scope) { count() },
		Block:    func(*rules.Context, *ir.Task, rules.Scope) { count() },
		RoleMeta: func(*rules.Context, *ir.RoleMeta) { count() },
	}
}

func TestRun_EmptyPlaybookSkipped(t *testing.T) {
	var calls atomic.Int64
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	checks := append(defaultChecks(t, a), spy("zz-spy", &calls))
	files, idx := mem(map[string]string{
		"empty.yml":  "",
		"vars.yml":   "app_port: 8080\n",
		"scalar.yml": "just text\n",
	})
	sum := a.Run(files, checks, idx)
	if calls.Load() != 0 {
		t.Fatalf("checks were called %d times for skipped files", calls.Load())
	}
	if len(sink.issues) != 0 || sum.Skipped != 3 {
		t.Fatalf("issues=%v summary=%+v", sink.issues, sum)
	}
}

func TestRun_UnreadableFileDoesNotStopRun(t *testing.T) {
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	files := []project.File{
		project.MemFile{Rel: "gone.yml", Err: errors.New("permission denied")},
		project.MemFile{Rel: "site.yml", Data: []byte("- hosts: all\n  tasks:\n    - ansible.builtin.ping:\n")},
	}
	sum := a.Run(files, defaultChecks(t, a), project.NewIndex([]string{"site.yml"}))
	if sum.Unreadable != 1 || sum.Analyzed != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if len(sink.byKey("qa-task-has-name")) != 1 {
		t.Fatalf("expected the readable file to be analyzed: %+v", sink.issues)
	}
}

func TestRun_UnknownKeyDropped(t *testing.T) {
	var calls atomic.Int64
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	files, idx := mem(map[string]string{"site.yml": cleanPlaybook})
	sum := a.Run(files, []rules.Check{spy("not-in-catalog", &calls)}, idx)
	if calls.Load() == 0 {
		t.Fatalf("spy was not run")
	}
	if len(sink.issues) != 0 || sum.Dropped != 1 {
		t.Fatalf("issues=%v summary=%+v", sink.issues, sum)
	}
}

func TestRun_RoleMetaUsesRoleMetaHooksOnly(t *testing.T) {
	var calls atomic.Int64
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	meta := "galaxy_info:\n  author: me\n  description: web role\n  license: MIT\n  min_ansible_version: '2.15'\n  galaxy_tags: [web]\ndependencies: []\n"
	files, idx := mem(map[string]string{"roles/web/meta/main.yml": meta})
	checks := append(defaultChecks(t, a), spy("zz-spy", &calls))
	a.Run(files, checks, idx)
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one RoleMeta call, got %d", calls.Load())
	}
	if len(sink.issues) != 0 {
		t.Fatalf("expected clean metadata, got %+v", sink.issues)
	}
}

func TestRun_PanickingCheckIsolated(t *testing.T) {
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	boom := rules.Check{Key: "aa-boom", Task: func(*rules.Context, *ir.Task, rules.Scope) { panic("boom") }}
	checks, _ := rules.Select([]string{"qa-task-has-name"})
	files, idx := mem(map[string]string{"site.yml": "- hosts: all\n  tasks:\n    - ansible.builtin.ping:\n    - ansible.builtin.ping: {data: x}\n"})
	a.Run(files, append(checks, boom), idx)
	if got := len(sink.byKey("qa-task-has-name")); got != 2 {
		t.Fatalf("expected 2 task-has-name findings, got %d", got)
	}
}

func TestRun_IncludesResolve(t *testing.T) {
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	files, idx := mem(map[string]string{
		"site.yml": `- hosts: all
  tags: [app]
  tasks:
    - name: Load present tasks
      ansible.builtin.import_tasks: tasks/present.yml
    - name: Load missing tasks
      ansible.builtin.import_tasks: tasks/missing.yml
`,
		"tasks/present.yml": "- name: Say hello\n  ansible.builtin.debug:\n    msg: hi\n",
	})
	checks, _ := rules.Select([]string{"qa-includes-resolve"})
	a.Run(files, checks, idx)
	got := sink.byKey("qa-includes-resolve")
	if len(got) != 1 || got[0].Line != 6 || !strings.Contains(got[0].Message, "tasks/missing.yml") {
		t.Fatalf("includes findings: %+v", got)
	}
}

func TestRun_RecursiveAliasDoesNotStopRun(t *testing.T) {
	sink := &memSink{}
	a := newAnalyzer(t, sink)
	files, idx := mem(map[string]string{
		"cycle.yml": "- hosts: all\n  vars: &v\n    a: [*v]\n  tasks:\n    - &t\n      name: loop\n      when: x\n      <<: *t\n      block:\n        - *t\n",
		"site.yml":  cleanPlaybook,
	})
	sum := a.Run(files, defaultChecks(t, a), idx)
	if sum.Analyzed != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	found := false
	for _, is := range sink.issues {
		if is.File == "site.yml" {
			t.Fatalf("clean file reported: %+v", is)
		}
		if strings.Contains(is.Message, "recursive alias") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a recursive alias finding: %+v", sink.issues)
	}
}

func TestRun_Deterministic(t *testing.T) {
	files, idx := mem(map[string]string{
		"a.yml":                  "- hosts: all\n  tasks:\n    - shell: cat x | grep y\n    - command: rm -rf /tmp/x\n",
		"b.yml":                  "- hosts: web\n  become_user: root\n  tasks:\n    - name: x\n      copy: {src: ../a, dest: /b, mode: 777}\n",
		"roles/r/tasks/main.yml": "- name: loop it\n  ansible.builtin.debug: {msg: '{{item}}'}\n  loop: [1]\n  loop_control: {loop_var: item2}\n",
		"roles/r/meta/main.yml":  "galaxy_info: {}\n",
		"broken.yml":             "- hosts: [\n",
	})
	run := func() []string {
		sink := &memSink{}
		a := newAnalyzer(t, sink)
		a.Run(files, defaultChecks(t, a), idx)
		var out []string
		for _, is := range sink.issues {
			out = append(out, fmt.Sprintf("%s|%s|%d|%s", is.File, is.RuleKey, is.Line, is.Message))
		}
		sort.Strings(out)
		return out
	}
	first, second := run(), run()
	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Fatalf("runs differ:\n%v\n%v", first, second)
	}
	if len(first) == 0 {
		t.Fatalf("expected findings")
	}
}

func TestActiveChecks_UnknownProfile(t *testing.T) {
	a := newAnalyzer(t, &memSink{})
	if _, err := a.ActiveChecks("No Such Profile"); !errors.Is(err, catalog.ErrUnknownProfile) {
		t.Fatalf("want ErrUnknownProfile, got %v", err)
	}
}

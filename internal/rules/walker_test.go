package rules

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/parser"
)

const walkSample = `- hosts: all
  pre_tasks:
    - name: pre
      ansible.builtin.ping:
  tasks:
    - name: outer
      block:
        - name: inner
          ansible.builtin.ping:
      rescue:
        - name: rescued
          ansible.builtin.ping:
      always:
        - name: finally
          ansible.builtin.ping:
  post_tasks:
    - name: post
      ansible.builtin.ping:
  handlers:
    - name: handler
      ansible.builtin.ping:
`

func TestWalker_VisitOrder(t *testing.T) {
	var seen []string
	rec := Check{
		Key:     "rec",
		File:    func(*Context, *ir.Playbook) { seen = append(seen, "file") },
		Play:    func(*Context, *ir.Play) { seen = append(seen, "play") },
		Block:   func(_ *Context, b *ir.Task, _ Scope) { seen = append(seen, "block:"+b.Name()) },
		Task:    func(_ *Context, t *ir.Task, s Scope) { seen = append(seen, s.Section+":"+t.Name()) },
		Handler: func(_ *Context, h *ir.Task, _ Scope) { seen = append(seen, "handler:"+h.Name()) },
	}
	pb := parser.ParsePlaybook("site.yml", []byte(walkSample))
	NewWalker([]Check{rec}, nil).WalkPlaybook(&Source{Path: "site.yml"}, pb)

	want := "file,play,pre_tasks:pre,block:outer,tasks:inner,tasks:rescued,tasks:finally,post_tasks:post,handler:handler"
	if got := strings.Join(seen, ","); got != want {
		t.Fatalf("visit order:\n got %s\nwant %s", got, want)
	}
}

func TestWalker_ChecksRunInKeyOrder(t *testing.T) {
	var order []string
	mk := func(key string) Check {
		return Check{Key: key, Task: func(c *Context, _ *ir.Task, _ Scope) { order = append(order, key) }}
	}
	w := NewWalker([]Check{mk("c"), mk("a"), mk("b")}, nil)
	pb := parser.ParsePlaybook("t.yml", []byte("- name: one\n  ansible.builtin.ping:\n- name: two\n  ansible.builtin.ping:\n"))
	w.WalkPlaybook(&Source{Path: "t.yml"}, pb)
	if got := strings.Join(order, ""); got != "abcabc" {
		t.Fatalf("order: %s", got)
	}
}

func TestWalker_PanicIsolated(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	boom := Check{Key: "a-boom", Task: func(*Context, *ir.Task, Scope) { panic("kaboom") }}
	ok := Check{Key: "b-ok", Task: func(c *Context, t *ir.Task, _ Scope) { c.Report(t.Line, "seen %s", t.Name()) }}
	pb := parser.ParsePlaybook("t.yml", []byte("- name: one\n  ansible.builtin.ping:\n- name: two\n  ansible.builtin.ping:\n"))

	issues := NewWalker([]Check{boom, ok}, logger).WalkPlaybook(&Source{Path: "t.yml"}, pb)
	if len(issues) != 2 || issues[0].RuleKey != "b-ok" || issues[1].Line != 3 {
		t.Fatalf("issues: %+v", issues)
	}
	if !strings.Contains(logs.String(), "check failed") || !strings.Contains(logs.String(), "a-boom") {
		t.Fatalf("panic not logged: %s", logs.String())
	}
}

func TestContext_ReportDropsEmptyMessage(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	chk := Check{Key: "empty", File: func(c *Context, _ *ir.Playbook) {
		c.Report(1, "   ")
		c.Report(-4, "clamped")
	}}
	issues := NewWalker([]Check{chk}, logger).WalkPlaybook(&Source{Path: "x.yml"}, &ir.Playbook{})
	if len(issues) != 1 || issues[0].Line != 0 || issues[0].Message != "clamped" {
		t.Fatalf("issues: %+v", issues)
	}
	if !strings.Contains(logs.String(), "empty message") {
		t.Fatalf("drop not logged: %s", logs.String())
	}
}

func TestScope_Inherited(t *testing.T) {
	src := `- hosts: all
  become: true
  tags: [play]
  vars: {a: 1}
  tasks:
    - block:
        - name: nested
          ansible.builtin.ping:
      become: false
      tags: [blk]
      vars: {b: 2}
`
	var got Scope
	chk := Check{Key: "s", Task: func(_ *Context, _ *ir.Task, s Scope) { got = s }}
	NewWalker([]Check{chk}, nil).WalkPlaybook(&Source{Path: "s.yml"}, parser.ParsePlaybook("s.yml", []byte(src)))
	b, ok := got.Inherited("become")
	if !ok || b.IsTrue() {
		t.Fatalf("innermost become should win: %v %v", ok, b.String())
	}
	if strings.Join(got.Tags(), ",") != "play,blk" || strings.Join(got.VarNames(), ",") != "a,b" {
		t.Fatalf("tags=%v vars=%v", got.Tags(), got.VarNames())
	}
	if len(got.Blocks) != 1 || got.Section != "tasks" {
		t.Fatalf("scope: %+v", got)
	}
}

func TestRegistry(t *testing.T) {
	keys := Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted: %s >= %s", keys[i-1], keys[i])
		}
	}
	if _, ok := Get("qa-valid-yaml"); !ok {
		t.Fatalf("qa-valid-yaml not registered")
	}
	checks, unknown := Select([]string{"qa-valid-yaml", "nope", "qa-valid-yaml"})
	if len(checks) != 1 || len(unknown) != 1 {
		t.Fatalf("select: %d %v", len(checks), unknown)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate register did not panic")
		}
	}()
	Register(Check{Key: "qa-valid-yaml"})
}

func TestSetSettings_ZeroKeepsDefaults(t *testing.T) {
	defer SetSettings(DefaultSettings())
	SetSettings(Settings{MaxLineLength: 80})
	s := CurrentSettings()
	if s.MaxLineLength != 80 || s.MaxPlays != DefaultSettings().MaxPlays {
		t.Fatalf("settings: %+v", s)
	}
}

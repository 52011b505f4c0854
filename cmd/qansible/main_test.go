package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/shared"
	"github.com/qualimetry/qansible/internal/storage"
)

const cleanPlaybook = `- hosts: all
  tags: [test]
  tasks:
    - name: Print a greeting
      ansible.builtin.debug:
        msg: hello
`

const tabPlaybook = "- hosts: all\n\ttasks: []\n"

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func testEngine(t *testing.T) *engine {
	t.Helper()
	eng, err := newEngine(shared.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	return eng
}

func TestEngine_CleanBaseline(t *testing.T) {
	dir := writeProject(t, map[string]string{"site.yml": cleanPlaybook})
	run, err := testEngine(t).analyze(runRequest{root: dir, profile: catalog.DefaultProfile})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(run.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", run.Findings)
	}
	if run.Summary.Files != 1 || run.Summary.Analyzed != 1 {
		t.Fatalf("summary: %+v", run.Summary)
	}
	if !strings.HasPrefix(run.ID, "run-") || run.Profile != catalog.DefaultProfile {
		t.Fatalf("run header: id=%q profile=%q", run.ID, run.Profile)
	}
}

func TestEngine_TabFinding(t *testing.T) {
	dir := writeProject(t, map[string]string{"site.yml": tabPlaybook})
	run, err := testEngine(t).analyze(runRequest{root: dir, profile: catalog.DefaultProfile})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	found := false
	for _, f := range run.Findings {
		if f.RuleKey == "qa-spaces-not-tabs" && f.Line == 2 && strings.Contains(strings.ToLower(f.Message), "tab") {
			found = true
			if f.File != "site.yml" || f.RuleID != "qualimetry-ansible:qa-spaces-not-tabs" {
				t.Fatalf("finding: %+v", f)
			}
		}
	}
	if !found {
		t.Fatalf("no tab finding in %+v", run.Findings)
	}
}

func TestEngine_WaiversAndFloor(t *testing.T) {
	dir := writeProject(t, map[string]string{"site.yml": tabPlaybook})
	eng := testEngine(t)
	ws := []storage.Waiver{{RuleKey: "qa-spaces-not-tabs", Reason: "legacy", ExpiresAt: time.Now().Add(time.Hour)}}
	run, err := eng.analyze(runRequest{root: dir, profile: catalog.DefaultProfile, waivers: ws})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if run.Summary.Waived == 0 {
		t.Fatalf("expected waived findings: %+v", run.Summary)
	}
	for _, f := range run.Findings {
		if f.RuleKey == "qa-spaces-not-tabs" {
			t.Fatalf("waived finding kept: %+v", f)
		}
	}

	run, err = eng.analyze(runRequest{root: dir, profile: catalog.DefaultProfile, floor: catalog.Blocker})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, f := range run.Findings {
		if f.Severity != "BLOCKER" {
			t.Fatalf("finding below floor: %+v", f)
		}
	}
}

func TestEngine_RulePackJoinsDefaultProfile(t *testing.T) {
	// rule packs register process-wide; a fresh key keeps repeated runs apart
	key := fmt.Sprintf("team-no-raw-%d", time.Now().UnixNano())
	pack := filepath.Join(t.TempDir(), "pack.yml")
	src := "rules:\n  - key: " + key + "\n    severity: MAJOR\n    message: Use a real module instead of raw.\n    where:\n      module: '^(ansible\\.builtin\\.)?raw$'\n"
	if err := os.WriteFile(pack, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := shared.DefaultConfig()
	cfg.Analysis.RulePacks = []string{pack}
	eng, err := newEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}

	dir := writeProject(t, map[string]string{"site.yml": "- hosts: all\n  tags: [test]\n  tasks:\n    - name: Uptime\n      ansible.builtin.raw: uptime\n"})
	run, err := eng.analyze(runRequest{root: dir, profile: catalog.DefaultProfile})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var got []ir.Finding
	for _, f := range run.Findings {
		if f.RuleKey == key {
			got = append(got, f)
		}
	}
	if len(got) != 1 || got[0].Line != 4 || got[0].Severity != "MAJOR" || got[0].Message != "Use a real module instead of raw." {
		t.Fatalf("pack findings: %+v (all: %+v)", got, run.Findings)
	}

	run, err = eng.analyze(runRequest{root: dir, profile: catalog.WayProfile})
	if err != nil {
		t.Fatalf("analyze way: %v", err)
	}
	for _, f := range run.Findings {
		if f.RuleKey == key {
			t.Fatalf("pack rule active outside its profiles: %+v", f)
		}
	}
}

func TestEngine_UnknownProfile(t *testing.T) {
	_, err := testEngine(t).analyze(runRequest{root: "does-not-exist", profile: "nope"})
	if !errors.Is(err, catalog.ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
	if exitCode(err) != exitConfig {
		t.Fatalf("exit code = %d", exitCode(err))
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yml"), "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCLI_AnalyzeReportDiff(t *testing.T) {
	dir := writeProject(t, map[string]string{"site.yml": tabPlaybook})
	outDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "q.db")

	out, err := execute(t, "analyze", "--path", dir, "--out", outDir, "--db", dbPath, "--format", "json,sarif,table")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Analyze OK") || !strings.Contains(out, "qa-spaces-not-tabs") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	db, err := openDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	run, err := db.LoadLatestRun()
	db.Close()
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	for _, name := range []string{run.ID + ".json", run.ID + ".sarif"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("report %s: %v", name, err)
		}
	}

	if _, err := execute(t, "report", "--run", run.ID, "--out", outDir, "--db", dbPath, "--format", "html"); err != nil {
		t.Fatalf("report: %v", err)
	}
	out, err = execute(t, "diff", "--base", run.ID, "--head", run.ID, "--out", outDir, "--db", dbPath)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "New: 0") {
		t.Fatalf("diff of a run with itself:\n%s", out)
	}
}

func TestCLI_FailOn(t *testing.T) {
	dir := writeProject(t, map[string]string{"site.yml": tabPlaybook})
	_, err := execute(t, "analyze", "--path", dir, "--out", t.TempDir(), "--no-db", "--format", "json", "--fail-on", "INFO")
	if exitCode(err) != exitFindings {
		t.Fatalf("expected exit %d, got %v", exitFindings, err)
	}

	clean := writeProject(t, map[string]string{"site.yml": cleanPlaybook})
	if _, err := execute(t, "analyze", "--path", clean, "--out", t.TempDir(), "--no-db", "--format", "json", "--fail-on", "INFO"); err != nil {
		t.Fatalf("clean project: %v", err)
	}

	_, err = execute(t, "analyze", "--path", clean, "--no-db", "--fail-on", "LOUD")
	if exitCode(err) != exitConfig {
		t.Fatalf("bad --fail-on: %v", err)
	}
}

func TestCLI_RulesAndProfiles(t *testing.T) {
	out, err := execute(t, "rules", "--profile", catalog.WayProfile)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if !strings.Contains(out, "qa-builtin-modules-only") {
		t.Fatalf("way profile rules:\n%s", out)
	}
	out, err = execute(t, "profiles")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if !strings.Contains(out, catalog.DefaultProfile) || !strings.Contains(out, catalog.WayProfile) {
		t.Fatalf("profiles:\n%s", out)
	}
	if _, err := execute(t, "rules", "--profile", "nope"); !errors.Is(err, catalog.ErrUnknownProfile) {
		t.Fatalf("unknown profile: %v", err)
	}
}

func TestCLI_Waivers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "q.db")
	out, err := execute(t, "waivers", "add", "--db", dbPath, "--rule", "qa-spaces-not-tabs", "--reason", "legacy", "--expires", "24h")
	if err != nil || !strings.Contains(out, "waiver 1 created") {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if _, err := execute(t, "waivers", "add", "--db", dbPath, "--rule", "qa-unknown", "--reason", "x"); exitCode(err) != exitConfig {
		t.Fatalf("unknown rule: %v", err)
	}
	out, err = execute(t, "waivers", "list", "--db", dbPath)
	if err != nil || !strings.Contains(out, "qa-spaces-not-tabs") {
		t.Fatalf("list: %v\n%s", err, out)
	}

	dir := writeProject(t, map[string]string{"site.yml": tabPlaybook})
	out, err = execute(t, "analyze", "--path", dir, "--out", t.TempDir(), "--db", dbPath, "--format", "table")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if strings.Contains(out, "qa-spaces-not-tabs") {
		t.Fatalf("waived rule reported:\n%s", out)
	}

	if _, err := execute(t, "waivers", "revoke", "--db", dbPath, "--id", "1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := execute(t, "waivers", "revoke", "--db", dbPath, "--id", "1"); err == nil {
		t.Fatalf("second revoke should fail")
	}
}

func TestCLI_UsersAdd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "q.db")
	if _, err := execute(t, "users", "add", "--db", dbPath, "--username", "ana", "--role", "editor", "--password", "short"); exitCode(err) != exitConfig {
		t.Fatalf("weak password: %v", err)
	}
	out, err := execute(t, "users", "add", "--db", dbPath, "--username", "ana", "--role", "editor", "--password", "correct-horse")
	if err != nil || !strings.Contains(out, "user ana (editor) created") {
		t.Fatalf("add: %v\n%s", err, out)
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got, err := parseExpiry("48h", now); err != nil || !got.Equal(now.Add(48*time.Hour)) {
		t.Fatalf("duration: %v %v", got, err)
	}
	if got, err := parseExpiry("2026-02-01T00:00:00Z", now); err != nil || got.Month() != time.February {
		t.Fatalf("rfc3339: %v %v", got, err)
	}
	for _, bad := range []string{"-1h", "2025-01-01T00:00:00Z", "soon"} {
		if _, err := parseExpiry(bad, now); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

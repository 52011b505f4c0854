package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qualimetry/qansible/internal/analysis"
	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/rules"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Build(rules.All())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func collect(t *testing.T) (*catalog.Catalog, []ir.Finding) {
	cat := testCatalog(t)
	c := NewCollector(cat)
	for _, i := range []analysis.Issue{
		{File: "site.yml", RuleKey: "qa-task-has-name", Line: 7, Message: "Name this task."},
		{File: "site.yml", RuleKey: "qa-no-log-secrets", Line: 3, Message: "Set no_log."},
		{File: "a.yml", RuleKey: "qa-task-has-name", Line: 2, Message: "Name this task."},
		{File: "a.yml", RuleKey: "qa-task-has-name", Line: 2, Message: "Name this task."},
		{File: "a.yml", RuleKey: "qa-valid-yaml", Line: 0, Message: "Fix the YAML syntax error: x"},
	} {
		i.RuleID = cat.RuleID(i.RuleKey)
		c.Report(i)
	}
	return cat, c.Findings()
}

func TestCollector_EnrichesAndSorts(t *testing.T) {
	cat, fs := collect(t)
	if len(fs) != 5 {
		t.Fatalf("findings: %d", len(fs))
	}
	var prev catalog.Severity = catalog.Blocker + 1
	for _, f := range fs {
		md := cat.MetadataFor(f.RuleKey)
		if f.Severity != md.Severity.String() || f.Name != md.Name || f.Type != string(md.Type) {
			t.Fatalf("not enriched: %+v", f)
		}
		if s := rankOf(f.Severity); s > prev {
			t.Fatalf("not sorted by severity: %+v", fs)
		} else {
			prev = s
		}
	}
	ids := map[string]bool{}
	for _, f := range fs {
		if ids[f.ID] {
			t.Fatalf("duplicate id %s", f.ID)
		}
		ids[f.ID] = true
	}
	_, again := collect(t)
	for i := range fs {
		if fs[i].ID != again[i].ID {
			t.Fatalf("ids not stable: %s vs %s", fs[i].ID, again[i].ID)
		}
	}
}

func TestFilterSeverity(t *testing.T) {
	fs := []ir.Finding{{Severity: "INFO"}, {Severity: "MAJOR"}, {Severity: "BLOCKER"}, {Severity: "bogus"}}
	if got := FilterSeverity(fs, catalog.Major); len(got) != 2 {
		t.Fatalf("MAJOR+: %+v", got)
	}
	if got := FilterSeverity(fs, catalog.Info); len(got) != 4 {
		t.Fatalf("INFO+: %+v", got)
	}
}

func sampleRun(id string, fs []ir.Finding) *ir.Run {
	return &ir.Run{ID: id, Profile: catalog.DefaultProfile, Summary: ir.Summary{Files: 2, Analyzed: 2, Reported: len(fs)}, Findings: fs}
}

func TestWriters(t *testing.T) {
	cat, fs := collect(t)
	run := sampleRun("r1", fs)
	dir := t.TempDir()

	p, err := WriteJSON(run.ID, dir, run)
	if err != nil {
		t.Fatal(err)
	}
	var back ir.Run
	b, _ := os.ReadFile(p)
	if err := json.Unmarshal(b, &back); err != nil || len(back.Findings) != 5 {
		t.Fatalf("json round trip: %v %d", err, len(back.Findings))
	}

	p, err = WriteHTML(run.ID, filepath.Join(dir, "html"), run)
	if err != nil {
		t.Fatal(err)
	}
	b, _ = os.ReadFile(p)
	if !strings.Contains(string(b), "site.yml:7") || !strings.Contains(string(b), "Findings: 5") {
		t.Fatalf("html missing content")
	}

	p, err = WriteSARIF(run.ID, dir, run, cat, "test")
	if err != nil {
		t.Fatal(err)
	}
	var sarif struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					Physical struct {
						Region *struct {
							StartLine int `json:"startLine"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	b, _ = os.ReadFile(p)
	if err := json.Unmarshal(b, &sarif); err != nil {
		t.Fatal(err)
	}
	if sarif.Version != "2.1.0" || len(sarif.Runs) != 1 || len(sarif.Runs[0].Results) != 5 || len(sarif.Runs[0].Tool.Driver.Rules) != 3 {
		t.Fatalf("sarif shape: %+v", sarif)
	}
	for _, r := range sarif.Runs[0].Results {
		if r.RuleID == "qa-valid-yaml" && r.Locations[0].Physical.Region != nil {
			t.Fatalf("file-level finding has a region")
		}
	}
}

func TestPrintTable(t *testing.T) {
	_, fs := collect(t)
	var buf bytes.Buffer
	if err := PrintTable(&buf, fs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "SEVERITY") || !strings.Contains(out, "5 finding(s)") || !strings.Contains(out, "a.yml:2") {
		t.Fatalf("table:\n%s", out)
	}
}

func TestDiff(t *testing.T) {
	base := sampleRun("b", []ir.Finding{
		{RuleKey: "qa-task-has-name", File: "site.yml", Line: 3, Severity: "MINOR", Message: "Name this task."},
		{RuleKey: "qa-task-has-name", File: "site.yml", Line: 9, Severity: "MINOR", Message: "Name this task."},
		{RuleKey: "qa-no-log-secrets", File: "site.yml", Line: 5, Severity: "CRITICAL", Message: "Set no_log."},
	})
	head := sampleRun("h", []ir.Finding{
		{RuleKey: "qa-task-has-name", File: "site.yml", Line: 3, Severity: "MINOR", Message: "Name this task."},
		{RuleKey: "qa-task-has-name", File: "site.yml", Line: 11, Severity: "MINOR", Message: "Name this task."},
		{RuleKey: "qa-require-https", File: "web.yml", Line: 2, Severity: "MAJOR", Message: "Use HTTPS."},
	})
	d := Diff(base, head)
	if d.Summary != (DiffSummary{NewCount: 1, RemovedCount: 1, ChangedCount: 1}) {
		t.Fatalf("summary: %+v", d.Summary)
	}
	if d.New[0].RuleKey != "qa-require-https" || d.Removed[0].RuleKey != "qa-no-log-secrets" {
		t.Fatalf("diff: %+v", d)
	}
	if len(d.Changed[0].Changed) != 1 || d.Changed[0].Changed[0] != "line" {
		t.Fatalf("changed: %+v", d.Changed)
	}
	p, err := WriteDiffJSON(t.TempDir(), base, head)
	if err != nil || !strings.HasSuffix(p, "diff_b__h.json") {
		t.Fatalf("write diff: %q %v", p, err)
	}
}

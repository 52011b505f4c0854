package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

type DiffPayload struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary DiffSummary   `json:"summary"`
	New     []diffFinding `json:"new"`
	Removed []diffFinding `json:"removed"`
	Changed []diffChanged `json:"changed"`
}

type DiffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type diffFinding struct {
	RuleKey  string `json:"rule_key"`
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message,omitempty"`
}

type diffChanged struct {
	Key     string      `json:"key"`
	Base    diffFinding `json:"base"`
	Head    diffFinding `json:"head"`
	Changed []string    `json:"fields_changed"`
}

// Diff compares two runs. Findings are matched on rule, file and message;
// repeated matches pair up in line order.
func Diff(base, head *ir.Run) DiffPayload {
	bm, hm := indexFindings(base.Findings), indexFindings(head.Findings)

	added := []diffFinding{}
	removed := []diffFinding{}
	changed := []diffChanged{}

	for k, hf := range hm {
		bf, ok := bm[k]
		if !ok {
			added = append(added, asDiff(hf))
			continue
		}
		var fields []string
		if norm(bf.Severity) != norm(hf.Severity) {
			fields = append(fields, "severity")
		}
		if bf.Line != hf.Line {
			fields = append(fields, "line")
		}
		if len(fields) > 0 {
			changed = append(changed, diffChanged{Key: k, Base: asDiff(bf), Head: asDiff(hf), Changed: fields})
		}
	}
	for k, bf := range bm {
		if _, ok := hm[k]; !ok {
			removed = append(removed, asDiff(bf))
		}
	}

	sortDiff(added)
	sortDiff(removed)
	sort.Slice(changed, func(i, j int) bool { return changed[i].Key < changed[j].Key })

	return DiffPayload{
		BaseID: base.ID, HeadID: head.ID,
		Summary: DiffSummary{
			NewCount:     len(added),
			RemovedCount: len(removed),
			ChangedCount: len(changed),
		},
		New:     added,
		Removed: removed,
		Changed: changed,
	}
}

// WriteDiffJSON writes the diff of two runs to <outDir>/diff_<base>__<head>.json.
func WriteDiffJSON(outDir string, base, head *ir.Run) (string, error) {
	path := filepath.Join(outDir, "diff_"+base.ID+"__"+head.ID+".json")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(Diff(base, head), "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, b, 0o644)
}

func indexFindings(fs []ir.Finding) map[string]ir.Finding {
	sorted := append([]ir.Finding(nil), fs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Line < sorted[j].Line })
	out := make(map[string]ir.Finding, len(sorted))
	seen := map[string]int{}
	for _, f := range sorted {
		k := keyOf(f)
		n := seen[k]
		seen[k]++
		if n > 0 {
			k += "#" + strconv.Itoa(n)
		}
		out[k] = f
	}
	return out
}

func keyOf(f ir.Finding) string {
	sb := strings.Builder{}
	sb.WriteString(norm(f.RuleKey))
	sb.WriteByte('|')
	sb.WriteString(filepath.ToSlash(strings.TrimSpace(f.File)))
	sb.WriteByte('|')
	sb.WriteString(strings.TrimSpace(f.Message))
	return sb.String()
}

func sortDiff(ds []diffFinding) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].File != ds[j].File {
			return ds[i].File < ds[j].File
		}
		if ds[i].Line != ds[j].Line {
			return ds[i].Line < ds[j].Line
		}
		return ds[i].RuleKey < ds[j].RuleKey
	})
}

func asDiff(f ir.Finding) diffFinding {
	return diffFinding{
		RuleKey:  f.RuleKey,
		File:     f.File,
		Line:     f.Line,
		Severity: f.Severity,
		Message:  f.Message,
	}
}

func norm(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

package reporting

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"

	"github.com/qualimetry/qansible/internal/analysis"
	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
)

// Collector is an analysis sink that turns issues into catalog-enriched
// findings.
type Collector struct {
	cat    *catalog.Catalog
	issues []analysis.Issue
}

func NewCollector(cat *catalog.Catalog) *Collector {
	return &Collector{cat: cat}
}

// Report records one issue. The analyzer serializes calls.
func (c *Collector) Report(i analysis.Issue) { c.issues = append(c.issues, i) }

// Findings returns the collected findings sorted by severity (highest
// first), file, line and rule. IDs are stable for identical input.
func (c *Collector) Findings() []ir.Finding {
	out := make([]ir.Finding, 0, len(c.issues))
	for _, i := range c.issues {
		md := c.cat.MetadataFor(i.RuleKey)
		out = append(out, ir.Finding{
			File:     i.File,
			Line:     i.Line,
			RuleID:   i.RuleID,
			RuleKey:  i.RuleKey,
			Name:     md.Name,
			Type:     string(md.Type),
			Severity: md.Severity.String(),
			Message:  i.Message,
		})
	}
	SortFindings(out)
	seen := map[uint32]int{}
	for k := range out {
		f := &out[k]
		sum := crc32.ChecksumIEEE([]byte(f.RuleKey + "|" + f.File + "|" + strconv.Itoa(f.Line) + "|" + f.Message))
		f.ID = fmt.Sprintf("%08x-%d", sum, seen[sum])
		seen[sum]++
	}
	return out
}

// SortFindings orders findings by severity (highest first), file, line,
// rule and message.
func SortFindings(fs []ir.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if ra, rb := rankOf(a.Severity), rankOf(b.Severity); ra != rb {
			return ra > rb
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.RuleKey != b.RuleKey {
			return a.RuleKey < b.RuleKey
		}
		return a.Message < b.Message
	})
}

// FilterSeverity keeps findings at or above floor.
func FilterSeverity(fs []ir.Finding, floor catalog.Severity) []ir.Finding {
	out := make([]ir.Finding, 0, len(fs))
	for _, f := range fs {
		if rankOf(f.Severity) >= floor {
			out = append(out, f)
		}
	}
	return out
}

// rankOf maps a severity name to its order; unknown names rank as INFO.
func rankOf(s string) catalog.Severity {
	sev, err := catalog.ParseSeverity(s)
	if err != nil {
		return catalog.Info
	}
	return sev
}

// CountBySeverity returns finding counts keyed by severity name.
func CountBySeverity(fs []ir.Finding) map[string]int {
	out := map[string]int{}
	for _, f := range fs {
		out[f.Severity]++
	}
	return out
}

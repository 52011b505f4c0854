package rules

import (
	"path"
	"strings"
	"time"

	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/storage"
)

// ApplyWaivers filters out findings that match any waiver live at now.
// Returns (kept, waivedCount)
func ApplyWaivers(in []ir.Finding, waivers []storage.Waiver, now time.Time) ([]ir.Finding, int) {
	if len(waivers) == 0 || len(in) == 0 {
		return in, 0
	}
	out := make([]ir.Finding, 0, len(in))
	waived := 0
nextFinding:
	for _, f := range in {
		for _, w := range waivers {
			if !w.Active(now) {
				continue
			}
			if !eqCI(f.RuleKey, w.RuleKey) && !eqCI(f.RuleID, w.RuleKey) {
				continue
			}
			if w.FileGlob != "" && !matchFile(w.FileGlob, f.File) {
				continue
			}
			if w.PatternSub != "" && !strings.Contains(strings.ToUpper(f.Message), strings.ToUpper(w.PatternSub)) {
				continue
			}
			waived++
			continue nextFinding
		}
		out = append(out, f)
	}
	return out, waived
}

// matchFile matches a slash path against a glob, or a directory prefix
// ending in "/".
func matchFile(glob, file string) bool {
	if strings.HasSuffix(glob, "/") {
		return strings.HasPrefix(file, glob)
	}
	ok, err := path.Match(glob, file)
	return err == nil && ok
}

func eqCI(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }

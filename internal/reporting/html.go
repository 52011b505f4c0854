package reporting

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"

	"github.com/qualimetry/qansible/internal/ir"
)

var severityOrder = []string{"BLOCKER", "CRITICAL", "MAJOR", "MINOR", "INFO"}

// WriteHTML writes a standalone report to <outDir>/<runID>.html.
func WriteHTML(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	renderHTML(f, runID, run)
	return path, nil
}

func renderHTML(w io.Writer, runID string, run *ir.Run) {
	fmt.Fprintf(w, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(runID))
	fmt.Fprint(w, "<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace}</style>")
	fmt.Fprint(w, "</head><body>")

	fmt.Fprintf(w, "<h1>qansible report – <span class='mono'>%s</span></h1>", html.EscapeString(runID))
	s := run.Summary
	fmt.Fprintf(w, "<p>Files: %d &nbsp; Analyzed: %d &nbsp; Skipped: %d &nbsp; Unreadable: %d &nbsp; Findings: %d</p>",
		s.Files, s.Analyzed, s.Skipped, s.Unreadable, len(run.Findings))
	fmt.Fprintf(w, "<p class='dim'>Profile: %s", html.EscapeString(run.Profile))
	if s.Waived > 0 {
		fmt.Fprintf(w, " &nbsp; Waived: %d", s.Waived)
	}
	if s.Dropped > 0 {
		fmt.Fprintf(w, " &nbsp; Dropped (unknown rule): %d", s.Dropped)
	}
	fmt.Fprint(w, "</p>")

	counts := CountBySeverity(run.Findings)
	fmt.Fprint(w, "<table><tr>")
	for _, sev := range severityOrder {
		fmt.Fprintf(w, "<th>%s</th>", sev)
	}
	fmt.Fprint(w, "</tr><tr>")
	for _, sev := range severityOrder {
		fmt.Fprintf(w, "<td>%d</td>", counts[sev])
	}
	fmt.Fprint(w, "</tr></table>")

	if len(run.Findings) == 0 {
		fmt.Fprint(w, "<h2>Findings</h2><p class='dim'>No findings at or above the configured threshold.</p>")
		fmt.Fprint(w, "</body></html>")
		return
	}
	fmt.Fprint(w, "<h2>Findings</h2><table><tr><th>Severity</th><th>Type</th><th>Rule</th><th>Location</th><th>Message</th></tr>")
	for _, fd := range run.Findings {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td><td title='%s'>%s</td><td class='mono'>%s</td><td>%s</td></tr>",
			html.EscapeString(fd.Severity),
			html.EscapeString(fd.Type),
			html.EscapeString(fd.RuleKey),
			html.EscapeString(fd.Name),
			html.EscapeString(location(fd)),
			html.EscapeString(fd.Message),
		)
	}
	fmt.Fprint(w, "</table></body></html>")
}

func location(f ir.Finding) string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return f.File
}

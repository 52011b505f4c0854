package reporting

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/qualimetry/qansible/internal/ir"
)

// PrintTable writes findings as aligned columns.
func PrintTable(w io.Writer, fs []ir.Finding) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tRULE\tLOCATION\tMESSAGE")
	for _, f := range fs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Severity, f.RuleKey, location(f), f.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d finding(s)\n", len(fs))
	return err
}

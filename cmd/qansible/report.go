package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/reporting"
)

func newReportCmd(g *globals) *cobra.Command {
	var runID, outDir, dbPath, formats string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render reports for a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return configErr(errors.New("report: --run is required"))
			}
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Reporting.OutDir
			}
			if dbPath == "" {
				dbPath = cfg.Database.DSN
			}
			fl := splitList(formats)
			if len(fl) == 0 {
				fl = cfg.Reporting.Formats
			}
			db, err := openDB(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			run, err := db.LoadRun(runID)
			if err != nil {
				return fmt.Errorf("load run %s: %w", runID, err)
			}
			out := cmd.OutOrStdout()
			paths, err := eng.writeReports(&run, outDir, fl, func(fs []ir.Finding) error {
				return reporting.PrintTable(out, fs)
			})
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(out, "Report: %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID to render")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for reports")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&formats, "format", "", "Comma-separated formats: json,html,sarif,table")
	return cmd
}

func newDiffCmd(g *globals) *cobra.Command {
	var base, head, outDir, dbPath string
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare the findings of two stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if base == "" || head == "" {
				return configErr(errors.New("diff: --base and --head are required"))
			}
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Reporting.OutDir
			}
			if dbPath == "" {
				dbPath = cfg.Database.DSN
			}
			db, err := openDB(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			br, err := db.LoadRun(base)
			if err != nil {
				return fmt.Errorf("load base %s: %w", base, err)
			}
			hr, err := db.LoadRun(head)
			if err != nil {
				return fmt.Errorf("load head %s: %w", head, err)
			}
			path, err := reporting.WriteDiffJSON(outDir, &br, &hr)
			if err != nil {
				return err
			}
			d := reporting.Diff(&br, &hr)
			fmt.Fprintf(cmd.OutOrStdout(), "Diff OK\n  New: %d\n  Removed: %d\n  Changed: %d\n  Report: %s\n",
				d.Summary.NewCount, d.Summary.RemovedCount, d.Summary.ChangedCount, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "Base run ID")
	cmd.Flags().StringVar(&head, "head", "", "Head run ID")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for the diff")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	return cmd
}

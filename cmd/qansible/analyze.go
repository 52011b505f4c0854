package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/reporting"
	"github.com/qualimetry/qansible/internal/storage"
)

type analyzeFlags struct {
	path        string
	profile     string
	outDir      string
	formats     string
	dbPath      string
	noDB        bool
	minSeverity string
	workers     int
	failOn      string
}

func newAnalyzeCmd(g *globals) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a project directory and write reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}

			// precedence: flags > config > defaults
			if f.path == "" && len(cfg.Analysis.Sources) > 0 {
				f.path = cfg.Analysis.Sources[0]
			}
			if f.profile == "" {
				f.profile = cfg.Analysis.Profile
			}
			if f.profile == "" {
				f.profile = catalog.DefaultProfile
			}
			if f.outDir == "" {
				f.outDir = cfg.Reporting.OutDir
			}
			formats := splitList(f.formats)
			if len(formats) == 0 {
				formats = cfg.Reporting.Formats
			}
			if f.dbPath == "" {
				f.dbPath = cfg.Database.DSN
			}
			if f.minSeverity == "" {
				f.minSeverity = cfg.Analysis.MinSeverity
			}
			if f.workers == 0 {
				f.workers = cfg.Analysis.Workers
			}
			floor, err := catalog.ParseSeverity(f.minSeverity)
			if err != nil {
				return configErr(err)
			}
			var failOn *catalog.Severity
			if f.failOn != "" {
				s, err := catalog.ParseSeverity(f.failOn)
				if err != nil {
					return configErr(fmt.Errorf("--fail-on: %w", err))
				}
				failOn = &s
			}

			var db *storage.DB
			var waivers []storage.Waiver
			if !f.noDB {
				if db, err = openDB(f.dbPath); err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				if waivers, err = db.ListWaivers(true); err != nil {
					return fmt.Errorf("load waivers: %w", err)
				}
			}

			run, err := eng.analyze(runRequest{root: f.path, profile: f.profile, workers: f.workers, floor: floor, waivers: waivers})
			if err != nil {
				return err
			}
			if db != nil {
				if err := db.SaveRun(run); err != nil {
					return fmt.Errorf("save run: %w", err)
				}
			}
			out := cmd.OutOrStdout()
			paths, err := eng.writeReports(run, f.outDir, formats, func(fs []ir.Finding) error {
				return reporting.PrintTable(out, fs)
			})
			if err != nil {
				return err
			}
			log.Info("analyze complete",
				"run", run.ID,
				"files", run.Summary.Files,
				"findings", len(run.Findings),
				"waived", run.Summary.Waived,
				"reports", paths,
			)
			fmt.Fprintf(out, "Analyze OK\n  Run: %s\n  Findings: %d\n", run.ID, len(run.Findings))
			for _, p := range paths {
				fmt.Fprintf(out, "  Report: %s\n", p)
			}
			if db != nil {
				fmt.Fprintf(out, "  DB: %s\n", filepath.Clean(f.dbPath))
			}

			if failOn != nil {
				if n := len(reporting.FilterSeverity(run.Findings, *failOn)); n > 0 {
					return &exitError{code: exitFindings, err: fmt.Errorf("%d finding(s) at or above %s", n, *failOn)}
				}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.path, "path", "p", "", "Project directory to analyze")
	fl.StringVar(&f.profile, "profile", "", "Quality profile (default \""+catalog.DefaultProfile+"\")")
	fl.StringVarP(&f.outDir, "out", "o", "", "Output directory for reports")
	fl.StringVar(&f.formats, "format", "", "Comma-separated formats: json,html,sarif,table")
	fl.StringVar(&f.dbPath, "db", "", "SQLite database path")
	fl.BoolVar(&f.noDB, "no-db", false, "Do not store the run or apply waivers")
	fl.StringVar(&f.minSeverity, "min-severity", "", "Drop findings below this severity")
	fl.IntVar(&f.workers, "workers", 0, "Files analyzed in parallel (0 = number of CPUs)")
	fl.StringVar(&f.failOn, "fail-on", "", "Exit with code 3 when findings at or above this severity exist")
	return cmd
}

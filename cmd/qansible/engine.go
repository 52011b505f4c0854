package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qualimetry/qansible/internal/analysis"
	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/project"
	"github.com/qualimetry/qansible/internal/reporting"
	"github.com/qualimetry/qansible/internal/rules"
	"github.com/qualimetry/qansible/internal/rulesdsl"
	"github.com/qualimetry/qansible/internal/shared"
	"github.com/qualimetry/qansible/internal/storage"
)

// engine holds what stays fixed across runs: thresholds, registered rule
// packs and the built catalog.
type engine struct {
	cfg shared.Config
	log *slog.Logger
	cat *catalog.Catalog
}

// newEngine applies rule thresholds, registers rule packs and builds the
// catalog. Rule packs register globally, so build one engine per process.
func newEngine(cfg shared.Config, log *slog.Logger) (*engine, error) {
	r := cfg.Rules
	rules.SetSettings(rules.Settings{
		MaxLineLength:     r.MaxLineLength,
		MaxPlays:          r.MaxPlays,
		MaxTasksPerPlay:   r.MaxTasksPerPlay,
		MaxBlockTasks:     r.MaxBlockTasks,
		MinTaskNameChars:  r.MinTaskNameChars,
		MaxTaskAttributes: r.MaxTaskAttributes,
	})

	var opts []catalog.Option
	for _, p := range cfg.Analysis.RulePacks {
		entries, err := rulesdsl.LoadAndRegister(p)
		if err != nil {
			return nil, configErr(fmt.Errorf("rule pack %s: %w", p, err))
		}
		log.Info("rule pack loaded", "path", p, "rules", len(entries))
		for _, e := range entries {
			opts = append(opts, catalog.WithRule(e))
		}
	}
	for _, p := range cfg.Profiles {
		opts = append(opts, catalog.WithProfile(p.Name, p.Rules))
	}
	cat, err := catalog.Build(rules.All(), opts...)
	if err != nil {
		return nil, configErr(err)
	}
	return &engine{cfg: cfg, log: log, cat: cat}, nil
}

type runRequest struct {
	root    string
	profile string
	workers int
	floor   catalog.Severity
	waivers []storage.Waiver
}

// analyze runs every check of the profile over the project at root. An
// unknown profile fails before any file is read.
func (e *engine) analyze(req runRequest) (*ir.Run, error) {
	col := reporting.NewCollector(e.cat)
	an := analysis.New(e.cat, col, analysis.Options{Workers: req.workers, Logger: e.log})
	checks, err := an.ActiveChecks(req.profile)
	if err != nil {
		return nil, configErr(err)
	}
	proj, err := project.Discover(req.root, e.cfg.Analysis.Exclude)
	if err != nil {
		return nil, configErr(err)
	}

	started := time.Now().UTC()
	sum := an.Run(proj.Sources, checks, proj.Index)
	run := &ir.Run{
		ID:        fmt.Sprintf("run-%d", started.UnixNano()),
		StartedAt: started,
		Source:    req.root,
		Profile:   req.profile,
		IRVersion: ir.Version,
		Summary: ir.Summary{
			Files:      sum.Files,
			Analyzed:   sum.Analyzed,
			Skipped:    sum.Skipped,
			Unreadable: sum.Unreadable,
			Reported:   sum.Reported,
			Dropped:    sum.Dropped,
		},
	}
	findings, waived := rules.ApplyWaivers(col.Findings(), req.waivers, started)
	run.Summary.Waived = waived
	run.Findings = reporting.FilterSeverity(findings, req.floor)
	return run, nil
}

// writeReports writes every requested format; "table" goes to the table
// writer instead of a file.
func (e *engine) writeReports(run *ir.Run, outDir string, formats []string, table func([]ir.Finding) error) ([]string, error) {
	var paths []string
	for _, f := range formats {
		var (
			p   string
			err error
		)
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "json":
			p, err = reporting.WriteJSON(run.ID, outDir, run)
		case "html":
			p, err = reporting.WriteHTML(run.ID, outDir, run)
		case "sarif":
			p, err = reporting.WriteSARIF(run.ID, outDir, run, e.cat, version)
		case "table":
			err = table(run.Findings)
		case "":
			continue
		default:
			err = configErr(fmt.Errorf("unknown format %q", f))
		}
		if err != nil {
			return paths, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func openDB(dsn string) (*storage.DB, error) {
	db, err := storage.OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

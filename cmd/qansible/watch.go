package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/project"
	"github.com/qualimetry/qansible/internal/reporting"
)

const watchDebounce = 300 * time.Millisecond

func newWatchCmd(g *globals) *cobra.Command {
	var root, profile string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyze a project whenever one of its YAML files changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, log)
			if err != nil {
				return err
			}
			if root == "" && len(cfg.Analysis.Sources) > 0 {
				root = cfg.Analysis.Sources[0]
			}
			if profile == "" {
				profile = cfg.Analysis.Profile
			}
			if profile == "" {
				profile = catalog.DefaultProfile
			}
			floor, err := catalog.ParseSeverity(cfg.Analysis.MinSeverity)
			if err != nil {
				return configErr(err)
			}
			req := runRequest{root: root, profile: profile, workers: cfg.Analysis.Workers, floor: floor}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return eng.watch(ctx, req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&root, "path", "p", "", "Project directory to watch")
	cmd.Flags().StringVar(&profile, "profile", "", "Quality profile")
	return cmd
}

// watch analyzes once, then again after each quiet period following a
// change to a YAML file. It returns when ctx is done.
func (e *engine) watch(ctx context.Context, req runRequest, out io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init: %w", err)
	}
	defer w.Close()
	excludes := e.cfg.Analysis.Exclude
	if err := addWatchRecursive(w, req.root, req.root, excludes); err != nil {
		return fmt.Errorf("watch %s: %w", req.root, err)
	}

	trigger := make(chan struct{}, 1)
	pass := func() {
		run, err := e.analyze(req)
		if err != nil {
			e.log.Error("watch analyze failed", "err", err)
			return
		}
		printSummary(out, run)
	}
	pass()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, ok := relTo(req.root, ev.Name)
			if !ok || project.Excluded(rel, excludes) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = addWatchRecursive(w, req.root, ev.Name, excludes)
				}
			}
			if !triggers(rel, excludes) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			pass()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("watch error", "err", err)
		}
	}
}

// addWatchRecursive watches start and every directory below it that
// discovery would enter.
func addWatchRecursive(w *fsnotify.Watcher, root, start string, excludes []string) error {
	return filepath.WalkDir(start, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, ok := relTo(root, p); ok && rel != "." && project.SkipDir(rel, excludes) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

// triggers reports whether a change at rel can alter the analysis: a YAML
// file outside skipped directories.
func triggers(rel string, excludes []string) bool {
	if !project.IsSource(rel) {
		return false
	}
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if project.SkipDir(dir, excludes) {
			return false
		}
	}
	return true
}

func relTo(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func printSummary(out io.Writer, run *ir.Run) {
	counts := reporting.CountBySeverity(run.Findings)
	var parts []string
	for s := catalog.Blocker; s >= catalog.Info; s-- {
		if n := counts[s.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", s, n))
		}
	}
	fmt.Fprintf(out, "%s  files=%d findings=%d %s\n",
		run.StartedAt.Format(time.TimeOnly), run.Summary.Files, len(run.Findings), strings.Join(parts, " "))
}

// Package analysis drives a run: it reads, classifies and parses each file,
// walks it with the active checks and forwards the findings to a sink.
package analysis

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/parser"
	"github.com/qualimetry/qansible/internal/project"
	"github.com/qualimetry/qansible/internal/rules"
)

// Issue is a finding resolved to its host rule identifier.
type Issue struct {
	File    string
	RuleID  string
	RuleKey string
	Message string
	Line    int // 0 for file-level findings
}

// Sink receives findings. Calls are serialized by the analyzer.
type Sink interface {
	Report(Issue)
}

// Parser classifies files and builds their models.
type Parser interface {
	ParsePlaybook(fileID string, content []byte) *ir.Playbook
	ParseRoleMeta(fileID string, content []byte) *ir.RoleMeta
	IsRoleMetaFile(relativePath string) bool
}

type Options struct {
	Parser  Parser // nil means parser.YAML
	Workers int    // <= 0 means GOMAXPROCS
	Logger  *slog.Logger
}

// Summary counts what happened to the files of one run.
type Summary struct {
	Files      int `json:"files"`
	Analyzed   int `json:"analyzed"`
	Skipped    int `json:"skipped"`
	Unreadable int `json:"unreadable"`
	Reported   int `json:"reported"`
	Dropped    int `json:"dropped"`
}

type Analyzer struct {
	cat     *catalog.Catalog
	sink    Sink
	parser  Parser
	workers int
	logger  *slog.Logger

	mu sync.Mutex
}

func New(cat *catalog.Catalog, sink Sink, opts Options) *Analyzer {
	a := &Analyzer{cat: cat, sink: sink, parser: opts.Parser, workers: opts.Workers, logger: opts.Logger}
	if a.parser == nil {
		a.parser = parser.YAML{}
	}
	if a.workers <= 0 {
		a.workers = runtime.GOMAXPROCS(0)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// ActiveChecks resolves a profile to its registered checks. An unknown
// profile fails with catalog.ErrUnknownProfile before any file is touched.
func (a *Analyzer) ActiveChecks(profile string) ([]rules.Check, error) {
	keys, err := a.cat.ActiveRuleKeys(profile)
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	checks, unknown := rules.Select(keys)
	for _, k := range unknown {
		a.logger.Warn("profile rule has no registered check", "profile", profile, "rule", k)
	}
	return checks, nil
}

type outcome int

const (
	analyzed outcome = iota
	skipped
	unreadable
)

// Run analyzes files with checks. Files are processed concurrently; a
// file's findings reach the sink only after its traversal finished.
func (a *Analyzer) Run(files []project.File, checks []rules.Check, index *project.Index) Summary {
	keyMap := make(map[string]string, len(checks))
	for _, c := range checks {
		if !a.cat.Known(c.Key) {
			a.logger.Warn("check has no catalog entry; its findings are dropped", "rule", c.Key)
			continue
		}
		keyMap[c.Key] = a.cat.RuleID(c.Key)
	}
	w := rules.NewWalker(checks, a.logger)

	sum := Summary{Files: len(files)}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(a.workers)
	for _, f := range files {
		g.Go(func() error {
			issues, out := a.analyzeFile(f, w, index)
			a.mu.Lock()
			defer a.mu.Unlock()
			switch out {
			case analyzed:
				sum.Analyzed++
			case skipped:
				sum.Skipped++
			case unreadable:
				sum.Unreadable++
			}
			for _, is := range issues {
				id, ok := keyMap[is.RuleKey]
				if !ok {
					sum.Dropped++
					continue
				}
				a.sink.Report(Issue{File: f.Path(), RuleID: id, RuleKey: is.RuleKey, Message: is.Message, Line: is.Line})
				sum.Reported++
			}
			return nil
		})
	}
	_ = g.Wait()

	a.logger.Info("analysis finished",
		"files", sum.Files, "analyzed", sum.Analyzed, "skipped", sum.Skipped,
		"unreadable", sum.Unreadable, "findings", sum.Reported, "dropped", sum.Dropped,
		"checks", len(checks), "elapsed", time.Since(start).String())
	return sum
}

func (a *Analyzer) analyzeFile(f project.File, w *rules.Walker, index *project.Index) (issues []rules.Issue, out outcome) {
	rel := f.Path()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("file analysis failed", "file", rel, "panic", r)
			issues, out = nil, skipped
		}
	}()

	content, err := f.Read()
	if err != nil {
		a.logger.Warn("skipping unreadable file", "file", rel, "err", err)
		return nil, unreadable
	}
	src := &rules.Source{Path: rel, Content: content, Resolver: project.NewResolver(index, rel)}

	if a.parser.IsRoleMetaFile(rel) {
		return w.WalkRoleMeta(src, a.parser.ParseRoleMeta(rel, content)), analyzed
	}
	pb := a.parser.ParsePlaybook(rel, content)
	if len(pb.Plays) == 0 && pb.ParseError == nil {
		a.logger.Debug("skipping file without plays", "file", rel)
		return nil, skipped
	}
	return w.WalkPlaybook(src, pb), analyzed
}

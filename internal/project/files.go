package project

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// File is one input of an analysis run.
type File interface {
	// Path is project-relative and slash separated.
	Path() string
	Read() ([]byte, error)
}

// DiskFile reads Rel below Root.
type DiskFile struct {
	Root string
	Rel  string
}

func (f DiskFile) Path() string { return f.Rel }

func (f DiskFile) Read() ([]byte, error) {
	return os.ReadFile(filepath.Join(f.Root, filepath.FromSlash(f.Rel)))
}

// MemFile is an in-memory input; a non-nil Err is returned by Read.
type MemFile struct {
	Rel  string
	Data []byte
	Err  error
}

func (f MemFile) Path() string { return f.Rel }

func (f MemFile) Read() ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Data, nil
}

// Project is the result of walking a project directory.
type Project struct {
	Root    string
	Sources []File
	Index   *Index
}

// IsSource reports whether a path has a YAML extension.
func IsSource(rel string) bool {
	switch strings.ToLower(path.Ext(rel)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// Discover walks root. Hidden directories and paths matching an exclude glob
// are skipped. Every remaining file goes into the index; YAML files become
// sources, sorted by path.
func Discover(root string, excludes []string) (*Project, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover %s: not a directory", root)
	}

	var all, sources []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if SkipDir(rel, excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if Excluded(rel, excludes) {
			return nil
		}
		all = append(all, rel)
		if IsSource(rel) {
			sources = append(sources, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}

	sort.Strings(sources)
	pr := &Project{Root: root, Index: NewIndex(all)}
	for _, rel := range sources {
		pr.Sources = append(pr.Sources, DiskFile{Root: root, Rel: rel})
	}
	return pr, nil
}

// SkipDir reports whether discovery leaves out the directory at rel: hidden
// directories and directories matching an exclude glob.
func SkipDir(rel string, excludes []string) bool {
	return strings.HasPrefix(path.Base(rel), ".") || Excluded(rel, excludes)
}

// Excluded matches the slash path rel, and its base name, against the globs.
func Excluded(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := path.Match(g, rel); ok {
			return true
		}
		if ok, _ := path.Match(g, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

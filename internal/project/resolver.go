// Package project holds the per-run view of a project's files: the path
// index used for existence checks and the resolver that answers them
// relative to one referencing file.
package project

import (
	"sort"
	"strings"
)

// Index is a read-only set of project-relative, slash-separated paths.
type Index struct {
	paths map[string]struct{}
}

func NewIndex(paths []string) *Index {
	idx := &Index{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		idx.paths[p] = struct{}{}
	}
	return idx
}

// Contains is exact string membership.
func (i *Index) Contains(p string) bool {
	if i == nil {
		return false
	}
	_, ok := i.paths[p]
	return ok
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.paths)
}

// Paths returns the indexed paths sorted.
func (i *Index) Paths() []string {
	if i == nil {
		return nil
	}
	out := make([]string, 0, len(i.paths))
	for p := range i.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Resolver answers existence questions for references made from one file.
type Resolver struct {
	index *Index
	dir   string
}

// NewResolver binds the index to the directory of currentFile.
func NewResolver(index *Index, currentFile string) *Resolver {
	return &Resolver{index: index, dir: BaseDir(currentFile)}
}

// ExistsInProject reports whether ref, relative to the current file's
// directory, names a file in the index. It does not touch the disk.
func (r *Resolver) ExistsInProject(ref string) bool {
	p, ok := r.Resolve(ref)
	return ok && r.index.Contains(p)
}

// Resolve returns the normalized project-relative path of ref; false for a
// blank reference.
func (r *Resolver) Resolve(ref string) (string, bool) {
	if strings.TrimSpace(ref) == "" {
		return "", false
	}
	combined := ref
	if r.dir != "" {
		combined = r.dir + "/" + ref
	}
	return Normalize(strings.ReplaceAll(combined, `\`, "/")), true
}

// BaseDir is everything before the last slash, or "" at the project root.
func BaseDir(file string) string {
	file = strings.ReplaceAll(file, `\`, "/")
	if i := strings.LastIndex(file, "/"); i >= 0 {
		return file[:i]
	}
	return ""
}

// Normalize resolves "." and ".." lexically. A ".." with nothing left to
// remove is dropped, so paths cannot climb above the project root.
func Normalize(p string) string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

package parser

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qualimetry/qansible/internal/ir"
)

// YAML is the default playbook parser and classifier.
type YAML struct{}

func (YAML) ParsePlaybook(fileID string, content []byte) *ir.Playbook {
	return ParsePlaybook(fileID, content)
}

func (YAML) ParseRoleMeta(fileID string, content []byte) *ir.RoleMeta {
	return ParseRoleMeta(fileID, content)
}

func (YAML) IsRoleMetaFile(relativePath string) bool { return IsRoleMetaFile(relativePath) }

// yaml.v3 reports syntax problems as "yaml: line N: message" and leaves the
// prefix out when the problem is on the first line.
var errLineRe = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

var playKeys = []string{"hosts", "import_playbook", "ansible.builtin.import_playbook"}

// ParsePlaybook builds the playbook model. It never fails: YAML errors are
// recorded on the model, and documents decoded before the error are kept.
func ParsePlaybook(fileID string, content []byte) *ir.Playbook {
	pb := &ir.Playbook{File: fileID}
	docs, perr := decodeAll(content)
	pb.ParseError = perr

	b := &builder{pb: pb, onPath: map[*yaml.Node]bool{}}
	for _, doc := range docs {
		root := docRoot(doc)
		if root == nil || root.Kind != yaml.SequenceNode {
			// vars files, inventories, empty documents: not a playbook
			continue
		}
		if !hasPlayItem(root) {
			pb.Plays = append(pb.Plays, &ir.Play{
				Line:     root.Line,
				Implicit: true,
				Tasks:    b.tasks(root, "task"),
			})
			continue
		}
		for _, item := range root.Content {
			if item.Kind != yaml.MappingNode {
				b.warn(item.Line, "play must be a mapping")
				continue
			}
			pb.Plays = append(pb.Plays, b.play(item))
		}
	}
	return pb
}

// ParseRoleMeta builds the role metadata model.
func ParseRoleMeta(fileID string, content []byte) *ir.RoleMeta {
	m := &ir.RoleMeta{File: fileID}
	docs, perr := decodeAll(content)
	m.ParseError = perr
	if len(docs) > 0 {
		if root := docRoot(docs[0]); root != nil && root.Kind == yaml.MappingNode {
			var recursive bool
			m.Attrs, recursive = ir.MappingAttrsChecked(root)
			if recursive {
				m.Warnings = append(m.Warnings, ir.Warning{Line: root.Line, Kind: ir.DiagnosticWarning, Message: recursiveAlias})
			}
		}
	}
	return m
}

// IsRoleMetaFile reports whether a project-relative path is a role's
// meta/main.yml (or .yaml).
func IsRoleMetaFile(relativePath string) bool {
	p := strings.ReplaceAll(relativePath, "\\", "/")
	parts := strings.Split(p, "/")
	if len(parts) < 2 {
		return false
	}
	dir, base := parts[len(parts)-2], strings.ToLower(parts[len(parts)-1])
	return dir == "meta" && (base == "main.yml" || base == "main.yaml")
}

type builder struct {
	pb *ir.Playbook
	// task mappings being built; an alias back to one of them is a cycle
	onPath map[*yaml.Node]bool
}

const recursiveAlias = "recursive alias"

func (b *builder) attrs(n *yaml.Node) ir.Attrs {
	as, recursive := ir.MappingAttrsChecked(n)
	if recursive {
		b.diag(n.Line, recursiveAlias)
	}
	return as
}

func (b *builder) warn(line int, msg string) {
	b.pb.Warnings = append(b.pb.Warnings, ir.Warning{Line: line, Message: msg})
}

func (b *builder) diag(line int, msg string) {
	b.pb.Warnings = append(b.pb.Warnings, ir.Warning{Line: line, Kind: ir.DiagnosticWarning, Message: msg})
}

func (b *builder) play(n *yaml.Node) *ir.Play {
	p := &ir.Play{Line: n.Line, Attrs: b.attrs(n)}
	sections := []struct {
		key string
		dst *[]*ir.Task
	}{
		{"pre_tasks", &p.PreTasks},
		{"tasks", &p.Tasks},
		{"post_tasks", &p.PostTasks},
		{"handlers", &p.Handlers},
	}
	for _, sec := range sections {
		a, ok := p.Attrs.Get(sec.key)
		if !ok || a.IsNull() {
			continue
		}
		if !a.IsSeq() {
			b.warn(a.Line, sec.key+" must be a list")
			continue
		}
		kind := "task"
		if sec.key == "handlers" {
			kind = "handler"
		}
		*sec.dst = b.tasks(a.Node, kind)
	}
	return p
}

func (b *builder) tasks(seq *yaml.Node, kind string) []*ir.Task {
	out := make([]*ir.Task, 0, len(seq.Content))
	for _, raw := range seq.Content {
		item := ir.Resolve(raw)
		if item == nil || item.Kind != yaml.MappingNode {
			b.warn(raw.Line, kind+" must be a mapping")
			continue
		}
		if b.onPath[item] {
			b.diag(raw.Line, recursiveAlias)
			continue
		}
		out = append(out, b.task(item, kind))
	}
	return out
}

func (b *builder) task(n *yaml.Node, kind string) *ir.Task {
	b.onPath[n] = true
	defer delete(b.onPath, n)
	t := &ir.Task{Line: n.Line, Attrs: b.attrs(n)}
	for _, sec := range []struct {
		key string
		dst *[]*ir.Task
	}{
		{"block", &t.Block},
		{"rescue", &t.Rescue},
		{"always", &t.Always},
	} {
		a, ok := t.Attrs.Get(sec.key)
		if !ok || a.IsNull() {
			continue
		}
		if !a.IsSeq() {
			b.warn(a.Line, sec.key+" must be a list")
			continue
		}
		*sec.dst = b.tasks(a.Node, kind)
	}
	return t
}

func hasPlayItem(seq *yaml.Node) bool {
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		attrs := ir.MappingAttrs(item)
		for _, k := range playKeys {
			if attrs.Has(k) {
				return true
			}
		}
	}
	return false
}

func docRoot(doc *yaml.Node) *yaml.Node {
	if doc == nil {
		return nil
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	return doc
}

func decodeAll(content []byte) ([]*yaml.Node, *ir.ParseError) {
	content = stripBOM(content)
	dec := yaml.NewDecoder(bytes.NewReader(content))
	var docs []*yaml.Node
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return docs, toParseError(err)
		}
		docs = append(docs, &n)
	}
}

func toParseError(err error) *ir.ParseError {
	msg := strings.TrimSpace(err.Error())
	if m := errLineRe.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return &ir.ParseError{Line: line, Message: m[2]}
	}
	msg = strings.TrimPrefix(msg, "yaml: ")
	if msg == "" {
		msg = "invalid YAML"
	}
	return &ir.ParseError{Line: 1, Message: msg}
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

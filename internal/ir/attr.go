package ir

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Attr is one raw key/value pair of a play, task or metadata mapping.
// Sequence items are Attrs with an empty Key.
type Attr struct {
	Key  string
	Line int
	Node *yaml.Node
}

// Attrs keeps mapping entries in source order.
type Attrs []Attr

func (as Attrs) Get(key string) (Attr, bool) {
	for _, a := range as {
		if a.Key == key {
			return a, true
		}
	}
	return Attr{}, false
}

func (as Attrs) Has(key string) bool {
	_, ok := as.Get(key)
	return ok
}

func (as Attrs) Keys() []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.Key)
	}
	return out
}

// Index returns the position of key or -1.
func (as Attrs) Index(key string) int {
	for i, a := range as {
		if a.Key == key {
			return i
		}
	}
	return -1
}

func (a Attr) node() *yaml.Node { return Resolve(a.Node) }

func (a Attr) IsScalar() bool {
	n := a.node()
	return n != nil && n.Kind == yaml.ScalarNode
}

func (a Attr) IsMap() bool {
	n := a.node()
	return n != nil && n.Kind == yaml.MappingNode
}

func (a Attr) IsSeq() bool {
	n := a.node()
	return n != nil && n.Kind == yaml.SequenceNode
}

// IsNull reports a missing value or an explicit null.
func (a Attr) IsNull() bool {
	n := a.node()
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// String returns the raw scalar text, or "" for non-scalars and nulls.
func (a Attr) String() string {
	if !a.IsScalar() || a.IsNull() {
		return ""
	}
	return a.node().Value
}

// Tag returns the resolved YAML tag (e.g. "!!int", "!!str", "!vault").
func (a Attr) Tag() string {
	if n := a.node(); n != nil {
		return n.Tag
	}
	return ""
}

// Quoted reports whether a scalar was written with quotes.
func (a Attr) Quoted() bool {
	n := a.node()
	return n != nil && n.Kind == yaml.ScalarNode &&
		(n.Style&yaml.DoubleQuotedStyle != 0 || n.Style&yaml.SingleQuotedStyle != 0)
}

// Bool interprets the scalar the way Ansible does for boolean keywords.
func (a Attr) Bool() (v bool, ok bool) {
	if !a.IsScalar() {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(a.node().Value)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

// IsTrue is Bool without the ok flag.
func (a Attr) IsTrue() bool {
	v, ok := a.Bool()
	return ok && v
}

// Int parses an integer scalar.
func (a Attr) Int() (int, bool) {
	if !a.IsScalar() {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(a.node().Value))
	return n, err == nil
}

// Map returns the entries of a mapping value.
func (a Attr) Map() Attrs {
	n := a.node()
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	return MappingAttrs(n)
}

// Seq returns the items of a sequence value.
func (a Attr) Seq() []Attr {
	n := a.node()
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]Attr, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, Attr{Line: c.Line, Node: c})
	}
	return out
}

// Strings returns a scalar as a one-element list, a sequence of scalars as
// its items, and nil otherwise. Used for tags, notify and similar keys.
func (a Attr) Strings() []string {
	switch {
	case a.IsScalar() && !a.IsNull():
		return []string{a.String()}
	case a.IsSeq():
		var out []string
		for _, it := range a.Seq() {
			if it.IsScalar() && !it.IsNull() {
				out = append(out, it.String())
			}
		}
		return out
	}
	return nil
}

// Scalars returns every scalar reachable from the value, depth-first. An
// alias that points back into its own ancestors is not followed.
func (a Attr) Scalars() []Attr {
	var out []Attr
	onPath := map[*yaml.Node]bool{}
	var walk func(key string, n *yaml.Node)
	walk = func(key string, n *yaml.Node) {
		n = Resolve(n)
		if n == nil || onPath[n] {
			return
		}
		switch n.Kind {
		case yaml.ScalarNode:
			out = append(out, Attr{Key: key, Line: n.Line, Node: n})
			return
		case yaml.SequenceNode, yaml.MappingNode:
		default:
			return
		}
		onPath[n] = true
		defer delete(onPath, n)
		if n.Kind == yaml.SequenceNode {
			for _, c := range n.Content {
				walk(key, c)
			}
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			walk(n.Content[i].Value, n.Content[i+1])
		}
	}
	walk(a.Key, a.Node)
	return out
}

// Resolve follows aliases to the anchored node. It returns nil for a nil node
// or a dangling alias.
func Resolve(n *yaml.Node) *yaml.Node {
	for i := 0; n != nil && n.Kind == yaml.AliasNode; i++ {
		if i > maxAliasChain {
			return nil
		}
		n = n.Alias
	}
	return n
}

const maxAliasChain = 64

// MappingAttrs converts a mapping node into ordered Attrs. Non-scalar keys are
// skipped. Merge keys (<<) are expanded in place; a merge that would include
// a mapping already being expanded is dropped.
func MappingAttrs(n *yaml.Node) Attrs {
	out, _ := MappingAttrsChecked(n)
	return out
}

// MappingAttrsChecked is MappingAttrs that also reports whether a recursive
// merge was dropped.
func MappingAttrsChecked(n *yaml.Node) (Attrs, bool) {
	onPath := map[*yaml.Node]bool{}
	var recursive bool
	var expand func(n *yaml.Node) Attrs
	expand = func(n *yaml.Node) Attrs {
		onPath[n] = true
		defer delete(onPath, n)
		out := make(Attrs, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				continue
			}
			if k.Value == "<<" && k.Tag == "!!merge" {
				for _, target := range mergeTargets(v) {
					if onPath[target] {
						recursive = true
						continue
					}
					out = append(out, expand(target)...)
				}
				continue
			}
			out = append(out, Attr{Key: k.Value, Line: k.Line, Node: v})
		}
		return out
	}
	return expand(n), recursive
}

// mergeTargets returns the mappings named by a merge value: one mapping or a
// sequence of them.
func mergeTargets(v *yaml.Node) []*yaml.Node {
	v = Resolve(v)
	if v == nil {
		return nil
	}
	if v.Kind == yaml.MappingNode {
		return []*yaml.Node{v}
	}
	var out []*yaml.Node
	if v.Kind == yaml.SequenceNode {
		for _, c := range v.Content {
			if c = Resolve(c); c != nil && c.Kind == yaml.MappingNode {
				out = append(out, c)
			}
		}
	}
	return out
}

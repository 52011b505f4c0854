// Package catalog maps rule keys to their metadata and quality profiles.
// A Catalog is built once at startup from the static tables and the
// registered checks and is read-only afterwards.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/qualimetry/qansible/internal/rules"
)

// Repository is the rule repository key used to form host rule identifiers.
const Repository = "qualimetry-ansible"

// ErrUnknownProfile is returned for a profile name that was never defined.
var ErrUnknownProfile = errors.New("unknown quality profile")

type Metadata struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Tags        []string `json:"tags"`
	Type        RuleType `json:"type"`
	Description string   `json:"description,omitempty"`
}

// Entry supplies metadata for a check that has no static table entry, such
// as one loaded from a rule pack. Empty strings and nil tags take the
// fallbacks; Severity is always applied. The rule is appended to each named
// profile, which must exist once every profile is defined.
type Entry struct {
	Key         string
	Name        string
	Severity    Severity
	Type        RuleType
	Tags        []string
	Description string
	Profiles    []string
}

type Catalog struct {
	rules    map[string]Metadata
	keys     []string
	profiles map[string][]string
	names    []string
}

type tables struct {
	names      map[string]string
	severities map[string]Severity
	tags       map[string][]string
	types      map[string]RuleType
	profiles   []Profile
}

func staticTables() tables {
	return tables{
		names:      ruleNames,
		severities: ruleSeverities,
		tags:       ruleTags,
		types:      ruleTypes,
		profiles:   builtinProfiles(),
	}
}

type buildConfig struct {
	entries  []Entry
	profiles []Profile
}

type Option func(*buildConfig)

// WithRule adds metadata for a registered check.
func WithRule(e Entry) Option {
	return func(b *buildConfig) { b.entries = append(b.entries, e) }
}

// WithProfile defines an extra named profile.
func WithProfile(name string, keys []string) Option {
	return func(b *buildConfig) {
		b.profiles = append(b.profiles, Profile{Name: name, Keys: append([]string(nil), keys...)})
	}
}

// Build validates the static tables against checks and returns the catalog.
// Every table, profile or option entry naming an unregistered key is an
// error; all of them are reported together.
func Build(checks []rules.Check, opts ...Option) (*Catalog, error) {
	return build(checks, staticTables(), opts...)
}

func build(checks []rules.Check, t tables, opts ...Option) (*Catalog, error) {
	var cfg buildConfig
	for _, o := range opts {
		o(&cfg)
	}

	registered := make(map[string]rules.Check, len(checks))
	for _, c := range checks {
		registered[c.Key] = c
	}

	var errs []error
	unregistered := func(what, key string) {
		if _, ok := registered[key]; !ok {
			errs = append(errs, fmt.Errorf("%s entry for unregistered rule %q", what, key))
		}
	}
	for _, k := range sortedKeys(t.names) {
		unregistered("name", k)
	}
	for _, k := range sortedKeys(t.severities) {
		unregistered("severity", k)
	}
	for _, k := range sortedKeys(t.tags) {
		unregistered("tag", k)
	}
	for _, k := range sortedKeys(t.types) {
		unregistered("type", k)
	}
	for _, e := range cfg.entries {
		unregistered("rule option", e.Key)
	}

	cat := &Catalog{
		rules:    make(map[string]Metadata, len(registered)),
		profiles: map[string][]string{},
	}
	for key, c := range registered {
		md := Fallback(key)
		if n, ok := t.names[key]; ok {
			md.Name = n
		}
		if s, ok := t.severities[key]; ok {
			md.Severity = s
		}
		if tg, ok := t.tags[key]; ok {
			md.Tags = append([]string(nil), tg...)
		}
		if ty, ok := t.types[key]; ok {
			md.Type = ty
		}
		md.Description = c.Summary
		cat.rules[key] = md
		cat.keys = append(cat.keys, key)
	}
	sort.Strings(cat.keys)

	for _, e := range cfg.entries {
		md, ok := cat.rules[e.Key]
		if !ok {
			continue
		}
		if e.Name != "" {
			md.Name = e.Name
		}
		md.Severity = e.Severity
		if e.Type != "" {
			md.Type = e.Type
		}
		if len(e.Tags) > 0 {
			md.Tags = append([]string(nil), e.Tags...)
		}
		if e.Description != "" {
			md.Description = e.Description
		}
		cat.rules[e.Key] = md
	}

	for _, p := range append(append([]Profile(nil), t.profiles...), cfg.profiles...) {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			errs = append(errs, errors.New("profile with empty name"))
			continue
		}
		if _, dup := cat.profiles[name]; dup {
			errs = append(errs, fmt.Errorf("profile %q defined twice", name))
			continue
		}
		seen := map[string]bool{}
		keys := make([]string, 0, len(p.Keys))
		for _, k := range p.Keys {
			unregistered(fmt.Sprintf("profile %q", name), k)
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
		cat.profiles[name] = keys
		cat.names = append(cat.names, name)
	}

	for _, e := range cfg.entries {
		if _, ok := cat.rules[e.Key]; !ok {
			continue
		}
		for _, name := range e.Profiles {
			keys, ok := cat.profiles[name]
			if !ok {
				errs = append(errs, fmt.Errorf("rule %q: %w: %q", e.Key, ErrUnknownProfile, name))
				continue
			}
			if !slices.Contains(keys, e.Key) {
				cat.profiles[name] = append(keys, e.Key)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("build rule catalog: %w", err)
	}
	return cat, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fallback returns the metadata used for a key with no table entries.
func Fallback(key string) Metadata {
	return Metadata{
		Key:      key,
		Name:     DisplayName(key),
		Severity: Minor,
		Type:     CodeSmell,
		Tags:     []string{"ansible"},
	}
}

// DisplayName turns a kebab-case key into Title Case words
// ("qa-task-has-name" -> "Qa Task Has Name").
func DisplayName(key string) string {
	parts := strings.Split(key, "-")
	words := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		words = append(words, string(unicode.ToUpper(r))+p[size:])
	}
	return strings.Join(words, " ")
}

// MetadataFor never fails: unknown keys get Fallback metadata.
func (c *Catalog) MetadataFor(key string) Metadata {
	md, ok := c.rules[key]
	if !ok {
		return Fallback(key)
	}
	md.Tags = append([]string(nil), md.Tags...)
	return md
}

// Known reports whether key belongs to a registered check.
func (c *Catalog) Known(key string) bool {
	_, ok := c.rules[key]
	return ok
}

// Rules returns the metadata of every registered check, sorted by key.
func (c *Catalog) Rules() []Metadata {
	out := make([]Metadata, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.MetadataFor(k))
	}
	return out
}

// RuleID returns the host rule identifier for key.
func (c *Catalog) RuleID(key string) string { return Repository + ":" + key }

// Repository returns the rule repository key.
func (c *Catalog) Repository() string { return Repository }

// ActiveRuleKeys returns the keys of a profile in definition order.
func (c *Catalog) ActiveRuleKeys(profile string) ([]string, error) {
	keys, ok := c.profiles[profile]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	return append([]string(nil), keys...), nil
}

// Profiles returns the profile names in definition order.
func (c *Catalog) Profiles() []string { return append([]string(nil), c.names...) }

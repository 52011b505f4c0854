package rules

import (
	"fmt"
	"sort"
	"strings"
)

var (
	registry  []Check
	ruleIndex = map[string]int{} // key -> index
)

// Register adds a check to the process-wide registry. It is meant to be called
// from init functions and from rule pack loading, before the catalog is
// built; a missing or duplicate key is a programming error.
func Register(c Check) {
	key := strings.TrimSpace(c.Key)
	if key == "" {
		panic("rules: register check with empty key")
	}
	if _, dup := ruleIndex[key]; dup {
		panic(fmt.Sprintf("rules: duplicate check key %q", key))
	}
	c.Key = key
	registry = append(registry, c)
	ruleIndex[key] = len(registry) - 1
}

// All returns every registered check sorted by key.
func All() []Check {
	out := make([]Check, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Keys returns every registered key, sorted.
func Keys() []string {
	out := make([]string, 0, len(registry))
	for _, c := range registry {
		out = append(out, c.Key)
	}
	sort.Strings(out)
	return out
}

// Get returns a check by key if registered.
func Get(key string) (Check, bool) {
	idx, ok := ruleIndex[strings.TrimSpace(key)]
	if !ok || idx < 0 || idx >= len(registry) {
		return Check{}, false
	}
	return registry[idx], true
}

// Select returns the registered checks for keys, in key order. Unknown keys
// are returned separately.
func Select(keys []string) (checks []Check, unknown []string) {
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		c, ok := Get(k)
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		checks = append(checks, c)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].Key < checks[j].Key })
	return checks, unknown
}

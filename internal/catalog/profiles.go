package catalog

import "sort"

const (
	// DefaultProfile is the broad profile used when none is configured.
	DefaultProfile = "Qualimetry Ansible"
	// WayProfile is the stricter curated subset.
	WayProfile = "Qualimetry Way"
)

// strictRules are left out of the default profile.
var strictRules = map[string]bool{
	"qa-builtin-modules-only": true,
	"qa-command-args-form":    true,
	"qa-explicit-owner-group": true,
	"qa-become-non-root-user": true,
	"qa-pin-package-version":  true,
}

var wayRules = []string{
	"qa-absolute-or-role-paths",
	"qa-bare-var-in-condition",
	"qa-become-non-root-user",
	"qa-become-with-user",
	"qa-builtin-modules-only",
	"qa-command-args-form",
	"qa-command-changed-when",
	"qa-delegate-to-localhost",
	"qa-diagnostic-warning",
	"qa-explicit-error-handling",
	"qa-explicit-owner-group",
	"qa-file-ends-newline",
	"qa-full-module-name",
	"qa-handler-for-notify",
	"qa-handler-has-name",
	"qa-includes-resolve",
	"qa-no-log-secrets",
	"qa-no-vars-prompt",
	"qa-numeric-file-mode",
	"qa-pin-package-version",
	"qa-pin-version-not-latest",
	"qa-play-has-tags",
	"qa-replace-deprecated-module",
	"qa-replace-deprecated-param",
	"qa-require-https",
	"qa-restrict-file-mode",
	"qa-restrict-world-write",
	"qa-role-meta-format",
	"qa-safe-file-read",
	"qa-secrets-in-vault",
	"qa-secrets-not-in-vars",
	"qa-shell-pipe-safe",
	"qa-spaces-not-tabs",
	"qa-strip-trailing-whitespace",
	"qa-sudo-nopasswd-limit",
	"qa-task-has-name",
	"qa-task-name-first",
	"qa-use-module-not-command",
	"qa-valid-yaml",
	"qa-variable-name-format",
	"qa-when-bare-variable",
	"qa-yaml-parse-error",
}

// Profile is a named activation set of rule keys.
type Profile struct {
	Name string
	Keys []string
}

// builtinProfiles returns the two shipped profiles. The default profile
// holds every rule of the name table except the strict ones.
func builtinProfiles() []Profile {
	var def []string
	for k := range ruleNames {
		if !strictRules[k] {
			def = append(def, k)
		}
	}
	sort.Strings(def)
	way := make([]string, len(wayRules))
	copy(way, wayRules)
	return []Profile{
		{Name: DefaultProfile, Keys: def},
		{Name: WayProfile, Keys: way},
	}
}

package catalog

var ruleNames = map[string]string{
	"qa-explicit-mode-owner":             "Avoid implicit file mode or ownership",
	"qa-become-non-root-user":            "Become user must not be root",
	"qa-block-task-limit":                "Limit number of tasks in block",
	"qa-use-module-not-command":          "Use Ansible module instead of command",
	"qa-command-not-shell-when-possible": "Prefer shell module over command for shell features",
	"qa-limit-task-attributes":           "Reduce task or playbook complexity",
	"qa-even-spaces-indent":              "Use consistent indentation",
	"qa-bare-var-in-condition":           "Use bare variable in when/loop not {{ var }}",
	"qa-delegate-to-localhost":           "Use delegate_to localhost instead of local_action",
	"qa-replace-deprecated-module":       "Avoid deprecated module usage",
	"qa-replace-deprecated-param":        "Avoid deprecated module parameters",
	"qa-check-length-not-empty":          "Prefer length or presence over empty string compare",
	"qa-fact-name-format":                "Follow fact naming conventions",
	"qa-yml-extension":                   "Follow file naming conventions",
	"qa-full-module-name":                "Use fully qualified collection names",
	"qa-role-galaxy-deps":                "Fix Galaxy metadata or dependencies",
	"qa-handler-has-name":                "Follow handler naming conventions",
	"qa-env-block-not-inline":            "Avoid inline environment variables",
	"qa-import-versus-include":           "Prefer import_tasks over include_tasks when appropriate",
	"qa-explicit-error-handling":         "Avoid ignore_errors for control flow",
	"qa-jinja-format":                    "Fix Jinja2 template usage",
	"qa-task-name-first":                 "Task name before module key",
	"qa-pin-version-not-latest":          "Avoid unversioned latest in package installs",
	"qa-max-line-length":                 "Limit line length",
	"qa-avoid-literal-bool-compare":      `Prefer when: var over when: var == "yes"`,
	"qa-includes-resolve":                "Fix role or playbook load failure",
	"qa-prefix-loop-var":                 "Prefix loop variable names",
	"qa-role-meta-format":                "Fix meta/main.yml content",
	"qa-role-meta-tags":                  "Add tags to meta/main.yml",
	"qa-role-meta-runtime":               "Fix meta runtime configuration",
	"qa-role-meta-video-links":           "Remove or fix meta video links",
	"qa-limit-plays":                     "Limit number of plays per playbook",
	"qa-limit-tasks-per-play":            "Limit number of tasks per play",
	"qa-task-has-name":                   "Task must have a name",
	"qa-file-ends-newline":               "End file with newline",
	"qa-command-changed-when":            "Avoid changed_when with only static values",
	"qa-unique-tasks":                    "Remove duplicate task definitions",
	"qa-command-args-form":               "Avoid free-form command or shell",
	"qa-handler-for-notify":              "Define handler when notified",
	"qa-require-https":                   "Use HTTPS instead of HTTP",
	"qa-when-bare-variable":              "Use bare variable in when not {{ var }}",
	"qa-no-log-secrets":                  "Do not log sensitive data",
	"qa-absolute-or-role-paths":          "Avoid relative paths in critical arguments",
	"qa-explicit-owner-group":            "Set owner and group explicitly",
	"qa-secrets-not-in-vars":             "Do not store secrets in plain vars",
	"qa-spaces-not-tabs":                 "Disallow tab characters",
	"qa-strip-trailing-whitespace":       "Remove trailing whitespace",
	"qa-safe-file-read":                  "Avoid unsafe read of file contents",
	"qa-restrict-world-write":            "Avoid world-writable permissions",
	"qa-no-vars-prompt":                  "Avoid prompting for input",
	"qa-builtin-modules-only":            "Restrict to ansible.builtin modules",
	"qa-pin-package-version":             "Pin package versions instead of latest",
	"qa-yaml-parse-error":                "Fix parser error",
	"qa-become-with-user":                "Apply become consistently",
	"qa-playbook-yml-extension":          "Use .yml or .yaml for playbooks",
	"qa-group-tasks-in-block":            "Prefer block for grouping tasks",
	"qa-play-has-tags":                   "Include required tags",
	"qa-sudo-nopasswd-limit":             "Restrict sudo NOPASSWD usage",
	"qa-restrict-file-mode":              "Avoid risky file permissions",
	"qa-numeric-file-mode":               "Avoid risky octal modes",
	"qa-shell-pipe-safe":                 "Avoid risky shell piping",
	"qa-role-name-format":                "Follow role naming conventions",
	"qa-run-once-documented":             "Use run_once with care",
	"qa-task-name-min-chars":             "Use sufficiently long task names",
	"qa-variable-name-format":            "Follow variable naming conventions",
	"qa-valid-yaml":                      "Valid YAML structure required",
	"qa-diagnostic-warning":              "Address analyzer warning",
	"qa-role-defaults-dir":               "Use defaults/ not vars/ for role defaults",
	"qa-role-dir-layout":                 "Follow role directory structure",
	"qa-secrets-in-vault":                "Use vault for secrets",
}

// ruleSeverities: rules not listed here are MINOR.
var ruleSeverities = map[string]Severity{
	"qa-no-log-secrets":                  Blocker,
	"qa-secrets-not-in-vars":             Blocker,
	"qa-require-https":                   Critical,
	"qa-safe-file-read":                  Critical,
	"qa-restrict-world-write":            Critical,
	"qa-become-non-root-user":            Critical,
	"qa-restrict-file-mode":              Critical,
	"qa-numeric-file-mode":               Critical,
	"qa-shell-pipe-safe":                 Critical,
	"qa-sudo-nopasswd-limit":             Critical,
	"qa-no-vars-prompt":                  Critical,
	"qa-secrets-in-vault":                Critical,
	"qa-valid-yaml":                      Major,
	"qa-yaml-parse-error":                Major,
	"qa-explicit-error-handling":         Major,
	"qa-command-changed-when":            Major,
	"qa-includes-resolve":                Major,
	"qa-replace-deprecated-module":       Major,
	"qa-handler-for-notify":              Major,
	"qa-absolute-or-role-paths":          Major,
	"qa-command-args-form":               Major,
	"qa-explicit-owner-group":            Major,
	"qa-use-module-not-command":          Major,
	"qa-become-with-user":                Major,
	"qa-replace-deprecated-param":        Major,
	"qa-delegate-to-localhost":           Major,
	"qa-task-name-first":                 Minor,
	"qa-task-has-name":                   Minor,
	"qa-even-spaces-indent":              Minor,
	"qa-playbook-yml-extension":          Minor,
	"qa-full-module-name":                Minor,
	"qa-command-not-shell-when-possible": Minor,
	"qa-bare-var-in-condition":           Minor,
	"qa-when-bare-variable":              Minor,
	"qa-prefix-loop-var":                 Minor,
	"qa-avoid-literal-bool-compare":      Minor,
	"qa-limit-tasks-per-play":            Minor,
	"qa-limit-plays":                     Minor,
	"qa-unique-tasks":                    Minor,
	"qa-play-has-tags":                   Minor,
	"qa-variable-name-format":            Minor,
	"qa-handler-has-name":                Minor,
	"qa-role-name-format":                Minor,
	"qa-import-versus-include":           Minor,
	"qa-limit-task-attributes":           Minor,
	"qa-check-length-not-empty":          Minor,
	"qa-group-tasks-in-block":            Minor,
	"qa-jinja-format":                    Minor,
	"qa-explicit-mode-owner":             Minor,
	"qa-block-task-limit":                Minor,
	"qa-pin-version-not-latest":          Minor,
	"qa-pin-package-version":             Minor,
	"qa-yml-extension":                   Minor,
	"qa-fact-name-format":                Minor,
	"qa-env-block-not-inline":            Minor,
	"qa-builtin-modules-only":            Minor,
	"qa-run-once-documented":             Minor,
	"qa-role-dir-layout":                 Minor,
	"qa-role-defaults-dir":               Minor,
	"qa-spaces-not-tabs":                 Info,
	"qa-file-ends-newline":               Info,
	"qa-strip-trailing-whitespace":       Info,
	"qa-max-line-length":                 Info,
	"qa-task-name-min-chars":             Info,
	"qa-role-meta-format":                Info,
	"qa-role-meta-tags":                  Info,
	"qa-role-meta-runtime":               Info,
	"qa-role-meta-video-links":           Info,
	"qa-role-galaxy-deps":                Info,
	"qa-diagnostic-warning":              Info,
}

var securityRules = []string{
	"qa-no-log-secrets", "qa-secrets-not-in-vars", "qa-require-https",
	"qa-safe-file-read", "qa-restrict-world-write", "qa-become-non-root-user", "qa-restrict-file-mode",
	"qa-numeric-file-mode", "qa-shell-pipe-safe", "qa-sudo-nopasswd-limit", "qa-no-vars-prompt",
	"qa-command-args-form", "qa-use-module-not-command", "qa-become-with-user", "qa-explicit-owner-group",
	"qa-absolute-or-role-paths", "qa-secrets-in-vault",
}

var conventionRules = []string{
	"qa-spaces-not-tabs", "qa-strip-trailing-whitespace", "qa-even-spaces-indent", "qa-file-ends-newline",
	"qa-max-line-length", "qa-task-name-first", "qa-task-has-name", "qa-task-name-min-chars",
	"qa-variable-name-format", "qa-handler-has-name", "qa-role-name-format", "qa-fact-name-format",
	"qa-yml-extension", "qa-playbook-yml-extension", "qa-valid-yaml",
}

var bugRules = []string{
	"qa-valid-yaml", "qa-yaml-parse-error", "qa-includes-resolve", "qa-handler-for-notify",
	"qa-explicit-error-handling", "qa-command-changed-when",
}

// ruleTags and ruleTypes are derived from the lists above.
var (
	ruleTags  = map[string][]string{}
	ruleTypes = map[string]RuleType{}
)

func init() {
	for _, k := range securityRules {
		ruleTags[k] = []string{"ansible", "security", "cwe"}
		ruleTypes[k] = Vulnerability
	}
	for _, k := range conventionRules {
		ruleTags[k] = []string{"ansible", "convention"}
	}
	for _, k := range bugRules {
		ruleTypes[k] = Bug
	}
}

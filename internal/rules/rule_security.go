package rules

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(taskHooks(Check{
		Key:     "qa-no-log-secrets",
		Summary: "Tasks that pass secrets should set no_log so values do not reach the output.",
	}, checkNoLog))
	Register(taskHooks(Check{
		Key:     "qa-secrets-in-vault",
		Summary: "Secret module arguments come from Ansible Vault or a variable, not a literal.",
	}, checkLiteralSecretArgs))
	Register(Check{
		Key:     "qa-secrets-not-in-vars",
		Summary: "Secrets in plain text vars end up in version control; use Ansible Vault.",
		Play:    func(c *Context, p *ir.Play) { reportPlainSecrets(c, p.Attrs) },
		Block:   func(c *Context, b *ir.Task, _ Scope) { reportPlainSecrets(c, b.Attrs) },
		Task:    func(c *Context, t *ir.Task, _ Scope) { reportPlainSecrets(c, t.Attrs) },
	})
	Register(taskHooks(Check{
		Key:     "qa-require-https",
		Summary: "Plain HTTP downloads can be tampered with in transit.",
	}, checkPlainHTTP))
	Register(taskHooks(Check{
		Key:     "qa-safe-file-read",
		Summary: "Reading credential files into variables exposes them.",
	}, checkSensitiveRead))
	Register(taskHooks(Check{
		Key:     "qa-restrict-world-write",
		Summary: "World-writable files can be modified by any local user.",
	}, checkWorldWrite))
	Register(taskHooks(Check{
		Key:     "qa-restrict-file-mode",
		Summary: "setuid and setgid bits grant elevated privileges.",
	}, checkSetID))
	Register(taskHooks(Check{
		Key:     "qa-numeric-file-mode",
		Summary: "Unquoted modes without a leading zero are read as decimal numbers.",
	}, checkNumericMode))
	Register(taskHooks(Check{
		Key:     "qa-explicit-mode-owner",
		Summary: "Files created without an explicit mode get permissions from the umask.",
	}, checkExplicitMode))
	Register(taskHooks(Check{
		Key:     "qa-explicit-owner-group",
		Summary: "Created files should name their owner and group.",
	}, checkExplicitOwner))
	Register(Check{
		Key:     "qa-become-non-root-user",
		Summary: "Become an unprivileged service user rather than root where possible.",
		Play:    func(c *Context, p *ir.Play) { reportRootBecome(c, p.Attrs) },
		Task:    func(c *Context, t *ir.Task, _ Scope) { reportRootBecome(c, t.Attrs) },
		Handler: func(c *Context, t *ir.Task, _ Scope) { reportRootBecome(c, t.Attrs) },
		Block:   func(c *Context, b *ir.Task, _ Scope) { reportRootBecome(c, b.Attrs) },
	})
	Register(Check{
		Key:     "qa-become-with-user",
		Summary: "become_user has no effect unless become is enabled.",
		Play:    checkPlayBecomeUser,
		Task:    checkBecomeUser,
		Handler: checkBecomeUser,
		Block:   checkBecomeUser,
	})
	Register(taskHooks(Check{
		Key:     "qa-sudo-nopasswd-limit",
		Summary: "NOPASSWD: ALL grants passwordless root to the user.",
	}, checkNopasswd))
	Register(taskHooks(Check{
		Key:     "qa-absolute-or-role-paths",
		Summary: "Paths that climb out of the role with ../ break when the role moves.",
	}, checkClimbingPaths))
	Register(taskHooks(Check{
		Key:     "qa-pin-package-version",
		Summary: "Language package installs pin a version for reproducible builds.",
	}, checkPinnedPackage))
	Register(taskHooks(Check{
		Key:     "qa-pin-version-not-latest",
		Summary: "state: latest upgrades packages unpredictably.",
	}, checkLatest))
}

func checkNoLog(c *Context, t *ir.Task, s Scope) {
	if nl, ok := effective(t, s, "no_log"); ok && nl.IsTrue() {
		return
	}
	m, ok := t.Module()
	if !ok {
		return
	}
	for _, args := range []ir.Attrs{m.Map(), argsMap(t)} {
		for _, a := range args {
			if secretKeyRe.MatchString(a.Key) && !a.IsNull() && !isFlagValue(a) {
				c.Report(a.Line, "Set no_log: true on tasks that pass %q.", a.Key)
				return
			}
		}
	}
}

func checkLiteralSecretArgs(c *Context, t *ir.Task, _ Scope) {
	m, ok := t.Module()
	if !ok {
		return
	}
	for _, args := range []ir.Attrs{m.Map(), argsMap(t)} {
		for _, a := range args {
			if !secretKeyRe.MatchString(a.Key) || !a.IsScalar() || a.IsNull() || isFlagValue(a) {
				continue
			}
			v := strings.TrimSpace(a.String())
			if a.Tag() == "!vault" || v == "" || hasJinja(v) {
				continue
			}
			c.Report(a.Line, "Pass %q from Ansible Vault or a vaulted variable instead of a literal.", a.Key)
		}
	}
}

// isFlagValue reports boolean-only arguments like update_password: always.
func isFlagValue(a ir.Attr) bool {
	if _, ok := a.Bool(); ok {
		return true
	}
	switch a.String() {
	case "always", "on_create":
		return true
	}
	return false
}

func argsMap(t *ir.Task) ir.Attrs {
	if a, ok := t.Attrs.Get("args"); ok {
		return a.Map()
	}
	return nil
}

func reportPlainSecrets(c *Context, as ir.Attrs) {
	vars, ok := as.Get("vars")
	if !ok {
		return
	}
	for _, v := range vars.Map() {
		if !secretKeyRe.MatchString(v.Key) || !v.IsScalar() || v.IsNull() {
			continue
		}
		if v.Tag() == "!vault" || hasJinja(v.String()) || strings.TrimSpace(v.String()) == "" {
			continue
		}
		c.Report(v.Line, "Do not store %q in plain text; use Ansible Vault or a lookup.", v.Key)
	}
}

func checkPlainHTTP(c *Context, t *ir.Task, _ Scope) {
	for _, a := range t.Attrs {
		if a.Key == "name" {
			continue
		}
		for _, s := range a.Scalars() {
			raw := strings.TrimSpace(s.String())
			if !strings.HasPrefix(raw, "http://") {
				continue
			}
			u, err := url.Parse(raw)
			if err == nil && isLoopback(u.Hostname()) {
				continue
			}
			c.Report(s.Line, "Use HTTPS instead of HTTP for %s.", raw)
		}
	}
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

var (
	fileLookupRe  = regexp.MustCompile(`(?:lookup|query)\(\s*['"]file['"]\s*,\s*['"]([^'"]+)['"]`)
	sensitivePath = regexp.MustCompile(`^/etc/(shadow|gshadow|sudoers)|/\.ssh/|id_(rsa|dsa|ecdsa|ed25519)$|\.(pem|key|p12)$`)
)

func checkSensitiveRead(c *Context, t *ir.Task, _ Scope) {
	if isModule(t, "slurp") {
		if src, ok := t.Arg("src"); ok && sensitivePath.MatchString(src.String()) {
			c.Report(src.Line, "Avoid reading %s into a variable.", src.String())
			return
		}
	}
	for _, a := range t.Attrs {
		for _, s := range a.Scalars() {
			for _, m := range fileLookupRe.FindAllStringSubmatch(s.String(), -1) {
				if sensitivePath.MatchString(m[1]) {
					c.Report(s.Line, "Avoid reading %s with the file lookup.", m[1])
				}
			}
		}
	}
}

func taskMode(t *ir.Task) (fileMode, int, bool) {
	a, ok := t.Arg("mode")
	if !ok {
		return fileMode{}, 0, false
	}
	m, ok := parseMode(a)
	return m, a.Line, ok
}

func checkWorldWrite(c *Context, t *ir.Task, _ Scope) {
	if m, line, ok := taskMode(t); ok && m.worldWritable() {
		c.Report(line, "Mode %s makes the file world-writable.", m.raw)
	}
}

func checkSetID(c *Context, t *ir.Task, _ Scope) {
	if m, line, ok := taskMode(t); ok && m.setID() {
		c.Report(line, "Mode %s sets the setuid or setgid bit.", m.raw)
	}
}

func checkNumericMode(c *Context, t *ir.Task, _ Scope) {
	if m, line, ok := taskMode(t); ok && m.decimal {
		c.Report(line, "Quote the mode or add a leading zero; %s is read as a decimal number.", m.raw)
	}
}

// creatingModules create or replace files on the target.
var creatingModules = map[string]bool{
	"copy": true, "template": true, "assemble": true, "get_url": true, "file": true,
}

// createsFile reports whether the task creates a file or directory.
func createsFile(t *ir.Task) bool {
	name := t.ModuleName()
	if !creatingModules[name] {
		return false
	}
	if name == "file" {
		st, ok := t.Arg("state")
		return ok && (st.String() == "directory" || st.String() == "touch")
	}
	return true
}

func checkExplicitMode(c *Context, t *ir.Task, _ Scope) {
	if !createsFile(t) {
		return
	}
	if _, ok := t.Arg("mode"); !ok {
		c.Report(t.Line, "Set an explicit mode on files created by %s.", t.ModuleName())
	}
}

func checkExplicitOwner(c *Context, t *ir.Task, _ Scope) {
	if !createsFile(t) {
		return
	}
	_, owner := t.Arg("owner")
	_, group := t.Arg("group")
	if !owner || !group {
		c.Report(t.Line, "Set owner and group on files created by %s.", t.ModuleName())
	}
}

func reportRootBecome(c *Context, as ir.Attrs) {
	if bu, ok := as.Get("become_user"); ok && bu.String() == "root" {
		c.Report(bu.Line, "Become a dedicated unprivileged user instead of root.")
	}
}

func checkPlayBecomeUser(c *Context, p *ir.Play) {
	bu, ok := p.Attrs.Get("become_user")
	if !ok {
		return
	}
	if b, ok := p.Attrs.Get("become"); ok && b.IsTrue() {
		return
	}
	c.Report(bu.Line, "become_user has no effect without become: true.")
}

func checkBecomeUser(c *Context, t *ir.Task, s Scope) {
	bu, ok := t.Attrs.Get("become_user")
	if !ok {
		return
	}
	if b, ok := effective(t, s, "become"); ok {
		if v, ok := b.Bool(); ok && v {
			return
		}
		if hasJinja(b.String()) {
			return
		}
	}
	c.Report(bu.Line, "become_user has no effect without become: true.")
}

var nopasswdRe = regexp.MustCompile(`NOPASSWD:\s*ALL`)

func checkNopasswd(c *Context, t *ir.Task, _ Scope) {
	for _, a := range t.Attrs {
		for _, s := range a.Scalars() {
			if nopasswdRe.MatchString(s.String()) {
				c.Report(s.Line, "Do not grant NOPASSWD: ALL; limit sudo rules to the commands needed.")
			}
		}
	}
}

func checkClimbingPaths(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "copy", "template", "assemble", "unarchive", "script") {
		return
	}
	src, ok := t.Arg("src")
	if !ok {
		return
	}
	if strings.Contains(src.String(), "../") {
		c.Report(src.Line, "Avoid ../ in %q; use the role's files or templates directory or an absolute path.", src.String())
	}
}

var packageModules = map[string]bool{
	"apt": true, "yum": true, "dnf": true, "package": true, "pip": true,
	"npm": true, "gem": true, "zypper": true, "apk": true, "pacman": true,
	"homebrew": true, "snap": true, "win_chocolatey": true,
}

func checkLatest(c *Context, t *ir.Task, _ Scope) {
	if !packageModules[t.ModuleName()] {
		return
	}
	if st, ok := t.Arg("state"); ok && st.String() == "latest" {
		c.Report(st.Line, "Pin a package version instead of using state: latest.")
	}
}

// versionSpecRe matches pip, npm and gem version specifiers in a package name.
var versionSpecRe = regexp.MustCompile(`(==|>=|<=|~=|!=|>|<|@[^/]*$|:)`)

func checkPinnedPackage(c *Context, t *ir.Task, _ Scope) {
	if !isModule(t, "pip", "npm", "gem") {
		return
	}
	if st, ok := t.Arg("state"); ok && st.String() != "present" {
		return
	}
	if _, ok := t.Arg("version"); ok {
		return
	}
	if _, ok := t.Arg("requirements"); ok {
		return
	}
	name, ok := t.Arg("name")
	if !ok {
		return
	}
	for _, pkg := range name.Strings() {
		if hasJinja(pkg) || versionSpecRe.MatchString(pkg) {
			continue
		}
		c.Report(name.Line, "Pin a version for package %q.", pkg)
	}
}

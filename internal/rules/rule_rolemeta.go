package rules

import (
	"regexp"
	"strings"

	"github.com/qualimetry/qansible/internal/ir"
)

func init() {
	Register(Check{
		Key:      "qa-role-meta-format",
		Summary:  "meta/main.yml defines galaxy_info with author, description and license.",
		RoleMeta: checkMetaFormat,
	})
	Register(Check{
		Key:      "qa-role-meta-tags",
		Summary:  "Galaxy tags are lowercase alphanumeric and help users find the role.",
		RoleMeta: checkMetaTags,
	})
	Register(Check{
		Key:      "qa-role-meta-runtime",
		Summary:  "Roles declare the minimum Ansible version they support, as a string.",
		RoleMeta: checkMetaRuntime,
	})
	Register(Check{
		Key:      "qa-role-meta-video-links",
		Summary:  "Video links are mappings with an https url and a title.",
		RoleMeta: checkMetaVideoLinks,
	})
	Register(Check{
		Key:      "qa-role-galaxy-deps",
		Summary:  "Role dependencies name a role and pin a version when sourced externally.",
		RoleMeta: checkMetaDependencies,
	})
	Register(Check{
		Key:      "qa-role-name-format",
		Summary:  "role_name is lowercase with underscores.",
		RoleMeta: checkMetaRoleName,
	})
}

var requiredGalaxyFields = []string{"author", "description", "license"}

func checkMetaFormat(c *Context, m *ir.RoleMeta) {
	if m.ParseError != nil {
		return
	}
	gi, ok := m.GalaxyInfo()
	if !ok {
		c.Report(0, "Define galaxy_info as a mapping in the role metadata.")
		return
	}
	info := gi.Map()
	for _, f := range requiredGalaxyFields {
		if a, ok := info.Get(f); !ok || strings.TrimSpace(a.String()) == "" {
			c.Report(gi.Line, "Add %s to galaxy_info.", f)
		}
	}
}

var galaxyTagRe = regexp.MustCompile(`^[a-z0-9]+$`)

func checkMetaTags(c *Context, m *ir.RoleMeta) {
	gi, ok := m.GalaxyInfo()
	if !ok {
		return
	}
	tags, ok := gi.Map().Get("galaxy_tags")
	if !ok || len(tags.Strings()) == 0 {
		c.Report(gi.Line, "Add galaxy_tags to galaxy_info.")
		return
	}
	for _, it := range tags.Seq() {
		if !galaxyTagRe.MatchString(it.String()) {
			c.Report(it.Line, "Galaxy tag %q must be lowercase letters and digits only.", it.String())
		}
	}
}

func checkMetaRuntime(c *Context, m *ir.RoleMeta) {
	gi, ok := m.GalaxyInfo()
	if !ok {
		return
	}
	v, ok := gi.Map().Get("min_ansible_version")
	if !ok || v.IsNull() {
		c.Report(gi.Line, "Declare min_ansible_version in galaxy_info.")
		return
	}
	if v.Tag() != "!!str" {
		c.Report(v.Line, "Quote min_ansible_version so it is read as a string.")
	}
}

func checkMetaVideoLinks(c *Context, m *ir.RoleMeta) {
	gi, ok := m.GalaxyInfo()
	if !ok {
		return
	}
	links, ok := gi.Map().Get("video_links")
	if !ok {
		return
	}
	if !links.IsSeq() {
		c.Report(links.Line, "video_links must be a list.")
		return
	}
	for _, it := range links.Seq() {
		if !it.IsMap() {
			c.Report(it.Line, "Each video link must be a mapping with url and title.")
			continue
		}
		fields := it.Map()
		u, hasURL := fields.Get("url")
		if !hasURL || !fields.Has("title") {
			c.Report(it.Line, "Each video link must have url and title.")
			continue
		}
		if !strings.HasPrefix(u.String(), "https://") {
			c.Report(u.Line, "Video link %q must use https.", u.String())
		}
	}
}

func checkMetaDependencies(c *Context, m *ir.RoleMeta) {
	deps, ok := m.Attrs.Get("dependencies")
	if !ok || deps.IsNull() {
		return
	}
	if !deps.IsSeq() {
		c.Report(deps.Line, "dependencies must be a list.")
		return
	}
	for _, d := range deps.Seq() {
		switch {
		case d.IsScalar():
			if strings.TrimSpace(d.String()) == "" {
				c.Report(d.Line, "Dependency entries must name a role.")
			}
		case d.IsMap():
			fields := d.Map()
			if !fields.Has("role") && !fields.Has("name") && !fields.Has("src") {
				c.Report(d.Line, "Dependency entries must name a role with role, name or src.")
				continue
			}
			if fields.Has("src") && !fields.Has("version") {
				c.Report(d.Line, "Pin a version for externally sourced dependency.")
			}
		default:
			c.Report(d.Line, "Dependency entries must be a role name or a mapping.")
		}
	}
}

var roleNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func checkMetaRoleName(c *Context, m *ir.RoleMeta) {
	gi, ok := m.GalaxyInfo()
	if !ok {
		return
	}
	if rn, ok := gi.Map().Get("role_name"); ok && !roleNameRe.MatchString(rn.String()) {
		c.Report(rn.Line, "Rename role %q to lowercase letters, digits and underscores.", rn.String())
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/qualimetry/qansible/internal/catalog"
)

// GET /api/v1/rules (no auth needed for read-only)
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	out := s.Catalog.Rules()
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out), "repository": s.Catalog.Repository()})
}

func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !s.Catalog.Known(key) {
		s.err(w, http.StatusNotFound, "unknown rule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rule_id":  s.Catalog.RuleID(key),
		"metadata": s.Catalog.MetadataFor(key),
	})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	type P struct {
		Name  string `json:"name"`
		Rules int    `json:"rules"`
	}
	var out []P
	for _, name := range s.Catalog.Profiles() {
		keys, _ := s.Catalog.ActiveRuleKeys(name)
		out = append(out, P{Name: name, Rules: len(keys)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "default": catalog.DefaultProfile})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	keys, err := s.Catalog.ActiveRuleKeys(name)
	if errors.Is(err, catalog.ErrUnknownProfile) {
		s.err(w, http.StatusNotFound, "unknown profile")
		return
	}
	if err != nil {
		s.err(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "rules": keys})
}

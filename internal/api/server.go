package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qualimetry/qansible/internal/catalog"
	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/storage"
)

// Store is the minimal contract the API needs.
type Store interface {
	ListRuns(limit, offset int) ([]storage.RunRow, error)
	LoadRun(id string) (ir.Run, error)
	LoadLatestRun() (ir.Run, error)
	HasRun(id string) (bool, error)
	ListFindings(runID, minSeverity string) ([]ir.Finding, error)

	ListWaivers(activeOnly bool) ([]storage.Waiver, error)
	CreateWaiver(w storage.Waiver) (int64, error)
	RevokeWaiver(id int64) error
}

// UserStore is the auth/audit contract the API uses.
type UserStore interface {
	GetUserByUsername(string) (storage.User, string, error)
	CreateSession(int64, string, time.Time) error
	GetSession(string) (storage.User, error)
	DeleteSession(string) error
	LogAudit(username, action, resource string, meta map[string]any) error
}

type Server struct {
	DB              Store
	UserStore       UserStore
	Catalog         *catalog.Catalog
	Logger          *slog.Logger
	AllowedOrigins  []string
	SessionDuration time.Duration
}

// DefaultSessionDuration applies when SessionDuration is zero.
const DefaultSessionDuration = 12 * time.Hour

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return withRequestLog(s.logger(), s.Routes())
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	withCORS := s.withCORS

	mux.HandleFunc("GET /api/v1/health", withCORS(s.handleHealth))

	// Auth
	mux.HandleFunc("POST /api/v1/login", withCORS(s.handleLogin))
	mux.HandleFunc("POST /api/v1/logout", withCORS(withAuth(s, s.handleLogout, "auth:logout")))
	mux.HandleFunc("GET /api/v1/me", withCORS(withAuth(s, s.handleMe, "me")))

	// Catalog
	mux.HandleFunc("GET /api/v1/rules", withCORS(s.handleRules))
	mux.HandleFunc("GET /api/v1/rules/{key}", withCORS(s.handleRule))
	mux.HandleFunc("GET /api/v1/profiles", withCORS(s.handleProfiles))
	mux.HandleFunc("GET /api/v1/profiles/{name}", withCORS(s.handleProfile))

	// Runs
	mux.HandleFunc("GET /api/v1/runs", withCORS(s.handleListRuns))
	mux.HandleFunc("GET /api/v1/runs/latest", withCORS(s.handleGetLatest))
	mux.HandleFunc("GET /api/v1/runs/{id}", withCORS(s.handleGetRun))
	mux.HandleFunc("GET /api/v1/runs/{id}/findings", withCORS(s.handleListFindings))

	// Waivers
	mux.HandleFunc("GET /api/v1/waivers", withCORS(s.handleListWaivers))
	mux.HandleFunc("POST /api/v1/waivers", withCORS(withEditor(s, s.handleCreateWaiver, "waivers:create")))
	mux.HandleFunc("POST /api/v1/waivers/{id}/revoke", withCORS(withEditor(s, s.handleRevokeWaiver, "waivers:revoke")))

	mux.HandleFunc("OPTIONS /", withCORS(func(w http.ResponseWriter, r *http.Request) {}))
	mux.HandleFunc("/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		s.err(w, http.StatusNotFound, "not found")
	}))
	return mux
}

func (s *Server) withCORS(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if origin := s.pickCORSOrigin(r); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if origin != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h(w, r)
	}
}

func (s *Server) pickCORSOrigin(r *http.Request) string {
	if len(s.AllowedOrigins) == 0 {
		return ""
	}
	origin := r.Header.Get("Origin")
	for _, ao := range s.AllowedOrigins {
		if ao == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(origin, ao) {
			return origin
		}
	}
	return ""
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := max(parseInt(q.Get("offset"), 0), 0)

	rows, err := s.DB.ListRuns(limit, offset)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	if rows == nil {
		rows = []storage.RunRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadLatestRun()
	if err != nil {
		s.dbErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadRun(r.PathValue("id"))
	if err != nil {
		s.dbErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	floor := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("min_severity")))
	if floor == "" {
		floor = catalog.Info.String()
	}
	if _, err := catalog.ParseSeverity(floor); err != nil {
		s.err(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.DB.HasRun(id)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	if !ok {
		s.err(w, http.StatusNotFound, "run not found")
		return
	}
	items, err := s.DB.ListFindings(id, floor)
	if err != nil {
		s.dbErr(w, err)
		return
	}
	if items == nil {
		items = []ir.Finding{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id, "min_severity": floor, "items": items,
	})
}

// dbErr maps storage errors onto responses; missing rows are 404.
func (s *Server) dbErr(w http.ResponseWriter, err error) {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, storage.ErrNotFound) {
		s.err(w, http.StatusNotFound, "not found")
		return
	}
	s.logger().Error("storage error", "err", err)
	s.err(w, http.StatusInternalServerError, "db error")
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

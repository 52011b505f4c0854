package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/qualimetry/qansible/internal/ir"
)

// ListRuns returns a lightweight list of runs with counts.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, error) {
	const q = `
		SELECT r.id, r.started_at, COALESCE(r.source,''), COALESCE(r.profile,''), COALESCE(r.ir_version,''),
		       (SELECT COUNT(1) FROM findings f WHERE f.run_id = r.id) AS findings
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAt string
		if err := rows.Scan(&rr.ID, &startedAt, &rr.Source, &rr.Profile, &rr.IRVersion, &rr.Findings); err != nil {
			return nil, err
		}
		rr.StartedAt = parseTime(startedAt)
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ListFindings returns findings for a run at or above a minimum severity.
// An empty minimum returns everything.
func (db *DB) ListFindings(runID, minSeverity string) ([]ir.Finding, error) {
	q := `
		SELECT id, file, line, COALESCE(rule_id,''), COALESCE(rule_key,''), COALESCE(name,''),
		       COALESCE(type,''), COALESCE(severity,''), COALESCE(message,'')
		  FROM findings
		 WHERE run_id = ?
		   AND ` + rank("severity") + ` >= ` + rank("?") + `
		 ORDER BY ` + rank("severity") + ` DESC, file, line, rule_key, id`
	if minSeverity == "" {
		minSeverity = "INFO"
	}
	rows, err := db.conn.Query(q, runID, minSeverity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ir.Finding
	for rows.Next() {
		var f ir.Finding
		if err := rows.Scan(&f.ID, &f.File, &f.Line, &f.RuleID, &f.RuleKey, &f.Name, &f.Type, &f.Severity, &f.Message); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// rank orders the five severities; unknown values rank lowest.
func rank(expr string) string {
	return "(CASE " + expr + " WHEN 'BLOCKER' THEN 5 WHEN 'CRITICAL' THEN 4 WHEN 'MAJOR' THEN 3 WHEN 'MINOR' THEN 2 ELSE 1 END)"
}

// HasRun reports whether a run with id is stored.
func (db *DB) HasRun(id string) (bool, error) {
	const q = `SELECT 1 FROM runs WHERE id = ? LIMIT 1`
	var one int
	err := db.conn.QueryRow(q, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

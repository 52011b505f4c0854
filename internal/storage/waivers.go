package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Waiver suppresses findings of one rule, optionally narrowed to files
// matching FileGlob and messages containing PatternSub.
type Waiver struct {
	ID         int64      `json:"id"`
	RuleKey    string     `json:"rule_key"`
	FileGlob   string     `json:"file_glob,omitempty"`
	PatternSub string     `json:"pattern_sub,omitempty"`
	Reason     string     `json:"reason"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the waiver is unrevoked and unexpired at now.
func (w Waiver) Active(now time.Time) bool {
	return w.RevokedAt == nil && w.ExpiresAt.After(now)
}

func (db *DB) CreateWaiver(w Waiver) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := db.conn.Exec(`
INSERT INTO waivers(rule_key, file_glob, pattern_sub, reason, expires_at, created_by, created_at)
VALUES(?,?,?,?,?,?,?)`,
		w.RuleKey, nz(w.FileGlob), nz(w.PatternSub), w.Reason, w.ExpiresAt.UTC().Format(time.RFC3339Nano), w.CreatedBy, now)
	if err != nil {
		return 0, fmt.Errorf("create waiver: %w", err)
	}
	return res.LastInsertId()
}

// RevokeWaiver marks an active waiver revoked. The revoker goes to the audit log.
func (db *DB) RevokeWaiver(id int64) error {
	return execOne(db.conn, `UPDATE waivers SET revoked_at=? WHERE id=? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
}

func (db *DB) ListWaivers(activeOnly bool) ([]Waiver, error) {
	q := `
SELECT id, rule_key, COALESCE(file_glob,''), COALESCE(pattern_sub,''),
       reason, expires_at, created_by, created_at, revoked_at
FROM waivers`
	args := []any{}
	if activeOnly {
		q += ` WHERE (revoked_at IS NULL) AND (expires_at > ?)`
		args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	}
	q += ` ORDER BY id DESC`
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Waiver
	for rows.Next() {
		var (
			w       Waiver
			exp, ca string
			ra      sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.RuleKey, &w.FileGlob, &w.PatternSub, &w.Reason, &exp, &w.CreatedBy, &ca, &ra); err != nil {
			return nil, err
		}
		w.ExpiresAt = parseTime(exp)
		w.CreatedAt = parseTime(ca)
		if ra.Valid {
			t := parseTime(ra.String)
			w.RevokedAt = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func nz(s string) any {
	if s == "" {
		return nil
	}
	return s
}

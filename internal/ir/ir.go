package ir

import "time"

const Version = "1.0"

// Run is one analysis run as it is reported and stored.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	IRVersion string    `json:"ir_version,omitempty"`

	Summary  Summary   `json:"summary"`
	Findings []Finding `json:"findings,omitempty"`
}

type Summary struct {
	Files      int `json:"files"`
	Analyzed   int `json:"analyzed"`
	Skipped    int `json:"skipped"`
	Unreadable int `json:"unreadable"`
	Reported   int `json:"reported"`
	Dropped    int `json:"dropped"`
	Waived     int `json:"waived"`
}

type Finding struct {
	ID       string `json:"id"`
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"` // 0 = file-level
	RuleID   string `json:"rule_id"`        // repository:key
	RuleKey  string `json:"rule_key"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"`     // VULNERABILITY|BUG|CODE_SMELL
	Severity string `json:"severity"` // INFO|MINOR|MAJOR|CRITICAL|BLOCKER
	Message  string `json:"message"`
}

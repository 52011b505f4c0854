package catalog

import (
	"fmt"
	"strings"
)

// Severity is ordered: INFO < MINOR < MAJOR < CRITICAL < BLOCKER.
type Severity int

const (
	Info Severity = iota
	Minor
	Major
	Critical
	Blocker
)

var severityNames = [...]string{"INFO", "MINOR", "MAJOR", "CRITICAL", "BLOCKER"}

func (s Severity) String() string {
	if s < Info || s > Blocker {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity accepts the severity names case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range severityNames {
		if n == up {
			return Severity(i), nil
		}
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RuleType classifies what a rule protects against.
type RuleType string

const (
	Vulnerability RuleType = "VULNERABILITY"
	Bug           RuleType = "BUG"
	CodeSmell     RuleType = "CODE_SMELL"
)

// ParseRuleType accepts the type names case-insensitively.
func ParseRuleType(s string) (RuleType, error) {
	switch t := RuleType(strings.ToUpper(strings.TrimSpace(s))); t {
	case Vulnerability, Bug, CodeSmell:
		return t, nil
	}
	return "", fmt.Errorf("unknown rule type %q", s)
}

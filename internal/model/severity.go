package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every known severity in increasing order of impact.
var Severities = []Severity{SeverityInfo, SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical}

// Rank returns an integer rank for comparison (Info=1, Critical=5).
// Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityModerate:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	default:
		return 0
	}
}

// Below reports whether s is strictly less severe than threshold.
func (s Severity) Below(threshold Severity) bool {
	return s.Rank() < threshold.Rank()
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity string case-insensitively.
// Accepts "medium" as "moderate".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "moderate", "medium":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return SeverityUnknown, fmt.Errorf("invalid severity: %s", s)
	}
}

// SeverityNames returns the accepted severity names, for usage text.
func SeverityNames() []string {
	names := make([]string, 0, len(Severities))
	for _, s := range Severities {
		names = append(names, s.String())
	}
	return names
}

package models

// Severity is the operator-facing label derived from a finding's numeric
// GuardDuty severity.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// SeverityLabel maps a GuardDuty severity score to its label:
//
//	9.0 – 10.0  CRITICAL
//	7.0 –  8.9  HIGH
//	4.0 –  6.9  MEDIUM
//	otherwise   LOW
//
// The function is total: scores above 10 are CRITICAL, negative scores LOW.
func SeverityLabel(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// severityRank orders labels; lower is more severe.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// AtLeast reports whether s is at least as severe as min. Unknown labels
// rank below LOW.
func (s Severity) AtLeast(min Severity) bool {
	rs, ok := severityRank[s]
	if !ok {
		return false
	}
	rm, ok := severityRank[min]
	if !ok {
		return true
	}
	return rs <= rm
}

// ParseSeverity returns the Severity for an upper-case label and whether it
// is a known label.
func ParseSeverity(label string) (Severity, bool) {
	s := Severity(label)
	_, ok := severityRank[s]
	return s, ok
}

package playbook

import "fmt"

// NoPlaybookRegisteredError is returned by Registry.GetInstance when no
// playbook handles the finding type.
type NoPlaybookRegisteredError struct {
	FindingType string
}

func (e *NoPlaybookRegisteredError) Error() string {
	return fmt.Sprintf("no playbook registered for finding type %q", e.FindingType)
}

// PlaybookActionFailedError aborts a playbook when one of its steps reports
// an error status.
type PlaybookActionFailedError struct {
	Playbook string
	Action   string
	Details  any
}

func (e *PlaybookActionFailedError) Error() string {
	return fmt.Sprintf("playbook %s: action %s failed: %v", e.Playbook, e.Action, e.Details)
}

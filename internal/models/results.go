package models

// ActionStatus is the uniform outcome of a single action.
type ActionStatus string

const (
	StatusSuccess ActionStatus = "success"
	StatusError   ActionStatus = "error"
	StatusSkipped ActionStatus = "skipped"
)

// ActionResult is produced once per action invocation and never mutated
// afterwards. Details is either a human-readable string or structured data
// (map or slice) suitable for JSON encoding.
type ActionResult struct {
	Status     ActionStatus `json:"status"`
	Details    any          `json:"details"`
	ActionName string       `json:"action_name"`
}

// Success returns a success result carrying details.
func Success(details any) ActionResult {
	return ActionResult{Status: StatusSuccess, Details: details}
}

// Failure returns an error result carrying details.
func Failure(details any) ActionResult {
	return ActionResult{Status: StatusError, Details: details}
}

// Skipped returns a skipped result carrying the reason.
func Skipped(reason string) ActionResult {
	return ActionResult{Status: StatusSkipped, Details: reason}
}

// PlaybookResult is the ordered execution trail of one playbook run plus the
// snapshot produced by whichever enrichment step succeeded.
type PlaybookResult struct {
	ActionResults []ActionResult `json:"action_results"`
	EnrichedData  map[string]any `json:"enriched_data,omitempty"`
}

// StatusCounts tallies action results by status.
type StatusCounts struct {
	Success int `json:"success"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
}

// Counts returns the per-status tally of r's action results.
func (r *PlaybookResult) Counts() StatusCounts {
	return CountResults(r.ActionResults)
}

// Failed reports whether any action in r reported an error.
func (r *PlaybookResult) Failed() bool {
	return r.Counts().Error > 0
}

// CountResults tallies results by status.
func CountResults(results []ActionResult) StatusCounts {
	var c StatusCounts
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			c.Success++
		case StatusError:
			c.Error++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

// Package engine is the entry point for one GuardDuty finding. It validates
// the inbound event, resolves exactly one playbook, runs it, and guarantees a
// closing notification whatever the outcome.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// ExecutionActionName is the synthetic action recorded when a playbook could
// not be resolved or stopped on a failure.
const ExecutionActionName = "PlaybookExecution"

// Response is returned to the invoker; its JSON shape is what the Lambda
// runtime sends back to EventBridge.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Outcome is the full record of one handled finding.
type Outcome struct {
	ExecutionID string                 `json:"execution_id"`
	FindingID   string                 `json:"finding_id,omitempty"`
	FindingType string                 `json:"finding_type,omitempty"`
	Severity    models.Severity        `json:"severity,omitempty"`
	Playbook    string                 `json:"playbook,omitempty"`
	Ignored     bool                   `json:"ignored,omitempty"`
	Result      *models.PlaybookResult `json:"result,omitempty"`
	StatusCode  int                    `json:"status_code"`
	Duration    time.Duration          `json:"duration"`

	// Err is the failure that ended the run, if any.
	Err error `json:"-"`
}

// Response converts o to the invoker-facing response.
func (o *Outcome) Response() Response {
	switch {
	case o.StatusCode == http.StatusBadRequest:
		return Response{StatusCode: o.StatusCode, Message: fmt.Sprintf("invalid finding: %v", o.Err)}
	case o.Ignored:
		return Response{StatusCode: http.StatusOK, Message: fmt.Sprintf("finding type %s is ignored", o.FindingType)}
	case o.Err != nil:
		return Response{StatusCode: o.StatusCode, Message: fmt.Sprintf("playbook %s failed for finding %s: %v", o.Playbook, o.FindingID, o.Err)}
	default:
		return Response{StatusCode: o.StatusCode, Message: fmt.Sprintf("playbook %s completed for finding %s", o.Playbook, o.FindingID)}
	}
}

// Engine handles findings.
type Engine interface {
	// HandleEvent decodes an EventBridge event (or a bare finding) and
	// handles it.
	HandleEvent(ctx context.Context, raw []byte) Response

	// HandleFinding handles an already decoded finding. It never panics and
	// always returns a populated Outcome.
	HandleFinding(ctx context.Context, f *models.Finding) *Outcome
}

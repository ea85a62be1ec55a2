package playbook

import (
	"context"
	"log/slog"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// Run records the execution trail of one playbook run. Steps execute
// strictly in call order; the first step reporting an error stops the run.
type Run struct {
	playbook string
	finding  *models.Finding
	log      *slog.Logger
	result   models.PlaybookResult
}

// NewRun starts an empty trail for playbook against f. A nil logger
// discards step logging.
func NewRun(playbook string, f *models.Finding, log *slog.Logger) *Run {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Run{playbook: playbook, finding: f, log: log}
}

// Step executes a and appends its result. It returns a
// *PlaybookActionFailedError when the action reports an error; callers must
// stop and return it.
func (r *Run) Step(ctx context.Context, a actions.Action, params map[string]string) error {
	_, err := r.exec(ctx, a, params)
	return err
}

// Enrich is Step for enrichment actions: a successful result also becomes
// the run's enriched data.
func (r *Run) Enrich(ctx context.Context, a actions.Action, params map[string]string) error {
	res, err := r.exec(ctx, a, params)
	if err != nil || res.Status != models.StatusSuccess {
		return err
	}
	switch d := res.Details.(type) {
	case map[string]any:
		r.result.EnrichedData = d
	default:
		r.result.EnrichedData = map[string]any{"details": d}
	}
	return nil
}

func (r *Run) exec(ctx context.Context, a actions.Action, params map[string]string) (models.ActionResult, error) {
	res := a.Execute(ctx, actions.Request{Finding: r.finding, Params: params})
	res.ActionName = a.Name()
	r.result.ActionResults = append(r.result.ActionResults, res)

	r.log.Debug("playbook step",
		"playbook", r.playbook,
		"action", res.ActionName,
		"status", res.Status,
		"finding_id", r.finding.ID,
	)
	if res.Status == models.StatusError {
		return res, &PlaybookActionFailedError{Playbook: r.playbook, Action: res.ActionName, Details: res.Details}
	}
	return res, nil
}

// Result returns a copy of the trail recorded so far.
func (r *Run) Result() *models.PlaybookResult {
	out := &models.PlaybookResult{
		ActionResults: append([]models.ActionResult(nil), r.result.ActionResults...),
		EnrichedData:  r.result.EnrichedData,
	}
	return out
}

// Len returns the number of steps executed so far.
func (r *Run) Len() int { return len(r.result.ActionResults) }

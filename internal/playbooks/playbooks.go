// Package playbooks holds the concrete GuardDuty response playbooks, the
// per-family bases they are built from, and the static table registering
// them against finding types.
//
// A family base owns every action instance its playbooks use plus the
// reusable workflows over them. Concrete playbooks compose workflows and
// single actions explicitly; none of them embeds another concrete playbook.
package playbooks

import (
	"context"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
)

// step is one entry of a fixed action sequence.
type step struct {
	action actions.Action
	enrich bool
	params map[string]string
}

func do(a actions.Action) step                             { return step{action: a} }
func enrich(a actions.Action) step                         { return step{action: a, enrich: true} }
func with(a actions.Action, params map[string]string) step { return step{action: a, params: params} }

// sequence runs steps in order, stopping at the first failing one.
func sequence(ctx context.Context, run *playbook.Run, steps ...step) error {
	for _, s := range steps {
		var err error
		if s.enrich {
			err = run.Enrich(ctx, s.action, s.params)
		} else {
			err = run.Step(ctx, s.action, s.params)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// execute runs body against a fresh trail and returns the trail alongside
// body's error, so a failed run still reports its partial results.
func execute(name string, env *actions.Env, f *models.Finding, body func(*playbook.Run) error) (*models.PlaybookResult, error) {
	run := playbook.NewRun(name, f, env.Logger)
	err := body(run)
	return run.Result(), err
}

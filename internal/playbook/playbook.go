// Package playbook defines the playbook contract, the registry that maps
// GuardDuty finding types to playbooks, and the Run recorder that gives every
// playbook the same fail-fast execution semantics.
package playbook

import (
	"context"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// Playbook is an ordered response procedure bound to one or more finding
// types.
type Playbook interface {
	// Name returns the stable playbook identifier shown in notifications.
	Name() string

	// Run executes the playbook against f. On failure the returned result
	// still holds every step that ran, including the failing one, and err is
	// a *PlaybookActionFailedError.
	Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error)
}

// Factory constructs a playbook bound to env. Factories must be cheap: a
// playbook instance is built per finding.
type Factory func(env *actions.Env) Playbook

// EnvBuilder produces the action environment for one playbook instance:
// clients scoped to the finding's region, configuration and logger.
type EnvBuilder func(ctx context.Context) (*actions.Env, error)

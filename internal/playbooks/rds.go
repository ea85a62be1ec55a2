package playbooks

import (
	"context"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
)

// RDSBase owns the RDS family actions and workflows.
type RDSBase struct {
	env *actions.Env

	tag      actions.Action
	enrich   actions.Action
	snapshot actions.Action
	restrict actions.Action
	isolate  actions.Action
}

// NewRDSBase builds every RDS action against env.
func NewRDSBase(env *actions.Env) *RDSBase {
	return &RDSBase{
		env:      env,
		tag:      actions.NewTagDBInstance(env),
		enrich:   actions.NewEnrichDBInstance(env),
		snapshot: actions.NewSnapshotDBInstance(env),
		restrict: actions.NewRestrictPublicAccess(env),
		isolate:  actions.NewIsolateDBInstance(env),
	}
}

// DatabaseWorkflow marks, describes, preserves and un-publishes the database.
func (b *RDSBase) DatabaseWorkflow(ctx context.Context, run *playbook.Run) error {
	return sequence(ctx, run,
		do(b.tag),
		enrich(b.enrich),
		do(b.snapshot),
		do(b.restrict),
	)
}

// Playbook names.
const (
	NameRDSSuspiciousLogin = "RDSSuspiciousLogin"
	NameRDSLoginProbe      = "RDSLoginProbe"
)

// RDSSuspiciousLogin runs the database workflow and then contains the login
// identity. An IAM-authenticated user is an IAM principal and gets the
// deny-all policy; a local database user cannot be reached through IAM, so
// the database itself is isolated.
type RDSSuspiciousLogin struct {
	rds        *RDSBase
	quarantine actions.Action
}

// NewRDSSuspiciousLogin is the playbook.Factory for RDSSuspiciousLogin.
func NewRDSSuspiciousLogin(env *actions.Env) playbook.Playbook {
	return &RDSSuspiciousLogin{rds: NewRDSBase(env), quarantine: NewIAMBase(env).quarantine}
}

func (p *RDSSuspiciousLogin) Name() string { return NameRDSSuspiciousLogin }

func (p *RDSSuspiciousLogin) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.rds.env, f, func(run *playbook.Run) error {
		if err := p.rds.DatabaseWorkflow(ctx, run); err != nil {
			return err
		}
		if u := f.Resource.RdsDbUserDetails; u != nil && u.AuthMethod == models.AuthMethodIAM && u.User != "" {
			return run.Step(ctx, p.quarantine, map[string]string{actions.ParamPrincipalName: u.User})
		}
		return run.Step(ctx, p.rds.isolate, nil)
	})
}

// RDSLoginProbe handles login attempts from hostile sources. The database is
// marked, described and taken off the internet; no identity is contained.
type RDSLoginProbe struct{ base *RDSBase }

// NewRDSLoginProbe is the playbook.Factory for RDSLoginProbe.
func NewRDSLoginProbe(env *actions.Env) playbook.Playbook {
	return &RDSLoginProbe{base: NewRDSBase(env)}
}

func (p *RDSLoginProbe) Name() string { return NameRDSLoginProbe }

func (p *RDSLoginProbe) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return sequence(ctx, run, do(p.base.tag), enrich(p.base.enrich), do(p.base.restrict))
	})
}

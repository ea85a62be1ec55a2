package playbooks

import (
	"context"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
)

// IAMBase owns the IAM family actions and workflows.
type IAMBase struct {
	env *actions.Env

	tag          actions.Action
	disableKey   actions.Action
	quarantine   actions.Action
	revoke       actions.Action
	enrich       actions.Action
	restartTrail actions.Action
}

// NewIAMBase builds every IAM action against env.
func NewIAMBase(env *actions.Env) *IAMBase {
	return &IAMBase{
		env:          env,
		tag:          actions.NewTagPrincipal(env),
		disableKey:   actions.NewDisableAccessKey(env),
		quarantine:   actions.NewQuarantinePrincipal(env),
		revoke:       actions.NewRevokeRoleSessions(env),
		enrich:       actions.NewEnrichPrincipal(env),
		restartTrail: actions.NewRestartCloudTrailLogging(env),
	}
}

// CredentialCompromiseWorkflow cuts off a principal whose credentials are
// in the wrong hands.
func (b *IAMBase) CredentialCompromiseWorkflow(ctx context.Context, run *playbook.Run) error {
	return sequence(ctx, run,
		do(b.tag),
		do(b.disableKey),
		do(b.quarantine),
		do(b.revoke),
		enrich(b.enrich),
	)
}

// Playbook names.
const (
	NameIAMCredentialCompromise = "IAMCredentialCompromise"
	NameIAMLoggingTampering     = "IAMLoggingTampering"
	NameIAMReconnaissance       = "IAMReconnaissance"
)

// IAMCredentialCompromise runs the credential compromise workflow.
type IAMCredentialCompromise struct{ base *IAMBase }

// NewIAMCredentialCompromise is the playbook.Factory for IAMCredentialCompromise.
func NewIAMCredentialCompromise(env *actions.Env) playbook.Playbook {
	return &IAMCredentialCompromise{base: NewIAMBase(env)}
}

func (p *IAMCredentialCompromise) Name() string { return NameIAMCredentialCompromise }

func (p *IAMCredentialCompromise) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return p.base.CredentialCompromiseWorkflow(ctx, run)
	})
}

// IAMLoggingTampering contains the principal and then turns CloudTrail back on.
type IAMLoggingTampering struct{ base *IAMBase }

// NewIAMLoggingTampering is the playbook.Factory for IAMLoggingTampering.
func NewIAMLoggingTampering(env *actions.Env) playbook.Playbook {
	return &IAMLoggingTampering{base: NewIAMBase(env)}
}

func (p *IAMLoggingTampering) Name() string { return NameIAMLoggingTampering }

func (p *IAMLoggingTampering) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		if err := p.base.CredentialCompromiseWorkflow(ctx, run); err != nil {
			return err
		}
		return run.Step(ctx, p.base.restartTrail, nil)
	})
}

// IAMReconnaissance only marks and describes the principal. Discovery
// activity alone does not justify cutting off access.
type IAMReconnaissance struct{ base *IAMBase }

// NewIAMReconnaissance is the playbook.Factory for IAMReconnaissance.
func NewIAMReconnaissance(env *actions.Env) playbook.Playbook {
	return &IAMReconnaissance{base: NewIAMBase(env)}
}

func (p *IAMReconnaissance) Name() string { return NameIAMReconnaissance }

func (p *IAMReconnaissance) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return sequence(ctx, run, do(p.base.tag), enrich(p.base.enrich))
	})
}

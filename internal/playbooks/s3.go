package playbooks

import (
	"context"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
)

// S3Base owns the S3 family actions and workflows.
type S3Base struct {
	env *actions.Env

	tag    actions.Action
	block  actions.Action
	enrich actions.Action
}

// NewS3Base builds every S3 action against env.
func NewS3Base(env *actions.Env) *S3Base {
	return &S3Base{
		env:    env,
		tag:    actions.NewTagBucket(env),
		block:  actions.NewBlockPublicAccess(env),
		enrich: actions.NewEnrichBucket(env),
	}
}

// ExposureWorkflow tags, locks down and describes every bucket in f. An
// account-level finding naming no bucket runs the sequence once, and each
// action reports itself skipped.
func (b *S3Base) ExposureWorkflow(ctx context.Context, run *playbook.Run, f *models.Finding) error {
	var buckets []string
	for _, d := range f.Resource.S3BucketDetails {
		if d.Name != "" {
			buckets = append(buckets, d.Name)
		}
	}
	if len(buckets) == 0 {
		return sequence(ctx, run, do(b.tag), do(b.block), enrich(b.enrich))
	}
	for _, name := range buckets {
		params := map[string]string{actions.ParamBucketName: name}
		err := sequence(ctx, run,
			with(b.tag, params),
			with(b.block, params),
			step{action: b.enrich, enrich: true, params: params},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Playbook names.
const (
	NameS3PublicExposure = "S3PublicExposure"
	NameS3DataAccess     = "S3DataAccess"
)

// S3PublicExposure runs the exposure workflow.
type S3PublicExposure struct{ base *S3Base }

// NewS3PublicExposure is the playbook.Factory for S3PublicExposure.
func NewS3PublicExposure(env *actions.Env) playbook.Playbook {
	return &S3PublicExposure{base: NewS3Base(env)}
}

func (p *S3PublicExposure) Name() string { return NameS3PublicExposure }

func (p *S3PublicExposure) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return p.base.ExposureWorkflow(ctx, run, f)
	})
}

// S3DataAccess secures the buckets and then contains the principal that
// accessed them.
type S3DataAccess struct {
	s3  *S3Base
	iam *IAMBase
}

// NewS3DataAccess is the playbook.Factory for S3DataAccess.
func NewS3DataAccess(env *actions.Env) playbook.Playbook {
	return &S3DataAccess{s3: NewS3Base(env), iam: NewIAMBase(env)}
}

func (p *S3DataAccess) Name() string { return NameS3DataAccess }

func (p *S3DataAccess) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.s3.env, f, func(run *playbook.Run) error {
		if err := p.s3.ExposureWorkflow(ctx, run, f); err != nil {
			return err
		}
		return p.iam.CredentialCompromiseWorkflow(ctx, run)
	})
}

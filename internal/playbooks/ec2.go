package playbooks

import (
	"context"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
)

// EC2Base owns the EC2 family actions and workflows.
type EC2Base struct {
	env *actions.Env

	tag               actions.Action
	isolate           actions.Action
	quarantineProfile actions.Action
	snapshot          actions.Action
	enrichInstance    actions.Action
	terminate         actions.Action
	blockIPs          actions.Action
	deregister        actions.Action
	forensics         actions.Action
	flowLogs          actions.Action
}

// NewEC2Base builds every EC2 action against env.
func NewEC2Base(env *actions.Env) *EC2Base {
	return &EC2Base{
		env:               env,
		tag:               actions.NewTagInstance(env),
		isolate:           actions.NewIsolateInstance(env),
		quarantineProfile: actions.NewQuarantineInstanceProfile(env),
		snapshot:          actions.NewSnapshotVolumes(env),
		enrichInstance:    actions.NewEnrichInstance(env),
		terminate:         actions.NewTerminateInstance(env),
		blockIPs:          actions.NewBlockRemoteIPs(env),
		deregister:        actions.NewDeregisterFromTargetGroups(env),
		forensics:         actions.NewCollectForensics(env),
		flowLogs:          actions.NewQueryFlowLogs(env),
	}
}

// CompromiseWorkflow contains an instance believed to be under attacker
// control: tag, isolate, quarantine its profile, snapshot, enrich, terminate.
func (b *EC2Base) CompromiseWorkflow(ctx context.Context, run *playbook.Run) error {
	return sequence(ctx, run,
		do(b.tag),
		do(b.isolate),
		do(b.quarantineProfile),
		do(b.snapshot),
		enrich(b.enrichInstance),
		do(b.terminate),
	)
}

// ContainmentWorkflow takes an instance out of service without destroying
// it: tag, drain from load balancers, isolate, enrich.
func (b *EC2Base) ContainmentWorkflow(ctx context.Context, run *playbook.Run) error {
	return sequence(ctx, run,
		do(b.tag),
		do(b.deregister),
		do(b.isolate),
		enrich(b.enrichInstance),
	)
}

// targetWorkflow handles an instance that is being attacked rather than
// attacking: block the sources and collect evidence.
func (b *EC2Base) targetWorkflow(ctx context.Context, run *playbook.Run) error {
	return sequence(ctx, run,
		do(b.tag),
		do(b.blockIPs),
		enrich(b.enrichInstance),
		do(b.flowLogs),
	)
}

// ---------------------------------------------------------------------------
// Playbooks
// ---------------------------------------------------------------------------

// Playbook names.
const (
	NameEC2InstanceCompromise = "EC2InstanceCompromise"
	NameEC2TorRelay           = "EC2TorRelay"
	NameEC2BruteForce         = "EC2BruteForce"
	NameEC2ReconProbe         = "EC2ReconProbe"
	NameEC2OutboundAbuse      = "EC2OutboundAbuse"
	NameEC2MaliciousExecution = "EC2MaliciousExecution"
)

// EC2InstanceCompromise runs the compromise workflow.
type EC2InstanceCompromise struct{ base *EC2Base }

// NewEC2InstanceCompromise is the playbook.Factory for EC2InstanceCompromise.
func NewEC2InstanceCompromise(env *actions.Env) playbook.Playbook {
	return &EC2InstanceCompromise{base: NewEC2Base(env)}
}

func (p *EC2InstanceCompromise) Name() string { return NameEC2InstanceCompromise }

func (p *EC2InstanceCompromise) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return p.base.CompromiseWorkflow(ctx, run)
	})
}

// EC2TorRelay runs the compromise workflow and then blocks the relay's
// peers at the subnet boundary.
type EC2TorRelay struct{ base *EC2Base }

// NewEC2TorRelay is the playbook.Factory for EC2TorRelay.
func NewEC2TorRelay(env *actions.Env) playbook.Playbook {
	return &EC2TorRelay{base: NewEC2Base(env)}
}

func (p *EC2TorRelay) Name() string { return NameEC2TorRelay }

func (p *EC2TorRelay) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		if err := p.base.CompromiseWorkflow(ctx, run); err != nil {
			return err
		}
		return run.Step(ctx, p.base.blockIPs, nil)
	})
}

// EC2BruteForce branches on the instance's role. A targeted instance has its
// attackers blocked; an instance running the brute force is treated as
// compromised.
type EC2BruteForce struct{ base *EC2Base }

// NewEC2BruteForce is the playbook.Factory for EC2BruteForce.
func NewEC2BruteForce(env *actions.Env) playbook.Playbook {
	return &EC2BruteForce{base: NewEC2Base(env)}
}

func (p *EC2BruteForce) Name() string { return NameEC2BruteForce }

func (p *EC2BruteForce) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		if f.ResourceRole() == models.RoleSource {
			return p.base.CompromiseWorkflow(ctx, run)
		}
		return p.base.targetWorkflow(ctx, run)
	})
}

// EC2ReconProbe blocks the probing addresses and records what they reached.
type EC2ReconProbe struct{ base *EC2Base }

// NewEC2ReconProbe is the playbook.Factory for EC2ReconProbe.
func NewEC2ReconProbe(env *actions.Env) playbook.Playbook {
	return &EC2ReconProbe{base: NewEC2Base(env)}
}

func (p *EC2ReconProbe) Name() string { return NameEC2ReconProbe }

func (p *EC2ReconProbe) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return p.base.targetWorkflow(ctx, run)
	})
}

// EC2OutboundAbuse runs the containment workflow.
type EC2OutboundAbuse struct{ base *EC2Base }

// NewEC2OutboundAbuse is the playbook.Factory for EC2OutboundAbuse.
func NewEC2OutboundAbuse(env *actions.Env) playbook.Playbook {
	return &EC2OutboundAbuse{base: NewEC2Base(env)}
}

func (p *EC2OutboundAbuse) Name() string { return NameEC2OutboundAbuse }

func (p *EC2OutboundAbuse) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return p.base.ContainmentWorkflow(ctx, run)
	})
}

// EC2MaliciousExecution captures volatile state before isolating, since
// isolation cuts the SSM agent off.
type EC2MaliciousExecution struct{ base *EC2Base }

// NewEC2MaliciousExecution is the playbook.Factory for EC2MaliciousExecution.
func NewEC2MaliciousExecution(env *actions.Env) playbook.Playbook {
	return &EC2MaliciousExecution{base: NewEC2Base(env)}
}

func (p *EC2MaliciousExecution) Name() string { return NameEC2MaliciousExecution }

func (p *EC2MaliciousExecution) Run(ctx context.Context, f *models.Finding) (*models.PlaybookResult, error) {
	return execute(p.Name(), p.base.env, f, func(run *playbook.Run) error {
		return sequence(ctx, run,
			do(p.base.tag),
			do(p.base.forensics),
			do(p.base.snapshot),
			enrich(p.base.enrichInstance),
			do(p.base.isolate),
		)
	})
}

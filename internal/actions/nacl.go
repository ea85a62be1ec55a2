package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// ErrNoFreeRuleNumber is returned by NextRuleNumber when every number below
// the ceiling is taken.
var ErrNoFreeRuleNumber = errors.New("no free network ACL rule number below ceiling")

// NextRuleNumber returns the lowest rule number in [1, ceiling) not used by
// an entry of the requested direction. Ingress and egress rules live in
// separate number spaces, so an ingress rule 1 leaves egress 1 free.
func NextRuleNumber(entries []ec2types.NetworkAclEntry, egress bool, ceiling int32) (int32, error) {
	used := make(map[int32]bool, len(entries))
	for _, e := range entries {
		if aws.ToBool(e.Egress) != egress || e.RuleNumber == nil {
			continue
		}
		used[*e.RuleNumber] = true
	}
	for n := int32(1); n < ceiling; n++ {
		if !used[n] {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w %d", ErrNoFreeRuleNumber, ceiling)
}

// hasDenyEntry reports whether entries already deny cidr in the direction.
func hasDenyEntry(entries []ec2types.NetworkAclEntry, cidr string, egress bool) bool {
	for _, e := range entries {
		if aws.ToBool(e.Egress) == egress &&
			e.RuleAction == ec2types.RuleActionDeny &&
			aws.ToString(e.CidrBlock) == cidr {
			return true
		}
	}
	return false
}

// BlockRemoteIPs adds deny entries for every remote IP in the finding to the
// network ACLs of the instance's subnets, in both directions. Entries are
// numbered below the configured ceiling so they are evaluated before the
// usual allow rules.
type BlockRemoteIPs struct{ env *Env }

// NewBlockRemoteIPs returns a BlockRemoteIPs action.
func NewBlockRemoteIPs(env *Env) *BlockRemoteIPs { return &BlockRemoteIPs{env: env} }

// Name implements Action.
func (a *BlockRemoteIPs) Name() string { return "BlockRemoteIPs" }

// Execute implements Action.
func (a *BlockRemoteIPs) Execute(ctx context.Context, req Request) models.ActionResult {
	ips := req.Finding.RemoteIPs()
	if len(ips) == 0 {
		return models.Skipped("finding has no remote IP addresses")
	}

	subnets, err := a.subnets(ctx, req.Finding)
	if err != nil {
		return models.Failure(err.Error())
	}
	if len(subnets) == 0 {
		return models.Skipped("no subnet found for the affected instance")
	}

	out, err := a.env.Clients.EC2.DescribeNetworkAcls(ctx, &ec2.DescribeNetworkAclsInput{
		Filters: []ec2types.Filter{{Name: aws.String("association.subnet-id"), Values: subnets}},
	})
	if err != nil {
		return apiFailure("EC2 DescribeNetworkAcls", err)
	}
	if len(out.NetworkAcls) == 0 {
		return models.Skipped("no network ACL is associated with the instance subnets")
	}

	ceiling := a.env.Config.Isolation.NACLRuleCeiling
	var rules []map[string]any
	var aclIDs []string
	for _, acl := range out.NetworkAcls {
		aclID := aws.ToString(acl.NetworkAclId)
		aclIDs = append(aclIDs, aclID)
		entries := append([]ec2types.NetworkAclEntry(nil), acl.Entries...)

		for _, ip := range ips {
			cidr := ip + "/32"
			for _, egress := range []bool{false, true} {
				if hasDenyEntry(entries, cidr, egress) {
					continue
				}
				n, err := NextRuleNumber(entries, egress, ceiling)
				if err != nil {
					return models.Failure(fmt.Sprintf("network ACL %s: %v", aclID, err))
				}
				_, err = a.env.Clients.EC2.CreateNetworkAclEntry(ctx, &ec2.CreateNetworkAclEntryInput{
					NetworkAclId: aws.String(aclID),
					RuleNumber:   aws.Int32(n),
					Protocol:     aws.String("-1"),
					RuleAction:   ec2types.RuleActionDeny,
					Egress:       aws.Bool(egress),
					CidrBlock:    aws.String(cidr),
				})
				if err != nil {
					return apiFailure("EC2 CreateNetworkAclEntry "+aclID, err)
				}
				entries = append(entries, ec2types.NetworkAclEntry{
					RuleNumber: aws.Int32(n),
					Egress:     aws.Bool(egress),
					RuleAction: ec2types.RuleActionDeny,
					CidrBlock:  aws.String(cidr),
				})
				rules = append(rules, map[string]any{
					"network_acl_id": aclID,
					"rule_number":    n,
					"egress":         egress,
					"cidr":           cidr,
				})
			}
		}
	}

	return models.Success(map[string]any{
		"blocked_ips":  ips,
		"network_acls": aclIDs,
		"rules":        rules,
	})
}

// subnets returns the instance's subnets, preferring the finding's own view
// and falling back to EC2 when the finding carries no interfaces.
func (a *BlockRemoteIPs) subnets(ctx context.Context, f *models.Finding) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if d := f.Resource.InstanceDetails; d != nil {
		for _, ni := range d.NetworkInterfaces {
			add(ni.SubnetID)
		}
	}
	if len(out) > 0 || f.InstanceID() == "" {
		return out, nil
	}

	inst, err := describeInstance(ctx, a.env.Clients.EC2, f.InstanceID())
	if errors.Is(err, errInstanceGone) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("EC2 DescribeInstances: %w", err)
	}
	add(aws.ToString(inst.SubnetId))
	for _, ni := range inst.NetworkInterfaces {
		add(aws.ToString(ni.SubnetId))
	}
	return out, nil
}

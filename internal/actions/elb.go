package actions

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// DeregisterFromTargetGroups removes the instance from every instance-type
// target group it is registered in, so a compromised host stops serving
// traffic before it is isolated.
type DeregisterFromTargetGroups struct{ env *Env }

// NewDeregisterFromTargetGroups returns a DeregisterFromTargetGroups action.
func NewDeregisterFromTargetGroups(env *Env) *DeregisterFromTargetGroups {
	return &DeregisterFromTargetGroups{env: env}
}

// Name implements Action.
func (a *DeregisterFromTargetGroups) Name() string { return "DeregisterFromTargetGroups" }

// Execute implements Action.
func (a *DeregisterFromTargetGroups) Execute(ctx context.Context, req Request) models.ActionResult {
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}
	vpcs := make(map[string]bool)
	if d := req.Finding.Resource.InstanceDetails; d != nil {
		for _, ni := range d.NetworkInterfaces {
			if ni.VpcID != "" {
				vpcs[ni.VpcID] = true
			}
		}
	}

	c := a.env.Clients.ELBv2
	var deregistered []string
	var marker *string
	for {
		page, err := c.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{Marker: marker})
		if err != nil {
			return apiFailure("ELBv2 DescribeTargetGroups", err)
		}
		for _, tg := range page.TargetGroups {
			if tg.TargetType != elbv2types.TargetTypeEnumInstance {
				continue
			}
			if len(vpcs) > 0 && !vpcs[aws.ToString(tg.VpcId)] {
				continue
			}
			arn := aws.ToString(tg.TargetGroupArn)
			health, err := c.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{TargetGroupArn: aws.String(arn)})
			if err != nil {
				return apiFailure("ELBv2 DescribeTargetHealth", err)
			}
			var targets []elbv2types.TargetDescription
			for _, h := range health.TargetHealthDescriptions {
				if h.Target != nil && aws.ToString(h.Target.Id) == id {
					targets = append(targets, *h.Target)
				}
			}
			if len(targets) == 0 {
				continue
			}
			if _, err := c.DeregisterTargets(ctx, &elbv2.DeregisterTargetsInput{
				TargetGroupArn: aws.String(arn),
				Targets:        targets,
			}); err != nil {
				return apiFailure("ELBv2 DeregisterTargets", err)
			}
			deregistered = append(deregistered, arn)
		}
		if page.NextMarker == nil {
			break
		}
		marker = page.NextMarker
	}

	if len(deregistered) == 0 {
		return models.Skipped(fmt.Sprintf("instance %s is not registered in any target group", id))
	}
	return models.Success(map[string]any{"instance_id": id, "target_groups": deregistered})
}

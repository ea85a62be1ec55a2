package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// errInstanceGone is returned by describeInstance when EC2 no longer knows
// the instance.
var errInstanceGone = errors.New("instance not found")

// describeInstance returns the EC2 view of id.
func describeInstance(ctx context.Context, c common.EC2Client, id string) (*ec2types.Instance, error) {
	out, err := c.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
	if err != nil {
		if common.IsNotFound(err) {
			return nil, errInstanceGone
		}
		return nil, err
	}
	for _, r := range out.Reservations {
		for i := range r.Instances {
			if aws.ToString(r.Instances[i].InstanceId) == id {
				return &r.Instances[i], nil
			}
		}
	}
	return nil, errInstanceGone
}

func instanceState(inst *ec2types.Instance) ec2types.InstanceStateName {
	if inst.State == nil {
		return ""
	}
	return inst.State.Name
}

func isTerminated(inst *ec2types.Instance) bool {
	s := instanceState(inst)
	return s == ec2types.InstanceStateNameTerminated || s == ec2types.InstanceStateNameShuttingDown
}

// quarantineGroup returns the ID of the quarantine security group in vpcID,
// creating it when absent. A freshly created group has its default egress
// rule revoked so it permits no traffic in either direction.
func quarantineGroup(ctx context.Context, env *Env, vpcID string) (string, bool, error) {
	c := env.Clients.EC2
	name := env.Config.Isolation.SecurityGroupName

	out, err := c.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
			{Name: aws.String("group-name"), Values: []string{name}},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("describe security groups in %s: %w", vpcID, err)
	}
	if len(out.SecurityGroups) > 0 {
		return aws.ToString(out.SecurityGroups[0].GroupId), false, nil
	}

	created, err := c.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("Quarantine group managed by gdr. Allows no traffic."),
		VpcId:       aws.String(vpcID),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeSecurityGroup,
			Tags:         []ec2types.Tag{{Key: aws.String(env.Config.Tagging.KeyPrefix + "managed"), Value: aws.String("true")}},
		}},
	})
	if err != nil {
		return "", false, fmt.Errorf("create security group in %s: %w", vpcID, err)
	}
	groupID := aws.ToString(created.GroupId)

	_, err = c.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{{
			IpProtocol: aws.String("-1"),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}},
	})
	if err != nil && !common.HasErrorCode(err, "InvalidPermission.NotFound") {
		return "", true, fmt.Errorf("revoke default egress on %s: %w", groupID, err)
	}
	return groupID, true, nil
}

func ec2Tags(tags []kv) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, ec2types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

// ---------------------------------------------------------------------------
// TagInstance
// ---------------------------------------------------------------------------

// TagInstance marks the affected instance with the response tags.
type TagInstance struct{ env *Env }

// NewTagInstance returns a TagInstance action.
func NewTagInstance(env *Env) *TagInstance { return &TagInstance{env: env} }

// Name implements Action.
func (a *TagInstance) Name() string { return "TagInstance" }

// Execute implements Action.
func (a *TagInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}
	tags := a.env.responseTags(req.Finding, StatusInvestigating)
	_, err := a.env.Clients.EC2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{id},
		Tags:      ec2Tags(tags),
	})
	if err != nil {
		if common.IsNotFound(err) {
			return models.Skipped(fmt.Sprintf("instance %s no longer exists", id))
		}
		return apiFailure("EC2 CreateTags", err)
	}
	return models.Success(map[string]any{"instance_id": id, "tags": tagMap(tags)})
}

// ---------------------------------------------------------------------------
// IsolateInstance
// ---------------------------------------------------------------------------

// IsolateInstance replaces the security groups on every network interface of
// the instance with the VPC's quarantine group.
type IsolateInstance struct{ env *Env }

// NewIsolateInstance returns an IsolateInstance action.
func NewIsolateInstance(env *Env) *IsolateInstance { return &IsolateInstance{env: env} }

// Name implements Action.
func (a *IsolateInstance) Name() string { return "IsolateInstance" }

// Execute implements Action.
func (a *IsolateInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}

	inst, err := describeInstance(ctx, a.env.Clients.EC2, id)
	if errors.Is(err, errInstanceGone) {
		return models.Skipped(fmt.Sprintf("instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("EC2 DescribeInstances", err)
	}
	if isTerminated(inst) {
		return models.Success(fmt.Sprintf("instance %s is already %s", id, instanceState(inst)))
	}

	vpcID := aws.ToString(inst.VpcId)
	if vpcID == "" {
		return models.Failure(fmt.Sprintf("instance %s has no VPC; EC2-Classic isolation is not supported", id))
	}

	groupID, created, err := quarantineGroup(ctx, a.env, vpcID)
	if err != nil {
		return models.Failure(err.Error())
	}

	previous := make(map[string][]string)
	var enis []string
	for _, ni := range inst.NetworkInterfaces {
		eni := aws.ToString(ni.NetworkInterfaceId)
		for _, g := range ni.Groups {
			previous[eni] = append(previous[eni], aws.ToString(g.GroupId))
		}
		_, err := a.env.Clients.EC2.ModifyNetworkInterfaceAttribute(ctx, &ec2.ModifyNetworkInterfaceAttributeInput{
			NetworkInterfaceId: aws.String(eni),
			Groups:             []string{groupID},
		})
		if err != nil {
			return apiFailure("EC2 ModifyNetworkInterfaceAttribute "+eni, err)
		}
		enis = append(enis, eni)
	}
	if len(enis) == 0 {
		return models.Failure(fmt.Sprintf("instance %s has no network interfaces to isolate", id))
	}

	a.env.logger().Info("instance isolated", "instance_id", id, "security_group_id", groupID, "group_created", created)
	return models.Success(map[string]any{
		"instance_id":        id,
		"security_group_id":  groupID,
		"network_interfaces": enis,
		"previous_groups":    previous,
	})
}

// ---------------------------------------------------------------------------
// QuarantineInstanceProfile
// ---------------------------------------------------------------------------

// QuarantineInstanceProfile attaches the deny-all policy to every role in the
// instance profile so credentials already lifted from the metadata service
// stop working.
type QuarantineInstanceProfile struct{ env *Env }

// NewQuarantineInstanceProfile returns a QuarantineInstanceProfile action.
func NewQuarantineInstanceProfile(env *Env) *QuarantineInstanceProfile {
	return &QuarantineInstanceProfile{env: env}
}

// Name implements Action.
func (a *QuarantineInstanceProfile) Name() string { return "QuarantineInstanceProfile" }

// Execute implements Action.
func (a *QuarantineInstanceProfile) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowIAMQuarantine {
		return disabled("allow_iam_quarantine")
	}
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}

	out, err := a.env.Clients.EC2.DescribeIamInstanceProfileAssociations(ctx, &ec2.DescribeIamInstanceProfileAssociationsInput{
		Filters: []ec2types.Filter{{Name: aws.String("instance-id"), Values: []string{id}}},
	})
	if err != nil {
		return apiFailure("EC2 DescribeIamInstanceProfileAssociations", err)
	}
	var profileArn string
	for _, assoc := range out.IamInstanceProfileAssociations {
		if assoc.IamInstanceProfile != nil {
			profileArn = aws.ToString(assoc.IamInstanceProfile.Arn)
			break
		}
	}
	if profileArn == "" {
		return models.Skipped(fmt.Sprintf("instance %s has no instance profile", id))
	}

	profileName := profileArn[strings.LastIndex(profileArn, "/")+1:]
	prof, err := a.env.Clients.IAM.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil {
		return apiFailure("IAM GetInstanceProfile "+profileName, err)
	}

	policyArn := a.env.Config.IAM.DenyAllPolicyARN
	var roles []string
	if prof.InstanceProfile != nil {
		for _, r := range prof.InstanceProfile.Roles {
			name := aws.ToString(r.RoleName)
			_, err := a.env.Clients.IAM.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
				RoleName:  aws.String(name),
				PolicyArn: aws.String(policyArn),
			})
			if err != nil {
				return apiFailure("IAM AttachRolePolicy "+name, err)
			}
			roles = append(roles, name)
		}
	}
	if len(roles) == 0 {
		return models.Skipped(fmt.Sprintf("instance profile %s has no roles", profileName))
	}
	return models.Success(map[string]any{
		"instance_profile": profileName,
		"roles":            roles,
		"policy_arn":       policyArn,
	})
}

// ---------------------------------------------------------------------------
// SnapshotVolumes
// ---------------------------------------------------------------------------

// SnapshotVolumes takes an EBS snapshot of every volume attached to the
// instance, preserving disk state for forensics.
type SnapshotVolumes struct{ env *Env }

// NewSnapshotVolumes returns a SnapshotVolumes action.
func NewSnapshotVolumes(env *Env) *SnapshotVolumes { return &SnapshotVolumes{env: env} }

// Name implements Action.
func (a *SnapshotVolumes) Name() string { return "SnapshotVolumes" }

// Execute implements Action.
func (a *SnapshotVolumes) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowSnapshots {
		return disabled("allow_snapshots")
	}
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}

	inst, err := describeInstance(ctx, a.env.Clients.EC2, id)
	if errors.Is(err, errInstanceGone) {
		return models.Skipped(fmt.Sprintf("instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("EC2 DescribeInstances", err)
	}

	tags := ec2Tags(a.env.responseTags(req.Finding, StatusInvestigating))
	snapshots := make(map[string]string)
	for _, bdm := range inst.BlockDeviceMappings {
		if bdm.Ebs == nil || bdm.Ebs.VolumeId == nil {
			continue
		}
		vol := aws.ToString(bdm.Ebs.VolumeId)
		out, err := a.env.Clients.EC2.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
			VolumeId:    aws.String(vol),
			Description: aws.String(fmt.Sprintf("gdr forensic snapshot of %s (%s) for finding %s", vol, id, req.Finding.ID)),
			TagSpecifications: []ec2types.TagSpecification{{
				ResourceType: ec2types.ResourceTypeSnapshot,
				Tags:         tags,
			}},
		})
		if err != nil {
			return apiFailure("EC2 CreateSnapshot "+vol, err)
		}
		snapshots[vol] = aws.ToString(out.SnapshotId)
	}
	if len(snapshots) == 0 {
		return models.Skipped(fmt.Sprintf("instance %s has no EBS volumes", id))
	}
	return models.Success(map[string]any{"instance_id": id, "snapshots": snapshots})
}

// ---------------------------------------------------------------------------
// EnrichInstance
// ---------------------------------------------------------------------------

// EnrichInstance gathers the current EC2 view of the instance.
type EnrichInstance struct{ env *Env }

// NewEnrichInstance returns an EnrichInstance action.
func NewEnrichInstance(env *Env) *EnrichInstance { return &EnrichInstance{env: env} }

// Name implements Action.
func (a *EnrichInstance) Name() string { return "EnrichInstance" }

// Execute implements Action.
func (a *EnrichInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}

	inst, err := describeInstance(ctx, a.env.Clients.EC2, id)
	if errors.Is(err, errInstanceGone) {
		return models.Skipped(fmt.Sprintf("instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("EC2 DescribeInstances", err)
	}

	details := map[string]any{
		"instance_id":   id,
		"instance_type": string(inst.InstanceType),
		"state":         string(instanceState(inst)),
		"image_id":      aws.ToString(inst.ImageId),
		"vpc_id":        aws.ToString(inst.VpcId),
		"subnet_id":     aws.ToString(inst.SubnetId),
		"private_ip":    aws.ToString(inst.PrivateIpAddress),
		"public_ip":     aws.ToString(inst.PublicIpAddress),
	}
	if inst.LaunchTime != nil {
		details["launch_time"] = inst.LaunchTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	if inst.Placement != nil {
		details["availability_zone"] = aws.ToString(inst.Placement.AvailabilityZone)
	}
	if inst.IamInstanceProfile != nil {
		details["instance_profile_arn"] = aws.ToString(inst.IamInstanceProfile.Arn)
	}
	var groups []string
	for _, g := range inst.SecurityGroups {
		groups = append(groups, aws.ToString(g.GroupId))
	}
	details["security_groups"] = groups
	tags := make(map[string]string)
	for _, t := range inst.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	details["tags"] = tags
	return models.Success(details)
}

// ---------------------------------------------------------------------------
// TerminateInstance
// ---------------------------------------------------------------------------

// TerminateInstance terminates the instance. It is the last step of the
// compromise workflow and runs only after evidence has been preserved.
type TerminateInstance struct{ env *Env }

// NewTerminateInstance returns a TerminateInstance action.
func NewTerminateInstance(env *Env) *TerminateInstance { return &TerminateInstance{env: env} }

// Name implements Action.
func (a *TerminateInstance) Name() string { return "TerminateInstance" }

// Execute implements Action.
func (a *TerminateInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowTerminate {
		return disabled("allow_terminate")
	}
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}

	inst, err := describeInstance(ctx, a.env.Clients.EC2, id)
	if errors.Is(err, errInstanceGone) {
		return models.Skipped(fmt.Sprintf("instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("EC2 DescribeInstances", err)
	}
	if isTerminated(inst) {
		return models.Success(fmt.Sprintf("instance %s is already %s", id, instanceState(inst)))
	}

	if _, err := a.env.Clients.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	}); err != nil {
		return apiFailure("EC2 TerminateInstances", err)
	}
	a.env.logger().Warn("instance terminated", "instance_id", id, "finding_id", req.Finding.ID)
	return models.Success(map[string]any{"instance_id": id, "terminated": true})
}

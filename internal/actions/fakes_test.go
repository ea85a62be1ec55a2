package actions

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// Fakes embed the client interface so only the methods a test exercises
// need an implementation; anything else panics on a nil receiver.

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func apiErr(code string) error { return &smithy.GenericAPIError{Code: code, Message: code} }

// fakeClock advances on every Sleep so polling loops terminate.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return nil
}

func testEnv(c *common.ClientSet) *Env {
	clock := &fakeClock{t: fixedNow}
	return &Env{
		Clients: c,
		Config:  config.Default(),
		Region:  "us-east-1",
		Now:     clock.Now,
		Sleep:   clock.Sleep,
	}
}

func instanceFinding(id string) *models.Finding {
	return &models.Finding{
		ID:       "f-1",
		Type:     "UnauthorizedAccess:EC2/TorClient",
		Severity: 8,
		Resource: models.Resource{
			ResourceType: models.ResourceTypeInstance,
			InstanceDetails: &models.InstanceDetails{
				InstanceID: id,
				NetworkInterfaces: []models.NetworkInterface{
					{NetworkInterfaceID: "eni-1", SubnetID: "subnet-1", VpcID: "vpc-1"},
				},
			},
		},
	}
}

func accessKeyFinding(userType, name, keyID string) *models.Finding {
	return &models.Finding{
		ID:   "f-iam",
		Type: "UnauthorizedAccess:IAMUser/MaliciousIPCaller",
		Resource: models.Resource{
			ResourceType:     models.ResourceTypeAccessKey,
			AccessKeyDetails: &models.AccessKeyDetails{AccessKeyID: keyID, UserName: name, UserType: userType},
		},
	}
}

// ── EC2 ──────────────────────────────────────────────────────────────────────

type fakeEC2 struct {
	common.EC2Client

	instances   map[string]ec2types.Instance
	describeErr error

	groups        []ec2types.SecurityGroup
	createdGroups int
	revoked       int

	createTagsErr error
	tagged        []string

	modifyErr error
	modified  map[string][]string

	associations []ec2types.IamInstanceProfileAssociation

	snapshots  []string
	terminated []string

	nacls      []ec2types.NetworkAcl
	naclWrites []*ec2.CreateNetworkAclEntryInput
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	var out []ec2types.Instance
	for _, id := range in.InstanceIds {
		if inst, ok := f.instances[id]; ok {
			out = append(out, inst)
		}
	}
	if len(out) == 0 {
		return nil, apiErr("InvalidInstanceID.NotFound")
	}
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{Instances: out}}}, nil
}

func (f *fakeEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	if f.createTagsErr != nil {
		return nil, f.createTagsErr
	}
	f.tagged = append(f.tagged, in.Resources...)
	return &ec2.CreateTagsOutput{}, nil
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, _ *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
}

func (f *fakeEC2) CreateSecurityGroup(_ context.Context, in *ec2.CreateSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error) {
	f.createdGroups++
	id := "sg-quarantine"
	f.groups = append(f.groups, ec2types.SecurityGroup{GroupId: aws.String(id), GroupName: in.GroupName})
	return &ec2.CreateSecurityGroupOutput{GroupId: aws.String(id)}, nil
}

func (f *fakeEC2) RevokeSecurityGroupEgress(_ context.Context, _ *ec2.RevokeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error) {
	f.revoked++
	return &ec2.RevokeSecurityGroupEgressOutput{}, nil
}

func (f *fakeEC2) ModifyNetworkInterfaceAttribute(_ context.Context, in *ec2.ModifyNetworkInterfaceAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyNetworkInterfaceAttributeOutput, error) {
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	if f.modified == nil {
		f.modified = make(map[string][]string)
	}
	f.modified[aws.ToString(in.NetworkInterfaceId)] = in.Groups
	return &ec2.ModifyNetworkInterfaceAttributeOutput{}, nil
}

func (f *fakeEC2) DescribeIamInstanceProfileAssociations(_ context.Context, _ *ec2.DescribeIamInstanceProfileAssociationsInput, _ ...func(*ec2.Options)) (*ec2.DescribeIamInstanceProfileAssociationsOutput, error) {
	return &ec2.DescribeIamInstanceProfileAssociationsOutput{IamInstanceProfileAssociations: f.associations}, nil
}

func (f *fakeEC2) CreateSnapshot(_ context.Context, in *ec2.CreateSnapshotInput, _ ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error) {
	id := "snap-" + aws.ToString(in.VolumeId)
	f.snapshots = append(f.snapshots, id)
	return &ec2.CreateSnapshotOutput{SnapshotId: aws.String(id)}, nil
}

func (f *fakeEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	f.terminated = append(f.terminated, in.InstanceIds...)
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeEC2) DescribeNetworkAcls(_ context.Context, _ *ec2.DescribeNetworkAclsInput, _ ...func(*ec2.Options)) (*ec2.DescribeNetworkAclsOutput, error) {
	return &ec2.DescribeNetworkAclsOutput{NetworkAcls: f.nacls}, nil
}

func (f *fakeEC2) CreateNetworkAclEntry(_ context.Context, in *ec2.CreateNetworkAclEntryInput, _ ...func(*ec2.Options)) (*ec2.CreateNetworkAclEntryOutput, error) {
	f.naclWrites = append(f.naclWrites, in)
	return &ec2.CreateNetworkAclEntryOutput{}, nil
}

func runningInstance(id string) ec2types.Instance {
	return ec2types.Instance{
		InstanceId: aws.String(id),
		VpcId:      aws.String("vpc-1"),
		SubnetId:   aws.String("subnet-1"),
		State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		NetworkInterfaces: []ec2types.InstanceNetworkInterface{{
			NetworkInterfaceId: aws.String("eni-1"),
			Groups:             []ec2types.GroupIdentifier{{GroupId: aws.String("sg-web")}},
		}},
		BlockDeviceMappings: []ec2types.InstanceBlockDeviceMapping{
			{DeviceName: aws.String("/dev/xvda"), Ebs: &ec2types.EbsInstanceBlockDevice{VolumeId: aws.String("vol-1")}},
			{DeviceName: aws.String("/dev/xvdb"), Ebs: &ec2types.EbsInstanceBlockDevice{VolumeId: aws.String("vol-2")}},
		},
	}
}

// ── IAM ──────────────────────────────────────────────────────────────────────

type fakeIAM struct {
	common.IAMClient

	users map[string]bool
	roles map[string]bool

	profileRoles []string
	attachErr    error

	tagged          []string
	keyUpdates      []*iam.UpdateAccessKeyInput
	userAttachments []string
	roleAttachments []string
	rolePolicies    []*iam.PutRolePolicyInput
}

func (f *fakeIAM) GetUser(_ context.Context, in *iam.GetUserInput, _ ...func(*iam.Options)) (*iam.GetUserOutput, error) {
	name := aws.ToString(in.UserName)
	if !f.users[name] {
		return nil, apiErr("NoSuchEntity")
	}
	return &iam.GetUserOutput{User: &iamtypes.User{UserName: aws.String(name), Arn: aws.String("arn:aws:iam::1:user/" + name)}}, nil
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	name := aws.ToString(in.RoleName)
	if !f.roles[name] {
		return nil, apiErr("NoSuchEntity")
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: aws.String(name), Arn: aws.String("arn:aws:iam::1:role/" + name)}}, nil
}

func (f *fakeIAM) GetInstanceProfile(_ context.Context, in *iam.GetInstanceProfileInput, _ ...func(*iam.Options)) (*iam.GetInstanceProfileOutput, error) {
	var roles []iamtypes.Role
	for _, r := range f.profileRoles {
		roles = append(roles, iamtypes.Role{RoleName: aws.String(r)})
	}
	return &iam.GetInstanceProfileOutput{InstanceProfile: &iamtypes.InstanceProfile{
		InstanceProfileName: in.InstanceProfileName,
		Roles:               roles,
	}}, nil
}

func (f *fakeIAM) TagUser(_ context.Context, in *iam.TagUserInput, _ ...func(*iam.Options)) (*iam.TagUserOutput, error) {
	f.tagged = append(f.tagged, "user/"+aws.ToString(in.UserName))
	return &iam.TagUserOutput{}, nil
}

func (f *fakeIAM) TagRole(_ context.Context, in *iam.TagRoleInput, _ ...func(*iam.Options)) (*iam.TagRoleOutput, error) {
	f.tagged = append(f.tagged, "role/"+aws.ToString(in.RoleName))
	return &iam.TagRoleOutput{}, nil
}

func (f *fakeIAM) UpdateAccessKey(_ context.Context, in *iam.UpdateAccessKeyInput, _ ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error) {
	f.keyUpdates = append(f.keyUpdates, in)
	return &iam.UpdateAccessKeyOutput{}, nil
}

func (f *fakeIAM) AttachUserPolicy(_ context.Context, in *iam.AttachUserPolicyInput, _ ...func(*iam.Options)) (*iam.AttachUserPolicyOutput, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.userAttachments = append(f.userAttachments, aws.ToString(in.UserName))
	return &iam.AttachUserPolicyOutput{}, nil
}

func (f *fakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.roleAttachments = append(f.roleAttachments, aws.ToString(in.RoleName))
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.rolePolicies = append(f.rolePolicies, in)
	return &iam.PutRolePolicyOutput{}, nil
}

func (f *fakeIAM) ListAttachedUserPolicies(_ context.Context, _ *iam.ListAttachedUserPoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedUserPoliciesOutput, error) {
	return &iam.ListAttachedUserPoliciesOutput{AttachedPolicies: []iamtypes.AttachedPolicy{{PolicyName: aws.String("ReadOnlyAccess")}}}, nil
}

func (f *fakeIAM) ListAttachedRolePolicies(_ context.Context, _ *iam.ListAttachedRolePoliciesInput, _ ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error) {
	return &iam.ListAttachedRolePoliciesOutput{}, nil
}

func (f *fakeIAM) ListAccessKeys(_ context.Context, _ *iam.ListAccessKeysInput, _ ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	return &iam.ListAccessKeysOutput{AccessKeyMetadata: []iamtypes.AccessKeyMetadata{
		{AccessKeyId: aws.String("AKIAEXAMPLE"), Status: iamtypes.StatusTypeActive},
	}}, nil
}

// ── CloudTrail ───────────────────────────────────────────────────────────────

type fakeCloudTrail struct {
	common.CloudTrailClient

	trails    []cttypes.Trail
	logging   map[string]bool
	started   []string
	lookupErr error
}

func (f *fakeCloudTrail) DescribeTrails(_ context.Context, _ *cloudtrail.DescribeTrailsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
	return &cloudtrail.DescribeTrailsOutput{TrailList: f.trails}, nil
}

func (f *fakeCloudTrail) GetTrailStatus(_ context.Context, in *cloudtrail.GetTrailStatusInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
	return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(f.logging[aws.ToString(in.Name)])}, nil
}

func (f *fakeCloudTrail) StartLogging(_ context.Context, in *cloudtrail.StartLoggingInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.StartLoggingOutput, error) {
	f.started = append(f.started, aws.ToString(in.Name))
	return &cloudtrail.StartLoggingOutput{}, nil
}

func (f *fakeCloudTrail) LookupEvents(_ context.Context, _ *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return &cloudtrail.LookupEventsOutput{Events: []cttypes.Event{
		{EventName: aws.String("ListBuckets"), EventSource: aws.String("s3.amazonaws.com"), EventTime: aws.Time(fixedNow)},
	}}, nil
}

// ── S3 ───────────────────────────────────────────────────────────────────────

type fakeS3 struct {
	common.S3Client

	existingTags []s3types.Tag
	tagErr       error
	putTagging   *s3.PutBucketTaggingInput
	blocked      []string
}

func (f *fakeS3) GetBucketTagging(_ context.Context, _ *s3.GetBucketTaggingInput, _ ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
	if f.tagErr != nil {
		return nil, f.tagErr
	}
	return &s3.GetBucketTaggingOutput{TagSet: f.existingTags}, nil
}

func (f *fakeS3) PutBucketTagging(_ context.Context, in *s3.PutBucketTaggingInput, _ ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error) {
	f.putTagging = in
	return &s3.PutBucketTaggingOutput{}, nil
}

func (f *fakeS3) PutPublicAccessBlock(_ context.Context, in *s3.PutPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error) {
	f.blocked = append(f.blocked, aws.ToString(in.Bucket))
	return &s3.PutPublicAccessBlockOutput{}, nil
}

func (f *fakeS3) GetBucketLocation(_ context.Context, _ *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	return &s3.GetBucketLocationOutput{LocationConstraint: s3types.BucketLocationConstraintEuWest1}, nil
}

func (f *fakeS3) GetBucketPolicyStatus(_ context.Context, _ *s3.GetBucketPolicyStatusInput, _ ...func(*s3.Options)) (*s3.GetBucketPolicyStatusOutput, error) {
	return &s3.GetBucketPolicyStatusOutput{PolicyStatus: &s3types.PolicyStatus{IsPublic: aws.Bool(true)}}, nil
}

func (f *fakeS3) GetBucketEncryption(_ context.Context, _ *s3.GetBucketEncryptionInput, _ ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	return nil, apiErr("ServerSideEncryptionConfigurationNotFoundError")
}

func (f *fakeS3) GetBucketVersioning(_ context.Context, _ *s3.GetBucketVersioningInput, _ ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	return &s3.GetBucketVersioningOutput{}, nil
}

func (f *fakeS3) GetPublicAccessBlock(_ context.Context, _ *s3.GetPublicAccessBlockInput, _ ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	return nil, apiErr("NoSuchPublicAccessBlockConfiguration")
}

// ── RDS ──────────────────────────────────────────────────────────────────────

type fakeRDS struct {
	common.RDSClient

	db              *rdstypes.DBInstance
	tagged          []string
	instanceMods    []*rds.ModifyDBInstanceInput
	clusterMods     []*rds.ModifyDBClusterInput
	snapshots       []string
	clusterSnapshot []string
}

func (f *fakeRDS) DescribeDBInstances(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if f.db == nil {
		return nil, apiErr("DBInstanceNotFound")
	}
	return &rds.DescribeDBInstancesOutput{DBInstances: []rdstypes.DBInstance{*f.db}}, nil
}

func (f *fakeRDS) AddTagsToResource(_ context.Context, in *rds.AddTagsToResourceInput, _ ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error) {
	f.tagged = append(f.tagged, aws.ToString(in.ResourceName))
	return &rds.AddTagsToResourceOutput{}, nil
}

func (f *fakeRDS) CreateDBSnapshot(_ context.Context, in *rds.CreateDBSnapshotInput, _ ...func(*rds.Options)) (*rds.CreateDBSnapshotOutput, error) {
	f.snapshots = append(f.snapshots, aws.ToString(in.DBSnapshotIdentifier))
	return &rds.CreateDBSnapshotOutput{DBSnapshot: &rdstypes.DBSnapshot{DBSnapshotArn: aws.String("arn:snap")}}, nil
}

func (f *fakeRDS) CreateDBClusterSnapshot(_ context.Context, in *rds.CreateDBClusterSnapshotInput, _ ...func(*rds.Options)) (*rds.CreateDBClusterSnapshotOutput, error) {
	f.clusterSnapshot = append(f.clusterSnapshot, aws.ToString(in.DBClusterSnapshotIdentifier))
	return &rds.CreateDBClusterSnapshotOutput{}, nil
}

func (f *fakeRDS) ModifyDBInstance(_ context.Context, in *rds.ModifyDBInstanceInput, _ ...func(*rds.Options)) (*rds.ModifyDBInstanceOutput, error) {
	f.instanceMods = append(f.instanceMods, in)
	return &rds.ModifyDBInstanceOutput{}, nil
}

func (f *fakeRDS) ModifyDBCluster(_ context.Context, in *rds.ModifyDBClusterInput, _ ...func(*rds.Options)) (*rds.ModifyDBClusterOutput, error) {
	f.clusterMods = append(f.clusterMods, in)
	return &rds.ModifyDBClusterOutput{}, nil
}

// ── SSM ──────────────────────────────────────────────────────────────────────

type fakeSSM struct {
	common.SSMClient

	managed  bool
	statuses []ssmtypes.CommandInvocationStatus
	polls    int
}

func (f *fakeSSM) DescribeInstanceInformation(_ context.Context, _ *ssm.DescribeInstanceInformationInput, _ ...func(*ssm.Options)) (*ssm.DescribeInstanceInformationOutput, error) {
	out := &ssm.DescribeInstanceInformationOutput{}
	if f.managed {
		out.InstanceInformationList = []ssmtypes.InstanceInformation{{InstanceId: aws.String("i-1")}}
	}
	return out, nil
}

func (f *fakeSSM) SendCommand(_ context.Context, _ *ssm.SendCommandInput, _ ...func(*ssm.Options)) (*ssm.SendCommandOutput, error) {
	return &ssm.SendCommandOutput{Command: &ssmtypes.Command{CommandId: aws.String("cmd-1")}}, nil
}

func (f *fakeSSM) GetCommandInvocation(_ context.Context, _ *ssm.GetCommandInvocationInput, _ ...func(*ssm.Options)) (*ssm.GetCommandInvocationOutput, error) {
	i := f.polls
	f.polls++
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return &ssm.GetCommandInvocationOutput{
		Status:                f.statuses[i],
		StandardOutputContent: aws.String("== processes ==\nroot 1 init"),
	}, nil
}

// ── CloudWatch Logs ──────────────────────────────────────────────────────────

type fakeLogs struct {
	common.LogsClient

	query    *cloudwatchlogs.StartQueryInput
	statuses []cloudwatchlogs.GetQueryResultsOutput
	polls    int
}

func (f *fakeLogs) StartQuery(_ context.Context, in *cloudwatchlogs.StartQueryInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error) {
	f.query = in
	return &cloudwatchlogs.StartQueryOutput{QueryId: aws.String("q-1")}, nil
}

func (f *fakeLogs) GetQueryResults(_ context.Context, _ *cloudwatchlogs.GetQueryResultsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error) {
	i := f.polls
	f.polls++
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	out := f.statuses[i]
	return &out, nil
}

// ── ELBv2 ────────────────────────────────────────────────────────────────────

type fakeELB struct {
	common.ELBv2Client

	groups       []elbv2types.TargetGroup
	members      map[string][]string
	deregistered map[string][]string
}

func (f *fakeELB) DescribeTargetGroups(_ context.Context, _ *elbv2.DescribeTargetGroupsInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeTargetGroupsOutput, error) {
	return &elbv2.DescribeTargetGroupsOutput{TargetGroups: f.groups}, nil
}

func (f *fakeELB) DescribeTargetHealth(_ context.Context, in *elbv2.DescribeTargetHealthInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeTargetHealthOutput, error) {
	var out []elbv2types.TargetHealthDescription
	for _, id := range f.members[aws.ToString(in.TargetGroupArn)] {
		out = append(out, elbv2types.TargetHealthDescription{Target: &elbv2types.TargetDescription{Id: aws.String(id), Port: aws.Int32(80)}})
	}
	return &elbv2.DescribeTargetHealthOutput{TargetHealthDescriptions: out}, nil
}

func (f *fakeELB) DeregisterTargets(_ context.Context, in *elbv2.DeregisterTargetsInput, _ ...func(*elbv2.Options)) (*elbv2.DeregisterTargetsOutput, error) {
	if f.deregistered == nil {
		f.deregistered = make(map[string][]string)
	}
	arn := aws.ToString(in.TargetGroupArn)
	for _, t := range in.Targets {
		f.deregistered[arn] = append(f.deregistered[arn], aws.ToString(t.Id))
	}
	return &elbv2.DeregisterTargetsOutput{}, nil
}

package playbooks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// ── stubs ────────────────────────────────────────────────────────────────────

// trace records the order in which stub actions execute.
type trace struct{ calls []string }

type stubAction struct {
	name   string
	status models.ActionStatus
	tr     *trace
	params []map[string]string
}

func (s *stubAction) Name() string { return s.name }

func (s *stubAction) Execute(_ context.Context, req actions.Request) models.ActionResult {
	s.tr.calls = append(s.tr.calls, s.name)
	s.params = append(s.params, req.Params)
	switch s.status {
	case models.StatusError:
		return models.Failure(s.name + " failed")
	case models.StatusSkipped:
		return models.Skipped(s.name + " skipped")
	}
	return models.Success(map[string]any{"from": s.name})
}

func ok(tr *trace, name string) *stubAction {
	return &stubAction{name: name, status: models.StatusSuccess, tr: tr}
}

func stubEC2Base(tr *trace) *EC2Base {
	return &EC2Base{
		env:               &actions.Env{},
		tag:               ok(tr, "TagInstance"),
		isolate:           ok(tr, "IsolateInstance"),
		quarantineProfile: ok(tr, "QuarantineInstanceProfile"),
		snapshot:          ok(tr, "SnapshotVolumes"),
		enrichInstance:    ok(tr, "EnrichInstance"),
		terminate:         ok(tr, "TerminateInstance"),
		blockIPs:          ok(tr, "BlockRemoteIPs"),
		deregister:        ok(tr, "DeregisterFromTargetGroups"),
		forensics:         ok(tr, "CollectForensics"),
		flowLogs:          ok(tr, "QueryFlowLogs"),
	}
}

func stubIAMBase(tr *trace) *IAMBase {
	return &IAMBase{
		env:          &actions.Env{},
		tag:          ok(tr, "TagPrincipal"),
		disableKey:   ok(tr, "DisableAccessKey"),
		quarantine:   ok(tr, "QuarantinePrincipal"),
		revoke:       ok(tr, "RevokeRoleSessions"),
		enrich:       ok(tr, "EnrichPrincipal"),
		restartTrail: ok(tr, "RestartCloudTrailLogging"),
	}
}

func stubS3Base(tr *trace) *S3Base {
	return &S3Base{
		env:    &actions.Env{},
		tag:    ok(tr, "TagBucket"),
		block:  ok(tr, "BlockPublicAccess"),
		enrich: ok(tr, "EnrichBucket"),
	}
}

func stubRDSBase(tr *trace) *RDSBase {
	return &RDSBase{
		env:      &actions.Env{},
		tag:      ok(tr, "TagDBInstance"),
		enrich:   ok(tr, "EnrichDBInstance"),
		snapshot: ok(tr, "SnapshotDBInstance"),
		restrict: ok(tr, "RestrictPublicAccess"),
		isolate:  ok(tr, "IsolateDBInstance"),
	}
}

func names(res *models.PlaybookResult) []string {
	out := make([]string, len(res.ActionResults))
	for i, r := range res.ActionResults {
		out[i] = r.ActionName
	}
	return out
}

func assertSequence(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sequence:\n got  %v\n want %v", got, want)
	}
}

var compromiseSteps = []string{
	"TagInstance", "IsolateInstance", "QuarantineInstanceProfile",
	"SnapshotVolumes", "EnrichInstance", "TerminateInstance",
}

// ── EC2 ──────────────────────────────────────────────────────────────────────

func TestEC2InstanceCompromise_Sequence(t *testing.T) {
	tr := &trace{}
	p := &EC2InstanceCompromise{base: stubEC2Base(tr)}
	res, err := p.Run(context.Background(), &models.Finding{ID: "f"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertSequence(t, names(res), compromiseSteps...)
	if res.EnrichedData["from"] != "EnrichInstance" {
		t.Errorf("EnrichedData: got %v", res.EnrichedData)
	}
}

func TestEC2InstanceCompromise_FailFast(t *testing.T) {
	tr := &trace{}
	b := stubEC2Base(tr)
	b.isolate.(*stubAction).status = models.StatusError
	p := &EC2InstanceCompromise{base: b}

	res, err := p.Run(context.Background(), &models.Finding{ID: "f", Type: "UnauthorizedAccess:EC2/TorClient"})

	var failed *playbook.PlaybookActionFailedError
	if !errors.As(err, &failed) || failed.Action != "IsolateInstance" {
		t.Fatalf("want IsolateInstance failure, got %v", err)
	}
	if len(res.ActionResults) != 2 {
		t.Fatalf("results: got %d; want 2", len(res.ActionResults))
	}
	if res.ActionResults[0].Status != models.StatusSuccess || res.ActionResults[1].Status != models.StatusError {
		t.Errorf("statuses: got %s, %s", res.ActionResults[0].Status, res.ActionResults[1].Status)
	}
	for _, r := range res.ActionResults {
		if r.ActionName == "PlaybookExecution" {
			t.Error("the playbook layer must not add a PlaybookExecution entry")
		}
	}
	assertSequence(t, tr.calls, "TagInstance", "IsolateInstance")
}

func TestEC2TorRelay_AppendsBlock(t *testing.T) {
	tr := &trace{}
	p := &EC2TorRelay{base: stubEC2Base(tr)}
	res, err := p.Run(context.Background(), &models.Finding{ID: "f"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertSequence(t, names(res), append(append([]string(nil), compromiseSteps...), "BlockRemoteIPs")...)
}

func TestEC2TorRelay_BlockNotRunAfterWorkflowFailure(t *testing.T) {
	tr := &trace{}
	b := stubEC2Base(tr)
	b.snapshot.(*stubAction).status = models.StatusError
	p := &EC2TorRelay{base: b}
	res, err := p.Run(context.Background(), &models.Finding{ID: "f"})
	if err == nil {
		t.Fatal("want failure")
	}
	if len(res.ActionResults) != 4 {
		t.Errorf("results: got %d; want 4", len(res.ActionResults))
	}
	for _, c := range tr.calls {
		if c == "BlockRemoteIPs" {
			t.Error("BlockRemoteIPs must not run after the workflow failed")
		}
	}
}

func TestEC2BruteForce_RoleBranching(t *testing.T) {
	target := &models.Finding{ID: "f", Service: models.Service{ResourceRole: "TARGET"}}
	tr := &trace{}
	res, err := (&EC2BruteForce{base: stubEC2Base(tr)}).Run(context.Background(), target)
	if err != nil {
		t.Fatalf("Run(target): %v", err)
	}
	assertSequence(t, names(res), "TagInstance", "BlockRemoteIPs", "EnrichInstance", "QueryFlowLogs")

	source := &models.Finding{ID: "f", Service: models.Service{ResourceRole: "ACTOR"}}
	tr = &trace{}
	res, err = (&EC2BruteForce{base: stubEC2Base(tr)}).Run(context.Background(), source)
	if err != nil {
		t.Fatalf("Run(source): %v", err)
	}
	assertSequence(t, names(res), compromiseSteps...)
}

func TestEC2OutboundAbuse_Containment(t *testing.T) {
	tr := &trace{}
	res, _ := (&EC2OutboundAbuse{base: stubEC2Base(tr)}).Run(context.Background(), &models.Finding{ID: "f"})
	assertSequence(t, names(res), "TagInstance", "DeregisterFromTargetGroups", "IsolateInstance", "EnrichInstance")
}

func TestEC2MaliciousExecution_ForensicsBeforeIsolation(t *testing.T) {
	tr := &trace{}
	res, _ := (&EC2MaliciousExecution{base: stubEC2Base(tr)}).Run(context.Background(), &models.Finding{ID: "f"})
	assertSequence(t, names(res), "TagInstance", "CollectForensics", "SnapshotVolumes", "EnrichInstance", "IsolateInstance")
}

func TestEC2ReconProbe(t *testing.T) {
	tr := &trace{}
	res, _ := (&EC2ReconProbe{base: stubEC2Base(tr)}).Run(context.Background(), &models.Finding{ID: "f"})
	assertSequence(t, names(res), "TagInstance", "BlockRemoteIPs", "EnrichInstance", "QueryFlowLogs")
}

// ── IAM ──────────────────────────────────────────────────────────────────────

func TestIAMLoggingTampering(t *testing.T) {
	tr := &trace{}
	res, err := (&IAMLoggingTampering{base: stubIAMBase(tr)}).Run(context.Background(), &models.Finding{ID: "f"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertSequence(t, names(res),
		"TagPrincipal", "DisableAccessKey", "QuarantinePrincipal", "RevokeRoleSessions", "EnrichPrincipal",
		"RestartCloudTrailLogging")
}

func TestIAMReconnaissance(t *testing.T) {
	tr := &trace{}
	res, _ := (&IAMReconnaissance{base: stubIAMBase(tr)}).Run(context.Background(), &models.Finding{ID: "f"})
	assertSequence(t, names(res), "TagPrincipal", "EnrichPrincipal")
}

// ── S3 ───────────────────────────────────────────────────────────────────────

func TestS3PublicExposure_PerBucket(t *testing.T) {
	tr := &trace{}
	b := stubS3Base(tr)
	f := &models.Finding{ID: "f", Resource: models.Resource{S3BucketDetails: []models.S3BucketDetail{{Name: "b1"}, {Name: "b2"}}}}
	res, err := (&S3PublicExposure{base: b}).Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertSequence(t, names(res),
		"TagBucket", "BlockPublicAccess", "EnrichBucket",
		"TagBucket", "BlockPublicAccess", "EnrichBucket")
	tag := b.tag.(*stubAction)
	if tag.params[0][actions.ParamBucketName] != "b1" || tag.params[1][actions.ParamBucketName] != "b2" {
		t.Errorf("bucket params: got %v", tag.params)
	}
}

func TestS3PublicExposure_NoBuckets(t *testing.T) {
	tr := &trace{}
	res, _ := (&S3PublicExposure{base: stubS3Base(tr)}).Run(context.Background(), &models.Finding{ID: "f"})
	assertSequence(t, names(res), "TagBucket", "BlockPublicAccess", "EnrichBucket")
}

func TestS3DataAccess_CrossFamily(t *testing.T) {
	tr := &trace{}
	p := &S3DataAccess{s3: stubS3Base(tr), iam: stubIAMBase(tr)}
	f := &models.Finding{ID: "f", Resource: models.Resource{S3BucketDetails: []models.S3BucketDetail{{Name: "b1"}}}}
	res, err := p.Run(context.Background(), f)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertSequence(t, names(res),
		"TagBucket", "BlockPublicAccess", "EnrichBucket",
		"TagPrincipal", "DisableAccessKey", "QuarantinePrincipal", "RevokeRoleSessions", "EnrichPrincipal")
	if res.EnrichedData["from"] != "EnrichPrincipal" {
		t.Errorf("EnrichedData: got %v; want the last successful enrichment", res.EnrichedData)
	}
}

// ── RDS ──────────────────────────────────────────────────────────────────────

func rdsLogin(auth string) *models.Finding {
	return &models.Finding{ID: "f", Resource: models.Resource{
		RdsDbInstanceDetails: &models.RdsDbInstanceDetails{DbInstanceIdentifier: "db-1"},
		RdsDbUserDetails:     &models.RdsDbUserDetails{User: "app_user", AuthMethod: auth},
	}}
}

func TestRDSSuspiciousLogin_AuthBranching(t *testing.T) {
	tr := &trace{}
	quarantine := ok(tr, "QuarantinePrincipal")
	p := &RDSSuspiciousLogin{rds: stubRDSBase(tr), quarantine: quarantine}
	res, err := p.Run(context.Background(), rdsLogin(models.AuthMethodIAM))
	if err != nil {
		t.Fatalf("Run(IAM): %v", err)
	}
	assertSequence(t, names(res),
		"TagDBInstance", "EnrichDBInstance", "SnapshotDBInstance", "RestrictPublicAccess", "QuarantinePrincipal")
	if quarantine.params[0][actions.ParamPrincipalName] != "app_user" {
		t.Errorf("principal param: got %v", quarantine.params[0])
	}

	tr = &trace{}
	p = &RDSSuspiciousLogin{rds: stubRDSBase(tr), quarantine: ok(tr, "QuarantinePrincipal")}
	res, err = p.Run(context.Background(), rdsLogin(models.AuthMethodPassword))
	if err != nil {
		t.Fatalf("Run(PASSWORD): %v", err)
	}
	assertSequence(t, names(res),
		"TagDBInstance", "EnrichDBInstance", "SnapshotDBInstance", "RestrictPublicAccess", "IsolateDBInstance")
}

func TestRDSLoginProbe(t *testing.T) {
	tr := &trace{}
	res, _ := (&RDSLoginProbe{base: stubRDSBase(tr)}).Run(context.Background(), rdsLogin(models.AuthMethodPassword))
	assertSequence(t, names(res), "TagDBInstance", "EnrichDBInstance", "RestrictPublicAccess")
}

// ── Registration table ───────────────────────────────────────────────────────

func TestRegistrations_NoDuplicates(t *testing.T) {
	if d := playbook.Duplicates(Registrations()); len(d) != 0 {
		t.Errorf("finding types claimed twice: %v", d)
	}
}

func TestRegistrations_NamesMatchPlaybooks(t *testing.T) {
	env := &actions.Env{Config: config.Default()}
	for _, reg := range Registrations() {
		if len(reg.FindingTypes) == 0 {
			t.Errorf("%s: no finding types", reg.Name)
		}
		if got := reg.Factory(env).Name(); got != reg.Name {
			t.Errorf("factory for %s builds %s", reg.Name, got)
		}
	}
}

func TestNewRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	cases := map[string]string{
		"UnauthorizedAccess:EC2/TorClient":                       NameEC2InstanceCompromise,
		"UnauthorizedAccess:EC2/TorRelay":                        NameEC2TorRelay,
		"UnauthorizedAccess:EC2/SSHBruteForce":                   NameEC2BruteForce,
		"Recon:EC2/Portscan":                                     NameEC2OutboundAbuse,
		"Execution:EC2/MaliciousFile":                            NameEC2MaliciousExecution,
		"UnauthorizedAccess:IAMUser/MaliciousIPCaller":           NameIAMCredentialCompromise,
		"Stealth:IAMUser/CloudTrailLoggingDisabled":              NameIAMLoggingTampering,
		"Policy:IAMUser/RootCredentialUsage":                     NameIAMReconnaissance,
		"Policy:S3/BucketPublicAccessGranted":                    NameS3PublicExposure,
		"Exfiltration:S3/MaliciousIPCaller":                      NameS3DataAccess,
		"CredentialAccess:RDS/MaliciousIPCaller.SuccessfulLogin": NameRDSSuspiciousLogin,
		"CredentialAccess:RDS/MaliciousIPCaller.FailedLogin":     NameRDSLoginProbe,
	}
	for typ, want := range cases {
		reg, ok := r.Lookup(typ)
		if !ok {
			t.Errorf("%s: not registered", typ)
			continue
		}
		if reg.Name != want {
			t.Errorf("%s: got %s; want %s", typ, reg.Name, want)
		}
	}
	if len(r.Registrations()) != len(Registrations()) {
		t.Errorf("Registrations: got %d; want %d", len(r.Registrations()), len(Registrations()))
	}
}

// ── End to end through the registry ──────────────────────────────────────────

// isolationDeniedEC2 lets tagging succeed and fails interface modification.
type isolationDeniedEC2 struct {
	common.EC2Client
}

func (isolationDeniedEC2) CreateTags(context.Context, *ec2.CreateTagsInput, ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	return &ec2.CreateTagsOutput{}, nil
}

func (isolationDeniedEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{{
		InstanceId:        aws.String(in.InstanceIds[0]),
		VpcId:             aws.String("vpc-1"),
		State:             &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		NetworkInterfaces: []ec2types.InstanceNetworkInterface{{NetworkInterfaceId: aws.String("eni-1")}},
	}}}}}, nil
}

func (isolationDeniedEC2) DescribeSecurityGroups(context.Context, *ec2.DescribeSecurityGroupsInput, ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: []ec2types.SecurityGroup{{GroupId: aws.String("sg-q")}}}, nil
}

func (isolationDeniedEC2) ModifyNetworkInterfaceAttribute(context.Context, *ec2.ModifyNetworkInterfaceAttributeInput, ...func(*ec2.Options)) (*ec2.ModifyNetworkInterfaceAttributeOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "denied"}
}

func TestTorClient_IsolationErrorStopsPlaybook(t *testing.T) {
	f := &models.Finding{
		ID:       "f-tor",
		Type:     "UnauthorizedAccess:EC2/TorClient",
		Severity: 8,
		Resource: models.Resource{InstanceDetails: &models.InstanceDetails{InstanceID: "i-1"}},
	}
	build := func(context.Context) (*actions.Env, error) {
		return &actions.Env{
			Clients: &common.ClientSet{EC2: isolationDeniedEC2{}},
			Config:  config.Default(),
			Region:  "us-east-1",
		}, nil
	}

	pb, err := NewRegistry().GetInstance(context.Background(), f.Type, build)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	res, err := pb.Run(context.Background(), f)

	var failed *playbook.PlaybookActionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("want *PlaybookActionFailedError, got %v", err)
	}
	if len(res.ActionResults) != 2 {
		t.Fatalf("results: got %d (%v); want 2", len(res.ActionResults), names(res))
	}
	if r := res.ActionResults[0]; r.ActionName != "TagInstance" || r.Status != models.StatusSuccess {
		t.Errorf("first: got %s %s", r.ActionName, r.Status)
	}
	if r := res.ActionResults[1]; r.ActionName != "IsolateInstance" || r.Status != models.StatusError {
		t.Errorf("second: got %s %s", r.ActionName, r.Status)
	}
}

package findings

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// ── stubs ────────────────────────────────────────────────────────────────────

type stubGuardDuty struct {
	out *guardduty.GetFindingsOutput
	err error
	in  *guardduty.GetFindingsInput
}

func (s *stubGuardDuty) GetFindings(_ context.Context, in *guardduty.GetFindingsInput, _ ...func(*guardduty.Options)) (*guardduty.GetFindingsOutput, error) {
	s.in = in
	return s.out, s.err
}

func sdkFinding() gdtypes.Finding {
	return gdtypes.Finding{
		Id:          aws.String("f-1"),
		AccountId:   aws.String("111122223333"),
		Region:      aws.String("us-west-2"),
		Type:        aws.String("UnauthorizedAccess:EC2/SSHBruteForce"),
		Description: aws.String("brute force"),
		Severity:    aws.Float64(5),
		CreatedAt:   aws.String("2024-03-01T10:00:00.000Z"),
		Resource: &gdtypes.Resource{
			ResourceType: aws.String("Instance"),
			InstanceDetails: &gdtypes.InstanceDetails{
				InstanceId: aws.String("i-abc"),
				NetworkInterfaces: []gdtypes.NetworkInterface{{
					NetworkInterfaceId: aws.String("eni-1"),
					VpcId:              aws.String("vpc-1"),
					SubnetId:           aws.String("subnet-1"),
					SecurityGroups:     []gdtypes.SecurityGroup{{GroupId: aws.String("sg-1")}},
				}},
				Tags: []gdtypes.Tag{{Key: aws.String("env"), Value: aws.String("prod")}},
			},
		},
		Service: &gdtypes.Service{
			DetectorId:   aws.String("det-1"),
			ResourceRole: aws.String("TARGET"),
			Count:        aws.Int32(12),
			Action: &gdtypes.Action{
				ActionType: aws.String("NETWORK_CONNECTION"),
				NetworkConnectionAction: &gdtypes.NetworkConnectionAction{
					ConnectionDirection: aws.String("INBOUND"),
					LocalPortDetails:    &gdtypes.LocalPortDetails{Port: aws.Int32(22), PortName: aws.String("SSH")},
					RemoteIpDetails: &gdtypes.RemoteIpDetails{
						IpAddressV4: aws.String("198.51.100.1"),
						Country:     &gdtypes.Country{CountryName: aws.String("Nowhere")},
					},
				},
			},
		},
	}
}

// ── Convert ──────────────────────────────────────────────────────────────────

func TestConvert_InstanceFinding(t *testing.T) {
	f := Convert(sdkFinding())

	if f.ID != "f-1" || f.Type != "UnauthorizedAccess:EC2/SSHBruteForce" || f.Severity != 5 {
		t.Errorf("top-level fields: got %+v", f)
	}
	if f.CreatedAt.IsZero() {
		t.Error("CreatedAt: want parsed timestamp")
	}
	if f.InstanceID() != "i-abc" {
		t.Errorf("InstanceID: got %q", f.InstanceID())
	}
	nics := f.Resource.InstanceDetails.NetworkInterfaces
	if len(nics) != 1 || nics[0].VpcID != "vpc-1" || len(nics[0].SecurityGroups) != 1 {
		t.Errorf("network interfaces: got %+v", nics)
	}
	if f.Service.Count != 12 || f.ResourceRole() != models.RoleTarget {
		t.Errorf("service: got %+v", f.Service)
	}
	nc := f.Service.Action.NetworkConnectionAction
	if nc == nil || nc.LocalPortDetails.Port != 22 {
		t.Fatalf("network connection action: got %+v", nc)
	}
	if ips := f.RemoteIPs(); len(ips) != 1 || ips[0] != "198.51.100.1" {
		t.Errorf("RemoteIPs: got %v", ips)
	}
}

func TestConvert_RDSAndS3Details(t *testing.T) {
	in := gdtypes.Finding{
		Id: aws.String("f-2"),
		Resource: &gdtypes.Resource{
			ResourceType:         aws.String("RDSDBInstance"),
			RdsDbInstanceDetails: &gdtypes.RdsDbInstanceDetails{DbInstanceIdentifier: aws.String("db-1")},
			RdsDbUserDetails:     &gdtypes.RdsDbUserDetails{User: aws.String("app"), AuthMethod: aws.String("IAM")},
			S3BucketDetails:      []gdtypes.S3BucketDetail{{Name: aws.String("bucket-a")}},
		},
	}
	f := Convert(in)
	if f.Resource.RdsDbInstanceDetails.DbInstanceIdentifier != "db-1" {
		t.Errorf("RDS instance: got %+v", f.Resource.RdsDbInstanceDetails)
	}
	if f.Resource.RdsDbUserDetails.AuthMethod != models.AuthMethodIAM {
		t.Errorf("RDS user: got %+v", f.Resource.RdsDbUserDetails)
	}
	if len(f.Resource.S3BucketDetails) != 1 || f.Resource.S3BucketDetails[0].Name != "bucket-a" {
		t.Errorf("S3 buckets: got %+v", f.Resource.S3BucketDetails)
	}
}

func TestConvert_BadTimestamp(t *testing.T) {
	in := gdtypes.Finding{Id: aws.String("f-3"), CreatedAt: aws.String("yesterday")}
	if f := Convert(in); !f.CreatedAt.IsZero() {
		t.Errorf("CreatedAt: want zero, got %v", f.CreatedAt)
	}
}

// ── Fetcher ──────────────────────────────────────────────────────────────────

func TestFetcher_Get(t *testing.T) {
	stub := &stubGuardDuty{out: &guardduty.GetFindingsOutput{Findings: []gdtypes.Finding{sdkFinding()}}}
	f, err := NewFetcher(stub).Get(context.Background(), "det-1", "f-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.ID != "f-1" {
		t.Errorf("ID: got %q", f.ID)
	}
	if aws.ToString(stub.in.DetectorId) != "det-1" || len(stub.in.FindingIds) != 1 {
		t.Errorf("request: got %+v", stub.in)
	}
}

func TestFetcher_NotFound(t *testing.T) {
	stub := &stubGuardDuty{out: &guardduty.GetFindingsOutput{}}
	if _, err := NewFetcher(stub).Get(context.Background(), "det-1", "missing"); err == nil {
		t.Error("want error for empty result")
	}
}

func TestFetcher_APIError(t *testing.T) {
	boom := errors.New("throttled")
	stub := &stubGuardDuty{err: boom}
	if _, err := NewFetcher(stub).Get(context.Background(), "det-1", "f-1"); !errors.Is(err, boom) {
		t.Errorf("want wrapped API error, got %v", err)
	}
}

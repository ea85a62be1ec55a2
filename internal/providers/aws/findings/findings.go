// Package findings fetches GuardDuty findings through the SDK and converts
// them into models.Finding. The CLI uses it to replay a live finding through
// the same engine path the Lambda handler takes for EventBridge events.
package findings

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/guardduty"
	gdtypes "github.com/aws/aws-sdk-go-v2/service/guardduty/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// Fetcher retrieves findings from a GuardDuty detector.
type Fetcher struct {
	client common.GuardDutyClient
}

// NewFetcher returns a Fetcher backed by client.
func NewFetcher(client common.GuardDutyClient) *Fetcher {
	return &Fetcher{client: client}
}

// Get returns the finding findingID from detectorID.
func (f *Fetcher) Get(ctx context.Context, detectorID, findingID string) (*models.Finding, error) {
	out, err := f.client.GetFindings(ctx, &guardduty.GetFindingsInput{
		DetectorId: aws.String(detectorID),
		FindingIds: []string{findingID},
	})
	if err != nil {
		return nil, fmt.Errorf("GuardDuty GetFindings %s: %w", findingID, err)
	}
	if len(out.Findings) == 0 {
		return nil, fmt.Errorf("finding %s not found in detector %s", findingID, detectorID)
	}
	return Convert(out.Findings[0]), nil
}

// Convert maps an SDK finding onto the model used by the engine.
func Convert(in gdtypes.Finding) *models.Finding {
	f := &models.Finding{
		ID:            aws.ToString(in.Id),
		AccountID:     aws.ToString(in.AccountId),
		Region:        aws.ToString(in.Region),
		Partition:     aws.ToString(in.Partition),
		Arn:           aws.ToString(in.Arn),
		Type:          aws.ToString(in.Type),
		Title:         aws.ToString(in.Title),
		Description:   aws.ToString(in.Description),
		Severity:      aws.ToFloat64(in.Severity),
		SchemaVersion: aws.ToString(in.SchemaVersion),
		CreatedAt:     parseTime(in.CreatedAt),
		UpdatedAt:     parseTime(in.UpdatedAt),
	}
	if in.Resource != nil {
		f.Resource = convertResource(in.Resource)
	}
	if in.Service != nil {
		f.Service = convertService(in.Service)
	}
	return f
}

// ---------------------------------------------------------------------------
// Resource
// ---------------------------------------------------------------------------

func convertResource(in *gdtypes.Resource) models.Resource {
	r := models.Resource{ResourceType: aws.ToString(in.ResourceType)}

	if d := in.InstanceDetails; d != nil {
		inst := &models.InstanceDetails{
			InstanceID:       aws.ToString(d.InstanceId),
			InstanceType:     aws.ToString(d.InstanceType),
			InstanceState:    aws.ToString(d.InstanceState),
			AvailabilityZone: aws.ToString(d.AvailabilityZone),
			ImageID:          aws.ToString(d.ImageId),
			LaunchTime:       aws.ToString(d.LaunchTime),
			Tags:             convertTags(d.Tags),
		}
		if p := d.IamInstanceProfile; p != nil {
			inst.IamInstanceProfile = &models.IamInstanceProfile{Arn: aws.ToString(p.Arn), ID: aws.ToString(p.Id)}
		}
		for _, ni := range d.NetworkInterfaces {
			nic := models.NetworkInterface{
				NetworkInterfaceID: aws.ToString(ni.NetworkInterfaceId),
				PrivateIPAddress:   aws.ToString(ni.PrivateIpAddress),
				PublicIP:           aws.ToString(ni.PublicIp),
				SubnetID:           aws.ToString(ni.SubnetId),
				VpcID:              aws.ToString(ni.VpcId),
			}
			for _, sg := range ni.SecurityGroups {
				nic.SecurityGroups = append(nic.SecurityGroups, models.SecurityGroup{
					GroupID:   aws.ToString(sg.GroupId),
					GroupName: aws.ToString(sg.GroupName),
				})
			}
			inst.NetworkInterfaces = append(inst.NetworkInterfaces, nic)
		}
		r.InstanceDetails = inst
	}

	if d := in.AccessKeyDetails; d != nil {
		r.AccessKeyDetails = &models.AccessKeyDetails{
			AccessKeyID: aws.ToString(d.AccessKeyId),
			PrincipalID: aws.ToString(d.PrincipalId),
			UserName:    aws.ToString(d.UserName),
			UserType:    aws.ToString(d.UserType),
		}
	}

	for _, b := range in.S3BucketDetails {
		r.S3BucketDetails = append(r.S3BucketDetails, models.S3BucketDetail{
			Arn:  aws.ToString(b.Arn),
			Name: aws.ToString(b.Name),
			Type: aws.ToString(b.Type),
			Tags: convertTags(b.Tags),
		})
	}

	if d := in.RdsDbInstanceDetails; d != nil {
		r.RdsDbInstanceDetails = &models.RdsDbInstanceDetails{
			DbInstanceIdentifier: aws.ToString(d.DbInstanceIdentifier),
			DbClusterIdentifier:  aws.ToString(d.DbClusterIdentifier),
			DbInstanceArn:        aws.ToString(d.DbInstanceArn),
			Engine:               aws.ToString(d.Engine),
			EngineVersion:        aws.ToString(d.EngineVersion),
			Tags:                 convertTags(d.Tags),
		}
	}

	if d := in.RdsDbUserDetails; d != nil {
		r.RdsDbUserDetails = &models.RdsDbUserDetails{
			User:        aws.ToString(d.User),
			Application: aws.ToString(d.Application),
			Database:    aws.ToString(d.Database),
			SSL:         aws.ToString(d.Ssl),
			AuthMethod:  aws.ToString(d.AuthMethod),
		}
	}
	return r
}

func convertTags(in []gdtypes.Tag) []models.Tag {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Tag, 0, len(in))
	for _, t := range in {
		out = append(out, models.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return out
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func convertService(in *gdtypes.Service) models.Service {
	s := models.Service{
		DetectorID:   aws.ToString(in.DetectorId),
		ServiceName:  aws.ToString(in.ServiceName),
		Archived:     aws.ToBool(in.Archived),
		Count:        int(aws.ToInt32(in.Count)),
		ResourceRole: aws.ToString(in.ResourceRole),
		EventFirst:   aws.ToString(in.EventFirstSeen),
		EventLast:    aws.ToString(in.EventLastSeen),
	}
	a := in.Action
	if a == nil {
		return s
	}
	s.Action.ActionType = aws.ToString(a.ActionType)

	if nc := a.NetworkConnectionAction; nc != nil {
		out := &models.NetworkConnectionAction{
			ConnectionDirection: aws.ToString(nc.ConnectionDirection),
			Protocol:            aws.ToString(nc.Protocol),
			Blocked:             aws.ToBool(nc.Blocked),
			RemoteIPDetails:     convertRemoteIP(nc.RemoteIpDetails),
		}
		if p := nc.LocalPortDetails; p != nil {
			out.LocalPortDetails = &models.PortDetails{Port: int(aws.ToInt32(p.Port)), PortName: aws.ToString(p.PortName)}
		}
		if p := nc.RemotePortDetails; p != nil {
			out.RemotePortDetails = &models.PortDetails{Port: int(aws.ToInt32(p.Port)), PortName: aws.ToString(p.PortName)}
		}
		s.Action.NetworkConnectionAction = out
	}

	if pp := a.PortProbeAction; pp != nil {
		out := &models.PortProbeAction{Blocked: aws.ToBool(pp.Blocked)}
		for _, d := range pp.PortProbeDetails {
			detail := models.PortProbeDetail{RemoteIPDetails: convertRemoteIP(d.RemoteIpDetails)}
			if p := d.LocalPortDetails; p != nil {
				detail.LocalPortDetails = &models.PortDetails{Port: int(aws.ToInt32(p.Port)), PortName: aws.ToString(p.PortName)}
			}
			out.PortProbeDetails = append(out.PortProbeDetails, detail)
		}
		s.Action.PortProbeAction = out
	}

	if api := a.AwsApiCallAction; api != nil {
		s.Action.AwsAPICallAction = &models.AwsAPICallAction{
			API:             aws.ToString(api.Api),
			ServiceName:     aws.ToString(api.ServiceName),
			CallerType:      aws.ToString(api.CallerType),
			RemoteIPDetails: convertRemoteIP(api.RemoteIpDetails),
		}
	}

	if rl := a.RdsLoginAttemptAction; rl != nil {
		s.Action.RdsLoginAttemptAction = &models.RdsLoginAttemptAction{
			RemoteIPDetails: convertRemoteIP(rl.RemoteIpDetails),
		}
	}
	return s
}

func convertRemoteIP(in *gdtypes.RemoteIpDetails) *models.RemoteIPDetails {
	if in == nil {
		return nil
	}
	out := &models.RemoteIPDetails{IPAddressV4: aws.ToString(in.IpAddressV4)}
	if o := in.Organization; o != nil {
		out.Organization = &models.Organization{
			Asn:    aws.ToString(o.Asn),
			AsnOrg: aws.ToString(o.AsnOrg),
			Isp:    aws.ToString(o.Isp),
			Org:    aws.ToString(o.Org),
		}
	}
	if c := in.Country; c != nil {
		out.Country = &models.Country{CountryCode: aws.ToString(c.CountryCode), CountryName: aws.ToString(c.CountryName)}
	}
	return out
}

// parseTime parses GuardDuty's ISO-8601 timestamps. Unparseable values yield
// the zero time.
func parseTime(s *string) time.Time {
	if s == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return time.Time{}
	}
	return t
}

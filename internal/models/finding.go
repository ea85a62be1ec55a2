package models

import "time"

// Finding is a single GuardDuty finding as delivered in the detail of an
// EventBridge event. Field names follow the camelCase JSON emitted by
// GuardDuty. A Finding is read-only for the whole lifetime of a playbook run.
type Finding struct {
	ID            string    `json:"id"            validate:"required"`
	AccountID     string    `json:"accountId"`
	Region        string    `json:"region"`
	Partition     string    `json:"partition"`
	Arn           string    `json:"arn"`
	Type          string    `json:"type"          validate:"required"`
	Title         string    `json:"title"`
	Description   string    `json:"description"   validate:"required"`
	Severity      float64   `json:"severity"`
	SchemaVersion string    `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Resource      Resource  `json:"resource"`
	Service       Service   `json:"service"`
}

// Resource types reported by GuardDuty in Resource.ResourceType.
const (
	ResourceTypeInstance      = "Instance"
	ResourceTypeAccessKey     = "AccessKey"
	ResourceTypeS3Bucket      = "S3Bucket"
	ResourceTypeRDSDBInstance = "RDSDBInstance"
)

// Resource is the variant record describing the affected AWS resource.
// Exactly which detail pointers are populated depends on ResourceType.
type Resource struct {
	ResourceType         string                `json:"resourceType"`
	InstanceDetails      *InstanceDetails      `json:"instanceDetails,omitempty"`
	AccessKeyDetails     *AccessKeyDetails     `json:"accessKeyDetails,omitempty"`
	S3BucketDetails      []S3BucketDetail      `json:"s3BucketDetails,omitempty"`
	RdsDbInstanceDetails *RdsDbInstanceDetails `json:"rdsDbInstanceDetails,omitempty"`
	RdsDbUserDetails     *RdsDbUserDetails     `json:"rdsDbUserDetails,omitempty"`
}

// InstanceDetails identifies the EC2 instance involved in a finding.
type InstanceDetails struct {
	InstanceID         string              `json:"instanceId"`
	InstanceType       string              `json:"instanceType"`
	InstanceState      string              `json:"instanceState"`
	AvailabilityZone   string              `json:"availabilityZone"`
	ImageID            string              `json:"imageId"`
	LaunchTime         string              `json:"launchTime"`
	IamInstanceProfile *IamInstanceProfile `json:"iamInstanceProfile,omitempty"`
	NetworkInterfaces  []NetworkInterface  `json:"networkInterfaces,omitempty"`
	Tags               []Tag               `json:"tags,omitempty"`
}

// IamInstanceProfile is the instance profile attached to an instance.
type IamInstanceProfile struct {
	Arn string `json:"arn"`
	ID  string `json:"id"`
}

// NetworkInterface is one ENI attached to the affected instance.
type NetworkInterface struct {
	NetworkInterfaceID string          `json:"networkInterfaceId"`
	PrivateIPAddress   string          `json:"privateIpAddress"`
	PublicIP           string          `json:"publicIp"`
	SubnetID           string          `json:"subnetId"`
	VpcID              string          `json:"vpcId"`
	SecurityGroups     []SecurityGroup `json:"securityGroups,omitempty"`
}

// SecurityGroup is a security group reference inside a network interface.
type SecurityGroup struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
}

// Tag is a key/value pair as reported by GuardDuty.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AccessKeyDetails identifies the IAM principal whose credentials were used.
type AccessKeyDetails struct {
	AccessKeyID string `json:"accessKeyId"`
	PrincipalID string `json:"principalId"`
	UserName    string `json:"userName"`
	UserType    string `json:"userType"`
}

// S3BucketDetail identifies one bucket involved in an S3 finding.
type S3BucketDetail struct {
	Arn  string `json:"arn"`
	Name string `json:"name"`
	Type string `json:"type"`
	Tags []Tag  `json:"tags,omitempty"`
}

// RdsDbInstanceDetails identifies the database instance in an RDS finding.
type RdsDbInstanceDetails struct {
	DbInstanceIdentifier string `json:"dbInstanceIdentifier"`
	DbClusterIdentifier  string `json:"dbClusterIdentifier"`
	DbInstanceArn        string `json:"dbInstanceArn"`
	Engine               string `json:"engine"`
	EngineVersion        string `json:"engineVersion"`
	Tags                 []Tag  `json:"tags,omitempty"`
}

// RdsDbUserDetails identifies the database user in an RDS login finding.
type RdsDbUserDetails struct {
	User        string `json:"user"`
	Application string `json:"application"`
	Database    string `json:"database"`
	SSL         string `json:"ssl"`
	AuthMethod  string `json:"authMethod"`
}

// RDS authentication methods reported in RdsDbUserDetails.AuthMethod.
const (
	AuthMethodIAM      = "IAM"
	AuthMethodPassword = "PASSWORD"
)

// Service is the free-form GuardDuty detail block.
type Service struct {
	DetectorID   string        `json:"detectorId"`
	ServiceName  string        `json:"serviceName"`
	Archived     bool          `json:"archived"`
	Count        int           `json:"count"`
	ResourceRole string        `json:"resourceRole"`
	EventFirst   string        `json:"eventFirstSeen"`
	EventLast    string        `json:"eventLastSeen"`
	Action       ServiceAction `json:"action"`
}

// Resource roles reported in Service.ResourceRole.
const (
	ResourceRoleTarget = "TARGET"
	ResourceRoleActor  = "ACTOR"
)

// ServiceAction describes the observed activity.
type ServiceAction struct {
	ActionType              string                   `json:"actionType"`
	NetworkConnectionAction *NetworkConnectionAction `json:"networkConnectionAction,omitempty"`
	PortProbeAction         *PortProbeAction         `json:"portProbeAction,omitempty"`
	AwsAPICallAction        *AwsAPICallAction        `json:"awsApiCallAction,omitempty"`
	RdsLoginAttemptAction   *RdsLoginAttemptAction   `json:"rdsLoginAttemptAction,omitempty"`
}

// NetworkConnectionAction is populated for NETWORK_CONNECTION findings.
type NetworkConnectionAction struct {
	ConnectionDirection string           `json:"connectionDirection"`
	Protocol            string           `json:"protocol"`
	Blocked             bool             `json:"blocked"`
	LocalPortDetails    *PortDetails     `json:"localPortDetails,omitempty"`
	RemotePortDetails   *PortDetails     `json:"remotePortDetails,omitempty"`
	RemoteIPDetails     *RemoteIPDetails `json:"remoteIpDetails,omitempty"`
}

// Connection directions reported in NetworkConnectionAction.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// PortProbeAction is populated for PORT_PROBE findings.
type PortProbeAction struct {
	Blocked          bool              `json:"blocked"`
	PortProbeDetails []PortProbeDetail `json:"portProbeDetails,omitempty"`
}

// PortProbeDetail is one probe against a local port.
type PortProbeDetail struct {
	LocalPortDetails *PortDetails     `json:"localPortDetails,omitempty"`
	RemoteIPDetails  *RemoteIPDetails `json:"remoteIpDetails,omitempty"`
}

// AwsAPICallAction is populated for AWS_API_CALL findings.
type AwsAPICallAction struct {
	API             string           `json:"api"`
	ServiceName     string           `json:"serviceName"`
	CallerType      string           `json:"callerType"`
	RemoteIPDetails *RemoteIPDetails `json:"remoteIpDetails,omitempty"`
}

// RdsLoginAttemptAction is populated for RDS_LOGIN_ATTEMPT findings.
type RdsLoginAttemptAction struct {
	RemoteIPDetails *RemoteIPDetails `json:"remoteIpDetails,omitempty"`
}

// PortDetails is a port number with its service name.
type PortDetails struct {
	Port     int    `json:"port"`
	PortName string `json:"portName"`
}

// RemoteIPDetails describes the remote party of an observed connection.
type RemoteIPDetails struct {
	IPAddressV4  string        `json:"ipAddressV4"`
	Organization *Organization `json:"organization,omitempty"`
	Country      *Country      `json:"country,omitempty"`
}

// Organization is the ASN owner of a remote IP.
type Organization struct {
	Asn    string `json:"asn"`
	AsnOrg string `json:"asnOrg"`
	Isp    string `json:"isp"`
	Org    string `json:"org"`
}

// Country is the geolocation of a remote IP.
type Country struct {
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
}

// InstanceID returns the affected EC2 instance ID, or "" when the finding
// does not concern an instance.
func (f *Finding) InstanceID() string {
	if f.Resource.InstanceDetails == nil {
		return ""
	}
	return f.Resource.InstanceDetails.InstanceID
}

// RemoteIPs returns every remote IPv4 address referenced by the finding's
// action block, deduplicated and in the order they appear.
func (f *Finding) RemoteIPs() []string {
	var ips []string
	seen := make(map[string]bool)
	add := func(d *RemoteIPDetails) {
		if d == nil || d.IPAddressV4 == "" || seen[d.IPAddressV4] {
			return
		}
		seen[d.IPAddressV4] = true
		ips = append(ips, d.IPAddressV4)
	}

	a := f.Service.Action
	if a.NetworkConnectionAction != nil {
		add(a.NetworkConnectionAction.RemoteIPDetails)
	}
	if a.PortProbeAction != nil {
		for _, p := range a.PortProbeAction.PortProbeDetails {
			add(p.RemoteIPDetails)
		}
	}
	if a.AwsAPICallAction != nil {
		add(a.AwsAPICallAction.RemoteIPDetails)
	}
	if a.RdsLoginAttemptAction != nil {
		add(a.RdsLoginAttemptAction.RemoteIPDetails)
	}
	return ips
}

// Role is the part the affected resource played in the observed activity.
type Role string

const (
	// RoleSource means the affected resource initiated the activity and is
	// therefore presumed compromised.
	RoleSource Role = "SOURCE"
	// RoleTarget means the affected resource was on the receiving end.
	RoleTarget Role = "TARGET"
)

// ResourceRole reports whether the affected resource is the source or the
// target of the activity. GuardDuty's ACTOR role maps to SOURCE. When the
// role is absent the connection direction decides: OUTBOUND means SOURCE,
// anything else TARGET.
func (f *Finding) ResourceRole() Role {
	switch f.Service.ResourceRole {
	case ResourceRoleActor:
		return RoleSource
	case ResourceRoleTarget:
		return RoleTarget
	}
	if nc := f.Service.Action.NetworkConnectionAction; nc != nil && nc.ConnectionDirection == DirectionOutbound {
		return RoleSource
	}
	return RoleTarget
}

// Label returns the severity label for the finding's numeric severity.
func (f *Finding) Label() Severity {
	return SeverityLabel(f.Severity)
}

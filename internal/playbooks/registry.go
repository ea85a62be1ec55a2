package playbooks

import "github.com/pankaj-dahiya-devops/gdr/internal/playbook"

// Finding types per playbook.
var (
	ec2CompromiseTypes = []string{
		"Backdoor:EC2/C&CActivity.B",
		"Backdoor:EC2/C&CActivity.B!DNS",
		"Backdoor:EC2/DenialOfService.Dns",
		"Backdoor:EC2/DenialOfService.Tcp",
		"Backdoor:EC2/DenialOfService.Udp",
		"Backdoor:EC2/DenialOfService.UdpOnTcpPorts",
		"Backdoor:EC2/DenialOfService.UnusualProtocol",
		"Backdoor:EC2/Spambot",
		"CryptoCurrency:EC2/BitcoinTool.B",
		"CryptoCurrency:EC2/BitcoinTool.B!DNS",
		"Trojan:EC2/BlackholeTraffic",
		"Trojan:EC2/BlackholeTraffic!DNS",
		"Trojan:EC2/DropPoint",
		"Trojan:EC2/DropPoint!DNS",
		"Trojan:EC2/DGADomainRequest.B",
		"Trojan:EC2/DGADomainRequest.C!DNS",
		"Trojan:EC2/DNSDataExfiltration",
		"Trojan:EC2/PhishingDomainRequest!DNS",
		"UnauthorizedAccess:EC2/TorClient",
		"UnauthorizedAccess:EC2/MetadataDNSRebind",
		"Impact:EC2/BitcoinDomainRequest.Reputation",
	}

	ec2TorRelayTypes = []string{
		"UnauthorizedAccess:EC2/TorRelay",
	}

	ec2BruteForceTypes = []string{
		"UnauthorizedAccess:EC2/SSHBruteForce",
		"UnauthorizedAccess:EC2/RDPBruteForce",
	}

	ec2ReconProbeTypes = []string{
		"Recon:EC2/PortProbeUnprotectedPort",
		"Recon:EC2/PortProbeEMRUnprotectedPort",
		"UnauthorizedAccess:EC2/MaliciousIPCaller.Custom",
	}

	ec2OutboundAbuseTypes = []string{
		"Recon:EC2/Portscan",
		"Impact:EC2/PortSweep",
		"Impact:EC2/WinRMBruteForce",
		"Impact:EC2/MaliciousDomainRequest.Reputation",
		"Impact:EC2/AbusedDomainRequest.Reputation",
		"Impact:EC2/SuspiciousDomainRequest.Reputation",
	}

	ec2MaliciousExecutionTypes = []string{
		"Execution:EC2/MaliciousFile",
		"Execution:EC2/SuspiciousFile",
		"Backdoor:EC2/XORDDOS",
	}

	iamCredentialCompromiseTypes = []string{
		"UnauthorizedAccess:IAMUser/InstanceCredentialExfiltration.OutsideAWS",
		"UnauthorizedAccess:IAMUser/InstanceCredentialExfiltration.InsideAWS",
		"UnauthorizedAccess:IAMUser/MaliciousIPCaller",
		"UnauthorizedAccess:IAMUser/MaliciousIPCaller.Custom",
		"UnauthorizedAccess:IAMUser/TorIPCaller",
		"UnauthorizedAccess:IAMUser/ConsoleLoginSuccess.B",
		"CredentialAccess:IAMUser/AnomalousBehavior",
		"Persistence:IAMUser/AnomalousBehavior",
		"PrivilegeEscalation:IAMUser/AnomalousBehavior",
		"Impact:IAMUser/AnomalousBehavior",
		"Exfiltration:IAMUser/AnomalousBehavior",
	}

	iamLoggingTamperingTypes = []string{
		"Stealth:IAMUser/CloudTrailLoggingDisabled",
		"Stealth:IAMUser/LoggingConfigurationModified",
	}

	iamReconnaissanceTypes = []string{
		"Discovery:IAMUser/AnomalousBehavior",
		"Recon:IAMUser/MaliciousIPCaller",
		"Recon:IAMUser/MaliciousIPCaller.Custom",
		"Recon:IAMUser/TorIPCaller",
		"Stealth:IAMUser/PasswordPolicyChange",
		"Policy:IAMUser/RootCredentialUsage",
	}

	s3PublicExposureTypes = []string{
		"Policy:S3/BucketBlockPublicAccessDisabled",
		"Policy:S3/BucketAnonymousAccessGranted",
		"Policy:S3/BucketPublicAccessGranted",
		"Policy:S3/AccountBlockPublicAccessDisabled",
		"Stealth:S3/ServerAccessLoggingDisabled",
	}

	s3DataAccessTypes = []string{
		"Exfiltration:S3/AnomalousBehavior",
		"Exfiltration:S3/MaliciousIPCaller",
		"Impact:S3/AnomalousBehavior.Delete",
		"Impact:S3/AnomalousBehavior.Permission",
		"Impact:S3/AnomalousBehavior.Write",
		"Impact:S3/MaliciousIPCaller",
		"UnauthorizedAccess:S3/TorIPCaller",
		"UnauthorizedAccess:S3/MaliciousIPCaller.Custom",
		"Discovery:S3/MaliciousIPCaller",
		"PenTest:S3/KaliLinux",
	}

	rdsSuspiciousLoginTypes = []string{
		"CredentialAccess:RDS/AnomalousBehavior.SuccessfulLogin",
		"CredentialAccess:RDS/MaliciousIPCaller.SuccessfulLogin",
		"CredentialAccess:RDS/TorIPCaller.SuccessfulLogin",
	}

	rdsLoginProbeTypes = []string{
		"CredentialAccess:RDS/AnomalousBehavior.FailedLogin",
		"CredentialAccess:RDS/AnomalousBehavior.SuccessfulBruteForce",
		"CredentialAccess:RDS/MaliciousIPCaller.FailedLogin",
		"CredentialAccess:RDS/TorIPCaller.FailedLogin",
		"Discovery:RDS/MaliciousIPCaller",
		"Discovery:RDS/TorIPCaller",
	}
)

// Registrations returns the static playbook table. Adding a playbook means
// adding a row here; nothing registers itself.
func Registrations() []playbook.Registration {
	return []playbook.Registration{
		{Name: NameEC2InstanceCompromise, Factory: NewEC2InstanceCompromise, FindingTypes: ec2CompromiseTypes},
		{Name: NameEC2TorRelay, Factory: NewEC2TorRelay, FindingTypes: ec2TorRelayTypes},
		{Name: NameEC2BruteForce, Factory: NewEC2BruteForce, FindingTypes: ec2BruteForceTypes},
		{Name: NameEC2ReconProbe, Factory: NewEC2ReconProbe, FindingTypes: ec2ReconProbeTypes},
		{Name: NameEC2OutboundAbuse, Factory: NewEC2OutboundAbuse, FindingTypes: ec2OutboundAbuseTypes},
		{Name: NameEC2MaliciousExecution, Factory: NewEC2MaliciousExecution, FindingTypes: ec2MaliciousExecutionTypes},
		{Name: NameIAMCredentialCompromise, Factory: NewIAMCredentialCompromise, FindingTypes: iamCredentialCompromiseTypes},
		{Name: NameIAMLoggingTampering, Factory: NewIAMLoggingTampering, FindingTypes: iamLoggingTamperingTypes},
		{Name: NameIAMReconnaissance, Factory: NewIAMReconnaissance, FindingTypes: iamReconnaissanceTypes},
		{Name: NameS3PublicExposure, Factory: NewS3PublicExposure, FindingTypes: s3PublicExposureTypes},
		{Name: NameS3DataAccess, Factory: NewS3DataAccess, FindingTypes: s3DataAccessTypes},
		{Name: NameRDSSuspiciousLogin, Factory: NewRDSSuspiciousLogin, FindingTypes: rdsSuspiciousLoginTypes},
		{Name: NameRDSLoginProbe, Factory: NewRDSLoginProbe, FindingTypes: rdsLoginProbeTypes},
	}
}

// NewRegistry returns a registry holding every playbook in Registrations.
func NewRegistry() *playbook.Registry {
	return playbook.FromRegistrations(Registrations())
}

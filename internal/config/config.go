package config

import "time"

// Config is the top-level responder configuration.
// It is loaded once per process from a YAML file (see Load) and is read-only
// afterwards. It must never be committed with real webhook URLs.
type Config struct {
	AWS           AWSConfig           `yaml:"aws"           json:"aws"`
	Logging       LoggingConfig       `yaml:"logging"       json:"logging"`
	Actions       ActionsConfig       `yaml:"actions"       json:"actions"`
	Isolation     IsolationConfig     `yaml:"isolation"     json:"isolation"`
	IAM           IAMConfig           `yaml:"iam"           json:"iam"`
	Tagging       TaggingConfig       `yaml:"tagging"       json:"tagging"`
	Logs          LogsConfig          `yaml:"logs"          json:"logs"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"       json:"metrics"`

	// IgnoredFindingTypes are acknowledged with a 200 and no playbook run.
	IgnoredFindingTypes []string `yaml:"ignored_finding_types" json:"ignored_finding_types"`
}

// AWSConfig selects the credentials used to build sessions.
type AWSConfig struct {
	// Profile is the shared-config profile. Empty means the default chain,
	// which is what the Lambda runtime uses.
	Profile string `yaml:"profile" json:"profile"`

	// Region is used when a finding carries no region of its own.
	Region string `yaml:"region" json:"region"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format" json:"format"`
}

// ActionsConfig gates optional and destructive actions. A disabled action
// reports "skipped" rather than failing the playbook.
type ActionsConfig struct {
	AllowTerminate             bool `yaml:"allow_terminate"              json:"allow_terminate"`
	AllowIAMQuarantine         bool `yaml:"allow_iam_quarantine"         json:"allow_iam_quarantine"`
	AllowSnapshots             bool `yaml:"allow_snapshots"              json:"allow_snapshots"`
	AllowForensics             bool `yaml:"allow_forensics"              json:"allow_forensics"`
	AllowS3BlockPublicAccess   bool `yaml:"allow_s3_block_public_access" json:"allow_s3_block_public_access"`
	AllowDBSnapshots           bool `yaml:"allow_db_snapshots"           json:"allow_db_snapshots"`
	AllowAccessKeyDeactivation bool `yaml:"allow_access_key_deactivation" json:"allow_access_key_deactivation"`
}

// IsolationConfig controls network containment.
type IsolationConfig struct {
	// SecurityGroupName is the per-VPC quarantine group; created on demand.
	SecurityGroupName string `yaml:"security_group_name" json:"security_group_name"`

	// NACLRuleCeiling is the exclusive upper bound for deny rules added to
	// network ACLs. Numbers below it are evaluated before typical allow rules.
	NACLRuleCeiling int32 `yaml:"nacl_rule_ceiling" json:"nacl_rule_ceiling"`
}

// IAMConfig holds IAM identifiers used by quarantine actions.
type IAMConfig struct {
	// DenyAllPolicyARN is attached to quarantined principals.
	DenyAllPolicyARN string `yaml:"deny_all_policy_arn" json:"deny_all_policy_arn"`
}

// TaggingConfig controls the tags written on affected resources.
type TaggingConfig struct {
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// LogsConfig configures the flow-log query step.
type LogsConfig struct {
	// FlowLogGroup is the CloudWatch Logs group holding VPC flow logs.
	// Empty disables the query step.
	FlowLogGroup string        `yaml:"flow_log_group" json:"flow_log_group"`
	QueryTimeout time.Duration `yaml:"query_timeout"  json:"query_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"  json:"poll_interval"`
	Lookback     time.Duration `yaml:"lookback"       json:"lookback"`
}

// NotificationsConfig selects the notification channels.
type NotificationsConfig struct {
	// MinSeverity suppresses notifications for findings below this label.
	MinSeverity string      `yaml:"min_severity" json:"min_severity"`
	Slack       SlackConfig `yaml:"slack"        json:"slack"`
	SNS         SNSConfig   `yaml:"sns"          json:"sns"`
	Log         bool        `yaml:"log"          json:"log"`
}

// SlackConfig configures the Slack incoming-webhook channel.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" json:"-"`
	Channel    string `yaml:"channel"     json:"channel"`
	Username   string `yaml:"username"    json:"username"`
}

// SNSConfig configures the SNS channel.
type SNSConfig struct {
	TopicARN string `yaml:"topic_arn" json:"topic_arn"`
}

// MetricsConfig configures CloudWatch metric publishing.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"   json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Loader is the interface for reading Config.
type Loader interface {
	// Load reads, parses, applies defaults and environment overrides, and
	// validates the configuration.
	Load() (*Config, error)

	// ConfigPath returns the path the loader reads from. It may not exist.
	ConfigPath() string
}

// Default returns the configuration used when no file is present.
// Destructive actions (termination) are off; containment is on.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Actions: ActionsConfig{
			AllowTerminate:             false,
			AllowIAMQuarantine:         true,
			AllowSnapshots:             true,
			AllowForensics:             false,
			AllowS3BlockPublicAccess:   true,
			AllowDBSnapshots:           true,
			AllowAccessKeyDeactivation: true,
		},
		Isolation: IsolationConfig{
			SecurityGroupName: "gdr-quarantine",
			NACLRuleCeiling:   100,
		},
		IAM:     IAMConfig{DenyAllPolicyARN: "arn:aws:iam::aws:policy/AWSDenyAll"},
		Tagging: TaggingConfig{KeyPrefix: "gdr:"},
		Logs: LogsConfig{
			QueryTimeout: 60 * time.Second,
			PollInterval: 5 * time.Second,
			Lookback:     time.Hour,
		},
		Notifications: NotificationsConfig{
			MinSeverity: "LOW",
			Log:         true,
		},
		Metrics: MetricsConfig{Namespace: "GuardDutyResponder"},
	}
}

// IsIgnored reports whether findingType is listed in IgnoredFindingTypes.
func (c *Config) IsIgnored(findingType string) bool {
	for _, t := range c.IgnoredFindingTypes {
		if t == findingType {
			return true
		}
	}
	return false
}

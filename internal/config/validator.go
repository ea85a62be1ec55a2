package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {},
}

var validSeverities = map[string]struct{}{
	"CRITICAL": {}, "HIGH": {}, "MEDIUM": {}, "LOW": {},
}

// Validate checks cfg for semantic correctness and returns every problem
// found. An empty slice means the config is valid.
//
// Checks performed:
//   - logging.level is a known level and logging.format is json or text
//   - notifications.min_severity is a valid label when set
//   - isolation.nacl_rule_ceiling is in [2, 32766]
//   - isolation.security_group_name is set
//   - iam.deny_all_policy_arn looks like an IAM policy ARN when IAM quarantine is enabled
//   - logs.poll_interval is positive and not longer than logs.query_timeout
//   - sns.topic_arn looks like an SNS ARN when set
//   - metrics.namespace is set when metrics are enabled
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{fmt.Errorf("config is nil")}
	}

	var errs []error

	if _, ok := validLogLevels[strings.ToLower(cfg.Logging.Level)]; !ok {
		errs = append(errs, fmt.Errorf("logging.level: invalid value %q; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if f := strings.ToLower(cfg.Logging.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("logging.format: invalid value %q; valid values: json, text", cfg.Logging.Format))
	}

	if s := cfg.Notifications.MinSeverity; s != "" {
		if _, ok := validSeverities[strings.ToUpper(s)]; !ok {
			errs = append(errs, fmt.Errorf("notifications.min_severity: invalid value %q; valid values: CRITICAL, HIGH, MEDIUM, LOW", s))
		}
	}

	if c := cfg.Isolation.NACLRuleCeiling; c < 2 || c > 32766 {
		errs = append(errs, fmt.Errorf("isolation.nacl_rule_ceiling: %d out of range [2, 32766]", c))
	}
	if cfg.Isolation.SecurityGroupName == "" {
		errs = append(errs, fmt.Errorf("isolation.security_group_name: must not be empty"))
	}

	if cfg.Actions.AllowIAMQuarantine && !strings.HasPrefix(cfg.IAM.DenyAllPolicyARN, "arn:aws") {
		errs = append(errs, fmt.Errorf("iam.deny_all_policy_arn: %q is not a policy ARN", cfg.IAM.DenyAllPolicyARN))
	}

	if cfg.Logs.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("logs.poll_interval: must be positive"))
	} else if cfg.Logs.QueryTimeout < cfg.Logs.PollInterval {
		errs = append(errs, fmt.Errorf("logs.query_timeout: %s is shorter than poll_interval %s", cfg.Logs.QueryTimeout, cfg.Logs.PollInterval))
	}

	if arn := cfg.Notifications.SNS.TopicARN; arn != "" && !strings.HasPrefix(arn, "arn:aws") {
		errs = append(errs, fmt.Errorf("notifications.sns.topic_arn: %q is not an ARN", arn))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		errs = append(errs, fmt.Errorf("metrics.namespace: required when metrics are enabled"))
	}

	return errs
}

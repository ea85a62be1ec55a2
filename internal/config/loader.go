package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "GDR_CONFIG"

// FileLoader reads Config from a YAML file. A missing file is not an error:
// defaults and environment overrides still apply, which is the normal case
// for a Lambda deployment configured purely through environment variables.
type FileLoader struct {
	path   string
	getenv func(string) string
}

// NewFileLoader returns a loader for path. An empty path falls back to
// $GDR_CONFIG.
func NewFileLoader(path string) *FileLoader {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	return &FileLoader{path: path, getenv: os.Getenv}
}

// ConfigPath implements Loader.
func (l *FileLoader) ConfigPath() string { return l.path }

// Load implements Loader.
func (l *FileLoader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", l.path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", l.path, err)
			}
		}
	}

	if err := applyEnv(cfg, l.getenv); err != nil {
		return nil, err
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// applyEnv overlays GDR_* environment variables on cfg.
func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	setString("GDR_AWS_PROFILE", &cfg.AWS.Profile)
	setString("GDR_AWS_REGION", &cfg.AWS.Region)
	setString("GDR_LOG_LEVEL", &cfg.Logging.Level)
	setString("GDR_LOG_FORMAT", &cfg.Logging.Format)
	setString("GDR_SNS_TOPIC_ARN", &cfg.Notifications.SNS.TopicARN)
	setString("GDR_SLACK_WEBHOOK_URL", &cfg.Notifications.Slack.WebhookURL)
	setString("GDR_DENY_ALL_POLICY_ARN", &cfg.IAM.DenyAllPolicyARN)
	setString("GDR_FLOW_LOG_GROUP", &cfg.Logs.FlowLogGroup)

	if v := getenv("GDR_ALLOW_TERMINATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GDR_ALLOW_TERMINATE: %w", err)
		}
		cfg.Actions.AllowTerminate = b
	}
	return nil
}

// Process-wide cache. Each Lambda container loads configuration once and
// reuses it for every invocation it serves.
var (
	cacheMu  sync.Mutex
	cacheCfg *Config
)

// LoadCached returns the process-wide Config, loading it with l on first use.
// A failed load is not cached so the next invocation retries.
func LoadCached(l Loader) (*Config, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cacheCfg != nil {
		return cacheCfg, nil
	}
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	cacheCfg = cfg
	return cfg, nil
}

// ResetCache drops the cached Config. Tests use it between cases.
func ResetCache() {
	cacheMu.Lock()
	cacheCfg = nil
	cacheMu.Unlock()
}

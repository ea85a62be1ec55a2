package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/metrics"
	"github.com/pankaj-dahiya-devops/gdr/internal/notify"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// Bootstrap loads the AWS session named by cfg and wires a DefaultEngine
// with the configured notification channels and metrics publisher. The CLI
// and the Lambda handler share it so both take the same path.
func Bootstrap(ctx context.Context, provider common.AWSClientProvider, cfg *config.Config, log *slog.Logger) (*DefaultEngine, *common.Session, error) {
	sess, err := provider.LoadProfile(ctx, cfg.AWS.Profile, cfg.AWS.Region)
	if err != nil {
		return nil, nil, fmt.Errorf("load AWS session: %w", err)
	}

	notifier, err := notify.FromConfig(cfg.Notifications, sess.Clients.SNS, log)
	if err != nil {
		return nil, nil, fmt.Errorf("configure notifications: %w", err)
	}

	log.Debug("engine bootstrapped",
		"account_id", sess.AccountID,
		"region", sess.Region,
		"profile", sess.ProfileName,
		"channels", notifier.Channels(),
	)

	return New(Options{
		Notifier: notifier,
		Metrics:  metrics.FromConfig(cfg.Metrics, sess.Clients.CloudWatch, log),
		Config:   cfg,
		Logger:   log,
		BuildEnv: SessionEnv(provider, sess, cfg, log),
	}), sess, nil
}

package engine

import (
	"context"
	"log/slog"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// EnvFunc builds the action environment for the playbook handling f.
type EnvFunc func(ctx context.Context, f *models.Finding) (*actions.Env, error)

// SessionEnv returns an EnvFunc whose clients are scoped to the finding's
// region, falling back to the session's home region.
func SessionEnv(provider common.AWSClientProvider, sess *common.Session, cfg *config.Config, log *slog.Logger) EnvFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(_ context.Context, f *models.Finding) (*actions.Env, error) {
		region := f.Region
		if region == "" {
			region = sess.Region
		}
		return &actions.Env{
			Clients: provider.ClientsForRegion(sess, region),
			Config:  cfg,
			Logger:  log.With("region", region),
			Region:  region,
		}, nil
	}
}

// Command gdr-lambda is the AWS Lambda entry point. An EventBridge rule
// forwards GuardDuty findings to it; each invocation handles one finding and
// returns {statusCode, message}.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/engine"
	"github.com/pankaj-dahiya-devops/gdr/internal/logging"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/gdr/internal/version"
)

func main() {
	h := newHandler(config.NewFileLoader(""), common.NewDefaultAWSClientProvider())
	lambda.Start(h.Handle)
}

// handler builds the engine on the first invocation and reuses it for the
// lifetime of the execution environment. A failed build is retried on the
// next invocation.
type handler struct {
	loader   config.Loader
	provider common.AWSClientProvider

	mu     sync.Mutex
	engine engine.Engine
	log    *slog.Logger
}

func newHandler(loader config.Loader, provider common.AWSClientProvider) *handler {
	return &handler{loader: loader, provider: provider}
}

// Handle is the Lambda handler function.
func (h *handler) Handle(ctx context.Context, event json.RawMessage) (engine.Response, error) {
	eng, log, err := h.init(ctx)
	if err != nil {
		log.Error("responder initialisation failed", "error", err)
		return engine.Response{StatusCode: http.StatusInternalServerError, Message: "initialisation failed: " + err.Error()}, nil
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log.Debug("invocation", "aws_request_id", lc.AwsRequestID)
	}
	return eng.HandleEvent(ctx, event), nil
}

func (h *handler) init(ctx context.Context) (engine.Engine, *slog.Logger, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine != nil {
		return h.engine, h.log, nil
	}

	cfg, err := config.LoadCached(h.loader)
	if err != nil {
		return nil, logging.New(os.Stderr, "info", "json"), err
	}
	log := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format).With("version", version.Version)

	eng, _, err := engine.Bootstrap(ctx, h.provider, cfg, log)
	if err != nil {
		return nil, log, err
	}
	h.engine, h.log = eng, log
	return eng, log, nil
}

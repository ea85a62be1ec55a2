package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/pankaj-dahiya-devops/gdr/internal/actions"
	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/metrics"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/notify"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbooks"
)

// Options wires a DefaultEngine. Only BuildEnv is required.
type Options struct {
	// Registry resolves playbooks. Nil means the static playbooks table.
	Registry *playbook.Registry

	// Notifier receives the starting and complete notifications. Nil means
	// no channels.
	Notifier notify.Notifier

	// Metrics receives one Execution per handled finding. Nil means Noop.
	Metrics metrics.Publisher

	// Config is the read-only responder configuration. Nil means defaults.
	Config *config.Config

	Logger *slog.Logger

	// BuildEnv builds the action environment for a resolved playbook.
	BuildEnv EnvFunc

	// Now is replaceable in tests. Nil means time.Now.
	Now func() time.Time
}

// DefaultEngine is the production implementation of Engine. It never calls
// AWS directly; playbooks do, through the environment BuildEnv returns.
type DefaultEngine struct {
	registry *playbook.Registry
	notifier notify.Notifier
	metrics  metrics.Publisher
	cfg      *config.Config
	log      *slog.Logger
	buildEnv EnvFunc
	now      func() time.Time
}

// New returns a DefaultEngine wired from opts.
func New(opts Options) *DefaultEngine {
	e := &DefaultEngine{
		registry: opts.Registry,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		cfg:      opts.Config,
		log:      opts.Logger,
		buildEnv: opts.BuildEnv,
		now:      opts.Now,
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	if e.registry == nil {
		e.registry = playbooks.NewRegistry()
	}
	if e.notifier == nil {
		e.notifier = notify.NewManager(e.log, "")
	}
	if e.metrics == nil {
		e.metrics = metrics.Noop{}
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.buildEnv == nil {
		e.buildEnv = func(context.Context, *models.Finding) (*actions.Env, error) {
			return nil, errors.New("no AWS environment configured")
		}
	}
	return e
}

// HandleEvent implements Engine.
func (e *DefaultEngine) HandleEvent(ctx context.Context, raw []byte) Response {
	f, err := models.ParseEvent(raw)
	if err != nil {
		e.log.Warn("rejecting malformed event", "error", err)
		out := &Outcome{ExecutionID: uuid.NewString(), StatusCode: http.StatusBadRequest, Err: err}
		return out.Response()
	}
	return e.HandleFinding(ctx, f).Response()
}

// HandleFinding implements Engine.
func (e *DefaultEngine) HandleFinding(ctx context.Context, f *models.Finding) *Outcome {
	start := e.now()
	out := &Outcome{ExecutionID: uuid.NewString()}

	if err := ValidateFinding(f); err != nil {
		e.log.Warn("rejecting invalid finding", "execution_id", out.ExecutionID, "error", err)
		out.StatusCode = http.StatusBadRequest
		out.Err = err
		return out
	}
	out.FindingID = f.ID
	out.FindingType = f.Type
	out.Severity = f.Label()

	log := e.log.With(
		"execution_id", out.ExecutionID,
		"finding_id", f.ID,
		"finding_type", f.Type,
		"severity", out.Severity,
	)

	if e.cfg.IsIgnored(f.Type) {
		log.Info("finding type ignored")
		out.Ignored = true
		out.StatusCode = http.StatusOK
		return out
	}

	out.Playbook = notify.UnresolvedPlaybook
	if reg, ok := e.registry.Lookup(f.Type); ok {
		out.Playbook = reg.Name
	}

	result, err := e.execute(ctx, f, out.Playbook, log)
	if result == nil {
		result = &models.PlaybookResult{}
	}
	if err != nil {
		failure := models.Failure(err.Error())
		failure.ActionName = ExecutionActionName
		result.ActionResults = append(result.ActionResults, failure)
		out.StatusCode = http.StatusInternalServerError
		out.Err = err
		log.Error("playbook execution failed", "playbook", out.Playbook, "error", err)
	} else {
		out.StatusCode = http.StatusOK
	}
	out.Result = result
	out.Duration = e.now().Sub(start)

	bestEffort(log, "complete notification", func() error {
		return e.notifier.SendComplete(ctx, notify.CompleteNotice{
			ExecutionID: out.ExecutionID,
			Finding:     f,
			Playbook:    out.Playbook,
			Result:      result,
			Failed:      err != nil,
		})
	})

	bestEffort(log, "metrics publish", func() error {
		return e.metrics.Publish(ctx, metrics.Execution{
			Playbook:    out.Playbook,
			FindingType: f.Type,
			Counts:      result.Counts(),
			Failed:      err != nil,
			Duration:    out.Duration,
			Timestamp:   start,
		})
	})

	c := result.Counts()
	log.Info("finding handled",
		"playbook", out.Playbook,
		"status_code", out.StatusCode,
		"actions_succeeded", c.Success,
		"actions_failed", c.Error,
		"actions_skipped", c.Skipped,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out
}

// execute resolves and runs the playbook for f. A panic anywhere below is
// converted to an error; the partial result is lost in that case.
func (e *DefaultEngine) execute(ctx context.Context, f *models.Finding, name string, log *slog.Logger) (result *models.PlaybookResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("playbook panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("playbook %s panicked: %v", name, r)
		}
	}()

	pb, err := e.registry.GetInstance(ctx, f.Type, func(ctx context.Context) (*actions.Env, error) {
		return e.buildEnv(ctx, f)
	})
	if err != nil {
		var unregistered *playbook.NoPlaybookRegisteredError
		if errors.As(err, &unregistered) {
			log.Warn("no playbook registered")
		}
		return nil, err
	}

	bestEffort(log, "starting notification", func() error {
		return e.notifier.SendStarting(ctx, f, pb.Name())
	})

	log.Info("running playbook", "playbook", pb.Name())
	return pb.Run(ctx, f)
}

// bestEffort runs a reporting side effect. Errors and panics are logged and
// never change the outcome.
func bestEffort(log *slog.Logger, what string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(what+" panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		log.Warn(what+" failed", "error", err)
	}
}

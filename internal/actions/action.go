// Package actions implements the individual AWS response steps a playbook
// composes: tagging, isolation, snapshots, credential containment, and the
// enrichment lookups whose output ends up in a notification.
//
// Every action is total: Execute never returns a Go error. SDK failures are
// classified locally into a success, skipped or error ActionResult so the
// playbook layer only has to decide whether to continue.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// Parameter keys understood by actions. Params override whatever the action
// would otherwise derive from the finding.
const (
	ParamPrincipalName = "principal_name"
	ParamPrincipalKind = "principal_kind"
	ParamAccessKeyID   = "access_key_id"
	ParamBucketName    = "bucket_name"
	ParamDBInstanceID  = "db_instance_id"
)

// Request is the input to one action execution.
type Request struct {
	Finding *models.Finding
	Params  map[string]string
}

// Param returns the named parameter or "".
func (r Request) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[key]
}

// Action is one response step.
type Action interface {
	// Name is the stable identifier recorded in ActionResult.ActionName.
	Name() string

	// Execute performs the step. It must not panic and must not return
	// before its AWS calls complete or ctx is done.
	Execute(ctx context.Context, req Request) models.ActionResult
}

// Env carries everything an action needs. One Env is built per playbook
// instance, scoped to the finding's region.
type Env struct {
	Clients *common.ClientSet
	Config  *config.Config
	Logger  *slog.Logger
	Region  string

	// Now and Sleep are replaceable so polling actions can be tested
	// without waiting. Nil means the real clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ---------------------------------------------------------------------------
// Result helpers
// ---------------------------------------------------------------------------

// disabled is the result for an action switched off in configuration.
func disabled(flag string) models.ActionResult {
	return models.Skipped(fmt.Sprintf("disabled by configuration (actions.%s=false)", flag))
}

// apiFailure formats an SDK error with the operation that produced it.
func apiFailure(op string, err error) models.ActionResult {
	return models.Failure(fmt.Sprintf("%s: %v", op, err))
}

// ---------------------------------------------------------------------------
// Response tags
// ---------------------------------------------------------------------------

// Tag suffixes written on every resource a playbook touches.
const (
	tagStatus      = "status"
	tagFindingID   = "finding-id"
	tagFindingType = "finding-type"
	tagSeverity    = "severity"
	tagRespondedAt = "responded-at"
)

// Status values written under the status tag.
const (
	StatusInvestigating = "investigating"
	StatusQuarantined   = "quarantined"
)

type kv struct{ Key, Value string }

// responseTags returns the marker tags for f in a stable key order.
func (e *Env) responseTags(f *models.Finding, status string) []kv {
	prefix := e.Config.Tagging.KeyPrefix
	m := map[string]string{
		prefix + tagStatus:      status,
		prefix + tagFindingID:   f.ID,
		prefix + tagFindingType: truncate(f.Type, 256),
		prefix + tagSeverity:    strconv.FormatFloat(f.Severity, 'f', 1, 64) + " " + string(f.Label()),
		prefix + tagRespondedAt: e.now().UTC().Format(time.RFC3339),
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kv, 0, len(keys))
	for _, k := range keys {
		out = append(out, kv{Key: k, Value: m[k]})
	}
	return out
}

func tagMap(tags []kv) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// Principal kinds accepted in ParamPrincipalKind.
const (
	PrincipalUser = "user"
	PrincipalRole = "role"
	PrincipalRoot = "root"
)

// RevokeSessionsPolicyName is the inline policy written by RevokeRoleSessions.
const RevokeSessionsPolicyName = "gdr-revoke-older-sessions"

const recentEventsLimit = 20

// principal identifies the IAM identity a credential finding is about.
type principal struct {
	Kind string
	Name string
}

// resolvePrincipal derives the principal from request params, falling back
// to the finding's access key details. Kind is "" when it cannot be told from
// the request alone.
func resolvePrincipal(req Request) (principal, bool) {
	if name := req.Param(ParamPrincipalName); name != "" {
		return principal{Kind: req.Param(ParamPrincipalKind), Name: name}, true
	}
	d := req.Finding.Resource.AccessKeyDetails
	if d == nil {
		return principal{}, false
	}
	switch d.UserType {
	case "Root":
		return principal{Kind: PrincipalRoot, Name: "root"}, true
	case "IAMUser":
		return principal{Kind: PrincipalUser, Name: d.UserName}, d.UserName != ""
	case "AssumedRole", "Role":
		return principal{Kind: PrincipalRole, Name: d.UserName}, d.UserName != ""
	}
	return principal{Kind: strings.ToLower(d.UserType), Name: d.UserName}, d.UserName != ""
}

// lookupKind asks IAM whether name is a user or a role.
func lookupKind(ctx context.Context, c common.IAMClient, name string) (string, error) {
	_, err := c.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(name)})
	if err == nil {
		return PrincipalUser, nil
	}
	if !common.IsNotFound(err) {
		return "", fmt.Errorf("IAM GetUser %s: %w", name, err)
	}
	_, err = c.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err == nil {
		return PrincipalRole, nil
	}
	if common.IsNotFound(err) {
		return "", nil
	}
	return "", fmt.Errorf("IAM GetRole %s: %w", name, err)
}

// principalExists reports whether the user or role named by p is still
// present in IAM.
func principalExists(ctx context.Context, c common.IAMClient, p principal) (bool, error) {
	var err error
	if p.Kind == PrincipalUser {
		_, err = c.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(p.Name)})
	} else {
		_, err = c.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(p.Name)})
	}
	switch {
	case err == nil:
		return true, nil
	case common.IsNotFound(err):
		return false, nil
	}
	return false, fmt.Errorf("IAM lookup %s %s: %w", p.Kind, p.Name, err)
}

// principalFor resolves the principal including its kind. A non-empty skip
// reason means there is nothing to act on.
func principalFor(ctx context.Context, env *Env, req Request) (p principal, skip string, err error) {
	p, found := resolvePrincipal(req)
	if !found {
		return p, "finding does not identify an IAM principal", nil
	}
	if p.Kind == "" {
		kind, err := lookupKind(ctx, env.Clients.IAM, p.Name)
		if err != nil {
			return p, "", err
		}
		if kind == "" {
			return p, fmt.Sprintf("no IAM user or role named %s", p.Name), nil
		}
		p.Kind = kind
	}
	switch p.Kind {
	case PrincipalUser, PrincipalRole, PrincipalRoot:
		return p, "", nil
	}
	return p, fmt.Sprintf("principal type %q is not supported", p.Kind), nil
}

// ---------------------------------------------------------------------------
// TagPrincipal
// ---------------------------------------------------------------------------

// TagPrincipal marks the IAM user or role with the response tags.
type TagPrincipal struct{ env *Env }

// NewTagPrincipal returns a TagPrincipal action.
func NewTagPrincipal(env *Env) *TagPrincipal { return &TagPrincipal{env: env} }

// Name implements Action.
func (a *TagPrincipal) Name() string { return "TagPrincipal" }

// Execute implements Action.
func (a *TagPrincipal) Execute(ctx context.Context, req Request) models.ActionResult {
	p, skip, err := principalFor(ctx, a.env, req)
	if err != nil {
		return models.Failure(err.Error())
	}
	if skip != "" {
		return models.Skipped(skip)
	}
	if p.Kind == PrincipalRoot {
		return models.Skipped("the root user cannot be tagged")
	}

	tags := a.env.responseTags(req.Finding, StatusInvestigating)
	iamTags := make([]iamtypes.Tag, 0, len(tags))
	for _, t := range tags {
		iamTags = append(iamTags, iamtypes.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}

	if p.Kind == PrincipalUser {
		_, err = a.env.Clients.IAM.TagUser(ctx, &iam.TagUserInput{UserName: aws.String(p.Name), Tags: iamTags})
	} else {
		_, err = a.env.Clients.IAM.TagRole(ctx, &iam.TagRoleInput{RoleName: aws.String(p.Name), Tags: iamTags})
	}
	if err != nil {
		if common.IsNotFound(err) {
			return models.Skipped(fmt.Sprintf("%s %s no longer exists", p.Kind, p.Name))
		}
		return apiFailure("IAM Tag "+p.Kind, err)
	}
	return models.Success(map[string]any{"principal": p.Name, "kind": p.Kind, "tags": tagMap(tags)})
}

// ---------------------------------------------------------------------------
// DisableAccessKey
// ---------------------------------------------------------------------------

// DisableAccessKey deactivates the long-term access key used in the finding.
type DisableAccessKey struct{ env *Env }

// NewDisableAccessKey returns a DisableAccessKey action.
func NewDisableAccessKey(env *Env) *DisableAccessKey { return &DisableAccessKey{env: env} }

// Name implements Action.
func (a *DisableAccessKey) Name() string { return "DisableAccessKey" }

// Execute implements Action.
func (a *DisableAccessKey) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowAccessKeyDeactivation {
		return disabled("allow_access_key_deactivation")
	}

	keyID := req.Param(ParamAccessKeyID)
	if keyID == "" && req.Finding.Resource.AccessKeyDetails != nil {
		keyID = req.Finding.Resource.AccessKeyDetails.AccessKeyID
	}
	if keyID == "" || strings.HasPrefix(keyID, "GeneratedFinding") {
		return models.Skipped("finding has no access key")
	}
	// ASIA keys are STS session credentials; RevokeRoleSessions handles them.
	if strings.HasPrefix(keyID, "ASIA") {
		return models.Skipped(fmt.Sprintf("access key %s is temporary and cannot be deactivated", keyID))
	}

	p, skip, err := principalFor(ctx, a.env, req)
	if err != nil {
		return models.Failure(err.Error())
	}
	if skip != "" {
		return models.Skipped(skip)
	}
	if p.Kind != PrincipalUser {
		return models.Skipped(fmt.Sprintf("access keys of a %s principal cannot be deactivated through IAM", p.Kind))
	}

	_, err = a.env.Clients.IAM.UpdateAccessKey(ctx, &iam.UpdateAccessKeyInput{
		UserName:    aws.String(p.Name),
		AccessKeyId: aws.String(keyID),
		Status:      iamtypes.StatusTypeInactive,
	})
	if err != nil {
		if common.IsNotFound(err) {
			return models.Skipped(fmt.Sprintf("access key %s no longer exists", keyID))
		}
		return apiFailure("IAM UpdateAccessKey", err)
	}
	return models.Success(map[string]any{"user": p.Name, "access_key_id": keyID, "status": "Inactive"})
}

// ---------------------------------------------------------------------------
// QuarantinePrincipal
// ---------------------------------------------------------------------------

// QuarantinePrincipal attaches the deny-all managed policy to the principal.
type QuarantinePrincipal struct{ env *Env }

// NewQuarantinePrincipal returns a QuarantinePrincipal action.
func NewQuarantinePrincipal(env *Env) *QuarantinePrincipal { return &QuarantinePrincipal{env: env} }

// Name implements Action.
func (a *QuarantinePrincipal) Name() string { return "QuarantinePrincipal" }

// Execute implements Action.
func (a *QuarantinePrincipal) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowIAMQuarantine {
		return disabled("allow_iam_quarantine")
	}
	p, skip, err := principalFor(ctx, a.env, req)
	if err != nil {
		return models.Failure(err.Error())
	}
	if skip != "" {
		return models.Skipped(skip)
	}
	if p.Kind == PrincipalRoot {
		return models.Skipped("policies cannot be attached to the root user")
	}

	policyArn := a.env.Config.IAM.DenyAllPolicyARN
	op := "IAM AttachRolePolicy"
	if p.Kind == PrincipalUser {
		op = "IAM AttachUserPolicy"
		_, err = a.env.Clients.IAM.AttachUserPolicy(ctx, &iam.AttachUserPolicyInput{
			UserName: aws.String(p.Name), PolicyArn: aws.String(policyArn),
		})
	} else {
		_, err = a.env.Clients.IAM.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName: aws.String(p.Name), PolicyArn: aws.String(policyArn),
		})
	}
	if err != nil {
		// NoSuchEntity also covers a missing policy ARN, so the principal
		// must be confirmed gone before the step is skipped.
		if common.IsNotFound(err) {
			exists, lerr := principalExists(ctx, a.env.Clients.IAM, p)
			if lerr != nil {
				return models.Failure(lerr.Error())
			}
			if !exists {
				return models.Skipped(fmt.Sprintf("%s %s no longer exists", p.Kind, p.Name))
			}
		}
		return apiFailure(op, err)
	}
	a.env.logger().Warn("principal quarantined", "kind", p.Kind, "principal", p.Name, "policy_arn", policyArn)
	return models.Success(map[string]any{"principal": p.Name, "kind": p.Kind, "policy_arn": policyArn})
}

// ---------------------------------------------------------------------------
// RevokeRoleSessions
// ---------------------------------------------------------------------------

// RevokeRoleSessions invalidates every session of the role issued before now
// by denying all actions to tokens with an older issue time.
type RevokeRoleSessions struct{ env *Env }

// NewRevokeRoleSessions returns a RevokeRoleSessions action.
func NewRevokeRoleSessions(env *Env) *RevokeRoleSessions { return &RevokeRoleSessions{env: env} }

// Name implements Action.
func (a *RevokeRoleSessions) Name() string { return "RevokeRoleSessions" }

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string                       `json:"Effect"`
	Action    string                       `json:"Action"`
	Resource  string                       `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// RevokeSessionsPolicy returns the inline policy denying tokens issued
// before cutoff.
func RevokeSessionsPolicy(cutoff time.Time) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Deny",
			Action:   "*",
			Resource: "*",
			Condition: map[string]map[string]string{
				"DateLessThan": {"aws:TokenIssueTime": cutoff.UTC().Format(time.RFC3339)},
			},
		}},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Execute implements Action.
func (a *RevokeRoleSessions) Execute(ctx context.Context, req Request) models.ActionResult {
	p, skip, err := principalFor(ctx, a.env, req)
	if err != nil {
		return models.Failure(err.Error())
	}
	if skip != "" {
		return models.Skipped(skip)
	}
	if p.Kind != PrincipalRole {
		return models.Skipped(fmt.Sprintf("principal %s is a %s; only role sessions can be revoked", p.Name, p.Kind))
	}

	cutoff := a.env.now()
	doc, err := RevokeSessionsPolicy(cutoff)
	if err != nil {
		return models.Failure(fmt.Sprintf("build revoke policy: %v", err))
	}
	_, err = a.env.Clients.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(p.Name),
		PolicyName:     aws.String(RevokeSessionsPolicyName),
		PolicyDocument: aws.String(doc),
	})
	if err != nil {
		if common.IsNotFound(err) {
			return models.Skipped(fmt.Sprintf("role %s no longer exists", p.Name))
		}
		return apiFailure("IAM PutRolePolicy", err)
	}
	return models.Success(map[string]any{
		"role":            p.Name,
		"policy_name":     RevokeSessionsPolicyName,
		"sessions_before": cutoff.UTC().Format(time.RFC3339),
	})
}

// ---------------------------------------------------------------------------
// EnrichPrincipal
// ---------------------------------------------------------------------------

// EnrichPrincipal gathers the IAM view of the principal plus its recent
// CloudTrail management events.
type EnrichPrincipal struct{ env *Env }

// NewEnrichPrincipal returns an EnrichPrincipal action.
func NewEnrichPrincipal(env *Env) *EnrichPrincipal { return &EnrichPrincipal{env: env} }

// Name implements Action.
func (a *EnrichPrincipal) Name() string { return "EnrichPrincipal" }

// Execute implements Action.
func (a *EnrichPrincipal) Execute(ctx context.Context, req Request) models.ActionResult {
	p, skip, err := principalFor(ctx, a.env, req)
	if err != nil {
		return models.Failure(err.Error())
	}
	if skip != "" {
		return models.Skipped(skip)
	}

	details := map[string]any{"principal": p.Name, "kind": p.Kind}
	c := a.env.Clients.IAM
	switch p.Kind {
	case PrincipalUser:
		u, err := c.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(p.Name)})
		if err != nil {
			return apiFailure("IAM GetUser", err)
		}
		if u.User != nil {
			details["arn"] = aws.ToString(u.User.Arn)
			if u.User.CreateDate != nil {
				details["created"] = u.User.CreateDate.UTC().Format(time.RFC3339)
			}
			if u.User.PasswordLastUsed != nil {
				details["password_last_used"] = u.User.PasswordLastUsed.UTC().Format(time.RFC3339)
			}
		}
		pol, err := c.ListAttachedUserPolicies(ctx, &iam.ListAttachedUserPoliciesInput{UserName: aws.String(p.Name)})
		if err != nil {
			return apiFailure("IAM ListAttachedUserPolicies", err)
		}
		details["attached_policies"] = policyNames(pol.AttachedPolicies)
		keys, err := c.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(p.Name)})
		if err != nil {
			return apiFailure("IAM ListAccessKeys", err)
		}
		var ak []map[string]string
		for _, k := range keys.AccessKeyMetadata {
			ak = append(ak, map[string]string{"id": aws.ToString(k.AccessKeyId), "status": string(k.Status)})
		}
		details["access_keys"] = ak
	case PrincipalRole:
		r, err := c.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(p.Name)})
		if err != nil {
			return apiFailure("IAM GetRole", err)
		}
		if r.Role != nil {
			details["arn"] = aws.ToString(r.Role.Arn)
			if r.Role.RoleLastUsed != nil && r.Role.RoleLastUsed.LastUsedDate != nil {
				details["last_used"] = r.Role.RoleLastUsed.LastUsedDate.UTC().Format(time.RFC3339)
			}
		}
		pol, err := c.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(p.Name)})
		if err != nil {
			return apiFailure("IAM ListAttachedRolePolicies", err)
		}
		details["attached_policies"] = policyNames(pol.AttachedPolicies)
	}

	// CloudTrail history is best-effort context; a lookup failure is
	// reported but does not fail the enrichment.
	events, err := a.recentEvents(ctx, p.Name)
	if err != nil {
		details["recent_events_error"] = err.Error()
	} else {
		details["recent_events"] = events
	}
	if d := req.Finding.Service.Action.AwsAPICallAction; d != nil {
		details["api"] = d.API
		details["caller_type"] = d.CallerType
	}
	return models.Success(details)
}

func (a *EnrichPrincipal) recentEvents(ctx context.Context, name string) ([]map[string]string, error) {
	end := a.env.now()
	out, err := a.env.Clients.CloudTrail.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
		LookupAttributes: []cttypes.LookupAttribute{{
			AttributeKey:   cttypes.LookupAttributeKeyUsername,
			AttributeValue: aws.String(name),
		}},
		StartTime:  aws.Time(end.Add(-24 * time.Hour)),
		EndTime:    aws.Time(end),
		MaxResults: aws.Int32(recentEventsLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("CloudTrail LookupEvents: %w", err)
	}
	events := make([]map[string]string, 0, len(out.Events))
	for _, e := range out.Events {
		ev := map[string]string{
			"name":   aws.ToString(e.EventName),
			"source": aws.ToString(e.EventSource),
		}
		if e.EventTime != nil {
			ev["time"] = e.EventTime.UTC().Format(time.RFC3339)
		}
		events = append(events, ev)
	}
	return events, nil
}

func policyNames(in []iamtypes.AttachedPolicy) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, aws.ToString(p.PolicyName))
	}
	return out
}

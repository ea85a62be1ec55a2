package actions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

var errDBGone = errors.New("database instance not found")

// dbInstanceID returns the database instance the request is about.
func dbInstanceID(req Request) string {
	if id := req.Param(ParamDBInstanceID); id != "" {
		return id
	}
	if d := req.Finding.Resource.RdsDbInstanceDetails; d != nil {
		return d.DbInstanceIdentifier
	}
	return ""
}

func describeDB(ctx context.Context, c common.RDSClient, id string) (*rdstypes.DBInstance, error) {
	out, err := c.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{DBInstanceIdentifier: aws.String(id)})
	if err != nil {
		if common.IsNotFound(err) {
			return nil, errDBGone
		}
		return nil, err
	}
	if len(out.DBInstances) == 0 {
		return nil, errDBGone
	}
	return &out.DBInstances[0], nil
}

var snapshotIDUnsafe = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// snapshotIdentifier builds a valid RDS snapshot identifier: letters, digits
// and single hyphens, starting with a letter, at most 255 characters.
func snapshotIdentifier(id, stamp string) string {
	clean := snapshotIDUnsafe.ReplaceAllString(id, "-")
	for strings.Contains(clean, "--") {
		clean = strings.ReplaceAll(clean, "--", "-")
	}
	clean = strings.Trim(clean, "-")
	return truncate("gdr-"+clean+"-"+stamp, 255)
}

// ---------------------------------------------------------------------------
// TagDBInstance
// ---------------------------------------------------------------------------

// TagDBInstance marks the database instance with the response tags.
type TagDBInstance struct{ env *Env }

// NewTagDBInstance returns a TagDBInstance action.
func NewTagDBInstance(env *Env) *TagDBInstance { return &TagDBInstance{env: env} }

// Name implements Action.
func (a *TagDBInstance) Name() string { return "TagDBInstance" }

// Execute implements Action.
func (a *TagDBInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	id := dbInstanceID(req)
	if id == "" {
		return models.Skipped("finding does not reference a database instance")
	}

	arn := ""
	if d := req.Finding.Resource.RdsDbInstanceDetails; d != nil && d.DbInstanceIdentifier == id {
		arn = d.DbInstanceArn
	}
	if arn == "" {
		db, err := describeDB(ctx, a.env.Clients.RDS, id)
		if errors.Is(err, errDBGone) {
			return models.Skipped(fmt.Sprintf("database instance %s no longer exists", id))
		}
		if err != nil {
			return apiFailure("RDS DescribeDBInstances", err)
		}
		arn = aws.ToString(db.DBInstanceArn)
	}

	tags := a.env.responseTags(req.Finding, StatusInvestigating)
	rdsTags := make([]rdstypes.Tag, 0, len(tags))
	for _, t := range tags {
		rdsTags = append(rdsTags, rdstypes.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	if _, err := a.env.Clients.RDS.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(arn),
		Tags:         rdsTags,
	}); err != nil {
		if common.IsNotFound(err) {
			return models.Skipped(fmt.Sprintf("database instance %s no longer exists", id))
		}
		return apiFailure("RDS AddTagsToResource", err)
	}
	return models.Success(map[string]any{"db_instance": id, "arn": arn, "tags": tagMap(tags)})
}

// ---------------------------------------------------------------------------
// EnrichDBInstance
// ---------------------------------------------------------------------------

// EnrichDBInstance gathers the RDS view of the database instance.
type EnrichDBInstance struct{ env *Env }

// NewEnrichDBInstance returns an EnrichDBInstance action.
func NewEnrichDBInstance(env *Env) *EnrichDBInstance { return &EnrichDBInstance{env: env} }

// Name implements Action.
func (a *EnrichDBInstance) Name() string { return "EnrichDBInstance" }

// Execute implements Action.
func (a *EnrichDBInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	id := dbInstanceID(req)
	if id == "" {
		return models.Skipped("finding does not reference a database instance")
	}
	db, err := describeDB(ctx, a.env.Clients.RDS, id)
	if errors.Is(err, errDBGone) {
		return models.Skipped(fmt.Sprintf("database instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("RDS DescribeDBInstances", err)
	}

	details := map[string]any{
		"db_instance":         id,
		"arn":                 aws.ToString(db.DBInstanceArn),
		"class":               aws.ToString(db.DBInstanceClass),
		"engine":              aws.ToString(db.Engine),
		"engine_version":      aws.ToString(db.EngineVersion),
		"status":              aws.ToString(db.DBInstanceStatus),
		"cluster":             aws.ToString(db.DBClusterIdentifier),
		"publicly_accessible": aws.ToBool(db.PubliclyAccessible),
		"storage_encrypted":   aws.ToBool(db.StorageEncrypted),
		"iam_auth_enabled":    aws.ToBool(db.IAMDatabaseAuthenticationEnabled),
		"deletion_protection": aws.ToBool(db.DeletionProtection),
	}
	if db.Endpoint != nil {
		details["endpoint"] = fmt.Sprintf("%s:%d", aws.ToString(db.Endpoint.Address), aws.ToInt32(db.Endpoint.Port))
	}
	if db.DBSubnetGroup != nil {
		details["vpc_id"] = aws.ToString(db.DBSubnetGroup.VpcId)
	}
	var groups []string
	for _, g := range db.VpcSecurityGroups {
		groups = append(groups, aws.ToString(g.VpcSecurityGroupId))
	}
	details["security_groups"] = groups
	if u := req.Finding.Resource.RdsDbUserDetails; u != nil {
		details["login_user"] = u.User
		details["login_auth_method"] = u.AuthMethod
		details["login_application"] = u.Application
	}
	return models.Success(details)
}

// ---------------------------------------------------------------------------
// SnapshotDBInstance
// ---------------------------------------------------------------------------

// SnapshotDBInstance snapshots the database, or its cluster for Aurora.
type SnapshotDBInstance struct{ env *Env }

// NewSnapshotDBInstance returns a SnapshotDBInstance action.
func NewSnapshotDBInstance(env *Env) *SnapshotDBInstance { return &SnapshotDBInstance{env: env} }

// Name implements Action.
func (a *SnapshotDBInstance) Name() string { return "SnapshotDBInstance" }

// Execute implements Action.
func (a *SnapshotDBInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowDBSnapshots {
		return disabled("allow_db_snapshots")
	}
	id := dbInstanceID(req)
	if id == "" {
		return models.Skipped("finding does not reference a database instance")
	}
	stamp := a.env.now().UTC().Format("20060102-150405")

	cluster := ""
	if d := req.Finding.Resource.RdsDbInstanceDetails; d != nil {
		cluster = d.DbClusterIdentifier
	}

	if cluster != "" {
		snapID := snapshotIdentifier(cluster, stamp)
		out, err := a.env.Clients.RDS.CreateDBClusterSnapshot(ctx, &rds.CreateDBClusterSnapshotInput{
			DBClusterIdentifier:         aws.String(cluster),
			DBClusterSnapshotIdentifier: aws.String(snapID),
		})
		if err != nil {
			return apiFailure("RDS CreateDBClusterSnapshot", err)
		}
		arn := ""
		if out.DBClusterSnapshot != nil {
			arn = aws.ToString(out.DBClusterSnapshot.DBClusterSnapshotArn)
		}
		return models.Success(map[string]any{"cluster": cluster, "snapshot_id": snapID, "snapshot_arn": arn})
	}

	snapID := snapshotIdentifier(id, stamp)
	out, err := a.env.Clients.RDS.CreateDBSnapshot(ctx, &rds.CreateDBSnapshotInput{
		DBInstanceIdentifier: aws.String(id),
		DBSnapshotIdentifier: aws.String(snapID),
	})
	if err != nil {
		if common.IsNotFound(err) {
			return models.Skipped(fmt.Sprintf("database instance %s no longer exists", id))
		}
		return apiFailure("RDS CreateDBSnapshot", err)
	}
	arn := ""
	if out.DBSnapshot != nil {
		arn = aws.ToString(out.DBSnapshot.DBSnapshotArn)
	}
	return models.Success(map[string]any{"db_instance": id, "snapshot_id": snapID, "snapshot_arn": arn})
}

// ---------------------------------------------------------------------------
// RestrictPublicAccess
// ---------------------------------------------------------------------------

// RestrictPublicAccess turns off public accessibility of the database.
type RestrictPublicAccess struct{ env *Env }

// NewRestrictPublicAccess returns a RestrictPublicAccess action.
func NewRestrictPublicAccess(env *Env) *RestrictPublicAccess { return &RestrictPublicAccess{env: env} }

// Name implements Action.
func (a *RestrictPublicAccess) Name() string { return "RestrictPublicAccess" }

// Execute implements Action.
func (a *RestrictPublicAccess) Execute(ctx context.Context, req Request) models.ActionResult {
	id := dbInstanceID(req)
	if id == "" {
		return models.Skipped("finding does not reference a database instance")
	}
	db, err := describeDB(ctx, a.env.Clients.RDS, id)
	if errors.Is(err, errDBGone) {
		return models.Skipped(fmt.Sprintf("database instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("RDS DescribeDBInstances", err)
	}
	if !aws.ToBool(db.PubliclyAccessible) {
		return models.Skipped(fmt.Sprintf("database instance %s is not publicly accessible", id))
	}

	if _, err := a.env.Clients.RDS.ModifyDBInstance(ctx, &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: aws.String(id),
		PubliclyAccessible:   aws.Bool(false),
		ApplyImmediately:     aws.Bool(true),
	}); err != nil {
		return apiFailure("RDS ModifyDBInstance", err)
	}
	return models.Success(map[string]any{"db_instance": id, "publicly_accessible": false})
}

// ---------------------------------------------------------------------------
// IsolateDBInstance
// ---------------------------------------------------------------------------

// IsolateDBInstance replaces the database's VPC security groups with the
// quarantine group. Aurora instances take their groups from the cluster, so
// the cluster is modified instead.
type IsolateDBInstance struct{ env *Env }

// NewIsolateDBInstance returns an IsolateDBInstance action.
func NewIsolateDBInstance(env *Env) *IsolateDBInstance { return &IsolateDBInstance{env: env} }

// Name implements Action.
func (a *IsolateDBInstance) Name() string { return "IsolateDBInstance" }

// Execute implements Action.
func (a *IsolateDBInstance) Execute(ctx context.Context, req Request) models.ActionResult {
	id := dbInstanceID(req)
	if id == "" {
		return models.Skipped("finding does not reference a database instance")
	}
	db, err := describeDB(ctx, a.env.Clients.RDS, id)
	if errors.Is(err, errDBGone) {
		return models.Skipped(fmt.Sprintf("database instance %s no longer exists", id))
	}
	if err != nil {
		return apiFailure("RDS DescribeDBInstances", err)
	}
	if db.DBSubnetGroup == nil || aws.ToString(db.DBSubnetGroup.VpcId) == "" {
		return models.Failure(fmt.Sprintf("database instance %s has no VPC", id))
	}
	vpcID := aws.ToString(db.DBSubnetGroup.VpcId)

	groupID, _, err := quarantineGroup(ctx, a.env, vpcID)
	if err != nil {
		return models.Failure(err.Error())
	}

	var previous []string
	for _, g := range db.VpcSecurityGroups {
		previous = append(previous, aws.ToString(g.VpcSecurityGroupId))
	}

	if cluster := aws.ToString(db.DBClusterIdentifier); cluster != "" {
		if _, err := a.env.Clients.RDS.ModifyDBCluster(ctx, &rds.ModifyDBClusterInput{
			DBClusterIdentifier: aws.String(cluster),
			VpcSecurityGroupIds: []string{groupID},
			ApplyImmediately:    aws.Bool(true),
		}); err != nil {
			return apiFailure("RDS ModifyDBCluster", err)
		}
		return models.Success(map[string]any{
			"cluster": cluster, "security_group_id": groupID, "previous_groups": previous,
		})
	}

	if _, err := a.env.Clients.RDS.ModifyDBInstance(ctx, &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: aws.String(id),
		VpcSecurityGroupIds:  []string{groupID},
		ApplyImmediately:     aws.Bool(true),
	}); err != nil {
		return apiFailure("RDS ModifyDBInstance", err)
	}
	return models.Success(map[string]any{
		"db_instance": id, "security_group_id": groupID, "previous_groups": previous,
	})
}

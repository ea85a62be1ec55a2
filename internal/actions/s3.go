package actions

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// bucketName returns the bucket the request is about: the explicit param, or
// the first bucket in the finding.
func bucketName(req Request) string {
	if b := req.Param(ParamBucketName); b != "" {
		return b
	}
	for _, b := range req.Finding.Resource.S3BucketDetails {
		if b.Name != "" {
			return b.Name
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// TagBucket
// ---------------------------------------------------------------------------

// TagBucket merges the response tags into the bucket's tag set. S3 replaces
// the whole set on write, so existing tags are read first.
type TagBucket struct{ env *Env }

// NewTagBucket returns a TagBucket action.
func NewTagBucket(env *Env) *TagBucket { return &TagBucket{env: env} }

// Name implements Action.
func (a *TagBucket) Name() string { return "TagBucket" }

// Execute implements Action.
func (a *TagBucket) Execute(ctx context.Context, req Request) models.ActionResult {
	bucket := bucketName(req)
	if bucket == "" {
		return models.Skipped("finding does not reference a bucket")
	}
	c := a.env.Clients.S3

	merged := make(map[string]string)
	existing, err := c.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	switch {
	case err == nil:
		for _, t := range existing.TagSet {
			merged[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
	case common.HasErrorCode(err, "NoSuchTagSet"):
	case common.HasErrorCode(err, "NoSuchBucket"):
		return models.Skipped(fmt.Sprintf("bucket %s no longer exists", bucket))
	default:
		return apiFailure("S3 GetBucketTagging", err)
	}

	tags := a.env.responseTags(req.Finding, StatusInvestigating)
	for _, t := range tags {
		merged[t.Key] = t.Value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	set := make([]s3types.Tag, 0, len(keys))
	for _, k := range keys {
		set = append(set, s3types.Tag{Key: aws.String(k), Value: aws.String(merged[k])})
	}

	if _, err := c.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(bucket),
		Tagging: &s3types.Tagging{TagSet: set},
	}); err != nil {
		return apiFailure("S3 PutBucketTagging", err)
	}
	return models.Success(map[string]any{"bucket": bucket, "tags": tagMap(tags)})
}

// ---------------------------------------------------------------------------
// BlockPublicAccess
// ---------------------------------------------------------------------------

// BlockPublicAccess enables all four S3 Block Public Access settings on the
// bucket.
type BlockPublicAccess struct{ env *Env }

// NewBlockPublicAccess returns a BlockPublicAccess action.
func NewBlockPublicAccess(env *Env) *BlockPublicAccess { return &BlockPublicAccess{env: env} }

// Name implements Action.
func (a *BlockPublicAccess) Name() string { return "BlockPublicAccess" }

// Execute implements Action.
func (a *BlockPublicAccess) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowS3BlockPublicAccess {
		return disabled("allow_s3_block_public_access")
	}
	bucket := bucketName(req)
	if bucket == "" {
		return models.Skipped("finding does not reference a bucket")
	}

	_, err := a.env.Clients.S3.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		if common.HasErrorCode(err, "NoSuchBucket") {
			return models.Skipped(fmt.Sprintf("bucket %s no longer exists", bucket))
		}
		return apiFailure("S3 PutPublicAccessBlock", err)
	}
	return models.Success(map[string]any{"bucket": bucket, "public_access_block": "all"})
}

// ---------------------------------------------------------------------------
// EnrichBucket
// ---------------------------------------------------------------------------

// EnrichBucket gathers the bucket's location, exposure and protection state.
// Only the location lookup is mandatory; the others are recorded as errors
// when they fail, since many buckets lack some of the configurations.
type EnrichBucket struct{ env *Env }

// NewEnrichBucket returns an EnrichBucket action.
func NewEnrichBucket(env *Env) *EnrichBucket { return &EnrichBucket{env: env} }

// Name implements Action.
func (a *EnrichBucket) Name() string { return "EnrichBucket" }

// Execute implements Action.
func (a *EnrichBucket) Execute(ctx context.Context, req Request) models.ActionResult {
	bucket := bucketName(req)
	if bucket == "" {
		return models.Skipped("finding does not reference a bucket")
	}
	c := a.env.Clients.S3
	in := aws.String(bucket)

	loc, err := c.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: in})
	if err != nil {
		if common.HasErrorCode(err, "NoSuchBucket") {
			return models.Skipped(fmt.Sprintf("bucket %s no longer exists", bucket))
		}
		return apiFailure("S3 GetBucketLocation", err)
	}
	region := string(loc.LocationConstraint)
	if region == "" {
		region = "us-east-1"
	}
	details := map[string]any{"bucket": bucket, "region": region}
	problems := make(map[string]string)

	if ps, err := c.GetBucketPolicyStatus(ctx, &s3.GetBucketPolicyStatusInput{Bucket: in}); err == nil {
		if ps.PolicyStatus != nil {
			details["policy_is_public"] = aws.ToBool(ps.PolicyStatus.IsPublic)
		}
	} else if !common.HasErrorCode(err, "NoSuchBucketPolicy") {
		problems["policy_status"] = err.Error()
	} else {
		details["policy_is_public"] = false
	}

	if enc, err := c.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: in}); err == nil {
		var algos []string
		if enc.ServerSideEncryptionConfiguration != nil {
			for _, r := range enc.ServerSideEncryptionConfiguration.Rules {
				if r.ApplyServerSideEncryptionByDefault != nil {
					algos = append(algos, string(r.ApplyServerSideEncryptionByDefault.SSEAlgorithm))
				}
			}
		}
		details["encryption"] = algos
	} else {
		problems["encryption"] = err.Error()
	}

	if ver, err := c.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: in}); err == nil {
		status := string(ver.Status)
		if status == "" {
			status = "Disabled"
		}
		details["versioning"] = status
	} else {
		problems["versioning"] = err.Error()
	}

	if pab, err := c.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: in}); err == nil {
		if cfg := pab.PublicAccessBlockConfiguration; cfg != nil {
			details["public_access_block"] = map[string]bool{
				"block_public_acls":       aws.ToBool(cfg.BlockPublicAcls),
				"ignore_public_acls":      aws.ToBool(cfg.IgnorePublicAcls),
				"block_public_policy":     aws.ToBool(cfg.BlockPublicPolicy),
				"restrict_public_buckets": aws.ToBool(cfg.RestrictPublicBuckets),
			}
		}
	} else if common.HasErrorCode(err, "NoSuchPublicAccessBlockConfiguration") {
		details["public_access_block"] = nil
	} else {
		problems["public_access_block"] = err.Error()
	}

	if len(problems) > 0 {
		details["errors"] = problems
	}
	return models.Success(details)
}

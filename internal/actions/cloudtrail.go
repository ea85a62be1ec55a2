package actions

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// RestartCloudTrailLogging turns logging back on for every trail homed in
// the finding's region that is currently stopped.
type RestartCloudTrailLogging struct{ env *Env }

// NewRestartCloudTrailLogging returns a RestartCloudTrailLogging action.
func NewRestartCloudTrailLogging(env *Env) *RestartCloudTrailLogging {
	return &RestartCloudTrailLogging{env: env}
}

// Name implements Action.
func (a *RestartCloudTrailLogging) Name() string { return "RestartCloudTrailLogging" }

// Execute implements Action.
func (a *RestartCloudTrailLogging) Execute(ctx context.Context, req Request) models.ActionResult {
	c := a.env.Clients.CloudTrail
	out, err := c.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{IncludeShadowTrails: aws.Bool(true)})
	if err != nil {
		return apiFailure("CloudTrail DescribeTrails", err)
	}
	if len(out.TrailList) == 0 {
		return models.Skipped("no CloudTrail trails exist")
	}

	var restarted, foreign []string
	for _, t := range out.TrailList {
		arn := aws.ToString(t.TrailARN)
		// StartLogging must be called in the trail's home region.
		if home := aws.ToString(t.HomeRegion); a.env.Region != "" && home != "" && home != a.env.Region {
			status, err := c.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: aws.String(arn)})
			if err == nil && !aws.ToBool(status.IsLogging) {
				foreign = append(foreign, arn)
			}
			continue
		}
		status, err := c.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: aws.String(arn)})
		if err != nil {
			return apiFailure("CloudTrail GetTrailStatus "+aws.ToString(t.Name), err)
		}
		if aws.ToBool(status.IsLogging) {
			continue
		}
		if _, err := c.StartLogging(ctx, &cloudtrail.StartLoggingInput{Name: aws.String(arn)}); err != nil {
			return apiFailure("CloudTrail StartLogging "+aws.ToString(t.Name), err)
		}
		restarted = append(restarted, arn)
	}

	if len(restarted) == 0 {
		if len(foreign) > 0 {
			return models.Skipped(fmt.Sprintf("stopped trails are homed in another region: %v", foreign))
		}
		return models.Skipped("every trail is already logging")
	}
	details := map[string]any{"restarted": restarted}
	if len(foreign) > 0 {
		details["stopped_elsewhere"] = foreign
	}
	return models.Success(details)
}

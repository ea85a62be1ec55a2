package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

const (
	forensicsTimeout      = 90 * time.Second
	forensicsPollInterval = 2 * time.Second
	forensicsOutputLimit  = 8000
)

// forensicsScript captures volatile state that disappears once the instance
// is isolated or terminated.
var forensicsScript = strings.Join([]string{
	"echo '== processes =='; ps auxww",
	"echo '== sockets =='; (ss -tunap 2>/dev/null || netstat -tunap 2>/dev/null)",
	"echo '== logins =='; who; last -n 20 2>/dev/null",
	"echo '== tmp =='; ls -la /tmp /var/tmp /dev/shm 2>/dev/null",
	"echo '== cron =='; ls -la /etc/cron* /var/spool/cron 2>/dev/null",
}, "\n")

// CollectForensics runs a read-only capture script on the instance through
// SSM Run Command and records its output.
type CollectForensics struct{ env *Env }

// NewCollectForensics returns a CollectForensics action.
func NewCollectForensics(env *Env) *CollectForensics { return &CollectForensics{env: env} }

// Name implements Action.
func (a *CollectForensics) Name() string { return "CollectForensics" }

// Execute implements Action.
func (a *CollectForensics) Execute(ctx context.Context, req Request) models.ActionResult {
	if !a.env.Config.Actions.AllowForensics {
		return disabled("allow_forensics")
	}
	id := req.Finding.InstanceID()
	if id == "" {
		return models.Skipped("finding does not reference an instance")
	}
	c := a.env.Clients.SSM

	info, err := c.DescribeInstanceInformation(ctx, &ssm.DescribeInstanceInformationInput{
		Filters: []ssmtypes.InstanceInformationStringFilter{{Key: aws.String("InstanceIds"), Values: []string{id}}},
	})
	if err != nil {
		return apiFailure("SSM DescribeInstanceInformation", err)
	}
	if len(info.InstanceInformationList) == 0 {
		return models.Skipped(fmt.Sprintf("instance %s is not managed by SSM", id))
	}

	sent, err := c.SendCommand(ctx, &ssm.SendCommandInput{
		InstanceIds:  []string{id},
		DocumentName: aws.String("AWS-RunShellScript"),
		Comment:      aws.String(truncate("gdr forensics for "+req.Finding.ID, 100)),
		Parameters:   map[string][]string{"commands": {forensicsScript}},
	})
	if err != nil {
		return apiFailure("SSM SendCommand", err)
	}
	if sent.Command == nil || sent.Command.CommandId == nil {
		return models.Failure("SSM SendCommand returned no command ID")
	}
	commandID := aws.ToString(sent.Command.CommandId)

	deadline := a.env.now().Add(forensicsTimeout)
	for {
		res, err := c.GetCommandInvocation(ctx, &ssm.GetCommandInvocationInput{
			CommandId:  aws.String(commandID),
			InstanceId: aws.String(id),
		})
		// InvocationDoesNotExist is normal for a few seconds after SendCommand.
		if err == nil {
			switch res.Status {
			case ssmtypes.CommandInvocationStatusPending,
				ssmtypes.CommandInvocationStatusInProgress,
				ssmtypes.CommandInvocationStatusDelayed:
			case ssmtypes.CommandInvocationStatusSuccess:
				return models.Success(map[string]any{
					"instance_id": id,
					"command_id":  commandID,
					"output":      truncate(aws.ToString(res.StandardOutputContent), forensicsOutputLimit),
				})
			default:
				return models.Failure(fmt.Sprintf("SSM command %s finished with status %s: %s",
					commandID, res.Status, truncate(aws.ToString(res.StandardErrorContent), 500)))
			}
		}

		if !a.env.now().Before(deadline) {
			return models.Failure(fmt.Sprintf("SSM command %s did not finish within %s", commandID, forensicsTimeout))
		}
		if err := a.env.sleep(ctx, forensicsPollInterval); err != nil {
			return models.Failure(fmt.Sprintf("SSM command %s: %v", commandID, err))
		}
	}
}

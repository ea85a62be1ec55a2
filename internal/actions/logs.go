package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

const flowLogResultLimit = 100

// QueryFlowLogs runs a CloudWatch Logs Insights query over the VPC flow log
// group for traffic involving the finding's remote IPs and the instance's
// interfaces, and records the matching records.
type QueryFlowLogs struct{ env *Env }

// NewQueryFlowLogs returns a QueryFlowLogs action.
func NewQueryFlowLogs(env *Env) *QueryFlowLogs { return &QueryFlowLogs{env: env} }

// Name implements Action.
func (a *QueryFlowLogs) Name() string { return "QueryFlowLogs" }

// Execute implements Action.
func (a *QueryFlowLogs) Execute(ctx context.Context, req Request) models.ActionResult {
	cfg := a.env.Config.Logs
	if cfg.FlowLogGroup == "" {
		return models.Skipped("no flow log group configured (logs.flow_log_group)")
	}
	query := FlowLogQuery(req.Finding)
	if query == "" {
		return models.Skipped("finding has no remote IPs or network interfaces to query")
	}

	end := a.env.now()
	start := end.Add(-cfg.Lookback)
	started, err := a.env.Clients.Logs.StartQuery(ctx, &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(cfg.FlowLogGroup),
		StartTime:    aws.Int64(start.Unix()),
		EndTime:      aws.Int64(end.Unix()),
		QueryString:  aws.String(query),
		Limit:        aws.Int32(flowLogResultLimit),
	})
	if err != nil {
		return apiFailure("CloudWatch Logs StartQuery", err)
	}
	queryID := aws.ToString(started.QueryId)

	deadline := a.env.now().Add(cfg.QueryTimeout)
	for {
		res, err := a.env.Clients.Logs.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{
			QueryId: aws.String(queryID),
		})
		if err != nil {
			return apiFailure("CloudWatch Logs GetQueryResults", err)
		}
		switch res.Status {
		case cwltypes.QueryStatusComplete:
			return models.Success(map[string]any{
				"log_group": cfg.FlowLogGroup,
				"query_id":  queryID,
				"records":   flattenResults(res.Results),
			})
		case cwltypes.QueryStatusFailed, cwltypes.QueryStatusCancelled, cwltypes.QueryStatusTimeout:
			return models.Failure(fmt.Sprintf("flow log query %s ended with status %s", queryID, res.Status))
		}

		if !a.env.now().Before(deadline) {
			return models.Failure(fmt.Sprintf("flow log query %s did not complete within %s", queryID, cfg.QueryTimeout))
		}
		if err := a.env.sleep(ctx, cfg.PollInterval); err != nil {
			return models.Failure(fmt.Sprintf("flow log query %s: %v", queryID, err))
		}
	}
}

// FlowLogQuery builds the Insights query for f, or "" when the finding names
// neither remote IPs nor network interfaces.
func FlowLogQuery(f *models.Finding) string {
	var clauses []string
	if ips := f.RemoteIPs(); len(ips) > 0 {
		list := quoteList(ips)
		clauses = append(clauses, "srcAddr in "+list, "dstAddr in "+list)
	}
	if d := f.Resource.InstanceDetails; d != nil {
		var enis []string
		for _, ni := range d.NetworkInterfaces {
			if ni.NetworkInterfaceID != "" {
				enis = append(enis, ni.NetworkInterfaceID)
			}
		}
		if len(enis) > 0 {
			clauses = append(clauses, "interfaceId in "+quoteList(enis))
		}
	}
	if len(clauses) == 0 {
		return ""
	}
	return "fields @timestamp, interfaceId, srcAddr, srcPort, dstAddr, dstPort, protocol, action, bytes" +
		" | filter " + strings.Join(clauses, " or ") +
		" | sort @timestamp desc" +
		fmt.Sprintf(" | limit %d", flowLogResultLimit)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + s + `"`
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func flattenResults(rows [][]cwltypes.ResultField) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(row))
		for _, field := range row {
			name := aws.ToString(field.Field)
			if name == "@ptr" {
				continue
			}
			rec[name] = aws.ToString(field.Value)
		}
		out = append(out, rec)
	}
	return out
}

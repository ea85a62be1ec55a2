package notify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// SNS rejects subjects longer than 100 characters.
const maxSubject = 100

// StatusMark returns the trail marker for a status.
func StatusMark(s models.ActionStatus) string {
	switch s {
	case models.StatusSuccess:
		return "✔"
	case models.StatusError:
		return "✖"
	default:
		return "–"
	}
}

func startingSubject(f *models.Finding, playbook string) string {
	return subject(fmt.Sprintf("[%s] %s: running %s", f.Label(), f.Type, playbook))
}

func completeSubject(n CompleteNotice) string {
	outcome := "completed"
	if n.Failed {
		outcome = "FAILED"
	}
	return subject(fmt.Sprintf("[%s] %s: %s %s", n.Finding.Label(), n.Finding.Type, n.Playbook, outcome))
}

func subject(s string) string {
	if len(s) <= maxSubject {
		return s
	}
	return s[:maxSubject-3] + "..."
}

// RenderStarting returns the plain-text body announcing a playbook run.
func RenderStarting(f *models.Finding, playbook string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GuardDuty finding %s\n", f.Type)
	writeFindingSummary(&b, f)
	fmt.Fprintf(&b, "Playbook:  %s\n", playbook)
	b.WriteString("Status:    starting\n")
	if f.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", f.Description)
	}
	return b.String()
}

// RenderComplete returns the plain-text body reporting a finished run: the
// ordered execution trail and the keys of any enriched data.
func RenderComplete(n CompleteNotice) string {
	var b strings.Builder
	status := "completed"
	if n.Failed {
		status = "FAILED"
	}
	fmt.Fprintf(&b, "GuardDuty finding %s\n", n.Finding.Type)
	writeFindingSummary(&b, n.Finding)
	fmt.Fprintf(&b, "Playbook:  %s\n", n.Playbook)
	fmt.Fprintf(&b, "Status:    %s\n", status)
	if n.ExecutionID != "" {
		fmt.Fprintf(&b, "Execution: %s\n", n.ExecutionID)
	}

	if n.Result == nil || len(n.Result.ActionResults) == 0 {
		b.WriteString("\nNo actions were executed.\n")
		return b.String()
	}

	c := n.Result.Counts()
	fmt.Fprintf(&b, "\nExecution trail (%d succeeded, %d failed, %d skipped):\n", c.Success, c.Error, c.Skipped)
	for _, r := range n.Result.ActionResults {
		line := fmt.Sprintf("  %s %s", StatusMark(r.Status), r.ActionName)
		if d, ok := r.Details.(string); ok && d != "" && r.Status != models.StatusSuccess {
			line += ": " + d
		}
		b.WriteString(line + "\n")
	}

	if len(n.Result.EnrichedData) > 0 {
		keys := make([]string, 0, len(n.Result.EnrichedData))
		for k := range n.Result.EnrichedData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, "\nEnriched data: %s\n", strings.Join(keys, ", "))
	}
	return b.String()
}

func writeFindingSummary(b *strings.Builder, f *models.Finding) {
	fmt.Fprintf(b, "Severity:  %s (%.1f)\n", f.Label(), f.Severity)
	fmt.Fprintf(b, "Finding:   %s\n", f.ID)
	if f.AccountID != "" || f.Region != "" {
		fmt.Fprintf(b, "Account:   %s  Region: %s\n", f.AccountID, f.Region)
	}
	if r := ResourceSummary(f); r != "" {
		fmt.Fprintf(b, "Resource:  %s\n", r)
	}
}

// ResourceSummary describes the affected resource in one line.
func ResourceSummary(f *models.Finding) string {
	r := f.Resource
	switch {
	case r.InstanceDetails != nil && r.InstanceDetails.InstanceID != "":
		return "EC2 instance " + r.InstanceDetails.InstanceID
	case r.AccessKeyDetails != nil:
		d := r.AccessKeyDetails
		s := fmt.Sprintf("%s %s", d.UserType, d.UserName)
		if d.AccessKeyID != "" {
			s += " (" + d.AccessKeyID + ")"
		}
		return strings.TrimSpace(s)
	case len(r.S3BucketDetails) > 0:
		names := make([]string, 0, len(r.S3BucketDetails))
		for _, d := range r.S3BucketDetails {
			names = append(names, d.Name)
		}
		return "S3 bucket " + strings.Join(names, ", ")
	case r.RdsDbInstanceDetails != nil:
		s := "RDS instance " + r.RdsDbInstanceDetails.DbInstanceIdentifier
		if u := r.RdsDbUserDetails; u != nil && u.User != "" {
			s += fmt.Sprintf(" (user %s, %s auth)", u.User, u.AuthMethod)
		}
		return s
	}
	return r.ResourceType
}

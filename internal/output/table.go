// Package output renders execution outcomes and the playbook registry for the
// CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

// ANSI color codes (used when Colored=true).
const (
	ansiReset   = "\033[0m"
	ansiBoldRed = "\033[1;31m"
	ansiRed     = "\033[0;31m"
	ansiYellow  = "\033[0;33m"
	ansiBlue    = "\033[0;34m"
	ansiGreen   = "\033[0;32m"
	ansiGray    = "\033[0;90m"
)

// Format selects the CLI output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format %q: want table or json", s)
}

// TableOptions controls table rendering.
type TableOptions struct {
	// Colored wraps severity and status labels with ANSI codes. Default
	// false (CI-safe).
	Colored bool
}

// Execution is the CLI view of one handled finding.
type Execution struct {
	ExecutionID string
	FindingID   string
	FindingType string
	Severity    models.Severity
	Playbook    string
	StatusCode  int
	Message     string
	Result      *models.PlaybookResult
}

// ColorSeverity wraps a severity string with ANSI codes when colored is true.
func ColorSeverity(sev models.Severity, colored bool) string {
	return colorize(string(sev), severityCode(sev), colored)
}

// ColorStatus wraps an action status with ANSI codes when colored is true.
func ColorStatus(s models.ActionStatus, colored bool) string {
	return colorize(string(s), statusCode(s), colored)
}

func colorize(text, code string, colored bool) string {
	if !colored || code == "" {
		return text
	}
	return code + text + ansiReset
}

func severityCode(sev models.Severity) string {
	switch sev {
	case models.SeverityCritical:
		return ansiBoldRed
	case models.SeverityHigh:
		return ansiRed
	case models.SeverityMedium:
		return ansiYellow
	case models.SeverityLow:
		return ansiBlue
	}
	return ""
}

func statusCode(s models.ActionStatus) string {
	switch s {
	case models.StatusSuccess:
		return ansiGreen
	case models.StatusError:
		return ansiRed
	case models.StatusSkipped:
		return ansiGray
	}
	return ""
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// padCell pads text to width. ANSI codes wrap only the text; trailing
// padding spaces are plain so later columns stay aligned.
func padCell(text, code string, width int, colored bool) string {
	if !colored || code == "" {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// DetailsText flattens action details to one line.
func DetailsText(d any) string {
	switch v := d.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v[k]))
		}
		return strings.Join(parts, " ")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// RenderExecution writes a summary header and the execution trail table.
//
// Column order:
//
//	#  ACTION  STATUS  DETAILS
func RenderExecution(w io.Writer, e Execution, opts TableOptions) {
	fmt.Fprintf(w, "Execution:  %s\n", e.ExecutionID)
	fmt.Fprintf(w, "Finding:    %s (%s)\n", e.FindingID, e.FindingType)
	if e.Severity != "" {
		fmt.Fprintf(w, "Severity:   %s\n", ColorSeverity(e.Severity, opts.Colored))
	}
	if e.Playbook != "" {
		fmt.Fprintf(w, "Playbook:   %s\n", e.Playbook)
	}
	fmt.Fprintf(w, "Status:     %d %s\n\n", e.StatusCode, e.Message)

	if e.Result == nil || len(e.Result.ActionResults) == 0 {
		fmt.Fprintln(w, "No actions executed.")
		return
	}

	const (
		wIndex   = 3
		wAction  = 28
		wStatus  = 8
		wDetails = 70
	)

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %s", wIndex, "#", wAction, "ACTION", wStatus, "STATUS", "DETAILS")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+wDetails-len("DETAILS")))

	for i, r := range e.Result.ActionResults {
		fmt.Fprintf(w, "%-*d  %-*s  %s  %s\n",
			wIndex, i+1,
			wAction, ShortenMessage(r.ActionName, wAction),
			padCell(string(r.Status), statusCode(r.Status), wStatus, opts.Colored),
			ShortenMessage(DetailsText(r.Details), wDetails),
		)
	}

	c := e.Result.Counts()
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d skipped\n", c.Success, c.Error, c.Skipped)
	if len(e.Result.EnrichedData) > 0 {
		keys := make([]string, 0, len(e.Result.EnrichedData))
		for k := range e.Result.EnrichedData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "Enriched:   %s\n", strings.Join(keys, ", "))
	}
}

// PlaybookRow is one finding type to playbook mapping.
type PlaybookRow struct {
	FindingType string `json:"finding_type"`
	Playbook    string `json:"playbook"`
}

// RenderPlaybooks writes the finding type to playbook mapping as a table.
func RenderPlaybooks(w io.Writer, rows []PlaybookRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No playbooks registered.")
		return
	}
	width := len("FINDING TYPE")
	for _, r := range rows {
		if len(r.FindingType) > width {
			width = len(r.FindingType)
		}
	}
	header := fmt.Sprintf("%-*s  %s", width, "FINDING TYPE", "PLAYBOOK")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)+16))
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %s\n", width, r.FindingType, r.Playbook)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

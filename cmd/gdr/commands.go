package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/engine"
	"github.com/pankaj-dahiya-devops/gdr/internal/logging"
	"github.com/pankaj-dahiya-devops/gdr/internal/models"
	"github.com/pankaj-dahiya-devops/gdr/internal/output"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbooks"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/findings"
	"github.com/pankaj-dahiya-devops/gdr/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gdr",
		Short: "gdr: automated GuardDuty incident response",
	}
	root.PersistentFlags().String("config", "", "Path to the responder config file (default: $GDR_CONFIG)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newPlaybooksCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

// runOptions are the flags of gdr run.
type runOptions struct {
	ConfigPath string
	EventFile  string
	DetectorID string
	FindingID  string
	Profile    string
	Region     string
	Format     string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the response playbook for one GuardDuty finding",
		Long: `Run the response playbook for one GuardDuty finding, taking the same path
as the Lambda handler. The finding is read from an EventBridge event file
(--event) or fetched live from a detector (--detector-id and --finding-id).

Playbooks make real changes to the account. Exits 1 unless the finding was
handled with status 200.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath, _ = cmd.Flags().GetString("config")
			resp, err := runFinding(cmd.Context(), common.NewDefaultAWSClientProvider(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("finding handled with status %d: %s", resp.StatusCode, resp.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.EventFile, "event", "", "EventBridge event or bare finding JSON file")
	cmd.Flags().StringVar(&opts.DetectorID, "detector-id", "", "GuardDuty detector ID to fetch the finding from")
	cmd.Flags().StringVar(&opts.FindingID, "finding-id", "", "GuardDuty finding ID to fetch")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "AWS profile name (default: config, then credential chain)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "AWS region of the detector (default: config, then profile)")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "Output format: table or json")
	cmd.MarkFlagsMutuallyExclusive("event", "detector-id")
	cmd.MarkFlagsRequiredTogether("detector-id", "finding-id")
	return cmd
}

// runFinding loads config, builds the engine, resolves the finding and
// handles it, rendering the outcome to w. Logs go to logw. The returned
// error covers setup and rendering failures only; the handling status is in
// the Response.
func runFinding(ctx context.Context, provider common.AWSClientProvider, w, logw io.Writer, opts runOptions) (engine.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.EventFile == "" && opts.DetectorID == "" {
		return engine.Response{}, fmt.Errorf("one of --event or --detector-id/--finding-id is required")
	}
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return engine.Response{}, err
	}

	cfg, err := config.NewFileLoader(opts.ConfigPath).Load()
	if err != nil {
		return engine.Response{}, err
	}
	if opts.Profile != "" {
		cfg.AWS.Profile = opts.Profile
	}
	if opts.Region != "" {
		cfg.AWS.Region = opts.Region
	}
	log := logging.New(logw, cfg.Logging.Level, "text")

	eng, sess, err := engine.Bootstrap(ctx, provider, cfg, log)
	if err != nil {
		return engine.Response{}, err
	}

	f, err := loadFinding(ctx, provider, sess, opts)
	if err != nil {
		return engine.Response{}, err
	}

	out := eng.HandleFinding(ctx, f)
	resp := out.Response()
	if err := renderOutcome(w, out, resp, format); err != nil {
		return resp, err
	}
	return resp, nil
}

func loadFinding(ctx context.Context, provider common.AWSClientProvider, sess *common.Session, opts runOptions) (*models.Finding, error) {
	if opts.EventFile != "" {
		raw, err := os.ReadFile(opts.EventFile)
		if err != nil {
			return nil, fmt.Errorf("read event file: %w", err)
		}
		f, err := models.ParseEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("parse event file %s: %w", opts.EventFile, err)
		}
		return f, nil
	}
	clients := provider.ClientsForRegion(sess, opts.Region)
	return findings.NewFetcher(clients.GuardDuty).Get(ctx, opts.DetectorID, opts.FindingID)
}

func renderOutcome(w io.Writer, out *engine.Outcome, resp engine.Response, format output.Format) error {
	if format == output.FormatJSON {
		return output.WriteJSON(w, struct {
			Response engine.Response `json:"response"`
			Outcome  *engine.Outcome `json:"outcome"`
		}{resp, out})
	}
	output.RenderExecution(w, output.Execution{
		ExecutionID: out.ExecutionID,
		FindingID:   out.FindingID,
		FindingType: out.FindingType,
		Severity:    out.Severity,
		Playbook:    out.Playbook,
		StatusCode:  resp.StatusCode,
		Message:     resp.Message,
		Result:      out.Result,
	}, output.TableOptions{Colored: isTerminal(w)})
	return nil
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	st, err := f.Stat()
	return err == nil && st.Mode()&os.ModeCharDevice != 0
}

// ---------------------------------------------------------------------------
// playbooks
// ---------------------------------------------------------------------------

func newPlaybooksCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:          "playbooks",
		Short:        "List the finding types each playbook handles",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPlaybooks(cmd.OutOrStdout(), format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

// playbookRows returns one row per registered finding type, sorted by type.
func playbookRows() []output.PlaybookRow {
	reg := playbooks.NewRegistry()
	types := reg.FindingTypes()
	rows := make([]output.PlaybookRow, 0, len(types))
	for _, t := range types {
		r, _ := reg.Lookup(t)
		rows = append(rows, output.PlaybookRow{FindingType: t, Playbook: r.Name})
	}
	return rows
}

func listPlaybooks(w io.Writer, format string) error {
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	rows := playbookRows()
	if f == output.FormatJSON {
		return output.WriteJSON(w, rows)
	}
	output.RenderPlaybooks(w, rows)
	return nil
}

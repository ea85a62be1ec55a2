package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/gdr/internal/config"
	"github.com/pankaj-dahiya-devops/gdr/internal/logging"
	"github.com/pankaj-dahiya-devops/gdr/internal/notify"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbook"
	"github.com/pankaj-dahiya-devops/gdr/internal/playbooks"
	"github.com/pankaj-dahiya-devops/gdr/internal/providers/aws/common"
)

// DoctorResult is the structured output of gdr doctor. It can be serialised
// to JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		Region      string `json:"region,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Config struct {
		Path    string   `json:"path,omitempty"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"config"`

	Registry struct {
		Playbooks    int                 `json:"playbooks"`
		FindingTypes int                 `json:"finding_types"`
		Duplicates   map[string][]string `json:"duplicates,omitempty"`
	} `json:"registry"`

	Notifications struct {
		Channels []string `json:"channels"`
		Error    string   `json:"error,omitempty"`
	} `json:"notifications"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			profile, _ := cmd.Flags().GetString("profile")
			path, _ := cmd.Flags().GetString("config")
			result, err := runDoctor(
				context.Background(),
				common.NewDefaultAWSClientProvider(),
				config.NewFileLoader(path),
				playbooks.Registrations(),
				cmd.OutOrStdout(),
				format,
				profile,
			)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("profile", "", "AWS profile to use (default: config, then credential chain)")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures. Callers must inspect
// result.OverallHealthy to determine whether the environment is healthy.
func runDoctor(ctx context.Context, provider common.AWSClientProvider, loader config.Loader, regs []playbook.Registration, w io.Writer, format, profile string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, provider, loader, regs, profile)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a DoctorResult.
func collectDoctorResult(ctx context.Context, provider common.AWSClientProvider, loader config.Loader, regs []playbook.Registration, profile string) DoctorResult {
	var result DoctorResult

	// Config: stat → load → validate. A missing file means defaults.
	result.Config.Path = loader.ConfigPath()
	if result.Config.Path != "" {
		if _, err := os.Stat(result.Config.Path); err == nil {
			result.Config.Present = true
		} else if !errors.Is(err, os.ErrNotExist) {
			result.Config.Present = true
			result.Config.Errors = []string{err.Error()}
		}
	}
	cfg, err := loader.Load()
	if err != nil {
		result.Config.Errors = append(result.Config.Errors, err.Error())
		cfg = config.Default()
	} else if len(result.Config.Errors) == 0 {
		result.Config.Valid = true
	}

	// AWS: credentials → STS account ID.
	if profile == "" {
		profile = cfg.AWS.Profile
	}
	result.AWS.Profile = profile
	sess, err := provider.LoadProfile(ctx, profile, cfg.AWS.Region)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = sess.AccountID
		result.AWS.Region = sess.Region
	}

	// Registry: the static table must not claim a finding type twice.
	reg := playbook.FromRegistrations(regs)
	result.Registry.Playbooks = len(reg.Registrations())
	result.Registry.FindingTypes = reg.Len()
	if dups := playbook.Duplicates(regs); len(dups) > 0 {
		result.Registry.Duplicates = dups
	}

	// Notifications: the channels a run would use.
	var sns common.SNSClient
	if sess != nil && sess.Clients != nil {
		sns = sess.Clients.SNS
	}
	mgr, err := notify.FromConfig(cfg.Notifications, sns, logging.Discard())
	if err != nil {
		result.Notifications.Error = err.Error()
	} else {
		result.Notifications.Channels = mgr.Channels()
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.Config.Valid &&
		len(result.Registry.Duplicates) == 0 &&
		result.Notifications.Error == ""

	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		doctorPrint(w, "Home Region", "OK", result.AWS.Region)
	}

	fmt.Fprintln(w, "\nConfig:")
	switch {
	case result.Config.Path == "":
		doctorPrint(w, "Config file", "Not set (defaults)", "")
	case result.Config.Present:
		doctorPrint(w, "Config file", "YES", result.Config.Path)
	default:
		doctorPrint(w, "Config file", "Not found (defaults)", result.Config.Path)
	}
	if result.Config.Valid {
		doctorPrint(w, "Config valid", "OK", "")
	} else {
		for _, e := range result.Config.Errors {
			doctorPrint(w, "Config valid", "FAIL", e)
		}
	}

	fmt.Fprintln(w, "\nPlaybooks:")
	doctorPrint(w, "Registered", "OK", fmt.Sprintf("%d playbooks, %d finding types", result.Registry.Playbooks, result.Registry.FindingTypes))
	if len(result.Registry.Duplicates) == 0 {
		doctorPrint(w, "Duplicate finding types", "OK", "")
	} else {
		types := make([]string, 0, len(result.Registry.Duplicates))
		for t := range result.Registry.Duplicates {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			doctorPrint(w, "Duplicate finding types", "FAIL", fmt.Sprintf("%s claimed by %v", t, result.Registry.Duplicates[t]))
		}
	}

	fmt.Fprintln(w, "\nNotifications:")
	if result.Notifications.Error != "" {
		doctorPrint(w, "Channels", "FAIL", result.Notifications.Error)
	} else if len(result.Notifications.Channels) == 0 {
		doctorPrint(w, "Channels", "NONE", "operators will not be notified")
	} else {
		doctorPrint(w, "Channels", "OK", fmt.Sprintf("%v", result.Notifications.Channels))
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}

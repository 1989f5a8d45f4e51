package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/PolarWolf314/syc/internal/audit"
	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/ui"
	"github.com/PolarWolf314/syc/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	logLimit    int
	logReverse  bool
	logUser     string
	logLogsRoot string
	logAccess   string
	logDenied   bool
	logSince    string
	logUntil    string
	logJSON     bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logUser, "user", "", "show one identity's log")
	logCmd.Flags().StringVar(&logLogsRoot, "logs-root", "", "logs directory (default from gate.toml)")
	logCmd.Flags().StringVar(&logAccess, "access", "", "filter by access type (comma-separated: read,write,admin,deny)")
	logCmd.Flags().BoolVar(&logDenied, "denied", false, "only show denied attempts")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries on or after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries on or before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

// resetLogCommandState resets the log command's global state for testing.
func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logLogsRoot = ""
	logAccess = ""
	logDenied = false
	logSince = ""
	logUntil = ""
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the access log",
	Long: `Displays the gate's access log.

Shows who accessed which path, how, and whether it was allowed. Use filters
to narrow down the results.

Examples:
  syc log                                # View full log
  syc log -n 10                          # Last 10 entries
  syc log --reverse                      # Most recent first
  syc log --user alice@example.com       # One identity
  syc log --denied --access write,admin  # Refused writes
  syc log --since 2024-01-01             # Filter by date
  syc log --json                         # JSON output
  syc log -v                             # Also list the segment files read`,
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting log command")

	spinner, cleanup := startSpinner("Loading access log...", verbose)
	defer cleanup()

	var env workflows.Env
	if logLogsRoot == "" {
		var err error
		if env, err = currentEnv(); err != nil {
			return fail(spinner, err)
		}
	}
	env.Log = Logger

	result, err := workflows.Log(context.Background(), env, workflows.LogOptions{
		LogsRoot:    logLogsRoot,
		Limit:       logLimit,
		Reverse:     logReverse,
		User:        logUser,
		AccessTypes: logAccess,
		DeniedOnly:  logDenied,
		Since:       logSince,
		Until:       logUntil,
	})
	if errors.Is(err, kerrors.ErrFileNotFound) {
		spinner.FinalMSG = ui.Info.Sprint("ℹ") + " No access log found. Requests are logged once " + ui.Code.Sprint("syc serve") + " is running."
		return nil
	}
	if err != nil {
		return fail(spinner, err)
	}

	Logger.Debugf("Read %d entries from %s", result.TotalEntriesBeforeFilter, result.LogsRoot)
	Logger.Debugf("After filtering: %d entries", len(result.Entries))

	spinner.FinalMSG = ""
	if len(result.Entries) == 0 {
		if result.TotalEntriesBeforeFilter == 0 {
			fmt.Println("No access log entries found.")
		} else {
			fmt.Println("No access log entries found matching the filters.")
		}
		return nil
	}

	if logJSON {
		return outputLogJSON(result.Entries)
	}
	outputLogDefault(result.Entries)
	if verbose {
		outputSegments(result)
	}
	return nil
}

// outputSegments lists the segment files the entries were read from.
func outputSegments(result *workflows.LogResult) {
	rel := make([]string, len(result.Segments))
	for i, seg := range result.Segments {
		if r, err := filepath.Rel(result.LogsRoot, seg); err == nil {
			seg = r
		}
		rel[i] = seg
	}
	fmt.Println()
	fmt.Println(ui.Field("segments", len(rel)) + " " + ui.Muted.Sprint("under "+result.LogsRoot))
	fmt.Print(ui.List(rel))
}

func outputLogJSON(entries []audit.Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return Logger.ErrorfAndReturn("failed to marshal entries to JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func outputLogDefault(entries []audit.Entry) {
	for _, e := range entries {
		mark := ui.Success.Sprint("allow")
		if !e.Allowed {
			mark = ui.Error.Sprint("deny ")
		}
		fmt.Printf("%-19s  %-25s  %-7s  %-6s  %s  %s\n",
			workflows.FormatDateTime(e), e.User, e.Method, e.AccessType, mark, workflows.FormatDetails(e))
	}
}

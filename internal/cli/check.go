package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/ui"
	"github.com/rileyhilliard/sshwrap/pkg/sshutil"
	"github.com/spf13/cobra"
)

// defaultCheckTimeout bounds each probe when --timeout isn't given.
const defaultCheckTimeout = 10 * time.Second

// checkCmd verifies config, connectivity and rsync on both ends
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the config, the connection and rsync",
	Long: `Run a quick health check against a host: the config loads and validates,
a master connection comes up and echoes a token back, and rsync is installed
locally and on the remote.

Exits non-zero when any check fails.

Examples:
  sshwrap check
  sshwrap --host gpu check --timeout 5s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := runChecks(cmd.Context())
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderCheckTable(rows))
		for _, r := range rows {
			if r.Status == "fail" {
				return errors.NewExitError(1)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runChecks runs each check in order, stopping at the first one the rest
// depend on.
func runChecks(ctx context.Context) []ui.CheckRow {
	var rows []ui.CheckRow

	wf, err := SetupWorkflow(ctx, WorkflowOptions{Host: hostFlag})
	if err != nil {
		return append(rows, failRow("Config", err))
	}
	source := wf.ConfigPath
	if source == "" {
		source = "no config file, using defaults"
	}
	rows = append(rows, ui.CheckRow{
		Status:   "pass",
		Category: "Config",
		Message:  fmt.Sprintf("Loaded %s", source),
	}, ui.CheckRow{
		Status:   "pass",
		Category: "Config",
		Message:  fmt.Sprintf("Host %s resolves to %s (%s)", wf.Resolved.Name, wf.destination(), wf.Resolved.Source),
	})

	timeout := wf.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}

	ok, err := wf.Client.CanConnect(ctx, timeout)
	switch {
	case err != nil:
		return append(rows, failRow("Connection", err))
	case !ok:
		return append(rows, ui.CheckRow{
			Status:     "fail",
			Category:   "Connection",
			Message:    "Connected, but the remote shell didn't echo back",
			Suggestion: "Check the login shell on the remote prints nothing unexpected from its rc files.",
		})
	}
	rows = append(rows, ui.CheckRow{
		Status:   "pass",
		Category: "Connection",
		Message:  fmt.Sprintf("Master connection to %s is up", wf.destination()),
	})

	if v, err := wf.Client.LocalRsyncVersion(ctx); err != nil {
		rows = append(rows, failRow("Rsync", err))
	} else {
		msg := "Local rsync " + v.String()
		if v.NeedsOldArgs() {
			msg += " (recv passes --old-args)"
		}
		rows = append(rows, ui.CheckRow{Status: "pass", Category: "Rsync", Message: msg})
	}

	if err := wf.Client.CheckRsync(ctx, timeout); err != nil {
		rows = append(rows, failRow("Rsync", err))
	} else {
		rows = append(rows, ui.CheckRow{Status: "pass", Category: "Rsync", Message: "Remote rsync found"})
	}
	return rows
}

// failRow turns err into a failed check, keeping its suggestion.
func failRow(category string, err error) ui.CheckRow {
	row := ui.CheckRow{Status: "fail", Category: category, Message: err.Error()}

	var structured *errors.Error
	var se *errors.SessionError
	switch {
	case stderrors.As(err, &structured):
		row.Message = structured.Message
		row.Suggestion = structured.Suggestion
	case stderrors.As(err, &se):
		row.Suggestion = sessionHint(se)
	}
	return row
}

// sessionHint is the suggestion for a session failure. Host key mismatches
// also name the offending known_hosts entry and how to remove it.
func sessionHint(se *errors.SessionError) string {
	hint := se.Suggestion()
	if se.Kind != errors.KindHostKeyMismatch {
		return hint
	}

	target := se.OffendingHost
	if target == "" {
		target = se.Host
	}
	if target == "" {
		return hint
	}
	if se.KnownHostsFile != "" && se.KnownHostsLine > 0 {
		if line, err := sshutil.KnownHostsLine(se.KnownHostsFile, se.KnownHostsLine); err == nil {
			hint += fmt.Sprintf("\n  Offending entry (%s:%d): %s", se.KnownHostsFile, se.KnownHostsLine, truncate(line, 72))
		}
	}
	return hint + "\n  Then run: " + sshutil.RemoveHostKeyCommand(target, se.Port, se.KnownHostsFile)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/logger"
	"github.com/rileyhilliard/sshwrap/internal/ui"
	"github.com/rileyhilliard/sshwrap/internal/util"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile     string
	hostFlag    string
	verbosity   int
	noColor     bool
	timeoutFlag string
)

var rootCmd = &cobra.Command{
	Use:   "sshwrap",
	Short: "Run commands and move files over shared ssh connections",
	Long: `sshwrap drives ssh and rsync through a pseudo-terminal so password and
passphrase prompts can be answered for you, and keeps one ControlMaster
connection per host so every command after the first starts instantly.

Hosts come from .sshwrap.yaml, your ssh_config, or a raw user@host[:port].

Examples:
  sshwrap exec "uptime"
  sshwrap --host gpu exec "nvidia-smi"
  sshwrap send ./dist /srv/app
  sshwrap check`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyVerbosity(verbosity)
		if noColor {
			ui.DisableColors()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .sshwrap.yaml in the project, then ~/.sshwrap/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&hostFlag, "host", "H", "", "host name from config, ssh_config alias, or user@host[:port]")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "debug output (-vv adds pty traffic)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&timeoutFlag, "timeout", "", "per-command timeout, e.g. 30s (default: config timeout or none)")
}

// applyVerbosity turns -v flags into SSHWRAP_DEBUG namespaces, keeping any
// patterns the user already exported.
func applyVerbosity(level int) {
	if level <= 0 {
		return
	}
	patterns := []string{"sshwrap:debug:*"}
	if level > 1 {
		patterns = append(patterns, "sshwrap:verbose:*", "sshwrap:audit")
	}
	if existing := os.Getenv(logger.DebugEnv); existing != "" {
		patterns = append([]string{existing}, patterns...)
	}
	_ = os.Setenv(logger.DebugEnv, strings.Join(patterns, ","))
}

// Execute runs the root command and exits with the remote command's status
// when there is one.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}

	if isUnknownCommandError(err) {
		fmt.Fprintln(os.Stderr, unknownCommandMessage(err))
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, describeError(err))
	os.Exit(1)
}

// isUnknownCommandError reports whether cobra rejected the command line
// itself rather than a command failing.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "sshwrap"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func unknownCommandMessage(err error) string {
	name := extractUnknownCommand(err)
	if name == "" {
		return err.Error()
	}
	var names []string
	for _, c := range rootCmd.Commands() {
		if !c.Hidden {
			names = append(names, c.Name())
		}
	}
	msg := fmt.Sprintf("%s Unknown command '%s'", ui.SymbolFail, name)
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		msg += fmt.Sprintf("\n\n  Did you mean: %s?", strings.Join(similar, ", "))
	}
	return msg + "\n\n  Run 'sshwrap --help' to see available commands."
}

// describeError renders err for the terminal. Session failures without a
// structured wrapper get their kind-specific suggestion appended.
func describeError(err error) string {
	var structured *errors.Error
	if stderrors.As(err, &structured) {
		return structured.Error()
	}
	var se *errors.SessionError
	if stderrors.As(err, &se) {
		msg := fmt.Sprintf("%s %s", ui.SymbolFail, se.Error())
		if hint := sessionHint(se); hint != "" {
			msg += "\n\n  " + hint
		}
		return msg
	}
	return fmt.Sprintf("%s %s", ui.SymbolFail, err.Error())
}

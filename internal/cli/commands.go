package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/config"
	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/exec"
	"github.com/rileyhilliard/sshwrap/internal/host"
	"github.com/rileyhilliard/sshwrap/internal/pty"
	"github.com/rileyhilliard/sshwrap/internal/sync"
	"github.com/rileyhilliard/sshwrap/internal/ui"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	execDir        string
	execEnv        []string
	lsOpts         []string
	expectSteps    []string
	watchUntil     string
	watchDelay     time.Duration
	watchMaxRetry  int
	rsyncOpts      []string
	disconnectAll  bool
	completionArgs = []string{"bash", "zsh", "fish", "powershell"}
)

// execCmd runs a command on the remote host
var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a command on the remote host",
	Long: `Run a command on the remote host over the shared master connection,
streaming its output. sshwrap exits with the remote command's status.

Examples:
  sshwrap exec uptime
  sshwrap exec "make test"
  sshwrap --host gpu exec -e CUDA_VISIBLE_DEVICES=0 "python train.py"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag, Connect: true})
		if err != nil {
			return err
		}
		opts, err := withOverrides(wf.ExecOptions())
		if err != nil {
			return err
		}
		line := strings.Join(args, " ")
		tail := pty.NewTail(notFoundTail)
		opts.Output = io.MultiWriter(opts.Output, tail)
		code, err := wf.Client.Exec(cmd.Context(), line, opts)
		reportMissing(cmd.ErrOrStderr(), line, wf.Resolved.Name, tail.String(), code)
		return exitResult(code, err)
	},
}

// outputCmd runs a command and prints its output once it finishes
var outputCmd = &cobra.Command{
	Use:   "output <command>",
	Short: "Run a command and print its captured output",
	Long: `Run a command on the remote host and print its output after it exits,
one line at a time with carriage returns stripped. Useful in scripts that parse
the result.

Examples:
  sshwrap output "cat /etc/os-release"
  sshwrap output "ls /srv" | grep app`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag, Connect: true, Quiet: true})
		if err != nil {
			return err
		}
		opts, err := withOverrides(wf.ExecOptions())
		if err != nil {
			return err
		}
		opts.Output = nil
		line := strings.Join(args, " ")
		lines, code, err := wf.Client.ExecAndGetOutput(cmd.Context(), line, opts)
		printLines(cmd, lines)
		reportMissing(cmd.ErrOrStderr(), line, wf.Resolved.Name, strings.Join(lines, "\n"), code)
		return exitResult(code, err)
	},
}

// lsCmd lists a remote path
var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a remote directory",
	Long: `List a path on the remote host. Arguments to ls are passed with --opt.

Examples:
  sshwrap ls
  sshwrap ls /var/log --opt -la`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag, Connect: true, Quiet: true})
		if err != nil {
			return err
		}
		target := "."
		if len(args) == 1 {
			target = args[0]
		}
		lines, code, err := wf.Client.Ls(cmd.Context(), target, lsOpts, wf.Timeout)
		printLines(cmd, lines)
		return exitResult(code, err)
	},
}

// expectCmd drives an interactive remote command
var expectCmd = &cobra.Command{
	Use:   "expect <command> --step 'pattern=>response'...",
	Short: "Run an interactive command, answering its prompts",
	Long: `Open an interactive shell on the remote host, run a command and answer
its prompts in order. Each --step is a regular expression to wait for and
the line to send back.

Examples:
  sshwrap expect "apt-get upgrade" --step 'continue\? \[Y/n\]=>Y'
  sshwrap expect "./install.sh" --step 'Name:=>build' --step 'Proceed\?=>yes'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := parseSteps(expectSteps)
		if err != nil {
			return err
		}
		wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag, Connect: true})
		if err != nil {
			return err
		}
		code, err := wf.Client.Expect(cmd.Context(), strings.Join(args, " "), steps, wf.ExecOptions())
		return exitResult(code, err)
	},
}

// watchCmd polls a command until its output matches
var watchCmd = &cobra.Command{
	Use:   "watch <command> --until <regex>",
	Short: "Re-run a command until its output matches",
	Long: `Run a command repeatedly until its output matches --until, sleeping
--delay between runs. --max-retry 0 keeps polling until interrupted.

Examples:
  sshwrap watch "systemctl is-active app" --until '^active'
  sshwrap watch "curl -s localhost:8080/health" --until ok --delay 1s --max-retry 30`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		until, err := parseUntil(watchUntil)
		if err != nil {
			return err
		}
		if watchMaxRetry < 0 {
			return errors.New(errors.ErrConfig,
				"--max-retry can't be negative",
				"Use 0 to poll until interrupted.")
		}
		wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag, Connect: true})
		if err != nil {
			return err
		}
		code, err := wf.Client.Watch(cmd.Context(), strings.Join(args, " "), until, exec.WatchOptions{
			Delay:    watchDelay,
			MaxRetry: watchMaxRetry,
			Exec:     wf.ExecOptions(),
		})
		return exitResult(code, err)
	},
}

// sendCmd uploads files with rsync
var sendCmd = &cobra.Command{
	Use:   "send <local-path>... <remote-dir>",
	Short: "Copy local files to the remote host",
	Long: `Copy files to the remote host with rsync over the shared connection.
Local paths may be globs; patterns matching nothing are skipped. The remote
directory is created first.

Examples:
  sshwrap send ./dist /srv/app
  sshwrap send "*.tar.gz" backups/ --rsync-opt --delete`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transfer(cmd, "send", args)
	},
}

// recvCmd downloads files with rsync
var recvCmd = &cobra.Command{
	Use:   "recv <remote-path>... <local-dir>",
	Short: "Copy remote files to this machine",
	Long: `Copy files from the remote host with rsync over the shared connection.

Examples:
  sshwrap recv /var/log/app.log ./logs
  sshwrap recv "results/*.csv" .`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transfer(cmd, "recv", args)
	},
}

// disconnectCmd closes master connections
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Close the shared ssh connection",
	Long: `Close the ControlMaster connection to a host. Nothing happens when no
master is running.

Examples:
  sshwrap disconnect
  sshwrap --host gpu disconnect
  sshwrap disconnect --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if disconnectAll {
			return disconnectConfigured(cmd)
		}
		wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag})
		if err != nil {
			return err
		}
		if err := wf.Client.Disconnect(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s Disconnected from %s\n",
			ui.SuccessStyle().Render(ui.SymbolSuccess), wf.destination())
		return nil
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a completion script for your shell.

Examples:
  source <(sshwrap completion bash)
  sshwrap completion zsh > "${fpath[1]}/_sshwrap"
  sshwrap completion fish > ~/.config/fish/completions/sshwrap.fish`,
	ValidArgs:             completionArgs,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}

func init() {
	execCmd.Flags().StringVar(&execDir, "dir", "", "remote working directory (overrides the host's dir)")
	execCmd.Flags().StringArrayVarP(&execEnv, "env", "e", nil, "extra KEY=VALUE exported before the command")
	outputCmd.Flags().StringVar(&execDir, "dir", "", "remote working directory (overrides the host's dir)")
	outputCmd.Flags().StringArrayVarP(&execEnv, "env", "e", nil, "extra KEY=VALUE exported before the command")
	lsCmd.Flags().StringArrayVar(&lsOpts, "opt", nil, "option passed to ls, e.g. -la")
	expectCmd.Flags().StringArrayVar(&expectSteps, "step", nil, "'pattern=>response' to answer a prompt (repeatable)")
	watchCmd.Flags().StringVar(&watchUntil, "until", "", "regular expression the output must match")
	watchCmd.Flags().DurationVar(&watchDelay, "delay", exec.DefaultWatchDelay, "wait between runs")
	watchCmd.Flags().IntVar(&watchMaxRetry, "max-retry", 0, "give up after this many runs (0 keeps polling)")
	sendCmd.Flags().StringArrayVar(&rsyncOpts, "rsync-opt", nil, "extra rsync option (repeatable)")
	recvCmd.Flags().StringArrayVar(&rsyncOpts, "rsync-opt", nil, "extra rsync option (repeatable)")
	disconnectCmd.Flags().BoolVar(&disconnectAll, "all", false, "disconnect every configured host")

	rootCmd.AddCommand(execCmd, outputCmd, lsCmd, expectCmd, watchCmd, sendCmd, recvCmd, disconnectCmd, completionCmd)

	_ = rootCmd.RegisterFlagCompletionFunc("host", completeHosts)
}

// exitResult turns an operation's result into the command's error. A remote
// non-zero status becomes an ExitError so sshwrap exits with the same code;
// the command's own output already explained it.
func exitResult(code int, err error) error {
	if err != nil {
		if errors.KindOf(err) == errors.KindNonZeroExit {
			if c, ok := errors.ExitCodeOf(err); ok {
				return errors.NewExitError(c)
			}
		}
		return err
	}
	if code != 0 {
		return errors.NewExitError(code)
	}
	return nil
}

// notFoundTail is how much of the end of the output reportMissing looks at.
const notFoundTail = 4096

// reportMissing explains a 127 exit when the remote shell couldn't find the
// command.
func reportMissing(w io.Writer, line, hostName, output string, code int) {
	if code != 127 {
		return
	}
	if err := exec.NotFoundError(line, hostName, output, code); err != nil {
		fmt.Fprintln(w, describeError(err))
	}
}

// withOverrides applies --dir and --env to opts.
func withOverrides(opts exec.Options) (exec.Options, error) {
	if execDir != "" {
		opts.Dir = execDir
	}
	if len(execEnv) == 0 {
		return opts, nil
	}
	env := make(map[string]string, len(opts.Env)+len(execEnv))
	for k, v := range opts.Env {
		env[k] = v
	}
	for _, kv := range execEnv {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return opts, errors.New(errors.ErrConfig,
				fmt.Sprintf("--env '%s' isn't KEY=VALUE", kv),
				"Write it as --env NAME=value.")
		}
		env[k] = v
	}
	opts.Env = env
	return opts, nil
}

func printLines(cmd *cobra.Command, lines []string) {
	out := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

// transfer runs send or recv. The last argument is the destination.
func transfer(cmd *cobra.Command, op string, args []string) error {
	src, dst := args[:len(args)-1], args[len(args)-1]

	wf, err := SetupWorkflow(cmd.Context(), WorkflowOptions{Host: hostFlag, Connect: true})
	if err != nil {
		return err
	}

	opts := sync.Options{Timeout: wf.Timeout, RsyncOpt: rsyncOpts}
	if verbosity > 0 {
		opts.Output = os.Stderr
	}

	var label string
	if op == "send" {
		label = fmt.Sprintf("Sending to %s:%s", wf.destination(), dst)
	} else {
		label = fmt.Sprintf("Receiving from %s", wf.destination())
	}
	step := newStep(cmd, label)

	var res sync.Result
	if op == "send" {
		res, err = wf.Client.Send(cmd.Context(), src, dst, opts)
	} else {
		res, err = wf.Client.Recv(cmd.Context(), src, dst, opts)
	}
	switch {
	case err != nil:
		step.fail()
		return err
	case res.NothingToSend:
		step.skip("nothing matched " + strings.Join(src, " "))
	default:
		step.success(res.Stats.String())
	}
	return nil
}

// disconnectConfigured closes the master of every configured host. Hosts
// whose secrets can't be resolved are skipped with a warning.
func disconnectConfigured(cmd *cobra.Command) error {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	reg := host.GlobalRegistry()
	for _, name := range cfg.HostNames() {
		resolved, err := config.Resolve(cfg, name, config.ResolveOptions{Prompt: ui.PromptSecret})
		if err != nil {
			ui.PrintWarning(fmt.Sprintf("skipping %s: %v", name, err))
			continue
		}
		if _, err := reg.Session(resolved.Descriptor); err != nil {
			ui.PrintWarning(fmt.Sprintf("skipping %s: %v", name, err))
		}
	}
	n := reg.Size()
	if err := reg.DisconnectAll(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s Closed connections for %d host(s)\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess), n)
	return nil
}

// completeHosts offers config names and ssh_config aliases for --host.
func completeHosts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := cfg.HostNames()
	if entries, err := sshConfigEntries(cfg); err == nil {
		for _, e := range entries {
			names = append(names, e.Alias)
		}
	}
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, toComplete) {
			out = append(out, n)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// step reports one long-running operation: a spinner on a terminal, a
// single status line otherwise.
type step struct {
	label   string
	spinner *ui.Spinner
	cmd     *cobra.Command
}

func newStep(cmd *cobra.Command, label string) *step {
	s := &step{label: label, cmd: cmd}
	if ui.IsTerminal(os.Stderr) {
		s.spinner = ui.NewSpinner(label)
		s.spinner.Start()
	}
	return s
}

func (s *step) success(detail string) {
	if s.spinner != nil {
		s.spinner.SuccessWith(detail)
		return
	}
	fmt.Fprintf(s.cmd.ErrOrStderr(), "%s %s %s\n", ui.SymbolSuccess, s.label, detail)
}

func (s *step) skip(reason string) {
	if s.spinner != nil {
		s.spinner.SetLabel(s.label + " (" + reason + ")")
		s.spinner.Skip()
		return
	}
	fmt.Fprintf(s.cmd.ErrOrStderr(), "%s %s (%s)\n", ui.SymbolSkipped, s.label, reason)
}

func (s *step) fail() {
	if s.spinner != nil {
		s.spinner.Fail()
	}
}

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rileyhilliard/sshwrap/internal/client"
	"github.com/rileyhilliard/sshwrap/internal/config"
	"github.com/rileyhilliard/sshwrap/internal/exec"
	"github.com/rileyhilliard/sshwrap/internal/host"
	"github.com/rileyhilliard/sshwrap/internal/ui"
	"github.com/rileyhilliard/sshwrap/pkg/sshutil"
)

// WorkflowOptions configures SetupWorkflow.
type WorkflowOptions struct {
	Host string // --host value; empty picks the default
	// Connect establishes the master up front behind a spinner. Commands
	// that connect lazily (disconnect, check) leave it off.
	Connect bool
	Quiet   bool // suppress the spinner
}

// WorkflowContext holds the state shared by the remote commands.
type WorkflowContext struct {
	Config     *config.Config
	ConfigPath string
	Resolved   config.Resolved
	Client     *client.Client
	Timeout    time.Duration // --timeout, or the config default
	StartTime  time.Time
}

// ExecOptions returns the resolved host's exec options with the effective
// timeout applied.
func (w *WorkflowContext) ExecOptions() exec.Options {
	opts := w.Resolved.ExecOptions()
	opts.Timeout = w.Timeout
	opts.Output = os.Stdout
	return opts
}

// SetupWorkflow loads config, picks and resolves the host, and creates a
// client for it from the process-wide registry.
func SetupWorkflow(ctx context.Context, opts WorkflowOptions) (*WorkflowContext, error) {
	wf := &WorkflowContext{StartTime: time.Now()}

	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	wf.Config, wf.ConfigPath = cfg, path
	if !noColor {
		ui.SetColorMode(cfg.Output.Color, os.Stderr)
	}

	wf.Timeout = cfg.Timeout
	if timeoutFlag != "" {
		if wf.Timeout, err = ParseTimeout(timeoutFlag); err != nil {
			return nil, err
		}
	}

	name := opts.Host
	if name == "" && cfg.Default == "" && len(cfg.Hosts) > 1 && ui.CanPrompt() {
		picked, err := ui.PickHost(hostInfos(cfg))
		if err != nil {
			return nil, err
		}
		if picked == nil {
			return nil, fmt.Errorf("no host selected")
		}
		name = picked.Name
	}

	var resolveOpts config.ResolveOptions
	if ui.CanPrompt() {
		resolveOpts.Prompt = ui.PromptSecret
	}
	wf.Resolved, err = config.Resolve(cfg, name, resolveOpts)
	if err != nil {
		return nil, err
	}

	wf.Client, err = client.FromRegistry(host.GlobalRegistry(), wf.Resolved.Descriptor,
		client.WithRsync(cfg.RsyncPath))
	if err != nil {
		return nil, err
	}

	if opts.Connect {
		if err := wf.connect(ctx, opts.Quiet); err != nil {
			return nil, err
		}
	}
	return wf, nil
}

// connect brings the master up with a spinner on stderr. The spinner is
// skipped when stderr isn't a terminal.
func (w *WorkflowContext) connect(ctx context.Context, quiet bool) error {
	label := fmt.Sprintf("Connecting to %s", w.destination())
	var spinner *ui.Spinner
	if !quiet && ui.IsTerminal(os.Stderr) {
		spinner = ui.NewSpinner(label)
		spinner.Start()
	}

	err := w.Client.Session().Connect(ctx, w.Timeout)
	if spinner != nil {
		if err != nil {
			spinner.Fail()
		} else {
			spinner.Success()
		}
	}
	return err
}

func (w *WorkflowContext) destination() string {
	return w.Resolved.Descriptor.SSHOptions().Destination()
}

// hostInfos lists configured hosts for the picker.
func hostInfos(cfg *config.Config) []ui.HostInfo {
	names := cfg.HostNames()
	infos := make([]ui.HostInfo, 0, len(names))
	for _, name := range names {
		h := cfg.Hosts[name]
		infos = append(infos, ui.HostInfo{
			Name:        name,
			Destination: hostDestination(name, h),
			Source:      "config",
			Dir:         h.Dir,
			Tags:        h.Tags,
			Default:     name == cfg.Default,
		})
	}
	return infos
}

// hostDestination renders a config entry as [user@]host[:port].
func hostDestination(name string, h config.Host) string {
	dest := h.Host
	if dest == "" {
		dest = name
	}
	if h.User != "" {
		dest = h.User + "@" + dest
	}
	if h.Port != 0 && h.Port != 22 {
		dest = fmt.Sprintf("%s:%d", dest, h.Port)
	}
	return dest
}

// sshConfigEntries reads the ssh_config the config points at. A missing file
// yields no entries.
func sshConfigEntries(cfg *config.Config) ([]sshutil.SSHHostEntry, error) {
	path := cfg.SSHConfig
	if path == "" {
		path = sshutil.DefaultConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return sshutil.ParseSSHConfigFile(path)
}

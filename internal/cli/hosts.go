package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/sshwrap/internal/config"
	"github.com/rileyhilliard/sshwrap/internal/errors"
	"github.com/rileyhilliard/sshwrap/internal/ui"
	"github.com/rileyhilliard/sshwrap/internal/util"
	"github.com/rileyhilliard/sshwrap/pkg/sshutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// HostAddOptions holds options for the hosts add command.
type HostAddOptions struct {
	Name   string
	Host   config.Host
	Prompt bool // fill missing fields with a form
}

var (
	hostsYAML     bool
	hostsAddFlags config.Host
	hostsAddPort  string
	hostsYes      bool
)

var hostsCmd = &cobra.Command{
	Use:     "hosts",
	Aliases: []string{"host"},
	Short:   "List and manage configured hosts",
	Long: `List the hosts sshwrap knows about: entries in .sshwrap.yaml and Host
aliases from your ssh_config. The default host is marked with *.

Examples:
  sshwrap hosts
  sshwrap hosts --yaml >> .sshwrap.yaml
  sshwrap hosts add build01 --address build01.internal --user deploy
  sshwrap hosts default build01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostsList(cmd.OutOrStdout(), hostsYAML)
	},
}

var hostsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a host to the config",
	Long: `Add a host entry to .sshwrap.yaml, creating the file when needed. Fields
not given as flags are asked for when running in a terminal. The first host
added becomes the default.

Examples:
  sshwrap hosts add gpu
  sshwrap hosts add build01 --address 10.0.0.7 --user deploy --port 2222 --dir ~/src`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h := hostsAddFlags
		if hostsAddPort != "" {
			port, err := strconv.Atoi(hostsAddPort)
			if err != nil || port <= 0 || port > 65535 {
				return errors.New(errors.ErrConfig,
					fmt.Sprintf("'%s' isn't a valid port", hostsAddPort),
					"Use a number between 1 and 65535.")
			}
			h.Port = port
		}
		prompt := ui.CanPrompt() && !cmd.Flags().Changed("address") && !cmd.Flags().Changed("user")
		return hostAdd(cmd.ErrOrStderr(), HostAddOptions{Name: args[0], Host: h, Prompt: prompt})
	},
}

var hostsDefaultCmd = &cobra.Command{
	Use:   "default [name]",
	Short: "Set the default host",
	Long: `Set the host used when --host isn't given. Without a name, pick one from
a list.

Examples:
  sshwrap hosts default gpu`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeHosts,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		return hostDefault(cmd.ErrOrStderr(), name)
	},
}

var hostsRemoveCmd = &cobra.Command{
	Use:               "remove <name>",
	Aliases:           []string{"rm"},
	Short:             "Remove a host from the config",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeHosts,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostRemove(cmd.ErrOrStderr(), args[0], hostsYes)
	},
}

func init() {
	hostsCmd.Flags().BoolVar(&hostsYAML, "yaml", false, "print ssh_config hosts as a .sshwrap.yaml hosts section")

	f := hostsAddCmd.Flags()
	f.StringVar(&hostsAddFlags.Host, "address", "", "host name or IP to connect to (default: the name)")
	f.StringVar(&hostsAddFlags.User, "user", "", "login user")
	f.StringVar(&hostsAddPort, "port", "", "ssh port")
	f.StringVar(&hostsAddFlags.KeyFile, "key-file", "", "private key to use")
	f.StringVar(&hostsAddFlags.Dir, "dir", "", "remote working directory")
	f.StringSliceVar(&hostsAddFlags.Tags, "tag", nil, "tag for the listing (repeatable)")
	f.BoolVar(&hostsAddFlags.PasswordPrompt, "password-prompt", false, "ask for the password when ssh wants it")
	f.StringVar(&hostsAddFlags.PasswordEnv, "password-env", "", "environment variable holding the password")

	hostsRemoveCmd.Flags().BoolVarP(&hostsYes, "yes", "y", false, "don't ask for confirmation")

	hostsCmd.AddCommand(hostsAddCmd, hostsDefaultCmd, hostsRemoveCmd)
	rootCmd.AddCommand(hostsCmd)
}

// hostsList prints configured hosts followed by ssh_config aliases that
// aren't already configured. With asYAML it prints those aliases as a hosts
// section instead.
func hostsList(w io.Writer, asYAML bool) error {
	cfg, _, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	if !noColor {
		ui.SetColorMode(cfg.Output.Color, w)
	}
	entries, err := sshConfigEntries(cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read ssh config",
			"Check the file is readable, or point ssh_config in .sshwrap.yaml elsewhere.")
	}

	var extra []sshutil.SSHHostEntry
	for _, e := range entries {
		if _, ok := cfg.Hosts[e.Alias]; !ok {
			extra = append(extra, e)
		}
	}

	if asYAML {
		return exportHosts(w, extra)
	}

	var rows []ui.HostRow
	for _, info := range hostInfos(cfg) {
		rows = append(rows, ui.HostRow{
			Name:        info.Name,
			Destination: info.Destination,
			Source:      info.Source,
			Dir:         info.Dir,
			Tags:        info.Tags,
			Default:     info.Default,
		})
	}
	for _, e := range extra {
		rows = append(rows, ui.HostRow{
			Name:        e.Alias,
			Destination: entryDestination(e),
			Source:      "ssh_config",
		})
	}
	fmt.Fprintln(w, ui.RenderHostsTable(rows))
	return nil
}

func entryDestination(e sshutil.SSHHostEntry) string {
	dest := e.Hostname
	if dest == "" {
		dest = e.Alias
	}
	if e.User != "" {
		dest = e.User + "@" + dest
	}
	if e.Port != "" && e.Port != "22" {
		dest += ":" + e.Port
	}
	return dest
}

// exportHosts writes ssh_config entries as a hosts section. The host field is
// left empty so ssh keeps resolving the alias itself.
func exportHosts(w io.Writer, entries []sshutil.SSHHostEntry) error {
	hosts := make(map[string]config.Host, len(entries))
	for _, e := range entries {
		hosts[e.Alias] = config.Host{
			User:    e.User,
			Port:    e.PortNumber(),
			KeyFile: e.IdentityFile,
		}
	}
	out, err := yaml.Marshal(struct {
		Hosts map[string]config.Host `yaml:"hosts"`
	}{hosts})
	if err != nil {
		return fmt.Errorf("failed to encode hosts: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// configTarget is the file hosts add writes to: --config, the discovered
// config, or .sshwrap.yaml in the current directory.
func configTarget() (string, *config.Config, error) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return cfgFile, config.DefaultConfig(), nil
		}
	}
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return "", nil, err
	}
	if path == "" {
		path = cfgFile
	}
	if path == "" {
		path = config.ConfigFileName
	}
	return path, cfg, nil
}

// hostAdd writes a new host entry.
func hostAdd(w io.Writer, opts HostAddOptions) error {
	if strings.ContainsAny(opts.Name, "/ ") || opts.Name == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("'%s' can't be used as a host name", opts.Name),
			"Use a short name without spaces or slashes, like build01.")
	}

	path, cfg, err := configTarget()
	if err != nil {
		return err
	}
	if _, exists := cfg.Hosts[opts.Name]; exists {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' already exists", opts.Name),
			"Choose a different name, or use 'sshwrap hosts remove' first.")
	}

	h := opts.Host
	if opts.Prompt {
		cancelled, err := promptHost(opts.Name, &h)
		if err != nil {
			return err
		}
		if cancelled {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := config.AddHost(path, opts.Name, h); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't add host '%s'", opts.Name),
			"Check "+path+" is valid YAML and writable.")
	}

	fmt.Fprintf(w, "%s Added host '%s' to %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), opts.Name, path)

	// The first host becomes the default
	if cfg.Default == "" && len(cfg.Hosts) == 0 {
		if err := config.SetDefaultHost(path, opts.Name); err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s is now the default host\n", opts.Name)
	}
	return nil
}

// promptHost fills in h with a form. It reports whether the user cancelled.
func promptHost(name string, h *config.Host) (bool, error) {
	address := h.Host
	port := ""
	if h.Port > 0 {
		port = strconv.Itoa(h.Port)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Address").
				Description("Host name or IP. Leave empty to use '"+name+"' (works with ssh_config aliases).").
				Value(&address),
			huh.NewInput().
				Title("User").
				Description("Leave empty for ssh's default.").
				Value(&h.User),
			huh.NewInput().
				Title("Port").
				Placeholder("22").
				Value(&port).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if p, err := strconv.Atoi(s); err != nil || p <= 0 || p > 65535 {
						return fmt.Errorf("port must be a number between 1 and 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("Remote directory").
				Description("Commands run here. Supports ~ and ${PROJECT}.").
				Value(&h.Dir),
			huh.NewConfirm().
				Title("Ask for a password when ssh wants one?").
				Value(&h.PasswordPrompt),
		),
	)
	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return true, nil
		}
		return false, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't get your input",
			"Pass the fields as flags instead, e.g. --address and --user.")
	}

	h.Host = strings.TrimSpace(address)
	if h.Host == name {
		h.Host = ""
	}
	h.Port, _ = strconv.Atoi(port)
	return false, nil
}

// hostDefault sets the default host, picking one when name is empty.
func hostDefault(w io.Writer, name string) error {
	path, cfg, err := configTarget()
	if err != nil {
		return err
	}
	names := cfg.HostNames()
	if len(names) == 0 {
		return errors.New(errors.ErrConfig,
			"No hosts configured",
			"Add one first with 'sshwrap hosts add <name>'.")
	}

	if name == "" {
		if !ui.CanPrompt() {
			return errors.New(errors.ErrConfig,
				"Which host should be the default?",
				fmt.Sprintf("Pass one of: %s", util.JoinOrNone(names)))
		}
		picked, err := ui.PickHost(hostInfos(cfg))
		if err != nil {
			return err
		}
		if picked == nil {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
		name = picked.Name
	}

	if _, ok := cfg.Hosts[name]; !ok {
		suggestion := fmt.Sprintf("Available hosts: %s", util.JoinOrNone(names))
		if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
			suggestion = fmt.Sprintf("Did you mean: %s?", strings.Join(similar, ", "))
		}
		return errors.New(errors.ErrConfig, fmt.Sprintf("Host '%s' not found", name), suggestion)
	}

	if err := config.SetDefaultHost(path, name); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't update the default host",
			"Check "+path+" is valid YAML and writable.")
	}
	fmt.Fprintf(w, "%s Default host is now '%s'\n", ui.SuccessStyle().Render(ui.SymbolSuccess), name)
	return nil
}

// hostRemove deletes a host entry after confirming.
func hostRemove(w io.Writer, name string, yes bool) error {
	path, cfg, err := configTarget()
	if err != nil {
		return err
	}
	if _, ok := cfg.Hosts[name]; !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' not found", name),
			fmt.Sprintf("Available hosts: %s", util.JoinOrNone(cfg.HostNames())))
	}

	if !yes {
		confirm, err := ui.Confirm(fmt.Sprintf("Remove host '%s'?", name), false)
		if err != nil {
			return err
		}
		if !confirm {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	newDefault, err := config.RemoveHost(path, name)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't remove host '%s'", name),
			"Check "+path+" is valid YAML and writable.")
	}
	fmt.Fprintf(w, "%s Removed host '%s'\n", ui.SuccessStyle().Render(ui.SymbolSuccess), name)
	if cfg.Default == name && newDefault != "" {
		fmt.Fprintf(w, "  %s is now the default host\n", newDefault)
	}
	return nil
}

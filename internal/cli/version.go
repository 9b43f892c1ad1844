package cli

import (
	"fmt"
	"runtime"

	"github.com/rileyhilliard/sshwrap/internal/ui"
	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// versionShort controls whether to show short or full version output
var versionShort bool

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of sshwrap.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, version)
			return
		}

		if ui.IsTerminal(out) {
			fmt.Fprint(out, ui.RenderHeader(ui.HeaderInfo{
				Version: formatVersion(version),
				Tagline: "ssh and rsync over shared connections",
				Detail:  buildDetails(),
			}))
			return
		}

		fmt.Fprintf(out, "sshwrap %s\n", formatVersion(version))
		for _, line := range buildDetails() {
			fmt.Fprintln(out, line)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

func buildDetails() []string {
	return []string{
		"commit: " + commit,
		"built: " + date,
		"go: " + runtime.Version(),
		"os/arch: " + runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// formatVersion ensures version has a 'v' prefix for display
func formatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

// SetVersionInfo sets the version information (called from main).
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = formatVersion(v)
}

// GetVersion returns the current version string.
func GetVersion() string {
	return version
}

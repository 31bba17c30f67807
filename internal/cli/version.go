package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = ""

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the dorpcheck version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := resolveVersion()
			formatter := newFormatter(rootOpts, cmd)
			if rootOpts.Format == "json" {
				return formatter.Success(map[string]string{"version": v})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dorpcheck %s\n", v)
			return nil
		},
	}
}

// resolveVersion prefers the linker-set Version, then module build info.
func resolveVersion() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the command that prints the build version. Git
// invokes helpers with `version` to sanity-check them, so the first line
// must stay machine-parseable.
func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of credhelper",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "credhelper version %s\n", GetVersion())
			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "go: %s\nplatform: %s/%s\n",
					runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "include build details")
	return cmd
}

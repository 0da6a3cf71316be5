package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"credhelper/internal/target"
)

// parseTargetArg parses a URL command argument, defaulting the scheme so
// `credhelper login dev.azure.com/org` works.
func parseTargetArg(raw string) (*target.Target, error) {
	t, err := target.Parse(raw)
	if err == nil {
		return t, nil
	}
	return target.Parse("https://" + raw)
}

// newLogoutCmd removes every secret held for a remote.
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <url>",
		Short: "Remove the stored credential for a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tgt, err := parseTargetArg(args[0])
			if err != nil {
				return err
			}

			registry, err := newRegistry(cfg, false)
			if err != nil {
				return err
			}
			if err := registry.ForTarget(tgt).DeleteCredentials(cmd.Context(), tgt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s\n", tgt)
			return nil
		},
	}
}

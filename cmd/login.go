package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// newLoginCmd forces a fresh interactive logon for a remote, bypassing
// any stored credential.
func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <url>",
		Short: "Sign in to a remote and store the resulting credential",
		Long: `Performs a full interactive logon against the remote's identity
authority, replacing whatever credential is currently stored. Useful when
a stored credential works but has the wrong identity or scope.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tgt, err := parseTargetArg(args[0])
			if err != nil {
				return err
			}

			registry, err := newRegistry(cfg, true)
			if err != nil {
				return err
			}
			orch := registry.ForTarget(tgt)

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			// The browser leg can take a while; show progress on stderr.
			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(os.Stderr))
			spin.Suffix = fmt.Sprintf(" signing in to %s", tgt)
			spin.Start()
			c, ok := orch.InteractiveLogon(ctx, tgt)
			spin.Stop()

			if !ok {
				return fmt.Errorf("%w for %s", errAuthFailed, tgt)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in to %s as %s\n", tgt, c.Username)
			return nil
		},
	}
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"credhelper/internal/config"
	"credhelper/internal/cred"
	"credhelper/pkg/logging"
)

// operationTimeout falls back when the configuration carries none.
const operationTimeout = 90 * time.Second

// newGetCmd implements the `get` verb of the credential helper protocol:
// read a request from stdin, answer with username= and password= on
// stdout.
func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Retrieve a credential for the remote described on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			req, err := parseRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			tgt, err := req.toTarget()
			if err != nil {
				return err
			}

			registry, err := newRegistry(cfg, true)
			if err != nil {
				return err
			}
			orch := registry.ForTarget(tgt)

			ctx, cancel := context.WithTimeout(cmd.Context(), requestDeadline(cfg))
			defer cancel()

			c, ok := orch.GetCredentials(ctx, tgt)
			if !ok {
				// No stored or silently renewable credential; a logon is
				// the last resort.
				logging.Info("Cmd", "no stored credential for %s, starting logon", tgt)
				c, ok = orch.InteractiveLogon(ctx, tgt)
			}
			if !ok {
				return fmt.Errorf("%w for %s", errAuthRequired, tgt)
			}
			return writeCredential(cmd.OutOrStdout(), c)
		},
	}
}

// newStoreCmd implements the `store` verb. Git calls it after a successful
// authentication with the credential it used.
func newStoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store",
		Short: "Store the credential described on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			req, err := parseRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			tgt, err := req.toTarget()
			if err != nil {
				return err
			}

			registry, err := newRegistry(cfg, false)
			if err != nil {
				return err
			}
			orch := registry.ForTarget(tgt)

			ctx, cancel := context.WithTimeout(cmd.Context(), requestDeadline(cfg))
			defer cancel()

			// Providers that mint their own tokens decline; that is not
			// an error to Git, the credential simply is not persisted.
			if !orch.SetCredentials(ctx, tgt, cred.Credential{Username: req.Username, Password: req.Password}) {
				logging.Debug("Cmd", "credential for %s was not stored", tgt)
			}
			return nil
		},
	}
}

// newEraseCmd implements the `erase` verb. Git calls it after a rejected
// authentication.
func newEraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "erase",
		Short: "Erase the stored credential for the remote described on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			req, err := parseRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			tgt, err := req.toTarget()
			if err != nil {
				return err
			}

			registry, err := newRegistry(cfg, false)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), requestDeadline(cfg))
			defer cancel()

			return registry.ForTarget(tgt).DeleteCredentials(ctx, tgt)
		},
	}
}

func requestDeadline(cfg config.Config) time.Duration {
	if d := cfg.Timeout.Std(); d > 0 {
		return d
	}
	return operationTimeout
}

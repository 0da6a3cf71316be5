package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"credhelper/internal/store"
	"credhelper/internal/tenant"
)

// newStatusCmd reports what the helper knows: cached tenant mappings and,
// given a URL, the provider and stored credential for it.
func newStatusCmd() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "status [url]",
		Short: "Show cached authority mappings and stored credential state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cachePath := cfg.TenantCachePath
			if cachePath == "" {
				if cachePath, err = tenant.DefaultPath(); err != nil {
					return err
				}
			}
			cache, err := tenant.NewCache(cachePath)
			if err != nil {
				return err
			}
			entries, err := cache.Entries()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.SetStyle(table.StyleLight)
			tw.SetTitle("Cached authorities")
			tw.AppendHeader(table.Row{"Host", "Tenant"})
			for host, id := range entries {
				tenantLabel := id.String()
				if id == uuid.Nil {
					tenantLabel = "consumer"
				}
				tw.AppendRow(table.Row{host, tenantLabel})
			}
			if len(entries) == 0 {
				tw.AppendRow(table.Row{"(none)", ""})
			}
			tw.SortBy([]table.SortBy{{Name: "Host", Mode: table.Asc}})
			tw.Render()

			if len(args) == 0 {
				return nil
			}

			tgt, err := parseTargetArg(args[0])
			if err != nil {
				return err
			}
			registry, err := newRegistry(cfg, false)
			if err != nil {
				return err
			}
			orch := registry.ForTarget(tgt)

			key := orch.Profile().CredentialKey(tgt)
			c, found, err := store.NewKeyring().ReadCredential(key)
			if err != nil {
				return err
			}

			tw = table.NewWriter()
			tw.SetOutputMirror(out)
			tw.SetStyle(table.StyleLight)
			tw.SetTitle(fmt.Sprintf("Credential for %s", tgt))
			tw.AppendRow(table.Row{"Provider", orch.Profile().Name})
			tw.AppendRow(table.Row{"Storage key", key})
			if !found {
				tw.AppendRow(table.Row{"Stored", "no"})
			} else {
				tw.AppendRow(table.Row{"Stored", "yes"})
				tw.AppendRow(table.Row{"Username", c.Username})
				if validate {
					verdict := "rejected"
					if orch.ValidateCredentials(cmd.Context(), tgt, c) {
						verdict = "accepted"
					}
					tw.AppendRow(table.Row{"Validation", verdict})
				}
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "check the stored credential against the service")
	return cmd
}

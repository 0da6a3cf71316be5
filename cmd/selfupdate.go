package cmd

import (
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// defaultUpdateRepo is the GitHub repository (owner/repo) releases are
// published to.
const defaultUpdateRepo = "credhelper-project/credhelper"

// newSelfUpdateCmd creates the command that replaces the running binary
// with the latest released version.
func newSelfUpdateCmd() *cobra.Command {
	var repoSlug string

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update credhelper to the latest version",
		Long: `Checks the release repository for a newer version of credhelper and
replaces the current binary when one is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			currentVersion := rootCmd.Version
			// Development builds do not follow release versioning, so
			// there is nothing meaningful to compare against.
			if currentVersion == "" || currentVersion == "dev" {
				return fmt.Errorf("cannot self-update a development version")
			}

			fmt.Fprintf(out, "Current version: %s\n", currentVersion)
			fmt.Fprintln(out, "Checking for updates...")

			updater, err := selfupdate.NewUpdater(selfupdate.Config{})
			if err != nil {
				return fmt.Errorf("failed to create updater: %w", err)
			}

			latest, found, err := updater.DetectLatest(cmd.Context(), selfupdate.ParseSlug(repoSlug))
			if err != nil {
				return fmt.Errorf("error detecting latest version: %w", err)
			}
			if !found {
				return fmt.Errorf("latest release for %s could not be found", repoSlug)
			}

			if !latest.GreaterThan(currentVersion) {
				fmt.Fprintln(out, "Current version is the latest.")
				return nil
			}

			fmt.Fprintf(out, "Found newer version: %s (published at %s)\n", latest.Version(), latest.PublishedAt)
			fmt.Fprintf(out, "Release notes:\n%s\n", latest.ReleaseNotes)

			exe, err := selfupdate.ExecutablePath()
			if err != nil {
				return fmt.Errorf("could not locate executable path: %w", err)
			}

			fmt.Fprintf(out, "Updating %s to version %s...\n", exe, latest.Version())
			if err := updater.UpdateTo(cmd.Context(), latest, exe); err != nil {
				return fmt.Errorf("update failed: %w", err)
			}

			fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version())
			return nil
		},
	}

	cmd.Flags().StringVar(&repoSlug, "repo", defaultUpdateRepo, "GitHub owner/repo to fetch releases from")
	return cmd
}

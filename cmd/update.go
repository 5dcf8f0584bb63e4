package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/audiocard/internal/updater"
)

// DefaultRepository is where releases are published.
const DefaultRepository = "smazurov/audiocard"

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var repo string
	var prerelease, checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the audiocard binary to the latest release",
		Long: `Checks GitHub for a newer release and replaces the binary in place, keeping the ` +
			`previous build for rollback. The running daemon must be restarted afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			svc, err := updater.NewService(updater.Options{Repository: repo, Prerelease: prerelease})
			if err != nil {
				return err
			}
			if !svc.Enabled() {
				return fmt.Errorf("update disabled: %s", svc.DisabledReason())
			}

			info, err := svc.Check(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !info.UpdateAvailable {
				fmt.Fprintf(out, "audiocard %s is up to date\n", info.CurrentVersion)
				return nil
			}
			fmt.Fprintf(out, "update available: %s -> %s\n", info.CurrentVersion, info.LatestVersion)
			if checkOnly {
				return nil
			}
			if err := svc.Apply(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "installed %s; restart audiocard.service to run it\n", info.LatestVersion)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", DefaultRepository, "GitHub repository slug")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	return cmd
}

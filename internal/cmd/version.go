package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apibean/apibean-cli/internal/cache"
	"github.com/apibean/apibean-cli/internal/update"
)

// version is set at build time via ldflags
var version = "dev"

// newUpdateChecker is swapped by tests.
var newUpdateChecker = func() *update.Checker {
	checker := update.NewChecker(newHTTPClient())
	if dir, err := cache.DefaultDir(); err == nil {
		checker.Cache = cache.NewStore(dir, "release", checker.URL, update.CacheTTL)
	}
	return checker
}

func newVersionCmd() *cobra.Command {
	var noCheck bool
	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "apibean version %s\n", version)
			if noCheck {
				return
			}

			// Fails silently; a release check must never break the command.
			result := newUpdateChecker().Check(cmd.Context(), version)
			if result != nil && result.UpdateAvailable {
				errOut := cmd.ErrOrStderr()
				_, _ = fmt.Fprintf(errOut, "\nUpdate available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
				_, _ = fmt.Fprintf(errOut, "Download: %s\n", result.UpdateURL)
			}
		},
	}
	cmd.Flags().BoolVar(&noCheck, "no-update-check", false, "Skip the release check")
	return cmd
}

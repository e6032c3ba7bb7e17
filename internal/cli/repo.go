package cli

import (
	"fmt"
	"strings"

	"github.com/ralt/apm/internal/models"
	"github.com/spf13/cobra"
)

func newRepoCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Inspect configured repositories",
	}

	cmd.AddCommand(newRepoListCmd(env), newRepoStatusCmd(env))

	return cmd
}

func priority(r models.Repository) string {
	if r.Priority == 0 {
		return "N/A"
	}
	return fmt.Sprint(r.Priority)
}

func newRepoListCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			if len(a.cfg.Repositories) == 0 {
				fmt.Fprintln(a.out, "No repositories configured")
				return nil
			}

			fmt.Fprintln(a.out, "Configured Repositories:")
			fmt.Fprintln(a.out, strings.Repeat("=", 80))
			for _, r := range a.cfg.Repositories {
				status := "ENABLED "
				if !r.IsEnabled() {
					status = "DISABLED"
				}
				fmt.Fprintf(a.out, "%s %-25s (Priority: %s)\n", status, r.Name, priority(r))
				fmt.Fprintf(a.out, "%-30s %s\n", "  URL:", r.URL)
				if r.Description != "" {
					fmt.Fprintf(a.out, "%-30s %s\n", "  Description:", r.Description)
				}
				fmt.Fprintln(a.out)
			}
			fmt.Fprintf(a.out, "Total: %d repositories (%d enabled)\n",
				len(a.cfg.Repositories), len(a.cfg.EnabledRepositories()))
			return nil
		},
	}
}

func newRepoStatusCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether configured repositories are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.load(cmd)
			if err != nil {
				return err
			}

			if len(a.cfg.Repositories) == 0 {
				fmt.Fprintln(a.out, "No repositories configured")
				return nil
			}

			fmt.Fprintln(a.out, "Repository Status Check:")
			fmt.Fprintln(a.out, strings.Repeat("=", 60))
			for _, r := range a.cfg.Repositories {
				status := "DISABLED"
				if r.IsEnabled() {
					status = "ONLINE"
					if err := a.prober.Probe(cmd.Context(), r.URL); err != nil {
						status = "OFFLINE (" + err.Error() + ")"
					}
				}
				fmt.Fprintf(a.out, "%-25s %s (Priority: %s)\n", r.Name, status, priority(r))
				fmt.Fprintf(a.out, "%-25s %s\n", "  URL:", r.URL)
				if r.Description != "" {
					fmt.Fprintf(a.out, "%-25s %s\n", "  Description:", r.Description)
				}
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}
}

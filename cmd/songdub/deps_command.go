package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"songdub/internal/api"
	"songdub/internal/deps"
	"songdub/internal/preflight"
)

type depsReport struct {
	Dependencies []api.DependencyStatus `json:"dependencies"`
	Checks       []preflight.Result     `json:"checks"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and run preflight checks locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.ProbeSystemDeps(cmd.Context(), cfg, nil)
			report := depsReport{Dependencies: api.FromDependencies(statuses)}
			if !skipChecks {
				report.Checks = preflight.RunAll(cmd.Context(), cfg)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				colorize := shouldColorize(out)
				lines := make([]string, 0, len(report.Dependencies))
				for _, dep := range report.Dependencies {
					lines = append(lines, dependencyLine(dep, colorize))
				}
				printSection(out, "Dependencies", colorize, lines)
				if !skipChecks {
					lines = lines[:0]
					for _, check := range report.Checks {
						kind := statusOK
						if !check.Passed {
							kind = statusError
						}
						lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
					}
					printSection(out, "Checks", colorize, lines)
				}
			}

			missing := deps.MissingRequired(statuses)
			failed := preflight.Failed(report.Checks)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d required tools missing, %d checks failed", len(missing), len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Only check for external tools")
	return cmd
}

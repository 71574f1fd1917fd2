package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported target languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Languages(cmd.Context())
			if err != nil {
				return wrapDialError(err, ctx.address())
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, resp)
			}
			rows := make([][]string, 0, len(resp.Languages))
			for _, info := range resp.Languages {
				code := info.Code
				if code == resp.Default {
					code += " *"
				}
				rows = append(rows, []string{code, info.Name, info.Native, info.Voice})
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "Code"},
				{header: "Name"},
				{header: "Native"},
				{header: "Voice"},
			}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

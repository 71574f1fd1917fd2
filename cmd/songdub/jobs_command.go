package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"songdub/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.Jobs(cmd.Context())
			if err != nil {
				return wrapDialError(err, ctx.address())
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, api.JobListResponse{Jobs: list})
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderTable(jobColumns, jobRows(list)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	return cmd
}

var jobColumns = []column{
	{header: "ID"},
	{header: "Status"},
	{header: "Stage", maxWidth: 32},
	{header: "Progress", right: true},
	{header: "Lang"},
	{header: "Source", maxWidth: 32},
	{header: "Created"},
}

func jobRows(list []api.JobSummary) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			shortID(job.ID),
			job.Status,
			job.Stage,
			strconv.Itoa(job.Progress) + "%",
			job.Language,
			job.SourceName,
			formatTimestamp(job.CreatedAt),
		})
	}
	return rows
}

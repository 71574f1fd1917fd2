package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"songdub/internal/api"
	"songdub/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon status, or the details of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if len(args) == 1 {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					if api.IsNotFound(err) {
						return fmt.Errorf("job %s not found", args[0])
					}
					return wrapDialError(err, ctx.address())
				}
				if jsonOutput {
					return writeJSON(out, job)
				}
				renderJob(out, job, colorize)
				return nil
			}

			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapDialError(err, ctx.address())
			}
			if jsonOutput {
				return writeJSON(out, status)
			}
			renderDaemonStatus(out, status, colorize)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

func renderDaemonStatus(out io.Writer, status *api.DaemonStatus, colorize bool) {
	runKind := statusOK
	runText := "running"
	if !status.Running {
		runKind, runText = statusWarn, "stopped"
	}
	printSection(out, "Daemon", colorize, []string{
		renderStatusLine("State", runKind, runText, colorize),
		renderValueLine("PID", strconv.Itoa(status.PID)),
		renderValueLine("Data dir", status.DataDir),
		renderValueLine("Database", status.DatabasePath),
	})

	p := status.Pipeline
	printSection(out, "Pipeline", colorize, []string{
		renderValueLine("Workers", fmt.Sprintf("%d active of %d", p.Active, p.Workers)),
		renderValueLine("Backlog", fmt.Sprintf("%d of %d", p.Backlog, p.QueueSize)),
	})

	c := status.Jobs
	printSection(out, "Jobs", colorize, []string{
		renderValueLine("Total", strconv.Itoa(c.Total)),
		renderValueLine("Queued", strconv.Itoa(c.Queued)),
		renderValueLine("Processing", strconv.Itoa(c.Processing)),
		renderValueLine("Done", strconv.Itoa(c.Done)),
		renderValueLine("Failed", strconv.Itoa(c.Failed)),
	})

	lines := make([]string, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		lines = append(lines, dependencyLine(dep, colorize))
	}
	printSection(out, "Dependencies", colorize, lines)

	lines = lines[:0]
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	printSection(out, "Checks", colorize, lines)
}

func dependencyLine(dep api.DependencyStatus, colorize bool) string {
	switch {
	case dep.Available:
		return renderStatusLine(dep.Name, statusOK, dep.Command, colorize)
	case dep.Optional:
		return renderStatusLine(dep.Name, statusWarn, dep.Detail+" (optional)", colorize)
	default:
		return renderStatusLine(dep.Name, statusError, dep.Detail, colorize)
	}
}

func renderJob(out io.Writer, job *jobs.Job, colorize bool) {
	lines := []string{
		renderValueLine("ID", job.ID),
		renderStatusLine("Status", statusKindFor(job.Status), string(job.Status), colorize),
		renderValueLine("Stage", job.Stage),
		renderValueLine("Progress", strconv.Itoa(job.Progress)+"%"),
		renderValueLine("Language", job.Language),
		renderValueLine("Source", job.SourceName),
		renderValueLine("Window", formatWindow(job.Start, job.End)),
	}
	if job.Results.SelectedVoice != "" {
		lines = append(lines, renderValueLine("Speaker", job.Results.SelectedVoice))
	}
	if job.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, job.Error, colorize))
	}
	printSection(out, "Job", colorize, lines)

	printSection(out, "Artifacts", colorize, nil)
	printArtifacts(out, job.Results)
	if !job.Notes.Empty() {
		fmt.Fprintln(out)
		printNotes(out, job.Notes)
	}

	if len(job.Results.Segments) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(job.Results.Segments))
	for _, seg := range job.Results.Segments {
		rows = append(rows, []string{
			strconv.Itoa(seg.Index),
			formatSeconds(seg.Start),
			formatSeconds(seg.End),
			seg.Text,
			seg.Translated,
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{header: "#", right: true},
		{header: "Start", right: true},
		{header: "End", right: true},
		{header: "Lyric", maxWidth: 40},
		{header: "Translation", maxWidth: 40},
	}, rows))
}

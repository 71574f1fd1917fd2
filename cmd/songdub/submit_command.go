package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"songdub/internal/api"
	"songdub/internal/jobs"
)

const waitInterval = time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var opts api.SubmitOptions
	var wait bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a song to the daemon for dubbing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			id, err := client.Submit(cmd.Context(), path, opts)
			if err != nil {
				return wrapDialError(err, ctx.address())
			}
			if !wait {
				if jsonOutput {
					return writeJSON(out, api.SubmitResponse{JobID: id})
				}
				fmt.Fprintf(out, "Queued job %s\n", id)
				return nil
			}
			if !jsonOutput {
				fmt.Fprintf(out, "Queued job %s\n", id)
			}

			progress := newProgressPrinter(out, jsonOutput)
			job, err := client.Wait(cmd.Context(), id, waitInterval, progress.update)
			progress.finish()
			if err != nil {
				return wrapDialError(err, ctx.address())
			}
			if jsonOutput {
				if err := writeJSON(out, job); err != nil {
					return err
				}
			} else {
				printJobOutcome(out, job)
			}
			if job.Status == jobs.StatusError {
				return fmt.Errorf("job %s failed: %s", shortID(job.ID), job.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Language, "language", "l", "", "Target language code (defaults to languages.default)")
	cmd.Flags().Float64Var(&opts.Start, "start", 0, "Window start in seconds")
	cmd.Flags().Float64Var(&opts.End, "end", 0, "Window end in seconds (0 means end of song)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	return cmd
}

// progressPrinter reports stage changes while waiting. On a terminal it keeps
// rewriting one line; elsewhere it prints one line per change.
type progressPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	quiet  bool
	inline bool
	last   string
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{out: out, quiet: quiet, inline: shouldColorize(out)}
}

func (p *progressPrinter) update(job *jobs.Job) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	line := progressLine(job)
	if line == p.last {
		return
	}
	p.last = line
	if p.inline {
		fmt.Fprintf(p.out, "\r\x1b[2K%s", line)
		return
	}
	fmt.Fprintln(p.out, line)
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inline && p.last != "" {
		fmt.Fprintln(p.out)
	}
}

func printJobOutcome(out io.Writer, job *jobs.Job) {
	if job.Status == jobs.StatusError {
		fmt.Fprintf(out, "Job %s failed at %q: %s\n", shortID(job.ID), job.Stage, job.Error)
	} else {
		fmt.Fprintf(out, "Job %s finished\n", shortID(job.ID))
	}
	printArtifacts(out, job.Results)
	printNotes(out, job.Notes)
}

func printArtifacts(out io.Writer, results jobs.Results) {
	entries := []struct{ label, url string }{
		{"Final mix", results.FinalMix},
		{"Translated vocals", results.TranslatedVocals},
		{"Proxy vocals", results.ProxyVocals},
		{"Vocals", results.Vocals},
		{"Instrumental", results.Instrumental},
	}
	for _, entry := range entries {
		if entry.url != "" {
			fmt.Fprintln(out, renderValueLine(entry.label, entry.url))
		}
	}
}

func printNotes(out io.Writer, notes jobs.Notes) {
	entries := []struct{ label, text string }{
		{"Translation note", notes.Translation},
		{"TTS note", notes.TTS},
		{"Speaker note", notes.Speaker},
		{"Publish note", notes.Publish},
	}
	for _, entry := range entries {
		if entry.text != "" {
			fmt.Fprintln(out, renderValueLine(entry.label, entry.text))
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"songdub/internal/artifacts"
	"songdub/internal/config"
	"songdub/internal/fileutil"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/logging"
	"songdub/internal/pipeline"
	"songdub/internal/textutil"
)

func newDubCommand(ctx *commandContext) *cobra.Command {
	var req pipeline.Request
	var outPath string
	var keep bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "dub <file>",
		Short: "Dub a song in-process without a running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if strings.TrimSpace(logLevel) != "" {
				level = logLevel
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			langs := language.NewSet(cfg.Languages.Voices)
			collab, err := pipeline.NewCollaborators(cfg, langs, logger)
			if err != nil {
				return err
			}
			req.SourceName = args[0]
			d := &offlineDub{
				cfg:      cfg,
				langs:    langs,
				collab:   collab,
				logger:   logger,
				progress: newProgressPrinter(cmd.OutOrStdout(), false),
				keep:     keep,
			}
			job, dest, err := d.run(cmd.Context(), args[0], req, outPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", dest)
			if job.Results.SelectedVoice != "" {
				fmt.Fprintln(out, renderValueLine("Speaker", job.Results.SelectedVoice))
			}
			printNotes(out, job.Notes)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Language, "language", "l", "", "Target language code (defaults to languages.default)")
	cmd.Flags().Float64Var(&req.Start, "start", 0, "Window start in seconds")
	cmd.Flags().Float64Var(&req.End, "end", 0, "Window end in seconds (0 means end of song)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output WAV path (defaults to <song>.<lang>.wav next to the input)")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the job directory with stems and intermediate files")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for pipeline output on stderr")
	return cmd
}

// offlineDub runs one job through the orchestrator against an in-memory
// registry and copies the final mix out of the job directory.
type offlineDub struct {
	cfg      *config.Config
	langs    *language.Set
	collab   pipeline.Collaborators
	logger   *slog.Logger
	progress *progressPrinter
	keep     bool
}

func (d *offlineDub) run(ctx context.Context, src string, req pipeline.Request, outPath string) (*jobs.Job, string, error) {
	req, err := req.Normalize(d.langs, d.cfg.Languages.Default)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(src)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", src, err)
	}
	defer file.Close()

	registry := &watchedRegistry{MemoryRegistry: jobs.NewMemoryRegistry(), onSave: d.progress.update}
	orch, err := pipeline.NewOrchestrator(d.cfg, registry, d.collab, d.logger)
	if err != nil {
		return nil, "", err
	}
	job, err := pipeline.Admit(ctx, d.cfg, registry, req, file)
	if err != nil {
		return nil, "", err
	}
	layout := artifacts.NewLayout(d.cfg.JobsDir(), job.ID)
	if !d.keep {
		defer os.RemoveAll(layout.Root)
	}

	runErr := orch.Run(ctx, job)
	d.progress.finish()
	final, err := registry.Get(ctx, job.ID)
	if err != nil {
		return nil, "", err
	}
	if runErr != nil {
		return final, "", runErr
	}

	dest := outPath
	if strings.TrimSpace(dest) == "" {
		dest = defaultDubPath(src, req.Language)
	}
	if err := fileutil.CopyFile(layout.FinalMix(), dest); err != nil {
		return final, "", fmt.Errorf("write %s: %w", dest, err)
	}
	return final, dest, nil
}

func defaultDubPath(src, lang string) string {
	base := textutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)))
	if base == "" {
		base = "song"
	}
	return filepath.Join(filepath.Dir(src), fmt.Sprintf("%s.%s.wav", base, lang))
}

// watchedRegistry reports every saved job so the CLI can print progress.
type watchedRegistry struct {
	*jobs.MemoryRegistry
	onSave func(*jobs.Job)
}

func (r *watchedRegistry) Save(ctx context.Context, job *jobs.Job) error {
	if err := r.MemoryRegistry.Save(ctx, job); err != nil {
		return err
	}
	if r.onSave != nil {
		r.onSave(job)
	}
	return nil
}

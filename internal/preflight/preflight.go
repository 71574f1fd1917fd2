package preflight

import (
	"context"

	"songdub/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// The translation check only runs when an API key is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDiskSpace("Free space", cfg.Paths.DataDir, MinFreeBytes),
	}

	if cfg.VoiceConversion.Enabled {
		results = append(results, CheckDirectoryAccess("Speaker profiles", cfg.VoiceConversion.SpeakersDir))
	}

	if cfg.Translation.APIKey != "" {
		results = append(results, CheckTranslation(ctx, cfg.Translation))
	}

	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

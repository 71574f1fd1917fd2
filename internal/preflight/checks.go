package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"songdub/internal/config"
	"songdub/internal/deps"
	"songdub/internal/services"
	"songdub/internal/services/translator"
)

// MinFreeBytes is the free space a data directory needs to hold the stems
// and intermediate renders of a typical job.
const MinFreeBytes uint64 = 2 << 30

// CheckTranslation verifies that the translation API is reachable and the
// key is valid. It uses a 30-second timeout and a single attempt.
func CheckTranslation(ctx context.Context, cfg config.Translation) Result {
	const name = "Translation API"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := translator.NewClient(translator.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, translator.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has at least minFree
// bytes available to unprivileged users.
func CheckDiskSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", formatBytes(free), path)
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, formatBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps resolves the external programs required by the configured
// pipeline on PATH. It never runs them.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(systemRequirements(cfg))
}

// ProbeSystemDeps is CheckSystemDeps plus a run of each tool's probe, such as
// importing demucs with the configured Python. A nil run uses os/exec.
func ProbeSystemDeps(ctx context.Context, cfg *config.Config, run services.CommandRunner) []deps.Status {
	return deps.Probe(ctx, systemRequirements(cfg), run)
}

func systemRequirements(cfg *config.Config) []deps.Requirement {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for trimming and mixdown",
			Probe:       []string{"-hide_banner", "-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Required for media inspection",
		},
		{
			Name:        "Python",
			Command:     cfg.Tools.Python,
			Description: "Required for Demucs stem separation",
			Probe:       []string{"-c", "import demucs"},
		},
		{
			Name:        "Whisper",
			Command:     cfg.Tools.WhisperCommand,
			Description: "Required for lyric transcription",
		},
		{
			Name:        "TTS",
			Command:     firstArg(cfg.Tools.TTSCommand),
			Description: "Required for proxy speech synthesis",
		},
	}
	if cfg.VoiceConversion.Enabled {
		requirements = append(requirements, deps.Requirement{
			Name:        "Voice conversion",
			Command:     firstArg(cfg.Tools.SVCCommand),
			Description: "Converts proxy vocals to the reference singer",
			Optional:    true,
		})
	}
	return requirements
}

func firstArg(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// summarizeAPIError produces a human-readable summary for health check failures.
func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (translation API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (translation API unreachable)"
	}
	return strings.TrimSpace(err.Error())
}

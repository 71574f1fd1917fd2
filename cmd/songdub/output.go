package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"songdub/internal/jobs"
)

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatSeconds(value float64) string {
	return fmt.Sprintf("%.2fs", value)
}

func formatWindow(start, end float64) string {
	switch {
	case start == 0 && end == 0:
		return "whole song"
	case end == 0:
		return fmt.Sprintf("%s to end", formatSeconds(start))
	default:
		return fmt.Sprintf("%s to %s", formatSeconds(start), formatSeconds(end))
	}
}

func formatTimestamp(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

func statusKindFor(status jobs.Status) statusKind {
	switch status {
	case jobs.StatusDone:
		return statusOK
	case jobs.StatusError:
		return statusError
	default:
		return statusInfo
	}
}

func progressLine(job *jobs.Job) string {
	stage := strings.TrimSpace(job.Stage)
	if stage == "" {
		stage = string(job.Status)
	}
	return fmt.Sprintf("[%3d%%] %s", job.Progress, stage)
}

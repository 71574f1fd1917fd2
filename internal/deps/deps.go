package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"songdub/internal/services"
)

// ProbeTimeout bounds a single probe invocation.
const ProbeTimeout = 30 * time.Second

// Requirement defines an external program songdub shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Probe holds arguments that exercise the tool beyond PATH resolution,
	// such as importing a Python module. Empty means PATH lookup only.
	Probe []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves every requirement on PATH without running anything.
func CheckBinaries(requirements []Requirement) []Status {
	return check(context.Background(), requirements, nil, false)
}

// Probe resolves every requirement and then runs its probe through run. A nil
// run uses os/exec.
func Probe(ctx context.Context, requirements []Requirement, run services.CommandRunner) []Status {
	return check(ctx, requirements, run, true)
}

func check(ctx context.Context, requirements []Requirement, run services.CommandRunner, probe bool) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case status.Command == "":
			status.Detail = "command not configured"
		default:
			path, err := exec.LookPath(status.Command)
			if err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", status.Command)
				break
			}
			status.Available = true
			if probe && len(req.Probe) > 0 {
				if _, err := services.RunWithTimeout(ctx, run, ProbeTimeout, path, req.Probe...); err != nil {
					status.Available = false
					status.Detail = fmt.Sprintf("%s %s failed: %v", status.Command, strings.Join(req.Probe, " "), err)
				}
			}
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the non-optional dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

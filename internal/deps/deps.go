package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"uploadflow/internal/services"
)

// Requirement is an external command a pipeline stage shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional requirements are reported but never block a run.
	Optional bool
}

// Status is the outcome of looking up one Requirement on PATH.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// CheckBinaries resolves every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = lookup(req)
	}
	return results
}

func lookup(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("%q not found on PATH", status.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// Missing returns the required entries that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

// Require fails with services.ErrConfiguration when any required command is
// missing. The message names every missing command.
func Require(requirements []Requirement) error {
	missing := Missing(CheckBinaries(requirements))
	if len(missing) == 0 {
		return nil
	}
	lines := make([]string, len(missing))
	for i, status := range missing {
		lines[i] = fmt.Sprintf("%s is not installed", displayName(status))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", missing[0].Name,
		strings.Join(lines, "; ")+". Please install it and try again", nil)
}

func displayName(status Status) string {
	if status.Command != "" {
		return status.Command
	}
	return status.Name
}

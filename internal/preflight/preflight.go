package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"uploadflow/internal/config"
	"uploadflow/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Requirements lists the external commands the pipeline invokes. The editor is
// only needed by the interactive CLI driver.
func Requirements(cfg *config.Config, interactive bool) []deps.Requirement {
	if cfg == nil {
		return nil
	}
	var reqs []deps.Requirement
	if cfg.Tools.Runner != "" {
		reqs = append(reqs, deps.Requirement{
			Name:        "Runner",
			Command:     cfg.Tools.Runner,
			Description: "Launches the pipeline tools",
		})
	} else {
		reqs = append(reqs,
			deps.Requirement{Name: "Color editor", Command: cfg.Tools.ColorEdit, Description: "Color/audio edit of the source video"},
			deps.Requirement{Name: "Transcriber", Command: cfg.Tools.Whisper, Description: "Speech-to-text transcript"},
			deps.Requirement{Name: "Chapter maker", Command: cfg.Tools.ChapterMaker, Description: "Chapters and suggested titles"},
			deps.Requirement{Name: "Publisher", Command: cfg.Tools.Uploader, Description: "Video upload"},
		)
	}
	if interactive {
		reqs = append(reqs, deps.Requirement{
			Name:        "Editor",
			Command:     cfg.Tools.Editor,
			Description: "Description editing",
			Optional:    true,
		})
	}
	return reqs
}

// CheckSystemDeps evaluates the external commands for the given config.
func CheckSystemDeps(cfg *config.Config, interactive bool) []deps.Status {
	return deps.CheckBinaries(Requirements(cfg, interactive))
}

// RunAll executes the filesystem checks that apply to the web daemon.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Uploads root", cfg.Paths.UploadsRoot),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
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

// Package deps reports whether the external tools and directories the
// transcription pipeline relies on are usable.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
)

// Requirement defines an external binary Scribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Command = resolved
		}
		results = append(results, status)
	}
	return results
}

// CheckReadable verifies a file exists and is readable.
func CheckReadable(name, path, description string) Status {
	status := Status{Name: name, Command: path, Description: description}
	if strings.TrimSpace(path) == "" {
		status.Detail = "path not configured"
		return status
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		status.Detail = fmt.Sprintf("%s not readable: %v", path, err)
		return status
	}
	status.Available = true
	return status
}

// CheckDirectory verifies path is a directory the daemon can read, write and
// traverse.
func CheckDirectory(name, path string) Status {
	status := Status{Name: name, Command: path, Description: "working directory"}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("stat: %v", err)
	case !info.IsDir():
		status.Detail = "is not a directory"
	default:
		if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			status.Detail = fmt.Sprintf("insufficient permissions: %v", err)
		} else {
			status.Available = true
		}
	}
	return status
}

// CheckSystem evaluates every dependency for cfg. Both the daemon status
// endpoint and the CLI use it.
func CheckSystem(cfg *config.Config) []Status {
	results := CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Audio extraction and chunking"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Media duration probe"},
		{Name: "Engine", Command: cfg.Engine.Command, Description: "Speech-to-text worker runtime"},
	})
	if script := strings.TrimSpace(cfg.Engine.Script); script != "" {
		results = append(results, CheckReadable("Engine script", script, "Speech-to-text worker entry point"))
	}
	results = append(results, CheckDirectory("Upload directory", cfg.Paths.UploadDir))
	return results
}

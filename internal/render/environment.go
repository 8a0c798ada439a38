package render

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// EnvironmentError means the renderer cannot run at all, so no scene could
// succeed.
type EnvironmentError struct {
	Binary string
	Err    error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("renderer %q unavailable: %v", e.Binary, e.Err)
}

func (e *EnvironmentError) Unwrap() error { return e.Err }

// CheckEnvironment resolves the renderer executable on PATH.
func CheckEnvironment(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", &EnvironmentError{Binary: binary, Err: err}
	}
	return path, nil
}

// Version returns the first line of `<binary> --version`.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(out))
	if idx := strings.Index(line, "\n"); idx > 0 {
		line = line[:idx]
	}
	return line, nil
}

// Tool is an optional helper program the renderer shells out to.
type Tool struct {
	Name    string
	Purpose string
	Path    string
	Found   bool
}

// ProbeTools looks up the helpers manim relies on for encoding and TeX text.
func ProbeTools() []Tool {
	tools := []Tool{
		{Name: "ffmpeg", Purpose: "video encoding (older manim releases)"},
		{Name: "latex", Purpose: "Tex/MathTex text"},
		{Name: "dvisvgm", Purpose: "Tex to SVG conversion"},
	}
	for i := range tools {
		if p, err := exec.LookPath(tools[i].Name); err == nil {
			tools[i].Path = p
			tools[i].Found = true
		}
	}
	return tools
}

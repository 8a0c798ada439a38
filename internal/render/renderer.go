package render

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ivlev/scenebatch/internal/config"
	"github.com/ivlev/scenebatch/internal/system"
)

const (
	// stderrTail bounds the renderer output kept for the report.
	stderrTail = 8 << 10
	// killGrace is how long Wait waits for pipes after the child was killed.
	killGrace = 5 * time.Second
)

// Spec describes one scene to render.
type Spec struct {
	ModulePath string
	Symbol     string
	Quality    config.Quality
}

// Outcome is the result of one renderer invocation.
type Outcome struct {
	ExitCode int
	Stderr   string
	Err      error
}

// SceneRenderer builds and runs renderer command lines.
type SceneRenderer interface {
	Command(spec Spec) []string
	Run(ctx context.Context, dir string, argv []string) Outcome
}

// ManimRenderer drives the manim CLI.
type ManimRenderer struct {
	Binary    string
	ExtraArgs []string
	Preview   bool
	MediaDir  string
	Verbose   bool
}

func NewManimRenderer(cfg *config.Config, mediaDir string) *ManimRenderer {
	return &ManimRenderer{
		Binary:    cfg.Renderer,
		ExtraArgs: cfg.RendererArgs,
		Preview:   cfg.Preview,
		MediaDir:  mediaDir,
		Verbose:   cfg.Verbose,
	}
}

// Command returns the full argv for spec. The same spec always yields the
// same command line.
func (r *ManimRenderer) Command(spec Spec) []string {
	args := []string{r.Binary}
	if r.Preview {
		args = append(args, "-p")
	}
	args = append(args, spec.Quality.Flag())
	if r.MediaDir != "" {
		args = append(args, "--media_dir", r.MediaDir)
	}
	args = append(args, r.ExtraArgs...)
	args = append(args, filepath.FromSlash(spec.ModulePath), spec.Symbol)
	return args
}

// Run executes argv in dir. Cancelling ctx kills the child and everything it
// spawned. A renderer that cannot be started is reported as *EnvironmentError.
func (r *ManimRenderer) Run(ctx context.Context, dir string, argv []string) Outcome {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	tail := newTailBuffer(stderrTail)
	if r.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = io.MultiWriter(tail, os.Stderr)
	} else {
		cmd.Stderr = tail
	}
	cmd.Cancel = func() error {
		return system.KillTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = killGrace

	err := cmd.Run()
	out := Outcome{Stderr: tail.String()}
	if err == nil {
		return out
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		out.Err = err
	case isStartFailure(err):
		out.ExitCode = -1
		out.Err = &EnvironmentError{Binary: argv[0], Err: err}
	default:
		out.ExitCode = -1
		out.Err = err
	}
	return out
}

func isStartFailure(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// ArtifactPath is where the renderer writes the video for a scene:
// <mediaDir>/videos/<module>/<quality tag>/<symbol>.mp4
func ArtifactPath(mediaDir, modulePath string, q config.Quality, symbol string) string {
	base := filepath.Base(filepath.FromSlash(modulePath))
	module := base[:len(base)-len(filepath.Ext(base))]
	return filepath.Join(mediaDir, "videos", module, q.Tag(), symbol+".mp4")
}

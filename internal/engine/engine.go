package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scenebatch/internal/config"
	"github.com/ivlev/scenebatch/internal/render"
)

// Batch renders a list of requests through one SceneRenderer.
type Batch struct {
	Config   *config.Config
	Renderer render.SceneRenderer
	MediaDir string
	Logger   *slog.Logger

	out   io.Writer
	outMu sync.Mutex
}

func NewBatch(cfg *config.Config, r render.SceneRenderer, mediaDir string, logger *slog.Logger, out io.Writer) *Batch {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if out == nil {
		out = io.Discard
	}
	return &Batch{
		Config:   cfg,
		Renderer: r,
		MediaDir: mediaDir,
		Logger:   logger,
		out:      out,
	}
}

// Run renders every request and returns one result per request, in request
// order. Renders are sequential unless Config.Workers > 1. A failed render
// never stops the batch; cancelling ctx kills running renders and marks the
// rest cancelled. The returned error is non-nil only when the renderer itself
// could not be started, which aborts the batch.
func (b *Batch) Run(ctx context.Context, reqs []RenderRequest) (*Summary, error) {
	startTime := time.Now()

	workers := b.Config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) && len(reqs) > 0 {
		workers = len(reqs)
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	results := make([]RenderResult, len(reqs))
	var envOnce sync.Once
	var envErr error

	b.Logger.Info("batch started", "scenes", len(reqs), "workers", workers, "quality", b.Config.Quality, "dry_run", b.Config.DryRun)

	var g errgroup.Group
	g.SetLimit(workers)
	for i, req := range reqs {
		if runCtx.Err() != nil {
			results[i] = cancelled(req, runCtx.Err())
			continue
		}
		g.Go(func() error {
			res := b.renderOne(runCtx, req, len(reqs))
			results[i] = res

			var ee *render.EnvironmentError
			if errors.As(res.Err, &ee) {
				envOnce.Do(func() {
					envErr = ee
					abort()
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := newSummary(results)
	summary.Workers = workers
	summary.DryRun = b.Config.DryRun
	summary.Interrupted = ctx.Err() != nil
	summary.Elapsed = time.Since(startTime)

	b.Logger.Info("batch finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"elapsed", summary.Elapsed.Round(time.Millisecond))

	if envErr != nil {
		return summary, envErr
	}
	return summary, nil
}

func (b *Batch) renderOne(ctx context.Context, req RenderRequest, total int) RenderResult {
	if ctx.Err() != nil {
		return cancelled(req, ctx.Err())
	}

	id := req.Entry.ID
	b.printf("[>] %d/%d %s (%s)\n    %s\n", req.Index+1, total, id, req.Group.Name, req.CommandLine())
	b.Logger.Debug("render command", "scene", id, "dir", req.WorkDir, "argv", req.Args, "digest", req.Digest)

	res := RenderResult{Request: req}
	if b.Config.DryRun {
		res.Status = StatusSucceeded
		return res
	}

	if _, err := os.Stat(req.WorkDir); err != nil {
		res.Status = StatusFailed
		res.ExitCode = -1
		res.Err = fmt.Errorf("work dir: %w", err)
		b.Logger.Error("render failed", "scene", id, "error", res.Err)
		b.printf("[!] %s: %v\n", id, res.Err)
		return res
	}

	start := time.Now()
	out := b.Renderer.Run(ctx, req.WorkDir, req.Args)
	res.Duration = time.Since(start)
	res.ExitCode = out.ExitCode

	switch {
	case out.Err == nil:
		res.Status = StatusSucceeded
		b.Logger.Info("render succeeded", "scene", id, "duration", res.Duration.Round(time.Millisecond), "artifact", req.ArtifactPath)
		b.printf("[+] %s done in %.1fs\n", id, res.Duration.Seconds())
	case ctx.Err() != nil:
		res.Status = StatusCancelled
		res.Err = ctx.Err()
		b.Logger.Warn("render cancelled", "scene", id)
		b.printf("[!] %s cancelled\n", id)
	default:
		res.Status = StatusFailed
		res.Stderr = out.Stderr
		res.Err = out.Err
		b.Logger.Error("render failed", "scene", id, "exit_code", out.ExitCode, "error", out.Err)
		b.printf("[!] %s failed (exit code: %d)\n", id, out.ExitCode)
	}
	return res
}

func cancelled(req RenderRequest, err error) RenderResult {
	return RenderResult{Request: req, Status: StatusCancelled, ExitCode: -1, Err: err}
}

func (b *Batch) printf(format string, args ...any) {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	fmt.Fprintf(b.out, format, args...)
}

package engine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/twmb/murmur3"

	"github.com/ivlev/scenebatch/internal/catalog"
	"github.com/ivlev/scenebatch/internal/config"
	"github.com/ivlev/scenebatch/internal/render"
)

// RenderRequest is a resolved instruction to render one scene.
type RenderRequest struct {
	Index        int
	Entry        catalog.SceneEntry
	Group        catalog.Group
	Quality      config.Quality
	WorkDir      string
	Args         []string
	ArtifactPath string
	Digest       string
}

// CommandLine is Args joined for display.
func (r RenderRequest) CommandLine() string {
	return strings.Join(r.Args, " ")
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RenderResult is the outcome of one RenderRequest.
type RenderResult struct {
	Request  RenderRequest
	Status   Status
	Duration time.Duration
	ExitCode int
	Stderr   string
	Err      error
}

// Plan resolves entries into requests, in the order given.
func (b *Batch) Plan(cat *catalog.Catalog, entries []catalog.SceneEntry) ([]RenderRequest, error) {
	root, err := filepath.Abs(b.Config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", b.Config.Root, err)
	}

	reqs := make([]RenderRequest, 0, len(entries))
	for i, e := range entries {
		g, ok := cat.Group(e.Group)
		if !ok {
			return nil, fmt.Errorf("scene %q: group %q not in catalog", e.ID, e.Group)
		}
		workDir := filepath.Join(root, filepath.FromSlash(g.WorkDir))

		mediaDir := b.MediaDir
		if mediaDir == "" {
			mediaDir = filepath.Join(workDir, "media")
		}

		args := b.Renderer.Command(render.Spec{
			ModulePath: e.ModulePath,
			Symbol:     e.Symbol,
			Quality:    b.Config.Quality,
		})
		reqs = append(reqs, RenderRequest{
			Index:        i,
			Entry:        e,
			Group:        g,
			Quality:      b.Config.Quality,
			WorkDir:      workDir,
			Args:         args,
			ArtifactPath: render.ArtifactPath(mediaDir, e.ModulePath, b.Config.Quality, e.Symbol),
			Digest:       digest(workDir, args),
		})
	}
	return reqs, nil
}

func digest(dir string, args []string) string {
	hasher := murmur3.New64()
	hasher.Write([]byte(dir))
	for _, a := range args {
		hasher.Write([]byte{0})
		hasher.Write([]byte(a))
	}
	return strconv.FormatUint(hasher.Sum64(), 16)
}

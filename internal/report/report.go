package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aquasecurity/table"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/scenebatch/internal/catalog"
	"github.com/ivlev/scenebatch/internal/engine"
)

// PrintCatalog prints one row per entry, in catalog order.
func PrintCatalog(w io.Writer, cat *catalog.Catalog, entries []catalog.SceneEntry) {
	tbl := table.New(w)
	tbl.SetBorders(false)
	tbl.SetColumnMaxWidth(48)
	tbl.SetHeaders("Group", "Scene", "Title", "Module")
	for _, e := range entries {
		group := e.Group
		if g, ok := cat.Group(e.Group); ok && g.Series != "" {
			group = g.Series + "/" + g.Name
		}
		tbl.AddRow(group, e.ID, e.DisplayName, e.ModulePath)
	}
	tbl.Render()
	fmt.Fprintf(w, "\n%d scenes in %d groups\n", len(entries), countGroups(entries))
}

func countGroups(entries []catalog.SceneEntry) int {
	seen := make(map[string]struct{})
	for _, e := range entries {
		seen[e.Group] = struct{}{}
	}
	return len(seen)
}

// PrintSummary prints the per-scene outcome table followed by the totals line.
func PrintSummary(w io.Writer, s *engine.Summary) {
	if s.Total() > 0 {
		tbl := table.New(w)
		tbl.SetBorders(false)
		tbl.SetHeaders("#", "Scene", "Group", "Status", "Time", "Exit")
		for _, r := range s.Results {
			exit := "-"
			if r.Status == engine.StatusFailed && r.ExitCode >= 0 {
				exit = fmt.Sprint(r.ExitCode)
			}
			tbl.AddRow(
				fmt.Sprint(r.Request.Index+1),
				r.Request.Entry.ID,
				r.Request.Group.Name,
				string(r.Status),
				fmt.Sprintf("%.1fs", r.Duration.Seconds()),
				exit,
			)
		}
		tbl.Render()
		fmt.Fprintln(w)
	}

	for _, r := range s.FailedResults() {
		if r.Status != engine.StatusFailed {
			continue
		}
		fmt.Fprintf(w, "[!] %s: %v\n", r.Request.Entry.ID, r.Err)
		if tail := strings.TrimSpace(r.Stderr); tail != "" {
			for _, line := range lastLines(tail, 5) {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	verb := "rendered"
	if s.DryRun {
		verb = "planned (dry run)"
	}
	fmt.Fprintf(w, "Results: %d/%d scenes %s\n", s.Succeeded, s.Total(), verb)
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "[!] %d scenes cancelled\n", s.Cancelled)
	}
}

func lastLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

// File is the machine-readable run summary.
type File struct {
	Build       string        `yaml:"build,omitempty" json:"build,omitempty"`
	Started     time.Time     `yaml:"started" json:"started"`
	Elapsed     float64       `yaml:"elapsed_seconds" json:"elapsed_seconds"`
	Workers     int           `yaml:"workers" json:"workers"`
	DryRun      bool          `yaml:"dry_run" json:"dry_run"`
	Interrupted bool          `yaml:"interrupted" json:"interrupted"`
	ExitCode    int           `yaml:"exit_code" json:"exit_code"`
	Total       int           `yaml:"total" json:"total"`
	Succeeded   int           `yaml:"succeeded" json:"succeeded"`
	Failed      int           `yaml:"failed" json:"failed"`
	Cancelled   int           `yaml:"cancelled" json:"cancelled"`
	Scenes      []SceneRecord `yaml:"scenes" json:"scenes"`
}

type SceneRecord struct {
	ID       string  `yaml:"id" json:"id"`
	Group    string  `yaml:"group" json:"group"`
	Quality  string  `yaml:"quality" json:"quality"`
	Status   string  `yaml:"status" json:"status"`
	Duration float64 `yaml:"duration_seconds" json:"duration_seconds"`
	ExitCode int     `yaml:"exit_code" json:"exit_code"`
	Command  string  `yaml:"command" json:"command"`
	Artifact string  `yaml:"artifact,omitempty" json:"artifact,omitempty"`
	Digest   string  `yaml:"digest" json:"digest"`
	Error    string  `yaml:"error,omitempty" json:"error,omitempty"`
	Stderr   string  `yaml:"stderr,omitempty" json:"stderr,omitempty"`
}

// NewFile converts a summary to its file form.
func NewFile(s *engine.Summary, build string, started time.Time) File {
	f := File{
		Build:       build,
		Started:     started.UTC().Truncate(time.Second),
		Elapsed:     roundSeconds(s.Elapsed),
		Workers:     s.Workers,
		DryRun:      s.DryRun,
		Interrupted: s.Interrupted,
		ExitCode:    s.ExitCode(),
		Total:       s.Total(),
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		Cancelled:   s.Cancelled,
		Scenes:      make([]SceneRecord, 0, s.Total()),
	}
	for _, r := range s.Results {
		rec := SceneRecord{
			ID:       r.Request.Entry.ID,
			Group:    r.Request.Group.Name,
			Quality:  string(r.Request.Quality),
			Status:   string(r.Status),
			Duration: roundSeconds(r.Duration),
			ExitCode: r.ExitCode,
			Command:  r.Request.CommandLine(),
			Digest:   r.Request.Digest,
			Stderr:   r.Stderr,
		}
		if r.Status == engine.StatusSucceeded && !s.DryRun {
			rec.Artifact = r.Request.ArtifactPath
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		f.Scenes = append(f.Scenes, rec)
	}
	return f
}

func roundSeconds(d time.Duration) float64 {
	return d.Round(time.Millisecond).Seconds()
}

// WriteFile writes the summary as JSON when path ends in .json and as YAML
// otherwise. Parent directories are created.
func WriteFile(path string, f File) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(f, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml", "":
		data, err = yaml.Marshal(f)
	default:
		return fmt.Errorf("report %s: unsupported extension (want .yaml, .yml or .json)", path)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a report written by WriteFile.
func ReadFile(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return f, fmt.Errorf("decode report %s: %w", path, err)
	}
	return f, nil
}

// GenerateReportPath returns a timestamped report file name under dir.
func GenerateReportPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("render_%s.yaml", now.Format("2006-01-02_15-04-05")))
}

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/scenebatch/internal/engine"
)

// PrintStats prints the performance report shown with -stats.
func PrintStats(w io.Writer, s *engine.Summary, build string) {
	var renderTime time.Duration
	for _, r := range s.Results {
		renderTime += r.Duration
	}
	var perScene float64
	if s.Succeeded > 0 {
		perScene = renderTime.Seconds() / float64(s.Succeeded)
	}
	speedup := 1.0
	if s.Elapsed > 0 && renderTime > 0 {
		speedup = renderTime.Seconds() / s.Elapsed.Seconds()
	}

	fmt.Fprintf(w,
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Render Time (sum): %.2fs\n"+
			"Workers: %d\n"+
			"Parallel Speedup: %.2fx\n"+
			"Avg per Scene: %.2fs\n"+
			"----------------------------\n",
		build, s.Elapsed.Seconds(), renderTime.Seconds(), s.Workers, speedup, perScene,
	)
}

// HistoryLine formats one run record for the history log.
func HistoryLine(s *engine.Summary, build, quality string, now time.Time) string {
	return fmt.Sprintf("[%s] Build: %s | Quality: %s | Workers: %d | Scenes: %d/%d | Failed: %d | Cancelled: %d | Total: %.2fs\n",
		now.Format("2006-01-02 15:04:05"),
		build,
		quality,
		s.Workers,
		s.Succeeded,
		s.Total(),
		s.Failed,
		s.Cancelled,
		s.Elapsed.Seconds(),
	)
}

// AppendHistory appends one run record to the history log at path.
func AppendHistory(path string, s *engine.Summary, build, quality string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(HistoryLine(s, build, quality, time.Now())); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

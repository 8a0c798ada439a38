package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ivlev/scenebatch/internal/catalog"
	"github.com/ivlev/scenebatch/internal/report"
)

const testCatalog = `version: "1.0"
groups:
  - name: mutex
    title: Mutex Locks
    workdir: os
    scenes:
      - id: scene_01
        module: mutex/scene_01.py
      - id: scene_02
        module: mutex/scene_02.py
  - name: mvcc
    title: MVCC
    workdir: os
    scenes:
      - id: scene_09
        module: mvcc/scene_09.py
`

type fixture struct {
	root     string
	catalog  string
	renderer string
	calls    string
}

// newFixture lays out a project root with one work dir and a fake renderer
// that records "<cwd>|<argv>" per call and fails for scene_02.
func newFixture(t *testing.T) fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	f := fixture{
		root:     filepath.Join(dir, "project"),
		catalog:  filepath.Join(dir, "scenes.yaml"),
		renderer: filepath.Join(dir, "fake-manim"),
		calls:    filepath.Join(dir, "calls.log"),
	}
	if err := os.MkdirAll(filepath.Join(f.root, "os"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.catalog, []byte(testCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\n" +
		"for last; do :; done\n" +
		"echo \"$PWD|$*\" >> '" + f.calls + "'\n" +
		"case \"$last\" in scene_02) echo 'Traceback: boom' >&2; exit 1;; esac\n" +
		"exit 0\n"
	if err := os.WriteFile(f.renderer, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f fixture) args(extra ...string) []string {
	return append([]string{"-catalog", f.catalog, "-root", f.root, "-renderer", f.renderer, "-log-level", "error"}, extra...)
}

// invocations returns the recorded calls as "<argv>" with the cwd checked.
func (f fixture) invocations(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.calls)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	wantDir, _ := filepath.EvalSymlinks(filepath.Join(f.root, "os"))
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		dir, argv, _ := strings.Cut(line, "|")
		if got, _ := filepath.EvalSymlinks(dir); got != wantDir {
			t.Errorf("renderer ran in %q, want %q", dir, wantDir)
		}
		out = append(out, argv)
	}
	return out
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_PartialFailure(t *testing.T) {
	f := newFixture(t)
	code, stdout, stderr := runCLI(t, f.args("-group", "mutex")...)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	media := filepath.Join(f.root, "media")
	want := []string{
		"-ql --media_dir " + media + " mutex/scene_01.py scene_01",
		"-ql --media_dir " + media + " mutex/scene_02.py scene_02",
	}
	if diff := cmp.Diff(want, f.invocations(t)); diff != "" {
		t.Errorf("invocations mismatch (-want +got):\n%s", diff)
	}
	for _, s := range []string{"Results: 1/2 scenes rendered", "[!] scene_02", "Traceback: boom"} {
		if !strings.Contains(stdout, s) {
			t.Errorf("stdout missing %q:\n%s", s, stdout)
		}
	}
}

func TestRun_GroupAliases(t *testing.T) {
	for _, flagName := range []string{"-module", "-m", "-chapter", "-c", "-part", "-p", "-g"} {
		t.Run(flagName, func(t *testing.T) {
			f := newFixture(t)
			code, stdout, _ := runCLI(t, f.args(flagName, "mvcc", "-q", "production")...)
			if code != 0 {
				t.Fatalf("exit code = %d\n%s", code, stdout)
			}
			inv := f.invocations(t)
			if len(inv) != 1 || !strings.HasSuffix(inv[0], "scene_09") || !strings.HasPrefix(inv[0], "-qh ") {
				t.Errorf("invocations = %v", inv)
			}
			if !strings.Contains(stdout, "Results: 1/1 scenes rendered") {
				t.Errorf("stdout:\n%s", stdout)
			}
		})
	}
}

func TestRun_NotFound(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown scene", []string{"-scene", "scene_99"}, `unknown scene "scene_99"`},
		{"unknown group", []string{"-group", "nope"}, `unknown group "nope"`},
		{"scene outside group", []string{"-group", "mvcc", "-scene", "scene_01"}, `unknown scene "scene_01"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, _, stderr := runCLI(t, f.args(tt.args...)...)
			if code != 2 {
				t.Errorf("exit code = %d, want 2", code)
			}
			if !strings.Contains(stderr, tt.want) || !strings.Contains(stderr, "-list") {
				t.Errorf("stderr = %q", stderr)
			}
			if inv := f.invocations(t); len(inv) != 0 {
				t.Errorf("renderer invoked: %v", inv)
			}
		})
	}
}

func TestRun_List(t *testing.T) {
	f := newFixture(t)
	code, stdout, _ := runCLI(t, f.args("-list", "-group", "mutex")...)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "scene_01") || !strings.Contains(stdout, "scene_02") || strings.Contains(stdout, "scene_09") {
		t.Errorf("list output:\n%s", stdout)
	}
	if !strings.Contains(stdout, "catalog digest:") {
		t.Errorf("digest missing:\n%s", stdout)
	}
	if inv := f.invocations(t); len(inv) != 0 {
		t.Errorf("list invoked the renderer: %v", inv)
	}
}

func TestRun_BuiltinList(t *testing.T) {
	code, stdout, _ := runCLI(t, "-l", "-c", "chapter_01")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "CompleteChapter") {
		t.Errorf("built-in catalog not listed:\n%s", stdout)
	}
}

func TestRun_MissingRenderer(t *testing.T) {
	f := newFixture(t)
	code, _, stderr := runCLI(t, f.args("-renderer", filepath.Join(t.TempDir(), "no-such-manim"))...)
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.Contains(stderr, "no-such-manim") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	args := f.args("-dry-run", "-renderer", "definitely-not-installed")
	code, stdout, _ := runCLI(t, args...)
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "definitely-not-installed -ql") {
		t.Errorf("command lines not printed:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Results: 3/3 scenes planned (dry run)") {
		t.Errorf("stdout:\n%s", stdout)
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := [][]string{
		{"-quality", "ultra"},
		{"-workers", "-2"},
		{"-no-such-flag"},
		{"stray-arg"},
	}
	for _, args := range tests {
		if code, _, _ := runCLI(t, args...); code != 2 {
			t.Errorf("run(%v) = %d, want 2", args, code)
		}
	}
}

func TestRun_BadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("groups: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if code, _, _ := runCLI(t, "-catalog", path, "-list"); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestRun_ConfigFileAndReport(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "out", "report.json")
	cfgPath := filepath.Join(dir, "scenebatch.yaml")
	cfgYAML := "quality: high\nworkers: 2\nstats: true\n" +
		"history_file: " + filepath.Join(dir, "history.log") + "\n" +
		"report: " + reportPath + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}

	// -q on the command line wins over the file.
	code, stdout, _ := runCLI(t, f.args("-config", cfgPath, "-q", "medium", "-scene", "scene_01")...)
	if code != 0 {
		t.Fatalf("exit code = %d\n%s", code, stdout)
	}
	inv := f.invocations(t)
	if len(inv) != 1 || !strings.HasPrefix(inv[0], "-qm ") {
		t.Errorf("invocations = %v", inv)
	}
	if !strings.Contains(stdout, "PERFORMANCE REPORT") {
		t.Errorf("stats missing:\n%s", stdout)
	}

	rep, err := report.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != 1 || rep.Succeeded != 1 || rep.Workers != 1 || rep.Scenes[0].Quality != "medium" {
		t.Errorf("report = %+v", rep)
	}
	if _, err := os.Stat(filepath.Join(dir, "history.log")); err != nil {
		t.Errorf("history not written: %v", err)
	}
}

func TestRun_DumpCatalog(t *testing.T) {
	f := newFixture(t)
	code, stdout, _ := runCLI(t, f.args("-dump-catalog")...)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	cat, err := catalog.Parse([]byte(stdout))
	if err != nil {
		t.Fatalf("dumped catalog does not parse: %v\n%s", err, stdout)
	}
	if cat.Len() != 3 {
		t.Errorf("Len() = %d", cat.Len())
	}
}

func TestRun_Version(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	if code != 0 || !strings.Contains(stdout, "scenebatch dev") {
		t.Errorf("run(-version) = %d, %q", code, stdout)
	}
}

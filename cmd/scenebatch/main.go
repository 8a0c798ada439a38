package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/scenebatch/internal/catalog"
	"github.com/ivlev/scenebatch/internal/config"
	"github.com/ivlev/scenebatch/internal/engine"
	"github.com/ivlev/scenebatch/internal/logging"
	"github.com/ivlev/scenebatch/internal/render"
	"github.com/ivlev/scenebatch/internal/report"
	"github.com/ivlev/scenebatch/internal/system"
)

// Set with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	dumpCatalog bool
	version     bool
}

func newFlagSet(cfg *config.Config, opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("scenebatch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&cfg.ListOnly, "list", false, "List catalog scenes (honours -group and -scene) and exit")
	fs.BoolVar(&cfg.ListOnly, "l", false, "Shorthand for -list")

	groupUsage := "Render only the scenes of this group (module, chapter or part)"
	for _, name := range []string{"group", "g", "module", "m", "chapter", "c", "part", "p"} {
		fs.StringVar(&cfg.Group, name, "", groupUsage)
	}
	fs.StringVar(&cfg.SceneID, "scene", "", "Render only this scene id")
	fs.StringVar(&cfg.SceneID, "s", "", "Shorthand for -scene")

	qualityUsage := "Render quality: " + strings.Join(config.QualityNames(), ", ")
	fs.StringVar((*string)(&cfg.Quality), "quality", string(cfg.Quality), qualityUsage)
	fs.StringVar((*string)(&cfg.Quality), "q", string(cfg.Quality), "Shorthand for -quality")

	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel renders (1 = sequential, 0 = auto from host profile)")
	fs.IntVar(&cfg.Workers, "j", cfg.Workers, "Shorthand for -workers")

	fs.StringVar(&cfg.Root, "root", cfg.Root, "Project root holding the scene work dirs")
	fs.StringVar(&cfg.MediaDir, "media-dir", cfg.MediaDir, "Renderer media dir (default <root>/media)")
	fs.StringVar(&cfg.Renderer, "renderer", cfg.Renderer, "Renderer executable")
	fs.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Ask the renderer to open each result")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Print the render commands without running them")
	fs.BoolVar(&cfg.Check, "check", false, "Print environment diagnostics and exit")

	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Catalog YAML (default: built-in catalog)")
	fs.BoolVar(&opts.dumpCatalog, "dump-catalog", false, "Print the active catalog as YAML and exit")
	fs.StringVar(&opts.configPath, "config", "", "Config YAML; command-line flags take precedence")
	fs.StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "Write the run summary to this .yaml/.json file (a directory gets a timestamped name)")
	fs.BoolVar(&cfg.ShowStats, "stats", cfg.ShowStats, "Print a performance report and append to the history log")

	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write JSON logs to this file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.LogJournal, "log-journal", cfg.LogJournal, "Also write logs to the systemd journal")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Stream renderer output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Shorthand for -verbose")
	fs.BoolVar(&opts.version, "version", false, "Print the build version and exit")
	return fs
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.DefaultConfig()
	cfg.BuildVersion = buildVersion

	var opts options
	fs := newFlagSet(&cfg, &opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return engine.ExitOK
		}
		return engine.ExitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "[-] unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return engine.ExitUsage
	}
	if opts.version {
		fmt.Fprintf(stdout, "scenebatch %s\n", buildVersion)
		return engine.ExitOK
	}

	if opts.configPath != "" {
		if err := applyConfigFile(fs, &cfg, opts.configPath); err != nil {
			fmt.Fprintf(stderr, "[-] %v\n", err)
			return engine.ExitEnvironment
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "[-] %v\n", err)
		return engine.ExitUsage
	}

	logger, err := logging.New(&cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "[-] logging: %v\n", err)
		return engine.ExitEnvironment
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		fmt.Fprintf(stderr, "[-] %v\n", err)
		return engine.ExitEnvironment
	}
	logger.Debug("catalog loaded", "scenes", cat.Len(), "digest", cat.Digest(), "path", cfg.CatalogPath)

	if opts.dumpCatalog {
		data, err := catalog.Marshal(cat)
		if err != nil {
			fmt.Fprintf(stderr, "[-] %v\n", err)
			return engine.ExitFailed
		}
		stdout.Write(data)
		return engine.ExitOK
	}

	entries, err := cat.List(catalog.Filter{Group: cfg.Group, ID: cfg.SceneID})
	if err != nil {
		var nf *catalog.NotFoundError
		if errors.As(err, &nf) {
			fmt.Fprintf(stderr, "[-] %v\n", nf)
			if len(nf.Available) > 0 {
				fmt.Fprintf(stderr, "    available: %s\n", strings.Join(nf.Available, ", "))
			}
			fmt.Fprintln(stderr, "    use -list to see the catalog")
			return engine.ExitUsage
		}
		fmt.Fprintf(stderr, "[-] %v\n", err)
		return engine.ExitUsage
	}

	if cfg.ListOnly {
		report.PrintCatalog(stdout, cat, entries)
		fmt.Fprintf(stdout, "catalog digest: %s\n", cat.Digest())
		return engine.ExitOK
	}

	if cfg.Check {
		return runCheck(ctx, &cfg, stdout)
	}

	if !cfg.DryRun {
		path, err := render.CheckEnvironment(cfg.Renderer)
		if err != nil {
			fmt.Fprintf(stderr, "[-] %v\n", err)
			fmt.Fprintln(stderr, "    install manim or point -renderer at the executable")
			return engine.ExitEnvironment
		}
		logger.Debug("renderer resolved", "path", path)
	}

	system.InitResourceLimits(logger.Logger)

	if cfg.Workers == 0 {
		profile, err := system.Profile(ctx)
		if err != nil {
			logger.Warn("host profile incomplete", "error", err)
		}
		cfg.Workers = system.SuggestWorkers(profile)
		fmt.Fprintf(stdout, "[*] Auto workers: %d\n", cfg.Workers)
	}

	mediaDir := cfg.MediaDir
	if mediaDir == "" {
		mediaDir = filepath.Join(cfg.Root, "media")
	}
	// The renderer runs inside each group's work dir.
	if mediaDir, err = filepath.Abs(mediaDir); err != nil {
		fmt.Fprintf(stderr, "[-] media dir: %v\n", err)
		return engine.ExitEnvironment
	}

	renderer := render.NewManimRenderer(&cfg, mediaDir)
	batch := engine.NewBatch(&cfg, renderer, mediaDir, logger.Logger, stdout)

	reqs, err := batch.Plan(cat, entries)
	if err != nil {
		fmt.Fprintf(stderr, "[-] %v\n", err)
		return engine.ExitEnvironment
	}

	fmt.Fprintf(stdout, "[*] Scenes: %d | Quality: %s (%s) | Workers: %d\n", len(reqs), cfg.Quality, cfg.Quality.Tag(), cfg.Workers)
	if cfg.DryRun {
		fmt.Fprintln(stdout, "[*] Dry run: nothing will be rendered")
	}

	started := time.Now()
	summary, runErr := batch.Run(ctx, reqs)
	fmt.Fprintln(stdout)
	report.PrintSummary(stdout, summary)

	if cfg.ReportPath != "" {
		path := reportPath(cfg.ReportPath, started)
		if err := report.WriteFile(path, report.NewFile(summary, cfg.BuildVersion, started)); err != nil {
			logger.Error("failed to write report", "path", path, "error", err)
		} else {
			fmt.Fprintf(stdout, "[*] Report: %s\n", path)
		}
	}

	if cfg.ShowStats {
		report.PrintStats(stdout, summary, cfg.BuildVersion)
		if err := report.AppendHistory(cfg.HistoryFile, summary, cfg.BuildVersion, string(cfg.Quality)); err != nil {
			fmt.Fprintf(stderr, "[!] Failed to write %s: %v\n", cfg.HistoryFile, err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "[-] %v\n", runErr)
		return engine.ExitEnvironment
	}
	if summary.Interrupted {
		fmt.Fprintln(stderr, "[!] Interrupted")
	} else if summary.OK() && !cfg.DryRun {
		fmt.Fprintf(stdout, "[+++] Done! Output: %s\n", filepath.Join(mediaDir, "videos"))
	}
	return summary.ExitCode()
}

// applyConfigFile loads path over cfg, then re-applies every flag given on
// the command line so flags win over the file.
func applyConfigFile(fs *flag.FlagSet, cfg *config.Config, path string) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})
	if err := config.LoadFile(path, cfg); err != nil {
		return err
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Builtin()
	}
	return catalog.Load(path)
}

func reportPath(path string, now time.Time) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return report.GenerateReportPath(path, now)
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		return report.GenerateReportPath(path, now)
	}
	return path
}

func runCheck(ctx context.Context, cfg *config.Config, stdout io.Writer) int {
	env := report.Environment{Renderer: cfg.Renderer, Tools: render.ProbeTools()}

	env.RendererPath, env.RendererErr = render.CheckEnvironment(cfg.Renderer)
	if env.RendererErr == nil {
		vctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		env.RendererVersion, env.RendererErr = render.Version(vctx, env.RendererPath)
		cancel()
		if env.RendererErr != nil {
			env.RendererErr = &render.EnvironmentError{Binary: cfg.Renderer, Err: env.RendererErr}
		}
	}

	env.Host, env.HostErr = system.Profile(ctx)
	env.SuggestedJobs = system.SuggestWorkers(env.Host)

	report.PrintEnvironment(stdout, env)
	if env.RendererErr != nil {
		return engine.ExitEnvironment
	}
	return engine.ExitOK
}

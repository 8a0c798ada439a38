package config

import (
	"fmt"
	"strings"
)

// Quality is a render quality preset forwarded to the renderer.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	Quality4K     Quality = "4k"
)

// qualityAliases keeps the preset names operators used with the old batch scripts.
var qualityAliases = map[string]Quality{
	"low":        QualityLow,
	"medium":     QualityMedium,
	"high":       QualityHigh,
	"4k":         Quality4K,
	"preview":    QualityLow,
	"production": QualityHigh,
}

// QualityNames returns every accepted -quality value, canonical names first.
func QualityNames() []string {
	return []string{"low", "medium", "high", "4k", "preview", "production"}
}

// ParseQuality resolves a preset name or alias.
func ParseQuality(s string) (Quality, error) {
	q, ok := qualityAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown quality %q (want one of %s)", s, strings.Join(QualityNames(), ", "))
	}
	return q, nil
}

// Flag returns the renderer's short quality flag.
func (q Quality) Flag() string {
	switch q {
	case QualityMedium:
		return "-qm"
	case QualityHigh:
		return "-qh"
	case Quality4K:
		return "-qk"
	default:
		return "-ql"
	}
}

// Tag is the directory name the renderer uses for this preset's output.
func (q Quality) Tag() string {
	switch q {
	case QualityMedium:
		return "720p30"
	case QualityHigh:
		return "1080p60"
	case Quality4K:
		return "2160p60"
	default:
		return "480p15"
	}
}

type Config struct {
	Root         string   `yaml:"root"`
	MediaDir     string   `yaml:"media_dir"`
	CatalogPath  string   `yaml:"catalog"`
	Renderer     string   `yaml:"renderer"`
	RendererArgs []string `yaml:"renderer_args"`
	Quality      Quality  `yaml:"quality"`
	Workers      int      `yaml:"workers"`
	Preview      bool     `yaml:"preview"`
	DryRun       bool     `yaml:"dry_run"`
	Verbose      bool     `yaml:"verbose"`
	ShowStats    bool     `yaml:"stats"`
	HistoryFile  string   `yaml:"history_file"`
	ReportPath   string   `yaml:"report"`
	LogFile      string   `yaml:"log_file"`
	LogLevel     string   `yaml:"log_level"`
	LogJournal   bool     `yaml:"log_journal"`
	BuildVersion string   `yaml:"-"`

	// Selection, set from the command line only.
	Group    string `yaml:"-"`
	SceneID  string `yaml:"-"`
	ListOnly bool   `yaml:"-"`
	Check    bool   `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Root:        ".",
		Renderer:    "manim",
		Quality:     QualityLow,
		Workers:     1,
		HistoryFile: "render-history.log",
		LogLevel:    "info",
	}
}

// Validate checks value ranges; it does not touch the filesystem.
func (c *Config) Validate() error {
	q, err := ParseQuality(string(c.Quality))
	if err != nil {
		return err
	}
	c.Quality = q

	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if strings.TrimSpace(c.Renderer) == "" {
		return fmt.Errorf("renderer must not be empty")
	}
	if c.Root == "" {
		c.Root = "."
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

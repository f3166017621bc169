// Package config holds the tuning values the recording engine is built
// from. The argument parser that produces a Config is out of scope
// (spec §1); this package only defines the shape, its defaults, and the
// invariants a Config must satisfy before an engine run starts.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the CLI surface table of spec §6, one field per flag,
// plus UserAgent. -i/--interactive and --cookies have no field: the
// representation picker and the identity resolver they drive are not part
// of this module.
type Config struct {
	MPDURL     string `yaml:"mpdURL"`
	OutputPath string `yaml:"outputPath"`

	LogFile           string   `yaml:"logFile"`
	SummaryFile       string   `yaml:"summaryFile"`
	SummaryFileKorean string   `yaml:"summaryFileKorean"`
	Verbose           bool     `yaml:"verbose"`
	Quiet             bool     `yaml:"quiet"`
	PreferredVideoIDs []string `yaml:"videoQuality"`
	PreferredAudioIDs []string `yaml:"audioQuality"`

	PollInterval           time.Duration `yaml:"pollInterval"`
	MaxSearchRequests      int           `yaml:"maxSearchRequests"`
	DownloadRetries        int           `yaml:"downloadRetries"`
	DownloadRetryDelay     time.Duration `yaml:"downloadRetryDelay"`
	CheckURLRetries        int           `yaml:"checkURLRetries"`
	ProxyURL               string        `yaml:"proxy"`
	NoPast                 bool          `yaml:"noPast"`
	EndStreamMissThreshold int           `yaml:"endStreamMissThreshold"`
	SearchChunkSize        int           `yaml:"searchChunkSize"`
	LiveEndTimeout         time.Duration `yaml:"liveEndTimeout"`
	PastSegmentDelay       time.Duration `yaml:"pastSegmentDelay"`
	KeepSegments           bool          `yaml:"keepSegments"`
	FFmpegPath             string        `yaml:"ffmpegPath"`
	FFprobePath            string        `yaml:"ffprobePath"`
	UserAgent              string        `yaml:"userAgent"`
}

// Default returns the documented defaults from spec §6, grounded on
// original_source/instarec/cli.py's argparse defaults.
func Default() Config {
	return Config{
		PollInterval:           2 * time.Second,
		MaxSearchRequests:      50,
		DownloadRetries:        5,
		DownloadRetryDelay:     1 * time.Second,
		CheckURLRetries:        3,
		EndStreamMissThreshold: 30000,
		SearchChunkSize:        500,
		LiveEndTimeout:         180 * time.Second,
		PastSegmentDelay:       100 * time.Millisecond,
		FFmpegPath:             "ffmpeg",
		FFprobePath:            "ffprobe",
		UserAgent:              "instarec/1.0",
	}
}

// Load overlays an optional YAML file on top of Default(), then returns
// the merged result unvalidated. A missing path is not an error: it simply
// means the caller relies entirely on flag-supplied values layered onto the
// returned Config.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces the cross-field invariants a Config must satisfy
// before an engine run may begin.
func (c Config) Validate() error {
	if c.MPDURL == "" {
		return fmt.Errorf("mpd url is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Verbose && c.Quiet {
		return fmt.Errorf("verbose and quiet are mutually exclusive")
	}
	if c.MaxSearchRequests <= 0 {
		return fmt.Errorf("maxSearchRequests must be positive")
	}
	if c.SearchChunkSize <= 0 {
		return fmt.Errorf("searchChunkSize must be positive")
	}
	if c.DownloadRetries < 0 || c.CheckURLRetries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	if c.EndStreamMissThreshold < c.SearchChunkSize {
		return fmt.Errorf("endStreamMissThreshold must be at least searchChunkSize")
	}
	return nil
}

// LogLevel maps the mutually-exclusive Verbose/Quiet flags to a zerolog
// level string.
func (c Config) LogLevel() string {
	switch {
	case c.Verbose:
		return "debug"
	case c.Quiet:
		return "warn"
	default:
		return "info"
	}
}

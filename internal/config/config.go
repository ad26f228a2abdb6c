// Package config loads the engine's settings from a TOML file on disk,
// layered over built-in defaults, mirroring the teacher's koanf-based
// config loader.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every setting the engine needs at startup. No field is
// required: an empty store path falls back to store.DefaultPath, empty
// library sources just skip the startup import, and everything else has
// a usable default.
type Config struct {
	// StorePath overrides the catalog database's location; empty uses
	// store.DefaultPath (XDG data dir).
	StorePath string `koanf:"store_path"`

	// LibrarySources lists the directories cmd/enginecli imports at
	// startup. ImportLibrary and ConsolidateLibrary calls take their
	// roots as arguments and do not read this list.
	LibrarySources []string `koanf:"library_sources"`

	Jobs      JobsConfig      `koanf:"jobs"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	TagSearch TagSearchConfig `koanf:"tag_search"`
	Transcode TranscodeConfig `koanf:"transcode"`
}

// JobsConfig overrides the Job Runner's per-kind concurrency caps; zero
// or absent entries fall back to jobs.defaultConcurrency.
type JobsConfig struct {
	ImportWorkers      int `koanf:"import_workers"`
	AnalyzeWorkers     int `koanf:"analyze_workers"`
	WaveformWorkers    int `koanf:"waveform_workers"`
	ConsolidateWorkers int `koanf:"consolidate_workers"`
	TranscodeWorkers   int `koanf:"transcode_workers"`
}

// AnalysisConfig tunes beatgrid estimation thresholds, per §4.4.
type AnalysisConfig struct {
	// MinBPM/MaxBPM bound the folded tempo range candidate intervals are
	// mapped into; zero uses the package defaults (60-200).
	MinBPM float64 `koanf:"min_bpm"`
	MaxBPM float64 `koanf:"max_bpm"`
}

// TagSearchConfig points at the Beatport-style tag-lookup service used
// by batch_fix_tags.
type TagSearchConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

// TranscodeConfig names the external transcoder binary.
type TranscodeConfig struct {
	FFmpegBinary string `koanf:"ffmpeg_binary"`
}

// Load reads config files in ascending priority order (later files
// override earlier ones) and unmarshals them over built-in defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Transcode: TranscodeConfig{FFmpegBinary: "ffmpeg"},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	for i, src := range cfg.LibrarySources {
		cfg.LibrarySources[i] = expandPath(src)
	}
	if cfg.StorePath != "" {
		cfg.StorePath = expandPath(cfg.StorePath)
	}
	cfg.TagSearch.BaseURL = strings.TrimSuffix(cfg.TagSearch.BaseURL, "/")

	return cfg, nil
}

func configPaths() []string {
	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "symphony-engine", "config.toml"))
	}
	paths = append(paths, "config.toml")
	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

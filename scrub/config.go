package scrub

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultFrameCount     = 64
	DefaultPathTemplate   = "frame_%04d.jpg"
	DefaultQuality        = 1.0
	DefaultFrameSpeed     = 1.0
	DefaultTrackViewports = 3.0
	DefaultLoadWorkers    = 6
)

// Errors returned by Validate.
var (
	ErrFrameCount     = errors.New("frame count must be at least 1")
	ErrQuality        = errors.New("quality must be at least 1")
	ErrFrameSpeed     = errors.New("frame speed must not be negative")
	ErrScrubFactor    = errors.New("scrub factor must not be negative")
	ErrTrackViewports = errors.New("track viewports must be positive")
	ErrPathTemplate   = errors.New("path template must format exactly one integer")
)

// Config describes a frame sequence and how it is played back. The zero value
// is not valid; use DefaultConfig or LoadConfig.
type Config struct {
	// FrameCount is the number of frames in the sequence.
	FrameCount int `yaml:"frame_count"`
	// BasePath is joined in front of every formatted frame path.
	BasePath string `yaml:"base_path"`
	// PathTemplate is formatted with the 1-based frame number.
	PathTemplate string `yaml:"path_template"`
	// Quality multiplies the viewport to get the surface resolution.
	Quality float64 `yaml:"quality"`
	// FrameSpeed is the default scrub factor when ScrubFactor is unset.
	FrameSpeed float64 `yaml:"frame_speed"`
	// ScrubFactor is the number of seconds playback takes to catch up with
	// the scroll position. Zero tracks the scroll position exactly.
	ScrubFactor *float64 `yaml:"scrub_factor,omitempty"`
	// TrackViewports is the height of the scroll track in viewport heights.
	TrackViewports float64 `yaml:"track_viewports"`
	// LoadWorkers bounds the number of frames loaded at once.
	LoadWorkers int `yaml:"load_workers"`
	// MaxFrameWidth and MaxFrameHeight, if both non-zero, shrink decoded
	// frames to fit within them.
	MaxFrameWidth  int `yaml:"max_frame_width"`
	MaxFrameHeight int `yaml:"max_frame_height"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		FrameCount:     DefaultFrameCount,
		PathTemplate:   DefaultPathTemplate,
		Quality:        DefaultQuality,
		FrameSpeed:     DefaultFrameSpeed,
		TrackViewports: DefaultTrackViewports,
		LoadWorkers:    DefaultLoadWorkers,
	}
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their default values.
func LoadConfig(file string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(file)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %q", file)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %q", file)
	}

	return cfg, nil
}

// Validate checks the configuration for values that cannot be played.
func (cfg Config) Validate() error {
	switch {
	case cfg.FrameCount < 1:
		return ErrFrameCount
	// Negated so that NaN fails too.
	case !(cfg.Quality >= 1):
		return ErrQuality
	case !(cfg.FrameSpeed >= 0):
		return ErrFrameSpeed
	case cfg.ScrubFactor != nil && !(*cfg.ScrubFactor >= 0):
		return ErrScrubFactor
	case !(cfg.TrackViewports > 0):
		return ErrTrackViewports
	}

	if strings.Count(cfg.PathTemplate, "%")-2*strings.Count(cfg.PathTemplate, "%%") != 1 {
		return ErrPathTemplate
	}

	if p := fmt.Sprintf(cfg.PathTemplate, 1); strings.Contains(p, "%!") {
		return ErrPathTemplate
	}

	return nil
}

// Scrub returns the effective scrub factor in seconds.
func (cfg Config) Scrub() float64 {
	if cfg.ScrubFactor != nil {
		return *cfg.ScrubFactor
	}
	return cfg.FrameSpeed
}

// MaxIndex returns the index of the last frame.
func (cfg Config) MaxIndex() int {
	return cfg.FrameCount - 1
}

// FramePath returns the path of the frame at the given 0-based index.
func (cfg Config) FramePath(index int) string {
	name := fmt.Sprintf(cfg.PathTemplate, index+1)
	if cfg.BasePath == "" {
		return name
	}
	return path.Join(cfg.BasePath, name)
}

// Workers returns the number of concurrent loads to use.
func (cfg Config) Workers() int {
	if cfg.LoadWorkers < 1 {
		return DefaultLoadWorkers
	}
	return cfg.LoadWorkers
}

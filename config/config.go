// Package config - Run configuration: YAML file with defaults for every
// section, strict decoding and range validation.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/tracking"
	"github.com/nvr-ai/go-track/video"
)

// maxFileSize bounds configuration files.
const maxFileSize = 1 << 20

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("config: invalid configuration")

// TrackConfig contains the trajectory and measurement parameters.
type TrackConfig struct {
	// Workers bounds concurrent frame detections; 0 uses runtime.NumCPU.
	Workers int `json:"workers" yaml:"workers"`
	// GapPolicy decides how distance is attributed across missed frames.
	GapPolicy tracking.GapPolicy `json:"gap_policy" yaml:"gap_policy"`
	// CmPerPixel converts pixel distances to centimetres.
	CmPerPixel float64 `json:"cm_per_pixel" yaml:"cm_per_pixel"`
	// GapWarnFraction logs a warning when more frames than this fraction have
	// no detection.
	GapWarnFraction float64 `json:"gap_warn_fraction" yaml:"gap_warn_fraction"`
}

// OutputConfig lists the run outputs. Empty paths are skipped.
type OutputConfig struct {
	Video    string `json:"video" yaml:"video"`
	Codec    string `json:"codec" yaml:"codec"`
	Heatmap  string `json:"heatmap" yaml:"heatmap"`
	Path     string `json:"path" yaml:"path"`
	CSV      string `json:"csv" yaml:"csv"`
	Database string `json:"database" yaml:"database"`
	// Region is a PNG of the valid region mask.
	Region string `json:"region" yaml:"region"`
}

// LogConfig contains the logging parameters.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
}

// Config is the complete run configuration.
type Config struct {
	Video   video.Options          `json:"video" yaml:"video"`
	Region  detector.RegionConfig  `json:"region" yaml:"region"`
	Segment detector.SegmentConfig `json:"segment" yaml:"segment"`
	Track   TrackConfig            `json:"track" yaml:"track"`
	Render  tracking.RenderConfig  `json:"render" yaml:"render"`
	Output  OutputConfig           `json:"output" yaml:"output"`
	Log     LogConfig              `json:"log" yaml:"log"`
}

// Default returns a default configuration for a tracking run.
func Default() *Config {
	return &Config{
		Video:   video.DefaultOptions(),
		Region:  detector.DefaultRegionConfig(),
		Segment: detector.DefaultSegmentConfig(),
		Track: TrackConfig{
			Workers:         tracking.DefaultBuildConfig().Workers,
			GapPolicy:       tracking.GapBreak,
			CmPerPixel:      1,
			GapWarnFraction: 0.2,
		},
		Render: tracking.DefaultRenderConfig(),
		Output: OutputConfig{
			Video: "outputvideo.mp4",
			Codec: video.DefaultCodec,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file over the defaults.
//
// Arguments:
// - path: A .yaml or .yml file.
//
// Returns:
// - *Config: The validated configuration.
// - error: A read, decode or validation failure.
func Load(path string) (*Config, error) {
	clean := filepath.Clean(path)
	switch ext := strings.ToLower(filepath.Ext(clean)); ext {
	case ".yaml", ".yml":
	default:
		return nil, errors.Errorf("config: file must have a .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return nil, errors.Wrap(err, "config: stat")
	}
	if info.Size() > maxFileSize {
		return nil, errors.Errorf("config: file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "config: parse")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports the first invalid section.
func (c *Config) Validate() error {
	if err := c.Video.Validate(); err != nil {
		return errors.Wrap(err, "video")
	}
	if err := c.Region.Validate(); err != nil {
		return errors.Wrap(err, "region")
	}
	if err := c.Segment.Validate(); err != nil {
		return errors.Wrap(err, "segment")
	}
	if err := c.Render.Validate(); err != nil {
		return errors.Wrap(err, "render")
	}
	if err := c.Track.GapPolicy.Validate(); err != nil {
		return errors.Wrap(err, "track")
	}
	if c.Track.Workers < 0 {
		return errors.Wrapf(ErrInvalid, "track workers %d", c.Track.Workers)
	}
	if c.Track.CmPerPixel < 0 {
		return errors.Wrapf(ErrInvalid, "track cm_per_pixel %v", c.Track.CmPerPixel)
	}
	if c.Track.GapWarnFraction < 0 || c.Track.GapWarnFraction > 1 {
		return errors.Wrapf(ErrInvalid, "track gap_warn_fraction %v outside [0,1]", c.Track.GapWarnFraction)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, errors.Wrapf(ErrInvalid, "log level %q", name)
	}
	return level, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"confgrid/internal/grid"
	appLog "confgrid/internal/log"
)

// NOTE: First run writes a default config with 0600 permissions; every save
// goes through a temp file + rename so a watcher never reads a torn file.

// MapConfig controls the generated Leaflet documents.
type MapConfig struct {
	// Zoom is the initial zoom for the venue and sightseeing maps.
	Zoom int `yaml:"zoom" json:"zoom"`
	// TourZoom is the initial zoom for the audio tour map.
	TourZoom int `yaml:"tour_zoom" json:"tour_zoom"`
	// Route is an optional GPX file drawn as a polyline on the tour map.
	Route string `yaml:"route" json:"route"`
	// TileURL overrides the OpenStreetMap tile template.
	TileURL string `yaml:"tile_url,omitempty" json:"tile_url,omitempty"`
	// Center is the "lat, lng" fallback when no marker has coordinates.
	Center string `yaml:"center" json:"center"`
}

// CaptureConfig describes the headless snapshot of the schedule page.
type CaptureConfig struct {
	// URL defaults to the local /schedule page when empty.
	URL    string `yaml:"url" json:"url"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web surface.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone schedule times are interpreted in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// BaseURL is the spreadsheet API root; each sheet is BaseURL/<name>.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// SightseeingURL overrides the sightseeing sheet, which lives in a
	// separate document.
	SightseeingURL string `yaml:"sightseeing_url" json:"sightseeing_url"`

	// RefreshCron is a cron spec (standard 5-field or @every) for the
	// background schedule refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// ViewportWidth is the assumed visible grid width for auto-scroll when
	// the client does not report one.
	ViewportWidth float64 `yaml:"viewport_width" json:"viewport_width"`

	Grid    grid.Config   `yaml:"grid" json:"grid"`
	Map     MapConfig     `yaml:"map" json:"map"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "Europe/Vienna"
	defaultRefresh    = "*/15 * * * *"
	defaultLogLevel   = "info"
	defaultViewport   = 390
	defaultMapZoom    = 14
	defaultTourZoom   = 17
	defaultMapCenter  = "48.2082, 16.3738"
	defaultCaptureOut = "schedule.png"
	defaultCaptureW   = 1920
	defaultCaptureH   = 1080
	configTempPattern = ".confgrid-config-*.tmp"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      defaultTimezone,
		RefreshCron:   defaultRefresh,
		LogLevel:      defaultLogLevel,
		ViewportWidth: defaultViewport,
		Grid:          grid.DefaultConfig(),
		Map: MapConfig{
			Zoom:     defaultMapZoom,
			TourZoom: defaultTourZoom,
			Center:   defaultMapCenter,
		},
		Capture: CaptureConfig{
			Output: defaultCaptureOut,
			Width:  defaultCaptureW,
			Height: defaultCaptureH,
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = defaultViewport
	}
	c.Grid.Normalize()
	if c.Map.Zoom <= 0 {
		c.Map.Zoom = defaultMapZoom
	}
	if c.Map.TourZoom <= 0 {
		c.Map.TourZoom = defaultTourZoom
	}
	if c.Map.Center == "" {
		c.Map.Center = defaultMapCenter
	}
	if c.Capture.Output == "" {
		c.Capture.Output = defaultCaptureOut
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultCaptureW
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultCaptureH
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Map.Zoom > 19 || c.Map.TourZoom > 19 {
		return errors.New("config: map zoom must be <= 19")
	}
	return nil
}

// Location resolves Timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("invalid timezone, falling back to local", err, "timezone", c.Timezone)
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions (creating the parent directory) and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with the
// parent directory at 0700 and the file at 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, configTempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
